// Package main is the entry point for the ethterm TUI.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ethterm/internal/config"
	"ethterm/internal/logging"
	"ethterm/internal/views"
)

var (
	flagNetwork  string
	flagRPCURL   string
	flagDataDir  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ethterm",
	Short: "A terminal front end for Ethereum accounts and the demo counter contract",
	Long: `ethterm connects a local key (or a watch-only address) to an Ethereum
network and drives it from the terminal: balances, transfers, gas prices,
and the demo counter contract.

Example:
  ethterm --network sepolia
  ethterm --network localhost --rpc-url http://127.0.0.1:8545`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagNetwork, "network", "", "network to connect to (overrides config)")
	rootCmd.Flags().StringVar(&flagRPCURL, "rpc-url", "", "RPC endpoint override for the selected network")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.ethterm)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

func run() error {
	dataDir := flagDataDir
	if dataDir == "" {
		var err error
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	networkName := cfg.DefaultNetwork
	if flagNetwork != "" {
		networkName = flagNetwork
	}
	if _, ok := cfg.Network(networkName); !ok {
		return fmt.Errorf("unknown network %q", networkName)
	}
	if flagRPCURL != "" {
		for i := range cfg.Networks {
			if cfg.Networks[i].Name == networkName {
				cfg.Networks[i].RPCURL = flagRPCURL
			}
		}
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}

	// The TUI owns stdout, so diagnostics go to a file in the data dir.
	log, err := logging.New(cfg.DataDir, level)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = log.Sync() }()

	app, err := views.NewAppModel(cfg, networkName, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
