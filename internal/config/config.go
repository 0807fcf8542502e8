// Package config holds the network registry and tunables, loaded from an
// optional JSON file in the data directory with environment overrides on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	appDir     = ".ethterm"
	configFile = "config.json"
)

// Network describes one chain the app can talk to. Counter and Token point
// at the demo contract and the demo ERC-20 when deployed on that chain.
type Network struct {
	Name          string `json:"name"`
	ChainID       uint64 `json:"chain_id"`
	RPCURL        string `json:"rpc_url"`
	Symbol        string `json:"symbol"`
	Counter       string `json:"counter_address,omitempty"`
	Token         string `json:"token_address,omitempty"`
	TokenSymbol   string `json:"token_symbol,omitempty"`
	TokenDecimals int    `json:"token_decimals,omitempty"`
}

type Config struct {
	DefaultNetwork string    `json:"default_network"`
	Networks       []Network `json:"networks"`

	Timeout       time.Duration `json:"timeout"`
	TxWaitTimeout time.Duration `json:"tx_wait_timeout"`
	PollInterval  time.Duration `json:"poll_interval"`
	GasRefresh    time.Duration `json:"gas_refresh"`
	CacheTTL      time.Duration `json:"cache_ttl"`

	DataDir  string `json:"-"`
	LogLevel string `json:"log_level,omitempty"`
}

func defaults(dataDir string) *Config {
	return &Config{
		DefaultNetwork: "sepolia",
		Networks: []Network{
			{
				Name:    "mainnet",
				ChainID: 1,
				RPCURL:  "https://eth.llamarpc.com",
				Symbol:  "ETH",
			},
			{
				Name:          "sepolia",
				ChainID:       11155111,
				RPCURL:        "https://rpc.sepolia.org",
				Symbol:        "ETH",
				Counter:       "0x9FBDc6e8e4c13BC7a6b5f6d4a0b2a55828c6dEE2",
				Token:         "0x7169D38820dfd117C3FA1f22a697dBA58d90BA06",
				TokenSymbol:   "TST",
				TokenDecimals: 18,
			},
			{
				Name:          "localhost",
				ChainID:       31337,
				RPCURL:        "http://127.0.0.1:8545",
				Symbol:        "ETH",
				Counter:       "0x5FbDB2315678afecb367f032d93F642f64180aa3",
				Token:         "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
				TokenSymbol:   "TST",
				TokenDecimals: 18,
			},
		},
		Timeout:       30 * time.Second,
		TxWaitTimeout: 5 * time.Minute,
		PollInterval:  2 * time.Second,
		GasRefresh:    15 * time.Second,
		CacheTTL:      30 * time.Second,
		DataDir:       dataDir,
		LogLevel:      "info",
	}
}

// DefaultDataDir is ~/.ethterm unless overridden by flag or env.
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, appDir), nil
}

// Load reads <dataDir>/config.json when present, applies environment
// overrides, and validates the result. A missing file yields the defaults.
func Load(dataDir string) (*Config, error) {
	cfg := defaults(dataDir)

	data, err := os.ReadFile(filepath.Join(dataDir, configFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DefaultNetwork = getEnvOrDefault("ETHTERM_NETWORK", cfg.DefaultNetwork)
	cfg.LogLevel = getEnvOrDefault("ETHTERM_LOG_LEVEL", cfg.LogLevel)
	cfg.Timeout = parseDurationOrDefault("ETHTERM_TIMEOUT", cfg.Timeout)
	cfg.TxWaitTimeout = parseDurationOrDefault("ETHTERM_TX_WAIT_TIMEOUT", cfg.TxWaitTimeout)
	cfg.CacheTTL = parseDurationOrDefault("ETHTERM_CACHE_TTL", cfg.CacheTTL)

	// ETHTERM_RPC_URL overrides the RPC endpoint of the default network.
	if url := os.Getenv("ETHTERM_RPC_URL"); url != "" {
		for i := range cfg.Networks {
			if cfg.Networks[i].Name == cfg.DefaultNetwork {
				cfg.Networks[i].RPCURL = url
			}
		}
	}
}

func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("no networks configured")
	}

	seen := make(map[uint64]string, len(c.Networks))
	for _, n := range c.Networks {
		if n.Name == "" {
			return fmt.Errorf("network with chain id %d has no name", n.ChainID)
		}
		if n.ChainID == 0 {
			return fmt.Errorf("network %q has no chain id", n.Name)
		}
		if n.RPCURL == "" {
			return fmt.Errorf("network %q has no RPC URL", n.Name)
		}
		if other, dup := seen[n.ChainID]; dup {
			return fmt.Errorf("networks %q and %q share chain id %d", other, n.Name, n.ChainID)
		}
		seen[n.ChainID] = n.Name
	}

	if _, ok := c.Network(c.DefaultNetwork); !ok {
		return fmt.Errorf("default network %q is not configured", c.DefaultNetwork)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", c.Timeout)
	}
	if c.TxWaitTimeout <= 0 {
		return fmt.Errorf("tx wait timeout must be positive, got: %v", c.TxWaitTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", c.PollInterval)
	}
	if c.GasRefresh <= 0 {
		return fmt.Errorf("gas refresh interval must be positive, got: %v", c.GasRefresh)
	}

	return nil
}

// Network looks up a configured network by name.
func (c *Config) Network(name string) (Network, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return Network{}, false
}

// NetworkByChainID looks up a configured network by chain id.
func (c *Config) NetworkByChainID(chainID uint64) (Network, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// ChainNames returns the chain id to name mapping consumed by the session
// manager.
func (c *Config) ChainNames() map[uint64]string {
	names := make(map[uint64]string, len(c.Networks))
	for _, n := range c.Networks {
		names[n.ChainID] = n.Name
	}
	return names
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
