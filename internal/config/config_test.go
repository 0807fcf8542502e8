package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.DefaultNetwork)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.TxWaitTimeout)

	network, ok := cfg.Network("sepolia")
	require.True(t, ok)
	assert.Equal(t, uint64(11155111), network.ChainID)
	assert.NotEmpty(t, network.Counter)
}

func TestLoadFromFile(t *testing.T) {
	dataDir := t.TempDir()
	fileCfg := map[string]any{
		"default_network": "devnet",
		"networks": []map[string]any{
			{"name": "devnet", "chain_id": 1337, "rpc_url": "http://localhost:9999", "symbol": "ETH"},
		},
	}
	data, err := json.Marshal(fileCfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, configFile), data, 0600))

	cfg, err := Load(dataDir)
	require.NoError(t, err)

	assert.Equal(t, "devnet", cfg.DefaultNetwork)
	network, ok := cfg.NetworkByChainID(1337)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9999", network.RPCURL)
	// Unset durations keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ETHTERM_NETWORK", "mainnet")
	t.Setenv("ETHTERM_RPC_URL", "http://10.0.0.1:8545")
	t.Setenv("ETHTERM_TIMEOUT", "45s")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "mainnet", cfg.DefaultNetwork)
	assert.Equal(t, 45*time.Second, cfg.Timeout)

	network, ok := cfg.Network("mainnet")
	require.True(t, ok)
	assert.Equal(t, "http://10.0.0.1:8545", network.RPCURL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaults(t.TempDir())
		return cfg
	}

	t.Run("valid defaults", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("unknown default network", func(t *testing.T) {
		cfg := base()
		cfg.DefaultNetwork = "nope"
		assert.Error(t, cfg.Validate())
	})

	t.Run("duplicate chain id", func(t *testing.T) {
		cfg := base()
		cfg.Networks = append(cfg.Networks, Network{Name: "dup", ChainID: 1, RPCURL: "http://x"})
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing rpc url", func(t *testing.T) {
		cfg := base()
		cfg.Networks[0].RPCURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive timeout", func(t *testing.T) {
		cfg := base()
		cfg.Timeout = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestChainNames(t *testing.T) {
	cfg := defaults(t.TempDir())
	names := cfg.ChainNames()
	assert.Equal(t, "mainnet", names[1])
	assert.Equal(t, "sepolia", names[11155111])
}
