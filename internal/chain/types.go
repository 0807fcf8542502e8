package chain

import (
	"math/big"
	"time"
)

// Config carries the connection settings for one network.
type Config struct {
	Name          string
	ChainID       uint64
	RPCURL        string
	Timeout       time.Duration
	TxWaitTimeout time.Duration
	PollInterval  time.Duration
	CacheTTL      time.Duration
}

const (
	DefaultTimeout       = 30 * time.Second
	DefaultTxWaitTimeout = 5 * time.Minute
	DefaultPollInterval  = 2 * time.Second
	DefaultCacheTTL      = 30 * time.Second
	DefaultRetryAttempts = 3
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	if out.TxWaitTimeout == 0 {
		out.TxWaitTimeout = DefaultTxWaitTimeout
	}
	if out.PollInterval == 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.CacheTTL == 0 {
		out.CacheTTL = DefaultCacheTTL
	}
	return out
}

// NetworkStatus is the connection snapshot shown on the dashboard.
type NetworkStatus struct {
	Connected   bool
	ChainID     uint64
	BlockNumber uint64
	RPCURL      string
	LastChecked time.Time
}

// Balance is a cached account balance in base units.
type Balance struct {
	Amount      *big.Int
	LastUpdated time.Time
}

// CounterEvent is one observed change of the demo counter's value.
type CounterEvent struct {
	NewValue    *big.Int
	TxHash      string
	BlockNumber uint64
}
