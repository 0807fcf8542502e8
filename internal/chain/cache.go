package chain

import (
	"math/big"
	"strings"
	"sync"
	"time"
)

// BalanceCache keeps recently fetched balances so dashboard refreshes do not
// hammer the RPC endpoint. Entries expire after the TTL; token balances are
// keyed by "token:account".
type BalanceCache struct {
	mu       sync.RWMutex
	balances map[string]*Balance
	ttl      time.Duration
}

func NewBalanceCache(ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		balances: make(map[string]*Balance),
		ttl:      ttl,
	}
}

func (c *BalanceCache) Get(key string) (*big.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	balance, exists := c.balances[key]
	if !exists || time.Since(balance.LastUpdated) > c.ttl {
		return nil, false
	}

	return new(big.Int).Set(balance.Amount), true
}

func (c *BalanceCache) Set(key string, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.balances[key] = &Balance{
		Amount:      new(big.Int).Set(amount),
		LastUpdated: time.Now(),
	}
}

func (c *BalanceCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.balances, key)
}

// InvalidateAccount drops every entry involving the account, including token
// balances, after the account sends a transaction.
func (c *BalanceCache) InvalidateAccount(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.balances {
		if key == account || strings.HasSuffix(key, ":"+account) {
			delete(c.balances, key)
		}
	}
}

func (c *BalanceCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.balances)
}
