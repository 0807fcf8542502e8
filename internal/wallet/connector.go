// Package wallet provides the local connectors that stand in for a browser
// wallet: a keystore connector holding a decrypted key in memory, and a
// watch-only connector that can read but never sign.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrWatchOnly is returned when a signing operation reaches a connector that
// has no key material.
var ErrWatchOnly = errors.New("watch-only connector cannot sign transactions")

// Signer is the signing capability the chain client requires for writes.
type Signer interface {
	Address() (common.Address, bool)
	SignTx(ctx context.Context, chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// KeystoreConnector holds an unlocked private key for the lifetime of a
// session. Close wipes the key; a closed connector signs nothing.
type KeystoreConnector struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	address common.Address
	label   string
	closed  bool
}

func NewKeystoreConnector(key *ecdsa.PrivateKey, label string) *KeystoreConnector {
	return &KeystoreConnector{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		label:   label,
	}
}

func (c *KeystoreConnector) ID() string { return "keystore" }

func (c *KeystoreConnector) Name() string {
	if c.label != "" {
		return fmt.Sprintf("Keystore (%s)", c.label)
	}
	return "Keystore"
}

func (c *KeystoreConnector) Address() (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return common.Address{}, false
	}
	return c.address, true
}

func (c *KeystoreConnector) SignTx(_ context.Context, chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("connector is closed")
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signed, nil
}

// SwitchChain is trivially supported: a local key signs on any configured
// chain, the chain choice lives in the RPC client.
func (c *KeystoreConnector) SwitchChain(context.Context, uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connector is closed")
	}
	return nil
}

// Close wipes the key material. Closing twice is fine.
func (c *KeystoreConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil {
		zeroKey(c.key)
		c.key = nil
	}
	c.closed = true
	return nil
}

func zeroKey(key *ecdsa.PrivateKey) {
	b := key.D.Bits()
	for i := range b {
		b[i] = 0
	}
}

// WatchOnlyConnector tracks an address without key material. It cannot sign
// and deliberately does not implement the chain-switching capability, so the
// session layer reports UnsupportedOperation instead of pretending.
type WatchOnlyConnector struct {
	address common.Address
}

func NewWatchOnlyConnector(address common.Address) *WatchOnlyConnector {
	return &WatchOnlyConnector{address: address}
}

func (c *WatchOnlyConnector) ID() string   { return "watch-only" }
func (c *WatchOnlyConnector) Name() string { return "Watch-only" }

func (c *WatchOnlyConnector) Address() (common.Address, bool) {
	return c.address, true
}

func (c *WatchOnlyConnector) SignTx(context.Context, *big.Int, *types.Transaction) (*types.Transaction, error) {
	return nil, ErrWatchOnly
}

func (c *WatchOnlyConnector) Close() error { return nil }
