// Package session tracks the wallet connection as an explicit
// publish-subscribe store: views read the current snapshot and subscribe to
// transitions instead of holding connector state themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Status is the connection state of the wallet session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Session is an immutable snapshot of the wallet connection. Address is
// non-nil exactly when Status is connected or reconnecting.
type Session struct {
	Address       *common.Address
	ChainID       uint64
	Status        Status
	ConnectorName string
}

// Connector is the local stand-in for a browser wallet: it owns an account
// and tears itself down on Close. Connectors that can switch networks
// programmatically also implement ChainSwitcher.
type Connector interface {
	ID() string
	Name() string
	Address() (common.Address, bool)
	Close() error
}

// ChainSwitcher is the optional switching capability. Connectors without it
// require the user to reconnect on the desired network manually.
type ChainSwitcher interface {
	SwitchChain(ctx context.Context, chainID uint64) error
}

// ErrUnsupportedOperation reports that the active connector cannot perform
// the requested operation, so the UI can direct the user to do it manually
// instead of showing a generic failure.
var ErrUnsupportedOperation = errors.New("unsupported operation for this connector")

var errNotConnected = errors.New("no active wallet session")

// Manager is the wallet-session accessor. All reads come from its snapshot;
// Connect, Disconnect, and SwitchNetwork are the only mutations.
type Manager struct {
	mu        sync.RWMutex
	session   Session
	connector Connector

	store    *Store
	networks map[uint64]string // chain id -> network name
	log      *zap.Logger

	subMu   sync.Mutex
	subs    map[int]chan Session
	nextSub int
}

func NewManager(store *Store, networks map[uint64]string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		session:  Session{Status: StatusDisconnected},
		store:    store,
		networks: networks,
		log:      log,
		subs:     make(map[int]chan Session),
	}
}

// Session returns the current snapshot.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Connector returns the active connector, or nil when disconnected.
func (m *Manager) Connector() Connector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connector
}

// Subscribe returns a channel receiving a session snapshot on every
// transition, plus a cancel function that releases the subscription.
func (m *Manager) Subscribe() (<-chan Session, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Session, 8)
	m.subs[id] = ch

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Connect establishes a session over the given connector on the given chain
// and persists the LastConnected snapshot once all of address, chain, and
// connector id are known.
func (m *Manager) Connect(_ context.Context, connector Connector, chainID uint64) error {
	if _, ok := m.networks[chainID]; !ok {
		return fmt.Errorf("unknown chain id %d", chainID)
	}

	m.publish(Session{Status: StatusConnecting, ChainID: chainID, ConnectorName: connector.Name()})

	address, ok := connector.Address()
	if !ok {
		m.publish(Session{Status: StatusDisconnected})
		return fmt.Errorf("connector %q has no account", connector.Name())
	}

	m.mu.Lock()
	m.connector = connector
	m.mu.Unlock()

	m.publish(Session{
		Address:       &address,
		ChainID:       chainID,
		Status:        StatusConnected,
		ConnectorName: connector.Name(),
	})

	if err := m.store.Save(&LastConnected{
		Address:     address.Hex(),
		ChainID:     chainID,
		ConnectorID: connector.ID(),
	}); err != nil {
		// A stale reconnect hint is worth a log line, not a failed connect.
		m.log.Warn("failed to persist last-connected snapshot", zap.Error(err))
	}

	m.log.Info("wallet connected",
		zap.String("address", address.Hex()),
		zap.Uint64("chain_id", chainID),
		zap.String("connector", connector.ID()))

	return nil
}

// Disconnect tears down the session and then clears the persisted snapshot.
// Teardown failure leaves both the session and the snapshot intact so the
// call can be retried.
func (m *Manager) Disconnect(_ context.Context) error {
	m.mu.Lock()
	connector := m.connector
	m.mu.Unlock()

	if connector == nil {
		return nil
	}

	if err := connector.Close(); err != nil {
		return fmt.Errorf("failed to tear down session: %w", err)
	}

	m.mu.Lock()
	m.connector = nil
	m.mu.Unlock()

	m.publish(Session{Status: StatusDisconnected})
	m.log.Info("wallet disconnected", zap.String("connector", connector.ID()))

	// Clear only after confirmed teardown.
	return m.store.Clear()
}

// SwitchNetwork moves the session to another chain. Connectors without the
// switching capability get ErrUnsupportedOperation so the UI can tell the
// user to reconnect manually.
func (m *Manager) SwitchNetwork(ctx context.Context, chainID uint64) error {
	if _, ok := m.networks[chainID]; !ok {
		return fmt.Errorf("unknown chain id %d", chainID)
	}

	m.mu.RLock()
	connector := m.connector
	current := m.session
	m.mu.RUnlock()

	if connector == nil || current.Status != StatusConnected {
		return errNotConnected
	}
	if chainID == current.ChainID {
		return nil
	}

	switcher, ok := connector.(ChainSwitcher)
	if !ok {
		return fmt.Errorf("%w: %s cannot switch networks", ErrUnsupportedOperation, connector.Name())
	}

	if err := switcher.SwitchChain(ctx, chainID); err != nil {
		return fmt.Errorf("failed to switch network: %w", err)
	}

	next := current
	next.ChainID = chainID
	m.publish(next)

	if next.Address != nil {
		if err := m.store.Save(&LastConnected{
			Address:     next.Address.Hex(),
			ChainID:     chainID,
			ConnectorID: connector.ID(),
		}); err != nil {
			m.log.Warn("failed to persist last-connected snapshot", zap.Error(err))
		}
	}

	m.log.Info("network switched", zap.Uint64("chain_id", chainID))
	return nil
}

// LastConnected returns the persisted reconnect hint, if any.
func (m *Manager) LastConnected() *LastConnected {
	snapshot, err := m.store.Load()
	if err != nil {
		m.log.Warn("failed to load last-connected snapshot", zap.Error(err))
		return nil
	}
	return snapshot
}

// NetworkName resolves a chain id to its configured display name.
func (m *Manager) NetworkName(chainID uint64) string {
	if name, ok := m.networks[chainID]; ok {
		return name
	}
	return fmt.Sprintf("chain %d", chainID)
}

func (m *Manager) publish(next Session) {
	m.mu.Lock()
	m.session = next
	m.mu.Unlock()

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- next:
		default:
			// A subscriber that stopped draining loses intermediate
			// snapshots, never the manager.
		}
	}
}
