// Package gas polls the suggested gas price on a fixed interval and derives
// the slow/standard/fast estimates displayed on the dashboard.
package gas

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshot is one observation of network gas conditions. Slow, Standard, and
// Fast are fixed percentage multiples of the suggested price: 80%, 100%, and
// 120%.
type Snapshot struct {
	Current  *big.Int
	Slow     *big.Int
	Standard *big.Int
	Fast     *big.Int
	BaseFee  *big.Int // nil on pre-London chains
	At       time.Time
}

// Source is the slice of the chain client the monitor reads from.
type Source interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BaseFee(ctx context.Context) (*big.Int, error)
}

// Monitor owns the polling loop. It is started while a gas display is
// visible and stopped when it is not; a stopped monitor performs no network
// traffic at all.
type Monitor struct {
	source   Source
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	latest  *Snapshot
	cancel  context.CancelFunc
	stopped chan struct{}
	updates chan Snapshot
}

func NewMonitor(source Source, interval time.Duration, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	stopped := make(chan struct{})
	close(stopped)
	return &Monitor{
		source:   source,
		interval: interval,
		log:      log,
		stopped:  stopped,
		updates:  make(chan Snapshot, 4),
	}
}

// Start begins polling. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.stopped = make(chan struct{})
	go m.loop(ctx)
}

// Stop suspends polling and releases anyone blocked on Updates. The last
// snapshot stays readable.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
		close(m.stopped)
	}
}

// Latest returns the most recent snapshot, if any poll has succeeded yet.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.latest == nil {
		return Snapshot{}, false
	}
	return *m.latest, true
}

// Updates streams fresh snapshots to at most one consumer. Receivers should
// also select on Done, or they block forever once the monitor stops.
func (m *Monitor) Updates() <-chan Snapshot {
	return m.updates
}

// Done returns a channel that is closed whenever the monitor is not running.
// Start replaces it for the new run.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Monitor) loop(ctx context.Context) {
	m.poll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	price, err := m.source.SuggestGasPrice(ctx)
	if err != nil {
		m.log.Warn("gas price poll failed", zap.Error(err))
		return
	}

	baseFee, err := m.source.BaseFee(ctx)
	if err != nil {
		// Base fee is decorative; keep the snapshot without it.
		m.log.Debug("base fee unavailable", zap.Error(err))
		baseFee = nil
	}

	snapshot := Compute(price, baseFee, time.Now())

	m.mu.Lock()
	m.latest = &snapshot
	m.mu.Unlock()

	select {
	case m.updates <- snapshot:
	default:
	}
}

// Compute derives the display estimates from a suggested price.
func Compute(current, baseFee *big.Int, at time.Time) Snapshot {
	scale := func(pct int64) *big.Int {
		scaled := new(big.Int).Mul(current, big.NewInt(pct))
		return scaled.Div(scaled, big.NewInt(100))
	}

	return Snapshot{
		Current:  new(big.Int).Set(current),
		Slow:     scale(80),
		Standard: scale(100),
		Fast:     scale(120),
		BaseFee:  baseFee,
		At:       at,
	}
}
