package gas

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	price *big.Int
	base  *big.Int
	polls atomic.Int64
}

func (s *fakeSource) SuggestGasPrice(context.Context) (*big.Int, error) {
	s.polls.Add(1)
	return new(big.Int).Set(s.price), nil
}

func (s *fakeSource) BaseFee(context.Context) (*big.Int, error) {
	if s.base == nil {
		return nil, context.Canceled
	}
	return new(big.Int).Set(s.base), nil
}

func TestComputeMultipliers(t *testing.T) {
	snapshot := Compute(big.NewInt(100), big.NewInt(90), time.Now())

	assert.Equal(t, int64(100), snapshot.Current.Int64())
	assert.Equal(t, int64(80), snapshot.Slow.Int64())
	assert.Equal(t, int64(100), snapshot.Standard.Int64())
	assert.Equal(t, int64(120), snapshot.Fast.Int64())
	assert.Equal(t, int64(90), snapshot.BaseFee.Int64())
}

func TestComputeRoundsDown(t *testing.T) {
	snapshot := Compute(big.NewInt(25_000_000_007), nil, time.Now())

	// 80% of 25000000007 truncates.
	assert.Equal(t, int64(20_000_000_005), snapshot.Slow.Int64())
	assert.Equal(t, int64(30_000_000_008), snapshot.Fast.Int64())
	assert.Nil(t, snapshot.BaseFee)
}

func TestMonitorPollsWhileStartedOnly(t *testing.T) {
	source := &fakeSource{price: big.NewInt(100)}
	m := NewMonitor(source, 10*time.Millisecond, nil)

	m.Start(context.Background())

	select {
	case snapshot := <-m.Updates():
		assert.Equal(t, int64(80), snapshot.Slow.Int64())
	case <-time.After(time.Second):
		t.Fatal("no snapshot produced")
	}

	m.Stop()
	after := source.polls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, source.polls.Load(), "stopped monitor must not poll")

	latest, ok := m.Latest()
	require.True(t, ok, "last snapshot stays readable after stop")
	assert.Equal(t, int64(100), latest.Current.Int64())
}

func TestStopReleasesBlockedConsumer(t *testing.T) {
	source := &fakeSource{price: big.NewInt(100)}
	m := NewMonitor(source, time.Hour, nil)

	m.Start(context.Background())

	// Drain the startup poll so the consumer below really blocks.
	select {
	case <-m.Updates():
	case <-time.After(time.Second):
		t.Fatal("no startup snapshot")
	}

	released := make(chan struct{})
	go func() {
		select {
		case <-m.Updates():
		case <-m.Done():
		}
		close(released)
	}()

	m.Stop()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("consumer still blocked after Stop")
	}
}

func TestDoneClosedWhileNotRunning(t *testing.T) {
	m := NewMonitor(&fakeSource{price: big.NewInt(1)}, time.Hour, nil)

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("a never-started monitor must read as done")
	}

	m.Start(context.Background())
	select {
	case <-m.Done():
		t.Fatal("a running monitor must not read as done")
	default:
	}
	m.Stop()
}

func TestMonitorStartTwiceIsNoop(t *testing.T) {
	source := &fakeSource{price: big.NewInt(100)}
	m := NewMonitor(source, time.Hour, nil)

	m.Start(context.Background())
	m.Start(context.Background())
	defer m.Stop()

	// Each loop polls once at startup; a second Start must not add a loop.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), source.polls.Load())
}
