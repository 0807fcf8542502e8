package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRecipient = "0x1234567890123456789012345678901234567890"
	testToken     = "0xAbCdEf1234567890123456789012345678901234"
)

var testHash = common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

type fakeBackend struct {
	mu          sync.Mutex
	submitErr   error
	waitErr     error
	waitCalled  bool
	submittedTo common.Address
	amount      *big.Int
	token       *common.Address
}

func (b *fakeBackend) Submit(_ context.Context, to common.Address, amount *big.Int, token *common.Address) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submittedTo = to
	b.amount = amount
	b.token = token
	if b.submitErr != nil {
		return common.Hash{}, b.submitErr
	}
	return testHash, nil
}

func (b *fakeBackend) WaitForReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waitCalled = true
	if b.waitErr != nil {
		return nil, b.waitErr
	}
	return &types.Receipt{
		TxHash:      hash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(42),
	}, nil
}

func (b *fakeBackend) waitWasCalled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waitCalled
}

// recordingNotifier captures notifier calls as "op key message" strings so
// tests can assert ordering and key reuse.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) record(op, key, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, fmt.Sprintf("%s|%s|%s", op, key, message))
}

func (n *recordingNotifier) ShowSuccess(message, key string) { n.record("success", key, message) }
func (n *recordingNotifier) ShowError(message, key string)   { n.record("error", key, message) }
func (n *recordingNotifier) ShowLoading(message, key string) { n.record("loading", key, message) }
func (n *recordingNotifier) Dismiss(key string)              { n.record("dismiss", key, "") }

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func awaitDone(t *testing.T, a *Attempt) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("attempt did not reach a terminal state")
	}
}

func TestStartRejectsInvalidInput(t *testing.T) {
	backend := &fakeBackend{}
	notifier := &recordingNotifier{}
	flow := New(backend, notifier, nil)

	tests := []struct {
		name     string
		req      Request
		category Category
	}{
		{"malformed recipient", Request{Recipient: "0x123", Amount: "1"}, CategoryInvalidAddress},
		{"malformed token", Request{Recipient: testRecipient, Amount: "1", Token: "0xnope"}, CategoryInvalidAddress},
		{"unparseable amount", Request{Recipient: testRecipient, Amount: "abc"}, CategoryInvalidAmount},
		{"zero amount", Request{Recipient: testRecipient, Amount: "0"}, CategoryInvalidAmount},
		{"negative amount", Request{Recipient: testRecipient, Amount: "-1"}, CategoryInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt, err := flow.Start(context.Background(), tt.req, Callbacks{})
			require.Error(t, err)
			assert.Nil(t, attempt)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.category, verr.Category)
		})
	}

	// Local validation must have no side effects.
	assert.Empty(t, notifier.snapshot())
	assert.False(t, backend.waitWasCalled())
}

func TestHappyPathLifecycle(t *testing.T) {
	backend := &fakeBackend{}
	notifier := &recordingNotifier{}
	flow := New(backend, notifier, nil)

	var submitted common.Hash
	var confirmed *types.Receipt
	attempt, err := flow.Start(context.Background(), Request{
		Recipient: testRecipient,
		Amount:    "1.5",
	}, Callbacks{
		OnSubmitted: func(hash common.Hash) { submitted = hash },
		OnConfirmed: func(receipt *types.Receipt) { confirmed = receipt },
	})
	require.NoError(t, err)
	awaitDone(t, attempt)

	assert.Equal(t, StatusConfirmed, attempt.Status())
	assert.Equal(t, testHash, attempt.Hash())
	assert.Equal(t, testHash, submitted)
	require.NotNil(t, confirmed)
	assert.Equal(t, uint64(42), confirmed.BlockNumber.Uint64())

	// 1.5 ETH in wei.
	expected, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, 0, backend.amount.Cmp(expected))
	assert.Nil(t, backend.token)

	// Exactly one submitted and one confirmed notification, keyed
	// identically by the transaction hash, with the loading toast dismissed
	// before the terminal one appears.
	calls := notifier.snapshot()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0], "loading|"+testHash.Hex())
	assert.Contains(t, calls[1], "dismiss|"+testHash.Hex())
	assert.Contains(t, calls[2], "success|"+testHash.Hex())

	var statuses []Status
	for {
		select {
		case u := <-attempt.Updates():
			statuses = append(statuses, u.Status)
			if u.Status == StatusConfirmed {
				assert.Equal(t, []Status{
					StatusPendingSignature,
					StatusSubmitted,
					StatusConfirming,
					StatusConfirmed,
				}, statuses)
				return
			}
		case <-time.After(time.Second):
			t.Fatal("missing lifecycle updates")
		}
	}
}

func TestTokenTransferPassesTokenAddress(t *testing.T) {
	backend := &fakeBackend{}
	flow := New(backend, &recordingNotifier{}, nil)

	attempt, err := flow.Start(context.Background(), Request{
		Recipient: testRecipient,
		Amount:    "10.25",
		Decimals:  6,
		Token:     testToken,
	}, Callbacks{})
	require.NoError(t, err)
	awaitDone(t, attempt)

	require.NotNil(t, backend.token)
	assert.Equal(t, common.HexToAddress(testToken), *backend.token)
	assert.Equal(t, 0, backend.amount.Cmp(big.NewInt(10_250_000)))
}

func TestUserRejectionFailsWithoutConfirmation(t *testing.T) {
	backend := &fakeBackend{submitErr: errors.New("User rejected the request")}
	notifier := &recordingNotifier{}
	flow := New(backend, notifier, nil)

	attempt, err := flow.Start(context.Background(), Request{
		Recipient: testRecipient,
		Amount:    "1",
	}, Callbacks{})
	require.NoError(t, err)
	awaitDone(t, attempt)

	assert.Equal(t, StatusFailed, attempt.Status())
	assert.False(t, backend.waitWasCalled(), "confirmation must not be attempted after rejection")

	calls := notifier.snapshot()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "error|")
	assert.Contains(t, calls[0], "Transaction was rejected in the wallet.")
}

func TestRevertSurfacesExtractedReason(t *testing.T) {
	backend := &fakeBackend{waitErr: errors.New(`execution reverted: reason="Counter: underflow"`)}
	notifier := &recordingNotifier{}
	flow := New(backend, notifier, nil)

	attempt, err := flow.Start(context.Background(), Request{
		Recipient: testRecipient,
		Amount:    "1",
	}, Callbacks{})
	require.NoError(t, err)
	awaitDone(t, attempt)

	assert.Equal(t, StatusFailed, attempt.Status())

	calls := notifier.snapshot()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0], "loading|"+testHash.Hex())
	assert.Contains(t, calls[1], "dismiss|"+testHash.Hex())
	assert.Contains(t, calls[2], "error|"+testHash.Hex())
	assert.Contains(t, calls[2], "Counter: underflow")
}

func TestDetachStopsCallbacksAndUpdates(t *testing.T) {
	release := make(chan struct{})
	backend := &blockingBackend{release: release}
	flow := New(backend, &recordingNotifier{}, nil)

	confirmedCalled := false
	attempt, err := flow.Start(context.Background(), Request{
		Recipient: testRecipient,
		Amount:    "1",
	}, Callbacks{
		OnConfirmed: func(*types.Receipt) { confirmedCalled = true },
	})
	require.NoError(t, err)

	attempt.Detach()
	close(release)
	awaitDone(t, attempt)

	assert.False(t, confirmedCalled, "detached attempts must not invoke callbacks")

	// Updates emitted before Detach may still be buffered; none emitted
	// after it may arrive.
	for {
		select {
		case u := <-attempt.Updates():
			assert.NotEqual(t, StatusConfirmed, u.Status, "update delivered after detach")
		default:
			return
		}
	}
}

// blockingBackend holds the confirmation wait until released, so tests can
// detach mid-flight.
type blockingBackend struct {
	release <-chan struct{}
}

func (b *blockingBackend) Submit(context.Context, common.Address, *big.Int, *common.Address) (common.Hash, error) {
	return testHash, nil
}

func (b *blockingBackend) WaitForReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	<-b.release
	return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
}

// submitGate holds Submit until released, exposing the window between Start
// returning and the worker goroutine running.
type submitGate struct {
	release <-chan struct{}
}

func (b *submitGate) Submit(context.Context, common.Address, *big.Int, *common.Address) (common.Hash, error) {
	<-b.release
	return testHash, nil
}

func (b *submitGate) WaitForReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
}

func TestAttemptInFlightImmediatelyAfterStart(t *testing.T) {
	release := make(chan struct{})
	flow := New(&submitGate{release: release}, &recordingNotifier{}, nil)

	attempt, err := flow.Start(context.Background(), Request{
		Recipient: testRecipient,
		Amount:    "1",
	}, Callbacks{})
	require.NoError(t, err)

	// Callers gate their submit control on InFlight; a just-started attempt
	// must never read as idle, or a second press double-submits.
	assert.True(t, attempt.InFlight())
	assert.Equal(t, StatusPendingSignature, attempt.Status())

	close(release)
	awaitDone(t, attempt)
	assert.Equal(t, StatusConfirmed, attempt.Status())
}

func TestStartCallInFlightImmediately(t *testing.T) {
	release := make(chan struct{})
	flow := New(&fakeBackend{}, &recordingNotifier{}, nil)

	attempt := flow.StartCall(context.Background(),
		func(context.Context) (common.Hash, error) {
			<-release
			return testHash, nil
		}, Callbacks{})

	assert.True(t, attempt.InFlight())

	close(release)
	awaitDone(t, attempt)
	assert.Equal(t, StatusConfirmed, attempt.Status())
}

func TestStartCallDrivesPreparedWrite(t *testing.T) {
	backend := &fakeBackend{}
	notifier := &recordingNotifier{}
	flow := New(backend, notifier, nil)

	var confirmed *types.Receipt
	attempt := flow.StartCall(context.Background(),
		func(context.Context) (common.Hash, error) {
			return testHash, nil
		},
		Callbacks{OnConfirmed: func(r *types.Receipt) { confirmed = r }},
	)

	awaitDone(t, attempt)

	assert.Equal(t, StatusConfirmed, attempt.Status())
	assert.Equal(t, testHash, attempt.Hash())
	require.NotNil(t, confirmed)
	assert.True(t, backend.waitWasCalled())
}

func TestStartCallSubmitFailureClassified(t *testing.T) {
	backend := &fakeBackend{}
	notifier := &recordingNotifier{}
	flow := New(backend, notifier, nil)

	attempt := flow.StartCall(context.Background(),
		func(context.Context) (common.Hash, error) {
			return common.Hash{}, errors.New(`execution reverted: reason="Counter: underflow"`)
		},
		Callbacks{},
	)

	awaitDone(t, attempt)

	assert.Equal(t, StatusFailed, attempt.Status())
	require.Len(t, notifier.snapshot(), 1)
	assert.Equal(t, "error||Transaction reverted: Counter: underflow", notifier.snapshot()[0])
	assert.False(t, backend.waitWasCalled())
}
