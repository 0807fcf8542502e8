// Package txflow drives a single write operation from user intent to a
// terminal state: validate locally, request signature and submission from the
// chain client, then follow the transaction through confirmation, surfacing
// each transition as a notification keyed by the transaction hash.
package txflow

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"ethterm/internal/notify"
	"ethterm/internal/utils"
)

// Status is the lifecycle state of one transaction attempt.
type Status int

const (
	StatusIdle Status = iota
	StatusPendingSignature
	StatusSubmitted
	StatusConfirming
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPendingSignature:
		return "pending-signature"
	case StatusSubmitted:
		return "submitted"
	case StatusConfirming:
		return "confirming"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Backend is the slice of the chain client the lifecycle needs. Submit signs
// and broadcasts; a nil token means a native transfer. WaitForReceipt blocks
// until inclusion or the backend's own timeout; the flow imposes no timeout
// of its own.
type Backend interface {
	Submit(ctx context.Context, to common.Address, amount *big.Int, token *common.Address) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Request is a write intent as gathered by a form.
type Request struct {
	Recipient string
	Amount    string // display decimal, e.g. "1.5"
	Decimals  int
	Token     string // optional ERC-20 contract address; empty for native
}

// Callbacks are invoked at submission and at confirmation. They run on the
// attempt's goroutine and are skipped once the attempt is detached.
type Callbacks struct {
	OnSubmitted func(hash common.Hash)
	OnConfirmed func(receipt *types.Receipt)
}

// Update is one observed lifecycle transition.
type Update struct {
	Status   Status
	Hash     common.Hash
	Category Category
	Reason   string
}

// ValidationError is a local input failure caught before any network call.
type ValidationError struct {
	Category Category
	Field    string
	message  string
}

func (e *ValidationError) Error() string { return e.message }

// Flow starts transaction attempts. Attempts are independent: several may be
// confirming at once and their notifications never cross-talk because every
// toast is keyed by the transaction hash. Preventing duplicate submission
// from a single form is the caller's job (disable the submit control while an
// attempt is in flight).
type Flow struct {
	backend  Backend
	notifier notify.Notifier
	log      *zap.Logger
}

func New(backend Backend, notifier notify.Notifier, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{backend: backend, notifier: notifier, log: log}
}

// Start validates the request and, if it is well formed, launches the
// attempt. Validation failures are returned synchronously with no side
// effects; everything after submission is reported through notifications,
// callbacks, and the attempt's update channel.
func (f *Flow) Start(ctx context.Context, req Request, cb Callbacks) (*Attempt, error) {
	amount, err := validate(req)
	if err != nil {
		return nil, err
	}

	var token *common.Address
	if req.Token != "" {
		addr := common.HexToAddress(req.Token)
		token = &addr
	}

	a := newAttempt()
	to := common.HexToAddress(req.Recipient)
	go f.run(ctx, a, func(ctx context.Context) (common.Hash, error) {
		return f.backend.Submit(ctx, to, amount, token)
	}, cb)

	return a, nil
}

// StartCall launches an attempt for a prepared contract write (the counter
// increment/decrement), which carries no recipient or amount to validate.
func (f *Flow) StartCall(ctx context.Context, submit func(context.Context) (common.Hash, error), cb Callbacks) *Attempt {
	a := newAttempt()
	go f.run(ctx, a, submit, cb)
	return a
}

func validate(req Request) (*big.Int, error) {
	if !utils.IsHexAddress(req.Recipient) {
		return nil, &ValidationError{
			Category: CategoryInvalidAddress,
			Field:    "recipient",
			message:  fmt.Sprintf("invalid recipient address: %q", req.Recipient),
		}
	}

	if req.Token != "" && !utils.IsHexAddress(req.Token) {
		return nil, &ValidationError{
			Category: CategoryInvalidAddress,
			Field:    "token",
			message:  fmt.Sprintf("invalid token address: %q", req.Token),
		}
	}

	decimals := req.Decimals
	if decimals == 0 {
		decimals = 18
	}
	amount := utils.ParseUnits(req.Amount, decimals)
	if amount.Sign() <= 0 {
		return nil, &ValidationError{
			Category: CategoryInvalidAmount,
			Field:    "amount",
			message:  fmt.Sprintf("invalid amount: %q", req.Amount),
		}
	}

	return amount, nil
}

func (f *Flow) run(ctx context.Context, a *Attempt, submit func(context.Context) (common.Hash, error), cb Callbacks) {
	defer close(a.done)

	hash, err := submit(ctx)
	if err != nil {
		// The user declined or the node refused the submission. Classify,
		// report once, never retry.
		category, sentence := Classify(err)
		f.log.Warn("transaction submission failed",
			zap.String("category", string(category)),
			zap.Error(err))
		f.notifier.ShowError(sentence, "")
		a.transition(Update{Status: StatusFailed, Category: category, Reason: sentence})
		return
	}

	key := hash.Hex()
	a.setHash(hash)
	a.transition(Update{Status: StatusSubmitted, Hash: hash})
	f.notifier.ShowLoading(fmt.Sprintf("Transaction %s submitted...", utils.FormatTxHash(key)), key)
	f.log.Info("transaction submitted", zap.String("hash", key))

	if cb.OnSubmitted != nil && !a.detached.Load() {
		cb.OnSubmitted(hash)
	}

	a.transition(Update{Status: StatusConfirming, Hash: hash})

	receipt, err := f.backend.WaitForReceipt(ctx, hash)
	if err != nil {
		category, sentence := Classify(err)
		f.log.Warn("transaction failed",
			zap.String("hash", key),
			zap.String("category", string(category)),
			zap.Error(err))
		f.notifier.Dismiss(key)
		f.notifier.ShowError(sentence, key)
		a.transition(Update{Status: StatusFailed, Hash: hash, Category: category, Reason: sentence})
		return
	}

	f.notifier.Dismiss(key)
	f.notifier.ShowSuccess(fmt.Sprintf("Transaction %s confirmed", utils.FormatTxHash(key)), key)
	f.log.Info("transaction confirmed",
		zap.String("hash", key),
		zap.Uint64("block", receipt.BlockNumber.Uint64()))
	a.transition(Update{Status: StatusConfirmed, Hash: hash})

	if cb.OnConfirmed != nil && !a.detached.Load() {
		cb.OnConfirmed(receipt)
	}
}

// Attempt tracks one in-flight transaction.
type Attempt struct {
	mu       sync.Mutex
	status   Status
	hash     common.Hash
	updates  chan Update
	done     chan struct{}
	detached atomic.Bool
}

// newAttempt begins life in pending-signature rather than idle: callers gate
// their submit control on InFlight, so the attempt must read as live the
// moment Start returns, before the worker goroutine is scheduled.
func newAttempt() *Attempt {
	a := &Attempt{
		status:  StatusIdle,
		updates: make(chan Update, 16),
		done:    make(chan struct{}),
	}
	a.transition(Update{Status: StatusPendingSignature})
	return a
}

// Status returns the last observed lifecycle state.
func (a *Attempt) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Hash returns the transaction hash once the attempt reaches submitted.
func (a *Attempt) Hash() common.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hash
}

// InFlight reports whether the caller should keep its submit control
// disabled.
func (a *Attempt) InFlight() bool {
	switch a.Status() {
	case StatusPendingSignature, StatusSubmitted, StatusConfirming:
		return true
	default:
		return false
	}
}

// Updates streams lifecycle transitions. The channel is buffered and drops
// nothing while the consumer keeps up; it stops receiving after Detach.
func (a *Attempt) Updates() <-chan Update {
	return a.updates
}

// Done is closed when the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Detach stops update delivery and callback invocation, for callers whose
// view is going away. The underlying confirmation wait is not cancelled;
// once submitted, a transaction cannot be abandoned mid-flight.
func (a *Attempt) Detach() {
	a.detached.Store(true)
}

func (a *Attempt) setHash(hash common.Hash) {
	a.mu.Lock()
	a.hash = hash
	a.mu.Unlock()
}

func (a *Attempt) transition(u Update) {
	a.mu.Lock()
	a.status = u.Status
	a.mu.Unlock()

	if a.detached.Load() {
		return
	}

	select {
	case a.updates <- u:
	default:
		// A stalled consumer must not block the lifecycle.
	}
}
