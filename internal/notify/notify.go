// Package notify provides the toast-style notification surface shared by the
// views and the transaction lifecycle. Toasts are keyed: showing a toast with
// an existing key replaces it in place, and Dismiss removes it. The
// transaction lifecycle relies on this to swap a "submitted" toast for the
// terminal success or failure toast under the transaction hash.
package notify

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindError
	KindLoading
)

// Toast is a single visible notification.
type Toast struct {
	Key     string
	Message string
	Kind    Kind
	ShownAt time.Time
	// Sticky toasts stay until dismissed; others expire after their TTL.
	Sticky bool
	TTL    time.Duration
}

// Notifier is the capability handed to orchestrators that need to surface
// notifications without knowing about the UI. An empty key allocates a fresh
// toast; a non-empty key replaces whatever is shown under it.
type Notifier interface {
	ShowSuccess(message, key string)
	ShowError(message, key string)
	ShowLoading(message, key string)
	Dismiss(key string)
}

const defaultTTL = 5 * time.Second

// Center is the in-memory toast store rendered by the TUI. Last write per
// key wins, which is the behavior the lifecycle depends on: only one terminal
// state can occur per transaction hash.
type Center struct {
	mu     sync.Mutex
	order  []string
	toasts map[string]Toast
	seq    atomic.Uint64
	now    func() time.Time
}

func NewCenter() *Center {
	return &Center{
		toasts: make(map[string]Toast),
		now:    time.Now,
	}
}

func (c *Center) ShowSuccess(message, key string) {
	if key == "" {
		key = c.nextKey()
	}
	c.put(Toast{Key: key, Message: message, Kind: KindSuccess, TTL: defaultTTL})
}

func (c *Center) ShowError(message, key string) {
	if key == "" {
		key = c.nextKey()
	}
	c.put(Toast{Key: key, Message: message, Kind: KindError, TTL: defaultTTL})
}

// ShowLoading shows a sticky toast under the given key, replacing any toast
// already shown under it.
func (c *Center) ShowLoading(message, key string) {
	c.put(Toast{Key: key, Message: message, Kind: KindLoading, Sticky: true})
}

func (c *Center) ShowInfo(message string) {
	c.put(Toast{Key: c.nextKey(), Message: message, Kind: KindInfo, TTL: defaultTTL})
}

func (c *Center) Dismiss(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.toasts[key]; !ok {
		return
	}
	delete(c.toasts, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Active returns the visible toasts in display order, expiring stale ones.
func (c *Center) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	active := make([]Toast, 0, len(c.order))
	kept := c.order[:0]
	for _, key := range c.order {
		toast := c.toasts[key]
		if !toast.Sticky && now.Sub(toast.ShownAt) > toast.TTL {
			delete(c.toasts, key)
			continue
		}
		kept = append(kept, key)
		active = append(active, toast)
	}
	c.order = kept

	return active
}

func (c *Center) put(toast Toast) {
	c.mu.Lock()
	defer c.mu.Unlock()

	toast.ShownAt = c.now()
	if _, exists := c.toasts[toast.Key]; !exists {
		c.order = append(c.order, toast.Key)
	}
	c.toasts[toast.Key] = toast
}

func (c *Center) nextKey() string {
	return fmt.Sprintf("toast-%d", c.seq.Add(1))
}
