// Package inflight tracks units of work currently running in this process so
// that overlapping triggers for the same key can be refused.
package inflight

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 1024

// Tracker records keys that are in progress.
type Tracker interface {
	// TryStart atomically marks key as running. It returns false when key is
	// already running or the tracker is full.
	TryStart(ctx context.Context, key string) bool

	// Done releases key. Releasing an unknown key is a no-op.
	Done(ctx context.Context, key string)

	// Running reports whether key is in progress.
	Running(key string) bool

	// Active returns the running keys in sorted order.
	Active() []string

	Size() int64
}

type inMemoryTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
}

// NewInMemoryTracker creates a tracker with configuration options.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(t)
	}
	t.running = make(map[string]struct{})
	return t
}

func (t *inMemoryTracker) TryStart(_ context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.running[key]; ok {
		return false
	}
	if t.maxSize > 0 && len(t.running) >= t.maxSize {
		return false
	}
	t.running[key] = struct{}{}
	t.size.Add(1)
	return true
}

func (t *inMemoryTracker) Done(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.running[key]; ok {
		delete(t.running, key)
		t.size.Add(-1)
	}
}

func (t *inMemoryTracker) Running(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.running[key]
	return ok
}

func (t *inMemoryTracker) Active() []string {
	t.mu.Lock()
	keys := make([]string, 0, len(t.running))
	for k := range t.running {
		keys = append(keys, k)
	}
	t.mu.Unlock()
	slices.Sort(keys)
	return keys
}

func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}
