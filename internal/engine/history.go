package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/service"
)

// History is one prediction call's view of a user's confirmed tags. The
// store is read at most once, on first use, and the snapshot is shared by
// the memory resolver and the statistical model.
type History struct {
	records     func() ([]model.UserTagMemory, error)
	mu          sync.Mutex
	unavailable error
}

// NewHistory returns a lazily loaded history for userID. Without a store or
// a user there is nothing to load.
func NewHistory(ctx context.Context, store service.TagMemoryStore, userID string, timeout time.Duration) *History {
	if store == nil || userID == "" {
		return StaticHistory(nil)
	}
	return &History{
		records: sync.OnceValues(func() ([]model.UserTagMemory, error) {
			return readWithTimeout(ctx, timeout, func(ctx context.Context) ([]model.UserTagMemory, error) {
				return store.GetUserPredictions(ctx, userID)
			})
		}),
	}
}

// StaticHistory wraps records that are already loaded.
func StaticHistory(records []model.UserTagMemory) *History {
	return &History{
		records: func() ([]model.UserTagMemory, error) { return records, nil },
	}
}

// Records returns the snapshot, loading it on first call. After
// MarkUnavailable it returns that error without touching the store.
func (h *History) Records() ([]model.UserTagMemory, error) {
	if h == nil || h.records == nil {
		return nil, nil
	}
	h.mu.Lock()
	err := h.unavailable
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return h.records()
}

// MarkUnavailable stops later Records calls from reading the store, so a
// hung store costs one timeout per prediction. The first error sticks.
func (h *History) MarkUnavailable(err error) {
	if h == nil || err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unavailable == nil {
		h.unavailable = err
	}
}

// readWithTimeout bounds a store read even when the store ignores ctx.
// A late result is dropped.
func readWithTimeout[T any](ctx context.Context, timeout time.Duration, read func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return read(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		err   error
		value T
	}
	done := make(chan result, 1)
	go func() {
		value, err := read(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
