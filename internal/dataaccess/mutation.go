package dataaccess

import (
	"context"
	"sync"
)

// MutationConfig configures a typed write with lifecycle hooks and cache
// invalidation.
type MutationConfig[V, T any] struct {
	Mutate func(ctx context.Context, vars V) (T, error)

	// OnMutate applies the optimistic update synchronously before the request
	// resolves and returns a context value. On failure, OnRollback receives
	// that exact value back, unchanged across the async boundary.
	OnMutate   func(vars V) any
	OnRollback func(mutateCtx any)

	OnSuccess func(data T)
	OnError   func(err error)
	OnSettled func()

	// InvalidateKeys are cache-key prefixes dropped after a successful call.
	InvalidateKeys [][]string
}

// Mutation is a stateful write handle mirroring Query's lifecycle shape.
type Mutation[V, T any] struct {
	cfg   MutationConfig[V, T]
	cache *Cache

	mu      sync.Mutex
	data    T
	err     error
	loading bool
}

func NewMutation[V, T any](cache *Cache, cfg MutationConfig[V, T]) *Mutation[V, T] {
	return &Mutation[V, T]{cfg: cfg, cache: cache}
}

// Do runs the mutation. IsLoading is true exactly for the duration of the
// in-flight call.
func (m *Mutation[V, T]) Do(ctx context.Context, vars V) (T, error) {
	var mutateCtx any
	if m.cfg.OnMutate != nil {
		mutateCtx = m.cfg.OnMutate(vars)
	}

	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	data, err := m.cfg.Mutate(ctx, vars)

	m.mu.Lock()
	m.loading = false
	m.data = data
	m.err = err
	m.mu.Unlock()

	if err != nil {
		if m.cfg.OnRollback != nil {
			m.cfg.OnRollback(mutateCtx)
		}
		if m.cfg.OnError != nil {
			m.cfg.OnError(err)
		}
	} else {
		if m.cache != nil {
			for _, prefix := range m.cfg.InvalidateKeys {
				m.cache.InvalidatePrefix(prefix)
			}
		}
		if m.cfg.OnSuccess != nil {
			m.cfg.OnSuccess(data)
		}
	}
	if m.cfg.OnSettled != nil {
		m.cfg.OnSettled()
	}
	return data, err
}

func (m *Mutation[V, T]) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Reset clears data/error/loading back to initial state. It does not cancel
// an in-flight request; callers must not rely on it for cancellation.
func (m *Mutation[V, T]) Reset() {
	var zero T
	m.mu.Lock()
	m.data = zero
	m.err = nil
	m.loading = false
	m.mu.Unlock()
}

func (m *Mutation[V, T]) Snapshot() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, m.err
}
