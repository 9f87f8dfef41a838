package dataaccess

import (
	"context"
	"errors"
	"sync"
	"time"

	"restaurant-pos/internal/realtime"
)

var ErrKeyIncomplete = errors.New("query key incomplete")

// Result is the uniform request outcome shape.
type Result[T any] struct {
	Data    T
	Err     error
	Success bool
}

// QueryConfig configures one typed fetch-and-cache query.
type QueryConfig[T any] struct {
	// Key gates the query: any empty part means required context (say, a
	// restaurant id) is not loaded yet, and the fetch is skipped.
	Key     []string
	Fetch   func(ctx context.Context) (T, error)
	Enabled bool
	// StaleTime skips a refetch when cached data is younger than this.
	StaleTime time.Duration
	// RefetchInterval enables polling when > 0.
	RefetchInterval time.Duration
	RefetchOnFocus  bool
}

// Query is a stateful fetch handle. One Query has at most one in-flight
// request at a time; results arriving after Stop are discarded.
type Query[T any] struct {
	cfg   QueryConfig[T]
	cache *Cache
	clock realtime.Clock

	mu       sync.Mutex
	data     T
	err      error
	loading  bool
	inflight bool
	stopped  bool
}

func NewQuery[T any](cache *Cache, clock realtime.Clock, cfg QueryConfig[T]) *Query[T] {
	if clock == nil {
		clock = realtime.SystemClock()
	}
	return &Query[T]{cfg: cfg, cache: cache, clock: clock}
}

// Key returns the joined cache key, or false while any part is empty.
func (q *Query[T]) Key() (string, bool) {
	for _, p := range q.cfg.Key {
		if p == "" {
			return "", false
		}
	}
	return JoinKey(q.cfg.Key), true
}

// Run performs one fetch respecting the stale-time rule. Start and every
// refetch trigger go through it.
func (q *Query[T]) Run(ctx context.Context) Result[T] {
	var zero T
	if !q.cfg.Enabled {
		return Result[T]{Data: zero}
	}
	key, ok := q.Key()
	if !ok {
		return Result[T]{Err: ErrKeyIncomplete}
	}

	if q.cfg.StaleTime > 0 {
		if cached, fetchedAt, hit := q.cache.Get(key); hit {
			if q.clock.Now().Sub(fetchedAt) < q.cfg.StaleTime {
				data := cached.(T)
				q.setResult(data, nil)
				return Result[T]{Data: data, Success: true}
			}
		}
	}

	q.mu.Lock()
	if q.inflight {
		// One in-flight request per handle; report current state.
		data, err := q.data, q.err
		q.mu.Unlock()
		return Result[T]{Data: data, Err: err, Success: err == nil}
	}
	q.inflight = true
	q.loading = true
	q.mu.Unlock()

	data, err := q.cfg.Fetch(ctx)

	q.mu.Lock()
	q.inflight = false
	q.loading = false
	stopped := q.stopped
	q.mu.Unlock()

	// A result landing after Stop is discarded, never written.
	if stopped || ctx.Err() != nil {
		return Result[T]{Data: zero, Err: context.Canceled}
	}

	if err != nil {
		q.setResult(zero, err)
		return Result[T]{Err: err}
	}
	q.cache.Set(key, data, q.clock.Now())
	q.setResult(data, nil)
	return Result[T]{Data: data, Success: true}
}

// Start runs the initial fetch and, when configured, the polling loop.
// Cancelling ctx stops the handle.
func (q *Query[T]) Start(ctx context.Context) {
	q.Run(ctx)
	if q.cfg.RefetchInterval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(q.cfg.RefetchInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				q.Run(ctx)
			case <-ctx.Done():
				q.Stop()
				return
			}
		}
	}()
}

// OnFocus refetches when the host window regains focus.
func (q *Query[T]) OnFocus(ctx context.Context) {
	if q.cfg.RefetchOnFocus {
		q.Run(ctx)
	}
}

// Stop retires the handle. In-flight work is not aborted at the
// transport level; its result is discarded.
func (q *Query[T]) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
}

func (q *Query[T]) IsLoading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loading
}

// Snapshot returns the last settled state.
func (q *Query[T]) Snapshot() Result[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Result[T]{Data: q.data, Err: q.err, Success: q.err == nil}
}

func (q *Query[T]) setResult(data T, err error) {
	q.mu.Lock()
	if !q.stopped {
		q.data = data
		q.err = err
	}
	q.mu.Unlock()
}
