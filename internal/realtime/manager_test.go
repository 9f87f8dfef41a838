package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
)

type fakeTimer struct {
	ch chan time.Time
}

func (t *fakeTimer) C() <-chan time.Time      { return t.ch }
func (t *fakeTimer) Stop() bool               { return true }
func (t *fakeTimer) Reset(time.Duration) bool { return true }
func (t *fakeTimer) fire()                    { t.ch <- time.Time{} }

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) NewTimer(time.Duration) Timer {
	t := &fakeTimer{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) timer(t *testing.T, idx int) *fakeTimer {
	t.Helper()
	var timer *fakeTimer
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.timers) {
			timer = c.timers[idx]
			return true
		}
		return false
	}, time.Second, time.Millisecond, "timer %d never created", idx)
	return timer
}

type fakeChannel struct {
	events chan domain.ChangeEvent
	errs   chan error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan domain.ChangeEvent), errs: make(chan error, 1)}
}

func (c *fakeChannel) Events() <-chan domain.ChangeEvent { return c.events }
func (c *fakeChannel) Errors() <-chan error              { return c.errs }
func (c *fakeChannel) Close() error                      { return nil }

type fakeSource struct {
	mu       sync.Mutex
	failures int
	opens    int
	opened   chan *fakeChannel
}

func newFakeSource(failures int) *fakeSource {
	return &fakeSource{failures: failures, opened: make(chan *fakeChannel, 8)}
}

func (s *fakeSource) Open(_ context.Context, _ Filter) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.failures > 0 {
		s.failures--
		return nil, context.DeadlineExceeded
	}
	ch := newFakeChannel()
	s.opened <- ch
	return ch, nil
}

func (s *fakeSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func waitChannel(t *testing.T, s *fakeSource) *fakeChannel {
	t.Helper()
	select {
	case ch := <-s.opened:
		return ch
	case <-time.After(time.Second):
		t.Fatal("source never opened a channel")
		return nil
	}
}

func testManager(s Source, c Clock) *Manager {
	return NewManager(s, c, logger.New("test"))
}

func TestDebounceCoalescesBurst(t *testing.T) {
	src := newFakeSource(0)
	clock := &fakeClock{}
	calls := make(chan int, 8)

	h := testManager(src, clock).Subscribe(Config{
		Table:    "orders",
		Debounce: 100 * time.Millisecond,
		Enabled:  true,
		OnChange: func(pending int) { calls <- pending },
	})
	defer h.Close()

	ch := waitChannel(t, src)
	for i := 0; i < 5; i++ {
		ch.events <- domain.ChangeEvent{Table: "orders", Kind: domain.ChangeInsert}
	}
	clock.timer(t, 0).fire()

	select {
	case n := <-calls:
		require.Equal(t, 5, n)
	case <-time.After(time.Second):
		t.Fatal("debounce never fired")
	}
	select {
	case n := <-calls:
		t.Fatalf("unexpected second callback with %d", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestZeroDebounceFiresPerEvent(t *testing.T) {
	src := newFakeSource(0)
	clock := &fakeClock{}
	calls := make(chan int, 8)

	h := testManager(src, clock).Subscribe(Config{
		Table:    "orders",
		Enabled:  true,
		OnChange: func(pending int) { calls <- pending },
	})
	defer h.Close()

	ch := waitChannel(t, src)
	for i := 0; i < 3; i++ {
		ch.events <- domain.ChangeEvent{Table: "orders"}
	}
	for i := 0; i < 3; i++ {
		select {
		case n := <-calls:
			require.Equal(t, 1, n)
		case <-time.After(time.Second):
			t.Fatalf("callback %d never fired", i)
		}
	}
}

func TestCloseSilencesPendingDebounce(t *testing.T) {
	src := newFakeSource(0)
	clock := &fakeClock{}
	calls := make(chan int, 8)

	h := testManager(src, clock).Subscribe(Config{
		Table:    "orders",
		Debounce: 100 * time.Millisecond,
		Enabled:  true,
		OnChange: func(pending int) { calls <- pending },
	})

	ch := waitChannel(t, src)
	ch.events <- domain.ChangeEvent{Table: "orders"}
	ch.events <- domain.ChangeEvent{Table: "orders"}
	h.Close()

	select {
	case n := <-calls:
		t.Fatalf("callback fired after close with %d", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransportErrorTriggersDelayedReconnect(t *testing.T) {
	src := newFakeSource(0)
	clock := &fakeClock{}

	h := testManager(src, clock).Subscribe(Config{Table: "orders", Enabled: true})
	defer h.Close()

	ch := waitChannel(t, src)
	require.Eventually(t, func() bool { return h.Status() == StatusConnected }, time.Second, time.Millisecond)

	ch.errs <- context.DeadlineExceeded
	require.Eventually(t, func() bool { return h.Status() == StatusError }, time.Second, time.Millisecond)
	require.Equal(t, 1, src.openCount())

	// The retry timer is the only timer this subscription creates.
	clock.timer(t, 0).fire()
	waitChannel(t, src)
	require.Eventually(t, func() bool { return h.Status() == StatusConnected }, time.Second, time.Millisecond)
	require.Equal(t, 2, src.openCount())
}

func TestVisibilityCutsRetryShort(t *testing.T) {
	src := newFakeSource(1)
	clock := &fakeClock{}

	h := testManager(src, clock).Subscribe(Config{Table: "orders", Enabled: true})
	defer h.Close()

	require.Eventually(t, func() bool { return h.Status() == StatusError }, time.Second, time.Millisecond)
	require.Equal(t, 1, src.openCount())

	// Becoming visible while waiting skips the remaining delay.
	h.SetVisible(true)
	waitChannel(t, src)
	require.Eventually(t, func() bool { return h.Status() == StatusConnected }, time.Second, time.Millisecond)
	require.Equal(t, 2, src.openCount())
}

func TestDisableReleasesChannelAndReenableResubscribes(t *testing.T) {
	src := newFakeSource(0)
	clock := &fakeClock{}

	h := testManager(src, clock).Subscribe(Config{Table: "orders", Enabled: true})
	defer h.Close()

	waitChannel(t, src)
	require.Eventually(t, func() bool { return h.Status() == StatusConnected }, time.Second, time.Millisecond)

	h.SetEnabled(false)
	require.Eventually(t, func() bool { return h.Status() == StatusDisconnected }, time.Second, time.Millisecond)

	h.SetEnabled(true)
	waitChannel(t, src)
	require.Eventually(t, func() bool { return h.Status() == StatusConnected }, time.Second, time.Millisecond)
	require.Equal(t, 2, src.openCount())
}
