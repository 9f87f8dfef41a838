package realtime

import (
	"context"
	"sync"
	"time"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// ReconnectDelay is a fixed grace period, not a growing backoff. For a
// low-traffic single-tenant dashboard the flat retry is the documented
// behavior.
const ReconnectDelay = 5 * time.Second

// Config describes one subscription.
type Config struct {
	Table    string
	Schema   string
	Kind     domain.ChangeKind
	Filter   string // "column=eq.value"
	Debounce time.Duration
	Enabled  bool
	// OnChange receives the number of coalesced events. It is always called
	// from the handle's own goroutine; reentrant calls from one burst are
	// impossible by construction.
	OnChange func(pending int)
}

// Manager creates subscription handles over a change-event source.
type Manager struct {
	source Source
	clock  Clock
	log    *logger.Logger
}

func NewManager(source Source, clock Clock, log *logger.Logger) *Manager {
	if clock == nil {
		clock = SystemClock()
	}
	return &Manager{source: source, clock: clock, log: log}
}

type cmdKind int

const (
	cmdReconnect cmdKind = iota
	cmdVisible
	cmdEnable
	cmdDisable
)

type command struct {
	kind    cmdKind
	visible bool
}

// Handle is one live subscription.
type Handle struct {
	cfg Config
	mgr *Manager

	mu      sync.Mutex
	status  Status
	lastErr error

	cmds      chan command
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe opens a subscription and starts its event loop.
func (m *Manager) Subscribe(cfg Config) *Handle {
	h := &Handle{
		cfg:    cfg,
		mgr:    m,
		status: StatusDisconnected,
		cmds:   make(chan command, 4),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Reconnect forces a teardown of the current channel and an immediate
// re-subscribe attempt.
func (h *Handle) Reconnect() { h.send(command{kind: cmdReconnect}) }

// SetVisible reports host visibility. A transition to visible while the
// subscription is enabled but not connected triggers re-subscription, so
// foregrounded dashboards never silently stay stale.
func (h *Handle) SetVisible(visible bool) { h.send(command{kind: cmdVisible, visible: visible}) }

// SetEnabled disables or re-enables the subscription without discarding the
// handle. Disabling releases the channel and cancels pending timers.
func (h *Handle) SetEnabled(enabled bool) {
	if enabled {
		h.send(command{kind: cmdEnable})
	} else {
		h.send(command{kind: cmdDisable})
	}
}

// Close tears the subscription down. No callbacks fire after Close returns
// the loop to idle; pending debounce and reconnect timers are cancelled.
func (h *Handle) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Handle) send(c command) {
	select {
	case h.cmds <- c:
	case <-h.done:
	}
}

func (h *Handle) setStatus(s Status, err error) {
	h.mu.Lock()
	h.status = s
	if err != nil {
		h.lastErr = err
	}
	h.mu.Unlock()
}

type leaveReason int

const (
	leaveClosed leaveReason = iota
	leaveTransportError
	leaveReconnectNow
	leaveDisabled
)

func (h *Handle) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabled := h.cfg.Enabled
	for {
		if !enabled {
			h.setStatus(StatusDisconnected, nil)
			select {
			case c := <-h.cmds:
				if c.kind == cmdEnable || c.kind == cmdReconnect {
					enabled = true
				}
			case <-h.done:
				return
			}
			continue
		}

		h.setStatus(StatusConnecting, nil)
		ch, err := h.mgr.source.Open(ctx, Filter{
			Schema:     h.cfg.Schema,
			Table:      h.cfg.Table,
			Kind:       h.cfg.Kind,
			Expression: h.cfg.Filter,
		})
		if err != nil {
			h.setStatus(StatusError, err)
			h.mgr.log.Error("subscribe_failed", err, map[string]any{"table": h.cfg.Table})
			switch h.waitRetry(&enabled) {
			case leaveClosed:
				return
			}
			continue
		}

		h.setStatus(StatusConnected, nil)
		h.mgr.log.Info("subscribed", map[string]any{"table": h.cfg.Table, "filter": h.cfg.Filter})

		reason := h.consume(ch, &enabled)
		_ = ch.Close()
		switch reason {
		case leaveClosed:
			return
		case leaveTransportError:
			if h.waitRetry(&enabled) == leaveClosed {
				return
			}
		case leaveReconnectNow, leaveDisabled:
			// loop re-enters immediately
		}
	}
}

// consume runs the connected phase, including the debounce state machine
// (idle -> pending -> fired). At most one OnChange call happens per debounce
// window regardless of burst size; the timer is reset per event, never
// stacked.
func (h *Handle) consume(ch Channel, enabled *bool) leaveReason {
	pending := 0
	var deb Timer
	var debC <-chan time.Time
	defer func() {
		if deb != nil {
			deb.Stop()
		}
	}()

	for {
		select {
		case _, ok := <-ch.Events():
			if !ok {
				h.setStatus(StatusError, nil)
				return leaveTransportError
			}
			if h.cfg.OnChange == nil {
				continue
			}
			if h.cfg.Debounce <= 0 {
				h.cfg.OnChange(1)
				continue
			}
			pending++
			if deb == nil {
				deb = h.mgr.clock.NewTimer(h.cfg.Debounce)
			} else {
				deb.Stop()
				deb.Reset(h.cfg.Debounce)
			}
			debC = deb.C()

		case <-debC:
			debC = nil
			if n := pending; n > 0 {
				pending = 0
				h.cfg.OnChange(n)
			}

		case err := <-ch.Errors():
			// Pending coalesced events are dropped here: after reconnect the
			// next refresh reflects the store's current state anyway.
			h.setStatus(StatusError, err)
			h.mgr.log.Error("channel_error", err, map[string]any{"table": h.cfg.Table})
			return leaveTransportError

		case c := <-h.cmds:
			switch c.kind {
			case cmdReconnect:
				return leaveReconnectNow
			case cmdDisable:
				*enabled = false
				return leaveDisabled
			case cmdVisible:
				// already connected; nothing to do
			}

		case <-h.done:
			return leaveClosed
		}
	}
}

// waitRetry holds the error state for the fixed reconnect delay. A manual
// Reconnect or a hidden->visible transition cuts the wait short.
func (h *Handle) waitRetry(enabled *bool) leaveReason {
	retry := h.mgr.clock.NewTimer(ReconnectDelay)
	defer retry.Stop()
	for {
		select {
		case <-retry.C():
			return leaveReconnectNow
		case c := <-h.cmds:
			switch c.kind {
			case cmdReconnect:
				return leaveReconnectNow
			case cmdDisable:
				*enabled = false
				return leaveDisabled
			case cmdVisible:
				if c.visible && *enabled {
					h.setStatus(StatusConnecting, nil)
					return leaveReconnectNow
				}
			}
		case <-h.done:
			return leaveClosed
		}
	}
}
