package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"restaurant-pos/internal/dataaccess"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/realtime"
)

// BoardEntry is one kitchen display card.
type BoardEntry struct {
	Order   domain.Order   `json:"order"`
	Urgency domain.Urgency `json:"urgency"`
}

// Board keeps a live kitchen display: a cached query over active orders,
// refreshed by a debounced realtime subscription instead of polling.
// Priority-first ordering and urgency classification happen here.
type Board struct {
	query  *dataaccess.Query[[]domain.Order]
	handle *realtime.Handle
	clock  realtime.Clock

	mu     sync.RWMutex
	orders []domain.Order
}

const boardDebounce = 250 * time.Millisecond

func NewBoard(ctx context.Context, svc OrdersServiceInterface, mgr *realtime.Manager, cache *dataaccess.Cache, clock realtime.Clock, restaurantID int64) *Board {
	if clock == nil {
		clock = realtime.SystemClock()
	}
	b := &Board{clock: clock}
	b.query = dataaccess.NewQuery(cache, clock, dataaccess.QueryConfig[[]domain.Order]{
		Key:     []string{"orders", "board", fmt.Sprint(restaurantID)},
		Enabled: true,
		Fetch: func(ctx context.Context) ([]domain.Order, error) {
			return svc.ActiveOrders(ctx, restaurantID)
		},
	})
	b.handle = mgr.Subscribe(realtime.Config{
		Table:    "orders",
		Kind:     domain.ChangeAny,
		Filter:   fmt.Sprintf("restaurant_id=eq.%d", restaurantID),
		Debounce: boardDebounce,
		Enabled:  true,
		OnChange: func(int) { b.Refresh(ctx) },
	})
	b.Refresh(ctx)
	return b
}

// Refresh refetches and re-sorts the board.
func (b *Board) Refresh(ctx context.Context) {
	res := b.query.Run(ctx)
	if !res.Success {
		return
	}
	orders := res.Data
	domain.SortForKitchen(orders)
	b.mu.Lock()
	b.orders = orders
	b.mu.Unlock()
}

// Snapshot recomputes urgency against now; classification is derived every
// read, never stored.
func (b *Board) Snapshot() []BoardEntry {
	now := b.clock.Now()
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]BoardEntry, 0, len(b.orders))
	for _, o := range b.orders {
		entries = append(entries, BoardEntry{
			Order:   o,
			Urgency: domain.UrgencyAt(o.CreatedAt, now),
		})
	}
	return entries
}

// ConnectionStatus exposes the realtime link state for the board's
// connection indicator.
func (b *Board) ConnectionStatus() (realtime.Status, error) {
	return b.handle.Status(), b.handle.LastError()
}

// SetVisible forwards host visibility to the subscription so a foregrounded
// board reconnects immediately.
func (b *Board) SetVisible(v bool) { b.handle.SetVisible(v) }

func (b *Board) Close() {
	b.handle.Close()
	b.query.Stop()
}
