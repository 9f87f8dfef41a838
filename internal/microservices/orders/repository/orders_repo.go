package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/domain"
)

var ErrNotFound = errors.New("order not found")

type OrdersRepositoryInterface interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByNumber(ctx context.Context, restaurantID int64, number string) (domain.Order, error)
	ListActive(ctx context.Context, restaurantID int64) ([]domain.Order, error)
	// TransitionTx advances one order under a row lock. A target equal to the
	// current status is an idempotent no-op; anything else must be a legal
	// transition.
	TransitionTx(ctx context.Context, restaurantID int64, number string, to domain.OrderStatus, changedBy string) (domain.Order, error)
	Timeline(ctx context.Context, orderID int64, limit int) ([]domain.StatusChange, error)
}

type OrdersRepository struct {
	db *db.Conn
}

func New(conn *db.Conn) *OrdersRepository { return &OrdersRepository{db: conn} }

// Create inserts the order and its items in one transaction, assigning the
// next ORD_YYYYMMDD_NNN number for the restaurant's day. Numbers are never
// reused within a restaurant.
func (r *OrdersRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seq int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) + 1 FROM orders
		WHERE restaurant_id = $1 AND created_at >= date_trunc('day', now())
	`, o.RestaurantID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("order sequence: %w", err)
	}
	o.Number = fmt.Sprintf("ORD_%s_%03d", time.Now().UTC().Format("20060102"), seq)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (restaurant_id, order_number, status, is_priority, table_number,
		                    subtotal, tax, discount, total, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
		RETURNING id, created_at, updated_at
	`, o.RestaurantID, o.Number, o.Status, o.IsPriority, o.TableNumber,
		o.Subtotal, o.Tax, o.Discount, o.Total, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		custom, err := json.Marshal(it.Customizations)
		if err != nil {
			return fmt.Errorf("marshal customizations: %w", err)
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, name, unit_price, quantity, subtotal,
			                         special_instructions, customizations)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, o.ID, it.Name, it.UnitPrice, it.Quantity, it.Subtotal,
			it.SpecialInstructions, custom,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", it.Name, err)
		}
		it.OrderID = o.ID
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1, '', $2, 'intake', now())
	`, o.ID, o.Status); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *OrdersRepository) GetByNumber(ctx context.Context, restaurantID int64, number string) (domain.Order, error) {
	var o domain.Order
	err := r.db.QueryRow(ctx, `
		SELECT id, restaurant_id, order_number, status, is_priority, table_number,
		       subtotal, tax, discount, total, COALESCE(notes,''), created_at, updated_at
		FROM orders WHERE restaurant_id = $1 AND order_number = $2
	`, restaurantID, number).Scan(
		&o.ID, &o.RestaurantID, &o.Number, &o.Status, &o.IsPriority, &o.TableNumber,
		&o.Subtotal, &o.Tax, &o.Discount, &o.Total, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order %s: %w", number, err)
	}
	items, err := r.items(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *OrdersRepository) items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, name, unit_price, quantity, subtotal,
		       COALESCE(special_instructions,''), COALESCE(customizations,'[]')
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var custom []byte
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.UnitPrice, &it.Quantity,
			&it.Subtotal, &it.SpecialInstructions, &custom); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal(custom, &it.Customizations); err != nil {
			return nil, fmt.Errorf("unmarshal customizations: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListActive returns the kitchen-relevant orders. Sorting is a display
// policy and belongs to the caller.
func (r *OrdersRepository) ListActive(ctx context.Context, restaurantID int64) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, restaurant_id, order_number, status, is_priority, table_number,
		       subtotal, tax, discount, total, COALESCE(notes,''), created_at, updated_at
		FROM orders
		WHERE restaurant_id = $1 AND status IN ('pending','preparing','ready')
	`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("select active orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.RestaurantID, &o.Number, &o.Status, &o.IsPriority,
			&o.TableNumber, &o.Subtotal, &o.Tax, &o.Discount, &o.Total, &o.Notes,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrdersRepository) TransitionTx(ctx context.Context, restaurantID int64, number string, to domain.OrderStatus, changedBy string) (domain.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	var from domain.OrderStatus
	err = tx.QueryRow(ctx, `
		SELECT id, status FROM orders
		WHERE restaurant_id = $1 AND order_number = $2
		FOR UPDATE
	`, restaurantID, number).Scan(&id, &from)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock order %s: %w", number, err)
	}

	if from == to {
		// Concurrent repeat of the same advance; harmless.
		if err := tx.Commit(ctx); err != nil {
			return domain.Order{}, err
		}
		return r.GetByNumber(ctx, restaurantID, number)
	}
	if err := domain.CheckTransition(from, to); err != nil {
		return domain.Order{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, id, to); err != nil {
		return domain.Order{}, fmt.Errorf("update status: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,now())
	`, id, from, to, changedBy); err != nil {
		return domain.Order{}, fmt.Errorf("insert status log: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return r.GetByNumber(ctx, restaurantID, number)
}

func (r *OrdersRepository) Timeline(ctx context.Context, orderID int64, limit int) ([]domain.StatusChange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT order_id, from_status, to_status, changed_by, changed_at
		FROM order_status_log WHERE order_id = $1
		ORDER BY changed_at ASC LIMIT $2
	`, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("select timeline: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.OrderID, &c.From, &c.To, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
