package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/domain"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
)

type BillingRepositoryInterface interface {
	// Settle persists the confirmed splits and advances the order to paid in
	// a single transaction. A rejected transition rolls back the splits too,
	// so an order that was never served cannot accumulate payment rows.
	Settle(ctx context.Context, orderID int64, splits []domain.Split, changedBy string) error
}

type BillingRepository struct {
	db *db.Conn
}

func New(conn *db.Conn) *BillingRepository { return &BillingRepository{db: conn} }

func (r *BillingRepository) Settle(ctx context.Context, orderID int64, splits []domain.Split, changedBy string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from domain.OrderStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return ordersrepo.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock order %d: %w", orderID, err)
	}
	if err := domain.CheckTransition(from, domain.StatusPaid); err != nil {
		return err
	}

	for _, s := range splits {
		if _, err := tx.Exec(ctx, `
			INSERT INTO split_payments (order_id, split_number, amount, payment_method, label, paid_at)
			VALUES ($1,$2,$3,$4,$5,now())
		`, orderID, s.Number, s.Amount, s.Method, s.Label); err != nil {
			return fmt.Errorf("insert split %d: %w", s.Number, err)
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, orderID, domain.StatusPaid); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,now())
	`, orderID, from, domain.StatusPaid, changedBy); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	return tx.Commit(ctx)
}
