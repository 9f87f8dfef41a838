package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/domain"
)

var (
	ErrRiderNotFound    = errors.New("rider not found")
	ErrDeliveryNotFound = errors.New("delivery not found")
)

type DeliveryRepositoryInterface interface {
	CreateRider(ctx context.Context, r *domain.Rider) error
	GetRider(ctx context.Context, id int64) (domain.Rider, error)
	SetRiderStatus(ctx context.Context, id int64, status domain.RiderStatus) error
	// UpdateLocation applies a sample only when its timestamp is newer than
	// the stored one. Last-writer-wins is scoped by timestamp comparison, not
	// arrival order; a stale sample returns false, nil.
	UpdateLocation(ctx context.Context, riderID int64, loc domain.RiderLocation) (bool, error)

	CreateDelivery(ctx context.Context, d *domain.Delivery) error
	GetDelivery(ctx context.Context, id int64) (domain.Delivery, error)
	GetDeliveryByOrder(ctx context.Context, orderID int64) (domain.Delivery, error)
	TransitionDeliveryTx(ctx context.Context, id int64, to domain.DeliveryStatus) (domain.Delivery, error)
	HasUnresolvedDelivery(ctx context.Context, riderID int64) (bool, error)
	ActiveDeliveries(ctx context.Context) ([]domain.Delivery, error)
	OrderRef(ctx context.Context, orderID int64) (restaurantID int64, number string, err error)
}

type DeliveryRepository struct {
	db *db.Conn
}

func New(conn *db.Conn) *DeliveryRepository { return &DeliveryRepository{db: conn} }

func (r *DeliveryRepository) CreateRider(ctx context.Context, rd *domain.Rider) error {
	rd.Status = domain.RiderOffline
	err := r.db.QueryRow(ctx, `
		INSERT INTO riders (name, phone, status) VALUES ($1,$2,$3) RETURNING id
	`, rd.Name, rd.Phone, rd.Status).Scan(&rd.ID)
	if err != nil {
		return fmt.Errorf("insert rider: %w", err)
	}
	return nil
}

func (r *DeliveryRepository) GetRider(ctx context.Context, id int64) (domain.Rider, error) {
	var rd domain.Rider
	var loc domain.RiderLocation
	var hasLoc bool
	err := r.db.QueryRow(ctx, `
		SELECT id, name, phone, status,
		       COALESCE(lat, 0), COALESCE(lng, 0), COALESCE(accuracy, 0),
		       heading, speed_kmh, COALESCE(location_recorded_at, 'epoch'),
		       location_recorded_at IS NOT NULL
		FROM riders WHERE id = $1
	`, id).Scan(&rd.ID, &rd.Name, &rd.Phone, &rd.Status,
		&loc.Latitude, &loc.Longitude, &loc.Accuracy,
		&loc.Heading, &loc.SpeedKMH, &loc.RecordedAt, &hasLoc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rider{}, ErrRiderNotFound
	}
	if err != nil {
		return domain.Rider{}, fmt.Errorf("select rider %d: %w", id, err)
	}
	if hasLoc {
		rd.Location = &loc
	}
	return rd, nil
}

func (r *DeliveryRepository) SetRiderStatus(ctx context.Context, id int64, status domain.RiderStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE riders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update rider status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRiderNotFound
	}
	return nil
}

func (r *DeliveryRepository) UpdateLocation(ctx context.Context, riderID int64, loc domain.RiderLocation) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE riders
		SET lat = $2, lng = $3, accuracy = $4, heading = $5, speed_kmh = $6,
		    location_recorded_at = $7
		WHERE id = $1
		  AND (location_recorded_at IS NULL OR location_recorded_at < $7)
	`, riderID, loc.Latitude, loc.Longitude, loc.Accuracy, loc.Heading, loc.SpeedKMH, loc.RecordedAt)
	if err != nil {
		return false, fmt.Errorf("update location: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Either the rider is unknown or the sample is stale; distinguish them
	// because only the former is an error.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM riders WHERE id = $1)`, riderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check rider: %w", err)
	}
	if !exists {
		return false, ErrRiderNotFound
	}
	return false, nil
}

func (r *DeliveryRepository) CreateDelivery(ctx context.Context, d *domain.Delivery) error {
	d.Status = domain.DeliveryAssigned
	err := r.db.QueryRow(ctx, `
		INSERT INTO deliveries (order_id, rider_id, status, customer_name, customer_phone,
		                        address, dest_lat, dest_lng, pickup_lat, pickup_lng,
		                        created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
		RETURNING id, created_at, updated_at
	`, d.OrderID, d.RiderID, d.Status, d.CustomerName, d.CustomerPhone,
		d.Address, d.Destination.Lat, d.Destination.Lng, d.Pickup.Lat, d.Pickup.Lng,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

const deliveryColumns = `
	id, order_id, rider_id, status, customer_name, customer_phone, address,
	dest_lat, dest_lng, pickup_lat, pickup_lng, created_at, updated_at`

func (r *DeliveryRepository) scanDelivery(row pgx.Row) (domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(&d.ID, &d.OrderID, &d.RiderID, &d.Status, &d.CustomerName,
		&d.CustomerPhone, &d.Address, &d.Destination.Lat, &d.Destination.Lng,
		&d.Pickup.Lat, &d.Pickup.Lng, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Delivery{}, ErrDeliveryNotFound
	}
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("scan delivery: %w", err)
	}
	return d, nil
}

func (r *DeliveryRepository) GetDelivery(ctx context.Context, id int64) (domain.Delivery, error) {
	return r.scanDelivery(r.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
}

func (r *DeliveryRepository) GetDeliveryByOrder(ctx context.Context, orderID int64) (domain.Delivery, error) {
	return r.scanDelivery(r.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, orderID))
}

func (r *DeliveryRepository) TransitionDeliveryTx(ctx context.Context, id int64, to domain.DeliveryStatus) (domain.Delivery, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from domain.DeliveryStatus
	err = tx.QueryRow(ctx, `SELECT status FROM deliveries WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Delivery{}, ErrDeliveryNotFound
	}
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("lock delivery %d: %w", id, err)
	}
	if from == to {
		if err := tx.Commit(ctx); err != nil {
			return domain.Delivery{}, err
		}
		return r.GetDelivery(ctx, id)
	}
	if err := domain.CheckDeliveryTransition(from, to); err != nil {
		return domain.Delivery{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE deliveries SET status = $2, updated_at = now() WHERE id = $1
	`, id, to); err != nil {
		return domain.Delivery{}, fmt.Errorf("update delivery: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Delivery{}, err
	}
	return r.GetDelivery(ctx, id)
}

func (r *DeliveryRepository) HasUnresolvedDelivery(ctx context.Context, riderID int64) (bool, error) {
	var busy bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM deliveries
			WHERE rider_id = $1 AND status <> 'delivered'
		)
	`, riderID).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("check unresolved deliveries: %w", err)
	}
	return busy, nil
}

func (r *DeliveryRepository) ActiveDeliveries(ctx context.Context) ([]domain.Delivery, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE status <> 'delivered'`)
	if err != nil {
		return nil, fmt.Errorf("select active deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		d, err := r.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DeliveryRepository) OrderRef(ctx context.Context, orderID int64) (int64, string, error) {
	var restaurantID int64
	var number string
	err := r.db.QueryRow(ctx, `
		SELECT restaurant_id, order_number FROM orders WHERE id = $1
	`, orderID).Scan(&restaurantID, &number)
	if err != nil {
		return 0, "", fmt.Errorf("select order ref %d: %w", orderID, err)
	}
	return restaurantID, number, nil
}
