package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant-pos/internal/common/cache"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/delivery/repository"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/realtime"
	"restaurant-pos/internal/session"
)

var (
	ErrForbidden        = errors.New("role not permitted for this action")
	ErrValidation       = errors.New("validation failed")
	ErrRiderBusy        = errors.New("rider has an unresolved delivery and cannot go offline")
	ErrRiderUnavailable = errors.New("rider is not available for assignment")
)

// msToKMH converts device-reported meters/second to kilometers/hour.
const msToKMH = 3.6

type DeliveryServiceInterface interface {
	CreateRider(ctx context.Context, sess *session.Session, req domain.CreateRiderRequest) (domain.Rider, error)
	SetAvailability(ctx context.Context, sess *session.Session, riderID int64, online bool) (domain.Rider, error)
	IngestSample(ctx context.Context, sess *session.Session, sample domain.LocationSample) error
	AssignRider(ctx context.Context, sess *session.Session, req domain.AssignDeliveryRequest) (domain.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, sess *session.Session, deliveryID int64, to domain.DeliveryStatus) (domain.Delivery, error)
	RiderLocation(ctx context.Context, riderID int64) (*domain.RiderLocation, error)
	Rider(ctx context.Context, riderID int64) (domain.Rider, error)
	DeliveryForOrder(ctx context.Context, orderID int64) (domain.Delivery, error)
}

type Config struct {
	// Pickup is the restaurant location stamped onto new deliveries.
	Pickup domain.LatLng
	// LocationTTL bounds how long a cached location may be served once a
	// rider stops reporting.
	LocationTTL time.Duration
}

type DeliveryService struct {
	repo   repository.DeliveryRepositoryInterface
	orders ordersrepo.OrdersRepositoryInterface
	cache  *cache.Client
	pub    realtime.EventPublisher
	hub    *realtime.Hub
	log    *logger.Logger
	cfg    Config
}

func New(repo repository.DeliveryRepositoryInterface, orders ordersrepo.OrdersRepositoryInterface,
	cc *cache.Client, pub realtime.EventPublisher, hub *realtime.Hub, log *logger.Logger, cfg Config) *DeliveryService {
	if cfg.LocationTTL <= 0 {
		cfg.LocationTTL = 5 * time.Minute
	}
	return &DeliveryService{repo: repo, orders: orders, cache: cc, pub: pub, hub: hub, log: log, cfg: cfg}
}

func (s *DeliveryService) CreateRider(ctx context.Context, sess *session.Session, req domain.CreateRiderRequest) (domain.Rider, error) {
	if !sess.Can(session.ActionToggleRider) {
		return domain.Rider{}, fmt.Errorf("%w: %s", ErrForbidden, sess.Role)
	}
	if req.Name == "" {
		return domain.Rider{}, fmt.Errorf("%w: rider name is required", ErrValidation)
	}
	rider := domain.Rider{Name: req.Name, Phone: req.Phone}
	if err := s.repo.CreateRider(ctx, &rider); err != nil {
		return domain.Rider{}, err
	}
	s.log.Info("rider_created", map[string]any{"rider_id": rider.ID, "name": rider.Name})
	return rider, nil
}

// SetAvailability drives the offline -> online toggle. busy is never set
// here: it is entered automatically on assignment and cleared on delivery
// completion, and a busy rider cannot be toggled offline.
func (s *DeliveryService) SetAvailability(ctx context.Context, sess *session.Session, riderID int64, online bool) (domain.Rider, error) {
	if !sess.Can(session.ActionToggleRider) {
		return domain.Rider{}, fmt.Errorf("%w: %s", ErrForbidden, sess.Role)
	}
	rider, err := s.repo.GetRider(ctx, riderID)
	if err != nil {
		return domain.Rider{}, err
	}

	target := domain.RiderOffline
	if online {
		target = domain.RiderOnline
	}
	if rider.Status == target {
		return rider, nil
	}
	if !online {
		if rider.Status == domain.RiderBusy {
			return domain.Rider{}, ErrRiderBusy
		}
		if busy, err := s.repo.HasUnresolvedDelivery(ctx, riderID); err != nil {
			return domain.Rider{}, err
		} else if busy {
			return domain.Rider{}, ErrRiderBusy
		}
	}
	if err := s.repo.SetRiderStatus(ctx, riderID, target); err != nil {
		return domain.Rider{}, err
	}
	rider.Status = target
	s.publishRider(ctx, rider)
	s.log.Info("rider_availability_changed", map[string]any{"rider_id": riderID, "status": target})
	return rider, nil
}

// IngestSample accepts one GPS fix. Samples older than the stored one are
// ignored, not errors: unordered network delivery is expected.
func (s *DeliveryService) IngestSample(ctx context.Context, sess *session.Session, sample domain.LocationSample) error {
	if !sess.Can(session.ActionReportLocation) {
		return fmt.Errorf("%w: %s", ErrForbidden, sess.Role)
	}
	if sample.Latitude < -90 || sample.Latitude > 90 || sample.Longitude < -180 || sample.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	rider, err := s.repo.GetRider(ctx, sample.RiderID)
	if err != nil {
		return err
	}
	if rider.Status == domain.RiderOffline {
		return fmt.Errorf("%w: rider %d is offline", ErrValidation, sample.RiderID)
	}

	ts := sample.ClientTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	loc := domain.RiderLocation{
		Latitude:   sample.Latitude,
		Longitude:  sample.Longitude,
		Accuracy:   sample.Accuracy,
		Heading:    sample.Heading,
		RecordedAt: ts,
	}
	if sample.SpeedMS != nil {
		// An unknown speed stays null, never zero.
		kmh := *sample.SpeedMS * msToKMH
		loc.SpeedKMH = &kmh
	}

	applied, err := s.repo.UpdateLocation(ctx, sample.RiderID, loc)
	if err != nil {
		return err
	}
	if !applied {
		s.log.Debug("stale_sample_ignored", map[string]any{
			"rider_id": sample.RiderID, "client_timestamp": ts,
		})
		return nil
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, locationKey(sample.RiderID), loc, s.cfg.LocationTTL); err != nil {
			s.log.Warn("location_cache_failed", map[string]any{"rider_id": sample.RiderID})
		}
	}
	s.publishLocation(ctx, sample.RiderID, loc)
	if s.hub != nil {
		s.hub.Broadcast(fmt.Sprint(sample.RiderID), "location", loc)
	}
	return nil
}

func (s *DeliveryService) AssignRider(ctx context.Context, sess *session.Session, req domain.AssignDeliveryRequest) (domain.Delivery, error) {
	if !sess.Can(session.ActionAssignRider) {
		return domain.Delivery{}, fmt.Errorf("%w: %s", ErrForbidden, sess.Role)
	}
	order, err := s.orders.GetByNumber(ctx, sess.RestaurantID, req.OrderNumber)
	if err != nil {
		return domain.Delivery{}, err
	}
	if order.DineIn() {
		return domain.Delivery{}, fmt.Errorf("%w: order %s is dine-in", ErrValidation, req.OrderNumber)
	}
	rider, err := s.repo.GetRider(ctx, req.RiderID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if rider.Status != domain.RiderOnline {
		return domain.Delivery{}, fmt.Errorf("%w: rider %d is %s", ErrRiderUnavailable, rider.ID, rider.Status)
	}

	d := domain.Delivery{
		OrderID:       order.ID,
		RiderID:       &rider.ID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Address:       req.Address,
		Destination:   req.Destination,
		Pickup:        s.cfg.Pickup,
	}
	if err := s.repo.CreateDelivery(ctx, &d); err != nil {
		return domain.Delivery{}, err
	}
	// Accepting an order sets the rider busy automatically.
	if err := s.repo.SetRiderStatus(ctx, rider.ID, domain.RiderBusy); err != nil {
		return domain.Delivery{}, err
	}
	rider.Status = domain.RiderBusy
	s.publishRider(ctx, rider)
	s.publishDelivery(ctx, domain.ChangeInsert, d)
	s.log.Info("delivery_assigned", map[string]any{
		"order_number": req.OrderNumber, "rider_id": rider.ID, "delivery_id": d.ID,
	})
	return d, nil
}

func (s *DeliveryService) UpdateDeliveryStatus(ctx context.Context, sess *session.Session, deliveryID int64, to domain.DeliveryStatus) (domain.Delivery, error) {
	if !sess.Can(session.ActionHandOff) {
		return domain.Delivery{}, fmt.Errorf("%w: %s", ErrForbidden, sess.Role)
	}
	d, err := s.repo.TransitionDeliveryTx(ctx, deliveryID, to)
	if err != nil {
		return domain.Delivery{}, err
	}
	s.publishDelivery(ctx, domain.ChangeUpdate, d)

	if to == domain.DeliveryDelivered {
		s.completeDelivery(ctx, d)
	}
	return d, nil
}

// completeDelivery closes the loop after the handoff: the rider goes back
// online and a still-open order advances to served. The order coupling is
// loose; a concurrent billing flow having already moved it further is fine.
func (s *DeliveryService) completeDelivery(ctx context.Context, d domain.Delivery) {
	if d.RiderID != nil {
		if err := s.repo.SetRiderStatus(ctx, *d.RiderID, domain.RiderOnline); err != nil {
			s.log.Error("rider_release_failed", err, map[string]any{"rider_id": *d.RiderID})
		} else {
			s.publishRider(ctx, domain.Rider{ID: *d.RiderID, Status: domain.RiderOnline})
		}
	}
	restaurantID, number, err := s.repo.OrderRef(ctx, d.OrderID)
	if err != nil {
		s.log.Error("order_ref_failed", err, map[string]any{"order_id": d.OrderID})
		return
	}
	served, err := s.orders.TransitionTx(ctx, restaurantID, number, domain.StatusServed, "delivery")
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			s.log.Error("order_serve_failed", err, map[string]any{"order_number": number})
		}
		return
	}
	s.publishOrder(ctx, served)
}

func (s *DeliveryService) publishOrder(ctx context.Context, o domain.Order) {
	if s.pub == nil {
		return
	}
	ev := domain.ChangeEvent{
		Table: "orders",
		Kind:  domain.ChangeUpdate,
		Row: map[string]any{
			"id":            o.ID,
			"restaurant_id": o.RestaurantID,
			"order_number":  o.Number,
			"status":        string(o.Status),
			"is_priority":   o.IsPriority,
		},
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error("change_publish_failed", err, map[string]any{"order_number": o.Number})
	}
}

// RiderLocation serves the latest accepted sample, cache first.
func (s *DeliveryService) RiderLocation(ctx context.Context, riderID int64) (*domain.RiderLocation, error) {
	if s.cache != nil {
		var loc domain.RiderLocation
		err := s.cache.GetJSON(ctx, locationKey(riderID), &loc)
		if err == nil {
			return &loc, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("location_cache_read_failed", map[string]any{"rider_id": riderID})
		}
	}
	rider, err := s.repo.GetRider(ctx, riderID)
	if err != nil {
		return nil, err
	}
	return rider.Location, nil
}

func (s *DeliveryService) Rider(ctx context.Context, riderID int64) (domain.Rider, error) {
	return s.repo.GetRider(ctx, riderID)
}

func (s *DeliveryService) DeliveryForOrder(ctx context.Context, orderID int64) (domain.Delivery, error) {
	return s.repo.GetDeliveryByOrder(ctx, orderID)
}

func locationKey(riderID int64) string { return fmt.Sprintf("rider:loc:%d", riderID) }

func (s *DeliveryService) publishLocation(ctx context.Context, riderID int64, loc domain.RiderLocation) {
	if s.pub == nil {
		return
	}
	ev := domain.ChangeEvent{
		Table: "rider_locations",
		Kind:  domain.ChangeUpdate,
		Row: map[string]any{
			"rider_id":   riderID,
			"latitude":   loc.Latitude,
			"longitude":  loc.Longitude,
			"heading":    loc.Heading,
			"speed":      loc.SpeedKMH,
			"updated_at": loc.RecordedAt,
		},
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error("change_publish_failed", err, map[string]any{"rider_id": riderID})
	}
}

func (s *DeliveryService) publishRider(ctx context.Context, r domain.Rider) {
	if s.pub == nil {
		return
	}
	ev := domain.ChangeEvent{
		Table: "riders",
		Kind:  domain.ChangeUpdate,
		Row:   map[string]any{"id": r.ID, "status": string(r.Status)},
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error("change_publish_failed", err, map[string]any{"rider_id": r.ID})
	}
}

func (s *DeliveryService) publishDelivery(ctx context.Context, kind domain.ChangeKind, d domain.Delivery) {
	if s.pub == nil {
		return
	}
	ev := domain.ChangeEvent{
		Table: "deliveries",
		Kind:  kind,
		Row: map[string]any{
			"id":       d.ID,
			"order_id": d.OrderID,
			"rider_id": d.RiderID,
			"status":   string(d.Status),
		},
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error("change_publish_failed", err, map[string]any{"delivery_id": d.ID})
	}
}
