package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant-pos/internal/common/cache"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	deliveryrepo "restaurant-pos/internal/microservices/delivery/repository"
	deliverysvc "restaurant-pos/internal/microservices/delivery/service"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
)

type TrackingServiceInterface interface {
	Track(ctx context.Context, restaurantID int64, orderNumber string) (domain.TrackingView, error)
}

type Config struct {
	Restaurant domain.TrackingPlace
	// AvgSpeedKMH is the assumed rider speed for the straight-line estimate.
	AvgSpeedKMH float64
	// ETAInterval is the refresh cadence of the background estimator; cached
	// estimates live for three intervals so a stalled worker ages out.
	ETAInterval time.Duration
}

type TrackingService struct {
	orders   ordersrepo.OrdersRepositoryInterface
	delivery deliverysvc.DeliveryServiceInterface
	cache    *cache.Client
	log      *logger.Logger
	cfg      Config
}

func New(orders ordersrepo.OrdersRepositoryInterface, delivery deliverysvc.DeliveryServiceInterface,
	cc *cache.Client, log *logger.Logger, cfg Config) *TrackingService {
	if cfg.AvgSpeedKMH <= 0 {
		cfg.AvgSpeedKMH = 25
	}
	if cfg.ETAInterval <= 0 {
		cfg.ETAInterval = 30 * time.Second
	}
	return &TrackingService{orders: orders, delivery: delivery, cache: cc, log: log, cfg: cfg}
}

// Track assembles the customer-facing view for one order. The view degrades
// gracefully: a dine-in or not-yet-assigned order simply has no delivery
// block, and a rider that never reported has a null location and ETA.
func (s *TrackingService) Track(ctx context.Context, restaurantID int64, orderNumber string) (domain.TrackingView, error) {
	order, err := s.orders.GetByNumber(ctx, restaurantID, orderNumber)
	if err != nil {
		return domain.TrackingView{}, err
	}

	view := domain.TrackingView{
		Order: domain.TrackingOrder{
			Number:    order.Number,
			Status:    order.Status,
			Total:     order.Total,
			CreatedAt: order.CreatedAt,
		},
		Restaurant: s.cfg.Restaurant,
	}
	if timeline, err := s.orders.Timeline(ctx, order.ID, 20); err == nil {
		view.Timeline = timeline
	} else {
		s.log.Warn("timeline_load_failed", map[string]any{"order_number": orderNumber})
	}
	if order.DineIn() {
		return view, nil
	}

	d, err := s.delivery.DeliveryForOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, deliveryrepo.ErrDeliveryNotFound) {
			return view, nil
		}
		return domain.TrackingView{}, err
	}
	td := &domain.TrackingDelivery{
		Status:          d.Status,
		CustomerName:    d.CustomerName,
		DeliveryAddress: d.Address,
		Destination:     d.Destination,
		Pickup:          d.Pickup,
	}
	view.Delivery = td

	if d.RiderID == nil {
		return view, nil
	}
	rider, err := s.delivery.Rider(ctx, *d.RiderID)
	if err != nil {
		s.log.Warn("tracking_rider_load_failed", map[string]any{"rider_id": *d.RiderID})
		return view, nil
	}
	td.Rider = &domain.TrackingRider{
		Name:     rider.Name,
		Phone:    rider.Phone,
		IsOnline: rider.Status != domain.RiderOffline,
	}

	loc, err := s.delivery.RiderLocation(ctx, *d.RiderID)
	if err != nil || loc == nil {
		return view, nil
	}
	view.RiderLocation = loc
	view.ETAMinutes = s.eta(ctx, d, loc)
	return view, nil
}

// eta prefers the background worker's cached estimate and falls back to a
// direct computation so the first request after assignment is not null.
func (s *TrackingService) eta(ctx context.Context, d domain.Delivery, loc *domain.RiderLocation) *int {
	if d.Status == domain.DeliveryDelivered {
		zero := 0
		return &zero
	}
	if s.cache != nil {
		var minutes int
		if err := s.cache.GetJSON(ctx, etaKey(d.OrderID), &minutes); err == nil {
			return &minutes
		}
	}
	return EstimateMinutes(loc, d, s.cfg.AvgSpeedKMH)
}

func etaKey(orderID int64) string { return fmt.Sprintf("eta:order:%d", orderID) }
