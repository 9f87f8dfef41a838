package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/realtime"
	"restaurant-pos/internal/session"
)

var (
	ErrForbidden  = errors.New("role not permitted for this action")
	ErrValidation = errors.New("validation failed")
)

type OrdersServiceInterface interface {
	Create(ctx context.Context, sess *session.Session, req domain.CreateOrderRequest) (domain.Order, error)
	Get(ctx context.Context, sess *session.Session, number string) (domain.Order, error)
	ActiveOrders(ctx context.Context, restaurantID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, sess *session.Session, number string, to domain.OrderStatus) (domain.Order, error)
	Cancel(ctx context.Context, sess *session.Session, number string) (domain.Order, error)
	Timeline(ctx context.Context, sess *session.Session, number string) ([]domain.StatusChange, error)
}

type Config struct {
	TaxRate       float64
	PriorityTotal int64
}

type OrdersService struct {
	repo repository.OrdersRepositoryInterface
	pub  realtime.EventPublisher
	log  *logger.Logger
	cfg  Config
}

func New(repo repository.OrdersRepositoryInterface, pub realtime.EventPublisher, log *logger.Logger, cfg Config) *OrdersService {
	return &OrdersService{repo: repo, pub: pub, log: log, cfg: cfg}
}

func (s *OrdersService) Create(ctx context.Context, sess *session.Session, req domain.CreateOrderRequest) (domain.Order, error) {
	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if req.Discount < 0 {
		return domain.Order{}, fmt.Errorf("%w: negative discount", ErrValidation)
	}

	var subtotal int64
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: invalid quantity for item %s", ErrValidation, it.Name)
		}
		if it.UnitPrice <= 0 {
			return domain.Order{}, fmt.Errorf("%w: invalid price for item %s", ErrValidation, it.Name)
		}
		var surcharges int64
		for _, c := range it.Customizations {
			surcharges += c.Surcharge
		}
		lineTotal := int64(it.Quantity)*it.UnitPrice + surcharges
		subtotal += lineTotal
		items = append(items, domain.OrderItem{
			Name:                it.Name,
			UnitPrice:           it.UnitPrice,
			Quantity:            it.Quantity,
			Subtotal:            lineTotal,
			SpecialInstructions: it.SpecialInstructions,
			Customizations:      it.Customizations,
		})
	}

	tax := decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromFloat(s.cfg.TaxRate)).
		Round(0).IntPart()
	total := subtotal + tax - req.Discount
	if total <= 0 {
		return domain.Order{}, fmt.Errorf("%w: discount exceeds order value", ErrValidation)
	}

	order := domain.Order{
		RestaurantID: sess.RestaurantID,
		Status:       domain.StatusPending,
		IsPriority:   req.IsPriority || (s.cfg.PriorityTotal > 0 && total >= s.cfg.PriorityTotal),
		TableNumber:  req.TableNumber,
		Subtotal:     subtotal,
		Tax:          tax,
		Discount:     req.Discount,
		Total:        total,
		Notes:        req.Notes,
		Items:        items,
	}
	if err := s.repo.Create(ctx, &order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.publish(ctx, domain.ChangeInsert, order)
	s.log.Info("order_created", map[string]any{
		"order_number": order.Number, "total": order.Total, "priority": order.IsPriority,
	})
	return order, nil
}

func (s *OrdersService) Get(ctx context.Context, sess *session.Session, number string) (domain.Order, error) {
	return s.repo.GetByNumber(ctx, sess.RestaurantID, number)
}

func (s *OrdersService) ActiveOrders(ctx context.Context, restaurantID int64) ([]domain.Order, error) {
	return s.repo.ListActive(ctx, restaurantID)
}

// requiredAction maps a target status to the capability that may trigger it.
// Kitchen, waiter, cashier and delivery see disjoint action sets; the
// manager holds all of them.
func requiredAction(o domain.Order, to domain.OrderStatus) (session.Action, error) {
	switch to {
	case domain.StatusPreparing:
		return session.ActionStartPreparing, nil
	case domain.StatusReady:
		return session.ActionMarkReady, nil
	case domain.StatusServed:
		if o.DineIn() {
			return session.ActionServe, nil
		}
		return session.ActionHandOff, nil
	case domain.StatusPaid:
		return session.ActionSettle, nil
	case domain.StatusCancelled:
		return session.ActionCancel, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, to)
}

func (s *OrdersService) UpdateStatus(ctx context.Context, sess *session.Session, number string, to domain.OrderStatus) (domain.Order, error) {
	order, err := s.repo.GetByNumber(ctx, sess.RestaurantID, number)
	if err != nil {
		return domain.Order{}, err
	}
	action, err := requiredAction(order, to)
	if err != nil {
		return domain.Order{}, err
	}
	if !sess.Can(action) {
		return domain.Order{}, fmt.Errorf("%w: %s may not %s", ErrForbidden, sess.Role, action)
	}

	updated, err := s.repo.TransitionTx(ctx, sess.RestaurantID, number, to, sess.Actor)
	if err != nil {
		return domain.Order{}, err
	}
	s.publish(ctx, domain.ChangeUpdate, updated)
	s.log.Info("order_status_changed", map[string]any{
		"order_number": number, "from": order.Status, "to": to, "by": sess.Actor,
	})
	return updated, nil
}

func (s *OrdersService) Cancel(ctx context.Context, sess *session.Session, number string) (domain.Order, error) {
	return s.UpdateStatus(ctx, sess, number, domain.StatusCancelled)
}

func (s *OrdersService) Timeline(ctx context.Context, sess *session.Session, number string) ([]domain.StatusChange, error) {
	order, err := s.repo.GetByNumber(ctx, sess.RestaurantID, number)
	if err != nil {
		return nil, err
	}
	return s.repo.Timeline(ctx, order.ID, 0)
}

func (s *OrdersService) publish(ctx context.Context, kind domain.ChangeKind, o domain.Order) {
	if s.pub == nil {
		return
	}
	ev := domain.ChangeEvent{
		Table: "orders",
		Kind:  kind,
		Row: map[string]any{
			"id":            o.ID,
			"restaurant_id": o.RestaurantID,
			"order_number":  o.Number,
			"status":        string(o.Status),
			"is_priority":   o.IsPriority,
		},
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		// Feed loss degrades freshness, not correctness; the store stays the
		// source of truth.
		s.log.Error("change_publish_failed", err, map[string]any{"order_number": o.Number})
	}
}
