package service

import (
	"context"
	"errors"
	"fmt"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/billing/repository"
	orders "restaurant-pos/internal/microservices/orders/service"
	"restaurant-pos/internal/realtime"
	"restaurant-pos/internal/session"
)

var (
	ErrForbidden     = errors.New("role not permitted for billing")
	ErrMethodMissing = errors.New("every split needs a payment method before completing")
)

type BillingServiceInterface interface {
	EqualSplit(ctx context.Context, sess *session.Session, number string, count int) ([]domain.Split, error)
	ItemSplit(ctx context.Context, sess *session.Session, number string, buckets []ItemBucket) ([]domain.Split, error)
	CustomSplit(ctx context.Context, sess *session.Session, number string, amounts []int64) ([]domain.Split, error)
	Complete(ctx context.Context, sess *session.Session, number string, splits []domain.Split) (domain.Order, error)
}

type BillingService struct {
	orders orders.OrdersServiceInterface
	repo   repository.BillingRepositoryInterface
	alloc  Allocator
	pub    realtime.EventPublisher
	log    *logger.Logger
}

func New(ordersSvc orders.OrdersServiceInterface, repo repository.BillingRepositoryInterface,
	alloc Allocator, pub realtime.EventPublisher, log *logger.Logger) *BillingService {
	return &BillingService{orders: ordersSvc, repo: repo, alloc: alloc, pub: pub, log: log}
}

func (s *BillingService) order(ctx context.Context, sess *session.Session, number string) (domain.Order, error) {
	if !sess.Can(session.ActionSplitBill) {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrForbidden, sess.Role)
	}
	return s.orders.Get(ctx, sess, number)
}

func (s *BillingService) EqualSplit(ctx context.Context, sess *session.Session, number string, count int) ([]domain.Split, error) {
	o, err := s.order(ctx, sess, number)
	if err != nil {
		return nil, err
	}
	return s.alloc.Equal(o.Total, count)
}

func (s *BillingService) ItemSplit(ctx context.Context, sess *session.Session, number string, buckets []ItemBucket) ([]domain.Split, error) {
	o, err := s.order(ctx, sess, number)
	if err != nil {
		return nil, err
	}
	return s.alloc.ByItems(o, buckets)
}

func (s *BillingService) CustomSplit(ctx context.Context, sess *session.Session, number string, amounts []int64) ([]domain.Split, error) {
	o, err := s.order(ctx, sess, number)
	if err != nil {
		return nil, err
	}
	return s.alloc.Custom(o.Total, amounts)
}

// Complete is all-or-nothing: every split must carry a payment method, the
// amounts must cover the order total, and the splits land together with the
// served -> paid transition in one transaction. Partial completion is not
// modeled, and a rejected transition leaves no payment rows behind.
func (s *BillingService) Complete(ctx context.Context, sess *session.Session, number string, splits []domain.Split) (domain.Order, error) {
	if !sess.Can(session.ActionSettle) {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrForbidden, sess.Role)
	}
	if len(splits) == 0 {
		return domain.Order{}, fmt.Errorf("%w: no splits", ErrMethodMissing)
	}
	for _, sp := range splits {
		if !sp.Method.Valid() {
			return domain.Order{}, fmt.Errorf("%w: split %d", ErrMethodMissing, sp.Number)
		}
	}
	o, err := s.orders.Get(ctx, sess, number)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.alloc.VerifyTotal(o.Total, splits); err != nil {
		return domain.Order{}, err
	}
	if err := s.repo.Settle(ctx, o.ID, splits, sess.Actor); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.StatusPaid
	s.publish(ctx, o)
	s.log.Info("payments_completed", map[string]any{
		"order_number": number, "splits": len(splits), "total": o.Total,
	})
	return o, nil
}

func (s *BillingService) publish(ctx context.Context, o domain.Order) {
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
