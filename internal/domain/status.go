package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

type DeliveryStatus string

const (
	DeliveryAssigned    DeliveryStatus = "assigned"
	DeliveryReadyPickup DeliveryStatus = "ready_pickup"
	DeliveryPickedUp    DeliveryStatus = "picked_up"
	DeliveryInTransit   DeliveryStatus = "in_transit"
	DeliveryDelivered   DeliveryStatus = "delivered"
)

type RiderStatus string

const (
	RiderOffline RiderStatus = "offline"
	RiderOnline  RiderStatus = "online"
	RiderBusy    RiderStatus = "busy"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// orderNext lists the forward transition for each non-terminal state.
// Cancellation is handled separately: it is allowed from every non-terminal
// state and is itself terminal.
var orderNext = map[OrderStatus]OrderStatus{
	StatusPending:   StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusServed,
	StatusServed:    StatusPaid,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusServed, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanTransition implements the order lifecycle. Transitions are monotonic:
// only the single next forward step or cancellation is ever legal.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return orderNext[from] == to
}

// CheckTransition returns a typed error for illegal transitions so the server
// side rejects them even though well-behaved UIs never offer them.
func CheckTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

var deliveryOrder = map[DeliveryStatus]int{
	DeliveryAssigned:    0,
	DeliveryReadyPickup: 1,
	DeliveryPickedUp:    2,
	DeliveryInTransit:   3,
	DeliveryDelivered:   4,
}

func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryOrder[s]
	return ok
}

// CanTransitionDelivery enforces the strictly forward delivery sub-lifecycle.
func CanTransitionDelivery(from, to DeliveryStatus) bool {
	a, okA := deliveryOrder[from]
	b, okB := deliveryOrder[to]
	return okA && okB && b == a+1
}

func CheckDeliveryTransition(from, to DeliveryStatus) error {
	if !CanTransitionDelivery(from, to) {
		return fmt.Errorf("%w: delivery %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

const (
	warningAfter  = 8 * time.Minute
	criticalAfter = 12 * time.Minute
)

// UrgencyAt classifies elapsed age for kitchen display. It drives visual
// urgency only and never auto-transitions state.
func UrgencyAt(createdAt, now time.Time) Urgency {
	elapsed := now.Sub(createdAt)
	switch {
	case elapsed >= criticalAfter:
		return UrgencyCritical
	case elapsed >= warningAfter:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// SortForKitchen orders a board in place: priority orders first, then oldest
// first within each tier. Kitchen staff rely on priority winning even when
// the priority order arrived later, so this is a stable two-key sort.
func SortForKitchen(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].IsPriority != orders[j].IsPriority {
			return orders[i].IsPriority
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
