package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOrderTransitionsAreMonotonic(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusPreparing))
	require.True(t, CanTransition(StatusPreparing, StatusReady))
	require.True(t, CanTransition(StatusReady, StatusServed))
	require.True(t, CanTransition(StatusServed, StatusPaid))

	// No going backwards or skipping ahead.
	require.False(t, CanTransition(StatusPreparing, StatusPending))
	require.False(t, CanTransition(StatusReady, StatusPreparing))
	require.False(t, CanTransition(StatusPending, StatusReady))
	require.False(t, CanTransition(StatusPending, StatusServed))
	require.False(t, CanTransition(StatusPreparing, StatusPaid))
}

func TestCancelReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusServed} {
		require.True(t, CanTransition(from, StatusCancelled), "cancel from %s", from)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, from := range []OrderStatus{StatusPaid, StatusCancelled} {
		for _, to := range []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusServed, StatusPaid, StatusCancelled} {
			require.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransitionRejectsUnknownStatus(t *testing.T) {
	err := CheckTransition(StatusPending, OrderStatus("cooking"))
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeliveryTransitionsStrictlyForward(t *testing.T) {
	require.True(t, CanTransitionDelivery(DeliveryAssigned, DeliveryReadyPickup))
	require.True(t, CanTransitionDelivery(DeliveryReadyPickup, DeliveryPickedUp))
	require.True(t, CanTransitionDelivery(DeliveryPickedUp, DeliveryInTransit))
	require.True(t, CanTransitionDelivery(DeliveryInTransit, DeliveryDelivered))

	require.False(t, CanTransitionDelivery(DeliveryAssigned, DeliveryPickedUp))
	require.False(t, CanTransitionDelivery(DeliveryInTransit, DeliveryPickedUp))
	require.False(t, CanTransitionDelivery(DeliveryDelivered, DeliveryAssigned))
}

func TestUrgencyBoundaries(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		age  time.Duration
		want Urgency
	}{
		{0, UrgencyNormal},
		{7*time.Minute + 59*time.Second, UrgencyNormal},
		{8 * time.Minute, UrgencyWarning},
		{11*time.Minute + 59*time.Second, UrgencyWarning},
		{12 * time.Minute, UrgencyCritical},
		{45 * time.Minute, UrgencyCritical},
	}
	for _, tc := range cases {
		got := UrgencyAt(now.Add(-tc.age), now)
		require.Equal(t, tc.want, got, "age %s", tc.age)
	}
}

func TestSortForKitchenPriorityBeatsAge(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := []Order{
		{Number: "ORD_20250601_001", CreatedAt: base},
		{Number: "ORD_20250601_002", CreatedAt: base.Add(5 * time.Minute), IsPriority: true},
		{Number: "ORD_20250601_003", CreatedAt: base.Add(time.Minute)},
	}
	SortForKitchen(orders)

	// The later priority order jumps the queue; the rest stay oldest first.
	require.Equal(t, "ORD_20250601_002", orders[0].Number)
	require.Equal(t, "ORD_20250601_001", orders[1].Number)
	require.Equal(t, "ORD_20250601_003", orders[2].Number)
}

func TestSortForKitchenStableWithinTier(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := []Order{
		{Number: "A", CreatedAt: base, IsPriority: true},
		{Number: "B", CreatedAt: base, IsPriority: true},
	}
	SortForKitchen(orders)
	require.Equal(t, "A", orders[0].Number)
	require.Equal(t, "B", orders[1].Number)
}
