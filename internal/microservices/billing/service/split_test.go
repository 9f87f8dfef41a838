package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/domain"
)

func TestEqualSplitRemainderGoesToLast(t *testing.T) {
	alloc := NewAllocator(0)

	splits, err := alloc.Equal(1000, 3)
	require.NoError(t, err)
	require.Len(t, splits, 3)
	require.Equal(t, int64(334), splits[0].Amount)
	require.Equal(t, int64(334), splits[1].Amount)
	require.Equal(t, int64(332), splits[2].Amount)
}

func TestEqualSplitAlwaysSumsToTotal(t *testing.T) {
	alloc := NewAllocator(0)

	for _, total := range []int64{1, 999, 1000, 1001, 123457} {
		for count := 2; count <= 7; count++ {
			splits, err := alloc.Equal(total, count)
			require.NoError(t, err)
			var sum int64
			for _, s := range splits {
				sum += s.Amount
			}
			require.Equal(t, total, sum, "total=%d count=%d", total, count)
		}
	}
}

func TestEqualSplitRejectsSinglePayer(t *testing.T) {
	alloc := NewAllocator(0)
	_, err := alloc.Equal(1000, 1)
	require.ErrorIs(t, err, ErrSplitCount)
}

func TestCustomSplitExactMatch(t *testing.T) {
	alloc := NewAllocator(0)

	splits, err := alloc.Custom(1000, []int64{500, 500})
	require.NoError(t, err)
	require.Len(t, splits, 2)
	require.Equal(t, int64(500), splits[0].Amount)
	require.Equal(t, 1, splits[0].Number)
	require.Equal(t, 2, splits[1].Number)
}

func TestCustomSplitReportsShortfallAndExcess(t *testing.T) {
	alloc := NewAllocator(0)

	_, err := alloc.Custom(1000, []int64{500, 499})
	require.ErrorIs(t, err, ErrSplitMismatch)
	require.Contains(t, err.Error(), "short by 1")

	_, err = alloc.Custom(1000, []int64{500, 503})
	require.ErrorIs(t, err, ErrSplitMismatch)
	require.Contains(t, err.Error(), "over by 3")
}

func TestCustomSplitRejectsNegativeAmounts(t *testing.T) {
	alloc := NewAllocator(0)
	_, err := alloc.Custom(1000, []int64{1100, -100})
	require.ErrorIs(t, err, ErrSplitMismatch)
}

func splitTestOrder() domain.Order {
	// 10% tax for easy mental arithmetic.
	return domain.Order{
		ID:       1,
		Subtotal: 2000,
		Tax:      200,
		Total:    2200,
		Items: []domain.OrderItem{
			{ID: 11, Subtotal: 1200},
			{ID: 12, Subtotal: 500},
			{ID: 13, Subtotal: 300},
		},
	}
}

func TestByItemsProratesTax(t *testing.T) {
	alloc := NewAllocator(0.99)
	order := splitTestOrder()

	splits, err := alloc.ByItems(order, []ItemBucket{
		{Label: "Alice", ItemIDs: []int64{11}},
		{Label: "Bob", ItemIDs: []int64{12, 13}},
	})
	require.NoError(t, err)
	require.Len(t, splits, 2)
	require.Equal(t, int64(1320), splits[0].Amount) // 1200 * 1.10
	require.Equal(t, int64(880), splits[1].Amount)  // 800 * 1.10
	require.Equal(t, []int64{11}, splits[0].ItemIDs)
	require.Equal(t, []int64{12, 13}, splits[1].ItemIDs)
}

func TestByItemsLaterBucketStealsItem(t *testing.T) {
	alloc := NewAllocator(0.5)
	order := splitTestOrder()

	splits, err := alloc.ByItems(order, []ItemBucket{
		{Label: "Alice", ItemIDs: []int64{11, 12}},
		{Label: "Bob", ItemIDs: []int64{12, 13}},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{11}, splits[0].ItemIDs)
	require.Equal(t, []int64{12, 13}, splits[1].ItemIDs)
	require.Equal(t, int64(1320), splits[0].Amount)
	require.Equal(t, int64(880), splits[1].Amount)
}

func TestByItemsEnforcesCoverageThreshold(t *testing.T) {
	alloc := NewAllocator(0.99)
	order := splitTestOrder()

	// Only 300 of 2000 subtotal claimed.
	_, err := alloc.ByItems(order, []ItemBucket{
		{Label: "Alice", ItemIDs: []int64{13}},
	})
	require.ErrorIs(t, err, ErrSplitBelowThreshold)
}

func TestByItemsRejectsForeignItem(t *testing.T) {
	alloc := NewAllocator(0.99)
	order := splitTestOrder()

	_, err := alloc.ByItems(order, []ItemBucket{
		{Label: "Alice", ItemIDs: []int64{11, 12, 99}},
	})
	require.ErrorIs(t, err, ErrUnknownItem)
}
