package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/domain"
)

var (
	ErrSplitCount          = errors.New("equal split needs at least two people")
	ErrSplitMismatch       = errors.New("custom split does not match order total")
	ErrSplitBelowThreshold = errors.New("item split does not cover enough of the order total")
	ErrUnknownItem         = errors.New("item does not belong to this order")
)

// Allocator partitions a finalized order total into payment obligations.
// All arithmetic is on smallest-currency-unit integers; decimal is used
// where tax proration needs fractional intermediate values.
type Allocator struct {
	// AcceptThreshold is the fraction of the order total a by-item split must
	// reach. The tolerance absorbs per-bucket rounding drift from tax
	// proration; it is configuration, not a hard business rule.
	AcceptThreshold float64
}

func NewAllocator(acceptThreshold float64) Allocator {
	if acceptThreshold <= 0 || acceptThreshold > 1 {
		acceptThreshold = 0.99
	}
	return Allocator{AcceptThreshold: acceptThreshold}
}

// Equal gives everyone ceil(total/count); the last split absorbs the
// remainder so the sum always equals the total exactly and naive floor
// division can never under-collect.
func (a Allocator) Equal(total int64, count int) ([]domain.Split, error) {
	if count < 2 {
		return nil, ErrSplitCount
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", ErrSplitMismatch)
	}
	perPerson := (total + int64(count) - 1) / int64(count)
	last := total - perPerson*int64(count-1)

	splits := make([]domain.Split, count)
	for i := 0; i < count; i++ {
		amount := perPerson
		if i == count-1 {
			amount = last
		}
		splits[i] = domain.Split{
			Number: i + 1,
			Amount: amount,
			Label:  fmt.Sprintf("Person %d", i+1),
		}
	}
	return splits, nil
}

// VerifyTotal re-checks client-confirmed splits against the order total
// right before they are persisted. The split endpoints compute correct
// amounts, but the completion request carries whatever the client sends
// back, so the sum is never trusted. Overpayment is always rejected;
// underpayment is tolerated down to the same floor by-item splits get,
// since their per-bucket rounding can legitimately land below the total.
func (a Allocator) VerifyTotal(total int64, splits []domain.Split) error {
	var sum int64
	for _, s := range splits {
		if s.Amount < 0 {
			return fmt.Errorf("%w: negative amount", ErrSplitMismatch)
		}
		sum += s.Amount
	}
	if sum > total {
		return fmt.Errorf("%w: over by %d", ErrSplitMismatch, sum-total)
	}
	floor := decimal.NewFromInt(total).
		Mul(decimal.NewFromFloat(a.AcceptThreshold)).
		Round(0).IntPart()
	if sum < floor {
		return fmt.Errorf("%w: short by %d", ErrSplitMismatch, total-sum)
	}
	return nil
}

// ItemBucket is one payer's claimed items in a by-item split.
type ItemBucket struct {
	Label   string  `json:"label"`
	ItemIDs []int64 `json:"item_ids"`
}

// ByItems assigns each item to exactly one bucket and prorates tax by
// consumption. An item named in a later bucket is removed from any earlier
// one: mutual exclusivity is enforced at assignment time, not validated
// after the fact.
func (a Allocator) ByItems(order domain.Order, buckets []ItemBucket) ([]domain.Split, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: no buckets", ErrSplitBelowThreshold)
	}
	itemSubtotal := make(map[int64]int64, len(order.Items))
	for _, it := range order.Items {
		itemSubtotal[it.ID] = it.Subtotal
	}

	assigned := make(map[int64]int) // item id -> bucket index, last assignment wins
	for idx, b := range buckets {
		for _, id := range b.ItemIDs {
			if _, ok := itemSubtotal[id]; !ok {
				return nil, fmt.Errorf("%w: item %d", ErrUnknownItem, id)
			}
			assigned[id] = idx
		}
	}

	taxRate := decimal.Zero
	if order.Subtotal > 0 {
		taxRate = decimal.NewFromInt(order.Tax).Div(decimal.NewFromInt(order.Subtotal))
	}

	splits := make([]domain.Split, len(buckets))
	var sum int64
	for idx, b := range buckets {
		var bucketSubtotal int64
		var ids []int64
		for _, id := range b.ItemIDs {
			if assigned[id] != idx {
				continue
			}
			bucketSubtotal += itemSubtotal[id]
			ids = append(ids, id)
		}
		amount := decimal.NewFromInt(bucketSubtotal).
			Mul(decimal.NewFromInt(1).Add(taxRate)).
			Round(0).IntPart()
		sum += amount
		splits[idx] = domain.Split{
			Number:  idx + 1,
			Amount:  amount,
			ItemIDs: ids,
			Label:   b.Label,
		}
	}

	floor := decimal.NewFromInt(order.Total).
		Mul(decimal.NewFromFloat(a.AcceptThreshold)).
		Round(0).IntPart()
	if sum < floor {
		return nil, fmt.Errorf("%w: buckets cover %d of %d", ErrSplitBelowThreshold, sum, order.Total)
	}
	return splits, nil
}

// Custom takes operator-entered amounts and accepts them only when they hit
// the order total within one smallest currency unit; the error reports the
// exact shortfall or excess so the operator can correct the entry.
func (a Allocator) Custom(total int64, amounts []int64) ([]domain.Split, error) {
	if len(amounts) < 2 {
		return nil, ErrSplitCount
	}
	var sum int64
	for _, amt := range amounts {
		if amt < 0 {
			return nil, fmt.Errorf("%w: negative amount", ErrSplitMismatch)
		}
		sum += amt
	}
	switch diff := sum - total; {
	case diff < 0:
		return nil, fmt.Errorf("%w: short by %d", ErrSplitMismatch, -diff)
	case diff > 0:
		return nil, fmt.Errorf("%w: over by %d", ErrSplitMismatch, diff)
	}

	splits := make([]domain.Split, len(amounts))
	for i, amt := range amounts {
		splits[i] = domain.Split{
			Number: i + 1,
			Amount: amt,
			Label:  fmt.Sprintf("Person %d", i+1),
		}
	}
	return splits, nil
}
