package commerce

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan = time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
)

func TestFIFOAllocator_OldestFirst(t *testing.T) {
	inv1 := postedInvoice(t, "INV-1", "100", jan)
	inv2 := postedInvoice(t, "INV-2", "100", feb)
	// Out of order on purpose
	targets := TargetsFromInvoices([]*Invoice{inv2, inv1})

	plan, err := NewFIFOAllocator().Allocate(valueobject.NewMoneyFromInt(150), targets)
	require.NoError(t, err)

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, inv1.ID, plan.Allocations[0].InvoiceID)
	assert.True(t, plan.Allocations[0].Amount.Equal(dec("100")))
	assert.Equal(t, inv2.ID, plan.Allocations[1].InvoiceID)
	assert.True(t, plan.Allocations[1].Amount.Equal(dec("50")))
	assert.True(t, plan.Remaining.IsZero())
	assert.Equal(t, []uuid.UUID{inv1.ID}, plan.FullyPaid)
	assert.Equal(t, []uuid.UUID{inv2.ID}, plan.PartiallyPaid)

	for _, a := range plan.Allocations {
		inv := inv1
		if a.InvoiceID == inv2.ID {
			inv = inv2
		}
		require.NoError(t, inv.ApplyPayment(a.Amount))
	}
	assert.True(t, inv1.Debt().IsZero())
	assert.True(t, inv2.Debt().Equal(dec("50")))
}

func TestFIFOAllocator_Properties(t *testing.T) {
	targets := TargetsFromInvoices([]*Invoice{
		postedInvoice(t, "INV-3", "30", mar),
		postedInvoice(t, "INV-1", "10", jan),
		postedInvoice(t, "INV-2", "20", feb),
	})
	allocator := NewFIFOAllocator()

	for _, amount := range []string{"0.01", "5", "10", "25", "60", "1000"} {
		t.Run(amount, func(t *testing.T) {
			plan, err := allocator.Allocate(valueobject.NewMoney(dec(amount)), targets)
			require.NoError(t, err)

			debts := make(map[uuid.UUID]decimal.Decimal)
			for _, tg := range targets {
				debts[tg.InvoiceID] = tg.DebtAmount
			}
			sum := decimal.Zero
			for _, a := range plan.Allocations {
				assert.True(t, a.Amount.LessThanOrEqual(debts[a.InvoiceID]))
				sum = sum.Add(a.Amount)
			}
			assert.True(t, sum.LessThanOrEqual(dec(amount)))
			assert.True(t, sum.Add(plan.Remaining).Equal(dec(amount)))

			again, err := allocator.Allocate(valueobject.NewMoney(dec(amount)), targets)
			require.NoError(t, err)
			assert.Equal(t, plan, again)
		})
	}

	t.Run("excess stays unallocated", func(t *testing.T) {
		plan, err := allocator.Allocate(valueobject.NewMoneyFromInt(100), targets)
		require.NoError(t, err)
		assert.True(t, plan.Remaining.Equal(dec("40")))
		assert.Len(t, plan.FullyPaid, 3)
	})
}

func TestFIFOAllocator_Rejects(t *testing.T) {
	allocator := NewFIFOAllocator()
	targets := TargetsFromInvoices([]*Invoice{postedInvoice(t, "INV-1", "10", jan)})

	_, err := allocator.Allocate(valueobject.ZeroMoney(), targets)
	var vErr *shared.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = allocator.Allocate(valueobject.NewMoneyFromInt(10), nil)
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "party_id", vErr.Field)
}

func TestManualAllocator(t *testing.T) {
	inv1 := postedInvoice(t, "INV-1", "100", jan)
	inv2 := postedInvoice(t, "INV-2", "100", feb)
	targets := TargetsFromInvoices([]*Invoice{inv1, inv2})
	allocator := NewManualAllocator()

	t.Run("amount is the sum of entries", func(t *testing.T) {
		plan, err := allocator.Allocate([]Allocation{
			{InvoiceID: inv2.ID, Amount: dec("30")},
			{InvoiceID: inv1.ID, Amount: dec("70")},
		}, targets)
		require.NoError(t, err)
		assert.True(t, plan.Amount.Equal(dec("100")))
		assert.True(t, plan.Remaining.IsZero())
		assert.Equal(t, inv1.ID, plan.Allocations[0].InvoiceID)
	})

	t.Run("entry above debt is an overrun", func(t *testing.T) {
		_, err := allocator.Allocate([]Allocation{{InvoiceID: inv1.ID, Amount: dec("100.01")}}, targets)
		var overrun *shared.AllocationOverrunError
		require.True(t, errors.As(err, &overrun))
		assert.Equal(t, inv1.ID, overrun.InvoiceID)
	})

	t.Run("repeated entries add up against the cap", func(t *testing.T) {
		_, err := allocator.Allocate([]Allocation{
			{InvoiceID: inv1.ID, Amount: dec("60")},
			{InvoiceID: inv1.ID, Amount: dec("60")},
		}, targets)
		var overrun *shared.AllocationOverrunError
		assert.True(t, errors.As(err, &overrun))
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := allocator.Allocate([]Allocation{{InvoiceID: uuid.New(), Amount: dec("1")}}, targets)
		assert.Error(t, err)
	})

	t.Run("all zero entries", func(t *testing.T) {
		_, err := allocator.Allocate([]Allocation{{InvoiceID: inv1.ID, Amount: decimal.Zero}}, targets)
		assert.Error(t, err)
	})
}
