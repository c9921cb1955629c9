package commerce

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_PartialThenLast(t *testing.T) {
	productA, productB := uuid.New(), uuid.New()
	order := createTestOrder(t, testLine(productA, "10", "5"), testLine(productB, "5", "8"))
	require.NoError(t, order.SetDiscount(dec("20"), decimal.Zero))

	first := []Line{testLine(productA, "6", "5"), testLine(productB, "5", "8")}
	rec, err := Reconcile(order, nil, first)
	require.NoError(t, err)
	assert.False(t, rec.IsLast, "A still has 4 remaining")
	assert.Len(t, rec.RemainingLines, 2)

	inv1 := createTestInvoiceFor(t, order, first...)
	require.NoError(t, inv1.SetDiscount(dec("5")))

	second := []Line{testLine(productA, "4", "5")}
	rec, err = Reconcile(order, []*Invoice{inv1}, second)
	require.NoError(t, err)
	assert.True(t, rec.IsLast)
	require.Len(t, rec.RemainingLines, 1, "fully invoiced B is excluded")
	assert.Equal(t, productA, rec.RemainingLines[0].ProductID)
	assert.True(t, rec.RemainingLines[0].Quantity.Equal(dec("4")))

	proration := ProrateDiscount(order, []*Invoice{inv1})
	assert.True(t, proration.Available.Equal(dec("15")))
	assert.True(t, proration.RequiresConfirmation())
}

func TestReconcile_RejectsExcess(t *testing.T) {
	productA := uuid.New()
	order := createTestOrder(t, testLine(productA, "10", "5"))
	inv := createTestInvoiceFor(t, order, testLine(productA, "7", "5"))

	t.Run("above remaining", func(t *testing.T) {
		_, err := Reconcile(order, []*Invoice{inv}, []Line{testLine(productA, "4", "5")})
		var vErr *shared.ValidationError
		require.True(t, errors.As(err, &vErr))
	})

	t.Run("product not on order", func(t *testing.T) {
		_, err := Reconcile(order, []*Invoice{inv}, []Line{testLine(uuid.New(), "1", "5")})
		assert.Error(t, err)
	})

	t.Run("cancelled invoices release quantity", func(t *testing.T) {
		require.NoError(t, inv.Cancel("void"))
		rec, err := Reconcile(order, []*Invoice{inv}, []Line{testLine(productA, "10", "5")})
		require.NoError(t, err)
		assert.True(t, rec.IsLast)
	})
}

func TestReconcile_IgnoresForeignInvoices(t *testing.T) {
	productA := uuid.New()
	order := createTestOrder(t, testLine(productA, "2", "5"))
	other := createTestOrder(t, testLine(productA, "2", "5"))
	foreign := createTestInvoiceFor(t, other, testLine(productA, "2", "5"))

	rec, err := Reconcile(order, []*Invoice{foreign}, nil)
	require.NoError(t, err)
	assert.False(t, rec.IsLast)
	assert.Len(t, rec.RemainingLines, 1)
}

func TestRemainingLines_ProratesLineDiscount(t *testing.T) {
	productA := uuid.New()
	line := Line{ProductID: productA, Quantity: dec("4"), UnitPrice: dec("10"), LineDiscount: dec("10")}
	order := createTestOrder(t, line)

	remaining := RemainingLines(order, map[uuid.UUID]decimal.Decimal{productA: dec("1")})
	require.Len(t, remaining, 1)
	assert.True(t, remaining[0].Quantity.Equal(dec("3")))
	assert.True(t, remaining[0].LineDiscount.Equal(dec("7.5")))
}

// Random partial fulfilment sequences never over-invoice and flag isLast
// exactly when the order is covered.
func TestReconcile_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		lineCount := 1 + rng.Intn(4)
		lines := make([]Line, lineCount)
		for i := range lines {
			lines[i] = testLine(uuid.New(), decimal.NewFromInt(int64(1+rng.Intn(10))).String(), "3")
		}
		order := createTestOrder(t, lines...)
		var invoices []*Invoice

		for step := 0; step < 20; step++ {
			rec, err := Reconcile(order, invoices, nil)
			require.NoError(t, err)
			if len(rec.RemainingLines) == 0 {
				break
			}

			cart := make([]Line, 0)
			for _, rl := range rec.RemainingLines {
				take := rng.Int63n(rl.Quantity.IntPart() + 1)
				if take > 0 {
					cart = append(cart, testLine(rl.ProductID, decimal.NewFromInt(take).String(), "3"))
				}
			}
			if len(cart) == 0 {
				continue
			}

			rec, err = Reconcile(order, invoices, cart)
			require.NoError(t, err)

			invoices = append(invoices, createTestInvoiceFor(t, order, cart...))
			invoiced := InvoicedQuantities(order.ID, invoices)

			covered := true
			for _, l := range order.Lines {
				assert.True(t, invoiced[l.ProductID].LessThanOrEqual(l.Quantity))
				if invoiced[l.ProductID].LessThan(l.Quantity) {
					covered = false
				}
			}
			assert.Equal(t, covered, rec.IsLast)
		}
	}
}
