package commerce

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLine(productID uuid.UUID, qty, price string) Line {
	return Line{ProductID: productID, Quantity: dec(qty), UnitPrice: dec(price), LineDiscount: decimal.Zero}
}

func createTestOrder(t *testing.T, lines ...Line) *Order {
	t.Helper()
	order, err := NewOrder("SO-2026-00001", uuid.New(), uuid.New(), lines)
	require.NoError(t, err)
	require.NoError(t, order.Confirm())
	order.ClearDomainEvents()
	return order
}

func createTestInvoiceFor(t *testing.T, order *Order, lines ...Line) *Invoice {
	t.Helper()
	inv, err := NewInvoice("INV-2026-00001", order.CustomerID, order.BranchID, lines)
	require.NoError(t, err)
	require.NoError(t, inv.LinkSourceOrder(order.ID))
	require.NoError(t, inv.Post())
	return inv
}

func postedInvoice(t *testing.T, code string, debt string, issuedAt time.Time) *Invoice {
	t.Helper()
	inv, err := NewInvoice(code, uuid.New(), uuid.New(), []Line{testLine(uuid.New(), "1", debt)})
	require.NoError(t, err)
	inv.CreatedAt = issuedAt
	require.NoError(t, inv.Post())
	return inv
}
