package commerce

import (
	"fmt"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reconciliation is the invoiced/remaining view of an order for one candidate cart
type Reconciliation struct {
	// IsLast is true when the candidate cart leaves nothing unfulfilled
	IsLast bool
	// RemainingLines are the order lines with quantity still to invoice, before the cart
	RemainingLines []Line
	// Invoiced maps product to quantity already billed by non-cancelled invoices
	Invoiced map[uuid.UUID]decimal.Decimal
}

// InvoicedQuantities sums line quantities per product across the order's
// non-cancelled invoices. Invoices pointing at other orders are ignored.
func InvoicedQuantities(orderID uuid.UUID, invoices []*Invoice) map[uuid.UUID]decimal.Decimal {
	invoiced := make(map[uuid.UUID]decimal.Decimal)
	for _, inv := range invoices {
		if inv == nil || inv.Status == InvoiceStatusCancelled {
			continue
		}
		if inv.SourceOrderID == nil || *inv.SourceOrderID != orderID {
			continue
		}
		for _, l := range inv.Lines {
			invoiced[l.ProductID] = invoiced[l.ProductID].Add(l.Quantity)
		}
	}
	return invoiced
}

// RemainingLines returns the order lines that still have quantity to invoice.
// The line discount is carried in proportion to the remaining quantity.
func RemainingLines(order *Order, invoiced map[uuid.UUID]decimal.Decimal) []Line {
	remaining := make([]Line, 0, len(order.Lines))
	for _, l := range order.Lines {
		left := valueobject.NonNegative(l.Quantity.Sub(invoiced[l.ProductID]))
		if left.IsZero() {
			continue
		}
		discount := l.LineDiscount
		if !left.Equal(l.Quantity) && l.LineDiscount.IsPositive() {
			discount = valueobject.RoundCurrency(l.LineDiscount.Mul(left).Div(l.Quantity))
		}
		remaining = append(remaining, Line{
			ProductID:    l.ProductID,
			Quantity:     left,
			UnitPrice:    l.UnitPrice,
			LineDiscount: discount,
		})
	}
	return remaining
}

// Reconcile checks a candidate cart against what the order still has open.
// A cart line above the remaining quantity, or for a product not on the
// order, is a validation error; nothing is clamped.
func Reconcile(order *Order, invoices []*Invoice, cart []Line) (*Reconciliation, error) {
	if order == nil {
		return nil, shared.NewValidationError("order", "Order is required")
	}
	invoiced := InvoicedQuantities(order.ID, invoices)

	cartQty := make(map[uuid.UUID]decimal.Decimal, len(cart))
	for _, l := range cart {
		orderLine, ok := order.LineFor(l.ProductID)
		if !ok {
			return nil, shared.NewValidationError("lines",
				fmt.Sprintf("Product %s is not on order %s", l.ProductID, order.Code))
		}
		cartQty[l.ProductID] = cartQty[l.ProductID].Add(l.Quantity)
		left := valueobject.NonNegative(orderLine.Quantity.Sub(invoiced[l.ProductID]))
		if cartQty[l.ProductID].GreaterThan(left) {
			return nil, shared.NewValidationError("lines",
				fmt.Sprintf("Quantity %s for product %s exceeds remaining %s", cartQty[l.ProductID], l.ProductID, left))
		}
	}

	isLast := true
	for _, l := range order.Lines {
		if invoiced[l.ProductID].Add(cartQty[l.ProductID]).LessThan(l.Quantity) {
			isLast = false
			break
		}
	}

	return &Reconciliation{
		IsLast:         isLast,
		RemainingLines: RemainingLines(order, invoiced),
		Invoiced:       invoiced,
	}, nil
}
