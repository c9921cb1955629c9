package commerce

import (
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DiscountProration is the unused order-level discount that may be applied
// to the order's last invoice. A positive Available always needs an explicit
// decision from the user before it is applied.
type DiscountProration struct {
	OrderDiscount decimal.Decimal `json:"order_discount"`
	UsedDiscount  decimal.Decimal `json:"used_discount"`
	Available     decimal.Decimal `json:"available"`
}

// RequiresConfirmation reports whether the user must decide on the discount
func (p DiscountProration) RequiresConfirmation() bool {
	return p.Available.IsPositive()
}

// ProrateDiscount computes max(0, orderDiscount - sum of prior invoice discounts)
// over the order's non-cancelled invoices.
func ProrateDiscount(order *Order, priorInvoices []*Invoice) DiscountProration {
	used := decimal.Zero
	for _, inv := range priorInvoices {
		if inv == nil || inv.Status == InvoiceStatusCancelled {
			continue
		}
		if inv.SourceOrderID == nil || *inv.SourceOrderID != order.ID {
			continue
		}
		used = used.Add(inv.DiscountAmount)
	}
	orderDiscount := order.EffectiveDiscount()
	return DiscountProration{
		OrderDiscount: orderDiscount,
		UsedDiscount:  used,
		Available:     valueobject.NonNegative(orderDiscount.Sub(used)),
	}
}
