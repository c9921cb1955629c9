package commerce

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one product row of a cart, order or invoice
type Line struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineDiscount decimal.Decimal `json:"line_discount"`
}

// NewLine validates and normalises a line
func NewLine(productID uuid.UUID, quantity, unitPrice, lineDiscount decimal.Decimal) (Line, error) {
	l := Line{
		ProductID:    productID,
		Quantity:     valueobject.RoundQuantity(quantity),
		UnitPrice:    unitPrice,
		LineDiscount: lineDiscount,
	}
	if err := l.Validate(); err != nil {
		return Line{}, err
	}
	return l, nil
}

// Validate checks a single line
func (l Line) Validate() error {
	if l.ProductID == uuid.Nil {
		return shared.NewValidationError("product_id", "Product ID cannot be empty")
	}
	if !l.Quantity.IsPositive() {
		return shared.NewValidationError("quantity", "Quantity must be positive")
	}
	if l.UnitPrice.IsNegative() {
		return shared.NewValidationError("unit_price", "Unit price cannot be negative")
	}
	if l.LineDiscount.IsNegative() {
		return shared.NewValidationError("line_discount", "Line discount cannot be negative")
	}
	if l.LineDiscount.GreaterThan(l.Quantity.Mul(l.UnitPrice)) {
		return shared.NewValidationError("line_discount", "Line discount cannot exceed line amount")
	}
	return nil
}

// TotalPrice is quantity times unit price less the line discount
func (l Line) TotalPrice() decimal.Decimal {
	return valueobject.RoundCurrency(l.Quantity.Mul(l.UnitPrice).Sub(l.LineDiscount))
}

// Equal compares two lines field by field
func (l Line) Equal(other Line) bool {
	return l.ProductID == other.ProductID &&
		l.Quantity.Equal(other.Quantity) &&
		l.UnitPrice.Equal(other.UnitPrice) &&
		l.LineDiscount.Equal(other.LineDiscount)
}

// ValidateCart rejects an empty cart, invalid lines and duplicate products
func ValidateCart(lines []Line) error {
	if len(lines) == 0 {
		return shared.NewValidationError("lines", "Cart cannot be empty")
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if err := l.Validate(); err != nil {
			return err
		}
		if _, dup := seen[l.ProductID]; dup {
			return shared.NewValidationError("lines", "Product appears more than once in cart: "+l.ProductID.String())
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

// SameLines reports whether two carts hold the same products with the same
// quantities and prices, ignoring order.
func SameLines(a, b []Line) bool {
	if len(a) != len(b) {
		return false
	}
	byProduct := make(map[uuid.UUID]Line, len(a))
	for _, l := range a {
		byProduct[l.ProductID] = l
	}
	for _, l := range b {
		other, ok := byProduct[l.ProductID]
		if !ok || !other.Equal(l) {
			return false
		}
	}
	return true
}

// Subtotal sums line totals
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalPrice())
	}
	return total
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
