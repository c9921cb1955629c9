package pricing

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DecisionKind is the caller's answer to a NotCovered quote
type DecisionKind string

const (
	DecisionProceed DecisionKind = "PROCEED"
	DecisionAbort   DecisionKind = "ABORT"
)

// Decision continues with a price or aborts adding the item.
// Proceed uses the base price unless OverridePrice is set.
type Decision struct {
	Kind          DecisionKind
	OverridePrice *decimal.Decimal
}

// Proceed accepts the base price
func Proceed() Decision {
	return Decision{Kind: DecisionProceed}
}

// ProceedWithPrice accepts an explicit price
func ProceedWithPrice(price decimal.Decimal) Decision {
	return Decision{Kind: DecisionProceed, OverridePrice: &price}
}

// Abort rejects the item
func Abort() Decision {
	return Decision{Kind: DecisionAbort}
}

// ErrPriceAborted is returned when the caller aborted a NotCovered item
var ErrPriceAborted = shared.NewDomainError("PRICE_ABORTED", "Item was not added: product is outside the selected price book")

// Confirm applies a decision to a quote and returns the final price.
// Quotes that need no decision pass through unchanged.
func Confirm(q Quote, d Decision) (Quote, error) {
	if !q.NeedsDecision() {
		return q, nil
	}
	switch d.Kind {
	case DecisionAbort:
		return Quote{}, ErrPriceAborted
	case DecisionProceed:
		confirmed := q
		confirmed.Confirmed = true
		if d.OverridePrice != nil {
			if d.OverridePrice.IsNegative() {
				return Quote{}, shared.NewValidationError("override_price", "Override price cannot be negative")
			}
			confirmed.Price = *d.OverridePrice
			confirmed.Source = PriceSourceOverride
			return confirmed, nil
		}
		confirmed.Price = q.BasePrice
		confirmed.Source = PriceSourceBase
		return confirmed, nil
	}
	return Quote{}, shared.NewValidationError("decision", "Decision must be PROCEED or ABORT")
}
