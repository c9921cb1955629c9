package draft

import (
	"reflect"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/google/uuid"
)

// ChangedFields lists the snapshot fields that differ between two states.
// SavedAt and the captured baseline are bookkeeping and never count.
func ChangedFields(before, after *Snapshot) []string {
	if before == nil && after == nil {
		return nil
	}
	if before == nil || after == nil {
		return []string{"*"}
	}

	changed := make([]string, 0)
	if !commerce.SameLines(before.Lines, after.Lines) || !sameOrder(before.Lines, after.Lines) {
		changed = append(changed, "lines")
	}
	if !sameID(before.CustomerID, after.CustomerID) {
		changed = append(changed, "customer_id")
	}
	if !before.DiscountAmount.Equal(after.DiscountAmount) {
		changed = append(changed, "discount_amount")
	}
	if !before.DiscountRatio.Equal(after.DiscountRatio) {
		changed = append(changed, "discount_ratio")
	}
	if !before.PaymentAmount.Equal(after.PaymentAmount) {
		changed = append(changed, "payment_amount")
	}
	if !reflect.DeepEqual(normalizeMeta(before.DeliveryMeta), normalizeMeta(after.DeliveryMeta)) {
		changed = append(changed, "delivery_meta")
	}
	if before.Note != after.Note {
		changed = append(changed, "note")
	}
	return changed
}

// HasMeaningfulChange reports whether after differs from before in any tracked field
func HasMeaningfulChange(before, after *Snapshot) bool {
	return len(ChangedFields(before, after)) > 0
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameOrder(a, b []commerce.Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ProductID != b[i].ProductID {
			return false
		}
	}
	return true
}

func normalizeMeta(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
