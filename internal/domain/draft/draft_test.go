package draft

import (
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	id := uuid.New()

	t.Run("document key", func(t *testing.T) {
		k := DocumentKey(DocumentTypeOrder, id)
		assert.NoError(t, k.Validate())
		assert.Equal(t, "order:"+id.String(), k.String())
		assert.False(t, k.IsTab())
	})

	t.Run("tab key", func(t *testing.T) {
		k := NewTabKey(DocumentTypeInvoice)
		assert.NoError(t, k.Validate())
		assert.True(t, k.IsTab())
		assert.Contains(t, k.String(), "invoice:tab:")
		assert.NotEqual(t, k, NewTabKey(DocumentTypeInvoice))
	})

	t.Run("invalid keys", func(t *testing.T) {
		assert.Error(t, Key{DocumentType: "quote", DocumentID: id}.Validate())
		assert.Error(t, Key{DocumentType: DocumentTypeOrder}.Validate())
		assert.Error(t, Key{DocumentType: DocumentTypeOrder, DocumentID: id, TabID: "t"}.Validate())
	})
}

func TestChangedFields(t *testing.T) {
	productA, productB := uuid.New(), uuid.New()
	customer := uuid.New()
	base := &Snapshot{
		DocumentType: DocumentTypeOrder,
		Lines: []commerce.Line{
			{ProductID: productA, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)},
			{ProductID: productB, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(5)},
		},
		CustomerID:     &customer,
		DiscountAmount: decimal.NewFromInt(1),
	}

	t.Run("identical snapshots", func(t *testing.T) {
		same := *base
		same.SavedAt = time.Now()
		assert.Empty(t, ChangedFields(base, &same))
		assert.False(t, HasMeaningfulChange(base, &same))
	})

	t.Run("numerically equal decimals are unchanged", func(t *testing.T) {
		same := *base
		same.DiscountAmount = decimal.RequireFromString("1.00")
		assert.False(t, HasMeaningfulChange(base, &same))
	})

	t.Run("quantity change", func(t *testing.T) {
		changed := *base
		changed.Lines = []commerce.Line{base.Lines[0], {ProductID: productB, Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(5)}}
		assert.Equal(t, []string{"lines"}, ChangedFields(base, &changed))
	})

	t.Run("several fields", func(t *testing.T) {
		other := uuid.New()
		changed := *base
		changed.CustomerID = &other
		changed.PaymentAmount = decimal.NewFromInt(50)
		changed.DeliveryMeta = map[string]any{"address": "12 Main St"}
		assert.Equal(t, []string{"customer_id", "payment_amount", "delivery_meta"}, ChangedFields(base, &changed))
	})

	t.Run("nil sides", func(t *testing.T) {
		assert.True(t, HasMeaningfulChange(nil, base))
		assert.False(t, HasMeaningfulChange(nil, nil))
	})
}

func TestDecide(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)
	id := uuid.New()
	baselined := &Snapshot{DocumentID: &id, DocumentType: DocumentTypeOrder, CapturedServerUpdatedAt: &t1}

	assert.Equal(t, OutcomeNoDraft, Decide(nil, t1, true))
	assert.Equal(t, OutcomeRestored, Decide(baselined, t1, true), "server unchanged since baseline")
	assert.Equal(t, OutcomeDiscardedStale, Decide(baselined, t2, true), "someone saved after the baseline")
	assert.Equal(t, OutcomeDiscardedMissing, Decide(baselined, time.Time{}, false))

	unsaved := &Snapshot{DocumentType: DocumentTypeOrder}
	assert.Equal(t, OutcomeRestored, Decide(unsaved, time.Time{}, false))
	assert.Equal(t, OutcomeDiscardedStale, Decide(unsaved, t1, true))
}
