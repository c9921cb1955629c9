package commerce

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/backoffice/internal/domain/pricing"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func priceFallbacks(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "pos_price_fallbacks_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestProposeCartPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	reader := sdkmetric.NewManualReader()
	metrics, err := telemetry.NewCommerceMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)
	f.svc.SetMetrics(metrics)
	f.svc.SetMaxParallelLookups(2)

	book := uuid.New()
	otherBook := uuid.New()
	covered, outside, flaky := uuid.New(), uuid.New(), uuid.New()

	f.catalog.On("ResolvePrice", mock.Anything, covered, f.branchID, book).
		Return(pricing.CatalogPrice{Price: d("42"), MatchedPriceBookID: &book}, nil)
	f.catalog.On("ResolvePrice", mock.Anything, outside, f.branchID, book).
		Return(pricing.CatalogPrice{Price: d("99"), MatchedPriceBookID: &otherBook}, nil)
	f.catalog.On("ResolvePrice", mock.Anything, flaky, f.branchID, book).
		Return(pricing.CatalogPrice{}, errors.New("catalog timeout"))

	res, err := f.svc.ProposeCartPrices(ctx, ProposeCartRequest{
		BranchID:    f.branchID,
		PriceBookID: &book,
		Items: []PriceItem{
			{ProductID: covered, BasePrice: d("50")},
			{ProductID: outside, BasePrice: d("60")},
			{ProductID: flaky, BasePrice: d("70")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Quotes, 3)

	assert.Equal(t, covered, res.Quotes[0].ProductID)
	assert.Equal(t, pricing.CoverageCovered, res.Quotes[0].Coverage)
	assert.True(t, res.Quotes[0].Price.Equal(d("42")))
	assert.False(t, res.Quotes[0].NeedsDecision)

	assert.Equal(t, pricing.CoverageNotCovered, res.Quotes[1].Coverage)
	assert.True(t, res.Quotes[1].NeedsDecision)
	assert.True(t, res.Quotes[1].Price.Equal(d("60")))

	assert.Equal(t, pricing.CoverageUnavailable, res.Quotes[2].Coverage)
	assert.True(t, res.Quotes[2].Price.Equal(d("70")))
	assert.NotEmpty(t, res.Quotes[2].Warning)

	assert.True(t, res.NeedsDecision)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, int64(1), priceFallbacks(t, reader))
	f.catalog.AssertExpectations(t)
}

func TestProposeCartPrices_WithoutPriceBook(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.ProposeCartPrices(context.Background(), ProposeCartRequest{
		BranchID: f.branchID,
		Items:    []PriceItem{{ProductID: uuid.New(), BasePrice: d("12.5")}},
	})
	require.NoError(t, err)
	assert.Equal(t, pricing.CoverageNotRequested, res.Quotes[0].Coverage)
	assert.Equal(t, pricing.PriceSourceBase, res.Quotes[0].Source)
	assert.False(t, res.NeedsDecision)
	f.catalog.AssertNotCalled(t, "ResolvePrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProposeCartPrices_CancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	book := uuid.New()
	product := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.catalog.On("ResolvePrice", mock.Anything, product, f.branchID, book).
		Return(pricing.CatalogPrice{}, context.Canceled)

	_, err := f.svc.ProposeCartPrices(ctx, ProposeCartRequest{
		BranchID:    f.branchID,
		PriceBookID: &book,
		Items:       []PriceItem{{ProductID: product, BasePrice: d("10")}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfirmPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	book, otherBook := uuid.New(), uuid.New()
	product := uuid.New()
	f.catalog.On("ResolvePrice", mock.Anything, product, f.branchID, book).
		Return(pricing.CatalogPrice{Price: d("99"), MatchedPriceBookID: &otherBook}, nil)

	_, err := f.svc.ConfirmPrice(ctx, ConfirmPriceRequest{
		ProductID:   product,
		BranchID:    f.branchID,
		PriceBookID: &book,
		BasePrice:   d("60"),
		Decision:    pricing.DecisionAbort,
	})
	assert.ErrorIs(t, err, pricing.ErrPriceAborted)

	override := d("55")
	quote, err := f.svc.ConfirmPrice(ctx, ConfirmPriceRequest{
		ProductID:     product,
		BranchID:      f.branchID,
		PriceBookID:   &book,
		BasePrice:     d("60"),
		Decision:      pricing.DecisionProceed,
		OverridePrice: &override,
	})
	require.NoError(t, err)
	assert.True(t, quote.Confirmed)
	assert.False(t, quote.NeedsDecision)
	assert.Equal(t, pricing.PriceSourceOverride, quote.Source)
	assert.True(t, quote.Price.Equal(d("55")))
}
