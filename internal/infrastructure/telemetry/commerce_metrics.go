package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor gets no meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Metric attribute keys
var (
	AttrEventType      = attribute.Key("event_type")
	AttrConversionPath = attribute.Key("conversion_path")
	AttrFailedStep     = attribute.Key("failed_step")
	AttrCoverage       = attribute.Key("coverage")
	AttrDocumentType   = attribute.Key("document_type")
	AttrPaymentMethod  = attribute.Key("payment_method")
	AttrOperation      = attribute.Key("operation")
)

// CommerceMetrics holds the document lifecycle instruments. It also handles
// domain events so every committed transition is counted once.
type CommerceMetrics struct {
	documentEvents     metric.Int64Counter
	conversions        metric.Int64Counter
	partialCompletions metric.Int64Counter
	priceFallbacks     metric.Int64Counter
	staleWrites        metric.Int64Counter
	paymentAmount      metric.Float64Counter
	operationDuration  metric.Float64Histogram
}

// NewCommerceMetrics registers the instruments on meter
func NewCommerceMetrics(meter metric.Meter) (*CommerceMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &CommerceMetrics{}
	var err error
	if m.documentEvents, err = meter.Int64Counter("pos_document_events_total",
		metric.WithDescription("Committed document transitions by event type"),
		metric.WithUnit("{events}")); err != nil {
		return nil, err
	}
	if m.conversions, err = meter.Int64Counter("pos_order_conversions_total",
		metric.WithDescription("Order to invoice conversions by path"),
		metric.WithUnit("{invoices}")); err != nil {
		return nil, err
	}
	if m.partialCompletions, err = meter.Int64Counter("pos_partial_completions_total",
		metric.WithDescription("Payments posted whose follow-up document write failed"),
		metric.WithUnit("{transitions}")); err != nil {
		return nil, err
	}
	if m.priceFallbacks, err = meter.Int64Counter("pos_price_fallbacks_total",
		metric.WithDescription("Price quotes that fell back to the base price"),
		metric.WithUnit("{quotes}")); err != nil {
		return nil, err
	}
	if m.staleWrites, err = meter.Int64Counter("pos_stale_writes_total",
		metric.WithDescription("Conditional writes rejected because the document moved"),
		metric.WithUnit("{writes}")); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = meter.Float64Counter("pos_payment_amount_total",
		metric.WithDescription("Posted payment amount"),
		metric.WithUnit("{currency}")); err != nil {
		return nil, err
	}
	if m.operationDuration, err = meter.Float64Histogram("pos_operation_duration_seconds",
		metric.WithDescription("Lifecycle operation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5)); err != nil {
		return nil, err
	}
	return m, nil
}

// Record* methods are no-ops on a nil receiver.

// RecordConversion counts one order to invoice conversion
func (m *CommerceMetrics) RecordConversion(ctx context.Context, path string) {
	if m == nil {
		return
	}
	m.conversions.Add(ctx, 1, metric.WithAttributes(AttrConversionPath.String(path)))
}

// RecordPartialCompletion counts a transition left for manual reconciliation
func (m *CommerceMetrics) RecordPartialCompletion(ctx context.Context, docType, failedStep string) {
	if m == nil {
		return
	}
	m.partialCompletions.Add(ctx, 1, metric.WithAttributes(
		AttrDocumentType.String(docType),
		AttrFailedStep.String(failedStep),
	))
}

// RecordPriceFallback counts a quote that used the base price
func (m *CommerceMetrics) RecordPriceFallback(ctx context.Context, coverage string) {
	if m == nil {
		return
	}
	m.priceFallbacks.Add(ctx, 1, metric.WithAttributes(AttrCoverage.String(coverage)))
}

// RecordStaleWrite counts a rejected conditional write
func (m *CommerceMetrics) RecordStaleWrite(ctx context.Context, docType string) {
	if m == nil {
		return
	}
	m.staleWrites.Add(ctx, 1, metric.WithAttributes(AttrDocumentType.String(docType)))
}

// RecordDuration records how long an operation took
func (m *CommerceMetrics) RecordDuration(ctx context.Context, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrOperation.String(operation)))
}

// Handle implements shared.EventHandler
func (m *CommerceMetrics) Handle(ctx context.Context, evt shared.DomainEvent) error {
	m.documentEvents.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(evt.EventType())))
	if p, ok := evt.(*commerce.PaymentEvent); ok && p.EventType() == commerce.EventTypePaymentPosted {
		amount, _ := p.Amount.Round(2).Float64()
		m.paymentAmount.Add(ctx, amount, metric.WithAttributes(AttrPaymentMethod.String(string(p.Method))))
	}
	return nil
}

// EventTypes implements shared.EventHandler; nil subscribes to every event
func (m *CommerceMetrics) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*CommerceMetrics)(nil)
