package commerce

import (
	"context"

	"github.com/erp/backoffice/internal/domain/pricing"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProposeCartPrices quotes every cart item against the selected price book.
// Lookups run concurrently and each one fails open to the base price; the
// failures come back as warnings.
func (s *DocumentService) ProposeCartPrices(ctx context.Context, req ProposeCartRequest) (*CartQuote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "propose_prices",
		telemetry.SpanAttrLineCount, len(req.Items),
	)
	defer span.End()

	quotes := make([]pricing.Quote, len(req.Items))
	var lookupErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("propose_prices", "cart"), func(ctx context.Context) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.maxParallel)
		for i, item := range req.Items {
			g.Go(func() error {
				q, err := s.resolver.Resolve(gctx, pricing.Request{
					ProductID:   item.ProductID,
					BranchID:    req.BranchID,
					PriceBookID: req.PriceBookID,
					BasePrice:   item.BasePrice,
				})
				if err != nil {
					return err
				}
				quotes[i] = q
				return nil
			})
		}
		lookupErr = g.Wait()
	})
	if err := lookupErr; err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	out := &CartQuote{
		Quotes:   make([]QuoteResponse, len(quotes)),
		Warnings: make([]string, 0),
	}
	for i, q := range quotes {
		resp := QuoteResponse{Quote: q, NeedsDecision: q.NeedsDecision()}
		if q.Warning != nil {
			resp.Warning = q.Warning.Error()
			out.Warnings = append(out.Warnings, resp.Warning)
			s.metrics.RecordPriceFallback(ctx, string(q.Coverage))
			logger.WithLogger(ctx, s.logger).Warn("Price book lookup failed, using base price",
				zap.String("product_id", q.ProductID.String()),
				zap.Error(q.Warning.Cause),
			)
		}
		if resp.NeedsDecision {
			out.NeedsDecision = true
		}
		out.Quotes[i] = resp
	}
	return out, nil
}

// ConfirmPrice re-resolves one product and applies the caller's decision.
// Quotes that need no decision are returned as resolved.
func (s *DocumentService) ConfirmPrice(ctx context.Context, req ConfirmPriceRequest) (*QuoteResponse, error) {
	q, err := s.resolver.Resolve(ctx, pricing.Request{
		ProductID:   req.ProductID,
		BranchID:    req.BranchID,
		PriceBookID: req.PriceBookID,
		BasePrice:   req.BasePrice,
	})
	if err != nil {
		return nil, err
	}

	decision := pricing.Decision{Kind: req.Decision, OverridePrice: req.OverridePrice}
	confirmed, err := pricing.Confirm(q, decision)
	if err != nil {
		return nil, err
	}
	if q.NeedsDecision() {
		s.metrics.RecordPriceFallback(ctx, string(q.Coverage))
	}
	resp := &QuoteResponse{Quote: confirmed, NeedsDecision: confirmed.NeedsDecision()}
	if confirmed.Warning != nil {
		resp.Warning = confirmed.Warning.Error()
	}
	return resp, nil
}
