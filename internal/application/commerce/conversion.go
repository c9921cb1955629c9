package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PrepareConversion returns what is left to invoice on an order, for
// pre-populating the conversion cart.
func (s *DocumentService) PrepareConversion(ctx context.Context, orderID uuid.UUID) (*ConversionPreview, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.store.Invoices().FindBySourceOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	invoiced := commerce.InvoicedQuantities(order.ID, invoices)
	return &ConversionPreview{
		Order:            ToOrderResponse(order),
		RemainingLines:   toLineResponses(commerce.RemainingLines(order, invoiced)),
		Invoiced:         invoiced,
		Proration:        commerce.ProrateDiscount(order, invoices),
		DepositAvailable: order.UnconsumedDeposit(),
		InvoiceCount:     countActive(invoices),
	}, nil
}

// ConvertOrderToInvoice raises an invoice against a confirmed or partially
// invoiced order.
//
// When the cart equals the order's remaining lines the invoice is built from
// the remaining balance directly; otherwise the cart is reconciled line by
// line. The invoice, the optional payment and the order transition commit in
// one transaction. On the last invoice any unused order discount needs an
// explicit answer in ApplyRemainingDiscount; without it a confirmation result
// is returned and nothing is written.
func (s *DocumentService) ConvertOrderToInvoice(ctx context.Context, orderID uuid.UUID, req ConvertOrderRequest) (*ConversionResult, error) {
	started := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "convert_order",
		telemetry.SpanAttrOrderID, orderID.String(),
		telemetry.SpanAttrLineCount, len(req.Lines),
	)
	defer span.End()

	var cart []commerce.Line
	if len(req.Lines) > 0 {
		var err error
		if cart, err = toLines(req.Lines); err != nil {
			return nil, s.fail(ctx, span, docTypeOrder, err)
		}
	}

	var (
		result  *ConversionResult
		order   *commerce.Order
		invoice *commerce.Invoice
		payment *commerce.Payment
	)
	err := s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
		var err error
		order, err = tx.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkVersion(docTypeOrder, order.ID, order.Version, req.ExpectedVersion); err != nil {
			return err
		}
		if !order.Status.CanInvoice() {
			return shared.NewDomainError("INVALID_STATE",
				fmt.Sprintf("Cannot invoice order in %s status", order.Status))
		}

		prior, err := tx.Invoices().FindBySourceOrder(ctx, order.ID)
		if err != nil {
			return err
		}

		path := ConversionPathFull
		remaining := commerce.RemainingLines(order, commerce.InvoicedQuantities(order.ID, prior))
		if len(remaining) == 0 {
			return shared.NewDomainError("INVALID_STATE", "Order has nothing left to invoice")
		}
		if len(cart) == 0 || commerce.SameLines(cart, remaining) {
			path = ConversionPathFast
			cart = remaining
		}

		rec, err := commerce.Reconcile(order, prior, cart)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		if req.DiscountAmount != nil {
			discount = *req.DiscountAmount
		}
		var proration *commerce.DiscountProration
		if rec.IsLast {
			p := commerce.ProrateDiscount(order, prior)
			proration = &p
			if p.RequiresConfirmation() {
				if req.ApplyRemainingDiscount == nil {
					result = &ConversionResult{
						Status:    ConversionDiscountConfirmationRequired,
						Path:      path,
						IsLast:    true,
						Proration: proration,
						Order:     ToOrderResponse(order),
					}
					return nil
				}
				if *req.ApplyRemainingDiscount {
					discount = decimal.Min(p.Available, commerce.Subtotal(cart))
				}
			}
		}

		code, err := tx.Invoices().GenerateCode(ctx)
		if err != nil {
			return err
		}
		invoice, err = commerce.NewInvoice(code, order.CustomerID, order.BranchID, cart)
		if err != nil {
			return err
		}
		if err := invoice.LinkSourceOrder(order.ID); err != nil {
			return err
		}
		if err := invoice.SetDiscount(discount); err != nil {
			return err
		}
		invoice.DeliveryMeta = order.DeliveryMeta
		if req.DeliveryMeta != nil {
			invoice.DeliveryMeta = req.DeliveryMeta
		}
		invoice.Note = req.Note
		if err := invoice.Post(); err != nil {
			return err
		}

		if carried := order.ConsumeDeposit(invoice.Debt()); carried.IsPositive() {
			if err := invoice.CarryDeposit(carried); err != nil {
				return err
			}
		}
		if req.Payment != nil && req.Payment.Amount.IsPositive() {
			payment, err = s.newInvoicePayment(ctx, tx, invoice, &order.ID, *req.Payment)
			if err != nil {
				return err
			}
		}
		if err := order.MarkInvoiced(rec.IsLast); err != nil {
			return err
		}

		if err := tx.Invoices().Create(ctx, invoice); err != nil {
			return err
		}
		if payment != nil {
			if err := tx.Payments().Create(ctx, payment); err != nil {
				return err
			}
		}
		if err := tx.Orders().UpdateWithLock(ctx, order); err != nil {
			return err
		}

		result = &ConversionResult{
			Status:    ConversionCreated,
			Path:      path,
			IsLast:    rec.IsLast,
			Proration: proration,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrConversion, result.Path)
	if result.Status != ConversionCreated {
		telemetry.AddEvent(span, "discount_confirmation_required",
			telemetry.SpanAttrAmount, result.Proration.Available.String())
		return result, nil
	}

	result.Order = ToOrderResponse(order)
	result.Invoice = ToInvoiceResponse(invoice)
	if payment != nil {
		result.Payment = ToPaymentResponse(payment)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoice.ID.String())

	s.publish(ctx, invoice, payment, order)
	s.clearDraft(ctx, draft.DocumentTypeOrder, order.ID)
	s.metrics.RecordConversion(ctx, result.Path)
	s.metrics.RecordDuration(ctx, "convert_order", time.Since(started))
	logger.WithLogger(ctx, s.logger).Info("Order converted to invoice",
		zap.String("order_code", order.Code),
		zap.String("invoice_code", invoice.Code),
		zap.String("path", result.Path),
		zap.Bool("is_last", result.IsLast),
	)
	return result, nil
}

func countActive(invoices []*commerce.Invoice) int {
	n := 0
	for _, inv := range invoices {
		if inv.Status != commerce.InvoiceStatusCancelled {
			n++
		}
	}
	return n
}
