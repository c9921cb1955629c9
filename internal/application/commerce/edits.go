package commerce

import (
	"context"
	"errors"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Steps of a save that carries a payment
const (
	stepPostPayment   = "post_payment"
	stepUpdateOrder   = "update_order"
	stepUpdateInvoice = "update_invoice"
)

// OpenOrderForEdit loads an order and resolves any local draft against it.
// A draft for an order that no longer exists is discarded before the
// not-found error is returned.
func (s *DocumentService) OpenOrderForEdit(ctx context.Context, id uuid.UUID) (*OrderEditSession, error) {
	order, err := s.store.Orders().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.discardOrphanDraft(ctx, draft.DocumentTypeOrder, id)
		}
		return nil, err
	}
	session := &OrderEditSession{Order: ToOrderResponse(order)}
	if s.sessions != nil {
		updatedAt := order.UpdatedAt
		session.Draft, err = s.sessions.Open(ctx, draft.DocumentKey(draft.DocumentTypeOrder, id), &updatedAt)
		if err != nil {
			return nil, err
		}
	}
	return session, nil
}

// OpenInvoiceForEdit is OpenOrderForEdit for invoices
func (s *DocumentService) OpenInvoiceForEdit(ctx context.Context, id uuid.UUID) (*InvoiceEditSession, error) {
	invoice, err := s.store.Invoices().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.discardOrphanDraft(ctx, draft.DocumentTypeInvoice, id)
		}
		return nil, err
	}
	session := &InvoiceEditSession{Invoice: ToInvoiceResponse(invoice)}
	if s.sessions != nil {
		updatedAt := invoice.UpdatedAt
		session.Draft, err = s.sessions.Open(ctx, draft.DocumentKey(draft.DocumentTypeInvoice, id), &updatedAt)
		if err != nil {
			return nil, err
		}
	}
	return session, nil
}

func (s *DocumentService) discardOrphanDraft(ctx context.Context, docType draft.DocumentType, id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.Open(ctx, draft.DocumentKey(docType, id), nil); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to discard draft of missing document",
			zap.String("document_type", string(docType)),
			zap.String("document_id", id.String()),
			zap.Error(err),
		)
	}
}

// SaveOrderEdits applies a patch to an open order.
//
// A payment in the patch is posted first in its own transaction, then the
// order update is written. If the update fails after the payment committed
// a *shared.PartialCompletionError is returned; nothing is reversed.
func (s *DocumentService) SaveOrderEdits(ctx context.Context, id uuid.UUID, patch OrderPatch) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "save_order", telemetry.SpanAttrOrderID, id.String())
	defer span.End()

	order, err := s.store.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}
	if err := checkVersion(docTypeOrder, order.ID, order.Version, patch.ExpectedVersion); err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}
	if err := applyOrderPatch(order, patch); err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}

	var payment *commerce.Payment
	if patch.Payment != nil && patch.Payment.Amount.IsPositive() {
		if err := s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
			payment, err = s.newOrderPayment(ctx, tx, order, *patch.Payment)
			if err != nil {
				return err
			}
			return tx.Payments().Create(ctx, payment)
		}); err != nil {
			return nil, s.fail(ctx, span, docTypeOrder, err)
		}
		s.publish(ctx, payment)
		if err := order.RecordDeposit(payment.Amount); err != nil {
			return nil, s.partial(ctx, span, stepUpdateOrder, docTypeOrder, order.ID, payment, err)
		}
	}

	order.MarkUpdated()
	if err := s.store.Orders().UpdateWithLock(ctx, order); err != nil {
		if payment != nil {
			return nil, s.partial(ctx, span, stepUpdateOrder, docTypeOrder, order.ID, payment, err)
		}
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}

	s.publish(ctx, order)
	s.clearDraft(ctx, draft.DocumentTypeOrder, order.ID)
	return ToOrderResponse(order), nil
}

func applyOrderPatch(order *commerce.Order, patch OrderPatch) error {
	if order.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot edit order in "+order.Status.String()+" status")
	}
	if len(patch.Lines) > 0 {
		lines, err := toLines(patch.Lines)
		if err != nil {
			return err
		}
		if order.Status == commerce.OrderStatusPartiallyInvoiced {
			return shared.NewDomainError("INVALID_STATE", "Lines of a partially invoiced order cannot be changed")
		}
		if err := order.ReplaceLines(lines); err != nil {
			return err
		}
	}
	if patch.DiscountAmount != nil || patch.DiscountRatio != nil {
		amount, ratio := order.DiscountAmount, order.DiscountRatio
		if patch.DiscountAmount != nil {
			amount = *patch.DiscountAmount
		}
		if patch.DiscountRatio != nil {
			ratio = *patch.DiscountRatio
		}
		if err := order.SetDiscount(amount, ratio); err != nil {
			return err
		}
	}
	if patch.DeliveryMeta != nil {
		order.DeliveryMeta = patch.DeliveryMeta
	}
	if patch.Note != nil {
		order.Note = *patch.Note
	}
	order.Touch()
	return nil
}

// SaveInvoiceEdits applies a patch to a draft or posted invoice. A payment
// follows the same two-step rule as SaveOrderEdits. Line changes on an
// invoice raised from an order are reconciled against the order's other
// invoices.
func (s *DocumentService) SaveInvoiceEdits(ctx context.Context, id uuid.UUID, patch InvoicePatch) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "save_invoice", telemetry.SpanAttrInvoiceID, id.String())
	defer span.End()

	invoice, err := s.store.Invoices().FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}
	if err := checkVersion(docTypeInvoice, invoice.ID, invoice.Version, patch.ExpectedVersion); err != nil {
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}
	if err := s.applyInvoicePatch(ctx, invoice, patch); err != nil {
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}

	var payment *commerce.Payment
	if patch.Payment != nil && patch.Payment.Amount.IsPositive() {
		if patch.Payment.Amount.GreaterThan(invoice.Debt()) {
			return nil, s.fail(ctx, span, docTypeInvoice,
				shared.NewAllocationOverrunError(invoice.ID, patch.Payment.Amount, invoice.Debt()))
		}
		// the payment is built against a copy; invoice takes it in the update step
		scratch := *invoice
		if err := s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
			payment, err = s.newInvoicePayment(ctx, tx, &scratch, invoice.SourceOrderID, *patch.Payment)
			if err != nil {
				return err
			}
			return tx.Payments().Create(ctx, payment)
		}); err != nil {
			return nil, s.fail(ctx, span, docTypeInvoice, err)
		}
		s.publish(ctx, payment)
		if err := invoice.ApplyPayment(payment.Amount); err != nil {
			return nil, s.partial(ctx, span, stepUpdateInvoice, docTypeInvoice, invoice.ID, payment, err)
		}
	}

	invoice.MarkUpdated()
	if err := s.store.Invoices().UpdateWithLock(ctx, invoice); err != nil {
		if payment != nil {
			return nil, s.partial(ctx, span, stepUpdateInvoice, docTypeInvoice, invoice.ID, payment, err)
		}
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}

	s.publish(ctx, invoice)
	s.clearDraft(ctx, draft.DocumentTypeInvoice, invoice.ID)
	return ToInvoiceResponse(invoice), nil
}

func (s *DocumentService) applyInvoicePatch(ctx context.Context, invoice *commerce.Invoice, patch InvoicePatch) error {
	if invoice.Status == commerce.InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot edit a cancelled invoice")
	}
	if len(patch.Lines) > 0 {
		lines, err := toLines(patch.Lines)
		if err != nil {
			return err
		}
		if invoice.SourceOrderID != nil {
			if err := s.reconcileInvoiceLines(ctx, invoice, lines); err != nil {
				return err
			}
		}
		if err := invoice.ReplaceLines(lines); err != nil {
			return err
		}
	}
	if patch.DiscountAmount != nil {
		if err := invoice.SetDiscount(*patch.DiscountAmount); err != nil {
			return err
		}
	}
	if invoice.PaidAmount.GreaterThan(invoice.GrandTotal()) {
		return shared.NewValidationError("lines", "Invoice total cannot drop below the amount already paid")
	}
	if patch.DeliveryMeta != nil {
		invoice.DeliveryMeta = patch.DeliveryMeta
	}
	if patch.Note != nil {
		invoice.Note = *patch.Note
	}
	invoice.Touch()
	return nil
}

// reconcileInvoiceLines checks new lines against what the source order has
// left once this invoice's own lines are taken out.
func (s *DocumentService) reconcileInvoiceLines(ctx context.Context, invoice *commerce.Invoice, lines []commerce.Line) error {
	order, err := s.store.Orders().FindByID(ctx, *invoice.SourceOrderID)
	if err != nil {
		return err
	}
	all, err := s.store.Invoices().FindBySourceOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	others := make([]*commerce.Invoice, 0, len(all))
	for _, inv := range all {
		if inv.ID != invoice.ID {
			others = append(others, inv)
		}
	}
	_, err = commerce.Reconcile(order, others, lines)
	return err
}

// partial reports a payment that committed ahead of a failed document write
func (s *DocumentService) partial(ctx context.Context, span trace.Span, failedStep, docType string, docID uuid.UUID, payment *commerce.Payment, cause error) error {
	perr := shared.NewPartialCompletionError(stepPostPayment, failedStep, payment.ID, docType, docID, cause)
	logger.WithLogger(ctx, s.logger).Error("Payment posted but document update failed",
		zap.String("document_type", docType),
		zap.String("document_id", docID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_code", payment.Code),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("failed_step", failedStep),
		zap.Error(cause),
	)
	s.metrics.RecordPartialCompletion(ctx, docType, failedStep)
	return s.fail(ctx, span, docType, perr)
}
