package commerce

import (
	"context"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PreviewAllocation runs an allocation policy over the party's outstanding
// invoices without writing anything.
func (s *DocumentService) PreviewAllocation(ctx context.Context, req PreviewAllocationRequest) (*commerce.AllocationPlan, error) {
	invoices, err := s.store.Invoices().FindOutstandingByCustomer(ctx, req.PartyID)
	if err != nil {
		return nil, err
	}
	return s.plan(req.Policy, req.Amount, req.Allocations, commerce.TargetsFromInvoices(invoices))
}

func (s *DocumentService) plan(policy commerce.AllocationPolicy, amount decimal.Decimal, entries []AllocationInput, targets []commerce.AllocationTarget) (*commerce.AllocationPlan, error) {
	switch policy {
	case commerce.AllocationPolicyFIFO:
		return s.fifo.Allocate(valueobject.NewMoney(amount), targets)
	case commerce.AllocationPolicyManual:
		allocations := make([]commerce.Allocation, len(entries))
		for i, e := range entries {
			allocations[i] = commerce.Allocation{InvoiceID: e.InvoiceID, Amount: e.Amount}
		}
		return s.manual.Allocate(allocations, targets)
	}
	return nil, shared.NewValidationError("policy", "Allocation policy must be FIFO or MANUAL")
}

// RecordPayment posts a cash or receipt voucher.
//
// With an allocation policy the plan is computed from the invoices read
// inside the transaction, and every invoice update commits with the payment.
// Money the plan cannot place stays on the payment as unallocated.
func (s *DocumentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "record_payment",
		telemetry.SpanAttrPolicy, string(req.Policy),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)
	defer span.End()

	if req.Policy != "" && !req.Policy.IsValid() {
		return nil, s.fail(ctx, span, docTypePayment,
			shared.NewValidationError("policy", "Allocation policy must be FIFO or MANUAL"))
	}
	partyType := req.PartyType
	if partyType == "" {
		partyType = commerce.PartyTypeCustomer
	}
	if req.Policy != "" && (partyType != commerce.PartyTypeCustomer || req.PartyID == nil) {
		return nil, s.fail(ctx, span, docTypePayment,
			shared.NewValidationError("party_id", "Invoice allocation needs a customer"))
	}
	if partyType == commerce.PartyTypeCustomer && req.PartyID != nil {
		if err := s.checkCustomer(ctx, *req.PartyID); err != nil {
			return nil, s.fail(ctx, span, docTypePayment, err)
		}
	}
	affectsDebt := true
	if req.AffectsDebt != nil {
		affectsDebt = *req.AffectsDebt
	}

	var (
		payment  *commerce.Payment
		plan     *commerce.AllocationPlan
		invoices []*commerce.Invoice
	)
	err := s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
		amount := req.Amount
		if req.Policy != "" {
			outstanding, err := tx.Invoices().FindOutstandingByCustomer(ctx, *req.PartyID)
			if err != nil {
				return err
			}
			plan, err = s.plan(req.Policy, req.Amount, req.Allocations, commerce.TargetsFromInvoices(outstanding))
			if err != nil {
				return err
			}
			amount = plan.Amount
			invoices = outstanding
		}

		code, err := tx.Payments().GenerateCode(ctx)
		if err != nil {
			return err
		}
		payment, err = commerce.NewPayment(commerce.PaymentParams{
			Code:        code,
			IsReceipt:   req.IsReceipt,
			Amount:      amount,
			Method:      req.Method,
			PartyType:   partyType,
			PartyID:     req.PartyID,
			CollectorID: req.CollectorID,
			AffectsDebt: affectsDebt,
			Note:        req.Note,
		})
		if err != nil {
			return err
		}

		if plan != nil {
			byID := make(map[uuid.UUID]*commerce.Invoice, len(invoices))
			for _, inv := range invoices {
				byID[inv.ID] = inv
			}
			for _, a := range plan.Allocations {
				inv := byID[a.InvoiceID]
				if err := inv.ApplyPayment(a.Amount); err != nil {
					return err
				}
				if err := payment.Allocate(inv.ID, a.Amount); err != nil {
					return err
				}
				if err := tx.Invoices().UpdateWithLock(ctx, inv); err != nil {
					return err
				}
			}
		}
		return tx.Payments().Create(ctx, payment)
	})
	if err != nil {
		return nil, s.fail(ctx, span, docTypePayment, err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, payment.ID.String())
	s.publish(ctx, payment)
	return &PaymentResult{Payment: ToPaymentResponse(payment), Plan: plan}, nil
}

// CancelPayment voids a payment and takes its allocations back off the
// invoices they paid. Cancelling a deposit lowers the order's paid amount;
// a deposit already carried into an invoice cannot be cancelled.
func (s *DocumentService) CancelPayment(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "cancel_payment", telemetry.SpanAttrPaymentID, id.String())
	defer span.End()

	var payment *commerce.Payment
	err := s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
		var err error
		payment, err = tx.Payments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := payment.Cancel(); err != nil {
			return err
		}
		for _, a := range payment.Allocations {
			inv, err := tx.Invoices().FindByID(ctx, a.InvoiceID)
			if err != nil {
				return err
			}
			if err := inv.ReleasePayment(a.Amount); err != nil {
				return err
			}
			if err := tx.Invoices().UpdateWithLock(ctx, inv); err != nil {
				return err
			}
		}
		if payment.OrderID != nil && !payment.AffectsDebt {
			order, err := tx.Orders().FindByID(ctx, *payment.OrderID)
			if err != nil {
				return err
			}
			if err := order.ReleaseDeposit(payment.Amount); err != nil {
				return err
			}
			if err := tx.Orders().UpdateWithLock(ctx, order); err != nil {
				return err
			}
		}
		return tx.Payments().UpdateWithLock(ctx, payment)
	})
	if err != nil {
		return nil, s.fail(ctx, span, docTypePayment, err)
	}
	s.publish(ctx, payment)
	return ToPaymentResponse(payment), nil
}

// ListOrderPayments returns the deposits and payments taken against an order
func (s *DocumentService) ListOrderPayments(ctx context.Context, orderID uuid.UUID) ([]*PaymentResponse, error) {
	payments, err := s.store.Payments().FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = ToPaymentResponse(p)
	}
	return out, nil
}
