// Package commerce orchestrates order, invoice and payment transitions.
package commerce

import (
	"context"
	"errors"
	"time"

	draftapp "github.com/erp/backoffice/internal/application/draft"
	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/domain/pricing"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	spanService = "commerce"

	docTypeOrder   = "order"
	docTypeInvoice = "invoice"
	docTypePayment = "payment"

	defaultMaxParallelLookups = 8
)

// EditSessions is the draft side of opening and saving documents
type EditSessions interface {
	Open(ctx context.Context, key draft.Key, serverUpdatedAt *time.Time) (*draftapp.Resolution, error)
	Clear(ctx context.Context, key draft.Key)
}

// DocumentService runs every order, invoice and payment transition.
// Writes that must land together go through one store transaction; events
// are published only after the transaction commits.
type DocumentService struct {
	store          commerce.DocumentStore
	customers      commerce.CustomerService
	resolver       *pricing.Resolver
	sessions       EditSessions
	fifo           *commerce.FIFOAllocator
	manual         *commerce.ManualAllocator
	eventPublisher shared.EventPublisher
	metrics        *telemetry.CommerceMetrics
	logger         *zap.Logger
	maxParallel    int
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	store commerce.DocumentStore,
	customers commerce.CustomerService,
	catalog pricing.CatalogService,
	sessions EditSessions,
	log *zap.Logger,
) *DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentService{
		store:       store,
		customers:   customers,
		resolver:    pricing.NewResolver(catalog),
		sessions:    sessions,
		fifo:        commerce.NewFIFOAllocator(),
		manual:      commerce.NewManualAllocator(),
		logger:      log.Named("commerce"),
		maxParallel: defaultMaxParallelLookups,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *DocumentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the business metrics recorder
func (s *DocumentService) SetMetrics(m *telemetry.CommerceMetrics) {
	s.metrics = m
}

// SetMaxParallelLookups bounds concurrent catalog lookups per cart
func (s *DocumentService) SetMaxParallelLookups(n int) {
	if n > 0 {
		s.maxParallel = n
	}
}

// ==================== Orders ====================

// CreateOrder persists a new order. A deposit is posted as a payment in the
// same transaction, so either both exist or neither does.
func (s *DocumentService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create_order",
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrLineCount, len(req.Lines),
	)
	defer span.End()

	if err := s.checkCustomer(ctx, req.CustomerID); err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}
	lines, err := toLines(req.Lines)
	if err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}

	var order *commerce.Order
	var deposit *commerce.Payment
	err = s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
		code, err := tx.Orders().GenerateCode(ctx)
		if err != nil {
			return err
		}
		order, err = commerce.NewOrder(code, req.CustomerID, req.BranchID, lines)
		if err != nil {
			return err
		}
		if err := order.SetDiscount(req.DiscountAmount, req.DiscountRatio); err != nil {
			return err
		}
		order.DeliveryMeta = req.DeliveryMeta
		order.Note = req.Note
		if req.Confirm {
			if err := order.Confirm(); err != nil {
				return err
			}
		}

		if req.Deposit != nil && req.Deposit.Amount.IsPositive() {
			deposit, err = s.newOrderPayment(ctx, tx, order, *req.Deposit)
			if err != nil {
				return err
			}
			if err := order.RecordDeposit(deposit.Amount); err != nil {
				return err
			}
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if deposit != nil {
			return tx.Payments().Create(ctx, deposit)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrOrderID, order.ID.String(), telemetry.SpanAttrDocumentCode, order.Code)
	s.publish(ctx, order, deposit)
	return ToOrderResponse(order), nil
}

// GetOrder retrieves an order by ID
func (s *DocumentService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.store.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(order), nil
}

// ConfirmOrder moves a draft order to confirmed
func (s *DocumentService) ConfirmOrder(ctx context.Context, id uuid.UUID, expectedVersion int) (*OrderResponse, error) {
	return s.transitionOrder(ctx, "confirm_order", id, expectedVersion, func(o *commerce.Order) error {
		return o.Confirm()
	})
}

// CancelOrder cancels an open order. Deposits already taken stay on the order.
func (s *DocumentService) CancelOrder(ctx context.Context, id uuid.UUID, reason string, expectedVersion int) (*OrderResponse, error) {
	return s.transitionOrder(ctx, "cancel_order", id, expectedVersion, func(o *commerce.Order) error {
		return o.Cancel(reason)
	})
}

func (s *DocumentService) transitionOrder(ctx context.Context, op string, id uuid.UUID, expectedVersion int, apply func(*commerce.Order) error) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, op, telemetry.SpanAttrOrderID, id.String())
	defer span.End()

	var order *commerce.Order
	err := s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
		var err error
		order, err = tx.Orders().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion(docTypeOrder, order.ID, order.Version, expectedVersion); err != nil {
			return err
		}
		if err := apply(order); err != nil {
			return err
		}
		return tx.Orders().UpdateWithLock(ctx, order)
	})
	if err != nil {
		return nil, s.fail(ctx, span, docTypeOrder, err)
	}

	s.publish(ctx, order)
	if order.Status.IsTerminal() {
		s.clearDraft(ctx, draft.DocumentTypeOrder, order.ID)
	}
	return ToOrderResponse(order), nil
}

// ==================== Invoices ====================

// CreateInvoice creates a standalone invoice with an optional payment.
// The invoice, the payment and its allocation commit together.
func (s *DocumentService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create_invoice",
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrLineCount, len(req.Lines),
	)
	defer span.End()

	if err := s.checkCustomer(ctx, req.CustomerID); err != nil {
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}
	lines, err := toLines(req.Lines)
	if err != nil {
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}

	var invoice *commerce.Invoice
	var payment *commerce.Payment
	err = s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
		code, err := tx.Invoices().GenerateCode(ctx)
		if err != nil {
			return err
		}
		invoice, err = commerce.NewInvoice(code, req.CustomerID, req.BranchID, lines)
		if err != nil {
			return err
		}
		if err := invoice.SetDiscount(req.DiscountAmount); err != nil {
			return err
		}
		invoice.DeliveryMeta = req.DeliveryMeta
		invoice.Note = req.Note
		if !req.SaveAsDraft {
			if err := invoice.Post(); err != nil {
				return err
			}
		}

		if req.Payment != nil && req.Payment.Amount.IsPositive() {
			payment, err = s.newInvoicePayment(ctx, tx, invoice, nil, *req.Payment)
			if err != nil {
				return err
			}
		}

		if err := tx.Invoices().Create(ctx, invoice); err != nil {
			return err
		}
		if payment != nil {
			return tx.Payments().Create(ctx, payment)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoice.ID.String(), telemetry.SpanAttrDocumentCode, invoice.Code)
	s.publish(ctx, invoice, payment)
	return ToInvoiceResponse(invoice), nil
}

// GetInvoice retrieves an invoice by ID
func (s *DocumentService) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.store.Invoices().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(invoice), nil
}

// ListOrderInvoices returns every invoice raised against an order
func (s *DocumentService) ListOrderInvoices(ctx context.Context, orderID uuid.UUID) ([]*InvoiceResponse, error) {
	if _, err := s.store.Orders().FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	invoices, err := s.store.Invoices().FindBySourceOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]*InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		out[i] = ToInvoiceResponse(inv)
	}
	return out, nil
}

// PostInvoice finalises a draft invoice
func (s *DocumentService) PostInvoice(ctx context.Context, id uuid.UUID, expectedVersion int) (*InvoiceResponse, error) {
	invoice, err := s.transitionInvoice(ctx, "post_invoice", id, expectedVersion,
		func(_ commerce.DocumentStore, i *commerce.Invoice) error {
			return i.Post()
		})
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(invoice), nil
}

// CancelInvoice voids an invoice. Payments applied to it are not reversed.
// When the invoice came from an order, the order takes back the deposit the
// invoice consumed and is reopened for the quantities the invoice billed,
// in the same transaction.
func (s *DocumentService) CancelInvoice(ctx context.Context, id uuid.UUID, reason string, expectedVersion int) (*InvoiceResponse, error) {
	var order *commerce.Order
	invoice, err := s.transitionInvoice(ctx, "cancel_invoice", id, expectedVersion,
		func(tx commerce.DocumentStore, i *commerce.Invoice) error {
			if err := i.Cancel(reason); err != nil {
				return err
			}
			if i.SourceOrderID == nil {
				return nil
			}
			var err error
			order, err = tx.Orders().FindByID(ctx, *i.SourceOrderID)
			if err != nil {
				return err
			}
			siblings, err := tx.Invoices().FindBySourceOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			active := 0
			for _, inv := range siblings {
				if inv.ID != i.ID && inv.Status != commerce.InvoiceStatusCancelled {
					active++
				}
			}
			order.ReturnDeposit(i.DepositApplied)
			if err := order.Reopen(active); err != nil {
				return err
			}
			return tx.Orders().UpdateWithLock(ctx, order)
		})
	if err != nil {
		return nil, err
	}
	if order != nil {
		s.publish(ctx, order)
		s.clearDraft(ctx, draft.DocumentTypeOrder, order.ID)
	}
	return ToInvoiceResponse(invoice), nil
}

func (s *DocumentService) transitionInvoice(ctx context.Context, op string, id uuid.UUID, expectedVersion int, apply func(commerce.DocumentStore, *commerce.Invoice) error) (*commerce.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, op, telemetry.SpanAttrInvoiceID, id.String())
	defer span.End()

	var invoice *commerce.Invoice
	err := s.store.Transaction(ctx, func(tx commerce.DocumentStore) error {
		var err error
		invoice, err = tx.Invoices().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkVersion(docTypeInvoice, invoice.ID, invoice.Version, expectedVersion); err != nil {
			return err
		}
		if err := apply(tx, invoice); err != nil {
			return err
		}
		return tx.Invoices().UpdateWithLock(ctx, invoice)
	})
	if err != nil {
		return nil, s.fail(ctx, span, docTypeInvoice, err)
	}

	s.publish(ctx, invoice)
	s.clearDraft(ctx, draft.DocumentTypeInvoice, invoice.ID)
	return invoice, nil
}

// ==================== Debt ====================

// CustomerDebt returns the customer's aggregate debt and the invoices that
// still carry debt, oldest first.
func (s *DocumentService) CustomerDebt(ctx context.Context, customerID uuid.UUID) (*DebtSummary, error) {
	if err := s.checkCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	total, err := s.customers.AggregateDebt(ctx, customerID)
	if err != nil {
		return nil, shared.NewExternalLookupError("customer debt", err)
	}
	invoices, err := s.store.Invoices().FindOutstandingByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	summary := &DebtSummary{
		CustomerID:    customerID,
		AggregateDebt: total,
		Outstanding:   make([]InvoiceDebt, 0, len(invoices)),
	}
	for _, t := range commerce.TargetsFromInvoices(invoices) {
		summary.Outstanding = append(summary.Outstanding, InvoiceDebt{
			InvoiceID:  t.InvoiceID,
			Code:       t.Code,
			DebtAmount: t.DebtAmount,
			IssuedAt:   t.IssuedAt,
		})
	}
	return summary, nil
}

// ==================== Helpers ====================

// checkCustomer maps an unknown customer to a validation error. Any other
// failure is an external lookup error; the caller cannot proceed without it.
func (s *DocumentService) checkCustomer(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return shared.NewValidationError("customer_id", "Customer is required")
	}
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewValidationError("customer_id", "Customer not found")
		}
		return shared.NewExternalLookupError("customer", err)
	}
	if !customer.Active {
		return shared.NewValidationError("customer_id", "Customer is inactive")
	}
	return nil
}

// newOrderPayment builds a deposit receipt for an order. Deposits do not
// count against debt until they are carried into an invoice.
func (s *DocumentService) newOrderPayment(ctx context.Context, tx commerce.DocumentStore, order *commerce.Order, in PaymentInput) (*commerce.Payment, error) {
	code, err := tx.Payments().GenerateCode(ctx)
	if err != nil {
		return nil, err
	}
	customerID := order.CustomerID
	orderID := order.ID
	return commerce.NewPayment(commerce.PaymentParams{
		Code:        code,
		IsReceipt:   true,
		Amount:      in.Amount,
		Method:      in.Method,
		PartyType:   commerce.PartyTypeCustomer,
		PartyID:     &customerID,
		CollectorID: in.CollectorID,
		OrderID:     &orderID,
		AffectsDebt: false,
		Note:        in.Note,
	})
}

// newInvoicePayment builds a receipt fully allocated to invoice and applies
// it. The amount may not exceed the invoice debt.
func (s *DocumentService) newInvoicePayment(ctx context.Context, tx commerce.DocumentStore, invoice *commerce.Invoice, orderID *uuid.UUID, in PaymentInput) (*commerce.Payment, error) {
	if in.Amount.GreaterThan(invoice.Debt()) {
		return nil, shared.NewAllocationOverrunError(invoice.ID, in.Amount, invoice.Debt())
	}
	code, err := tx.Payments().GenerateCode(ctx)
	if err != nil {
		return nil, err
	}
	customerID := invoice.CustomerID
	payment, err := commerce.NewPayment(commerce.PaymentParams{
		Code:        code,
		IsReceipt:   true,
		Amount:      in.Amount,
		Method:      in.Method,
		PartyType:   commerce.PartyTypeCustomer,
		PartyID:     &customerID,
		CollectorID: in.CollectorID,
		OrderID:     orderID,
		AffectsDebt: true,
		Note:        in.Note,
	})
	if err != nil {
		return nil, err
	}
	if err := payment.Allocate(invoice.ID, payment.Amount); err != nil {
		return nil, err
	}
	if err := invoice.ApplyPayment(payment.Amount); err != nil {
		return nil, err
	}
	return payment, nil
}

// checkVersion rejects a write made from a copy older than the stored one.
// The version the caller read is mandatory: without it a stale session could
// not be told apart from a fresh one.
func checkVersion(docType string, id uuid.UUID, actual, expected int) error {
	if expected <= 0 {
		return shared.NewValidationError("expected_version", "Expected version is required")
	}
	if actual != expected {
		return shared.NewStaleWriteError(docType, id, expected)
	}
	return nil
}

// publish sends and clears the pending events of every aggregate. Handler
// failures are the bus's concern; the transition has already committed.
func (s *DocumentService) publish(ctx context.Context, aggregates ...shared.AggregateRoot) {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		if isNilAggregate(agg) {
			continue
		}
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

func isNilAggregate(agg shared.AggregateRoot) bool {
	switch a := agg.(type) {
	case nil:
		return true
	case *commerce.Order:
		return a == nil
	case *commerce.Invoice:
		return a == nil
	case *commerce.Payment:
		return a == nil
	}
	return false
}

func (s *DocumentService) clearDraft(ctx context.Context, docType draft.DocumentType, id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	s.sessions.Clear(ctx, draft.DocumentKey(docType, id))
}

// fail records err on the span and counts stale writes
func (s *DocumentService) fail(ctx context.Context, span trace.Span, docType string, err error) error {
	telemetry.RecordError(span, err)
	var stale *shared.StaleWriteError
	if errors.As(err, &stale) {
		s.metrics.RecordStaleWrite(ctx, stale.DocumentType)
	}
	return err
}
