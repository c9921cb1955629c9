package commerce

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeOrder   = "Order"
	AggregateTypeInvoice = "Invoice"
	AggregateTypePayment = "Payment"
)

// Event type constants
const (
	EventTypeOrderCreated           = "OrderCreated"
	EventTypeOrderConfirmed         = "OrderConfirmed"
	EventTypeOrderUpdated           = "OrderUpdated"
	EventTypeOrderPartiallyInvoiced = "OrderPartiallyInvoiced"
	EventTypeOrderFulfilled         = "OrderFulfilled"
	EventTypeOrderCancelled         = "OrderCancelled"
	EventTypeOrderReopened          = "OrderReopened"

	EventTypeInvoiceCreated   = "InvoiceCreated"
	EventTypeInvoicePosted    = "InvoicePosted"
	EventTypeInvoiceUpdated   = "InvoiceUpdated"
	EventTypeInvoiceCancelled = "InvoiceCancelled"

	EventTypePaymentPosted    = "PaymentPosted"
	EventTypePaymentCancelled = "PaymentCancelled"
)

// OrderEvent is raised on every order transition
type OrderEvent struct {
	shared.BaseDomainEvent
	OrderID    uuid.UUID       `json:"order_id"`
	Code       string          `json:"code"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Status     OrderStatus     `json:"status"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// NewOrderEvent snapshots the order into an event
func NewOrderEvent(eventType string, o *Order) *OrderEvent {
	return &OrderEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		Code:            o.Code,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		GrandTotal:      o.GrandTotal(),
	}
}

// InvoiceEvent is raised on every invoice transition
type InvoiceEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	Code          string          `json:"code"`
	SourceOrderID *uuid.UUID      `json:"source_order_id,omitempty"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Status        InvoiceStatus   `json:"status"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	DebtAmount    decimal.Decimal `json:"debt_amount"`
}

// NewInvoiceEvent snapshots the invoice into an event
func NewInvoiceEvent(eventType string, i *Invoice) *InvoiceEvent {
	return &InvoiceEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeInvoice, i.ID),
		InvoiceID:       i.ID,
		Code:            i.Code,
		SourceOrderID:   i.SourceOrderID,
		CustomerID:      i.CustomerID,
		Status:          i.Status,
		GrandTotal:      i.GrandTotal(),
		DebtAmount:      i.Debt(),
	}
}

// PaymentEvent is raised when a payment posts or is cancelled
type PaymentEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	Code      string          `json:"code"`
	IsReceipt bool            `json:"is_receipt"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
}

// NewPaymentEvent snapshots the payment into an event
func NewPaymentEvent(eventType string, p *Payment) *PaymentEvent {
	return &PaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		Code:            p.Code,
		IsReceipt:       p.IsReceipt,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}
