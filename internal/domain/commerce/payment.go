package commerce

import (
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a cash flow entry
type PaymentStatus string

const (
	PaymentStatusPosted    PaymentStatus = "POSTED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPosted || s == PaymentStatusCancelled
}

// PaymentMethod is how the money moved
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodEWallet  PaymentMethod = "EWALLET"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodEWallet:
		return true
	}
	return false
}

// PartyType identifies who the payment is with
type PartyType string

const (
	PartyTypeCustomer PartyType = "CUSTOMER"
	PartyTypeSupplier PartyType = "SUPPLIER"
	PartyTypeOther    PartyType = "OTHER"
)

func (p PartyType) IsValid() bool {
	switch p {
	case PartyTypeCustomer, PartyTypeSupplier, PartyTypeOther:
		return true
	}
	return false
}

// Allocation is the part of a payment applied to one invoice
type Allocation struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Payment is a cash or receipt voucher. Allocations never sum above Amount;
// the remainder counts against the party's aggregate debt when AffectsDebt is set.
type Payment struct {
	shared.BaseAggregateRoot
	Code        string
	IsReceipt   bool
	Amount      decimal.Decimal
	Method      PaymentMethod
	PartyType   PartyType
	PartyID     *uuid.UUID
	CollectorID uuid.UUID
	OrderID     *uuid.UUID
	Allocations []Allocation
	AffectsDebt bool
	PaidAt      time.Time
	Note        string
	Status      PaymentStatus
	CancelledAt *time.Time
}

// PaymentParams groups the inputs for a new payment
type PaymentParams struct {
	Code        string
	IsReceipt   bool
	Amount      decimal.Decimal
	Method      PaymentMethod
	PartyType   PartyType
	PartyID     *uuid.UUID
	CollectorID uuid.UUID
	OrderID     *uuid.UUID
	AffectsDebt bool
	Note        string
}

// NewPayment creates a posted payment
func NewPayment(p PaymentParams) (*Payment, error) {
	if p.Code == "" {
		return nil, shared.NewValidationError("code", "Payment code cannot be empty")
	}
	if !p.Amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "Payment amount must be positive")
	}
	if p.CollectorID == uuid.Nil {
		return nil, shared.NewValidationError("collector_id", "Collector is required")
	}
	if p.Method == "" {
		p.Method = PaymentMethodCash
	}
	if !p.Method.IsValid() {
		return nil, shared.NewValidationError("method", fmt.Sprintf("Unknown payment method %s", p.Method))
	}
	if p.PartyType == "" {
		p.PartyType = PartyTypeCustomer
	}
	if !p.PartyType.IsValid() {
		return nil, shared.NewValidationError("party_type", fmt.Sprintf("Unknown party type %s", p.PartyType))
	}
	if p.PartyType != PartyTypeOther && (p.PartyID == nil || *p.PartyID == uuid.Nil) {
		return nil, shared.NewValidationError("party_id", "Party is required")
	}

	payment := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              p.Code,
		IsReceipt:         p.IsReceipt,
		Amount:            valueobject.RoundCurrency(p.Amount),
		Method:            p.Method,
		PartyType:         p.PartyType,
		PartyID:           p.PartyID,
		CollectorID:       p.CollectorID,
		OrderID:           p.OrderID,
		Allocations:       make([]Allocation, 0),
		AffectsDebt:       p.AffectsDebt,
		PaidAt:            time.Now(),
		Note:              p.Note,
		Status:            PaymentStatusPosted,
	}
	payment.AddDomainEvent(NewPaymentEvent(EventTypePaymentPosted, payment))
	return payment, nil
}

// AllocatedAmount sums the invoice allocations
func (p *Payment) AllocatedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// UnallocatedAmount is the part of the payment not tied to an invoice
func (p *Payment) UnallocatedAmount() decimal.Decimal {
	return valueobject.NonNegative(p.Amount.Sub(p.AllocatedAmount()))
}

// Allocate ties part of the payment to an invoice
func (p *Payment) Allocate(invoiceID uuid.UUID, amount decimal.Decimal) error {
	if p.Status != PaymentStatusPosted {
		return shared.NewDomainError("INVALID_STATE", "Cannot allocate a cancelled payment")
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "Allocation must be positive")
	}
	if p.AllocatedAmount().Add(amount).GreaterThan(p.Amount) {
		return shared.NewValidationError("amount", "Allocations cannot exceed the payment amount")
	}
	p.Allocations = append(p.Allocations, Allocation{InvoiceID: invoiceID, Amount: amount})
	return nil
}

// Cancel voids the payment. Allocated invoices are not touched.
func (p *Payment) Cancel() error {
	if p.Status == PaymentStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Payment is already cancelled")
	}
	now := time.Now()
	p.Status = PaymentStatusCancelled
	p.CancelledAt = &now
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentEvent(EventTypePaymentCancelled, p))
	return nil
}
