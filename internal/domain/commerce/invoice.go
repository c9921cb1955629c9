package commerce

import (
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusPosted    InvoiceStatus = "POSTED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPosted, InvoiceStatusCancelled:
		return true
	}
	return false
}

func (s InvoiceStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// A posted invoice never returns to draft.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	switch s {
	case InvoiceStatusDraft:
		return target == InvoiceStatusPosted || target == InvoiceStatusCancelled
	case InvoiceStatusPosted:
		return target == InvoiceStatusCancelled
	}
	return false
}

// Invoice is a billed sale. SourceOrderID is a weak reference: the order is
// looked up by it, never owned through it.
type Invoice struct {
	shared.BaseAggregateRoot
	Code           string
	SourceOrderID  *uuid.UUID
	CustomerID     uuid.UUID
	BranchID       uuid.UUID
	Lines          []Line
	DiscountAmount decimal.Decimal
	PaidAmount     decimal.Decimal
	DepositApplied decimal.Decimal // part of PaidAmount carried from the source order's deposit
	DebtAmount     decimal.Decimal
	DeliveryMeta   map[string]any
	Note           string
	Status         InvoiceStatus
	PostedAt       *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewInvoice creates a draft invoice
func NewInvoice(code string, customerID, branchID uuid.UUID, lines []Line) (*Invoice, error) {
	if code == "" {
		return nil, shared.NewValidationError("code", "Invoice code cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer_id", "Customer is required")
	}
	if branchID == uuid.Nil {
		return nil, shared.NewValidationError("branch_id", "Branch is required")
	}
	if err := ValidateCart(lines); err != nil {
		return nil, err
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		CustomerID:        customerID,
		BranchID:          branchID,
		Lines:             cloneLines(lines),
		DiscountAmount:    decimal.Zero,
		PaidAmount:        decimal.Zero,
		DepositApplied:    decimal.Zero,
		Status:            InvoiceStatusDraft,
	}
	inv.refreshDebt()
	inv.AddDomainEvent(NewInvoiceEvent(EventTypeInvoiceCreated, inv))
	return inv, nil
}

// LinkSourceOrder sets the weak back-reference to the originating order
func (i *Invoice) LinkSourceOrder(orderID uuid.UUID) error {
	if i.SourceOrderID != nil && *i.SourceOrderID != orderID {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already linked to another order")
	}
	id := orderID
	i.SourceOrderID = &id
	return nil
}

// Subtotal is the sum of line totals
func (i *Invoice) Subtotal() decimal.Decimal {
	return Subtotal(i.Lines)
}

// GrandTotal is subtotal less discount, floored at zero
func (i *Invoice) GrandTotal() decimal.Decimal {
	return valueobject.NonNegative(i.Subtotal().Sub(i.DiscountAmount))
}

// Debt is grand total less paid, floored at zero
func (i *Invoice) Debt() decimal.Decimal {
	return valueobject.NonNegative(i.GrandTotal().Sub(i.PaidAmount))
}

func (i *Invoice) refreshDebt() {
	i.DebtAmount = i.Debt()
}

// IsOutstanding reports whether the invoice can take a payment allocation
func (i *Invoice) IsOutstanding() bool {
	return i.Status == InvoiceStatusPosted && i.Debt().IsPositive()
}

// SetDiscount sets the invoice discount amount
func (i *Invoice) SetDiscount(amount decimal.Decimal) error {
	if i.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot change discount on a cancelled invoice")
	}
	if amount.IsNegative() {
		return shared.NewValidationError("discount_amount", "Discount amount cannot be negative")
	}
	if amount.GreaterThan(i.Subtotal()) {
		return shared.NewValidationError("discount_amount", "Discount amount cannot exceed invoice subtotal")
	}
	i.DiscountAmount = valueobject.RoundCurrency(amount)
	i.refreshDebt()
	return nil
}

// ApplyPayment records money received against this invoice. The amount may
// not exceed the current debt.
func (i *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if i.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot pay a cancelled invoice")
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "Payment amount must be positive")
	}
	if amount.GreaterThan(i.Debt()) {
		return shared.NewAllocationOverrunError(i.ID, amount, i.Debt())
	}
	i.PaidAmount = i.PaidAmount.Add(amount)
	i.refreshDebt()
	i.UpdatedAt = time.Now()
	return nil
}

// CarryDeposit applies part of the source order's deposit to this invoice
func (i *Invoice) CarryDeposit(amount decimal.Decimal) error {
	if err := i.ApplyPayment(amount); err != nil {
		return err
	}
	i.DepositApplied = i.DepositApplied.Add(amount)
	return nil
}

// ReleasePayment takes back money applied by a cancelled payment. A
// cancelled invoice keeps its paid amount.
func (i *Invoice) ReleasePayment(amount decimal.Decimal) error {
	if i.Status == InvoiceStatusCancelled {
		return nil
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "Released amount must be positive")
	}
	if amount.GreaterThan(i.PaidAmount) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot release %s from invoice %s paid %s", amount, i.Code, i.PaidAmount))
	}
	i.PaidAmount = i.PaidAmount.Sub(amount)
	i.refreshDebt()
	i.UpdatedAt = time.Now()
	return nil
}

// Post finalises a draft invoice
func (i *Invoice) Post() error {
	if !i.Status.CanTransitionTo(InvoiceStatusPosted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot post invoice in %s status", i.Status))
	}
	now := time.Now()
	i.Status = InvoiceStatusPosted
	i.PostedAt = &now
	i.UpdatedAt = now
	i.AddDomainEvent(NewInvoiceEvent(EventTypeInvoicePosted, i))
	return nil
}

// Cancel voids the invoice. Payments already applied are left in place.
func (i *Invoice) Cancel(reason string) error {
	if !i.Status.CanTransitionTo(InvoiceStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", i.Status))
	}
	if reason == "" {
		return shared.NewValidationError("reason", "Cancel reason is required")
	}
	now := time.Now()
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &now
	i.CancelReason = reason
	i.UpdatedAt = now
	i.AddDomainEvent(NewInvoiceEvent(EventTypeInvoiceCancelled, i))
	return nil
}

// ReplaceLines edits the lines of a draft or posted invoice
func (i *Invoice) ReplaceLines(lines []Line) error {
	if i.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot edit a cancelled invoice")
	}
	if err := ValidateCart(lines); err != nil {
		return err
	}
	if i.DiscountAmount.GreaterThan(Subtotal(lines)) {
		return shared.NewValidationError("discount_amount", "Discount amount cannot exceed invoice subtotal")
	}
	i.Lines = cloneLines(lines)
	i.refreshDebt()
	i.UpdatedAt = time.Now()
	return nil
}

// MarkUpdated raises the update event after an edit
func (i *Invoice) MarkUpdated() {
	i.AddDomainEvent(NewInvoiceEvent(EventTypeInvoiceUpdated, i))
}
