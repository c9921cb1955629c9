package commerce

import (
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of a sales order
type OrderStatus string

const (
	OrderStatusDraft             OrderStatus = "DRAFT"
	OrderStatusConfirmed         OrderStatus = "CONFIRMED"
	OrderStatusPartiallyInvoiced OrderStatus = "PARTIALLY_INVOICED"
	OrderStatusFulfilled         OrderStatus = "FULFILLED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusConfirmed, OrderStatusPartiallyInvoiced, OrderStatusFulfilled, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusDraft:
		return target == OrderStatusConfirmed || target == OrderStatusCancelled
	case OrderStatusConfirmed:
		return target == OrderStatusPartiallyInvoiced || target == OrderStatusFulfilled || target == OrderStatusCancelled
	case OrderStatusPartiallyInvoiced:
		return target == OrderStatusPartiallyInvoiced || target == OrderStatusFulfilled ||
			target == OrderStatusCancelled || target == OrderStatusConfirmed
	case OrderStatusFulfilled:
		// only through Reopen, when an invoice of the order is cancelled
		return target == OrderStatusPartiallyInvoiced || target == OrderStatusConfirmed
	}
	return false
}

// CanInvoice reports whether invoices may be raised against the order
func (s OrderStatus) CanInvoice() bool {
	return s == OrderStatusConfirmed || s == OrderStatusPartiallyInvoiced
}

// Order is a reserved or deposited sale that is billed through one or more invoices.
//
// PaidAmount accumulates deposits posted against the order. DepositApplied is the
// part of it already carried into invoices.
type Order struct {
	shared.BaseAggregateRoot
	Code           string
	CustomerID     uuid.UUID
	BranchID       uuid.UUID
	Lines          []Line
	DiscountAmount decimal.Decimal
	DiscountRatio  decimal.Decimal // percent, used only when DiscountAmount is zero
	PaidAmount     decimal.Decimal
	DepositApplied decimal.Decimal
	DeliveryMeta   map[string]any
	Note           string
	Status         OrderStatus
	ConfirmedAt    *time.Time
	FulfilledAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewOrder creates a draft order
func NewOrder(code string, customerID, branchID uuid.UUID, lines []Line) (*Order, error) {
	if code == "" {
		return nil, shared.NewValidationError("code", "Order code cannot be empty")
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

	order := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		CustomerID:        customerID,
		BranchID:          branchID,
		Lines:             cloneLines(lines),
		DiscountAmount:    decimal.Zero,
		DiscountRatio:     decimal.Zero,
		PaidAmount:        decimal.Zero,
		DepositApplied:    decimal.Zero,
		Status:            OrderStatusDraft,
	}
	order.AddDomainEvent(NewOrderEvent(EventTypeOrderCreated, order))
	return order, nil
}

// SetDiscount sets the order-level discount. A positive amount wins over the ratio.
func (o *Order) SetDiscount(amount, ratio decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewValidationError("discount_amount", "Discount amount cannot be negative")
	}
	if ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewValidationError("discount_ratio", "Discount ratio must be between 0 and 100")
	}
	if amount.GreaterThan(o.Subtotal()) {
		return shared.NewValidationError("discount_amount", "Discount amount cannot exceed order subtotal")
	}
	o.DiscountAmount = valueobject.RoundCurrency(amount)
	if amount.IsPositive() {
		o.DiscountRatio = decimal.Zero
	} else {
		o.DiscountRatio = ratio
	}
	return nil
}

// Subtotal is the sum of line totals
func (o *Order) Subtotal() decimal.Decimal {
	return Subtotal(o.Lines)
}

// EffectiveDiscount resolves the discount intent to an amount
func (o *Order) EffectiveDiscount() decimal.Decimal {
	if o.DiscountAmount.IsPositive() {
		return o.DiscountAmount
	}
	if o.DiscountRatio.IsPositive() {
		return valueobject.RoundCurrency(o.Subtotal().Mul(o.DiscountRatio).Div(decimal.NewFromInt(100)))
	}
	return decimal.Zero
}

// GrandTotal is subtotal less the effective discount, floored at zero
func (o *Order) GrandTotal() decimal.Decimal {
	return valueobject.NonNegative(o.Subtotal().Sub(o.EffectiveDiscount()))
}

// UnconsumedDeposit is the deposit not yet carried into an invoice
func (o *Order) UnconsumedDeposit() decimal.Decimal {
	return valueobject.NonNegative(o.PaidAmount.Sub(o.DepositApplied))
}

// LineFor returns the order line for a product
func (o *Order) LineFor(productID uuid.UUID) (Line, bool) {
	for _, l := range o.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// Confirm moves a draft order to confirmed
func (o *Order) Confirm() error {
	if o.Status != OrderStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm order in %s status", o.Status))
	}
	now := time.Now()
	o.Status = OrderStatusConfirmed
	o.ConfirmedAt = &now
	o.UpdatedAt = now
	o.AddDomainEvent(NewOrderEvent(EventTypeOrderConfirmed, o))
	return nil
}

// Cancel moves a non-terminal order to cancelled
func (o *Order) Cancel(reason string) error {
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}
	if reason == "" {
		return shared.NewValidationError("reason", "Cancel reason is required")
	}
	now := time.Now()
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	o.UpdatedAt = now
	o.AddDomainEvent(NewOrderEvent(EventTypeOrderCancelled, o))
	return nil
}

// ReplaceLines swaps the order lines while the order is still open
func (o *Order) ReplaceLines(lines []Line) error {
	if o.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot edit order in %s status", o.Status))
	}
	if err := ValidateCart(lines); err != nil {
		return err
	}
	if o.DiscountAmount.GreaterThan(Subtotal(lines)) {
		return shared.NewValidationError("discount_amount", "Discount amount cannot exceed order subtotal")
	}
	o.Lines = cloneLines(lines)
	o.UpdatedAt = time.Now()
	return nil
}

// RecordDeposit adds a posted deposit payment to the order
func (o *Order) RecordDeposit(amount decimal.Decimal) error {
	if o.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot take a deposit on order in %s status", o.Status))
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "Deposit must be positive")
	}
	o.PaidAmount = o.PaidAmount.Add(amount)
	o.UpdatedAt = time.Now()
	return nil
}

// ConsumeDeposit carries up to limit of the unconsumed deposit into an invoice
// and returns the amount carried.
func (o *Order) ConsumeDeposit(limit decimal.Decimal) decimal.Decimal {
	consumed := decimal.Min(o.UnconsumedDeposit(), valueobject.NonNegative(limit))
	o.DepositApplied = o.DepositApplied.Add(consumed)
	return consumed
}

// ReleaseDeposit removes a cancelled deposit payment from the order. Only the
// unconsumed part of the deposit can be taken back.
func (o *Order) ReleaseDeposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "Released deposit must be positive")
	}
	if amount.GreaterThan(o.UnconsumedDeposit()) {
		return shared.NewValidationError("amount", fmt.Sprintf(
			"Deposit of %s is already carried into invoices; only %s can be released", amount, o.UnconsumedDeposit()))
	}
	o.PaidAmount = o.PaidAmount.Sub(amount)
	o.UpdatedAt = time.Now()
	return nil
}

// ReturnDeposit gives back deposit that a cancelled invoice had consumed
func (o *Order) ReturnDeposit(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	o.DepositApplied = valueobject.NonNegative(o.DepositApplied.Sub(amount))
	o.UpdatedAt = time.Now()
}

// Reopen recomputes an invoiced order's status after one of its invoices was
// cancelled. activeInvoices counts the invoices still standing. Draft and
// cancelled orders are left alone.
func (o *Order) Reopen(activeInvoices int) error {
	if o.Status != OrderStatusPartiallyInvoiced && o.Status != OrderStatusFulfilled {
		return nil
	}
	target := OrderStatusPartiallyInvoiced
	if activeInvoices == 0 {
		target = OrderStatusConfirmed
	}
	if o.Status == target {
		return nil
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reopen order in %s status", o.Status))
	}
	o.Status = target
	o.FulfilledAt = nil
	o.UpdatedAt = time.Now()
	o.AddDomainEvent(NewOrderEvent(EventTypeOrderReopened, o))
	return nil
}

// MarkInvoiced records that an invoice was raised. isLast closes the order.
func (o *Order) MarkInvoiced(isLast bool) error {
	target := OrderStatusPartiallyInvoiced
	if isLast {
		target = OrderStatusFulfilled
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot invoice order in %s status", o.Status))
	}
	now := time.Now()
	o.Status = target
	o.UpdatedAt = now
	if isLast {
		o.FulfilledAt = &now
		o.AddDomainEvent(NewOrderEvent(EventTypeOrderFulfilled, o))
	} else {
		o.AddDomainEvent(NewOrderEvent(EventTypeOrderPartiallyInvoiced, o))
	}
	return nil
}

// MarkUpdated raises the update event after an edit
func (o *Order) MarkUpdated() {
	o.AddDomainEvent(NewOrderEvent(EventTypeOrderUpdated, o))
}
