package commerce

import (
	"time"

	draftapp "github.com/erp/backoffice/internal/application/draft"
	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Lines ====================

// LineInput is one cart line as entered by the user
type LineInput struct {
	ProductID    uuid.UUID       `json:"product_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineDiscount decimal.Decimal `json:"line_discount"`
}

// LineResponse is a document line with its computed total
type LineResponse struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineDiscount decimal.Decimal `json:"line_discount"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

func toLines(inputs []LineInput) ([]commerce.Line, error) {
	lines := make([]commerce.Line, 0, len(inputs))
	for _, in := range inputs {
		l, err := commerce.NewLine(in.ProductID, in.Quantity, in.UnitPrice, in.LineDiscount)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func toLineResponses(lines []commerce.Line) []LineResponse {
	out := make([]LineResponse, len(lines))
	for i, l := range lines {
		out[i] = LineResponse{
			ProductID:    l.ProductID,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			LineDiscount: l.LineDiscount,
			TotalPrice:   l.TotalPrice(),
		}
	}
	return out
}

// PaymentInput is money taken together with a document transition
type PaymentInput struct {
	Amount      decimal.Decimal        `json:"amount"`
	Method      commerce.PaymentMethod `json:"method"`
	CollectorID uuid.UUID              `json:"collector_id"`
	Note        string                 `json:"note"`
}

// ==================== Orders ====================

// CreateOrderRequest creates an order, optionally with a deposit
type CreateOrderRequest struct {
	CustomerID     uuid.UUID       `json:"customer_id" binding:"required"`
	BranchID       uuid.UUID       `json:"branch_id" binding:"required"`
	Lines          []LineInput     `json:"lines" binding:"required,min=1,dive"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountRatio  decimal.Decimal `json:"discount_ratio"`
	Deposit        *PaymentInput   `json:"deposit"`
	DeliveryMeta   map[string]any  `json:"delivery_meta"`
	Note           string          `json:"note"`
	Confirm        bool            `json:"confirm"`
}

// OrderPatch edits an open order. Nil fields are left unchanged.
type OrderPatch struct {
	ExpectedVersion int              `json:"expected_version" binding:"required,gt=0"`
	Lines           []LineInput      `json:"lines" binding:"omitempty,dive"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount"`
	DiscountRatio   *decimal.Decimal `json:"discount_ratio"`
	DeliveryMeta    map[string]any   `json:"delivery_meta"`
	Note            *string          `json:"note"`
	Payment         *PaymentInput    `json:"payment"`
}

// OrderResponse is the API view of an order
type OrderResponse struct {
	ID                uuid.UUID            `json:"id"`
	Code              string               `json:"code"`
	CustomerID        uuid.UUID            `json:"customer_id"`
	BranchID          uuid.UUID            `json:"branch_id"`
	Lines             []LineResponse       `json:"lines"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	DiscountAmount    decimal.Decimal      `json:"discount_amount"`
	DiscountRatio     decimal.Decimal      `json:"discount_ratio"`
	EffectiveDiscount decimal.Decimal      `json:"effective_discount"`
	GrandTotal        decimal.Decimal      `json:"grand_total"`
	PaidAmount        decimal.Decimal      `json:"paid_amount"`
	DepositApplied    decimal.Decimal      `json:"deposit_applied"`
	DeliveryMeta      map[string]any       `json:"delivery_meta,omitempty"`
	Note              string               `json:"note,omitempty"`
	Status            commerce.OrderStatus `json:"status"`
	Version           int                  `json:"version"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	ConfirmedAt       *time.Time           `json:"confirmed_at,omitempty"`
	FulfilledAt       *time.Time           `json:"fulfilled_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason      string               `json:"cancel_reason,omitempty"`
}

// ToOrderResponse converts a domain order
func ToOrderResponse(o *commerce.Order) *OrderResponse {
	return &OrderResponse{
		ID:                o.ID,
		Code:              o.Code,
		CustomerID:        o.CustomerID,
		BranchID:          o.BranchID,
		Lines:             toLineResponses(o.Lines),
		Subtotal:          o.Subtotal(),
		DiscountAmount:    o.DiscountAmount,
		DiscountRatio:     o.DiscountRatio,
		EffectiveDiscount: o.EffectiveDiscount(),
		GrandTotal:        o.GrandTotal(),
		PaidAmount:        o.PaidAmount,
		DepositApplied:    o.DepositApplied,
		DeliveryMeta:      o.DeliveryMeta,
		Note:              o.Note,
		Status:            o.Status,
		Version:           o.Version,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		ConfirmedAt:       o.ConfirmedAt,
		FulfilledAt:       o.FulfilledAt,
		CancelledAt:       o.CancelledAt,
		CancelReason:      o.CancelReason,
	}
}

// ==================== Invoices ====================

// CreateInvoiceRequest creates a standalone invoice. It is posted unless SaveAsDraft is set.
type CreateInvoiceRequest struct {
	CustomerID     uuid.UUID       `json:"customer_id" binding:"required"`
	BranchID       uuid.UUID       `json:"branch_id" binding:"required"`
	Lines          []LineInput     `json:"lines" binding:"required,min=1,dive"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Payment        *PaymentInput   `json:"payment"`
	DeliveryMeta   map[string]any  `json:"delivery_meta"`
	Note           string          `json:"note"`
	SaveAsDraft    bool            `json:"save_as_draft"`
}

// InvoicePatch edits a draft or posted invoice. Nil fields are left unchanged.
type InvoicePatch struct {
	ExpectedVersion int              `json:"expected_version" binding:"required,gt=0"`
	Lines           []LineInput      `json:"lines" binding:"omitempty,dive"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount"`
	DeliveryMeta    map[string]any   `json:"delivery_meta"`
	Note            *string          `json:"note"`
	Payment         *PaymentInput    `json:"payment"`
}

// InvoiceResponse is the API view of an invoice
type InvoiceResponse struct {
	ID             uuid.UUID              `json:"id"`
	Code           string                 `json:"code"`
	SourceOrderID  *uuid.UUID             `json:"source_order_id,omitempty"`
	CustomerID     uuid.UUID              `json:"customer_id"`
	BranchID       uuid.UUID              `json:"branch_id"`
	Lines          []LineResponse         `json:"lines"`
	Subtotal       decimal.Decimal        `json:"subtotal"`
	DiscountAmount decimal.Decimal        `json:"discount_amount"`
	GrandTotal     decimal.Decimal        `json:"grand_total"`
	PaidAmount     decimal.Decimal        `json:"paid_amount"`
	DepositApplied decimal.Decimal        `json:"deposit_applied"`
	DebtAmount     decimal.Decimal        `json:"debt_amount"`
	DeliveryMeta   map[string]any         `json:"delivery_meta,omitempty"`
	Note           string                 `json:"note,omitempty"`
	Status         commerce.InvoiceStatus `json:"status"`
	Version        int                    `json:"version"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	PostedAt       *time.Time             `json:"posted_at,omitempty"`
	CancelledAt    *time.Time             `json:"cancelled_at,omitempty"`
	CancelReason   string                 `json:"cancel_reason,omitempty"`
}

// ToInvoiceResponse converts a domain invoice
func ToInvoiceResponse(i *commerce.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:             i.ID,
		Code:           i.Code,
		SourceOrderID:  i.SourceOrderID,
		CustomerID:     i.CustomerID,
		BranchID:       i.BranchID,
		Lines:          toLineResponses(i.Lines),
		Subtotal:       i.Subtotal(),
		DiscountAmount: i.DiscountAmount,
		GrandTotal:     i.GrandTotal(),
		PaidAmount:     i.PaidAmount,
		DepositApplied: i.DepositApplied,
		DebtAmount:     i.Debt(),
		DeliveryMeta:   i.DeliveryMeta,
		Note:           i.Note,
		Status:         i.Status,
		Version:        i.Version,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
		PostedAt:       i.PostedAt,
		CancelledAt:    i.CancelledAt,
		CancelReason:   i.CancelReason,
	}
}

// ==================== Conversion ====================

// Conversion paths
const (
	ConversionPathFast = "fast" // cart equals the order's remaining lines
	ConversionPathFull = "full" // cart was changed
)

// Conversion outcomes
const (
	ConversionCreated                      = "CREATED"
	ConversionDiscountConfirmationRequired = "DISCOUNT_CONFIRMATION_REQUIRED"
)

// ConvertOrderRequest raises an invoice against an order.
//
// An empty Lines takes the order's remaining lines. ApplyRemainingDiscount
// answers the proration question on the last invoice; leaving it nil while
// unused discount exists returns a confirmation request and writes nothing.
type ConvertOrderRequest struct {
	ExpectedVersion        int              `json:"expected_version" binding:"required,gt=0"`
	Lines                  []LineInput      `json:"lines" binding:"omitempty,dive"`
	DiscountAmount         *decimal.Decimal `json:"discount_amount"`
	ApplyRemainingDiscount *bool            `json:"apply_remaining_discount"`
	Payment                *PaymentInput    `json:"payment"`
	DeliveryMeta           map[string]any   `json:"delivery_meta"`
	Note                   string           `json:"note"`
}

// ConversionResult is the outcome of ConvertOrderToInvoice
type ConversionResult struct {
	Status    string                      `json:"status"`
	Path      string                      `json:"path"`
	IsLast    bool                        `json:"is_last"`
	Proration *commerce.DiscountProration `json:"proration,omitempty"`
	Order     *OrderResponse              `json:"order"`
	Invoice   *InvoiceResponse            `json:"invoice,omitempty"`
	Payment   *PaymentResponse            `json:"payment,omitempty"`
}

// ConversionPreview pre-populates a conversion cart
type ConversionPreview struct {
	Order            *OrderResponse                `json:"order"`
	RemainingLines   []LineResponse                `json:"remaining_lines"`
	Invoiced         map[uuid.UUID]decimal.Decimal `json:"invoiced"`
	Proration        commerce.DiscountProration    `json:"proration"`
	DepositAvailable decimal.Decimal               `json:"deposit_available"`
	InvoiceCount     int                           `json:"invoice_count"`
}

// ==================== Payments ====================

// AllocationInput is one manual per-invoice entry
type AllocationInput struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// RecordPaymentRequest records a cash or receipt voucher.
//
// With no Policy the payment is not tied to any invoice. FIFO spreads Amount
// over the party's outstanding invoices; MANUAL takes Allocations and derives
// the amount from them.
type RecordPaymentRequest struct {
	IsReceipt   bool                      `json:"is_receipt"`
	Amount      decimal.Decimal           `json:"amount"`
	Method      commerce.PaymentMethod    `json:"method"`
	PartyType   commerce.PartyType        `json:"party_type"`
	PartyID     *uuid.UUID                `json:"party_id"`
	CollectorID uuid.UUID                 `json:"collector_id"`
	AffectsDebt *bool                     `json:"affects_debt"`
	Policy      commerce.AllocationPolicy `json:"policy"`
	Allocations []AllocationInput         `json:"allocations" binding:"omitempty,dive"`
	Note        string                    `json:"note"`
}

// PreviewAllocationRequest runs the allocator without writing
type PreviewAllocationRequest struct {
	PartyID     uuid.UUID                 `json:"party_id" binding:"required"`
	Amount      decimal.Decimal           `json:"amount"`
	Policy      commerce.AllocationPolicy `json:"policy"`
	Allocations []AllocationInput         `json:"allocations" binding:"omitempty,dive"`
}

// PaymentResponse is the API view of a payment
type PaymentResponse struct {
	ID          uuid.UUID              `json:"id"`
	Code        string                 `json:"code"`
	IsReceipt   bool                   `json:"is_receipt"`
	Amount      decimal.Decimal        `json:"amount"`
	Method      commerce.PaymentMethod `json:"method"`
	PartyType   commerce.PartyType     `json:"party_type"`
	PartyID     *uuid.UUID             `json:"party_id,omitempty"`
	CollectorID uuid.UUID              `json:"collector_id"`
	OrderID     *uuid.UUID             `json:"order_id,omitempty"`
	Allocations []commerce.Allocation  `json:"allocations"`
	Unallocated decimal.Decimal        `json:"unallocated"`
	AffectsDebt bool                   `json:"affects_debt"`
	PaidAt      time.Time              `json:"paid_at"`
	Note        string                 `json:"note,omitempty"`
	Status      commerce.PaymentStatus `json:"status"`
}

// ToPaymentResponse converts a domain payment
func ToPaymentResponse(p *commerce.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:          p.ID,
		Code:        p.Code,
		IsReceipt:   p.IsReceipt,
		Amount:      p.Amount,
		Method:      p.Method,
		PartyType:   p.PartyType,
		PartyID:     p.PartyID,
		CollectorID: p.CollectorID,
		OrderID:     p.OrderID,
		Allocations: p.Allocations,
		Unallocated: p.UnallocatedAmount(),
		AffectsDebt: p.AffectsDebt,
		PaidAt:      p.PaidAt,
		Note:        p.Note,
		Status:      p.Status,
	}
}

// PaymentResult is the outcome of RecordPayment
type PaymentResult struct {
	Payment *PaymentResponse         `json:"payment"`
	Plan    *commerce.AllocationPlan `json:"plan,omitempty"`
}

// InvoiceDebt is one outstanding invoice in a debt summary
type InvoiceDebt struct {
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Code       string          `json:"code"`
	DebtAmount decimal.Decimal `json:"debt_amount"`
	IssuedAt   time.Time       `json:"issued_at"`
}

// DebtSummary is a customer's aggregate debt with the invoices behind it
type DebtSummary struct {
	CustomerID    uuid.UUID       `json:"customer_id"`
	AggregateDebt decimal.Decimal `json:"aggregate_debt"`
	Outstanding   []InvoiceDebt   `json:"outstanding"`
}

// ==================== Pricing ====================

// PriceItem is one product to quote
type PriceItem struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// ProposeCartRequest quotes every product of a cart against one price book
type ProposeCartRequest struct {
	BranchID    uuid.UUID   `json:"branch_id" binding:"required"`
	PriceBookID *uuid.UUID  `json:"price_book_id"`
	Items       []PriceItem `json:"items" binding:"required,min=1,dive"`
}

// QuoteResponse is one proposed price
type QuoteResponse struct {
	pricing.Quote
	NeedsDecision bool   `json:"needs_decision"`
	Warning       string `json:"warning,omitempty"`
}

// CartQuote is the result of ProposeCartPrices, in request order
type CartQuote struct {
	Quotes        []QuoteResponse `json:"quotes"`
	NeedsDecision bool            `json:"needs_decision"`
	Warnings      []string        `json:"warnings"`
}

// ConfirmPriceRequest answers a NotCovered quote
type ConfirmPriceRequest struct {
	ProductID     uuid.UUID            `json:"product_id" binding:"required"`
	BranchID      uuid.UUID            `json:"branch_id" binding:"required"`
	PriceBookID   *uuid.UUID           `json:"price_book_id"`
	BasePrice     decimal.Decimal      `json:"base_price"`
	Decision      pricing.DecisionKind `json:"decision" binding:"required,oneof=PROCEED ABORT"`
	OverridePrice *decimal.Decimal     `json:"override_price"`
}

// ==================== Edit sessions ====================

// OrderEditSession is an order opened for editing
type OrderEditSession struct {
	Order *OrderResponse       `json:"order"`
	Draft *draftapp.Resolution `json:"draft"`
}

// InvoiceEditSession is an invoice opened for editing
type InvoiceEditSession struct {
	Invoice *InvoiceResponse     `json:"invoice"`
	Draft   *draftapp.Resolution `json:"draft"`
}
