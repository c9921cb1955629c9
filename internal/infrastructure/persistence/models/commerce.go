package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineModel holds the columns shared by order and invoice lines.
// Position keeps the cart order stable across reloads.
type LineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	Position     int             `gorm:"not null"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineDiscount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

func (m *LineModel) toDomain() commerce.Line {
	return commerce.Line{
		ProductID:    m.ProductID,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		LineDiscount: m.LineDiscount,
	}
}

func lineModelFromDomain(position int, l commerce.Line) LineModel {
	return LineModel{
		ID:           uuid.New(),
		Position:     position,
		ProductID:    l.ProductID,
		Quantity:     l.Quantity,
		UnitPrice:    l.UnitPrice,
		LineDiscount: l.LineDiscount,
	}
}

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	AggregateModel
	Code           string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	BranchID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	Lines          []OrderLineModel     `gorm:"foreignKey:OrderID;references:ID"`
	DiscountAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountRatio  decimal.Decimal      `gorm:"type:decimal(9,4);not null;default:0"`
	PaidAmount     decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	DepositApplied decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	DeliveryMeta   string               `gorm:"type:jsonb;default:'{}'"`
	Note           string               `gorm:"type:text"`
	Status         commerce.OrderStatus `gorm:"type:varchar(30);not null;default:'DRAFT';index"`
	ConfirmedAt    *time.Time
	FulfilledAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *commerce.Order {
	order := &commerce.Order{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Code:              m.Code,
		CustomerID:        m.CustomerID,
		BranchID:          m.BranchID,
		Lines:             make([]commerce.Line, len(m.Lines)),
		DiscountAmount:    m.DiscountAmount,
		DiscountRatio:     m.DiscountRatio,
		PaidAmount:        m.PaidAmount,
		DepositApplied:    m.DepositApplied,
		DeliveryMeta:      DecodeMeta(m.DeliveryMeta),
		Note:              m.Note,
		Status:            m.Status,
		ConfirmedAt:       m.ConfirmedAt,
		FulfilledAt:       m.FulfilledAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
	}
	for i := range m.Lines {
		order.Lines[i] = m.Lines[i].toDomain()
	}
	return order
}

// FromDomain populates the persistence model from a domain Order.
func (m *OrderModel) FromDomain(o *commerce.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Code = o.Code
	m.CustomerID = o.CustomerID
	m.BranchID = o.BranchID
	m.DiscountAmount = o.DiscountAmount
	m.DiscountRatio = o.DiscountRatio
	m.PaidAmount = o.PaidAmount
	m.DepositApplied = o.DepositApplied
	m.DeliveryMeta = EncodeMeta(o.DeliveryMeta)
	m.Note = o.Note
	m.Status = o.Status
	m.ConfirmedAt = o.ConfirmedAt
	m.FulfilledAt = o.FulfilledAt
	m.CancelledAt = o.CancelledAt
	m.CancelReason = o.CancelReason
	m.Lines = make([]OrderLineModel, len(o.Lines))
	for i, l := range o.Lines {
		m.Lines[i] = OrderLineModel{OrderID: o.ID, LineModel: lineModelFromDomain(i, l)}
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *commerce.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderLineModel is one cart line of an order.
type OrderLineModel struct {
	LineModel
	OrderID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	Code           string                 `gorm:"type:varchar(50);not null;uniqueIndex"`
	SourceOrderID  *uuid.UUID             `gorm:"type:uuid;index"`
	CustomerID     uuid.UUID              `gorm:"type:uuid;not null;index"`
	BranchID       uuid.UUID              `gorm:"type:uuid;not null;index"`
	Lines          []InvoiceLineModel     `gorm:"foreignKey:InvoiceID;references:ID"`
	DiscountAmount decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount     decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	DepositApplied decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	DebtAmount     decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	DeliveryMeta   string                 `gorm:"type:jsonb;default:'{}'"`
	Note           string                 `gorm:"type:text"`
	Status         commerce.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	PostedAt       *time.Time             `gorm:"index"`
	CancelledAt    *time.Time
	CancelReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *commerce.Invoice {
	inv := &commerce.Invoice{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Code:              m.Code,
		SourceOrderID:     m.SourceOrderID,
		CustomerID:        m.CustomerID,
		BranchID:          m.BranchID,
		Lines:             make([]commerce.Line, len(m.Lines)),
		DiscountAmount:    m.DiscountAmount,
		PaidAmount:        m.PaidAmount,
		DepositApplied:    m.DepositApplied,
		DebtAmount:        m.DebtAmount,
		DeliveryMeta:      DecodeMeta(m.DeliveryMeta),
		Note:              m.Note,
		Status:            m.Status,
		PostedAt:          m.PostedAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
	}
	for i := range m.Lines {
		inv.Lines[i] = m.Lines[i].toDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *commerce.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.Code = inv.Code
	m.SourceOrderID = inv.SourceOrderID
	m.CustomerID = inv.CustomerID
	m.BranchID = inv.BranchID
	m.DiscountAmount = inv.DiscountAmount
	m.PaidAmount = inv.PaidAmount
	m.DepositApplied = inv.DepositApplied
	m.DebtAmount = inv.DebtAmount
	m.DeliveryMeta = EncodeMeta(inv.DeliveryMeta)
	m.Note = inv.Note
	m.Status = inv.Status
	m.PostedAt = inv.PostedAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.Lines = make([]InvoiceLineModel, len(inv.Lines))
	for i, l := range inv.Lines {
		m.Lines[i] = InvoiceLineModel{InvoiceID: inv.ID, LineModel: lineModelFromDomain(i, l)}
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *commerce.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceLineModel is one billed line of an invoice.
type InvoiceLineModel struct {
	LineModel
	InvoiceID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AggregateModel
	Code        string                   `gorm:"type:varchar(50);not null;uniqueIndex"`
	IsReceipt   bool                     `gorm:"not null;default:true"`
	Amount      decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Method      commerce.PaymentMethod   `gorm:"type:varchar(20);not null"`
	PartyType   commerce.PartyType       `gorm:"type:varchar(20);not null"`
	PartyID     *uuid.UUID               `gorm:"type:uuid;index"`
	CollectorID uuid.UUID                `gorm:"type:uuid;not null"`
	OrderID     *uuid.UUID               `gorm:"type:uuid;index"`
	Allocations []PaymentAllocationModel `gorm:"foreignKey:PaymentID;references:ID"`
	AffectsDebt bool                     `gorm:"not null;default:true"`
	PaidAt      time.Time                `gorm:"not null;index"`
	Note        string                   `gorm:"type:text"`
	Status      commerce.PaymentStatus   `gorm:"type:varchar(20);not null;default:'POSTED'"`
	CancelledAt *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *commerce.Payment {
	p := &commerce.Payment{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Code:              m.Code,
		IsReceipt:         m.IsReceipt,
		Amount:            m.Amount,
		Method:            m.Method,
		PartyType:         m.PartyType,
		PartyID:           m.PartyID,
		CollectorID:       m.CollectorID,
		OrderID:           m.OrderID,
		Allocations:       make([]commerce.Allocation, len(m.Allocations)),
		AffectsDebt:       m.AffectsDebt,
		PaidAt:            m.PaidAt,
		Note:              m.Note,
		Status:            m.Status,
		CancelledAt:       m.CancelledAt,
	}
	for i, a := range m.Allocations {
		p.Allocations[i] = commerce.Allocation{InvoiceID: a.InvoiceID, Amount: a.Amount}
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *commerce.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Code = p.Code
	m.IsReceipt = p.IsReceipt
	m.Amount = p.Amount
	m.Method = p.Method
	m.PartyType = p.PartyType
	m.PartyID = p.PartyID
	m.CollectorID = p.CollectorID
	m.OrderID = p.OrderID
	m.AffectsDebt = p.AffectsDebt
	m.PaidAt = p.PaidAt
	m.Note = p.Note
	m.Status = p.Status
	m.CancelledAt = p.CancelledAt
	m.Allocations = make([]PaymentAllocationModel, len(p.Allocations))
	for i, a := range p.Allocations {
		m.Allocations[i] = PaymentAllocationModel{
			ID:        uuid.New(),
			PaymentID: p.ID,
			InvoiceID: a.InvoiceID,
			Position:  i,
			Amount:    a.Amount,
		}
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *commerce.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentAllocationModel is the part of a payment applied to one invoice.
type PaymentAllocationModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position  int             `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "payment_allocations"
}
