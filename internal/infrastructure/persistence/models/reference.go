package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the customer read model owned by customer management.
type CustomerModel struct {
	BaseModel
	Code        string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Phone       string          `gorm:"type:varchar(50)"`
	OpeningDebt decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Active      bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to the commerce customer view.
func (m *CustomerModel) ToDomain() *commerce.Customer {
	return &commerce.Customer{
		ID:          m.ID,
		Code:        m.Code,
		Name:        m.Name,
		Phone:       m.Phone,
		OpeningDebt: m.OpeningDebt,
		Active:      m.Active,
	}
}

// PriceBookModel is a named price list, optionally bounded in time.
type PriceBookModel struct {
	BaseModel
	Name      string `gorm:"type:varchar(200);not null"`
	Active    bool   `gorm:"not null;default:true"`
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// TableName returns the table name for GORM
func (PriceBookModel) TableName() string {
	return "price_books"
}

// CoversAt reports whether the book is usable at t
func (m *PriceBookModel) CoversAt(t time.Time) bool {
	if !m.Active {
		return false
	}
	if m.ValidFrom != nil && t.Before(*m.ValidFrom) {
		return false
	}
	if m.ValidTo != nil && t.After(*m.ValidTo) {
		return false
	}
	return true
}

// PriceBookItemModel is a product price inside a book. A nil BranchID applies to every branch.
type PriceBookItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	PriceBookID uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_book_item,priority:1"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_book_item,priority:2"`
	BranchID    *uuid.UUID      `gorm:"type:uuid"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PriceBookItemModel) TableName() string {
	return "price_book_items"
}
