package persistence

import (
	"context"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCustomerService reads customers and computes their aggregate debt
type GormCustomerService struct {
	db *gorm.DB
}

// NewGormCustomerService creates a new GormCustomerService
func NewGormCustomerService(db *gorm.DB) *GormCustomerService {
	return &GormCustomerService{db: db}
}

// Get finds a customer by ID
func (s *GormCustomerService) Get(ctx context.Context, id uuid.UUID) (*commerce.Customer, error) {
	var model models.CustomerModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// AggregateDebt is opening debt plus the debt of posted invoices, minus the
// unallocated part of posted receipts that count against debt.
func (s *GormCustomerService) AggregateDebt(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	debt := customer.OpeningDebt

	var invoiceDebts []decimal.Decimal
	if err := s.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("customer_id = ? AND status = ?", id, commerce.InvoiceStatusPosted).
		Pluck("debt_amount", &invoiceDebts).Error; err != nil {
		return decimal.Zero, err
	}
	for _, d := range invoiceDebts {
		debt = debt.Add(d)
	}

	var receipts []models.PaymentModel
	if err := s.db.WithContext(ctx).
		Preload("Allocations").
		Where("party_id = ? AND party_type = ? AND status = ? AND is_receipt = ? AND affects_debt = ?",
			id, commerce.PartyTypeCustomer, commerce.PaymentStatusPosted, true, true).
		Find(&receipts).Error; err != nil {
		return decimal.Zero, err
	}
	for i := range receipts {
		debt = debt.Sub(receipts[i].ToDomain().UnallocatedAmount())
	}

	return debt, nil
}

var _ commerce.CustomerService = (*GormCustomerService)(nil)
