package persistence

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements commerce.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db, now: time.Now}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx, now: r.now}
}

func (r *GormInvoiceRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.Invoice, error) {
	var model models.InvoiceModel
	if err := r.withLines(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindBySourceOrder returns every invoice created from an order, oldest first
func (r *GormInvoiceRepository) FindBySourceOrder(ctx context.Context, orderID uuid.UUID) ([]*commerce.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.withLines(ctx).
		Where("source_order_id = ?", orderID).
		Order("created_at ASC, code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(rows), nil
}

// FindOutstandingByCustomer returns posted invoices that still carry debt, oldest first
func (r *GormInvoiceRepository) FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]*commerce.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.withLines(ctx).
		Where("customer_id = ? AND status = ? AND debt_amount > 0", customerID, commerce.InvoiceStatusPosted).
		Order("created_at ASC, code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(rows), nil
}

// Create inserts a new invoice with its lines
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *commerce.Invoice) error {
	return r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(invoice)).Error
}

// UpdateWithLock saves the invoice if nobody else has committed since it was loaded
func (r *GormInvoiceRepository) UpdateWithLock(ctx context.Context, invoice *commerce.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	updatedAt := r.now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateVersioned(tx, "invoices", "invoice", invoice.ID, invoice.Version, map[string]any{
			"source_order_id": model.SourceOrderID,
			"customer_id":     model.CustomerID,
			"branch_id":       model.BranchID,
			"discount_amount": model.DiscountAmount,
			"paid_amount":     model.PaidAmount,
			"deposit_applied": model.DepositApplied,
			"debt_amount":     model.DebtAmount,
			"delivery_meta":   model.DeliveryMeta,
			"note":            model.Note,
			"status":          model.Status,
			"posted_at":       model.PostedAt,
			"cancelled_at":    model.CancelledAt,
			"cancel_reason":   model.CancelReason,
			"updated_at":      updatedAt,
		}); err != nil {
			return err
		}
		return replaceChildren(tx, "invoice_id", invoice.ID, model.Lines)
	})
	if err != nil {
		return err
	}

	invoice.IncrementVersion()
	invoice.UpdatedAt = updatedAt
	return nil
}

// GenerateCode returns the next invoice code, INV-YYYY-NNNNN
func (r *GormInvoiceRepository) GenerateCode(ctx context.Context) (string, error) {
	return nextCode(ctx, r.db, "invoices", "INV", r.now())
}

func invoicesToDomain(rows []models.InvoiceModel) []*commerce.Invoice {
	result := make([]*commerce.Invoice, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result
}

// Ensure GormInvoiceRepository implements commerce.InvoiceRepository
var _ commerce.InvoiceRepository = (*GormInvoiceRepository)(nil)
