package persistence

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements commerce.PaymentRepository using GORM
type GormPaymentRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db, now: time.Now}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: tx, now: r.now}
}

func (r *GormPaymentRepository) withAllocations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.Payment, error) {
	var model models.PaymentModel
	if err := r.withAllocations(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByOrder returns the deposits recorded against an order
func (r *GormPaymentRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*commerce.Payment, error) {
	var rows []models.PaymentModel
	if err := r.withAllocations(ctx).
		Where("order_id = ?", orderID).
		Order("paid_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*commerce.Payment, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// Create inserts a new payment with its allocations
func (r *GormPaymentRepository) Create(ctx context.Context, payment *commerce.Payment) error {
	return r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error
}

// UpdateWithLock saves the payment if nobody else has committed since it was loaded
func (r *GormPaymentRepository) UpdateWithLock(ctx context.Context, payment *commerce.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	updatedAt := r.now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateVersioned(tx, "payments", "payment", payment.ID, payment.Version, map[string]any{
			"amount":       model.Amount,
			"method":       model.Method,
			"affects_debt": model.AffectsDebt,
			"note":         model.Note,
			"status":       model.Status,
			"cancelled_at": model.CancelledAt,
			"updated_at":   updatedAt,
		}); err != nil {
			return err
		}
		return replaceChildren(tx, "payment_id", payment.ID, model.Allocations)
	})
	if err != nil {
		return err
	}

	payment.IncrementVersion()
	payment.UpdatedAt = updatedAt
	return nil
}

// GenerateCode returns the next payment code, PAY-YYYY-NNNNN
func (r *GormPaymentRepository) GenerateCode(ctx context.Context) (string, error) {
	return nextCode(ctx, r.db, "payments", "PAY", r.now())
}

// Ensure GormPaymentRepository implements commerce.PaymentRepository
var _ commerce.PaymentRepository = (*GormPaymentRepository)(nil)
