package persistence

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrderRepository implements commerce.OrderRepository using GORM
type GormOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db, now: time.Now}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: tx, now: r.now}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new order with its lines
func (r *GormOrderRepository) Create(ctx context.Context, order *commerce.Order) error {
	model := models.OrderModelFromDomain(order)
	return r.db.WithContext(ctx).Create(model).Error
}

// UpdateWithLock saves the order if nobody else has committed since it was loaded
func (r *GormOrderRepository) UpdateWithLock(ctx context.Context, order *commerce.Order) error {
	model := models.OrderModelFromDomain(order)
	updatedAt := r.now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateVersioned(tx, "orders", "order", order.ID, order.Version, map[string]any{
			"customer_id":     model.CustomerID,
			"branch_id":       model.BranchID,
			"discount_amount": model.DiscountAmount,
			"discount_ratio":  model.DiscountRatio,
			"paid_amount":     model.PaidAmount,
			"deposit_applied": model.DepositApplied,
			"delivery_meta":   model.DeliveryMeta,
			"note":            model.Note,
			"status":          model.Status,
			"confirmed_at":    model.ConfirmedAt,
			"fulfilled_at":    model.FulfilledAt,
			"cancelled_at":    model.CancelledAt,
			"cancel_reason":   model.CancelReason,
			"updated_at":      updatedAt,
		}); err != nil {
			return err
		}
		return replaceChildren(tx, "order_id", order.ID, model.Lines)
	})
	if err != nil {
		return err
	}

	order.IncrementVersion()
	order.UpdatedAt = updatedAt
	return nil
}

// GenerateCode returns the next order code, SO-YYYY-NNNNN
func (r *GormOrderRepository) GenerateCode(ctx context.Context) (string, error) {
	return nextCode(ctx, r.db, "orders", "SO", r.now())
}

// Ensure GormOrderRepository implements commerce.OrderRepository
var _ commerce.OrderRepository = (*GormOrderRepository)(nil)
