package persistence

import (
	"context"

	"github.com/erp/backoffice/internal/domain/commerce"
	"gorm.io/gorm"
)

// GormDocumentStore groups the document repositories over one connection or transaction
type GormDocumentStore struct {
	db       *gorm.DB
	orders   *GormOrderRepository
	invoices *GormInvoiceRepository
	payments *GormPaymentRepository
}

// NewGormDocumentStore creates a store over db
func NewGormDocumentStore(db *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{
		db:       db,
		orders:   NewGormOrderRepository(db),
		invoices: NewGormInvoiceRepository(db),
		payments: NewGormPaymentRepository(db),
	}
}

// Transaction runs fn with a store whose repositories share one database transaction.
// Any error returned by fn rolls every write back.
func (s *GormDocumentStore) Transaction(ctx context.Context, fn func(tx commerce.DocumentStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDocumentStore{
			db:       tx,
			orders:   s.orders.WithTx(tx),
			invoices: s.invoices.WithTx(tx),
			payments: s.payments.WithTx(tx),
		})
	})
}

// Orders returns the order repository
func (s *GormDocumentStore) Orders() commerce.OrderRepository { return s.orders }

// Invoices returns the invoice repository
func (s *GormDocumentStore) Invoices() commerce.InvoiceRepository { return s.invoices }

// Payments returns the payment repository
func (s *GormDocumentStore) Payments() commerce.PaymentRepository { return s.payments }

var _ commerce.DocumentStore = (*GormDocumentStore)(nil)
