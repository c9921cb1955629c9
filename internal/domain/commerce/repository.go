package commerce

import (
	"context"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderRepository defines persistence for orders
type OrderRepository interface {
	// FindByID finds an order by ID, returning shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// Create inserts a new order
	Create(ctx context.Context, order *Order) error

	// UpdateWithLock writes the order only if the stored version still equals
	// order.Version; a moved version is a *shared.StaleWriteError. On success
	// the aggregate version is incremented.
	UpdateWithLock(ctx context.Context, order *Order) error

	// GenerateCode returns the next order code
	GenerateCode(ctx context.Context) (string, error)
}

// InvoiceRepository defines persistence for invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindBySourceOrder returns every invoice linked to an order, cancelled included
	FindBySourceOrder(ctx context.Context, orderID uuid.UUID) ([]*Invoice, error)

	// FindOutstandingByCustomer returns posted invoices with debt, oldest first
	FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Invoice, error)

	Create(ctx context.Context, invoice *Invoice) error

	// UpdateWithLock has the same contract as OrderRepository.UpdateWithLock
	UpdateWithLock(ctx context.Context, invoice *Invoice) error

	GenerateCode(ctx context.Context) (string, error)
}

// PaymentRepository defines persistence for payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*Payment, error)
	Create(ctx context.Context, payment *Payment) error
	UpdateWithLock(ctx context.Context, payment *Payment) error
	GenerateCode(ctx context.Context) (string, error)
}

// DocumentStore is transactional access to orders, invoices and payments
type DocumentStore interface {
	shared.Transactor[DocumentStore]
	Orders() OrderRepository
	Invoices() InvoiceRepository
	Payments() PaymentRepository
}

// Customer is the read model the lifecycle needs from customer management
type Customer struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Phone       string
	OpeningDebt decimal.Decimal
	Active      bool
}

// CustomerService is the external customer collaborator
type CustomerService interface {
	// Get returns shared.ErrNotFound for an unknown customer
	Get(ctx context.Context, id uuid.UUID) (*Customer, error)
	// AggregateDebt is the customer's total outstanding debt
	AggregateDebt(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
}
