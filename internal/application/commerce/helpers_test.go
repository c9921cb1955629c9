package commerce

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"testing"
	"time"

	draftapp "github.com/erp/backoffice/internal/application/draft"
	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/domain/pricing"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is a versioned in-memory commerce.DocumentStore. A failed
// transaction restores the maps as they were before it started.
type memStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]commerce.Order
	invoices map[uuid.UUID]commerce.Invoice
	payments map[uuid.UUID]commerce.Payment
	seq      int

	failOrderUpdate   error
	failInvoiceUpdate error
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[uuid.UUID]commerce.Order),
		invoices: make(map[uuid.UUID]commerce.Invoice),
		payments: make(map[uuid.UUID]commerce.Payment),
	}
}

func (s *memStore) Transaction(_ context.Context, fn func(tx commerce.DocumentStore) error) error {
	s.mu.Lock()
	orders, invoices, payments := maps.Clone(s.orders), maps.Clone(s.invoices), maps.Clone(s.payments)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.orders, s.invoices, s.payments = orders, invoices, payments
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) Orders() commerce.OrderRepository     { return memOrders{s} }
func (s *memStore) Invoices() commerce.InvoiceRepository { return memInvoices{s} }
func (s *memStore) Payments() commerce.PaymentRepository { return memPayments{s} }

func (s *memStore) nextCode(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%05d", prefix, s.seq)
}

func (s *memStore) invoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

func (s *memStore) allPayments() []commerce.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]commerce.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

func detachOrder(o commerce.Order) commerce.Order {
	o.Lines = append([]commerce.Line(nil), o.Lines...)
	o.ClearDomainEvents()
	return o
}

func detachInvoice(i commerce.Invoice) commerce.Invoice {
	i.Lines = append([]commerce.Line(nil), i.Lines...)
	i.ClearDomainEvents()
	return i
}

func detachPayment(p commerce.Payment) commerce.Payment {
	p.Allocations = append([]commerce.Allocation(nil), p.Allocations...)
	p.ClearDomainEvents()
	return p
}

type memOrders struct{ s *memStore }

func (r memOrders) FindByID(_ context.Context, id uuid.UUID) (*commerce.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := detachOrder(o)
	return &c, nil
}

func (r memOrders) Create(_ context.Context, o *commerce.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders[o.ID] = detachOrder(*o)
	return nil
}

func (r memOrders) UpdateWithLock(_ context.Context, o *commerce.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failOrderUpdate != nil {
		return r.s.failOrderUpdate
	}
	stored, ok := r.s.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != o.Version {
		return shared.NewStaleWriteError("order", o.ID, o.Version)
	}
	o.IncrementVersion()
	r.s.orders[o.ID] = detachOrder(*o)
	return nil
}

func (r memOrders) GenerateCode(context.Context) (string, error) {
	return r.s.nextCode("SO"), nil
}

type memInvoices struct{ s *memStore }

func (r memInvoices) FindByID(_ context.Context, id uuid.UUID) (*commerce.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := detachInvoice(i)
	return &c, nil
}

func (r memInvoices) filter(keep func(commerce.Invoice) bool) []*commerce.Invoice {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*commerce.Invoice
	for _, i := range r.s.invoices {
		if keep(i) {
			c := detachInvoice(i)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Code < out[b].Code })
	return out
}

func (r memInvoices) FindBySourceOrder(_ context.Context, orderID uuid.UUID) ([]*commerce.Invoice, error) {
	return r.filter(func(i commerce.Invoice) bool {
		return i.SourceOrderID != nil && *i.SourceOrderID == orderID
	}), nil
}

func (r memInvoices) FindOutstandingByCustomer(_ context.Context, customerID uuid.UUID) ([]*commerce.Invoice, error) {
	return r.filter(func(i commerce.Invoice) bool {
		return i.CustomerID == customerID && i.IsOutstanding()
	}), nil
}

func (r memInvoices) Create(_ context.Context, i *commerce.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoices[i.ID] = detachInvoice(*i)
	return nil
}

func (r memInvoices) UpdateWithLock(_ context.Context, i *commerce.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failInvoiceUpdate != nil {
		return r.s.failInvoiceUpdate
	}
	stored, ok := r.s.invoices[i.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != i.Version {
		return shared.NewStaleWriteError("invoice", i.ID, i.Version)
	}
	i.IncrementVersion()
	r.s.invoices[i.ID] = detachInvoice(*i)
	return nil
}

func (r memInvoices) GenerateCode(context.Context) (string, error) {
	return r.s.nextCode("INV"), nil
}

type memPayments struct{ s *memStore }

func (r memPayments) FindByID(_ context.Context, id uuid.UUID) (*commerce.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := detachPayment(p)
	return &c, nil
}

func (r memPayments) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*commerce.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*commerce.Payment
	for _, p := range r.s.payments {
		if p.OrderID != nil && *p.OrderID == orderID {
			c := detachPayment(p)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memPayments) Create(_ context.Context, p *commerce.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.ID] = detachPayment(*p)
	return nil
}

func (r memPayments) UpdateWithLock(_ context.Context, p *commerce.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.payments[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != p.Version {
		return shared.NewStaleWriteError("payment", p.ID, p.Version)
	}
	p.IncrementVersion()
	r.s.payments[p.ID] = detachPayment(*p)
	return nil
}

func (r memPayments) GenerateCode(context.Context) (string, error) {
	return r.s.nextCode("PAY"), nil
}

// MockCustomerService is a mock implementation of commerce.CustomerService
type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) Get(ctx context.Context, id uuid.UUID) (*commerce.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Customer), args.Error(1)
}

func (m *MockCustomerService) AggregateDebt(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockCatalogService is a mock implementation of pricing.CatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ResolvePrice(ctx context.Context, productID, branchID, priceBookID uuid.UUID) (pricing.CatalogPrice, error) {
	args := m.Called(ctx, productID, branchID, priceBookID)
	return args.Get(0).(pricing.CatalogPrice), args.Error(1)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// recordingSessions is an EditSessions that remembers what it was asked
type recordingSessions struct {
	mu       sync.Mutex
	opened   []draft.Key
	baseline []*time.Time
	cleared  []draft.Key
}

func (r *recordingSessions) Open(_ context.Context, key draft.Key, serverUpdatedAt *time.Time) (*draftapp.Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, key)
	r.baseline = append(r.baseline, serverUpdatedAt)
	outcome := draft.OutcomeNoDraft
	if serverUpdatedAt == nil {
		outcome = draft.OutcomeDiscardedMissing
	}
	return &draftapp.Resolution{Key: key, Outcome: outcome}, nil
}

func (r *recordingSessions) Clear(_ context.Context, key draft.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, key)
}

// fixture wires a DocumentService over the fakes
type fixture struct {
	svc        *DocumentService
	store      *memStore
	customers  *MockCustomerService
	catalog    *MockCatalogService
	publisher  *recordingPublisher
	sessions   *recordingSessions
	customerID uuid.UUID
	branchID   uuid.UUID
	cashierID  uuid.UUID
	productA   uuid.UUID
	productB   uuid.UUID
}

func newFixture(t *testing.T, log *zap.Logger) *fixture {
	t.Helper()
	f := &fixture{
		store:      newMemStore(),
		customers:  new(MockCustomerService),
		catalog:    new(MockCatalogService),
		publisher:  &recordingPublisher{},
		sessions:   &recordingSessions{},
		customerID: uuid.New(),
		branchID:   uuid.New(),
		cashierID:  uuid.New(),
		productA:   uuid.New(),
		productB:   uuid.New(),
	}
	f.customers.On("Get", mock.Anything, f.customerID).
		Return(&commerce.Customer{ID: f.customerID, Code: "KH0001", Name: "Walk-in", Active: true}, nil).Maybe()
	f.svc = NewDocumentService(f.store, f.customers, f.catalog, f.sessions, log)
	f.svc.SetEventPublisher(f.publisher)
	return f
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// standardLines is product A 2 x 50 and product B 1 x 30, subtotal 130
func (f *fixture) standardLines() []LineInput {
	return []LineInput{
		{ProductID: f.productA, Quantity: d("2"), UnitPrice: d("50")},
		{ProductID: f.productB, Quantity: d("1"), UnitPrice: d("30")},
	}
}

func (f *fixture) confirmedOrder(t *testing.T, discount string, deposit string) *OrderResponse {
	t.Helper()
	req := CreateOrderRequest{
		CustomerID:     f.customerID,
		BranchID:       f.branchID,
		Lines:          f.standardLines(),
		DiscountAmount: d(discount),
		Confirm:        true,
	}
	if deposit != "" {
		req.Deposit = &PaymentInput{Amount: d(deposit), CollectorID: f.cashierID}
	}
	order, err := f.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	return order
}

func (f *fixture) postedInvoice(t *testing.T, price string) *InvoiceResponse {
	t.Helper()
	inv, err := f.svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		CustomerID: f.customerID,
		BranchID:   f.branchID,
		Lines:      []LineInput{{ProductID: uuid.New(), Quantity: d("1"), UnitPrice: d(price)}},
	})
	require.NoError(t, err)
	return inv
}

// orderVersion is the version a client would read right now
func (f *fixture) orderVersion(t *testing.T, id uuid.UUID) int {
	t.Helper()
	o, err := f.store.Orders().FindByID(context.Background(), id)
	require.NoError(t, err)
	return o.Version
}

func (f *fixture) invoiceVersion(t *testing.T, id uuid.UUID) int {
	t.Helper()
	i, err := f.store.Invoices().FindByID(context.Background(), id)
	require.NoError(t, err)
	return i.Version
}
