package commerce

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationPolicy selects how a payment is spread over invoices
type AllocationPolicy string

const (
	AllocationPolicyFIFO   AllocationPolicy = "FIFO"   // oldest invoice first
	AllocationPolicyManual AllocationPolicy = "MANUAL" // caller supplies per-invoice amounts
)

func (p AllocationPolicy) IsValid() bool {
	return p == AllocationPolicyFIFO || p == AllocationPolicyManual
}

// AllocationTarget is an outstanding invoice as seen by the allocator
type AllocationTarget struct {
	InvoiceID  uuid.UUID
	Code       string
	DebtAmount decimal.Decimal
	IssuedAt   time.Time
}

// AllocationPlan is the outcome of an allocation run. Amount is the payment
// amount the plan settles; for manual plans it is recomputed from the entries.
type AllocationPlan struct {
	Policy         AllocationPolicy `json:"policy"`
	Amount         decimal.Decimal  `json:"amount"`
	Allocations    []Allocation     `json:"allocations"`
	TotalAllocated decimal.Decimal  `json:"total_allocated"`
	Remaining      decimal.Decimal  `json:"remaining"`
	FullyPaid      []uuid.UUID      `json:"fully_paid"`
	PartiallyPaid  []uuid.UUID      `json:"partially_paid"`
}

// TargetsFromInvoices keeps posted invoices with debt and maps them to targets
func TargetsFromInvoices(invoices []*Invoice) []AllocationTarget {
	targets := make([]AllocationTarget, 0, len(invoices))
	for _, inv := range invoices {
		if inv == nil || !inv.IsOutstanding() {
			continue
		}
		targets = append(targets, AllocationTarget{
			InvoiceID:  inv.ID,
			Code:       inv.Code,
			DebtAmount: inv.Debt(),
			IssuedAt:   inv.CreatedAt,
		})
	}
	return targets
}

// sortTargets orders by issue date, then code, then id, so equal dates still
// give a stable result.
func sortTargets(targets []AllocationTarget) []AllocationTarget {
	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].IssuedAt.Equal(sorted[j].IssuedAt) {
			return sorted[i].IssuedAt.Before(sorted[j].IssuedAt)
		}
		if sorted[i].Code != sorted[j].Code {
			return sorted[i].Code < sorted[j].Code
		}
		return sorted[i].InvoiceID.String() < sorted[j].InvoiceID.String()
	})
	return sorted
}

func errNoOutstandingInvoices() error {
	return shared.NewValidationError("party_id", "Selected party has no outstanding invoices")
}

// FIFOAllocator spreads an amount over invoices oldest first, capping each
// allocation at the invoice debt.
type FIFOAllocator struct{}

// NewFIFOAllocator creates the FIFO allocation strategy
func NewFIFOAllocator() *FIFOAllocator {
	return &FIFOAllocator{}
}

// Allocate runs the FIFO policy
func (s *FIFOAllocator) Allocate(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "Payment amount must be positive")
	}
	if len(targets) == 0 {
		return nil, errNoOutstandingInvoices()
	}

	plan := newPlan(AllocationPolicyFIFO, amount.Amount())
	remaining := amount.Amount()
	for _, t := range sortTargets(targets) {
		if remaining.IsZero() {
			break
		}
		if !t.DebtAmount.IsPositive() {
			continue
		}
		alloc := decimal.Min(remaining, t.DebtAmount)
		plan.add(t, alloc)
		remaining = remaining.Sub(alloc)
	}
	plan.Remaining = remaining
	return plan, nil
}

// ManualAllocator applies caller-entered amounts per invoice. The payment
// amount is the sum of the entries, never a separately entered total.
type ManualAllocator struct{}

// NewManualAllocator creates the manual allocation strategy
func NewManualAllocator() *ManualAllocator {
	return &ManualAllocator{}
}

// Allocate validates each entry against its invoice debt. Zero entries are skipped.
func (s *ManualAllocator) Allocate(entries []Allocation, targets []AllocationTarget) (*AllocationPlan, error) {
	if len(targets) == 0 {
		return nil, errNoOutstandingInvoices()
	}
	byID := make(map[uuid.UUID]AllocationTarget, len(targets))
	for _, t := range targets {
		byID[t.InvoiceID] = t
	}

	requested := make(map[uuid.UUID]decimal.Decimal, len(entries))
	for _, e := range entries {
		if e.Amount.IsNegative() {
			return nil, shared.NewValidationError("allocations", "Allocation amount cannot be negative")
		}
		t, ok := byID[e.InvoiceID]
		if !ok {
			return nil, shared.NewValidationError("allocations",
				fmt.Sprintf("Invoice %s is not outstanding for this party", e.InvoiceID))
		}
		sum := requested[e.InvoiceID].Add(e.Amount)
		if sum.GreaterThan(t.DebtAmount) {
			return nil, shared.NewAllocationOverrunError(e.InvoiceID, sum, t.DebtAmount)
		}
		requested[e.InvoiceID] = sum
	}

	total := decimal.Zero
	for _, amt := range requested {
		total = total.Add(amt)
	}
	if !total.IsPositive() {
		return nil, shared.NewValidationError("amount", "Payment amount must be positive")
	}

	plan := newPlan(AllocationPolicyManual, total)
	for _, t := range sortTargets(targets) {
		if amt, ok := requested[t.InvoiceID]; ok && amt.IsPositive() {
			plan.add(t, amt)
		}
	}
	plan.Remaining = decimal.Zero
	return plan, nil
}

func newPlan(policy AllocationPolicy, amount decimal.Decimal) *AllocationPlan {
	return &AllocationPlan{
		Policy:         policy,
		Amount:         amount,
		Allocations:    make([]Allocation, 0),
		TotalAllocated: decimal.Zero,
		FullyPaid:      make([]uuid.UUID, 0),
		PartiallyPaid:  make([]uuid.UUID, 0),
	}
}

func (p *AllocationPlan) add(t AllocationTarget, amount decimal.Decimal) {
	p.Allocations = append(p.Allocations, Allocation{InvoiceID: t.InvoiceID, Amount: amount})
	p.TotalAllocated = p.TotalAllocated.Add(amount)
	if amount.GreaterThanOrEqual(t.DebtAmount) {
		p.FullyPaid = append(p.FullyPaid, t.InvoiceID)
	} else {
		p.PartiallyPaid = append(p.PartiallyPaid, t.InvoiceID)
	}
}
