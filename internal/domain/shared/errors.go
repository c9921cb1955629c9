package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Error codes for the commerce error taxonomy
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeStaleWrite        = "CONCURRENCY_CONFLICT"
	CodeExternalLookup    = "EXTERNAL_LOOKUP_FAILED"
	CodePartialCompletion = "PARTIAL_COMPLETION"
	CodeAllocationOverrun = "ALLOCATION_OVERRUN"
)

// ValidationError reports bad user input. It is never retried.
type ValidationError struct {
	*DomainError
	Field string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		DomainError: NewDomainError(CodeValidation, message),
		Field:       field,
	}
}

func (e *ValidationError) Unwrap() error { return e.DomainError }

// StaleWriteError is returned when a conditional write finds the document
// moved past the version it was read with.
type StaleWriteError struct {
	*DomainError
	DocumentType    string
	DocumentID      uuid.UUID
	ExpectedVersion int
}

// NewStaleWriteError creates a conflict for a document write
func NewStaleWriteError(docType string, id uuid.UUID, expectedVersion int) *StaleWriteError {
	return &StaleWriteError{
		DomainError: NewDomainError(CodeStaleWrite,
			fmt.Sprintf("%s %s was modified by another session, reload before saving", docType, id)),
		DocumentType:    docType,
		DocumentID:      id,
		ExpectedVersion: expectedVersion,
	}
}

func (e *StaleWriteError) Unwrap() error { return e.DomainError }

// Is lets errors.Is(err, ErrConcurrencyConflict) match
func (e *StaleWriteError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// ExternalLookupError wraps a failed collaborator lookup. Callers recover
// from it locally and surface it as a warning.
type ExternalLookupError struct {
	*DomainError
	Cause error
}

// NewExternalLookupError wraps the cause of a failed lookup
func NewExternalLookupError(what string, cause error) *ExternalLookupError {
	return &ExternalLookupError{
		DomainError: NewDomainError(CodeExternalLookup, fmt.Sprintf("%s lookup failed: %v", what, cause)),
		Cause:       cause,
	}
}

func (e *ExternalLookupError) Unwrap() error { return e.Cause }

// PartialCompletionError marks a multi-step transition where an earlier
// financial step committed and a later step failed. Nothing is reversed
// automatically; the state needs manual reconciliation.
type PartialCompletionError struct {
	*DomainError
	CompletedStep string
	FailedStep    string
	PaymentID     uuid.UUID
	DocumentType  string
	DocumentID    uuid.UUID
	Cause         error
}

// NewPartialCompletionError creates a partial completion error
func NewPartialCompletionError(completed, failed string, paymentID uuid.UUID, docType string, docID uuid.UUID, cause error) *PartialCompletionError {
	return &PartialCompletionError{
		DomainError: NewDomainError(CodePartialCompletion,
			fmt.Sprintf("%s succeeded but %s failed for %s %s; manual reconciliation required", completed, failed, docType, docID)),
		CompletedStep: completed,
		FailedStep:    failed,
		PaymentID:     paymentID,
		DocumentType:  docType,
		DocumentID:    docID,
		Cause:         cause,
	}
}

func (e *PartialCompletionError) Unwrap() error { return e.Cause }

// AllocationOverrunError rejects a manual allocation above an invoice's debt
type AllocationOverrunError struct {
	*DomainError
	InvoiceID uuid.UUID
	Requested decimal.Decimal
	Debt      decimal.Decimal
}

// NewAllocationOverrunError creates an overrun error for one invoice
func NewAllocationOverrunError(invoiceID uuid.UUID, requested, debt decimal.Decimal) *AllocationOverrunError {
	return &AllocationOverrunError{
		DomainError: NewDomainError(CodeAllocationOverrun,
			fmt.Sprintf("Allocation %s exceeds invoice %s debt %s", requested.StringFixed(2), invoiceID, debt.StringFixed(2))),
		InvoiceID: invoiceID,
		Requested: requested,
		Debt:      debt,
	}
}

func (e *AllocationOverrunError) Unwrap() error { return e.DomainError }

// AsDomainError extracts the DomainError carried by err, if any. A partial
// completion wins over whatever caused it.
func AsDomainError(err error) (*DomainError, bool) {
	var p *PartialCompletionError
	if errors.As(err, &p) {
		return p.DomainError, true
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.DomainError, true
	}
	var s *StaleWriteError
	if errors.As(err, &s) {
		return s.DomainError, true
	}
	var a *AllocationOverrunError
	if errors.As(err, &a) {
		return a.DomainError, true
	}
	var x *ExternalLookupError
	if errors.As(err, &x) {
		return x.DomainError, true
	}
	var d *DomainError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
