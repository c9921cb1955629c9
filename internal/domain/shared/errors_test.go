package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsDomainError(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"validation", NewValidationError("amount", "bad"), CodeValidation},
		{"stale write", NewStaleWriteError("Order", id, 3), CodeStaleWrite},
		{"overrun", NewAllocationOverrunError(id, decimal.NewFromInt(2), decimal.NewFromInt(1)), CodeAllocationOverrun},
		{"lookup", NewExternalLookupError("catalog", errors.New("timeout")), CodeExternalLookup},
		{"wrapped plain", fmt.Errorf("loading: %w", ErrNotFound), "NOT_FOUND"},
		{"partial wins over cause", NewPartialCompletionError("payment", "order update", id, "Order", id, NewStaleWriteError("Order", id, 1)), CodePartialCompletion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de, ok := AsDomainError(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.code, de.Code)
		})
	}

	_, ok := AsDomainError(errors.New("boom"))
	assert.False(t, ok)
}

func TestStaleWriteError_IsConflict(t *testing.T) {
	err := fmt.Errorf("save: %w", NewStaleWriteError("Invoice", uuid.New(), 2))
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestPartialCompletionError_UnwrapsCause(t *testing.T) {
	cause := errors.New("db down")
	err := NewPartialCompletionError("payment posted", "invoice update", uuid.New(), "Invoice", uuid.New(), cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "manual reconciliation")
}
