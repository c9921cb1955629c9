package commerce

import (
	"errors"
	"testing"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPaymentParams() PaymentParams {
	party := uuid.New()
	return PaymentParams{
		Code:        "PAY-1",
		IsReceipt:   true,
		Amount:      dec("150"),
		PartyType:   PartyTypeCustomer,
		PartyID:     &party,
		CollectorID: uuid.New(),
		AffectsDebt: true,
	}
}

func TestNewPayment(t *testing.T) {
	t.Run("defaults method to cash", func(t *testing.T) {
		p, err := NewPayment(validPaymentParams())
		require.NoError(t, err)
		assert.Equal(t, PaymentMethodCash, p.Method)
		assert.Equal(t, PaymentStatusPosted, p.Status)
	})

	rejects := map[string]func(*PaymentParams){
		"zero amount":       func(p *PaymentParams) { p.Amount = decimal.Zero },
		"negative amount":   func(p *PaymentParams) { p.Amount = dec("-1") },
		"missing collector": func(p *PaymentParams) { p.CollectorID = uuid.Nil },
		"missing party":     func(p *PaymentParams) { p.PartyID = nil },
		"unknown method":    func(p *PaymentParams) { p.Method = "BARTER" },
	}
	for name, mutate := range rejects {
		t.Run(name, func(t *testing.T) {
			params := validPaymentParams()
			mutate(&params)
			_, err := NewPayment(params)
			var vErr *shared.ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}

	t.Run("other party needs no id", func(t *testing.T) {
		params := validPaymentParams()
		params.PartyType = PartyTypeOther
		params.PartyID = nil
		_, err := NewPayment(params)
		assert.NoError(t, err)
	})
}

func TestPayment_Allocate(t *testing.T) {
	p, err := NewPayment(validPaymentParams())
	require.NoError(t, err)

	require.NoError(t, p.Allocate(uuid.New(), dec("100")))
	require.NoError(t, p.Allocate(uuid.New(), dec("50")))
	assert.True(t, p.UnallocatedAmount().IsZero())
	assert.Error(t, p.Allocate(uuid.New(), dec("0.01")))

	require.NoError(t, p.Cancel())
	assert.Error(t, p.Cancel())
	assert.Error(t, p.Allocate(uuid.New(), dec("1")))
}
