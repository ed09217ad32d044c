package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serantau/payflow/internal/money"
)

func newTestPayment(status PaymentStatus) *Payment {
	return &Payment{
		ID:         "PAY-1",
		TenantID:   "tenant-1",
		Direction:  DirectionInbound,
		Amount:     money.MustNew(10000, "MYR"),
		Status:     status,
		MethodType: MethodBankTransfer,
		Reference:  "INV-2024-001",
		CreatedAt:  time.Now(),
	}
}

func TestPaymentTransitionTable(t *testing.T) {
	all := []PaymentStatus{
		PaymentStatusDraft, PaymentStatusPending, PaymentStatusProcessing,
		PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled,
		PaymentStatusReversed,
	}

	allowed := map[PaymentStatus]map[PaymentStatus]bool{
		PaymentStatusDraft:      {PaymentStatusPending: true, PaymentStatusCancelled: true},
		PaymentStatusPending:    {PaymentStatusProcessing: true, PaymentStatusCancelled: true},
		PaymentStatusProcessing: {PaymentStatusCompleted: true, PaymentStatusFailed: true},
		PaymentStatusCompleted:  {PaymentStatusReversed: true},
		PaymentStatusFailed:     {PaymentStatusProcessing: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, CanTransitionPayment(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestMarkAsProcessing(t *testing.T) {
	t.Run("from_pending", func(t *testing.T) {
		p := newTestPayment(PaymentStatusPending)
		require.NoError(t, p.MarkAsProcessing(time.Now()))
		assert.Equal(t, PaymentStatusProcessing, p.Status)
		assert.NotNil(t, p.ProcessedAt)
	})

	t.Run("from_completed_rejected", func(t *testing.T) {
		p := newTestPayment(PaymentStatusCompleted)
		err := p.MarkAsProcessing(time.Now())
		var stateErr *InvalidPaymentStatusError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, PaymentStatusCompleted, stateErr.Current)
		assert.Equal(t, PaymentStatusPending, stateErr.Required)
		assert.Equal(t, PaymentStatusCompleted, p.Status)
	})
}

func TestMarkAsCompleted(t *testing.T) {
	t.Run("requires_external_ref", func(t *testing.T) {
		p := newTestPayment(PaymentStatusProcessing)
		err := p.MarkAsCompleted(money.MustNew(10000, "MYR"), "", time.Now())
		var valErr *PaymentValidationError
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("requires_matching_currency", func(t *testing.T) {
		p := newTestPayment(PaymentStatusProcessing)
		err := p.MarkAsCompleted(money.MustNew(10000, "USD"), "EXT-1", time.Now())
		var mismatch *money.CurrencyMismatchError
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("success", func(t *testing.T) {
		p := newTestPayment(PaymentStatusProcessing)
		require.NoError(t, p.MarkAsCompleted(money.MustNew(10000, "MYR"), "EXT-1", time.Now()))
		assert.Equal(t, PaymentStatusCompleted, p.Status)
		assert.Equal(t, "EXT-1", p.ExternalRef)
		require.NotNil(t, p.SettledAmount)
		assert.Equal(t, int64(10000), p.SettledAmount.MinorUnits())
		assert.NotNil(t, p.SettledAt)
	})
}

func TestMarkAsFailed(t *testing.T) {
	p := newTestPayment(PaymentStatusProcessing)
	require.NoError(t, p.MarkAsFailed("INSUFFICIENT_FUNDS", "account balance too low"))
	assert.Equal(t, PaymentStatusFailed, p.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", p.FailureCode)

	// Failed payments can go back to processing (retry path) but nowhere else.
	assert.True(t, CanTransitionPayment(PaymentStatusFailed, PaymentStatusProcessing))
	assert.False(t, CanTransitionPayment(PaymentStatusFailed, PaymentStatusCompleted))
}

func TestCancel(t *testing.T) {
	for _, status := range []PaymentStatus{PaymentStatusDraft, PaymentStatusPending} {
		t.Run(string(status), func(t *testing.T) {
			p := newTestPayment(status)
			require.NoError(t, p.Cancel("customer request", "user-1"))
			assert.Equal(t, PaymentStatusCancelled, p.Status)
			assert.Equal(t, "customer request", p.CancelReason)
		})
	}

	for _, status := range []PaymentStatus{
		PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusCancelled, PaymentStatusReversed,
	} {
		t.Run(string(status)+"_rejected", func(t *testing.T) {
			p := newTestPayment(status)
			var stateErr *InvalidPaymentStatusError
			assert.ErrorAs(t, p.Cancel("too late", ""), &stateErr)
			assert.Equal(t, status, p.Status)
		})
	}
}

func TestMarkAsReversed(t *testing.T) {
	t.Run("full_reversal", func(t *testing.T) {
		p := newTestPayment(PaymentStatusCompleted)
		require.NoError(t, p.MarkAsReversed(money.MustNew(10000, "MYR"), "chargeback"))
		assert.Equal(t, PaymentStatusReversed, p.Status)
	})

	t.Run("partial_reversal", func(t *testing.T) {
		p := newTestPayment(PaymentStatusCompleted)
		require.NoError(t, p.MarkAsReversed(money.MustNew(2500, "MYR"), "partial refund"))
		assert.Equal(t, int64(2500), p.ReversedAmount.MinorUnits())
	})

	t.Run("amount_exceeds_original", func(t *testing.T) {
		p := newTestPayment(PaymentStatusCompleted)
		err := p.MarkAsReversed(money.MustNew(15000, "MYR"), "oops")
		var valErr *PaymentValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "Reversal amount cannot exceed original payment amount", valErr.Message)
		assert.Equal(t, PaymentStatusCompleted, p.Status)
	})

	t.Run("method_without_reversal_support", func(t *testing.T) {
		p := newTestPayment(PaymentStatusCompleted)
		p.MethodType = MethodCash
		var valErr *PaymentValidationError
		assert.ErrorAs(t, p.MarkAsReversed(money.MustNew(100, "MYR"), "r"), &valErr)
	})

	t.Run("not_completed", func(t *testing.T) {
		p := newTestPayment(PaymentStatusPending)
		var stateErr *InvalidPaymentStatusError
		assert.ErrorAs(t, p.MarkAsReversed(money.MustNew(100, "MYR"), "r"), &stateErr)
	})
}
