package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// fakeStore is an in-memory Store with the same atomic insert-if-absent
// key semantics the SQLite store provides via its unique constraint.
type fakeStore struct {
	payments map[string]*domain.Payment
	keys     map[string]keyEntry // tenant|key -> entry
	updates  int
}

type keyEntry struct {
	paymentID string
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments: make(map[string]*domain.Payment),
		keys:     make(map[string]keyEntry),
	}
}

func (s *fakeStore) FindByID(id string) (*domain.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (s *fakeStore) Create(p *domain.Payment) error {
	clone := *p
	s.payments[p.ID] = &clone
	return nil
}

func (s *fakeStore) CreateWithIdempotencyKey(p *domain.Payment, key string, expiresAt time.Time) error {
	k := p.TenantID + "|" + key
	if entry, ok := s.keys[k]; ok && entry.expiresAt.After(time.Now()) {
		return domain.ErrIdempotencyKeyConflict
	}
	s.keys[k] = keyEntry{paymentID: p.ID, expiresAt: expiresAt}
	return s.Create(p)
}

func (s *fakeStore) FindIDByIdempotencyKey(tenantID, key string) (string, error) {
	entry, ok := s.keys[tenantID+"|"+key]
	if !ok || !entry.expiresAt.After(time.Now()) {
		return "", nil
	}
	return entry.paymentID, nil
}

func (s *fakeStore) Update(p *domain.Payment) error {
	s.updates++
	clone := *p
	s.payments[p.ID] = &clone
	return nil
}

// stubExecutor returns a scripted result, or an error when err is set.
type stubExecutor struct {
	result       domain.ExecutionResult
	refundResult domain.ExecutionResult
	err          error
	executed     int
	refunded     int
}

func (e *stubExecutor) Execute(p *domain.Payment) (domain.ExecutionResult, error) {
	e.executed++
	if e.err != nil {
		return domain.ExecutionResult{}, e.err
	}
	if e.result.ExternalRef == "" && e.result.Success {
		return domain.ExecutionResult{Success: true, SettledAmount: p.Amount, ExternalRef: "EXT-1"}, nil
	}
	return e.result, nil
}

func (e *stubExecutor) Refund(paymentID string, amount money.Money, reason string) (domain.ExecutionResult, error) {
	e.refunded++
	return e.refundResult, nil
}

// recordingDispatcher captures dispatched events in order.
type recordingDispatcher struct {
	events []domain.Event
}

func (d *recordingDispatcher) Dispatch(event domain.Event) {
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) names() []string {
	out := make([]string, len(d.events))
	for i, e := range d.events {
		out[i] = e.EventName()
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *stubExecutor, *recordingDispatcher) {
	t.Helper()
	store := newFakeStore()
	exec := &stubExecutor{
		result:       domain.ExecutionResult{Success: true},
		refundResult: domain.ExecutionResult{Success: true},
	}
	events := &recordingDispatcher{}
	mgr := NewManager(store, exec, events, Config{MaxAmountMinorUnits: 100_000_00})
	return mgr, store, exec, events
}

func validParams() CreateParams {
	return CreateParams{
		TenantID:   "tenant-1",
		Reference:  "INV-2024-001",
		Direction:  domain.DirectionInbound,
		Amount:     money.MustNew(10000, "MYR"),
		MethodType: domain.MethodBankTransfer,
		PayerID:    "payer-1",
	}
}

func TestCreate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mgr, store, _, events := newTestManager(t)
		p, err := mgr.Create(validParams())
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPending, p.Status)
		assert.NotEmpty(t, p.ID)
		assert.NotNil(t, store.payments[p.ID])
		assert.Equal(t, []string{"payment.created"}, events.names())
		// Exchange rate captured into metadata at creation.
		assert.NotEmpty(t, p.Metadata["fx_rate_usd"])
	})

	t.Run("draft", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.Draft = true
		p, err := mgr.Create(params)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusDraft, p.Status)
	})

	t.Run("non_positive_amount", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.Amount = money.MustNew(0, "MYR")
		_, err := mgr.Create(params)
		var valErr *domain.PaymentValidationError
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("over_maximum", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.Amount = money.MustNew(100_000_01, "MYR")
		_, err := mgr.Create(params)
		var valErr *domain.PaymentValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Contains(t, valErr.Message, "maximum")
	})

	t.Run("inbound_requires_payer", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.PayerID = ""
		_, err := mgr.Create(params)
		var valErr *domain.PaymentValidationError
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("outbound_requires_payee", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.Direction = domain.DirectionOutbound
		params.PayerID = ""
		_, err := mgr.Create(params)
		var valErr *domain.PaymentValidationError
		assert.ErrorAs(t, err, &valErr)

		params.PayeeID = "payee-1"
		_, err = mgr.Create(params)
		assert.NoError(t, err)
	})

	t.Run("bad_method", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.MethodType = "CARRIER_PIGEON"
		_, err := mgr.Create(params)
		var methodErr *domain.InvalidPaymentMethodError
		assert.ErrorAs(t, err, &methodErr)
	})
}

func TestCreateIdempotency(t *testing.T) {
	t.Run("duplicate_key_references_first_payment", func(t *testing.T) {
		mgr, store, _, _ := newTestManager(t)
		params := validParams()
		params.IdempotencyKey = "key-1"

		first, err := mgr.Create(params)
		require.NoError(t, err)

		_, err = mgr.Create(params)
		var dupErr *domain.DuplicatePaymentError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, first.ID, dupErr.ExistingID)
		assert.Equal(t, "key-1", dupErr.IdempotencyKey)

		// Exactly one payment exists for the key.
		assert.Len(t, store.payments, 1)
	})

	t.Run("expired_key_permits_recreation", func(t *testing.T) {
		mgr, store, _, _ := newTestManager(t)
		params := validParams()
		params.IdempotencyKey = "key-1"

		first, err := mgr.Create(params)
		require.NoError(t, err)

		// Expire the key; the next create must succeed as a fresh payment.
		store.keys["tenant-1|key-1"] = keyEntry{
			paymentID: first.ID,
			expiresAt: time.Now().Add(-time.Minute),
		}

		second, err := mgr.Create(params)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("same_key_different_tenant_is_independent", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.IdempotencyKey = "key-1"
		_, err := mgr.Create(params)
		require.NoError(t, err)

		params.TenantID = "tenant-2"
		_, err = mgr.Create(params)
		assert.NoError(t, err)
	})
}

func TestActivate(t *testing.T) {
	t.Run("draft_becomes_pending", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		params := validParams()
		params.Draft = true
		p, err := mgr.Create(params)
		require.NoError(t, err)

		activated, err := mgr.Activate(p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPending, activated.Status)

		// An activated draft is executable.
		done, err := mgr.Execute(p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, done.Status)
	})

	t.Run("non_draft_rejected", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		p, err := mgr.Create(validParams())
		require.NoError(t, err)

		_, err = mgr.Activate(p.ID)
		var stateErr *domain.InvalidPaymentStatusError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, domain.PaymentStatusPending, stateErr.Current)
		assert.Equal(t, domain.PaymentStatusDraft, stateErr.Required)
	})
}

func TestExecute(t *testing.T) {
	t.Run("success_path", func(t *testing.T) {
		mgr, store, exec, events := newTestManager(t)
		p, err := mgr.Create(validParams())
		require.NoError(t, err)

		done, err := mgr.Execute(p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, done.Status)
		assert.Equal(t, "EXT-1", done.ExternalRef)
		assert.Equal(t, 1, done.AttemptCount)
		assert.Equal(t, 1, exec.executed)
		// Two saves: processing, then completed.
		assert.Equal(t, 2, store.updates)
		assert.Equal(t, []string{
			"payment.created", "payment.processing", "payment.completed",
		}, events.names())
	})

	t.Run("executor_decline_is_captured", func(t *testing.T) {
		mgr, _, exec, events := newTestManager(t)
		exec.result = domain.ExecutionResult{
			Success:        false,
			FailureCode:    "INSUFFICIENT_FUNDS",
			FailureMessage: "balance too low",
		}

		p, err := mgr.Create(validParams())
		require.NoError(t, err)

		done, err := mgr.Execute(p.ID)
		require.NoError(t, err) // captured, not thrown
		assert.Equal(t, domain.PaymentStatusFailed, done.Status)
		assert.Equal(t, "INSUFFICIENT_FUNDS", done.FailureCode)
		assert.Contains(t, events.names(), "payment.failed")
	})

	t.Run("executor_error_is_captured", func(t *testing.T) {
		mgr, _, exec, _ := newTestManager(t)
		exec.err = errors.New("connection reset")

		p, err := mgr.Create(validParams())
		require.NoError(t, err)

		done, err := mgr.Execute(p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusFailed, done.Status)
		assert.Equal(t, "EXECUTOR_ERROR", done.FailureCode)
	})

	t.Run("wrong_status", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		p, err := mgr.Create(validParams())
		require.NoError(t, err)
		_, err = mgr.Execute(p.ID)
		require.NoError(t, err)

		_, err = mgr.Execute(p.ID)
		var stateErr *domain.InvalidPaymentStatusError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, domain.PaymentStatusCompleted, stateErr.Current)
		assert.Equal(t, domain.PaymentStatusPending, stateErr.Required)
	})

	t.Run("not_found", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		_, err := mgr.Execute("PAY-missing")
		var nfErr *domain.PaymentNotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})
}

func TestRetry(t *testing.T) {
	t.Run("failed_payment_retries", func(t *testing.T) {
		mgr, _, exec, _ := newTestManager(t)
		exec.result = domain.ExecutionResult{Success: false, FailureCode: "TIMEOUT", FailureMessage: "rail timeout"}

		p, err := mgr.Create(validParams())
		require.NoError(t, err)
		_, err = mgr.Execute(p.ID)
		require.NoError(t, err)

		exec.result = domain.ExecutionResult{Success: true}
		done, err := mgr.Retry(p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, done.Status)
		assert.Equal(t, 2, done.AttemptCount)
		assert.Empty(t, done.FailureCode)
	})

	t.Run("completed_payment_rejected", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		p, err := mgr.Create(validParams())
		require.NoError(t, err)
		_, err = mgr.Execute(p.ID)
		require.NoError(t, err)

		_, err = mgr.Retry(p.ID)
		var stateErr *domain.InvalidPaymentStatusError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, "Only failed payments can be retried", stateErr.Error())
	})
}

func TestCancelOperation(t *testing.T) {
	mgr, _, _, events := newTestManager(t)
	p, err := mgr.Create(validParams())
	require.NoError(t, err)

	cancelled, err := mgr.Cancel(p.ID, "customer request", "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, cancelled.Status)
	assert.Contains(t, events.names(), "payment.cancelled")

	// State is unchanged after an illegal cancel.
	_, err = mgr.Cancel(p.ID, "again", "user-1")
	var stateErr *domain.InvalidPaymentStatusError
	require.ErrorAs(t, err, &stateErr)
	status, err := mgr.GetStatus(p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, status)
}

func TestReverse(t *testing.T) {
	completed := func(t *testing.T, mgr *Manager) *domain.Payment {
		t.Helper()
		p, err := mgr.Create(validParams())
		require.NoError(t, err)
		done, err := mgr.Execute(p.ID)
		require.NoError(t, err)
		return done
	}

	t.Run("full_reversal", func(t *testing.T) {
		mgr, _, exec, events := newTestManager(t)
		p := completed(t, mgr)

		reversed, err := mgr.Reverse(p.ID, nil, "chargeback")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusReversed, reversed.Status)
		assert.Equal(t, 1, exec.refunded)
		assert.Contains(t, events.names(), "payment.reversed")
	})

	t.Run("partial_reversal", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t)
		p := completed(t, mgr)

		amount := money.MustNew(2500, "MYR")
		reversed, err := mgr.Reverse(p.ID, &amount, "partial refund")
		require.NoError(t, err)
		assert.Equal(t, int64(2500), reversed.ReversedAmount.MinorUnits())
	})

	t.Run("amount_exceeds_original", func(t *testing.T) {
		mgr, _, exec, _ := newTestManager(t)
		p := completed(t, mgr)

		amount := money.MustNew(15000, "MYR")
		_, err := mgr.Reverse(p.ID, &amount, "oops")
		var valErr *domain.PaymentValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "Reversal amount cannot exceed original payment amount", valErr.Message)
		// The executor was never asked to refund.
		assert.Equal(t, 0, exec.refunded)

		status, err := mgr.GetStatus(p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, status)
	})

	t.Run("refund_decline_keeps_payment_completed", func(t *testing.T) {
		mgr, _, exec, _ := newTestManager(t)
		exec.refundResult = domain.ExecutionResult{Success: false, FailureCode: "RAIL_REJECTED"}
		p := completed(t, mgr)

		_, err := mgr.Reverse(p.ID, nil, "chargeback")
		var valErr *domain.PaymentValidationError
		require.ErrorAs(t, err, &valErr)

		status, err := mgr.GetStatus(p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, status)
	})
}
