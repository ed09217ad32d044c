package payment

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/serantau/payflow/internal/currency"
	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// Store is the persistence collaborator for payments. FindByID returns
// (nil, nil) when the id is unknown.
//
// CreateWithIdempotencyKey must be atomic: the key row and the payment row
// commit together, and a duplicate key must fail the whole insert with
// domain.ErrIdempotencyKeyConflict. Implementations are expected to lean
// on a unique constraint for this, not check-then-act.
type Store interface {
	FindByID(id string) (*domain.Payment, error)
	Create(p *domain.Payment) error
	CreateWithIdempotencyKey(p *domain.Payment, key string, expiresAt time.Time) error
	FindIDByIdempotencyKey(tenantID, key string) (string, error)
	Update(p *domain.Payment) error
}

// Executor is the funds-movement collaborator. A declined or bounced
// execution comes back as an unsuccessful result; the error return is for
// the call itself failing.
type Executor interface {
	Execute(p *domain.Payment) (domain.ExecutionResult, error)
	Refund(paymentID string, amount money.Money, reason string) (domain.ExecutionResult, error)
}

// Config carries the manager's operational limits.
type Config struct {
	// MaxAmountMinorUnits caps a single payment. Zero means no cap.
	MaxAmountMinorUnits int64
	// IdempotencyKeyTTL is how long a key blocks re-creation.
	IdempotencyKeyTTL time.Duration
}

// Manager drives payment transactions through their lifecycle. All
// operations reload the entity from the store, mutate it through its
// transition methods, and save the result; nothing is cached between
// calls.
type Manager struct {
	store    Store
	executor Executor
	events   domain.Dispatcher
	cfg      Config
}

func NewManager(store Store, executor Executor, events domain.Dispatcher, cfg Config) *Manager {
	if cfg.IdempotencyKeyTTL <= 0 {
		cfg.IdempotencyKeyTTL = 24 * time.Hour
	}
	return &Manager{store: store, executor: executor, events: events, cfg: cfg}
}

// CreateParams carries everything needed to create a payment.
type CreateParams struct {
	TenantID       string
	Reference      string
	Direction      domain.PaymentDirection
	Amount         money.Money
	MethodType     domain.PaymentMethodType
	PayerID        string
	PayeeID        string
	Metadata       map[string]string
	IdempotencyKey string
	// Draft creates the payment inactive; it must be activated before it
	// can be executed.
	Draft bool
}

// Create validates and persists a new payment transaction. With an
// idempotency key, creation is at-most-once per key: a live key fails with
// DuplicatePaymentError carrying the existing payment id.
func (m *Manager) Create(params CreateParams) (*domain.Payment, error) {
	if err := m.validateCreate(params); err != nil {
		return nil, err
	}

	if params.IdempotencyKey != "" {
		existingID, err := m.store.FindIDByIdempotencyKey(params.TenantID, params.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
		if existingID != "" {
			return nil, &domain.DuplicatePaymentError{
				IdempotencyKey: params.IdempotencyKey,
				ExistingID:     existingID,
			}
		}
	}

	status := domain.PaymentStatusPending
	if params.Draft {
		status = domain.PaymentStatusDraft
	}

	metadata := make(map[string]string, len(params.Metadata)+1)
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	// Capture the exchange rate in effect at creation. Capture only; the
	// engine never converts.
	if rate, err := currency.Rate(params.Amount.Currency()); err == nil {
		metadata["fx_rate_usd"] = strconv.FormatFloat(rate, 'f', -1, 64)
	}

	p := &domain.Payment{
		ID:         "PAY-" + uuid.NewString(),
		TenantID:   params.TenantID,
		Direction:  params.Direction,
		Amount:     params.Amount,
		Status:     status,
		MethodType: params.MethodType,
		Reference:  params.Reference,
		PayerID:    params.PayerID,
		PayeeID:    params.PayeeID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}

	if params.IdempotencyKey != "" {
		expiresAt := time.Now().Add(m.cfg.IdempotencyKeyTTL)
		err := m.store.CreateWithIdempotencyKey(p, params.IdempotencyKey, expiresAt)
		if err == domain.ErrIdempotencyKeyConflict {
			// Lost the insert race; report the winner's id.
			existingID, lookupErr := m.store.FindIDByIdempotencyKey(params.TenantID, params.IdempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("lookup idempotency key after conflict: %w", lookupErr)
			}
			return nil, &domain.DuplicatePaymentError{
				IdempotencyKey: params.IdempotencyKey,
				ExistingID:     existingID,
			}
		}
		if err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
	} else if err := m.store.Create(p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	log.Printf("[payments] Created %s: %s %s (%s)", p.ID, p.Direction, p.Amount, p.Reference)
	m.events.Dispatch(domain.PaymentCreatedEvent{
		ID:        p.ID,
		Amount:    p.Amount,
		Direction: p.Direction,
		Reference: p.Reference,
	})

	return p, nil
}

func (m *Manager) validateCreate(params CreateParams) error {
	if !params.Amount.IsPositive() {
		return &domain.PaymentValidationError{Message: "payment amount must be positive"}
	}
	if m.cfg.MaxAmountMinorUnits > 0 && params.Amount.MinorUnits() > m.cfg.MaxAmountMinorUnits {
		return &domain.PaymentValidationError{
			Message: fmt.Sprintf("payment amount exceeds the configured maximum of %d minor units",
				m.cfg.MaxAmountMinorUnits),
		}
	}
	if !domain.ValidMethod(params.MethodType) {
		return &domain.InvalidPaymentMethodError{Method: string(params.MethodType)}
	}

	switch params.Direction {
	case domain.DirectionInbound:
		if params.PayerID == "" {
			return &domain.PaymentValidationError{Message: "payer id is required for inbound payments"}
		}
	case domain.DirectionOutbound:
		if params.PayeeID == "" {
			return &domain.PaymentValidationError{Message: "payee id is required for outbound payments"}
		}
	default:
		return &domain.PaymentValidationError{Message: "direction must be INBOUND or OUTBOUND"}
	}

	return nil
}

// Activate moves a draft payment into PENDING so it can be executed.
func (m *Manager) Activate(id string) (*domain.Payment, error) {
	p, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := p.Activate(); err != nil {
		return nil, err
	}
	if err := m.store.Update(p); err != nil {
		return nil, fmt.Errorf("save pending status: %w", err)
	}
	log.Printf("[payments] Activated %s", p.ID)
	return p, nil
}

// Execute runs a pending payment through the executor. Executor failures
// are captured into FAILED state, not returned as errors; only structural
// problems (unknown id, wrong status) surface to the caller.
func (m *Manager) Execute(id string) (*domain.Payment, error) {
	p, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, &domain.InvalidPaymentStatusError{
			Current:  p.Status,
			Required: domain.PaymentStatusPending,
		}
	}
	return m.run(p)
}

// Retry re-runs the execute path for a failed payment.
func (m *Manager) Retry(id string) (*domain.Payment, error) {
	p, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusFailed {
		return nil, &domain.InvalidPaymentStatusError{
			Current:  p.Status,
			Required: domain.PaymentStatusFailed,
			Reason:   "Only failed payments can be retried",
		}
	}
	p.FailureCode = ""
	p.FailureReason = ""
	return m.run(p)
}

// run performs the PROCESSING transition, invokes the executor and applies
// the outcome. Two saves per successful execution: processing, then
// completed.
func (m *Manager) run(p *domain.Payment) (*domain.Payment, error) {
	if err := p.MarkAsProcessing(time.Now()); err != nil {
		return nil, err
	}
	p.AttemptCount++
	if err := m.store.Update(p); err != nil {
		return nil, fmt.Errorf("save processing status: %w", err)
	}
	m.events.Dispatch(domain.PaymentProcessingEvent{ID: p.ID, Amount: p.Amount})

	result, execErr := m.executor.Execute(p)
	if execErr != nil {
		// The call itself failed; capture it like a declined execution.
		result = domain.ExecutionResult{
			Success:        false,
			FailureCode:    "EXECUTOR_ERROR",
			FailureMessage: execErr.Error(),
		}
	}

	if result.Success {
		if err := p.MarkAsCompleted(result.SettledAmount, result.ExternalRef, time.Now()); err != nil {
			return nil, err
		}
		if err := m.store.Update(p); err != nil {
			return nil, fmt.Errorf("save completed status: %w", err)
		}
		log.Printf("[payments] Completed %s: settled %s (ref=%s)", p.ID, result.SettledAmount, result.ExternalRef)
		m.events.Dispatch(domain.PaymentCompletedEvent{ID: p.ID, SettledAmount: result.SettledAmount})
		return p, nil
	}

	if err := p.MarkAsFailed(result.FailureCode, result.FailureMessage); err != nil {
		return nil, err
	}
	if err := m.store.Update(p); err != nil {
		return nil, fmt.Errorf("save failed status: %w", err)
	}
	log.Printf("[payments] Failed %s: %s %s", p.ID, result.FailureCode, result.FailureMessage)
	m.events.Dispatch(domain.PaymentFailedEvent{ID: p.ID, Code: result.FailureCode, Message: result.FailureMessage})
	return p, nil
}

// Cancel withdraws a draft or pending payment.
func (m *Manager) Cancel(id, reason, cancelledBy string) (*domain.Payment, error) {
	p, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := p.Cancel(reason, cancelledBy); err != nil {
		return nil, err
	}
	if err := m.store.Update(p); err != nil {
		return nil, fmt.Errorf("save cancelled status: %w", err)
	}
	log.Printf("[payments] Cancelled %s: %s", p.ID, reason)
	m.events.Dispatch(domain.PaymentCancelledEvent{ID: p.ID, Reason: reason})
	return p, nil
}

// Reverse refunds a completed payment, fully or partially. A nil amount
// reverses the full original amount.
func (m *Manager) Reverse(id string, amount *money.Money, reason string) (*domain.Payment, error) {
	p, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}

	reversal := p.Amount
	if amount != nil {
		reversal = *amount
	}

	// Validate the transition on a copy first so a declined refund leaves
	// the entity untouched.
	check := *p
	if err := check.MarkAsReversed(reversal, reason); err != nil {
		return nil, err
	}

	result, refundErr := m.executor.Refund(p.ID, reversal, reason)
	if refundErr != nil {
		return nil, fmt.Errorf("refund %s: %w", p.ID, refundErr)
	}
	if !result.Success {
		return nil, &domain.PaymentValidationError{
			Message: fmt.Sprintf("refund declined: %s %s", result.FailureCode, result.FailureMessage),
		}
	}

	if err := p.MarkAsReversed(reversal, reason); err != nil {
		return nil, err
	}
	if err := m.store.Update(p); err != nil {
		return nil, fmt.Errorf("save reversed status: %w", err)
	}
	log.Printf("[payments] Reversed %s: %s (%s)", p.ID, reversal, reason)
	m.events.Dispatch(domain.PaymentReversedEvent{ID: p.ID, Amount: reversal, Reason: reason})
	return p, nil
}

// GetStatus returns the payment's current status.
func (m *Manager) GetStatus(id string) (domain.PaymentStatus, error) {
	p, err := m.FindOrFail(id)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

// FindOrFail loads a payment or fails with PaymentNotFoundError.
func (m *Manager) FindOrFail(id string) (*domain.Payment, error) {
	p, err := m.store.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", id, err)
	}
	if p == nil {
		return nil, &domain.PaymentNotFoundError{ID: id}
	}
	return p, nil
}
