package disbursement

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// Store is the persistence collaborator for disbursements. FindByID
// returns (nil, nil) when the id is unknown.
type Store interface {
	FindByID(id string) (*domain.Disbursement, error)
	Create(d *domain.Disbursement) error
	Update(d *domain.Disbursement) error
	FindPendingApproval(tenantID string) ([]domain.Disbursement, error)
	// FindReadyForProcessing returns approved disbursements whose
	// scheduled date is null or not after the given time.
	FindReadyForProcessing(tenantID string, now time.Time) ([]domain.Disbursement, error)
}

// Executor moves the funds for an approved disbursement.
type Executor interface {
	ExecuteDisbursement(d *domain.Disbursement) (domain.ExecutionResult, error)
}

// Manager orchestrates the disbursement approval workflow: submit,
// approve or reject, process, cancel, schedule.
type Manager struct {
	store    Store
	executor Executor
	events   domain.Dispatcher
}

func NewManager(store Store, executor Executor, events domain.Dispatcher) *Manager {
	return &Manager{store: store, executor: executor, events: events}
}

// CreateParams carries everything needed to create a disbursement draft.
type CreateParams struct {
	TenantID          string
	Amount            money.Money
	Recipient         domain.RecipientInfo
	SourceDocumentIDs []string
	ScheduledDate     *time.Time
}

// Create validates and persists a new disbursement in DRAFT with a fresh
// immutable DISB- reference number.
func (m *Manager) Create(params CreateParams) (*domain.Disbursement, error) {
	if !params.Amount.IsPositive() {
		return nil, &domain.PaymentValidationError{Message: "disbursement amount must be positive"}
	}
	if err := params.Recipient.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	if params.ScheduledDate != nil && !params.ScheduledDate.After(now) {
		return nil, &domain.PaymentValidationError{Message: "scheduled date must be in the future"}
	}

	d := &domain.Disbursement{
		ID:                "DSB-" + uuid.NewString(),
		TenantID:          params.TenantID,
		Amount:            params.Amount,
		Recipient:         params.Recipient,
		Status:            domain.DisbursementStatusDraft,
		ScheduledDate:     params.ScheduledDate,
		SourceDocumentIDs: params.SourceDocumentIDs,
		ReferenceNumber:   domain.NewDisbursementReference(now),
		CreatedAt:         now,
	}

	if err := m.store.Create(d); err != nil {
		return nil, fmt.Errorf("create disbursement: %w", err)
	}

	log.Printf("[disbursements] Created %s (%s): %s to %s",
		d.ID, d.ReferenceNumber, d.Amount, d.Recipient.Name)
	m.events.Dispatch(domain.DisbursementCreatedEvent{
		ID:        d.ID,
		Reference: d.ReferenceNumber,
		Amount:    d.Amount,
	})

	return d, nil
}

// Submit moves a draft into the approval queue.
func (m *Manager) Submit(id string) (*domain.Disbursement, error) {
	d, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := d.SubmitForApproval(); err != nil {
		return nil, err
	}
	if err := m.store.Update(d); err != nil {
		return nil, fmt.Errorf("save submitted status: %w", err)
	}
	log.Printf("[disbursements] Submitted %s for approval", d.ID)
	return d, nil
}

// Approve records the approver and unlocks processing.
func (m *Manager) Approve(id, approverID, comment string) (*domain.Disbursement, error) {
	d, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := d.Approve(approverID, comment, time.Now()); err != nil {
		return nil, err
	}
	if err := m.store.Update(d); err != nil {
		return nil, fmt.Errorf("save approved status: %w", err)
	}
	log.Printf("[disbursements] Approved %s by %s", d.ID, approverID)
	m.events.Dispatch(domain.DisbursementApprovedEvent{ID: d.ID, ApprovedBy: approverID})
	return d, nil
}

// Reject closes a pending request with a reason.
func (m *Manager) Reject(id, rejectorID, reason string) (*domain.Disbursement, error) {
	d, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := d.Reject(rejectorID, reason); err != nil {
		return nil, err
	}
	if err := m.store.Update(d); err != nil {
		return nil, fmt.Errorf("save rejected status: %w", err)
	}
	log.Printf("[disbursements] Rejected %s by %s: %s", d.ID, rejectorID, reason)
	m.events.Dispatch(domain.DisbursementRejectedEvent{ID: d.ID, RejectedBy: rejectorID, Reason: reason})
	return d, nil
}

// Process executes an approved disbursement through the executor. As with
// payments, a declined execution is captured into FAILED state rather than
// returned as an error.
func (m *Manager) Process(id string) (*domain.Disbursement, error) {
	d, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := d.MarkAsProcessing(time.Now()); err != nil {
		return nil, err
	}
	if err := m.store.Update(d); err != nil {
		return nil, fmt.Errorf("save processing status: %w", err)
	}

	result, execErr := m.executor.ExecuteDisbursement(d)
	if execErr != nil {
		result = domain.ExecutionResult{
			Success:        false,
			FailureCode:    "EXECUTOR_ERROR",
			FailureMessage: execErr.Error(),
		}
	}

	if result.Success {
		if err := d.MarkAsCompleted(result.ExternalRef); err != nil {
			return nil, err
		}
		if err := m.store.Update(d); err != nil {
			return nil, fmt.Errorf("save completed status: %w", err)
		}
		log.Printf("[disbursements] Completed %s (ref=%s)", d.ID, result.ExternalRef)
		m.events.Dispatch(domain.DisbursementCompletedEvent{ID: d.ID, ExternalRef: result.ExternalRef})
		return d, nil
	}

	if err := d.MarkAsFailed(result.FailureCode, result.FailureMessage); err != nil {
		return nil, err
	}
	if err := m.store.Update(d); err != nil {
		return nil, fmt.Errorf("save failed status: %w", err)
	}
	log.Printf("[disbursements] Failed %s: %s %s", d.ID, result.FailureCode, result.FailureMessage)
	m.events.Dispatch(domain.DisbursementFailedEvent{ID: d.ID, Code: result.FailureCode, Message: result.FailureMessage})
	return d, nil
}

// Cancel withdraws a disbursement that has not entered processing.
func (m *Manager) Cancel(id, actorID, reason string) (*domain.Disbursement, error) {
	d, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := d.Cancel(actorID, reason); err != nil {
		return nil, err
	}
	if err := m.store.Update(d); err != nil {
		return nil, fmt.Errorf("save cancelled status: %w", err)
	}
	log.Printf("[disbursements] Cancelled %s: %s", d.ID, reason)
	m.events.Dispatch(domain.DisbursementCancelledEvent{ID: d.ID, Reason: reason})
	return d, nil
}

// Schedule sets or moves the processing date.
func (m *Manager) Schedule(id string, date time.Time) (*domain.Disbursement, error) {
	d, err := m.FindOrFail(id)
	if err != nil {
		return nil, err
	}
	if err := d.Schedule(date, time.Now()); err != nil {
		return nil, err
	}
	if err := m.store.Update(d); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	log.Printf("[disbursements] Scheduled %s for %s", d.ID, date.Format(time.RFC3339))
	return d, nil
}

// PendingApprovals lists the tenant's disbursements awaiting a decision.
func (m *Manager) PendingApprovals(tenantID string) ([]domain.Disbursement, error) {
	return m.store.FindPendingApproval(tenantID)
}

// ReadyForProcessing lists the tenant's approved disbursements whose
// schedule permits processing now.
func (m *Manager) ReadyForProcessing(tenantID string) ([]domain.Disbursement, error) {
	return m.store.FindReadyForProcessing(tenantID, time.Now())
}

// FindOrFail loads a disbursement or fails with DisbursementNotFoundError.
func (m *Manager) FindOrFail(id string) (*domain.Disbursement, error) {
	d, err := m.store.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("find disbursement %s: %w", id, err)
	}
	if d == nil {
		return nil, &domain.DisbursementNotFoundError{ID: id}
	}
	return d, nil
}
