package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serantau/payflow/internal/money"
)

type DisbursementStatus string

const (
	DisbursementStatusDraft           DisbursementStatus = "DRAFT"
	DisbursementStatusPendingApproval DisbursementStatus = "PENDING_APPROVAL"
	DisbursementStatusApproved        DisbursementStatus = "APPROVED"
	DisbursementStatusRejected        DisbursementStatus = "REJECTED"
	DisbursementStatusProcessing      DisbursementStatus = "PROCESSING"
	DisbursementStatusCompleted       DisbursementStatus = "COMPLETED"
	DisbursementStatusFailed          DisbursementStatus = "FAILED"
	DisbursementStatusCancelled       DisbursementStatus = "CANCELLED"
)

// RecipientInfo identifies where an outbound disbursement should land.
type RecipientInfo struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Email         string `json:"email,omitempty"`
}

// Validate checks the recipient has enough detail to route funds.
func (r RecipientInfo) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &InvalidRecipientInfoError{Message: "recipient name is required"}
	}
	if strings.TrimSpace(r.AccountNumber) == "" {
		return &InvalidRecipientInfoError{Message: "recipient account number is required"}
	}
	if strings.TrimSpace(r.BankCode) == "" {
		return &InvalidRecipientInfoError{Message: "recipient bank code is required"}
	}
	return nil
}

// NewDisbursementReference generates the immutable DISB- reference assigned
// at creation, e.g. DISB-20240115-1A2B3C4D.
func NewDisbursementReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("DISB-%s-%s", now.Format("20060102"), suffix)
}

// Disbursement is an outbound payment request that must pass an approval
// gate before it can be processed.
type Disbursement struct {
	ID                string             `json:"id"`
	TenantID          string             `json:"tenant_id"`
	Amount            money.Money        `json:"amount"`
	Recipient         RecipientInfo      `json:"recipient"`
	Status            DisbursementStatus `json:"status"`
	ApprovedBy        string             `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time         `json:"approved_at,omitempty"`
	ApprovalComment   string             `json:"approval_comment,omitempty"`
	RejectedBy        string             `json:"rejected_by,omitempty"`
	RejectionReason   string             `json:"rejection_reason,omitempty"`
	ScheduledDate     *time.Time         `json:"scheduled_date,omitempty"`
	SourceDocumentIDs []string           `json:"source_document_ids,omitempty"`
	ReferenceNumber   string             `json:"reference_number"`
	ExternalRef       string             `json:"external_ref,omitempty"`
	FailureCode       string             `json:"failure_code,omitempty"`
	FailureReason     string             `json:"failure_reason,omitempty"`
	CancelledBy       string             `json:"cancelled_by,omitempty"`
	CancelReason      string             `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	ProcessedAt       *time.Time         `json:"processed_at,omitempty"`
}

// SubmitForApproval moves a draft into the approval queue.
func (d *Disbursement) SubmitForApproval() error {
	if d.Status != DisbursementStatusDraft {
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusDraft}
	}
	d.Status = DisbursementStatusPendingApproval
	return nil
}

// Approve records the approver and unlocks processing.
func (d *Disbursement) Approve(approverID, comment string, now time.Time) error {
	if d.Status != DisbursementStatusPendingApproval {
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusPendingApproval}
	}
	if strings.TrimSpace(approverID) == "" {
		return &PaymentValidationError{Message: "approver id is required"}
	}
	d.Status = DisbursementStatusApproved
	d.ApprovedBy = approverID
	d.ApprovedAt = &now
	d.ApprovalComment = comment
	return nil
}

// Reject records the rejection and closes the request.
func (d *Disbursement) Reject(rejectorID, reason string) error {
	if d.Status != DisbursementStatusPendingApproval {
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusPendingApproval}
	}
	if strings.TrimSpace(reason) == "" {
		return &PaymentValidationError{Message: "rejection reason is required"}
	}
	d.Status = DisbursementStatusRejected
	d.RejectedBy = rejectorID
	d.RejectionReason = reason
	return nil
}

// MarkAsProcessing transitions APPROVED -> PROCESSING. A disbursement
// cannot be processed ahead of its scheduled date.
func (d *Disbursement) MarkAsProcessing(now time.Time) error {
	if d.Status != DisbursementStatusApproved {
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusApproved}
	}
	if d.ScheduledDate != nil && d.ScheduledDate.After(now) {
		return &PaymentValidationError{
			Message: fmt.Sprintf("disbursement %s is scheduled for %s",
				d.ReferenceNumber, d.ScheduledDate.Format(time.RFC3339)),
		}
	}
	d.Status = DisbursementStatusProcessing
	d.ProcessedAt = &now
	return nil
}

// MarkAsCompleted records the external rail reference.
func (d *Disbursement) MarkAsCompleted(externalRef string) error {
	if d.Status != DisbursementStatusProcessing {
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusProcessing}
	}
	d.Status = DisbursementStatusCompleted
	d.ExternalRef = externalRef
	return nil
}

// MarkAsFailed records the executor's failure code and message.
func (d *Disbursement) MarkAsFailed(code, message string) error {
	if d.Status != DisbursementStatusProcessing {
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusProcessing}
	}
	d.Status = DisbursementStatusFailed
	d.FailureCode = code
	d.FailureReason = message
	return nil
}

// CanBeCancelled reports whether the disbursement has not yet entered
// processing or reached a terminal state.
func (d *Disbursement) CanBeCancelled() bool {
	switch d.Status {
	case DisbursementStatusDraft, DisbursementStatusPendingApproval, DisbursementStatusApproved:
		return true
	}
	return false
}

// Cancel withdraws the request before processing starts.
func (d *Disbursement) Cancel(actorID, reason string) error {
	if !d.CanBeCancelled() {
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusPendingApproval}
	}
	d.Status = DisbursementStatusCancelled
	d.CancelledBy = actorID
	d.CancelReason = reason
	return nil
}

// Schedule sets or moves the processing date. Only future dates are
// accepted, and completed disbursements cannot be rescheduled.
func (d *Disbursement) Schedule(date time.Time, now time.Time) error {
	switch d.Status {
	case DisbursementStatusCompleted, DisbursementStatusProcessing,
		DisbursementStatusFailed, DisbursementStatusCancelled, DisbursementStatusRejected:
		return &InvalidDisbursementStatusError{Current: d.Status, Required: DisbursementStatusApproved}
	}
	if !date.After(now) {
		return &PaymentValidationError{Message: "scheduled date must be in the future"}
	}
	d.ScheduledDate = &date
	return nil
}
