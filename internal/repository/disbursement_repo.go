package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

type DisbursementRepo struct {
	db *sql.DB
}

func NewDisbursementRepo(db *sql.DB) *DisbursementRepo {
	return &DisbursementRepo{db: db}
}

const disbursementColumns = `id, tenant_id, amount, currency, recipient_name, recipient_account,
	recipient_bank, recipient_email, status, approved_by, approved_at, approval_comment,
	rejected_by, rejection_reason, scheduled_date, source_document_ids, reference_number,
	external_ref, failure_code, failure_reason, cancelled_by, cancel_reason,
	created_at, processed_at`

func (r *DisbursementRepo) FindByID(id string) (*domain.Disbursement, error) {
	row := r.db.QueryRow(
		"SELECT "+disbursementColumns+" FROM disbursements WHERE id = ?", id,
	)
	d, err := scanDisbursement(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find disbursement: %w", err)
	}
	return d, nil
}

func (r *DisbursementRepo) Create(d *domain.Disbursement) error {
	args, err := disbursementArgs(d)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(
		`INSERT INTO disbursements (`+disbursementColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert disbursement: %w", err)
	}
	return nil
}

func (r *DisbursementRepo) Update(d *domain.Disbursement) error {
	sourceDocs, err := marshalSourceDocs(d.SourceDocumentIDs)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(
		`UPDATE disbursements SET status = ?, approved_by = ?, approved_at = ?,
			approval_comment = ?, rejected_by = ?, rejection_reason = ?,
			scheduled_date = ?, source_document_ids = ?, external_ref = ?,
			failure_code = ?, failure_reason = ?, cancelled_by = ?, cancel_reason = ?,
			processed_at = ?
		WHERE id = ?`,
		string(d.Status), nullString(d.ApprovedBy), formatNullableTime(d.ApprovedAt),
		nullString(d.ApprovalComment), nullString(d.RejectedBy), nullString(d.RejectionReason),
		formatNullableTime(d.ScheduledDate), sourceDocs, nullString(d.ExternalRef),
		nullString(d.FailureCode), nullString(d.FailureReason),
		nullString(d.CancelledBy), nullString(d.CancelReason),
		formatNullableTime(d.ProcessedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update disbursement: %w", err)
	}
	return nil
}

// FindPendingApproval returns the tenant's approval queue, oldest first.
func (r *DisbursementRepo) FindPendingApproval(tenantID string) ([]domain.Disbursement, error) {
	rows, err := r.db.Query(
		"SELECT "+disbursementColumns+" FROM disbursements WHERE tenant_id = ? AND status = ? ORDER BY created_at ASC",
		tenantID, string(domain.DisbursementStatusPendingApproval),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending approvals: %w", err)
	}
	defer rows.Close()
	return collectDisbursements(rows)
}

// FindReadyForProcessing returns approved disbursements whose scheduled
// date has arrived (or was never set), oldest first.
func (r *DisbursementRepo) FindReadyForProcessing(tenantID string, now time.Time) ([]domain.Disbursement, error) {
	rows, err := r.db.Query(
		`SELECT `+disbursementColumns+` FROM disbursements
		WHERE tenant_id = ? AND status = ?
			AND (scheduled_date IS NULL OR scheduled_date <= ?)
		ORDER BY created_at ASC`,
		tenantID, string(domain.DisbursementStatusApproved), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query ready for processing: %w", err)
	}
	defer rows.Close()
	return collectDisbursements(rows)
}

func collectDisbursements(rows *sql.Rows) ([]domain.Disbursement, error) {
	var out []domain.Disbursement
	for rows.Next() {
		d, err := scanDisbursement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func disbursementArgs(d *domain.Disbursement) ([]any, error) {
	sourceDocs, err := marshalSourceDocs(d.SourceDocumentIDs)
	if err != nil {
		return nil, err
	}
	return []any{
		d.ID, d.TenantID, d.Amount.MinorUnits(), d.Amount.Currency(),
		d.Recipient.Name, d.Recipient.AccountNumber, d.Recipient.BankCode,
		nullString(d.Recipient.Email),
		string(d.Status), nullString(d.ApprovedBy), formatNullableTime(d.ApprovedAt),
		nullString(d.ApprovalComment), nullString(d.RejectedBy), nullString(d.RejectionReason),
		formatNullableTime(d.ScheduledDate), sourceDocs, d.ReferenceNumber,
		nullString(d.ExternalRef), nullString(d.FailureCode), nullString(d.FailureReason),
		nullString(d.CancelledBy), nullString(d.CancelReason),
		d.CreatedAt.Format(time.RFC3339), formatNullableTime(d.ProcessedAt),
	}, nil
}

func marshalSourceDocs(ids []string) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal source documents: %w", err)
	}
	return string(data), nil
}

func scanDisbursement(scan func(dest ...any) error) (*domain.Disbursement, error) {
	var d domain.Disbursement
	var status, currency, createdAt string
	var amount int64
	var recipientEmail sql.NullString
	var approvedBy, approvalComment, rejectedBy, rejectionReason sql.NullString
	var sourceDocs, externalRef, failureCode, failureReason sql.NullString
	var cancelledBy, cancelReason sql.NullString
	var approvedAt, scheduledDate, processedAt sql.NullString

	err := scan(
		&d.ID, &d.TenantID, &amount, &currency,
		&d.Recipient.Name, &d.Recipient.AccountNumber, &d.Recipient.BankCode, &recipientEmail,
		&status, &approvedBy, &approvedAt, &approvalComment,
		&rejectedBy, &rejectionReason, &scheduledDate, &sourceDocs, &d.ReferenceNumber,
		&externalRef, &failureCode, &failureReason, &cancelledBy, &cancelReason,
		&createdAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Amount = money.MustNew(amount, currency)
	d.Recipient.Email = recipientEmail.String
	d.Status = domain.DisbursementStatus(status)
	d.ApprovedBy = approvedBy.String
	d.ApprovalComment = approvalComment.String
	d.RejectedBy = rejectedBy.String
	d.RejectionReason = rejectionReason.String
	d.ExternalRef = externalRef.String
	d.FailureCode = failureCode.String
	d.FailureReason = failureReason.String
	d.CancelledBy = cancelledBy.String
	d.CancelReason = cancelReason.String
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.ApprovedAt = parseNullableTime(approvedAt)
	d.ScheduledDate = parseNullableTime(scheduledDate)
	d.ProcessedAt = parseNullableTime(processedAt)

	if sourceDocs.Valid && sourceDocs.String != "" {
		if err := json.Unmarshal([]byte(sourceDocs.String), &d.SourceDocumentIDs); err != nil {
			return nil, fmt.Errorf("unmarshal source documents: %w", err)
		}
	}

	return &d, nil
}
