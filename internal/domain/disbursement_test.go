package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serantau/payflow/internal/money"
)

func newTestDisbursement(status DisbursementStatus) *Disbursement {
	return &Disbursement{
		ID:       "DSB-1",
		TenantID: "tenant-1",
		Amount:   money.MustNew(50000, "MYR"),
		Recipient: RecipientInfo{
			Name:          "Acme Supplies Sdn Bhd",
			AccountNumber: "1234567890",
			BankCode:      "MBBEMYKL",
		},
		Status:          status,
		ReferenceNumber: NewDisbursementReference(time.Now()),
		CreatedAt:       time.Now(),
	}
}

func TestNewDisbursementReference(t *testing.T) {
	ref := NewDisbursementReference(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(ref, "DISB-20240115-"), ref)
	assert.Len(t, ref, len("DISB-20240115-")+8)

	// Suffixes are random, so two references never collide.
	other := NewDisbursementReference(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	assert.NotEqual(t, ref, other)
}

func TestRecipientInfoValidate(t *testing.T) {
	valid := RecipientInfo{Name: "A", AccountNumber: "1", BankCode: "B"}
	assert.NoError(t, valid.Validate())

	var recipErr *InvalidRecipientInfoError
	assert.ErrorAs(t, RecipientInfo{AccountNumber: "1", BankCode: "B"}.Validate(), &recipErr)
	assert.ErrorAs(t, RecipientInfo{Name: "A", BankCode: "B"}.Validate(), &recipErr)
	assert.ErrorAs(t, RecipientInfo{Name: "A", AccountNumber: "1"}.Validate(), &recipErr)
}

func TestApprovalFlow(t *testing.T) {
	d := newTestDisbursement(DisbursementStatusDraft)

	require.NoError(t, d.SubmitForApproval())
	assert.Equal(t, DisbursementStatusPendingApproval, d.Status)

	require.NoError(t, d.Approve("approver-1", "looks good", time.Now()))
	assert.Equal(t, DisbursementStatusApproved, d.Status)
	assert.Equal(t, "approver-1", d.ApprovedBy)
	assert.NotNil(t, d.ApprovedAt)

	// Already approved, cannot approve again.
	var stateErr *InvalidDisbursementStatusError
	assert.ErrorAs(t, d.Approve("approver-2", "", time.Now()), &stateErr)
}

func TestReject(t *testing.T) {
	d := newTestDisbursement(DisbursementStatusPendingApproval)
	require.NoError(t, d.Reject("approver-1", "missing supporting documents"))
	assert.Equal(t, DisbursementStatusRejected, d.Status)
	assert.Equal(t, "missing supporting documents", d.RejectionReason)

	t.Run("reason_required", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusPendingApproval)
		var valErr *PaymentValidationError
		assert.ErrorAs(t, d.Reject("approver-1", "  "), &valErr)
	})
}

func TestDisbursementProcessing(t *testing.T) {
	t.Run("approved_processes", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusApproved)
		require.NoError(t, d.MarkAsProcessing(time.Now()))
		assert.Equal(t, DisbursementStatusProcessing, d.Status)
	})

	t.Run("future_schedule_blocks", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusApproved)
		future := time.Now().Add(48 * time.Hour)
		d.ScheduledDate = &future

		err := d.MarkAsProcessing(time.Now())
		var valErr *PaymentValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Contains(t, valErr.Message, "scheduled for")
		assert.Equal(t, DisbursementStatusApproved, d.Status)
	})

	t.Run("past_schedule_allows", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusApproved)
		past := time.Now().Add(-time.Hour)
		d.ScheduledDate = &past
		assert.NoError(t, d.MarkAsProcessing(time.Now()))
	})

	t.Run("draft_rejected", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusDraft)
		var stateErr *InvalidDisbursementStatusError
		require.ErrorAs(t, d.MarkAsProcessing(time.Now()), &stateErr)
		assert.Equal(t, DisbursementStatusDraft, stateErr.Current)
		assert.Equal(t, DisbursementStatusApproved, stateErr.Required)
	})
}

func TestDisbursementCancel(t *testing.T) {
	cancellable := []DisbursementStatus{
		DisbursementStatusDraft, DisbursementStatusPendingApproval, DisbursementStatusApproved,
	}
	for _, status := range cancellable {
		t.Run(string(status), func(t *testing.T) {
			d := newTestDisbursement(status)
			require.NoError(t, d.Cancel("user-1", "no longer needed"))
			assert.Equal(t, DisbursementStatusCancelled, d.Status)
		})
	}

	blocked := []DisbursementStatus{
		DisbursementStatusProcessing, DisbursementStatusCompleted,
		DisbursementStatusFailed, DisbursementStatusCancelled,
	}
	for _, status := range blocked {
		t.Run(string(status)+"_rejected", func(t *testing.T) {
			d := newTestDisbursement(status)
			var stateErr *InvalidDisbursementStatusError
			assert.ErrorAs(t, d.Cancel("user-1", "too late"), &stateErr)
			assert.Equal(t, status, d.Status)
		})
	}
}

func TestSchedule(t *testing.T) {
	now := time.Now()

	t.Run("future_date", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusApproved)
		require.NoError(t, d.Schedule(now.Add(24*time.Hour), now))
		require.NotNil(t, d.ScheduledDate)
	})

	t.Run("past_date_rejected", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusApproved)
		var valErr *PaymentValidationError
		require.ErrorAs(t, d.Schedule(now.Add(-time.Minute), now), &valErr)
		assert.Contains(t, valErr.Message, "must be in the future")
	})

	t.Run("completed_rejected", func(t *testing.T) {
		d := newTestDisbursement(DisbursementStatusCompleted)
		var stateErr *InvalidDisbursementStatusError
		assert.ErrorAs(t, d.Schedule(now.Add(24*time.Hour), now), &stateErr)
	})
}
