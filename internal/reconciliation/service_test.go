package reconciliation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

type fakeBatchStore struct {
	batches map[string]*domain.SettlementBatch
	members map[string][]string
}

func (f *fakeBatchStore) FindByID(id string) (*domain.SettlementBatch, error) {
	return f.batches[id], nil
}

func (f *fakeBatchStore) PaymentIDs(batchID string) ([]string, error) {
	return f.members[batchID], nil
}

type fakePaymentReader struct {
	payments map[string]*domain.Payment
}

func (f *fakePaymentReader) FindByID(id string) (*domain.Payment, error) {
	return f.payments[id], nil
}

func completedPayment(id string, settled int64) *domain.Payment {
	amount := money.MustNew(settled, "MYR")
	return &domain.Payment{
		ID:            id,
		TenantID:      "tenant-1",
		Amount:        amount,
		Status:        domain.PaymentStatusCompleted,
		SettledAmount: &amount,
	}
}

func newVerifier(batch *domain.SettlementBatch, members []string, payments ...*domain.Payment) *Service {
	batchStore := &fakeBatchStore{
		batches: map[string]*domain.SettlementBatch{batch.ID: batch},
		members: map[string][]string{batch.ID: members},
	}
	reader := &fakePaymentReader{payments: make(map[string]*domain.Payment)}
	for _, p := range payments {
		reader.payments[p.ID] = p
	}
	return NewService(batchStore, reader)
}

func TestVerifyBatchClean(t *testing.T) {
	batch := &domain.SettlementBatch{
		ID:           "batch-1",
		Status:       domain.BatchStatusClosed,
		PaymentCount: 2,
		TotalAmount:  money.MustNew(3000, "MYR"),
		OpenedAt:     time.Now(),
	}
	svc := newVerifier(batch, []string{"pay-1", "pay-2"},
		completedPayment("pay-1", 1000), completedPayment("pay-2", 2000))

	report, err := svc.VerifyBatch("batch-1")
	require.NoError(t, err)
	assert.True(t, report.Clean)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 2, report.ActualCount)
	assert.True(t, report.ActualTotal.Equal(report.ExpectedTotal))
}

func TestVerifyBatchTotalMismatch(t *testing.T) {
	batch := &domain.SettlementBatch{
		ID:           "batch-1",
		Status:       domain.BatchStatusClosed,
		PaymentCount: 2,
		TotalAmount:  money.MustNew(9999, "MYR"),
		OpenedAt:     time.Now(),
	}
	svc := newVerifier(batch, []string{"pay-1", "pay-2"},
		completedPayment("pay-1", 1000), completedPayment("pay-2", 2000))

	report, err := svc.VerifyBatch("batch-1")
	require.NoError(t, err)
	assert.False(t, report.Clean)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueAmountMismatch, report.Issues[0].Type)
	assert.Equal(t, SeverityHigh, report.Issues[0].Severity)
}

func TestVerifyBatchMissingAndDriftedPayments(t *testing.T) {
	batch := &domain.SettlementBatch{
		ID:           "batch-1",
		Status:       domain.BatchStatusOpen,
		PaymentCount: 3,
		TotalAmount:  money.MustNew(1000, "MYR"),
		OpenedAt:     time.Now(),
	}
	drifted := completedPayment("pay-2", 500)
	drifted.Status = domain.PaymentStatusFailed
	svc := newVerifier(batch, []string{"pay-1", "pay-2", "pay-gone"},
		completedPayment("pay-1", 1000), drifted)

	report, err := svc.VerifyBatch("batch-1")
	require.NoError(t, err)
	assert.False(t, report.Clean)

	types := make(map[IssueType]int)
	for _, issue := range report.Issues {
		types[issue.Type]++
	}
	assert.Equal(t, 1, types[IssueMissingPayment])
	assert.Equal(t, 1, types[IssueStatusDrift])
	// missing and drifted payments are excluded from the recomputed total,
	// which still matches the batch counter here
	assert.Zero(t, types[IssueAmountMismatch])
	assert.Equal(t, int64(1000), report.ActualTotal.MinorUnits())
}

func TestVerifyBatchReversedMemberStillCounts(t *testing.T) {
	batch := &domain.SettlementBatch{
		ID:           "batch-1",
		Status:       domain.BatchStatusReconciled,
		PaymentCount: 1,
		TotalAmount:  money.MustNew(1000, "MYR"),
		OpenedAt:     time.Now(),
	}
	reversed := completedPayment("pay-1", 1000)
	reversed.Status = domain.PaymentStatusReversed
	svc := newVerifier(batch, []string{"pay-1"}, reversed)

	report, err := svc.VerifyBatch("batch-1")
	require.NoError(t, err)
	assert.True(t, report.Clean)
}

func TestVerifyBatchNotFound(t *testing.T) {
	svc := NewService(
		&fakeBatchStore{batches: map[string]*domain.SettlementBatch{}, members: map[string][]string{}},
		&fakePaymentReader{payments: map[string]*domain.Payment{}},
	)

	_, err := svc.VerifyBatch("nope")
	var notFound *domain.BatchNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.ID)
}
