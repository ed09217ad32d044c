package reconciliation

import (
	"fmt"
	"log"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// IssueType classifies a batch verification finding.
type IssueType string

const (
	IssueMissingPayment IssueType = "MISSING_PAYMENT"
	IssueStatusDrift    IssueType = "STATUS_DRIFT"
	IssueAmountMismatch IssueType = "AMOUNT_MISMATCH"
)

// Severity ranks how urgently an issue needs attention.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Issue is one finding from a batch verification run.
type Issue struct {
	Type        IssueType `json:"type"`
	PaymentID   string    `json:"payment_id,omitempty"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

// Report summarises the verification of one settlement batch.
type Report struct {
	BatchID       string             `json:"batch_id"`
	BatchStatus   domain.BatchStatus `json:"batch_status"`
	ExpectedCount int                `json:"expected_count"`
	ActualCount   int                `json:"actual_count"`
	ExpectedTotal money.Money        `json:"expected_total"`
	ActualTotal   money.Money        `json:"actual_total"`
	Issues        []Issue            `json:"issues,omitempty"`
	Clean         bool               `json:"clean"`
}

// BatchStore is the read slice of the settlement store the verifier needs.
type BatchStore interface {
	FindByID(id string) (*domain.SettlementBatch, error)
	PaymentIDs(batchID string) ([]string, error)
}

// PaymentReader gives the verifier read access to payments.
type PaymentReader interface {
	FindByID(id string) (*domain.Payment, error)
}

// Service verifies settlement batches against the payments they claim to
// contain. The batch totals are denormalised counters; verification
// recomputes them from the member payments and flags any drift before the
// batch is reconciled with the processor.
type Service struct {
	batches  BatchStore
	payments PaymentReader
}

func NewService(batches BatchStore, payments PaymentReader) *Service {
	return &Service{batches: batches, payments: payments}
}

// VerifyBatch recomputes a batch's totals from its member payments and
// reports every discrepancy found. A clean report means the batch counters
// match the payments exactly.
func (s *Service) VerifyBatch(batchID string) (*Report, error) {
	batch, err := s.batches.FindByID(batchID)
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	if batch == nil {
		return nil, &domain.BatchNotFoundError{ID: batchID}
	}

	ids, err := s.batches.PaymentIDs(batchID)
	if err != nil {
		return nil, fmt.Errorf("batch payments: %w", err)
	}

	report := &Report{
		BatchID:       batchID,
		BatchStatus:   batch.Status,
		ExpectedCount: batch.PaymentCount,
		ActualCount:   len(ids),
		ExpectedTotal: batch.TotalAmount,
		ActualTotal:   money.Zero(batch.TotalAmount.Currency()),
	}

	for _, id := range ids {
		p, err := s.payments.FindByID(id)
		if err != nil {
			return nil, fmt.Errorf("find payment %s: %w", id, err)
		}
		if p == nil {
			report.Issues = append(report.Issues, Issue{
				Type:        IssueMissingPayment,
				PaymentID:   id,
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("Payment %s is in the batch but no longer exists", id),
			})
			continue
		}

		// Reversal after batching is legitimate; anything else leaving
		// COMPLETED means the batch was built from a payment that later
		// changed underneath it.
		if p.Status != domain.PaymentStatusCompleted && p.Status != domain.PaymentStatusReversed {
			report.Issues = append(report.Issues, Issue{
				Type:        IssueStatusDrift,
				PaymentID:   id,
				Severity:    SeverityMedium,
				Description: fmt.Sprintf("Payment %s is %s, expected COMPLETED", id, p.Status),
			})
			continue
		}

		settled := p.Amount
		if p.SettledAmount != nil {
			settled = *p.SettledAmount
		}
		total, err := report.ActualTotal.Add(settled)
		if err != nil {
			report.Issues = append(report.Issues, Issue{
				Type:        IssueAmountMismatch,
				PaymentID:   id,
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("Payment %s settled in %s, batch is %s", id, settled.Currency(), batch.TotalAmount.Currency()),
			})
			continue
		}
		report.ActualTotal = total
	}

	if !report.ActualTotal.Equal(report.ExpectedTotal) {
		report.Issues = append(report.Issues, Issue{
			Type:     IssueAmountMismatch,
			Severity: SeverityHigh,
			Description: fmt.Sprintf("Batch total is %s but payments sum to %s",
				report.ExpectedTotal, report.ActualTotal),
		})
	}

	report.Clean = len(report.Issues) == 0 && report.ExpectedCount == report.ActualCount

	log.Printf("[reconciliation] Verified batch %s: %d payments, clean=%v, issues=%d",
		batchID, report.ActualCount, report.Clean, len(report.Issues))

	return report, nil
}
