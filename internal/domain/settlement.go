package domain

import (
	"time"

	"github.com/serantau/payflow/internal/money"
)

type BatchStatus string

const (
	BatchStatusOpen       BatchStatus = "OPEN"
	BatchStatusClosed     BatchStatus = "CLOSED"
	BatchStatusReconciled BatchStatus = "RECONCILED"
)

// SettlementBatch groups completed payments for processor-level settlement.
// It holds payment ids only; the payments themselves stay owned by the
// payment store.
type SettlementBatch struct {
	ID           string      `json:"id"`
	Status       BatchStatus `json:"status"`
	PaymentCount int         `json:"payment_count"`
	TotalAmount  money.Money `json:"total_amount"`
	OpenedAt     time.Time   `json:"opened_at"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty"`
	ReconciledAt *time.Time  `json:"reconciled_at,omitempty"`
}

// AddPayment accumulates a completed payment's settled amount into the
// batch totals. Only open batches accept payments.
func (b *SettlementBatch) AddPayment(settled money.Money) error {
	if b.Status != BatchStatusOpen {
		return &InvalidBatchStatusError{Current: b.Status, Required: BatchStatusOpen}
	}
	total, err := b.TotalAmount.Add(settled)
	if err != nil {
		return err
	}
	b.TotalAmount = total
	b.PaymentCount++
	return nil
}

// Close freezes the batch for submission to the processor.
func (b *SettlementBatch) Close(now time.Time) error {
	if b.Status != BatchStatusOpen {
		return &InvalidBatchStatusError{Current: b.Status, Required: BatchStatusOpen}
	}
	b.Status = BatchStatusClosed
	b.ClosedAt = &now
	return nil
}

// MarkReconciled records that the processor confirmed the batch.
func (b *SettlementBatch) MarkReconciled(now time.Time) error {
	if b.Status != BatchStatusClosed {
		return &InvalidBatchStatusError{Current: b.Status, Required: BatchStatusClosed}
	}
	b.Status = BatchStatusReconciled
	b.ReconciledAt = &now
	return nil
}
