package settlement

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// Store is the persistence collaborator for settlement batches. AddPayment
// must enforce, via a unique constraint, that a payment belongs to at most
// one batch, returning domain.ErrPaymentAlreadyBatched on a duplicate.
type Store interface {
	Create(b *domain.SettlementBatch) error
	FindByID(id string) (*domain.SettlementBatch, error)
	Update(b *domain.SettlementBatch) error
	AddPayment(batchID, paymentID string, addedAt time.Time) error
	PaymentIDs(batchID string) ([]string, error)
}

// PaymentReader gives the service read access to payments; it never
// mutates them.
type PaymentReader interface {
	FindByID(id string) (*domain.Payment, error)
}

// Service groups completed payments into settlement batches and walks a
// batch through open -> closed -> reconciled.
type Service struct {
	batches  Store
	payments PaymentReader
}

func NewService(batches Store, payments PaymentReader) *Service {
	return &Service{batches: batches, payments: payments}
}

// Open creates a new open batch for the given currency.
func (s *Service) Open(currency string) (*domain.SettlementBatch, error) {
	total := money.Zero(currency)
	if total.Currency() == "" || len(total.Currency()) != 3 {
		return nil, &domain.PaymentValidationError{Message: "batch currency must be a 3-letter code"}
	}

	b := &domain.SettlementBatch{
		ID:          "BATCH-" + uuid.NewString(),
		Status:      domain.BatchStatusOpen,
		TotalAmount: total,
		OpenedAt:    time.Now(),
	}
	if err := s.batches.Create(b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	log.Printf("[settlement] Opened batch %s (%s)", b.ID, currency)
	return b, nil
}

// AddPayment puts a completed payment into an open batch. The payment must
// be COMPLETED and not already belong to a batch.
func (s *Service) AddPayment(batchID, paymentID string) (*domain.SettlementBatch, error) {
	b, err := s.FindOrFail(batchID)
	if err != nil {
		return nil, err
	}

	p, err := s.payments.FindByID(paymentID)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentID, err)
	}
	if p == nil {
		return nil, &domain.PaymentNotFoundError{ID: paymentID}
	}
	if p.Status != domain.PaymentStatusCompleted {
		return nil, &domain.InvalidPaymentStatusError{
			Current:  p.Status,
			Required: domain.PaymentStatusCompleted,
		}
	}

	settled := p.Amount
	if p.SettledAmount != nil {
		settled = *p.SettledAmount
	}
	if err := b.AddPayment(settled); err != nil {
		return nil, err
	}

	if err := s.batches.AddPayment(batchID, paymentID, time.Now()); err != nil {
		return nil, err
	}
	if err := s.batches.Update(b); err != nil {
		return nil, fmt.Errorf("save batch totals: %w", err)
	}

	log.Printf("[settlement] Added %s to batch %s (count=%d, total=%s)",
		paymentID, batchID, b.PaymentCount, b.TotalAmount)
	return b, nil
}

// Close freezes the batch for submission to the processor.
func (s *Service) Close(batchID string) (*domain.SettlementBatch, error) {
	b, err := s.FindOrFail(batchID)
	if err != nil {
		return nil, err
	}
	if err := b.Close(time.Now()); err != nil {
		return nil, err
	}
	if err := s.batches.Update(b); err != nil {
		return nil, fmt.Errorf("save closed status: %w", err)
	}
	log.Printf("[settlement] Closed batch %s: %d payments, %s", b.ID, b.PaymentCount, b.TotalAmount)
	return b, nil
}

// Reconcile records processor confirmation for a closed batch.
func (s *Service) Reconcile(batchID string) (*domain.SettlementBatch, error) {
	b, err := s.FindOrFail(batchID)
	if err != nil {
		return nil, err
	}
	if err := b.MarkReconciled(time.Now()); err != nil {
		return nil, err
	}
	if err := s.batches.Update(b); err != nil {
		return nil, fmt.Errorf("save reconciled status: %w", err)
	}
	log.Printf("[settlement] Reconciled batch %s", b.ID)
	return b, nil
}

// PaymentIDs lists the payments in a batch, id-only.
func (s *Service) PaymentIDs(batchID string) ([]string, error) {
	if _, err := s.FindOrFail(batchID); err != nil {
		return nil, err
	}
	return s.batches.PaymentIDs(batchID)
}

// FindOrFail loads a batch or fails with BatchNotFoundError.
func (s *Service) FindOrFail(batchID string) (*domain.SettlementBatch, error) {
	b, err := s.batches.FindByID(batchID)
	if err != nil {
		return nil, fmt.Errorf("find batch %s: %w", batchID, err)
	}
	if b == nil {
		return nil, &domain.BatchNotFoundError{ID: batchID}
	}
	return b, nil
}
