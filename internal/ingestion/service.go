package ingestion

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
	"github.com/serantau/payflow/internal/payment"
)

// ImportRecord is one parsed row of a bulk payment file.
type ImportRecord struct {
	Line       int
	TenantID   string
	Reference  string
	Direction  string
	Amount     money.Money
	MethodType string
	PayerID    string
	PayeeID    string
}

// ImportFailure reports one row that could not be imported.
type ImportFailure struct {
	Line      int    `json:"line"`
	Reference string `json:"reference"`
	Error     string `json:"error"`
}

// ImportResult is returned from a bulk import run.
type ImportResult struct {
	RecordsImported   int             `json:"records_imported"`
	DuplicatesSkipped int             `json:"duplicates_skipped"`
	Failures          []ImportFailure `json:"failures,omitempty"`
}

// PaymentCreator is the slice of the payment manager the importer needs.
type PaymentCreator interface {
	Create(params payment.CreateParams) (*domain.Payment, error)
}

// Service imports bulk payment files. Each row becomes a DRAFT payment
// created through the manager, so every row passes the same validation as
// a single API create.
type Service struct {
	payments PaymentCreator
}

func NewService(payments PaymentCreator) *Service {
	return &Service{payments: payments}
}

// ImportPayments parses a bulk payment file and creates a draft payment per
// row. Re-importing the same file is safe: each row's idempotency key is
// derived from the file hash and line number, so rows already imported are
// counted as duplicates rather than created twice.
//
// format must be one of: csv, json
func (s *Service) ImportPayments(data []byte, format string) (*ImportResult, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	var records []ImportRecord
	var err error

	switch format {
	case "csv":
		records, err = ParsePaymentsCSV(data)
	case "json":
		records, err = ParsePaymentsJSON(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}

	result := &ImportResult{}
	for _, rec := range records {
		_, err := s.payments.Create(payment.CreateParams{
			TenantID:       rec.TenantID,
			Reference:      rec.Reference,
			Direction:      domain.PaymentDirection(rec.Direction),
			Amount:         rec.Amount,
			MethodType:     domain.PaymentMethodType(rec.MethodType),
			PayerID:        rec.PayerID,
			PayeeID:        rec.PayeeID,
			IdempotencyKey: fmt.Sprintf("import-%s-%d", hash[:16], rec.Line),
			Draft:          true,
		})
		if err != nil {
			var dup *domain.DuplicatePaymentError
			if errors.As(err, &dup) {
				result.DuplicatesSkipped++
				continue
			}
			result.Failures = append(result.Failures, ImportFailure{
				Line:      rec.Line,
				Reference: rec.Reference,
				Error:     err.Error(),
			})
			continue
		}
		result.RecordsImported++
	}

	log.Printf("[ingestion] Imported %d payments (%d duplicates, %d failures) from %s file",
		result.RecordsImported, result.DuplicatesSkipped, len(result.Failures), format)

	return result, nil
}
