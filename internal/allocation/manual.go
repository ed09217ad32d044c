package allocation

import (
	"fmt"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// manualStrategy applies a caller-supplied allocation map. The engine only
// validates it: every allocation must target a known document, stay within
// that document's outstanding balance, and the sum must not exceed the
// payment.
type manualStrategy struct{}

func (manualStrategy) Allocate(payment money.Money, docs []Document, manual map[string]money.Money) (*Result, error) {
	byID := make(map[string]Document, len(docs))
	for _, doc := range docs {
		byID[doc.DocumentID()] = doc
	}

	allocations := make(map[string]money.Money, len(manual))
	total := money.Zero(payment.Currency())

	for id, amt := range manual {
		doc, ok := byID[id]
		if !ok {
			return nil, &domain.AllocationError{
				Message: fmt.Sprintf("Manual allocation references unknown document %s", id),
			}
		}
		if !amt.IsPositive() {
			return nil, &domain.AllocationError{
				Message: fmt.Sprintf("Manual allocation for document %s must be positive", id),
			}
		}
		cmp, err := amt.Cmp(doc.OutstandingAmount())
		if err != nil {
			return nil, &domain.AllocationError{
				Message: fmt.Sprintf("Manual allocation for document %s: %v", id, err),
			}
		}
		if cmp > 0 {
			return nil, &domain.AllocationError{
				Message: fmt.Sprintf("Manual allocation for document %s exceeds its outstanding balance", id),
			}
		}

		allocations[id] = amt
		total, err = total.Add(amt)
		if err != nil {
			return nil, err
		}
	}

	if cmp, err := total.Cmp(payment); err != nil {
		return nil, err
	} else if cmp > 0 {
		return nil, &domain.AllocationError{Message: "Total manual allocations exceed payment amount"}
	}

	return buildResult(payment, allocations)
}
