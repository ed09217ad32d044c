package executor

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// Sandbox is a rail-less executor for development and demos. It settles
// every payment at full value with a generated external reference.
// Setting the metadata key "sandbox_outcome" to "decline" forces a
// declined execution, which exercises the failure paths end to end.
type Sandbox struct{}

func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func externalRef() string {
	return "EXT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func (*Sandbox) Execute(p *domain.Payment) (domain.ExecutionResult, error) {
	if p.Metadata["sandbox_outcome"] == "decline" {
		log.Printf("[executor] Declining %s (sandbox_outcome=decline)", p.ID)
		return domain.ExecutionResult{
			Success:        false,
			FailureCode:    "SANDBOX_DECLINED",
			FailureMessage: fmt.Sprintf("sandbox declined payment %s", p.ID),
		}, nil
	}

	ref := externalRef()
	log.Printf("[executor] Settled %s for %s (ref=%s)", p.ID, p.Amount, ref)
	return domain.ExecutionResult{
		Success:       true,
		SettledAmount: p.Amount,
		ExternalRef:   ref,
	}, nil
}

func (*Sandbox) Refund(paymentID string, amount money.Money, reason string) (domain.ExecutionResult, error) {
	ref := externalRef()
	log.Printf("[executor] Refunded %s: %s (ref=%s, reason=%s)", paymentID, amount, ref, reason)
	return domain.ExecutionResult{
		Success:       true,
		SettledAmount: amount,
		ExternalRef:   ref,
	}, nil
}

func (*Sandbox) ExecuteDisbursement(d *domain.Disbursement) (domain.ExecutionResult, error) {
	ref := externalRef()
	log.Printf("[executor] Disbursed %s to %s (ref=%s)", d.ID, d.Recipient.Name, ref)
	return domain.ExecutionResult{
		Success:       true,
		SettledAmount: d.Amount,
		ExternalRef:   ref,
	}, nil
}
