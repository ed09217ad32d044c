package domain

import (
	"time"

	"github.com/serantau/payflow/internal/money"
)

type PaymentStatus string

const (
	PaymentStatusDraft      PaymentStatus = "DRAFT"
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusReversed   PaymentStatus = "REVERSED"
)

type PaymentDirection string

const (
	DirectionInbound  PaymentDirection = "INBOUND"
	DirectionOutbound PaymentDirection = "OUTBOUND"
)

type PaymentMethodType string

const (
	MethodBankTransfer PaymentMethodType = "BANK_TRANSFER"
	MethodCard         PaymentMethodType = "CARD"
	MethodEWallet      PaymentMethodType = "EWALLET"
	MethodCash         PaymentMethodType = "CASH"
	MethodCheque       PaymentMethodType = "CHEQUE"
)

// ValidMethod reports whether m is a known payment method type.
func ValidMethod(m PaymentMethodType) bool {
	switch m {
	case MethodBankTransfer, MethodCard, MethodEWallet, MethodCash, MethodCheque:
		return true
	}
	return false
}

// SupportsReversal reports whether the method's rail can return funds.
// Cash and cheque payments have no reversal path.
func (m PaymentMethodType) SupportsReversal() bool {
	switch m {
	case MethodBankTransfer, MethodCard, MethodEWallet:
		return true
	}
	return false
}

// paymentTransitions is the closed set of legal status moves. Every mutator
// consults this table; status is never assigned from outside the entity's
// methods.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusDraft:      {PaymentStatusPending, PaymentStatusCancelled},
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusReversed},
	PaymentStatusFailed:     {PaymentStatusProcessing},
}

// CanTransitionPayment reports whether from -> to is a legal payment status
// move.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is a single payment transaction. Mutation goes through the
// transition methods below; PaymentManager owns the lifecycle and the
// repository only persists whatever state the entity reached.
type Payment struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	Direction      PaymentDirection  `json:"direction"`
	Amount         money.Money       `json:"amount"`
	Status         PaymentStatus     `json:"status"`
	MethodType     PaymentMethodType `json:"method_type"`
	Reference      string            `json:"reference"`
	PayerID        string            `json:"payer_id,omitempty"`
	PayeeID        string            `json:"payee_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ExternalRef    string            `json:"external_ref,omitempty"`
	SettledAmount  *money.Money      `json:"settled_amount,omitempty"`
	ReversedAmount *money.Money      `json:"reversed_amount,omitempty"`
	ReversalReason string            `json:"reversal_reason,omitempty"`
	FailureCode    string            `json:"failure_code,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	CancelledBy    string            `json:"cancelled_by,omitempty"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	AttemptCount   int               `json:"attempt_count"`
	CreatedAt      time.Time         `json:"created_at"`
	ProcessedAt    *time.Time        `json:"processed_at,omitempty"`
	SettledAt      *time.Time        `json:"settled_at,omitempty"`
}

func (p *Payment) transition(to PaymentStatus) error {
	if !CanTransitionPayment(p.Status, to) {
		return &InvalidPaymentStatusError{Current: p.Status, Required: requiredFor(to)}
	}
	p.Status = to
	return nil
}

// requiredFor names the status a payment must be in before moving to the
// given target. Used for the diagnostics carried by state-conflict errors.
func requiredFor(to PaymentStatus) PaymentStatus {
	switch to {
	case PaymentStatusProcessing:
		return PaymentStatusPending
	case PaymentStatusCompleted, PaymentStatusFailed:
		return PaymentStatusProcessing
	case PaymentStatusReversed:
		return PaymentStatusCompleted
	default:
		return PaymentStatusPending
	}
}

// Activate moves a draft payment into the executable PENDING state.
func (p *Payment) Activate() error {
	if p.Status != PaymentStatusDraft {
		return &InvalidPaymentStatusError{Current: p.Status, Required: PaymentStatusDraft}
	}
	p.Status = PaymentStatusPending
	return nil
}

// MarkAsProcessing transitions PENDING -> PROCESSING (or FAILED ->
// PROCESSING on a retry) immediately before the executor is invoked.
func (p *Payment) MarkAsProcessing(now time.Time) error {
	if err := p.transition(PaymentStatusProcessing); err != nil {
		return err
	}
	p.ProcessedAt = &now
	return nil
}

// MarkAsCompleted records the settled amount and the external rail
// reference. Both are required for a completed payment.
func (p *Payment) MarkAsCompleted(settled money.Money, externalRef string, now time.Time) error {
	if externalRef == "" {
		return &PaymentValidationError{Message: "external transaction reference is required to complete a payment"}
	}
	if settled.Currency() != p.Amount.Currency() {
		return &money.CurrencyMismatchError{Left: p.Amount.Currency(), Right: settled.Currency()}
	}
	if err := p.transition(PaymentStatusCompleted); err != nil {
		return err
	}
	p.SettledAmount = &settled
	p.ExternalRef = externalRef
	p.SettledAt = &now
	return nil
}

// MarkAsFailed records the executor's failure code and message.
func (p *Payment) MarkAsFailed(code, message string) error {
	if code == "" {
		return &PaymentValidationError{Message: "failure code is required to fail a payment"}
	}
	if err := p.transition(PaymentStatusFailed); err != nil {
		return err
	}
	p.FailureCode = code
	p.FailureReason = message
	return nil
}

// CanBeCancelled reports whether the payment is still cancellable.
func (p *Payment) CanBeCancelled() bool {
	return p.Status == PaymentStatusDraft || p.Status == PaymentStatusPending
}

// Cancel moves a draft or pending payment to CANCELLED.
func (p *Payment) Cancel(reason, cancelledBy string) error {
	if !p.CanBeCancelled() {
		return &InvalidPaymentStatusError{Current: p.Status, Required: PaymentStatusPending}
	}
	p.Status = PaymentStatusCancelled
	p.CancelReason = reason
	p.CancelledBy = cancelledBy
	return nil
}

// CanBeReversed reports whether the payment can be reversed at all.
// The method type must additionally support reversal.
func (p *Payment) CanBeReversed() bool {
	return p.Status == PaymentStatusCompleted
}

// MarkAsReversed applies a full or partial reversal. The reversal amount
// must not exceed the original payment amount.
func (p *Payment) MarkAsReversed(amount money.Money, reason string) error {
	if !p.CanBeReversed() {
		return &InvalidPaymentStatusError{Current: p.Status, Required: PaymentStatusCompleted}
	}
	if !p.MethodType.SupportsReversal() {
		return &PaymentValidationError{
			Message: "payment method " + string(p.MethodType) + " does not support reversal",
		}
	}
	cmp, err := amount.Cmp(p.Amount)
	if err != nil {
		return err
	}
	if cmp > 0 {
		return &PaymentValidationError{Message: "Reversal amount cannot exceed original payment amount"}
	}
	if err := p.transition(PaymentStatusReversed); err != nil {
		return err
	}
	p.ReversedAmount = &amount
	p.ReversalReason = reason
	return nil
}
