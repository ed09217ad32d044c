package domain

import "github.com/serantau/payflow/internal/money"

// Event is anything the engine reports to the event sink. Dispatch is
// fire-and-forget; the engine never blocks on delivery confirmation.
type Event interface {
	EventName() string
}

// Dispatcher is the event sink collaborator shared by the payment and
// disbursement managers.
type Dispatcher interface {
	Dispatch(event Event)
}

// ExecutionResult is what the funds-movement executor reports back. A
// failed execution is a result, not an error: errors are reserved for the
// call itself going wrong.
type ExecutionResult struct {
	Success        bool
	SettledAmount  money.Money
	ExternalRef    string
	FailureCode    string
	FailureMessage string
}

type PaymentCreatedEvent struct {
	ID        string
	Amount    money.Money
	Direction PaymentDirection
	Reference string
}

func (PaymentCreatedEvent) EventName() string { return "payment.created" }

type PaymentProcessingEvent struct {
	ID     string
	Amount money.Money
}

func (PaymentProcessingEvent) EventName() string { return "payment.processing" }

type PaymentCompletedEvent struct {
	ID            string
	SettledAmount money.Money
}

func (PaymentCompletedEvent) EventName() string { return "payment.completed" }

type PaymentFailedEvent struct {
	ID      string
	Code    string
	Message string
}

func (PaymentFailedEvent) EventName() string { return "payment.failed" }

type PaymentCancelledEvent struct {
	ID     string
	Reason string
}

func (PaymentCancelledEvent) EventName() string { return "payment.cancelled" }

type PaymentReversedEvent struct {
	ID     string
	Amount money.Money
	Reason string
}

func (PaymentReversedEvent) EventName() string { return "payment.reversed" }

type DisbursementCreatedEvent struct {
	ID        string
	Reference string
	Amount    money.Money
}

func (DisbursementCreatedEvent) EventName() string { return "disbursement.created" }

type DisbursementApprovedEvent struct {
	ID         string
	ApprovedBy string
}

func (DisbursementApprovedEvent) EventName() string { return "disbursement.approved" }

type DisbursementRejectedEvent struct {
	ID         string
	RejectedBy string
	Reason     string
}

func (DisbursementRejectedEvent) EventName() string { return "disbursement.rejected" }

type DisbursementCompletedEvent struct {
	ID          string
	ExternalRef string
}

func (DisbursementCompletedEvent) EventName() string { return "disbursement.completed" }

type DisbursementFailedEvent struct {
	ID      string
	Code    string
	Message string
}

func (DisbursementFailedEvent) EventName() string { return "disbursement.failed" }

type DisbursementCancelledEvent struct {
	ID     string
	Reason string
}

func (DisbursementCancelledEvent) EventName() string { return "disbursement.cancelled" }
