package domain

import (
	"errors"
	"fmt"
)

// ErrIdempotencyKeyConflict is returned by the payment store when an
// idempotency key insert loses a race against a concurrent create. The
// store relies on a unique constraint for this, not application locking.
var ErrIdempotencyKeyConflict = errors.New("idempotency key already exists")

// ErrPaymentAlreadyBatched is returned by the settlement store when a
// payment is added to a second batch. Enforced by a unique constraint on
// the batch membership table.
var ErrPaymentAlreadyBatched = errors.New("payment already belongs to a settlement batch")

// PaymentNotFoundError indicates the payment id does not exist.
type PaymentNotFoundError struct {
	ID string
}

func (e *PaymentNotFoundError) Error() string {
	return fmt.Sprintf("payment %s not found", e.ID)
}

// DisbursementNotFoundError indicates the disbursement id does not exist.
type DisbursementNotFoundError struct {
	ID string
}

func (e *DisbursementNotFoundError) Error() string {
	return fmt.Sprintf("disbursement %s not found", e.ID)
}

// BatchNotFoundError indicates the settlement batch id does not exist.
type BatchNotFoundError struct {
	ID string
}

func (e *BatchNotFoundError) Error() string {
	return fmt.Sprintf("settlement batch %s not found", e.ID)
}

// PaymentValidationError covers invalid input to a payment or disbursement
// operation. Nothing is persisted before the check fires.
type PaymentValidationError struct {
	Message string
}

func (e *PaymentValidationError) Error() string { return e.Message }

// InvalidPaymentMethodError indicates an unknown payment method type.
type InvalidPaymentMethodError struct {
	Method string
}

func (e *InvalidPaymentMethodError) Error() string {
	return fmt.Sprintf("invalid payment method: %s", e.Method)
}

// InvalidRecipientInfoError indicates a disbursement recipient failed
// validation.
type InvalidRecipientInfoError struct {
	Message string
}

func (e *InvalidRecipientInfoError) Error() string { return e.Message }

// InvalidPaymentStatusError is the state-conflict error for payment
// transitions. It carries the current and required status so callers can
// diagnose what they raced against.
type InvalidPaymentStatusError struct {
	Current  PaymentStatus
	Required PaymentStatus
	Reason   string
}

func (e *InvalidPaymentStatusError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid payment status: %s (requires %s)", e.Current, e.Required)
}

// InvalidDisbursementStatusError is the state-conflict error for
// disbursement transitions.
type InvalidDisbursementStatusError struct {
	Current  DisbursementStatus
	Required DisbursementStatus
	Reason   string
}

func (e *InvalidDisbursementStatusError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid disbursement status: %s (requires %s)", e.Current, e.Required)
}

// InvalidBatchStatusError is the state-conflict error for settlement batch
// transitions.
type InvalidBatchStatusError struct {
	Current  BatchStatus
	Required BatchStatus
}

func (e *InvalidBatchStatusError) Error() string {
	return fmt.Sprintf("invalid batch status: %s (requires %s)", e.Current, e.Required)
}

// DuplicatePaymentError is returned when a create call reuses a live
// idempotency key. ExistingID lets the caller reconcile against the
// payment the key already maps to.
type DuplicatePaymentError struct {
	IdempotencyKey string
	ExistingID     string
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("duplicate payment: idempotency key %s already maps to payment %s",
		e.IdempotencyKey, e.ExistingID)
}

// AllocationError covers any violation of the allocation validation rules.
// The engine never partially applies an allocation it cannot fully validate.
type AllocationError struct {
	Message string
}

func (e *AllocationError) Error() string { return e.Message }
