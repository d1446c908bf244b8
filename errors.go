package feeledger

import (
	"errors"
	"fmt"

	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("feeledger: not found")
	ErrAlreadyExists = errors.New("feeledger: already exists")
	ErrInvalidInput  = errors.New("feeledger: invalid input")

	// Fee record errors
	ErrFeeNotFound      = errors.New("feeledger: fee record not found")
	ErrFeeSettled       = errors.New("feeledger: fee record already settled")
	ErrAccountNotLoaded = errors.New("feeledger: account has no loaded records")
	ErrCurrencyMismatch = errors.New("feeledger: payment currency does not match fee")

	// Payment errors
	ErrPaymentNotFound = errors.New("feeledger: payment not found")
	ErrInvalidAmount   = errors.New("feeledger: payment amount must be positive")

	// Store errors
	ErrStoreNotReady     = errors.New("feeledger: store not ready")
	ErrStoreClosed       = errors.New("feeledger: store is closed")
	ErrTransactionFailed = errors.New("feeledger: transaction failed")
	ErrMigrationFailed   = errors.New("feeledger: migration failed")
)

// ValidationError represents a validation failure on a fee record or payment.
// It is the fee package's type re-exported so callers can match load and
// payment rejections with one errors.As target.
type ValidationError = fee.ValidationError

// OverpaymentError is returned when a payment would push a fee's paid amount
// past its owed amount. It carries what the caller needs to retry with the
// exact remaining balance.
type OverpaymentError struct {
	FeeID     id.FeeID
	Requested types.Money
	Remaining types.Money
}

func (e OverpaymentError) Error() string {
	return fmt.Sprintf("feeledger: payment of %s exceeds remaining balance %s on fee %s",
		e.Requested, e.Remaining, e.FeeID)
}

// MultiError represents multiple errors that occurred, typically across a
// bulk record load.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "feeledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("feeledger: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Unwrap exposes the collected errors to errors.Is and errors.As, so a
// rejected bulk load still matches ValidationError.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrFeeNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrAccountNotLoaded)
}

// IsRejected returns true if the error means the payment was refused and the
// ledger is unchanged. Rejected payments are safe to correct and resubmit.
func IsRejected(err error) bool {
	var vErr ValidationError
	var opErr OverpaymentError
	return errors.Is(err, ErrFeeSettled) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.As(err, &vErr) ||
		errors.As(err, &opErr)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
