package tokenledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Every public operation
// either succeeds or returns an error wrapping exactly one of these.
var (
	// Seed errors
	ErrAlreadyGranted = errors.New("tokenledger: seed already granted")

	// Amount errors
	ErrInvalidAmount = errors.New("tokenledger: invalid amount")

	// Regeneration errors
	ErrNotEligible     = errors.New("tokenledger: not eligible for regeneration yet")
	ErrNothingEligible = errors.New("tokenledger: no account eligible for regeneration")

	// Balance errors
	ErrCannotTransferLocked            = errors.New("tokenledger: cannot transfer locked tokens")
	ErrInsufficientBalance             = errors.New("tokenledger: insufficient balance")
	ErrInsufficientUnlockedPledgeFunds = errors.New("tokenledger: insufficient unlocked pledge funds")
	ErrInvariantViolation              = errors.New("tokenledger: invariant violation")

	// Authorization errors
	ErrUnauthorized = errors.New("tokenledger: unauthorized")

	// Configuration errors
	ErrAlreadyInitialized = errors.New("tokenledger: already initialized")
	ErrNotInitialized     = errors.New("tokenledger: not initialized")
	ErrInvalidAddress     = errors.New("tokenledger: invalid address")

	// Store errors
	ErrNotFound    = errors.New("tokenledger: not found")
	ErrStoreClosed = errors.New("tokenledger: store is closed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tokenledger: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tokenledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tokenledger: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
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

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthorization returns true if the caller was not permitted to act.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsBalanceError returns true if the error rejected a movement for lack of funds.
func IsBalanceError(err error) bool {
	return errors.Is(err, ErrCannotTransferLocked) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientUnlockedPledgeFunds)
}

// IsRetryable returns true if the same call may succeed later without changes.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotEligible)
}
