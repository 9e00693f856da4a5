package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrDuplicateSettlement marks a (period, payee, type) uniqueness conflict.
// Callers treat it as a retryable conflict, not data corruption.
var ErrDuplicateSettlement = errors.New("settlement already exists for period/payee/type")

// ValidationError rejects bad input before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReconciliationError means a computed breakdown failed its conservation
// check. The order is flagged, never silently clamped.
type ReconciliationError struct {
	OrderId int
	Detail  string
}

func (e *ReconciliationError) Error() string {
	if e.OrderId > 0 {
		return fmt.Sprintf("reconciliation failed for order %d: %s", e.OrderId, e.Detail)
	}
	return fmt.Sprintf("reconciliation failed: %s", e.Detail)
}

func IsReconciliationError(err error) bool {
	var re *ReconciliationError
	return errors.As(err, &re)
}
