/*
errors.go - Centralized error types for the loyalty engine

PURPOSE:
  All engine errors in one place. Callers (the API layer) classify errors
  with the helpers at the bottom instead of matching strings, and the
  store wraps driver failures so raw storage errors never cross the
  package boundary.

ERROR CATEGORIES:
  1. Not-found errors   - Missing rows (form, user, product, ...)
  2. Validation errors  - Constraint violations on input
  3. Conflict errors    - Status transitions from a non-source state
  4. Persistence errors - Storage failures, always roll back
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the base for all missing-row errors.
	ErrNotFound = errors.New("not found")

	ErrFormNotFound       = fmt.Errorf("form %w", ErrNotFound)
	ErrFormTypeNotFound   = fmt.Errorf("form type %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrCompanyNotFound    = fmt.Errorf("company %w", ErrNotFound)
	ErrProjectNotFound    = fmt.Errorf("project %w", ErrNotFound)
	ErrProductNotFound    = fmt.Errorf("product %w", ErrNotFound)
	ErrRedemptionNotFound = fmt.Errorf("redemption %w", ErrNotFound)

	// ErrConflict is returned when a status transition is attempted from
	// a state other than the transition's source state. A second approval
	// of the same form surfaces this instead of double-applying points.
	ErrConflict = errors.New("conflict: entity not in expected status")

	// ErrValidation is the base for input constraint violations.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a redemption would take the
	// user's redeemable balance below zero.
	ErrInsufficientBalance = errors.New("insufficient point balance")

	// ErrOutOfStock is returned when redeeming a product with no stock.
	ErrOutOfStock = errors.New("product out of stock")

	// ErrPersistence wraps storage failures. Operations that see it have
	// rolled back every partial mutation.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports a rejected status transition with both states.
type ConflictError struct {
	Entity   string // "form" or "redemption"
	ID       int64
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d: expected status %q, found %q", e.Entity, e.ID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientBalanceError carries the shortfall details.
type InsufficientBalanceError struct {
	UserID    UserID
	Available Points
	Requested Points
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("user %d: insufficient balance, available %s, requested %s",
		e.UserID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PersistenceError wraps a storage failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing row.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether the error is a rejected status transition.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsClientError reports whether the error is due to invalid client input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOutOfStock)
}
