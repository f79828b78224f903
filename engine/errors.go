/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP status codes; batch operations
  record them per-employee instead of aborting.

ERROR CATEGORIES:
  1. Validation errors - malformed input, surfaced immediately
  2. Policy violations - actionable by the caller (retry with override)
  3. State errors - stale client state, caller should refresh
  4. Authority errors - resolver rejected the actor
  5. Ledger/store errors - persistence-level failures

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, engine.ErrInvalidState) { ... }

SEE ALSO:
  - ledger.go: Uses the idempotency errors
  - request.go: Produces state/authority/policy errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input, e.g. missing
	// mandatory reject remarks. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrPolicyViolation is returned when a policy rule blocks the
	// operation, e.g. backdated limit exceeded without override.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrInvalidState is returned when a request is not in the state the
	// transition requires. Indicates stale client state.
	ErrInvalidState = errors.New("invalid request state")

	// ErrForbidden is returned when the authority resolver rejects the actor.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned for unknown employees, requests, and years.
	ErrNotFound = errors.New("not found")

	// ErrPolicyNotFound is returned when no policy is configured for a
	// year. For lookups this is an expected, handled case.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the
	// same idempotency key already exists. Expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when a conditional status
	// update loses the race to a concurrent writer.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStoreNotReady is returned when the storage schema is missing or
	// not migrated.
	ErrStoreNotReady = errors.New("storage schema not ready")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PolicyViolationError names the rule that blocked the operation.
type PolicyViolationError struct {
	Rule    string // e.g. "backdated_max_days", "insufficient_balance"
	Message string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// InvalidStateError reports the state a transition found vs. required.
type InvalidStateError struct {
	RequestID RequestID
	Current   string
	Required  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("request %d is %s, requires %s", e.RequestID, e.Current, e.Required)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ForbiddenError reports an authority failure.
type ForbiddenError struct {
	ActorID EmployeeID
	Action  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("employee %d may not %s", e.ActorID, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "employee", "policy", "leave request", ...
	ID   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or state, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPolicyNotFound)
}
