/*
errors.go - Centralized error types for the scheduling core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch with errors.Is / errors.As; the API maps them to HTTP codes.

ERROR CATEGORIES:
  1. Validation errors - rejected before any state mutation
  2. Illegal transitions - no-op failures carrying the current status
  3. Store errors - not found, duplicate tuple, lost optimistic lock

NOT ERRORS:
  - A holiday that does not occur in a year (resolver returns ok=false)
  - A placement that already exists for its tuple (generation skips it)

SEE ALSO:
  - transition.go: Produces IllegalTransitionError
  - planner.go: Treats ErrDuplicatePlacement as steady state
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrHolidayNotFound      = errors.New("holiday not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlacementNotFound    = errors.New("placement not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrProductNotFound      = errors.New("product not found")

	// ErrDuplicatePlacement is returned by a store when a placement already
	// exists for the scheduling tuple. Generation treats it as "already done".
	ErrDuplicatePlacement = errors.New("placement already exists for tuple")

	// ErrConcurrentModification is returned when an optimistic update finds the
	// stored version changed since the record was read.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrIllegalTransition = errors.New("illegal placement transition")

	// ErrSubscriptionState is returned when a subscription lifecycle operation
	// (cancel, reactivate, renew) is attempted from the wrong status.
	ErrSubscriptionState = errors.New("illegal subscription status")

	ErrValidation    = errors.New("validation failed")
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field and a human reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IllegalTransitionError reports an action attempted from the wrong state.
// The placement is left untouched.
type IllegalTransitionError struct {
	PlacementID PlacementID
	Action      ActionKind
	Current     PlacementStatus
	Required    PlacementStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s placement %s: status is %s, not %s",
		e.Action, e.PlacementID, e.Current, e.Required)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// Reason is the short per-item reason used in batch results, e.g. "not scheduled".
func (e *IllegalTransitionError) Reason() string {
	return "not " + string(e.Required)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ReasonOf returns a short, caller-facing reason string for err.
func ReasonOf(err error) string {
	var ite *IllegalTransitionError
	if errors.As(err, &ite) {
		return ite.Reason()
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	switch {
	case errors.Is(err, ErrPlacementNotFound):
		return "not found"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent modification"
	case errors.Is(err, ErrSubscriptionState):
		return "subscription status does not allow this"
	case err == nil:
		return ""
	}
	return err.Error()
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsDuplicate reports whether err means the tuple is already scheduled.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicatePlacement)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrSubscriptionState)
}

// IsConflict returns true if the request clashed with the record's current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrSubscriptionState) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrDuplicatePlacement)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrHolidayNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPlacementNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProductNotFound)
}
