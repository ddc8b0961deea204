/*
errors.go - Centralized error types for the planning engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these onto status codes without inspecting
  message strings.

ERROR CATEGORIES:
  1. NotFound    - Missing leave/allocation/contract id. Contract absence
                   is NOT an error: resolution falls back to the virtual
                   default contract.
  2. Validation  - Bad date order, overlap detected, percentage out of
                   range, illegal state transition. Raised before any
                   mutation; a rejected operation commits nothing.
  3. Persistence - Propagated for primary writes. The snapshot cache
                   write is best-effort and never surfaces here.

USAGE:
  if planning.IsNotFound(err) { ... 404 ... }
  if planning.IsClientError(err) { ... 400 ... }
*/
package planning

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the root of every validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end date before start date")

	// ErrLeaveOverlap is returned when a leave range collides with an
	// approved leave of the same user.
	ErrLeaveOverlap = errors.New("leave overlaps an approved leave")

	// ErrInvalidTransition is returned when a leave operation is attempted
	// from a status that does not permit it.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "leave", "allocation", "contract"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports a rejected input field or precondition.
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

// OverlapError reports the approved leave that blocked the candidate range.
type OverlapError struct {
	UserID     string
	Start, End Date
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("leave [%s, %s] overlaps an approved leave for user %s", e.Start, e.End, e.UserID)
}

func (e *OverlapError) Unwrap() error { return ErrLeaveOverlap }

// TransitionError names the violated workflow precondition, e.g.
// "only PENDING requests can be approved".
type TransitionError struct {
	Action   string      // past participle: "approved", "rejected", "cancelled", "updated", "deleted"
	Current  LeaveStatus // status at the time of the attempt
	Required LeaveStatus // status the action needs
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("only %s requests can be %s, current status: %s", e.Required, e.Action, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrLeaveOverlap) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
