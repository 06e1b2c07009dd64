package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPreconditionFailed marks any transition attempted from the wrong
	// workflow state. Use errors.Is against it; the concrete *StateError
	// carries the expected and actual states.
	ErrPreconditionFailed = errors.New("precondition_failed")

	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("application_not_found")

	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrMissingDocument     = errors.New("invalid_document")
	ErrInvalidAddress      = errors.New("invalid_address")
	ErrInvalidBuildingArea = errors.New("invalid_building_area")
	ErrInvalidTechnician   = errors.New("invalid_technician")
	ErrInvalidDiameter     = errors.New("invalid_pipe_diameter")
	ErrInvalidOccupants    = errors.New("invalid_occupant_count")
	ErrMissingSurveyDoc    = errors.New("invalid_survey_document")
	ErrInvalidCost         = errors.New("invalid_total_cost")
	ErrMissingEstimateDoc  = errors.New("invalid_estimate_document")
	ErrInvalidMethod       = errors.New("invalid_payment_method")
	ErrInvalidOutcome      = errors.New("invalid_estimate_outcome")
	ErrInvalidReason       = errors.New("invalid_rejection_reason")
	ErrSurveyNotFound      = errors.New("survey_not_found")
	ErrEstimateNotFound    = errors.New("estimate_not_found")

	// ErrCorruptState is a programming-invariant violation: a persisted state
	// value outside the known enum.
	ErrCorruptState = errors.New("corrupt_application_state")
)

// StateError reports a transition attempted from the wrong state so the
// caller can decide between retry, surfacing, or treating as already done.
type StateError struct {
	Op       string
	Expected []ApplicationState
	Actual   ApplicationState
}

func NewStateError(op string, actual ApplicationState, expected ...ApplicationState) *StateError {
	return &StateError{Op: op, Expected: expected, Actual: actual}
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: precondition_failed: expected state %v, got %q", e.Op, e.Expected, e.Actual)
}

func (e *StateError) Is(target error) bool {
	return target == ErrPreconditionFailed
}
