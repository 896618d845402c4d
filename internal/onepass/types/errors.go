package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("accreditation not found")
	ErrConflict            = errors.New("version conflict")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrInvalidZone         = errors.New("invalid zone")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("operation not permitted")
	ErrStructuralViolation = errors.New("movement log structural violation")
)

// ConflictError reports a version mismatch. Callers must reload the record
// before trying again.
type ConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	if e.Actual == 0 {
		return fmt.Sprintf("accreditation %s: version %d is stale, reload and retry", e.ID, e.Expected)
	}
	return fmt.Sprintf("accreditation %s: version %d does not match current version %d, reload and retry",
		e.ID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// TransitionError reports a status change that the lifecycle does not allow.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot go from %s to %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ZoneError reports an unknown zone or an illegal move between zones.
type ZoneError struct {
	Zone   Zone
	Reason string
}

func (e *ZoneError) Error() string {
	if e.Zone == "" {
		return "invalid zone: " + e.Reason
	}
	return fmt.Sprintf("invalid zone %s: %s", e.Zone, e.Reason)
}

func (e *ZoneError) Unwrap() error { return ErrInvalidZone }
