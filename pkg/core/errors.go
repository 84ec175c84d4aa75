package core

import (
	"errors"
	"fmt"
)

// Failure classes reported by the processing stages. Callers match them with
// errors.Is.
var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrInvalidFormula       = errors.New("invalid formula")
	ErrInsufficientOverlap  = errors.New("insufficient overlap")
	ErrNumericalInstability = errors.New("numerical instability")
	ErrStaleRanges          = errors.New("ranges are stale; call UpdateRanges")
)

// ParamError describes a rejected configuration value.
type ParamError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

// Is makes a ParamError match ErrInvalidParameter.
func (e *ParamError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// InvalidParam returns a *ParamError for param.
func InvalidParam(param string, value any, reason string) error {
	return &ParamError{Param: param, Value: value, Reason: reason}
}

// ValidationError represents an error found during input validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is makes a ValidationError match ErrInsufficientData, since invalid input
// cannot be processed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInsufficientData
}
