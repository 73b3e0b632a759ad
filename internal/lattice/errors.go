package lattice

import (
	"errors"
	"fmt"
)

// Domain errors for lattice construction and validation.
var (
	// ErrInvalidConfig indicates a construction-time parameter is out of range.
	ErrInvalidConfig = errors.New("lattice: invalid configuration")

	// ErrNonFinite indicates a buffer holds NaN or Inf.
	ErrNonFinite = errors.New("lattice: non-finite value detected")

	// ErrOutOfRange indicates a cell, slot or target index outside the lattice.
	ErrOutOfRange = errors.New("lattice: index out of range")
)

// ConfigError wraps ErrInvalidConfig with the offending field.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Invalid builds a ConfigError.
func Invalid(field string, value any, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// FieldError reports the first non-finite cell of a named buffer.
type FieldError struct {
	Buffer string
	Cell   int
	Value  float64
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s[%d] = %v", e.Buffer, e.Cell, e.Value)
}

func (e *FieldError) Unwrap() error {
	return ErrNonFinite
}

// CheckProbability validates p ∈ [0,1].
func CheckProbability(field string, p float64) error {
	if !(p >= 0 && p <= 1) {
		return Invalid(field, p, "must be within [0,1]")
	}
	return nil
}

// CheckUnitOpen validates v ∈ [0,1).
func CheckUnitOpen(field string, v float64) error {
	if !(v >= 0 && v < 1) {
		return Invalid(field, v, "must be within [0,1)")
	}
	return nil
}

// CheckRange validates lo ≤ hi for a pair of configured bounds.
func CheckRange(field string, lo, hi float64) error {
	if !(lo <= hi) {
		return Invalid(field, [2]float64{lo, hi}, "min must not exceed max")
	}
	return nil
}
