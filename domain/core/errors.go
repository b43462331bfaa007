package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Validation errors
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrTwoGroupsRequired = errors.New("exactly two group levels required")
	ErrEmptyDataset      = errors.New("dataset contains no observations")
	ErrGroupConflict     = errors.New("subject observed under more than one group label")
	ErrInsufficientData  = errors.New("insufficient data for analysis")

	// Model errors
	ErrModelFit = errors.New("model fit failed")

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
)

// Error constructors with context
func NewInvalidArgumentError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, field, reason)
}

func NewModelFitError(stage string, cause error) error {
	return fmt.Errorf("%w during %s: %v", ErrModelFit, stage, cause)
}

// Error checking helpers
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrTwoGroupsRequired) ||
		errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrGroupConflict)
}

func IsModelFitError(err error) bool {
	return errors.Is(err, ErrModelFit)
}
