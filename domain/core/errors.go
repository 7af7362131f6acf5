package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Data sufficiency errors. These are first-class outcomes: statistical
	// functions surface them as nil results, never as panics.
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrDegenerateDesign = errors.New("degenerate study design")

	// Numeric errors
	ErrNumericInstability = errors.New("numeric instability in model fit")
	ErrSingularMatrix     = fmt.Errorf("%w: singular design matrix", ErrNumericInstability)

	// Enrichment errors
	ErrEnrichmentFailed = errors.New("endpoint enrichment failed")

	// Validation errors
	ErrInvalidGroupOrder = errors.New("dose groups not strictly ascending")
	ErrMixedStatistics   = errors.New("group record carries both continuous and incidence statistics")
	ErrMissingStatistics = errors.New("group record carries neither continuous nor incidence statistics")
	ErrControlInPairwise = errors.New("pairwise result references the control dose")
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewEnrichmentError(endpointID string, err error) error {
	return fmt.Errorf("%w for endpoint %s: %v", ErrEnrichmentFailed, endpointID, err)
}

// Error checking helpers
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrDegenerateDesign)
}

func IsNumericInstability(err error) bool {
	return errors.Is(err, ErrNumericInstability)
}
