package segment

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched by every *InsufficientDataError
var ErrInsufficientData = errors.New("insufficient data for segmentation")

// InsufficientDataError is returned together with a low-confidence fallback result
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInsufficientData, e.Reason)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// DetectorFailure is recoverable: the failing detector simply contributes no candidates
type DetectorFailure struct {
	Kind   DetectorKind
	Reason string
}

func (e *DetectorFailure) Error() string {
	return fmt.Sprintf("%s detector failed: %s", e.Kind, e.Reason)
}

// ConfigurationError reports an invalid configuration value. Values are never clamped.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// DataContractError reports input samples that violate the engine's preconditions
type DataContractError struct {
	Index  int
	Reason string
}

func (e *DataContractError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid samples: %s", e.Reason)
	}
	return fmt.Sprintf("invalid sample at index %d: %s", e.Index, e.Reason)
}
