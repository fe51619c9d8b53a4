package sgm

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is the sentinel for invalid engine configuration.
	// Use errors.Is(err, ErrConfig) to check for it.
	ErrConfig = &ConfigError{}

	// ErrDimensionMismatch is the sentinel for input images whose
	// dimensions disagree with the engine configuration.
	ErrDimensionMismatch = &DimensionMismatchError{}

	// ErrUnknownBackend is returned when a backend name does not match a
	// known engine backend.
	ErrUnknownBackend = errors.New("unknown engine backend")

	// ErrBackendUnavailable indicates the backend is known but not
	// available in this build.
	ErrBackendUnavailable = errors.New("engine backend unavailable")
)

// ConfigError reports an invalid Options field at engine construction.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid engine configuration"
	}
	return fmt.Sprintf("invalid engine configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// DimensionMismatchError reports input images whose size disagrees with
// the configured Width and Height.
type DimensionMismatchError struct {
	ExpectedWidth  int
	ExpectedHeight int
	GotWidth       int
	GotHeight      int
	Input          string // "left" or "right"
}

func (e *DimensionMismatchError) Error() string {
	if e.Input == "" {
		return "input dimensions do not match engine configuration"
	}
	return fmt.Sprintf("%s image is %dx%d, engine configured for %dx%d",
		e.Input, e.GotWidth, e.GotHeight, e.ExpectedWidth, e.ExpectedHeight)
}

func (e *DimensionMismatchError) Is(target error) bool {
	_, ok := target.(*DimensionMismatchError)
	return ok
}
