package sgm

import (
	"fmt"
	"strings"
)

// Backend identifies an engine implementation.
type Backend string

const (
	BackendCPU    Backend = "cpu"
	BackendOpenCL Backend = "opencl"
)

var noopCleanup = func() {}

// NormalizeBackend maps arbitrary user input to a canonical backend
// identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return BackendCPU
	case "gpu", "opencl", "cl":
		return BackendOpenCL
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Backend {
	return []Backend{BackendCPU, BackendOpenCL}
}

// NewEngineForBackend constructs an engine on the requested backend and
// returns an optional cleanup hook. Only the CPU backend is implemented;
// OpenCL is recognized but unavailable in this build.
func NewEngineForBackend(name string, opts Options) (*Engine, func(), error) {
	switch NormalizeBackend(name) {
	case BackendCPU:
		engine, err := New(opts)
		if err != nil {
			return nil, noopCleanup, err
		}
		return engine, noopCleanup, nil
	case BackendOpenCL:
		return nil, noopCleanup, fmt.Errorf("%w: opencl", ErrBackendUnavailable)
	default:
		return nil, noopCleanup, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
