package sgm

import "fmt"

// CostKind selects the per-pixel matching cost.
type CostKind string

const (
	// CostCensus uses a 5x5 census transform with Hamming distance.
	CostCensus CostKind = "census"
	// CostAbsDiff uses plain absolute intensity difference.
	CostAbsDiff CostKind = "absdiff"
)

// maxSupportedDisparity bounds the search range so per-path aggregated
// costs cannot overflow their uint16 representation.
const maxSupportedDisparity = 256

// maxSupportedPenalty bounds P2 so the sum of eight aggregation paths,
// each at most outOfRangeCost+P2, still fits in the uint16 sum volume:
// 8*(255+7936) = 65528.
const maxSupportedPenalty = 7936

// Options configures a semi-global matching engine.
// All fields must be populated before calling New; dimensions must match
// the images later passed to ProcessFrame.
type Options struct {
	// Width and Height are the expected input image dimensions.
	Width  int
	Height int

	// MaxDisparity is the exclusive upper bound of the search range.
	// Candidate disparities are [0, MaxDisparity).
	MaxDisparity int

	// P1 penalizes disparity changes of exactly one level between
	// neighboring pixels along an aggregation path.
	P1 int

	// P2 penalizes larger disparity jumps. Must be greater than P1.
	P2 int

	// NumPaths is the number of aggregation directions: 4 (horizontal and
	// vertical) or 8 (adds diagonals).
	NumPaths int

	// UniquenessRatio is a percentage in [0, 100). A disparity is rejected
	// when the second-best aggregated cost (outside best±1) is not at least
	// UniquenessRatio percent worse than the best. 0 disables the check.
	UniquenessRatio int

	// Subpixel enables parabolic refinement around the winning disparity.
	Subpixel bool

	// Cost selects the matching cost kernel. Empty defaults to CostCensus.
	Cost CostKind
}

// DefaultOptions returns options for a width x height pair with the
// penalties commonly used for 8-bit census matching.
func DefaultOptions(width, height int) Options {
	return Options{
		Width:           width,
		Height:          height,
		MaxDisparity:    64,
		P1:              10,
		P2:              120,
		NumPaths:        8,
		UniquenessRatio: 10,
		Subpixel:        true,
		Cost:            CostCensus,
	}
}

// validate checks all option fields eagerly.
// Returns a *ConfigError describing the first offending field.
func (o Options) validate() error {
	if o.Width <= 0 {
		return &ConfigError{Field: "Width", Reason: fmt.Sprintf("must be positive, got %d", o.Width)}
	}
	if o.Height <= 0 {
		return &ConfigError{Field: "Height", Reason: fmt.Sprintf("must be positive, got %d", o.Height)}
	}
	if o.MaxDisparity <= 0 {
		return &ConfigError{Field: "MaxDisparity", Reason: fmt.Sprintf("must be positive, got %d", o.MaxDisparity)}
	}
	if o.MaxDisparity > maxSupportedDisparity {
		return &ConfigError{Field: "MaxDisparity", Reason: fmt.Sprintf("must be at most %d, got %d", maxSupportedDisparity, o.MaxDisparity)}
	}
	if o.P1 <= 0 {
		return &ConfigError{Field: "P1", Reason: fmt.Sprintf("must be positive, got %d", o.P1)}
	}
	if o.P2 <= o.P1 {
		return &ConfigError{Field: "P2", Reason: fmt.Sprintf("must be greater than P1 (%d), got %d", o.P1, o.P2)}
	}
	if o.P2 > maxSupportedPenalty {
		return &ConfigError{Field: "P2", Reason: fmt.Sprintf("must be at most %d, got %d", maxSupportedPenalty, o.P2)}
	}
	if o.NumPaths != 4 && o.NumPaths != 8 {
		return &ConfigError{Field: "NumPaths", Reason: fmt.Sprintf("must be 4 or 8, got %d", o.NumPaths)}
	}
	if o.UniquenessRatio < 0 || o.UniquenessRatio >= 100 {
		return &ConfigError{Field: "UniquenessRatio", Reason: fmt.Sprintf("must be in [0, 100), got %d", o.UniquenessRatio)}
	}
	switch o.Cost {
	case "", CostCensus, CostAbsDiff:
	default:
		return &ConfigError{Field: "Cost", Reason: fmt.Sprintf("unknown cost kind %q", o.Cost)}
	}
	return nil
}

// costKind returns the effective cost kernel, applying the default.
func (o Options) costKind() CostKind {
	if o.Cost == "" {
		return CostCensus
	}
	return o.Cost
}
