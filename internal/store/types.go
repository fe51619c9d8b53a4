package store

import (
	"fmt"
	"time"
)

// JobConfig holds the configuration of one disparity job. It is the
// persisted copy shared by the server and the store, kept here to avoid
// an import cycle with the server package.
type JobConfig struct {
	LeftPath        string  `json:"leftPath"`
	RightPath       string  `json:"rightPath"`
	MaxDisparity    int     `json:"maxDisparity"`
	P1              int     `json:"p1"`
	P2              int     `json:"p2"`
	NumPaths        int     `json:"numPaths"`
	UniquenessRatio int     `json:"uniquenessRatio"`
	Subpixel        bool    `json:"subpixel"`
	Cost            string  `json:"cost,omitempty"`
	Scale           float64 `json:"scale,omitempty"` // pre-shrink factor, 0 or 1 = off
}

// StageTimings records per-stage wall-clock durations of one frame, in
// milliseconds.
type StageTimings struct {
	CostMs      float64 `json:"costMs"`
	AggregateMs float64 `json:"aggregateMs"`
	SelectMs    float64 `json:"selectMs"`
	RefineMs    float64 `json:"refineMs"`
}

// Result is the persisted record of one completed disparity job. The
// actual pixel artifacts (disparity.png, mask.png, disparity.pfm) live
// next to result.json in the job directory; this record carries the
// numbers needed to list and compare runs without reloading images.
type Result struct {
	// JobID is the unique identifier of the job.
	JobID string `json:"jobId"`

	// Config is the full job configuration, kept for reproducibility.
	Config JobConfig `json:"config"`

	// Width and Height are the processed dimensions (after scaling).
	Width  int `json:"width"`
	Height int `json:"height"`

	// ValidRatio is the fraction of pixels that survived filtering.
	ValidRatio float64 `json:"validRatio"`

	// MeanDisparity is the average disparity over valid pixels.
	MeanDisparity float64 `json:"meanDisparity"`

	// Timings holds per-stage durations.
	Timings StageTimings `json:"timings"`

	// ElapsedMs is the total processing time in milliseconds.
	ElapsedMs float64 `json:"elapsedMs"`

	// Timestamp records when this result was created.
	Timestamp time.Time `json:"timestamp"`
}

// ResultInfo contains listing metadata without the full record.
type ResultInfo struct {
	JobID        string    `json:"jobId"`
	LeftPath     string    `json:"leftPath"`
	MaxDisparity int       `json:"maxDisparity"`
	ValidRatio   float64   `json:"validRatio"`
	ElapsedMs    float64   `json:"elapsedMs"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewResult builds a result record from job state.
func NewResult(jobID string, config JobConfig, width, height int, validRatio, meanDisparity float64, timings StageTimings, elapsedMs float64) *Result {
	return &Result{
		JobID:         jobID,
		Config:        config,
		Width:         width,
		Height:        height,
		ValidRatio:    validRatio,
		MeanDisparity: meanDisparity,
		Timings:       timings,
		ElapsedMs:     elapsedMs,
		Timestamp:     time.Now(),
	}
}

// ToInfo converts a full Result to its listing metadata.
func (r *Result) ToInfo() ResultInfo {
	return ResultInfo{
		JobID:        r.JobID,
		LeftPath:     r.Config.LeftPath,
		MaxDisparity: r.Config.MaxDisparity,
		ValidRatio:   r.ValidRatio,
		ElapsedMs:    r.ElapsedMs,
		Timestamp:    r.Timestamp,
	}
}

// Validate checks that the record is complete enough to persist.
func (r *Result) Validate() error {
	if r.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return &ValidationError{Field: "Width/Height", Reason: fmt.Sprintf("must be positive, got %dx%d", r.Width, r.Height)}
	}
	if r.ValidRatio < 0 || r.ValidRatio > 1 {
		return &ValidationError{Field: "ValidRatio", Reason: "must be in [0, 1]"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.LeftPath == "" {
		return &ValidationError{Field: "Config.LeftPath", Reason: "cannot be empty"}
	}
	if r.Config.RightPath == "" {
		return &ValidationError{Field: "Config.RightPath", Reason: "cannot be empty"}
	}
	if r.Config.MaxDisparity <= 0 {
		return &ValidationError{Field: "Config.MaxDisparity", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents an invalid result record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
