package store

// Store defines the interface for disparity result persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if a result doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveResult atomically saves the result record for the given job.
	// An existing record for this jobID is overwritten. Implementations
	// should use atomic write strategies (temp file + rename) so a crash
	// never leaves a corrupt record behind.
	SaveResult(jobID string, result *Result) error

	// LoadResult retrieves the result record for the given job.
	// Returns ErrNotFound if no record exists for this jobID.
	LoadResult(jobID string) (*Result, error)

	// ListResults returns metadata for all stored results.
	// The returned slice may be empty.
	ListResults() ([]ResultInfo, error)

	// DeleteResult removes the result record and all associated artifacts
	// (disparity.png, mask.png, disparity.pfm, trace.jsonl) for the
	// given job. Returns ErrNotFound if no record exists.
	DeleteResult(jobID string) error
}

// ErrNotFound is returned when a requested result does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing result record.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "result not found: " + e.JobID
	}
	return "result not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
