package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Results are stored in a directory structure: <baseDir>/jobs/<jobID>/
//
// Thread-safety: This implementation uses atomic file operations (rename)
// and does not require locks. Multiple goroutines can safely call methods
// concurrently.
type FSStore struct {
	baseDir string // Root directory for all result data (e.g., "./data")
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the store's root directory.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// JobDir returns the directory path for a given job ID. Artifact files
// (disparity.png, mask.png, disparity.pfm) are written into this directory
// next to result.json.
func (fs *FSStore) JobDir(jobID string) string {
	return filepath.Join(fs.baseDir, "jobs", jobID)
}

// resultPath returns the path to the result.json file for a job.
func (fs *FSStore) resultPath(jobID string) string {
	return filepath.Join(fs.JobDir(jobID), "result.json")
}

// SaveResult atomically saves a result record for the given job.
// Uses temp file + rename pattern to ensure atomicity.
func (fs *FSStore) SaveResult(jobID string, result *Result) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}

	jobDir := fs.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	// Write to temporary file first (atomic pattern)
	tempPath := fs.resultPath(jobID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}

	finalPath := fs.resultPath(jobID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename result file: %w", err)
	}

	slog.Debug("Result saved", "jobID", jobID, "path", finalPath)
	return nil
}

// LoadResult retrieves the result record for the given job.
func (fs *FSStore) LoadResult(jobID string) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	path := fs.resultPath(jobID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat result file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize result: %w", err)
	}

	slog.Debug("Result loaded", "jobID", jobID, "path", path)
	return &result, nil
}

// ListResults returns metadata for all stored results.
func (fs *FSStore) ListResults() ([]ResultInfo, error) {
	jobsDir := filepath.Join(fs.baseDir, "jobs")

	if _, err := os.Stat(jobsDir); os.IsNotExist(err) {
		// No results exist yet, return empty slice
		return []ResultInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat jobs directory: %w", err)
	}

	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	var infos []ResultInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		jobID := entry.Name()
		resultPath := fs.resultPath(jobID)

		if _, err := os.Stat(resultPath); os.IsNotExist(err) {
			continue // Skip directories without result.json
		}

		result, err := fs.LoadResult(jobID)
		if err != nil {
			slog.Warn("Failed to load result for listing", "jobID", jobID, "error", err)
			continue // Skip corrupted records
		}

		infos = append(infos, result.ToInfo())
	}

	slog.Debug("Listed results", "count", len(infos))
	return infos, nil
}

// DeleteResult removes the result record and all associated artifacts.
func (fs *FSStore) DeleteResult(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}

	jobDir := fs.JobDir(jobID)

	if _, err := os.Stat(jobDir); os.IsNotExist(err) {
		return &NotFoundError{JobID: jobID}
	} else if err != nil {
		return fmt.Errorf("failed to stat job directory: %w", err)
	}

	if err := os.RemoveAll(jobDir); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}

	slog.Debug("Result deleted", "jobID", jobID, "path", jobDir)
	return nil
}
