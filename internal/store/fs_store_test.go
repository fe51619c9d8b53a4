package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testResult(jobID string) *Result {
	return &Result{
		JobID: jobID,
		Config: JobConfig{
			LeftPath:        "left.png",
			RightPath:       "right.png",
			MaxDisparity:    64,
			P1:              10,
			P2:              120,
			NumPaths:        8,
			UniquenessRatio: 10,
			Subpixel:        true,
		},
		Width:         320,
		Height:        240,
		ValidRatio:    0.92,
		MeanDisparity: 17.4,
		Timings: StageTimings{
			CostMs:      4.1,
			AggregateMs: 38.6,
			SelectMs:    2.2,
			RefineMs:    0.9,
		},
		ElapsedMs: 46.5,
		Timestamp: time.Now(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	want := testResult("job-1")
	if err := fs.SaveResult("job-1", want); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	got, err := fs.LoadResult("job-1")
	if err != nil {
		t.Fatalf("LoadResult failed: %v", err)
	}

	if got.JobID != want.JobID {
		t.Errorf("JobID = %q, want %q", got.JobID, want.JobID)
	}
	if got.Config != want.Config {
		t.Errorf("Config = %+v, want %+v", got.Config, want.Config)
	}
	if got.ValidRatio != want.ValidRatio {
		t.Errorf("ValidRatio = %f, want %f", got.ValidRatio, want.ValidRatio)
	}
	if got.Timings != want.Timings {
		t.Errorf("Timings = %+v, want %+v", got.Timings, want.Timings)
	}
}

func TestLoadMissingResult(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	_, err = fs.LoadResult("no-such-job")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	var nfe *NotFoundError
	if !errors.As(err, &nfe) || nfe.JobID != "no-such-job" {
		t.Errorf("expected NotFoundError carrying job ID, got %v", err)
	}
}

func TestSaveRejectsInvalidResult(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	bad := testResult("job-1")
	bad.Width = 0
	if err := fs.SaveResult("job-1", bad); err == nil {
		t.Error("SaveResult should reject zero-width record")
	}

	if err := fs.SaveResult("", testResult("")); err == nil {
		t.Error("SaveResult should reject empty job ID")
	}
}

func TestSaveOverwrites(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	first := testResult("job-1")
	if err := fs.SaveResult("job-1", first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	second := testResult("job-1")
	second.ValidRatio = 0.5
	if err := fs.SaveResult("job-1", second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := fs.LoadResult("job-1")
	if err != nil {
		t.Fatalf("LoadResult failed: %v", err)
	}
	if got.ValidRatio != 0.5 {
		t.Errorf("ValidRatio = %f, want overwritten value 0.5", got.ValidRatio)
	}
}

func TestListResults(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	infos, err := fs.ListResults()
	if err != nil {
		t.Fatalf("ListResults on empty store failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("empty store listed %d results", len(infos))
	}

	for _, id := range []string{"job-a", "job-b", "job-c"} {
		if err := fs.SaveResult(id, testResult(id)); err != nil {
			t.Fatalf("SaveResult(%s) failed: %v", id, err)
		}
	}

	// A stray directory without result.json must be skipped.
	if err := os.MkdirAll(filepath.Join(fs.BaseDir(), "jobs", "incomplete"), 0755); err != nil {
		t.Fatal(err)
	}

	infos, err = fs.ListResults()
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(infos) != 3 {
		t.Errorf("listed %d results, want 3", len(infos))
	}

	seen := make(map[string]bool)
	for _, info := range infos {
		seen[info.JobID] = true
		if info.LeftPath != "left.png" {
			t.Errorf("info %s LeftPath = %q", info.JobID, info.LeftPath)
		}
	}
	for _, id := range []string{"job-a", "job-b", "job-c"} {
		if !seen[id] {
			t.Errorf("listing missing %s", id)
		}
	}
}

func TestDeleteResult(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	if err := fs.SaveResult("job-1", testResult("job-1")); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	// Artifact files in the job directory go away with the record.
	artifact := filepath.Join(fs.JobDir("job-1"), "disparity.png")
	if err := os.WriteFile(artifact, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := fs.DeleteResult("job-1"); err != nil {
		t.Fatalf("DeleteResult failed: %v", err)
	}

	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("artifact survived deletion")
	}
	if _, err := fs.LoadResult("job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := fs.DeleteResult("job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete should return ErrNotFound, got %v", err)
	}
}

func TestTraceRoundTrip(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	stages := []TraceEntry{
		{Stage: "cost", DurationMs: 4.1, Timestamp: time.Now()},
		{Stage: "aggregate", DurationMs: 38.6, Timestamp: time.Now()},
		{Stage: "select", DurationMs: 2.2, ValidPixels: 70000, Timestamp: time.Now()},
		{Stage: "refine", DurationMs: 0.9, Timestamp: time.Now()},
	}
	for _, e := range stages {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != len(stages) {
		t.Fatalf("read %d entries, want %d", len(entries), len(stages))
	}
	for i, entry := range entries {
		if entry.Stage != stages[i].Stage {
			t.Errorf("entry %d stage = %q, want %q", i, entry.Stage, stages[i].Stage)
		}
		if entry.DurationMs != stages[i].DurationMs {
			t.Errorf("entry %d duration = %f, want %f", i, entry.DurationMs, stages[i].DurationMs)
		}
	}
	if entries[2].ValidPixels != 70000 {
		t.Errorf("select entry valid pixels = %d, want 70000", entries[2].ValidPixels)
	}

	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("expected io.EOF after ReadAll, got %v", err)
	}
}

func TestTraceAppendMode(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Stage: "cost", DurationMs: 1, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	tw, err = NewTraceWriter(baseDir, "job-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Stage: "aggregate", DurationMs: 2, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("append mode kept %d entries, want 2", len(entries))
	}
}

func TestTraceReaderMissing(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "no-such-job")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing trace, got %v", err)
	}
}

func TestDeleteTraceIdempotent(t *testing.T) {
	baseDir := t.TempDir()

	if err := DeleteTrace(baseDir, "no-such-job"); err != nil {
		t.Errorf("DeleteTrace on missing file should succeed, got %v", err)
	}

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatal(err)
	}
	tw.Write(TraceEntry{Stage: "cost", DurationMs: 1, Timestamp: time.Now()})
	tw.Close()

	if err := DeleteTrace(baseDir, "job-1"); err != nil {
		t.Errorf("DeleteTrace failed: %v", err)
	}
	if _, err := NewTraceReader(baseDir, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("trace should be gone, got %v", err)
	}
}
