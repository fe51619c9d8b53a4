package server

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/stereosgm/internal/store"
)

func testConfig(leftPath, rightPath string) JobConfig {
	return JobConfig{
		LeftPath:        leftPath,
		RightPath:       rightPath,
		MaxDisparity:    16,
		P1:              10,
		P2:              120,
		NumPaths:        8,
		UniquenessRatio: 0,
		Subpixel:        false,
	}
}

func TestRunJob_Success(t *testing.T) {
	tmpDir := t.TempDir()
	leftPath := filepath.Join(tmpDir, "left.png")
	rightPath := filepath.Join(tmpDir, "right.png")
	createStereoPair(t, leftPath, rightPath, 64, 48, 4)

	dataDir := filepath.Join(tmpDir, "data")
	fsStore, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(testConfig(leftPath, rightPath))

	if err := runJob(context.Background(), jm, fsStore, job.ID); err != nil {
		t.Errorf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}
	if updated.Width != 64 || updated.Height != 48 {
		t.Errorf("Job dimensions = %dx%d, want 64x48", updated.Width, updated.Height)
	}
	if updated.ValidRatio <= 0 {
		t.Error("ValidRatio should be set")
	}
	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}

	// Result record and artifacts must land in the job directory
	result, err := fsStore.LoadResult(job.ID)
	if err != nil {
		t.Fatalf("result not persisted: %v", err)
	}
	if result.ValidRatio != updated.ValidRatio {
		t.Errorf("persisted ValidRatio = %f, job has %f", result.ValidRatio, updated.ValidRatio)
	}

	for _, name := range []string{"disparity.png", "mask.png", "disparity.pfm", "trace.jsonl"} {
		path := filepath.Join(fsStore.JobDir(job.ID), name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	tr, err := store.NewTraceReader(dataDir, job.ID)
	if err != nil {
		t.Fatalf("trace not readable: %v", err)
	}
	defer tr.Close()
	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("trace read failed: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("trace has %d entries, want 4", len(entries))
	}
}

func TestRunJob_MissingImage(t *testing.T) {
	fsStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(testConfig("/nonexistent/left.png", "/nonexistent/right.png"))

	if err := runJob(context.Background(), jm, fsStore, job.ID); err == nil {
		t.Error("runJob should fail with missing images")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_MismatchedPair(t *testing.T) {
	tmpDir := t.TempDir()
	leftPath := filepath.Join(tmpDir, "left.png")
	rightPath := filepath.Join(tmpDir, "right.png")
	writeGrayPNG(t, leftPath, grayImage(64, 48, 0))
	writeGrayPNG(t, rightPath, grayImage(32, 48, 0))

	fsStore, err := store.NewFSStore(filepath.Join(tmpDir, "data"))
	if err != nil {
		t.Fatal(err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(testConfig(leftPath, rightPath))

	if err := runJob(context.Background(), jm, fsStore, job.ID); err == nil {
		t.Error("runJob should fail when image dimensions differ")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
}

func TestRunJob_Cancellation(t *testing.T) {
	tmpDir := t.TempDir()
	leftPath := filepath.Join(tmpDir, "left.png")
	rightPath := filepath.Join(tmpDir, "right.png")
	createStereoPair(t, leftPath, rightPath, 64, 48, 4)

	fsStore, err := store.NewFSStore(filepath.Join(tmpDir, "data"))
	if err != nil {
		t.Fatal(err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(testConfig(leftPath, rightPath))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel before the worker reaches the matching stage

	if err := runJob(ctx, jm, fsStore, job.ID); err == nil {
		t.Error("runJob should return error when cancelled")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
}

func grayImage(width, height, shift int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			h := uint32(x+shift)*73856093 ^ uint32(y)*19349663
			h *= 2654435761
			img.Pix[y*img.Stride+x] = uint8(h >> 24)
		}
	}
	return img
}

func writeGrayPNG(t *testing.T, path string, img *image.Gray) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

// createStereoPair writes a textured pair where the right view is the
// left shifted by the given disparity
func createStereoPair(t *testing.T, leftPath, rightPath string, width, height, shift int) {
	t.Helper()
	writeGrayPNG(t, leftPath, grayImage(width, height, 0))
	writeGrayPNG(t, rightPath, grayImage(width, height, shift))
}
