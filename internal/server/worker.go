package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cwbudde/stereosgm/internal/imgio"
	"github.com/cwbudde/stereosgm/internal/sgm"
	"github.com/cwbudde/stereosgm/internal/store"
)

// runJob executes a disparity job in the background. Results and artifacts
// are persisted through resultStore under the job's directory.
func runJob(ctx context.Context, jm *JobManager, resultStore *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.Stage = "load"
	})
	if err != nil {
		return err
	}
	broadcastStage(jm, jobID, StateRunning, "load", 0, 0)

	slog.Info("Starting job", "job_id", jobID, "left", job.Config.LeftPath, "right", job.Config.RightPath)

	left, err := imgio.LoadGray(job.Config.LeftPath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load left image: %w", err))
		return err
	}
	right, err := imgio.LoadGray(job.Config.RightPath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load right image: %w", err))
		return err
	}

	if job.Config.Scale > 0 && job.Config.Scale != 1 {
		left, err = imgio.Scale(left, job.Config.Scale)
		if err != nil {
			markJobFailed(jm, jobID, fmt.Errorf("failed to scale left image: %w", err))
			return err
		}
		right, err = imgio.Scale(right, job.Config.Scale)
		if err != nil {
			markJobFailed(jm, jobID, fmt.Errorf("failed to scale right image: %w", err))
			return err
		}
	}

	width := left.Bounds().Dx()
	height := left.Bounds().Dy()

	slog.Info("Loaded stereo pair", "job_id", jobID, "width", width, "height", height)

	jm.UpdateJob(jobID, func(j *Job) {
		j.Width = width
		j.Height = height
	})

	opts := sgm.DefaultOptions(width, height)
	opts.MaxDisparity = job.Config.MaxDisparity
	opts.P1 = job.Config.P1
	opts.P2 = job.Config.P2
	opts.NumPaths = job.Config.NumPaths
	opts.UniquenessRatio = job.Config.UniquenessRatio
	opts.Subpixel = job.Config.Subpixel
	opts.Cost = sgm.CostKind(job.Config.Cost)

	engine, err := sgm.New(opts)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to create engine: %w", err))
		return err
	}

	// Check for cancellation before the expensive part
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	jm.UpdateJob(jobID, func(j *Job) { j.Stage = "process" })
	broadcastStage(jm, jobID, StateRunning, "process", 0, 0)

	start := time.Now()
	disp, stats, err := engine.ProcessFrameWithStats(left, right)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("matching failed: %w", err))
		return err
	}
	elapsed := time.Since(start)

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	validRatio := float64(disp.ValidCount()) / float64(width*height)
	meanDisp := meanDisparity(disp)
	mpps := float64(width*height) / 1e6 / elapsed.Seconds()

	if err := saveJobArtifacts(resultStore, jobID, disp, opts.MaxDisparity); err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	if err := writeJobTrace(resultStore.BaseDir(), jobID, stats); err != nil {
		slog.Warn("Failed to write trace", "job_id", jobID, "error", err)
		// Metadata matters more than the trace, keep going
	}

	result := store.NewResult(jobID, job.Config, width, height, validRatio, meanDisp, store.StageTimings{
		CostMs:      durationMs(stats.CostTime),
		AggregateMs: durationMs(stats.AggregationTime),
		SelectMs:    durationMs(stats.SelectionTime),
		RefineMs:    durationMs(stats.RefinementTime),
	}, durationMs(elapsed))
	if err := resultStore.SaveResult(jobID, result); err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to save result: %w", err))
		return err
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Stage = ""
		j.ValidRatio = validRatio
		j.MeanDisparity = meanDisp
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"valid_ratio", validRatio,
		"mean_disparity", meanDisp,
		"mpixels_per_second", mpps,
	)

	broadcastStage(jm, jobID, StateCompleted, "", validRatio, mpps)
	return nil
}

// broadcastStage emits a progress event for the given job
func broadcastStage(jm *JobManager, jobID string, state JobState, stage string, validRatio, mpps float64) {
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:         jobID,
		State:         state,
		Stage:         stage,
		ValidRatio:    validRatio,
		MPixelsPerSec: mpps,
		Timestamp:     time.Now(),
	})
}

// saveJobArtifacts writes disparity.png, mask.png and disparity.pfm into
// the job directory.
func saveJobArtifacts(resultStore *store.FSStore, jobID string, disp *sgm.DisparityMap, maxDisparity int) error {
	jobDir := resultStore.JobDir(jobID)

	// Spread the disparity range over the full 8-bit range for viewing
	vis := disp.Clone()
	vis.LinearTransform(float32(255)/float32(maxDisparity), 0)
	if err := imgio.SavePNG(filepath.Join(jobDir, "disparity.png"), vis.ToGray()); err != nil {
		return fmt.Errorf("failed to save disparity.png: %w", err)
	}

	if err := imgio.SavePNG(filepath.Join(jobDir, "mask.png"), disp.ValidMask()); err != nil {
		return fmt.Errorf("failed to save mask.png: %w", err)
	}

	pfm := imgio.FloatMap{Width: disp.Width, Height: disp.Height, Pix: disp.Pix}
	if err := imgio.WritePFM(filepath.Join(jobDir, "disparity.pfm"), pfm); err != nil {
		return fmt.Errorf("failed to save disparity.pfm: %w", err)
	}

	return nil
}

// writeJobTrace records per-stage timings as trace.jsonl
func writeJobTrace(baseDir, jobID string, stats sgm.Stats) error {
	tw, err := store.NewTraceWriter(baseDir, jobID, false)
	if err != nil {
		return err
	}
	defer tw.Close()

	now := time.Now()
	entries := []store.TraceEntry{
		{Stage: "cost", DurationMs: durationMs(stats.CostTime), Timestamp: now},
		{Stage: "aggregate", DurationMs: durationMs(stats.AggregationTime), Timestamp: now},
		{Stage: "select", DurationMs: durationMs(stats.SelectionTime), Timestamp: now},
		{Stage: "refine", DurationMs: durationMs(stats.RefinementTime), ValidPixels: stats.ValidPixels, Timestamp: now},
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// meanDisparity averages the disparity over valid pixels
func meanDisparity(disp *sgm.DisparityMap) float64 {
	var sum float64
	var count int
	for _, v := range disp.Pix {
		if v == sgm.Invalid {
			continue
		}
		sum += float64(v)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func durationMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Stage = ""
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateFailed,
		Timestamp: time.Now(),
	})
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.Stage = ""
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCancelled,
		Timestamp: time.Now(),
	})
}
