package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwbudde/stereosgm/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      *store.FSStore
	addr       string
	server     *http.Server
}

// NewServer creates a new HTTP server persisting results under dataDir
func NewServer(addr, dataDir string) (*Server, error) {
	fsStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create result store: %w", err)
	}

	return &Server{
		jobManager: NewJobManager(),
		store:      fsStore,
		addr:       addr,
	}, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register UI routes
	mux.HandleFunc("/", s.handleIndex)

	// Register API routes
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)

	// Wrap with middleware
	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("Starting HTTP server", "addr", s.addr, "data_dir", s.store.BaseDir())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	// Parse job ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Route based on subpath
	if len(parts) == 1 || parts[1] == "status" {
		s.handleGetJobStatus(w, r, jobID)
	} else if parts[1] == "disparity.png" {
		s.handleGetArtifact(w, r, jobID, "disparity.png", "image/png")
	} else if parts[1] == "mask.png" {
		s.handleGetArtifact(w, r, jobID, "mask.png", "image/png")
	} else if parts[1] == "events" {
		s.handleJobStream(w, r, jobID)
	} else {
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// createJobRequest mirrors JobConfig with an optional subpixel flag so an
// omitted field gets the default instead of false.
type createJobRequest struct {
	LeftPath        string  `json:"leftPath"`
	RightPath       string  `json:"rightPath"`
	MaxDisparity    int     `json:"maxDisparity"`
	P1              int     `json:"p1"`
	P2              int     `json:"p2"`
	NumPaths        int     `json:"numPaths"`
	UniquenessRatio int     `json:"uniquenessRatio"`
	Subpixel        *bool   `json:"subpixel"`
	Cost            string  `json:"cost"`
	Scale           float64 `json:"scale"`
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	// Validate config
	if req.LeftPath == "" {
		http.Error(w, "leftPath is required", http.StatusBadRequest)
		return
	}
	if req.RightPath == "" {
		http.Error(w, "rightPath is required", http.StatusBadRequest)
		return
	}
	if req.MaxDisparity <= 0 {
		req.MaxDisparity = 64
	}
	if req.P1 <= 0 {
		req.P1 = 10
	}
	if req.P2 <= 0 {
		req.P2 = 120
	}
	if req.NumPaths == 0 {
		req.NumPaths = 8
	}
	if req.UniquenessRatio == 0 {
		req.UniquenessRatio = 10
	}
	subpixel := true
	if req.Subpixel != nil {
		subpixel = *req.Subpixel
	}

	config := JobConfig{
		LeftPath:        req.LeftPath,
		RightPath:       req.RightPath,
		MaxDisparity:    req.MaxDisparity,
		P1:              req.P1,
		P2:              req.P2,
		NumPaths:        req.NumPaths,
		UniquenessRatio: req.UniquenessRatio,
		Subpixel:        subpixel,
		Cost:            req.Cost,
		Scale:           req.Scale,
	}

	// Create job
	job := s.jobManager.CreateJob(config)

	// Start worker in background
	go runJob(context.Background(), s.jobManager, s.store, job.ID)

	// Return job
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	// Compute elapsed time and throughput
	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	mpps := float64(0)
	if elapsed.Seconds() > 0 && job.Width > 0 {
		mpps = float64(job.Width*job.Height) / 1e6 / elapsed.Seconds()
	}

	// Create response
	response := map[string]interface{}{
		"id":            job.ID,
		"state":         job.State,
		"stage":         job.Stage,
		"config":        job.Config,
		"width":         job.Width,
		"height":        job.Height,
		"validRatio":    job.ValidRatio,
		"meanDisparity": job.MeanDisparity,
		"elapsed":       elapsed.Seconds(),
		"mpixelsPerSec": mpps,
		"startTime":     job.StartTime,
		"endTime":       job.EndTime,
		"error":         job.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleGetArtifact serves a rendered artifact from the job directory
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request, jobID, name, contentType string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		// Results of finished jobs survive server restarts
		if _, err := s.store.LoadResult(jobID); err != nil {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
	}

	path := filepath.Join(s.store.JobDir(jobID), name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
