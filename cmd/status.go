package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		// List all jobs
		url := fmt.Sprintf("%s/api/v1/jobs", serverURL)
		return listServerJobs(url)
	}

	// Get specific job status
	jobID := args[0]
	url := fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID)
	return getJobStatus(url, jobID)
}

func listServerJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		config := job["config"].(map[string]interface{})
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		fmt.Printf("  Left: %s\n", config["leftPath"])
		fmt.Printf("  Max disparity: %v\n", config["maxDisparity"])
		if ratio, ok := job["validRatio"].(float64); ok && ratio > 0 {
			fmt.Printf("  Valid: %.1f%%\n", ratio*100)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	// Display status
	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	if stage, ok := status["stage"].(string); ok && stage != "" {
		fmt.Printf("Stage: %s\n", stage)
	}
	fmt.Println()

	config := status["config"].(map[string]interface{})
	fmt.Println("Configuration:")
	fmt.Printf("  Left: %s\n", config["leftPath"])
	fmt.Printf("  Right: %s\n", config["rightPath"])
	fmt.Printf("  Max disparity: %v\n", config["maxDisparity"])
	fmt.Printf("  Penalties: P1=%v P2=%v\n", config["p1"], config["p2"])
	fmt.Printf("  Paths: %v\n", config["numPaths"])
	fmt.Println()

	fmt.Println("Progress:")
	if width, ok := status["width"].(float64); ok && width > 0 {
		fmt.Printf("  Dimensions: %.0fx%.0f\n", width, status["height"])
	}
	if ratio, ok := status["validRatio"].(float64); ok && ratio > 0 {
		fmt.Printf("  Valid pixels: %.1f%%\n", ratio*100)
	}
	if mean, ok := status["meanDisparity"].(float64); ok && mean > 0 {
		fmt.Printf("  Mean disparity: %.2f\n", mean)
	}

	if status["elapsed"] != nil {
		elapsed := time.Duration(status["elapsed"].(float64) * float64(time.Second))
		fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	}

	if mpps, ok := status["mpixelsPerSec"].(float64); ok && mpps > 0 {
		fmt.Printf("  Throughput: %.2f MPix/s\n", mpps)
	}

	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}

	return nil
}
