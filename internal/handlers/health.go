package handlers

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/wbt-web-support/video-compress/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"

	healthCheckTimeout = 5 * time.Second
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Pipeline state
	JobsByState map[string]int `json:"jobsByState,omitempty"`
	ActiveJobs  int            `json:"activeJobs"`

	// Scratch disk
	ScratchUsagePercent float64 `json:"scratchUsagePercent"`
	ScratchPaused       bool    `json:"scratchPaused"`

	// Dependency checks
	DatabaseOK bool   `json:"databaseOk"`
	ScratchOK  bool   `json:"scratchOk"`
	FFmpegOK   bool   `json:"ffmpegOk"`
	Error      string `json:"error,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports the service's overall state: database reachability,
// scratch disk writability and pressure, and ffmpeg availability. Degraded
// states answer 503 so orchestrators can rotate the instance out.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		ActiveJobs:   h.manager.Live(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	counts, err := h.db.CountJobsByState(ctx)
	if err != nil {
		response.Status = statusDegraded
		response.Error = "database check failed: " + err.Error()
	} else {
		response.DatabaseOK = true
		response.JobsByState = make(map[string]int, len(counts))
		for state, n := range counts {
			response.JobsByState[string(state)] = n
		}
	}

	if err := checkScratchWritable(h.config.WorkDir); err != nil {
		response.Status = statusDegraded
		if response.Error == "" {
			response.Error = "scratch check failed: " + err.Error()
		}
	} else {
		response.ScratchOK = true
	}

	if h.monitor != nil {
		// GetUsage reports a 0-1 ratio; the response field is a percentage.
		response.ScratchUsagePercent = h.monitor.GetUsage() * 100
		response.ScratchPaused = h.monitor.IsPaused()
		if h.monitor.IsPaused() {
			response.Status = statusDegraded
			if response.Error == "" {
				response.Error = "scratch disk critically full, encoding paused"
			}
		}
	}

	if _, err := exec.LookPath(h.config.FFmpegPath); err != nil {
		response.Status = statusDegraded
		if response.Error == "" {
			response.Error = "ffmpeg not found: " + err.Error()
		}
	} else {
		response.FFmpegOK = true
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != statusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service can accept new jobs:
// the database answers and the scratch disk has room.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if _, err := h.db.CountJobsByState(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
			"reason": "database unavailable",
		})
		return
	}

	if h.monitor != nil && h.monitor.ShouldThrottle() {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
			"reason": "scratch disk pressure",
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}

// checkScratchWritable verifies the scratch directory accepts writes.
func checkScratchWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}
