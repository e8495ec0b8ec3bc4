package database

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJobStruct(t *testing.T) {
	now := time.Now()
	finished := now.Add(30 * time.Second)

	job := Job{
		ID:         "job-abc123",
		State:      StateCompleted,
		SourceKind: SourceUpload,
		SourceName: "vacation.mp4",
		Params:     `{"crf":28}`,
		InputSize:  1024 * 1024 * 100, // 100 MB
		OutputSize: 1024 * 1024 * 40,
		Duration:   93.5,
		Progress:   100,
		CDNURL:     "https://cdn.example.com/videos/abc.mp4",
		OutputPath: "/tmp/work/job-abc123/out.mp4",
		CreatedAt:  now,
		UpdatedAt:  now,
		FinishedAt: &finished,
	}

	if job.ID != "job-abc123" {
		t.Errorf("Expected ID=job-abc123, got %s", job.ID)
	}

	if job.State != StateCompleted {
		t.Errorf("Expected State=completed, got %s", job.State)
	}

	if job.SourceKind != SourceUpload {
		t.Errorf("Expected SourceKind=upload, got %s", job.SourceKind)
	}

	if job.InputSize != 1024*1024*100 {
		t.Errorf("Expected InputSize=104857600, got %d", job.InputSize)
	}

	if job.Duration != 93.5 {
		t.Errorf("Expected Duration=93.5, got %f", job.Duration)
	}

	if !job.CreatedAt.Equal(now) {
		t.Errorf("Expected CreatedAt=%v, got %v", now, job.CreatedAt)
	}

	if job.FinishedAt == nil || !job.FinishedAt.Equal(finished) {
		t.Errorf("Expected FinishedAt=%v, got %v", finished, job.FinishedAt)
	}
}

func TestJobJSON(t *testing.T) {
	job := Job{
		ID:         "job-1",
		State:      StateEncoding,
		SourceKind: SourceURL,
		SourceName: "clip.mp4",
		SourceURL:  "https://example.com/clip.mp4",
		Params:     `{"crf":28}`,
		InputSize:  1024,
		Progress:   42.5,
		OutputPath: "/tmp/work/job-1/out.mp4",
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC),
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Failed to marshal job: %v", err)
	}

	s := string(data)

	// Internal fields must never leak into API responses
	if strings.Contains(s, "out.mp4") {
		t.Error("OutputPath should not be serialized")
	}
	if strings.Contains(s, `"crf"`) {
		t.Error("Params should not be serialized")
	}

	// Empty optionals are omitted
	if strings.Contains(s, "cdnUrl") {
		t.Error("Empty CDNURL should be omitted")
	}
	if strings.Contains(s, "finishedAt") {
		t.Error("Nil FinishedAt should be omitted")
	}

	var decoded Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal job: %v", err)
	}

	if decoded.ID != job.ID {
		t.Errorf("Expected ID=%s, got %s", job.ID, decoded.ID)
	}
	if decoded.State != StateEncoding {
		t.Errorf("Expected State=encoding, got %s", decoded.State)
	}
	if decoded.Progress != 42.5 {
		t.Errorf("Expected Progress=42.5, got %f", decoded.Progress)
	}
}

func TestJobStateTerminal(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{StateQueued, false},
		{StateProbing, false},
		{StateEncoding, false},
		{StateUploading, false},
		{StateCompleted, true},
		{StateFailed, true},
		{StateCanceled, true},
		{JobState("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.want {
				t.Errorf("Terminal(%q) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestJobStateValid(t *testing.T) {
	valid := []JobState{
		StateQueued, StateProbing, StateEncoding, StateUploading,
		StateCompleted, StateFailed, StateCanceled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("Valid(%q) = false, want true", s)
		}
	}

	invalid := []JobState{"", "running", "done", "COMPLETED"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("Valid(%q) = true, want false", s)
		}
	}
}

func TestSavingsPercent(t *testing.T) {
	tests := []struct {
		name       string
		inputSize  int64
		outputSize int64
		want       float64
	}{
		{"halved", 1000, 500, 50},
		{"quartered", 1000, 250, 75},
		{"no input size", 0, 500, 0},
		{"no output size", 1000, 0, 0},
		{"output grew", 1000, 1200, -20},
		{"unchanged", 1000, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := Job{InputSize: tt.inputSize, OutputSize: tt.outputSize}
			got := job.SavingsPercent()
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("SavingsPercent() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestErrNotFound(t *testing.T) {
	if ErrNotFound == nil {
		t.Fatal("ErrNotFound should not be nil")
	}

	if ErrNotFound.Error() != "job not found" {
		t.Errorf("Unexpected error text: %s", ErrNotFound.Error())
	}
}

func TestSourceKindValues(t *testing.T) {
	if SourceUpload != "upload" {
		t.Errorf("SourceUpload = %q, want upload", SourceUpload)
	}
	if SourceURL != "url" {
		t.Errorf("SourceURL = %q, want url", SourceURL)
	}
}
