package database

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a job ID has no row
var ErrNotFound = errors.New("job not found")

// JobState tracks a job through its lifecycle
type JobState string

const (
	StateQueued    JobState = "queued"
	StateProbing   JobState = "probing"
	StateEncoding  JobState = "encoding"
	StateUploading JobState = "uploading"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCanceled  JobState = "canceled"
)

// Terminal reports whether the state is final
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	}
	return false
}

// Valid reports whether the state is one of the known lifecycle states
func (s JobState) Valid() bool {
	switch s {
	case StateQueued, StateProbing, StateEncoding, StateUploading,
		StateCompleted, StateFailed, StateCanceled:
		return true
	}
	return false
}

// SourceKind records how a job's input arrived
type SourceKind string

const (
	SourceUpload SourceKind = "upload"
	SourceURL    SourceKind = "url"
)

// Job is the persisted record of a compression job
type Job struct {
	ID         string     `json:"id"`
	State      JobState   `json:"state"`
	SourceKind SourceKind `json:"sourceKind"`
	SourceName string     `json:"sourceName"`
	SourceURL  string     `json:"sourceUrl,omitempty"`
	Params     string     `json:"-"` // encode options as JSON
	InputSize  int64      `json:"inputSize"`
	OutputSize int64      `json:"outputSize,omitempty"`
	Duration   float64    `json:"duration,omitempty"` // source duration in seconds
	Progress   float64    `json:"progress"`           // 0-100
	Error      string     `json:"error,omitempty"`
	CDNURL     string     `json:"cdnUrl,omitempty"`
	OutputPath string     `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// SavingsPercent returns the size reduction achieved by the encode.
// Zero when either size is unknown; negative when the output grew.
func (j *Job) SavingsPercent() float64 {
	if j.InputSize <= 0 || j.OutputSize <= 0 {
		return 0
	}
	return (1 - float64(j.OutputSize)/float64(j.InputSize)) * 100
}

// StateUpdate carries fields that become known at a state transition
type StateUpdate struct {
	Error     string
	InputSize int64   // recorded when > 0
	Duration  float64 // recorded when > 0
}

// FinishResult carries the terminal outcome of a job
type FinishResult struct {
	OutputSize int64
	OutputPath string
	CDNURL     string
	Error      string
}

type SortField string
type SortOrder string

const (
	SortByCreated SortField = "created"
	SortByUpdated SortField = "updated"
	SortBySize    SortField = "size"
	SortAsc       SortOrder = "asc"
	SortDesc      SortOrder = "desc"
)

// ListOptions controls job listing queries
type ListOptions struct {
	State     JobState // empty lists all states
	SortField SortField
	SortOrder SortOrder
	Limit     int
	Offset    int
}

// JobListing is a page of jobs plus pagination totals
type JobListing struct {
	Jobs       []Job `json:"jobs"`
	TotalItems int   `json:"totalItems"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// PrunedJob identifies a deleted job and the artifact path that went with it
type PrunedJob struct {
	ID         string
	OutputPath string
}
