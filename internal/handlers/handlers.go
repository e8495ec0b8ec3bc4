package handlers

import (
	"time"

	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/jobs"
	"github.com/wbt-web-support/video-compress/internal/scratch"
	"github.com/wbt-web-support/video-compress/internal/startup"
)

// Handlers bundles the collaborators every endpoint needs.
type Handlers struct {
	db      *database.Database
	manager *jobs.Manager
	monitor *scratch.Monitor // nil when disk-pressure handling is disabled
	config  *startup.Config

	startedAt time.Time
}

// New creates the handler set. monitor may be nil.
func New(db *database.Database, manager *jobs.Manager, monitor *scratch.Monitor, config *startup.Config) *Handlers {
	return &Handlers{
		db:        db,
		manager:   manager,
		monitor:   monitor,
		config:    config,
		startedAt: time.Now(),
	}
}
