package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/logging"
)

const (
	janitorInterval  = 10 * time.Minute
	probeCacheMaxAge = 30 * 24 * time.Hour
	// orphanMinAge keeps the sweep away from directories that a submission
	// is populating right now (the directory exists before the row does).
	orphanMinAge = time.Hour
	sweepTimeout = time.Minute
)

// Start launches the retention janitor. The first sweep runs immediately
// so leftovers from a previous run are cleared at boot.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.janitorLoop()
}

func (m *Manager) janitorLoop() {
	defer m.wg.Done()

	m.sweep()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopChan:
			return
		}
	}
}

// sweep prunes expired jobs along with their scratch space, expires stale
// probe cache entries and removes orphaned scratch directories.
func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(m.baseCtx, sweepTimeout)
	defer cancel()

	if m.ttl > 0 {
		pruned, err := m.db.PruneJobs(ctx, time.Now().Add(-m.ttl))
		if err != nil {
			logging.Warn("Job pruning failed: %v", err)
		}
		for _, p := range pruned {
			m.ReleaseArtifact(p.ID)
		}
	}

	if n, err := m.db.PruneProbeCache(ctx, probeCacheMaxAge); err != nil {
		logging.Warn("Probe cache pruning failed: %v", err)
	} else if n > 0 {
		logging.Debug("Pruned %d probe cache entries", n)
	}

	m.sweepOrphans(ctx)
}

// sweepOrphans removes scratch directories whose jobs no longer exist:
// crash leftovers, or rows deleted while their files were busy.
func (m *Manager) sweepOrphans(ctx context.Context) {
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		logging.Warn("Failed to read work dir %s: %v", m.workDir, err)
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, err := uuid.Parse(name); err != nil {
			continue // not a job directory
		}

		_, err := m.db.GetJob(ctx, name)
		if err == nil || !errors.Is(err, database.ErrNotFound) {
			continue // job exists, or transient store error; retry next sweep
		}

		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < orphanMinAge {
			continue
		}

		logging.Info("Removing orphaned scratch directory %s", name)
		if err := os.RemoveAll(filepath.Join(m.workDir, name)); err != nil {
			logging.Warn("Failed to remove orphan %s: %v", name, err)
		}
	}
}
