package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/fetch"
	"github.com/wbt-web-support/video-compress/internal/ffmpeg"
	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/mediatypes"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// Cadence for persisting progress; the store is the fallback view for
// pollers, not the live channel.
const (
	progressWriteInterval = 3 * time.Second
	progressWriteDelta    = 5 // percent
)

// dbWriteTimeout bounds bookkeeping writes that must not inherit a
// canceled job context.
const dbWriteTimeout = 10 * time.Second

// paramsRecord is the JSON shape persisted in the jobs.params column.
type paramsRecord struct {
	Options ffmpeg.Options `json:"options"`
	CDN     bool           `json:"cdn,omitempty"`
}

// process drives one job through the lifecycle. Transitions are persisted
// before the work they announce, so the store never runs ahead of reality.
func (m *Manager) process(t *tracked, id string) {
	ctx := t.ctx

	job, err := m.db.GetJob(ctx, id)
	if err != nil {
		m.endJob(t, id, fmt.Errorf("failed to load job: %w", err))
		return
	}

	var params paramsRecord
	if err := json.Unmarshal([]byte(job.Params), &params); err != nil {
		m.failJob(id, fmt.Errorf("corrupt job parameters: %w", err))
		return
	}
	opts := params.Options

	if m.monitor != nil && !m.monitor.WaitIfPaused() {
		m.finishInterrupted(id)
		return
	}
	if ctx.Err() != nil {
		m.finishInterrupted(id)
		return
	}

	if err := m.transition(ctx, id, database.StateQueued, database.StateProbing, nil); err != nil {
		m.endJob(t, id, err)
		return
	}

	sourcePath, inputSize, err := m.stageSource(ctx, id, job)
	if err != nil {
		m.endJob(t, id, err)
		return
	}

	m.publishProgress(id, Snapshot{State: database.StateProbing, Message: "analyzing source"})

	info, err := m.ProbeFile(ctx, sourcePath)
	if err != nil {
		m.endJob(t, id, fmt.Errorf("probe failed: %w", err))
		return
	}

	upd := &database.StateUpdate{InputSize: inputSize, Duration: info.Duration}
	if err := m.transition(ctx, id, database.StateProbing, database.StateEncoding, upd); err != nil {
		m.endJob(t, id, err)
		return
	}

	if h := opts.TargetHeight(); h > 0 && info.Height > 0 && h >= info.Height {
		logging.Debug("Job %s: source is %dp, skipping upscale to %dp", id, info.Height, h)
		opts.ClearResolution()
	}

	outputPath := filepath.Join(m.jobDir(id), "output"+opts.Container.Ext())
	if err := m.encode(t, id, &opts, sourcePath, outputPath, info.Duration); err != nil {
		m.endJob(t, id, err)
		return
	}

	outputSize, err := ffmpeg.ValidateOutput(outputPath)
	if err != nil {
		m.endJob(t, id, err)
		return
	}

	// Poster failures degrade the job page, not the artifact
	if m.posters != nil {
		if err := m.posters.Generate(ctx, outputPath, info.Duration, m.PosterPath(id)); err != nil {
			logging.Warn("Job %s: poster generation failed: %v", id, err)
		}
	}

	var cdnURL string
	if params.CDN {
		cdnURL, err = m.uploadArtifact(t, id, outputPath, opts.Container)
		if err != nil {
			m.endJob(t, id, err)
			return
		}
	}

	m.completeJob(id, params.CDN, inputSize, outputSize, outputPath, cdnURL)
}

// transition persists a state change and counts it.
func (m *Manager) transition(ctx context.Context, id string, from, to database.JobState, upd *database.StateUpdate) error {
	if err := m.db.UpdateJobState(ctx, id, to, upd); err != nil {
		return fmt.Errorf("failed to record %s state: %w", to, err)
	}
	metrics.JobStateTransitions.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

// stageSource ensures the job's input exists on scratch, fetching it for
// URL sources, and returns its path and size.
func (m *Manager) stageSource(ctx context.Context, id string, job *database.Job) (string, int64, error) {
	if job.SourceKind == database.SourceUpload {
		path := m.sourcePath(id, job.SourceName)
		info, err := os.Stat(path)
		if err != nil {
			return "", 0, fmt.Errorf("source file missing: %w", err)
		}
		return path, info.Size(), nil
	}

	m.publishProgress(id, Snapshot{State: database.StateProbing, Message: "downloading source"})

	res, err := m.fetcher.Download(ctx, job.SourceURL, m.sourcePath(id, job.SourceName))
	if err != nil {
		return "", 0, fmt.Errorf("download failed: %w", err)
	}
	logging.Info("Job %s: fetched %s (%d bytes)", id, fetch.SanitizeURL(job.SourceURL), res.Size)
	return res.Path, res.Size, nil
}

// encode runs ffmpeg with progress relayed to subscribers and persisted at
// a coarse cadence.
func (m *Manager) encode(t *tracked, id string, opts *ffmpeg.Options, sourcePath, outputPath string, duration float64) error {
	ctx := t.ctx
	if m.encodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.encodeTimeout)
		defer cancel()
	}

	progress := make(chan ffmpeg.Progress, 8)
	pumpDone := make(chan struct{})
	go m.pumpProgress(id, progress, pumpDone)

	start := time.Now()
	err := m.enc.Run(ctx, id, opts.BuildArgs(sourcePath, outputPath), ffmpeg.RunOptions{
		Duration: time.Duration(duration * float64(time.Second)),
		Progress: progress,
	})
	close(progress)
	<-pumpDone
	metrics.EncodeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ffmpeg.ErrKilled) && t.ctx.Err() == nil && ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("encode timed out after %s", m.encodeTimeout)
		}
		return err
	}

	logging.Info("Job %s: encode finished in %v", id, time.Since(start).Round(time.Second))
	return nil
}

// pumpProgress drains encoder snapshots until the channel closes.
func (m *Manager) pumpProgress(id string, ch <-chan ffmpeg.Progress, done chan<- struct{}) {
	defer close(done)

	var lastWrite time.Time
	var lastPct float64

	for p := range ch {
		snap := Snapshot{State: database.StateEncoding, Percent: p.Percent, FPS: p.FPS, Speed: p.Speed}
		if p.Percent < 0 {
			snap.Percent = 0
			snap.Message = "encoding (source duration unknown)"
		}
		m.publishProgress(id, snap)

		if p.Percent < 0 {
			continue
		}
		if !p.Done && time.Since(lastWrite) < progressWriteInterval && p.Percent-lastPct < progressWriteDelta {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
		if err := m.db.UpdateJobProgress(ctx, id, p.Percent); err != nil {
			logging.Debug("Failed to persist progress for %s: %v", id, err)
		}
		cancel()
		lastWrite = time.Now()
		lastPct = p.Percent
	}
}

// uploadArtifact pushes the artifact to the CDN and returns its public URL.
func (m *Manager) uploadArtifact(t *tracked, id, outputPath string, container mediatypes.Container) (string, error) {
	if m.uploader == nil {
		return "", ErrCDNUnavailable
	}

	if err := m.transition(t.ctx, id, database.StateEncoding, database.StateUploading, nil); err != nil {
		return "", err
	}
	m.publishProgress(id, Snapshot{State: database.StateUploading, Percent: 100, Message: "uploading to CDN"})

	key, err := m.uploader.Upload(t.ctx, outputPath, container)
	if err != nil {
		return "", fmt.Errorf("CDN upload failed: %w", err)
	}

	url, err := m.uploader.URL(t.ctx, key)
	if err != nil {
		return "", fmt.Errorf("CDN URL generation failed: %w", err)
	}

	logging.Info("Job %s: uploaded artifact as %s", id, key)
	return url, nil
}

// endJob records an unsuccessful end, distinguishing cancelation (user
// delete, shutdown) from failure.
func (m *Manager) endJob(t *tracked, id string, cause error) {
	if t.ctx.Err() != nil {
		m.finishInterrupted(id)
		return
	}
	m.failJob(id, cause)
}

// completeJob records success and emits the terminal event.
func (m *Manager) completeJob(id string, viaCDN bool, inputSize, outputSize int64, outputPath, cdnURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()

	err := m.db.FinishJob(ctx, id, database.StateCompleted, database.FinishResult{
		OutputSize: outputSize,
		OutputPath: outputPath,
		CDNURL:     cdnURL,
	})
	if err != nil {
		m.failJob(id, fmt.Errorf("failed to record completion: %w", err))
		return
	}

	from := database.StateEncoding
	if viaCDN {
		from = database.StateUploading
	}
	metrics.JobStateTransitions.WithLabelValues(string(from), string(database.StateCompleted)).Inc()
	metrics.JobsTotal.WithLabelValues(string(database.StateCompleted)).Inc()
	metrics.EncodeInputBytes.Add(float64(inputSize))
	metrics.EncodeOutputBytes.Add(float64(outputSize))

	final, err := m.db.GetJob(ctx, id)
	if err != nil {
		logging.Warn("Failed to reload completed job %s: %v", id, err)
		final = &database.Job{ID: id, State: database.StateCompleted, InputSize: inputSize, OutputSize: outputSize, CDNURL: cdnURL}
	}

	logging.Info("Job %s completed: %d -> %d bytes (%.1f%% saved)",
		id, inputSize, outputSize, final.SavingsPercent())
	m.finishTracking(id, Event{Type: EventDone, Job: final})
}

// failJob records a failure, emits the error event and clears the job's
// scratch space.
func (m *Manager) failJob(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()

	msg := cause.Error()
	if err := m.db.FinishJob(ctx, id, database.StateFailed, database.FinishResult{Error: msg}); err != nil {
		logging.Error("Failed to record failure of job %s: %v", id, err)
	}
	metrics.JobsTotal.WithLabelValues(string(database.StateFailed)).Inc()

	final, err := m.db.GetJob(ctx, id)
	if err != nil {
		final = &database.Job{ID: id, State: database.StateFailed, Error: msg}
	}

	logging.Warn("Job %s failed: %s", id, msg)
	m.finishTracking(id, Event{Type: EventError, Job: final})
	m.ReleaseArtifact(id)
}

// finishInterrupted marks a job canceled. The message distinguishes a user
// cancel from a shutdown so listings stay honest.
func (m *Manager) finishInterrupted(id string) {
	msg := "canceled"
	if m.baseCtx.Err() != nil {
		msg = "interrupted by shutdown"
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()

	if err := m.db.FinishJob(ctx, id, database.StateCanceled, database.FinishResult{Error: msg}); err != nil {
		logging.Warn("Failed to record cancelation of job %s: %v", id, err)
	}
	metrics.JobsTotal.WithLabelValues(string(database.StateCanceled)).Inc()

	final, err := m.db.GetJob(ctx, id)
	if err != nil {
		final = &database.Job{ID: id, State: database.StateCanceled, Error: msg}
	}

	logging.Info("Job %s canceled: %s", id, msg)
	m.finishTracking(id, Event{Type: EventDone, Job: final})
	m.ReleaseArtifact(id)
}
