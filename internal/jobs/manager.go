package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/fetch"
	"github.com/wbt-web-support/video-compress/internal/ffmpeg"
	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/mediatypes"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// stopTimeout bounds how long Stop waits for workers to drain before
// abandoning them to process exit.
const stopTimeout = 15 * time.Second

// ErrScratchFull rejects new work while the scratch disk is above the
// high-water mark.
var ErrScratchFull = errors.New("scratch space exhausted")

// ErrCDNUnavailable rejects jobs that request a CDN upload when no CDN is
// configured.
var ErrCDNUnavailable = errors.New("CDN upload not configured")

// token is the unit of worker-pool capacity.
type token struct{}

// Encoder is the ffmpeg work the pipeline needs. *ffmpeg.Executor
// satisfies it.
type Encoder interface {
	Probe(ctx context.Context, filePath string) (*ffmpeg.Info, error)
	Run(ctx context.Context, id string, args []string, opts ffmpeg.RunOptions) error
	Cleanup()
}

// Downloader fetches remote sources into scratch. *fetch.Fetcher
// satisfies it.
type Downloader interface {
	Download(ctx context.Context, rawURL, destPath string) (fetch.Result, error)
}

// Uploader pushes finished artifacts to a CDN. *cdn.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, localPath string, container mediatypes.Container) (string, error)
	URL(ctx context.Context, key string) (string, error)
}

// PosterMaker renders a poster frame for a finished artifact.
// *media.PosterGenerator satisfies it.
type PosterMaker interface {
	Generate(ctx context.Context, videoPath string, duration float64, outPath string) error
}

// PressureGauge reports scratch-disk pressure. *scratch.Monitor satisfies it.
type PressureGauge interface {
	// WaitIfPaused blocks while the disk is critically full; false means
	// the monitor stopped and the caller should give up.
	WaitIfPaused() bool
	// ShouldThrottle reports whether new submissions should be rejected.
	ShouldThrottle() bool
}

// Config wires a Manager's collaborators. DB, Encoder and WorkDir are
// required; leaving an optional field nil disables the matching feature.
type Config struct {
	DB       *database.Database
	Encoder  Encoder
	Fetcher  Downloader    // nil disables URL sources
	Uploader Uploader      // nil disables CDN upload
	Posters  PosterMaker   // nil disables poster frames
	Monitor  PressureGauge // nil disables disk-pressure handling

	WorkDir       string
	Workers       int
	EncodeTimeout time.Duration // 0 means no per-encode deadline
	TTL           time.Duration // retention for finished jobs; 0 keeps them forever
}

// Manager schedules compression jobs onto a bounded worker pool and owns
// their runtime state.
type Manager struct {
	db       *database.Database
	enc      Encoder
	fetcher  Downloader
	uploader Uploader
	posters  PosterMaker
	monitor  PressureGauge

	workDir       string
	encodeTimeout time.Duration
	ttl           time.Duration

	// baseCtx parents every async job context; canceling it is the
	// shutdown lever that kills ffmpeg processes via CommandContext.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	sem chan token
	wg  sync.WaitGroup

	mu   sync.Mutex
	live map[string]*tracked

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewManager builds a Manager. Call Start to launch the retention janitor.
func NewManager(cfg Config) *Manager {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		db:            cfg.DB,
		enc:           cfg.Encoder,
		fetcher:       cfg.Fetcher,
		uploader:      cfg.Uploader,
		posters:       cfg.Posters,
		monitor:       cfg.Monitor,
		workDir:       cfg.WorkDir,
		encodeTimeout: cfg.EncodeTimeout,
		ttl:           cfg.TTL,
		baseCtx:       ctx,
		baseCancel:    cancel,
		sem:           make(chan token, workers),
		live:          make(map[string]*tracked),
		stopChan:      make(chan struct{}),
	}
}

// SubmitRequest describes one new compression job. Exactly one of Source
// (uploaded bytes) or SourceURL (fetched server-side) must be set.
type SubmitRequest struct {
	Source      io.Reader
	SourceName  string
	SourceURL   string
	Options     ffmpeg.Options
	UploadToCDN bool
}

// Submit persists a queued job and hands it to the worker pool. The
// returned Job reflects the queued state; progress flows through
// Subscribe and Progress from here on.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*database.Job, error) {
	job, t, err := m.enqueue(ctx, req, m.baseCtx)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runJob(t, job.ID)
	}()

	return job, nil
}

// RunSync pushes one job through the pipeline on the caller's goroutine.
// The job takes a worker slot and is persisted like any other, so it shows
// up in listings and metrics; canceling ctx (client gone) cancels it. The
// returned Job is the terminal record.
func (m *Manager) RunSync(ctx context.Context, req SubmitRequest) (*database.Job, error) {
	jctx, jcancel := context.WithCancel(ctx)
	defer jcancel()
	// shutdown must reach sync jobs too
	stop := context.AfterFunc(m.baseCtx, jcancel)
	defer stop()

	job, t, err := m.enqueue(ctx, req, jctx)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	defer m.wg.Done()
	m.runJob(t, job.ID)

	getCtx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()
	return m.db.GetJob(getCtx, job.ID)
}

// enqueue validates the request, stages uploaded bytes into scratch and
// persists the queued row. parent becomes the job context's parent:
// the manager itself for async jobs, the request for sync ones.
func (m *Manager) enqueue(ctx context.Context, req SubmitRequest, parent context.Context) (*database.Job, *tracked, error) {
	select {
	case <-m.baseCtx.Done():
		return nil, nil, errors.New("job manager is shutting down")
	default:
	}

	if m.monitor != nil && m.monitor.ShouldThrottle() {
		return nil, nil, ErrScratchFull
	}
	if req.UploadToCDN && m.uploader == nil {
		return nil, nil, ErrCDNUnavailable
	}

	kind := database.SourceUpload
	if req.SourceURL != "" {
		if m.fetcher == nil {
			return nil, nil, errors.New("URL sources are not enabled")
		}
		kind = database.SourceURL
	} else if req.Source == nil {
		return nil, nil, errors.New("no source provided")
	}

	opts := req.Options
	if err := opts.Normalize(); err != nil {
		return nil, nil, err
	}

	id := uuid.NewString()
	dir := m.jobDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	sourceName := req.SourceName
	if kind == database.SourceURL && sourceName == "" {
		sourceName = fetch.SourceName(req.SourceURL)
	}

	var inputSize int64
	if kind == database.SourceUpload {
		size, err := m.saveSource(id, sourceName, req.Source)
		if err != nil {
			os.RemoveAll(dir)
			return nil, nil, err
		}
		inputSize = size
	}

	params, err := json.Marshal(paramsRecord{Options: opts, CDN: req.UploadToCDN})
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, fmt.Errorf("failed to encode job parameters: %w", err)
	}

	job := &database.Job{
		ID:         id,
		State:      database.StateQueued,
		SourceKind: kind,
		SourceName: sourceName,
		SourceURL:  req.SourceURL,
		Params:     string(params),
		InputSize:  inputSize,
	}
	if err := m.db.InsertJob(ctx, job); err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}

	t := m.trackJob(id, parent)
	logging.Info("Job %s queued: %s (%s)", id, sourceName, opts.Summary())
	return job, t, nil
}

// runJob waits for a worker slot, then drives the job pipeline. Honors
// cancelation while still queued.
func (m *Manager) runJob(t *tracked, id string) {
	select {
	case m.sem <- token{}:
	case <-t.ctx.Done():
		m.finishInterrupted(id)
		return
	}
	defer func() { <-m.sem }()

	if t.ctx.Err() != nil {
		m.finishInterrupted(id)
		return
	}

	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()

	m.process(t, id)
}

// saveSource copies uploaded bytes into the job's scratch directory and
// returns how many were written.
func (m *Manager) saveSource(id, sourceName string, r io.Reader) (int64, error) {
	f, err := os.Create(m.sourcePath(id, sourceName))
	if err != nil {
		return 0, fmt.Errorf("failed to create source file: %w", err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save source file: %w", err)
	}
	return n, nil
}

// Delete cancels a live job or removes a finished one. The canceled return
// distinguishes the two so callers can answer "canceling" versus "gone".
func (m *Manager) Delete(ctx context.Context, id string) (canceled bool, err error) {
	if t := m.lookup(id); t != nil {
		logging.Info("Canceling job %s", id)
		t.cancel()
		return true, nil
	}

	if _, err := m.db.GetJob(ctx, id); err != nil {
		return false, err
	}
	if err := m.db.DeleteJob(ctx, id); err != nil {
		return false, err
	}
	m.ReleaseArtifact(id)
	logging.Info("Deleted job %s", id)
	return false, nil
}

// ProbeFile returns media info for a local file, consulting the probe
// cache first. Shared by the pipeline and the probe endpoint.
func (m *Manager) ProbeFile(ctx context.Context, path string) (*ffmpeg.Info, error) {
	hash, err := database.HashFile(path)
	if err != nil {
		logging.Debug("Probe cache bypassed, hashing failed: %v", err)
		return m.enc.Probe(ctx, path)
	}

	if raw, ok, cacheErr := m.db.CachedProbe(ctx, hash); cacheErr == nil && ok {
		var info ffmpeg.Info
		if json.Unmarshal([]byte(raw), &info) == nil {
			return &info, nil
		}
		logging.Debug("Discarding corrupt probe cache entry %s", hash)
	}

	info, err := m.enc.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	if raw, jsonErr := json.Marshal(info); jsonErr == nil {
		if storeErr := m.db.StoreProbe(ctx, hash, string(raw)); storeErr != nil {
			logging.Debug("Failed to store probe result: %v", storeErr)
		}
	}
	return info, nil
}

// ReleaseArtifact removes a job's scratch directory. Called after the
// synchronous endpoint has streamed the artifact, and by the janitor once
// a job's retention expires; later downloads answer Gone.
func (m *Manager) ReleaseArtifact(id string) {
	if err := os.RemoveAll(m.jobDir(id)); err != nil {
		logging.Warn("Failed to remove scratch for job %s: %v", id, err)
	}
}

// Live returns how many jobs are currently tracked (queued or processing).
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// PosterPath returns where a job's poster frame lives once generated.
func (m *Manager) PosterPath(id string) string {
	return filepath.Join(m.jobDir(id), "poster.jpg")
}

func (m *Manager) jobDir(id string) string {
	return filepath.Join(m.workDir, id)
}

// sourcePath derives the staged input path from the original name; only
// the extension survives sanitization.
func (m *Manager) sourcePath(id, sourceName string) string {
	return filepath.Join(m.jobDir(id), "source"+strings.ToLower(filepath.Ext(sourceName)))
}

// Stop cancels every live job, kills their ffmpeg processes and waits for
// the workers and janitor to drain.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		logging.Info("Stopping job manager...")
		close(m.stopChan)
		m.baseCancel()
		m.enc.Cleanup()

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logging.Info("Job manager stopped")
		case <-time.After(stopTimeout):
			logging.Warn("Job workers still running after %s, abandoning wait", stopTimeout)
		}
	})
}
