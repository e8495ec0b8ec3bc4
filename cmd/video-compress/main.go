package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/wbt-web-support/video-compress/internal/cdn"
	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/fetch"
	"github.com/wbt-web-support/video-compress/internal/ffmpeg"
	"github.com/wbt-web-support/video-compress/internal/handlers"
	"github.com/wbt-web-support/video-compress/internal/jobs"
	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/media"
	"github.com/wbt-web-support/video-compress/internal/memory"
	"github.com/wbt-web-support/video-compress/internal/metrics"
	"github.com/wbt-web-support/video-compress/internal/middleware"
	"github.com/wbt-web-support/video-compress/internal/scratch"
	"github.com/wbt-web-support/video-compress/internal/startup"
)

const collectorInterval = 30 * time.Second

func main() {
	startTime := time.Now()

	// Optional .env for local development; environment wins in production
	if err := godotenv.Load(); err != nil {
		logging.Debug("No .env file loaded: %v", err)
	}

	// Cap the Go heap well below the container limit so ffmpeg children
	// have headroom. Must run before any significant allocation.
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Jobs cut off by the previous process are unrecoverable
	recovered, err := db.FailInterrupted(context.Background())
	if err != nil {
		startup.LogFatal("Failed to reconcile interrupted jobs: %v", err)
	}

	// Verify the encoder binaries before accepting any work
	if err := startup.LogEncoderInit(config.FFmpegPath, config.FFprobePath); err != nil {
		startup.LogFatal("Encoder unavailable: %v", err)
	}
	encoder := ffmpeg.New(config.FFmpegPath, config.FFprobePath)

	// Scratch disk monitor
	scratchCfg := scratch.DefaultConfig(config.WorkDir)
	scratchCfg.HighWaterMark = config.ScratchHighWater
	scratchCfg.CriticalWaterMark = config.ScratchCriticalWater
	monitor, err := scratch.NewMonitor(scratchCfg)
	if err != nil {
		startup.LogFatal("Failed to start scratch monitor: %v", err)
	}
	total, free, _ := monitor.GetStats()
	startup.LogScratchInit(startup.ScratchInfo{
		Dir:           config.WorkDir,
		TotalBytes:    total,
		FreeBytes:     free,
		HighWater:     config.ScratchHighWater,
		CriticalWater: config.ScratchCriticalWater,
	})
	monitor.Start()

	// Remote source fetcher
	fetch.SetDefaultObserver(metrics.NewFetchObserver())
	fetcher := fetch.New(config.MaxFetchBytes())

	// CDN uploader
	var uploader jobs.Uploader
	startup.LogCDNInit(startup.CDNInfo{
		Enabled:       config.CDNEnabled,
		Endpoint:      config.CDN.Endpoint,
		Region:        config.CDN.Region,
		Bucket:        config.CDN.Bucket,
		PublicBaseURL: config.CDN.PublicBaseURL,
		PresignTTL:    config.CDN.PresignTTL,
	})
	if config.CDNEnabled {
		up, err := cdn.New(context.Background(), config.CDN)
		if err != nil {
			startup.LogFatal("CDN configuration error: %v", err)
		}
		verifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = up.Verify(verifyCtx)
		cancel()
		if err != nil {
			// Keep serving; only CDN-targeted jobs are affected
			startup.LogCDNInitError(err)
		} else {
			startup.LogCDNInitComplete()
		}
		uploader = up
	}

	// Poster frames need an image decoder; govips when present, pure-Go
	// fallback otherwise
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, poster resize falls back to pure Go: %v", err)
	}
	posters := media.NewPosterGenerator(encoder)

	// Job manager
	startup.LogJobManagerInit(config.JobWorkers, config.JobTTL, config.EncodeTimeout)
	manager := jobs.NewManager(jobs.Config{
		DB:            db,
		Encoder:       encoder,
		Fetcher:       fetcher,
		Uploader:      uploader,
		Posters:       posters,
		Monitor:       monitor,
		WorkDir:       config.WorkDir,
		Workers:       config.JobWorkers,
		EncodeTimeout: config.EncodeTimeout,
		TTL:           config.JobTTL,
	})
	manager.Start()
	startup.LogJobManagerStarted(int(recovered))

	// Background metrics collector
	collector := metrics.NewCollector(db, config.DatabasePath, collectorInterval)
	collector.SetWorkDir(config.WorkDir)
	collector.SetStorageHealthChecker(db)
	collector.Start()

	startup.LogAuthInit(config.AuthEnabled)

	// Initialize handlers
	h := handlers.New(db, manager, monitor, config)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogRequests)

	// Middleware chain: auth first, then metrics, then request logging,
	// with compression on the outside
	authed := middleware.APIKey(config.APIKeyHash)(router)
	measured := middleware.Metrics(middleware.DefaultMetricsConfig())(authed)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogRequests
	logged := middleware.Logger(loggingConfig)(measured)

	handler := middleware.Compression(middleware.DefaultCompressionConfig())(logged)

	// Create server. WriteTimeout stays 0: artifact downloads and SSE
	// streams outlive any fixed deadline, the streaming layer enforces
	// per-write timeouts instead.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, manager, monitor, collector, db)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowedHandler)

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// the subrouter needs its own handlers, otherwise unmatched /api paths
	// fall through to the static catch-all
	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(handlers.NotFoundHandler)
	api.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowedHandler)

	// Synchronous path: one request, one compressed artifact
	api.HandleFunc("/compress", h.Compress).Methods("POST")
	api.HandleFunc("/probe", h.Probe).Methods("POST")

	// Asynchronous job lifecycle
	api.HandleFunc("/jobs", h.SubmitJob).Methods("POST")
	api.HandleFunc("/jobs/url", h.SubmitURLJob).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.DeleteJob).Methods("DELETE")
	api.HandleFunc("/jobs/{id}/events", h.JobEvents).Methods("GET")
	api.HandleFunc("/jobs/{id}/download", h.DownloadArtifact).Methods("GET")
	api.HandleFunc("/jobs/{id}/poster", h.Poster).Methods("GET")

	// Static files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./static")))

	return r
}

// startMetricsServer exposes Prometheus metrics on a separate port so the
// scrape endpoint never competes with multi-gigabyte uploads.
func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, manager *jobs.Manager, monitor *scratch.Monitor, collector *metrics.Collector, db *database.Database) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping job manager")
	manager.Stop()
	startup.LogShutdownStepComplete("Job manager stopped")

	startup.LogShutdownStep("Stopping scratch monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Scratch monitor stopped")

	media.ShutdownVips()

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
