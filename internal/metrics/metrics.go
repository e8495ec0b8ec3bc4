package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_compress_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_jobs_total",
			Help: "Total number of compression jobs by terminal status",
		},
		[]string{"status"},
	)

	JobsInState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_compress_jobs_in_state",
			Help: "Number of jobs currently in each lifecycle state",
		},
		[]string{"state"},
	)

	JobStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_job_state_transitions_total",
			Help: "Total number of job state transitions",
		},
		[]string{"from", "to"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_jobs_in_progress",
			Help: "Number of jobs currently being processed by a worker",
		},
	)

	EncodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_compress_encode_duration_seconds",
			Help:    "FFmpeg encode duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	EncodeInputBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_compress_encode_input_bytes_total",
			Help: "Total bytes of source video accepted for encoding",
		},
	)

	EncodeOutputBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_compress_encode_output_bytes_total",
			Help: "Total bytes of compressed video produced",
		},
	)
)

// FFmpeg process and probe metrics
var (
	FFmpegProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_ffmpeg_processes_active",
			Help: "Number of FFmpeg processes currently running",
		},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_compress_probe_duration_seconds",
			Help:    "ffprobe invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ProbeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_compress_probe_cache_hits_total",
			Help: "Total number of probe cache hits",
		},
	)

	ProbeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_compress_probe_cache_misses_total",
			Help: "Total number of probe cache misses",
		},
	)
)

// Poster metrics
var (
	PosterGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_poster_generations_total",
			Help: "Total number of poster frame generations",
		},
		[]string{"status"},
	)

	PosterGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_compress_poster_generation_duration_seconds",
			Help:    "Poster frame generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Fetch metrics
var (
	FetchOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_compress_fetch_operation_duration_seconds",
			Help:    "Remote source fetch operation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	FetchOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_fetch_operation_errors_total",
			Help: "Total number of failed fetch operations",
		},
		[]string{"operation"},
	)

	FetchBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_compress_fetch_bytes_total",
			Help: "Total bytes downloaded from remote sources",
		},
	)

	FetchRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_fetch_retry_attempts_total",
			Help: "Total number of fetch retry attempts",
		},
		[]string{"operation"},
	)

	FetchRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_fetch_retry_success_total",
			Help: "Total number of fetch operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FetchRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_fetch_retry_failures_total",
			Help: "Total number of fetch operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FetchRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_compress_fetch_retry_duration_seconds",
			Help:    "Total fetch duration including retries in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	FetchThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_fetch_throttled_total",
			Help: "Total number of throttled responses from remote sources",
		},
		[]string{"operation"},
	)
)

// CDN metrics
var (
	CDNUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_cdn_uploads_total",
			Help: "Total number of CDN uploads",
		},
		[]string{"status"},
	)

	CDNUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_compress_cdn_upload_duration_seconds",
			Help:    "CDN upload duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	CDNUploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_compress_cdn_upload_bytes_total",
			Help: "Total bytes uploaded to the CDN",
		},
	)
)

// Scratch space metrics
var (
	ScratchUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_scratch_usage_ratio",
			Help: "Scratch volume usage as a ratio of capacity (0.0-1.0)",
		},
	)

	ScratchPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_scratch_paused",
			Help: "Whether new work is paused due to scratch disk pressure (1 = paused, 0 = accepting)",
		},
	)

	WorkDirSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_work_dir_size_bytes",
			Help: "Total size of the working directory in bytes",
		},
	)

	ScratchStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_scratch_stale_errors_total",
			Help: "NFS stale file handle errors on the scratch volume",
		},
		[]string{"operation"},
	)

	ScratchRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_scratch_retry_success_total",
			Help: "Scratch operations that succeeded after a stale-handle retry",
		},
		[]string{"operation"},
	)

	ScratchRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_scratch_retry_failures_total",
			Help: "Scratch operations that failed after exhausting stale-handle retries",
		},
		[]string{"operation"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_compress_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_compress_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_compress_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_compress_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	DBStorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_db_storage_errors_total",
			Help: "Total number of database storage health check failures",
		},
		[]string{"file"},
	)
)

// Event stream metrics
var (
	EventSubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_event_subscribers_active",
			Help: "Number of active progress event subscribers",
		},
	)
)

// Go runtime metrics updated by the Collector
var (
	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_go_mem_alloc_bytes",
			Help: "Current heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_compress_go_mem_sys_bytes",
			Help: "Total memory obtained from the OS in bytes",
		},
	)

	GoGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_compress_go_gc_runs_total",
			Help: "Total number of completed GC cycles",
		},
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_compress_auth_attempts_total",
			Help: "Total number of API key authentication attempts",
		},
		[]string{"status"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_compress_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
