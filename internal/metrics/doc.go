// Package metrics provides Prometheus instrumentation for the video-compress service.
//
// This package defines and exposes various metrics that can be scraped by Prometheus
// to monitor the health, performance, and behavior of the service. All metrics
// are prefixed with "video_compress_" to avoid naming collisions with other applications.
//
// # Metric Categories
//
// The metrics are organized into the following categories:
//
// ## HTTP Metrics
//
// Track HTTP request performance and error rates:
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Job Metrics
//
// Track compression job lifecycle and throughput:
//   - JobsTotal: Counter of jobs by terminal status (completed/failed/canceled)
//   - JobsInState: Gauge of jobs in each lifecycle state
//   - JobStateTransitions: Counter of state transitions by from/to pair
//   - JobsInProgress: Gauge of jobs currently held by a worker
//   - EncodeDuration: Histogram of FFmpeg encode duration
//   - EncodeInputBytes / EncodeOutputBytes: Counters of source and artifact bytes
//
// ## FFmpeg and Probe Metrics
//
// Monitor the external encoder processes:
//   - FFmpegProcessesActive: Gauge of running FFmpeg processes
//   - ProbeDuration: Histogram of ffprobe invocation duration
//   - ProbeCacheHits / ProbeCacheMisses: Counters for the probe result cache
//
// ## Fetch Metrics
//
// Monitor remote source downloads and their retry behavior:
//   - FetchOperationDuration / FetchOperationErrors: per-operation latency and failures
//   - FetchBytesTotal: Counter of downloaded bytes
//   - FetchRetryAttempts / FetchRetrySuccess / FetchRetryFailures: retry outcomes
//   - FetchRetryDuration: Histogram of total fetch duration including retries
//   - FetchThrottledTotal: Counter of rate-limited responses from remote hosts
//
// ## CDN Metrics
//
// Track artifact uploads to the configured CDN:
//   - CDNUploadsTotal: Counter by status
//   - CDNUploadDuration: Histogram of upload duration
//   - CDNUploadBytes: Counter of uploaded bytes
//
// ## Scratch Space Metrics
//
// Monitor working directory disk pressure:
//   - ScratchUsageRatio: Gauge of scratch volume usage (0.0-1.0)
//   - ScratchPaused: Gauge indicating intake is paused for disk pressure
//   - WorkDirSizeBytes: Gauge of total working directory size
//
// ## Database Metrics
//
// Monitor database query performance and storage:
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBTransactionDuration: Histogram of transaction duration by type
//   - DBConnectionsOpen: Gauge of open database connections
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//   - DBStorageErrors: Counter of storage health check failures
//
// ## Application Info
//
// Expose build information:
//   - AppInfo: Gauge with version, commit, and Go version labels
//
// # Usage
//
// Metrics are automatically registered with the default Prometheus registry
// using promauto. To expose them, mount the promhttp.Handler() on your
// metrics endpoint:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Collector
//
// The package provides a [Collector] type that periodically gathers job
// statistics from a [StatsProvider] and updates the corresponding gauges:
//
//	collector := metrics.NewCollector(statsProvider, dbPath, 1*time.Minute)
//	collector.SetWorkDir(cfg.WorkDir)
//	collector.Start()
//	defer collector.Stop()
//
// The collector automatically updates:
//   - Job counts per lifecycle state
//   - Database file sizes
//   - Working directory size
//   - Go runtime memory statistics
//
// # Prometheus Queries
//
// Example PromQL queries for common use cases:
//
// Request rate by endpoint:
//
//	sum(rate(video_compress_http_requests_total[5m])) by (path)
//
// P95 encode time:
//
//	histogram_quantile(0.95, sum(rate(video_compress_encode_duration_seconds_bucket[5m])) by (le))
//
// Job failure rate:
//
//	rate(video_compress_jobs_total{status="failed"}[1h]) / sum(rate(video_compress_jobs_total[1h]))
//
// Compression ratio achieved across all jobs:
//
//	rate(video_compress_encode_output_bytes_total[1h]) / rate(video_compress_encode_input_bytes_total[1h])
//
// Probe cache hit rate:
//
//	rate(video_compress_probe_cache_hits_total[5m]) /
//	(rate(video_compress_probe_cache_hits_total[5m]) + rate(video_compress_probe_cache_misses_total[5m]))
//
// Database query latency by operation:
//
//	histogram_quantile(0.95, sum(rate(video_compress_db_query_duration_seconds_bucket[5m])) by (le, operation))
package metrics
