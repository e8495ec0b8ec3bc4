// Package main provides the entry point for the video compression service.
//
// The service wraps ffmpeg behind an HTTP API: clients upload a video (or
// point the service at a URL), pick a codec and quality, and get back a
// smaller file, either streamed in the response, fetched later from a job
// endpoint, or pushed to an S3-compatible CDN.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Configuration Loading: Reads environment variables (optionally a .env
//     file) and validates directories
//  2. Database Initialization: Opens the SQLite job store in WAL mode and
//     fails jobs interrupted by the previous shutdown
//  3. Component Initialization:
//     - Encoder: Verifies the ffmpeg and ffprobe binaries
//     - Scratch Monitor: Watches the work volume for disk pressure
//     - Fetcher: Downloads URL-sourced videos with a size cap
//     - CDN Uploader: Connects to the S3-compatible bucket (if configured)
//     - Poster Generator: Initializes libvips for poster frame resizing
//     - Job Manager: Starts the encode worker pool and retention janitor
//     - Metrics Collector: Gathers Prometheus metrics
//  4. HTTP Server Setup: Configures routes, middleware, and starts serving
//  5. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # HTTP API
//
// Synchronous path:
//
//	POST /api/compress     Upload a video, block until the encode finishes,
//	                       receive the compressed artifact (or a CDN URL)
//	POST /api/probe        Upload a video, receive its media information
//
// Asynchronous job lifecycle:
//
//	POST   /api/jobs                    Submit an upload as a background job
//	POST   /api/jobs/url                Submit a URL-sourced background job
//	GET    /api/jobs                    List jobs with filtering and paging
//	GET    /api/jobs/{id}               Job status including live progress
//	DELETE /api/jobs/{id}               Cancel a running job or delete a done one
//	GET    /api/jobs/{id}/events        Server-Sent Events progress stream
//	GET    /api/jobs/{id}/download      Download the compressed artifact
//	GET    /api/jobs/{id}/poster        Poster frame for the artifact
//
// Operational endpoints:
//
//	GET /health, /healthz   Full dependency health report
//	GET /livez              Liveness probe
//	GET /readyz             Readiness probe (database + scratch space)
//	GET /version            Build information
//
// When METRICS_ENABLED is set, Prometheus metrics are served on a separate
// port so scrapes never queue behind multi-gigabyte uploads.
//
// # Environment Variables
//
//   - PORT: Main HTTP server port (default: 8080)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable the metrics server (default: true)
//   - WORK_DIR: Scratch directory for sources and artifacts (default: /work)
//   - DATA_DIR: Directory for the SQLite job store (default: /data)
//   - FFMPEG_PATH, FFPROBE_PATH: Encoder binaries (default: from PATH)
//   - MAX_UPLOAD_MB: Multipart upload cap (default: 2048)
//   - MAX_FETCH_MB: URL download cap (default: 2048)
//   - JOB_WORKERS: Concurrent encodes (default: CPU-derived)
//   - JOB_TTL: Retention for finished jobs (default: 24h)
//   - ENCODE_TIMEOUT: Per-encode deadline (default: 2h)
//   - SCRATCH_HIGH_WATER: Disk usage ratio that throttles submissions
//   - SCRATCH_CRITICAL_WATER: Disk usage ratio that pauses encodes
//   - API_KEY_HASH: bcrypt hash enabling API authentication (see cmd/genkey)
//   - CDN_ENDPOINT, CDN_REGION, CDN_BUCKET, CDN_ACCESS_KEY, CDN_SECRET_KEY:
//     S3-compatible upload target, all-or-nothing
//   - CDN_PUBLIC_BASE_URL: Public URL prefix for uploaded artifacts
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - LOG_REQUESTS: Log every request including static files
//   - MEMORY_LIMIT, MEMORY_RATIO: Container memory limit in bytes and the
//     fraction given to the Go heap; the rest is ffmpeg headroom (see
//     internal/memory)
//
// # Graceful Shutdown
//
// The application handles SIGINT and SIGTERM gracefully:
//
//  1. Stop the metrics collector
//  2. Stop the job manager (running ffmpeg processes are killed, their jobs
//     marked canceled so a restart never resumes a half-written artifact)
//  3. Stop the scratch monitor
//  4. Shutdown the metrics and main HTTP servers (30s timeout)
//  5. Close the database
//
// # Build Requirements
//
// CGO is required for SQLite and (optionally) libvips; ffmpeg and ffprobe
// must be present at runtime:
//
//	go build -o video-compress ./cmd/video-compress
//
// # Related Packages
//
//   - [github.com/wbt-web-support/video-compress/internal/jobs]: Job pipeline and worker pool
//   - [github.com/wbt-web-support/video-compress/internal/ffmpeg]: Process control and progress parsing
//   - [github.com/wbt-web-support/video-compress/internal/database]: SQLite job store
//   - [github.com/wbt-web-support/video-compress/internal/handlers]: HTTP request handlers
//   - [github.com/wbt-web-support/video-compress/internal/cdn]: S3-compatible artifact upload
//   - [github.com/wbt-web-support/video-compress/internal/middleware]: HTTP middleware (auth, logging, metrics)
//   - [github.com/wbt-web-support/video-compress/internal/startup]: Configuration and initialization
package main
