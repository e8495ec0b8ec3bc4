// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (empty disables metrics)
//   - WORK_DIR: Scratch directory for uploads, encode outputs, and posters (default: /tmp/video-compress)
//   - DATA_DIR: Directory for the job database (default: ./data)
//   - FFMPEG_PATH / FFPROBE_PATH: Encoder binary overrides (default: ffmpeg / ffprobe from PATH)
//   - MAX_UPLOAD_MB: Multipart upload cap in megabytes (default: 2048)
//   - MAX_FETCH_MB: Remote-download cap in megabytes (default: 2048)
//   - JOB_WORKERS: Concurrent encode workers (default: CPU-derived)
//   - JOB_TTL: Retention of finished jobs and their artifacts as Go duration (default: 1h)
//   - ENCODE_TIMEOUT: Per-encode wall clock budget as Go duration (default: 45m)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_REQUESTS: Log HTTP requests (default: true)
//   - API_KEY_HASH: bcrypt hash of the API key; empty disables authentication
//   - CDN_ENDPOINT, CDN_REGION, CDN_BUCKET, CDN_ACCESS_KEY, CDN_SECRET_KEY:
//     S3-compatible CDN target; set all five or none
//   - CDN_PUBLIC_BASE_URL: Public URL prefix for uploaded objects
//   - CDN_PRESIGN_TTL: Presigned URL lifetime when no public base URL is set (default: 24h)
//   - SCRATCH_HIGH_WATER / SCRATCH_CRITICAL_WATER: Scratch disk usage thresholds (default: 0.85 / 0.95)
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Work directory: Required, must be writable (scratch space for every job)
//   - Data directory: Required, must be writable (job database)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogEncoderInit]: ffmpeg/ffprobe availability (fatal when missing)
//   - [LogJobManagerInit]: Worker pool, retention, and timeout configuration
//   - [LogCDNInit]: CDN uploader configuration
//   - [LogAuthInit]: API key authentication status
//   - [LogScratchInit]: Scratch monitor thresholds and filesystem size
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	if err := startup.LogEncoderInit(config.FFmpegPath, config.FFprobePath); err != nil {
//	    startup.LogFatal("Encoder error: %v", err)
//	}
//
//	// Initialize components...
//	startup.LogDatabaseInit(dbInitDuration)
//	startup.LogJobManagerInit(config.JobWorkers, config.JobTTL, config.EncodeTimeout)
//
//	// Start server...
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
//
//	// On shutdown...
//	startup.LogShutdownInitiated("SIGTERM")
//	// ... cleanup ...
//	startup.LogShutdownComplete()
package startup
