package startup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid float value for %s: %q, using default: %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// formatBytesStartup formats a byte count as a human-readable IEC string
func formatBytesStartup(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// CDNInfo describes the configured CDN target for the startup log
type CDNInfo struct {
	Enabled       bool
	Endpoint      string
	Region        string
	Bucket        string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// LogCDNInit logs CDN uploader initialization
func LogCDNInit(info CDNInfo) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CDN INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !info.Enabled {
		logging.Info("  CDN upload disabled (no CDN_* configuration)")
		logging.Info("  Compressed artifacts are served from this instance only")
		return
	}

	logging.Info("  Endpoint: %s", info.Endpoint)
	logging.Info("  Region:   %s", info.Region)
	logging.Info("  Bucket:   %s", info.Bucket)
	if info.PublicBaseURL != "" {
		logging.Info("  Public base URL: %s", info.PublicBaseURL)
	} else {
		logging.Info("  Public base URL: (unset, presigned URLs with %v TTL)", info.PresignTTL)
	}
}

// LogCDNInitComplete logs a verified CDN connection
func LogCDNInitComplete() {
	logging.Info("  [OK] CDN uploader ready")
}

// LogCDNInitError logs a CDN initialization failure
func LogCDNInitError(err error) {
	logging.Warn("  CDN initialization failed: %v", err)
	logging.Warn("  Jobs requesting CDN upload will fail")
}

// LogAuthInit logs API authentication status
func LogAuthInit(enabled bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("API AUTHENTICATION")
	logging.Info("------------------------------------------------------------")

	if !enabled {
		logging.Warn("  API_KEY_HASH not set, API is unauthenticated")
		logging.Warn("  Generate a key hash with the genkey tool to enable auth")
		return
	}

	logging.Info("  [OK] API key authentication enabled")
}

// ScratchInfo describes the scratch filesystem for the startup log
type ScratchInfo struct {
	Dir           string
	TotalBytes    uint64
	FreeBytes     uint64
	HighWater     float64
	CriticalWater float64
}

// LogScratchInit logs scratch monitor initialization
func LogScratchInit(info ScratchInfo) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SCRATCH MONITOR")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Directory:       %s", info.Dir)
	if info.TotalBytes > 0 {
		logging.Info("  Filesystem size: %s (%s free)",
			formatBytesStartup(int64(info.TotalBytes)),
			formatBytesStartup(int64(info.FreeBytes)))
	}
	logging.Info("  High water:      %.0f%% (new submissions throttled)", info.HighWater*100)
	logging.Info("  Critical water:  %.0f%% (encodes paused)", info.CriticalWater*100)
}
