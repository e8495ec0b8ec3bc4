package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// CDNConfig holds the S3-compatible upload target. All credential fields must
// be set together; a partially configured CDN is a startup error.
type CDNConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// Config holds all application configuration
type Config struct {
	Port        string
	MetricsPort string

	WorkDir string
	DataDir string

	FFmpegPath  string
	FFprobePath string

	MaxUploadMB int64
	MaxFetchMB  int64

	JobWorkers    int
	JobTTL        time.Duration
	EncodeTimeout time.Duration

	LogRequests bool

	APIKeyHash string

	CDN CDNConfig

	ScratchHighWater     float64
	ScratchCriticalWater float64

	// Derived paths
	DatabasePath string

	// Feature flags
	MetricsEnabled bool
	CDNEnabled     bool
	AuthEnabled    bool
}

// MaxUploadBytes returns the multipart upload cap in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// MaxFetchBytes returns the remote-download cap in bytes
func (c *Config) MaxFetchBytes() int64 {
	return c.MaxFetchMB * 1024 * 1024
}

// cdnVars maps the all-or-nothing CDN environment variables to their values
func cdnVars(cdn CDNConfig) map[string]string {
	return map[string]string{
		"CDN_ENDPOINT":   cdn.Endpoint,
		"CDN_REGION":     cdn.Region,
		"CDN_BUCKET":     cdn.Bucket,
		"CDN_ACCESS_KEY": cdn.AccessKey,
		"CDN_SECRET_KEY": cdn.SecretKey,
	}
}

// validateCDN enforces the all-or-nothing rule on the CDN variable set
func validateCDN(cdn CDNConfig) (enabled bool, err error) {
	vars := cdnVars(cdn)

	var set, missing []string
	for name, value := range vars {
		if value != "" {
			set = append(set, name)
		} else {
			missing = append(missing, name)
		}
	}

	if len(set) == 0 {
		return false, nil
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return false, fmt.Errorf("CDN configuration incomplete: %s not set (set all of CDN_ENDPOINT, CDN_REGION, CDN_BUCKET, CDN_ACCESS_KEY, CDN_SECRET_KEY or none)",
			strings.Join(missing, ", "))
	}
	return true, nil
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "")
	workDir := getEnv("WORK_DIR", "/tmp/video-compress")
	dataDir := getEnv("DATA_DIR", "./data")
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	ffprobePath := getEnv("FFPROBE_PATH", "ffprobe")
	maxUploadMB := getEnvInt64("MAX_UPLOAD_MB", 2048)
	maxFetchMB := getEnvInt64("MAX_FETCH_MB", 2048)
	jobTTL := getEnvDuration("JOB_TTL", time.Hour)
	encodeTimeout := getEnvDuration("ENCODE_TIMEOUT", 45*time.Minute)
	logRequests := getEnvBool("LOG_REQUESTS", true)
	apiKeyHash := getEnv("API_KEY_HASH", "")
	scratchHigh := getEnvFloat("SCRATCH_HIGH_WATER", 0.85)
	scratchCritical := getEnvFloat("SCRATCH_CRITICAL_WATER", 0.95)

	cdn := CDNConfig{
		Endpoint:      getEnv("CDN_ENDPOINT", ""),
		Region:        getEnv("CDN_REGION", ""),
		Bucket:        getEnv("CDN_BUCKET", ""),
		AccessKey:     getEnv("CDN_ACCESS_KEY", ""),
		SecretKey:     getEnv("CDN_SECRET_KEY", ""),
		PublicBaseURL: getEnv("CDN_PUBLIC_BASE_URL", ""),
		PresignTTL:    getEnvDuration("CDN_PRESIGN_TTL", 24*time.Hour),
	}

	// One concurrent encode per CPU is already an upper bound; ffmpeg fans
	// out across cores on its own. JOB_WORKERS overrides inside the helper.
	jobWorkers := workers.ForEncoding(8)

	metricsEnabled := metricsPort != ""

	logging.Info("  PORT:                  %s", port)
	if metricsEnabled {
		logging.Info("  METRICS_PORT:          %s", metricsPort)
	} else {
		logging.Info("  METRICS_PORT:          (unset, metrics disabled)")
	}
	logging.Info("  WORK_DIR:              %s", workDir)
	logging.Info("  DATA_DIR:              %s", dataDir)
	logging.Info("  FFMPEG_PATH:           %s", ffmpegPath)
	logging.Info("  FFPROBE_PATH:          %s", ffprobePath)
	logging.Info("  MAX_UPLOAD_MB:         %d (%s)", maxUploadMB, formatBytesStartup(maxUploadMB*1024*1024))
	logging.Info("  MAX_FETCH_MB:          %d (%s)", maxFetchMB, formatBytesStartup(maxFetchMB*1024*1024))
	logging.Info("  JOB_WORKERS:           %d", jobWorkers)
	logging.Info("  JOB_TTL:               %s", jobTTL)
	logging.Info("  ENCODE_TIMEOUT:        %s", encodeTimeout)
	logging.Info("  LOG_REQUESTS:          %v", logRequests)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())
	logging.Info("  SCRATCH_HIGH_WATER:    %.2f", scratchHigh)
	logging.Info("  SCRATCH_CRITICAL_WATER:%.2f", scratchCritical)

	if maxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", maxUploadMB)
	}
	if maxFetchMB <= 0 {
		return nil, fmt.Errorf("MAX_FETCH_MB must be positive, got %d", maxFetchMB)
	}
	if jobTTL <= 0 {
		return nil, fmt.Errorf("JOB_TTL must be positive, got %s", jobTTL)
	}
	if encodeTimeout <= 0 {
		return nil, fmt.Errorf("ENCODE_TIMEOUT must be positive, got %s", encodeTimeout)
	}
	if scratchHigh <= 0 || scratchHigh >= 1 {
		return nil, fmt.Errorf("SCRATCH_HIGH_WATER must be between 0 and 1, got %.2f", scratchHigh)
	}
	if scratchCritical <= 0 || scratchCritical > 1 {
		return nil, fmt.Errorf("SCRATCH_CRITICAL_WATER must be between 0 and 1, got %.2f", scratchCritical)
	}
	if scratchHigh >= scratchCritical {
		return nil, fmt.Errorf("SCRATCH_HIGH_WATER (%.2f) must be below SCRATCH_CRITICAL_WATER (%.2f)", scratchHigh, scratchCritical)
	}

	authEnabled := apiKeyHash != ""
	if authEnabled && !strings.HasPrefix(apiKeyHash, "$2") {
		return nil, fmt.Errorf("API_KEY_HASH does not look like a bcrypt hash (generate one with the genkey tool)")
	}

	cdnEnabled, err := validateCDN(cdn)
	if err != nil {
		return nil, err
	}
	if cdnEnabled && cdn.PresignTTL <= 0 {
		return nil, fmt.Errorf("CDN_PRESIGN_TTL must be positive, got %s", cdn.PresignTTL)
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve WORK_DIR path: %w", err)
	}
	logging.Info("  Work directory (absolute): %s", workDir)

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DATA_DIR path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", dataDir)

	// Scratch space is required: every upload, encode output, and poster
	// lands here first.
	if err := ensureDirectory(workDir, "work"); err != nil {
		return nil, fmt.Errorf("WORK_DIR error: %w", err)
	}
	logging.Debug("  Testing work directory write access...")
	if err := testWriteAccess(workDir); err != nil {
		return nil, fmt.Errorf("WORK_DIR is not writable: %w", err)
	}
	logging.Info("  [OK] Work directory is writable")

	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("DATA_DIR error: %w", err)
	}
	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("DATA_DIR is not writable (required for the job database): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	config := &Config{
		Port:                 port,
		MetricsPort:          metricsPort,
		WorkDir:              workDir,
		DataDir:              dataDir,
		FFmpegPath:           ffmpegPath,
		FFprobePath:          ffprobePath,
		MaxUploadMB:          maxUploadMB,
		MaxFetchMB:           maxFetchMB,
		JobWorkers:           jobWorkers,
		JobTTL:               jobTTL,
		EncodeTimeout:        encodeTimeout,
		LogRequests:          logRequests,
		APIKeyHash:           apiKeyHash,
		CDN:                  cdn,
		ScratchHighWater:     scratchHigh,
		ScratchCriticalWater: scratchCritical,
		DatabasePath:         filepath.Join(dataDir, "jobs.db"),
		MetricsEnabled:       metricsEnabled,
		CDNEnabled:           cdnEnabled,
		AuthEnabled:          authEnabled,
	}

	// Summary
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Job database: ENABLED (required)")
	logging.Info("    CDN upload:   %s", enabledString(config.CDNEnabled))
	logging.Info("    API auth:     %s", enabledString(config.AuthEnabled))
	logging.Info("    Metrics:      %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogEncoderInit verifies the configured ffmpeg and ffprobe binaries.
// A missing encoder is fatal; this service exists to run it.
func LogEncoderInit(ffmpegPath, ffprobePath string) error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if err := checkBinary(ffmpegPath, "ffmpeg"); err != nil {
		return fmt.Errorf("FFMPEG_PATH: %w", err)
	}
	logging.Info("  [OK] ffmpeg is available")

	if err := checkBinary(ffprobePath, "ffprobe"); err != nil {
		return fmt.Errorf("FFPROBE_PATH: %w", err)
	}
	logging.Info("  [OK] ffprobe is available")

	return nil
}

// LogJobManagerInit logs job manager initialization
func LogJobManagerInit(workerCount int, ttl, encodeTimeout time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("JOB MANAGER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Encode workers:  %d", workerCount)
	logging.Info("  Job retention:   %v", ttl)
	logging.Info("  Encode timeout:  %v", encodeTimeout)
	logging.Info("  Starting job manager...")
}

// LogJobManagerStarted logs successful job manager start
func LogJobManagerStarted(recovered int) {
	if recovered > 0 {
		logging.Warn("  %d job(s) interrupted by the previous shutdown were marked failed", recovered)
	}
	logging.Info("  [OK] Job manager started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logRequests bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	if logRequests {
		logging.Info("  Request logging: ON")
	} else {
		logging.Info("  Request logging: OFF (set LOG_REQUESTS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
  _    ___     __           ______
 | |  / (_)___/ /__  ____  / ____/___  ____ ___  ____
 | | / / / __  / _ \/ __ \/ /   / __ \/ __ '__ \/ __ \
 | |/ / / /_/ /  __/ /_/ / /___/ /_/ / / / / / / /_/ /
 |___/_/\__,_/\___/\____/\____/\____/_/ /_/ /_/ .___/
                                             /_/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkBinary(path, name string) error {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return fmt.Errorf("%s not found at %q", name, path)
	}
	logging.Debug("  %s path: %s", name, resolved)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, resolved, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}

	return nil
}
