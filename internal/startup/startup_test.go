package startup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	// Check that all fields are populated
	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	// Verify that runtime values are correct
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
			setEnv:       false,
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				// Ensure the variable is not set
				os.Unsetenv(tt.key)
				t.Cleanup(func() {
					os.Unsetenv(tt.key)
				})
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestRouteInfo(t *testing.T) {
	route := RouteInfo{
		Method: "GET",
		Path:   "/api/test",
		Name:   "TestRoute",
	}

	if route.Method != "GET" {
		t.Errorf("Expected Method=GET, got %s", route.Method)
	}
	if route.Path != "/api/test" {
		t.Errorf("Expected Path=/api/test, got %s", route.Path)
	}
	if route.Name != "TestRoute" {
		t.Errorf("Expected Name=TestRoute, got %s", route.Name)
	}
}

// ============================================================================
// LoadConfig Tests
// ============================================================================

// configEnvVars lists every variable LoadConfig reads so tests start clean
var configEnvVars = []string{
	"PORT", "METRICS_PORT", "FFMPEG_PATH", "FFPROBE_PATH",
	"MAX_UPLOAD_MB", "MAX_FETCH_MB", "JOB_WORKERS", "JOB_TTL", "ENCODE_TIMEOUT",
	"LOG_REQUESTS", "API_KEY_HASH",
	"CDN_ENDPOINT", "CDN_REGION", "CDN_BUCKET", "CDN_ACCESS_KEY", "CDN_SECRET_KEY",
	"CDN_PUBLIC_BASE_URL", "CDN_PRESIGN_TTL",
	"SCRATCH_HIGH_WATER", "SCRATCH_CRITICAL_WATER",
}

func setBaselineEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
	}
	t.Setenv("WORK_DIR", t.TempDir())
	t.Setenv("DATA_DIR", t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaselineEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MetricsEnabled {
		t.Error("Expected metrics disabled without METRICS_PORT")
	}
	if cfg.MaxUploadMB != 2048 {
		t.Errorf("Expected default upload cap 2048 MB, got %d", cfg.MaxUploadMB)
	}
	if cfg.MaxFetchMB != 2048 {
		t.Errorf("Expected default fetch cap 2048 MB, got %d", cfg.MaxFetchMB)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("Expected default job TTL 1h, got %v", cfg.JobTTL)
	}
	if cfg.EncodeTimeout != 45*time.Minute {
		t.Errorf("Expected default encode timeout 45m, got %v", cfg.EncodeTimeout)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("Expected default ffmpeg path, got %s", cfg.FFmpegPath)
	}
	if cfg.FFprobePath != "ffprobe" {
		t.Errorf("Expected default ffprobe path, got %s", cfg.FFprobePath)
	}
	if cfg.JobWorkers < 1 {
		t.Errorf("Expected at least 1 job worker, got %d", cfg.JobWorkers)
	}
	if cfg.CDNEnabled {
		t.Error("Expected CDN disabled without CDN_* vars")
	}
	if cfg.AuthEnabled {
		t.Error("Expected auth disabled without API_KEY_HASH")
	}
	if cfg.ScratchHighWater != 0.85 {
		t.Errorf("Expected default high water 0.85, got %v", cfg.ScratchHighWater)
	}
	if cfg.ScratchCriticalWater != 0.95 {
		t.Errorf("Expected default critical water 0.95, got %v", cfg.ScratchCriticalWater)
	}

	expectedDB := filepath.Join(cfg.DataDir, "jobs.db")
	if cfg.DatabasePath != expectedDB {
		t.Errorf("Expected database path %s, got %s", expectedDB, cfg.DatabasePath)
	}
}

func TestLoadConfigMetricsPort(t *testing.T) {
	setBaselineEnv(t)
	t.Setenv("METRICS_PORT", "9090")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected metrics enabled with METRICS_PORT set")
	}
	if cfg.MetricsPort != "9090" {
		t.Errorf("Expected metrics port 9090, got %s", cfg.MetricsPort)
	}
}

func TestLoadConfigInvalidCaps(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		wantVar  string
	}{
		{"Negative upload cap", "MAX_UPLOAD_MB", "-5", "MAX_UPLOAD_MB"},
		{"Zero upload cap", "MAX_UPLOAD_MB", "0", "MAX_UPLOAD_MB"},
		{"Negative fetch cap", "MAX_FETCH_MB", "-1", "MAX_FETCH_MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaselineEnv(t)
			t.Setenv(tt.envKey, tt.envValue)

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("Expected error for %s=%s", tt.envKey, tt.envValue)
			}
			if !strings.Contains(err.Error(), tt.wantVar) {
				t.Errorf("Expected error to name %s, got: %v", tt.wantVar, err)
			}
		})
	}
}

func TestLoadConfigPartialCDN(t *testing.T) {
	setBaselineEnv(t)
	t.Setenv("CDN_BUCKET", "videos")
	t.Setenv("CDN_ACCESS_KEY", "AKIA123")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for partial CDN configuration")
	}
	if !strings.Contains(err.Error(), "CDN configuration incomplete") {
		t.Errorf("Expected incomplete-CDN error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "CDN_SECRET_KEY") {
		t.Errorf("Expected error to name missing CDN_SECRET_KEY, got: %v", err)
	}
}

func TestLoadConfigFullCDN(t *testing.T) {
	setBaselineEnv(t)
	t.Setenv("CDN_ENDPOINT", "https://sfo3.digitaloceanspaces.com")
	t.Setenv("CDN_REGION", "sfo3")
	t.Setenv("CDN_BUCKET", "videos")
	t.Setenv("CDN_ACCESS_KEY", "AKIA123")
	t.Setenv("CDN_SECRET_KEY", "secret")
	t.Setenv("CDN_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !cfg.CDNEnabled {
		t.Error("Expected CDN enabled with all CDN_* vars set")
	}
	if cfg.CDN.Bucket != "videos" {
		t.Errorf("Expected bucket videos, got %s", cfg.CDN.Bucket)
	}
	if cfg.CDN.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("Expected public base URL, got %s", cfg.CDN.PublicBaseURL)
	}
	if cfg.CDN.PresignTTL != 24*time.Hour {
		t.Errorf("Expected default presign TTL 24h, got %v", cfg.CDN.PresignTTL)
	}
}

func TestLoadConfigAPIKeyHash(t *testing.T) {
	t.Run("Valid bcrypt hash enables auth", func(t *testing.T) {
		setBaselineEnv(t)
		t.Setenv("API_KEY_HASH", "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if !cfg.AuthEnabled {
			t.Error("Expected auth enabled with API_KEY_HASH set")
		}
	})

	t.Run("Non-bcrypt value is rejected", func(t *testing.T) {
		setBaselineEnv(t)
		t.Setenv("API_KEY_HASH", "plaintext-key")

		_, err := LoadConfig()
		if err == nil {
			t.Fatal("Expected error for non-bcrypt API_KEY_HASH")
		}
		if !strings.Contains(err.Error(), "API_KEY_HASH") {
			t.Errorf("Expected error to name API_KEY_HASH, got: %v", err)
		}
	})
}

func TestLoadConfigWatermarks(t *testing.T) {
	tests := []struct {
		name     string
		high     string
		critical string
		wantErr  bool
	}{
		{"Defaults are valid", "", "", false},
		{"Custom valid pair", "0.7", "0.9", false},
		{"High above critical", "0.9", "0.8", true},
		{"High equals critical", "0.9", "0.9", true},
		{"High out of range", "1.5", "", true},
		{"Critical out of range", "", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaselineEnv(t)
			if tt.high != "" {
				t.Setenv("SCRATCH_HIGH_WATER", tt.high)
			}
			if tt.critical != "" {
				t.Setenv("SCRATCH_CRITICAL_WATER", tt.critical)
			}

			_, err := LoadConfig()
			if tt.wantErr && err == nil {
				t.Errorf("Expected error for high=%q critical=%q", tt.high, tt.critical)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigUnwritableDataDir(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Write permission checks do not apply to root")
	}

	setBaselineEnv(t)
	readonly := filepath.Join(t.TempDir(), "readonly")
	if err := os.MkdirAll(readonly, 0o555); err != nil {
		t.Fatalf("Failed to create readonly dir: %v", err)
	}
	t.Setenv("DATA_DIR", readonly)

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for unwritable DATA_DIR")
	}
	if !strings.Contains(err.Error(), "DATA_DIR") {
		t.Errorf("Expected error to name DATA_DIR, got: %v", err)
	}
}

func TestConfigByteCaps(t *testing.T) {
	cfg := &Config{MaxUploadMB: 100, MaxFetchMB: 50}

	if got := cfg.MaxUploadBytes(); got != 100*1024*1024 {
		t.Errorf("MaxUploadBytes() = %d, want %d", got, 100*1024*1024)
	}
	if got := cfg.MaxFetchBytes(); got != 50*1024*1024 {
		t.Errorf("MaxFetchBytes() = %d, want %d", got, 50*1024*1024)
	}
}

func TestValidateCDN(t *testing.T) {
	full := CDNConfig{
		Endpoint:  "https://s3.example.com",
		Region:    "us-east-1",
		Bucket:    "videos",
		AccessKey: "key",
		SecretKey: "secret",
	}

	t.Run("Empty config disabled without error", func(t *testing.T) {
		enabled, err := validateCDN(CDNConfig{})
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if enabled {
			t.Error("Expected disabled for empty config")
		}
	})

	t.Run("Full config enabled", func(t *testing.T) {
		enabled, err := validateCDN(full)
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if !enabled {
			t.Error("Expected enabled for full config")
		}
	})

	t.Run("Missing secret reported by name", func(t *testing.T) {
		partial := full
		partial.SecretKey = ""
		_, err := validateCDN(partial)
		if err == nil {
			t.Fatal("Expected error for partial config")
		}
		if !strings.Contains(err.Error(), "CDN_SECRET_KEY") {
			t.Errorf("Expected CDN_SECRET_KEY in error, got: %v", err)
		}
	})

	t.Run("Multiple missing vars sorted", func(t *testing.T) {
		_, err := validateCDN(CDNConfig{Bucket: "videos"})
		if err == nil {
			t.Fatal("Expected error for partial config")
		}
		msg := err.Error()
		accessIdx := strings.Index(msg, "CDN_ACCESS_KEY")
		secretIdx := strings.Index(msg, "CDN_SECRET_KEY")
		if accessIdx == -1 || secretIdx == -1 {
			t.Fatalf("Expected both missing vars named, got: %v", err)
		}
		if accessIdx > secretIdx {
			t.Error("Expected missing vars in sorted order")
		}
	})
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/api/jobs", "api/jobs"},
		{"/api/jobs/{id}", "api/jobs"},
		{"/api/compress", "api/compress"},
		{"/health", "health"},
		{"/", ""},
		{"/metrics", "metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := getRouteGroup(tt.path); got != tt.expected {
				t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}
