package startup

import (
	"testing"
	"time"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue bool
		want         bool
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_BOOL_UNSET",
			defaultValue: true,
			want:         true,
			setEnv:       false,
		},
		{
			name:         "Returns default false when env var not set",
			key:          "TEST_BOOL_UNSET2",
			defaultValue: false,
			want:         false,
			setEnv:       false,
		},
		{
			name:         "Returns true when env var is 'true'",
			key:          "TEST_BOOL_TRUE",
			envValue:     "true",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns false when env var is 'false'",
			key:          "TEST_BOOL_FALSE",
			envValue:     "false",
			defaultValue: true,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns true when env var is '1'",
			key:          "TEST_BOOL_ONE",
			envValue:     "1",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns false when env var is '0'",
			key:          "TEST_BOOL_ZERO",
			envValue:     "0",
			defaultValue: true,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns true when env var is 't'",
			key:          "TEST_BOOL_T",
			envValue:     "t",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns false when env var is 'f'",
			key:          "TEST_BOOL_F",
			envValue:     "f",
			defaultValue: true,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns true when env var is 'TRUE'",
			key:          "TEST_BOOL_TRUE_UPPER",
			envValue:     "TRUE",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns false when env var is 'FALSE'",
			key:          "TEST_BOOL_FALSE_UPPER",
			envValue:     "FALSE",
			defaultValue: true,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is invalid",
			key:          "TEST_BOOL_INVALID",
			envValue:     "not-a-bool",
			defaultValue: true,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty string",
			key:          "TEST_BOOL_EMPTY",
			envValue:     "",
			defaultValue: false,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is 'yes'",
			key:          "TEST_BOOL_YES",
			envValue:     "yes",
			defaultValue: false,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is 'no'",
			key:          "TEST_BOOL_NO",
			envValue:     "no",
			defaultValue: true,
			want:         true,
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v (env: %q)", tt.key, tt.defaultValue, got, tt.want, tt.envValue)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int64
		want         int64
		setEnv       bool
	}{
		{"Returns default when not set", "", 2048, 2048, false},
		{"Parses valid integer", "512", 2048, 512, true},
		{"Parses negative integer", "-1", 2048, -1, true},
		{"Returns default for non-integer", "abc", 2048, 2048, true},
		{"Returns default for float", "1.5", 2048, 2048, true},
		{"Returns default for empty", "", 100, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_INT64_VAR"
			if tt.setEnv {
				t.Setenv(key, tt.envValue)
			}

			got := getEnvInt64(key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt64(%q, %d) = %d, want %d (env: %q)", key, tt.defaultValue, got, tt.want, tt.envValue)
			}
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue float64
		want         float64
		setEnv       bool
	}{
		{"Returns default when not set", "", 0.85, 0.85, false},
		{"Parses valid float", "0.5", 0.85, 0.5, true},
		{"Parses integer as float", "1", 0.85, 1.0, true},
		{"Returns default for invalid", "high", 0.85, 0.85, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_FLOAT_VAR"
			if tt.setEnv {
				t.Setenv(key, tt.envValue)
			}

			got := getEnvFloat(key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvFloat(%q, %g) = %g, want %g (env: %q)", key, tt.defaultValue, got, tt.want, tt.envValue)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		want         time.Duration
		setEnv       bool
	}{
		{"Returns default when not set", "", time.Hour, time.Hour, false},
		{"Parses minutes", "30m", time.Hour, 30 * time.Minute, true},
		{"Parses compound duration", "1h30m", time.Hour, 90 * time.Minute, true},
		{"Parses seconds", "45s", time.Hour, 45 * time.Second, true},
		{"Returns default for bare number", "30", time.Hour, time.Hour, true},
		{"Returns default for invalid", "soon", time.Hour, time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_DURATION_VAR"
			if tt.setEnv {
				t.Setenv(key, tt.envValue)
			}

			got := getEnvDuration(key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration(%q, %v) = %v, want %v (env: %q)", key, tt.defaultValue, got, tt.want, tt.envValue)
			}
		})
	}
}

func TestFormatBytesStartup(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{
			name:     "Zero bytes",
			bytes:    0,
			expected: "0 B",
		},
		{
			name:     "Less than 1KB",
			bytes:    512,
			expected: "512 B",
		},
		{
			name:     "Exactly 1KB",
			bytes:    1024,
			expected: "1.0 KiB",
		},
		{
			name:     "Multiple KBs",
			bytes:    5120,
			expected: "5.0 KiB",
		},
		{
			name:     "Fractional KB",
			bytes:    1536,
			expected: "1.5 KiB",
		},
		{
			name:     "Exactly 1MB",
			bytes:    1048576,
			expected: "1.0 MiB",
		},
		{
			name:     "Multiple MBs",
			bytes:    10485760,
			expected: "10.0 MiB",
		},
		{
			name:     "Fractional MB",
			bytes:    1572864,
			expected: "1.5 MiB",
		},
		{
			name:     "Exactly 1GB",
			bytes:    1073741824,
			expected: "1.0 GiB",
		},
		{
			name:     "Multiple GBs",
			bytes:    5368709120,
			expected: "5.0 GiB",
		},
		{
			name:     "Fractional GB",
			bytes:    1610612736,
			expected: "1.5 GiB",
		},
		{
			name:     "Exactly 1TB",
			bytes:    1099511627776,
			expected: "1.0 TiB",
		},
		{
			name:     "Exactly 1PB",
			bytes:    1125899906842624,
			expected: "1.0 PiB",
		},
		{
			name:     "Exactly 1EB",
			bytes:    1152921504606846976,
			expected: "1.0 EiB",
		},
		{
			name:     "Large value",
			bytes:    123456789012,
			expected: "115.0 GiB",
		},
		{
			name:     "Default upload cap",
			bytes:    2048 * 1024 * 1024,
			expected: "2.0 GiB",
		},
		{
			name:     "Small fractional value",
			bytes:    10737418, // ~10.2 MiB
			expected: "10.2 MiB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatBytesStartup(tt.bytes)
			if result != tt.expected {
				t.Errorf("formatBytesStartup(%d) = %q, expected %q", tt.bytes, result, tt.expected)
			}
		})
	}
}

func TestFormatBytesStartup_AllUnits(t *testing.T) {
	units := []struct {
		name  string
		bytes int64
		unit  string
	}{
		{"Bytes", 100, "B"},
		{"KiB", 2048, "KiB"},
		{"MiB", 2097152, "MiB"},
		{"GiB", 2147483648, "GiB"},
		{"TiB", 2199023255552, "TiB"},
		{"PiB", 2251799813685248, "PiB"},
		{"EiB", 2305843009213693952, "EiB"},
	}

	for _, tt := range units {
		t.Run(tt.name, func(t *testing.T) {
			result := formatBytesStartup(tt.bytes)
			// Check that the result contains the expected unit
			containsUnit := false
			for i := 0; i <= len(result)-len(tt.unit); i++ {
				if result[i:i+len(tt.unit)] == tt.unit {
					containsUnit = true
					break
				}
			}
			if !containsUnit {
				t.Errorf("Expected result to contain unit %q, got %q", tt.unit, result)
			}
		})
	}
}

func TestCDNInfoStruct(t *testing.T) {
	info := CDNInfo{
		Enabled:       true,
		Endpoint:      "https://sfo3.digitaloceanspaces.com",
		Region:        "sfo3",
		Bucket:        "videos",
		PublicBaseURL: "https://cdn.example.com",
		PresignTTL:    24 * time.Hour,
	}

	if !info.Enabled {
		t.Error("Expected Enabled to be true")
	}

	if info.Endpoint != "https://sfo3.digitaloceanspaces.com" {
		t.Errorf("Expected Endpoint to round-trip, got %q", info.Endpoint)
	}

	if info.Bucket != "videos" {
		t.Errorf("Expected Bucket='videos', got %q", info.Bucket)
	}

	if info.PresignTTL != 24*time.Hour {
		t.Errorf("Expected PresignTTL=24h, got %v", info.PresignTTL)
	}
}

func TestLogCDNInit_Disabled(_ *testing.T) {
	// Should not panic when called with a disabled CDN
	LogCDNInit(CDNInfo{Enabled: false})
}

func TestLogCDNInit_Enabled(_ *testing.T) {
	// Should not panic
	LogCDNInit(CDNInfo{
		Enabled:  true,
		Endpoint: "https://s3.example.com",
		Region:   "us-east-1",
		Bucket:   "videos",
	})
}

func TestLogCDNInit_PresignMode(_ *testing.T) {
	// Should not panic when no public base URL is configured
	LogCDNInit(CDNInfo{
		Enabled:    true,
		Endpoint:   "https://s3.example.com",
		Region:     "us-east-1",
		Bucket:     "videos",
		PresignTTL: time.Hour,
	})
}

func TestLogCDNInitComplete(_ *testing.T) {
	// Should not panic
	LogCDNInitComplete()
}

func TestLogCDNInitError(_ *testing.T) {
	// Should not panic
	LogCDNInitError(nil)
}

func TestLogAuthInit_Disabled(_ *testing.T) {
	// Should not panic
	LogAuthInit(false)
}

func TestLogAuthInit_Enabled(_ *testing.T) {
	// Should not panic
	LogAuthInit(true)
}

func TestScratchInfoStruct(t *testing.T) {
	info := ScratchInfo{
		Dir:           "/tmp/video-compress",
		TotalBytes:    107374182400,
		FreeBytes:     53687091200,
		HighWater:     0.85,
		CriticalWater: 0.95,
	}

	if info.Dir != "/tmp/video-compress" {
		t.Errorf("Expected Dir to round-trip, got %q", info.Dir)
	}

	if info.TotalBytes != 107374182400 {
		t.Errorf("Expected TotalBytes=107374182400, got %d", info.TotalBytes)
	}

	if info.HighWater != 0.85 {
		t.Errorf("Expected HighWater=0.85, got %f", info.HighWater)
	}
}

func TestLogScratchInit(_ *testing.T) {
	// Should not panic
	LogScratchInit(ScratchInfo{
		Dir:           "/tmp/video-compress",
		TotalBytes:    107374182400,
		FreeBytes:     53687091200,
		HighWater:     0.85,
		CriticalWater: 0.95,
	})
}

func TestLogScratchInit_NoSizes(_ *testing.T) {
	// Should not panic when filesystem sizes are unknown
	LogScratchInit(ScratchInfo{
		Dir:           "/tmp/video-compress",
		HighWater:     0.85,
		CriticalWater: 0.95,
	})
}

func TestBuildInfoStruct(t *testing.T) {
	info := BuildInfo{
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildTime: "2026-01-01",
		GoVersion: "go1.21.0",
		OS:        "linux",
		Arch:      "amd64",
	}

	if info.Version != "1.0.0" {
		t.Errorf("Expected Version='1.0.0', got %q", info.Version)
	}

	if info.Commit != "abc123" {
		t.Errorf("Expected Commit='abc123', got %q", info.Commit)
	}

	if info.BuildTime != "2026-01-01" {
		t.Errorf("Expected BuildTime='2026-01-01', got %q", info.BuildTime)
	}

	if info.GoVersion != "go1.21.0" {
		t.Errorf("Expected GoVersion='go1.21.0', got %q", info.GoVersion)
	}

	if info.OS != "linux" {
		t.Errorf("Expected OS='linux', got %q", info.OS)
	}

	if info.Arch != "amd64" {
		t.Errorf("Expected Arch='amd64', got %q", info.Arch)
	}
}

func BenchmarkGetEnv(b *testing.B) {
	b.Setenv("BENCH_TEST_VAR", "test-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnv("BENCH_TEST_VAR", "default")
	}
}

func BenchmarkGetEnvBool(b *testing.B) {
	b.Setenv("BENCH_TEST_BOOL", "true")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnvBool("BENCH_TEST_BOOL", false)
	}
}

func BenchmarkFormatBytesStartup(b *testing.B) {
	testBytes := int64(1234567890)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = formatBytesStartup(testBytes)
	}
}

func BenchmarkFormatBytesStartup_SmallValue(b *testing.B) {
	testBytes := int64(512)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = formatBytesStartup(testBytes)
	}
}
