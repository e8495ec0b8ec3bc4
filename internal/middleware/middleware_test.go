package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewResponseWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if rw.statusCode != http.StatusOK {
		t.Errorf("initial statusCode = %d, want %d", rw.statusCode, http.StatusOK)
	}
	if rw.bytesWritten != 0 {
		t.Errorf("initial bytesWritten = %d, want 0", rw.bytesWritten)
	}
	if rw.wroteHeader {
		t.Error("wroteHeader should be false before any write")
	}
}

func TestResponseWriterWriteHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusNotFound)
	}

	// Second WriteHeader must be ignored
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode after duplicate WriteHeader = %d, want %d", rw.statusCode, http.StatusNotFound)
	}
}

func TestResponseWriterWrite(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	n, err := rw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Write returned %d, want 5", n)
	}
	if rw.bytesWritten != 5 {
		t.Errorf("bytesWritten = %d, want 5", rw.bytesWritten)
	}

	if _, err := rw.Write([]byte(" world")); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	if rw.bytesWritten != 11 {
		t.Errorf("bytesWritten = %d, want 11", rw.bytesWritten)
	}
}

func TestSanitizeLogField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Clean string unchanged",
			input: "GET /api/jobs",
			want:  "GET /api/jobs",
		},
		{
			name:  "Newlines become spaces",
			input: "evil\nfake log line",
			want:  "evil fake log line",
		},
		{
			name:  "Carriage returns become spaces",
			input: "a\rb",
			want:  "a b",
		},
		{
			name:  "Null bytes stripped",
			input: "a\x00b",
			want:  "ab",
		},
		{
			name:  "ANSI escapes stripped",
			input: "a\x1b[31mred",
			want:  "a[31mred",
		},
		{
			name:  "Tabs preserved",
			input: "a\tb",
			want:  "a\tb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{
			name:   "API path never skipped",
			path:   "/api/jobs",
			config: DefaultLoggingConfig(),
			want:   false,
		},
		{
			name:   "Static asset skipped by default",
			path:   "/app.css",
			config: DefaultLoggingConfig(),
			want:   true,
		},
		{
			name: "Health check skipped when disabled",
			path: "/healthz",
			config: LoggingConfig{
				LogHealthChecks: false,
			},
			want: true,
		},
		{
			name:   "Health check logged by default",
			path:   "/healthz",
			config: DefaultLoggingConfig(),
			want:   false,
		},
		{
			name: "Configured skip path",
			path: "/internal/debug",
			config: LoggingConfig{
				SkipPaths:       []string{"/internal"},
				LogHealthChecks: true,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "RemoteAddr only",
			remoteAddr: "203.0.113.5:51234",
			want:       "203.0.113.5",
		},
		{
			name:       "X-Forwarded-For single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "X-Forwarded-For chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"},
			want:       "198.51.100.7",
		},
		{
			name:       "X-Real-IP fallback",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	t.Parallel()

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("queued")) //nolint:errcheck
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if rec.Body.String() != "queued" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "queued")
	}
}

func TestDefaultCompressionConfig(t *testing.T) {
	t.Parallel()

	config := DefaultCompressionConfig()

	if config.MinSize != 1024 {
		t.Errorf("MinSize = %d, want 1024", config.MinSize)
	}
	if config.Level != gzip.DefaultCompression {
		t.Errorf("Level = %d, want default", config.Level)
	}

	for _, ct := range config.CompressibleTypes {
		if strings.HasPrefix(ct, "video/") {
			t.Errorf("video type %q must not be compressible", ct)
		}
	}
}

func TestCompressionMiddleware(t *testing.T) {
	t.Parallel()

	largeJSON := `{"data":"` + strings.Repeat("x", 2048) + `"}`

	tests := []struct {
		name           string
		acceptEncoding string
		contentType    string
		body           string
		wantGzip       bool
	}{
		{
			name:           "Large JSON compressed",
			acceptEncoding: "gzip",
			contentType:    "application/json",
			body:           largeJSON,
			wantGzip:       true,
		},
		{
			name:           "Small JSON left alone",
			acceptEncoding: "gzip",
			contentType:    "application/json",
			body:           `{"ok":true}`,
			wantGzip:       false,
		},
		{
			name:           "No accept-encoding",
			acceptEncoding: "",
			contentType:    "application/json",
			body:           largeJSON,
			wantGzip:       false,
		},
		{
			name:           "Video body never compressed",
			acceptEncoding: "gzip",
			contentType:    "video/mp4",
			body:           strings.Repeat("v", 4096),
			wantGzip:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			handler.ServeHTTP(rec, req)

			gotGzip := rec.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}

			if gotGzip {
				zr, err := gzip.NewReader(rec.Body)
				if err != nil {
					t.Fatalf("invalid gzip body: %v", err)
				}
				decoded, err := io.ReadAll(zr)
				if err != nil {
					t.Fatalf("failed to read gzip body: %v", err)
				}
				if string(decoded) != tt.body {
					t.Error("decompressed body does not match original")
				}
			} else if rec.Body.String() != tt.body {
				t.Error("uncompressed body does not match original")
			}
		})
	}
}

func TestCompressionSkipsSSE(t *testing.T) {
	t.Parallel()

	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(strings.Repeat("data: x\n\n", 500))) //nolint:errcheck
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc/events", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/event-stream")
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") == "gzip" {
		t.Error("SSE responses must not be gzip-buffered")
	}
}

func TestCompressionSkipsStreamingPaths(t *testing.T) {
	t.Parallel()

	// No Accept header: the path suffix alone must bypass the wrapper
	for _, path := range []string{"/api/jobs/abc/download", "/api/jobs/abc/poster", "/api/jobs/abc/events"} {
		handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(strings.Repeat("x", 4096))) //nolint:errcheck
		}))

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Content-Encoding") == "gzip" {
			t.Errorf("%s: streaming path must bypass compression", path)
		}
	}
}

func TestDefaultMetricsConfig(t *testing.T) {
	t.Parallel()

	config := DefaultMetricsConfig()
	wantSkipped := []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"}

	if len(config.SkipPaths) != len(wantSkipped) {
		t.Fatalf("SkipPaths = %v, want %v", config.SkipPaths, wantSkipped)
	}
	for i, p := range wantSkipped {
		if config.SkipPaths[i] != p {
			t.Errorf("SkipPaths[%d] = %q, want %q", i, config.SkipPaths[i], p)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "Static path unchanged",
			path: "/api/jobs",
			want: "/api/jobs",
		},
		{
			name: "Job ID collapsed",
			path: "/api/jobs/550e8400-e29b-41d4-a716-446655440000",
			want: "/api/jobs/:id",
		},
		{
			name: "Nested job route collapsed",
			path: "/api/jobs/550e8400-e29b-41d4-a716-446655440000/events",
			want: "/api/jobs/:id/events",
		},
		{
			name: "Non-UUID segment kept",
			path: "/api/jobs/not-a-uuid",
			want: "/api/jobs/not-a-uuid",
		},
		{
			name: "Root unchanged",
			path: "/",
			want: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMetricsMiddlewareStatusCode(t *testing.T) {
	t.Parallel()

	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/550e8400-e29b-41d4-a716-446655440000/download", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestMetricsMiddlewareSkipPaths(t *testing.T) {
	t.Parallel()

	called := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("skipped paths must still reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func BenchmarkNormalizePath(b *testing.B) {
	path := "/api/jobs/550e8400-e29b-41d4-a716-446655440000/events"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		normalizePath(path)
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
