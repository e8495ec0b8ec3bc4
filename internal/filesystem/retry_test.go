package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestIsStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errors.New("boom"), false},
		{"ESTALE errno", syscall.ESTALE, true},
		{"wrapped ESTALE", fmt.Errorf("stat: %w", syscall.ESTALE), true},
		{"ESTALE in path error", &os.PathError{Op: "open", Path: "/work/x", Err: syscall.ESTALE}, true},
		{"ENOENT errno", syscall.ENOENT, false},
		{"EIO errno", syscall.EIO, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStaleError(tt.err); got != tt.want {
				t.Errorf("isStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatWithRetrySuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	info, err := StatWithRetry(path, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size = %d, want 4", info.Size())
	}
}

func TestStatWithRetryMissingFileNoRetry(t *testing.T) {
	start := time.Now()
	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
	})
	elapsed := time.Since(start)

	if !os.IsNotExist(err) {
		t.Fatalf("Expected a not-exist error, got %v", err)
	}
	// ENOENT is not retriable; a retried call would have slept
	if elapsed > 50*time.Millisecond {
		t.Errorf("Non-stale error took %v, should not have retried", elapsed)
	}
}

func TestOpenWithRetrySuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	f, err := OpenWithRetry(path, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry failed: %v", err)
	}
	f.Close()
}

func TestOpenWithRetryMissingFile(t *testing.T) {
	_, err := OpenWithRetry(filepath.Join(t.TempDir(), "missing"), fastConfig())
	if !os.IsNotExist(err) {
		t.Fatalf("Expected a not-exist error, got %v", err)
	}
}

func TestWithRetryExhaustsOnPersistentStale(t *testing.T) {
	calls := 0
	err := withRetry("stat", "/work/stale", fastConfig(), func() error {
		calls++
		return &os.PathError{Op: "stat", Path: "/work/stale", Err: syscall.ESTALE}
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("Expected ESTALE after exhaustion, got %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want initial attempt plus 3 retries", calls)
	}
}

func TestWithRetryRecoversAfterStale(t *testing.T) {
	calls := 0
	err := withRetry("open", "/work/flaky", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return &os.PathError{Op: "open", Path: "/work/flaky", Err: syscall.ESTALE}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()
	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff <= 0 || config.MaxBackoff < config.InitialBackoff {
		t.Errorf("Backoff config %v/%v is not sane", config.InitialBackoff, config.MaxBackoff)
	}
}
