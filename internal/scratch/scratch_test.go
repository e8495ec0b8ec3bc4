package scratch

import (
	"path/filepath"
	"testing"
	"time"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Dir:               t.TempDir(),
		HighWaterMark:     0.85,
		CriticalWaterMark: 0.95,
		CheckInterval:     50 * time.Millisecond,
	}
}

func TestNewMonitor(t *testing.T) {
	monitor, err := NewMonitor(testConfig(t))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	// The constructor takes an initial reading of the real volume
	total, free, usage := monitor.GetStats()
	if total == 0 {
		t.Error("Expected non-zero total bytes from initial reading")
	}
	if free > total {
		t.Errorf("Free %d exceeds total %d", free, total)
	}
	if usage < 0 || usage > 1 {
		t.Errorf("Expected usage between 0 and 1, got %f", usage)
	}
}

func TestNewMonitorMissingDir(t *testing.T) {
	config := Config{
		Dir:               filepath.Join(t.TempDir(), "does-not-exist"),
		HighWaterMark:     0.85,
		CriticalWaterMark: 0.95,
		CheckInterval:     time.Second,
	}

	if _, err := NewMonitor(config); err == nil {
		t.Fatal("NewMonitor should fail for a missing directory")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("/tmp/work")

	if config.Dir != "/tmp/work" {
		t.Errorf("Dir = %q, want /tmp/work", config.Dir)
	}
	if config.HighWaterMark != 0.85 {
		t.Errorf("HighWaterMark = %f, want 0.85", config.HighWaterMark)
	}
	if config.CriticalWaterMark != 0.95 {
		t.Errorf("CriticalWaterMark = %f, want 0.95", config.CriticalWaterMark)
	}
	if config.CheckInterval != 10*time.Second {
		t.Errorf("CheckInterval = %v, want 10s", config.CheckInterval)
	}
}

func TestMonitorStartStop(_ *testing.T) {
	config := Config{
		Dir:               "/tmp",
		HighWaterMark:     0.85,
		CriticalWaterMark: 0.95,
		CheckInterval:     50 * time.Millisecond,
	}

	monitor, err := NewMonitor(config)
	if err != nil {
		return // No /tmp on this system; nothing to test
	}

	monitor.Start()

	// Let it run briefly
	time.Sleep(100 * time.Millisecond)

	// Stop should not panic
	monitor.Stop()

	// Give goroutine time to exit
	time.Sleep(50 * time.Millisecond)
}

func TestWatermarkTransitions(t *testing.T) {
	monitor, err := NewMonitor(testConfig(t))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	tests := []struct {
		name         string
		usage        float64
		wantThrottle bool
		wantPaused   bool
	}{
		{"comfortable", 0.50, false, false},
		{"at high mark", 0.85, true, false},
		{"between marks", 0.90, true, false},
		{"critical", 0.96, true, true},
		{"back between marks keeps pause", 0.90, true, true}, // hysteresis
		{"recovered", 0.50, false, false},
		{"critical again", 0.99, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor.setUsage(1000, uint64((1-tt.usage)*1000), tt.usage)

			if got := monitor.ShouldThrottle(); got != tt.wantThrottle {
				t.Errorf("ShouldThrottle() at %.2f = %v, want %v", tt.usage, got, tt.wantThrottle)
			}
			if got := monitor.IsPaused(); got != tt.wantPaused {
				t.Errorf("IsPaused() at %.2f = %v, want %v", tt.usage, got, tt.wantPaused)
			}
		})
	}
}

func TestWaitIfPausedNotPaused(t *testing.T) {
	monitor, err := NewMonitor(testConfig(t))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	monitor.setUsage(1000, 500, 0.5)

	// Should return immediately without blocking
	done := make(chan bool, 1)
	go func() {
		done <- monitor.WaitIfPaused()
	}()

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitIfPaused returned false while running")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused blocked while not paused")
	}
}

func TestWaitIfPausedReleasesOnRecovery(t *testing.T) {
	monitor, err := NewMonitor(testConfig(t))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	monitor.setUsage(1000, 40, 0.96)
	if !monitor.IsPaused() {
		t.Fatal("Monitor should be paused at 96%")
	}

	done := make(chan bool, 1)
	go func() {
		done <- monitor.WaitIfPaused()
	}()

	// Waiter must still be blocked
	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	// Recovery releases the waiter
	monitor.setUsage(1000, 500, 0.5)

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitIfPaused returned false after recovery")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not release after recovery")
	}
}

func TestWaitIfPausedReleasesOnStop(t *testing.T) {
	monitor, err := NewMonitor(testConfig(t))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	monitor.setUsage(1000, 40, 0.96)

	done := make(chan bool, 1)
	go func() {
		done <- monitor.WaitIfPaused()
	}()

	monitor.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused should return false when stopped while paused")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not release on stop")
	}
}

func TestGetUsage(t *testing.T) {
	monitor, err := NewMonitor(testConfig(t))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	monitor.setUsage(1000, 250, 0.75)

	if got := monitor.GetUsage(); got != 0.75 {
		t.Errorf("GetUsage() = %f, want 0.75", got)
	}
}
