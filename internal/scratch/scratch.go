package scratch

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// Config holds scratch disk management configuration
type Config struct {
	// Dir is the working directory whose volume is monitored
	Dir string

	// HighWaterMark is the usage ratio at which new submissions are
	// throttled (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the usage ratio at which encodes pause
	// entirely (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to check disk usage
	CheckInterval time.Duration
}

// DefaultConfig returns sensible defaults for scratch monitoring
func DefaultConfig(dir string) Config {
	return Config{
		Dir:               dir,
		HighWaterMark:     0.85,
		CriticalWaterMark: 0.95,
		CheckInterval:     10 * time.Second,
	}
}

// Monitor tracks scratch volume usage and provides backpressure signals.
// An encode can write several gigabytes of intermediate output; running
// the volume completely full corrupts every job in flight, so workers
// consult the monitor before starting and handlers consult it before
// accepting new sources.
type Monitor struct {
	config    Config
	stopChan  chan struct{}
	mu        sync.RWMutex
	usage     float64
	total     uint64
	free      uint64
	isPaused  bool
	pauseChan chan struct{}
}

// NewMonitor creates a scratch monitor and takes an initial reading so
// callers can log real numbers at startup. Fails when the directory's
// volume cannot be statted.
func NewMonitor(config Config) (*Monitor, error) {
	m := &Monitor{
		config:    config,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}

	if err := m.checkDisk(); err != nil {
		return nil, fmt.Errorf("scratch volume unavailable: %w", err)
	}

	return m, nil
}

// Start begins monitoring disk usage
func (m *Monitor) Start() {
	go m.monitorLoop()
}

// Stop stops the scratch monitor
func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.checkDisk(); err != nil {
				logging.Warn("Scratch monitor: %v", err)
			}
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkDisk() error {
	var stat unix.Statfs_t
	if err := unix.Statfs(m.config.Dir, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", m.config.Dir, err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)

	var usage float64
	if total > 0 {
		usage = 1 - float64(free)/float64(total)
	}

	m.setUsage(total, free, usage)
	return nil
}

// setUsage records a reading and applies the watermark state machine.
// Pause engages at the critical mark and releases only below the high
// mark, so usage oscillating around critical doesn't flap the workers.
func (m *Monitor) setUsage(total, free uint64, usage float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = total
	m.free = free
	m.usage = usage

	metrics.ScratchUsageRatio.Set(usage)

	if usage >= m.config.CriticalWaterMark {
		if !m.isPaused {
			logging.Warn("Scratch space critical (%.1f%% used), pausing encodes", usage*100)
			m.isPaused = true
			metrics.ScratchPaused.Set(1)
		}
	} else if usage < m.config.HighWaterMark {
		if m.isPaused {
			logging.Info("Scratch space recovered (%.1f%% used), resuming encodes", usage*100)
			m.isPaused = false
			metrics.ScratchPaused.Set(0)
			close(m.pauseChan)
			m.pauseChan = make(chan struct{})
		}
	}
}

// WaitIfPaused blocks while scratch usage is critical, returning when
// it's safe to proceed. Returns false if the monitor is stopped.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return true
	case <-m.stopChan:
		return false
	}
}

// ShouldThrottle returns true if usage is above the high water mark and
// new submissions should be rejected.
func (m *Monitor) ShouldThrottle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.usage >= m.config.HighWaterMark
}

// IsPaused returns true if encodes should be paused entirely
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetUsage returns the scratch volume usage ratio (0.0-1.0)
func (m *Monitor) GetUsage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage
}

// GetStats returns the last volume reading
func (m *Monitor) GetStats() (total, free uint64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total, m.free, m.usage
}
