package metrics

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
)

// StatsProvider interface for collecting job statistics
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current job counts by lifecycle state
type Stats struct {
	Queued    int
	Probing   int
	Encoding  int
	Uploading int
	Completed int
	Failed    int
	Canceled  int
}

// StorageHealthChecker is implemented by the database layer to verify that
// its backing files are still writable and to refresh connection gauges.
type StorageHealthChecker interface {
	CheckStorageHealth()
	UpdateDBMetrics()
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider        StatsProvider
	dbPath               string
	workDir              string
	interval             time.Duration
	stopChan             chan struct{}
	storageHealthChecker StorageHealthChecker
	lastGCCount          uint32
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// SetWorkDir enables working directory size collection.
func (c *Collector) SetWorkDir(dir string) {
	c.workDir = dir
}

// SetStorageHealthChecker enables periodic database storage health checks.
func (c *Collector) SetStorageHealthChecker(checker StorageHealthChecker) {
	c.storageHealthChecker = checker
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	// Health checks run even without a stats provider
	if c.storageHealthChecker != nil {
		c.storageHealthChecker.CheckStorageHealth()
		c.storageHealthChecker.UpdateDBMetrics()
	}

	c.collectMemoryMetrics()
	c.collectDBSize()
	c.collectWorkDirSize()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	JobsInState.WithLabelValues("queued").Set(float64(stats.Queued))
	JobsInState.WithLabelValues("probing").Set(float64(stats.Probing))
	JobsInState.WithLabelValues("encoding").Set(float64(stats.Encoding))
	JobsInState.WithLabelValues("uploading").Set(float64(stats.Uploading))
	JobsInState.WithLabelValues("completed").Set(float64(stats.Completed))
	JobsInState.WithLabelValues("failed").Set(float64(stats.Failed))
	JobsInState.WithLabelValues("canceled").Set(float64(stats.Canceled))

	logging.Debug("Metrics collected: queued=%d, encoding=%d, completed=%d, failed=%d",
		stats.Queued, stats.Encoding, stats.Completed, stats.Failed)
}

func (c *Collector) collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))

	// NumGC is cumulative; export the delta since the last collection
	if m.NumGC > c.lastGCCount {
		GoGCRuns.Add(float64(m.NumGC - c.lastGCCount))
	}
	c.lastGCCount = m.NumGC
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}

	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			// WAL and SHM may not exist yet; that is not an error
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}

func (c *Collector) collectWorkDirSize() {
	if c.workDir == "" {
		return
	}

	size, err := c.getDirSize(c.workDir)
	if err != nil {
		logging.Debug("Failed to measure work dir %s: %v", c.workDir, err)
		WorkDirSizeBytes.Set(0)
		return
	}

	WorkDirSizeBytes.Set(float64(size))
}

func (c *Collector) getDirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// File removed mid-walk; skip it
			return nil
		}
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}
