package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages job and probe-cache persistence for the compression service.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	stats   metrics.Stats
	statsMu sync.RWMutex
}

// New creates a new Database instance.
// IMPORTANT: dbPath should be the full path to the database FILE (e.g., "/data/jobs.db"),
// and the parent directory must already exist and be writable.
// Use startup.LoadConfig() to ensure proper directory validation before calling this.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// Use WAL mode and other optimizations
	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Allow multiple readers - increased for better concurrency under load
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Compression jobs table
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL DEFAULT 'queued',
		source_kind TEXT NOT NULL,
		source_name TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		params TEXT NOT NULL DEFAULT '{}',
		input_size INTEGER NOT NULL DEFAULT 0,
		output_size INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		progress REAL NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		cdn_url TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
	CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_updated ON jobs(updated_at);

	-- Composite index for the janitor's terminal-state-by-age scans
	CREATE INDEX IF NOT EXISTS idx_jobs_state_created ON jobs(state, created_at);

	-- Probe cache table, keyed by content hash of the source file
	CREATE TABLE IF NOT EXISTS probe_cache (
		source_hash TEXT PRIMARY KEY,
		probe_json TEXT NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_used_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_probe_cache_last_used ON probe_cache(last_used_at);
	`

	start := time.Now()
	_, err := d.db.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	if err != nil {
		return err
	}

	// Run migrations
	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: Add cdn_url column if it doesn't exist
	// Check if the column exists
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('jobs')
		WHERE name='cdn_url'
	`).Scan(&columnExists)

	if err != nil {
		return fmt.Errorf("failed to check for cdn_url column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding cdn_url column to jobs table")

		// SQLite doesn't allow expressions in ALTER TABLE ADD COLUMN DEFAULT
		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE jobs ADD COLUMN cdn_url TEXT NOT NULL DEFAULT ''
		`)
		if err != nil {
			return fmt.Errorf("failed to add cdn_url column: %w", err)
		}

		logging.Info("Migration complete: cdn_url column added")
	}

	// Migration 2: Add hits column to probe_cache if it doesn't exist
	var hitsExists bool
	err = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('probe_cache')
		WHERE name='hits'
	`).Scan(&hitsExists)

	if err != nil {
		return fmt.Errorf("failed to check for hits column: %w", err)
	}

	if !hitsExists {
		logging.Info("Migrating database: adding hits column to probe_cache table")

		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE probe_cache ADD COLUMN hits INTEGER NOT NULL DEFAULT 0
		`)
		if err != nil {
			return fmt.Errorf("failed to add hits column: %w", err)
		}

		logging.Info("Migration complete: hits column added")
	}

	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts a transaction for batch operations and returns its
// start time for EndBatch's duration metric. The caller is responsible
// for calling EndBatch when done.
// Note: Acquires write lock only during transaction begin, not for entire duration.
func (d *Database) BeginBatch() (*sql.Tx, time.Time, error) {
	// Use shorter-lived lock - only protect transaction creation
	d.mu.Lock()
	txStart := time.Now()

	// Use background context - transaction lifetime is managed by EndBatch, not a timeout.
	// The timeout context pattern doesn't work here because defer cancel() would
	// cancel the transaction immediately when this function returns.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock() // Release lock immediately after transaction starts

	recordQuery("begin_transaction", txStart, err)
	if err != nil {
		return nil, time.Time{}, err
	}

	return tx, txStart, nil
}

// EndBatch commits or rolls back a transaction. started is the time
// BeginBatch returned; carrying it per transaction keeps concurrent
// batches from clobbering each other's duration metric.
func (d *Database) EndBatch(tx *sql.Tx, started time.Time, err error) error {
	duration := time.Since(started).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbStart := time.Now()
		rbErr := tx.Rollback()
		recordQuery("rollback", rbStart, rbErr)
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	commitStart := time.Now()
	commitErr := tx.Commit()
	recordQuery("commit", commitStart, commitErr)
	return commitErr
}

// recordQuery records query metrics for an operation
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// GetStats returns current job counts by state. Counts come from a live
// query; when that fails (e.g. during heavy write load) the last known
// values are served instead so the metrics collector never blocks.
func (d *Database) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	counts, err := d.CountJobsByState(ctx)
	if err != nil {
		logging.Debug("Job stats query failed, serving cached values: %v", err)
		d.statsMu.RLock()
		defer d.statsMu.RUnlock()
		return d.stats
	}

	stats := metrics.Stats{
		Queued:    counts[StateQueued],
		Probing:   counts[StateProbing],
		Encoding:  counts[StateEncoding],
		Uploading: counts[StateUploading],
		Completed: counts[StateCompleted],
		Failed:    counts[StateFailed],
		Canceled:  counts[StateCanceled],
	}

	d.statsMu.Lock()
	d.stats = stats
	d.statsMu.Unlock()

	return stats
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// CheckStorageHealth verifies the SQLite files are still writable and
// attempts to repair permissions when they are not. SQLite under WAL mode
// fails every write once the -wal or -shm sidecar loses its write bit, so
// this runs from the metrics collector loop rather than only at startup.
// Missing sidecar files are normal after a clean checkpoint and are ignored.
func (d *Database) CheckStorageHealth() {
	files := []struct {
		path  string
		label string
	}{
		{d.dbPath, "main"},
		{d.dbPath + "-wal", "wal"},
		{d.dbPath + "-shm", "shm"},
	}

	for _, f := range files {
		info, err := os.Stat(f.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			metrics.DBStorageErrors.WithLabelValues(f.label).Inc()
			logging.Warn("Storage health: cannot stat %s file %s: %v", f.label, f.path, err)
			continue
		}

		if info.Mode().Perm()&0o200 == 0 {
			metrics.DBStorageErrors.WithLabelValues(f.label).Inc()
			logging.Warn("Storage health: %s file is read-only (mode: %v) - attempting fix", f.label, info.Mode())
			if chmodErr := os.Chmod(f.path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s file permissions: %v", f.label, chmodErr)
			} else {
				logging.Info("Fixed %s file permissions", f.label)
			}
		}
	}
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	// Check directory permissions
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	// Check if directory is writable by testing
	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile) // Explicitly ignore cleanup error
	logging.Debug("Database directory is writable")

	// Check main database file
	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// Check WAL file
	walPath := dbPath + "-wal"
	if walInfo, err := os.Stat(walPath); err == nil {
		logging.Debug("WAL file exists: %s (mode: %v, size: %d bytes)", walPath, walInfo.Mode(), walInfo.Size())
		if walInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("WAL file is read-only! Mode: %v - this will cause write failures", walInfo.Mode())
			// Try to fix it
			if chmodErr := os.Chmod(walPath, 0o600); chmodErr != nil {
				logging.Error("Failed to fix WAL file permissions: %v", chmodErr)
			} else {
				logging.Info("Fixed WAL file permissions")
			}
		}
	}

	// Check SHM file
	shmPath := dbPath + "-shm"
	if shmInfo, err := os.Stat(shmPath); err == nil {
		logging.Debug("SHM file exists: %s (mode: %v, size: %d bytes)", shmPath, shmInfo.Mode(), shmInfo.Size())
		if shmInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("SHM file is read-only! Mode: %v - this will cause write failures", shmInfo.Mode())
			// Try to fix it
			if chmodErr := os.Chmod(shmPath, 0o600); chmodErr != nil {
				logging.Error("Failed to fix SHM file permissions: %v", chmodErr)
			} else {
				logging.Info("Fixed SHM file permissions")
			}
		}
	}

	return nil
}
