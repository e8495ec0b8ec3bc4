package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// hashSampleSize is how much of each end of the file goes into the cache
// key. Sampling keeps key generation cheap for multi-gigabyte uploads;
// the key is a cache identity, not a security boundary.
const hashSampleSize = 1 << 20 // 1 MiB

// HashFile derives a probe-cache key from a source file's size and the
// first and last megabyte of its content. Files smaller than two samples
// are hashed in full.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file for hashing: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%d:", info.Size())

	if info.Size() <= 2*hashSampleSize {
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("failed to hash file: %w", err)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	if _, err := io.CopyN(h, f, hashSampleSize); err != nil {
		return "", fmt.Errorf("failed to hash file head: %w", err)
	}

	if _, err := f.Seek(-hashSampleSize, io.SeekEnd); err != nil {
		return "", fmt.Errorf("failed to seek file tail: %w", err)
	}
	if _, err := io.CopyN(h, f, hashSampleSize); err != nil {
		return "", fmt.Errorf("failed to hash file tail: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// CachedProbe looks up stored probe output by source hash. A hit bumps
// the entry's usage counters; the bump is best-effort and not
// transactional with the read.
func (d *Database) CachedProbe(ctx context.Context, hash string) (string, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("cached_probe", start, err) }()

	d.mu.RLock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var probeJSON string
	err = d.db.QueryRowContext(opCtx,
		"SELECT probe_json FROM probe_cache WHERE source_hash = ?", hash,
	).Scan(&probeJSON)
	d.mu.RUnlock()

	if err == sql.ErrNoRows {
		err = nil
		metrics.ProbeCacheMisses.Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("probe cache lookup failed: %w", err)
	}

	metrics.ProbeCacheHits.Inc()

	d.mu.Lock()
	_, updErr := d.db.ExecContext(opCtx, `
		UPDATE probe_cache
		SET hits = hits + 1, last_used_at = strftime('%s', 'now')
		WHERE source_hash = ?`, hash,
	)
	d.mu.Unlock()
	if updErr != nil {
		logging.Debug("Failed to bump probe cache usage for %s: %v", hash, updErr)
	}

	return probeJSON, true, nil
}

// StoreProbe saves probe output for a source hash, replacing any previous
// entry while preserving its hit count.
func (d *Database) StoreProbe(ctx context.Context, hash, probeJSON string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("store_probe", start, err) }()

	if hash == "" {
		err = fmt.Errorf("source hash is required")
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(opCtx, `
		INSERT INTO probe_cache (source_hash, probe_json)
		VALUES (?, ?)
		ON CONFLICT(source_hash) DO UPDATE SET
			probe_json = excluded.probe_json,
			last_used_at = strftime('%s', 'now')`,
		hash, probeJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to store probe result: %w", err)
	}

	return nil
}

// PruneProbeCache removes entries not used within maxAge and returns how
// many were deleted.
func (d *Database) PruneProbeCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_probe_cache", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := d.db.ExecContext(opCtx,
		"DELETE FROM probe_cache WHERE last_used_at < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune probe cache: %w", err)
	}

	affected, raErr := result.RowsAffected()
	if raErr != nil {
		return 0, nil
	}

	if affected > 0 {
		metrics.DBRowsAffected.WithLabelValues("prune_probe_cache").Observe(float64(affected))
		logging.Debug("Pruned %d stale probe cache entries", affected)
	}

	return affected, nil
}
