package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// InsertJob persists a newly accepted job. The job's state defaults to
// queued when unset; CreatedAt and UpdatedAt are stamped here so the
// returned struct matches the stored row.
func (d *Database) InsertJob(ctx context.Context, job *Job) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_job", start, err) }()

	if job.ID == "" {
		err = fmt.Errorf("job ID is required")
		return err
	}
	if job.State == "" {
		job.State = StateQueued
	}
	if job.Params == "" {
		job.Params = "{}"
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now()
	_, err = d.db.ExecContext(opCtx, `
		INSERT INTO jobs (id, state, source_kind, source_name, source_url, params, input_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.State), string(job.SourceKind), job.SourceName,
		job.SourceURL, job.Params, job.InputSize, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

// GetJob returns a single job by ID, or ErrNotFound.
func (d *Database) GetJob(ctx context.Context, id string) (*Job, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_job", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var job Job
	var state, sourceKind string
	var createdAt, updatedAt int64
	var finishedAt sql.NullInt64

	err = d.db.QueryRowContext(opCtx, `
		SELECT id, state, source_kind, source_name, source_url, params,
		       input_size, output_size, duration_seconds, progress, error,
		       cdn_url, output_path, created_at, updated_at, finished_at
		FROM jobs WHERE id = ?`, id,
	).Scan(
		&job.ID, &state, &sourceKind, &job.SourceName, &job.SourceURL, &job.Params,
		&job.InputSize, &job.OutputSize, &job.Duration, &job.Progress, &job.Error,
		&job.CDNURL, &job.OutputPath, &createdAt, &updatedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.State = JobState(state)
	job.SourceKind = SourceKind(sourceKind)
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		job.FinishedAt = &t
	}

	return &job, nil
}

// UpdateJobState transitions a job to a new state. The optional update
// carries fields that became known during the transition (probe results,
// input size, a non-terminal error note). Returns ErrNotFound when the
// job no longer exists.
func (d *Database) UpdateJobState(ctx context.Context, id string, state JobState, upd *StateUpdate) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_job_state", start, err) }()

	if !state.Valid() {
		err = fmt.Errorf("invalid job state %q", state)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	setClauses := []string{"state = ?", "updated_at = ?"}
	args := []interface{}{string(state), time.Now().Unix()}

	if upd != nil {
		if upd.Error != "" {
			setClauses = append(setClauses, "error = ?")
			args = append(args, upd.Error)
		}
		if upd.InputSize > 0 {
			setClauses = append(setClauses, "input_size = ?")
			args = append(args, upd.InputSize)
		}
		if upd.Duration > 0 {
			setClauses = append(setClauses, "duration_seconds = ?")
			args = append(args, upd.Duration)
		}
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = ?", strings.Join(setClauses, ", "))

	result, err := d.db.ExecContext(opCtx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job state: %w", err)
	}

	affected, raErr := result.RowsAffected()
	if raErr == nil && affected == 0 {
		err = ErrNotFound
		return err
	}

	return nil
}

// UpdateJobProgress records encode progress (0-100) for a running job.
// Values outside the range are clamped. Returns ErrNotFound when the job
// no longer exists, which signals the worker to stop reporting.
func (d *Database) UpdateJobProgress(ctx context.Context, id string, progress float64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_job_progress", start, err) }()

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(opCtx,
		"UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?",
		progress, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	affected, raErr := result.RowsAffected()
	if raErr == nil && affected == 0 {
		err = ErrNotFound
		return err
	}

	return nil
}

// FinishJob moves a job into a terminal state and records its outcome.
// Progress is forced to 100 on success so late progress events cannot
// leave a completed job showing 97%.
func (d *Database) FinishJob(ctx context.Context, id string, state JobState, res FinishResult) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("finish_job", start, err) }()

	if !state.Terminal() {
		err = fmt.Errorf("finish requires a terminal state, got %q", state)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().Unix()
	query := `
		UPDATE jobs
		SET state = ?, output_size = ?, output_path = ?, cdn_url = ?, error = ?,
		    finished_at = ?, updated_at = ?`
	args := []interface{}{
		string(state), res.OutputSize, res.OutputPath, res.CDNURL, res.Error, now, now,
	}

	if state == StateCompleted {
		query += `, progress = 100`
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := d.db.ExecContext(opCtx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}

	affected, raErr := result.RowsAffected()
	if raErr == nil && affected == 0 {
		err = ErrNotFound
		return err
	}

	return nil
}

// ListJobs returns a page of jobs, optionally filtered by state.
func (d *Database) ListJobs(ctx context.Context, opts ListOptions) (*JobListing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_jobs", start, err) }()

	logging.Debug("ListJobs called: state=%q sort=%q order=%q", opts.State, opts.SortField, opts.SortOrder)

	if opts.State != "" && !opts.State.Valid() {
		err = fmt.Errorf("invalid state filter %q", opts.State)
		return nil, err
	}

	// Default pagination
	if opts.Limit < 1 {
		opts.Limit = 100
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Get total count
	var totalItems int
	countQuery := `SELECT COUNT(*) FROM jobs`
	countArgs := []interface{}{}

	if opts.State != "" {
		countQuery += ` WHERE state = ?`
		countArgs = append(countArgs, string(opts.State))
	}

	err = d.db.QueryRowContext(opCtx, countQuery, countArgs...).Scan(&totalItems)
	if err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	// Build sort clause
	sortColumn := "created_at"
	switch opts.SortField {
	case SortByUpdated:
		sortColumn = "updated_at"
	case SortBySize:
		sortColumn = "input_size"
	}

	sortDir := "DESC"
	if opts.SortOrder == SortAsc {
		sortDir = "ASC"
	}

	selectQuery := `
		SELECT id, state, source_kind, source_name, source_url, params,
		       input_size, output_size, duration_seconds, progress, error,
		       cdn_url, output_path, created_at, updated_at, finished_at
		FROM jobs`
	selectArgs := []interface{}{}

	if opts.State != "" {
		selectQuery += ` WHERE state = ?`
		selectArgs = append(selectArgs, string(opts.State))
	}

	selectQuery += fmt.Sprintf(` ORDER BY %s %s LIMIT ? OFFSET ?`, sortColumn, sortDir)
	selectArgs = append(selectArgs, opts.Limit, opts.Offset)

	rows, err := d.db.QueryContext(opCtx, selectQuery, selectArgs...)
	if err != nil {
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		var job Job
		var state, sourceKind string
		var createdAt, updatedAt int64
		var finishedAt sql.NullInt64

		if err = rows.Scan(
			&job.ID, &state, &sourceKind, &job.SourceName, &job.SourceURL, &job.Params,
			&job.InputSize, &job.OutputSize, &job.Duration, &job.Progress, &job.Error,
			&job.CDNURL, &job.OutputPath, &createdAt, &updatedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		job.State = JobState(state)
		job.SourceKind = SourceKind(sourceKind)
		job.CreatedAt = time.Unix(createdAt, 0)
		job.UpdatedAt = time.Unix(updatedAt, 0)
		if finishedAt.Valid {
			t := time.Unix(finishedAt.Int64, 0)
			job.FinishedAt = &t
		}

		jobs = append(jobs, job)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &JobListing{
		Jobs:       jobs,
		TotalItems: totalItems,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}, nil
}

// DeleteJob removes a job row. Callers are responsible for removing any
// scratch artifacts first (see GetJob for the output path).
func (d *Database) DeleteJob(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_job", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(opCtx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	affected, raErr := result.RowsAffected()
	if raErr == nil && affected == 0 {
		err = ErrNotFound
		return err
	}

	return nil
}

// CountJobsByState returns job counts grouped by lifecycle state.
// States with no jobs are absent from the map.
func (d *Database) CountJobsByState(ctx context.Context) (map[JobState]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_jobs_by_state", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(opCtx, "SELECT state, COUNT(*) FROM jobs GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobState]int)
	for rows.Next() {
		var state string
		var count int
		if err = rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		counts[JobState(state)] = count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

// FailInterrupted marks every non-terminal job as failed. Called once at
// startup: any job that was queued or running when the previous process
// exited can never make progress again, and leaving it in a running state
// would wedge clients polling for completion.
func (d *Database) FailInterrupted(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("fail_interrupted", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().Unix()
	result, err := d.db.ExecContext(opCtx, `
		UPDATE jobs
		SET state = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE state IN (?, ?, ?, ?)`,
		string(StateFailed), "interrupted by restart", now, now,
		string(StateQueued), string(StateProbing), string(StateEncoding), string(StateUploading),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}

	affected, raErr := result.RowsAffected()
	if raErr != nil {
		return 0, nil
	}

	if affected > 0 {
		metrics.DBRowsAffected.WithLabelValues("fail_interrupted").Observe(float64(affected))
	}

	return affected, nil
}

// PruneJobs deletes terminal jobs that finished before the cutoff and
// returns their IDs and output paths so the caller can remove the
// artifacts from scratch space. Selection and deletion happen in one
// transaction so a path is never reported without its row being gone.
func (d *Database) PruneJobs(ctx context.Context, cutoff time.Time) ([]PrunedJob, error) {
	tx, txStart, err := d.BeginBatch()
	if err != nil {
		return nil, fmt.Errorf("failed to begin prune transaction: %w", err)
	}

	pruned, err := d.collectPrunable(ctx, tx, cutoff)
	if err == nil && len(pruned) > 0 {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?",
			cutoff.Unix(),
		)
		if err != nil {
			err = fmt.Errorf("failed to delete pruned jobs: %w", err)
		}
	}

	if err != nil {
		if endErr := d.EndBatch(tx, txStart, err); endErr != nil {
			return nil, endErr
		}
		return nil, err
	}

	// A prune pass is a cleanup transaction, not a user write
	metrics.DBTransactionDuration.WithLabelValues("cleanup").Observe(time.Since(txStart).Seconds())

	commitStart := time.Now()
	commitErr := tx.Commit()
	recordQuery("commit", commitStart, commitErr)
	if commitErr != nil {
		return nil, fmt.Errorf("failed to commit prune transaction: %w", commitErr)
	}

	if len(pruned) > 0 {
		metrics.DBRowsAffected.WithLabelValues("prune_jobs").Observe(float64(len(pruned)))
		logging.Info("Pruned %d job(s) finished before %s", len(pruned), cutoff.Format(time.RFC3339))
	}

	return pruned, nil
}

// collectPrunable runs inside the prune transaction; statement metrics are
// covered by the transaction-level observations.
func (d *Database) collectPrunable(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]PrunedJob, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT id, output_path FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?",
		cutoff.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select prunable jobs: %w", err)
	}
	defer rows.Close()

	var pruned []PrunedJob
	for rows.Next() {
		var p PrunedJob
		if err := rows.Scan(&p.ID, &p.OutputPath); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		pruned = append(pruned, p)
	}

	return pruned, rows.Err()
}
