package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Job lifecycle ---
	states := []string{"queued", "probing", "encoding", "uploading", "completed", "failed", "canceled"}
	for _, state := range states {
		JobsInState.WithLabelValues(state)
	}

	for _, status := range []string{"completed", "failed", "canceled"} {
		JobsTotal.WithLabelValues(status)
	}

	transitions := [][2]string{
		{"queued", "probing"},
		{"queued", "failed"},
		{"queued", "canceled"},
		{"probing", "encoding"},
		{"probing", "failed"},
		{"probing", "canceled"},
		{"encoding", "uploading"},
		{"encoding", "completed"},
		{"encoding", "failed"},
		{"encoding", "canceled"},
		{"uploading", "completed"},
		{"uploading", "failed"},
		{"uploading", "canceled"},
	}
	for _, t := range transitions {
		JobStateTransitions.WithLabelValues(t[0], t[1])
	}

	// --- Fetch operations ---
	fetchOps := []string{"download", "head"}
	for _, op := range fetchOps {
		FetchOperationDuration.WithLabelValues(op)
		FetchOperationErrors.WithLabelValues(op)
		FetchRetryAttempts.WithLabelValues(op)
		FetchRetrySuccess.WithLabelValues(op)
		FetchRetryFailures.WithLabelValues(op)
		FetchRetryDuration.WithLabelValues(op)
		FetchThrottledTotal.WithLabelValues(op)
	}

	// --- CDN uploads ---
	for _, status := range []string{"success", "error", "canceled"} {
		CDNUploadsTotal.WithLabelValues(status)
	}

	// --- Poster generation ---
	for _, status := range []string{"success", "error"} {
		PosterGenerationsTotal.WithLabelValues(status)
	}

	// --- Authentication ---
	for _, status := range []string{"success", "failure", "missing"} {
		AuthAttemptsTotal.WithLabelValues(status)
	}

	// --- Database storage health ---
	for _, file := range []string{"main", "wal", "shm"} {
		DBStorageErrors.WithLabelValues(file)
		DBSizeBytes.WithLabelValues(file)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "insert_job", "update_job_state",
		"update_job_progress", "finish_job", "get_job", "list_jobs", "delete_job",
		"count_jobs_by_state", "fail_interrupted", "cached_probe", "store_probe",
		"prune_probe_cache", "begin_transaction", "commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback", "cleanup"} {
		DBTransactionDuration.WithLabelValues(t)
	}
}
