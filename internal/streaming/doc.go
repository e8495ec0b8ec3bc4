/*
Package streaming provides timeout-protected streaming of compressed
artifacts to HTTP clients.

A slow or disconnected client receiving a multi-gigabyte artifact can
otherwise pin a connection (and the scratch files behind it) indefinitely.
TimeoutWriter wraps http.ResponseWriter with per-write timeouts, idle
detection and chunked writes so stalled downloads are terminated instead of
accumulating.

# Usage

The synchronous compress response and the job download endpoint both stream
through StreamWithTimeout:

	f, err := os.Open(artifactPath)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	config := streaming.DefaultTimeoutWriterConfig()
	err = streaming.StreamWithTimeout(r.Context(), w, f, config)
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("artifact stream failed: %v", err)
	}

# Errors

Three sentinel errors classify stream endings:

  - ErrWriteTimeout: a single write exceeded WriteTimeout (client too slow)
  - ErrClientGone: the request context was canceled (client disconnected)
  - ErrStreamCanceled: the stream was closed programmatically

ErrClientGone is the normal case for a user hitting cancel mid-download and
is not logged as a server error.

# Configuration

TimeoutWriterConfig controls WriteTimeout (per-write bound), IdleTimeout
(maximum gap between successful writes), MaxDuration (absolute cap, 0 =
unlimited), ChunkSize (large writes are split so cancelation is checked
between chunks) and an optional OnProgress callback.

TimeoutWriter is safe for concurrent use; the idle checker runs in its own
goroutine and exits when the stream ends.
*/
package streaming
