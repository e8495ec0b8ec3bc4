// Package fetch downloads remote source videos into the scratch area.
//
// A Fetcher wraps a tuned http.Client and enforces the configured size cap
// twice: once against the advertised Content-Length (via a HEAD preflight and
// again on the GET response) and once against the actual bytes transferred,
// so a lying server cannot fill the disk.
//
// Transient failures (HTTP 429/502/503/504, connection resets, timeouts) are
// retried with exponential backoff. Rate-limit responses are additionally
// reported to the Observer so throttling by upstreams is visible in metrics.
//
// Usage:
//
//	fetcher := fetch.New(2 << 30) // 2 GiB cap
//	result, err := fetcher.Download(ctx, "https://example.com/clip.mp4", "/scratch/job-1/source.mp4")
//	if err != nil {
//		return err
//	}
//	logging.Info("Fetched %s (%d bytes)", result.Filename, result.Size)
//
// Instrumentation is injected at startup via SetDefaultObserver; without it
// all events are dropped. The metrics package provides the production
// implementation.
package fetch
