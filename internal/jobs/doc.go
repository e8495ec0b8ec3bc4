// Package jobs runs the compression pipeline.
//
// A Manager owns a fixed-width worker pool. Submit queues a job and returns
// immediately; RunSync pushes one through the same pipeline on the caller's
// goroutine for the synchronous endpoint. Either way a job moves through
// queued, probing, encoding and (when a CDN upload was requested) uploading
// before landing in completed, failed or canceled. Every transition is
// persisted, so the job list survives restarts; rows left mid-flight by a
// crash are failed by the store's FailInterrupted before the manager starts.
//
// Live jobs keep an in-memory Snapshot (state, percent, fps, speed) that
// Progress serves without touching the database, and an event fanout that
// Subscribe attaches to for SSE relaying. Sends to subscribers never block:
// a slow consumer misses intermediate snapshots. The subscriber channel is
// closed when the job reaches a terminal state; a close without a preceding
// done or error event means the final record must be read from the store.
//
// A janitor goroutine deletes finished jobs and their scratch directories
// once they outlive the retention TTL, expires stale probe cache entries,
// and removes orphaned scratch directories whose jobs no longer exist.
//
// Stop cancels every live job, which kills their ffmpeg processes through
// context cancelation, and waits for the workers to drain.
package jobs
