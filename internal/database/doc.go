// Package database provides SQLite database operations for the video
// compression service.
//
// It handles storage and retrieval of:
//   - Compression jobs and their lifecycle state
//   - Encode outcomes (output size, artifact path, CDN URL)
//   - Cached ffprobe results keyed by source content hash
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization. Job rows survive process
// restarts; jobs that were in flight during a crash are marked failed by
// FailInterrupted at the next startup.
package database
