// Package scratch monitors the working volume where uploads, fetched
// sources, and encode outputs live, and provides backpressure signals
// when it fills up.
//
// # Overview
//
// A single encode can hold three large files on disk at once: the source,
// the in-progress output, and (for URL jobs) the partially downloaded
// fetch. If the volume fills mid-encode, ffmpeg fails with short writes
// and every job in flight is lost. Rejecting new work early is much
// cheaper than failing running work late.
//
// The monitor reads volume usage on an interval and applies two
// watermarks:
//
//   - High water mark: new submissions are rejected (HTTP 507 from the
//     handlers) while running encodes continue. Checked via
//     [Monitor.ShouldThrottle].
//   - Critical water mark: workers pause before starting the next stage.
//     Checked via [Monitor.IsPaused] and [Monitor.WaitIfPaused].
//
// Pause releases only when usage falls back below the high mark, so
// usage hovering at the critical boundary does not flap the workers.
//
// # Usage
//
//	monitor, err := scratch.NewMonitor(scratch.Config{
//	    Dir:               cfg.WorkDir,
//	    HighWaterMark:     cfg.ScratchHighWater,
//	    CriticalWaterMark: cfg.ScratchCriticalWater,
//	    CheckInterval:     10 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	monitor.Start()
//	defer monitor.Stop()
//
// Watermarks come from SCRATCH_HIGH_WATER and SCRATCH_CRITICAL_WATER;
// see the startup package for validation rules.
package scratch
