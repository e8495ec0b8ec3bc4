package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// ErrKilled reports an encode that was terminated through context
// cancelation (job canceled, timeout, shutdown) rather than by ffmpeg itself.
var ErrKilled = errors.New("ffmpeg process killed")

// ExitError reports an ffmpeg process that exited non-zero, carrying the tail
// of its stderr output.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg: %v: %s", e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Executor runs ffmpeg and ffprobe processes and tracks the live ones so
// shutdown can kill them.
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	processes   map[string]*exec.Cmd
	processMu   sync.Mutex
}

// New creates an Executor. Empty paths fall back to PATH lookup.
func New(ffmpegPath, ffprobePath string) *Executor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		processes:   make(map[string]*exec.Cmd),
	}
}

// command exists as a seam; Probe and Run both build through it.
func (e *Executor) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// RunOptions configures a single Run invocation.
type RunOptions struct {
	// Duration is the probed input duration, used to derive progress
	// percentages. 0 means unknown.
	Duration time.Duration
	// Progress receives snapshots as ffmpeg reports them. Sends never
	// block; a slow consumer misses intermediate snapshots, not the work.
	Progress chan<- Progress
}

// Run executes ffmpeg with the given argument vector, relaying progress until
// the process exits. The id keys the process registry so Cleanup and Kill can
// find it.
func (e *Executor) Run(ctx context.Context, id string, args []string, opts RunOptions) error {
	full := make([]string, 0, len(args)+8)
	full = append(full,
		"-y",
		"-hide_banner",
		"-nostats",
		"-loglevel", "error",
		"-progress", "pipe:2",
	)
	full = append(full, args...)

	logging.Debug("Running %s %s", e.ffmpegPath, strings.Join(full, " "))

	cmd := e.command(ctx, e.ffmpegPath, full...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	e.track(id, cmd)
	defer e.untrack(id)

	metrics.FFmpegProcessesActive.Inc()
	defer metrics.FFmpegProcessesActive.Dec()

	parser := &progressParser{duration: opts.Duration}
	var tail errTail

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
	for scanner.Scan() {
		line := scanner.Text()

		snapshot, complete, handled := parser.parseLine(line)
		if complete {
			if opts.Progress != nil {
				select {
				case opts.Progress <- snapshot:
				default:
				}
			}
			continue
		}
		if !handled && strings.TrimSpace(line) != "" {
			tail.add(line)
		}
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		// context cancelation beats whatever exit code the kill produced
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrKilled, ctx.Err())
		}
		return &ExitError{Err: waitErr, Stderr: tail.String()}
	}

	return nil
}

func (e *Executor) track(id string, cmd *exec.Cmd) {
	e.processMu.Lock()
	e.processes[id] = cmd
	e.processMu.Unlock()
}

func (e *Executor) untrack(id string) {
	e.processMu.Lock()
	delete(e.processes, id)
	e.processMu.Unlock()
}

// Kill terminates a single tracked process. Missing ids are not an error;
// the process may have already exited.
func (e *Executor) Kill(id string) {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	if cmd, ok := e.processes[id]; ok && cmd.Process != nil {
		logging.Info("Killing ffmpeg process for: %s", id)
		if err := cmd.Process.Kill(); err != nil {
			logging.Warn("failed to kill ffmpeg process for %s: %v", id, err)
		}
	}
}

// Cleanup stops all active ffmpeg processes. Called on shutdown.
func (e *Executor) Cleanup() {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	for id, cmd := range e.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process for: %s", id)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", id, err)
			}
		}
	}
}

// ActiveProcesses returns the number of live tracked processes.
func (e *Executor) ActiveProcesses() int {
	e.processMu.Lock()
	defer e.processMu.Unlock()
	return len(e.processes)
}

// ValidateOutput checks that an encode actually produced a playable artifact
// and returns its size. A tiny file means ffmpeg wrote little more than a
// container header before giving up.
func ValidateOutput(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("output file missing: %w", err)
	}
	if info.Size() < MinOutputBytes {
		return info.Size(), fmt.Errorf("output file seems empty or invalid (%d bytes)", info.Size())
	}
	return info.Size(), nil
}

// errTail keeps the last few non-progress stderr lines for error reporting.
type errTail struct {
	lines []string
}

const maxErrTailLines = 20

func (t *errTail) add(line string) {
	if len(t.lines) == maxErrTailLines {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:maxErrTailLines-1]
	}
	t.lines = append(t.lines, line)
}

func (t *errTail) String() string {
	return strings.Join(t.lines, "\n")
}
