package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	ex := New("", "")
	if ex.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q, want ffmpeg", ex.ffmpegPath)
	}
	if ex.ffprobePath != "ffprobe" {
		t.Errorf("ffprobePath = %q, want ffprobe", ex.ffprobePath)
	}
	if ex.processes == nil {
		t.Error("processes map not initialized")
	}
}

func TestNewWithPaths(t *testing.T) {
	t.Parallel()

	ex := New("/opt/ffmpeg/bin/ffmpeg", "/opt/ffmpeg/bin/ffprobe")
	if ex.ffmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("ffmpegPath = %q", ex.ffmpegPath)
	}
	if ex.ffprobePath != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("ffprobePath = %q", ex.ffprobePath)
	}
}

func TestActiveProcesses(t *testing.T) {
	t.Parallel()

	ex := New("", "")
	if got := ex.ActiveProcesses(); got != 0 {
		t.Errorf("ActiveProcesses() = %d, want 0", got)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	base := errors.New("exit status 1")

	withStderr := &ExitError{Err: base, Stderr: "No such file or directory"}
	if !strings.Contains(withStderr.Error(), "No such file") {
		t.Errorf("Error() = %q, missing stderr tail", withStderr.Error())
	}
	if !errors.Is(withStderr, base) {
		t.Error("errors.Is should unwrap to the exit error")
	}

	plain := &ExitError{Err: base}
	if !strings.Contains(plain.Error(), "exit status 1") {
		t.Errorf("Error() = %q, missing exit status", plain.Error())
	}
}

func TestValidateOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ValidateOutput(filepath.Join(dir, "nope.mp4"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("tiny file rejected", func(t *testing.T) {
		path := filepath.Join(dir, "tiny.mp4")
		if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
			t.Fatal(err)
		}
		size, err := ValidateOutput(path)
		if err == nil {
			t.Fatal("expected error for tiny output")
		}
		if size != 100 {
			t.Errorf("size = %d, want 100", size)
		}
		if !strings.Contains(err.Error(), "empty or invalid") {
			t.Errorf("error = %q, want empty-or-invalid message", err)
		}
	})

	t.Run("real file accepted", func(t *testing.T) {
		path := filepath.Join(dir, "ok.mp4")
		if err := os.WriteFile(path, make([]byte, MinOutputBytes), 0o644); err != nil {
			t.Fatal(err)
		}
		size, err := ValidateOutput(path)
		if err != nil {
			t.Fatalf("ValidateOutput() error = %v", err)
		}
		if size != MinOutputBytes {
			t.Errorf("size = %d, want %d", size, MinOutputBytes)
		}
	})
}

func TestErrTail(t *testing.T) {
	t.Parallel()

	var tail errTail
	if tail.String() != "" {
		t.Errorf("empty tail String() = %q", tail.String())
	}

	tail.add("first")
	tail.add("second")
	if got := tail.String(); got != "first\nsecond" {
		t.Errorf("String() = %q, want first\\nsecond", got)
	}

	// overflow drops the oldest lines
	for i := 0; i < maxErrTailLines*2; i++ {
		tail.add("line")
	}
	if got := len(tail.lines); got != maxErrTailLines {
		t.Errorf("len(lines) = %d, want %d", got, maxErrTailLines)
	}
	if strings.Contains(tail.String(), "first") {
		t.Error("oldest lines should have been dropped")
	}
}
