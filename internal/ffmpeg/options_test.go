package ffmpeg

import (
	"strings"
	"testing"

	"github.com/wbt-web-support/video-compress/internal/mediatypes"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if err := opts.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if opts.Container != mediatypes.ContainerMP4 {
		t.Errorf("Container = %q, want mp4", opts.Container)
	}
	if opts.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %q, want h264", opts.VideoCodec)
	}
	if opts.CRF != DefaultCRF {
		t.Errorf("CRF = %d, want %d", opts.CRF, DefaultCRF)
	}
	if opts.Preset != DefaultPreset {
		t.Errorf("Preset = %q, want %q", opts.Preset, DefaultPreset)
	}
	if opts.AudioCodec != "aac" {
		t.Errorf("AudioCodec = %q, want aac", opts.AudioCodec)
	}
	if opts.AudioBitrate != DefaultAudioBitrate {
		t.Errorf("AudioBitrate = %q, want %q", opts.AudioBitrate, DefaultAudioBitrate)
	}
}

func TestNormalizeWebMDefaults(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.Container = mediatypes.ContainerWebM
	if err := opts.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if opts.VideoCodec != "vp9" {
		t.Errorf("VideoCodec = %q, want vp9", opts.VideoCodec)
	}
	if opts.AudioCodec != "opus" {
		t.Errorf("AudioCodec = %q, want opus", opts.AudioCodec)
	}
}

func TestNormalizeRateFactorPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		crf        int
		quality    int
		speedMode  string
		wantCRF    int
		wantPreset string
	}{
		{
			name:       "explicit CRF wins over quality and speed mode",
			crf:        20,
			quality:    50,
			speedMode:  "ultra_fast",
			wantCRF:    20,
			wantPreset: "ultrafast",
		},
		{
			name:       "quality wins over speed mode",
			crf:        -1,
			quality:    50,
			speedMode:  "ultra_fast",
			wantCRF:    51 - 50*51/100,
			wantPreset: "ultrafast",
		},
		{
			name:       "speed mode alone",
			crf:        -1,
			speedMode:  "quality",
			wantCRF:    23,
			wantPreset: "fast",
		},
		{
			name:       "balanced profile",
			crf:        -1,
			speedMode:  "balanced",
			wantCRF:    26,
			wantPreset: "veryfast",
		},
		{
			name:       "nothing set falls back to defaults",
			crf:        -1,
			wantCRF:    DefaultCRF,
			wantPreset: DefaultPreset,
		},
		{
			name:       "quality 100 maps to lossless CRF",
			crf:        -1,
			quality:    100,
			wantCRF:    0,
			wantPreset: DefaultPreset,
		},
		{
			name:       "quality 1 maps to worst CRF",
			crf:        -1,
			quality:    1,
			wantCRF:    51,
			wantPreset: DefaultPreset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			opts.CRF = tt.crf
			opts.Quality = tt.quality
			opts.SpeedMode = tt.speedMode

			if err := opts.Normalize(); err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if opts.CRF != tt.wantCRF {
				t.Errorf("CRF = %d, want %d", opts.CRF, tt.wantCRF)
			}
			if opts.Preset != tt.wantPreset {
				t.Errorf("Preset = %q, want %q", opts.Preset, tt.wantPreset)
			}
		})
	}
}

func TestNormalizeExplicitPresetBeatsSpeedMode(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.SpeedMode = "ultra_fast"
	opts.Preset = "slow"
	if err := opts.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if opts.Preset != "slow" {
		t.Errorf("Preset = %q, want slow", opts.Preset)
	}
	if opts.CRF != 32 {
		t.Errorf("CRF = %d, want 32 from speed mode", opts.CRF)
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Options)
		wantSub string
	}{
		{
			name:    "bad container",
			mutate:  func(o *Options) { o.Container = "avi" },
			wantSub: "container",
		},
		{
			name:    "bad codec",
			mutate:  func(o *Options) { o.VideoCodec = "mpeg2" },
			wantSub: "video codec",
		},
		{
			name:    "CRF too high",
			mutate:  func(o *Options) { o.CRF = 52 },
			wantSub: "crf",
		},
		{
			name:    "quality too high",
			mutate:  func(o *Options) { o.Quality = 101 },
			wantSub: "quality",
		},
		{
			name:    "negative quality",
			mutate:  func(o *Options) { o.Quality = -1 },
			wantSub: "quality",
		},
		{
			name:    "bad preset",
			mutate:  func(o *Options) { o.Preset = "turbo" },
			wantSub: "preset",
		},
		{
			name:    "bad resolution",
			mutate:  func(o *Options) { o.Resolution = "999p" },
			wantSub: "resolution",
		},
		{
			name:    "bad speed mode",
			mutate:  func(o *Options) { o.SpeedMode = "warp" },
			wantSub: "speed mode",
		},
		{
			name:    "bad audio codec",
			mutate:  func(o *Options) { o.AudioCodec = "mp3" },
			wantSub: "audio codec",
		},
		{
			name:    "bad audio bitrate",
			mutate:  func(o *Options) { o.AudioBitrate = "lots" },
			wantSub: "bitrate",
		},
		{
			name: "h264 into webm",
			mutate: func(o *Options) {
				o.Container = mediatypes.ContainerWebM
				o.VideoCodec = "h264"
			},
			wantSub: "webm",
		},
		{
			name: "aac into webm",
			mutate: func(o *Options) {
				o.Container = mediatypes.ContainerWebM
				o.AudioCodec = "aac"
			},
			wantSub: "webm",
		},
		{
			name: "opus into mp4",
			mutate: func(o *Options) {
				o.Container = mediatypes.ContainerMP4
				o.AudioCodec = "opus"
			},
			wantSub: "opus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			tt.mutate(&opts)

			err := opts.Normalize()
			if err == nil {
				t.Fatal("Normalize() expected an error, got nil")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestTargetHeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		resolution string
		want       int
	}{
		{"", 0},
		{"144p", 144},
		{"360p", 360},
		{"720p", 720},
		{"1080p", 1080},
		{"2160p", 2160},
	}

	for _, tt := range tests {
		name := tt.resolution
		if name == "" {
			name = "keep source"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			opts.Resolution = tt.resolution
			if got := opts.TargetHeight(); got != tt.want {
				t.Errorf("TargetHeight() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClearResolution(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.Resolution = "720p"
	opts.ClearResolution()
	if opts.Resolution != "" {
		t.Errorf("Resolution = %q after ClearResolution, want empty", opts.Resolution)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.Resolution = "720p"
	if err := opts.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	summary := opts.Summary()
	for _, want := range []string{"codec=h264", "crf=28", "preset=veryfast", "resolution=720p", "audio=aac", "container=mp4"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}
}

func TestValidBitrate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bitrate string
		want    bool
	}{
		{"128k", true},
		{"96K", true},
		{"2M", true},
		{"64000", true},
		{"", false},
		{"k", false},
		{"12x", false},
		{"12.5k", false},
	}

	for _, tt := range tests {
		t.Run(tt.bitrate, func(t *testing.T) {
			t.Parallel()
			if got := validBitrate(tt.bitrate); got != tt.want {
				t.Errorf("validBitrate(%q) = %v, want %v", tt.bitrate, got, tt.want)
			}
		})
	}
}
