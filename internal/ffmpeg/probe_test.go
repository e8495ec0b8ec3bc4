package ffmpeg

import (
	"encoding/json"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  float64
	}{
		{"30/1", 30},
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseFrameRate(tt.input)
			if got != tt.want {
				t.Errorf("parseFrameRate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestProbeResultLayout pins the JSON field mapping against a captured
// ffprobe output so a struct tag typo cannot slip through unnoticed.
func TestProbeResultLayout(t *testing.T) {
	t.Parallel()

	raw := `{
		"streams": [
			{
				"codec_type": "video",
				"codec_name": "h264",
				"width": 1920,
				"height": 1080,
				"r_frame_rate": "30000/1001"
			},
			{
				"codec_type": "audio",
				"codec_name": "aac",
				"r_frame_rate": "0/0"
			}
		],
		"format": {
			"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
			"duration": "120.500000",
			"size": "31457280",
			"bit_rate": "2088960"
		}
	}`

	var result probeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	if result.Format.Duration != "120.500000" {
		t.Errorf("Format.Duration = %q, want 120.500000", result.Format.Duration)
	}
	if result.Format.Size != "31457280" {
		t.Errorf("Format.Size = %q, want 31457280", result.Format.Size)
	}
	if len(result.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(result.Streams))
	}
	if result.Streams[0].CodecType != "video" || result.Streams[0].CodecName != "h264" {
		t.Errorf("first stream = %+v, want video/h264", result.Streams[0])
	}
	if result.Streams[0].Width != 1920 || result.Streams[0].Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", result.Streams[0].Width, result.Streams[0].Height)
	}
	if result.Streams[1].CodecType != "audio" || result.Streams[1].CodecName != "aac" {
		t.Errorf("second stream = %+v, want audio/aac", result.Streams[1])
	}
}
