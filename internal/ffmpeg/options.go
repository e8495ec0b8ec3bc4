package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/wbt-web-support/video-compress/internal/mediatypes"
)

// Encoding defaults applied by Normalize when the caller leaves fields unset.
const (
	DefaultCRF          = 28
	DefaultPreset       = "veryfast"
	DefaultAudioBitrate = "128k"
)

// MinOutputBytes is the smallest artifact size considered a successful encode.
// FFmpeg can exit zero after writing only a container header when the input
// is truncated or the mapping matched no streams.
const MinOutputBytes = 1024

// Options describes a single compression request after form/JSON parsing.
// The zero value is not usable; start from DefaultOptions so that unset CRF
// (-1) is distinguishable from lossless (0).
type Options struct {
	// VideoCodec is one of h264, h265, vp9, copy.
	VideoCodec string `json:"video_codec"`
	// CRF is the constant rate factor, 0-51. -1 means unset.
	CRF int `json:"crf"`
	// Quality is a 1-100 percentage, an alternative to CRF. 0 means unset.
	Quality int `json:"quality"`
	// Preset is an x264/x265 preset name (ultrafast..veryslow).
	Preset string `json:"preset"`
	// Resolution is a named target height ("720p") or empty to keep the source.
	Resolution string `json:"resolution"`
	// SpeedMode is a coarse profile: ultra_fast, fast, balanced, quality.
	SpeedMode string `json:"speed_mode"`
	// AudioCodec is one of aac, opus, copy, none.
	AudioCodec string `json:"audio_codec"`
	// AudioBitrate is an ffmpeg bitrate string such as "128k".
	AudioBitrate string `json:"audio_bitrate"`
	// Container is the output container format.
	Container mediatypes.Container `json:"container"`
}

// DefaultOptions returns an Options with nothing decided yet.
func DefaultOptions() Options {
	return Options{CRF: -1}
}

// videoEncoders maps codec names to ffmpeg encoder names.
var videoEncoders = map[string]string{
	"h264": "libx264",
	"h265": "libx265",
	"vp9":  "libvpx-vp9",
	"copy": "copy",
}

// audioEncoders maps audio codec names to ffmpeg encoder names.
var audioEncoders = map[string]string{
	"aac":  "aac",
	"opus": "libopus",
	"copy": "copy",
	"none": "",
}

// resolutionHeights maps named resolutions to target heights. Widths are left
// to scale=-2:h so the source aspect ratio survives.
var resolutionHeights = map[string]int{
	"144p":  144,
	"240p":  240,
	"360p":  360,
	"480p":  480,
	"720p":  720,
	"1080p": 1080,
	"1440p": 1440,
	"2160p": 2160,
}

// validPresets is the x264/x265 preset ladder.
var validPresets = map[string]bool{
	"ultrafast": true,
	"superfast": true,
	"veryfast":  true,
	"faster":    true,
	"fast":      true,
	"medium":    true,
	"slow":      true,
	"slower":    true,
	"veryslow":  true,
}

type speedProfile struct {
	crf    int
	preset string
}

// speedModes are coarse quality/speed trade-off profiles for callers that
// don't want to think in CRF terms.
var speedModes = map[string]speedProfile{
	"ultra_fast": {crf: 32, preset: "ultrafast"},
	"fast":       {crf: 28, preset: "superfast"},
	"balanced":   {crf: 26, preset: "veryfast"},
	"quality":    {crf: 23, preset: "fast"},
}

// Normalize validates the options and fills defaults in place.
// Precedence for the rate factor: explicit CRF, then Quality, then the
// SpeedMode profile, then DefaultCRF. Invalid values are errors, never
// silently clamped.
func (o *Options) Normalize() error {
	if o.Container == "" {
		o.Container = mediatypes.ContainerMP4
	}
	if !o.Container.Valid() {
		return fmt.Errorf("invalid container %q (valid: mp4, webm, mkv, mov)", o.Container)
	}

	if o.VideoCodec == "" {
		if o.Container == mediatypes.ContainerWebM {
			o.VideoCodec = "vp9"
		} else {
			o.VideoCodec = "h264"
		}
	}
	if _, ok := videoEncoders[o.VideoCodec]; !ok {
		return fmt.Errorf("invalid video codec %q (valid: h264, h265, vp9, copy)", o.VideoCodec)
	}
	if o.Container == mediatypes.ContainerWebM && o.VideoCodec != "vp9" {
		return fmt.Errorf("webm output requires the vp9 codec, got %q", o.VideoCodec)
	}

	if o.SpeedMode != "" {
		prof, ok := speedModes[o.SpeedMode]
		if !ok {
			return fmt.Errorf("invalid speed mode %q (valid: ultra_fast, fast, balanced, quality)", o.SpeedMode)
		}
		if o.CRF < 0 && o.Quality == 0 {
			o.CRF = prof.crf
		}
		if o.Preset == "" {
			o.Preset = prof.preset
		}
	}

	if o.Quality != 0 {
		if o.Quality < 1 || o.Quality > 100 {
			return fmt.Errorf("quality must be between 1 and 100, got %d", o.Quality)
		}
		if o.CRF < 0 {
			o.CRF = 51 - o.Quality*51/100
		}
	}

	if o.CRF < 0 {
		o.CRF = DefaultCRF
	}
	if o.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51, got %d", o.CRF)
	}

	if o.Preset == "" {
		o.Preset = DefaultPreset
	}
	if !validPresets[o.Preset] {
		return fmt.Errorf("invalid preset %q (valid: ultrafast..veryslow)", o.Preset)
	}

	if o.Resolution != "" {
		if _, ok := resolutionHeights[o.Resolution]; !ok {
			return fmt.Errorf("invalid resolution %q (valid: 144p, 240p, 360p, 480p, 720p, 1080p, 1440p, 2160p)", o.Resolution)
		}
	}

	if o.AudioCodec == "" {
		if o.Container == mediatypes.ContainerWebM {
			o.AudioCodec = "opus"
		} else {
			o.AudioCodec = "aac"
		}
	}
	if _, ok := audioEncoders[o.AudioCodec]; !ok {
		return fmt.Errorf("invalid audio codec %q (valid: aac, opus, copy, none)", o.AudioCodec)
	}
	if o.Container == mediatypes.ContainerWebM && (o.AudioCodec == "aac" || o.AudioCodec == "copy") {
		return fmt.Errorf("audio codec %q cannot be muxed into webm (use opus or none)", o.AudioCodec)
	}
	if (o.Container == mediatypes.ContainerMP4 || o.Container == mediatypes.ContainerMOV) && o.AudioCodec == "opus" {
		return fmt.Errorf("opus audio is not reliably supported in %s output (use aac)", o.Container)
	}

	if o.AudioBitrate == "" {
		o.AudioBitrate = DefaultAudioBitrate
	}
	if !validBitrate(o.AudioBitrate) {
		return fmt.Errorf("invalid audio bitrate %q (expected a value like 128k)", o.AudioBitrate)
	}

	return nil
}

// TargetHeight returns the resolved scale height, or 0 when the source
// resolution should be kept.
func (o *Options) TargetHeight() int {
	return resolutionHeights[o.Resolution]
}

// ClearResolution drops the resize step, used when the probe shows the source
// is already at or below the requested height.
func (o *Options) ClearResolution() {
	o.Resolution = ""
}

// Summary returns a compact single-line description for logs.
func (o *Options) Summary() string {
	parts := []string{
		fmt.Sprintf("codec=%s", o.VideoCodec),
		fmt.Sprintf("crf=%d", o.CRF),
		fmt.Sprintf("preset=%s", o.Preset),
	}
	if o.Resolution != "" {
		parts = append(parts, fmt.Sprintf("resolution=%s", o.Resolution))
	}
	parts = append(parts,
		fmt.Sprintf("audio=%s", o.AudioCodec),
		fmt.Sprintf("container=%s", o.Container),
	)
	return strings.Join(parts, " ")
}

// validBitrate accepts ffmpeg-style bitrates: digits with an optional k/K/m/M
// suffix.
func validBitrate(s string) bool {
	if s == "" {
		return false
	}
	digits := s
	switch s[len(s)-1] {
	case 'k', 'K', 'm', 'M':
		digits = s[:len(s)-1]
	}
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
