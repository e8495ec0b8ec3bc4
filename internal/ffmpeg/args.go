package ffmpeg

import (
	"fmt"

	"github.com/wbt-web-support/video-compress/internal/mediatypes"
)

// vp9CPUUsed maps the x264 preset ladder onto libvpx-vp9's -cpu-used scale,
// since libvpx has no -preset option.
var vp9CPUUsed = map[string]string{
	"ultrafast": "8",
	"superfast": "6",
	"veryfast":  "5",
	"faster":    "4",
	"fast":      "3",
	"medium":    "2",
	"slow":      "1",
	"slower":    "1",
	"veryslow":  "0",
}

// BuildArgs assembles the ffmpeg argument vector for a normalized Options.
// The executor prepends its own preamble (-y, -progress pipe:2, etc.), so the
// result starts at the input and ends at the output path.
func (o *Options) BuildArgs(inputPath, outputPath string) []string {
	args := []string{"-i", inputPath}

	switch o.VideoCodec {
	case "copy":
		args = append(args, "-c:v", "copy")
	case "vp9":
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-crf", fmt.Sprintf("%d", o.CRF),
			// constant-quality mode requires an explicit zero bitrate
			"-b:v", "0",
			"-deadline", "good",
			"-cpu-used", vp9CPUUsed[o.Preset],
			"-row-mt", "1",
		)
	default: // h264, h265
		args = append(args,
			"-c:v", videoEncoders[o.VideoCodec],
			"-crf", fmt.Sprintf("%d", o.CRF),
			"-preset", o.Preset,
		)
	}

	if h := o.TargetHeight(); h > 0 && o.VideoCodec != "copy" {
		// -2 keeps the aspect ratio and rounds the width to an even value,
		// which yuv420p requires
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", h))
	}

	if o.VideoCodec != "copy" {
		args = append(args, "-pix_fmt", "yuv420p")
	}

	// QuickTime players refuse hev1-tagged h265 in mp4/mov
	if o.VideoCodec == "h265" &&
		(o.Container == mediatypes.ContainerMP4 || o.Container == mediatypes.ContainerMOV) {
		args = append(args, "-tag:v", "hvc1")
	}

	switch o.AudioCodec {
	case "none":
		args = append(args, "-an")
	case "copy":
		args = append(args, "-c:a", "copy")
	default:
		args = append(args, "-c:a", audioEncoders[o.AudioCodec], "-b:a", o.AudioBitrate)
	}

	if o.Container == mediatypes.ContainerMP4 || o.Container == mediatypes.ContainerMOV {
		// moves the moov atom to the front so playback can start mid-download
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args, "-threads", "0", outputPath)
	return args
}

// PosterArgs builds the argument vector for extracting a single poster frame
// at the given offset in seconds.
func PosterArgs(inputPath string, offsetSeconds float64, outputPath string) []string {
	return []string{
		"-ss", fmt.Sprintf("%.2f", offsetSeconds),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	}
}
