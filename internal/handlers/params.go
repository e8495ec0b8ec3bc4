package handlers

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/wbt-web-support/video-compress/internal/ffmpeg"
	"github.com/wbt-web-support/video-compress/internal/mediatypes"
)

// uploadTargetCDN is the form/JSON value selecting CDN delivery for the
// artifact instead of the response body.
const uploadTargetCDN = "cdn"

// optionsFromValues builds encode options from form or query values. The
// same keys work everywhere a request can carry parameters. CRF 0 is valid
// (lossless), so only an absent crf key leaves it unset.
func optionsFromValues(values url.Values) (ffmpeg.Options, bool, error) {
	opts := ffmpeg.DefaultOptions()

	opts.VideoCodec = values.Get("video_codec")
	opts.Preset = values.Get("preset")
	opts.Resolution = values.Get("resolution")
	opts.SpeedMode = values.Get("speed_mode")
	opts.AudioCodec = values.Get("audio_codec")
	opts.AudioBitrate = values.Get("audio_bitrate")
	opts.Container = mediatypes.Container(values.Get("format"))

	if raw := values.Get("crf"); raw != "" {
		crf, err := strconv.Atoi(raw)
		if err != nil || crf < 0 {
			return opts, false, fmt.Errorf("crf must be a non-negative integer, got %q", raw)
		}
		opts.CRF = crf
	}

	if raw := values.Get("quality"); raw != "" {
		quality, err := strconv.Atoi(raw)
		if err != nil {
			return opts, false, fmt.Errorf("quality must be an integer, got %q", raw)
		}
		opts.Quality = quality
	}

	uploadCDN := false
	switch upload := values.Get("upload"); upload {
	case "", "response":
	case uploadTargetCDN:
		uploadCDN = true
	default:
		return opts, false, fmt.Errorf("invalid upload target %q (valid: response, cdn)", upload)
	}

	// catch bad codec/preset/resolution values here so the caller sees a
	// 400 rather than a failed submission
	check := opts
	if err := check.Normalize(); err != nil {
		return opts, false, err
	}

	return opts, uploadCDN, nil
}

// urlJobRequest is the JSON body of POST /api/jobs/url. The parameter keys
// match the multipart form fields; crf is a pointer so 0 survives as an
// explicit choice.
type urlJobRequest struct {
	URL          string `json:"url"`
	VideoCodec   string `json:"video_codec,omitempty"`
	CRF          *int   `json:"crf,omitempty"`
	Quality      int    `json:"quality,omitempty"`
	Preset       string `json:"preset,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	SpeedMode    string `json:"speed_mode,omitempty"`
	AudioCodec   string `json:"audio_codec,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty"`
	Format       string `json:"format,omitempty"`
	Upload       string `json:"upload,omitempty"`
}

// options converts the JSON request into encode options plus the CDN flag.
func (req *urlJobRequest) options() (ffmpeg.Options, bool, error) {
	opts := ffmpeg.DefaultOptions()
	opts.VideoCodec = req.VideoCodec
	opts.Quality = req.Quality
	opts.Preset = req.Preset
	opts.Resolution = req.Resolution
	opts.SpeedMode = req.SpeedMode
	opts.AudioCodec = req.AudioCodec
	opts.AudioBitrate = req.AudioBitrate
	opts.Container = mediatypes.Container(req.Format)
	if req.CRF != nil {
		if *req.CRF < 0 {
			return opts, false, fmt.Errorf("crf must be non-negative, got %d", *req.CRF)
		}
		opts.CRF = *req.CRF
	}

	uploadCDN := false
	switch req.Upload {
	case "", "response":
	case uploadTargetCDN:
		uploadCDN = true
	default:
		return opts, false, fmt.Errorf("invalid upload target %q (valid: response, cdn)", req.Upload)
	}

	check := opts
	if err := check.Normalize(); err != nil {
		return opts, false, err
	}

	return opts, uploadCDN, nil
}
