// Package ffmpeg wraps the native ffmpeg and ffprobe binaries for video
// compression.
//
// It provides:
//   - An Options model covering codec, CRF/quality, preset, resolution,
//     audio, and container choices with validation and defaults
//   - Argument vector assembly for compression and poster-frame extraction
//   - Media probing (duration, dimensions, codecs) via ffprobe JSON output
//   - Process execution with live progress relaying parsed from
//     -progress pipe:2, plus a registry so shutdown can kill stragglers
//
// Encoding is performed by FFmpeg and requires ffmpeg and ffprobe to be
// installed; paths default to PATH lookup and can be overridden.
package ffmpeg
