// Package media renders poster frames for compressed artifacts.
//
// A PosterGenerator asks ffmpeg for a single frame partway into the video,
// then shrinks it to poster size. Decoding prefers libvips, which shrinks
// during decode and keeps memory flat regardless of source resolution; when
// vips is unavailable the pure-Go imaging path takes over.
//
// InitVips and ShutdownVips manage the libvips lifecycle and must bracket
// the process: govips cannot be restarted once shut down.
package media
