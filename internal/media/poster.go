package media

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	// Registers webp decoding so imaging.Open can read webp frames.
	_ "golang.org/x/image/webp"

	"github.com/wbt-web-support/video-compress/internal/ffmpeg"
	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// Poster dimensions and encoding quality. 480x270 keeps 16:9 sources exact
// and everything else inside the box with aspect preserved.
const (
	posterWidth       = 480
	posterHeight      = 270
	posterJPEGQuality = 80
)

// posterOffsetRatio places the extracted frame at a quarter of the way in,
// past intros and fade-ins but well before credits.
const posterOffsetRatio = 0.25

// frameTimeout bounds the ffmpeg frame extraction; pulling one frame should
// take seconds even for large files.
const frameTimeout = 30 * time.Second

// FrameExtractor runs an ffmpeg invocation. *ffmpeg.Executor satisfies it.
type FrameExtractor interface {
	Run(ctx context.Context, id string, args []string, opts ffmpeg.RunOptions) error
}

// PosterGenerator renders one JPEG poster per compressed artifact.
type PosterGenerator struct {
	extractor FrameExtractor
}

// NewPosterGenerator creates a PosterGenerator that extracts frames through
// the given executor.
func NewPosterGenerator(extractor FrameExtractor) *PosterGenerator {
	return &PosterGenerator{extractor: extractor}
}

// Generate extracts a frame from videoPath at a quarter of duration (1s when
// the duration is unknown), shrinks it to poster size and writes the JPEG to
// outPath. The intermediate full-size frame is always removed.
func (g *PosterGenerator) Generate(ctx context.Context, videoPath string, duration float64, outPath string) error {
	start := time.Now()
	err := g.generate(ctx, videoPath, duration, outPath)
	metrics.PosterGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PosterGenerationsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.PosterGenerationsTotal.WithLabelValues("success").Inc()
	return nil
}

func (g *PosterGenerator) generate(ctx context.Context, videoPath string, duration float64, outPath string) error {
	offset := 1.0
	if duration > 0 {
		offset = duration * posterOffsetRatio
	}

	framePath := outPath + ".frame.jpg"
	defer func() {
		if err := os.Remove(framePath); err != nil && !os.IsNotExist(err) {
			logging.Debug("Failed to remove poster frame %s: %v", framePath, err)
		}
	}()

	extractCtx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	args := ffmpeg.PosterArgs(videoPath, offset, framePath)
	if err := g.extractor.Run(extractCtx, "poster:"+filepath.Base(outPath), args, ffmpeg.RunOptions{}); err != nil {
		// Very short clips can place the offset past the last frame;
		// retry from the start before giving up.
		if offset > 1.0 && ctx.Err() == nil {
			args = ffmpeg.PosterArgs(videoPath, 0, framePath)
			if retryErr := g.extractor.Run(extractCtx, "poster:"+filepath.Base(outPath), args, ffmpeg.RunOptions{}); retryErr != nil {
				return fmt.Errorf("frame extraction failed: %w", retryErr)
			}
		} else {
			return fmt.Errorf("frame extraction failed: %w", err)
		}
	}

	img, err := loadFrame(framePath)
	if err != nil {
		return err
	}

	thumb := imaging.Fit(img, posterWidth, posterHeight, imaging.Lanczos)
	if err := imaging.Save(thumb, outPath, imaging.JPEGQuality(posterJPEGQuality)); err != nil {
		return fmt.Errorf("failed to save poster: %w", err)
	}

	logging.Debug("Poster written to %s (%dx%d)", outPath, thumb.Bounds().Dx(), thumb.Bounds().Dy())
	return nil
}

// loadFrame decodes the extracted frame, preferring the vips decode-time
// shrink path and falling back to pure-Go decoding.
func loadFrame(path string) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := loadImageWithVips(path, posterWidth, posterHeight)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips decode of %s failed, falling back to imaging: %v", filepath.Base(path), err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}
