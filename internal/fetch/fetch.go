package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
)

const userAgent = "video-compress/1.0"

var (
	// ErrTooLarge is returned when the remote file exceeds the configured size cap
	ErrTooLarge = errors.New("remote file exceeds size limit")

	// ErrUnsupportedScheme is returned for source URLs that are not http or https
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// Result describes a completed download
type Result struct {
	Path     string // local path the file was written to
	Size     int64  // bytes written
	Filename string // original filename derived from the URL
}

// Fetcher downloads remote source files into the scratch area.
// Safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	retry    RetryConfig
}

// New creates a Fetcher that refuses files larger than maxBytes.
// A maxBytes of zero or less disables the cap.
func New(maxBytes int64) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			// No client-level timeout; large downloads are bounded by the
			// request context instead.
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		maxBytes: maxBytes,
		retry:    DefaultRetryConfig(),
	}
}

// SetRetryConfig overrides the default retry behavior
func (f *Fetcher) SetRetryConfig(cfg RetryConfig) {
	f.retry = cfg
}

// Download fetches rawURL into destPath. The destination file is removed on
// failure. Transient upstream errors are retried with exponential backoff.
func (f *Fetcher) Download(ctx context.Context, rawURL, destPath string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("invalid source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return Result{}, fmt.Errorf("invalid source URL: missing host")
	}

	logging.Info("Downloading source from %s", SanitizeURL(rawURL))

	// Cheap size check before committing to the transfer. HEAD failures are
	// tolerated; the GET enforces the cap regardless.
	if err := f.preflight(ctx, rawURL); err != nil {
		return Result{}, err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create download target: %w", err)
	}

	var size int64
	err = f.withRetry(ctx, "download", func() error {
		n, attemptErr := f.attemptDownload(ctx, rawURL, out)
		size = n
		return attemptErr
	})

	closeErr := out.Close()
	if err != nil {
		os.Remove(destPath)
		return Result{}, err
	}
	if closeErr != nil {
		os.Remove(destPath)
		return Result{}, fmt.Errorf("failed to finalize download: %w", closeErr)
	}
	if size == 0 {
		os.Remove(destPath)
		return Result{}, fmt.Errorf("downloaded file is empty")
	}

	logging.Info("Downloaded %d bytes from %s", size, SanitizeURL(rawURL))

	return Result{
		Path:     destPath,
		Size:     size,
		Filename: SourceName(rawURL),
	}, nil
}

// preflight issues a HEAD request and rejects files whose advertised size
// exceeds the cap. Servers that reject HEAD are ignored.
func (f *Fetcher) preflight(ctx context.Context, rawURL string) error {
	headCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(headCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	defaultObserver.ObserveOperation("head", time.Since(start).Seconds(), err)
	if err != nil {
		logging.Debug("HEAD preflight failed for %s: %v", SanitizeURL(rawURL), err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return fmt.Errorf("%w: remote reports %d bytes, limit is %d",
			ErrTooLarge, resp.ContentLength, f.maxBytes)
	}
	return nil
}

// attemptDownload performs a single GET attempt, writing the body to out.
// The file is rewound and truncated first so retries start clean.
func (f *Fetcher) attemptDownload(ctx context.Context, rawURL string, out *os.File) (int64, error) {
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind download target: %w", err)
	}
	if err := out.Truncate(0); err != nil {
		return 0, fmt.Errorf("failed to truncate download target: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid source URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		defaultObserver.ObserveOperation("download", time.Since(start).Seconds(), err)
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &statusError{code: resp.StatusCode}
		defaultObserver.ObserveOperation("download", time.Since(start).Seconds(), statusErr)
		return 0, statusErr
	}

	// An HTML body almost always means a login page or error page rather
	// than the video itself. Fail early instead of letting the probe choke.
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		ctErr := fmt.Errorf("source URL returned %s, not a video file", ct)
		defaultObserver.ObserveOperation("download", time.Since(start).Seconds(), ctErr)
		return 0, ctErr
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		sizeErr := fmt.Errorf("%w: remote reports %d bytes, limit is %d",
			ErrTooLarge, resp.ContentLength, f.maxBytes)
		defaultObserver.ObserveOperation("download", time.Since(start).Seconds(), sizeErr)
		return 0, sizeErr
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		// Read one byte past the cap so overflow is detectable
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	n, err := io.Copy(out, body)
	if err != nil {
		defaultObserver.ObserveOperation("download", time.Since(start).Seconds(), err)
		return n, err
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		sizeErr := fmt.Errorf("%w: download exceeded %d bytes", ErrTooLarge, f.maxBytes)
		defaultObserver.ObserveOperation("download", time.Since(start).Seconds(), sizeErr)
		return n, sizeErr
	}

	defaultObserver.ObserveOperation("download", time.Since(start).Seconds(), nil)
	return n, nil
}

// SourceName derives a safe original filename from a source URL.
// Falls back to "source" when the URL path carries no usable name.
func SourceName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "source"
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "source"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "source"
	}
	return cleaned
}

// SanitizeURL strips credentials from a URL for log output
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	return u.String()
}
