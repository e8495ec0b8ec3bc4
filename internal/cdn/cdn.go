package cdn

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/mediatypes"
	"github.com/wbt-web-support/video-compress/internal/metrics"
	"github.com/wbt-web-support/video-compress/internal/startup"
)

// keyRandomBytes is the entropy per object key; 16 bytes hex-encodes to 32
// characters, far past any realistic collision horizon.
const keyRandomBytes = 16

// Uploader pushes compressed artifacts to an S3-compatible bucket and hands
// back URLs clients can fetch them from. A nil *Uploader means CDN upload is
// not configured.
type Uploader struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	bucket        string
	publicBaseURL string
	presignTTL    time.Duration
}

// New builds an Uploader from the CDN configuration. Construction only wires
// credentials and the endpoint; it performs no network I/O, so call Verify
// afterwards to surface misconfiguration at startup rather than on the first
// job.
func New(ctx context.Context, cfg startup.CDNConfig) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load CDN credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Path-style keeps bucket names out of DNS, which most self-hosted
		// S3-compatible targets (MinIO in particular) require.
		o.UsePathStyle = true
	})

	return &Uploader{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignTTL:    cfg.PresignTTL,
	}, nil
}

// Verify checks that the bucket exists and the credentials can reach it.
func (u *Uploader) Verify(ctx context.Context) error {
	if _, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	}); err != nil {
		return fmt.Errorf("bucket %q not reachable: %w", u.bucket, err)
	}
	return nil
}

// Upload streams the artifact at localPath into the bucket and returns the
// object key it was stored under.
func (u *Uploader) Upload(ctx context.Context, localPath string, container mediatypes.Container) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}

	key, err := objectKey(container, time.Now().UTC())
	if err != nil {
		return "", err
	}

	start := time.Now()
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(container.MimeType()),
	})
	metrics.CDNUploadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "canceled"
		}
		metrics.CDNUploadsTotal.WithLabelValues(status).Inc()
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	metrics.CDNUploadsTotal.WithLabelValues("success").Inc()
	metrics.CDNUploadBytes.Add(float64(info.Size()))
	logging.Debug("Uploaded %s (%d bytes) in %v", key, info.Size(), time.Since(start).Round(time.Millisecond))

	return key, nil
}

// URL returns a fetchable URL for an uploaded object. With a public base URL
// configured the key is joined onto it; otherwise a presigned GET link is
// generated, valid for the configured TTL.
func (u *Uploader) URL(ctx context.Context, key string) (string, error) {
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + key, nil
	}

	req, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// objectKey builds a date-partitioned random key for an artifact.
func objectKey(container mediatypes.Container, now time.Time) (string, error) {
	raw := make([]byte, keyRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}
	return fmt.Sprintf("videos/%04d/%02d/%s%s",
		now.Year(), int(now.Month()), hex.EncodeToString(raw), container.Ext()), nil
}
