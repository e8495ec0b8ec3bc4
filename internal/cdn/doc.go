// Package cdn uploads compressed artifacts to an S3-compatible bucket.
//
// Any S3-compatible vendor works (AWS S3, DigitalOcean Spaces, Cloudflare R2,
// MinIO): the configured endpoint overrides the SDK default wholesale, and
// path-style addressing is forced so bucket names never need to resolve as
// DNS labels.
//
// Object keys are date-partitioned random hex (videos/2025/06/<hex>.mp4) so
// concurrent uploads cannot collide and bucket listings stay navigable by
// month.
//
// Usage:
//
//	uploader, err := cdn.New(ctx, cfg.CDN)
//	if err != nil {
//		return err
//	}
//	key, err := uploader.Upload(ctx, "/scratch/job-1/output.mp4", mediatypes.ContainerMP4)
//	if err != nil {
//		return err
//	}
//	url, err := uploader.URL(ctx, key)
//
// With CDN_PUBLIC_BASE_URL set, URL is a plain join onto that prefix (the
// bucket is assumed public or fronted by a CDN). Otherwise URL issues a
// presigned GET link valid for CDN_PRESIGN_TTL.
package cdn
