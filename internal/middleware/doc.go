// Package middleware provides HTTP middleware for the video compression API.
//
// It includes:
//   - Request logging in W3C Extended Log Format with field sanitization
//   - Prometheus request metrics with job-ID path normalization
//   - Response compression (gzip) for textual bodies only
//   - Shared API-key authentication against a bcrypt hash
package middleware
