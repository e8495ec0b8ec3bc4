// Package handlers implements the HTTP surface of the compression service.
//
// The API splits into a synchronous path (POST /api/compress encodes on the
// request goroutine and streams the artifact back) and an asynchronous job
// path (POST /api/jobs, progress over SSE, artifact via the download
// endpoint). Both funnel into the jobs.Manager; handlers only parse, guard
// and serialize.
//
// All error responses are JSON objects with a single "error" field,
// including the router's own 404 and 405 answers.
package handlers
