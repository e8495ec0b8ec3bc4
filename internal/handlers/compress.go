package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/ffmpeg"
	"github.com/wbt-web-support/video-compress/internal/filesystem"
	"github.com/wbt-web-support/video-compress/internal/jobs"
	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/mediatypes"
	"github.com/wbt-web-support/video-compress/internal/streaming"
)

// multipartMemory is the in-memory threshold for multipart parsing; bodies
// past it spill to disk, which is where multi-gigabyte uploads belong.
const multipartMemory = 32 << 20

// Compress runs one synchronous compression: upload in, artifact (or CDN
// URL) out. The job is persisted like any async one, so it appears in
// listings, but the caller blocks until the encode finishes.
func (h *Handlers) Compress(w http.ResponseWriter, r *http.Request) {
	if h.monitor != nil && h.monitor.ShouldThrottle() {
		writeJSONError(w, "insufficient scratch space, try again later", http.StatusInsufficientStorage)
		return
	}

	file, header, opts, uploadCDN, ok := h.parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	job, err := h.manager.RunSync(r.Context(), jobs.SubmitRequest{
		Source:      file,
		SourceName:  header.Filename,
		Options:     opts,
		UploadToCDN: uploadCDN,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	switch job.State {
	case database.StateCompleted:
	case database.StateCanceled:
		// Client gone or shutdown; nobody is listening for the answer.
		logging.Debug("Sync job %s canceled before response", job.ID)
		return
	default:
		writeJSONError(w, job.Error, http.StatusUnprocessableEntity)
		return
	}

	if uploadCDN {
		// The artifact lives on the CDN now; scratch space can go.
		h.manager.ReleaseArtifact(job.ID)
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, newJobResponse(job, nil))
		return
	}

	h.streamArtifact(w, r, job)
	h.manager.ReleaseArtifact(job.ID)
}

// Probe returns media information for an uploaded file without encoding it.
// Results are cached by content hash, so re-probing an identical file is a
// database lookup.
func (h *Handlers) Probe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSONError(w, uploadErrorMessage(err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "missing file field in multipart form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !mediatypes.IsVideoFile(ext) {
		writeJSONError(w, fmt.Sprintf("unsupported file type %q", ext), http.StatusBadRequest)
		return
	}

	tmpPath := filepath.Join(h.config.WorkDir, "probe-"+uuid.NewString()+ext)
	out, err := os.Create(tmpPath)
	if err != nil {
		logging.Error("Failed to create probe scratch file: %v", err)
		writeJSONError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove probe scratch file %s: %v", tmpPath, err)
		}
	}()

	if _, err := out.ReadFrom(file); err != nil {
		out.Close()
		writeJSONError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	if err := out.Close(); err != nil {
		writeJSONError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}

	info, err := h.manager.ProbeFile(r.Context(), tmpPath)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("probe failed: %v", err), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, info)
}

// parseUpload pulls the file and encode options out of a multipart request,
// answering the error response itself when anything is off.
func (h *Handlers) parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, ffmpeg.Options, bool, bool) {
	var opts ffmpeg.Options

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSONError(w, uploadErrorMessage(err), http.StatusBadRequest)
		return nil, nil, opts, false, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "missing file field in multipart form", http.StatusBadRequest)
		return nil, nil, opts, false, false
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !mediatypes.IsVideoFile(ext) {
		file.Close()
		writeJSONError(w, fmt.Sprintf("unsupported file type %q", ext), http.StatusBadRequest)
		return nil, nil, opts, false, false
	}

	opts, uploadCDN, err := optionsFromValues(url.Values(r.MultipartForm.Value))
	if err != nil {
		file.Close()
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, nil, opts, false, false
	}

	return file, header, opts, uploadCDN, true
}

// streamArtifact sends a finished artifact as the response body through the
// timeout-protected writer.
func (h *Handlers) streamArtifact(w http.ResponseWriter, r *http.Request, job *database.Job) {
	// scratch may be an NFS export shared between replicas
	f, err := filesystem.OpenWithRetry(job.OutputPath, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Error("Artifact for job %s missing at %s: %v", job.ID, job.OutputPath, err)
		writeJSONError(w, "artifact no longer available", http.StatusGone)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", mediatypes.GetMimeType(filepath.Ext(job.OutputPath)))
	w.Header().Set("Content-Disposition", attachmentDisposition(outputFilename(job)))

	err = streaming.StreamWithTimeout(r.Context(), w, f, streaming.DefaultTimeoutWriterConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("Artifact stream for job %s failed: %v", job.ID, err)
	}
}

// outputFilename derives a download name from the source name and the
// artifact's container extension.
func outputFilename(job *database.Job) string {
	base := strings.TrimSuffix(job.SourceName, filepath.Ext(job.SourceName))
	if base == "" {
		base = job.ID
	}
	return base + "_compressed" + filepath.Ext(job.OutputPath)
}

// writeSubmitError maps submission failures onto status codes.
func (h *Handlers) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrScratchFull):
		writeJSONError(w, "insufficient scratch space, try again later", http.StatusInsufficientStorage)
	case errors.Is(err, jobs.ErrCDNUnavailable):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

// uploadErrorMessage keeps oversized-body errors distinguishable from
// malformed multipart bodies.
func uploadErrorMessage(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Sprintf("upload exceeds the %d MB limit", maxErr.Limit/(1024*1024))
	}
	return fmt.Sprintf("invalid multipart request: %v", err)
}
