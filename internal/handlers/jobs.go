package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/filesystem"
	"github.com/wbt-web-support/video-compress/internal/jobs"
	"github.com/wbt-web-support/video-compress/internal/logging"
)

// maxListLimit caps one listing page.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// jobLinks are the navigable endpoints for one job.
type jobLinks struct {
	Self     string `json:"self"`
	Events   string `json:"events,omitempty"`
	Download string `json:"download,omitempty"`
	Poster   string `json:"poster,omitempty"`
}

// jobResponse is the wire shape of a job: the persisted record plus derived
// fields and, for live jobs, the in-memory progress snapshot.
type jobResponse struct {
	database.Job
	SavingsPercent float64        `json:"savingsPercent,omitempty"`
	Live           *jobs.Snapshot `json:"live,omitempty"`
	Links          jobLinks       `json:"links"`
}

// newJobResponse assembles the response shape. snap may be nil.
func newJobResponse(job *database.Job, snap *jobs.Snapshot) jobResponse {
	resp := jobResponse{
		Job:            *job,
		SavingsPercent: job.SavingsPercent(),
		Live:           snap,
		Links: jobLinks{
			Self: "/api/jobs/" + job.ID,
		},
	}

	if snap != nil {
		resp.Progress = snap.Percent
	}

	switch {
	case !job.State.Terminal():
		resp.Links.Events = resp.Links.Self + "/events"
	case job.State == database.StateCompleted:
		if job.OutputPath != "" {
			resp.Links.Download = resp.Links.Self + "/download"
			resp.Links.Poster = resp.Links.Self + "/poster"
		}
	}

	return resp
}

// SubmitJob accepts a multipart upload and queues an asynchronous
// compression job. Answers 202 with the job's links.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.monitor != nil && h.monitor.ShouldThrottle() {
		writeJSONError(w, "insufficient scratch space, try again later", http.StatusInsufficientStorage)
		return
	}

	file, header, opts, uploadCDN, ok := h.parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	job, err := h.manager.Submit(r.Context(), jobs.SubmitRequest{
		Source:      file,
		SourceName:  header.Filename,
		Options:     opts,
		UploadToCDN: uploadCDN,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, newJobResponse(job, nil))
}

// SubmitURLJob queues a job whose source is fetched server-side from a URL
// in the JSON body.
func (h *Handlers) SubmitURLJob(w http.ResponseWriter, r *http.Request) {
	if h.monitor != nil && h.monitor.ShouldThrottle() {
		writeJSONError(w, "insufficient scratch space, try again later", http.StatusInsufficientStorage)
		return
	}

	var req urlJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
		return
	}

	if req.URL == "" {
		writeJSONError(w, "url is required", http.StatusBadRequest)
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeJSONError(w, "url must be http or https", http.StatusBadRequest)
		return
	}

	opts, uploadCDN, err := req.options()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.manager.Submit(r.Context(), jobs.SubmitRequest{
		SourceURL:   req.URL,
		Options:     opts,
		UploadToCDN: uploadCDN,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, newJobResponse(job, nil))
}

// ListJobs returns a page of jobs, optionally filtered by state.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r.URL.Query())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	listing, err := h.db.ListJobs(r.Context(), opts)
	if err != nil {
		logging.Error("Job listing failed: %v", err)
		writeJSONError(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}

	responses := make([]jobResponse, 0, len(listing.Jobs))
	for i := range listing.Jobs {
		job := &listing.Jobs[i]
		var snap *jobs.Snapshot
		if s, live := h.manager.Progress(job.ID); live {
			snap = &s
		}
		responses = append(responses, newJobResponse(job, snap))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"jobs":       responses,
		"totalItems": listing.TotalItems,
		"limit":      listing.Limit,
		"offset":     listing.Offset,
	})
}

// listOptionsFromQuery validates pagination and filter parameters.
func listOptionsFromQuery(query url.Values) (database.ListOptions, error) {
	opts := database.ListOptions{
		SortField: database.SortByCreated,
		SortOrder: database.SortDesc,
		Limit:     defaultListLimit,
	}

	if state := query.Get("state"); state != "" {
		js := database.JobState(state)
		if !js.Valid() {
			return opts, fmt.Errorf("invalid state filter %q", state)
		}
		opts.State = js
	}

	if sort := query.Get("sort"); sort != "" {
		switch sf := database.SortField(sort); sf {
		case database.SortByCreated, database.SortByUpdated, database.SortBySize:
			opts.SortField = sf
		default:
			return opts, fmt.Errorf("invalid sort field %q (valid: created, updated, size)", sort)
		}
	}

	if order := query.Get("order"); order != "" {
		switch so := database.SortOrder(order); so {
		case database.SortAsc, database.SortDesc:
			opts.SortOrder = so
		default:
			return opts, fmt.Errorf("invalid sort order %q (valid: asc, desc)", order)
		}
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return opts, fmt.Errorf("limit must be a positive integer, got %q", raw)
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		opts.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return opts, fmt.Errorf("offset must be a non-negative integer, got %q", raw)
		}
		opts.Offset = offset
	}

	return opts, nil
}

// GetJob returns the full status of one job, merging in the live progress
// snapshot when the job is still running.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.db.GetJob(r.Context(), id)
	if err != nil {
		h.writeJobLookupError(w, id, err)
		return
	}

	var snap *jobs.Snapshot
	if s, live := h.manager.Progress(id); live {
		snap = &s
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, newJobResponse(job, snap))
}

// DeleteJob cancels a running job or deletes a finished one.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	canceled, err := h.manager.Delete(r.Context(), id)
	if err != nil {
		h.writeJobLookupError(w, id, err)
		return
	}

	if canceled {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{"status": "canceling"})
		return
	}
	writeJSONStatus(w, "deleted")
}

// DownloadArtifact streams a completed job's artifact. Unfinished jobs get
// 409; jobs whose scratch space was already reclaimed get 410.
func (h *Handlers) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.db.GetJob(r.Context(), id)
	if err != nil {
		h.writeJobLookupError(w, id, err)
		return
	}

	switch job.State {
	case database.StateCompleted:
	case database.StateFailed, database.StateCanceled:
		writeJSONError(w, fmt.Sprintf("job %s: no artifact", job.State), http.StatusConflict)
		return
	default:
		writeJSONError(w, "job still in progress", http.StatusConflict)
		return
	}

	if job.OutputPath == "" {
		writeArtifactGone(w, job)
		return
	}
	if _, err := filesystem.StatWithRetry(job.OutputPath, filesystem.DefaultRetryConfig()); err != nil {
		writeArtifactGone(w, job)
		return
	}

	h.streamArtifact(w, r, job)
}

// writeArtifactGone answers 410 for a completed job whose scratch copy is
// gone. CDN-delivered jobs point the client at the surviving copy.
func writeArtifactGone(w http.ResponseWriter, job *database.Job) {
	if job.CDNURL != "" {
		w.Header().Set("Location", job.CDNURL)
		writeJSONError(w, "artifact delivered via CDN", http.StatusGone)
		return
	}
	writeJSONError(w, "artifact no longer available", http.StatusGone)
}

// Poster serves the poster JPEG for a completed job.
func (h *Handlers) Poster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.db.GetJob(r.Context(), id); err != nil {
		h.writeJobLookupError(w, id, err)
		return
	}

	path := h.manager.PosterPath(id)
	if _, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
		writeJSONError(w, "no poster available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=3600")
	http.ServeFile(w, r, path)
}

// writeJobLookupError maps store errors from job lookups.
func (h *Handlers) writeJobLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, fmt.Sprintf("job %s not found", sanitizeID(id)), http.StatusNotFound)
		return
	}
	logging.Error("Job lookup for %s failed: %v", sanitizeID(id), err)
	writeJSONError(w, "job lookup failed", http.StatusInternalServerError)
}

// sanitizeID keeps echoed identifiers to UUID-safe characters.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, id)
}
