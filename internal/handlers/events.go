package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wbt-web-support/video-compress/internal/database"
	"github.com/wbt-web-support/video-compress/internal/jobs"
	"github.com/wbt-web-support/video-compress/internal/logging"
)

// sseHeartbeatInterval keeps idle proxies from dropping the stream.
const sseHeartbeatInterval = 15 * time.Second

// JobEvents streams job progress as Server-Sent Events. Clients get the
// current snapshot immediately, then incremental progress events, and
// finally a done or error event carrying the finished job record. Jobs
// that already finished get their terminal event straight from the store.
func (h *Handlers) JobEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe, live := h.manager.Subscribe(id)
	if !live {
		job, err := h.db.GetJob(r.Context(), id)
		if err != nil {
			h.writeJobLookupError(w, id, err)
			return
		}
		// Job finished before the client connected; replay the outcome
		// as a single terminal event and close.
		startEventStream(w)
		writeTerminalEvent(w, job)
		flusher.Flush()
		return
	}
	defer unsubscribe()

	// Subscribe replays the latest snapshot as the channel's first event,
	// so the loop below delivers the initial state without an extra write.
	startEventStream(w)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			switch ev.Type {
			case jobs.EventProgress:
				writeSSE(w, "progress", ev.Snapshot)
			case jobs.EventDone:
				writeSSE(w, "done", newJobResponse(ev.Job, nil))
				flusher.Flush()
				return
			case jobs.EventError:
				writeSSE(w, "error", newJobResponse(ev.Job, nil))
				flusher.Flush()
				return
			}
			flusher.Flush()
		}
	}
}

// startEventStream sets the SSE response headers.
func startEventStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Tell nginx-style proxies not to buffer the stream.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

// writeTerminalEvent emits the closing event for a job that is already done.
// Canceled jobs are reported as "done" so replay matches what a live
// subscriber saw when the job was interrupted.
func writeTerminalEvent(w http.ResponseWriter, job *database.Job) {
	event := "done"
	if job.State == database.StateFailed {
		event = "error"
	}
	writeSSE(w, event, newJobResponse(job, nil))
}

// writeSSE writes one event frame with a JSON payload.
func writeSSE(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("failed to marshal SSE payload: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
