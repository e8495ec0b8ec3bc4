package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/wbt-web-support/video-compress/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// attachmentDisposition builds a Content-Disposition header for a download,
// path-escaping the filename so header injection through upload names is
// impossible.
func attachmentDisposition(filename string) string {
	return "attachment; filename=\"" + url.PathEscape(filename) + "\""
}

// NotFoundHandler answers unknown routes with a JSON body instead of the
// default plain-text page.
func NotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, "not found", http.StatusNotFound)
}

// MethodNotAllowedHandler answers known routes hit with the wrong verb.
func MethodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
}
