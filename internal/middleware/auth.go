package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/wbt-web-support/video-compress/internal/logging"
	"github.com/wbt-web-support/video-compress/internal/metrics"
)

// exemptPaths bypass API-key auth: probes and scrapers are machine clients
// without credentials, and the upload page must load before a key is entered.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
	"/version": true,
	"/metrics": true,
}

// APIKey returns middleware that guards /api/ routes with a shared API key
// checked against a bcrypt hash. The key arrives in X-Api-Key or as an
// Authorization Bearer token. An empty hash disables the check entirely.
func APIKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if keyHash == "" {
			return next
		}

		hashBytes := []byte(keyHash)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") || exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)
			if key == "" {
				metrics.AuthAttemptsTotal.WithLabelValues("missing").Inc()
				unauthorized(w, "missing API key")
				return
			}

			if err := bcrypt.CompareHashAndPassword(hashBytes, []byte(key)); err != nil {
				metrics.AuthAttemptsTotal.WithLabelValues("invalid").Inc()
				logging.Warn("Rejected API request from %s: invalid key", getClientIP(r))
				unauthorized(w, "invalid API key")
				return
			}

			metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the presented key from X-Api-Key or a Bearer token.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logging.Error("failed to encode auth error response: %v", err)
	}
}
