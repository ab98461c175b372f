package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes"
	"github.com/eda-mesh/backstage-catalog-api/internal/versions"
)

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func readinessHandler(source kubernetes.ConfigMapSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			writeJSON(w, map[string]string{"error": "Kubernetes client not configured"}, http.StatusServiceUnavailable)
			return
		}
		if err := source.Ready(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeJSON(w, map[string]string{"error": "Kubernetes API not ready: " + err.Error()}, http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, versions.GetVersionInfo(), http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
