package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is a backing store that can be pinged
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
// A nil checker means the in-memory fallback is in use.
type HealthHandler struct {
	ledgerStore   HealthChecker
	baselineStore HealthChecker
	version       string
	mockMode      bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(ledgerStore, baselineStore HealthChecker, version string, mockMode bool) *HealthHandler {
	return &HealthHandler{
		ledgerStore:   ledgerStore,
		baselineStore: baselineStore,
		version:       version,
		mockMode:      mockMode,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	MockMode  bool              `json:"mockMode"`
	Services  map[string]string `json:"services,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MockMode:  h.mockMode,
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	services := make(map[string]string)
	allHealthy := true

	for name, checker := range map[string]HealthChecker{
		"postgres": h.ledgerStore,
		"redis":    h.baselineStore,
	} {
		if checker == nil {
			services[name] = "in-memory"
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services[name] = "healthy"
		}
	}

	response := HealthResponse{
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MockMode:  h.mockMode,
		Services:  services,
	}

	if allHealthy {
		response.Status = "ready"
		writeJSON(w, http.StatusOK, response)
	} else {
		response.Status = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, response)
	}
}

// Live handles GET /live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
