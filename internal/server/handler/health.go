package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/opiniontrade/internal/book"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	registry  *book.Registry
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(registry *book.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// HealthCheck responds with a simple JSON status indicating the venue is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"open_markets":   h.registry.Len(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
