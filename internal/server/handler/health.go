package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sniperlabs/snipercore/internal/bus"
	"github.com/sniperlabs/snipercore/internal/registry"
)

// HealthHandler serves the liveness and A2A protocol descriptor endpoints.
type HealthHandler struct {
	reg    *registry.Registry
	bus    *bus.Bus
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(reg *registry.Registry, b *bus.Bus, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{reg: reg, bus: b, logger: logger}
}

// Health responds with a simple liveness check.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// A2AHealth describes the A2A protocol service and its current load.
// GET /a2a/health
func (h *HealthHandler) A2AHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.bus.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"protocol": "a2a",
		"version":  "1.0",
		"capabilities": []string{
			"agent_registration",
			"message_routing",
			"priority_delivery",
			"heartbeat_tracking",
		},
		"agents_registered": h.reg.Count(),
		"agents_offline":    h.reg.OfflineCount(),
		"messages_queued":   stats.Queued,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}
