package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sniperlabs/snipercore/internal/domain"
	"github.com/sniperlabs/snipercore/internal/registry"
)

// AgentHandler serves the A2A agent registry endpoints.
type AgentHandler struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(reg *registry.Registry, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{reg: reg, logger: logger}
}

// Register adds an agent to the registry.
// POST /a2a/agents
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var info domain.AgentInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent payload: "+err.Error())
		return
	}
	if info.Name == "" {
		writeError(w, http.StatusBadRequest, "agent name is required")
		return
	}

	id, err := h.reg.Register(info)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, ok := h.reg.Get(id)
	if !ok {
		writeError(w, http.StatusInternalServerError, "registered agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List returns all registered agents as a JSON array.
// GET /a2a/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.List())
}

// Get returns a single agent by id.
// GET /a2a/agents/{id}
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := h.reg.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Unregister removes an agent. Removal is idempotent: unregistering an
// unknown or already-removed agent still returns 200.
// DELETE /a2a/agents/{id}
func (h *AgentHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existed := h.reg.Unregister(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "unregistered",
		"existed": existed,
	})
}
