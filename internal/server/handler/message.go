package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sniperlabs/snipercore/internal/bus"
	"github.com/sniperlabs/snipercore/internal/domain"
	"github.com/sniperlabs/snipercore/internal/registry"
)

// MessageHandler serves the A2A message bus endpoints.
type MessageHandler struct {
	bus    *bus.Bus
	reg    *registry.Registry
	logger *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(b *bus.Bus, reg *registry.Registry, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{bus: b, reg: reg, logger: logger}
}

// Send enqueues a message for its recipient. Heartbeat messages also
// refresh the sender's registry liveness.
// POST /a2a/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var msg domain.A2AMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message payload: "+err.Error())
		return
	}
	if msg.FromAgent == "" || msg.ToAgent == "" {
		writeError(w, http.StatusBadRequest, "from_agent and to_agent are required")
		return
	}
	if msg.Kind == "" {
		writeError(w, http.StatusBadRequest, "message_type is required")
		return
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if err := h.bus.Send(msg); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownRecipient):
			writeError(w, http.StatusNotFound, "unknown recipient "+msg.ToAgent)
		case errors.Is(err, domain.ErrUnknownCorrelation):
			writeError(w, http.StatusBadRequest, "unknown correlation id "+msg.CorrelationID)
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if msg.Kind == domain.MessageKindHeartbeat {
		if err := h.reg.Heartbeat(msg.FromAgent, time.Now().UTC()); err != nil {
			h.logger.Debug("heartbeat from unregistered sender",
				slog.String("agent_id", msg.FromAgent),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "queued",
		"message_id": msg.ID,
	})
}

// Drain removes and returns the agent's queued messages, highest priority
// first. Optional query parameters: limit caps how many messages are taken,
// message_type keeps only one kind; everything not returned is re-enqueued
// at the front of the mailbox in its original order.
// GET /a2a/messages/{agent_id}
func (h *MessageHandler) Drain(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	limit := queryInt(r, "limit", 0)
	kindFilter := r.URL.Query().Get("message_type")

	drained := h.bus.Drain(agentID)

	matched := make([]domain.A2AMessage, 0, len(drained))
	var remainder []domain.A2AMessage
	for _, msg := range drained {
		if kindFilter != "" && string(msg.Kind) != kindFilter {
			remainder = append(remainder, msg)
			continue
		}
		if limit > 0 && len(matched) >= limit {
			remainder = append(remainder, msg)
			continue
		}
		matched = append(matched, msg)
	}
	if len(remainder) > 0 {
		h.bus.Requeue(agentID, remainder)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": agentID,
		"messages": matched,
		"count":    len(matched),
	})
}
