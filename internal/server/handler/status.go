package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sniperlabs/snipercore/internal/bus"
	"github.com/sniperlabs/snipercore/internal/domain"
	"github.com/sniperlabs/snipercore/internal/executor"
	"github.com/sniperlabs/snipercore/internal/registry"
	"github.com/sniperlabs/snipercore/internal/risk"
)

// StatusHandler serves the operational status and metrics endpoints.
type StatusHandler struct {
	reg      *registry.Registry
	bus      *bus.Bus
	ledger   *risk.Ledger
	executor *executor.Executor
	mode     string
	started  time.Time
	logger   *slog.Logger
}

// NewStatusHandler creates a StatusHandler. mode is the configured trading
// mode ("paper" or "live").
func NewStatusHandler(reg *registry.Registry, b *bus.Bus, ledger *risk.Ledger, exec *executor.Executor, mode string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		reg:      reg,
		bus:      b,
		ledger:   ledger,
		executor: exec,
		mode:     mode,
		started:  time.Now().UTC(),
		logger:   logger,
	}
}

// Status reports per-module operational state. The trading block
// distinguishes the emergency stop from mere agent outages.
// GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	tradingState := "normal"
	if h.ledger.Stopped() {
		tradingState = "emergency_stop"
	}

	positions := h.ledger.Positions()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"trading": map[string]any{
			"state":          tradingState,
			"open_positions": len(positions),
			"positions":      positions,
			"total_pnl":      h.ledger.TotalPnL(),
		},
		"agents": map[string]any{
			"registered": h.reg.Count(),
			"offline":    h.reg.OfflineCount(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Metrics reports the execution and bus counters.
// GET /metrics
func (h *StatusHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"execution": h.executor.Stats(),
		"bus":       h.bus.Snapshot(),
		"agents": map[string]any{
			"registered": h.reg.Count(),
			"offline":    h.reg.OfflineCount(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Positions lists open positions.
// GET /api/positions
func (h *StatusHandler) Positions(w http.ResponseWriter, r *http.Request) {
	positions := h.ledger.Positions()
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

// Reset clears the emergency stop. This is the manual operator transition
// back to normal trading.
// POST /api/risk/reset
func (h *StatusHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.ledger.Reset()
	h.logger.WarnContext(r.Context(), "risk state reset via api")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
