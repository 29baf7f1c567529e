// Package server exposes the coordinator's HTTP API: the A2A protocol
// surface for external agents plus health, metrics, and status endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sniperlabs/snipercore/internal/server/handler"
	"github.com/sniperlabs/snipercore/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Agents   *handler.AgentHandler
	Messages *handler.MessageHandler
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
}

// Server is the coordinator's HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wires the middleware chain: CORS, then
// request logging, then authentication. Liveness stays unauthenticated so
// load balancers can reach it.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// A2A protocol surface.
	mux.HandleFunc("GET /a2a/agents", handlers.Agents.List)
	mux.HandleFunc("POST /a2a/agents", handlers.Agents.Register)
	mux.HandleFunc("GET /a2a/agents/{id}", handlers.Agents.Get)
	mux.HandleFunc("DELETE /a2a/agents/{id}", handlers.Agents.Unregister)
	mux.HandleFunc("POST /a2a/messages", handlers.Messages.Send)
	mux.HandleFunc("GET /a2a/messages/{agent_id}", handlers.Messages.Drain)
	mux.HandleFunc("GET /a2a/health", handlers.Health.A2AHealth)

	// Operational surface.
	mux.HandleFunc("GET /health", handlers.Health.Health)
	mux.HandleFunc("GET /metrics", handlers.Status.Metrics)
	mux.HandleFunc("GET /status", handlers.Status.Status)
	mux.HandleFunc("GET /api/positions", handlers.Status.Positions)
	mux.HandleFunc("POST /api/risk/reset", handlers.Status.Reset)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens for requests and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware sets CORS headers for the allowed origins. An empty list
// allows every origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}
				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
