package registry

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically marks agents offline when their heartbeat is stale.
// It only touches status fields; business logic never runs here.
type Sweeper struct {
	reg      *Registry
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper with the given heartbeat TTL. The sweep
// interval defaults to a third of the TTL, floored at one second.
func NewSweeper(reg *Registry, ttl time.Duration, logger *slog.Logger) *Sweeper {
	interval := ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	return &Sweeper{
		reg:      reg,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With(slog.String("component", "registry_sweeper")),
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			expired := s.reg.MarkExpired(now.UTC(), s.ttl)
			for _, id := range expired {
				s.logger.Warn("agent heartbeat expired, marked offline",
					slog.String("agent_id", id),
					slog.Duration("ttl", s.ttl),
				)
			}
		}
	}
}
