// Package app assembles the coordinator from its configuration and runs the
// component lifecycles under a shared context.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sniperlabs/snipercore/internal/config"
	"github.com/sniperlabs/snipercore/internal/ingest"
	"github.com/sniperlabs/snipercore/internal/server"
	"github.com/sniperlabs/snipercore/internal/server/handler"
)

// App owns the wired dependency graph and the long-running components.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    *Dependencies
	cleanup func()

	feed   *ingest.Feed
	server *server.Server
}

// New wires the application from the configuration. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, cleanup, err := Wire(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		deps:    deps,
		cleanup: cleanup,
	}

	if cfg.Feed.WsURL != "" {
		a.feed = ingest.NewFeed(cfg.Feed.WsURL, cfg.Trading.Symbols, deps.Orchestrator.HandleTick, logger)
	}

	if cfg.Server.Enabled {
		a.server = server.NewServer(
			server.Config{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
				APIKey:      cfg.Server.APIKey,
			},
			server.Handlers{
				Agents:   handler.NewAgentHandler(deps.Registry, logger),
				Messages: handler.NewMessageHandler(deps.Bus, deps.Registry, logger),
				Health:   handler.NewHealthHandler(deps.Registry, deps.Bus, logger),
				Status:   handler.NewStatusHandler(deps.Registry, deps.Bus, deps.Ledger, deps.Executor, cfg.Trading.Mode, logger),
			},
			logger,
		)
	}

	return a, nil
}

// Run starts every configured component and blocks until the context is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app: starting",
		slog.String("mode", a.cfg.Trading.Mode),
		slog.Bool("feed", a.feed != nil),
		slog.Bool("server", a.server != nil),
		slog.Bool("persistence", a.deps.FillStore != nil),
		slog.Bool("archiver", a.deps.Archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.deps.Orchestrator.Run(ctx)
	})
	g.Go(func() error {
		return a.deps.Sweeper.Run(ctx)
	})

	if a.feed != nil {
		g.Go(func() error {
			return a.feed.Run(ctx)
		})
	}

	if a.deps.Archiver != nil {
		retention := time.Duration(a.cfg.S3.ArchiveRetentionDays) * 24 * time.Hour
		g.Go(func() error {
			return a.deps.Archiver.Run(ctx, retention)
		})
	}

	if a.server != nil {
		g.Go(func() error {
			return a.server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close releases wired resources in reverse construction order.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
