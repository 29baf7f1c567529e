package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/sniperlabs/snipercore/internal/blob/s3"
	"github.com/sniperlabs/snipercore/internal/bus"
	"github.com/sniperlabs/snipercore/internal/cache/redis"
	"github.com/sniperlabs/snipercore/internal/config"
	"github.com/sniperlabs/snipercore/internal/crypto"
	"github.com/sniperlabs/snipercore/internal/domain"
	"github.com/sniperlabs/snipercore/internal/executor"
	"github.com/sniperlabs/snipercore/internal/notify"
	"github.com/sniperlabs/snipercore/internal/pipeline"
	"github.com/sniperlabs/snipercore/internal/registry"
	"github.com/sniperlabs/snipercore/internal/risk"
	"github.com/sniperlabs/snipercore/internal/settle"
	"github.com/sniperlabs/snipercore/internal/store/postgres"
	"github.com/sniperlabs/snipercore/internal/strategy"
)

// Dependencies bundles everything the application lifecycle needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *registry.Registry
	Bus      *bus.Bus
	Ledger   *risk.Ledger
	Executor *executor.Executor

	Orchestrator *pipeline.Orchestrator
	Sweeper      *registry.Sweeper

	PriceCache   domain.PriceCache
	PriceHistory domain.PriceHistory
	EventStream  domain.EventStream

	FillStore      domain.FillStore
	RiskEventStore domain.RiskEventStore

	Archiver *s3blob.FillArchiver
	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency graph from the configuration. The
// returned cleanup releases resources in reverse order; call it on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Redis backs the price cache, history, and audit stream; the pipeline
	// cannot run without it.
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.PriceHistory = redis.NewPriceHistory(redisClient, cfg.Trading.HistoryWindow*10)
	deps.EventStream = redis.NewEventStream(redisClient)

	// PostgreSQL persistence is optional.
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.FillStore = postgres.NewFillStore(pool)
		deps.RiskEventStore = postgres.NewRiskEventStore(pool)
	}

	// Object storage for the fill archiver is optional and requires the
	// fill store.
	if cfg.S3.Enabled && deps.FillStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewFillArchiver(s3blob.NewWriter(s3Client), deps.FillStore, logger)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	// Core coordinator state.
	deps.Registry = registry.New(logger)
	deps.Bus = bus.New(deps.Registry, cfg.Agents.MailboxDepth, logger)
	deps.Sweeper = registry.NewSweeper(deps.Registry, cfg.Agents.HeartbeatTTL.Duration, logger)

	limits := domain.PositionLimits{
		MaxPositionSize:  cfg.Risk.MaxPositionSize,
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		MaxPortfolioRisk: cfg.Risk.MaxPortfolioRisk,
		MaxCorrelation:   cfg.Risk.MaxCorrelation,
	}
	correlator := risk.NewHistoryCorrelator(deps.PriceHistory, cfg.Trading.HistoryWindow)
	deps.Ledger = risk.NewLedger(limits, correlator, risk.CapitalFractionScorer(cfg.Trading.Capital), logger)

	settler, err := buildSettler(ctx, cfg, deps.PriceCache, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closer, ok := settler.(interface{ Close() }); ok {
		closers = append(closers, closer.Close)
	}
	deps.Executor = executor.New(settler, cfg.Trading.ExecutionTimeout.Duration, logger)

	engine := strategy.NewEngine(
		strategy.NewThresholdEvaluator(cfg.Trading.MoveThreshold, cfg.Trading.OrderSize),
		cfg.Trading.MinConfidence,
		logger,
	)

	deps.Orchestrator, err = pipeline.New(pipeline.Deps{
		Registry:   deps.Registry,
		Bus:        deps.Bus,
		Ledger:     deps.Ledger,
		Executor:   deps.Executor,
		Engine:     engine,
		Prices:     deps.PriceCache,
		History:    deps.PriceHistory,
		Events:     deps.EventStream,
		Fills:      deps.FillStore,
		RiskEvents: deps.RiskEventStore,
		Notifier:   deps.Notifier,
		Logger:     logger,
	}, pipeline.Config{
		PollInterval:      cfg.Agents.PollInterval.Duration,
		HeartbeatInterval: cfg.Agents.HeartbeatInterval.Duration,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pipeline: %w", err)
	}

	return deps, cleanup, nil
}

// buildSettler selects the settlement backend from trading.mode. Paper is
// the default; live settles on chain with the configured wallet key.
func buildSettler(ctx context.Context, cfg *config.Config, prices domain.PriceCache, logger *slog.Logger) (executor.Settler, error) {
	if cfg.Trading.Mode != "live" {
		return settle.NewPaperSettler(prices, cfg.Trading.PaperLatency.Duration, logger), nil
	}

	key, err := crypto.LoadKey(crypto.KeySource{
		RawKey:        cfg.Chain.PrivateKey,
		EncryptedPath: cfg.Chain.EncryptedKeyPath,
		Password:      cfg.Chain.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: settlement key: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	settler, err := settle.NewChainSettler(dialCtx, cfg.Chain.RpcURL, key, cfg.Chain.SettlementAddress, cfg.Chain.ChainID, logger)
	if err != nil {
		return nil, fmt.Errorf("wire: chain settler: %w", err)
	}
	return settler, nil
}
