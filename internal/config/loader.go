package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML file at path, merges it on top of the built-in
// defaults, applies SNIPER_* environment overrides, and returns the final
// Config. The caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present; silently ignore when missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from well-known SNIPER_*
// variables so operators can inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Trading.
	setStr(&cfg.Trading.Mode, "SNIPER_TRADING_MODE")
	setStringSlice(&cfg.Trading.Symbols, "SNIPER_TRADING_SYMBOLS")
	setFloat64(&cfg.Trading.Capital, "SNIPER_TRADING_CAPITAL")
	setFloat64(&cfg.Trading.OrderSize, "SNIPER_TRADING_ORDER_SIZE")
	setFloat64(&cfg.Trading.MoveThreshold, "SNIPER_TRADING_MOVE_THRESHOLD")
	setFloat64(&cfg.Trading.MinConfidence, "SNIPER_TRADING_MIN_CONFIDENCE")
	setDuration(&cfg.Trading.ExecutionTimeout, "SNIPER_TRADING_EXECUTION_TIMEOUT")
	setDuration(&cfg.Trading.PaperLatency, "SNIPER_TRADING_PAPER_LATENCY")
	setInt(&cfg.Trading.HistoryWindow, "SNIPER_TRADING_HISTORY_WINDOW")

	// Risk.
	setFloat64(&cfg.Risk.MaxPositionSize, "SNIPER_RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.MaxDailyLoss, "SNIPER_RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxPortfolioRisk, "SNIPER_RISK_MAX_PORTFOLIO_RISK")
	setFloat64(&cfg.Risk.MaxCorrelation, "SNIPER_RISK_MAX_CORRELATION")

	// Agents.
	setDuration(&cfg.Agents.HeartbeatTTL, "SNIPER_AGENTS_HEARTBEAT_TTL")
	setDuration(&cfg.Agents.HeartbeatInterval, "SNIPER_AGENTS_HEARTBEAT_INTERVAL")
	setInt(&cfg.Agents.MailboxDepth, "SNIPER_AGENTS_MAILBOX_DEPTH")
	setDuration(&cfg.Agents.PollInterval, "SNIPER_AGENTS_POLL_INTERVAL")

	// Feed.
	setStr(&cfg.Feed.WsURL, "SNIPER_FEED_WS_URL")

	// Chain.
	setStr(&cfg.Chain.RpcURL, "SNIPER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "SNIPER_CHAIN_ID")
	setStr(&cfg.Chain.SettlementAddress, "SNIPER_CHAIN_SETTLEMENT_ADDRESS")
	setStr(&cfg.Chain.PrivateKey, "SNIPER_CHAIN_PRIVATE_KEY")
	setStr(&cfg.Chain.EncryptedKeyPath, "SNIPER_CHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Chain.KeyPassword, "SNIPER_CHAIN_KEY_PASSWORD")

	// Redis.
	setStr(&cfg.Redis.Addr, "SNIPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SNIPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SNIPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SNIPER_REDIS_TLS_ENABLED")

	// Postgres.
	setBool(&cfg.Postgres.Enabled, "SNIPER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SNIPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SNIPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SNIPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SNIPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SNIPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SNIPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SNIPER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SNIPER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SNIPER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SNIPER_POSTGRES_RUN_MIGRATIONS")

	// S3.
	setBool(&cfg.S3.Enabled, "SNIPER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SNIPER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SNIPER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SNIPER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SNIPER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SNIPER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SNIPER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SNIPER_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.ArchiveRetentionDays, "SNIPER_S3_ARCHIVE_RETENTION_DAYS")

	// Server.
	setBool(&cfg.Server.Enabled, "SNIPER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SNIPER_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SNIPER_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SNIPER_SERVER_CORS_ORIGINS")

	// Notify.
	setStr(&cfg.Notify.TelegramToken, "SNIPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPER_NOTIFY_EVENTS")

	// Top-level.
	setStr(&cfg.LogLevel, "SNIPER_LOG_LEVEL")
}

// Typed env-var helpers; each mutates the target only when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
