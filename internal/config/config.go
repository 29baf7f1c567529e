// Package config defines the top-level configuration for the trading
// coordinator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by SNIPER_* environment variables.
type Config struct {
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Agents   AgentsConfig   `toml:"agents"`
	Feed     FeedConfig     `toml:"feed"`
	Chain    ChainConfig    `toml:"chain"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// TradingConfig holds pipeline and strategy parameters.
type TradingConfig struct {
	// Mode selects the settlement backend: "paper" or "live".
	Mode string `toml:"mode"`

	Symbols       []string `toml:"symbols"`
	Capital       float64  `toml:"capital"`
	OrderSize     float64  `toml:"order_size"`
	MoveThreshold float64  `toml:"move_threshold"`
	MinConfidence float64  `toml:"min_confidence"`

	ExecutionTimeout duration `toml:"execution_timeout"`
	PaperLatency     duration `toml:"paper_latency"`

	// HistoryWindow is the number of price points used per symbol for the
	// correlation check.
	HistoryWindow int `toml:"history_window"`
}

// RiskConfig holds the position limits enforced by the risk ledger.
type RiskConfig struct {
	MaxPositionSize  float64 `toml:"max_position_size"`
	MaxDailyLoss     float64 `toml:"max_daily_loss"`
	MaxPortfolioRisk float64 `toml:"max_portfolio_risk"`
	MaxCorrelation   float64 `toml:"max_correlation"`
}

// AgentsConfig holds registry and bus parameters.
type AgentsConfig struct {
	HeartbeatTTL      duration `toml:"heartbeat_ttl"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	MailboxDepth      int      `toml:"mailbox_depth"`
	PollInterval      duration `toml:"poll_interval"`
}

// FeedConfig holds the market-data WebSocket endpoint.
type FeedConfig struct {
	WsURL string `toml:"ws_url"`
}

// ChainConfig holds the on-chain settlement parameters, used in live mode.
type ChainConfig struct {
	RpcURL            string `toml:"rpc_url"`
	ChainID           int64  `toml:"chain_id"`
	SettlementAddress string `toml:"settlement_address"`
	PrivateKey        string `toml:"private_key"`
	EncryptedKeyPath  string `toml:"encrypted_key_path"`
	KeyPassword       string `toml:"key_password"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters. Persistence is
// optional; with Enabled false, fills and risk events stay in memory only.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds object-storage parameters for the fill archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`

	ArchiveRetentionDays int `toml:"archive_retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the shipped default values.
func Defaults() Config {
	return Config{
		Trading: TradingConfig{
			Mode:             "paper",
			Symbols:          []string{"SOL/USDC"},
			Capital:          100_000,
			OrderSize:        10,
			MoveThreshold:    0.005,
			MinConfidence:    0.6,
			ExecutionTimeout: duration{5 * time.Second},
			PaperLatency:     duration{0},
			HistoryWindow:    100,
		},
		Risk: RiskConfig{
			MaxPositionSize:  1000,
			MaxDailyLoss:     500,
			MaxPortfolioRisk: 0.02,
			MaxCorrelation:   0.7,
		},
		Agents: AgentsConfig{
			HeartbeatTTL:      duration{30 * time.Second},
			HeartbeatInterval: duration{10 * time.Second},
			MailboxDepth:      1000,
			PollInterval:      duration{25 * time.Millisecond},
		},
		Chain: ChainConfig{
			ChainID: 1,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "snipercore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:              false,
			Endpoint:             "http://localhost:9000",
			Region:               "us-east-1",
			Bucket:               "snipercore-data",
			ForcePathStyle:       true,
			ArchiveRetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"emergency_stop", "daily_loss", "execution_failed"},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the config and returns a combined error describing every
// problem found.
func (c *Config) Validate() error {
	var problems []string

	switch c.Trading.Mode {
	case "paper", "live":
	default:
		problems = append(problems, fmt.Sprintf("trading.mode must be \"paper\" or \"live\", got %q", c.Trading.Mode))
	}
	if c.Trading.Capital <= 0 {
		problems = append(problems, "trading.capital must be positive")
	}
	if c.Trading.OrderSize <= 0 {
		problems = append(problems, "trading.order_size must be positive")
	}
	if c.Trading.MinConfidence < 0 || c.Trading.MinConfidence > 1 {
		problems = append(problems, "trading.min_confidence must be in [0, 1]")
	}
	if c.Trading.MoveThreshold <= 0 {
		problems = append(problems, "trading.move_threshold must be positive")
	}

	if c.Risk.MaxPositionSize <= 0 {
		problems = append(problems, "risk.max_position_size must be positive")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		problems = append(problems, "risk.max_daily_loss must be positive")
	}
	if c.Risk.MaxPortfolioRisk <= 0 {
		problems = append(problems, "risk.max_portfolio_risk must be positive")
	}
	if c.Risk.MaxCorrelation <= 0 || c.Risk.MaxCorrelation > 1 {
		problems = append(problems, "risk.max_correlation must be in (0, 1]")
	}

	if c.Agents.HeartbeatTTL.Duration <= 0 {
		problems = append(problems, "agents.heartbeat_ttl must be positive")
	}
	if c.Agents.MailboxDepth < 0 {
		problems = append(problems, "agents.mailbox_depth must not be negative")
	}

	if c.Trading.Mode == "live" {
		if c.Chain.RpcURL == "" {
			problems = append(problems, "chain.rpc_url is required in live mode")
		}
		if c.Chain.SettlementAddress == "" {
			problems = append(problems, "chain.settlement_address is required in live mode")
		}
		if c.Chain.PrivateKey == "" && c.Chain.EncryptedKeyPath == "" {
			problems = append(problems, "chain.private_key or chain.encrypted_key_path is required in live mode")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if !validLogLevels[c.LogLevel] {
		problems = append(problems, fmt.Sprintf("log_level must be one of debug/info/warn/error, got %q", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
