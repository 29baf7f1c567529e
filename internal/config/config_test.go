package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "paper", cfg.Trading.Mode)
	assert.Equal(t, 0.6, cfg.Trading.MinConfidence)
	assert.Equal(t, 1000.0, cfg.Risk.MaxPositionSize)
	assert.Equal(t, 500.0, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, 0.02, cfg.Risk.MaxPortfolioRisk)
	assert.Equal(t, 0.7, cfg.Risk.MaxCorrelation)
	assert.Equal(t, 30*time.Second, cfg.Agents.HeartbeatTTL.Duration)
	assert.Equal(t, 1000, cfg.Agents.MailboxDepth)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.S3.Enabled)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.Mode = "dry_run"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading.mode")
}

func TestValidateLiveModeRequiresChainConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.Mode = "live"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain.rpc_url")
	assert.Contains(t, err.Error(), "chain.settlement_address")
	assert.Contains(t, err.Error(), "chain.private_key")

	cfg.Chain.RpcURL = "https://rpc.example.com"
	cfg.Chain.SettlementAddress = "0x0000000000000000000000000000000000000001"
	cfg.Chain.PrivateKey = "deadbeef"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.Capital = -1
	cfg.Risk.MaxCorrelation = 2
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading.capital")
	assert.Contains(t, err.Error(), "risk.max_correlation")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[trading]
mode = "paper"
capital = 50000.0
execution_timeout = "2s"

[risk]
max_daily_loss = 250.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 50000.0, cfg.Trading.Capital)
	assert.Equal(t, 2*time.Second, cfg.Trading.ExecutionTimeout.Duration)
	assert.Equal(t, 250.0, cfg.Risk.MaxDailyLoss)

	// Untouched sections keep their defaults.
	assert.Equal(t, 1000.0, cfg.Risk.MaxPositionSize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("SNIPER_TRADING_CAPITAL", "75000")
	t.Setenv("SNIPER_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SNIPER_TRADING_SYMBOLS", "SOL/USDC, ETH/USDC")
	t.Setenv("SNIPER_POSTGRES_ENABLED", "true")
	t.Setenv("SNIPER_AGENTS_POLL_INTERVAL", "50ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 75000.0, cfg.Trading.Capital)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"SOL/USDC", "ETH/USDC"}, cfg.Trading.Symbols)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, 50*time.Millisecond, cfg.Agents.PollInterval.Duration)
}

func TestEnvOverrideIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SNIPER_TRADING_CAPITAL", "lots")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Trading.Capital, cfg.Trading.Capital)
}
