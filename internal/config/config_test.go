package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 15, cfg.Scan.IntervalMinutes)
	assert.Equal(t, 2.0, cfg.Risk.RiskPerTradePct)
	assert.Equal(t, "fixed", cfg.Risk.PositionSizeMethod)
	assert.Equal(t, 0.35, cfg.Risk.MinBuyConfidence)
	assert.Equal(t, 10.0, cfg.Risk.MaxDrawdownPct)
	assert.NotEmpty(t, cfg.Scan.Watchlist)
	assert.InDelta(t, 1.0,
		cfg.Strategy.MomentumWeight+cfg.Strategy.MeanReversionWeight+cfg.Strategy.NewsSentimentWeight,
		1e-9)
}

func TestLoad_ParsesValues(t *testing.T) {
	body := `
scan:
  interval_minutes: 5
  watchlist: [aapl, " msft "]
risk:
  position_size_method: ATR
  risk_per_trade_pct: 1.5
  max_open_positions: 4
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scan.IntervalMinutes)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Scan.Watchlist)
	assert.Equal(t, "atr", cfg.Risk.PositionSizeMethod)
	assert.Equal(t, 1.5, cfg.Risk.RiskPerTradePct)
	assert.Equal(t, 4, cfg.Risk.MaxOpenPositions)
}

func TestLoad_RejectsBadSizingMethod(t *testing.T) {
	_, err := Load(writeConfig(t, "risk:\n  position_size_method: kelly\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position_size_method")
}

func TestLoad_RejectsBadConfidence(t *testing.T) {
	_, err := Load(writeConfig(t, "risk:\n  min_buy_confidence: 35\n"))
	require.Error(t, err)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")

	cfg, err := Load(writeConfig(t, "alpaca:\n  api_key: file-key\n"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Alpaca.APIKey)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
}
