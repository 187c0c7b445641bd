package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads a YAML config file, applies defaults and validates the result.
// Secrets can be supplied via environment instead of the file:
// ALPACA_API_KEY, ALPACA_SECRET_KEY, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	var cfg Config
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
		if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
			dc.WeaklyTypedInput = true
		}); err != nil {
			return nil, fmt.Errorf("parsing config failed: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		cfg.Alpaca.SecretKey = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
}

func validate(cfg *Config) error {
	method := strings.ToLower(strings.TrimSpace(cfg.Risk.PositionSizeMethod))
	if method != "fixed" && method != "atr" {
		return fmt.Errorf("risk.position_size_method must be fixed or atr, got %q", cfg.Risk.PositionSizeMethod)
	}
	cfg.Risk.PositionSizeMethod = method

	if cfg.Risk.RiskPerTradePct > 100 {
		return fmt.Errorf("risk.risk_per_trade_pct %.1f is not a percentage", cfg.Risk.RiskPerTradePct)
	}
	if cfg.Risk.MinBuyConfidence > 1 {
		return fmt.Errorf("risk.min_buy_confidence must be in [0,1], got %.2f", cfg.Risk.MinBuyConfidence)
	}
	if cfg.Risk.MaxOpenPositions < 0 {
		return fmt.Errorf("risk.max_open_positions cannot be negative")
	}
	for i, sym := range cfg.Scan.Watchlist {
		cfg.Scan.Watchlist[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	return nil
}
