package config

// Config is the full runtime configuration, loaded once at startup and
// passed by reference into the composition root. No package-level state.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Alpaca      AlpacaConfig      `mapstructure:"alpaca"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Scan        ScanConfig        `mapstructure:"scan"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Earnings    EarningsConfig    `mapstructure:"earnings"`
	Sector      SectorConfig      `mapstructure:"sector"`
	PartialExit PartialExitConfig `mapstructure:"partial_exit"`
}

type AppConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogPath   string `mapstructure:"log_path"`
	StatePath string `mapstructure:"state_path"` // sqlite state file
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
	DataURL   string `mapstructure:"data_url"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type ScanConfig struct {
	IntervalMinutes   int      `mapstructure:"interval_minutes"`
	Watchlist         []string `mapstructure:"watchlist"`
	UseDynamicScanner bool     `mapstructure:"use_dynamic_scanner"`
	TopMoversN        int      `mapstructure:"top_movers_n"`
	SymbolDelayMs     int      `mapstructure:"symbol_delay_ms"`
	DedupeMinutes     int      `mapstructure:"dedupe_minutes"`
}

type RiskConfig struct {
	RiskPerTradePct    float64 `mapstructure:"risk_per_trade_pct"`
	MaxPositionDollars float64 `mapstructure:"max_position_dollars"`
	StopLossPct        float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct      float64 `mapstructure:"take_profit_pct"`
	PositionSizeMethod string  `mapstructure:"position_size_method"` // fixed | atr
	ATRStopMultiplier  float64 `mapstructure:"atr_stop_multiplier"`
	ATRTargetMult      float64 `mapstructure:"atr_target_multiplier"`
	MaxOpenPositions   int     `mapstructure:"max_open_positions"` // 0 = unlimited

	MinBuyConfidence   float64 `mapstructure:"min_buy_confidence"`
	TradeCooldownHours float64 `mapstructure:"trade_cooldown_hours"`

	TrailingActivationPct float64 `mapstructure:"trailing_stop_activation_pct"`
	TrailingDistancePct   float64 `mapstructure:"trailing_stop_distance_pct"`

	MaxDrawdownPct  float64 `mapstructure:"max_drawdown_pct"`
	MaxDailyLossPct float64 `mapstructure:"max_daily_loss_pct"`

	UseMTFFilter bool `mapstructure:"use_mtf_filter"`
}

type StrategyConfig struct {
	// Weights feed the consensus vote. They should sum to 1.0; the
	// combiner normalizes by whatever they actually sum to.
	MomentumWeight      float64 `mapstructure:"momentum_weight"`
	MeanReversionWeight float64 `mapstructure:"mean_reversion_weight"`
	NewsSentimentWeight float64 `mapstructure:"news_sentiment_weight"`
}

type EarningsConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	BlockDaysBefore  int     `mapstructure:"block_days_before"`
	BlockDaysAfter   int     `mapstructure:"block_days_after"`
	AggressiveMode   bool    `mapstructure:"aggressive_mode"`
	AggressiveMinSent float64 `mapstructure:"aggressive_min_sentiment"`
	AggressiveMinVol  float64 `mapstructure:"aggressive_min_vol_spike"`
}

type SectorConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	TopN         int  `mapstructure:"top_n"`
	LookbackDays int  `mapstructure:"lookback_days"`
}

type PartialExitConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ATRMultiplier  float64 `mapstructure:"atr_multiplier"`   // partial target distance
	TrailATRMult   float64 `mapstructure:"trail_atr_mult"`   // post-partial trail distance
	TimeExitDays   int     `mapstructure:"time_exit_days"`   // dead-trade exit
	VolExitEnabled bool    `mapstructure:"vol_exit_enabled"` // ATR-doubled exit
}
