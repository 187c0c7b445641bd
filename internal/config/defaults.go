package config

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.StatePath == "" {
		c.App.StatePath = "data/alphabot.db"
	}
	if c.Alpaca.BaseURL == "" {
		c.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
	}
	if c.Alpaca.DataURL == "" {
		c.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if c.Scan.IntervalMinutes <= 0 {
		c.Scan.IntervalMinutes = 15
	}
	if c.Scan.TopMoversN <= 0 {
		c.Scan.TopMoversN = 15
	}
	if c.Scan.SymbolDelayMs <= 0 {
		c.Scan.SymbolDelayMs = 300
	}
	if c.Scan.DedupeMinutes <= 0 {
		c.Scan.DedupeMinutes = 30
	}
	if len(c.Scan.Watchlist) == 0 {
		c.Scan.Watchlist = defaultWatchlist()
	}

	if c.Risk.RiskPerTradePct <= 0 {
		c.Risk.RiskPerTradePct = 2
	}
	if c.Risk.MaxPositionDollars <= 0 {
		c.Risk.MaxPositionDollars = 1000
	}
	if c.Risk.StopLossPct <= 0 {
		c.Risk.StopLossPct = 2
	}
	if c.Risk.TakeProfitPct <= 0 {
		c.Risk.TakeProfitPct = 4
	}
	if c.Risk.PositionSizeMethod == "" {
		c.Risk.PositionSizeMethod = "fixed"
	}
	if c.Risk.ATRStopMultiplier <= 0 {
		c.Risk.ATRStopMultiplier = 2
	}
	if c.Risk.ATRTargetMult <= 0 {
		c.Risk.ATRTargetMult = 4
	}
	if c.Risk.MinBuyConfidence <= 0 {
		c.Risk.MinBuyConfidence = 0.35
	}
	if c.Risk.TradeCooldownHours <= 0 {
		c.Risk.TradeCooldownHours = 1
	}
	if c.Risk.TrailingActivationPct <= 0 {
		c.Risk.TrailingActivationPct = 2
	}
	if c.Risk.TrailingDistancePct <= 0 {
		c.Risk.TrailingDistancePct = 1
	}
	if c.Risk.MaxDrawdownPct <= 0 {
		c.Risk.MaxDrawdownPct = 10
	}
	if c.Risk.MaxDailyLossPct <= 0 {
		c.Risk.MaxDailyLossPct = 5
	}

	if c.Strategy.MomentumWeight <= 0 &&
		c.Strategy.MeanReversionWeight <= 0 &&
		c.Strategy.NewsSentimentWeight <= 0 {
		c.Strategy.MomentumWeight = 0.35
		c.Strategy.MeanReversionWeight = 0.35
		c.Strategy.NewsSentimentWeight = 0.30
	}

	if c.Earnings.BlockDaysBefore <= 0 {
		c.Earnings.BlockDaysBefore = 3
	}
	if c.Earnings.BlockDaysAfter <= 0 {
		c.Earnings.BlockDaysAfter = 1
	}
	if c.Earnings.AggressiveMinSent <= 0 {
		c.Earnings.AggressiveMinSent = 0.7
	}
	if c.Earnings.AggressiveMinVol <= 0 {
		c.Earnings.AggressiveMinVol = 2
	}

	if c.Sector.TopN <= 0 {
		c.Sector.TopN = 3
	}
	if c.Sector.LookbackDays <= 0 {
		c.Sector.LookbackDays = 20
	}

	if c.PartialExit.ATRMultiplier <= 0 {
		c.PartialExit.ATRMultiplier = 3
	}
	if c.PartialExit.TrailATRMult <= 0 {
		c.PartialExit.TrailATRMult = 2
	}
	if c.PartialExit.TimeExitDays <= 0 {
		c.PartialExit.TimeExitDays = 10
	}
}

func defaultWatchlist() []string {
	return []string{
		// broad market
		"SPY", "QQQ", "DIA", "IWM",
		// mega cap tech
		"AAPL", "MSFT", "NVDA", "GOOGL", "AMZN", "META", "TSLA",
		// growth tech
		"AMD", "ORCL", "NFLX", "PLTR", "CRM",
		// finance
		"JPM", "BAC", "GS", "V", "MA", "COIN",
		// healthcare
		"UNH", "LLY", "ABBV", "JNJ", "MRK", "PFE",
		// energy
		"XOM", "CVX", "OXY", "COP", "SLB",
		// consumer
		"WMT", "COST", "HD", "MCD", "SBUX",
		// sector ETFs
		"XLK", "XLF", "XLV", "XLE", "XLY",
		// commodities
		"GLD", "SLV", "USO", "UNG",
	}
}
