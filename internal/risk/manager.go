package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/logger"
)

// Manager owns process-lifetime risk state: portfolio peak, day-start
// value, per-symbol cooldown clocks and trailing stops, and the halt
// latch. It is only ever touched from the scan goroutine.
type Manager struct {
	broker broker.Broker
	cfg    config.RiskConfig

	peakValue     float64
	dayStartValue float64
	lastTradeTime map[string]time.Time
	trailingStops map[string]float64
	halted        bool

	nowFn func() time.Time
}

func NewManager(b broker.Broker, cfg config.RiskConfig) *Manager {
	return &Manager{
		broker:        b,
		cfg:           cfg,
		lastTradeTime: make(map[string]time.Time),
		trailingStops: make(map[string]float64),
		nowFn:         time.Now,
	}
}

// Init seeds peak and day-start values from the live account. Safe to
// call again; it only fills unset values.
func (m *Manager) Init(ctx context.Context) {
	acct, err := m.broker.GetAccount(ctx)
	if err != nil {
		logger.Errorf("risk: init account fetch failed: %v", err)
		return
	}
	if m.peakValue == 0 {
		m.peakValue = acct.PortfolioValue
	}
	if m.dayStartValue == 0 {
		m.dayStartValue = acct.PortfolioValue
	}
	logger.Infof("risk: initialized | portfolio $%.2f", acct.PortfolioValue)
}

// TrailingAction is what the trailing-stop check wants done.
type TrailingAction string

const (
	TrailingHold  TrailingAction = "hold"
	TrailingClose TrailingAction = "close"
)

// TrailingDecision reports the active stop and whether it was breached.
type TrailingDecision struct {
	Action    TrailingAction
	StopPrice float64
	Reason    string
}

// UpdateTrailingStop maintains the per-symbol stop. Below the activation
// profit a fixed stop applies; above it, the stop trails the price and
// only ever ratchets upward.
func (m *Manager) UpdateTrailingStop(symbol string, currentPrice, entryPrice float64) TrailingDecision {
	pnlPct := (currentPrice - entryPrice) / entryPrice * 100

	if pnlPct < m.cfg.TrailingActivationPct {
		regularStop := entryPrice * (1 - m.cfg.StopLossPct/100)
		if currentPrice <= regularStop {
			return TrailingDecision{
				Action:    TrailingClose,
				StopPrice: regularStop,
				Reason:    fmt.Sprintf("stop_loss (%+.1f%%)", pnlPct),
			}
		}
		return TrailingDecision{Action: TrailingHold, StopPrice: regularStop, Reason: "below activation"}
	}

	newTrail := currentPrice * (1 - m.cfg.TrailingDistancePct/100)
	oldTrail, ok := m.trailingStops[symbol]
	if !ok {
		oldTrail = entryPrice * (1 - m.cfg.StopLossPct/100)
	}
	trailStop := newTrail
	if oldTrail > trailStop {
		trailStop = oldTrail
	}
	m.trailingStops[symbol] = trailStop

	if currentPrice <= trailStop {
		delete(m.trailingStops, symbol)
		return TrailingDecision{
			Action:    TrailingClose,
			StopPrice: trailStop,
			Reason:    fmt.Sprintf("trailing_stop (%+.1f%% profit locked)", pnlPct),
		}
	}
	return TrailingDecision{
		Action:    TrailingHold,
		StopPrice: trailStop,
		Reason:    fmt.Sprintf("trailing at $%.2f | profit: %+.1f%%", trailStop, pnlPct),
	}
}

// ClearTrailing drops the trailing stop for a symbol, e.g. after an
// exit initiated elsewhere.
func (m *Manager) ClearTrailing(symbol string) {
	delete(m.trailingStops, symbol)
}

// CheckResult is the outcome of a circuit-breaker evaluation.
type CheckResult struct {
	OK     bool
	Pct    float64
	Reason string
}

// CheckDrawdown tracks peak portfolio value and latches the halt flag
// once the drawdown limit is breached. The latch survives recovery and
// is only cleared by ResetDaily.
func (m *Manager) CheckDrawdown(ctx context.Context) CheckResult {
	if m.halted {
		return CheckResult{OK: false, Reason: "bot halted (drawdown limit hit)"}
	}
	acct, err := m.broker.GetAccount(ctx)
	if err != nil {
		logger.Errorf("risk: drawdown check error: %v", err)
		return CheckResult{OK: true, Reason: "check error - allowing trade"}
	}
	current := acct.PortfolioValue
	if current > m.peakValue {
		m.peakValue = current
	}
	if m.peakValue == 0 {
		return CheckResult{OK: true, Reason: "OK"}
	}
	ddPct := (m.peakValue - current) / m.peakValue * 100
	if ddPct >= m.cfg.MaxDrawdownPct {
		m.halted = true
		logger.Errorf("risk: EMERGENCY HALT - drawdown %.1f%% exceeds limit %.1f%%", ddPct, m.cfg.MaxDrawdownPct)
		return CheckResult{
			OK:     false,
			Pct:    ddPct,
			Reason: fmt.Sprintf("max drawdown %.1f%% exceeded (%.1f%%)", m.cfg.MaxDrawdownPct, ddPct),
		}
	}
	return CheckResult{OK: true, Pct: ddPct, Reason: "OK"}
}

// CheckDailyLoss compares today's P&L against the daily loss limit.
// Unlike the drawdown breaker this does not latch: a recovering account
// unblocks by itself on a later scan.
func (m *Manager) CheckDailyLoss(ctx context.Context) CheckResult {
	acct, err := m.broker.GetAccount(ctx)
	if err != nil {
		return CheckResult{OK: true, Reason: "check error"}
	}
	if m.dayStartValue == 0 {
		m.dayStartValue = acct.PortfolioValue
		return CheckResult{OK: true, Reason: "OK"}
	}
	dailyPct := (acct.PortfolioValue - m.dayStartValue) / m.dayStartValue * 100
	limit := -m.cfg.MaxDailyLossPct
	if dailyPct <= limit {
		logger.Warnf("risk: daily loss limit hit: %.1f%% (limit %.1f%%)", dailyPct, limit)
		return CheckResult{
			OK:     false,
			Pct:    dailyPct,
			Reason: fmt.Sprintf("daily loss %.1f%% exceeds limit %.1f%%", dailyPct, limit),
		}
	}
	return CheckResult{OK: true, Pct: dailyPct, Reason: "OK"}
}

// ResetDaily re-seeds the day-start value and clears the halt latch.
// Call at the first scan of each trading day.
func (m *Manager) ResetDaily(ctx context.Context) {
	acct, err := m.broker.GetAccount(ctx)
	if err != nil {
		logger.Errorf("risk: daily reset account fetch failed: %v", err)
		return
	}
	m.dayStartValue = acct.PortfolioValue
	m.halted = false
	logger.Infof("risk: day reset | start value $%.2f", m.dayStartValue)
}

// Halted reports the drawdown latch.
func (m *Manager) Halted() bool { return m.halted }

// CheckCooldown returns true when the symbol may trade again.
func (m *Manager) CheckCooldown(symbol string) (bool, time.Duration) {
	last, ok := m.lastTradeTime[symbol]
	if !ok {
		return true, 0
	}
	cooldown := time.Duration(m.cfg.TradeCooldownHours * float64(time.Hour))
	elapsed := m.nowFn().Sub(last)
	if elapsed < cooldown {
		return false, cooldown - elapsed
	}
	return true, 0
}

// RecordTrade stamps the cooldown clock for a symbol. Called on every
// entry and on every forced exit.
func (m *Manager) RecordTrade(symbol string) {
	m.lastTradeTime[symbol] = m.nowFn()
}

// Alignment is the multi-timeframe trend check outcome.
type Alignment struct {
	Aligned bool
	Reason  string
}

// CheckTrendAlignment requires the daily trend to agree with the entry
// direction: price>EMA20>EMA50 for BUY, mirrored for SELL. Missing daily
// data fails open - the intraday signal stands alone.
func (m *Manager) CheckTrendAlignment(ctx context.Context, symbol, signal string) Alignment {
	daily, err := m.broker.GetBars(ctx, symbol, broker.TimeframeDaily, 60)
	if err != nil || daily.Len() < 30 {
		return Alignment{Aligned: true, Reason: "no daily data - allowing trade"}
	}
	closes := daily.Closes()
	ema20 := last(talib.Ema(closes, 20))
	ema50 := last(talib.Ema(closes, 50))
	price := closes[len(closes)-1]

	dailyBullish := price > ema20 && ema20 > ema50
	dailyBearish := price < ema20 && ema20 < ema50

	switch signal {
	case "BUY":
		if dailyBearish {
			return Alignment{
				Aligned: false,
				Reason:  fmt.Sprintf("daily trend bearish (price $%.2f < EMA20 $%.2f) - skipping BUY", price, ema20),
			}
		}
		if dailyBullish {
			return Alignment{Aligned: true, Reason: "daily bullish - OK for BUY"}
		}
		return Alignment{Aligned: true, Reason: "daily neutral - OK for BUY"}
	case "SELL":
		if dailyBullish {
			return Alignment{Aligned: false, Reason: "daily trend bullish - skipping SELL"}
		}
		return Alignment{Aligned: true, Reason: "daily supports SELL"}
	}
	return Alignment{Aligned: true, Reason: "MTF check skipped"}
}

// Status summarizes risk state for notifications and the dashboard.
type Status struct {
	Halted         bool
	PeakValue      float64
	DayStartValue  float64
	TrailingActive []string
}

func (m *Manager) Status() Status {
	active := make([]string, 0, len(m.trailingStops))
	for sym := range m.trailingStops {
		active = append(active, sym)
	}
	return Status{
		Halted:         m.halted,
		PeakValue:      m.peakValue,
		DayStartValue:  m.dayStartValue,
		TrailingActive: active,
	}
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
