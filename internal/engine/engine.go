package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/exits"
	"alphabot/internal/indicator"
	"alphabot/internal/logger"
	"alphabot/internal/market"
	"alphabot/internal/notifier"
	"alphabot/internal/risk"
	"alphabot/internal/sizing"
	"alphabot/internal/store"
	"alphabot/internal/strategy"
)

const (
	intradayBarLimit = 120
	dailyBarLimit    = 80
	newsLimit        = 10
)

// Engine drives one scan cycle end to end: manage open positions, then
// score the watchlist, gate the candidates, size the survivors and place
// orders. It owns no goroutines; the scheduler calls Scan.
type Engine struct {
	cfg      *config.Config
	broker   broker.Broker
	combiner *strategy.Combiner
	riskMgr  *risk.Manager
	chain    *risk.Chain
	sizer    *sizing.Calculator
	exits    *exits.Manager
	state    store.StateStore
	signals  store.SignalLog
	notify   notifier.TextNotifier

	lastSignal   map[string]signalStamp
	lastResetDay string
	haltNotified bool
	nowFn        func() time.Time
}

type signalStamp struct {
	signal strategy.Signal
	at     time.Time
}

func New(
	cfg *config.Config,
	b broker.Broker,
	combiner *strategy.Combiner,
	riskMgr *risk.Manager,
	chain *risk.Chain,
	sizer *sizing.Calculator,
	exitMgr *exits.Manager,
	state store.StateStore,
	signals store.SignalLog,
	notify notifier.TextNotifier,
) *Engine {
	return &Engine{
		cfg:        cfg,
		broker:     b,
		combiner:   combiner,
		riskMgr:    riskMgr,
		chain:      chain,
		sizer:      sizer,
		exits:      exitMgr,
		state:      state,
		signals:    signals,
		notify:     notify,
		lastSignal: make(map[string]signalStamp),
		nowFn:      time.Now,
	}
}

// Scan runs one full cycle. It never returns an error: every failure is
// contained to the symbol or subsystem it occurred in.
func (e *Engine) Scan(ctx context.Context) {
	start := e.nowFn()

	if !e.running() {
		logger.Infof("engine: paused, skipping scan")
		return
	}
	open, err := e.broker.IsMarketOpen(ctx)
	if err != nil {
		logger.Errorf("engine: market clock check failed: %v", err)
		return
	}
	if !open {
		logger.Debugf("engine: market closed")
		return
	}

	e.maybeResetDay(ctx)

	// Position management runs before any entry logic so a halted
	// account still gets its exits.
	e.managePositions(ctx)

	dd := e.riskMgr.CheckDrawdown(ctx)
	dl := e.riskMgr.CheckDailyLoss(ctx)
	entriesAllowed := dd.OK && dl.OK
	if !entriesAllowed {
		reason := dd.Reason
		if dd.OK {
			reason = dl.Reason
		}
		logger.Warnf("engine: entries disabled: %s", reason)
		if !e.haltNotified {
			e.haltNotified = true
			e.send(notifier.FormatHalt(reason))
		}
	} else {
		e.haltNotified = false
	}

	symbols := e.buildWatchlist(ctx)
	scanned, buys, sells, blocked := 0, 0, 0, 0
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}
		scanned++
		outcome := e.scanSymbol(ctx, symbol, entriesAllowed)
		switch outcome {
		case outcomeBuy:
			buys++
		case outcomeSell:
			sells++
		case outcomeBlocked:
			blocked++
		}
		if delay := e.cfg.Scan.SymbolDelayMs; delay > 0 {
			time.Sleep(time.Duration(delay) * time.Millisecond)
		}
	}

	elapsed := e.nowFn().Sub(start).Truncate(time.Second)
	logger.Infof("engine: scan done | %d symbols, %d buys, %d sells, %d blocked in %s",
		scanned, buys, sells, blocked, elapsed)
	if buys+sells > 0 {
		e.send(notifier.FormatScanSummary(scanned, buys, sells, blocked, elapsed.String()))
	}
}

type outcome int

const (
	outcomeHold outcome = iota
	outcomeBuy
	outcomeSell
	outcomeBlocked
)

func (e *Engine) scanSymbol(ctx context.Context, symbol string, entriesAllowed bool) outcome {
	bars, err := e.broker.GetBars(ctx, symbol, broker.TimeframeIntraday, intradayBarLimit)
	if err != nil {
		logger.Warnf("engine: %s bars: %v", symbol, err)
		return outcomeHold
	}
	if bars.Len() < 30 {
		logger.Debugf("engine: %s has only %d bars, skipping", symbol, bars.Len())
		return outcomeHold
	}
	daily, err := e.broker.GetBars(ctx, symbol, broker.TimeframeDaily, dailyBarLimit)
	if err != nil {
		daily = nil
	}
	articles, err := e.broker.GetNews(ctx, []string{symbol}, newsLimit)
	if err != nil {
		articles = nil
	}

	consensus := e.combiner.Run(strategy.Input{
		Symbol:   symbol,
		Bars:     bars,
		Daily:    daily,
		VWAP:     sessionVWAP(bars),
		Articles: articles,
	})
	e.logSignal(consensus)

	if consensus.Signal == strategy.SignalHold {
		return outcomeHold
	}
	if e.isDuplicate(symbol, consensus.Signal) {
		logger.Debugf("engine: %s %s deduped (same signal within window)", symbol, consensus.Signal)
		return outcomeHold
	}
	e.lastSignal[symbol] = signalStamp{signal: consensus.Signal, at: e.nowFn()}
	e.send(notifier.FormatSignal(consensus))

	if consensus.Signal == strategy.SignalSell {
		return e.handleSell(ctx, symbol, consensus)
	}
	if !entriesAllowed {
		return outcomeBlocked
	}
	return e.handleBuy(ctx, symbol, consensus, bars)
}

// handleSell closes a held position; a SELL on a flat symbol is a no-op
// because the book is long-only.
func (e *Engine) handleSell(ctx context.Context, symbol string, consensus strategy.Consensus) outcome {
	pos, err := e.broker.GetPosition(ctx, symbol)
	if err != nil {
		logger.Errorf("engine: %s position lookup: %v", symbol, err)
		return outcomeHold
	}
	if pos == nil {
		logger.Debugf("engine: %s SELL with no position, ignoring", symbol)
		return outcomeHold
	}
	if err := e.broker.ClosePosition(ctx, symbol); err != nil {
		logger.Errorf("engine: close %s: %v", symbol, err)
		return outcomeHold
	}
	e.exits.Drop(symbol)
	e.riskMgr.ClearTrailing(symbol)
	e.riskMgr.RecordTrade(symbol)
	e.send(fmt.Sprintf("📤 *SELL* %s %.0f @ ~$%.2f (consensus %.0f%%)",
		symbol, pos.Qty, pos.CurrentPrice, consensus.Confidence*100))
	return outcomeSell
}

func (e *Engine) handleBuy(ctx context.Context, symbol string, consensus strategy.Consensus, bars market.Series) outcome {
	snap := indicator.Compute(bars)

	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		logger.Errorf("engine: positions for gate check: %v", err)
		return outcomeHold
	}
	held := make([]string, 0, len(positions))
	for _, p := range positions {
		held = append(held, p.Symbol)
	}
	var sentiment float64
	if r, ok := consensus.Results["news_sentiment"]; ok {
		sentiment = r.Indicators["sentiment_score"]
	}

	verdict, gate := e.chain.Evaluate(ctx, risk.Candidate{
		Symbol:         symbol,
		Signal:         strategy.SignalBuy,
		Confidence:     consensus.Confidence,
		Price:          snap.Price,
		SentimentScore: sentiment,
		VolumeRatio:    snap.VolRatio,
		OpenPositions:  len(positions),
		HeldSymbols:    held,
	})
	if !verdict.Allowed {
		logger.Infof("engine: %s BUY blocked by %s: %s", symbol, gate, verdict.Reason)
		return outcomeBlocked
	}

	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		logger.Errorf("engine: account for sizing: %v", err)
		return outcomeHold
	}

	price := snap.Price
	if quote, err := e.broker.GetLatestQuote(ctx, symbol); err == nil && quote.Mid > 0 {
		price = quote.Mid
	}

	fallbackStop := price * (1 - e.cfg.Risk.StopLossPct/100)
	if consensus.Targets != nil && consensus.Targets.Stop > 0 && consensus.Targets.Stop < price {
		fallbackStop = consensus.Targets.Stop
	}
	sized := e.sizer.Size(acct.PortfolioValue, price, snap.ATR, fallbackStop)
	if sized.Qty <= 0 {
		logger.Warnf("engine: %s sized to zero, skipping", symbol)
		return outcomeHold
	}
	if sized.TargetPrice == 0 {
		sized.TargetPrice = price * (1 + e.cfg.Risk.TakeProfitPct/100)
	}

	order := broker.BracketOrder{
		Symbol:      symbol,
		Qty:         sizing.BracketQty(sized.Qty),
		Side:        "buy",
		StopPrice:   sizing.SafeStopPrice(sized.StopPrice),
		TargetPrice: sizing.SafeTargetPrice(sized.TargetPrice),
	}
	ack, err := e.broker.PlaceBracketOrder(ctx, order)
	if err != nil {
		logger.Errorf("engine: bracket order %s: %v", symbol, err)
		return outcomeHold
	}
	if ack == nil {
		logger.Warnf("engine: bracket order %s rejected by broker", symbol)
		return outcomeHold
	}

	e.riskMgr.RecordTrade(symbol)
	if e.cfg.PartialExit.Enabled {
		if err := e.exits.Register(symbol, price, float64(order.Qty), snap.ATR); err != nil {
			logger.Errorf("engine: register exit tracking %s: %v", symbol, err)
		}
	}
	e.send(notifier.FormatOrder(order, price))
	logger.Infof("engine: BUY %s qty=%d stop=%.2f target=%.2f risk=$%.2f",
		symbol, order.Qty, order.StopPrice, order.TargetPrice, sized.RiskAmount)
	return outcomeBuy
}

// managePositions runs the partial-exit ladder, then the plain trailing
// stop for positions the exit manager does not track.
func (e *Engine) managePositions(ctx context.Context) {
	atrOf := func(symbol string) float64 {
		bars, err := e.broker.GetBars(ctx, symbol, broker.TimeframeIntraday, 40)
		if err != nil || bars.Len() < 15 {
			return 0
		}
		return indicator.ATR(bars, 14)
	}
	for _, ev := range e.exits.Monitor(ctx, atrOf) {
		if ev.Kind != exits.EventOrphanDrop {
			e.riskMgr.RecordTrade(ev.Symbol)
			e.riskMgr.ClearTrailing(ev.Symbol)
		}
		e.send(notifier.FormatExit(ev))
		e.logExit(ev)
	}

	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		logger.Errorf("engine: positions for trailing check: %v", err)
		return
	}
	for _, pos := range positions {
		if e.exits.Tracked(pos.Symbol) {
			continue
		}
		d := e.riskMgr.UpdateTrailingStop(pos.Symbol, pos.CurrentPrice, pos.EntryPrice)
		if d.Action != risk.TrailingClose {
			continue
		}
		if err := e.broker.ClosePosition(ctx, pos.Symbol); err != nil {
			logger.Errorf("engine: trailing close %s: %v", pos.Symbol, err)
			continue
		}
		e.riskMgr.RecordTrade(pos.Symbol)
		pnlPct := (pos.CurrentPrice - pos.EntryPrice) / pos.EntryPrice * 100
		e.send(fmt.Sprintf("🛑 *%s* closed: %s (%+.1f%%)", pos.Symbol, d.Reason, pnlPct))
	}
}

func (e *Engine) buildWatchlist(ctx context.Context) []string {
	symbols := append([]string(nil), e.cfg.Scan.Watchlist...)
	if !e.cfg.Scan.UseDynamicScanner {
		return symbols
	}
	movers, err := e.broker.GetTopMovers(ctx, e.cfg.Scan.TopMoversN)
	if err != nil {
		logger.Warnf("engine: top movers unavailable: %v", err)
		return symbols
	}
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		seen[s] = true
	}
	for _, s := range movers {
		s = strings.ToUpper(s)
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func (e *Engine) isDuplicate(symbol string, signal strategy.Signal) bool {
	window := time.Duration(e.cfg.Scan.DedupeMinutes) * time.Minute
	if window <= 0 {
		return false
	}
	stamp, ok := e.lastSignal[symbol]
	return ok && stamp.signal == signal && e.nowFn().Sub(stamp.at) < window
}

func (e *Engine) maybeResetDay(ctx context.Context) {
	today := e.nowFn().Format("2006-01-02")
	if e.lastResetDay == today {
		return
	}
	e.lastResetDay = today
	e.riskMgr.ResetDaily(ctx)
}

func (e *Engine) running() bool {
	val, found, err := e.state.LoadFlag(store.FlagRunning)
	if err != nil {
		logger.Errorf("engine: load running flag: %v", err)
		return true
	}
	if !found {
		return true
	}
	return val
}

// HandleCommand serves the chat control surface.
func (e *Engine) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/start":
		if err := e.state.SaveFlag(store.FlagRunning, true); err != nil {
			return fmt.Sprintf("failed to resume: %v", err)
		}
		return "▶️ Trading resumed"
	case "/stop":
		if err := e.state.SaveFlag(store.FlagRunning, false); err != nil {
			return fmt.Sprintf("failed to pause: %v", err)
		}
		return "⏸ Trading paused (scans suspended)"
	case "/status":
		return e.statusText(ctx)
	case "/positions":
		positions, err := e.broker.GetPositions(ctx)
		if err != nil {
			return fmt.Sprintf("positions unavailable: %v", err)
		}
		return notifier.FormatPositions(positions)
	}
	return ""
}

func (e *Engine) statusText(ctx context.Context) string {
	status := e.riskMgr.Status()
	state := "running"
	if !e.running() {
		state = "paused"
	}
	if status.Halted {
		state = "HALTED (drawdown)"
	}
	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Sprintf("*Status:* %s\naccount unavailable: %v", state, err)
	}
	return fmt.Sprintf(
		"*Status:* %s\nPortfolio: $%.2f (peak $%.2f)\nTracked exits: %d",
		state, acct.PortfolioValue, status.PeakValue, len(e.exits.Records()))
}

func (e *Engine) logSignal(c strategy.Consensus) {
	if e.signals == nil {
		return
	}
	rec := store.SignalRecord{
		Symbol:     c.Symbol,
		Signal:     string(c.Signal),
		Confidence: c.Confidence,
		Consensus:  c.ConsensusCount,
		Reason:     strings.Join(c.ReasonLines, " | "),
		At:         e.nowFn(),
	}
	if err := e.signals.AppendSignal(rec); err != nil {
		logger.Warnf("engine: signal log append: %v", err)
	}
}

func (e *Engine) logExit(ev exits.Event) {
	if e.signals == nil {
		return
	}
	rec := store.SignalRecord{
		Symbol:     ev.Symbol,
		Signal:     string(ev.Kind),
		Confidence: 0,
		Reason:     ev.Detail,
		At:         e.nowFn(),
	}
	if err := e.signals.AppendSignal(rec); err != nil {
		logger.Warnf("engine: exit log append: %v", err)
	}
}

func (e *Engine) send(text string) {
	if e.notify == nil {
		return
	}
	if err := e.notify.SendText(text); err != nil {
		logger.Warnf("engine: notify failed: %v", err)
	}
}

// sessionVWAP computes the volume weighted average price over the bars of
// the most recent session in the series.
func sessionVWAP(bars market.Series) float64 {
	if bars.Len() == 0 {
		return 0
	}
	day := bars[bars.Len()-1].Time.Format("2006-01-02")
	var pv, vol float64
	for _, b := range bars {
		if b.Time.Format("2006-01-02") != day {
			continue
		}
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}
