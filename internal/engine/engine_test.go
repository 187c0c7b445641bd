package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/exits"
	"alphabot/internal/market"
	"alphabot/internal/notifier"
	"alphabot/internal/risk"
	"alphabot/internal/sizing"
	"alphabot/internal/store"
	"alphabot/internal/strategy"
)

type fakeBroker struct {
	marketOpen bool
	account    broker.Account
	bars       map[string]market.Series
	positions  []broker.Position
	quote      broker.Quote

	bracketOrders []broker.BracketOrder
	rejectBracket bool
	closed        []string
	clockCalls    int
}

func (f *fakeBroker) GetBars(_ context.Context, symbol, timeframe string, _ int) (market.Series, error) {
	return f.bars[symbol+"/"+timeframe], nil
}

func (f *fakeBroker) GetAccount(context.Context) (broker.Account, error) {
	return f.account, nil
}

func (f *fakeBroker) GetPositions(context.Context) ([]broker.Position, error) {
	return f.positions, nil
}

func (f *fakeBroker) GetPosition(_ context.Context, symbol string) (*broker.Position, error) {
	for i := range f.positions {
		if f.positions[i].Symbol == symbol {
			return &f.positions[i], nil
		}
	}
	return nil, nil
}

func (f *fakeBroker) PlaceBracketOrder(_ context.Context, order broker.BracketOrder) (*broker.OrderAck, error) {
	if f.rejectBracket {
		return nil, nil
	}
	f.bracketOrders = append(f.bracketOrders, order)
	return &broker.OrderAck{ID: "ord-1", Symbol: order.Symbol, Qty: float64(order.Qty), Side: order.Side}, nil
}

func (f *fakeBroker) PlaceMarketOrder(_ context.Context, symbol string, qty float64, side string) (*broker.OrderAck, error) {
	return &broker.OrderAck{ID: "ord-2", Symbol: symbol, Qty: qty, Side: side}, nil
}

func (f *fakeBroker) ClosePosition(_ context.Context, symbol string) error {
	f.closed = append(f.closed, symbol)
	return nil
}

func (f *fakeBroker) IsMarketOpen(context.Context) (bool, error) {
	f.clockCalls++
	return f.marketOpen, nil
}

func (f *fakeBroker) GetNews(context.Context, []string, int) ([]broker.Article, error) {
	return nil, nil
}

func (f *fakeBroker) GetLatestQuote(context.Context, string) (broker.Quote, error) {
	return f.quote, nil
}

func (f *fakeBroker) GetTopMovers(context.Context, int) ([]string, error) { return nil, nil }

// stubScorer forces a deterministic consensus so engine tests do not
// depend on indicator math.
type stubScorer struct {
	name string
	res  strategy.Result
}

func (s stubScorer) Name() string                { return s.name }
func (s stubScorer) Score(strategy.Input) strategy.Result { return s.res }

func forcedCombiner(sig strategy.Signal, strength float64) *strategy.Combiner {
	return strategy.NewCombiner(
		map[string]float64{"forced": 1.0},
		stubScorer{name: "forced", res: strategy.Result{Signal: sig, Strength: strength, Reason: "forced"}},
	)
}

func intradayBars(n int, base float64) market.Series {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	bars := make(market.Series, n)
	for i := range bars {
		c := base + float64(i)*0.1
		bars[i] = market.Bar{
			Time: start.Add(time.Duration(i) * 15 * time.Minute),
			Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000,
		}
	}
	return bars
}

func testConfig() *config.Config {
	return &config.Config{
		Scan: config.ScanConfig{
			IntervalMinutes: 15,
			Watchlist:       []string{"AAPL"},
			DedupeMinutes:   30,
		},
		Risk: config.RiskConfig{
			RiskPerTradePct:    2.0,
			MaxPositionDollars: 1000,
			StopLossPct:        2.0,
			TakeProfitPct:      4.0,
			PositionSizeMethod:    "fixed",
			MinBuyConfidence:      0.35,
			TradeCooldownHours:    1,
			TrailingActivationPct: 2.0,
			TrailingDistancePct:   1.0,
			MaxDrawdownPct:        10,
			MaxDailyLossPct:       5,
		},
		PartialExit: config.PartialExitConfig{
			Enabled:       true,
			ATRMultiplier: 3.0,
			TrailATRMult:  2.0,
		},
	}
}

func newTestEngine(t *testing.T, fb *fakeBroker, cfg *config.Config, comb *strategy.Combiner) (*Engine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	riskMgr := risk.NewManager(fb, cfg.Risk)
	chain := risk.DefaultChain(riskMgr, cfg,
		risk.NewEarningsFilter(fb, cfg.Earnings),
		risk.NewSectorRotation(fb, cfg.Sector))
	exitMgr, err := exits.NewManager(fb, st, cfg.PartialExit)
	require.NoError(t, err)
	sizer := sizing.NewCalculator(sizing.Params{
		RiskPerTradePct:    cfg.Risk.RiskPerTradePct,
		MaxPositionDollars: cfg.Risk.MaxPositionDollars,
		Method:             sizing.Method(cfg.Risk.PositionSizeMethod),
		ATRStopMultiplier:  cfg.Risk.ATRStopMultiplier,
		ATRTargetMult:      cfg.Risk.ATRTargetMult,
	})
	eng := New(cfg, fb, comb, riskMgr, chain, sizer, exitMgr, st, st, notifier.Noop{})
	return eng, st
}

func TestScan_SkipsWhenPaused(t *testing.T) {
	fb := &fakeBroker{marketOpen: true}
	eng, st := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalBuy, 0.9))
	require.NoError(t, st.SaveFlag(store.FlagRunning, false))

	eng.Scan(context.Background())
	assert.Zero(t, fb.clockCalls)
	assert.Empty(t, fb.bracketOrders)
}

func TestScan_SkipsWhenMarketClosed(t *testing.T) {
	fb := &fakeBroker{marketOpen: false}
	eng, _ := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalBuy, 0.9))

	eng.Scan(context.Background())
	assert.Equal(t, 1, fb.clockCalls)
	assert.Empty(t, fb.bracketOrders)
}

func TestScan_BuyFlowPlacesBracketOrder(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		account:    broker.Account{PortfolioValue: 10000},
		bars: map[string]market.Series{
			"AAPL/" + broker.TimeframeIntraday: intradayBars(80, 100),
		},
		quote: broker.Quote{Bid: 107.8, Ask: 108.0, Mid: 107.9},
	}
	eng, st := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalBuy, 0.9))

	eng.Scan(context.Background())

	require.Len(t, fb.bracketOrders, 1)
	order := fb.bracketOrders[0]
	assert.Equal(t, "AAPL", order.Symbol)
	assert.Equal(t, "buy", order.Side)
	assert.GreaterOrEqual(t, order.Qty, 1)
	assert.Less(t, order.StopPrice, 107.9)
	assert.Greater(t, order.TargetPrice, 107.9)

	// Entry is tracked for partial exits and persisted.
	recs, err := st.LoadExits()
	require.NoError(t, err)
	assert.Contains(t, recs, "AAPL")

	// The signal itself was logged.
	signals, err := st.RecentSignals(10)
	require.NoError(t, err)
	require.NotEmpty(t, signals)
	assert.Equal(t, "AAPL", signals[0].Symbol)
	assert.Equal(t, "BUY", signals[0].Signal)
}

func TestScan_CooldownBlocksImmediateReentry(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		account:    broker.Account{PortfolioValue: 10000},
		bars: map[string]market.Series{
			"AAPL/" + broker.TimeframeIntraday: intradayBars(80, 100),
		},
	}
	cfg := testConfig()
	cfg.Scan.DedupeMinutes = 0 // isolate the cooldown gate
	eng, _ := newTestEngine(t, fb, cfg, forcedCombiner(strategy.SignalBuy, 0.9))

	eng.Scan(context.Background())
	require.Len(t, fb.bracketOrders, 1)

	eng.Scan(context.Background())
	assert.Len(t, fb.bracketOrders, 1)
}

func TestScan_DedupeSuppressesRepeatSignal(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		account:    broker.Account{PortfolioValue: 10000},
		bars: map[string]market.Series{
			"AAPL/" + broker.TimeframeIntraday: intradayBars(80, 100),
		},
	}
	eng, st := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalBuy, 0.9))

	eng.Scan(context.Background())
	eng.Scan(context.Background())

	signals, err := st.RecentSignals(10)
	require.NoError(t, err)
	// Both scans log the raw signal; only the first acts on it.
	assert.Len(t, signals, 2)
	assert.Len(t, fb.bracketOrders, 1)
}

func TestScan_SellClosesHeldPosition(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		account:    broker.Account{PortfolioValue: 10000},
		bars: map[string]market.Series{
			"AAPL/" + broker.TimeframeIntraday: intradayBars(80, 100),
		},
		positions: []broker.Position{
			{Symbol: "AAPL", Qty: 5, EntryPrice: 100, CurrentPrice: 104},
		},
	}
	eng, _ := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalSell, 0.9))

	eng.Scan(context.Background())
	assert.Contains(t, fb.closed, "AAPL")
	assert.Empty(t, fb.bracketOrders)
}

func TestScan_SellWithoutPositionIsNoop(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		account:    broker.Account{PortfolioValue: 10000},
		bars: map[string]market.Series{
			"AAPL/" + broker.TimeframeIntraday: intradayBars(80, 100),
		},
	}
	eng, _ := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalSell, 0.9))

	eng.Scan(context.Background())
	assert.Empty(t, fb.closed)
}

func TestScan_DrawdownBlocksNewEntries(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		account:    broker.Account{PortfolioValue: 10000},
		bars: map[string]market.Series{
			"AAPL/" + broker.TimeframeIntraday: intradayBars(80, 100),
		},
	}
	eng, _ := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalBuy, 0.9))

	// Seed the peak, then crash the account below the drawdown limit.
	eng.Scan(context.Background())
	require.Len(t, fb.bracketOrders, 1)
	fb.bracketOrders = nil
	fb.account.PortfolioValue = 8500
	eng.lastSignal = map[string]signalStamp{}

	eng.Scan(context.Background())
	assert.Empty(t, fb.bracketOrders)
}

func TestScan_RejectedOrderIsNotTracked(t *testing.T) {
	fb := &fakeBroker{
		marketOpen:    true,
		account:       broker.Account{PortfolioValue: 10000},
		rejectBracket: true,
		bars: map[string]market.Series{
			"AAPL/" + broker.TimeframeIntraday: intradayBars(80, 100),
		},
	}
	eng, st := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalBuy, 0.9))

	eng.Scan(context.Background())
	recs, err := st.LoadExits()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHandleCommand(t *testing.T) {
	fb := &fakeBroker{marketOpen: true, account: broker.Account{PortfolioValue: 10000}}
	eng, st := newTestEngine(t, fb, testConfig(), forcedCombiner(strategy.SignalHold, 0))
	ctx := context.Background()

	assert.Contains(t, eng.HandleCommand(ctx, "/stop"), "paused")
	val, found, err := st.LoadFlag(store.FlagRunning)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, val)

	assert.Contains(t, eng.HandleCommand(ctx, "/start"), "resumed")
	val, _, _ = st.LoadFlag(store.FlagRunning)
	assert.True(t, val)

	assert.Contains(t, eng.HandleCommand(ctx, "/status"), "running")
	assert.Contains(t, eng.HandleCommand(ctx, "/positions"), "No open positions")
	assert.Empty(t, eng.HandleCommand(ctx, "/bogus"))
}

func TestSessionVWAP(t *testing.T) {
	bars := intradayBars(10, 100)
	vwap := sessionVWAP(bars)
	assert.Greater(t, vwap, 99.0)
	assert.Less(t, vwap, 102.0)
	assert.Zero(t, sessionVWAP(nil))
}
