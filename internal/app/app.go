package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"alphabot/internal/broker"
	"alphabot/internal/broker/alpaca"
	"alphabot/internal/config"
	"alphabot/internal/engine"
	"alphabot/internal/exits"
	"alphabot/internal/logger"
	"alphabot/internal/notifier"
	"alphabot/internal/risk"
	"alphabot/internal/scheduler"
	"alphabot/internal/sizing"
	"alphabot/internal/store"
	"alphabot/internal/store/gormstore"
	"alphabot/internal/store/signallog"
	"alphabot/internal/strategy"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	cfg       *config.Config
	broker    broker.Broker
	riskMgr   *risk.Manager
	engine    *engine.Engine
	commander *notifier.Commander
	notify    notifier.TextNotifier
	state     store.StateStore
	signals   store.SignalLog
}

// NewApp wires the whole bot from config. Construction is explicit and
// ordered: stores first, then the broker, then everything that depends
// on them.
func NewApp(cfg *config.Config) (*App, error) {
	state, err := gormstore.New(cfg.App.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	signals, err := signallog.New(signalLogPath(cfg.App.StatePath))
	if err != nil {
		return nil, fmt.Errorf("open signal log: %w", err)
	}

	brk := alpaca.New(cfg.Alpaca)

	riskMgr := risk.NewManager(brk, cfg.Risk)
	earnings := risk.NewEarningsFilter(brk, cfg.Earnings)
	sector := risk.NewSectorRotation(brk, cfg.Sector)
	chain := risk.DefaultChain(riskMgr, cfg, earnings, sector)

	exitMgr, err := exits.NewManager(brk, state, cfg.PartialExit)
	if err != nil {
		return nil, fmt.Errorf("init exit manager: %w", err)
	}

	combiner := strategy.NewCombiner(
		map[string]float64{
			"momentum":       cfg.Strategy.MomentumWeight,
			"mean_reversion": cfg.Strategy.MeanReversionWeight,
			"news_sentiment": cfg.Strategy.NewsSentimentWeight,
		},
		strategy.NewMomentum(),
		strategy.NewMeanReversion(),
		strategy.NewNewsSentiment(),
	)

	sizer := sizing.NewCalculator(sizing.Params{
		RiskPerTradePct:    cfg.Risk.RiskPerTradePct,
		MaxPositionDollars: cfg.Risk.MaxPositionDollars,
		Method:             sizing.Method(cfg.Risk.PositionSizeMethod),
		ATRStopMultiplier:  cfg.Risk.ATRStopMultiplier,
		ATRTargetMult:      cfg.Risk.ATRTargetMult,
	})

	var notify notifier.TextNotifier = notifier.Noop{}
	if cfg.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	eng := engine.New(cfg, brk, combiner, riskMgr, chain, sizer, exitMgr, state, signals, notify)

	var commander *notifier.Commander
	if cfg.Telegram.Enabled {
		commander = notifier.NewCommander(cfg.Telegram.BotToken, cfg.Telegram.ChatID, eng.HandleCommand)
	}

	return &App{
		cfg:       cfg,
		broker:    brk,
		riskMgr:   riskMgr,
		engine:    eng,
		commander: commander,
		notify:    notify,
		state:     state,
		signals:   signals,
	}, nil
}

// Run blocks until SIGINT/SIGTERM, then shuts down cleanly.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.riskMgr.Init(ctx)
	a.sendStartup(ctx)

	interval := time.Duration(a.cfg.Scan.IntervalMinutes) * time.Minute
	sched := scheduler.NewAlignedScheduler(ctx, interval, 5*time.Second)
	sched.RunImmediately = true

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(func() { a.engine.Scan(ctx) })
		return nil
	})
	if a.commander != nil {
		g.Go(func() error {
			a.commander.Run(ctx)
			return nil
		})
	}

	logger.Infof("app: started | interval=%s watchlist=%d symbols",
		interval, len(a.cfg.Scan.Watchlist))

	err := g.Wait()
	if nerr := a.notify.SendText("🛑 *AlphaBot stopped*"); nerr != nil {
		logger.Warnf("app: shutdown notify failed: %v", nerr)
	}
	a.close()
	logger.Infof("app: stopped")
	return err
}

func (a *App) sendStartup(ctx context.Context) {
	text := fmt.Sprintf("🤖 *AlphaBot started*\nInterval: %dm\nWatchlist: %d symbols",
		a.cfg.Scan.IntervalMinutes, len(a.cfg.Scan.Watchlist))
	if acct, err := a.broker.GetAccount(ctx); err == nil {
		text += fmt.Sprintf("\nPortfolio: $%.2f", acct.PortfolioValue)
	}
	if err := a.notify.SendText(text); err != nil {
		logger.Warnf("app: startup notify failed: %v", err)
	}
}

func (a *App) close() {
	if err := a.state.Close(); err != nil {
		logger.Errorf("app: close state store: %v", err)
	}
	if err := a.signals.Close(); err != nil {
		logger.Errorf("app: close signal log: %v", err)
	}
}

// signalLogPath derives the signal-log file next to the state file.
func signalLogPath(statePath string) string {
	if statePath == "" {
		return "data/signals.db"
	}
	return statePath + ".signals"
}
