package exits

import (
	"context"
	"fmt"
	"time"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/logger"
	"alphabot/internal/store"
)

// EventKind labels what the monitor did to a position.
type EventKind string

const (
	EventPartialFill EventKind = "partial_fill"
	EventTrailClose  EventKind = "trail_close"
	EventDeadTrade   EventKind = "dead_trade"
	EventVolSpike    EventKind = "vol_spike"
	EventOrphanDrop  EventKind = "orphan_drop"
)

// Event is one exit action, surfaced to the notifier and the engine.
type Event struct {
	Kind     EventKind
	Symbol   string
	Price    float64
	Qty      float64
	PnLPct   float64
	Detail   string
}

// Manager runs the position lifecycle after entry: the first ATR target
// trims half, the remainder rides a ratcheting trail, and stale or
// suddenly volatile positions are cut. All state persists through the
// store so a restart resumes mid-trade.
type Manager struct {
	broker broker.Broker
	store  store.StateStore
	cfg    config.PartialExitConfig

	records map[string]store.ExitRecord
	nowFn   func() time.Time
}

func NewManager(b broker.Broker, st store.StateStore, cfg config.PartialExitConfig) (*Manager, error) {
	records, err := st.LoadExits()
	if err != nil {
		return nil, fmt.Errorf("load exit records: %w", err)
	}
	if records == nil {
		records = make(map[string]store.ExitRecord)
	}
	logger.Infof("exits: loaded %d tracked positions", len(records))
	return &Manager{
		broker:  b,
		store:   st,
		cfg:     cfg,
		records: records,
		nowFn:   time.Now,
	}, nil
}

// Register starts tracking a freshly filled entry. The partial target is
// set at entry plus the configured ATR multiple; with no usable ATR the
// position is still tracked for the time and trail exits.
func (m *Manager) Register(symbol string, entryPrice, qty, atr float64) error {
	rec := store.ExitRecord{
		Symbol:       symbol,
		EntryPrice:   entryPrice,
		QtyOriginal:  qty,
		QtyRemaining: qty,
		ATRAtEntry:   atr,
		RegisteredAt: m.nowFn(),
	}
	if atr > 0 {
		rec.PartialTarget = entryPrice + m.cfg.ATRMultiplier*atr
	}
	m.records[symbol] = rec
	if err := m.store.SaveExit(rec); err != nil {
		return fmt.Errorf("persist exit record: %w", err)
	}
	logger.Infof("exits: tracking %s | entry $%.2f qty %.0f partial target $%.2f",
		symbol, entryPrice, qty, rec.PartialTarget)
	return nil
}

// Tracked reports whether a symbol has a live exit record.
func (m *Manager) Tracked(symbol string) bool {
	_, ok := m.records[symbol]
	return ok
}

// Drop forgets a symbol without trading, e.g. after a risk-driven close.
func (m *Manager) Drop(symbol string) {
	delete(m.records, symbol)
	if err := m.store.DeleteExit(symbol); err != nil {
		logger.Errorf("exits: delete record %s: %v", symbol, err)
	}
}

// Monitor walks every tracked position once. It first reconciles against
// broker truth (positions closed out-of-band are dropped), then applies
// the exit ladder in priority order: dead trade, volatility spike,
// partial target, trailing stop.
func (m *Manager) Monitor(ctx context.Context, currentATR func(symbol string) float64) []Event {
	if len(m.records) == 0 {
		return nil
	}
	positions, err := m.broker.GetPositions(ctx)
	if err != nil {
		logger.Errorf("exits: positions fetch failed, skipping cycle: %v", err)
		return nil
	}
	held := make(map[string]broker.Position, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p
	}

	var events []Event
	for symbol, rec := range m.records {
		pos, ok := held[symbol]
		if !ok {
			// Closed externally (manual sell, bracket leg fired).
			m.Drop(symbol)
			events = append(events, Event{
				Kind:   EventOrphanDrop,
				Symbol: symbol,
				Detail: "position no longer held, record dropped",
			})
			continue
		}
		if ev := m.step(ctx, rec, pos, currentATR); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

func (m *Manager) step(ctx context.Context, rec store.ExitRecord, pos broker.Position, currentATR func(string) float64) *Event {
	price := pos.CurrentPrice
	pnlPct := (price - rec.EntryPrice) / rec.EntryPrice * 100

	// Dead trade: held too long without going anywhere.
	if m.cfg.TimeExitDays > 0 {
		age := m.nowFn().Sub(rec.RegisteredAt)
		if age >= time.Duration(m.cfg.TimeExitDays)*24*time.Hour && pnlPct > -2 && pnlPct < 2 {
			return m.closeAll(ctx, rec, price, pnlPct, EventDeadTrade,
				fmt.Sprintf("flat for %dd (%+.1f%%)", int(age.Hours()/24), pnlPct))
		}
	}

	// Volatility regime change: realized ATR doubled since entry.
	if m.cfg.VolExitEnabled && rec.ATRAtEntry > 0 && currentATR != nil {
		if atr := currentATR(rec.Symbol); atr > 2*rec.ATRAtEntry {
			return m.closeAll(ctx, rec, price, pnlPct, EventVolSpike,
				fmt.Sprintf("ATR %.2f vs %.2f at entry", atr, rec.ATRAtEntry))
		}
	}

	// First target: sell half, arm the trail below the current price.
	if !rec.PartialFilled && rec.PartialTarget > 0 && price >= rec.PartialTarget {
		half := rec.QtyRemaining / 2
		ack, err := m.broker.PlaceMarketOrder(ctx, rec.Symbol, half, "sell")
		if err != nil {
			logger.Errorf("exits: partial sell %s failed: %v", rec.Symbol, err)
			return nil
		}
		if ack == nil {
			logger.Warnf("exits: partial sell %s rejected", rec.Symbol)
			return nil
		}
		rec.PartialFilled = true
		rec.QtyRemaining -= half
		rec.TrailingStop = price - m.cfg.TrailATRMult*rec.ATRAtEntry
		m.records[rec.Symbol] = rec
		if err := m.store.SaveExit(rec); err != nil {
			logger.Errorf("exits: persist after partial %s: %v", rec.Symbol, err)
		}
		return &Event{
			Kind:   EventPartialFill,
			Symbol: rec.Symbol,
			Price:  price,
			Qty:    half,
			PnLPct: pnlPct,
			Detail: fmt.Sprintf("sold half at target $%.2f, trail armed at $%.2f", rec.PartialTarget, rec.TrailingStop),
		}
	}

	// Post-partial: ratchet the trail up, close when price falls through.
	if rec.PartialFilled && rec.TrailingStop > 0 {
		newTrail := price - m.cfg.TrailATRMult*rec.ATRAtEntry
		if newTrail > rec.TrailingStop {
			rec.TrailingStop = newTrail
			m.records[rec.Symbol] = rec
			if err := m.store.SaveExit(rec); err != nil {
				logger.Errorf("exits: persist trail %s: %v", rec.Symbol, err)
			}
		}
		if price <= rec.TrailingStop {
			return m.closeAll(ctx, rec, price, pnlPct, EventTrailClose,
				fmt.Sprintf("trail $%.2f hit", rec.TrailingStop))
		}
	}
	return nil
}

func (m *Manager) closeAll(ctx context.Context, rec store.ExitRecord, price, pnlPct float64, kind EventKind, detail string) *Event {
	if err := m.broker.ClosePosition(ctx, rec.Symbol); err != nil {
		logger.Errorf("exits: close %s failed: %v", rec.Symbol, err)
		return nil
	}
	m.Drop(rec.Symbol)
	return &Event{
		Kind:   kind,
		Symbol: rec.Symbol,
		Price:  price,
		Qty:    rec.QtyRemaining,
		PnLPct: pnlPct,
		Detail: detail,
	}
}

// Records returns a copy of the tracked state for status reporting.
func (m *Manager) Records() map[string]store.ExitRecord {
	out := make(map[string]store.ExitRecord, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}
