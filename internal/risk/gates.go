package risk

import (
	"context"
	"fmt"
	"time"

	"alphabot/internal/config"
	"alphabot/internal/strategy"
)

// MinConfidence rejects entries below the configured consensus floor.
type MinConfidence struct {
	Min float64
}

func (g *MinConfidence) Name() string { return "min_confidence" }

func (g *MinConfidence) Check(_ context.Context, c Candidate) Verdict {
	if c.Confidence < g.Min {
		return deny(fmt.Sprintf("confidence %.0f%% below minimum %.0f%%", c.Confidence*100, g.Min*100))
	}
	return allow("confidence OK")
}

// Cooldown blocks a symbol that traded within the cooldown window.
type Cooldown struct {
	Manager *Manager
}

func (g *Cooldown) Name() string { return "cooldown" }

func (g *Cooldown) Check(_ context.Context, c Candidate) Verdict {
	ok, remaining := g.Manager.CheckCooldown(c.Symbol)
	if !ok {
		return deny(fmt.Sprintf("cooldown active, %s remaining", remaining.Round(time.Minute)))
	}
	return allow("no recent trade")
}

// TrendAlignment is the multi-timeframe filter: the daily trend must not
// oppose the entry direction.
type TrendAlignment struct {
	Manager *Manager
	Enabled bool
}

func (g *TrendAlignment) Name() string { return "trend_alignment" }

func (g *TrendAlignment) Check(ctx context.Context, c Candidate) Verdict {
	if !g.Enabled {
		return allow("MTF filter disabled")
	}
	a := g.Manager.CheckTrendAlignment(ctx, c.Symbol, string(c.Signal))
	if !a.Aligned {
		return deny(a.Reason)
	}
	return allow(a.Reason)
}

// DrawdownBreaker denies everything while the halt latch is set.
type DrawdownBreaker struct {
	Manager *Manager
}

func (g *DrawdownBreaker) Name() string { return "drawdown_breaker" }

func (g *DrawdownBreaker) Check(_ context.Context, _ Candidate) Verdict {
	if g.Manager.Halted() {
		return deny("trading halted by drawdown circuit breaker")
	}
	return allow("not halted")
}

// MaxOpenPositions caps concurrent holdings. A SELL of a held symbol is
// always allowed through.
type MaxOpenPositions struct {
	Max int
}

func (g *MaxOpenPositions) Name() string { return "max_open_positions" }

func (g *MaxOpenPositions) Check(_ context.Context, c Candidate) Verdict {
	if g.Max <= 0 || c.Signal != strategy.SignalBuy {
		return allow("not capped")
	}
	for _, sym := range c.HeldSymbols {
		if sym == c.Symbol {
			return allow("adding to existing position")
		}
	}
	if c.OpenPositions >= g.Max {
		return deny(fmt.Sprintf("%d positions open (max %d)", c.OpenPositions, g.Max))
	}
	return allow("position slots available")
}

// correlationSets groups symbols that move together; holding one member
// blocks buying another.
var correlationSets = [][]string{
	{"SPY", "VOO", "IVV"},
	{"QQQ", "TQQQ", "QLD"},
	{"GLD", "IAU", "GDX"},
	{"USO", "UCO", "XLE"},
	{"TLT", "IEF"},
}

// CorrelationGuard blocks a BUY when a highly correlated symbol is
// already held. Membership is by explicit set, not computed correlation.
type CorrelationGuard struct{}

func (g *CorrelationGuard) Name() string { return "correlation_guard" }

func (g *CorrelationGuard) Check(_ context.Context, c Candidate) Verdict {
	if c.Signal != strategy.SignalBuy {
		return allow("not a buy")
	}
	for _, set := range correlationSets {
		if !contains(set, c.Symbol) {
			continue
		}
		for _, held := range c.HeldSymbols {
			if held != c.Symbol && contains(set, held) {
				return deny(fmt.Sprintf("correlated position %s already held", held))
			}
		}
	}
	return allow("no correlated holdings")
}

func contains(set []string, sym string) bool {
	for _, s := range set {
		if s == sym {
			return true
		}
	}
	return false
}

// DefaultChain wires the standard gate order: cheap local checks first,
// then the network-touching filters.
func DefaultChain(m *Manager, cfg *config.Config, earnings *EarningsFilter, sector *SectorRotation) *Chain {
	return NewChain(
		&DrawdownBreaker{Manager: m},
		&MinConfidence{Min: cfg.Risk.MinBuyConfidence},
		&Cooldown{Manager: m},
		&MaxOpenPositions{Max: cfg.Risk.MaxOpenPositions},
		&CorrelationGuard{},
		&TrendAlignment{Manager: m, Enabled: cfg.Risk.UseMTFFilter},
		earnings,
		sector,
	)
}
