package strategy

import (
	"math"

	"alphabot/internal/broker"
	"alphabot/internal/market"
)

// Signal is a directional call from a scorer or the combiner.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Result is one scorer's output for one symbol in one scan.
// Strength 0 is only legal alongside SignalHold.
type Result struct {
	Signal     Signal
	Strength   float64
	Reason     string
	Indicators map[string]float64
	// Targets is set by scorers that derive their own exit levels
	// (mean reversion targets the band mean). Optional.
	Targets *Targets
}

// Targets are scorer-suggested entry/exit levels.
type Targets struct {
	Entry  float64
	Stop   float64
	Target float64
}

// Input bundles everything a scorer may look at for one symbol.
// Scorers ignore the fields they do not use.
type Input struct {
	Symbol   string
	Bars     market.Series // primary (intraday) series
	Daily    market.Series
	VWAP     float64 // 0 when unavailable
	Articles []broker.Article
	// Fundamentals feeds the news scorer's catalyst score. Zero value is
	// treated as "no fundamentals available" (neutral).
	Fundamentals Fundamentals
}

// Fundamentals is a snapshot of growth/valuation figures for a symbol.
type Fundamentals struct {
	RevenueGrowth  float64
	EarningsGrowth float64
	PERatio        float64
	Valid          bool
}

// Scorer turns an Input into a Result. Implementations are stateless and
// must be pure with respect to the input.
type Scorer interface {
	Name() string
	Score(in Input) Result
}

func hold(reason string) Result {
	return Result{Signal: SignalHold, Strength: 0, Reason: reason, Indicators: map[string]float64{}}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
