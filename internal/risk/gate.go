package risk

import (
	"context"

	"alphabot/internal/logger"
	"alphabot/internal/strategy"
)

// Candidate is a proposed entry flowing through the gate chain.
type Candidate struct {
	Symbol     string
	Signal     strategy.Signal
	Confidence float64
	Price      float64

	// Context for the softer gates.
	SentimentScore float64 // aggregate news sentiment, [-1, 1]
	VolumeRatio    float64 // current vs average volume
	OpenPositions  int
	HeldSymbols    []string
}

// Verdict is a single gate's decision.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Verdict { return Verdict{Allowed: true, Reason: reason} }
func deny(reason string) Verdict  { return Verdict{Allowed: false, Reason: reason} }

// Gate is one veto point in the pre-trade chain.
type Gate interface {
	Name() string
	Check(ctx context.Context, c Candidate) Verdict
}

// Chain runs gates in order and stops at the first denial. Gate order is
// fixed at construction so the cheapest checks run first.
type Chain struct {
	gates []Gate
}

func NewChain(gates ...Gate) *Chain {
	return &Chain{gates: gates}
}

// Evaluate returns the first denial, or an allow verdict when every gate
// passes. The returned name identifies the deciding gate.
func (ch *Chain) Evaluate(ctx context.Context, c Candidate) (Verdict, string) {
	for _, g := range ch.gates {
		v := g.Check(ctx, c)
		if !v.Allowed {
			logger.Infof("risk: %s blocked %s: %s", g.Name(), c.Symbol, v.Reason)
			return v, g.Name()
		}
	}
	return allow("all gates passed"), ""
}
