package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"alphabot/internal/strategy"
)

type stubGate struct {
	name    string
	verdict Verdict
	calls   int
}

func (g *stubGate) Name() string { return g.name }
func (g *stubGate) Check(context.Context, Candidate) Verdict {
	g.calls++
	return g.verdict
}

func TestChain_StopsAtFirstDenial(t *testing.T) {
	first := &stubGate{name: "first", verdict: allow("ok")}
	denier := &stubGate{name: "denier", verdict: deny("no")}
	never := &stubGate{name: "never", verdict: allow("ok")}

	v, name := NewChain(first, denier, never).Evaluate(context.Background(), Candidate{Symbol: "AAPL"})
	assert.False(t, v.Allowed)
	assert.Equal(t, "denier", name)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, never.calls)
}

func TestChain_AllPass(t *testing.T) {
	a := &stubGate{name: "a", verdict: allow("ok")}
	b := &stubGate{name: "b", verdict: allow("ok")}

	v, name := NewChain(a, b).Evaluate(context.Background(), Candidate{Symbol: "AAPL"})
	assert.True(t, v.Allowed)
	assert.Empty(t, name)
}

func TestMinConfidence(t *testing.T) {
	g := &MinConfidence{Min: 0.35}
	assert.False(t, g.Check(context.Background(), Candidate{Confidence: 0.30}).Allowed)
	assert.True(t, g.Check(context.Background(), Candidate{Confidence: 0.35}).Allowed)
}

func TestMaxOpenPositions(t *testing.T) {
	g := &MaxOpenPositions{Max: 2}
	ctx := context.Background()

	t.Run("blocks at the cap", func(t *testing.T) {
		c := Candidate{Symbol: "NVDA", Signal: strategy.SignalBuy,
			OpenPositions: 2, HeldSymbols: []string{"AAPL", "MSFT"}}
		assert.False(t, g.Check(ctx, c).Allowed)
	})

	t.Run("allows adding to a held symbol", func(t *testing.T) {
		c := Candidate{Symbol: "AAPL", Signal: strategy.SignalBuy,
			OpenPositions: 2, HeldSymbols: []string{"AAPL", "MSFT"}}
		assert.True(t, g.Check(ctx, c).Allowed)
	})

	t.Run("unlimited when max is zero", func(t *testing.T) {
		unlimited := &MaxOpenPositions{}
		c := Candidate{Symbol: "NVDA", Signal: strategy.SignalBuy, OpenPositions: 50}
		assert.True(t, unlimited.Check(ctx, c).Allowed)
	})
}

func TestCorrelationGuard(t *testing.T) {
	g := &CorrelationGuard{}
	ctx := context.Background()

	t.Run("blocks correlated buy", func(t *testing.T) {
		c := Candidate{Symbol: "VOO", Signal: strategy.SignalBuy, HeldSymbols: []string{"SPY"}}
		v := g.Check(ctx, c)
		assert.False(t, v.Allowed)
		assert.Contains(t, v.Reason, "SPY")
	})

	t.Run("allows uncorrelated buy", func(t *testing.T) {
		c := Candidate{Symbol: "AAPL", Signal: strategy.SignalBuy, HeldSymbols: []string{"SPY"}}
		assert.True(t, g.Check(ctx, c).Allowed)
	})

	t.Run("ignores sells", func(t *testing.T) {
		c := Candidate{Symbol: "VOO", Signal: strategy.SignalSell, HeldSymbols: []string{"SPY"}}
		assert.True(t, g.Check(ctx, c).Allowed)
	})
}

func TestDrawdownBreakerGate(t *testing.T) {
	fb := &fakeBroker{}
	m := NewManager(fb, testRiskConfig())
	g := &DrawdownBreaker{Manager: m}

	assert.True(t, g.Check(context.Background(), Candidate{}).Allowed)
	m.halted = true
	assert.False(t, g.Check(context.Background(), Candidate{}).Allowed)
}

func TestCooldownGate(t *testing.T) {
	m := NewManager(&fakeBroker{}, testRiskConfig())
	g := &Cooldown{Manager: m}

	assert.True(t, g.Check(context.Background(), Candidate{Symbol: "AAPL"}).Allowed)
	m.RecordTrade("AAPL")
	assert.False(t, g.Check(context.Background(), Candidate{Symbol: "AAPL"}).Allowed)
}
