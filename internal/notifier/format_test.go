package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"alphabot/internal/broker"
	"alphabot/internal/exits"
	"alphabot/internal/strategy"
)

func TestFormatSignal(t *testing.T) {
	c := strategy.Consensus{
		Symbol:         "AAPL",
		Signal:         strategy.SignalBuy,
		Confidence:     0.62,
		ConsensusCount: 2,
		Results: map[string]strategy.Result{
			"momentum":       {Signal: strategy.SignalBuy},
			"mean_reversion": {Signal: strategy.SignalHold},
		},
		ReasonLines: []string{
			"[GREEN] Momentum: BUY (62%) - price above EMA200",
			"[HOLD] Mean Reversion: HOLD (0%) - BB squeeze",
		},
	}
	out := FormatSignal(c)
	assert.Contains(t, out, "*AAPL* BUY")
	assert.Contains(t, out, "62% confidence")
	assert.Contains(t, out, "2/2 scorers")
	assert.Contains(t, out, "price above EMA200")
}

func TestFormatOrder(t *testing.T) {
	out := FormatOrder(broker.BracketOrder{
		Symbol: "NVDA", Qty: 3, Side: "buy", StopPrice: 96.55, TargetPrice: 108.12,
	}, 100.5)
	assert.Contains(t, out, "*BUY* NVDA 3")
	assert.Contains(t, out, "$96.55")
	assert.Contains(t, out, "$108.12")
}

func TestFormatExit(t *testing.T) {
	out := FormatExit(exits.Event{
		Kind: exits.EventPartialFill, Symbol: "AAPL", Price: 106, Qty: 5, PnLPct: 6,
		Detail: "sold half at target $106.00, trail armed at $102.00",
	})
	assert.Contains(t, out, "Partial exit")
	assert.Contains(t, out, "*AAPL*")
	assert.Contains(t, out, "+6.0%")

	orphan := FormatExit(exits.Event{Kind: exits.EventOrphanDrop, Symbol: "MSFT", Detail: "record dropped"})
	assert.Contains(t, orphan, "MSFT")
	assert.Contains(t, orphan, "record dropped")
}

func TestFormatPositions(t *testing.T) {
	assert.Equal(t, "No open positions", FormatPositions(nil))

	out := FormatPositions([]broker.Position{
		{Symbol: "AAPL", Qty: 5, EntryPrice: 100, UnrealizedPL: 20.5},
	})
	assert.Contains(t, out, "AAPL: 5 @ $100.00")
	assert.Contains(t, out, "+20.50")
}

func TestTelegramRequiresConfig(t *testing.T) {
	err := NewTelegram("", "").SendText("hello")
	assert.Error(t, err)
}
