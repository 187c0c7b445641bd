package notifier

import (
	"fmt"
	"strings"

	"alphabot/internal/broker"
	"alphabot/internal/exits"
	"alphabot/internal/strategy"
)

// FormatSignal renders a consensus decision for the chat.
func FormatSignal(c strategy.Consensus) string {
	emoji := "🟡"
	switch c.Signal {
	case strategy.SignalBuy:
		emoji = "🟢"
	case strategy.SignalSell:
		emoji = "🔴"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* %s (%.0f%% confidence, %d/%d scorers)\n",
		emoji, c.Symbol, c.Signal, c.Confidence*100, c.ConsensusCount, len(c.Results))
	for _, line := range c.ReasonLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatOrder renders a filled bracket entry.
func FormatOrder(order broker.BracketOrder, price float64) string {
	return fmt.Sprintf(
		"📥 *%s* %s %d @ ~$%.2f\nStop: $%.2f | Target: $%.2f",
		strings.ToUpper(order.Side), order.Symbol, order.Qty, price,
		order.StopPrice, order.TargetPrice)
}

// FormatExit renders a position lifecycle event.
func FormatExit(ev exits.Event) string {
	label := map[exits.EventKind]string{
		exits.EventPartialFill: "🎯 Partial exit",
		exits.EventTrailClose:  "🛑 Trailing stop",
		exits.EventDeadTrade:   "⏰ Time exit",
		exits.EventVolSpike:    "⚡ Volatility exit",
		exits.EventOrphanDrop:  "🧹 Untracked",
	}[ev.Kind]
	if ev.Kind == exits.EventOrphanDrop {
		return fmt.Sprintf("%s *%s*: %s", label, ev.Symbol, ev.Detail)
	}
	return fmt.Sprintf("%s *%s* %.0f @ $%.2f (%+.1f%%)\n%s",
		label, ev.Symbol, ev.Qty, ev.Price, ev.PnLPct, ev.Detail)
}

// FormatHalt renders a circuit-breaker trip.
func FormatHalt(reason string) string {
	return fmt.Sprintf("🚨 *TRADING HALTED*\n%s", reason)
}

// FormatScanSummary renders the per-cycle digest.
func FormatScanSummary(scanned, buys, sells, blocked int, elapsed string) string {
	return fmt.Sprintf("📊 Scan done: %d symbols | %d BUY, %d SELL, %d blocked | %s",
		scanned, buys, sells, blocked, elapsed)
}

// FormatPositions renders the /positions reply.
func FormatPositions(positions []broker.Position) string {
	if len(positions) == 0 {
		return "No open positions"
	}
	var b strings.Builder
	b.WriteString("*Open positions:*\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "%s: %.0f @ $%.2f (P&L $%+.2f)\n",
			p.Symbol, p.Qty, p.EntryPrice, p.UnrealizedPL)
	}
	return strings.TrimRight(b.String(), "\n")
}
