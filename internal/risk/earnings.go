package risk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/logger"
	"alphabot/internal/strategy"
)

// earningsKeywords mark an article as earnings coverage when they appear
// in its headline or summary.
var earningsKeywords = []string{
	"earnings", "quarterly results", "q1 results", "q2 results",
	"q3 results", "q4 results", "reports results", "earnings call",
	"earnings report", "eps", "revenue beat", "revenue miss",
	"guidance",
}

type earningsCacheEntry struct {
	nearEarnings bool
	checkedAt    time.Time
}

// EarningsFilter blocks entries in a blackout window around earnings,
// inferred from recent news keywords. Lookup failures fail open. In
// aggressive mode a strong sentiment plus a volume spike overrides the
// blackout.
type EarningsFilter struct {
	broker broker.Broker
	cfg    config.EarningsConfig

	cache    map[string]earningsCacheEntry
	cacheTTL time.Duration
	nowFn    func() time.Time
}

func NewEarningsFilter(b broker.Broker, cfg config.EarningsConfig) *EarningsFilter {
	return &EarningsFilter{
		broker:   b,
		cfg:      cfg,
		cache:    make(map[string]earningsCacheEntry),
		cacheTTL: time.Hour,
		nowFn:    time.Now,
	}
}

func (f *EarningsFilter) Name() string { return "earnings_blackout" }

func (f *EarningsFilter) Check(ctx context.Context, c Candidate) Verdict {
	if !f.cfg.Enabled || c.Signal != strategy.SignalBuy {
		return allow("earnings filter inactive")
	}
	near, err := f.nearEarnings(ctx, c.Symbol)
	if err != nil {
		logger.Warnf("earnings: check failed for %s, allowing: %v", c.Symbol, err)
		return allow("earnings check failed - allowing trade")
	}
	if !near {
		return allow("no earnings nearby")
	}
	if f.cfg.AggressiveMode &&
		c.SentimentScore >= f.cfg.AggressiveMinSent &&
		c.VolumeRatio >= f.cfg.AggressiveMinVol {
		return allow(fmt.Sprintf(
			"earnings window but aggressive override (sent %.2f, vol %.1fx)",
			c.SentimentScore, c.VolumeRatio))
	}
	return deny(fmt.Sprintf("within earnings blackout (-%dd/+%dd)",
		f.cfg.BlockDaysBefore, f.cfg.BlockDaysAfter))
}

// nearEarnings scans recent headlines for earnings coverage inside the
// blackout window. Results cache for an hour per symbol.
func (f *EarningsFilter) nearEarnings(ctx context.Context, symbol string) (bool, error) {
	now := f.nowFn()
	if e, ok := f.cache[symbol]; ok && now.Sub(e.checkedAt) < f.cacheTTL {
		return e.nearEarnings, nil
	}

	articles, err := f.broker.GetNews(ctx, []string{symbol}, 20)
	if err != nil {
		return false, err
	}

	windowStart := now.AddDate(0, 0, -f.cfg.BlockDaysAfter)
	windowEnd := now.AddDate(0, 0, f.cfg.BlockDaysBefore)
	near := false
	for _, a := range articles {
		if a.CreatedAt.Before(windowStart) || a.CreatedAt.After(windowEnd) {
			continue
		}
		text := strings.ToLower(a.Headline + " " + a.Summary)
		for _, kw := range earningsKeywords {
			if strings.Contains(text, kw) {
				near = true
				break
			}
		}
		if near {
			break
		}
	}

	f.cache[symbol] = earningsCacheEntry{nearEarnings: near, checkedAt: now}
	return near, nil
}
