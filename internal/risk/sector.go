package risk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/logger"
	"alphabot/internal/strategy"
)

// sectorMap assigns watchlist symbols to SPDR sector ETFs.
var sectorMap = map[string]string{
	"AAPL": "XLK", "MSFT": "XLK", "NVDA": "XLK", "AMD": "XLK",
	"AVGO": "XLK", "CRM": "XLK", "ORCL": "XLK", "INTC": "XLK",
	"GOOGL": "XLC", "META": "XLC", "NFLX": "XLC", "DIS": "XLC",
	"AMZN": "XLY", "TSLA": "XLY", "HD": "XLY", "NKE": "XLY",
	"JPM": "XLF", "BAC": "XLF", "GS": "XLF", "V": "XLF", "MA": "XLF",
	"UNH": "XLV", "JNJ": "XLV", "PFE": "XLV", "LLY": "XLV",
	"XOM": "XLE", "CVX": "XLE", "COP": "XLE",
	"CAT": "XLI", "BA": "XLI", "UPS": "XLI",
	"PG": "XLP", "KO": "XLP", "PEP": "XLP", "WMT": "XLP", "COST": "XLP",
	"NEE": "XLU", "DUK": "XLU",
	"LIN": "XLB", "FCX": "XLB",
	"PLD": "XLRE", "AMT": "XLRE",
}

// passthroughSymbols bypass the sector filter entirely: broad-market and
// commodity ETFs have no meaningful sector.
var passthroughSymbols = map[string]bool{
	"SPY": true, "QQQ": true, "IWM": true, "DIA": true,
	"VOO": true, "IVV": true, "TLT": true, "GLD": true,
	"IAU": true, "USO": true, "UCO": true, "TQQQ": true,
}

var allSectorETFs = []string{
	"XLK", "XLC", "XLY", "XLF", "XLV", "XLE",
	"XLI", "XLP", "XLU", "XLB", "XLRE",
}

type sectorRanking struct {
	topSectors map[string]bool
	computedAt time.Time
}

// SectorRotation only allows buys in sectors whose ETF leads the market
// over the lookback window. Unmapped symbols and ranking failures pass
// through.
type SectorRotation struct {
	broker broker.Broker
	cfg    config.SectorConfig

	ranking  *sectorRanking
	cacheTTL time.Duration
	nowFn    func() time.Time
}

func NewSectorRotation(b broker.Broker, cfg config.SectorConfig) *SectorRotation {
	return &SectorRotation{
		broker:   b,
		cfg:      cfg,
		cacheTTL: 30 * time.Minute,
		nowFn:    time.Now,
	}
}

func (f *SectorRotation) Name() string { return "sector_rotation" }

func (f *SectorRotation) Check(ctx context.Context, c Candidate) Verdict {
	if !f.cfg.Enabled || c.Signal != strategy.SignalBuy {
		return allow("sector filter inactive")
	}
	if passthroughSymbols[c.Symbol] {
		return allow("broad-market ETF - no sector")
	}
	etf, ok := sectorMap[c.Symbol]
	if !ok {
		return allow("symbol unmapped - allowing trade")
	}
	top, err := f.topSectors(ctx)
	if err != nil {
		logger.Warnf("sector: ranking failed, allowing %s: %v", c.Symbol, err)
		return allow("sector ranking unavailable - allowing trade")
	}
	if !top[etf] {
		return deny(fmt.Sprintf("sector %s not in top %d", etf, f.cfg.TopN))
	}
	return allow(fmt.Sprintf("sector %s leading", etf))
}

// topSectors ranks every sector ETF by lookback return relative to SPY
// and keeps the leaders. The ranking caches for 30 minutes.
func (f *SectorRotation) topSectors(ctx context.Context) (map[string]bool, error) {
	now := f.nowFn()
	if f.ranking != nil && now.Sub(f.ranking.computedAt) < f.cacheTTL {
		return f.ranking.topSectors, nil
	}

	spyReturn, err := f.lookbackReturn(ctx, "SPY")
	if err != nil {
		return nil, fmt.Errorf("SPY benchmark: %w", err)
	}

	type ranked struct {
		etf      string
		relative float64
	}
	var scores []ranked
	for _, etf := range allSectorETFs {
		ret, err := f.lookbackReturn(ctx, etf)
		if err != nil {
			logger.Debugf("sector: no return for %s: %v", etf, err)
			continue
		}
		scores = append(scores, ranked{etf: etf, relative: ret - spyReturn})
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("no sector returns available")
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].relative > scores[j].relative })
	top := make(map[string]bool)
	n := f.cfg.TopN
	if n > len(scores) {
		n = len(scores)
	}
	for _, s := range scores[:n] {
		top[s.etf] = true
	}

	f.ranking = &sectorRanking{topSectors: top, computedAt: now}
	logger.Infof("sector: top %d sectors refreshed: %v", n, keys(top))
	return top, nil
}

func (f *SectorRotation) lookbackReturn(ctx context.Context, symbol string) (float64, error) {
	bars, err := f.broker.GetBars(ctx, symbol, broker.TimeframeDaily, f.cfg.LookbackDays+5)
	if err != nil {
		return 0, err
	}
	if bars.Len() < 2 {
		return 0, fmt.Errorf("insufficient bars for %s", symbol)
	}
	first := bars[0].Close
	lastClose := bars[bars.Len()-1].Close
	if first == 0 {
		return 0, fmt.Errorf("zero close for %s", symbol)
	}
	return (lastClose - first) / first * 100, nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
