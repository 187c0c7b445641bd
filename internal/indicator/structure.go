package indicator

import "alphabot/internal/market"

// Structure classifies recent price action by comparing the extremes of the
// last 5 bars against the preceding 10.
type Structure struct {
	HigherHigh bool
	HigherLow  bool
	LowerLow   bool
	LowerHigh  bool
}

func (s Structure) Label() string {
	switch {
	case s.HigherHigh && s.HigherLow:
		return "HH_HL"
	case s.HigherHigh:
		return "HH"
	case s.LowerLow && s.LowerHigh:
		return "LL_LH"
	case s.LowerLow:
		return "LL"
	default:
		return "RANGING"
	}
}

// StrongUptrend is higher highs plus higher lows.
func (s Structure) StrongUptrend() bool { return s.HigherHigh && s.HigherLow }

// StrongDowntrend is lower lows plus lower highs.
func (s Structure) StrongDowntrend() bool { return s.LowerLow && s.LowerHigh }

// Ranging means neither new highs nor new lows are being made.
func (s Structure) Ranging() bool { return !s.HigherHigh && !s.LowerLow }

// ClassifyStructure inspects up to the last 20 bars: the max/min of the most
// recent 5 against the max/min of the 10 before them.
func ClassifyStructure(series market.Series) Structure {
	n := series.Len()
	if n < 6 {
		return Structure{}
	}
	window := series
	if n > 20 {
		window = series[n-20:]
		n = 20
	}
	highs := window.Highs()
	lows := window.Lows()

	recentHigh := maxOf(highs[n-5:])
	recentLow := minOf(lows[n-5:])
	var priorHigh, priorLow float64
	if n >= 15 {
		priorHigh = maxOf(highs[n-15 : n-5])
		priorLow = minOf(lows[n-15 : n-5])
	} else {
		priorHigh = maxOf(highs[:n-5])
		priorLow = minOf(lows[:n-5])
	}

	return Structure{
		HigherHigh: recentHigh > priorHigh,
		HigherLow:  recentLow > priorLow,
		LowerLow:   recentLow < priorLow,
		LowerHigh:  recentHigh < priorHigh,
	}
}

func maxOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
