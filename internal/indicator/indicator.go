package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"alphabot/internal/market"
)

// Defaults used when an optional indicator cannot be computed. The engine
// never fails a scan over a missing indicator: it substitutes a neutral
// value and lets the scorers decide.
const (
	defaultADX       = 30.0
	adxTrendingLevel = 20.0
	adxStrongLevel   = 35.0
)

// Snapshot carries the latest (and where crossovers matter, the previous)
// value of every indicator the scorers consume. Produced fresh per scan.
type Snapshot struct {
	Price     float64
	PrevPrice float64

	RSI     float64
	PrevRSI float64

	MACD           float64
	PrevMACD       float64
	MACDSignal     float64
	PrevMACDSignal float64

	EMA50  float64
	EMA200 float64

	BBUpper float64
	BBMid   float64
	BBLower float64
	BBWidth float64 // (upper-lower)/mid, fraction

	StochK     float64
	PrevStochK float64
	StochD     float64
	PrevStochD float64

	ATR float64

	ADX         float64
	ADXTrending bool
	ADXStrong   bool

	SupertrendBullish bool

	// StochRSI / CMF confirmation block. HasStochRSI is false when the
	// series was too short; consumers must treat the values as neutral.
	HasStochRSI   bool
	StochRSIK     float64
	PrevStochRSIK float64
	StochRSID     float64
	PrevStochRSID float64
	CMF           float64

	Volume    float64
	AvgVolume float64
	VolRatio  float64

	Structure Structure
}

// Compute builds a Snapshot from a bar series. Callers are responsible for
// their own minimum-length gate; Compute itself tolerates any length and
// fills neutral defaults for whatever cannot be derived.
func Compute(series market.Series) Snapshot {
	snap := Snapshot{
		ADX:               defaultADX,
		ADXTrending:       true,
		SupertrendBullish: true,
		StochRSIK:         50,
		PrevStochRSIK:     50,
		StochRSID:         50,
		PrevStochRSID:     50,
		VolRatio:          1,
	}
	n := series.Len()
	if n == 0 {
		return snap
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	snap.Price = at(closes, 0)
	snap.PrevPrice = at(closes, 1)
	snap.Volume = at(volumes, 0)
	snap.Structure = ClassifyStructure(series)

	if n >= 15 {
		rsi := talib.Rsi(closes, 14)
		snap.RSI = at(rsi, 0)
		snap.PrevRSI = at(rsi, 1)
	}
	if n >= 35 {
		macd, signal, _ := talib.Macd(closes, 12, 26, 9)
		snap.MACD = at(macd, 0)
		snap.PrevMACD = at(macd, 1)
		snap.MACDSignal = at(signal, 0)
		snap.PrevMACDSignal = at(signal, 1)
	}
	if n >= 50 {
		snap.EMA50 = at(talib.Ema(closes, 50), 0)
	}
	if n >= 200 {
		snap.EMA200 = at(talib.Ema(closes, 200), 0)
	} else if n >= 50 {
		// Short history: fall back to the longest EMA we can afford so the
		// trend filter still has a reference line.
		snap.EMA200 = at(talib.Ema(closes, n/2), 0)
	}
	if n >= 21 {
		upper, mid, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
		snap.BBUpper = at(upper, 0)
		snap.BBMid = at(mid, 0)
		snap.BBLower = at(lower, 0)
		if snap.BBMid != 0 {
			snap.BBWidth = (snap.BBUpper - snap.BBLower) / snap.BBMid
		}
	}
	if n >= 18 {
		k, d := talib.StochF(highs, lows, closes, 14, 3, talib.SMA)
		snap.StochK = at(k, 0)
		snap.PrevStochK = at(k, 1)
		snap.StochD = at(d, 0)
		snap.PrevStochD = at(d, 1)
	}
	snap.ATR = ATR(series, 14)
	if n >= 30 {
		adx := at(talib.Adx(highs, lows, closes, 14), 0)
		if adx > 0 {
			snap.ADX = adx
			snap.ADXTrending = adx >= adxTrendingLevel
			snap.ADXStrong = adx >= adxStrongLevel
		}
		snap.SupertrendBullish = SupertrendBullish(series, 10, 3)
	}
	if n >= 35 {
		k, d := talib.StochRsi(closes, 14, 3, 3, talib.SMA)
		kNow, kPrev := at(k, 0), at(k, 1)
		dNow, dPrev := at(d, 0), at(d, 1)
		if kNow > 0 || dNow > 0 {
			snap.HasStochRSI = true
			snap.StochRSIK = kNow
			snap.PrevStochRSIK = kPrev
			snap.StochRSID = dNow
			snap.PrevStochRSID = dPrev
		}
	}
	if n >= 21 {
		snap.CMF = CMF(series, 20)
		avg := mean(volumes[len(volumes)-20:])
		snap.AvgVolume = avg
		if avg > 0 {
			snap.VolRatio = snap.Volume / avg
		}
	}
	return snap
}

// ATR is a true-range rolling mean (SMA, not Wilder smoothing).
func ATR(series market.Series, period int) float64 {
	if period <= 0 || series.Len() < period+1 {
		return 0
	}
	tr := talib.TRange(series.Highs(), series.Lows(), series.Closes())
	return at(talib.Sma(tr, period), 0)
}

// CMF is the Chaikin Money Flow over the trailing period: positive values
// mean volume is concentrating on up-closes (accumulation).
func CMF(series market.Series, period int) float64 {
	n := series.Len()
	if period <= 0 || n < period {
		return 0
	}
	var mfv, vol float64
	for _, b := range series[n-period:] {
		span := b.High - b.Low
		if span <= 0 || b.Volume <= 0 {
			continue
		}
		mult := ((b.Close - b.Low) - (b.High - b.Close)) / span
		mfv += mult * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0
	}
	return mfv / vol
}

// SupertrendBullish reports the direction of an ATR-band supertrend line.
// True (bullish) when the latest close sits above the active band, and by
// convention when the series is too short to decide.
func SupertrendBullish(series market.Series, length int, mult float64) bool {
	n := series.Len()
	if length <= 0 || n < length+2 {
		return true
	}
	tr := talib.TRange(series.Highs(), series.Lows(), series.Closes())
	atr := talib.Sma(tr, length)

	bullish := true
	upper := math.Inf(1)
	lower := math.Inf(-1)
	for i := length; i < n; i++ {
		mid := (series[i].High + series[i].Low) / 2
		bandUp := mid + mult*atr[i]
		bandDown := mid - mult*atr[i]

		// Bands only tighten while the trend holds.
		if series[i-1].Close > upper {
			upper = bandUp
		} else {
			upper = math.Min(bandUp, upper)
		}
		if series[i-1].Close < lower {
			lower = bandDown
		} else {
			lower = math.Max(bandDown, lower)
		}

		if bullish && series[i].Close < lower {
			bullish = false
			upper = bandUp
		} else if !bullish && series[i].Close > upper {
			bullish = true
			lower = bandDown
		}
	}
	return bullish
}

// at reads offset bars back from the end of a talib output series,
// mapping NaN and out-of-range to 0.
func at(series []float64, back int) float64 {
	idx := len(series) - 1 - back
	if idx < 0 {
		return 0
	}
	v := series[idx]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
