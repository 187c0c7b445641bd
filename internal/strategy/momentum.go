package strategy

import (
	"fmt"
	"strings"

	"alphabot/internal/indicator"
)

// Momentum scores trend continuation: EMA200 filter, RSI 50-line cross,
// MACD crossover, volume confirmation and higher-high structure, with
// ADX/supertrend regime bonuses. Choppy markets (ADX < 15) are skipped
// outright because crossover signals there are mostly noise.
type Momentum struct {
	VolumeMultiplier float64 // volume confirmation threshold, default 1.5
	MinStrength      float64 // default 0.45
}

func NewMomentum() *Momentum {
	return &Momentum{VolumeMultiplier: 1.5, MinStrength: 0.45}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Score(in Input) Result {
	if in.Bars.Len() < 60 {
		return hold("not enough data")
	}
	snap := indicator.Compute(in.Bars)

	if snap.ADX < 15 {
		return hold(fmt.Sprintf("ADX %.0f - choppy market, momentum signals unreliable", snap.ADX))
	}

	aboveVWAP := in.VWAP > 0 && snap.Price > in.VWAP

	aboveEMA200 := snap.Price > snap.EMA200
	aboveEMA50 := snap.Price > snap.EMA50
	rsiCrossUp := snap.PrevRSI < 52 && snap.RSI >= 48
	macdCrossUp := snap.PrevMACD < snap.PrevMACDSignal && snap.MACD >= snap.MACDSignal
	volumeConfirmed := snap.AvgVolume > 0 && snap.Volume > snap.AvgVolume*m.VolumeMultiplier
	rsiNotOverbought := snap.RSI < 75
	structureBullish := snap.Structure.HigherHigh
	structureStrong := snap.Structure.StrongUptrend()

	buyScore := weight(aboveEMA200, 1.0) +
		weight(aboveEMA50, 0.5) +
		weight(rsiCrossUp, 2.0) +
		weight(macdCrossUp, 2.0) +
		weight(volumeConfirmed, 1.0) +
		weight(rsiNotOverbought, 0.5) +
		weight(structureBullish, 1.5) +
		weight(structureStrong, 0.5) +
		weight(aboveVWAP, 0.5) +
		weight(snap.ADXTrending, 1.0) +
		weight(snap.ADXStrong, 0.5) +
		weight(snap.SupertrendBullish, 1.5)
	const buyMax = 13.0

	belowEMA200 := snap.Price < snap.EMA200
	rsiCrossDown := snap.PrevRSI > 48 && snap.RSI <= 52
	macdCrossDown := snap.PrevMACD > snap.PrevMACDSignal && snap.MACD <= snap.MACDSignal
	rsiOverbought := snap.RSI > 75
	structureBearish := snap.Structure.LowerLow
	structureStrongBear := snap.Structure.StrongDowntrend()

	sellScore := weight(belowEMA200, 2.0) +
		weight(rsiCrossDown, 2.0) +
		weight(macdCrossDown, 2.0) +
		weight(rsiOverbought, 1.0) +
		weight(structureBearish, 1.5) +
		weight(structureStrongBear, 0.5) +
		weight(snap.ADXTrending, 0.5) +
		weight(!snap.SupertrendBullish, 1.5)
	const sellMax = 11.5

	buyStrength := buyScore / buyMax
	sellStrength := sellScore / sellMax

	indicators := map[string]float64{
		"rsi":       round2(snap.RSI),
		"macd":      snap.MACD,
		"signal":    snap.MACDSignal,
		"ema200":    round2(snap.EMA200),
		"ema50":     round2(snap.EMA50),
		"price":     round2(snap.Price),
		"vol_ratio": round2(snap.VolRatio),
		"adx":       round2(snap.ADX),
	}

	if buyStrength >= m.MinStrength && buyStrength > sellStrength {
		var reasons []string
		if aboveEMA200 {
			reasons = append(reasons, "price above EMA200")
		}
		if rsiCrossUp {
			reasons = append(reasons, fmt.Sprintf("RSI crossed 50 (%.1f)", snap.RSI))
		}
		if macdCrossUp {
			reasons = append(reasons, "MACD bullish crossover")
		}
		if volumeConfirmed {
			reasons = append(reasons, fmt.Sprintf("vol %.1fx avg", snap.VolRatio))
		}
		if aboveVWAP {
			reasons = append(reasons, fmt.Sprintf("above VWAP ($%.2f)", in.VWAP))
		}
		if structureStrong {
			reasons = append(reasons, "structure: HH+HL (strong uptrend)")
		} else if structureBullish {
			reasons = append(reasons, "structure: HH (new highs)")
		}
		if snap.SupertrendBullish {
			reasons = append(reasons, "Supertrend up")
		}
		reasons = append(reasons, fmt.Sprintf("ADX %.0f", snap.ADX))
		return Result{
			Signal:     SignalBuy,
			Strength:   round2(buyStrength),
			Reason:     strings.Join(reasons, " | "),
			Indicators: indicators,
		}
	}

	if sellStrength >= m.MinStrength && sellStrength > buyStrength {
		var reasons []string
		if belowEMA200 {
			reasons = append(reasons, "price below EMA200")
		}
		if rsiCrossDown {
			reasons = append(reasons, fmt.Sprintf("RSI dropped below 50 (%.1f)", snap.RSI))
		}
		if macdCrossDown {
			reasons = append(reasons, "MACD bearish crossover")
		}
		if rsiOverbought {
			reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", snap.RSI))
		}
		if structureStrongBear {
			reasons = append(reasons, "structure: LL+LH")
		} else if structureBearish {
			reasons = append(reasons, "structure: LL (new lows)")
		}
		if !snap.SupertrendBullish {
			reasons = append(reasons, "Supertrend down")
		}
		reasons = append(reasons, fmt.Sprintf("ADX %.0f", snap.ADX))
		return Result{
			Signal:     SignalSell,
			Strength:   round2(sellStrength),
			Reason:     strings.Join(reasons, " | "),
			Indicators: indicators,
		}
	}

	return hold(fmt.Sprintf("no clear signal | RSI:%.1f | ADX:%.0f | buy:%.0f%% sell:%.0f%%",
		snap.RSI, snap.ADX, buyStrength*100, sellStrength*100))
}

func weight(cond bool, w float64) float64 {
	if cond {
		return w
	}
	return 0
}
