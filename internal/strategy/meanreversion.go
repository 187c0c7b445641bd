package strategy

import (
	"fmt"
	"strings"

	"alphabot/internal/indicator"
)

// MeanReversion scores oversold bounces off the lower Bollinger band and
// overbought fades at the mean/upper band, confirmed by stochastics and
// money flow. A volatility squeeze (bandwidth under 2%) disqualifies the
// whole setup: there is no band to revert to.
type MeanReversion struct {
	RSIOversold   float64 // default 35
	RSIOverbought float64 // default 65
	MinStrength   float64 // default 0.38
}

func NewMeanReversion() *MeanReversion {
	return &MeanReversion{RSIOversold: 35, RSIOverbought: 65, MinStrength: 0.38}
}

func (m *MeanReversion) Name() string { return "mean_reversion" }

func (m *MeanReversion) Score(in Input) Result {
	if in.Bars.Len() < 40 {
		return hold("not enough data")
	}
	snap := indicator.Compute(in.Bars)

	if snap.BBWidth < 0.02 {
		return hold("BB squeeze - skipping mean reversion")
	}

	cmfAccumulating := snap.CMF > 0

	stochRSIOversold := snap.HasStochRSI && snap.StochRSIK < 20
	stochRSIOverbought := snap.HasStochRSI && snap.StochRSIK > 80
	stochRSICrossUp := snap.HasStochRSI &&
		snap.PrevStochRSIK < snap.PrevStochRSID && snap.StochRSIK >= snap.StochRSID && snap.StochRSIK < 50
	stochRSICrossDown := snap.HasStochRSI &&
		snap.PrevStochRSIK > snap.PrevStochRSID && snap.StochRSIK <= snap.StochRSID && snap.StochRSIK > 50

	priceAtLower := snap.Price <= snap.BBLower*1.015
	rsiOversold := snap.RSI < m.RSIOversold
	stochOversold := snap.StochK < 25
	stochCrossUp := snap.PrevStochK < snap.PrevStochD && snap.StochK >= snap.StochD
	rsiTurningUp := snap.RSI > snap.PrevRSI
	uptrendDip := snap.Structure.HigherHigh || snap.Structure.HigherLow

	buyScore := weight(priceAtLower, 3.0) +
		weight(rsiOversold, 2.0) +
		weight(stochOversold, 1.5) +
		weight(stochCrossUp, 2.0) +
		weight(rsiTurningUp, 1.0) +
		weight(snap.VolRatio > 1.3, 0.5) +
		weight(uptrendDip, 1.0) +
		weight(!snap.Structure.StrongDowntrend(), 0.5) +
		weight(stochRSIOversold, 2.0) +
		weight(stochRSICrossUp, 1.5) +
		weight(cmfAccumulating, 1.5) +
		weight(snap.CMF > 0.1, 0.5)
	const buyMax = 17.5

	priceAtUpper := snap.Price >= snap.BBUpper*0.985
	priceAtMid := snap.Price >= snap.BBMid*0.995
	rsiOverbought := snap.RSI > m.RSIOverbought
	stochOverbought := snap.StochK > 75
	stochCrossDown := snap.PrevStochK > snap.PrevStochD && snap.StochK <= snap.StochD

	sellScore := weight(priceAtUpper, 3.0) +
		weight(priceAtMid, 1.5) +
		weight(rsiOverbought, 2.0) +
		weight(stochOverbought, 1.5) +
		weight(stochCrossDown, 2.0) +
		weight(!snap.Structure.StrongUptrend(), 0.5) +
		weight(stochRSIOverbought, 2.0) +
		weight(stochRSICrossDown, 1.5) +
		weight(!cmfAccumulating, 1.0)
	const sellMax = 15.0

	buyStrength := buyScore / buyMax
	sellStrength := sellScore / sellMax

	indicators := map[string]float64{
		"price":      round2(snap.Price),
		"rsi":        round2(snap.RSI),
		"stoch_k":    round2(snap.StochK),
		"stoch_d":    round2(snap.StochD),
		"bb_upper":   round2(snap.BBUpper),
		"bb_mid":     round2(snap.BBMid),
		"bb_lower":   round2(snap.BBLower),
		"bb_width":   round2(snap.BBWidth * 100),
		"atr":        snap.ATR,
		"vol_ratio":  round2(snap.VolRatio),
		"stochrsi_k": round2(snap.StochRSIK),
		"cmf":        snap.CMF,
	}

	if buyStrength >= m.MinStrength && buyStrength > sellStrength {
		var reasons []string
		if priceAtLower {
			reasons = append(reasons, fmt.Sprintf("price at lower BB (%.2f)", snap.BBLower))
		}
		if rsiOversold {
			reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", snap.RSI))
		}
		if stochCrossUp {
			reasons = append(reasons, fmt.Sprintf("stoch %%K crossover (%.1f)", snap.StochK))
		}
		if rsiTurningUp {
			reasons = append(reasons, "RSI turning up")
		}
		if stochRSIOversold {
			reasons = append(reasons, fmt.Sprintf("StochRSI oversold (%.0f)", snap.StochRSIK))
		}
		if cmfAccumulating {
			reasons = append(reasons, fmt.Sprintf("CMF accumulating (%+.2f)", snap.CMF))
		}
		return Result{
			Signal:     SignalBuy,
			Strength:   round2(buyStrength),
			Reason:     strings.Join(reasons, " | "),
			Indicators: indicators,
			Targets: &Targets{
				Entry:  round2(snap.Price),
				Target: round2(snap.BBMid),
				Stop:   round2(snap.Price - 2*snap.ATR),
			},
		}
	}

	if sellStrength >= m.MinStrength && sellStrength > buyStrength {
		var reasons []string
		if priceAtUpper {
			reasons = append(reasons, fmt.Sprintf("price at upper BB (%.2f)", snap.BBUpper))
		}
		if priceAtMid {
			reasons = append(reasons, fmt.Sprintf("reached mean (%.2f)", snap.BBMid))
		}
		if rsiOverbought {
			reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", snap.RSI))
		}
		if stochCrossDown {
			reasons = append(reasons, fmt.Sprintf("stoch %%K bearish (%.1f)", snap.StochK))
		}
		if stochRSIOverbought {
			reasons = append(reasons, fmt.Sprintf("StochRSI overbought (%.0f)", snap.StochRSIK))
		}
		if !cmfAccumulating {
			reasons = append(reasons, fmt.Sprintf("CMF distributing (%+.2f)", snap.CMF))
		}
		return Result{
			Signal:     SignalSell,
			Strength:   round2(sellStrength),
			Reason:     strings.Join(reasons, " | "),
			Indicators: indicators,
		}
	}

	return hold(fmt.Sprintf("in band | RSI:%.1f | StochRSI:%.0f | CMF:%+.2f | buy:%.0f%% sell:%.0f%%",
		snap.RSI, snap.StochRSIK, snap.CMF, buyStrength*100, sellStrength*100))
}
