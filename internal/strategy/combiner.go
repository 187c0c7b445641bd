package strategy

import (
	"fmt"
	"strings"

	"alphabot/internal/logger"
)

// Consensus is the combined decision for one symbol in one scan.
type Consensus struct {
	Symbol         string
	Signal         Signal
	Confidence     float64
	ConsensusCount int
	BuyConfidence  float64
	SellConfidence float64
	ReasonLines    []string
	Results        map[string]Result
	// Targets passes through scorer-suggested levels from the first
	// agreeing scorer that offered any.
	Targets *Targets
}

// Combiner runs every scorer and weighs their calls into one signal.
// A trade only fires when at least two scorers agree, or a single scorer
// carries at least 0.55 weighted confidence on its own.
type Combiner struct {
	scorers []Scorer
	weights map[string]float64
}

// NewCombiner wires scorers with their vote weights. Weights are
// normalized by their actual sum, so a map that does not add to 1.0 is
// tolerated rather than rejected.
func NewCombiner(weights map[string]float64, scorers ...Scorer) *Combiner {
	return &Combiner{scorers: scorers, weights: weights}
}

const singleScorerConfidence = 0.55

// Run scores the symbol with every scorer and combines the results.
// A panicking scorer is isolated: its vote becomes HOLD/0 and the other
// scorers still produce a valid consensus.
func (c *Combiner) Run(in Input) Consensus {
	results := make(map[string]Result, len(c.scorers))
	order := make([]string, 0, len(c.scorers))
	for _, s := range c.scorers {
		order = append(order, s.Name())
		results[s.Name()] = c.safeScore(s, in)
	}

	var buyWeight, sellWeight, totalWeight float64
	buyCount, sellCount := 0, 0
	for name, r := range results {
		w, ok := c.weights[name]
		if !ok {
			w = 1.0 / 3.0
		}
		totalWeight += w
		switch r.Signal {
		case SignalBuy:
			buyWeight += w * r.Strength
			buyCount++
		case SignalSell:
			sellWeight += w * r.Strength
			sellCount++
		}
	}
	if totalWeight == 0 {
		totalWeight = 1
	}
	buyConf := buyWeight / totalWeight
	sellConf := sellWeight / totalWeight

	out := Consensus{
		Symbol:         in.Symbol,
		Signal:         SignalHold,
		BuyConfidence:  round2(buyConf),
		SellConfidence: round2(sellConf),
		Results:        results,
	}

	// BUY is evaluated before SELL. Both qualifying at once should be
	// impossible for one bar set; the ordering is the tie-break either way.
	if buyCount >= 2 || (buyCount == 1 && buyConf >= singleScorerConfidence) {
		out.Signal = SignalBuy
		out.Confidence = round2(buyConf)
		out.ConsensusCount = buyCount
		out.Targets = firstTargets(order, results, SignalBuy)
	} else if sellCount >= 2 || (sellCount == 1 && sellConf >= singleScorerConfidence) {
		out.Signal = SignalSell
		out.Confidence = round2(sellConf)
		out.ConsensusCount = sellCount
	}

	for _, name := range order {
		r := results[name]
		out.ReasonLines = append(out.ReasonLines, fmt.Sprintf("[%s] %s: %s (%.0f%%) - %s",
			tag(r.Signal), title(name), r.Signal, r.Strength*100, r.Reason))
	}
	return out
}

func (c *Combiner) safeScore(s Scorer, in Input) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scorer %s panicked on %s: %v", s.Name(), in.Symbol, r)
			result = hold(fmt.Sprintf("scorer error: %v", r))
		}
	}()
	return s.Score(in)
}

func firstTargets(order []string, results map[string]Result, sig Signal) *Targets {
	for _, name := range order {
		r := results[name]
		if r.Signal == sig && r.Targets != nil {
			return r.Targets
		}
	}
	return nil
}

func tag(s Signal) string {
	switch s {
	case SignalBuy:
		return "GREEN"
	case SignalSell:
		return "RED"
	default:
		return "HOLD"
	}
}

func title(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
