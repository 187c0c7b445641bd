package sizing

import (
	"math"

	"github.com/shopspring/decimal"

	"alphabot/internal/logger"
)

// minTick is the smallest stop distance we accept. Below this the risk
// per share is effectively zero and the position size would explode.
const minTick = 0.01

// Method selects how the stop distance is derived.
type Method string

const (
	MethodFixed Method = "fixed"
	MethodATR   Method = "atr"
)

// Params configures a Calculator.
type Params struct {
	RiskPerTradePct    float64
	MaxPositionDollars float64
	Method             Method
	ATRStopMultiplier  float64
	ATRTargetMult      float64
}

// Sized is the outcome of one sizing decision. Qty 0 means do not trade.
type Sized struct {
	Qty         float64
	StopPrice   float64
	TargetPrice float64
	RiskAmount  float64
}

// Calculator converts a risk budget and stop distance into a share count.
type Calculator struct {
	params Params
}

func NewCalculator(params Params) *Calculator {
	return &Calculator{params: params}
}

// Fixed sizes from an explicit stop price: risk budget / per-share risk,
// capped by the max position dollars, floored at one share. A stop closer
// than one tick rejects the trade entirely.
func (c *Calculator) Fixed(portfolioValue, price, stopPrice float64) Sized {
	if price <= 0 || portfolioValue <= 0 {
		return Sized{}
	}
	riskAmount := portfolioValue * c.params.RiskPerTradePct / 100
	riskPerShare := math.Abs(price - stopPrice)
	if riskPerShare < minTick {
		logger.Warnf("sizing: stop too close to price ($%.4f) - skipping", riskPerShare)
		return Sized{}
	}
	qty := riskAmount / riskPerShare
	maxQty := c.params.MaxPositionDollars / price
	final := math.Min(qty, maxQty)
	if final < 1 {
		final = 1
	}
	return Sized{
		Qty:        math.Floor(final*100) / 100,
		StopPrice:  stopPrice,
		RiskAmount: riskAmount,
	}
}

// ATR sizes from volatility: stop at ATR*stopMult below entry, target at
// ATR*targetMult above. Falls back to Fixed when ATR is unusable.
func (c *Calculator) ATR(portfolioValue, price, atr, fallbackStop float64) Sized {
	if atr <= 0 {
		logger.Warnf("sizing: ATR unavailable, falling back to fixed stop")
		return c.Fixed(portfolioValue, price, fallbackStop)
	}
	stopDist := atr * c.params.ATRStopMultiplier
	sized := c.Fixed(portfolioValue, price, price-stopDist)
	if sized.Qty > 0 {
		sized.TargetPrice = price + atr*c.params.ATRTargetMult
	}
	return sized
}

// Size dispatches on the configured method.
func (c *Calculator) Size(portfolioValue, price, atr, fallbackStop float64) Sized {
	if c.params.Method == MethodATR {
		return c.ATR(portfolioValue, price, atr, fallbackStop)
	}
	return c.Fixed(portfolioValue, price, fallbackStop)
}

// BracketQty floors to whole shares, minimum one. Brackets reject
// fractional quantities.
func BracketQty(qty float64) int {
	whole := int(qty)
	if whole < 1 {
		whole = 1
	}
	return whole
}

// SafeStopPrice rounds a stop DOWN to the cent so it always sits at least
// one cent below the base price.
func SafeStopPrice(stop float64) float64 {
	d := decimal.NewFromFloat(stop)
	return d.Mul(decimal.NewFromInt(100)).Floor().Div(decimal.NewFromInt(100)).InexactFloat64()
}

// SafeTargetPrice rounds a target UP to the cent so it always sits at
// least one cent above the base price.
func SafeTargetPrice(target float64) float64 {
	d := decimal.NewFromFloat(target)
	return d.Mul(decimal.NewFromInt(100)).Ceil().Div(decimal.NewFromInt(100)).InexactFloat64()
}
