package strategy

import (
	"time"

	"alphabot/internal/market"
)

// Bar generators for scorer tests. All series use 15-minute spacing and
// a default volume of 1000 unless a scenario overrides the tail.

func seriesOf(closes, volumes []float64) market.Series {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	bars := make(market.Series, len(closes))
	prev := closes[0]
	for i, c := range closes {
		high, low := prev, c
		if c > prev {
			high, low = c, prev
		}
		bars[i] = market.Bar{
			Time:   start.Add(time.Duration(i) * 15 * time.Minute),
			Open:   prev,
			High:   high * 1.001,
			Low:    low * 0.999,
			Close:  c,
			Volume: volumes[i],
		}
		prev = c
	}
	return bars
}

func flatVolumes(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// uptrendSeries rises steadily from 100, with a volume surge on the last
// bar to satisfy volume confirmation.
func uptrendSeries(n int) market.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.4
	}
	vols := flatVolumes(n, 1000)
	vols[n-1] = 3000
	return seriesOf(closes, vols)
}

// downtrendSeries falls steadily from 200.
func downtrendSeries(n int) market.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 200 - float64(i)*0.5
	}
	return seriesOf(closes, flatVolumes(n, 1000))
}

// choppySeries oscillates tightly around 100 so directional indicators
// wash out.
func choppySeries(n int) market.Series {
	pattern := []float64{0.5, -0.3, 0.1, -0.5, 0.3, -0.1}
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + pattern[i%len(pattern)]
	}
	return seriesOf(closes, flatVolumes(n, 1000))
}

// crashSeries holds around base then dumps hard over the last few bars on
// heavy volume: the canonical oversold bounce setup.
func crashSeries(n int) market.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i%4)*0.3
	}
	drop := []float64{98, 96.5, 95, 93.5, 92}
	copy(closes[n-len(drop):], drop)
	vols := flatVolumes(n, 1000)
	for i := n - len(drop); i < n; i++ {
		vols[i] = 3500
	}
	return seriesOf(closes, vols)
}

// rallySeries holds flat then melts up into the upper band.
func rallySeries(n int) market.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i%4)*0.3
	}
	for i := n - 15; i < n; i++ {
		closes[i] = closes[i-1] + 0.8
	}
	return seriesOf(closes, flatVolumes(n, 1000))
}
