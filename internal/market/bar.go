package market

import "time"

// Bar is one OHLCV sample for a symbol at a fixed timeframe.
type Bar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// Series is an ordered-by-time sequence of bars for one symbol/timeframe.
type Series []Bar

func (s Series) Len() int { return len(s) }

// Last returns the most recent bar. Zero value when the series is empty.
func (s Series) Last() Bar {
	if len(s) == 0 {
		return Bar{}
	}
	return s[len(s)-1]
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// PctChange returns the close-to-close percent change over the last n bars.
// Zero when the series is too short or the reference close is zero.
func (s Series) PctChange(n int) float64 {
	if n <= 0 || len(s) <= n {
		return 0
	}
	ref := s[len(s)-1-n].Close
	if ref == 0 {
		return 0
	}
	return (s[len(s)-1].Close - ref) / ref * 100
}
