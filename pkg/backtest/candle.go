// Package backtest implements a deterministic, single-threaded bar-driven
// simulation pipeline for algorithmic trading strategies over OHLCV candle
// time-series: indicator pre-calculation, resampling, sub-bar expansion,
// the position state machine, the algorithm runner, the simulated executor,
// and the event collector + metrics engine.
package backtest

import "math"

// Candle is one OHLCV bar for a fixed time bucket.
type Candle struct {
	Bucket int64 // seconds since epoch
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the invariants a single candle must satisfy:
// low <= min(open, close) <= max(open, close) <= high, and all fields finite.
func (c Candle) Validate() error {
	if !finite(c.Open) || !finite(c.High) || !finite(c.Low) || !finite(c.Close) || !finite(c.Volume) {
		return &CandleDataError{Bucket: c.Bucket, Reason: "non-finite field"}
	}
	lo := math.Min(c.Open, c.Close)
	hi := math.Max(c.Open, c.Close)
	if c.Low > lo || lo > hi || hi > c.High {
		return &CandleDataError{Bucket: c.Bucket, Reason: "OHLC relation violated: low <= min(open,close) <= max(open,close) <= high"}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidateCandles checks every candle and that buckets are strictly ascending.
func ValidateCandles(candles []Candle) error {
	var prev int64
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			if ce, ok := err.(*CandleDataError); ok {
				ce.Index = i
			}
			return err
		}
		if i > 0 && c.Bucket <= prev {
			return &CandleDataError{Index: i, Bucket: c.Bucket, Reason: "buckets must be strictly ascending"}
		}
		prev = c.Bucket
	}
	return nil
}

// source projects a candle onto a scalar price series used as indicator
// input: close, open, high, low, typical, and the other projections
// indicators can be sourced from.
type source string

const (
	sourceClose   source = "close"
	sourceOpen    source = "open"
	sourceHigh    source = "high"
	sourceLow     source = "low"
	sourceTypical source = "typical" // (high+low+close)/3
	sourceHL2     source = "hl2"     // (high+low)/2
	sourceOHLC4   source = "ohlc4"   // (open+high+low+close)/4
)

func projectSeries(candles []Candle, s source) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		switch s {
		case sourceOpen:
			out[i] = c.Open
		case sourceHigh:
			out[i] = c.High
		case sourceLow:
			out[i] = c.Low
		case sourceTypical:
			out[i] = (c.High + c.Low + c.Close) / 3
		case sourceHL2:
			out[i] = (c.High + c.Low) / 2
		case sourceOHLC4:
			out[i] = (c.Open + c.High + c.Low + c.Close) / 4
		default:
			out[i] = c.Close
		}
	}
	return out
}
