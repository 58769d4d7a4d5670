package backtest

import (
	"math"
	"math/rand"
)

// subTimeframe maps a parent bucket size (seconds) to its sub-bar timeframe
// and count five documented pairs.
type subTimeframe struct {
	sub   int64
	count int
}

var subTimeframeTable = map[int64]subTimeframe{
	300:   {sub: 60, count: 5},
	900:   {sub: 300, count: 3},
	3600:  {sub: 900, count: 4},
	14400: {sub: 3600, count: 4},
	86400: {sub: 14400, count: 6},
}

// SubBarTimeframe resolves the next-lower timeframe and K for a parent
// bucket size. Parent sizes outside the documented table fall back to the
// next-finer standard bucket, K = parent/finer, keeping the same
// open-to-extreme-to-close synthesis shape for any resolution the candle
// loader happens to produce. A parent at or below the finest standard
// bucket has no sub-bar timeframe (K=1, itself).
func SubBarTimeframe(parentSeconds int64) (subSeconds int64, k int) {
	if tf, ok := subTimeframeTable[parentSeconds]; ok {
		return tf.sub, tf.count
	}
	finer := MinSimulationResolution
	for _, b := range standardBuckets {
		if b < parentSeconds {
			finer = b
		}
	}
	if finer >= parentSeconds {
		return parentSeconds, 1
	}
	k = int(parentSeconds / finer)
	if k < 1 {
		k = 1
	}
	return finer, k
}

// SynthesizeSubBars produces K sub-bars for a parent candle of the given
// timeframe when no external sub-bar provider is wired: a
// monotone piecewise path from open to the favored extreme (high if
// bullish, low if bearish) over the first floor(K/2) sub-bars, then to
// close, with small bounded jitter clamped to [low, high], and the last
// sub-bar's close pinned to the parent's close. Timestamps are strictly
// ascending and stay within the parent's window. The random source is
// seeded from the parent's own bucket so re-running the same candle stream
// reproduces bit-identical sub-bars.
func SynthesizeSubBars(parent Candle, parentSeconds int64) []Candle {
	subSeconds, k := SubBarTimeframe(parentSeconds)
	if k <= 1 {
		return []Candle{parent}
	}

	rng := rand.New(rand.NewSource(parent.Bucket))
	bullish := parent.Close >= parent.Open
	favored := parent.High
	if !bullish {
		favored = parent.Low
	}

	legOne := k / 2
	if legOne < 1 {
		legOne = 1
	}

	jitterScale := (parent.High - parent.Low) * 0.02
	out := make([]Candle, k)
	prevClose := parent.Open

	for i := 0; i < k; i++ {
		var target float64
		switch {
		case i < legOne-1:
			frac := float64(i+1) / float64(legOne)
			target = parent.Open + (favored-parent.Open)*frac
		case i == legOne-1:
			target = favored
		case i == k-1:
			target = parent.Close
		default:
			frac := float64(i-legOne+1) / float64(k-legOne)
			target = favored + (parent.Close-favored)*frac
		}

		jitter := (rng.Float64()*2 - 1) * jitterScale
		o := prevClose
		c := target + jitter
		if i == k-1 {
			c = parent.Close
		}
		c = clampRange(c, parent.Low, parent.High)

		hi := clampRange(math.Max(o, c)+math.Abs(jitter)*0.3, parent.Low, parent.High)
		lo := clampRange(math.Min(o, c)-math.Abs(jitter)*0.3, parent.Low, parent.High)

		out[i] = Candle{
			Bucket: parent.Bucket + int64(i)*subSeconds,
			Open:   o,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: parent.Volume / float64(k),
		}
		prevClose = c
	}

	return out
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValueFactorLookup answers "normalized value at or before t" over a
// DYN valueFactor indicator evaluated across a flattened sub-bar stream.
type ValueFactorLookup struct {
	timestamps []int64
	values     []float64
}

// NewValueFactorLookup builds a lookup from parallel timestamp/value
// slices; timestamps must already be sorted ascending.
func NewValueFactorLookup(timestamps []int64, values []float64) *ValueFactorLookup {
	return &ValueFactorLookup{timestamps: timestamps, values: values}
}

// At returns the value at the greatest stored timestamp <= t, and whether
// any such timestamp exists.
func (v *ValueFactorLookup) At(t int64) (float64, bool) {
	idx := lastAtOrBefore(v.timestamps, t)
	if idx < 0 {
		return 0, false
	}
	return v.values[idx], true
}
