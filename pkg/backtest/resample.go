package backtest

import "math"

// MinSimulationResolution is the finest grid
// No explicit number is mandated; 1 second is the finest entry in the
// own standard bucket list, so it's also the floor of that list.
const MinSimulationResolution int64 = 1

// standardBuckets is the ordered set of supported simulation resolutions.
var standardBuckets = []int64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 14400, 86400}

// StandardBucket snaps an arbitrary resolution (in seconds) to the smallest
// supported bucket at or above it (so 61 becomes 300); resolutions above the
// coarsest bucket snap to that bucket.
func StandardBucket(seconds int64) int64 {
	if seconds <= standardBuckets[0] {
		return standardBuckets[0]
	}
	for _, b := range standardBuckets {
		if seconds <= b {
			return b
		}
	}
	return standardBuckets[len(standardBuckets)-1]
}

// ResampleResult is C2's output.
type ResampleResult struct {
	Timestamps  []int64
	Signals     map[string][]bool
	Resolution  int64
	WarmupBars  int
}

// chooseResolution picks simulationResolution: the max of
// the floor and the minimum native resolution across indicators, bucketed.
func chooseResolution(resolutions map[string]int64, candleResolution int64) int64 {
	minRes := candleResolution
	for _, r := range resolutions {
		if r <= 0 {
			continue
		}
		if r < minRes {
			minRes = r
		}
	}
	if minRes < MinSimulationResolution {
		minRes = MinSimulationResolution
	}
	return StandardBucket(minRes)
}

// lastAtOrBefore returns the index of the last source timestamp <= t, or -1
// if none. src must be strictly ascending. This single function serves both
// upsampling and downsampling — both reduce to "snapshot
// the last sample at or before the query time".
func lastAtOrBefore(src []int64, t int64) int {
	lo, hi := 0, len(src)-1
	idx := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if src[mid] <= t {
			idx = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return idx
}

// Resample implements C2: build the simulation timestamp grid and snapshot
// every signal onto it via lastAtOrBefore.
func Resample(candles []Candle, candleResolution int64, precalc *IndicatorPrecalc) *ResampleResult {
	resolution := chooseResolution(precalc.Resolutions, candleResolution)

	if len(candles) == 0 {
		return &ResampleResult{Resolution: resolution, Signals: map[string][]bool{}}
	}

	start := candles[0].Bucket
	end := candles[len(candles)-1].Bucket
	var timestamps []int64
	for t := start; t <= end; t += resolution {
		timestamps = append(timestamps, t)
	}
	if len(timestamps) == 0 || timestamps[len(timestamps)-1] != end {
		timestamps = append(timestamps, end)
	}

	srcTimestamps := make([]int64, len(candles))
	for i, c := range candles {
		srcTimestamps[i] = c.Bucket
	}

	resampled := make(map[string][]bool, len(precalc.Signals))
	for key, series := range precalc.Signals {
		out := make([]bool, len(timestamps))
		for i, t := range timestamps {
			idx := lastAtOrBefore(srcTimestamps, t)
			if idx < 0 {
				out[i] = false
				continue
			}
			out[i] = series[idx]
		}
		resampled[key] = out
	}

	warmupBars := int(math.Ceil(float64(precalc.WarmupCandles) * float64(MinSimulationResolution) / float64(resolution)))

	return &ResampleResult{
		Timestamps: timestamps,
		Signals:    resampled,
		Resolution: resolution,
		WarmupBars: warmupBars,
	}
}
