package indicators

import (
	"github.com/cinar/indicator/v2/momentum"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

// rsiIndicator wraps cinar/indicator/v2's channel-based RSI. Value is the
// 0-100 RSI reading, Normalized so it can serve as a DYN value factor.
// Signal is true when RSI has crossed into the configured extreme: below
// "threshold" (default 30), or, if overbought=1, above "threshold"
// (default 70).
type rsiIndicator struct {
	cacheKey   string
	period     int
	threshold  float64
	overbought bool
}

func newRSI(cacheKey string, params map[string]float64) *rsiIndicator {
	period := 14
	if p, ok := params["period"]; ok && p > 0 {
		period = int(p)
	}
	overbought := params["overbought"] != 0
	threshold := 30.0
	if overbought {
		threshold = 70.0
	}
	if t, ok := params["threshold"]; ok {
		threshold = t
	}
	return &rsiIndicator{cacheKey: cacheKey, period: period, threshold: threshold, overbought: overbought}
}

func (r *rsiIndicator) CacheKey() string { return r.cacheKey }
func (r *rsiIndicator) Warmup() int      { return r.period }
func (r *rsiIndicator) Normalized() bool { return true }

func (r *rsiIndicator) Evaluate(series []float64) []backtest.Point {
	n := len(series)
	out := make([]backtest.Point, n)
	if n == 0 {
		return out
	}

	in := make(chan float64, n)
	for _, v := range series {
		in <- v
	}
	close(in)

	rsiChan := momentum.NewRsiWithPeriod[float64](r.period).Compute(in)
	var values []float64
	for v := range rsiChan {
		values = append(values, v)
	}

	// cinar's RSI channel yields len(series)-period values; left-pad with
	// the warmup zero-value so output aligns index-for-index with series.
	offset := n - len(values)
	for i := 0; i < n; i++ {
		if i < offset {
			continue
		}
		v := values[i-offset]
		signal := v < r.threshold
		if r.overbought {
			signal = v > r.threshold
		}
		out[i] = backtest.Point{Value: v, Signal: signal}
	}
	return out
}
