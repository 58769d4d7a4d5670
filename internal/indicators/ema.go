package indicators

import (
	"github.com/cinar/indicator/v2/trend"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

// emaIndicator wraps cinar/indicator/v2's EMA. Value is the EMA reading;
// Signal is true when the source series is above the EMA (bullish).
type emaIndicator struct {
	cacheKey string
	period   int
}

func newEMA(cacheKey string, params map[string]float64) *emaIndicator {
	period := 20
	if p, ok := params["period"]; ok && p > 0 {
		period = int(p)
	}
	return &emaIndicator{cacheKey: cacheKey, period: period}
}

func (e *emaIndicator) CacheKey() string { return e.cacheKey }
func (e *emaIndicator) Warmup() int      { return e.period }
func (e *emaIndicator) Normalized() bool { return false }

func (e *emaIndicator) Evaluate(series []float64) []backtest.Point {
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

	emaChan := trend.NewEmaWithPeriod[float64](e.period).Compute(in)
	var values []float64
	for v := range emaChan {
		values = append(values, v)
	}

	offset := n - len(values)
	for i := 0; i < n; i++ {
		if i < offset {
			continue
		}
		v := values[i-offset]
		out[i] = backtest.Point{Value: v, Signal: series[i] > v}
	}
	return out
}
