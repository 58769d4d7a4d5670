package indicators

import (
	"github.com/cinar/indicator/v2/trend"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

// macdIndicator wraps cinar/indicator/v2's MACD. Value is the histogram
// (macd - signal); Signal is true when the histogram is positive (bullish).
type macdIndicator struct {
	cacheKey                        string
	fastPeriod, slowPeriod, sigPeriod int
}

func newMACD(cacheKey string, params map[string]float64) *macdIndicator {
	fast, slow, sig := 12, 26, 9
	if v, ok := params["fast_period"]; ok && v > 0 {
		fast = int(v)
	}
	if v, ok := params["slow_period"]; ok && v > 0 {
		slow = int(v)
	}
	if v, ok := params["signal_period"]; ok && v > 0 {
		sig = int(v)
	}
	return &macdIndicator{cacheKey: cacheKey, fastPeriod: fast, slowPeriod: slow, sigPeriod: sig}
}

func (m *macdIndicator) CacheKey() string { return m.cacheKey }
func (m *macdIndicator) Warmup() int      { return m.slowPeriod + m.sigPeriod }
func (m *macdIndicator) Normalized() bool { return false }

func (m *macdIndicator) Evaluate(series []float64) []backtest.Point {
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

	macdChan, signalChan := trend.NewMacdWithPeriod[float64](m.fastPeriod, m.slowPeriod, m.sigPeriod).Compute(in)
	var macdValues, signalValues []float64
	for {
		mv, mok := <-macdChan
		sv, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, mv)
		signalValues = append(signalValues, sv)
	}

	offset := n - len(macdValues)
	for i := 0; i < n; i++ {
		if i < offset {
			continue
		}
		hist := macdValues[i-offset] - signalValues[i-offset]
		out[i] = backtest.Point{Value: hist, Signal: hist > 0}
	}
	return out
}
