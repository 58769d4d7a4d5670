package indicators

import (
	"github.com/cinar/indicator/v2/volatility"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

// bollingerBand selects which of the three bands a bollingerIndicator
// reports as its Value.
type bollingerBand int

const (
	bandUpper bollingerBand = iota
	bandMiddle
	bandLower
)

// bollingerIndicator wraps cinar/indicator/v2's Bollinger Bands, reporting
// one band's level. Signal is true when price crosses outside that band:
// at/above the upper band (sell pressure) or at/below the lower band (buy
// pressure); the middle band's signal is price above the middle line.
type bollingerIndicator struct {
	cacheKey string
	period   int
	band     bollingerBand
}

func newBollinger(cacheKey string, band bollingerBand, params map[string]float64) *bollingerIndicator {
	period := 20
	if p, ok := params["period"]; ok && p > 0 {
		period = int(p)
	}
	return &bollingerIndicator{cacheKey: cacheKey, period: period, band: band}
}

func (b *bollingerIndicator) CacheKey() string { return b.cacheKey }
func (b *bollingerIndicator) Warmup() int      { return b.period }
func (b *bollingerIndicator) Normalized() bool { return false }

func (b *bollingerIndicator) Evaluate(series []float64) []backtest.Point {
	lower, middle, upper, offset := b.compute(series)
	n := len(series)
	out := make([]backtest.Point, n)

	for i := 0; i < n; i++ {
		if i < offset {
			continue
		}
		j := i - offset
		switch b.band {
		case bandUpper:
			out[i] = backtest.Point{Value: upper[j], Signal: series[i] >= upper[j]}
		case bandLower:
			out[i] = backtest.Point{Value: lower[j], Signal: series[i] <= lower[j]}
		default:
			out[i] = backtest.Point{Value: middle[j], Signal: series[i] > middle[j]}
		}
	}
	return out
}

func (b *bollingerIndicator) compute(series []float64) (lower, middle, upper []float64, offset int) {
	n := len(series)
	if n == 0 {
		return nil, nil, nil, 0
	}

	in := make(chan float64, n)
	for _, v := range series {
		in <- v
	}
	close(in)

	lowerChan, middleChan, upperChan := volatility.NewBollingerBandsWithPeriod[float64](b.period).Compute(in)
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower = append(lower, l)
		middle = append(middle, m)
		upper = append(upper, u)
	}
	return lower, middle, upper, n - len(middle)
}

// percentBIndicator is %B = (price - lower) / (upper - lower) * 100,
// clamped to [0,100] so it can serve as a DYN value factor.
type percentBIndicator struct {
	cacheKey string
	period   int
}

func newPercentB(cacheKey string, params map[string]float64) *percentBIndicator {
	period := 20
	if p, ok := params["period"]; ok && p > 0 {
		period = int(p)
	}
	return &percentBIndicator{cacheKey: cacheKey, period: period}
}

func (p *percentBIndicator) CacheKey() string { return p.cacheKey }
func (p *percentBIndicator) Warmup() int      { return p.period }
func (p *percentBIndicator) Normalized() bool { return true }

func (p *percentBIndicator) Evaluate(series []float64) []backtest.Point {
	bb := &bollingerIndicator{period: p.period}
	lower, middle, upper, offset := bb.compute(series)
	_ = middle
	n := len(series)
	out := make([]backtest.Point, n)

	for i := 0; i < n; i++ {
		if i < offset {
			continue
		}
		j := i - offset
		width := upper[j] - lower[j]
		pctB := 50.0
		if width != 0 {
			pctB = (series[i] - lower[j]) / width * 100
		}
		if pctB < 0 {
			pctB = 0
		}
		if pctB > 100 {
			pctB = 100
		}
		out[i] = backtest.Point{Value: pctB, Signal: pctB >= 100 || pctB <= 0}
	}
	return out
}
