// Performance and strategy-diagnostic metrics for a backtest run.
package backtest

import "math"

// DirectionStats breaks a metric down by LONG vs SHORT trades.
type DirectionStats struct {
	Trades  int
	WinRate float64
	PnLUSD  float64
}

// SwapMetrics is C7's trade-level output.
type SwapMetrics struct {
	TotalTrades int
	Winning     int
	Losing      int
	WinRate     float64

	GrossProfit  float64
	GrossLoss    float64
	ProfitFactor float64

	AvgWin      float64
	AvgLoss     float64
	LargestWin  float64
	LargestLoss float64

	ByDirection map[PositionState]DirectionStats

	AvgDurationSecondsAll  float64
	AvgDurationSecondsWin  float64
	AvgDurationSecondsLoss float64

	TotalFeesUSD     float64
	TotalSlippageUSD float64

	MaxDrawdownPct float64
	MaxDrawdownUSD float64

	Sharpe  float64
	Sortino float64
	Calmar  float64
}

// CalculateSwapMetrics aggregates realized-trade statistics plus equity-curve risk metrics.
func CalculateSwapMetrics(trades []TradeEvent, equity []EquityPoint, swaps []SwapEvent) SwapMetrics {
	m := SwapMetrics{ByDirection: make(map[PositionState]DirectionStats)}
	m.TotalTrades = len(trades)

	byDir := map[PositionState]*DirectionStats{StateLong: {}, StateShort: {}}
	var durAll, durWin, durLoss []float64

	for _, t := range trades {
		pnl := t.PnLUSD
		dur := float64(t.ExitSwap.Timestamp - t.EntrySwap.Timestamp)
		durAll = append(durAll, dur)

		ds := byDir[t.Direction]
		if ds == nil {
			ds = &DirectionStats{}
			byDir[t.Direction] = ds
		}
		ds.Trades++
		ds.PnLUSD += pnl

		if pnl > 0 {
			m.Winning++
			m.GrossProfit += pnl
			durWin = append(durWin, dur)
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
		} else {
			m.Losing++
			m.GrossLoss += -pnl
			durLoss = append(durLoss, dur)
			if -pnl > m.LargestLoss {
				m.LargestLoss = -pnl
			}
		}
	}

	for dir, ds := range byDir {
		if ds.Trades == 0 {
			continue
		}
		wins := 0
		for _, t := range trades {
			if t.Direction == dir && t.PnLUSD > 0 {
				wins++
			}
		}
		ds.WinRate = float64(wins) / float64(ds.Trades)
		m.ByDirection[dir] = *ds
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.Winning) / float64(m.TotalTrades)
	}
	switch {
	case m.GrossLoss == 0 && m.GrossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	case m.GrossProfit == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	}
	if m.Winning > 0 {
		m.AvgWin = m.GrossProfit / float64(m.Winning)
	}
	if m.Losing > 0 {
		m.AvgLoss = m.GrossLoss / float64(m.Losing)
	}

	m.AvgDurationSecondsAll = mean(durAll)
	m.AvgDurationSecondsWin = mean(durWin)
	m.AvgDurationSecondsLoss = mean(durLoss)

	for _, s := range swaps {
		m.TotalFeesUSD += s.FeeUSD
		m.TotalSlippageUSD += math.Abs(s.SlippageUSD)
	}

	m.MaxDrawdownPct, m.MaxDrawdownUSD = maxDrawdown(equity)

	returns, annualizationFactor := dailyReturns(equity)
	m.Sharpe = sharpeRatio(returns, annualizationFactor)
	m.Sortino = sortinoRatio(returns)
	m.Calmar = calmarRatio(returns, annualizationFactor, m.MaxDrawdownPct)

	return m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

func maxDrawdown(equity []EquityPoint) (pct, usd float64) {
	peak := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		ddPct := (peak - p.Equity) / peak
		ddUSD := peak - p.Equity
		if ddPct > pct {
			pct = ddPct
		}
		if ddUSD > usd {
			usd = ddUSD
		}
	}
	return pct, usd
}

// dailyReturns groups the equity curve into 86400-second buckets from the
// first equity point and returns the fractional return per bucket, plus an
// annualization factor.
func dailyReturns(equity []EquityPoint) ([]float64, float64) {
	if len(equity) == 0 {
		return nil, 0
	}
	const daySeconds = 86400
	start := equity[0].Timestamp

	var dailyClose []float64
	bucket := int64(-1)
	var last float64
	for _, p := range equity {
		b := (p.Timestamp - start) / daySeconds
		if b != bucket {
			if bucket >= 0 {
				dailyClose = append(dailyClose, last)
			}
			bucket = b
		}
		last = p.Equity
	}
	dailyClose = append(dailyClose, last)

	var returns []float64
	for i := 1; i < len(dailyClose); i++ {
		if dailyClose[i-1] == 0 {
			continue
		}
		returns = append(returns, (dailyClose[i]-dailyClose[i-1])/dailyClose[i-1])
	}
	return returns, 365
}

func sharpeRatio(returns []float64, annualizationFactor float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := stdev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd * math.Sqrt(annualizationFactor)
}

func sortinoRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.Inf(1)
	}
	dsd := stdev(downside)
	if dsd == 0 {
		return 0
	}
	return mean(returns) / dsd
}

func calmarRatio(returns []float64, annualizationFactor, maxDDPct float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	annualizedReturn := mean(returns) * annualizationFactor
	if maxDDPct == 0 {
		if annualizedReturn > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return annualizedReturn / maxDDPct
}

// IndicatorStats is C7's per-indicator diagnostic row.
type IndicatorStats struct {
	FlipCount        int
	AvgDurationTrue  float64
	AvgDurationFalse float64
	PctTimeTrue      float64
	TriggeringFlips  int
	BlockingCount    int
	UsefulnessScore  float64
}

// NearMiss is a condition's closest-approach analysis.
type NearMiss struct {
	DistanceHistogram map[int]int
	ClosestApproach   int
	Approaches        []int // bar indices where distance improved to a new minimum
}

// AlgoMetrics is C7's strategy-diagnostic output.
type AlgoMetrics struct {
	Indicators             map[string]IndicatorStats
	NearMisses             map[ConditionType]NearMiss
	StateTimeBars          map[PositionState]int
	ExitReasonCounts       map[string]int
	ConditionTriggerCounts map[ConditionType]int
	EventTypeCounts        map[AlgoEventType]int
}

// CalculateAlgoMetrics computes per-indicator usefulness stats, near-miss
// histograms, and event/state tallies for a completed run.
func CalculateAlgoMetrics(feed *InMemoryFeed, events []AlgoEvent, resampled *ResampleResult, transitions []Transition) AlgoMetrics {
	m := AlgoMetrics{
		Indicators:             make(map[string]IndicatorStats),
		NearMisses:             make(map[ConditionType]NearMiss),
		StateTimeBars:          make(map[PositionState]int),
		ExitReasonCounts:       make(map[string]int),
		ConditionTriggerCounts: make(map[ConditionType]int),
		EventTypeCounts:        make(map[AlgoEventType]int),
	}

	for key, signal := range resampled.Signals {
		m.Indicators[key] = indicatorStatsFor(signal, events, key)
	}

	for t, nm := range buildNearMisses(events) {
		m.NearMisses[t] = nm
	}

	for _, ev := range events {
		m.EventTypeCounts[ev.Type]++
		if ev.Type == EventConditionChange && ev.NewMet {
			m.ConditionTriggerCounts[ev.Condition]++
		}
		switch ev.Type {
		case EventSLHit:
			m.ExitReasonCounts["SL_HIT"]++
		case EventTPHit:
			m.ExitReasonCounts["TP_HIT"]++
		case EventTrailingHit:
			m.ExitReasonCounts["TRAILING_HIT"]++
		}
	}

	for _, tr := range transitions {
		m.StateTimeBars[tr.To]++
	}

	return m
}

func indicatorStatsFor(signal []bool, events []AlgoEvent, key string) IndicatorStats {
	stats := IndicatorStats{}
	if len(signal) == 0 {
		return stats
	}

	// pctTimeTrue via run-length: handles a signal that starts true
	// before its first flip correctly.
	trueBars := 0
	type run struct {
		val   bool
		count int
	}
	var runs []run
	for i, v := range signal {
		if i == 0 || runs[len(runs)-1].val != v {
			runs = append(runs, run{val: v, count: 1})
		} else {
			runs[len(runs)-1].count++
		}
		if v {
			trueBars++
		}
	}
	stats.PctTimeTrue = float64(trueBars) / float64(len(signal))

	var trueDurs, falseDurs []float64
	for _, r := range runs {
		if r.val {
			trueDurs = append(trueDurs, float64(r.count))
		} else {
			falseDurs = append(falseDurs, float64(r.count))
		}
	}
	stats.AvgDurationTrue = mean(trueDurs)
	stats.AvgDurationFalse = mean(falseDurs)
	stats.FlipCount = len(runs) - 1
	if stats.FlipCount < 0 {
		stats.FlipCount = 0
	}

	for _, ev := range events {
		if ev.Type == EventConditionChange && ev.IndicatorKey == key {
			if ev.NewMet {
				stats.TriggeringFlips++
			} else {
				stats.BlockingCount++
			}
		}
	}

	denom := stats.TriggeringFlips + stats.BlockingCount
	if denom > 0 {
		stats.UsefulnessScore = clamp01to100(float64(stats.TriggeringFlips) / float64(denom) * 100)
	}

	return stats
}

func buildNearMisses(events []AlgoEvent) map[ConditionType]NearMiss {
	out := make(map[ConditionType]NearMiss)
	best := make(map[ConditionType]int)

	for _, ev := range events {
		if ev.Type != EventConditionChange {
			continue
		}
		nm := out[ev.Condition]
		if nm.DistanceHistogram == nil {
			nm.DistanceHistogram = make(map[int]int)
			nm.ClosestApproach = ev.Snapshot.DistanceFromTrigger
			best[ev.Condition] = ev.Snapshot.DistanceFromTrigger
		}
		nm.DistanceHistogram[ev.Snapshot.DistanceFromTrigger]++
		if !ev.NewMet && ev.Snapshot.DistanceFromTrigger < best[ev.Condition] {
			best[ev.Condition] = ev.Snapshot.DistanceFromTrigger
			nm.Approaches = append(nm.Approaches, ev.BarIndex)
		}
		if ev.Snapshot.DistanceFromTrigger < nm.ClosestApproach {
			nm.ClosestApproach = ev.Snapshot.DistanceFromTrigger
		}
		out[ev.Condition] = nm
	}
	return out
}
