package backtest

import "github.com/rs/zerolog"

// TradingStats holds statistical data for Kelly Criterion calculation.
type TradingStats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	AvgWin        float64 // average profit per winning trade
	AvgLoss       float64 // average loss per losing trade, positive value
	WinRate       float64 // 0.0 to 1.0
	AvgReturn     float64
	TotalProfit   float64
	TotalLoss     float64 // positive value
	LargestWin    float64
	LargestLoss   float64 // positive value
	WinLossRatio  float64 // AvgWin / AvgLoss
}

// KellyCalculator sizes positions from a run's own trade history, offered
// as an alternative to ABS/REL/DYN position sizing for callers that want
// their sizing informed by realized performance rather than a fixed
// ValueConfig.
type KellyCalculator struct {
	log zerolog.Logger
}

func NewKellyCalculator(logger zerolog.Logger) *KellyCalculator {
	return &KellyCalculator{log: logger.With().Str("component", "kelly").Logger()}
}

// CalculateStatsFromTrades computes trading statistics from in-memory
// TradeEvents, replacing the database-backed query the live variant uses.
func CalculateStatsFromTrades(trades []TradeEvent) *TradingStats {
	stats := &TradingStats{}
	if len(trades) == 0 {
		return stats
	}

	stats.TotalTrades = len(trades)
	for _, t := range trades {
		pl := t.PnLUSD
		if pl > 0 {
			stats.WinningTrades++
			stats.TotalProfit += pl
			if pl > stats.LargestWin {
				stats.LargestWin = pl
			}
		} else {
			stats.LosingTrades++
			absLoss := -pl
			stats.TotalLoss += absLoss
			if absLoss > stats.LargestLoss {
				stats.LargestLoss = absLoss
			}
		}
	}

	if stats.WinningTrades > 0 {
		stats.AvgWin = stats.TotalProfit / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = stats.TotalLoss / float64(stats.LosingTrades)
	}
	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
	stats.AvgReturn = (stats.TotalProfit - stats.TotalLoss) / float64(stats.TotalTrades)
	if stats.AvgLoss > 0 {
		stats.WinLossRatio = stats.AvgWin / stats.AvgLoss
	}

	return stats
}

// CalculatePositionSize sizes a position using the Kelly Criterion:
// f* = (p*b - q) / b, where p = win rate, q = 1-p, b = win/loss ratio.
// kellyFraction scales the raw Kelly percentage down (0.25-0.5 is typical)
// to avoid full-Kelly's large drawdowns.
func (kc *KellyCalculator) CalculatePositionSize(stats *TradingStats, capital, kellyFraction float64) float64 {
	if stats.TotalTrades < 30 {
		kc.log.Debug().Int("total_trades", stats.TotalTrades).Msg("not enough history for Kelly, using conservative 10%")
		return capital * 0.10
	}
	if stats.WinRate <= 0 || stats.WinRate >= 1 {
		kc.log.Warn().Float64("win_rate", stats.WinRate).Msg("invalid win rate, using conservative 10%")
		return capital * 0.10
	}
	if stats.AvgWin <= 0 || stats.AvgLoss <= 0 {
		kc.log.Warn().Msg("invalid average win/loss, using conservative 10%")
		return capital * 0.10
	}

	p := stats.WinRate
	q := 1 - p
	b := stats.WinLossRatio
	kellyPercent := (p*b - q) / b

	if kellyPercent <= 0 {
		kc.log.Warn().Float64("kelly_percent", kellyPercent).Msg("negative Kelly, no positive edge, using minimal 1%")
		return capital * 0.01
	}

	adjusted := kellyPercent * kellyFraction
	if adjusted > 0.25 {
		adjusted = 0.25
	}
	if adjusted < 0.01 {
		adjusted = 0.01
	}

	positionSize := capital * adjusted
	kc.log.Info().
		Int("total_trades", stats.TotalTrades).
		Float64("win_rate", stats.WinRate*100).
		Float64("kelly_percent", kellyPercent*100).
		Float64("adjusted_percent", adjusted*100).
		Float64("position_size", positionSize).
		Msg("Kelly Criterion position sizing")

	return positionSize
}

// GetRecommendation interprets a raw Kelly percentage for a human reader.
func GetRecommendation(kellyPercent float64) string {
	percent := kellyPercent * 100
	switch {
	case percent <= 0:
		return "No position recommended - negative edge (expected value < 0)"
	case percent <= 2:
		return "Very small position - minimal edge"
	case percent <= 5:
		return "Conservative position - moderate edge"
	case percent <= 10:
		return "Standard position - good edge"
	case percent <= 20:
		return "Large position - strong edge (monitor risk carefully)"
	case percent <= 30:
		return "Very large position - exceptional edge (high risk/reward)"
	default:
		return "Warning: extremely large position suggested - verify calculations and consider reducing Kelly fraction"
	}
}
