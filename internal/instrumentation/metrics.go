// Package instrumentation exposes Prometheus counters and gauges for
// backtest-run diagnostics.
package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtestcore_runs_total",
		Help: "Total number of backtest runs executed",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backtestcore_run_duration_seconds",
		Help:    "Wall-clock duration of a backtest run",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	BarsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtestcore_bars_processed_total",
		Help: "Total number of bars processed across all runs",
	})

	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtestcore_trades_executed_total",
		Help: "Total number of trades executed, by direction",
	}, []string{"direction"})

	FinalEquity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backtestcore_final_equity_usd",
		Help: "Final account equity of the most recent run",
	})

	SharpeRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backtestcore_sharpe_ratio",
		Help: "Sharpe ratio of the most recent run",
	})

	MaxDrawdown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backtestcore_max_drawdown_ratio",
		Help: "Maximum drawdown ratio of the most recent run",
	})

	RunErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtestcore_run_errors_total",
		Help: "Total number of run failures by stage",
	}, []string{"stage"})
)

// RecordTrade increments the trade counter for a direction label ("LONG" or "SHORT").
func RecordTrade(direction string) {
	TradesExecuted.WithLabelValues(direction).Inc()
}

// RecordRunError increments the run-error counter for a named pipeline stage.
func RecordRunError(stage string) {
	RunErrors.WithLabelValues(stage).Inc()
}
