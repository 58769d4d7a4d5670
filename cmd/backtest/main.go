// Backtest Runner CLI
// Runs a configured trading strategy against historical OHLCV candles and
// reports its performance.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vela-quant/backtestcore/internal/config"
	"github.com/vela-quant/backtestcore/internal/indicators"
	"github.com/vela-quant/backtestcore/internal/instrumentation"
	"github.com/vela-quant/backtestcore/pkg/backtest"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file (default: ./backtest.yaml or ./configs/backtest.yaml)")
	candlesOverride = flag.String("candles", "", "Override data.candles_path")
	outputText = flag.String("output", "", "Write the text report to this file (in addition to stdout)")
	outputHTML = flag.String("html", "", "Write an HTML report to this file")
	verbose    = flag.Bool("verbose", false, "Force debug-level logging regardless of config")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if *candlesOverride != "" {
		cfg.Data.CandlesPath = *candlesOverride
	}
	if *outputText == "" {
		*outputText = cfg.Output.TextReportPath
	}
	if *outputHTML == "" {
		*outputHTML = cfg.Output.HTMLReportPath
	}

	level := cfg.App.LogLevel
	if *verbose {
		level = "debug"
	}
	config.InitLogger(level, cfg.App.LogFormat)
	logger := config.NewLogger("cmd.backtest")

	if cfg.Metrics.Enabled {
		srv := instrumentation.NewServer(cfg.Metrics.Port, logger)
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start metrics server")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	candles, err := loadCandlesCSV(cfg.Data.CandlesPath)
	if err != nil {
		instrumentation.RecordRunError("load_candles")
		logger.Fatal().Err(err).Str("path", cfg.Data.CandlesPath).Msg("failed to load candles")
	}

	input, err := cfg.Strategy.ToBacktestInput()
	if err != nil {
		instrumentation.RecordRunError("strategy_config")
		logger.Fatal().Err(err).Msg("invalid strategy configuration")
	}

	factory := indicators.NewFactory(logger)

	start := time.Now()
	engine, err := backtest.NewEngine(input, candles, cfg.Data.ResolutionSeconds, factory, logger)
	if err != nil {
		instrumentation.RecordRunError("new_engine")
		logger.Fatal().Err(err).Msg("failed to construct engine")
	}

	ctx := context.Background()
	output, err := engine.Run(ctx)
	if err != nil {
		instrumentation.RecordRunError("run")
		logger.Fatal().Err(err).Msg("backtest run failed")
	}
	recordRunMetrics(output, time.Since(start))

	gen := backtest.NewReportGenerator(input, output)
	text := gen.GenerateText()
	fmt.Println(text)

	if *outputText != "" {
		if err := os.WriteFile(*outputText, []byte(text), 0600); err != nil {
			logger.Warn().Err(err).Str("file", *outputText).Msg("failed to write text report")
		} else {
			logger.Info().Str("file", *outputText).Msg("text report written")
		}
	}

	if *outputHTML != "" {
		if err := gen.SaveToFile(*outputHTML); err != nil {
			logger.Fatal().Err(err).Msg("failed to write HTML report")
		}
		logger.Info().Str("file", *outputHTML).Msg("HTML report written")
	}
}

func recordRunMetrics(out *backtest.BacktestOutput, elapsed time.Duration) {
	instrumentation.RunsTotal.Inc()
	instrumentation.RunDuration.Observe(elapsed.Seconds())
	instrumentation.BarsProcessed.Add(float64(out.BarsRun))
	instrumentation.FinalEquity.Set(out.FinalBalance)
	instrumentation.SharpeRatio.Set(out.SwapMetrics.Sharpe)
	instrumentation.MaxDrawdown.Set(out.SwapMetrics.MaxDrawdownPct)
	for _, tr := range out.Trades {
		instrumentation.RecordTrade(string(tr.Direction))
	}
}

// loadCandlesCSV reads a header-less-or-not CSV of bucket,open,high,low,close,volume.
// A header row is detected and skipped by attempting to parse its first field as an
// integer bucket timestamp.
func loadCandlesCSV(path string) ([]backtest.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candles file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse candles CSV: %w", err)
	}

	candles := make([]backtest.Candle, 0, len(rows))
	for i, row := range rows {
		bucket, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("row %d: invalid bucket %q: %w", i, row[0], err)
		}

		c := backtest.Candle{Bucket: bucket}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for j, f := range fields {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid field %d: %w", i, j+1, err)
			}
			*f = v
		}
		candles = append(candles, c)
	}

	log.Debug().Int("candles", len(candles)).Str("path", path).Msg("loaded candles from CSV")
	return candles, nil
}
