package backtest

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() BacktestInput {
	input := DefaultBacktestInput()
	input.Algo.CoinSymbol = "BTC"
	input.Algo.Type = AlgoLong
	input.Algo.StartingCapitalUSD = 10000
	return input
}

func sampleOutput() *BacktestOutput {
	trades := []TradeEvent{
		{
			EntrySwap: SwapEvent{Timestamp: 0, Price: 50000},
			ExitSwap:  SwapEvent{Timestamp: 3600, Price: 51000},
			Direction: StateLong,
			PnLUSD:    100,
		},
		{
			EntrySwap: SwapEvent{Timestamp: 7200, Price: 51000},
			ExitSwap:  SwapEvent{Timestamp: 9000, Price: 50500},
			Direction: StateLong,
			PnLUSD:    -50,
		},
	}
	equity := []EquityPoint{
		{Timestamp: 0, Equity: 10000},
		{Timestamp: 3600, Equity: 10100},
		{Timestamp: 7200, Equity: 10100},
		{Timestamp: 9000, Equity: 10050},
	}
	out := &BacktestOutput{
		Trades:      trades,
		EquityCurve: equity,
		FinalState:  StateCash,
	}
	out.SwapMetrics = CalculateSwapMetrics(trades, equity, nil)
	out.AlgoMetrics = CalculateAlgoMetrics(nil, nil, &ResampleResult{}, nil)
	return out
}

func TestNewReportGenerator(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())
	assert.NotNil(t, gen)
}

func TestGenerateText(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())
	text := gen.GenerateText()

	assert.Contains(t, text, "BTC")
	assert.Contains(t, text, "Trades: 2")
	assert.Contains(t, text, "Sharpe")
	assert.Contains(t, text, "Max drawdown")
	assert.Contains(t, text, "Kelly sizing")
}

func TestKellySizingNoteWithoutStartingCapital(t *testing.T) {
	input := sampleInput()
	input.Algo.StartingCapitalUSD = 0
	gen := NewReportGenerator(input, sampleOutput())

	assert.Contains(t, gen.GenerateText(), "Kelly sizing: n/a")
}

func TestGenerateHTML(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	html, err := gen.GenerateHTML()
	require.NoError(t, err)
	assert.NotEmpty(t, html)

	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "</html>")
	assert.Contains(t, html, "Performance Summary")
	assert.Contains(t, html, "Equity Curve")
	assert.Contains(t, html, "Drawdown")
	assert.Contains(t, html, "chart.js")
}

func TestSaveToFile(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	tmpfile := "/tmp/backtest_report_test.html"
	defer func() { _ = os.Remove(tmpfile) }()

	err := gen.SaveToFile(tmpfile)
	require.NoError(t, err)

	data, err := os.ReadFile(tmpfile)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, string(data), "Backtest Report")
}

func TestPrepareEquityCurveData(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	chartData := gen.prepareEquityCurveData()
	assert.Contains(t, chartData, "labels")
	assert.Contains(t, chartData, "datasets")
	assert.Contains(t, chartData, "Equity")
}

func TestPrepareEquityCurveData_EmptyData(t *testing.T) {
	out := &BacktestOutput{}
	gen := NewReportGenerator(sampleInput(), out)

	chartData := gen.prepareEquityCurveData()
	assert.Contains(t, chartData, "labels: []")
	assert.Contains(t, chartData, "datasets: []")
}

func TestPrepareDrawdownData(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	chartData := gen.prepareDrawdownData()
	assert.Contains(t, chartData, "labels")
	assert.Contains(t, chartData, "datasets")
	assert.Contains(t, chartData, "Drawdown")
}

func TestPrepareTradeDistributionData(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	chartData := gen.prepareTradeDistributionData()
	assert.Contains(t, chartData, "labels")
	assert.Contains(t, chartData, "datasets")
	assert.Contains(t, chartData, "Number of Trades")
}

func TestPrepareTradeDistributionData_EmptyData(t *testing.T) {
	out := &BacktestOutput{}
	gen := NewReportGenerator(sampleInput(), out)

	chartData := gen.prepareTradeDistributionData()
	assert.Contains(t, chartData, "labels: []")
	assert.Contains(t, chartData, "datasets: []")
}

func TestPrepareWinLossData(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	chartData := gen.prepareWinLossData()
	assert.Contains(t, chartData, "Winning Trades")
	assert.Contains(t, chartData, "Losing Trades")
}

func TestPrepareTemplateData(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	data := gen.prepareTemplateData()

	assert.Equal(t, "Backtest Report: BTC", data["Title"])
	assert.NotNil(t, data["GeneratedAt"])
	assert.NotNil(t, data["Metrics"])
	assert.NotEmpty(t, data["EquityCurveData"])
	assert.NotEmpty(t, data["DrawdownData"])
	assert.NotEmpty(t, data["TradeDistribution"])
	assert.NotEmpty(t, data["WinLossData"])
	assert.NotNil(t, data["Trades"])
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "123.46", formatFloat(123.456))
	assert.Equal(t, "0.12", formatFloat(0.123))
	assert.Equal(t, "-45.68", formatFloat(-45.678))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "12.35%", formatPercent(12.345))
	assert.Equal(t, "0.12%", formatPercent(0.123))
	assert.Equal(t, "-5.68%", formatPercent(-5.678))
}

func TestFormatUnixTime(t *testing.T) {
	formatted := formatUnixTime(1705313445) // 2024-01-15 10:10:45 UTC
	assert.Equal(t, "2024-01-15 10:10:45", formatted)
}

func TestHTMLReportContent(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	html, err := gen.GenerateHTML()
	require.NoError(t, err)

	assert.Contains(t, html, "Performance Summary")
	assert.Contains(t, html, "Equity Curve")
	assert.Contains(t, html, "Drawdown")
	assert.Contains(t, html, "Trade Breakdown")
	assert.Contains(t, html, "Recent Trades")

	assert.Contains(t, html, "Sharpe Ratio")
	assert.Contains(t, html, "Max Drawdown")
	assert.Contains(t, html, "Win Rate")
	assert.Contains(t, html, "Profit Factor")

	assert.Contains(t, html, "equityChart")
	assert.Contains(t, html, "drawdownChart")
	assert.Contains(t, html, "tradeDistributionChart")
	assert.Contains(t, html, "winLossChart")
}

func TestReportChartDataFormatting(t *testing.T) {
	gen := NewReportGenerator(sampleInput(), sampleOutput())

	t.Run("equity curve has valid JSON arrays", func(t *testing.T) {
		chartData := gen.prepareEquityCurveData()
		assert.True(t, strings.Contains(chartData, "["))
		assert.True(t, strings.Contains(chartData, "]"))
	})

	t.Run("drawdown has valid JSON arrays", func(t *testing.T) {
		chartData := gen.prepareDrawdownData()
		assert.True(t, strings.Contains(chartData, "["))
		assert.True(t, strings.Contains(chartData, "]"))
	})

	t.Run("trade distribution has valid JSON arrays", func(t *testing.T) {
		chartData := gen.prepareTradeDistributionData()
		assert.True(t, strings.Contains(chartData, "["))
		assert.True(t, strings.Contains(chartData, "]"))
	})

	t.Run("win/loss has valid JSON arrays", func(t *testing.T) {
		chartData := gen.prepareWinLossData()
		assert.True(t, strings.Contains(chartData, "["))
		assert.True(t, strings.Contains(chartData, "]"))
	})
}
