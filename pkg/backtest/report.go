// Text and HTML report generation for a completed backtest run.
package backtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// REPORT GENERATOR
// ============================================================================

// ReportGenerator renders a BacktestOutput as a human-readable text summary
// or a single-file HTML report with Chart.js visualizations (Chart.js itself
// is loaded from a CDN).
type ReportGenerator struct {
	input  BacktestInput
	output *BacktestOutput
}

// NewReportGenerator wraps a completed run's input and output for rendering.
func NewReportGenerator(input BacktestInput, output *BacktestOutput) *ReportGenerator {
	return &ReportGenerator{input: input, output: output}
}

// GenerateText renders a compact plain-text summary, suitable for CLI output.
func (r *ReportGenerator) GenerateText() string {
	var b strings.Builder
	sm := r.output.SwapMetrics

	fmt.Fprintf(&b, "Backtest Report: %s (%s)\n", r.input.Algo.CoinSymbol, r.input.Algo.Type)
	fmt.Fprintf(&b, "Bars run: %d   Final state: %s   Final balance: $%.2f\n\n",
		r.output.BarsRun, r.output.FinalState, r.output.FinalBalance)

	fmt.Fprintf(&b, "Trades: %d (win %d / loss %d, win rate %.1f%%)\n",
		sm.TotalTrades, sm.Winning, sm.Losing, sm.WinRate*100)
	fmt.Fprintf(&b, "Gross profit: $%.2f   Gross loss: $%.2f   Profit factor: %.2f\n",
		sm.GrossProfit, sm.GrossLoss, sm.ProfitFactor)
	fmt.Fprintf(&b, "Avg win: $%.2f   Avg loss: $%.2f   Largest win: $%.2f   Largest loss: $%.2f\n",
		sm.AvgWin, sm.AvgLoss, sm.LargestWin, sm.LargestLoss)
	fmt.Fprintf(&b, "Max drawdown: %.2f%% ($%.2f)\n", sm.MaxDrawdownPct*100, sm.MaxDrawdownUSD)
	fmt.Fprintf(&b, "Sharpe: %.2f   Sortino: %.2f   Calmar: %.2f\n", sm.Sharpe, sm.Sortino, sm.Calmar)
	fmt.Fprintf(&b, "Total fees: $%.2f   Total slippage: $%.2f\n\n", sm.TotalFeesUSD, sm.TotalSlippageUSD)

	for dir, ds := range sm.ByDirection {
		if ds.Trades == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %d trades, win rate %.1f%%, PnL $%.2f\n", dir, ds.Trades, ds.WinRate*100, ds.PnLUSD)
	}

	am := r.output.AlgoMetrics
	b.WriteString("\nIndicator diagnostics:\n")
	keys := make([]string, 0, len(am.Indicators))
	for k := range am.Indicators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := am.Indicators[k]
		fmt.Fprintf(&b, "  %-24s flips=%-4d pctTrue=%.1f%% usefulness=%.1f\n",
			k, s.FlipCount, s.PctTimeTrue*100, s.UsefulnessScore)
	}

	if len(am.ExitReasonCounts) > 0 {
		b.WriteString("\nExit reasons:\n")
		reasons := make([]string, 0, len(am.ExitReasonCounts))
		for k := range am.ExitReasonCounts {
			reasons = append(reasons, k)
		}
		sort.Strings(reasons)
		for _, k := range reasons {
			fmt.Fprintf(&b, "  %-16s %d\n", k, am.ExitReasonCounts[k])
		}
	}

	b.WriteString("\n")
	b.WriteString(r.kellySizingNote())

	return b.String()
}

// kellySizingNote sizes a hypothetical next position from this run's own
// trade history via the Kelly Criterion, as a diagnostic alongside the
// ABS/REL/DYN sizing the run actually used.
func (r *ReportGenerator) kellySizingNote() string {
	capital := r.input.Algo.StartingCapitalUSD
	if capital <= 0 {
		return "Kelly sizing: n/a (starting capital not set)\n"
	}

	stats := CalculateStatsFromTrades(r.output.Trades)
	kc := NewKellyCalculator(zerolog.Nop())
	sizeUSD := kc.CalculatePositionSize(stats, capital, 0.5)
	fraction := sizeUSD / capital

	return fmt.Sprintf("Kelly sizing (half-Kelly, from %d trades): $%.2f (%.1f%% of capital) - %s\n",
		stats.TotalTrades, sizeUSD, fraction*100, GetRecommendation(fraction))
}

// GenerateHTML generates a complete HTML report with embedded charts.
func (r *ReportGenerator) GenerateHTML() (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatFloat":   formatFloat,
		"formatPercent": formatPercent,
		"formatTime":    formatUnixTime,
		"mul":           func(a, b float64) float64 { return a * b },
		"last": func(items []TradeEvent, n int) []TradeEvent {
			if len(items) <= n {
				return items
			}
			return items[len(items)-n:]
		},
	}).Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := r.prepareTemplateData()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// SaveToFile saves the HTML report to a file.
func (r *ReportGenerator) SaveToFile(path string) error {
	html, err := r.GenerateHTML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(html), 0644)
}

// prepareTemplateData prepares all data needed for the HTML template.
func (r *ReportGenerator) prepareTemplateData() map[string]interface{} {
	return map[string]interface{}{
		"Title":       "Backtest Report: " + r.input.Algo.CoinSymbol,
		"GeneratedAt": time.Now(),
		"Input":       r.input,
		"Metrics":     r.output.SwapMetrics,
		"AlgoMetrics": r.output.AlgoMetrics,
		"FinalState":  r.output.FinalState,

		// template.JS: the chart data is JavaScript object-literal source and
		// must be emitted unquoted inside the <script> block.
		"EquityCurveData":   template.JS(r.prepareEquityCurveData()),
		"DrawdownData":      template.JS(r.prepareDrawdownData()),
		"WinLossData":       template.JS(r.prepareWinLossData()),
		"TradeDistribution": template.JS(r.prepareTradeDistributionData()),

		"Trades": r.output.Trades,
	}
}

// ============================================================================
// CHART DATA PREPARATION
// ============================================================================

func (r *ReportGenerator) prepareEquityCurveData() string {
	curve := r.output.EquityCurve
	if len(curve) == 0 {
		return "{labels: [], datasets: []}"
	}

	labels := make([]string, len(curve))
	values := make([]float64, len(curve))
	for i, p := range curve {
		labels[i] = formatUnixTime(p.Timestamp)
		values[i] = p.Equity
	}

	labelsJSON, _ := json.Marshal(labels)
	valuesJSON, _ := json.Marshal(values)

	return fmt.Sprintf(`{
		labels: %s,
		datasets: [{
			label: 'Equity',
			data: %s,
			borderColor: 'rgb(75, 192, 192)',
			backgroundColor: 'rgba(75, 192, 192, 0.1)',
			tension: 0.1,
			fill: true
		}]
	}`, labelsJSON, valuesJSON)
}

func (r *ReportGenerator) prepareDrawdownData() string {
	curve := r.output.EquityCurve
	if len(curve) == 0 {
		return "{labels: [], datasets: []}"
	}

	labels := make([]string, len(curve))
	drawdowns := make([]float64, len(curve))
	for i, p := range curve {
		labels[i] = formatUnixTime(p.Timestamp)
		drawdowns[i] = p.DrawdownPct * 100
	}

	labelsJSON, _ := json.Marshal(labels)
	drawdownsJSON, _ := json.Marshal(drawdowns)

	return fmt.Sprintf(`{
		labels: %s,
		datasets: [{
			label: 'Drawdown (%%)',
			data: %s,
			borderColor: 'rgb(255, 99, 132)',
			backgroundColor: 'rgba(255, 99, 132, 0.1)',
			tension: 0.1,
			fill: true
		}]
	}`, labelsJSON, drawdownsJSON)
}

func (r *ReportGenerator) prepareWinLossData() string {
	data := []int{r.output.SwapMetrics.Winning, r.output.SwapMetrics.Losing}
	dataJSON, _ := json.Marshal(data)

	return fmt.Sprintf(`{
		labels: ['Winning Trades', 'Losing Trades'],
		datasets: [{
			data: %s,
			backgroundColor: ['rgba(75, 192, 192, 0.8)', 'rgba(255, 99, 132, 0.8)'],
			borderColor: ['rgb(75, 192, 192)', 'rgb(255, 99, 132)'],
			borderWidth: 1
		}]
	}`, dataJSON)
}

func (r *ReportGenerator) prepareTradeDistributionData() string {
	trades := r.output.Trades
	if len(trades) == 0 {
		return "{labels: [], datasets: []}"
	}

	bins := []float64{-1000, -500, -250, -100, -50, 0, 50, 100, 250, 500, 1000}
	binLabels := []string{"< -$1000", "-$1000 to -$500", "-$500 to -$250", "-$250 to -$100",
		"-$100 to -$50", "-$50 to $0", "$0 to $50", "$50 to $100", "$100 to $250", "$250 to $500", "> $500"}
	counts := make([]int, len(bins)+1)

	for _, tr := range trades {
		binned := false
		for i, bin := range bins {
			if tr.PnLUSD < bin {
				counts[i]++
				binned = true
				break
			}
		}
		if !binned {
			counts[len(bins)]++
		}
	}

	labelsJSON, _ := json.Marshal(binLabels)
	countsJSON, _ := json.Marshal(counts)

	return fmt.Sprintf(`{
		labels: %s,
		datasets: [{
			label: 'Number of Trades',
			data: %s,
			backgroundColor: 'rgba(54, 162, 235, 0.8)',
			borderColor: 'rgb(54, 162, 235)',
			borderWidth: 1
		}]
	}`, labelsJSON, countsJSON)
}

// ============================================================================
// TEMPLATE HELPER FUNCTIONS
// ============================================================================

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatPercent(f float64) string {
	return fmt.Sprintf("%.2f%%", f)
}

func formatUnixTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

// ============================================================================
// HTML TEMPLATE
// ============================================================================

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Title }}</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f5f5;
            color: #333;
            line-height: 1.6;
        }
        .container { max-width: 1400px; margin: 0 auto; padding: 20px; }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 10px;
            margin-bottom: 30px;
        }
        header h1 { font-size: 2.2em; margin-bottom: 10px; }
        .section {
            background: white;
            padding: 25px;
            margin-bottom: 25px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);
        }
        .section h2 { color: #667eea; margin-bottom: 20px; padding-bottom: 10px; border-bottom: 2px solid #f0f0f0; }
        .metrics-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 20px; margin-top: 20px; }
        .metric-card { background: linear-gradient(135deg, #f5f7fa 0%, #c3cfe2 100%); padding: 20px; border-radius: 8px; border-left: 4px solid #667eea; }
        .metric-label { font-size: 0.85em; color: #666; text-transform: uppercase; letter-spacing: 0.5px; margin-bottom: 8px; }
        .metric-value { font-size: 1.7em; font-weight: bold; color: #333; }
        .metric-value.positive { color: #10b981; }
        .metric-value.negative { color: #ef4444; }
        .chart-container { position: relative; height: 380px; margin: 20px 0; }
        .chart-row { display: grid; grid-template-columns: 1fr 1fr; gap: 25px; margin: 20px 0; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        table th { background: #667eea; color: white; padding: 12px; text-align: left; font-weight: 600; }
        table td { padding: 12px; border-bottom: 1px solid #f0f0f0; }
        .positive { color: #10b981; font-weight: 600; }
        .negative { color: #ef4444; font-weight: 600; }
        footer { text-align: center; padding: 20px; color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{ .Title }}</h1>
            <p>Generated: {{ formatTime .GeneratedAt.Unix }} &middot; Final state: {{ .FinalState }}</p>
        </header>

        <div class="section">
            <h2>Performance Summary</h2>
            <div class="metrics-grid">
                <div class="metric-card">
                    <div class="metric-label">Win Rate</div>
                    <div class="metric-value">{{ formatPercent (mul .Metrics.WinRate 100) }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Sharpe Ratio</div>
                    <div class="metric-value">{{ formatFloat .Metrics.Sharpe }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Sortino Ratio</div>
                    <div class="metric-value">{{ formatFloat .Metrics.Sortino }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Max Drawdown</div>
                    <div class="metric-value negative">{{ formatPercent (mul .Metrics.MaxDrawdownPct 100) }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Profit Factor</div>
                    <div class="metric-value">{{ formatFloat .Metrics.ProfitFactor }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Total Trades</div>
                    <div class="metric-value">{{ .Metrics.TotalTrades }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Total Fees</div>
                    <div class="metric-value">${{ formatFloat .Metrics.TotalFeesUSD }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Calmar Ratio</div>
                    <div class="metric-value">{{ formatFloat .Metrics.Calmar }}</div>
                </div>
            </div>
        </div>

        <div class="section">
            <h2>Equity Curve</h2>
            <div class="chart-container"><canvas id="equityChart"></canvas></div>
        </div>

        <div class="section">
            <h2>Drawdown</h2>
            <div class="chart-container"><canvas id="drawdownChart"></canvas></div>
        </div>

        <div class="section">
            <h2>Trade Breakdown</h2>
            <div class="chart-row">
                <div class="chart-container"><canvas id="winLossChart"></canvas></div>
                <div class="chart-container"><canvas id="tradeDistributionChart"></canvas></div>
            </div>
            <div class="metrics-grid">
                <div class="metric-card">
                    <div class="metric-label">Winning Trades</div>
                    <div class="metric-value positive">{{ .Metrics.Winning }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Losing Trades</div>
                    <div class="metric-value negative">{{ .Metrics.Losing }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Average Win</div>
                    <div class="metric-value positive">${{ formatFloat .Metrics.AvgWin }}</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Average Loss</div>
                    <div class="metric-value negative">${{ formatFloat .Metrics.AvgLoss }}</div>
                </div>
            </div>
        </div>

        <div class="section">
            <h2>Recent Trades (Last 20)</h2>
            <table>
                <thead>
                    <tr>
                        <th>Direction</th>
                        <th>Entry Time</th>
                        <th>Exit Time</th>
                        <th>Entry Price</th>
                        <th>Exit Price</th>
                        <th>P&amp;L</th>
                    </tr>
                </thead>
                <tbody>
                    {{ range last .Trades 20 }}
                    <tr>
                        <td>{{ .Direction }}</td>
                        <td>{{ formatTime .EntrySwap.Timestamp }}</td>
                        <td>{{ formatTime .ExitSwap.Timestamp }}</td>
                        <td>${{ formatFloat .EntrySwap.Price }}</td>
                        <td>${{ formatFloat .ExitSwap.Price }}</td>
                        <td class="{{ if ge .PnLUSD 0.0 }}positive{{ else }}negative{{ end }}">${{ formatFloat .PnLUSD }}</td>
                    </tr>
                    {{ end }}
                </tbody>
            </table>
        </div>

        <footer>
            <p>Backtest engine report</p>
        </footer>
    </div>

    <script>
        Chart.defaults.font.family = '-apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif';
        Chart.defaults.color = '#666';

        new Chart(document.getElementById('equityChart'), {
            type: 'line',
            data: {{ .EquityCurveData }},
            options: {
                responsive: true, maintainAspectRatio: false,
                plugins: { legend: { display: true } },
                scales: { y: { beginAtZero: false, ticks: { callback: function(v) { return '$' + v.toLocaleString(); } } } }
            }
        });

        new Chart(document.getElementById('drawdownChart'), {
            type: 'line',
            data: {{ .DrawdownData }},
            options: {
                responsive: true, maintainAspectRatio: false,
                plugins: { legend: { display: true } },
                scales: { y: { ticks: { callback: function(v) { return v.toFixed(2) + '%'; } } } }
            }
        });

        new Chart(document.getElementById('winLossChart'), {
            type: 'pie',
            data: {{ .WinLossData }},
            options: { responsive: true, maintainAspectRatio: false, plugins: { legend: { display: true, position: 'bottom' } } }
        });

        new Chart(document.getElementById('tradeDistributionChart'), {
            type: 'bar',
            data: {{ .TradeDistribution }},
            options: {
                responsive: true, maintainAspectRatio: false,
                plugins: { legend: { display: true }, title: { display: true, text: 'P&L Distribution' } }
            }
        });
    </script>
</body>
</html>
`
