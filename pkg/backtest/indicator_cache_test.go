package backtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndicator signals true whenever the projected value exceeds
// threshold, after a fixed warmup.
type fakeIndicator struct {
	key        string
	warmup     int
	normalized bool
	threshold  float64
}

func (f *fakeIndicator) CacheKey() string  { return f.key }
func (f *fakeIndicator) Warmup() int       { return f.warmup }
func (f *fakeIndicator) Normalized() bool  { return f.normalized }
func (f *fakeIndicator) Evaluate(points []float64) []Point {
	out := make([]Point, len(points))
	for i, v := range points {
		out[i] = Point{Value: v, Signal: v > f.threshold}
	}
	return out
}

type fakeFactory struct {
	byType map[string]Indicator
}

func (f *fakeFactory) Create(cfg IndicatorConfig) (Indicator, error) {
	ind, ok := f.byType[cfg.Type]
	if !ok {
		return nil, errors.New("unknown indicator type " + cfg.Type)
	}
	return ind, nil
}

func testCandles() []Candle {
	return []Candle{
		{Bucket: 0, Open: 1, High: 2, Low: 1, Close: 1},
		{Bucket: 60, Open: 1, High: 3, Low: 1, Close: 2},
		{Bucket: 120, Open: 2, High: 5, Low: 2, Close: 4},
		{Bucket: 180, Open: 4, High: 6, Low: 3, Close: 5},
	}
}

func TestCollectConfigsDedupsByCacheKey(t *testing.T) {
	rsi := IndicatorConfig{Type: "RSI", Params: map[string]float64{"period": 14}}
	ema := IndicatorConfig{Type: "EMA", Params: map[string]float64{"period": 20}}

	p := AlgoParams{
		LongEntry: &EntryCondition{Required: []IndicatorConfig{rsi}},
		LongExit: &ExitCondition{
			Required:   []IndicatorConfig{rsi, ema},
			StopLoss:   &ValueConfig{Type: ValueDYN, Value: 0.1, ValueFactor: &rsi},
			TakeProfit: &ValueConfig{Type: ValueABS, Value: 100},
		},
		PositionSize: ValueConfig{Type: ValueDYN, Value: 0.5, ValueFactor: &ema},
	}

	configs := CollectConfigs(p)
	assert.Len(t, configs, 2)
}

func TestPrecalculateFillsSignalsAfterWarmup(t *testing.T) {
	factory := &fakeFactory{byType: map[string]Indicator{
		"ABOVE2": &fakeIndicator{key: "ABOVE2", warmup: 1, threshold: 2},
	}}
	cfg := IndicatorConfig{Type: "ABOVE2"}

	precalc, err := Precalculate(testCandles(), []IndicatorConfig{cfg}, factory)
	require.NoError(t, err)

	key := cfg.CacheKey()
	signals, ok := precalc.Signals[key]
	require.True(t, ok)
	assert.Equal(t, []bool{false, false, true, true}, signals)
	assert.Equal(t, 1, precalc.WarmupCandles)
}

func TestPrecalculateUnknownIndicatorAllFalse(t *testing.T) {
	factory := &fakeFactory{byType: map[string]Indicator{}}
	cfg := IndicatorConfig{Type: "MISSING"}

	precalc, err := Precalculate(testCandles(), []IndicatorConfig{cfg}, factory)
	require.NoError(t, err)

	signals := precalc.Signals[cfg.CacheKey()]
	assert.Equal(t, []bool{false, false, false, false}, signals)
}

func TestPrecalculateSkipsDuplicateCacheKeys(t *testing.T) {
	calls := 0
	ind := &countingIndicator{fakeIndicator: fakeIndicator{key: "X", warmup: 0, threshold: -1}, calls: &calls}
	factory := &fakeFactory{byType: map[string]Indicator{"X": ind}}
	cfg := IndicatorConfig{Type: "X"}

	_, err := Precalculate(testCandles(), []IndicatorConfig{cfg, cfg}, factory)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

type countingIndicator struct {
	fakeIndicator
	calls *int
}

func (c *countingIndicator) Evaluate(points []float64) []Point {
	*c.calls++
	return c.fakeIndicator.Evaluate(points)
}

func TestPrecalcLookupStaleForUnknownKey(t *testing.T) {
	precalc := &IndicatorPrecalc{Signals: SignalCache{"k": {true, false}}}

	v, stale := precalc.Lookup("k", 0)
	assert.True(t, v)
	assert.False(t, stale)

	_, stale = precalc.Lookup("missing", 0)
	assert.True(t, stale)

	_, stale = precalc.Lookup("k", 5)
	assert.True(t, stale)
}

func TestClamp01to100(t *testing.T) {
	assert.Equal(t, 0.0, clamp01to100(-10))
	assert.Equal(t, 100.0, clamp01to100(150))
	assert.Equal(t, 42.0, clamp01to100(42))
}
