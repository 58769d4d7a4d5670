package backtest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alwaysTrue/alwaysFalse give the engine tests deterministic entry/exit
// signals without depending on internal/indicators.
func alwaysTrueIndicator(key string) Indicator {
	return &fakeIndicator{key: key, warmup: 0, threshold: -1e9}
}

func alwaysFalseIndicator(key string) Indicator {
	return &fakeIndicator{key: key, warmup: 0, threshold: 1e9}
}

func crashCandles() []Candle {
	return []Candle{
		{Bucket: 0, Open: 100, High: 100, Low: 100, Close: 100},
		{Bucket: 60, Open: 100, High: 105, Low: 100, Close: 105},
		{Bucket: 120, Open: 105, High: 105, Low: 50, Close: 50},
		{Bucket: 180, Open: 50, High: 55, Low: 45, Close: 52},
	}
}

func longOnlyTightStopAlgo() AlgoParams {
	return AlgoParams{
		Type:               AlgoLong,
		StartingCapitalUSD: 10000,
		CoinSymbol:         "BTC",
		OrderType:          OrderMarket,
		LongEntry:          &EntryCondition{Required: []IndicatorConfig{{Type: "ENTRY"}}},
		LongExit: &ExitCondition{
			Required: []IndicatorConfig{{Type: "EXIT"}},
			StopLoss: &ValueConfig{Type: ValueABS, Value: 1},
		},
		PositionSize: ValueConfig{Type: ValueREL, Value: 0.5},
		Timeout:      TimeoutConfig{Mode: TimeoutRegular, CooldownBars: 0},
	}
}

func buildTestEngine(t *testing.T, algo AlgoParams, candles []Candle) *Engine {
	t.Helper()
	factory := &fakeFactory{byType: map[string]Indicator{
		"ENTRY": alwaysTrueIndicator("ENTRY"),
		"EXIT":  alwaysFalseIndicator("EXIT"),
	}}
	input := DefaultBacktestInput()
	input.Algo = algo
	engine, err := NewEngine(input, candles, 60, factory, zerolog.Nop())
	require.NoError(t, err)
	return engine
}

func TestEngineRunStopLossClosesPositionOnCrash(t *testing.T) {
	engine := buildTestEngine(t, longOnlyTightStopAlgo(), crashCandles())

	out, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, out.BarsRun)
	require.Len(t, out.Trades, 1)
	assert.Equal(t, StateLong, out.Trades[0].Direction)
	assert.Equal(t, StateTimeout, out.FinalState)
	assert.Less(t, out.Trades[0].PnLUSD, 0.0)

	var sawSLHit bool
	for _, e := range out.AlgoEvents {
		if e.Type == EventSLHit {
			sawSLHit = true
		}
	}
	assert.True(t, sawSLHit)
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	factory := &fakeFactory{byType: map[string]Indicator{}}
	_, err := NewEngine(BacktestInput{}, crashCandles(), 60, factory, zerolog.Nop())
	assert.Error(t, err)
}

func TestEngineRejectsInvalidCandleData(t *testing.T) {
	algo := longOnlyTightStopAlgo()
	factory := &fakeFactory{byType: map[string]Indicator{
		"ENTRY": alwaysTrueIndicator("ENTRY"),
		"EXIT":  alwaysFalseIndicator("EXIT"),
	}}
	input := DefaultBacktestInput()
	input.Algo = algo
	badCandles := []Candle{{Bucket: 0, Open: 10, High: 5, Low: 1, Close: 10}}
	_, err := NewEngine(input, badCandles, 60, factory, zerolog.Nop())
	assert.Error(t, err)
}

func TestEngineRejectsUnsupportedValueFactor(t *testing.T) {
	algo := longOnlyTightStopAlgo()
	rsi := IndicatorConfig{Type: "EXIT"} // EXIT indicator is not Normalized
	algo.PositionSize = ValueConfig{Type: ValueDYN, Value: 0.5, ValueFactor: &rsi}

	factory := &fakeFactory{byType: map[string]Indicator{
		"ENTRY": alwaysTrueIndicator("ENTRY"),
		"EXIT":  alwaysFalseIndicator("EXIT"),
	}}
	input := DefaultBacktestInput()
	input.Algo = algo
	_, err := NewEngine(input, crashCandles(), 60, factory, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupportedValueFactor)
}

func TestEngineResetAllowsRerun(t *testing.T) {
	engine := buildTestEngine(t, longOnlyTightStopAlgo(), crashCandles())

	first, err := engine.Run(context.Background())
	require.NoError(t, err)

	engine.Reset()
	second, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.FinalState, second.FinalState)
	assert.Equal(t, len(first.Trades), len(second.Trades))
	assert.InDelta(t, first.FinalBalance, second.FinalBalance, 1e-9)
}

func TestEngineRespectsTradesLimit(t *testing.T) {
	// The stop-loss exit on bar 2 returns to CASH at once (COOLDOWN_ONLY, 0
	// bars) and the level-triggered entry is still met on bar 3, so without
	// the limit a second trade would open there and be closed at the end.
	algo := longOnlyTightStopAlgo()
	algo.AssumePositionImmediately = true
	algo.Timeout = TimeoutConfig{Mode: TimeoutCooldownOnly, CooldownBars: 0}
	input := DefaultBacktestInput()
	input.Algo = algo
	input.Run.ClosePositionOnExit = true
	input.Run.TradesLimit = 1

	factory := &fakeFactory{byType: map[string]Indicator{
		"ENTRY": alwaysTrueIndicator("ENTRY"),
		"EXIT":  alwaysFalseIndicator("EXIT"),
	}}
	engine, err := NewEngine(input, crashCandles(), 60, factory, zerolog.Nop())
	require.NoError(t, err)

	out, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Trades, 1)
}
