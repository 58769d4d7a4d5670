package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

func validStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Type:               "LONG",
		CoinSymbol:         "BTC",
		StartingCapitalUSD: 10000,
		OrderType:          "MARKET",
		FeeBps:             10,
		SlippageBps:        5,
		PositionSize:       ValueConfigDTO{Type: "REL", Value: 0.5},
		Timeout:            TimeoutDTO{Mode: "REGULAR", CooldownBars: 3},
		LongEntry: &EntryConditionDTO{
			Required: []IndicatorConfigDTO{{Type: "RSI", Params: map[string]float64{"period": 14}}},
		},
		LongExit: &ExitConditionDTO{
			Required:   []IndicatorConfigDTO{{Type: "EMA", Params: map[string]float64{"period": 20}}},
			StopLoss:   &ValueConfigDTO{Type: "REL", Value: 0.02},
			TakeProfit: &ValueConfigDTO{Type: "REL", Value: 0.05},
		},
		Run: RunSettingsDTO{CapitalScaler: 1},
	}
}

func TestToBacktestInputValid(t *testing.T) {
	sc := validStrategyConfig()
	in, err := sc.ToBacktestInput()
	require.NoError(t, err)

	assert.Equal(t, backtest.AlgoLong, in.Algo.Type)
	assert.Equal(t, "BTC", in.Algo.CoinSymbol)
	assert.Equal(t, 10000.0, in.Algo.StartingCapitalUSD)
	assert.Equal(t, backtest.ValueREL, in.Algo.PositionSize.Type)
	assert.NotNil(t, in.Algo.LongEntry)
	assert.NotNil(t, in.Algo.LongExit)
	assert.NotNil(t, in.Algo.LongExit.StopLoss)
	assert.Equal(t, 1, len(in.Algo.LongEntry.Required))
	assert.Equal(t, "RSI", in.Algo.LongEntry.Required[0].Type)
}

func TestToBacktestInputDefaultsCapitalScaler(t *testing.T) {
	sc := validStrategyConfig()
	sc.Run.CapitalScaler = 0
	in, err := sc.ToBacktestInput()
	require.NoError(t, err)
	assert.Equal(t, 1.0, in.Run.CapitalScaler)
}

func TestToBacktestInputPropagatesValidationFailure(t *testing.T) {
	sc := validStrategyConfig()
	sc.CoinSymbol = ""
	_, err := sc.ToBacktestInput()
	assert.Error(t, err)
}

func TestToBacktestInputNilConditionsStayNil(t *testing.T) {
	sc := validStrategyConfig()
	sc.ShortEntry = nil
	sc.ShortExit = nil
	in, err := sc.ToBacktestInput()
	require.NoError(t, err)
	assert.Nil(t, in.Algo.ShortEntry)
	assert.Nil(t, in.Algo.ShortExit)
}

func TestToBacktestInputTrailingSLAndValueFactor(t *testing.T) {
	sc := validStrategyConfig()
	sc.LongExit.TrailingSL = true
	sc.LongExit.StopLoss.Type = "DYN"
	sc.LongExit.StopLoss.ValueFactor = &IndicatorConfigDTO{Type: "RSI", Params: map[string]float64{"period": 14}}

	in, err := sc.ToBacktestInput()
	require.NoError(t, err)
	assert.True(t, in.Algo.LongExit.TrailingSL)
	require.NotNil(t, in.Algo.LongExit.StopLoss.ValueFactor)
	assert.Equal(t, "RSI", in.Algo.LongExit.StopLoss.ValueFactor.Type)
}
