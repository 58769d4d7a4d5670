package indicators

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

func TestNewFactory(t *testing.T) {
	f := NewFactory(zerolog.Nop())
	assert.NotNil(t, f)
}

func TestFactoryCreateKnownTypes(t *testing.T) {
	f := NewFactory(zerolog.Nop())

	cases := []struct {
		name string
		cfg  backtest.IndicatorConfig
	}{
		{"rsi", backtest.IndicatorConfig{Type: TypeRSI, Source: "close"}},
		{"ema", backtest.IndicatorConfig{Type: TypeEMA, Source: "close"}},
		{"macd", backtest.IndicatorConfig{Type: TypeMACD, Source: "close"}},
		{"bb_upper", backtest.IndicatorConfig{Type: TypeBBUpper, Source: "close"}},
		{"bb_middle", backtest.IndicatorConfig{Type: TypeBBMiddle, Source: "close"}},
		{"bb_lower", backtest.IndicatorConfig{Type: TypeBBLower, Source: "close"}},
		{"percent_b", backtest.IndicatorConfig{Type: TypePercentB, Source: "close"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ind, err := f.Create(tc.cfg)
			require.NoError(t, err)
			require.NotNil(t, ind)
			assert.Equal(t, tc.cfg.CacheKey(), ind.CacheKey())
		})
	}
}

func TestFactoryCreateUnknownType(t *testing.T) {
	f := NewFactory(zerolog.Nop())
	_, err := f.Create(backtest.IndicatorConfig{Type: "NOT_A_REAL_INDICATOR"})
	assert.Error(t, err)
}

func TestFactoryCreateUsesCacheKeyForDedup(t *testing.T) {
	f := NewFactory(zerolog.Nop())
	cfg := backtest.IndicatorConfig{Type: TypeRSI, Source: "close", Params: map[string]float64{"period": 14}}

	a, err := f.Create(cfg)
	require.NoError(t, err)
	b, err := f.Create(cfg)
	require.NoError(t, err)

	assert.Equal(t, a.CacheKey(), b.CacheKey())
}
