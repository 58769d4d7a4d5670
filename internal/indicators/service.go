// Package indicators implements backtest.IndicatorFactory over
// github.com/cinar/indicator/v2's channel-based technical indicators.
package indicators

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

// Factory is the concrete backtest.IndicatorFactory: it maps an
// IndicatorConfig.Type onto one of the wrapped cinar/indicator/v2
// computations below.
type Factory struct {
	log zerolog.Logger
}

// NewFactory creates an indicator factory.
func NewFactory(logger zerolog.Logger) *Factory {
	return &Factory{log: logger.With().Str("component", "indicators").Logger()}
}

// Supported indicator type tags.
const (
	TypeRSI       = "RSI"
	TypeEMA       = "EMA"
	TypeMACD      = "MACD"
	TypeBBUpper   = "BB_UPPER"
	TypeBBMiddle  = "BB_MIDDLE"
	TypeBBLower   = "BB_LOWER"
	TypePercentB  = "PERCENT_B"
)

// Create builds the Indicator named by cfg.Type, keyed by cfg.CacheKey()
// so the engine's precalculation cache can dedupe identical configs.
func (f *Factory) Create(cfg backtest.IndicatorConfig) (backtest.Indicator, error) {
	key := cfg.CacheKey()
	switch cfg.Type {
	case TypeRSI:
		return newRSI(key, cfg.Params), nil
	case TypeEMA:
		return newEMA(key, cfg.Params), nil
	case TypeMACD:
		return newMACD(key, cfg.Params), nil
	case TypeBBUpper:
		return newBollinger(key, bandUpper, cfg.Params), nil
	case TypeBBMiddle:
		return newBollinger(key, bandMiddle, cfg.Params), nil
	case TypeBBLower:
		return newBollinger(key, bandLower, cfg.Params), nil
	case TypePercentB:
		return newPercentB(key, cfg.Params), nil
	default:
		return nil, fmt.Errorf("indicators: unknown indicator type %q", cfg.Type)
	}
}
