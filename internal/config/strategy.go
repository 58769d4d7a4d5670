package config

import (
	"fmt"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

// StrategyConfig is the YAML-decodable shape of an AlgoParams/RunSettings
// pair. It mirrors pkg/backtest's types field-for-field (mapstructure tags
// instead of Go literals) so viper can decode a strategy file directly,
// then ToBacktestInput converts it into the engine's native types.
type StrategyConfig struct {
	Type                      string  `mapstructure:"type"` // LONG, SHORT, BOTH
	CoinSymbol                string  `mapstructure:"coin_symbol"`
	StartingCapitalUSD        float64 `mapstructure:"starting_capital_usd"`
	OrderType                 string  `mapstructure:"order_type"`
	FeeBps                    float64 `mapstructure:"fee_bps"`
	SlippageBps               float64 `mapstructure:"slippage_bps"`
	AssumePositionImmediately bool    `mapstructure:"assume_position_immediately"`

	PositionSize ValueConfigDTO `mapstructure:"position_size"`
	Timeout      TimeoutDTO     `mapstructure:"timeout"`

	LongEntry  *EntryConditionDTO `mapstructure:"long_entry"`
	LongExit   *ExitConditionDTO  `mapstructure:"long_exit"`
	ShortEntry *EntryConditionDTO `mapstructure:"short_entry"`
	ShortExit  *ExitConditionDTO  `mapstructure:"short_exit"`

	Run RunSettingsDTO `mapstructure:"run"`
}

type IndicatorConfigDTO struct {
	Type              string             `mapstructure:"type"`
	Params            map[string]float64 `mapstructure:"params"`
	Source            string             `mapstructure:"source"`
	ResolutionSeconds int64              `mapstructure:"resolution_seconds"`
}

type ValueConfigDTO struct {
	Type        string              `mapstructure:"type"` // ABS, REL, DYN
	Value       float64             `mapstructure:"value"`
	ValueFactor *IndicatorConfigDTO `mapstructure:"value_factor"`
	Inverted    bool                `mapstructure:"inverted"`
}

type EntryConditionDTO struct {
	Required []IndicatorConfigDTO `mapstructure:"required"`
	Optional []IndicatorConfigDTO `mapstructure:"optional"`
}

type ExitConditionDTO struct {
	Required   []IndicatorConfigDTO `mapstructure:"required"`
	Optional   []IndicatorConfigDTO `mapstructure:"optional"`
	StopLoss   *ValueConfigDTO      `mapstructure:"stop_loss"`
	TakeProfit *ValueConfigDTO      `mapstructure:"take_profit"`
	TrailingSL bool                 `mapstructure:"trailing_sl"`
}

type TimeoutDTO struct {
	Mode         string `mapstructure:"mode"`
	CooldownBars int    `mapstructure:"cooldown_bars"`
}

type RunSettingsDTO struct {
	StartTime           int64   `mapstructure:"start_time"`
	EndTime             int64   `mapstructure:"end_time"`
	TradesLimit         int     `mapstructure:"trades_limit"`
	ClosePositionOnExit bool    `mapstructure:"close_position_on_exit"`
	CapitalScaler       float64 `mapstructure:"capital_scaler"`
}

func (d IndicatorConfigDTO) toNative() backtest.IndicatorConfig {
	return backtest.IndicatorConfig{
		Type:              d.Type,
		Params:            d.Params,
		Source:            d.Source,
		ResolutionSeconds: d.ResolutionSeconds,
	}
}

func indicatorsToNative(ds []IndicatorConfigDTO) []backtest.IndicatorConfig {
	if ds == nil {
		return nil
	}
	out := make([]backtest.IndicatorConfig, len(ds))
	for i, d := range ds {
		out[i] = d.toNative()
	}
	return out
}

func (d *ValueConfigDTO) toNative() backtest.ValueConfig {
	if d == nil {
		return backtest.ValueConfig{}
	}
	vc := backtest.ValueConfig{
		Type:     backtest.ValueType(d.Type),
		Value:    d.Value,
		Inverted: d.Inverted,
	}
	if d.ValueFactor != nil {
		ind := d.ValueFactor.toNative()
		vc.ValueFactor = &ind
	}
	return vc
}

func (d *EntryConditionDTO) toNative() *backtest.EntryCondition {
	if d == nil {
		return nil
	}
	return &backtest.EntryCondition{
		Required: indicatorsToNative(d.Required),
		Optional: indicatorsToNative(d.Optional),
	}
}

func (d *ExitConditionDTO) toNative() *backtest.ExitCondition {
	if d == nil {
		return nil
	}
	ec := &backtest.ExitCondition{
		Required:   indicatorsToNative(d.Required),
		Optional:   indicatorsToNative(d.Optional),
		TrailingSL: d.TrailingSL,
	}
	if d.StopLoss != nil {
		sl := d.StopLoss.toNative()
		ec.StopLoss = &sl
	}
	if d.TakeProfit != nil {
		tp := d.TakeProfit.toNative()
		ec.TakeProfit = &tp
	}
	return ec
}

// ToBacktestInput converts the decoded strategy file into the engine's
// native BacktestInput, layering onto DefaultBacktestInput's fee/slippage
// defaults wherever the file left them at zero.
func (s StrategyConfig) ToBacktestInput() (backtest.BacktestInput, error) {
	in := backtest.DefaultBacktestInput()

	if s.FeeBps != 0 {
		in.FeeBps = s.FeeBps
	}
	if s.SlippageBps != 0 {
		in.SlippageBps = s.SlippageBps
	}

	in.Algo = backtest.AlgoParams{
		Type:                      backtest.AlgoType(s.Type),
		LongEntry:                 s.LongEntry.toNative(),
		LongExit:                  s.LongExit.toNative(),
		ShortEntry:                s.ShortEntry.toNative(),
		ShortExit:                 s.ShortExit.toNative(),
		PositionSize:              s.PositionSize.toNative(),
		OrderType:                 backtest.OrderType(s.OrderType),
		StartingCapitalUSD:        s.StartingCapitalUSD,
		CoinSymbol:                s.CoinSymbol,
		AssumePositionImmediately: s.AssumePositionImmediately,
		Timeout: backtest.TimeoutConfig{
			Mode:         backtest.TimeoutMode(s.Timeout.Mode),
			CooldownBars: s.Timeout.CooldownBars,
		},
	}

	in.Run = backtest.RunSettings{
		StartTime:           s.Run.StartTime,
		EndTime:             s.Run.EndTime,
		TradesLimit:         s.Run.TradesLimit,
		ClosePositionOnExit: s.Run.ClosePositionOnExit,
		CapitalScaler:       s.Run.CapitalScaler,
	}
	if in.Run.CapitalScaler == 0 {
		in.Run.CapitalScaler = 1
	}

	if err := in.Validate(); err != nil {
		return backtest.BacktestInput{}, fmt.Errorf("strategy config: %w", err)
	}
	return in, nil
}
