package backtest

import (
	"fmt"
	"sort"
	"strings"
)

// IndicatorConfig is opaque to the core beyond its cache-key: a type tag
// plus a parameter map. ResolutionSeconds, when non-zero, asks C1 to
// evaluate the indicator on a coarser/finer candle grid than the raw
// candle stream (multi-timeframe indicator); zero means "native candle
// resolution".
type IndicatorConfig struct {
	Type              string
	Params            map[string]float64
	Source            string // "close" (default), "open", "high", "low", "typical", "hl2", "ohlc4"
	ResolutionSeconds int64
}

// CacheKey derives a stable, content-derived string used to deduplicate
// configs and to look up signals/raw values. Parameters are sorted by name
// so map iteration order never perturbs the key.
func (c IndicatorConfig) CacheKey() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(c.Type)
	if c.Source != "" && c.Source != string(sourceClose) {
		fmt.Fprintf(&sb, "@%s", c.Source)
	}
	if c.ResolutionSeconds > 0 {
		fmt.Fprintf(&sb, "#%ds", c.ResolutionSeconds)
	}
	if len(keys) > 0 {
		sb.WriteString(":")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "%s=%g", k, c.Params[k])
		}
	}
	return sb.String()
}

// ValueType distinguishes how a ValueConfig's magnitude is interpreted.
type ValueType string

const (
	ValueABS ValueType = "ABS" // absolute USD or absolute price offset
	ValueREL ValueType = "REL" // fraction of reference (capital for sizing; entry price for SL/TP)
	ValueDYN ValueType = "DYN" // value scaled by a normalized (0-100) value-factor indicator
)

// ValueConfig is the single type used for position sizing, stop-loss,
// take-profit, and (by convention — see DESIGN.md) the trailing-stop
// percentage.
type ValueConfig struct {
	Type        ValueType
	Value       float64
	ValueFactor *IndicatorConfig
	Inverted    bool
}

// EntryCondition/ExitCondition: "met" iff every required key is true and
// (optional is empty or at least one optional is true).
type EntryCondition struct {
	Required []IndicatorConfig
	Optional []IndicatorConfig
}

type ExitCondition struct {
	Required   []IndicatorConfig
	Optional   []IndicatorConfig
	StopLoss   *ValueConfig
	TakeProfit *ValueConfig
	TrailingSL bool
}

// AlgoType restricts which directions the strategy is allowed to take.
type AlgoType string

const (
	AlgoLong  AlgoType = "LONG"
	AlgoShort AlgoType = "SHORT"
	AlgoBoth  AlgoType = "BOTH"
)

// TimeoutMode governs how a POST_TRADE timeout resolves.
type TimeoutMode string

const (
	TimeoutCooldownOnly TimeoutMode = "COOLDOWN_ONLY"
	TimeoutRegular      TimeoutMode = "REGULAR"
	TimeoutStrict       TimeoutMode = "STRICT"
)

type TimeoutConfig struct {
	Mode         TimeoutMode
	CooldownBars int
}

// OrderType is carried through for port-shape completeness; the simulated
// executor only ever fills MARKET orders.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderTWAP   OrderType = "TWAP"
	OrderSmart  OrderType = "SMART"
)

// AlgoParams is the read-only strategy definition the core simulates.
type AlgoParams struct {
	Type       AlgoType
	LongEntry  *EntryCondition
	LongExit   *ExitCondition
	ShortEntry *EntryCondition
	ShortExit  *ExitCondition

	PositionSize ValueConfig
	OrderType    OrderType

	StartingCapitalUSD float64
	CoinSymbol         string

	Timeout TimeoutConfig

	// AssumePositionImmediately changes entry/exit triggering from edge
	// detection to level detection.
	AssumePositionImmediately bool
}

// RunSettings bounds a single simulation run.
type RunSettings struct {
	StartTime           int64
	EndTime             int64 // 0 means "no end"
	TradesLimit         int   // 0 means "unlimited"
	ClosePositionOnExit bool
	CapitalScaler       float64
}

// BacktestInput is the top-level configuration surface.
type BacktestInput struct {
	Algo        AlgoParams
	Run         RunSettings
	FeeBps      float64
	SlippageBps float64
}

// DefaultBacktestInput fills in the documented defaults (feeBps=10,
// slippageBps=5, capitalScaler=1).
func DefaultBacktestInput() BacktestInput {
	return BacktestInput{
		FeeBps:      10,
		SlippageBps: 5,
		Run: RunSettings{
			CapitalScaler: 1,
		},
	}
}

// Validate performs schema-level checks against the InvalidConfig
// taxonomy, accumulating every failure rather than stopping at the first.
func (b BacktestInput) Validate() error {
	var errs ConfigErrors

	if b.Algo.StartingCapitalUSD <= 0 {
		errs = append(errs, &ConfigError{Field: "algo.startingCapitalUSD", Message: "must be positive"})
	}
	if b.Algo.CoinSymbol == "" {
		errs = append(errs, &ConfigError{Field: "algo.coinSymbol", Message: "required"})
	}
	switch b.Algo.Type {
	case AlgoLong, AlgoShort, AlgoBoth:
	default:
		errs = append(errs, &ConfigError{Field: "algo.type", Message: "must be LONG, SHORT, or BOTH"})
	}

	needLong := b.Algo.Type == AlgoLong || b.Algo.Type == AlgoBoth
	needShort := b.Algo.Type == AlgoShort || b.Algo.Type == AlgoBoth

	if needLong && (b.Algo.LongEntry == nil || b.Algo.LongExit == nil) {
		errs = append(errs, &ConfigError{Field: "algo.longEntry/longExit", Message: "required when type is LONG or BOTH"})
	}
	if needShort && (b.Algo.ShortEntry == nil || b.Algo.ShortExit == nil) {
		errs = append(errs, &ConfigError{Field: "algo.shortEntry/shortExit", Message: "required when type is SHORT or BOTH"})
	}

	switch b.Algo.Timeout.Mode {
	case TimeoutCooldownOnly, TimeoutRegular, TimeoutStrict:
	default:
		errs = append(errs, &ConfigError{Field: "algo.timeout.mode", Message: "must be COOLDOWN_ONLY, REGULAR, or STRICT"})
	}
	if b.Algo.Timeout.CooldownBars < 0 {
		errs = append(errs, &ConfigError{Field: "algo.timeout.cooldownBars", Message: "must be >= 0"})
	}

	if b.Run.CapitalScaler <= 0 {
		errs = append(errs, &ConfigError{Field: "run.capitalScaler", Message: "must be positive"})
	}
	if b.Run.TradesLimit < 0 {
		errs = append(errs, &ConfigError{Field: "run.tradesLimit", Message: "must be >= 0"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
