package backtest

import (
	"errors"
	"fmt"
)

// Structural errors abort a run. Local errors are absorbed where raised and
// only ever surface through logging or the event log.
var (
	// ErrInvalidConfig wraps schema-level AlgoParams/BacktestInput failures.
	ErrInvalidConfig = errors.New("backtest: invalid config")

	// ErrInvalidCandleData wraps OHLC/ordering/finiteness violations in the candle stream.
	ErrInvalidCandleData = errors.New("backtest: invalid candle data")

	// ErrIllegalTransition marks a forbidden state-machine transition. A bug, not a config error.
	ErrIllegalTransition = errors.New("backtest: illegal state transition")

	// ErrUnsupportedValueFactor marks a DYN ValueConfig whose indicator is not Normalized.
	ErrUnsupportedValueFactor = errors.New("backtest: value factor indicator is not normalized")
)

// ConfigError is a single schema-level failure, field-addressed like the
// teacher's config.ValidationError.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ConfigErrors accumulates every ConfigError found during Validate, rather
// than failing on the first one.
type ConfigErrors []*ConfigError

func (ce ConfigErrors) Error() string {
	if len(ce) == 0 {
		return ""
	}
	msg := fmt.Sprintf("invalid config: %d error(s)", len(ce))
	for _, e := range ce {
		msg += "\n  - " + e.Error()
	}
	return msg
}

func (ce ConfigErrors) Unwrap() error { return ErrInvalidConfig }

// CandleDataError names the offending candle and why it was rejected.
type CandleDataError struct {
	Index  int
	Bucket int64
	Reason string
}

func (e *CandleDataError) Error() string {
	return fmt.Sprintf("candle[%d] (bucket=%d): %s", e.Index, e.Bucket, e.Reason)
}

func (e *CandleDataError) Unwrap() error { return ErrInvalidCandleData }

// TransitionError names the forbidden (from, to) pair attempted.
type TransitionError struct {
	From PositionState
	To   PositionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }
