package backtest

// SpecialIndicatorKind names a protective-order family tracked per open
// position.
type SpecialIndicatorKind string

const (
	KindStopLoss     SpecialIndicatorKind = "STOP_LOSS"
	KindTakeProfit   SpecialIndicatorKind = "TAKE_PROFIT"
	KindTrailingStop SpecialIndicatorKind = "TRAILING_STOP"
)

// SpecialIndicator computes a protective-order trigger level, per
// the dynamic SL/TP level computation.
type SpecialIndicator interface {
	Kind() SpecialIndicatorKind
	// Level returns the current trigger price for this direction.
	Level() float64
	// Observe updates any path-dependent state (trailing stop's
	// peak/trough, DYN level's value-factor clock); called once per
	// sub-bar price and timestamp.
	Observe(price float64, t int64)
}

// levelIndicator implements the static (non-trailing) SL/TP computation:
// ABS, REL, and DYN.
type levelIndicator struct {
	kind        SpecialIndicatorKind
	direction   PositionState // StateLong or StateShort
	entryPrice  float64
	cfg         ValueConfig
	factorAt    func(t int64) (float64, bool)
	entryTime   int64
	currentTime int64
}

// NewStopLoss/NewTakeProfit construct the static protective levels. factorAt
// resolves a DYN ValueConfig's normalized value-factor at a timestamp; pass
// nil if the config never uses DYN.
func NewStopLoss(direction PositionState, entryPrice float64, entryTime int64, cfg ValueConfig, factorAt func(int64) (float64, bool)) SpecialIndicator {
	return &levelIndicator{kind: KindStopLoss, direction: direction, entryPrice: entryPrice, entryTime: entryTime, currentTime: entryTime, cfg: cfg, factorAt: factorAt}
}

func NewTakeProfit(direction PositionState, entryPrice float64, entryTime int64, cfg ValueConfig, factorAt func(int64) (float64, bool)) SpecialIndicator {
	return &levelIndicator{kind: KindTakeProfit, direction: direction, entryPrice: entryPrice, entryTime: entryTime, currentTime: entryTime, cfg: cfg, factorAt: factorAt}
}

func (l *levelIndicator) Kind() SpecialIndicatorKind { return l.kind }

// Observe advances the clock the DYN value-factor is evaluated at; ABS/REL
// levels ignore it.
func (l *levelIndicator) Observe(_ float64, t int64) { l.currentTime = t }

// sign returns the direction multiplier for the kind: stop loss moves
// against the position, take profit moves with it.
func (l *levelIndicator) sign() float64 {
	adverse := l.kind == KindStopLoss
	long := l.direction == StateLong
	switch {
	case long && adverse:
		return -1
	case long && !adverse:
		return 1
	case !long && adverse:
		return 1
	default: // short, take profit
		return -1
	}
}

func (l *levelIndicator) Level() float64 {
	sign := l.sign()
	switch l.cfg.Type {
	case ValueABS:
		return l.entryPrice + sign*l.cfg.Value
	case ValueREL:
		return l.entryPrice * (1 + sign*l.cfg.Value)
	case ValueDYN:
		if l.factorAt == nil {
			return l.entryPrice * (1 + sign*l.cfg.Value)
		}
		factor, ok := l.factorAt(l.currentTime)
		if !ok {
			// Undefined factor falls back to REL with value.
			return l.entryPrice * (1 + sign*l.cfg.Value)
		}
		factor = clamp01to100(factor)
		if l.cfg.Inverted {
			factor = 100 - factor
		}
		return l.entryPrice * (1 + sign*l.cfg.Value*factor/100)
	default:
		return l.entryPrice
	}
}

// trailingStop recomputes its level each sub-bar as peak*(1-trailPct) for
// LONG (trough*(1+trailPct) for SHORT), never moving adverse to the
// position.
type trailingStop struct {
	direction PositionState
	trailPct  float64
	extreme   float64 // running peak (LONG) or trough (SHORT)
	level     float64
	hasLevel  bool
}

// NewTrailingStop seeds the trailing stop at entry; trailPct is read from
// the paired StopLoss ValueConfig's Value, per DESIGN.md's convention for
// representing ExitCondition.TrailingSL's magnitude.
func NewTrailingStop(direction PositionState, entryPrice, trailPct float64) SpecialIndicator {
	t := &trailingStop{direction: direction, trailPct: trailPct, extreme: entryPrice}
	t.recompute()
	return t
}

func (t *trailingStop) Kind() SpecialIndicatorKind { return KindTrailingStop }

func (t *trailingStop) Observe(price float64, _ int64) {
	if t.direction == StateLong {
		if price > t.extreme {
			t.extreme = price
		}
	} else if price < t.extreme {
		t.extreme = price
	}
	t.recompute()
}

func (t *trailingStop) recompute() {
	var newLevel float64
	if t.direction == StateLong {
		newLevel = t.extreme * (1 - t.trailPct)
	} else {
		newLevel = t.extreme * (1 + t.trailPct)
	}

	if !t.hasLevel {
		t.level = newLevel
		t.hasLevel = true
		return
	}

	// Never move adverse: for LONG the level only ratchets up, for SHORT
	// only down.
	if t.direction == StateLong {
		if newLevel > t.level {
			t.level = newLevel
		}
	} else {
		if newLevel < t.level {
			t.level = newLevel
		}
	}
}

func (t *trailingStop) Level() float64 { return t.level }
