package backtest

// ConditionType names one of the four entry/exit conditions a strategy
// defines.
type ConditionType string

const (
	ConditionLongEntry  ConditionType = "LONG_ENTRY"
	ConditionLongExit   ConditionType = "LONG_EXIT"
	ConditionShortEntry ConditionType = "SHORT_ENTRY"
	ConditionShortExit  ConditionType = "SHORT_EXIT"
)

// ConditionSnapshot is C7's per-bar, per-condition view.
type ConditionSnapshot struct {
	RequiredTrue        int
	RequiredTotal       int
	OptionalTrue        int
	OptionalTotal       int
	ConditionMet        bool
	DistanceFromTrigger int
}

// IndicatorFeed is the port C4/C5/C7 read condition state through.
// setCurrentBar snapshots the previous bar's condition states before
// advancing, so edge detection always compares against the feed's own
// prior bar rather than whenever a condition was last recomputed.
type IndicatorFeed interface {
	SetCurrentBar(barIndex int, ts int64)
	GetCurrentSignals() map[string]bool
	GetSignal(key string) (bool, bool)
	GetRawValue(key string) (float64, bool)
	EvaluateCondition(t ConditionType) bool
	GetConditionSnapshot(t ConditionType) ConditionSnapshot
	GetIndicatorsForCondition(t ConditionType) []IndicatorConfig
	GetPreviousConditionMet(t ConditionType) bool
	GetTotalBars() int
}

// conditionSpec pairs a ConditionType with the EntryCondition/ExitCondition
// it was registered from.
type conditionSpec struct {
	required []IndicatorConfig
	optional []IndicatorConfig
}

// InMemoryFeed is the backtest's only IndicatorFeed implementation: it
// reads directly from a precomputed ResampleResult, no I/O.
type InMemoryFeed struct {
	precalc    *IndicatorPrecalc
	resampled  *ResampleResult
	conditions map[ConditionType]conditionSpec

	barIndex int
	prevMet  map[ConditionType]bool
	currMet  map[ConditionType]bool
}

// NewInMemoryFeed builds a feed over C1's caches and C2's resampled grid.
func NewInMemoryFeed(precalc *IndicatorPrecalc, resampled *ResampleResult) *InMemoryFeed {
	return &InMemoryFeed{
		precalc:    precalc,
		resampled:  resampled,
		conditions: make(map[ConditionType]conditionSpec),
		prevMet:    make(map[ConditionType]bool),
		currMet:    make(map[ConditionType]bool),
	}
}

// RegisterCondition wires a condition's required/optional indicator list;
// called once per condition before the run starts.
func (f *InMemoryFeed) RegisterCondition(t ConditionType, required, optional []IndicatorConfig) {
	f.conditions[t] = conditionSpec{required: required, optional: optional}
}

// Reset restores the feed to bar -1 with no recorded condition history.
func (f *InMemoryFeed) Reset() {
	f.barIndex = -1
	f.prevMet = make(map[ConditionType]bool)
	f.currMet = make(map[ConditionType]bool)
}

func (f *InMemoryFeed) SetCurrentBar(barIndex int, ts int64) {
	for t := range f.conditions {
		f.prevMet[t] = f.currMet[t]
	}
	f.barIndex = barIndex
	for t := range f.conditions {
		f.currMet[t] = f.EvaluateCondition(t)
	}
}

func (f *InMemoryFeed) GetCurrentSignals() map[string]bool {
	out := make(map[string]bool, len(f.resampled.Signals))
	for k, arr := range f.resampled.Signals {
		if f.barIndex >= 0 && f.barIndex < len(arr) {
			out[k] = arr[f.barIndex]
		}
	}
	return out
}

func (f *InMemoryFeed) GetSignal(key string) (bool, bool) {
	arr, ok := f.resampled.Signals[key]
	if !ok || f.barIndex < 0 || f.barIndex >= len(arr) {
		return false, true
	}
	return arr[f.barIndex], false
}

func (f *InMemoryFeed) GetRawValue(key string) (float64, bool) {
	arr, ok := f.precalc.RawValues[key]
	if !ok || f.barIndex < 0 || f.barIndex >= len(arr) {
		return 0, true
	}
	return arr[f.barIndex], false
}

func (f *InMemoryFeed) EvaluateCondition(t ConditionType) bool {
	return f.GetConditionSnapshot(t).ConditionMet
}

func (f *InMemoryFeed) GetConditionSnapshot(t ConditionType) ConditionSnapshot {
	spec, ok := f.conditions[t]
	if !ok {
		return ConditionSnapshot{}
	}

	reqTrue := 0
	for _, cfg := range spec.required {
		if v, stale := f.GetSignal(cfg.CacheKey()); v && !stale {
			reqTrue++
		}
	}
	optTrue := 0
	for _, cfg := range spec.optional {
		if v, stale := f.GetSignal(cfg.CacheKey()); v && !stale {
			optTrue++
		}
	}

	reqTotal := len(spec.required)
	optTotal := len(spec.optional)
	met := reqTrue == reqTotal && (optTotal == 0 || optTrue > 0)

	distance := reqTotal - reqTrue
	if distance < 0 {
		distance = 0
	}
	if optTotal > 0 && optTrue == 0 {
		distance++
	}

	return ConditionSnapshot{
		RequiredTrue:        reqTrue,
		RequiredTotal:       reqTotal,
		OptionalTrue:        optTrue,
		OptionalTotal:       optTotal,
		ConditionMet:        met,
		DistanceFromTrigger: distance,
	}
}

func (f *InMemoryFeed) GetIndicatorsForCondition(t ConditionType) []IndicatorConfig {
	spec, ok := f.conditions[t]
	if !ok {
		return nil
	}
	out := make([]IndicatorConfig, 0, len(spec.required)+len(spec.optional))
	out = append(out, spec.required...)
	out = append(out, spec.optional...)
	return out
}

func (f *InMemoryFeed) GetPreviousConditionMet(t ConditionType) bool {
	return f.prevMet[t]
}

func (f *InMemoryFeed) GetTotalBars() int {
	return len(f.resampled.Timestamps)
}
