package backtest

import "math"

// Point is one indicator sample: its raw value and the boolean signal
// derived from that indicator's natural crossing rule.
type Point struct {
	Value  float64
	Signal bool
}

// Indicator is the unit of work C1 precalculates. Concrete implementations
// live in internal/indicators, wrapping cinar/indicator/v2 computations.
type Indicator interface {
	// CacheKey mirrors the owning IndicatorConfig.CacheKey(); used to
	// deduplicate identical configs before evaluation.
	CacheKey() string
	// Warmup is the number of leading points with no meaningful output.
	Warmup() int
	// Normalized reports whether Value is clamped to [0,100] — required
	// for a config to be usable as a DYN ValueConfig.ValueFactor.
	Normalized() bool
	// Evaluate runs the indicator over a source-projected price series,
	// returning one Point per input point.
	Evaluate(points []float64) []Point
}

// IndicatorFactory builds an Indicator from its opaque config. The only
// port C1 depends on; internal/indicators supplies the concrete factory.
type IndicatorFactory interface {
	Create(cfg IndicatorConfig) (Indicator, error)
}

// SignalCache maps a cache-key to the boolean signal sequence over the
// native candle timeline, one entry per candle.
type SignalCache map[string][]bool

// RawValueCache maps a cache-key to the raw value sequence over the same
// timeline; optional, used for value-factor lookups and diagnostics.
type RawValueCache map[string][]float64

// IndicatorPrecalc is C1's output: both caches, every unique config's
// native resolution, the set of configs tagged Normalized, and the global
// warmup in candles (max warmup over every indicator that was evaluated).
type IndicatorPrecalc struct {
	Signals        SignalCache
	RawValues      RawValueCache
	Normalized     map[string]bool
	WarmupCandles  int
	Resolutions    map[string]int64 // cache-key -> native resolution seconds
}

// CollectConfigs flattens every IndicatorConfig referenced by an AlgoParams,
// deduplicating by cache-key input enumeration.
func CollectConfigs(p AlgoParams) []IndicatorConfig {
	seen := make(map[string]bool)
	var out []IndicatorConfig

	add := func(cs []IndicatorConfig) {
		for _, c := range cs {
			k := c.CacheKey()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, c)
		}
	}
	addVF := func(vc *ValueConfig) {
		if vc != nil && vc.Type == ValueDYN && vc.ValueFactor != nil {
			add([]IndicatorConfig{*vc.ValueFactor})
		}
	}

	if p.LongEntry != nil {
		add(p.LongEntry.Required)
		add(p.LongEntry.Optional)
	}
	if p.LongExit != nil {
		add(p.LongExit.Required)
		add(p.LongExit.Optional)
		addVF(p.LongExit.StopLoss)
		addVF(p.LongExit.TakeProfit)
	}
	if p.ShortEntry != nil {
		add(p.ShortEntry.Required)
		add(p.ShortEntry.Optional)
	}
	if p.ShortExit != nil {
		add(p.ShortExit.Required)
		add(p.ShortExit.Optional)
		addVF(p.ShortExit.StopLoss)
		addVF(p.ShortExit.TakeProfit)
	}
	addVF(&p.PositionSize)

	return out
}

// Precalculate implements C1: evaluate every unique config over the
// candle stream's source projection, filling sub-warmup positions with
// signal=false and collapsing non-finite values to false.
func Precalculate(candles []Candle, configs []IndicatorConfig, factory IndicatorFactory) (*IndicatorPrecalc, error) {
	out := &IndicatorPrecalc{
		Signals:     make(SignalCache),
		RawValues:   make(RawValueCache),
		Normalized:  make(map[string]bool),
		Resolutions: make(map[string]int64),
	}

	seriesCache := make(map[source][]float64)
	projected := func(s source) []float64 {
		if v, ok := seriesCache[s]; ok {
			return v
		}
		v := projectSeries(candles, s)
		seriesCache[s] = v
		return v
	}

	n := len(candles)
	for _, cfg := range configs {
		key := cfg.CacheKey()
		if _, done := out.Signals[key]; done {
			continue
		}

		ind, err := factory.Create(cfg)
		if err != nil {
			// Missing/unknown indicator: empty array, all-false.
			out.Signals[key] = make([]bool, n)
			out.RawValues[key] = make([]float64, n)
			continue
		}

		src := source(cfg.Source)
		if src == "" {
			src = sourceClose
		}
		points := ind.Evaluate(projected(src))

		signals := make([]bool, n)
		values := make([]float64, n)
		warmup := ind.Warmup()
		for i := 0; i < n; i++ {
			if i < warmup || i >= len(points) {
				signals[i] = false
				continue
			}
			p := points[i]
			if !finite(p.Value) {
				signals[i] = false
				values[i] = 0
				continue
			}
			signals[i] = p.Signal
			values[i] = p.Value
		}

		out.Signals[key] = signals
		out.RawValues[key] = values
		out.Normalized[key] = ind.Normalized()
		out.Resolutions[key] = cfg.ResolutionSeconds
		if warmup > out.WarmupCandles {
			out.WarmupCandles = warmup
		}
	}

	return out, nil
}

// Lookup returns the signal for key at candle index i, or false with
// "stale" if the key was never precalculated (the StaleIndicator case,
// absorbed locally).
func (p *IndicatorPrecalc) Lookup(key string, i int) (value bool, stale bool) {
	arr, ok := p.Signals[key]
	if !ok || i < 0 || i >= len(arr) {
		return false, true
	}
	return arr[i], false
}

func clamp01to100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
