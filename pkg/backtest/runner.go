package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// BacktestOutput is C5's final product: every append-only log plus the
// metrics C7 derives from them.
type BacktestOutput struct {
	Candles      []Candle
	SwapEvents   []SwapEvent
	AlgoEvents   []AlgoEvent
	Trades       []TradeEvent
	EquityCurve  []EquityPoint
	SwapMetrics  SwapMetrics
	AlgoMetrics  AlgoMetrics
	FinalState   PositionState
	FinalBalance float64
	BarsRun      int
}

// EquityPoint is one equity-curve sample.
type EquityPoint struct {
	Timestamp   int64
	BarIndex    int
	Equity      float64
	DrawdownPct float64
}

// Engine drives the simulation end to end (C5), gluing C1-C4, C6, C7.
// A single *Engine can be reused across runs via Reset, mirroring the
// teacher's NewEngine-plus-explicit-state-fields shape but adding the
// reset path needed for reuse across runs.
type Engine struct {
	input    BacktestInput
	candles  []Candle
	log      zerolog.Logger

	factory IndicatorFactory

	precalc   *IndicatorPrecalc
	resampled *ResampleResult
	feed      *InMemoryFeed

	sm       *StateMachine
	executor *SimExecutor
	events   *InMemoryEventLog

	subBars      map[int][]Candle // bar index -> synthesized sub-bars
	valueFactors map[string]*ValueFactorLookup // "barIndex|cacheKey" -> lookup

	activeSL       SpecialIndicator
	activeTP       SpecialIndicator
	activeTrailing SpecialIndicator

	barCursor int // bar index currently being stepped, for DYN SL/TP re-evaluation

	currentTradeID int
	tradesOpened   int
	equityCurve    []EquityPoint
	peakEquity     float64

	prevSignals map[string]bool
}

// NewEngine wires C1-C7 for a single BacktestInput over a candle stream.
// candleResolution is the native spacing of candles in seconds (used by C2
// to choose the simulation grid and by C3 to resolve sub-bar timeframes).
func NewEngine(input BacktestInput, candles []Candle, candleResolution int64, factory IndicatorFactory, logger zerolog.Logger) (*Engine, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateCandles(candles); err != nil {
		return nil, err
	}

	configs := CollectConfigs(input.Algo)
	precalc, err := Precalculate(candles, configs, factory)
	if err != nil {
		return nil, err
	}
	if err := checkValueFactors(input.Algo, precalc); err != nil {
		return nil, err
	}

	resampled := Resample(candles, candleResolution, precalc)
	feed := NewInMemoryFeed(precalc, resampled)
	registerConditions(feed, input.Algo)

	e := &Engine{
		input:        input,
		candles:      candles,
		log:          logger.With().Str("component", "engine").Logger(),
		factory:      factory,
		precalc:      precalc,
		resampled:    resampled,
		feed:         feed,
		subBars:      make(map[int][]Candle),
		valueFactors: make(map[string]*ValueFactorLookup),
		prevSignals:  make(map[string]bool),
	}
	e.sm = NewStateMachine(input.Algo.Type, input.Algo.Timeout)
	e.events = NewInMemoryEventLog()
	e.executor = NewSimExecutor(input.Algo.CoinSymbol, input.Algo.StartingCapitalUSD*input.Run.CapitalScaler, input.FeeBps, input.SlippageBps, e.events.LogSwapEvent)

	return e, nil
}

// Reset restores every mutable component to initial state so the Engine
// can be re-run without reallocating C1-C3's immutable caches.
func (e *Engine) Reset() {
	e.sm.Reset()
	e.feed.Reset()
	e.events.Reset()
	e.executor.Reset(e.input.Algo.StartingCapitalUSD * e.input.Run.CapitalScaler)
	e.activeSL, e.activeTP, e.activeTrailing = nil, nil, nil
	e.currentTradeID = 0
	e.tradesOpened = 0
	e.equityCurve = nil
	e.peakEquity = 0
	e.barCursor = 0
	e.prevSignals = make(map[string]bool)
}

func registerConditions(feed *InMemoryFeed, p AlgoParams) {
	if p.LongEntry != nil {
		feed.RegisterCondition(ConditionLongEntry, p.LongEntry.Required, p.LongEntry.Optional)
	}
	if p.LongExit != nil {
		feed.RegisterCondition(ConditionLongExit, p.LongExit.Required, p.LongExit.Optional)
	}
	if p.ShortEntry != nil {
		feed.RegisterCondition(ConditionShortEntry, p.ShortEntry.Required, p.ShortEntry.Optional)
	}
	if p.ShortExit != nil {
		feed.RegisterCondition(ConditionShortExit, p.ShortExit.Required, p.ShortExit.Optional)
	}
}

func checkValueFactors(p AlgoParams, precalc *IndicatorPrecalc) error {
	check := func(vc *ValueConfig) error {
		if vc == nil || vc.Type != ValueDYN || vc.ValueFactor == nil {
			return nil
		}
		key := vc.ValueFactor.CacheKey()
		if !precalc.Normalized[key] {
			return ErrUnsupportedValueFactor
		}
		return nil
	}
	if err := check(&p.PositionSize); err != nil {
		return err
	}
	if p.LongExit != nil {
		if err := check(p.LongExit.StopLoss); err != nil {
			return err
		}
		if err := check(p.LongExit.TakeProfit); err != nil {
			return err
		}
	}
	if p.ShortExit != nil {
		if err := check(p.ShortExit.StopLoss); err != nil {
			return err
		}
		if err := check(p.ShortExit.TakeProfit); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the full simulation, implementing C5's per-bar loop
// over the resampled timeline.
func (e *Engine) Run(ctx context.Context) (*BacktestOutput, error) {
	ts := e.resampled.Timestamps
	for i := range ts {
		if err := e.step(ctx, i, ts[i]); err != nil {
			return nil, err
		}
		if e.input.Run.EndTime != 0 && ts[i] >= e.input.Run.EndTime {
			break
		}
	}

	if e.input.Run.ClosePositionOnExit {
		if pos, ok := e.executor.GetPosition(e.input.Algo.CoinSymbol); ok {
			last := len(ts) - 1
			if last >= 0 {
				e.closePosition(ctx, pos, last, ts[last], "END_OF_BACKTEST")
			}
		}
	}

	return e.buildOutput(), nil
}

func (e *Engine) barCandle(barIndex int) Candle {
	if barIndex < len(e.candles) {
		return e.candles[barIndex]
	}
	return e.candles[len(e.candles)-1]
}

func (e *Engine) step(ctx context.Context, barIndex int, ts int64) error {
	e.barCursor = barIndex
	e.feed.SetCurrentBar(barIndex, ts)
	e.executor.SetCurrentBar(barIndex, ts)

	candle := e.barCandle(barIndex)
	e.executor.SetCurrentPrice(candle.Close)
	e.emitIndicatorFlips(barIndex, ts)

	if barIndex < e.resampled.WarmupBars {
		e.recordEquity(barIndex, ts)
		return nil
	}

	path := e.subBarPath(barIndex, candle)

	state := e.sm.State()
	if state == StateLong || state == StateShort {
		if err := e.runExitCheck(ctx, barIndex, ts, candle, path, state); err != nil {
			return err
		}
	}

	state = e.sm.State()
	if state == StateCash {
		if err := e.runEntryCheck(ctx, barIndex, ts, candle); err != nil {
			return err
		}
	} else if state == StateTimeout {
		if err := e.runTimeoutTick(ctx, barIndex, ts); err != nil {
			return err
		}
	}

	e.recordEquity(barIndex, ts)
	return nil
}

// subBarPath returns the price path used for intra-bar SL/TP/trailing
// crossing checks: synthesized sub-bars, or the plain OHLC path if the
// candle's own resolution can't be sub-divided.
func (e *Engine) subBarPath(barIndex int, candle Candle) []Candle {
	if path, ok := e.subBars[barIndex]; ok {
		return path
	}
	parentSeconds := e.resampled.Resolution
	path := SynthesizeSubBars(candle, parentSeconds)
	if len(path) <= 1 {
		path = []Candle{
			{Bucket: candle.Bucket, Close: candle.Open},
			{Bucket: candle.Bucket, Close: candle.High},
			{Bucket: candle.Bucket, Close: candle.Low},
			{Bucket: candle.Bucket, Close: candle.Close},
		}
	}
	e.subBars[barIndex] = path
	return path
}

// runExitCheck enforces priority trailing > SL > TP > indicator exit; the
// first sub-bar crossing wins and execution happens at that level.
func (e *Engine) runExitCheck(ctx context.Context, barIndex int, ts int64, candle Candle, path []Candle, state PositionState) error {
	pos, ok := e.executor.GetPosition(e.input.Algo.CoinSymbol)
	if !ok {
		return nil
	}

	for _, sub := range path {
		price := sub.Close
		if e.activeTrailing != nil {
			e.activeTrailing.Observe(price, sub.Bucket)
		}
		if e.activeSL != nil {
			e.activeSL.Observe(price, sub.Bucket)
		}
		if e.activeTP != nil {
			e.activeTP.Observe(price, sub.Bucket)
		}

		if hit, level := crossed(e.activeTrailing, state, price); hit {
			e.events.LogAlgoEvent(AlgoEvent{Type: EventTrailingHit, Timestamp: ts, BarIndex: barIndex, Level: level})
			e.closePositionAt(ctx, pos, barIndex, ts, "TRAILING_HIT", level)
			return nil
		}
		if hit, level := crossed(e.activeSL, state, price); hit {
			e.events.LogAlgoEvent(AlgoEvent{Type: EventSLHit, Timestamp: ts, BarIndex: barIndex, Level: level})
			e.closePositionAt(ctx, pos, barIndex, ts, "SL_HIT", level)
			return nil
		}
		if hit, level := crossed(e.activeTP, state, price); hit {
			e.events.LogAlgoEvent(AlgoEvent{Type: EventTPHit, Timestamp: ts, BarIndex: barIndex, Level: level})
			e.closePositionAt(ctx, pos, barIndex, ts, "TP_HIT", level)
			return nil
		}
	}

	exitCond := ConditionLongExit
	if state == StateShort {
		exitCond = ConditionShortExit
	}
	triggered := e.conditionTriggered(exitCond)
	if triggered {
		e.closePosition(ctx, pos, barIndex, ts, "SIGNAL_EXIT")
	}
	return nil
}

// crossed reports whether price has crossed a protective level adversely
// to the position (below for LONG, above for SHORT).
func crossed(ind SpecialIndicator, direction PositionState, price float64) (bool, float64) {
	if ind == nil {
		return false, 0
	}
	level := ind.Level()
	if ind.Kind() == KindTakeProfit {
		if direction == StateLong {
			return price >= level, level
		}
		return price <= level, level
	}
	// Stop-loss and trailing-stop both trigger adversely.
	if direction == StateLong {
		return price <= level, level
	}
	return price >= level, level
}

// conditionTriggered applies the feed's edge rule unless
// assumePositionImmediately is set/4.
func (e *Engine) conditionTriggered(t ConditionType) bool {
	met := e.feed.EvaluateCondition(t)
	if e.input.Algo.AssumePositionImmediately {
		return met
	}
	return met && !e.feed.GetPreviousConditionMet(t)
}

func (e *Engine) runEntryCheck(ctx context.Context, barIndex int, ts int64, candle Candle) error {
	longMet := e.entryMet(ConditionLongEntry)
	shortMet := e.entryMet(ConditionShortEntry)

	if e.input.Run.TradesLimit > 0 && e.tradesOpened >= e.input.Run.TradesLimit {
		return nil
	}

	if longMet && shortMet && e.input.Algo.Type == AlgoBoth {
		return e.sm.EnterAmbiguity(ts)
	}

	allowLong := e.input.Algo.Type == AlgoLong || e.input.Algo.Type == AlgoBoth
	allowShort := e.input.Algo.Type == AlgoShort || e.input.Algo.Type == AlgoBoth

	switch {
	case longMet && allowLong:
		return e.openPosition(ctx, StateLong, barIndex, ts, candle)
	case shortMet && allowShort:
		return e.openPosition(ctx, StateShort, barIndex, ts, candle)
	}
	return nil
}

func (e *Engine) entryMet(t ConditionType) bool {
	return e.conditionTriggered(t)
}

func (e *Engine) runTimeoutTick(ctx context.Context, barIndex int, ts int64) error {
	longMet := e.feed.EvaluateCondition(ConditionLongEntry)
	shortMet := e.feed.EvaluateCondition(ConditionShortEntry)

	prevState := e.sm.State()
	newState, err := e.sm.TickTimeout(ts, longMet, shortMet)
	if err != nil {
		return err
	}
	if prevState == StateTimeout && (newState == StateLong || newState == StateShort) {
		return e.openPosition(ctx, newState, barIndex, ts, e.barCandle(barIndex))
	}
	return nil
}

func (e *Engine) openPosition(ctx context.Context, direction PositionState, barIndex int, ts int64, candle Candle) error {
	// A TIMEOUT tick that resolves to LONG/SHORT has already moved the
	// state machine into direction; only entries from CASH transition here.
	if e.sm.State() != direction {
		if err := e.sm.EnterPosition(direction, ts); err != nil {
			return err
		}
	}

	sizeUSD := e.positionSizeUSD(barIndex, ts)
	side := SideBuy
	if direction == StateShort {
		side = SideSell
	}

	result, err := e.executor.PlaceOrder(ctx, OrderRequest{
		ClientOrderID:  fmt.Sprintf("entry-%d", barIndex),
		Symbol:         e.input.Algo.CoinSymbol,
		Side:           side,
		Type:           e.input.Algo.OrderType,
		AmountUSD:      sizeUSD,
		IsEntry:        true,
		TradeDirection: direction,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("entry order rejected")
		return nil
	}

	e.tradesOpened++
	e.instantiateSpecialIndicators(direction, result.AvgPrice, ts, barIndex)
	return nil
}

func (e *Engine) positionSizeUSD(barIndex int, ts int64) float64 {
	vc := e.input.Algo.PositionSize
	capital := e.executor.GetBalance()
	switch vc.Type {
	case ValueABS:
		avail := e.executor.capitalUSD
		max := vc.Value * e.input.Run.CapitalScaler
		if max > avail {
			max = avail
		}
		return max
	case ValueREL:
		return capital * vc.Value
	case ValueDYN:
		vf := e.valueFactorAt(barIndex, ts)
		factor := vf
		if vc.Inverted {
			factor = 100 - vf
		}
		return capital * vc.Value * factor / 100
	default:
		return 0
	}
}

func (e *Engine) valueFactorAt(barIndex int, ts int64) float64 {
	vc := e.input.Algo.PositionSize
	if vc.ValueFactor == nil {
		return 0
	}
	lookup := e.buildValueFactorLookup(barIndex, *vc.ValueFactor)
	v, ok := lookup.At(ts)
	if !ok {
		return 0
	}
	return clamp01to100(v)
}

// buildValueFactorLookup evaluates a DYN ValueConfig's indicator over the
// flattened sub-bar stream for a bar.
func (e *Engine) buildValueFactorLookup(barIndex int, cfg IndicatorConfig) *ValueFactorLookup {
	key := fmt.Sprintf("%d|%s", barIndex, cfg.CacheKey())
	if lookup, ok := e.valueFactors[key]; ok {
		return lookup
	}
	path := e.subBars[barIndex]
	if path == nil {
		path = e.subBarPath(barIndex, e.barCandle(barIndex))
	}
	ind, err := e.factory.Create(cfg)
	var timestamps []int64
	var values []float64
	if err == nil {
		src := source(cfg.Source)
		if src == "" {
			src = sourceClose
		}
		series := projectSeries(path, src)
		points := ind.Evaluate(series)
		for i, p := range points {
			timestamps = append(timestamps, path[i].Bucket)
			values = append(values, p.Value)
		}
	}
	lookup := NewValueFactorLookup(timestamps, values)
	e.valueFactors[key] = lookup
	return lookup
}

func (e *Engine) instantiateSpecialIndicators(direction PositionState, entryPrice float64, ts int64, barIndex int) {
	exit := e.input.Algo.LongExit
	if direction == StateShort {
		exit = e.input.Algo.ShortExit
	}
	if exit == nil {
		return
	}

	factorAt := func(vc *ValueConfig) func(int64) (float64, bool) {
		if vc == nil || vc.Type != ValueDYN || vc.ValueFactor == nil {
			return nil
		}
		return func(t int64) (float64, bool) {
			return e.buildValueFactorLookup(e.barCursor, *vc.ValueFactor).At(t)
		}
	}

	if exit.StopLoss != nil {
		e.activeSL = NewStopLoss(direction, entryPrice, ts, *exit.StopLoss, factorAt(exit.StopLoss))
		e.events.LogAlgoEvent(AlgoEvent{Type: EventSLSet, Timestamp: ts, BarIndex: barIndex, Level: e.activeSL.Level()})
	} else {
		e.activeSL = nil
	}
	if exit.TakeProfit != nil {
		e.activeTP = NewTakeProfit(direction, entryPrice, ts, *exit.TakeProfit, factorAt(exit.TakeProfit))
		e.events.LogAlgoEvent(AlgoEvent{Type: EventTPSet, Timestamp: ts, BarIndex: barIndex, Level: e.activeTP.Level()})
	} else {
		e.activeTP = nil
	}
	if exit.TrailingSL && exit.StopLoss != nil {
		e.activeTrailing = NewTrailingStop(direction, entryPrice, exit.StopLoss.Value)
	} else {
		e.activeTrailing = nil
	}
}

// closePosition closes at the executor's current mark (the bar close) —
// used for signal exits and the end-of-backtest close.
func (e *Engine) closePosition(ctx context.Context, pos *Position, barIndex int, ts int64, reason string) {
	e.closePositionAt(ctx, pos, barIndex, ts, reason, e.executor.currentPrice)
}

// closePositionAt closes at an explicit price: for SL/TP/trailing exits,
// the protective level itself rather than the crossing sub-bar's price,
// modelling a resting protective order that fills at its own level.
func (e *Engine) closePositionAt(ctx context.Context, pos *Position, barIndex int, ts int64, reason string, execPrice float64) {
	side := SideSell
	fillPrice := execPrice * (1 - e.executor.slippageBps/10000)
	if pos.Direction == StateShort {
		side = SideBuy
		fillPrice = execPrice * (1 + e.executor.slippageBps/10000)
	}
	// Sized at the executor's slippage-adjusted fill price, so the order
	// covers exactly pos.Size and the position is fully closed.
	amountUSD := pos.Size * fillPrice

	prevPrice := e.executor.currentPrice
	e.executor.SetCurrentPrice(execPrice)
	_, err := e.executor.PlaceOrder(ctx, OrderRequest{
		ClientOrderID:  fmt.Sprintf("exit-%d-%s", barIndex, reason),
		Symbol:         e.input.Algo.CoinSymbol,
		Side:           side,
		Type:           e.input.Algo.OrderType,
		AmountUSD:      amountUSD,
		IsEntry:        false,
		TradeDirection: pos.Direction,
	})
	e.executor.SetCurrentPrice(prevPrice)
	if err != nil {
		e.log.Warn().Err(err).Str("reason", reason).Msg("exit order failed")
	}

	e.activeSL, e.activeTP, e.activeTrailing = nil, nil, nil
	if tErr := e.sm.ExitToTimeout(ts); tErr != nil {
		e.log.Warn().Err(tErr).Msg("exit-to-timeout transition failed")
	}
}

func (e *Engine) emitIndicatorFlips(barIndex int, ts int64) {
	current := e.feed.GetCurrentSignals()
	flipped := make(map[string]bool)
	for key, val := range current {
		if prev, ok := e.prevSignals[key]; !ok || prev != val {
			flipped[key] = true
			e.events.LogAlgoEvent(AlgoEvent{Type: EventIndicatorFlip, Timestamp: ts, BarIndex: barIndex, IndicatorKey: key, NewSignal: val})
		}
	}
	e.prevSignals = current

	for _, ev := range CollectConditionChanges(e.feed, flipped, barIndex, ts) {
		e.events.LogAlgoEvent(ev)
	}
}

func (e *Engine) recordEquity(barIndex int, ts int64) {
	eq := e.executor.GetBalance()
	if eq > e.peakEquity {
		e.peakEquity = eq
	}
	dd := 0.0
	if e.peakEquity > 0 {
		dd = (e.peakEquity - eq) / e.peakEquity
	}
	e.equityCurve = append(e.equityCurve, EquityPoint{Timestamp: ts, BarIndex: barIndex, Equity: eq, DrawdownPct: dd})
}

func (e *Engine) buildOutput() *BacktestOutput {
	swaps := e.events.SwapEvents()
	trades := PairTrades(swaps, e.input.Algo.CoinSymbol)
	algoEvents := e.events.AlgoEvents(EventLogFilter{})

	out := &BacktestOutput{
		Candles:      e.candles,
		SwapEvents:   swaps,
		AlgoEvents:   algoEvents,
		Trades:       trades,
		EquityCurve:  e.equityCurve,
		FinalState:   e.sm.State(),
		FinalBalance: e.executor.GetBalance(),
		BarsRun:      len(e.equityCurve),
	}
	out.SwapMetrics = CalculateSwapMetrics(trades, e.equityCurve, swaps)
	out.AlgoMetrics = CalculateAlgoMetrics(e.feed, algoEvents, e.resampled, e.sm.Transitions())
	return out
}
