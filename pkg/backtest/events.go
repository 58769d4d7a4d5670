package backtest

// SwapEvent is one executed fill.
type SwapEvent struct {
	ID             string
	Timestamp      int64
	BarIndex       int
	FromAsset      string
	ToAsset        string
	FromAmount     float64
	ToAmount       float64
	Price          float64
	FeeUSD         float64
	SlippageUSD    float64
	IsEntry        bool
	TradeDirection PositionState
}

// TradeEvent is derived from a paired entry+exit swap.
type TradeEvent struct {
	EntrySwap SwapEvent
	ExitSwap  SwapEvent
	Direction PositionState
	PnLUSD    float64
}

// AlgoEventType tags the AlgoEvent union.
type AlgoEventType string

const (
	EventIndicatorFlip  AlgoEventType = "INDICATOR_FLIP"
	EventConditionChange AlgoEventType = "CONDITION_CHANGE"
	EventStateTransition AlgoEventType = "STATE_TRANSITION"
	EventSLSet          AlgoEventType = "SL_SET"
	EventTPSet          AlgoEventType = "TP_SET"
	EventTrailingUpdate AlgoEventType = "TRAILING_UPDATE"
	EventSLHit          AlgoEventType = "SL_HIT"
	EventTPHit          AlgoEventType = "TP_HIT"
	EventTrailingHit    AlgoEventType = "TRAILING_HIT"
)

// AlgoEvent is a flat tagged struct rather than an interface hierarchy
// (see DESIGN.md). Fields irrelevant to a given Type are left zero.
type AlgoEvent struct {
	Type         AlgoEventType
	Timestamp    int64
	BarIndex     int
	IndicatorKey string
	NewSignal    bool
	Condition    ConditionType
	PreviousMet  bool
	NewMet       bool
	Snapshot     ConditionSnapshot
	FromState    PositionState
	ToState      PositionState
	Level        float64
}

// EventLogFilter narrows a retrieval.
type EventLogFilter struct {
	StartTime  int64
	EndTime    int64 // 0 means unbounded
	StartBar   int
	EndBar     int // 0 means unbounded
	Limit      int // 0 means unlimited
	EventTypes map[AlgoEventType]bool
}

// EventLog is the port C5/C7 write to and C7 reads back from.
type EventLog interface {
	LogAlgoEvent(e AlgoEvent)
	LogSwapEvent(s SwapEvent)
	AlgoEvents(filter EventLogFilter) []AlgoEvent
	SwapEvents() []SwapEvent
}

// InMemoryEventLog is the backtest's only EventLog implementation:
// append-only slices, never rewritten Lifecycle note.
type InMemoryEventLog struct {
	algoEvents []AlgoEvent
	swapEvents []SwapEvent
}

func NewInMemoryEventLog() *InMemoryEventLog {
	return &InMemoryEventLog{}
}

// Reset clears both logs for run-to-run reuse.
func (l *InMemoryEventLog) Reset() {
	l.algoEvents = nil
	l.swapEvents = nil
}

func (l *InMemoryEventLog) LogAlgoEvent(e AlgoEvent) { l.algoEvents = append(l.algoEvents, e) }
func (l *InMemoryEventLog) LogSwapEvent(s SwapEvent)  { l.swapEvents = append(l.swapEvents, s) }

func (l *InMemoryEventLog) SwapEvents() []SwapEvent {
	out := make([]SwapEvent, len(l.swapEvents))
	copy(out, l.swapEvents)
	return out
}

func (l *InMemoryEventLog) AlgoEvents(filter EventLogFilter) []AlgoEvent {
	var out []AlgoEvent
	for _, e := range l.algoEvents {
		if filter.StartTime != 0 && e.Timestamp < filter.StartTime {
			continue
		}
		if filter.EndTime != 0 && e.Timestamp > filter.EndTime {
			continue
		}
		if filter.EndBar != 0 && e.BarIndex > filter.EndBar {
			continue
		}
		if e.BarIndex < filter.StartBar {
			continue
		}
		if len(filter.EventTypes) > 0 && !filter.EventTypes[e.Type] {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// PairTrades walks swap events in order: only one position is ever open at
// a time (the runner never overlaps an entry with a pending exit), so the
// first unpaired swap always opens a trade and the very next swap always
// closes it — regardless of which side of the pair is denominated in USD.
// Direction is LONG if the closing swap's fromAsset matches the traded
// symbol (a SELL closing a LONG), SHORT otherwise (a BUY closing a SHORT).
func PairTrades(swaps []SwapEvent, symbol string) []TradeEvent {
	var trades []TradeEvent
	var open *SwapEvent

	for i := range swaps {
		s := swaps[i]
		if open == nil {
			sc := s
			open = &sc
			continue
		}

		direction := PositionState(StateShort)
		if s.FromAsset == symbol {
			direction = StateLong
		}

		var pnl float64
		if direction == StateLong {
			pnl = s.ToAmount - open.FromAmount
		} else {
			// SHORT, mirrored: proceeds at entry minus cost to buy back.
			pnl = open.ToAmount - s.FromAmount
		}

		trades = append(trades, TradeEvent{
			EntrySwap: *open,
			ExitSwap:  s,
			Direction: direction,
			PnLUSD:    pnl,
		})
		open = nil
	}
	return trades
}
