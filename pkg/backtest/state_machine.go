package backtest

// PositionState is one of the four states the runner's state machine can
// occupy at any bar.
type PositionState string

const (
	StateCash    PositionState = "CASH"
	StateLong    PositionState = "LONG"
	StateShort   PositionState = "SHORT"
	StateTimeout PositionState = "TIMEOUT"
)

func (s PositionState) String() string { return string(s) }

// TimeoutReason names why the machine entered TIMEOUT.
type TimeoutReason string

const (
	TimeoutPostTrade TimeoutReason = "POST_TRADE"
	TimeoutAmbiguity TimeoutReason = "AMBIGUITY"
)

// TimeoutContext is only meaningful while State == StateTimeout.
type TimeoutContext struct {
	Reason            TimeoutReason
	PreviousDirection PositionState // LONG or SHORT when Reason == POST_TRADE; empty for AMBIGUITY
	BarsInTimeout     int
}

// Transition is an append-only record of a single state change.
type Transition struct {
	From      PositionState
	To        PositionState
	Timestamp int64
	Direction PositionState
	Timeout   *TimeoutContext
}

// StateMachine implements C4 exactly.
type StateMachine struct {
	algoType AlgoType
	timeout  TimeoutConfig

	state       PositionState
	timeoutCtx  TimeoutContext
	transitions []Transition
}

// NewStateMachine starts in CASH.
func NewStateMachine(algoType AlgoType, timeout TimeoutConfig) *StateMachine {
	return &StateMachine{algoType: algoType, timeout: timeout, state: StateCash}
}

// Reset restores the machine to its initial CASH state, clearing history.
func (m *StateMachine) Reset() {
	m.state = StateCash
	m.timeoutCtx = TimeoutContext{}
	m.transitions = nil
}

// State returns the current state.
func (m *StateMachine) State() PositionState { return m.state }

// TimeoutInfo returns the active timeout context; zero value if not in TIMEOUT.
func (m *StateMachine) TimeoutInfo() TimeoutContext { return m.timeoutCtx }

// Transitions returns every recorded transition this run.
func (m *StateMachine) Transitions() []Transition { return m.transitions }

func (m *StateMachine) record(to PositionState, ts int64, direction PositionState, tc *TimeoutContext) {
	m.transitions = append(m.transitions, Transition{
		From: m.state, To: to, Timestamp: ts, Direction: direction, Timeout: tc,
	})
	m.state = to
}

// EnterPosition transitions CASH -> LONG or CASH -> SHORT on an entry signal.
func (m *StateMachine) EnterPosition(direction PositionState, ts int64) error {
	if m.state != StateCash {
		return &TransitionError{From: m.state, To: direction}
	}
	if direction == StateLong && m.algoType != AlgoLong && m.algoType != AlgoBoth {
		return &TransitionError{From: m.state, To: direction}
	}
	if direction == StateShort && m.algoType != AlgoShort && m.algoType != AlgoBoth {
		return &TransitionError{From: m.state, To: direction}
	}
	if direction != StateLong && direction != StateShort {
		return &TransitionError{From: m.state, To: direction}
	}
	m.record(direction, ts, direction, nil)
	return nil
}

// EnterAmbiguity transitions CASH -> TIMEOUT(AMBIGUITY) when both entries
// fire simultaneously under algoType == BOTH.
func (m *StateMachine) EnterAmbiguity(ts int64) error {
	if m.state != StateCash {
		return &TransitionError{From: m.state, To: StateTimeout}
	}
	if m.algoType != AlgoBoth {
		return &TransitionError{From: m.state, To: StateTimeout}
	}
	tc := TimeoutContext{Reason: TimeoutAmbiguity}
	m.timeoutCtx = tc
	m.record(StateTimeout, ts, "", &tc)
	return nil
}

// ExitToTimeout transitions LONG/SHORT -> TIMEOUT(POST_TRADE) on an exit.
func (m *StateMachine) ExitToTimeout(ts int64) error {
	if m.state != StateLong && m.state != StateShort {
		return &TransitionError{From: m.state, To: StateTimeout}
	}
	tc := TimeoutContext{Reason: TimeoutPostTrade, PreviousDirection: m.state}
	m.timeoutCtx = tc
	m.record(StateTimeout, ts, "", &tc)
	return nil
}

// TickTimeout advances the TIMEOUT evaluation by one bar, given whether
// long/short entry conditions are currently met. It returns the resulting
// state (possibly still TIMEOUT).
func (m *StateMachine) TickTimeout(ts int64, longMet, shortMet bool) (PositionState, error) {
	if m.state != StateTimeout {
		return m.state, &TransitionError{From: m.state, To: StateTimeout}
	}
	m.timeoutCtx.BarsInTimeout++

	switch m.timeoutCtx.Reason {
	case TimeoutAmbiguity:
		switch {
		case longMet && shortMet:
			return m.state, nil
		case longMet && m.allowLong():
			m.record(StateLong, ts, StateLong, nil)
			return m.state, nil
		case shortMet && m.allowShort():
			m.record(StateShort, ts, StateShort, nil)
			return m.state, nil
		default:
			m.record(StateCash, ts, "", nil)
			return m.state, nil
		}

	case TimeoutPostTrade:
		cooldownMet := m.timeoutCtx.BarsInTimeout >= m.timeout.CooldownBars
		prevDir := m.timeoutCtx.PreviousDirection
		sameDirMet := longMet
		oppDirMet := shortMet
		oppDir := PositionState(StateShort)
		if prevDir == StateShort {
			sameDirMet, oppDirMet = shortMet, longMet
			oppDir = StateLong
		}

		switch m.timeout.Mode {
		case TimeoutCooldownOnly:
			if cooldownMet {
				m.record(StateCash, ts, "", nil)
			}
		case TimeoutRegular:
			if cooldownMet && oppDirMet && m.allowDirection(oppDir) {
				m.record(oppDir, ts, oppDir, nil)
			} else if !sameDirMet {
				m.record(StateCash, ts, "", nil)
			}
		case TimeoutStrict:
			if cooldownMet && !longMet && !shortMet {
				m.record(StateCash, ts, "", nil)
			}
		}
	}

	return m.state, nil
}

func (m *StateMachine) allowLong() bool  { return m.algoType == AlgoLong || m.algoType == AlgoBoth }
func (m *StateMachine) allowShort() bool { return m.algoType == AlgoShort || m.algoType == AlgoBoth }
func (m *StateMachine) allowDirection(d PositionState) bool {
	if d == StateLong {
		return m.allowLong()
	}
	return m.allowShort()
}
