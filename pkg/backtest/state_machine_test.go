package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineStartsInCash(t *testing.T) {
	sm := NewStateMachine(AlgoBoth, TimeoutConfig{Mode: TimeoutRegular})
	assert.Equal(t, StateCash, sm.State())
}

func TestEnterPositionRespectsAlgoType(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular})
	assert.Error(t, sm.EnterPosition(StateShort, 0))
	require.NoError(t, sm.EnterPosition(StateLong, 0))
	assert.Equal(t, StateLong, sm.State())
}

func TestEnterPositionFromNonCashFails(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular})
	require.NoError(t, sm.EnterPosition(StateLong, 0))
	assert.Error(t, sm.EnterPosition(StateLong, 1))
}

func TestEnterAmbiguityRequiresBothType(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular})
	assert.Error(t, sm.EnterAmbiguity(0))

	sm = NewStateMachine(AlgoBoth, TimeoutConfig{Mode: TimeoutRegular})
	require.NoError(t, sm.EnterAmbiguity(0))
	assert.Equal(t, StateTimeout, sm.State())
	assert.Equal(t, TimeoutAmbiguity, sm.TimeoutInfo().Reason)
}

func TestExitToTimeoutRequiresOpenPosition(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular})
	assert.Error(t, sm.ExitToTimeout(0))

	require.NoError(t, sm.EnterPosition(StateLong, 0))
	require.NoError(t, sm.ExitToTimeout(1))
	assert.Equal(t, StateTimeout, sm.State())
	assert.Equal(t, TimeoutPostTrade, sm.TimeoutInfo().Reason)
	assert.Equal(t, StateLong, sm.TimeoutInfo().PreviousDirection)
}

func TestTickTimeoutAmbiguityResolvesToMetDirection(t *testing.T) {
	sm := NewStateMachine(AlgoBoth, TimeoutConfig{Mode: TimeoutRegular})
	require.NoError(t, sm.EnterAmbiguity(0))

	state, err := sm.TickTimeout(1, true, false)
	require.NoError(t, err)
	assert.Equal(t, StateLong, state)
}

func TestTickTimeoutAmbiguityStaysWhenBothStillMet(t *testing.T) {
	sm := NewStateMachine(AlgoBoth, TimeoutConfig{Mode: TimeoutRegular})
	require.NoError(t, sm.EnterAmbiguity(0))

	state, err := sm.TickTimeout(1, true, true)
	require.NoError(t, err)
	assert.Equal(t, StateTimeout, state)
}

func TestTickTimeoutAmbiguityFallsBackToCashWhenNeitherMet(t *testing.T) {
	sm := NewStateMachine(AlgoBoth, TimeoutConfig{Mode: TimeoutRegular})
	require.NoError(t, sm.EnterAmbiguity(0))

	state, err := sm.TickTimeout(1, false, false)
	require.NoError(t, err)
	assert.Equal(t, StateCash, state)
}

func TestTickTimeoutCooldownOnlyWaitsOutBars(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutCooldownOnly, CooldownBars: 2})
	require.NoError(t, sm.EnterPosition(StateLong, 0))
	require.NoError(t, sm.ExitToTimeout(1))

	state, err := sm.TickTimeout(2, false, false)
	require.NoError(t, err)
	assert.Equal(t, StateTimeout, state)

	state, err = sm.TickTimeout(3, false, false)
	require.NoError(t, err)
	assert.Equal(t, StateCash, state)
}

func TestTickTimeoutRegularFlipsToOppositeDirection(t *testing.T) {
	sm := NewStateMachine(AlgoBoth, TimeoutConfig{Mode: TimeoutRegular, CooldownBars: 1})
	require.NoError(t, sm.EnterPosition(StateLong, 0))
	require.NoError(t, sm.ExitToTimeout(1))

	state, err := sm.TickTimeout(2, false, true)
	require.NoError(t, err)
	assert.Equal(t, StateShort, state)
}

func TestTickTimeoutRegularReturnsToCashWhenSameDirectionNotMet(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular, CooldownBars: 0})
	require.NoError(t, sm.EnterPosition(StateLong, 0))
	require.NoError(t, sm.ExitToTimeout(1))

	state, err := sm.TickTimeout(2, false, false)
	require.NoError(t, err)
	assert.Equal(t, StateCash, state)
}

func TestTickTimeoutStrictRequiresBothConditionsClear(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutStrict, CooldownBars: 1})
	require.NoError(t, sm.EnterPosition(StateLong, 0))
	require.NoError(t, sm.ExitToTimeout(1))

	state, err := sm.TickTimeout(2, true, false)
	require.NoError(t, err)
	assert.Equal(t, StateTimeout, state)

	state, err = sm.TickTimeout(3, false, false)
	require.NoError(t, err)
	assert.Equal(t, StateCash, state)
}

func TestTickTimeoutOutsideTimeoutErrors(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular})
	_, err := sm.TickTimeout(0, false, false)
	assert.Error(t, err)
}

func TestResetClearsHistoryAndState(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular})
	require.NoError(t, sm.EnterPosition(StateLong, 0))
	sm.Reset()

	assert.Equal(t, StateCash, sm.State())
	assert.Empty(t, sm.Transitions())
	assert.Equal(t, TimeoutContext{}, sm.TimeoutInfo())
}

func TestTransitionsRecordsEveryChange(t *testing.T) {
	sm := NewStateMachine(AlgoLong, TimeoutConfig{Mode: TimeoutRegular})
	require.NoError(t, sm.EnterPosition(StateLong, 10))
	require.NoError(t, sm.ExitToTimeout(20))

	transitions := sm.Transitions()
	assert.Len(t, transitions, 2)
	assert.Equal(t, StateCash, transitions[0].From)
	assert.Equal(t, StateLong, transitions[0].To)
	assert.Equal(t, StateLong, transitions[1].From)
	assert.Equal(t, StateTimeout, transitions[1].To)
}
