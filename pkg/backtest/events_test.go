package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventLogRoundTrip(t *testing.T) {
	log := NewInMemoryEventLog()
	log.LogAlgoEvent(AlgoEvent{Type: EventSLSet, BarIndex: 1})
	log.LogSwapEvent(SwapEvent{ID: "s1", BarIndex: 1})

	assert.Len(t, log.AlgoEvents(EventLogFilter{}), 1)
	assert.Len(t, log.SwapEvents(), 1)
}

func TestInMemoryEventLogResetClears(t *testing.T) {
	log := NewInMemoryEventLog()
	log.LogAlgoEvent(AlgoEvent{Type: EventSLSet})
	log.Reset()

	assert.Empty(t, log.AlgoEvents(EventLogFilter{}))
	assert.Empty(t, log.SwapEvents())
}

func TestAlgoEventsFiltersByTimeAndBarAndType(t *testing.T) {
	log := NewInMemoryEventLog()
	log.LogAlgoEvent(AlgoEvent{Type: EventSLSet, Timestamp: 0, BarIndex: 0})
	log.LogAlgoEvent(AlgoEvent{Type: EventTPSet, Timestamp: 60, BarIndex: 1})
	log.LogAlgoEvent(AlgoEvent{Type: EventSLHit, Timestamp: 120, BarIndex: 2})

	filtered := log.AlgoEvents(EventLogFilter{StartTime: 60})
	assert.Len(t, filtered, 2)

	filtered = log.AlgoEvents(EventLogFilter{EndTime: 60})
	assert.Len(t, filtered, 2)

	filtered = log.AlgoEvents(EventLogFilter{StartBar: 1})
	assert.Len(t, filtered, 2)

	filtered = log.AlgoEvents(EventLogFilter{EventTypes: map[AlgoEventType]bool{EventSLHit: true}})
	require.Len(t, filtered, 1)
	assert.Equal(t, EventSLHit, filtered[0].Type)
}

func TestAlgoEventsRespectsLimit(t *testing.T) {
	log := NewInMemoryEventLog()
	for i := 0; i < 5; i++ {
		log.LogAlgoEvent(AlgoEvent{Type: EventSLSet, BarIndex: i})
	}
	filtered := log.AlgoEvents(EventLogFilter{Limit: 2})
	assert.Len(t, filtered, 2)
}

func TestPairTradesPairsEntryAndExit(t *testing.T) {
	swaps := []SwapEvent{
		{FromAsset: "USD", ToAsset: "BTC", FromAmount: 1000, ToAmount: 1},
		{FromAsset: "BTC", ToAsset: "USD", FromAmount: 1, ToAmount: 1100},
	}
	trades := PairTrades(swaps, "BTC")
	require.Len(t, trades, 1)
	assert.Equal(t, StateLong, trades[0].Direction)
	assert.InDelta(t, 100, trades[0].PnLUSD, 1e-9)
}

func TestPairTradesLossMakesNegativePnL(t *testing.T) {
	swaps := []SwapEvent{
		{FromAsset: "USD", ToAsset: "BTC", FromAmount: 1000, ToAmount: 1},
		{FromAsset: "BTC", ToAsset: "USD", FromAmount: 1, ToAmount: 900},
	}
	trades := PairTrades(swaps, "BTC")
	require.Len(t, trades, 1)
	assert.InDelta(t, -100, trades[0].PnLUSD, 1e-9)
}

func TestPairTradesIgnoresUnmatchedOpenSwap(t *testing.T) {
	swaps := []SwapEvent{
		{FromAsset: "USD", ToAsset: "BTC", FromAmount: 1000, ToAmount: 1},
	}
	assert.Empty(t, PairTrades(swaps, "BTC"))
}

func TestPairTradesPairsShortEntryAndExit(t *testing.T) {
	// SHORT entry is a SELL (fromAsset=BTC, toAsset=USD); SHORT exit is a
	// BUY-back (fromAsset=USD, toAsset=BTC). Neither swap has fromAsset or
	// toAsset equal to "USD" in the pattern a LONG pair would.
	swaps := []SwapEvent{
		{FromAsset: "BTC", ToAsset: "USD", FromAmount: 1, ToAmount: 1100},
		{FromAsset: "USD", ToAsset: "BTC", FromAmount: 1000, ToAmount: 1},
	}
	trades := PairTrades(swaps, "BTC")
	require.Len(t, trades, 1)
	assert.Equal(t, StateShort, trades[0].Direction)
	assert.InDelta(t, 100, trades[0].PnLUSD, 1e-9)
}

func TestPairTradesAlternatesMultipleRoundTrips(t *testing.T) {
	swaps := []SwapEvent{
		{FromAsset: "USD", ToAsset: "BTC", FromAmount: 1000, ToAmount: 1},
		{FromAsset: "BTC", ToAsset: "USD", FromAmount: 1, ToAmount: 1100},
		{FromAsset: "BTC", ToAsset: "USD", FromAmount: 1, ToAmount: 1100},
		{FromAsset: "USD", ToAsset: "BTC", FromAmount: 1000, ToAmount: 1},
	}
	trades := PairTrades(swaps, "BTC")
	require.Len(t, trades, 2)
	assert.Equal(t, StateLong, trades[0].Direction)
	assert.Equal(t, StateShort, trades[1].Direction)
}
