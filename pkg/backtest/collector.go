package backtest

// allConditionTypes enumerates every condition C7 tracks per bar.
var allConditionTypes = []ConditionType{ConditionLongEntry, ConditionLongExit, ConditionShortEntry, ConditionShortExit}

// CollectConditionChanges builds CONDITION_CHANGE events for every
// condition whose met-state flipped this bar, attributing
// the triggering indicator as the last-flipping indicator of that
// condition on this bar (flipped is the set of indicator keys that flipped
// this same bar, from C1's signal cache).
func CollectConditionChanges(feed *InMemoryFeed, flipped map[string]bool, barIndex int, ts int64) []AlgoEvent {
	var out []AlgoEvent
	for _, t := range allConditionTypes {
		prev := feed.GetPreviousConditionMet(t)
		snap := feed.GetConditionSnapshot(t)
		if prev == snap.ConditionMet {
			continue
		}

		var trigger string
		for _, cfg := range feed.GetIndicatorsForCondition(t) {
			if flipped[cfg.CacheKey()] {
				trigger = cfg.CacheKey()
			}
		}

		out = append(out, AlgoEvent{
			Type:         EventConditionChange,
			Timestamp:    ts,
			BarIndex:     barIndex,
			Condition:    t,
			PreviousMet:  prev,
			NewMet:       snap.ConditionMet,
			Snapshot:     snap,
			IndicatorKey: trigger,
		})
	}
	return out
}
