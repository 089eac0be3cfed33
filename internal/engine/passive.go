package engine

import (
	"math"
	"time"

	"lifeforge/internal/storage"
)

// Accumulate advances the idle accumulator by elapsedHours at the current
// effective multiplier and returns the XP actually banked. Excess beyond
// capacity is lost, not queued: collecting regularly is the point. While
// locked nothing accrues, but LastUpdate still advances so a later unlock
// does not retroactively grant backlog.
func Accumulate(st *storage.PassiveState, now time.Time, elapsedHours, effectiveMultiplier float64) float64 {
	st.LastUpdate = now

	if !st.Unlocked {
		return 0
	}
	if elapsedHours <= 0 || math.IsNaN(elapsedHours) {
		return 0
	}
	if effectiveMultiplier < 1 {
		effectiveMultiplier = 1
	}

	gained := elapsedHours * st.RatePerHour * effectiveMultiplier
	before := clampStored(st)
	st.Stored = before + gained
	return clampStored(st) - before
}

// Collect drains the accumulator and returns what was stored. Collecting
// an empty accumulator returns 0.
func Collect(st *storage.PassiveState) float64 {
	amount := clampStored(st)
	st.Stored = 0
	return amount
}

func clampStored(st *storage.PassiveState) float64 {
	if st.Stored < 0 || math.IsNaN(st.Stored) {
		st.Stored = 0
	}
	if st.Stored > st.Capacity {
		st.Stored = st.Capacity
	}
	return st.Stored
}
