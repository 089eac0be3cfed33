package engine

import (
	"fmt"
	"strings"
	"time"

	"lifeforge/internal/storage"
)

// Cadence is the period on which an activity's streak is counted.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

func (c Cadence) IsValid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return true
	default:
		return false
	}
}

// DefaultCadence is used when an activity is referenced before being defined.
const DefaultCadence Cadence = CadenceDaily

func ParseCadence(input string) (Cadence, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	c := Cadence(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid cadence: %q", input)
	}
	return c, nil
}

// graceWindow is how many whole periods may pass between completions
// before a streak breaks. One period of slack for every cadence: complete
// today and tomorrow and a daily streak continues; skip a full period and
// it breaks.
const graceWindow = 1

// midnightOf returns local midnight of t's day.
func midnightOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// weekStartOf returns local midnight of the Monday of t's week.
func weekStartOf(t time.Time) time.Time {
	day := midnightOf(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// PeriodsBetween counts calendar-aligned period boundaries crossed between
// from and to. Same period yields 0; a negative wall-clock gap also yields
// 0 so a backward clock never breaks (or extends) a streak.
func (c Cadence) PeriodsBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	switch c {
	case CadenceWeekly:
		return int(weekStartOf(to).Sub(weekStartOf(from)).Hours() / (24 * 7))
	case CadenceMonthly:
		fy, fm, _ := from.Date()
		ty, tm, _ := to.Date()
		n := (int(ty)*12 + int(tm)) - (int(fy)*12 + int(fm))
		if n < 0 {
			return 0
		}
		return n
	default:
		return int(midnightOf(to).Sub(midnightOf(from)).Hours() / 24)
	}
}

// StreakResult reports what a completion did to the streak.
type StreakResult struct {
	CurrentStreak int
	LongestStreak int
	Continued     bool // extended an existing run
	Broken        bool // run was broken and restarted at 1
	SamePeriod    bool // re-completion inside the same period, no increment
}

// RecordCompletion applies a user completion at now. Same-period
// re-completion is idempotent; a gap within the grace window extends the
// run; anything longer restarts it at 1.
func RecordCompletion(st *storage.StreakState, cadence Cadence, now time.Time) StreakResult {
	res := StreakResult{}

	switch {
	case st.LastCompletedAt == nil:
		st.CurrentStreak = 1
	default:
		gap := cadence.PeriodsBetween(*st.LastCompletedAt, now)
		switch {
		case gap == 0:
			res.SamePeriod = true
		case gap <= graceWindow:
			st.CurrentStreak++
			res.Continued = true
		default:
			st.CurrentStreak = 1
			res.Broken = true
		}
	}

	if st.CurrentStreak > st.LongestStreak {
		st.LongestStreak = st.CurrentStreak
	}
	t := now
	st.LastCompletedAt = &t

	res.CurrentStreak = st.CurrentStreak
	res.LongestStreak = st.LongestStreak
	return res
}

// CheckAndDecay detects a broken streak without a new completion: once the
// grace window has passed, the current run drops to 0. LastCompletedAt and
// LongestStreak are left untouched, so "stopped acting" stays observable
// separately from "acted late". Safe to call any number of times.
func CheckAndDecay(st *storage.StreakState, cadence Cadence, now time.Time) bool {
	if st.LastCompletedAt == nil || st.CurrentStreak == 0 {
		return false
	}
	if cadence.PeriodsBetween(*st.LastCompletedAt, now) <= graceWindow {
		return false
	}
	st.CurrentStreak = 0
	return true
}
