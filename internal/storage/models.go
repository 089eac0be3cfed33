package storage

import "time"

// ProgressRecord tracks leveling for one activity (or the global character
// when keyed by GlobalID). Experience is XP into the current level; the
// engine carries overflow into level-ups so Experience < ExperienceToNext
// holds after every mutation.
type ProgressRecord struct {
	Level               int     `json:"level"`
	Experience          float64 `json:"experience"`
	ExperienceToNext    float64 `json:"experience_to_next"`
	EffectiveMultiplier float64 `json:"effective_multiplier"`
}

// StreakState holds per-activity streak counters.
type StreakState struct {
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	CurrentStreak   int        `json:"current_streak"`
	LongestStreak   int        `json:"longest_streak"`
}

// PassiveState is the process-wide idle accumulator.
type PassiveState struct {
	RatePerHour float64   `json:"rate_per_hour"`
	Capacity    float64   `json:"capacity"`
	Stored      float64   `json:"stored"`
	LastUpdate  time.Time `json:"last_update"`
	Unlocked    bool      `json:"unlocked"`
}

// TimeState is the single source of truth for elapsed time and day
// rollover. DayStart is local midnight as of the last observed tick and
// only ever advances.
type TimeState struct {
	LastTick time.Time `json:"last_tick"`
	DayStart time.Time `json:"day_start"`
}

type Activity struct {
	ID        string
	Name      string
	Cadence   string
	CreatedAt time.Time
}

// GlobalID keys the singleton character progress record.
const GlobalID = "global"

func ProgressKey(activityID string) string { return "progress:" + activityID }
func StreakKey(activityID string) string   { return "streak:" + activityID }

const (
	PassiveKey = "passive:global"
	TimeKey    = "time:global"
)

const (
	ProgressPrefix = "progress:"
	StreakPrefix   = "streak:"
)
