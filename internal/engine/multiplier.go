package engine

import (
	"math"
	"time"
)

// SourceKind identifies which subsystem owns a multiplier source.
type SourceKind string

const (
	SourceStreak      SourceKind = "streak"
	SourceQuest       SourceKind = "quest"
	SourceAchievement SourceKind = "achievement"
	SourceSkill       SourceKind = "skill"
	SourceSeasonal    SourceKind = "seasonal"
)

func (k SourceKind) IsValid() bool {
	switch k {
	case SourceStreak, SourceQuest, SourceAchievement, SourceSkill, SourceSeasonal:
		return true
	default:
		return false
	}
}

// Source is a read-only snapshot of one bonus. The owning subsystem keeps
// the source alive; the composer only filters and sums, it never deletes.
type Source struct {
	ID        string
	Kind      SourceKind
	Value     float64
	ExpiresAt *time.Time
}

func (s Source) expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// SourceProvider publishes the multiplier sources a subsystem currently
// grants. Feature stores implement this instead of the composer reaching
// into their internals.
type SourceProvider interface {
	Sources(now time.Time) []Source
}

// Compose combines independently-owned sources into one effective
// multiplier: 1 + sum of active values. Bonuses are additive, not
// compounding, so many small sources cannot stack exponentially. The
// result is clamped to a minimum of 1.0 so a malformed negative source can
// never zero out or invert progression.
func Compose(sources []Source, now time.Time) float64 {
	total := 1.0
	for _, s := range sources {
		if s.expired(now) {
			continue
		}
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		total += s.Value
	}
	if total < 1.0 {
		return 1.0
	}
	return total
}
