package engine

import (
	"math"

	"lifeforge/internal/storage"
)

// DefaultCurveCoef is the default curve steepness: XP_req = 500 * ((Level-1)^1.5).
const DefaultCurveCoef = 500.0

// Curve maps accumulated experience to levels. Level 1 requires 0 XP and
// thresholds are strictly increasing, so LevelForTotal inverts
// ThresholdForLevel exactly at every boundary.
type Curve struct {
	Coef float64
}

func NewCurve(coef float64) Curve {
	if coef <= 0 {
		coef = DefaultCurveCoef
	}
	return Curve{Coef: coef}
}

// ThresholdForLevel returns the total XP required to reach the given level.
func (c Curve) ThresholdForLevel(level int) float64 {
	if level <= 1 {
		return 0
	}
	req := c.Coef * math.Pow(float64(level-1), 1.5)
	// Use ceil to avoid making thresholds easier due to floating point rounding.
	return math.Ceil(req)
}

// LevelForTotal returns the highest level L such that
// total >= ThresholdForLevel(L). It is always >= 1.
func (c Curve) LevelForTotal(total float64) int {
	if total <= 0 {
		return 1
	}

	// Exponential search upper bound, then binary search.
	low := 1
	high := 2
	for c.ThresholdForLevel(high) <= total {
		low = high
		high *= 2
		if high > 1_000_000 {
			break
		}
	}

	for low+1 < high {
		mid := low + (high-low)/2
		if c.ThresholdForLevel(mid) <= total {
			low = mid
		} else {
			high = mid
		}
	}
	return low
}

// SpanForLevel returns the XP needed to go from level to level+1.
func (c Curve) SpanForLevel(level int) float64 {
	if level < 1 {
		level = 1
	}
	span := c.ThresholdForLevel(level+1) - c.ThresholdForLevel(level)
	if span <= 0 {
		span = 1
	}
	return span
}

// NewProgress returns a zeroed record positioned at level 1.
func (c Curve) NewProgress() storage.ProgressRecord {
	return storage.ProgressRecord{
		Level:               1,
		Experience:          0,
		ExperienceToNext:    c.SpanForLevel(1),
		EffectiveMultiplier: 1,
	}
}

// AddExperience adds delta XP to the record, cascading level-ups until
// Experience < ExperienceToNext again. Overflow is carried, never dropped.
// It returns the number of levels gained.
func (c Curve) AddExperience(rec *storage.ProgressRecord, delta float64) int {
	c.normalize(rec)
	if delta <= 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0
	}

	rec.Experience += delta
	gained := 0
	for rec.Experience >= rec.ExperienceToNext {
		rec.Experience -= rec.ExperienceToNext
		rec.Level++
		gained++
		rec.ExperienceToNext = c.SpanForLevel(rec.Level)
	}
	return gained
}

// normalize repairs a record loaded from a corrupt or older snapshot so
// the Experience < ExperienceToNext invariant holds before mutation.
func (c Curve) normalize(rec *storage.ProgressRecord) {
	if rec.Level < 1 {
		rec.Level = 1
	}
	if rec.Experience < 0 || math.IsNaN(rec.Experience) {
		rec.Experience = 0
	}
	want := c.SpanForLevel(rec.Level)
	if rec.ExperienceToNext != want {
		rec.ExperienceToNext = want
	}
	if rec.EffectiveMultiplier < 1 {
		rec.EffectiveMultiplier = 1
	}
}
