package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"lifeforge/internal/storage"
)

// Multiplier-source owners. The engine itself derives streak, achievement
// and skill-mastery sources from its own state; the seasonal source comes
// from the configured event window; quest sources are minted by external
// feature stores via NewQuestSource and registered providers.

// achievementLevels are global-level milestones that each grant one
// achievement bonus.
var achievementLevels = []int{5, 10, 15, 20}

// skillMasteryLevel is the per-activity level at which an activity counts
// as mastered.
const skillMasteryLevel = 10

// NewQuestSource mints a quest-owned bonus with a unique id. The quest
// store keeps it alive and drops it when the quest expires; the composer
// only stops counting it once ExpiresAt passes.
func NewQuestSource(value float64, expiresAt time.Time) Source {
	return Source{
		ID:        "quest:" + uuid.NewString(),
		Kind:      SourceQuest,
		Value:     value,
		ExpiresAt: &expiresAt,
	}
}

// ActiveSources returns the full snapshot of multiplier sources at now,
// engine-derived plus registered providers. Expired entries are included;
// Compose filters them, their owners delete them.
func (e *Engine) ActiveSources() []Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeSourcesLocked(e.Now())
}

func (e *Engine) activeSourcesLocked(now time.Time) []Source {
	out := e.derivedSourcesLocked(now)
	for _, p := range e.providers {
		out = append(out, p.Sources(now)...)
	}
	return out
}

func (e *Engine) derivedSourcesLocked(now time.Time) []Source {
	var out []Source

	if best := e.bestStreakLocked(); best > 0 {
		out = append(out, Source{
			ID:    "streak:best",
			Kind:  SourceStreak,
			Value: e.cfg.Multipliers.StreakBase * float64(best),
		})
	}

	var globalLevel int
	if rec, ok := e.progress[storage.GlobalID]; ok {
		globalLevel = rec.Level
	}
	for _, lvl := range achievementLevels {
		if globalLevel >= lvl {
			out = append(out, Source{
				ID:    fmt.Sprintf("achievement:level-%d", lvl),
				Kind:  SourceAchievement,
				Value: e.cfg.Multipliers.AchievementBase,
			})
		}
	}

	if mastered := e.masteredCountLocked(); mastered > 0 {
		out = append(out, Source{
			ID:    "skill:mastery",
			Kind:  SourceSkill,
			Value: e.cfg.Multipliers.SkillMastery * float64(mastered),
		})
	}

	if s := e.cfg.Season; s != nil && !now.Before(s.Starts) && now.Before(s.Ends) {
		ends := s.Ends
		out = append(out, Source{
			ID:        "seasonal:" + s.Name,
			Kind:      SourceSeasonal,
			Value:     e.cfg.Multipliers.SeasonalEvent,
			ExpiresAt: &ends,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) bestStreakLocked() int {
	best := 0
	for _, st := range e.streaks {
		if st.CurrentStreak > best {
			best = st.CurrentStreak
		}
	}
	return best
}

func (e *Engine) masteredCountLocked() int {
	n := 0
	for id, rec := range e.progress {
		if id == storage.GlobalID {
			continue
		}
		if rec.Level >= skillMasteryLevel {
			n++
		}
	}
	return n
}
