package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"lifeforge/internal/storage"
)

// catchUpMinGap guards resume against double invocation: a gap below this
// means the engine is already caught up and CatchUp is a no-op.
const catchUpMinGap = 5 * time.Second

// CatchUpResult summarizes one resume reconstruction.
type CatchUpResult struct {
	ElapsedHours     float64
	XPAccrued        float64
	DaysCrossed      int
	StreaksEvaluated int
	StreaksDecayed   int
	Skipped          bool
}

// CatchUp reconstructs progress across the suspend gap since the last
// recorded tick. The gap is clamped to [0, MaxOfflineHours]: a month-old
// client replays at most the ceiling, and a backward system clock replays
// nothing. The clamped duration feeds the passive accumulator once, streak
// decay runs once per crossed day boundary (not per hour), and TimeState
// then advances to now. All writes land in one transaction before any
// subsequent tick can observe TimeState.
func (e *Engine) CatchUp(ctx context.Context) *CatchUpResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	gap := now.Sub(e.times.LastTick)
	if gap < catchUpMinGap {
		return &CatchUpResult{Skipped: true}
	}

	elapsed := gap.Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > e.cfg.MaxOfflineHours {
		elapsed = e.cfg.MaxOfflineHours
	}

	mult := Compose(e.activeSourcesLocked(now), now)
	gained := Accumulate(&e.passive, now, elapsed, mult)

	res := &CatchUpResult{
		ElapsedHours: elapsed,
		XPAccrued:    gained,
	}

	oldDay := e.times.DayStart
	res.DaysCrossed = CadenceDaily.PeriodsBetween(oldDay, midnightOf(now))

	// Decay is idempotent, so boundaries older than the replay ceiling
	// cannot change anything; skip straight past them.
	first := 1
	if maxDays := int(e.cfg.MaxOfflineHours/24) + 2; res.DaysCrossed > maxDays {
		first = res.DaysCrossed - maxDays + 1
	}

	dirty := map[string]*storage.StreakState{}
	for i := first; i <= res.DaysCrossed; i++ {
		boundary := midnightOf(oldDay.AddDate(0, 0, i))
		for id, st := range e.streaks {
			res.StreaksEvaluated++
			if CheckAndDecay(st, e.cadenceOfLocked(id), boundary) {
				res.StreaksDecayed++
				dirty[id] = st
			}
		}
	}

	e.advanceTimeLocked(now)
	e.flushCatchUp(ctx, dirty)

	e.log.Info("offline catch-up applied",
		zap.Float64("elapsed_hours", elapsed),
		zap.Float64("xp_accrued", gained),
		zap.Int("days_crossed", res.DaysCrossed),
		zap.Int("streaks_decayed", res.StreaksDecayed))
	return res
}

// flushCatchUp writes the catch-up mutations atomically. Failure is
// non-fatal; the session continues in memory.
func (e *Engine) flushCatchUp(ctx context.Context, dirty map[string]*storage.StreakState) {
	err := storage.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if err := e.putTx(ctx, tx, storage.PassiveKey, &e.passive); err != nil {
			return err
		}
		if err := e.putTx(ctx, tx, storage.TimeKey, &e.times); err != nil {
			return err
		}
		for id, st := range dirty {
			if err := e.putTx(ctx, tx, storage.StreakKey(id), st); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.log.Warn("persist catch-up; continuing in-memory", zap.Error(err))
	}
}

func (e *Engine) putTx(ctx context.Context, tx *sql.Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.states.PutTx(ctx, tx, key, raw)
}
