package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"lifeforge/internal/config"
	"lifeforge/internal/storage"
)

// Engine owns all progression state: progress records, streaks, the idle
// accumulator and the time state. Feature stores and the UI read snapshots;
// every mutation goes through an Engine operation. Operations are
// synchronous and serialized, so a resume catch-up always completes before
// the next tick reads TimeState.
type Engine struct {
	db         *sql.DB
	states     *storage.StateRepo
	activities *storage.ActivityRepo
	cfg        config.Config
	curve      Curve
	log        *zap.Logger
	bus        *Bus

	// Now supplies wall-clock time; replaceable in tests.
	Now func() time.Time

	mu        sync.Mutex
	progress  map[string]*storage.ProgressRecord
	streaks   map[string]*storage.StreakState
	acts      map[string]storage.Activity
	passive   storage.PassiveState
	times     storage.TimeState
	providers []SourceProvider
}

func New(db *sql.DB, cfg config.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:         db,
		states:     storage.NewStateRepo(db),
		activities: storage.NewActivityRepo(db),
		cfg:        cfg,
		curve:      NewCurve(cfg.LevelXPMultiplier),
		log:        log,
		bus:        NewBus(),
		Now:        time.Now,
		progress:   map[string]*storage.ProgressRecord{},
		streaks:    map[string]*storage.StreakState{},
		acts:       map[string]storage.Activity{},
	}
}

func (e *Engine) Bus() *Bus { return e.bus }

// RegisterSourceProvider adds an external multiplier-source owner (quest,
// seasonal event store, ...) whose snapshot feeds composition.
func (e *Engine) RegisterSourceProvider(p SourceProvider) {
	if p == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers = append(e.providers, p)
}

// Load reads persisted state into memory. Corrupt or missing records are
// reinitialized to defaults with a warning; history is never fabricated.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()

	pairs, err := e.states.ListPrefix(ctx, storage.ProgressPrefix)
	if err != nil {
		return err
	}
	for key, raw := range pairs {
		id := key[len(storage.ProgressPrefix):]
		var rec storage.ProgressRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			e.log.Warn("corrupt progress record, reinitializing", zap.String("key", key), zap.Error(err))
			rec = e.curve.NewProgress()
		}
		e.curve.normalize(&rec)
		e.progress[id] = &rec
	}

	pairs, err = e.states.ListPrefix(ctx, storage.StreakPrefix)
	if err != nil {
		return err
	}
	for key, raw := range pairs {
		id := key[len(storage.StreakPrefix):]
		var st storage.StreakState
		if err := json.Unmarshal(raw, &st); err != nil {
			e.log.Warn("corrupt streak record, reinitializing", zap.String("key", key), zap.Error(err))
			st = storage.StreakState{}
		}
		if st.CurrentStreak < 0 {
			st.CurrentStreak = 0
		}
		if st.LongestStreak < st.CurrentStreak {
			st.LongestStreak = st.CurrentStreak
		}
		e.streaks[id] = &st
	}

	acts, err := e.activities.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, a := range acts {
		if _, parseErr := ParseCadence(a.Cadence); parseErr != nil {
			a.Cadence = string(DefaultCadence)
		}
		e.acts[a.ID] = a
	}

	e.loadPassive(ctx, now)
	e.loadTime(ctx, now)
	return nil
}

func (e *Engine) loadPassive(ctx context.Context, now time.Time) {
	st := storage.PassiveState{LastUpdate: now}
	raw, ok, err := e.states.Get(ctx, storage.PassiveKey)
	if err != nil {
		e.log.Warn("read passive state", zap.Error(err))
	} else if ok {
		if err := json.Unmarshal(raw, &st); err != nil {
			e.log.Warn("corrupt passive state, reinitializing", zap.Error(err))
			st = storage.PassiveState{LastUpdate: now}
		}
	}
	// Rate and capacity are tuning constants; config wins over the snapshot.
	st.RatePerHour = e.cfg.PassiveXPBase
	st.Capacity = e.cfg.PassiveCapacity
	if st.LastUpdate.IsZero() {
		st.LastUpdate = now
	}
	e.passive = st
	clampStored(&e.passive)
	e.syncPassiveUnlock()
}

// loadTime initializes TimeState. A missing or unparseable record starts
// fresh at now with zero catch-up rather than guessing prior state.
func (e *Engine) loadTime(ctx context.Context, now time.Time) {
	fresh := storage.TimeState{LastTick: now, DayStart: midnightOf(now)}
	raw, ok, err := e.states.Get(ctx, storage.TimeKey)
	if err != nil {
		e.log.Warn("read time state", zap.Error(err))
		e.times = fresh
		return
	}
	if !ok {
		e.times = fresh
		return
	}
	var ts storage.TimeState
	if err := json.Unmarshal(raw, &ts); err != nil || ts.LastTick.IsZero() || ts.DayStart.IsZero() {
		e.log.Warn("corrupt time state, reinitializing", zap.Error(err))
		e.times = fresh
		return
	}
	e.times = ts
}

// CompletionResult reports what a recorded completion did.
type CompletionResult struct {
	ActivityID  string
	XPAwarded   float64
	Multiplier  float64
	LevelBefore int
	LevelAfter  int
	LevelUp     bool
	Streak      StreakResult
}

// RecordCompletion applies a user completion for the activity: the streak
// moves, completion XP scaled by the effective multiplier lands on both the
// activity record and the global character, and an xp gain event fires.
// Re-completing within the same period leaves the streak alone and awards
// half XP.
func (e *Engine) RecordCompletion(ctx context.Context, activityID string) (*CompletionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	// Normalize once so streak, progress and persist keys all agree with
	// the activity row; "Gym" and "gym" are the same activity.
	activityID = normalizeActivityID(activityID)
	act := e.ensureActivityLocked(ctx, activityID)
	cadence := Cadence(act.Cadence)

	st := e.ensureStreakLocked(activityID)
	streakRes := RecordCompletion(st, cadence, now)

	mult := Compose(e.activeSourcesLocked(now), now)
	xp := e.cfg.CompletionXPBase * mult
	if streakRes.SamePeriod {
		xp *= 0.5
	}

	rec := e.ensureProgressLocked(activityID)
	global := e.ensureProgressLocked(storage.GlobalID)
	levelBefore := global.Level

	e.curve.AddExperience(rec, xp)
	e.curve.AddExperience(global, xp)
	rec.EffectiveMultiplier = mult
	global.EffectiveMultiplier = mult
	e.syncPassiveUnlock()

	e.persist(ctx, storage.ProgressKey(activityID), rec)
	e.persist(ctx, storage.ProgressKey(storage.GlobalID), global)
	e.persist(ctx, storage.StreakKey(activityID), st)
	e.persist(ctx, storage.PassiveKey, &e.passive)

	e.bus.Publish(XPGain{ActivityID: activityID, Amount: xp, Origin: OriginCompletion, At: now})

	return &CompletionResult{
		ActivityID:  activityID,
		XPAwarded:   xp,
		Multiplier:  mult,
		LevelBefore: levelBefore,
		LevelAfter:  global.Level,
		LevelUp:     global.Level > levelBefore,
		Streak:      streakRes,
	}, nil
}

// CollectResult reports a manual drain of the idle accumulator.
type CollectResult struct {
	Amount      float64
	LevelBefore int
	LevelAfter  int
	LevelUp     bool
}

// CollectPassive drains the accumulator into global XP. Collecting while
// empty is a no-op returning 0.
func (e *Engine) CollectPassive(ctx context.Context) (*CollectResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	amount := Collect(&e.passive)
	global := e.ensureProgressLocked(storage.GlobalID)
	levelBefore := global.Level

	if amount > 0 {
		e.curve.AddExperience(global, amount)
		e.syncPassiveUnlock()
		e.persist(ctx, storage.ProgressKey(storage.GlobalID), global)
		e.bus.Publish(XPGain{ActivityID: storage.GlobalID, Amount: amount, Origin: OriginCollect, At: now})
	}
	e.persist(ctx, storage.PassiveKey, &e.passive)

	return &CollectResult{
		Amount:      amount,
		LevelBefore: levelBefore,
		LevelAfter:  global.Level,
		LevelUp:     global.Level > levelBefore,
	}, nil
}

// Tick is the lightweight foreground heartbeat: accrue since the last
// tick, run same-day streak decay checks, advance TimeState and persist.
// The offline clamp is deliberately absent here; large gaps belong to
// CatchUp on resume.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	elapsed := now.Sub(e.times.LastTick).Hours()
	if elapsed < 0 {
		elapsed = 0
	}

	mult := Compose(e.activeSourcesLocked(now), now)
	Accumulate(&e.passive, now, elapsed, mult)

	for id, st := range e.streaks {
		if CheckAndDecay(st, e.cadenceOfLocked(id), now) {
			e.log.Info("streak decayed", zap.String("activity", id))
			e.persist(ctx, storage.StreakKey(id), st)
		}
	}

	e.advanceTimeLocked(now)
	e.persist(ctx, storage.PassiveKey, &e.passive)
	e.persist(ctx, storage.TimeKey, &e.times)
}

// EffectiveMultiplier composes the current snapshot of all sources.
func (e *Engine) EffectiveMultiplier() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.Now()
	return Compose(e.activeSourcesLocked(now), now)
}

// advanceTimeLocked moves LastTick to now and DayStart to now's local
// midnight. DayStart never moves backward.
func (e *Engine) advanceTimeLocked(now time.Time) {
	e.times.LastTick = now
	if day := midnightOf(now); day.After(e.times.DayStart) {
		e.times.DayStart = day
	}
}

func (e *Engine) ensureProgressLocked(id string) *storage.ProgressRecord {
	if rec, ok := e.progress[id]; ok {
		return rec
	}
	rec := e.curve.NewProgress()
	e.progress[id] = &rec
	return &rec
}

func (e *Engine) ensureStreakLocked(id string) *storage.StreakState {
	if st, ok := e.streaks[id]; ok {
		return st
	}
	st := &storage.StreakState{}
	e.streaks[id] = st
	return st
}

func (e *Engine) cadenceOfLocked(id string) Cadence {
	if a, ok := e.acts[id]; ok {
		if c := Cadence(a.Cadence); c.IsValid() {
			return c
		}
	}
	return DefaultCadence
}

// syncPassiveUnlock unlocks idle accrual once the global level reaches the
// gate. Unlocking never reaches back in time: LastUpdate kept advancing
// while locked.
func (e *Engine) syncPassiveUnlock() {
	if e.passive.Unlocked {
		return
	}
	global, ok := e.progress[storage.GlobalID]
	if ok && PassiveUnlocked(global.Level) {
		e.passive.Unlocked = true
	}
}

// persist writes one record through to storage. Persistence failure is
// non-fatal: the engine logs a warning and keeps serving from memory for
// the rest of the session.
func (e *Engine) persist(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		e.log.Warn("marshal state", zap.String("key", key), zap.Error(err))
		return
	}
	if err := e.states.Put(ctx, key, raw); err != nil {
		e.log.Warn("persist state; continuing in-memory", zap.String("key", key), zap.Error(err))
	}
}

// Reset wipes all engine state and starts over at level 1.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.states.Clear(ctx); err != nil {
		return err
	}
	if err := e.activities.Clear(ctx); err != nil {
		return err
	}

	now := e.Now()
	e.progress = map[string]*storage.ProgressRecord{}
	e.streaks = map[string]*storage.StreakState{}
	e.acts = map[string]storage.Activity{}
	e.passive = storage.PassiveState{
		RatePerHour: e.cfg.PassiveXPBase,
		Capacity:    e.cfg.PassiveCapacity,
		LastUpdate:  now,
	}
	e.times = storage.TimeState{LastTick: now, DayStart: midnightOf(now)}
	return nil
}

// Snapshot accessors. Values are copies; callers never mutate engine state.

func (e *Engine) GlobalProgress() storage.ProgressRecord {
	return e.Progress(storage.GlobalID)
}

func (e *Engine) Progress(id string) storage.ProgressRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec, ok := e.progress[normalizeActivityID(id)]; ok {
		return *rec
	}
	return e.curve.NewProgress()
}

func (e *Engine) Streak(id string) storage.StreakState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.streaks[normalizeActivityID(id)]; ok {
		return *st
	}
	return storage.StreakState{}
}

func (e *Engine) Passive() storage.PassiveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.passive
	return st
}

func (e *Engine) TimeState() storage.TimeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.times
}

// TotalXP returns the global record's accumulated XP across levels.
func (e *Engine) TotalXP() float64 {
	rec := e.GlobalProgress()
	return e.curve.ThresholdForLevel(rec.Level) + rec.Experience
}

func (e *Engine) Curve() Curve { return e.curve }
