package engine

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"lifeforge/internal/config"
	"lifeforge/internal/storage"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time  { return c.t }
func (c *clock) set(t time.Time) { c.t = t }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.PassiveXPBase = 10
	cfg.PassiveCapacity = 10_000
	cfg.CompletionXPBase = 50
	cfg.MaxOfflineHours = 72
	return cfg
}

func openTestEngine(t *testing.T, path string, cfg config.Config, at time.Time) (*Engine, *clock, func()) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	c := &clock{t: at}
	eng := New(db, cfg, zap.NewNop())
	eng.Now = c.now
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load engine: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}
	return eng, c, cleanup
}

func newTestEngine(t *testing.T, at time.Time) (*Engine, *clock, func()) {
	t.Helper()
	return openTestEngine(t, filepath.Join(t.TempDir(), "test.db"), testConfig(), at)
}

func seedState(t *testing.T, path string, key string, v any) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("open db for seed: %v", err)
	}
	defer db.Close()

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := storage.NewStateRepo(db).Put(ctx, key, raw); err != nil {
		t.Fatalf("seed %q: %v", key, err)
	}
}

func seedRaw(t *testing.T, path string, key string, raw string) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("open db for seed: %v", err)
	}
	defer db.Close()
	if err := storage.NewStateRepo(db).Put(ctx, key, []byte(raw)); err != nil {
		t.Fatalf("seed %q: %v", key, err)
	}
}

func TestRecordCompletionFlow(t *testing.T) {
	eng, _, cleanup := newTestEngine(t, day(1, 9))
	defer cleanup()
	ctx := context.Background()

	res, err := eng.RecordCompletion(ctx, "reading")
	if err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}
	if res.Streak.CurrentStreak != 1 {
		t.Fatalf("streak=%d, want 1", res.Streak.CurrentStreak)
	}
	// New streak of 1 publishes a streak source, so the multiplier is
	// 1 + streak_base.
	wantMult := 1 + testConfig().Multipliers.StreakBase
	if math.Abs(res.Multiplier-wantMult) > 1e-9 {
		t.Fatalf("multiplier=%v, want %v", res.Multiplier, wantMult)
	}
	wantXP := testConfig().CompletionXPBase * wantMult
	if math.Abs(res.XPAwarded-wantXP) > 1e-9 {
		t.Fatalf("xp=%v, want %v", res.XPAwarded, wantXP)
	}

	global := eng.GlobalProgress()
	if global.Level != 1 || math.Abs(global.Experience-wantXP) > 1e-9 {
		t.Fatalf("global progress=%+v, want level 1 with %v xp", global, wantXP)
	}
	if got := eng.TotalXP(); math.Abs(got-wantXP) > 1e-9 {
		t.Fatalf("total xp=%v, want %v", got, wantXP)
	}
}

func TestCompletionIDsAreCaseInsensitive(t *testing.T) {
	eng, _, cleanup := newTestEngine(t, day(1, 9))
	defer cleanup()
	ctx := context.Background()

	if _, err := eng.RecordCompletion(ctx, "Gym"); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	second, err := eng.RecordCompletion(ctx, " gym ")
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if !second.Streak.SamePeriod {
		t.Fatalf("mixed-case repeat opened a fresh streak: %+v", second.Streak)
	}
	if second.ActivityID != "gym" {
		t.Fatalf("result id=%q, want normalized", second.ActivityID)
	}

	views := eng.Activities()
	if len(views) != 1 || views[0].Activity.ID != "gym" {
		t.Fatalf("activities=%+v, want single gym entry", views)
	}
	if got := eng.Streak("GYM").CurrentStreak; got != 1 {
		t.Fatalf("streak lookup by mixed case=%d, want 1", got)
	}
}

func TestSamePeriodCompletionHalvesXP(t *testing.T) {
	eng, _, cleanup := newTestEngine(t, day(1, 9))
	defer cleanup()
	ctx := context.Background()

	first, err := eng.RecordCompletion(ctx, "reading")
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	second, err := eng.RecordCompletion(ctx, "reading")
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if !second.Streak.SamePeriod {
		t.Fatalf("expected same-period result")
	}
	if math.Abs(second.XPAwarded-first.XPAwarded/2) > 1e-9 {
		t.Fatalf("repeat xp=%v, want half of %v", second.XPAwarded, first.XPAwarded)
	}
}

func TestXPGainEventPublished(t *testing.T) {
	eng, _, cleanup := newTestEngine(t, day(1, 9))
	defer cleanup()
	ctx := context.Background()

	var got []XPGain
	eng.Bus().Subscribe(func(g XPGain) { got = append(got, g) })

	res, err := eng.RecordCompletion(ctx, "reading")
	if err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("events=%d, want 1", len(got))
	}
	if got[0].Origin != OriginCompletion || got[0].Amount != res.XPAwarded {
		t.Fatalf("event=%+v, want completion of %v", got[0], res.XPAwarded)
	}
}

func TestCatchUpClampsElapsed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	seedState(t, path, storage.ProgressKey(storage.GlobalID), storage.ProgressRecord{Level: 5})

	eng, c, cleanup := openTestEngine(t, path, testConfig(), day(1, 8))
	defer cleanup()
	ctx := context.Background()

	if !eng.Passive().Unlocked {
		t.Fatalf("passive should unlock at seeded level 5")
	}

	// Suspend from day 1 08:00 to day 4 09:00 = 73h, ceiling is 72.
	c.set(day(4, 9))
	res := eng.CatchUp(ctx)
	if res.Skipped {
		t.Fatalf("catch-up skipped")
	}
	if res.ElapsedHours != 72 {
		t.Fatalf("elapsed=%v, want clamp to 72", res.ElapsedHours)
	}

	// Level 5 grants one achievement source.
	wantMult := 1 + testConfig().Multipliers.AchievementBase
	wantXP := 72 * testConfig().PassiveXPBase * wantMult
	if math.Abs(res.XPAccrued-wantXP) > 1e-6 {
		t.Fatalf("accrued=%v, want %v", res.XPAccrued, wantXP)
	}

	ts := eng.TimeState()
	if !ts.LastTick.Equal(day(4, 9)) {
		t.Fatalf("LastTick=%v, want day 4 09:00", ts.LastTick)
	}
	if !ts.DayStart.Equal(midnightOf(day(4, 9))) {
		t.Fatalf("DayStart=%v, want day 4 midnight", ts.DayStart)
	}
}

func TestCatchUpBackwardClock(t *testing.T) {
	eng, c, cleanup := newTestEngine(t, day(2, 8))
	defer cleanup()
	ctx := context.Background()

	c.set(day(1, 8))
	res := eng.CatchUp(ctx)
	if !res.Skipped && res.ElapsedHours != 0 {
		t.Fatalf("backward clock elapsed=%v, want 0", res.ElapsedHours)
	}
	if res.XPAccrued != 0 {
		t.Fatalf("backward clock accrued %v xp", res.XPAccrued)
	}
	if got := eng.TimeState().LastTick; !got.Equal(day(2, 8)) {
		t.Fatalf("LastTick moved backward to %v", got)
	}
}

func TestCatchUpIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	seedState(t, path, storage.ProgressKey(storage.GlobalID), storage.ProgressRecord{Level: 5})

	eng, c, cleanup := openTestEngine(t, path, testConfig(), day(1, 8))
	defer cleanup()
	ctx := context.Background()

	c.set(day(1, 12))
	first := eng.CatchUp(ctx)
	if first.Skipped || first.ElapsedHours != 4 {
		t.Fatalf("first catch-up=%+v, want 4h", first)
	}
	storedAfter := eng.Passive().Stored

	second := eng.CatchUp(ctx)
	if !second.Skipped {
		t.Fatalf("second catch-up not skipped: %+v", second)
	}
	if got := eng.Passive().Stored; got != storedAfter {
		t.Fatalf("second catch-up changed stored: %v -> %v", storedAfter, got)
	}
	if got := eng.TimeState().LastTick; !got.Equal(day(1, 12)) {
		t.Fatalf("second catch-up moved LastTick to %v", got)
	}
}

func TestCatchUpDecaysStreaksOncePerBoundary(t *testing.T) {
	eng, c, cleanup := newTestEngine(t, day(1, 8))
	defer cleanup()
	ctx := context.Background()

	c.set(day(1, 9))
	if _, err := eng.RecordCompletion(ctx, "habit"); err != nil {
		t.Fatalf("completion day1: %v", err)
	}
	c.set(day(2, 9))
	if _, err := eng.RecordCompletion(ctx, "habit"); err != nil {
		t.Fatalf("completion day2: %v", err)
	}
	if got := eng.Streak("habit").CurrentStreak; got != 2 {
		t.Fatalf("streak=%d, want 2", got)
	}

	c.set(day(4, 9))
	res := eng.CatchUp(ctx)
	if res.DaysCrossed != 3 {
		t.Fatalf("days crossed=%d, want 3", res.DaysCrossed)
	}
	// One streak evaluated at each crossed boundary, not per elapsed hour.
	if res.StreaksEvaluated != 3 {
		t.Fatalf("streaks evaluated=%d, want 3", res.StreaksEvaluated)
	}
	if res.StreaksDecayed != 1 {
		t.Fatalf("streaks decayed=%d, want 1", res.StreaksDecayed)
	}

	st := eng.Streak("habit")
	if st.CurrentStreak != 0 || st.LongestStreak != 2 {
		t.Fatalf("streak after decay=%+v, want 0/2", st)
	}
}

func TestTickRunsSameDayDecay(t *testing.T) {
	eng, c, cleanup := newTestEngine(t, day(1, 8))
	defer cleanup()
	ctx := context.Background()

	c.set(day(1, 9))
	if _, err := eng.RecordCompletion(ctx, "habit"); err != nil {
		t.Fatalf("completion: %v", err)
	}

	c.set(day(4, 9))
	eng.Tick(ctx)
	if got := eng.Streak("habit").CurrentStreak; got != 0 {
		t.Fatalf("streak=%d after tick past grace, want 0", got)
	}
	if got := eng.TimeState().LastTick; !got.Equal(day(4, 9)) {
		t.Fatalf("tick did not advance LastTick: %v", got)
	}
}

func TestCorruptStateReinitializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	seedRaw(t, path, storage.TimeKey, "{not json")
	seedRaw(t, path, storage.ProgressKey(storage.GlobalID), "also not json")

	eng, _, cleanup := openTestEngine(t, path, testConfig(), day(5, 10))
	defer cleanup()
	ctx := context.Background()

	// Fresh TimeState means zero catch-up, never a fabricated gap.
	res := eng.CatchUp(ctx)
	if !res.Skipped {
		t.Fatalf("catch-up after corrupt time state applied %+v", res)
	}
	global := eng.GlobalProgress()
	if global.Level != 1 || global.Experience != 0 {
		t.Fatalf("corrupt progress not reset: %+v", global)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	eng, c, cleanup := openTestEngine(t, path, testConfig(), day(1, 9))
	if _, err := eng.RecordCompletion(ctx, "reading"); err != nil {
		t.Fatalf("completion day1: %v", err)
	}
	c.set(day(2, 9))
	if _, err := eng.RecordCompletion(ctx, "reading"); err != nil {
		t.Fatalf("completion day2: %v", err)
	}
	want := eng.GlobalProgress()
	cleanup()

	reopened, _, cleanup2 := openTestEngine(t, path, testConfig(), day(2, 10))
	defer cleanup2()

	if got := reopened.Streak("reading").CurrentStreak; got != 2 {
		t.Fatalf("reloaded streak=%d, want 2", got)
	}
	got := reopened.GlobalProgress()
	if got.Level != want.Level || math.Abs(got.Experience-want.Experience) > 1e-9 {
		t.Fatalf("reloaded progress=%+v, want %+v", got, want)
	}
	views := reopened.Activities()
	if len(views) != 1 || views[0].Activity.ID != "reading" {
		t.Fatalf("reloaded activities=%+v", views)
	}
}

func TestPassiveLockedBelowGate(t *testing.T) {
	eng, c, cleanup := newTestEngine(t, day(1, 8))
	defer cleanup()
	ctx := context.Background()

	c.set(day(1, 18))
	res := eng.CatchUp(ctx)
	if res.XPAccrued != 0 {
		t.Fatalf("locked accumulator accrued %v", res.XPAccrued)
	}
	p := eng.Passive()
	if p.Unlocked {
		t.Fatalf("passive unlocked at level 1")
	}
	if !p.LastUpdate.Equal(day(1, 18)) {
		t.Fatalf("locked accumulator LastUpdate=%v, want now", p.LastUpdate)
	}
}

func TestCollectGrantsGlobalXP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	seedState(t, path, storage.ProgressKey(storage.GlobalID), storage.ProgressRecord{Level: 5})

	eng, c, cleanup := openTestEngine(t, path, testConfig(), day(1, 8))
	defer cleanup()
	ctx := context.Background()

	c.set(day(1, 10))
	eng.CatchUp(ctx)
	stored := eng.Passive().Stored
	if stored <= 0 {
		t.Fatalf("nothing accrued before collect")
	}

	res, err := eng.CollectPassive(ctx)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.Amount != stored {
		t.Fatalf("collected=%v, want %v", res.Amount, stored)
	}
	if got := eng.Passive().Stored; got != 0 {
		t.Fatalf("stored=%v after collect, want 0", got)
	}

	again, err := eng.CollectPassive(ctx)
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}
	if again.Amount != 0 {
		t.Fatalf("second collect=%v, want 0", again.Amount)
	}
}

func TestDefineActivityCadenceGates(t *testing.T) {
	eng, _, cleanup := newTestEngine(t, day(1, 9))
	defer cleanup()
	ctx := context.Background()

	_, err := eng.DefineActivity(ctx, DefineActivityInput{ID: "gym", Cadence: CadenceWeekly})
	if err == nil {
		t.Fatalf("expected gate error for weekly cadence at level 1")
	}
	if _, ok := err.(GateError); !ok {
		t.Fatalf("err=%T, want GateError", err)
	}

	if _, err := eng.DefineActivity(ctx, DefineActivityInput{ID: "walk", Cadence: CadenceDaily}); err != nil {
		t.Fatalf("daily define: %v", err)
	}
}

func TestRedefineActivityKeepsCreatedAt(t *testing.T) {
	eng, c, cleanup := newTestEngine(t, day(1, 9))
	defer cleanup()
	ctx := context.Background()

	first, err := eng.DefineActivity(ctx, DefineActivityInput{ID: "walk", Name: "Walk"})
	if err != nil {
		t.Fatalf("define: %v", err)
	}

	c.set(day(3, 9))
	second, err := eng.DefineActivity(ctx, DefineActivityInput{ID: "walk", Name: "Evening walk"})
	if err != nil {
		t.Fatalf("redefine: %v", err)
	}
	if second.Name != "Evening walk" {
		t.Fatalf("name=%q not updated", second.Name)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("redefine moved CreatedAt: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestRegisteredProviderFeedsComposition(t *testing.T) {
	eng, _, cleanup := newTestEngine(t, day(1, 9))
	defer cleanup()

	eng.RegisterSourceProvider(staticSources{{ID: "quest:epic", Kind: SourceQuest, Value: 0.5}})
	got := eng.EffectiveMultiplier()
	if math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("multiplier=%v, want 1.5 from registered provider", got)
	}
}

type staticSources []Source

func (s staticSources) Sources(time.Time) []Source { return s }
