package engine

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"lifeforge/internal/storage"
)

// DefineActivityInput describes a new trackable activity.
type DefineActivityInput struct {
	ID      string
	Name    string
	Cadence Cadence
}

// DefineActivity registers an activity with an explicit cadence. Weekly and
// monthly cadences are gated behind global level.
func (e *Engine) DefineActivity(ctx context.Context, in DefineActivityInput) (*storage.Activity, error) {
	id := normalizeActivityID(in.ID)
	if id == "" {
		return nil, errors.New("activity id is required")
	}
	if in.Cadence == "" {
		in.Cadence = DefaultCadence
	}
	if !in.Cadence.IsValid() {
		return nil, errors.New("invalid cadence: " + string(in.Cadence))
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = id
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	global := e.ensureProgressLocked(storage.GlobalID)
	if err := CanUseCadence(global.Level, in.Cadence); err != nil {
		return nil, err
	}

	act := storage.Activity{
		ID:        id,
		Name:      name,
		Cadence:   string(in.Cadence),
		CreatedAt: e.Now().UTC(),
	}
	// Redefining keeps the original creation time.
	if prev, err := e.activities.Get(ctx, id); err == nil && prev != nil {
		act.CreatedAt = prev.CreatedAt
	}
	if err := e.activities.Upsert(ctx, act); err != nil {
		return nil, err
	}
	e.acts[id] = act
	return &act, nil
}

// ActivityView joins an activity with its streak and progress snapshot.
type ActivityView struct {
	Activity storage.Activity
	Streak   storage.StreakState
	Progress storage.ProgressRecord
}

// Activities returns a snapshot of every known activity, including ones
// referenced by completion before being defined.
func (e *Engine) Activities() []ActivityView {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := map[string]bool{}
	var out []ActivityView
	add := func(id string) {
		if seen[id] || id == storage.GlobalID {
			return
		}
		seen[id] = true
		v := ActivityView{Activity: e.activityOrDefaultLocked(id)}
		if st, ok := e.streaks[id]; ok {
			v.Streak = *st
		}
		if rec, ok := e.progress[id]; ok {
			v.Progress = *rec
		} else {
			v.Progress = e.curve.NewProgress()
		}
		out = append(out, v)
	}

	for id := range e.acts {
		add(id)
	}
	for id := range e.streaks {
		add(id)
	}
	for id := range e.progress {
		add(id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Activity.ID < out[j].Activity.ID })
	return out
}

func (e *Engine) activityOrDefaultLocked(id string) storage.Activity {
	if a, ok := e.acts[id]; ok {
		return a
	}
	return storage.Activity{ID: id, Name: id, Cadence: string(DefaultCadence)}
}

// ensureActivityLocked lazily creates a daily-cadence activity on first
// reference, matching the lazy-defaults lifecycle of progress and streak
// records.
func (e *Engine) ensureActivityLocked(ctx context.Context, id string) storage.Activity {
	id = normalizeActivityID(id)
	if a, ok := e.acts[id]; ok {
		return a
	}
	act := storage.Activity{
		ID:        id,
		Name:      id,
		Cadence:   string(DefaultCadence),
		CreatedAt: e.Now().UTC(),
	}
	if err := e.activities.Upsert(ctx, act); err != nil {
		e.log.Warn("persist activity; continuing in-memory", zap.String("activity", id), zap.Error(err))
	}
	e.acts[id] = act
	return act
}

func normalizeActivityID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
