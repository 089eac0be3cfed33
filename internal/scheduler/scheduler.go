// Package scheduler drives the progression engine's lifecycle: a periodic
// tick while the client is foregrounded, full stop while backgrounded, and
// an offline catch-up on every resume.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lifeforge/internal/engine"
)

type Scheduler struct {
	engine   *engine.Engine
	interval time.Duration
	log      *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(e *engine.Engine, interval time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		engine:   e,
		interval: interval,
		log:      log,
	}
}

// Foreground handles the visibility edge into the foreground: it runs
// catch-up synchronously, so every state write lands before the first tick
// can read TimeState, then starts the tick loop. Calling it while already
// foregrounded is a no-op.
func (s *Scheduler) Foreground(ctx context.Context) *engine.CatchUpResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	res := s.engine.CatchUp(ctx)

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stop, s.done)
	s.log.Debug("scheduler foregrounded", zap.Duration("interval", s.interval))
	return res
}

// Background handles the edge out of the foreground: the timer stops
// entirely and waits for any in-flight tick. The absence of ticks while
// suspended is exactly what the next catch-up reconstructs.
func (s *Scheduler) Background() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
	s.log.Debug("scheduler backgrounded")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Close stops the loop. Equivalent to Background.
func (s *Scheduler) Close() {
	s.Background()
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Tick(ctx)
		}
	}
}
