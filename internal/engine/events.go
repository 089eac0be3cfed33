package engine

import (
	"sync"
	"time"
)

// XPGain is published whenever any component grants experience. Delivery
// is fire-and-forget: the engine does not require a subscriber to exist.
type XPGain struct {
	ActivityID string
	Amount     float64
	Origin     string // "completion" or "collect"
	At         time.Time
}

const (
	OriginCompletion = "completion"
	OriginCollect    = "collect"
)

// Bus is a minimal in-process fan-out for XPGain events.
type Bus struct {
	mu   sync.Mutex
	subs []func(XPGain)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(fn func(XPGain)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) Publish(g XPGain) {
	b.mu.Lock()
	subs := make([]func(XPGain), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(g)
	}
}
