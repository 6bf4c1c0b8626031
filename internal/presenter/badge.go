package presenter

import (
	"sync"
	"time"

	"storefront-client/internal/events"
)

// BadgeState is the navbar cart badge. Bouncing is a short-lived sub-state
// entered whenever the count changes.
type BadgeState struct {
	Count    int  `json:"count"`
	Visible  bool `json:"visible"`
	Bouncing bool `json:"bouncing"`
}

// Badge drives the hidden/visible/bounce state machine.
type Badge struct {
	bus       events.Publisher
	bounceTTL time.Duration

	mu       sync.Mutex
	count    int
	bouncing bool
	timer    *time.Timer
	gen      uint64
	stopped  bool
}

func NewBadge(bus events.Publisher, bounceTTL time.Duration) *Badge {
	return &Badge{bus: bus, bounceTTL: bounceTTL}
}

// Set moves the badge to count. An unchanged count is a no-op.
func (b *Badge) Set(count int) {
	if count < 0 {
		count = 0
	}
	b.mu.Lock()
	if b.stopped || count == b.count {
		b.mu.Unlock()
		return
	}
	b.count = count
	b.bouncing = true
	b.gen++
	gen := b.gen
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.bounceTTL, func() { b.settle(gen) })
	state := b.stateLocked()
	b.mu.Unlock()

	b.publish(state)
}

func (b *Badge) State() BadgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Stop cancels a pending bounce timeout. Later Set calls are ignored.
func (b *Badge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}

func (b *Badge) settle(gen uint64) {
	b.mu.Lock()
	// A newer change restarted the bounce.
	if gen != b.gen || !b.bouncing || b.stopped {
		b.mu.Unlock()
		return
	}
	b.bouncing = false
	state := b.stateLocked()
	b.mu.Unlock()

	b.publish(state)
}

func (b *Badge) stateLocked() BadgeState {
	return BadgeState{Count: b.count, Visible: b.count > 0, Bouncing: b.bouncing}
}

func (b *Badge) publish(state BadgeState) {
	if b.bus != nil {
		b.bus.Publish(events.TopicBadgeChanged, state)
	}
}
