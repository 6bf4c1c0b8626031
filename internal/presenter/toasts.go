package presenter

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-client/internal/events"
)

type Toast struct {
	ID        string       `json:"id"`
	Level     events.Level `json:"level"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Toasts holds the notifications currently on screen. Each one dismisses
// itself after the configured interval.
type Toasts struct {
	bus events.Publisher
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	active []Toast
	timers map[string]*time.Timer
}

func NewToasts(bus events.Publisher, ttl time.Duration) *Toasts {
	return &Toasts{bus: bus, ttl: ttl, now: time.Now, timers: make(map[string]*time.Timer)}
}

func (t *Toasts) Show(level events.Level, message string) Toast {
	now := t.now().UTC()
	toast := Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	}

	t.mu.Lock()
	t.active = append(t.active, toast)
	t.timers[toast.ID] = time.AfterFunc(t.ttl, func() { t.Dismiss(toast.ID) })
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snapshot)
	return toast
}

// Dismiss removes a toast early. It reports whether the toast was still shown.
func (t *Toasts) Dismiss(id string) bool {
	t.mu.Lock()
	idx := -1
	for i, toast := range t.active {
		if toast.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return false
	}
	t.active = append(t.active[:idx], t.active[idx+1:]...)
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snapshot)
	return true
}

// Active returns the toasts on screen, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Stop cancels every pending dismissal.
func (t *Toasts) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *Toasts) snapshotLocked() []Toast {
	out := make([]Toast, len(t.active))
	copy(out, t.active)
	return out
}

func (t *Toasts) publish(active []Toast) {
	if t.bus != nil {
		t.bus.Publish(events.TopicToastsChanged, active)
	}
}
