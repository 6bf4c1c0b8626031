// Package events is the in-process publish/subscribe bus that connects the
// reconciler, the session and the presenter.
package events

import (
	"sync"
	"time"

	"storefront-client/internal/domain"
)

type Topic string

const (
	TopicCartChanged   Topic = "cart.changed"
	TopicCartCount     Topic = "cart.count"
	TopicNotice        Topic = "notice"
	TopicAuthChanged   Topic = "auth.changed"
	TopicLoginRequired Topic = "auth.login_required"
	TopicBadgeChanged  Topic = "badge.changed"
	TopicToastsChanged Topic = "toasts.changed"
)

// Event is a single delivery. Payload holds one of the payload types below.
type Event struct {
	Topic   Topic       `json:"topic"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// CartChanged is raised whenever the reconciler applies a cart. Version grows
// with every applied state so subscribers can drop late deliveries.
type CartChanged struct {
	Version uint64      `json:"version"`
	Source  string      `json:"source"`
	Cart    domain.Cart `json:"cart"`
}

// CartCount carries the item-count endpoint result.
type CartCount struct {
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type AuthChanged struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

type LoginRequired struct {
	Pending domain.PendingAction `json:"pending"`
}

// Handler receives events synchronously on the publishing goroutine.
type Handler func(Event)

// Bus fans events out to subscribers by topic.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic]map[int]Handler
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[Topic]map[int]Handler),
		now:  time.Now,
	}
}

// Subscribe registers h for the given topics and returns a func that removes it.
func (b *Bus) Subscribe(h Handler, topics ...Topic) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[int]Handler)
		}
		b.subs[topic][id] = h
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			for _, topic := range topics {
				delete(b.subs[topic], id)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers payload to every subscriber of topic. Handlers run outside
// the bus lock, so they may publish or subscribe themselves.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload, At: b.now()}
	for _, h := range handlers {
		h(ev)
	}
}

// Publisher is the narrow interface producers depend on.
type Publisher interface {
	Publish(topic Topic, payload interface{})
}

// Subscriber is the narrow interface consumers depend on.
type Subscriber interface {
	Subscribe(h Handler, topics ...Topic) func()
}
