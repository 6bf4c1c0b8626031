// Package presenter turns reconciler events into what the user sees: the cart
// and checkout views, the navbar badge and transient toasts.
package presenter

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/domain"
	"storefront-client/internal/events"
)

type bus interface {
	events.Publisher
	events.Subscriber
}

type Options struct {
	ToastTTL         time.Duration
	BadgeBounceTTL   time.Duration
	CartShipping     decimal.Decimal
	CheckoutShipping decimal.Decimal
}

// Presenter listens to the bus on its own; nothing calls it directly when the
// cart changes. Deliveries older than the last one applied are dropped.
type Presenter struct {
	opts   Options
	badge  *Badge
	toasts *Toasts
	logger logrus.FieldLogger

	unsubscribe func()

	mu          sync.RWMutex
	cart        domain.Cart
	cartVersion uint64
	lastVersion uint64
}

func New(b bus, opts Options, logger logrus.FieldLogger) *Presenter {
	p := &Presenter{
		opts:   opts,
		badge:  NewBadge(b, opts.BadgeBounceTTL),
		toasts: NewToasts(b, opts.ToastTTL),
		logger: logger.WithField("component", "presenter"),
		cart:   domain.EmptyCart(),
	}
	p.unsubscribe = b.Subscribe(p.handle, events.TopicCartChanged, events.TopicCartCount, events.TopicNotice)
	return p
}

// Close detaches from the bus and stops pending timers.
func (p *Presenter) Close() {
	p.unsubscribe()
	p.badge.Stop()
	p.toasts.Stop()
}

func (p *Presenter) handle(ev events.Event) {
	switch payload := ev.Payload.(type) {
	case events.CartChanged:
		p.onCart(payload)
	case events.CartCount:
		p.onCount(payload)
	case events.Notice:
		p.toasts.Show(payload.Level, payload.Message)
	default:
		p.logger.WithField("topic", ev.Topic).Warn("unexpected payload")
	}
}

func (p *Presenter) onCart(ev events.CartChanged) {
	p.mu.Lock()
	if ev.Version <= p.cartVersion {
		p.mu.Unlock()
		p.logger.WithField("version", ev.Version).Debug("dropping stale cart event")
		return
	}
	p.cart = ev.Cart.Clone()
	p.cartVersion = ev.Version
	updateBadge := ev.Version > p.lastVersion
	if updateBadge {
		p.lastVersion = ev.Version
	}
	p.mu.Unlock()

	if updateBadge {
		p.badge.Set(ev.Cart.TotalItems)
	}
}

func (p *Presenter) onCount(ev events.CartCount) {
	p.mu.Lock()
	if ev.Version <= p.lastVersion {
		p.mu.Unlock()
		p.logger.WithField("version", ev.Version).Debug("dropping stale count event")
		return
	}
	p.lastVersion = ev.Version
	p.mu.Unlock()

	p.badge.Set(ev.Count)
}

// Cart returns the last cart shown.
func (p *Presenter) Cart() domain.Cart {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cart.Clone()
}

func (p *Presenter) CartPage() CartPage {
	return CartView(p.Cart(), p.opts.CartShipping)
}

func (p *Presenter) Checkout() Summary {
	return CheckoutSummary(p.Cart(), p.opts.CheckoutShipping)
}

func (p *Presenter) Badge() BadgeState {
	return p.badge.State()
}

func (p *Presenter) Toasts() []Toast {
	return p.toasts.Active()
}

func (p *Presenter) DismissToast(id string) bool {
	return p.toasts.Dismiss(id)
}
