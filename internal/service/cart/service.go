package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/domain"
	"storefront-client/internal/events"
)

// ErrInvalidQuantity rejects adds and updates below one unit.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Sources reported in events.CartChanged.
const (
	SourceCache     = "cache"
	SourceFetch     = "fetch"
	SourceAnonymous = "anonymous"
	SourceLogout    = "logout"
	SourceAdd       = "add"
	SourceIncrease  = "increase"
	SourceDecrease  = "decrease"
	SourceUpdate    = "update"
	SourceRemove    = "remove"
	SourceClear     = "clear"
)

type cartAPI interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, productID int64, quantity int) (*domain.CartMutation, error)
	IncreaseItem(ctx context.Context, itemID int64) (*domain.CartMutation, error)
	DecreaseItem(ctx context.Context, itemID int64) (*domain.CartMutation, error)
	UpdateItem(ctx context.Context, itemID int64, quantity int) (*domain.CartMutation, error)
	RemoveItem(ctx context.Context, itemID int64) (*domain.CartMutation, error)
	ClearCart(ctx context.Context) (*domain.CartMutation, error)
	ItemCount(ctx context.Context) (int, error)
}

type sessionState interface {
	IsAuthenticated() bool
}

type cartCache interface {
	Get(ctx context.Context, profile string) (*domain.Cart, error)
	Set(ctx context.Context, profile string, cart domain.Cart) error
	Delete(ctx context.Context, profile string) error
}

type bus interface {
	events.Publisher
	events.Subscriber
}

// Reconciler keeps the local cart equal to the last server answer it
// accepted. It never merges: every successful response replaces the cart.
type Reconciler struct {
	api     cartAPI
	session sessionState
	cache   cartCache
	bus     bus
	profile string
	logger  logrus.FieldLogger
	now     func() time.Time

	mu      sync.Mutex
	fence   fence
	version uint64
	cart    domain.Cart
	count   int
	pending *domain.PendingAction
}

func New(api cartAPI, session sessionState, cache cartCache, b bus, profile string, logger logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		api:     api,
		session: session,
		cache:   cache,
		bus:     b,
		profile: profile,
		logger:  logger.WithFields(logrus.Fields{"component": "reconciler", "profile": profile}),
		now:     time.Now,
		fence:   newFence(),
		cart:    domain.EmptyCart(),
	}
}

// Cart returns a copy of the last applied cart.
func (r *Reconciler) Cart() domain.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.Clone()
}

// Count returns the last applied item count.
func (r *Reconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Version grows with every applied cart or count.
func (r *Reconciler) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Load shows the cached cart straight away, then asks the server.
func (r *Reconciler) Load(ctx context.Context) domain.Cart {
	if r.session.IsAuthenticated() && r.cache != nil {
		cached, err := r.cache.Get(ctx, r.profile)
		switch {
		case err == nil:
			r.applyCart(ctx, r.issue(resourceCart), *cached, SourceCache)
		case !errors.Is(err, domain.ErrCacheMiss):
			r.logger.WithError(err).Warn("read cart cache")
		}
	}
	return r.Fetch(ctx)
}

// Fetch reads the cart from the server. Anonymous users and failed reads
// both end up with the empty cart.
func (r *Reconciler) Fetch(ctx context.Context) domain.Cart {
	seq := r.issue(resourceCart)
	if !r.session.IsAuthenticated() {
		cart, _ := r.applyCart(ctx, seq, domain.EmptyCart(), SourceAnonymous)
		return cart
	}

	fetched, err := r.api.GetCart(ctx)
	if err != nil {
		log := r.logger.WithError(err)
		if errors.Is(err, domain.ErrAuthRequired) {
			log.Info("cart read rejected, treating user as anonymous")
			cart, _ := r.applyCart(ctx, seq, domain.EmptyCart(), SourceFetch)
			return cart
		}
		// The cached cart is the last real answer; keep it for the next Load.
		log.Warn("cart read failed")
		cart, _ := r.apply(ctx, seq, domain.EmptyCart(), SourceFetch, false)
		return cart
	}
	cart, _ := r.applyCart(ctx, seq, *fetched, SourceFetch)
	return cart
}

// RefreshCount reads the navbar item count. Failures count as zero.
func (r *Reconciler) RefreshCount(ctx context.Context) int {
	seq := r.issue(resourceCount)
	count := 0
	if r.session.IsAuthenticated() {
		n, err := r.api.ItemCount(ctx)
		if err != nil {
			r.logger.WithError(err).Warn("item count failed")
		} else {
			count = n
		}
	}

	r.mu.Lock()
	if !r.fence.current(resourceCount, seq) {
		current := r.count
		r.mu.Unlock()
		r.logger.WithField("seq", seq).Debug("discarding stale item count")
		return current
	}
	r.fence.accept(resourceCount, seq)
	r.version++
	r.count = count
	ev := events.CartCount{Version: r.version, Count: count}
	r.mu.Unlock()

	r.bus.Publish(events.TopicCartCount, ev)
	return count
}

func (r *Reconciler) Add(ctx context.Context, productID int64, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return r.Cart(), ErrInvalidQuantity
	}
	return r.mutate(ctx, mutation{
		source:  SourceAdd,
		okMsg:   "Product added to cart!",
		failMsg: "Failed to add product to cart",
		call: func(ctx context.Context) (*domain.CartMutation, error) {
			return r.api.AddItem(ctx, productID, quantity)
		},
	})
}

func (r *Reconciler) Increase(ctx context.Context, itemID int64) (domain.Cart, error) {
	return r.mutate(ctx, mutation{
		source:  SourceIncrease,
		okMsg:   "Quantity increased",
		failMsg: "Failed to increase quantity",
		call: func(ctx context.Context) (*domain.CartMutation, error) {
			return r.api.IncreaseItem(ctx, itemID)
		},
	})
}

// Decrease drops one unit; the server removes the line when it reaches zero.
func (r *Reconciler) Decrease(ctx context.Context, itemID int64) (domain.Cart, error) {
	return r.mutate(ctx, mutation{
		source:  SourceDecrease,
		failMsg: "Failed to decrease quantity",
		call: func(ctx context.Context) (*domain.CartMutation, error) {
			return r.api.DecreaseItem(ctx, itemID)
		},
	})
}

func (r *Reconciler) Update(ctx context.Context, itemID int64, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return r.Cart(), ErrInvalidQuantity
	}
	return r.mutate(ctx, mutation{
		source:  SourceUpdate,
		failMsg: "Failed to update quantity",
		call: func(ctx context.Context) (*domain.CartMutation, error) {
			return r.api.UpdateItem(ctx, itemID, quantity)
		},
	})
}

func (r *Reconciler) Remove(ctx context.Context, itemID int64) (domain.Cart, error) {
	return r.mutate(ctx, mutation{
		source:  SourceRemove,
		okMsg:   "Item removed from cart",
		failMsg: "Failed to remove item",
		call: func(ctx context.Context) (*domain.CartMutation, error) {
			return r.api.RemoveItem(ctx, itemID)
		},
	})
}

func (r *Reconciler) Clear(ctx context.Context) (domain.Cart, error) {
	return r.mutate(ctx, mutation{
		source:  SourceClear,
		failMsg: "Failed to clear cart",
		call: func(ctx context.Context) (*domain.CartMutation, error) {
			return r.api.ClearCart(ctx)
		},
	})
}

// mutation describes one cart write. An empty okMsg means the server's
// message is shown.
type mutation struct {
	source  string
	okMsg   string
	failMsg string
	call    func(ctx context.Context) (*domain.CartMutation, error)
}

func (r *Reconciler) mutate(ctx context.Context, m mutation) (domain.Cart, error) {
	log := r.logger.WithField("op", m.source)
	if !r.session.IsAuthenticated() {
		log.Info("cart write without session")
		r.notify(events.LevelError, m.failMsg)
		return r.Cart(), domain.ErrAuthRequired
	}

	seq := r.issue(resourceCart)
	res, err := m.call(ctx)
	if err != nil {
		log.WithError(err).Warn("cart write failed")
		r.notify(events.LevelError, m.failMsg)
		return r.Cart(), pkgerrors.Wrap(err, m.source)
	}

	cart, applied := r.applyCart(ctx, seq, res.Cart, m.source)
	if !applied {
		log.Debug("cart write answered after a newer request")
	}
	msg := m.okMsg
	if msg == "" {
		msg = res.Message
	}
	r.notify(events.LevelSuccess, msg)
	return cart, nil
}

func (r *Reconciler) issue(res resource) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fence.next(res)
}

// applyCart installs cart when no newer cart response has been applied and
// returns the cart that is current afterwards.
func (r *Reconciler) applyCart(ctx context.Context, seq uint64, cart domain.Cart, source string) (domain.Cart, bool) {
	return r.apply(ctx, seq, cart, source, true)
}

func (r *Reconciler) apply(ctx context.Context, seq uint64, cart domain.Cart, source string, persist bool) (domain.Cart, bool) {
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}

	r.mu.Lock()
	if !r.fence.current(resourceCart, seq) {
		current := r.cart.Clone()
		r.mu.Unlock()
		r.logger.WithFields(logrus.Fields{"seq": seq, "source": source}).Debug("discarding stale cart response")
		return current, false
	}
	r.fence.accept(resourceCart, seq)
	// The cart carries its own total, so a count still in flight is older.
	r.fence.supersede(resourceCount)
	r.version++
	r.cart = cart.Clone()
	r.count = cart.TotalItems
	ev := events.CartChanged{Version: r.version, Source: source, Cart: cart.Clone()}
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"source":  source,
		"version": ev.Version,
		"items":   cart.TotalItems,
	}).Debug("cart applied")
	r.bus.Publish(events.TopicCartChanged, ev)
	if persist {
		r.persist(ctx, cart)
	}
	return cart.Clone(), true
}

func (r *Reconciler) persist(ctx context.Context, cart domain.Cart) {
	if r.cache == nil {
		return
	}
	var err error
	if r.session.IsAuthenticated() {
		err = r.cache.Set(ctx, r.profile, cart)
	} else {
		err = r.cache.Delete(ctx, r.profile)
	}
	if err != nil {
		r.logger.WithError(err).Warn("write cart cache")
	}
}

func (r *Reconciler) notify(level events.Level, message string) {
	if message == "" {
		return
	}
	r.bus.Publish(events.TopicNotice, events.Notice{Level: level, Message: message})
}
