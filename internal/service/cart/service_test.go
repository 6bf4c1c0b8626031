package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-client/internal/domain"
	"storefront-client/internal/events"
	"storefront-client/internal/presenter"
	"storefront-client/internal/repository/cartcache"
	sessionrepo "storefront-client/internal/repository/session"
	"storefront-client/internal/service/session"
	"storefront-client/internal/shopapi"
	"storefront-client/internal/testutil/fakeshop"
)

type eventLog struct {
	mu      sync.Mutex
	changes []events.CartChanged
	counts  []events.CartCount
	notices []events.Notice
	logins  []events.LoginRequired
}

func (l *eventLog) handle(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch p := ev.Payload.(type) {
	case events.CartChanged:
		l.changes = append(l.changes, p)
	case events.CartCount:
		l.counts = append(l.counts, p)
	case events.Notice:
		l.notices = append(l.notices, p)
	case events.LoginRequired:
		l.logins = append(l.logins, p)
	}
}

func (l *eventLog) lastNotice() events.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.notices) == 0 {
		return events.Notice{}
	}
	return l.notices[len(l.notices)-1]
}

func (l *eventLog) sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.changes))
	for _, c := range l.changes {
		out = append(out, c.Source)
	}
	return out
}

type harness struct {
	shop    *fakeshop.Server
	bus     *events.Bus
	session *session.Service
	cache   cartcache.Cache
	rec     *Reconciler
	log     *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	shop := fakeshop.New()
	t.Cleanup(shop.Close)

	logger, _ := test.NewNullLogger()
	bus := events.NewBus()
	sess := session.New(sessionrepo.NewMemory(), bus, "default", logger)
	client, err := shopapi.New(shopapi.Options{BaseURL: shop.URL, Timeout: 5 * time.Second}, sess, logger)
	require.NoError(t, err)
	cache := cartcache.NewMemory()

	log := &eventLog{}
	bus.Subscribe(log.handle, events.TopicCartChanged, events.TopicCartCount, events.TopicNotice, events.TopicLoginRequired)

	return &harness{
		shop:    shop,
		bus:     bus,
		session: sess,
		cache:   cache,
		rec:     New(client, sess, cache, bus, "default", logger),
		log:     log,
	}
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	access := h.shop.NewGuest()
	require.NoError(t, h.session.SaveAuth(context.Background(), access, "refresh-"+access, &domain.User{Username: "guest"}))
	return access
}

func waitArrived(t *testing.T, hold *fakeshop.Hold) {
	t.Helper()
	select {
	case <-hold.Arrived:
	case <-time.After(5 * time.Second):
		t.Fatalf("held request never arrived")
	}
}

func TestFetchWithoutTokenIsEmpty(t *testing.T) {
	h := newHarness(t)

	cart := h.rec.Fetch(context.Background())

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteGetCart))
	assert.Equal(t, []string{SourceAnonymous}, h.log.sources())
}

func TestFetchAppliesServerCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	h.shop.Put(access, 1, 2)

	cart := h.rec.Fetch(ctx)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.TotalItems)
	assert.Equal(t, 2, h.rec.Count())
	assert.Equal(t, "Dental Mirror", cart.Items[0].Product.Name)

	cached, err := h.cache.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 2, cached.TotalItems)
}

func TestFetchFailureFallsBackToEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	h.shop.Put(access, 1, 2)
	require.Len(t, h.rec.Fetch(ctx).Items, 1)

	h.shop.FailNext(fakeshop.RouteGetCart, 500)
	cart := h.rec.Fetch(ctx)

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, h.rec.Count())
}

func TestFetchWithRejectedTokenIsEmpty(t *testing.T) {
	h := newHarness(t)
	access := h.login(t)
	h.shop.Put(access, 1, 1)
	h.shop.Revoke(access)

	cart := h.rec.Fetch(context.Background())

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteGetCart))
}

func TestFailedMutationLeavesCartUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 2)
	h.rec.Fetch(ctx)
	before := h.rec.Cart()
	version := h.rec.Version()

	h.shop.FailNext(fakeshop.RouteIncrease, 500)
	cart, err := h.rec.Increase(ctx, line)

	require.Error(t, err)
	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, before, cart)
	assert.Equal(t, before, h.rec.Cart())
	assert.Equal(t, version, h.rec.Version())
	assert.Equal(t, events.Notice{Level: events.LevelError, Message: "Failed to increase quantity"}, h.log.lastNotice())
	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteIncrease))
}

func TestIncreaseReplacesCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 1)

	cart, err := h.rec.Increase(ctx, line)

	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, h.rec.Count())
	assert.Equal(t, events.Notice{Level: events.LevelSuccess, Message: "Quantity increased"}, h.log.lastNotice())
}

func TestDecreaseShowsServerMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 2)

	cart, err := h.rec.Decrease(ctx, line)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.TotalItems)
	assert.Equal(t, "Item quantity decreased", h.log.lastNotice().Message)

	cart, err = h.rec.Decrease(ctx, line)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "Item removed from cart", h.log.lastNotice().Message)
}

func TestRemoveLastItemEmptiesCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 2, 1)
	require.Equal(t, 1, h.rec.Fetch(ctx).TotalItems)

	cart, err := h.rec.Remove(ctx, line)

	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, h.rec.Count())
	assert.Equal(t, events.Notice{Level: events.LevelSuccess, Message: "Item removed from cart"}, h.log.lastNotice())
}

func TestUpdateAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 1)
	h.shop.Put(access, 2, 1)

	_, err := h.rec.Update(ctx, line, 0)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteUpdate))

	cart, err := h.rec.Update(ctx, line, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.TotalItems)

	cart, err = h.rec.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "Cart cleared successfully", h.log.lastNotice().Message)
}

func TestMutationWithoutSessionSkipsRequest(t *testing.T) {
	h := newHarness(t)

	_, err := h.rec.Remove(context.Background(), 1)

	assert.True(t, errors.Is(err, domain.ErrAuthRequired))
	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteRemove))
	assert.Equal(t, events.LevelError, h.log.lastNotice().Level)
}

func TestRequestAddWhenSignedInAddsImmediately(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.rec.RequestAdd(context.Background(), 1, 3)

	require.NoError(t, err)
	assert.Nil(t, out.Pending)
	assert.Equal(t, 3, out.Cart.TotalItems)
	assert.Equal(t, "Product added to cart!", h.log.lastNotice().Message)
}

func TestRequestAddWhileAnonymousParksAction(t *testing.T) {
	h := newHarness(t)

	out, err := h.rec.RequestAdd(context.Background(), 1, 1)
	require.NoError(t, err)
	require.NotNil(t, out.Pending)
	assert.Equal(t, int64(1), out.Pending.ProductID)

	out, err = h.rec.RequestAdd(context.Background(), 2, 2)
	require.NoError(t, err)

	pending := h.rec.Pending()
	require.NotNil(t, pending)
	assert.Equal(t, int64(2), pending.ProductID)
	assert.Equal(t, 2, pending.Quantity)
	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteAdd))
	assert.Len(t, h.log.logins, 2)
}

func TestLoginReplaysPendingAddExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rec.RequestAdd(ctx, 1, 2)
	require.NoError(t, err)

	h.login(t)
	h.rec.HandleAuthChanged(ctx, events.AuthChanged{Authenticated: true})

	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteAdd))
	assert.Nil(t, h.rec.Pending())
	assert.Equal(t, 2, h.rec.Cart().TotalItems)

	h.rec.HandleAuthChanged(ctx, events.AuthChanged{Authenticated: true})
	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteAdd))
}

func TestLoginClearsPendingAddEvenWhenItFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rec.RequestAdd(ctx, 1, 1)
	require.NoError(t, err)

	h.login(t)
	h.shop.FailNext(fakeshop.RouteAdd, 500)
	h.rec.HandleAuthChanged(ctx, events.AuthChanged{Authenticated: true})

	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteAdd))
	assert.Nil(t, h.rec.Pending())
	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteGetCart))
	assert.True(t, h.rec.Cart().IsEmpty())
}

func TestAbandonPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rec.RequestAdd(ctx, 1, 1)
	require.NoError(t, err)

	assert.True(t, h.rec.AbandonPending())
	assert.False(t, h.rec.AbandonPending())

	h.login(t)
	h.rec.HandleAuthChanged(ctx, events.AuthChanged{Authenticated: true})
	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteAdd))
	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteGetCart))
}

func TestLogoutDropsCachedCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	h.shop.Put(access, 1, 1)
	h.rec.Fetch(ctx)

	require.NoError(t, h.session.ClearAuth(ctx))
	h.rec.HandleAuthChanged(ctx, events.AuthChanged{})

	assert.True(t, h.rec.Cart().IsEmpty())
	_, err := h.cache.Get(ctx, "default")
	assert.True(t, errors.Is(err, domain.ErrCacheMiss))
}

func TestLoadShowsCachedCartBeforeFetching(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	h.shop.Put(access, 1, 1)
	stale := domain.EmptyCart()
	stale.TotalItems = 9
	require.NoError(t, h.cache.Set(ctx, "default", stale))

	cart := h.rec.Load(ctx)

	assert.Equal(t, []string{SourceCache, SourceFetch}, h.log.sources())
	assert.Equal(t, 1, cart.TotalItems)
}

func TestLoadIgnoresCacheWhenAnonymous(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stale := domain.EmptyCart()
	stale.TotalItems = 9
	require.NoError(t, h.cache.Set(ctx, "default", stale))

	cart := h.rec.Load(ctx)

	assert.Equal(t, []string{SourceAnonymous}, h.log.sources())
	assert.Equal(t, 0, cart.TotalItems)
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 1)
	h.rec.Fetch(ctx)

	hold := h.shop.HoldNext(fakeshop.RouteGetCart)
	done := make(chan domain.Cart, 1)
	go func() { done <- h.rec.Fetch(ctx) }()
	waitArrived(t, hold)

	_, err := h.rec.Increase(ctx, line)
	require.NoError(t, err)
	hold.Release()

	fetched := <-done
	assert.Equal(t, 2, fetched.TotalItems)
	assert.Equal(t, 2, h.rec.Cart().Items[0].Quantity)
	assert.Equal(t, []string{SourceFetch, SourceIncrease}, h.log.sources())
}

func TestFailedMutationDoesNotStaleInFlightFetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 3)
	require.NoError(t, h.cache.Set(ctx, "default", domain.EmptyCart()))

	hold := h.shop.HoldNext(fakeshop.RouteGetCart)
	done := make(chan domain.Cart, 1)
	go func() { done <- h.rec.Load(ctx) }()
	waitArrived(t, hold)

	h.shop.FailNext(fakeshop.RouteIncrease, 500)
	_, err := h.rec.Increase(ctx, line)
	require.Error(t, err)
	hold.Release()

	loaded := <-done
	assert.Equal(t, 3, loaded.TotalItems)
	assert.Equal(t, 3, h.rec.Cart().TotalItems)
	assert.Equal(t, 3, h.rec.Count())
	assert.Equal(t, []string{SourceCache, SourceFetch}, h.log.sources())
}

func TestFailedFetchKeepsCachedCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	h.shop.Put(access, 1, 2)
	h.rec.Fetch(ctx)

	h.shop.FailNext(fakeshop.RouteGetCart, 500)
	require.True(t, h.rec.Fetch(ctx).IsEmpty())

	cached, err := h.cache.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 2, cached.TotalItems)

	h.shop.Revoke(access)
	h.rec.Fetch(ctx)
	cached, err = h.cache.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 0, cached.TotalItems)
}

func TestBadgeFollowsEachMutation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	logger, _ := test.NewNullLogger()
	p := presenter.New(h.bus, presenter.Options{ToastTTL: time.Minute, BadgeBounceTTL: time.Millisecond}, logger)
	defer p.Close()

	steps := []struct {
		name string
		run  func(line int64) (domain.Cart, error)
	}{
		{"add", func(int64) (domain.Cart, error) { return h.rec.Add(ctx, 1, 2) }},
		{"add other", func(int64) (domain.Cart, error) { return h.rec.Add(ctx, 2, 1) }},
		{"increase", func(line int64) (domain.Cart, error) { return h.rec.Increase(ctx, line) }},
		{"decrease", func(line int64) (domain.Cart, error) { return h.rec.Decrease(ctx, line) }},
		{"update", func(line int64) (domain.Cart, error) { return h.rec.Update(ctx, line, 5) }},
		{"remove", func(line int64) (domain.Cart, error) { return h.rec.Remove(ctx, line) }},
		{"clear", func(int64) (domain.Cart, error) { return h.rec.Clear(ctx) }},
	}
	for _, step := range steps {
		var line int64
		if items := h.rec.Cart().Items; len(items) > 0 {
			line = items[0].ID
		}
		cart, err := step.run(line)
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := p.Badge().Count; got != cart.TotalItems {
			t.Fatalf("%s: badge %d, cart total %d", step.name, got, cart.TotalItems)
		}
		if got := h.rec.Count(); got != cart.TotalItems {
			t.Fatalf("%s: count %d, cart total %d", step.name, got, cart.TotalItems)
		}
	}
	assert.Equal(t, 0, p.Badge().Count)
	assert.False(t, p.Badge().Visible)
}

func TestStaleCountIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 1)

	hold := h.shop.HoldNext(fakeshop.RouteItemCount)
	done := make(chan int, 1)
	go func() { done <- h.rec.RefreshCount(ctx) }()
	waitArrived(t, hold)

	_, err := h.rec.Increase(ctx, line)
	require.NoError(t, err)
	hold.Release()

	assert.Equal(t, 2, <-done)
	assert.Equal(t, 2, h.rec.Count())
	assert.Empty(t, h.log.counts)
}

func TestRefreshCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Equal(t, 0, h.rec.RefreshCount(ctx))
	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteItemCount))

	access := h.login(t)
	h.shop.Put(access, 1, 2)
	h.shop.Put(access, 2, 3)
	assert.Equal(t, 5, h.rec.RefreshCount(ctx))

	h.shop.FailNext(fakeshop.RouteItemCount, 500)
	assert.Equal(t, 0, h.rec.RefreshCount(ctx))
	require.Len(t, h.log.counts, 3)
	assert.Equal(t, 5, h.log.counts[1].Count)
}

func TestVersionsIncreaseAcrossEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	access := h.login(t)
	line := h.shop.Put(access, 1, 1)

	h.rec.Fetch(ctx)
	h.rec.RefreshCount(ctx)
	_, err := h.rec.Increase(ctx, line)
	require.NoError(t, err)

	var versions []uint64
	for _, c := range h.log.changes {
		versions = append(versions, c.Version)
	}
	for _, c := range h.log.counts {
		versions = append(versions, c.Version)
	}
	assert.ElementsMatch(t, []uint64{1, 2, 3}, versions)
	assert.Equal(t, uint64(3), h.rec.Version())
}

func TestFollowReplaysPendingAddBeforeSaveAuthReturns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unfollow := h.rec.Follow(ctx)

	_, err := h.rec.RequestAdd(ctx, 1, 2)
	require.NoError(t, err)
	h.login(t)

	assert.Equal(t, 1, h.shop.Hits(fakeshop.RouteAdd))
	assert.Equal(t, 2, h.rec.Cart().TotalItems)
	assert.Nil(t, h.rec.Pending())

	require.NoError(t, h.session.ClearAuth(ctx))
	assert.True(t, h.rec.Cart().IsEmpty())

	unfollow()
	h.login(t)
	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteGetCart))
}

func TestFollowStopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer h.rec.Follow(ctx)()
	cancel()

	h.login(t)

	assert.Equal(t, 0, h.shop.Hits(fakeshop.RouteGetCart))
	assert.Equal(t, uint64(0), h.rec.Version())
}
