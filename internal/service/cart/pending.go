package cart

import (
	"context"

	"storefront-client/internal/domain"
	"storefront-client/internal/events"
)

// AddOutcome reports what RequestAdd did. Pending is set when the add was
// parked until a login completes.
type AddOutcome struct {
	Cart    domain.Cart
	Pending *domain.PendingAction
}

// RequestAdd adds straight away for a signed-in user. Otherwise the product is
// parked as the single pending action and a login is requested.
func (r *Reconciler) RequestAdd(ctx context.Context, productID int64, quantity int) (AddOutcome, error) {
	if quantity < 1 {
		return AddOutcome{Cart: r.Cart()}, ErrInvalidQuantity
	}
	if r.session.IsAuthenticated() {
		cart, err := r.Add(ctx, productID, quantity)
		return AddOutcome{Cart: cart}, err
	}

	action := domain.PendingAction{ProductID: productID, Quantity: quantity, CreatedAt: r.now().UTC()}
	r.mu.Lock()
	r.pending = &action
	r.mu.Unlock()

	r.logger.WithField("product_id", productID).Info("add parked until login")
	r.bus.Publish(events.TopicLoginRequired, events.LoginRequired{Pending: action})
	out := action
	return AddOutcome{Cart: r.Cart(), Pending: &out}, nil
}

// Pending returns a copy of the parked add, or nil.
func (r *Reconciler) Pending() *domain.PendingAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return nil
	}
	out := *r.pending
	return &out
}

// AbandonPending drops the parked add, for a dismissed login prompt. It
// reports whether there was one.
func (r *Reconciler) AbandonPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	had := r.pending != nil
	r.pending = nil
	return had
}

func (r *Reconciler) takePending() *domain.PendingAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.pending
	r.pending = nil
	return p
}

// HandleAuthChanged reacts to login and logout. After a login the parked add
// is sent exactly once and the slot is emptied whatever the outcome; without
// a successful add the cart is fetched instead. After a logout the cached
// cart is dropped and the empty cart shown.
func (r *Reconciler) HandleAuthChanged(ctx context.Context, change events.AuthChanged) {
	if !change.Authenticated {
		r.applyCart(ctx, r.issue(resourceCart), domain.EmptyCart(), SourceLogout)
		return
	}
	if p := r.takePending(); p != nil {
		r.logger.WithField("product_id", p.ProductID).Info("replaying parked add")
		if _, err := r.Add(ctx, p.ProductID, p.Quantity); err == nil {
			return
		}
	}
	r.Fetch(ctx)
}

// Follow subscribes the reconciler to session changes and returns the
// unsubscribe func. Changes are handled inside Publish, so a SaveAuth or
// ClearAuth call returns only after the parked add was replayed and the cart
// caught up.
func (r *Reconciler) Follow(ctx context.Context) (unsubscribe func()) {
	r.logger.Info("following session changes")
	return r.bus.Subscribe(func(ev events.Event) {
		change, ok := ev.Payload.(events.AuthChanged)
		if !ok || ctx.Err() != nil {
			return
		}
		r.HandleAuthChanged(ctx, change)
	}, events.TopicAuthChanged)
}
