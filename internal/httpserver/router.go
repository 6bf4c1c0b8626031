package httpserver

import (
	"context"
	"errors"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/domain"
	"storefront-client/internal/events"
	"storefront-client/internal/presenter"
	cartsvc "storefront-client/internal/service/cart"
)

type sessionView interface {
	IsAuthenticated() bool
	User() *domain.User
}

type authService interface {
	GuestLogin(ctx context.Context) (*domain.User, error)
	GoogleLogin(ctx context.Context, idToken string) (*domain.User, error)
	Logout(ctx context.Context) error
}

type cartService interface {
	Fetch(ctx context.Context) domain.Cart
	RefreshCount(ctx context.Context) int
	RequestAdd(ctx context.Context, productID int64, quantity int) (cartsvc.AddOutcome, error)
	Increase(ctx context.Context, itemID int64) (domain.Cart, error)
	Decrease(ctx context.Context, itemID int64) (domain.Cart, error)
	Update(ctx context.Context, itemID int64, quantity int) (domain.Cart, error)
	Remove(ctx context.Context, itemID int64) (domain.Cart, error)
	Clear(ctx context.Context) (domain.Cart, error)
	Pending() *domain.PendingAction
	AbandonPending() bool
}

type presenterView interface {
	CartPage() presenter.CartPage
	Checkout() presenter.Summary
	Badge() presenter.BadgeState
	Toasts() []presenter.Toast
	DismissToast(id string) bool
}

// Deps carries everything the routes need.
type Deps struct {
	Session     sessionView
	Auth        authService
	Cart        cartService
	Presenter   presenterView
	Events      events.Subscriber
	CORSOrigins []string
	Ready       []ReadyCheck
}

// buildRouter wires routes for the presenter surface.
func buildRouter(logger logrus.FieldLogger, deps Deps) (*gin.Engine, error) {
	if deps.Session == nil || deps.Auth == nil || deps.Cart == nil || deps.Presenter == nil || deps.Events == nil {
		return nil, errors.New("httpserver: session, auth, cart, presenter and events are required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = deps.CORSOrigins
		corsCfg.AllowCredentials = true
		router.Use(cors.New(corsCfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))

	h := &handlers{deps: deps, logger: logger}
	ui := router.Group("/ui")
	ui.GET("/session", h.session)
	ui.POST("/auth/guest", h.guestLogin)
	ui.POST("/auth/google", h.googleLogin)
	ui.POST("/auth/logout", h.logout)
	ui.DELETE("/auth/pending", h.abandonPending)

	ui.GET("/cart", h.cartPage)
	ui.GET("/checkout", h.checkout)
	ui.POST("/cart/refresh", h.refreshCart)
	ui.POST("/cart/items", h.addItem)
	ui.POST("/cart/items/:id/increase", h.itemAction(deps.Cart.Increase))
	ui.POST("/cart/items/:id/decrease", h.itemAction(deps.Cart.Decrease))
	ui.PUT("/cart/items/:id", h.updateItem)
	ui.DELETE("/cart/items/:id", h.itemAction(deps.Cart.Remove))
	ui.POST("/cart/clear", h.clearCart)

	ui.GET("/badge", h.badge)
	ui.POST("/badge/refresh", h.refreshBadge)
	ui.GET("/toasts", h.toasts)
	ui.DELETE("/toasts/:id", h.dismissToast)
	ui.GET("/events", streamHandler(deps.Events, logger))

	return router, nil
}
