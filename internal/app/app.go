// Package app builds the object graph shared by the daemon and the CLI.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/config"
	"storefront-client/internal/db"
	"storefront-client/internal/events"
	"storefront-client/internal/httpserver"
	"storefront-client/internal/presenter"
	"storefront-client/internal/repository/cartcache"
	sessionrepo "storefront-client/internal/repository/session"
	authsvc "storefront-client/internal/service/auth"
	cartsvc "storefront-client/internal/service/cart"
	sessionsvc "storefront-client/internal/service/session"
	"storefront-client/internal/shopapi"
)

// App owns every long-lived component of one profile.
type App struct {
	Config    config.Config
	Logger    logrus.FieldLogger
	Bus       *events.Bus
	Session   *sessionsvc.Service
	API       *shopapi.Client
	Auth      *authsvc.Service
	Cart      *cartsvc.Reconciler
	Presenter *presenter.Presenter

	pool     *pgxpool.Pool
	redis    *redis.Client
	unfollow func()
}

// New connects the configured stores and wires the services. Nothing talks
// to the storefront API until Start.
func New(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Bus: events.NewBus()}

	sessions, err := a.sessionRepo(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	cache, err := a.cartCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Session = sessionsvc.New(sessions, a.Bus, cfg.Profile, logger)
	a.API, err = shopapi.New(shopapi.Options{
		BaseURL:        cfg.APIBaseURL,
		Timeout:        cfg.RequestTimeout,
		CSRFCookie:     cfg.CSRFCookie,
		BreakerEnabled: cfg.BreakerEnabled,
	}, a.Session, logger)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "shop api client")
	}
	a.Auth = authsvc.New(a.API, a.Session, a.Bus, logger)
	a.Cart = cartsvc.New(a.API, a.Session, cache, a.Bus, cfg.Profile, logger)
	a.Presenter = presenter.New(a.Bus, presenter.Options{
		ToastTTL:         cfg.ToastTTL,
		BadgeBounceTTL:   cfg.BadgeBounceTTL,
		CartShipping:     cfg.CartShipping,
		CheckoutShipping: cfg.CheckoutShipping,
	}, logger)
	return a, nil
}

func (a *App) sessionRepo(ctx context.Context) (sessionrepo.Repository, error) {
	switch a.Config.SessionStore {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, a.Config.DBConnString)
		if err != nil {
			return nil, errors.Wrap(err, "connect session store")
		}
		a.pool = pool
		return sessionrepo.NewPostgres(pool, a.Logger), nil
	case config.StoreFile:
		return sessionrepo.NewFile(a.Config.SessionFile), nil
	default:
		return sessionrepo.NewMemory(), nil
	}
}

func (a *App) cartCache(ctx context.Context) (cartcache.Cache, error) {
	if a.Config.CartCache != config.CacheRedis {
		return cartcache.NewMemory(), nil
	}
	client, err := db.ConnectRedis(ctx, a.Config.RedisAddr)
	if err != nil {
		return nil, errors.Wrap(err, "connect cart cache")
	}
	a.redis = client
	return cartcache.NewRedis(client, a.Config.CartCacheTTL), nil
}

// Start restores the session, loads the cart (cached copy first) and then
// lets the reconciler follow logins and logouts until ctx is done or Close.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Load(ctx); err != nil {
		return err
	}
	a.Cart.Load(ctx)
	a.unfollow = a.Cart.Follow(ctx)
	return nil
}

// ServerDeps exposes the components to the presenter surface.
func (a *App) ServerDeps() httpserver.Deps {
	return httpserver.Deps{
		Session:     a.Session,
		Auth:        a.Auth,
		Cart:        a.Cart,
		Presenter:   a.Presenter,
		Events:      a.Bus,
		CORSOrigins: a.Config.CORSOrigins,
		Ready:       a.ReadyChecks(),
	}
}

// ReadyChecks pings the external stores in use.
func (a *App) ReadyChecks() []httpserver.ReadyCheck {
	var checks []httpserver.ReadyCheck
	if a.pool != nil {
		pool := a.pool
		checks = append(checks, httpserver.ReadyCheck{Name: "postgres", Check: pool.Ping})
	}
	if a.redis != nil {
		client := a.redis
		checks = append(checks, httpserver.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close tears the graph down in reverse order of construction.
func (a *App) Close() {
	if a.unfollow != nil {
		a.unfollow()
		a.unfollow = nil
	}
	if a.Presenter != nil {
		a.Presenter.Close()
	}
	if a.Session != nil {
		_ = a.Session.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("close redis")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
