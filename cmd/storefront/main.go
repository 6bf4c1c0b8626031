package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"storefront-client/internal/app"
	"storefront-client/internal/config"
	"storefront-client/internal/httpserver"
	"storefront-client/internal/logging"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("cmd", "storefront")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("init app")
	}
	defer a.Close()

	srv, err := httpserver.New(cfg.HTTPAddr, logger, a.ServerDeps())
	if err != nil {
		log.WithError(err).Fatal("init server")
	}

	if err := a.Start(ctx); err != nil {
		log.WithError(err).Fatal("start app")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		a.Close()
		os.Exit(1)
	}
	log.Info("server stopped")
}
