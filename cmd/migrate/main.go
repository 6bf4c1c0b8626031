package main

import (
	"context"
	"flag"

	"storefront-client/internal/config"
	"storefront-client/internal/db"
	"storefront-client/internal/logging"
	"storefront-client/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "roll every migration back instead of applying them")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("cmd", "migrate")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	if *down {
		if err := migrate.Drop(ctx, pool); err != nil {
			logger.WithError(err).Fatal("roll back migrations")
		}
		logger.Info("migrations rolled back")
		return
	}

	if err := migrate.Apply(ctx, pool); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}
	logger.Info("migrations applied")
}
