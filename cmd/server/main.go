package main

import (
	"context"
	"os"

	"github.com/david/proposaland/internal/api"
	"github.com/david/proposaland/internal/auth"
	"github.com/david/proposaland/internal/config"
	"github.com/david/proposaland/internal/db"
	"github.com/david/proposaland/internal/engine"
	"github.com/david/proposaland/internal/logging"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	cfg, err := config.Load(os.Getenv("PROPOSALAND_CONFIG"))
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	authn, generated, err := auth.New(os.Getenv("JWT_SECRET"))
	if err != nil {
		logger.Fatal("auth setup", zap.Error(err))
	}
	if generated {
		logger.Warn("JWT_SECRET is not set; using an ephemeral secret")
	}

	srv := api.NewServer(engine.New(cfg, engine.WithLogger(logger)), db.NewStore(pool), authn, logger)
	if err := srv.Start(port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
