package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/proposaland/internal/api"
	"github.com/david/proposaland/internal/auth"
	"github.com/david/proposaland/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var noDB bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			authn, generated, err := auth.New(os.Getenv("JWT_SECRET"))
			if err != nil {
				return err
			}
			if generated {
				a.logger.Warn("JWT_SECRET is not set; using an ephemeral secret, issued tokens die with this process")
			}

			var store api.Store
			if !noDB {
				pool, err := db.Connect(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()
				if err := db.ApplyMigrations(ctx, pool, a.logger); err != nil {
					return err
				}
				store = db.NewStore(pool)
			}

			srv := api.NewServer(a.engine, store, authn, a.logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("shutdown", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("PORT", "8081"), "Listen address or port")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "Serve without a database; stored-result endpoints answer 503")
	return cmd
}
