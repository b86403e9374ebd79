package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"listings-api/consumers"
	"listings-api/migrations"
	"listings-api/routes"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd)
		},
	}
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	// 1. Wire everything
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	logger := a.logger

	// 2. Schema and admin seed
	applied, err := migrations.NewMigrator(a.db).Up()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}
	if _, err := a.auth.EnsureAdmin(ctx, a.cfg.Auth.AdminUsername, a.cfg.Auth.AdminPassword); err != nil {
		return err
	}

	// 3. Event consumer, so other instances' writes clear our cache
	if a.cfg.Messaging.RabbitMQURL != "" {
		consumer, err := consumers.NewRabbitMQConsumer(a.cfg.Messaging.RabbitMQURL, a.cfg.Messaging.Exchange,
			consumers.NewCacheInvalidator(a.cache, logger), logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("close event consumer", zap.Error(err))
			}
		}()
		if err := consumer.Start(); err != nil {
			return err
		}
		logger.Info("event consumer started")
	}

	// 4. HTTP server
	gin.SetMode(a.cfg.Server.GinMode)
	router := routes.SetupRouter(a.cfg, a.db, routes.Services{
		Auth:        a.auth,
		Listings:    a.listings,
		Imports:     a.imports,
		Memos:       a.memos,
		Images:      a.images,
		Collections: a.collections,
	}, logger)

	server := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listings-api listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 5. Wait for a signal, then drain in-flight requests
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
