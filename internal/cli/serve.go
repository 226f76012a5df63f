package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/r-ms/detect-spam/internal/app"
	"github.com/r-ms/detect-spam/internal/classifier"
	"github.com/r-ms/detect-spam/internal/config"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}

	container, err := app.BuildContainer(configPath)
	if err != nil {
		return err
	}

	return container.Invoke(func(
		cfg *config.Config,
		logger *zap.Logger,
		svc *classifier.Service,
		srv *http.Server,
	) error {
		defer logger.Sync()
		defer func() {
			if err := app.Close(container); err != nil {
				logger.Warn("close resources", zap.Error(err))
			}
		}()

		app.LogConfig(logger, cfg)

		checkCtx, cancel := context.WithTimeout(parent, 10*time.Second)
		app.CheckModel(checkCtx, svc.Generator(), cfg.Backend.Model, logger)
		cancel()

		ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting spamcheck",
			zap.String("addr", srv.Addr),
			zap.String("provider", cfg.Backend.Provider),
			zap.String("model", cfg.Backend.Model),
			zap.String("cache_backend", cfg.Cache.Backend),
		)

		// Start server in background
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", zap.Error(err))
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		case <-ctx.Done():
		}

		// ----- Graceful shutdown -----
		logger.Info("shutdown signal received")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
			return err
		}

		logger.Info("server shutdown complete")
		return nil
	})
}
