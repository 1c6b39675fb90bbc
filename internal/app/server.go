package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echoflow/internal/config"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Serve bootstraps the application and serves HTTP until SIGINT or
// SIGTERM.
func Serve(cfg *config.Config, logger *zap.Logger) error {
	application, err := Bootstrap(cfg, logger)
	if err != nil {
		return err
	}

	addr := ":" + cfg.ServerPort
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("addr", "localhost"+addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("Server stopped with error", zap.Error(err))
		_ = application.Shutdown(context.Background())
		return err
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := application.Shutdown(ctx); err != nil {
		logger.Warn("Application shutdown incomplete", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
	return nil
}
