package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consentlake/internal/platform/config"
	"consentlake/internal/platform/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	kafkaCloseTimeout = 10 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing consentlake",
		"addr", cfg.ServerAddr,
		"environment", cfg.Environment,
		"lake_backend", cfg.Lake.Backend,
		"consent_store", cfg.Consent.Store,
	)

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	app.ingestor.Start()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           app.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server gracefully")
	case err := <-serveErr:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	// Stop accepting logs before the final flush, then release clients the
	// flush no longer needs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	app.ingestor.Shutdown(shutdownCtx)
	app.close(kafkaCloseTimeout)

	log.Info("server stopped")
	return errors.Join(errs...)
}
