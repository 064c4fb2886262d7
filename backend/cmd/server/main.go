package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BioHazard786/Warpchat/backend/internal/config"
	"github.com/BioHazard786/Warpchat/backend/internal/events"
	"github.com/BioHazard786/Warpchat/backend/internal/logging"
	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
	"github.com/BioHazard786/Warpchat/backend/internal/server"
	"github.com/BioHazard786/Warpchat/backend/internal/signaling"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(slog.Default())
	if err != nil {
		return err
	}
	logger := logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Lifecycle events go out through the configured broker.
	sink, err := events.NewSink(ctx, cfg.Events)
	if err != nil {
		return err
	}
	publisher := events.NewPublisher(sink, cfg.Events.Buffer, logger.With("component", "events"))

	// 2. Create the Hub and the engine behind it, then run the hub loop.
	hub := signaling.NewHub(logger.With("component", "hub"),
		matchmaking.WithWaitingTTL(cfg.WaitingTTL),
		matchmaking.WithNotifyEvicted(cfg.NotifyEvicted),
		matchmaking.WithObserver(publisher),
	)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	// 3. The reaper evicts stale waiters until shutdown.
	reaper := matchmaking.NewReaper(hub.Engine(), cfg.ReapInterval, logger.With("component", "reaper"))
	go reaper.Run(ctx)

	// 4. Start the HTTP server.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.NewRouter(hub, cfg.AllowedOrigins, logger.With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting signaling server", "addr", srv.Addr, "events", cfg.Events.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stopHub()
		publisher.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	stopHub()
	<-hub.Done()

	if err := publisher.Close(shutdownCtx); err != nil {
		logger.Warn("Event publisher did not drain", "error", err)
	}
	logger.Info("Server stopped")
	return nil
}
