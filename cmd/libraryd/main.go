// cmd/libraryd/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bookloan/internal/config"
	"bookloan/internal/obs"
	"bookloan/internal/server"
)

func main() {
	cfg := config.NewConfig()
	logger := obs.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("service stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	shutdownMetrics, err := obs.SetupMetrics(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logger.Warn("failed to flush metrics", "error", err)
		}
	}()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("🚀 starting library service", "addr", cfg.HTTP.Addr)
	return app.Run(ctx)
}
