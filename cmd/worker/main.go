// worker runs the periodic dossier scan and serves the ops endpoints
// (health, metrics, scan reports).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/dossier-engine/internal/bootstrap"
	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	opshttp "github.com/turtacn/dossier-engine/internal/interfaces/http"
	"github.com/turtacn/dossier-engine/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file (default: DOSSIER_* environment only)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetDefault(logger)

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(cfg.Database).Up(); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	router := opshttp.NewRouter(opshttp.RouterConfig{
		Mode:             cfg.Ops.Mode,
		HealthHandler:    handlers.NewHealthHandler(version, rt.HealthCheckers()...),
		ScanHandler:      handlers.NewScanHandler(rt.Reports(), rt.Scanner(), logger),
		MetricsCollector: rt.Collector,
		Recorder:         rt.Metrics,
		Logger:           logger,
	})
	server := opshttp.NewServer(cfg.Ops, router, logger)

	sched := newScheduler(rt.Scanner().Run, cfg.Scan, logger)
	sched.onTick = rt.RecordPool

	// Log level, tenants and interval follow edits of the file.  Everything
	// else needs a restart.
	if configPath != "" {
		config.Watch(configPath, func(next *config.Config) {
			if setter, ok := logger.(logging.LevelSetter); ok {
				setter.SetLevel(next.Log.Level)
			}
			sched.Update(next.Scan)
			logger.Info("Configuration reloaded")
		}, func(err error) {
			logger.Warn("Ignoring invalid configuration edit", logging.Err(err))
		})
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	logger.Info("Worker started",
		logging.String("version", version),
		logging.Int("tenants", len(cfg.Scan.Tenants)),
		logging.Duration("interval", cfg.Scan.Interval))

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		sched.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Ops server failed", logging.Err(err))
		}
		stop()
	}

	<-loopDone
	if err := server.Stop(context.Background()); err != nil {
		logger.Error("Ops server shutdown error", logging.Err(err))
	}
	logger.Info("Worker stopped")
	return nil
}
