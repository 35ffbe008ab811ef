package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/dossier-engine/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/turtacn/dossier-engine/internal/infrastructure/database/redis"
	"github.com/turtacn/dossier-engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/dossier-engine/internal/interfaces/http/handlers"
)

// Runtime owns the live connections and the services built on them.
type Runtime struct {
	Config    *config.Config
	Logger    logging.Logger
	Pool      *pgxpool.Pool
	Redis     *redisinfra.Client
	Producer  *kafka.Producer // nil when kafka is disabled
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	service app.Service
	scanner *RecordingScanner
	reports *redisinfra.ScanReports
}

// New connects to PostgreSQL, Redis and, when enabled, Kafka, then builds
// the service and the scanner.  Everything opened so far is closed when a
// later step fails.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Runtime, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	rt := &Runtime{Config: cfg, Logger: log}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            cfg.Metrics.Subsystem,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	rt.Collector = collector
	rt.Metrics = prometheus.NewAppMetrics(collector)

	pool, err := postgres.NewConnectionPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	rt.Pool = pool

	rdb, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	rt.Redis = rdb

	var events app.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		rt.Producer = producer
		events = producer
	}

	d := NewDomain(cfg)
	tx := repositories.NewTxRunner(pool, log)
	rt.service = app.NewService(app.Deps{
		Tx:        tx,
		Generator: d.Generator,
		Engine:    d.Engine,
		Evaluator: d.Evaluator,
		Dedup:     d.Dedup,
		Events:    events,
		Metrics:   rt.Metrics,
		Logger:    log.Named("dossier"),
	})
	scanner := app.NewScanner(app.ScannerDeps{
		Tx:        tx,
		Locker:    redisinfra.NewLocker(rdb, log),
		Engine:    d.Engine,
		Evaluator: d.Evaluator,
		Dedup:     d.Dedup,
		Events:    events,
		Metrics:   rt.Metrics,
		Logger:    log,
		Config: app.ScannerConfig{
			BatchSize: cfg.Scan.BatchSize,
			LockTTL:   cfg.Scan.LockTTL,
		},
	})
	rt.reports = redisinfra.NewScanReports(rdb, log)
	rt.scanner = NewRecordingScanner(scanner.Run, rt.reports, log)

	log.Info("Runtime initialized", logging.Bool("kafka", cfg.Kafka.Enabled))
	return rt, nil
}

func (r *Runtime) Service() app.Service             { return r.service }
func (r *Runtime) Scanner() *RecordingScanner       { return r.scanner }
func (r *Runtime) Reports() *redisinfra.ScanReports { return r.reports }

// HealthCheckers returns the readiness checks of the open connections.
func (r *Runtime) HealthCheckers() []handlers.HealthChecker {
	checks := []handlers.HealthChecker{
		handlers.CheckFunc{ComponentName: "postgres", Fn: func(ctx context.Context) error {
			return postgres.HealthCheck(ctx, r.Pool, r.Logger)
		}},
		handlers.CheckFunc{ComponentName: "redis", Fn: r.Redis.Ping},
	}
	return checks
}

// RecordPool copies the pool statistics into the gauges.
func (r *Runtime) RecordPool() {
	if r.Pool != nil {
		r.Metrics.RecordPool(r.Pool.Stat())
	}
}

// Close releases connections in reverse order of opening.
func (r *Runtime) Close() {
	if r.Producer != nil {
		if err := r.Producer.Close(); err != nil {
			r.Logger.Warn("Failed to close kafka producer", logging.Err(err))
		}
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	postgres.Close(r.Pool)
}
