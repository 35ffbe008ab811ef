package cli

import (
	"context"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/bootstrap"
	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/dossier-engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// ScanRunner runs one scan pass.
type ScanRunner interface {
	Run(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error)
}

// ReportReader reads the last scan report of a tenant.
type ReportReader interface {
	Last(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error)
}

// Backend is what dossier, obligation and scan commands run against.
type Backend interface {
	Service() app.Service
	Scanner() ScanRunner
	Reports() ReportReader
	Close()
}

// Migrator manages the schema version.
type Migrator interface {
	Up() error
	Rollback(steps int) error
	Status() (version uint, dirty bool, err error)
	Force(version int) error
}

// EventStream is a consumer of the event topics.
type EventStream interface {
	Run(ctx context.Context, handle kafka.EnvelopeHandler) error
	Close() error
}

// TopicAdmin creates the event topics.
type TopicAdmin interface {
	EnsureTopics(ctx context.Context, replication int) ([]string, error)
	Close() error
}

// Factory builds the collaborators of the commands.  Tests replace single
// fields; nil fields take the production constructors.
type Factory struct {
	LoadConfig func(path string) (*config.Config, error)
	Logger     func(level string) (logging.Logger, error)
	Backend    func(ctx context.Context, cfg *config.Config, log logging.Logger) (Backend, error)
	Migrator   func(cfg *config.Config) Migrator
	Events     func(cfg *config.Config, opts kafka.ConsumerOptions, log logging.Logger) (EventStream, error)
	Topics     func(cfg *config.Config, log logging.Logger) (TopicAdmin, error)
}

// DefaultFactory returns the production factory.
func DefaultFactory() Factory {
	return Factory{}.withDefaults()
}

func (f Factory) withDefaults() Factory {
	if f.LoadConfig == nil {
		f.LoadConfig = config.LoadOrEnv
	}
	if f.Logger == nil {
		f.Logger = func(level string) (logging.Logger, error) {
			return logging.NewLogger(logging.LogConfig{
				Level:            level,
				Format:           "console",
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
		}
	}
	if f.Backend == nil {
		f.Backend = openRuntime
	}
	if f.Migrator == nil {
		f.Migrator = func(cfg *config.Config) Migrator { return postgres.NewMigrator(cfg.Database) }
	}
	if f.Events == nil {
		f.Events = func(cfg *config.Config, opts kafka.ConsumerOptions, log logging.Logger) (EventStream, error) {
			c, err := kafka.NewConsumer(cfg.Kafka, opts, log)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if f.Topics == nil {
		f.Topics = func(cfg *config.Config, log logging.Logger) (TopicAdmin, error) {
			m, err := kafka.NewTopicManager(cfg.Kafka.Brokers, log)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return f
}

type runtimeBackend struct {
	rt *bootstrap.Runtime
}

func openRuntime(ctx context.Context, cfg *config.Config, log logging.Logger) (Backend, error) {
	rt, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to open runtime")
	}
	return runtimeBackend{rt: rt}, nil
}

func (b runtimeBackend) Service() app.Service  { return b.rt.Service() }
func (b runtimeBackend) Scanner() ScanRunner   { return b.rt.Scanner() }
func (b runtimeBackend) Reports() ReportReader { return b.rt.Reports() }
func (b runtimeBackend) Close()                { b.rt.Close() }
