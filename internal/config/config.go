// Package config defines the configuration structures of the dossier engine.
// No I/O lives in this file, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// AutoMigrate applies the embedded migrations when the worker starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN renders the connection string accepted by pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the event producer parameters.  With Enabled false the
// engine runs without publishing events.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	ClientID     string        `mapstructure:"client_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RequiredAcks string        `mapstructure:"required_acks"` // "none" | "one" | "all"
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// ScanConfig drives the periodic background scan.
type ScanConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// Tenants lists the tenants the worker scans on every tick.
	Tenants []string `mapstructure:"tenants"`
	// LockTTL bounds how long one worker may hold a tenant's scan lock.
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	InactivityDays int           `mapstructure:"inactivity_days"`
	// ApproachingDays is nil when unset; 0 alerts on the due day only.
	ApproachingDays       *int `mapstructure:"approaching_days"`
	OverdueEscalationDays int  `mapstructure:"overdue_escalation_days"`
	BatchSize             int  `mapstructure:"batch_size"`
}

// CatalogConfig adjusts the obligation catalog built at startup.
type CatalogConfig struct {
	// ShiftDeclarationDates rolls statutory declaration due dates forward
	// over weekends like échéance due dates.
	ShiftDeclarationDates bool `mapstructure:"shift_declaration_dates"`
	// PriorYearLag overrides, per legal form, the declaration types that are
	// also generated for the previous fiscal year.
	PriorYearLag map[string][]string `mapstructure:"prior_year_lag"`
}

// OpsConfig holds the worker's health and metrics HTTP endpoint.
type OpsConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus registration parameters.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("config: database.min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker when kafka is enabled")
	}
	switch c.Kafka.RequiredAcks {
	case "none", "one", "all":
	default:
		return fmt.Errorf("config: kafka.required_acks %q is invalid; expected none|one|all", c.Kafka.RequiredAcks)
	}

	if c.Scan.Interval < time.Second {
		return fmt.Errorf("config: scan.interval must be at least 1s, got %s", c.Scan.Interval)
	}
	if c.Scan.LockTTL <= 0 {
		return fmt.Errorf("config: scan.lock_ttl must be positive")
	}
	if c.Scan.InactivityDays < 1 {
		return fmt.Errorf("config: scan.inactivity_days must be >= 1, got %d", c.Scan.InactivityDays)
	}
	if c.Scan.ApproachingDays != nil && *c.Scan.ApproachingDays < 0 {
		return fmt.Errorf("config: scan.approaching_days must be >= 0, got %d", *c.Scan.ApproachingDays)
	}
	if c.Scan.OverdueEscalationDays < 0 {
		return fmt.Errorf("config: scan.overdue_escalation_days must be >= 0, got %d", c.Scan.OverdueEscalationDays)
	}

	if c.Ops.Port < 1 || c.Ops.Port > 65535 {
		return fmt.Errorf("config: ops.port %d is out of range [1, 65535]", c.Ops.Port)
	}
	switch c.Ops.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: ops.mode %q is invalid; expected debug|release|test", c.Ops.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
