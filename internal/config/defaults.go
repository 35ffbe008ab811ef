package config

import "time"

const (
	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "dossier"
	DefaultDBName     = "dossier"
	DefaultDBMaxConns = 25
	DefaultDBMinConns = 2

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "dossier:"

	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaClientID = "dossier-engine"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultScanInterval          = 15 * time.Minute
	DefaultScanLockTTL           = 5 * time.Minute
	DefaultInactivityDays        = 7
	DefaultApproachingDays       = 3
	DefaultOverdueEscalationDays = 5
	DefaultScanBatchSize         = 200

	DefaultOpsPort = 9090
	DefaultOpsMode = "release"

	DefaultMetricsNamespace = "dossier"
)

// ApplyDefaults fills every zero-value field in cfg with its default.  Values
// already set by the file or environment are left unchanged.  It must run
// before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = DefaultDBMinConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30 * time.Minute
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.Kafka.MaxAttempts == 0 {
		cfg.Kafka.MaxAttempts = 3
	}
	if cfg.Kafka.RequiredAcks == "" {
		cfg.Kafka.RequiredAcks = "all"
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Scan ──────────────────────────────────────────────────────────────────
	if cfg.Scan.Interval == 0 {
		cfg.Scan.Interval = DefaultScanInterval
	}
	if cfg.Scan.LockTTL == 0 {
		cfg.Scan.LockTTL = DefaultScanLockTTL
	}
	if cfg.Scan.InactivityDays == 0 {
		cfg.Scan.InactivityDays = DefaultInactivityDays
	}
	if cfg.Scan.ApproachingDays == nil {
		days := DefaultApproachingDays
		cfg.Scan.ApproachingDays = &days
	}
	if cfg.Scan.OverdueEscalationDays == 0 {
		cfg.Scan.OverdueEscalationDays = DefaultOverdueEscalationDays
	}
	if cfg.Scan.BatchSize == 0 {
		cfg.Scan.BatchSize = DefaultScanBatchSize
	}

	// ── Ops ───────────────────────────────────────────────────────────────────
	if cfg.Ops.Port == 0 {
		cfg.Ops.Port = DefaultOpsPort
	}
	if cfg.Ops.Mode == "" {
		cfg.Ops.Mode = DefaultOpsMode
	}
	if cfg.Ops.ShutdownTimeout == 0 {
		cfg.Ops.ShutdownTimeout = 10 * time.Second
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
