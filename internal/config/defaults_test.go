package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, "all", cfg.Kafka.RequiredAcks)
	assert.Equal(t, DefaultScanInterval, cfg.Scan.Interval)
	assert.Equal(t, 7, cfg.Scan.InactivityDays)
	require.NotNil(t, cfg.Scan.ApproachingDays)
	assert.Equal(t, 3, *cfg.Scan.ApproachingDays)
	assert.Equal(t, 5, cfg.Scan.OverdueEscalationDays)
	assert.Equal(t, DefaultOpsPort, cfg.Ops.Port)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
	assert.False(t, cfg.Catalog.ShiftDeclarationDates)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "pg.internal", MaxConns: 5},
		Scan:     ScanConfig{Interval: time.Minute, InactivityDays: 14},
		Log:      LogConfig{Level: "debug"},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "pg.internal", cfg.Database.Host)
	assert.Equal(t, 5, cfg.Database.MaxConns)
	assert.Equal(t, time.Minute, cfg.Scan.Interval)
	assert.Equal(t, 14, cfg.Scan.InactivityDays)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyDefaults_KeepsZeroLookAhead(t *testing.T) {
	zero := 0
	cfg := &Config{Scan: ScanConfig{ApproachingDays: &zero}}
	ApplyDefaults(cfg)
	require.NotNil(t, cfg.Scan.ApproachingDays)
	assert.Zero(t, *cfg.Scan.ApproachingDays)
}

func TestApplyDefaults_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
