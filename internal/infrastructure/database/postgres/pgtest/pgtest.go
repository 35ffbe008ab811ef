//go:build integration

// Package pgtest starts a throwaway PostgreSQL container for integration
// tests.
package pgtest

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
)

// Start launches PostgreSQL 16 and returns its configuration.  The
// container is terminated when t ends.
func Start(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "dossier_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:     host,
		Port:     p,
		User:     "test",
		Password: "test",
		DBName:   "dossier_test",
		SSLMode:  "disable",
		MaxConns: 5,
	}
}

// StartMigrated starts a container, applies the schema and returns a pool.
func StartMigrated(t *testing.T) (*pgxpool.Pool, config.DatabaseConfig) {
	t.Helper()
	cfg := Start(t)
	require.NoError(t, postgres.NewMigrator(cfg).Up())

	pool, err := postgres.NewConnectionPool(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { postgres.Close(pool) })
	return pool, cfg
}
