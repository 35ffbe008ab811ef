package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

// Cache stores JSON values under the client prefix.
type Cache struct {
	client     *Client
	logger     logging.Logger
	defaultTTL time.Duration
}

// NewCache returns a cache whose entries expire after defaultTTL unless a
// TTL is given on Set.
func NewCache(client *Client, log logging.Logger, defaultTTL time.Duration) *Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Cache{client: client, logger: log, defaultTTL: defaultTTL}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.GetUnderlyingClient().Get(ctx, c.client.Key(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.GetUnderlyingClient().Set(ctx, c.client.Key(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache")
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.client.Key(k)
	}
	if err := c.client.GetUnderlyingClient().Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete from cache")
	}
	return nil
}

// ScanReports keeps the last scan report of each tenant so the CLI and the
// ops endpoint can read what the worker did.
type ScanReports struct {
	cache *Cache
}

const scanReportTTL = 7 * 24 * time.Hour

// NewScanReports returns the report store over client.
func NewScanReports(client *Client, log logging.Logger) *ScanReports {
	return &ScanReports{cache: NewCache(client, log, scanReportTTL)}
}

func scanReportKey(tenant common.TenantID) string {
	return "scan:last:" + string(tenant)
}

// Save overwrites the tenant's last report.
func (s *ScanReports) Save(ctx context.Context, report *app.ScanReport) error {
	return s.cache.Set(ctx, scanReportKey(report.TenantID), report, 0)
}

// Last returns the tenant's last report, or ErrCacheMiss.
func (s *ScanReports) Last(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error) {
	var report app.ScanReport
	if err := s.cache.Get(ctx, scanReportKey(tenant), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
