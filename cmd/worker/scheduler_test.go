package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

type recorder struct {
	mu    sync.Mutex
	calls []common.TenantID
}

func (r *recorder) scan(fail map[common.TenantID]error) scanFunc {
	return func(_ context.Context, tenant common.TenantID) (*app.ScanReport, error) {
		r.mu.Lock()
		r.calls = append(r.calls, tenant)
		r.mu.Unlock()
		if err := fail[tenant]; err != nil {
			return nil, err
		}
		return &app.ScanReport{TenantID: tenant, Scanned: 1}, nil
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestScheduler_TickScansEveryTenant(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rec := &recorder{}
	s := newScheduler(rec.scan(map[common.TenantID]error{
		"b": errors.New(errors.CodeLockNotAcquired, "held"),
		"c": errors.New(errors.ErrCodeInternal, "boom"),
	}), config.ScanConfig{Interval: time.Hour, Tenants: []string{"a", "b", "c"}}, logging.NewLoggerFromCore(core))

	ticks := 0
	s.onTick = func() { ticks++ }
	s.tick(context.Background())

	assert.Equal(t, []common.TenantID{"a", "b", "c"}, rec.calls)
	assert.Equal(t, 1, ticks)
	assert.Equal(t, 1, logs.FilterMessage("Scan finished").Len())
	assert.Equal(t, 1, logs.FilterMessage("Scan skipped, another worker holds the lock").Len())
	assert.Equal(t, 1, logs.FilterMessage("Scan failed").Len())
}

func TestScheduler_TickStopsWhenCancelled(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(rec.scan(nil), config.ScanConfig{Interval: time.Hour, Tenants: []string{"a", "b"}}, logging.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.tick(ctx)
	assert.Zero(t, rec.count())
}

func TestScheduler_RunScansImmediatelyAndFollowsUpdates(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(rec.scan(nil), config.ScanConfig{Interval: time.Hour, Tenants: []string{"a"}}, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	s.Update(config.ScanConfig{Interval: 10 * time.Millisecond, Tenants: []string{"a", "b"}})
	require.Eventually(t, func() bool { return rec.count() >= 5 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_UpdateWithSameIntervalKeepsTicker(t *testing.T) {
	s := newScheduler(nil, config.ScanConfig{Interval: time.Minute, Tenants: []string{"a"}}, logging.NewNopLogger())
	s.Update(config.ScanConfig{Interval: time.Minute, Tenants: []string{"x", "y"}})

	tenants, interval := s.snapshot()
	assert.Equal(t, []common.TenantID{"x", "y"}, tenants)
	assert.Equal(t, time.Minute, interval)
	assert.Empty(t, s.reset)
}
