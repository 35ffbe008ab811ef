package main

import (
	"context"
	"sync"
	"time"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

type scanFunc func(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error)

// scheduler scans every configured tenant once per interval.  Tenants are
// scanned one after the other; a tick that arrives while a pass is still
// running is dropped by the ticker.
type scheduler struct {
	scan   scanFunc
	logger logging.Logger
	onTick func()

	mu       sync.Mutex
	tenants  []common.TenantID
	interval time.Duration
	reset    chan time.Duration
}

func newScheduler(scan scanFunc, cfg config.ScanConfig, log logging.Logger) *scheduler {
	s := &scheduler{
		scan:   scan,
		logger: log.Named("scheduler"),
		reset:  make(chan time.Duration, 1),
	}
	s.apply(cfg)
	return s
}

func (s *scheduler) apply(cfg config.ScanConfig) bool {
	tenants := make([]common.TenantID, 0, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		tenants = append(tenants, common.TenantID(t))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = tenants
	changed := cfg.Interval != s.interval
	s.interval = cfg.Interval
	return changed
}

// Update swaps the tenant list and, when it changed, the interval.
func (s *scheduler) Update(cfg config.ScanConfig) {
	if !s.apply(cfg) {
		return
	}
	select {
	case <-s.reset:
	default:
	}
	s.reset <- cfg.Interval
}

func (s *scheduler) snapshot() ([]common.TenantID, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.TenantID(nil), s.tenants...), s.interval
}

// Run scans immediately, then on every tick until ctx is done.
func (s *scheduler) Run(ctx context.Context) {
	_, interval := s.snapshot()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.reset:
			ticker.Reset(d)
			s.logger.Info("Scan interval changed", logging.Duration("interval", d))
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *scheduler) tick(ctx context.Context) {
	if s.onTick != nil {
		s.onTick()
	}
	tenants, _ := s.snapshot()
	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return
		}
		log := s.logger.With(logging.String("tenant_id", string(tenant)))
		report, err := s.scan(ctx, tenant)
		switch {
		case errors.IsCode(err, errors.CodeLockNotAcquired):
			log.Debug("Scan skipped, another worker holds the lock")
		case err != nil:
			log.Error("Scan failed", logging.Err(err))
		default:
			log.Info("Scan finished",
				logging.Int("scanned", report.Scanned),
				logging.Int("marked_overdue", report.MarkedOverdue),
				logging.Int("alerts_raised", report.TotalRaised()),
				logging.Int("errors", report.Errors),
				logging.Duration("duration", report.Duration))
		}
	}
}
