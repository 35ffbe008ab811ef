package dossier

import (
	"context"
	"time"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Repositories bundles the repositories bound to one transaction.
type Repositories struct {
	Dossiers     domain.DossierRepository
	Obligations  domain.ObligationRepository
	Declarations domain.DeclarationRepository
	Alerts       domain.AlertRepository
	History      domain.HistoryRepository
}

// TxRunner runs fn inside a transaction.  The transaction commits when fn
// returns nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// EventPublisher broadcasts domain events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Lock is a held distributed lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out named locks.  Acquire fails with CodeLockNotAcquired
// when another holder has the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Clock returns the current instant.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// Metrics receives counters from the service and the scanner.
type Metrics interface {
	RecordTransition(from, to domain.Status, automatic bool)
	RecordAlert(kind domain.AlertKind, raised bool)
	RecordGenerated(service domain.ServiceType, rows int)
	RecordScan(tenant common.TenantID, duration time.Duration, report *ScanReport, err error)
}

type nopMetrics struct{}

func (nopMetrics) RecordTransition(domain.Status, domain.Status, bool)           {}
func (nopMetrics) RecordAlert(domain.AlertKind, bool)                            {}
func (nopMetrics) RecordGenerated(domain.ServiceType, int)                       {}
func (nopMetrics) RecordScan(common.TenantID, time.Duration, *ScanReport, error) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...Event) error { return nil }
