package dossier

import (
	"context"
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/alerting"
	"github.com/turtacn/dossier-engine/internal/domain/calendar"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/domain/lifecycle"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

const (
	defaultScanBatch   = 200
	defaultScanLockTTL = 10 * time.Minute
)

// ScanReport summarises one pass over a tenant's open dossiers.
type ScanReport struct {
	TenantID         common.TenantID          `json:"tenant_id"`
	StartedAt        time.Time                `json:"started_at"`
	Duration         time.Duration            `json:"duration"`
	Scanned          int                      `json:"scanned"`
	MarkedOverdue    int                      `json:"marked_overdue"`
	MovedToWaiting   int                      `json:"moved_to_waiting"`
	PriorityChanged  int                      `json:"priority_changed"`
	AlertsRaised     map[domain.AlertKind]int `json:"alerts_raised"`
	AlertsSuppressed int                      `json:"alerts_suppressed"`
	AlertsResolved   int                      `json:"alerts_resolved"`
	// Errors counts dossiers whose transaction failed; the scan continues.
	Errors int `json:"errors"`
}

// TotalRaised sums AlertsRaised.
func (r *ScanReport) TotalRaised() int {
	n := 0
	for _, c := range r.AlertsRaised {
		n += c
	}
	return n
}

// ScannerConfig tunes the scanner.
type ScannerConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// ScannerDeps wires the scanner.  Locker may be nil for single-process use.
type ScannerDeps struct {
	Tx        TxRunner
	Locker    Locker
	Engine    *lifecycle.Engine
	Evaluator *alerting.Evaluator
	Dedup     *alerting.Deduplicator
	Events    EventPublisher
	Metrics   Metrics
	Clock     Clock
	Logger    logging.Logger
	Config    ScannerConfig
}

// Scanner runs the periodic pass: overdue marking, inactivity, priority and
// alerts.  Obligation completion is not rolled up here.
type Scanner struct {
	deps   ScannerDeps
	logger logging.Logger
}

// NewScanner fills defaults and returns a Scanner.
func NewScanner(deps ScannerDeps) *Scanner {
	if deps.Engine == nil {
		deps.Engine = lifecycle.NewEngine()
	}
	if deps.Evaluator == nil {
		deps.Evaluator = alerting.NewEvaluator(alerting.DefaultThresholds())
	}
	if deps.Dedup == nil {
		deps.Dedup = alerting.NewDeduplicator(nil)
	}
	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Config.BatchSize <= 0 {
		deps.Config.BatchSize = defaultScanBatch
	}
	if deps.Config.LockTTL <= 0 {
		deps.Config.LockTTL = defaultScanLockTTL
	}
	return &Scanner{deps: deps, logger: deps.Logger.Named("scan")}
}

// ScanLockKey is the lock name guarding a tenant's scan.
func ScanLockKey(tenant common.TenantID) string { return "scan:" + string(tenant) }

// Run scans every open dossier of tenant.  Each dossier is processed in its
// own transaction; a failing dossier is counted and skipped.  Run returns
// CodeLockNotAcquired when another scan holds the tenant lock.
func (s *Scanner) Run(ctx context.Context, tenant common.TenantID) (*ScanReport, error) {
	if err := tenant.Validate(); err != nil {
		return nil, apperrors.InvalidParam(err.Error())
	}
	now := s.deps.Clock()
	report := &ScanReport{TenantID: tenant, StartedAt: now, AlertsRaised: map[domain.AlertKind]int{}}
	log := s.logger.With(logging.String("tenant", string(tenant)))

	if s.deps.Locker != nil {
		lock, err := s.deps.Locker.Acquire(ctx, ScanLockKey(tenant), s.deps.Config.LockTTL)
		if err != nil {
			log.Warn("scan skipped, lock held elsewhere", logging.Err(err))
			return nil, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("scan lock release failed", logging.Err(err))
			}
		}()
	}

	var runErr error
	after := common.ID("")
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		var ids []common.ID
		err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
			var err error
			ids, err = repos.Dossiers.ListOpenIDs(ctx, tenant, after, s.deps.Config.BatchSize)
			return err
		})
		if err != nil {
			runErr = err
			break
		}
		for _, id := range ids {
			if err := s.scanOne(ctx, tenant, id, now, report); err != nil {
				report.Errors++
				log.Error("dossier scan failed", logging.String("dossier_id", string(id)), logging.Err(err))
			}
		}
		if len(ids) < s.deps.Config.BatchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	report.Duration = s.deps.Clock().Sub(now)
	s.deps.Metrics.RecordScan(tenant, report.Duration, report, runErr)
	if runErr != nil {
		log.Error("scan aborted", logging.Int("scanned", report.Scanned), logging.Err(runErr))
		return report, runErr
	}
	log.Info("scan finished",
		logging.Int("scanned", report.Scanned),
		logging.Int("marked_overdue", report.MarkedOverdue),
		logging.Int("moved_to_waiting", report.MovedToWaiting),
		logging.Int("priority_changed", report.PriorityChanged),
		logging.Int("alerts_raised", report.TotalRaised()),
		logging.Int("alerts_suppressed", report.AlertsSuppressed),
		logging.Int("alerts_resolved", report.AlertsResolved),
		logging.Int("errors", report.Errors),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

// scanOne applies the scan steps to one dossier.  The report is updated
// only after the transaction commits.
func (s *Scanner) scanOne(ctx context.Context, tenant common.TenantID, id common.ID, now time.Time, report *ScanReport) error {
	today := calendar.DateOf(now)
	var (
		delta  ScanReport
		events []Event
	)
	delta.AlertsRaised = map[domain.AlertKind]int{}

	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		d, err := loadAggregate(ctx, repos, tenant, id, true)
		if err != nil {
			return err
		}
		if !d.Status.IsOpen() {
			return nil
		}
		log := newEventLog(d)
		changed := false

		for _, e := range lifecycle.SyncEcheances(d, today, now) {
			changed = true
			if e.Status == domain.EcheanceOverdue {
				delta.MarkedOverdue++
				log.overdue(e, now)
			}
		}

		candidates := s.deps.Evaluator.Evaluate(d, today, now)

		if t := s.deps.Engine.EvaluateInactivity(d, now); t != nil {
			changed = true
			delta.MovedToWaiting++
			log.transition(t)
			s.deps.Metrics.RecordTransition(t.From, t.To, true)
		}
		if c := lifecycle.ApplyPriority(d, today, now); c != nil {
			changed = true
			delta.PriorityChanged++
			log.priority(c)
		}

		for _, c := range candidates {
			alert, superseded := s.deps.Dedup.Raise(d, c, now)
			s.deps.Metrics.RecordAlert(c.Kind, alert != nil)
			if alert == nil {
				delta.AlertsSuppressed++
				continue
			}
			changed = true
			delta.AlertsRaised[c.Kind]++
			log.alertRaised(alert)
			for _, a := range superseded {
				delta.AlertsResolved++
				log.alertResolved(a)
			}
		}
		for _, a := range alerting.ResolveCleared(d, candidates, now) {
			changed = true
			delta.AlertsResolved++
			log.alertResolved(a)
		}

		if !changed {
			return nil
		}
		if err := saveAggregate(ctx, repos, d, false); err != nil {
			return err
		}
		events = log.events
		return nil
	})
	if err != nil {
		return err
	}

	report.Scanned++
	report.MarkedOverdue += delta.MarkedOverdue
	report.MovedToWaiting += delta.MovedToWaiting
	report.PriorityChanged += delta.PriorityChanged
	report.AlertsSuppressed += delta.AlertsSuppressed
	report.AlertsResolved += delta.AlertsResolved
	for k, n := range delta.AlertsRaised {
		report.AlertsRaised[k] += n
	}
	if len(events) > 0 {
		if err := s.deps.Events.Publish(ctx, events...); err != nil {
			s.logger.Warn("event publish failed", logging.String("dossier_id", string(id)), logging.Err(err))
		}
	}
	return nil
}
