package prometheus

import (
	"strconv"
	"time"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultScanDurationBuckets = []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	DefaultGeneratedBuckets    = []float64{1, 5, 10, 25, 50, 100, 250}
)

// AppMetrics holds the engine's metric vectors.  It implements the
// application Metrics port.
type AppMetrics struct {
	TransitionsTotal   CounterVec
	AlertsTotal        CounterVec
	ObligationsCreated HistogramVec

	ScansTotal          CounterVec
	ScanDuration        HistogramVec
	ScanDossiers        GaugeVec
	ScanOverdueTotal    CounterVec
	ScanErrorsTotal     CounterVec
	ScanLastSuccessTime GaugeVec

	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	DBPoolConns GaugeVec
}

var _ app.Metrics = (*AppMetrics)(nil)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.TransitionsTotal = collector.RegisterCounter("status_transitions_total", "Dossier status transitions", "from", "to", "trigger")
	m.AlertsTotal = collector.RegisterCounter("alerts_total", "Alert evaluations by outcome", "kind", "outcome")
	m.ObligationsCreated = collector.RegisterHistogram("obligations_generated", "Rows created per generation call", DefaultGeneratedBuckets, "service")

	m.ScansTotal = collector.RegisterCounter("scans_total", "Scan runs", "tenant", "result")
	m.ScanDuration = collector.RegisterHistogram("scan_duration_seconds", "Scan run duration", DefaultScanDurationBuckets, "tenant")
	m.ScanDossiers = collector.RegisterGauge("scan_dossiers", "Dossiers visited by the last scan", "tenant")
	m.ScanOverdueTotal = collector.RegisterCounter("scan_overdue_marked_total", "Echeances marked overdue by scans", "tenant")
	m.ScanErrorsTotal = collector.RegisterCounter("scan_dossier_errors_total", "Dossiers whose scan transaction failed", "tenant")
	m.ScanLastSuccessTime = collector.RegisterGauge("scan_last_success_timestamp_seconds", "Unix time of the last successful scan", "tenant")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Ops HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "Ops HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	m.DBPoolConns = collector.RegisterGauge("db_pool_connections", "Postgres pool connections by state", "state")
	return m
}

func (m *AppMetrics) RecordTransition(from, to domain.Status, automatic bool) {
	trigger := "manual"
	if automatic {
		trigger = "automatic"
	}
	m.TransitionsTotal.WithLabelValues(string(from), string(to), trigger).Inc()
}

func (m *AppMetrics) RecordAlert(kind domain.AlertKind, raised bool) {
	outcome := "suppressed"
	if raised {
		outcome = "raised"
	}
	m.AlertsTotal.WithLabelValues(string(kind), outcome).Inc()
}

func (m *AppMetrics) RecordGenerated(service domain.ServiceType, rows int) {
	m.ObligationsCreated.WithLabelValues(string(service)).Observe(float64(rows))
}

// RecordScan counts a run.  A run refused because another worker holds the
// tenant lock is counted as "skipped", not as a failure.
func (m *AppMetrics) RecordScan(tenant common.TenantID, duration time.Duration, report *app.ScanReport, err error) {
	t := string(tenant)
	switch {
	case err == nil:
		m.ScansTotal.WithLabelValues(t, "ok").Inc()
	case apperrors.IsCode(err, apperrors.CodeLockNotAcquired):
		m.ScansTotal.WithLabelValues(t, "skipped").Inc()
		return
	default:
		m.ScansTotal.WithLabelValues(t, "error").Inc()
	}
	m.ScanDuration.WithLabelValues(t).Observe(duration.Seconds())
	if report == nil {
		return
	}
	m.ScanDossiers.WithLabelValues(t).Set(float64(report.Scanned))
	m.ScanOverdueTotal.WithLabelValues(t).Add(float64(report.MarkedOverdue))
	m.ScanErrorsTotal.WithLabelValues(t).Add(float64(report.Errors))
	if err == nil {
		m.ScanLastSuccessTime.WithLabelValues(t).Set(float64(report.StartedAt.Add(duration).Unix()))
	}
}

// RecordHTTPRequest observes one ops request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// PoolStats is the subset of pgxpool.Stat the gauges need.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
}

// RecordPool sets the pool gauges.
func (m *AppMetrics) RecordPool(s PoolStats) {
	m.DBPoolConns.WithLabelValues("acquired").Set(float64(s.AcquiredConns()))
	m.DBPoolConns.WithLabelValues("idle").Set(float64(s.IdleConns()))
	m.DBPoolConns.WithLabelValues("total").Set(float64(s.TotalConns()))
	m.DBPoolConns.WithLabelValues("max").Set(float64(s.MaxConns()))
}
