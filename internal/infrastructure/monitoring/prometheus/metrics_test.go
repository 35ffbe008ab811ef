package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
)

func TestAppMetrics_LifecycleCounters(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RecordTransition(domain.StatusInProgress, domain.StatusWaiting, true)
	m.RecordTransition(domain.StatusWaiting, domain.StatusDone, false)
	m.RecordAlert(domain.AlertOverdue, true)
	m.RecordAlert(domain.AlertOverdue, false)
	m.RecordAlert(domain.AlertOverdue, false)
	m.RecordGenerated(domain.ServiceBookkeeping, 40)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_status_transitions_total{from="in_progress",to="waiting",trigger="automatic"} 1`)
	assert.Contains(t, out, `test_unit_status_transitions_total{from="waiting",to="done",trigger="manual"} 1`)
	assert.Contains(t, out, `test_unit_alerts_total{kind="overdue",outcome="raised"} 1`)
	assert.Contains(t, out, `test_unit_alerts_total{kind="overdue",outcome="suppressed"} 2`)
	assert.Contains(t, out, `test_unit_obligations_generated_sum{service="bookkeeping"} 40`)
}

func TestAppMetrics_RecordScan(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	started := time.Unix(1736150400, 0).UTC()

	report := &app.ScanReport{TenantID: "t1", StartedAt: started, Scanned: 12, MarkedOverdue: 3, Errors: 1}
	m.RecordScan("t1", 2*time.Second, report, nil)
	m.RecordScan("t1", 0, nil, apperrors.New(apperrors.CodeLockNotAcquired, "held"))
	m.RecordScan("t1", time.Second, nil, errors.New("db down"))

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_scans_total{result="ok",tenant="t1"} 1`)
	assert.Contains(t, out, `test_unit_scans_total{result="skipped",tenant="t1"} 1`)
	assert.Contains(t, out, `test_unit_scans_total{result="error",tenant="t1"} 1`)
	assert.Contains(t, out, `test_unit_scan_dossiers{tenant="t1"} 12`)
	assert.Contains(t, out, `test_unit_scan_overdue_marked_total{tenant="t1"} 3`)
	assert.Contains(t, out, `test_unit_scan_dossier_errors_total{tenant="t1"} 1`)
	assert.Contains(t, out, `test_unit_scan_duration_seconds_count{tenant="t1"} 2`, "skipped runs are not timed")
	assert.Contains(t, out, `test_unit_scan_last_success_timestamp_seconds{tenant="t1"} 1.736150402e+09`)
}

type fakePoolStats struct{}

func (fakePoolStats) AcquiredConns() int32 { return 2 }
func (fakePoolStats) IdleConns() int32     { return 3 }
func (fakePoolStats) TotalConns() int32    { return 5 }
func (fakePoolStats) MaxConns() int32      { return 10 }

func TestAppMetrics_HTTPAndPool(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RecordHTTPRequest("GET", "/healthz", 200, 3*time.Millisecond)
	m.RecordPool(fakePoolStats{})

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="GET",path="/healthz",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_db_pool_connections{state="acquired"} 2`)
	assert.Contains(t, out, `test_unit_db_pool_connections{state="max"} 10`)
}
