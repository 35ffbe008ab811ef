package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeReports struct {
	report *app.ScanReport
	err    error
}

func (f fakeReports) Last(context.Context, common.TenantID) (*app.ScanReport, error) {
	return f.report, f.err
}

type fakeRunner struct {
	calls []common.TenantID
	err   error
}

func (f *fakeRunner) Run(_ context.Context, tenant common.TenantID) (*app.ScanReport, error) {
	f.calls = append(f.calls, tenant)
	if f.err != nil {
		return nil, f.err
	}
	return &app.ScanReport{TenantID: tenant, Scanned: 2, AlertsRaised: map[domain.AlertKind]int{domain.AlertOverdue: 1}}, nil
}

func serve(h *ScanHandler, method, path string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/scans/:tenant/last", h.Last)
	r.POST("/scans/:tenant", h.Trigger)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestScanHandler_Last(t *testing.T) {
	h := NewScanHandler(fakeReports{report: &app.ScanReport{TenantID: "t1", MarkedOverdue: 3}}, nil, nil)

	w := serve(h, http.MethodGet, "/scans/t1/last")
	require.Equal(t, http.StatusOK, w.Code)
	var got app.ScanReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 3, got.MarkedOverdue)
}

func TestScanHandler_LastMiss(t *testing.T) {
	h := NewScanHandler(fakeReports{err: errors.New(errors.ErrCodeNotFound, "cache miss")}, nil, nil)

	w := serve(h, http.MethodGet, "/scans/t1/last")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "cache miss")
}

func TestScanHandler_Trigger(t *testing.T) {
	runner := &fakeRunner{}
	h := NewScanHandler(fakeReports{}, runner, nil)

	w := serve(h, http.MethodPost, "/scans/t1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []common.TenantID{"t1"}, runner.calls)
	assert.Contains(t, w.Body.String(), `"overdue":1`)
}

func TestScanHandler_TriggerLockHeld(t *testing.T) {
	runner := &fakeRunner{err: errors.New(errors.CodeLockNotAcquired, "failed to acquire lock")}
	h := NewScanHandler(fakeReports{}, runner, nil)

	w := serve(h, http.MethodPost, "/scans/t1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestScanHandler_InternalErrorMasked(t *testing.T) {
	runner := &fakeRunner{err: errors.New(errors.ErrCodeDatabaseError, "password authentication failed for user x")}
	h := NewScanHandler(fakeReports{}, runner, nil)

	w := serve(h, http.MethodPost, "/scans/t1")
	assert.GreaterOrEqual(t, w.Code, http.StatusInternalServerError)
	assert.NotContains(t, w.Body.String(), "password")
}
