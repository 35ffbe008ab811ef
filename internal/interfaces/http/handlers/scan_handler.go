package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// ReportStore reads the last scan report of a tenant.
type ReportStore interface {
	Last(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error)
}

// ScanRunner runs one scan pass.
type ScanRunner interface {
	Run(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error)
}

// ScanHandler exposes the scan reports and lets an operator trigger a scan
// outside the worker's schedule.
type ScanHandler struct {
	reports ReportStore
	runner  ScanRunner
	logger  logging.Logger
}

// NewScanHandler returns a handler.  runner may be nil, which disables the
// trigger endpoint.
func NewScanHandler(reports ReportStore, runner ScanRunner, log logging.Logger) *ScanHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ScanHandler{reports: reports, runner: runner, logger: log}
}

func tenantParam(c *gin.Context) (common.TenantID, bool) {
	tenant := common.TenantID(c.Param("tenant"))
	if err := tenant.Validate(); err != nil {
		writeAppError(c, errors.InvalidParam(err.Error()))
		return "", false
	}
	return tenant, true
}

// Last handles GET /scans/:tenant/last.
func (h *ScanHandler) Last(c *gin.Context) {
	tenant, ok := tenantParam(c)
	if !ok {
		return
	}
	report, err := h.reports.Last(c.Request.Context(), tenant)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Trigger handles POST /scans/:tenant.  A scan already running elsewhere
// answers 409.
func (h *ScanHandler) Trigger(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Code: "NOT_IMPLEMENTED", Message: "scan trigger disabled"})
		return
	}
	tenant, ok := tenantParam(c)
	if !ok {
		return
	}
	report, err := h.runner.Run(c.Request.Context(), tenant)
	if err != nil {
		h.logger.Warn("Triggered scan failed", logging.String("tenant", string(tenant)), logging.Err(err))
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
