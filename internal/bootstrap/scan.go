package bootstrap

import (
	"context"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// ScanFunc runs one scan pass over a tenant.
type ScanFunc func(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error)

// ReportSaver stores the last report of a tenant.
type ReportSaver interface {
	Save(ctx context.Context, report *app.ScanReport) error
}

// RecordingScanner runs scans and keeps the report of every completed pass.
// A report that cannot be stored is logged; the scan result still stands.
type RecordingScanner struct {
	scan   ScanFunc
	saver  ReportSaver
	logger logging.Logger
}

// NewRecordingScanner wraps scan.  saver may be nil.
func NewRecordingScanner(scan ScanFunc, saver ReportSaver, log logging.Logger) *RecordingScanner {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RecordingScanner{scan: scan, saver: saver, logger: log}
}

// Run scans tenant and saves the report.
func (s *RecordingScanner) Run(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error) {
	report, err := s.scan(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if s.saver != nil {
		if err := s.saver.Save(ctx, report); err != nil {
			s.logger.Warn("Failed to store scan report",
				logging.String("tenant_id", string(tenant)),
				logging.Err(err),
			)
		}
	}
	return report, nil
}
