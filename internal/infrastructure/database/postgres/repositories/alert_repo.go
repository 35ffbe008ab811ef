package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

const alertColumns = `a.id, a.dossier_id, a.kind, a.severity, a.message, a.subject_id, a.active,
	a.created_at, a.resolved_at, a.resolved_by, a.resolution_note`

type alertRepo struct {
	q   Querier
	log logging.Logger
}

// NewAlertRepository returns the alert repository bound to q.
func NewAlertRepository(q Querier, log logging.Logger) domain.AlertRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &alertRepo{q: q, log: log}
}

func collectAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	defer rows.Close()
	var out []*domain.Alert
	for rows.Next() {
		var (
			a       domain.Alert
			subject *string
		)
		if err := rows.Scan(&a.ID, &a.DossierID, &a.Kind, &a.Severity, &a.Message, &subject, &a.Active,
			&a.CreatedAt, &a.ResolvedAt, &a.ResolvedBy, &a.ResolutionNote); err != nil {
			return nil, err
		}
		a.SubjectID = idPtr(subject)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *alertRepo) ListByDossier(ctx context.Context, dossierID common.ID) ([]*domain.Alert, error) {
	rows, err := r.q.Query(ctx, `SELECT `+alertColumns+` FROM alerts a WHERE a.dossier_id = $1 ORDER BY a.created_at, a.id`, dossierID)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeAlertNotFound, "list alerts")
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeAlertNotFound, "list alerts")
	}
	return out, nil
}

// ListActive returns the tenant's active alerts, optionally of one kind,
// newest first.
func (r *alertRepo) ListActive(ctx context.Context, tenant common.TenantID, kind domain.AlertKind) ([]*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts a
		JOIN dossiers d ON d.id = a.dossier_id
		WHERE d.tenant_id = $1 AND a.active AND ($2 = '' OR a.kind = $2)
		ORDER BY a.created_at DESC, a.id`
	rows, err := r.q.Query(ctx, query, tenant, string(kind))
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeAlertNotFound, "list active alerts")
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeAlertNotFound, "list active alerts")
	}
	return out, nil
}

func (r *alertRepo) Save(ctx context.Context, rows []*domain.Alert) error {
	const query = `
		INSERT INTO alerts (id, dossier_id, kind, severity, message, subject_id, active,
			created_at, resolved_at, resolved_by, resolution_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			resolved_at = EXCLUDED.resolved_at,
			resolved_by = EXCLUDED.resolved_by,
			resolution_note = EXCLUDED.resolution_note`
	b := &pgx.Batch{}
	for _, a := range rows {
		b.Queue(query, a.ID, a.DossierID, a.Kind, a.Severity, a.Message, nullID(a.SubjectID), a.Active,
			a.CreatedAt.UTC(), utcPtr(a.ResolvedAt), a.ResolvedBy, a.ResolutionNote)
	}
	if err := sendBatch(ctx, r.q, b, "save alerts"); err != nil {
		r.log.Error("failed to save alerts", logging.Int("rows", len(rows)), logging.Err(err))
		return err
	}
	return nil
}
