package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

type obligationRepo struct {
	q   Querier
	log logging.Logger
}

// NewObligationRepository returns the échéance, entry and document
// repository bound to q.
func NewObligationRepository(q Querier, log logging.Logger) domain.ObligationRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &obligationRepo{q: q, log: log}
}

func (r *obligationRepo) ListEcheances(ctx context.Context, dossierID common.ID) ([]*domain.Echeance, error) {
	query := `
		SELECT id, dossier_id, category, month, year, period_label, due_date, status,
		       started_at, completed_at, declaration_id, notes, created_at, updated_at
		FROM echeances WHERE dossier_id = $1
		ORDER BY year, month, category`
	rows, err := r.q.Query(ctx, query, dossierID)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeEcheanceNotFound, "list echeances")
	}
	defer rows.Close()

	var out []*domain.Echeance
	for rows.Next() {
		var (
			e     domain.Echeance
			month int
			decl  *string
		)
		if err := rows.Scan(&e.ID, &e.DossierID, &e.Category, &month, &e.Year, &e.PeriodLabel, &e.DueDate, &e.Status,
			&e.StartedAt, &e.CompletedAt, &decl, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, dbError(err, apperrors.ErrCodeEcheanceNotFound, "scan echeance")
		}
		e.Month = time.Month(month)
		e.DueDate = dateOnly(e.DueDate)
		e.DeclarationID = idPtr(decl)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, apperrors.ErrCodeEcheanceNotFound, "list echeances")
	}
	return out, nil
}

func (r *obligationRepo) ListEntries(ctx context.Context, dossierID common.ID) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, dossier_id, echeance_id, journal, month, year, done, completed_at, completed_by, notes
		FROM ledger_entries WHERE dossier_id = $1
		ORDER BY year, month, journal`
	rows, err := r.q.Query(ctx, query, dossierID)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeEntryNotFound, "list entries")
	}
	defer rows.Close()

	var out []*domain.LedgerEntry
	for rows.Next() {
		var (
			l     domain.LedgerEntry
			month int
		)
		if err := rows.Scan(&l.ID, &l.DossierID, &l.EcheanceID, &l.Journal, &month, &l.Year,
			&l.Done, &l.CompletedAt, &l.CompletedBy, &l.Notes); err != nil {
			return nil, dbError(err, apperrors.ErrCodeEntryNotFound, "scan entry")
		}
		l.Month = time.Month(month)
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, apperrors.ErrCodeEntryNotFound, "list entries")
	}
	return out, nil
}

func (r *obligationRepo) ListDocuments(ctx context.Context, dossierID common.ID) ([]*domain.RequiredDocument, error) {
	query := `
		SELECT id, dossier_id, echeance_id, category, month, year, applicable, provided, provided_at
		FROM required_documents WHERE dossier_id = $1
		ORDER BY year, month, category`
	rows, err := r.q.Query(ctx, query, dossierID)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeDocumentNotFound, "list documents")
	}
	defer rows.Close()

	var out []*domain.RequiredDocument
	for rows.Next() {
		var (
			doc   domain.RequiredDocument
			month int
		)
		if err := rows.Scan(&doc.ID, &doc.DossierID, &doc.EcheanceID, &doc.Category, &month, &doc.Year,
			&doc.Applicable, &doc.Provided, &doc.ProvidedAt); err != nil {
			return nil, dbError(err, apperrors.ErrCodeDocumentNotFound, "scan document")
		}
		doc.Month = time.Month(month)
		out = append(out, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, apperrors.ErrCodeDocumentNotFound, "list documents")
	}
	return out, nil
}

// SaveEcheances upserts by ID.  The period key is immutable once stored.
func (r *obligationRepo) SaveEcheances(ctx context.Context, rows []*domain.Echeance) error {
	const query = `
		INSERT INTO echeances (id, dossier_id, category, month, year, period_label, due_date, status,
			started_at, completed_at, declaration_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			period_label = EXCLUDED.period_label,
			due_date = EXCLUDED.due_date,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			declaration_id = EXCLUDED.declaration_id,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`
	b := &pgx.Batch{}
	for _, e := range rows {
		b.Queue(query, e.ID, e.DossierID, e.Category, int(e.Month), e.Year, e.PeriodLabel, dateOnly(e.DueDate), e.Status,
			utcPtr(e.StartedAt), utcPtr(e.CompletedAt), nullID(e.DeclarationID), e.Notes, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	}
	if err := sendBatch(ctx, r.q, b, "save echeances"); err != nil {
		r.log.Error("failed to save echeances", logging.Int("rows", len(rows)), logging.Err(err))
		return err
	}
	return nil
}

func (r *obligationRepo) SaveEntries(ctx context.Context, rows []*domain.LedgerEntry) error {
	const query = `
		INSERT INTO ledger_entries (id, dossier_id, echeance_id, journal, month, year,
			done, completed_at, completed_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			done = EXCLUDED.done,
			completed_at = EXCLUDED.completed_at,
			completed_by = EXCLUDED.completed_by,
			notes = EXCLUDED.notes`
	b := &pgx.Batch{}
	for _, l := range rows {
		b.Queue(query, l.ID, l.DossierID, l.EcheanceID, l.Journal, int(l.Month), l.Year,
			l.Done, utcPtr(l.CompletedAt), l.CompletedBy, l.Notes)
	}
	if err := sendBatch(ctx, r.q, b, "save entries"); err != nil {
		r.log.Error("failed to save entries", logging.Int("rows", len(rows)), logging.Err(err))
		return err
	}
	return nil
}

func (r *obligationRepo) SaveDocuments(ctx context.Context, rows []*domain.RequiredDocument) error {
	const query = `
		INSERT INTO required_documents (id, dossier_id, echeance_id, category, month, year,
			applicable, provided, provided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			applicable = EXCLUDED.applicable,
			provided = EXCLUDED.provided,
			provided_at = EXCLUDED.provided_at`
	b := &pgx.Batch{}
	for _, doc := range rows {
		b.Queue(query, doc.ID, doc.DossierID, doc.EcheanceID, doc.Category, int(doc.Month), doc.Year,
			doc.Applicable, doc.Provided, utcPtr(doc.ProvidedAt))
	}
	if err := sendBatch(ctx, r.q, b, "save documents"); err != nil {
		r.log.Error("failed to save documents", logging.Int("rows", len(rows)), logging.Err(err))
		return err
	}
	return nil
}
