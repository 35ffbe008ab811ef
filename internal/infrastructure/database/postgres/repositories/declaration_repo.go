package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

type declarationRepo struct {
	q   Querier
	log logging.Logger
}

// NewDeclarationRepository returns the declaration repository bound to q.
// Amounts travel as NUMERIC through the shopspring codec registered on
// every pool connection.
func NewDeclarationRepository(q Querier, log logging.Logger) domain.DeclarationRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &declarationRepo{q: q, log: log}
}

func (r *declarationRepo) ListByDossier(ctx context.Context, dossierID common.ID) ([]*domain.Declaration, error) {
	query := `
		SELECT id, dossier_id, type, regime, period_start, period_end, due_date, status, form, description,
		       taxable_base, tax_amount, credit, amount_payable, filing_reference, filed_at, paid_on, notes,
		       origin_id, corrective, created_at, updated_at
		FROM declarations WHERE dossier_id = $1
		ORDER BY period_start, type, corrective, created_at`
	rows, err := r.q.Query(ctx, query, dossierID)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeDeclarationNotFound, "list declarations")
	}
	defer rows.Close()

	var out []*domain.Declaration
	for rows.Next() {
		var (
			d      domain.Declaration
			origin *string
		)
		if err := rows.Scan(&d.ID, &d.DossierID, &d.Type, &d.Regime, &d.PeriodStart, &d.PeriodEnd, &d.DueDate,
			&d.Status, &d.Form, &d.Description, &d.TaxableBase, &d.TaxAmount, &d.Credit, &d.AmountPayable,
			&d.FilingReference, &d.FiledAt, &d.PaidOn, &d.Notes, &origin, &d.Corrective,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, dbError(err, apperrors.ErrCodeDeclarationNotFound, "scan declaration")
		}
		d.PeriodStart = dateOnly(d.PeriodStart)
		d.PeriodEnd = dateOnly(d.PeriodEnd)
		d.DueDate = dateOnly(d.DueDate)
		d.PaidOn = datePtr(d.PaidOn)
		d.OriginID = idPtr(origin)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, apperrors.ErrCodeDeclarationNotFound, "list declarations")
	}
	return out, nil
}

// Save upserts by ID.  The idempotence key column backs the
// one-declaration-per-period rule and the single corrective per origin.
func (r *declarationRepo) Save(ctx context.Context, rows []*domain.Declaration) error {
	const query = `
		INSERT INTO declarations (id, dossier_id, type, regime, period_start, period_end, due_date, status,
			form, description, taxable_base, tax_amount, credit, amount_payable, filing_reference, filed_at,
			paid_on, notes, origin_id, corrective, idempotence_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE SET
			due_date = EXCLUDED.due_date,
			status = EXCLUDED.status,
			description = EXCLUDED.description,
			taxable_base = EXCLUDED.taxable_base,
			tax_amount = EXCLUDED.tax_amount,
			credit = EXCLUDED.credit,
			amount_payable = EXCLUDED.amount_payable,
			filing_reference = EXCLUDED.filing_reference,
			filed_at = EXCLUDED.filed_at,
			paid_on = EXCLUDED.paid_on,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`
	b := &pgx.Batch{}
	for _, d := range rows {
		b.Queue(query, d.ID, d.DossierID, d.Type, d.Regime, dateOnly(d.PeriodStart), dateOnly(d.PeriodEnd),
			dateOnly(d.DueDate), d.Status, d.Form, d.Description, d.TaxableBase, d.TaxAmount, d.Credit,
			d.AmountPayable, d.FilingReference, utcPtr(d.FiledAt), datePtr(d.PaidOn), d.Notes,
			nullID(d.OriginID), d.Corrective, d.Key(), d.CreatedAt.UTC(), d.UpdatedAt.UTC())
	}
	if err := sendBatch(ctx, r.q, b, "save declarations"); err != nil {
		r.log.Error("failed to save declarations", logging.Int("rows", len(rows)), logging.Err(err))
		return err
	}
	return nil
}
