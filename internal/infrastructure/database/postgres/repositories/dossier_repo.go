package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

const dossierColumns = `id, tenant_id, reference, client_name, client_id, service_type, legal_form,
	cadence, fiscal_year, status, priority, due_date, description, assigned_to,
	created_at, updated_at, completed_at`

// nilUUID sorts before every generated ID.
const nilUUID common.ID = "00000000-0000-0000-0000-000000000000"

type dossierRepo struct {
	q   Querier
	log logging.Logger
}

// NewDossierRepository returns the dossier row repository bound to q.
func NewDossierRepository(q Querier, log logging.Logger) domain.DossierRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &dossierRepo{q: q, log: log}
}

func scanDossier(row pgx.Row) (*domain.Dossier, error) {
	d := &domain.Dossier{}
	err := row.Scan(
		&d.ID, &d.TenantID, &d.Reference, &d.ClientName, &d.ClientID, &d.Service, &d.LegalForm,
		&d.Cadence, &d.FiscalYear, &d.Status, &d.Priority, &d.DueDate, &d.Description, &d.AssignedTo,
		&d.CreatedAt, &d.UpdatedAt, &d.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	d.DueDate = datePtr(d.DueDate)
	return d, nil
}

func (r *dossierRepo) Insert(ctx context.Context, d *domain.Dossier) error {
	query := `INSERT INTO dossiers (` + dossierColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.TenantID, d.Reference, d.ClientName, d.ClientID, d.Service, d.LegalForm,
		d.Cadence, d.FiscalYear, d.Status, d.Priority, datePtr(d.DueDate), d.Description, d.AssignedTo,
		d.CreatedAt.UTC(), d.UpdatedAt.UTC(), utcPtr(d.CompletedAt),
	)
	if err != nil {
		r.log.Error("failed to insert dossier", logging.String("dossier_id", string(d.ID)), logging.Err(err))
		return dbError(err, apperrors.ErrCodeDossierNotFound, "insert dossier")
	}
	return nil
}

func (r *dossierRepo) Update(ctx context.Context, d *domain.Dossier) error {
	query := `
		UPDATE dossiers SET
			client_name = $3, client_id = $4, service_type = $5, legal_form = $6, cadence = $7,
			fiscal_year = $8, status = $9, priority = $10, due_date = $11, description = $12,
			assigned_to = $13, updated_at = $14, completed_at = $15
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query,
		d.TenantID, d.ID, d.ClientName, d.ClientID, d.Service, d.LegalForm, d.Cadence,
		d.FiscalYear, d.Status, d.Priority, datePtr(d.DueDate), d.Description,
		d.AssignedTo, d.UpdatedAt.UTC(), utcPtr(d.CompletedAt),
	)
	if err != nil {
		r.log.Error("failed to update dossier", logging.String("dossier_id", string(d.ID)), logging.Err(err))
		return dbError(err, apperrors.ErrCodeDossierNotFound, "update dossier")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.ErrCodeDossierNotFound, "dossier not found").WithDetail(string(d.ID))
	}
	return nil
}

func (r *dossierRepo) Get(ctx context.Context, tenant common.TenantID, id common.ID, forUpdate bool) (*domain.Dossier, error) {
	query := `SELECT ` + dossierColumns + ` FROM dossiers WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	d, err := scanDossier(r.q.QueryRow(ctx, query, tenant, id))
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeDossierNotFound, "get dossier")
	}
	return d, nil
}

func (r *dossierRepo) GetByReference(ctx context.Context, tenant common.TenantID, reference string) (*domain.Dossier, error) {
	query := `SELECT ` + dossierColumns + ` FROM dossiers WHERE tenant_id = $1 AND reference = $2`
	d, err := scanDossier(r.q.QueryRow(ctx, query, tenant, reference))
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeDossierNotFound, "get dossier by reference")
	}
	return d, nil
}

// listWhere renders the WHERE clause of f with positional arguments after
// the tenant.
func listWhere(tenant common.TenantID, f domain.ListFilter) (string, []any) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenant}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Status) > 0 {
		s := make([]string, len(f.Status))
		for i, st := range f.Status {
			s[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(s)+")")
	}
	if len(f.Priority) > 0 {
		p := make([]string, len(f.Priority))
		for i, pr := range f.Priority {
			p[i] = string(pr)
		}
		conds = append(conds, "priority = ANY("+arg(p)+")")
	}
	if f.Service != "" {
		conds = append(conds, "service_type = "+arg(string(f.Service)))
	}
	if f.FiscalYear != 0 {
		conds = append(conds, "fiscal_year = "+arg(f.FiscalYear))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		conds = append(conds, "(client_name ILIKE "+p+" OR reference ILIKE "+p+")")
	}
	return strings.Join(conds, " AND "), args
}

func (r *dossierRepo) List(ctx context.Context, tenant common.TenantID, f domain.ListFilter) ([]*domain.Dossier, int64, error) {
	where, args := listWhere(tenant, f)

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM dossiers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, dbError(err, apperrors.ErrCodeDossierNotFound, "count dossiers")
	}

	query := fmt.Sprintf(`SELECT %s FROM dossiers WHERE %s ORDER BY updated_at DESC, id LIMIT %d OFFSET %d`,
		dossierColumns, where, f.Page.Limit(), f.Page.Offset())
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, dbError(err, apperrors.ErrCodeDossierNotFound, "list dossiers")
	}
	defer rows.Close()

	var out []*domain.Dossier
	for rows.Next() {
		d, err := scanDossier(rows)
		if err != nil {
			return nil, 0, dbError(err, apperrors.ErrCodeDossierNotFound, "scan dossier")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbError(err, apperrors.ErrCodeDossierNotFound, "list dossiers")
	}
	return out, total, nil
}

func (r *dossierRepo) ListOpenIDs(ctx context.Context, tenant common.TenantID, after common.ID, limit int) ([]common.ID, error) {
	query := `
		SELECT id FROM dossiers
		WHERE tenant_id = $1 AND status IN ('new', 'in_progress', 'waiting')
		  AND id > $2
		ORDER BY id
		LIMIT $3`
	if after == "" {
		after = nilUUID
	}
	rows, err := r.q.Query(ctx, query, tenant, after, limit)
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeDossierNotFound, "list open dossiers")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[common.ID])
	if err != nil {
		return nil, dbError(err, apperrors.ErrCodeDossierNotFound, "list open dossiers")
	}
	return ids, nil
}

func (r *dossierRepo) Delete(ctx context.Context, tenant common.TenantID, id common.ID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM dossiers WHERE tenant_id = $1 AND id = $2`, tenant, id)
	if err != nil {
		return dbError(err, apperrors.ErrCodeDossierNotFound, "delete dossier")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.ErrCodeDossierNotFound, "dossier not found").WithDetail(string(id))
	}
	return nil
}

// NextReferenceSeq bumps the per tenant, prefix and year counter.  The upsert
// holds the counter row until the transaction ends.
func (r *dossierRepo) NextReferenceSeq(ctx context.Context, tenant common.TenantID, prefix string, year int) (int, error) {
	query := `
		INSERT INTO reference_counters (tenant_id, prefix, year, last_seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, prefix, year) DO UPDATE SET last_seq = reference_counters.last_seq + 1
		RETURNING last_seq`
	var seq int
	if err := r.q.QueryRow(ctx, query, tenant, prefix, year).Scan(&seq); err != nil {
		return 0, dbError(err, apperrors.ErrCodeDossierNotFound, "next reference sequence")
	}
	return seq, nil
}

var childTables = map[domain.ChildKind]string{
	domain.ChildEcheance:    "echeances",
	domain.ChildEntry:       "ledger_entries",
	domain.ChildDocument:    "required_documents",
	domain.ChildDeclaration: "declarations",
	domain.ChildAlert:       "alerts",
}

func (r *dossierRepo) OwnerOf(ctx context.Context, tenant common.TenantID, kind domain.ChildKind, childID common.ID) (common.ID, error) {
	table, ok := childTables[kind]
	if !ok {
		return "", apperrors.InvalidParam("unknown child kind").WithDetail(string(kind))
	}
	query := `SELECT c.dossier_id FROM ` + table + ` c
		JOIN dossiers d ON d.id = c.dossier_id
		WHERE c.id = $1 AND d.tenant_id = $2`
	var owner common.ID
	if err := r.q.QueryRow(ctx, query, childID, tenant).Scan(&owner); err != nil {
		return "", dbError(err, apperrors.CodeNotFound, "resolve "+string(kind)+" owner")
	}
	return owner, nil
}
