package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

type historyRepo struct {
	q   Querier
	log logging.Logger
}

// NewHistoryRepository returns the append-only history repository bound to q.
func NewHistoryRepository(q Querier, log logging.Logger) domain.HistoryRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &historyRepo{q: q, log: log}
}

func (r *historyRepo) ListByDossier(ctx context.Context, dossierID common.ID) ([]*domain.HistoryEntry, error) {
	query := `
		SELECT id, dossier_id, action, old_value, new_value, comment, actor, created_at
		FROM dossier_history WHERE dossier_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, dossierID)
	if err != nil {
		return nil, dbError(err, apperrors.CodeNotFound, "list history")
	}
	defer rows.Close()

	var out []*domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.ID, &h.DossierID, &h.Action, &h.OldValue, &h.NewValue, &h.Comment,
			&h.Actor, &h.CreatedAt); err != nil {
			return nil, dbError(err, apperrors.CodeNotFound, "scan history")
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, apperrors.CodeNotFound, "list history")
	}
	return out, nil
}

// Append inserts entries; rows already stored are skipped.
func (r *historyRepo) Append(ctx context.Context, rows []*domain.HistoryEntry) error {
	const query = `
		INSERT INTO dossier_history (id, dossier_id, action, old_value, new_value, comment, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	b := &pgx.Batch{}
	for _, h := range rows {
		b.Queue(query, h.ID, h.DossierID, h.Action, h.OldValue, h.NewValue, h.Comment, h.Actor, h.CreatedAt.UTC())
	}
	if err := sendBatch(ctx, r.q, b, "append history"); err != nil {
		r.log.Error("failed to append history", logging.Int("rows", len(rows)), logging.Err(err))
		return err
	}
	return nil
}
