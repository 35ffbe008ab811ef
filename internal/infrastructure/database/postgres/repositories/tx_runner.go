package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
)

// TxRunner opens a pgx transaction per call and hands the callback
// repositories bound to it.
type TxRunner struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewTxRunner returns a TxRunner over pool.
func NewTxRunner(pool *pgxpool.Pool, log logging.Logger) *TxRunner {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TxRunner{pool: pool, log: log.Named("postgres")}
}

// Bind returns the repositories over q.
func Bind(q Querier, log logging.Logger) app.Repositories {
	return app.Repositories{
		Dossiers:     NewDossierRepository(q, log),
		Obligations:  NewObligationRepository(q, log),
		Declarations: NewDeclarationRepository(q, log),
		Alerts:       NewAlertRepository(q, log),
		History:      NewHistoryRepository(q, log),
	}
}

// WithinTx implements the application TxRunner.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, repos app.Repositories) error) error {
	return postgres.WithTransaction(ctx, r.pool, func(tx pgx.Tx, txCtx context.Context) error {
		return fn(txCtx, Bind(tx, r.log))
	})
}

var _ app.TxRunner = (*TxRunner)(nil)
