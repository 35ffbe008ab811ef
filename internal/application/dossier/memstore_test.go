package dossier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// table keeps rows by value in insertion order, so reads hand out copies and
// a rollback restores the previous slice.
type table[T any] struct {
	rows []T
	id   func(*T) common.ID
}

func (t *table[T]) upsert(row T) {
	for i := range t.rows {
		if t.id(&t.rows[i]) == t.id(&row) {
			t.rows[i] = row
			return
		}
	}
	t.rows = append(t.rows, row)
}

func (t *table[T]) find(id common.ID) (T, bool) {
	for i := range t.rows {
		if t.id(&t.rows[i]) == id {
			return t.rows[i], true
		}
	}
	var zero T
	return zero, false
}

func (t *table[T]) where(keep func(*T) bool) []*T {
	var out []*T
	for i := range t.rows {
		if keep(&t.rows[i]) {
			row := t.rows[i]
			out = append(out, &row)
		}
	}
	return out
}

func (t *table[T]) snapshot() table[T] {
	return table[T]{rows: append([]T(nil), t.rows...), id: t.id}
}

type memState struct {
	dossiers     table[domain.Dossier]
	echeances    table[domain.Echeance]
	entries      table[domain.LedgerEntry]
	documents    table[domain.RequiredDocument]
	declarations table[domain.Declaration]
	alerts       table[domain.Alert]
	history      table[domain.HistoryEntry]
	seq          map[string]int
}

func (s *memState) clone() memState {
	seq := make(map[string]int, len(s.seq))
	for k, v := range s.seq {
		seq[k] = v
	}
	return memState{
		dossiers:     s.dossiers.snapshot(),
		echeances:    s.echeances.snapshot(),
		entries:      s.entries.snapshot(),
		documents:    s.documents.snapshot(),
		declarations: s.declarations.snapshot(),
		alerts:       s.alerts.snapshot(),
		history:      s.history.snapshot(),
		seq:          seq,
	}
}

// memStore is an in-memory TxRunner.  Transactions are serialised and roll
// back on error.
type memStore struct {
	mu    sync.Mutex
	state memState

	// failDossier makes Update of that dossier fail.
	failDossier common.ID
	txCount     int
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		dossiers:     table[domain.Dossier]{id: func(d *domain.Dossier) common.ID { return d.ID }},
		echeances:    table[domain.Echeance]{id: func(e *domain.Echeance) common.ID { return e.ID }},
		entries:      table[domain.LedgerEntry]{id: func(e *domain.LedgerEntry) common.ID { return e.ID }},
		documents:    table[domain.RequiredDocument]{id: func(d *domain.RequiredDocument) common.ID { return d.ID }},
		declarations: table[domain.Declaration]{id: func(d *domain.Declaration) common.ID { return d.ID }},
		alerts:       table[domain.Alert]{id: func(a *domain.Alert) common.ID { return a.ID }},
		history:      table[domain.HistoryEntry]{id: func(h *domain.HistoryEntry) common.ID { return h.ID }},
		seq:          map[string]int{},
	}}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	saved := m.state.clone()
	repo := &memRepo{s: m}
	err := fn(ctx, Repositories{
		Dossiers:     repo,
		Obligations:  repo,
		Declarations: declRepo{repo},
		Alerts:       alertRepo{repo},
		History:      historyRepo{repo},
	})
	if err != nil {
		m.state = saved
	}
	return err
}

func (m *memStore) alerts(dossierID common.ID) []*domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.alerts.where(func(a *domain.Alert) bool { return a.DossierID == dossierID })
}

func (m *memStore) history(dossierID common.ID) []*domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.history.where(func(h *domain.HistoryEntry) bool { return h.DossierID == dossierID })
}

// memRepo implements every repository interface over the locked state.
type memRepo struct{ s *memStore }

func (r *memRepo) st() *memState { return &r.s.state }

func rowOnly(d *domain.Dossier) domain.Dossier {
	row := *d
	row.Echeances, row.Entries, row.Documents = nil, nil, nil
	row.Declarations, row.Alerts, row.History = nil, nil, nil
	return row
}

func (r *memRepo) Insert(_ context.Context, d *domain.Dossier) error {
	for _, row := range r.st().dossiers.rows {
		if row.ID == d.ID || (row.TenantID == d.TenantID && row.Reference == d.Reference) {
			return apperrors.Conflict("duplicate dossier")
		}
	}
	r.st().dossiers.upsert(rowOnly(d))
	return nil
}

func (r *memRepo) Update(_ context.Context, d *domain.Dossier) error {
	if d.ID == r.s.failDossier {
		return apperrors.New(apperrors.CodeDBQueryError, "update failed")
	}
	if _, ok := r.st().dossiers.find(d.ID); !ok {
		return apperrors.New(apperrors.ErrCodeDossierNotFound, "dossier not found")
	}
	r.st().dossiers.upsert(rowOnly(d))
	return nil
}

func (r *memRepo) Get(_ context.Context, tenant common.TenantID, id common.ID, _ bool) (*domain.Dossier, error) {
	row, ok := r.st().dossiers.find(id)
	if !ok || row.TenantID != tenant {
		return nil, apperrors.New(apperrors.ErrCodeDossierNotFound, "dossier not found")
	}
	return &row, nil
}

func (r *memRepo) GetByReference(_ context.Context, tenant common.TenantID, reference string) (*domain.Dossier, error) {
	for _, row := range r.st().dossiers.rows {
		if row.TenantID == tenant && row.Reference == reference {
			row := row
			return &row, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrCodeDossierNotFound, "dossier not found")
}

func (r *memRepo) List(_ context.Context, tenant common.TenantID, f domain.ListFilter) ([]*domain.Dossier, int64, error) {
	rows := r.st().dossiers.where(func(d *domain.Dossier) bool {
		if d.TenantID != tenant {
			return false
		}
		if f.Service != "" && d.Service != f.Service {
			return false
		}
		if f.FiscalYear != 0 && d.FiscalYear != f.FiscalYear {
			return false
		}
		if len(f.Status) > 0 && !containsStatus(f.Status, d.Status) {
			return false
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(d.ClientName+" "+d.Reference), strings.ToLower(f.Search)) {
			return false
		}
		return true
	})
	total := int64(len(rows))
	start := f.Page.Offset()
	if start > len(rows) {
		start = len(rows)
	}
	end := start + f.Page.Limit()
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], total, nil
}

func containsStatus(in []domain.Status, s domain.Status) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}

func (r *memRepo) ListOpenIDs(_ context.Context, tenant common.TenantID, after common.ID, limit int) ([]common.ID, error) {
	var ids []common.ID
	for _, d := range r.st().dossiers.rows {
		if d.TenantID == tenant && d.Status.IsOpen() && d.ID > after {
			ids = append(ids, d.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memRepo) Delete(_ context.Context, tenant common.TenantID, id common.ID) error {
	rows := r.st().dossiers.rows[:0]
	for _, d := range r.st().dossiers.rows {
		if d.ID != id || d.TenantID != tenant {
			rows = append(rows, d)
		}
	}
	r.st().dossiers.rows = rows
	return nil
}

func (r *memRepo) NextReferenceSeq(_ context.Context, tenant common.TenantID, prefix string, year int) (int, error) {
	key := fmt.Sprintf("%s|%s|%d", tenant, prefix, year)
	r.st().seq[key]++
	return r.st().seq[key], nil
}

func (r *memRepo) OwnerOf(_ context.Context, tenant common.TenantID, kind domain.ChildKind, childID common.ID) (common.ID, error) {
	var owner common.ID
	switch kind {
	case domain.ChildEcheance:
		if row, ok := r.st().echeances.find(childID); ok {
			owner = row.DossierID
		}
	case domain.ChildEntry:
		if row, ok := r.st().entries.find(childID); ok {
			owner = row.DossierID
		}
	case domain.ChildDocument:
		if row, ok := r.st().documents.find(childID); ok {
			owner = row.DossierID
		}
	case domain.ChildDeclaration:
		if row, ok := r.st().declarations.find(childID); ok {
			owner = row.DossierID
		}
	case domain.ChildAlert:
		if row, ok := r.st().alerts.find(childID); ok {
			owner = row.DossierID
		}
	}
	if owner == "" {
		return "", apperrors.NotFound("child entity not found").WithDetail(string(childID))
	}
	if d, ok := r.st().dossiers.find(owner); !ok || d.TenantID != tenant {
		return "", apperrors.NotFound("child entity not found").WithDetail(string(childID))
	}
	return owner, nil
}

func (r *memRepo) ListEcheances(_ context.Context, id common.ID) ([]*domain.Echeance, error) {
	return r.st().echeances.where(func(e *domain.Echeance) bool { return e.DossierID == id }), nil
}

func (r *memRepo) ListEntries(_ context.Context, id common.ID) ([]*domain.LedgerEntry, error) {
	return r.st().entries.where(func(e *domain.LedgerEntry) bool { return e.DossierID == id }), nil
}

func (r *memRepo) ListDocuments(_ context.Context, id common.ID) ([]*domain.RequiredDocument, error) {
	return r.st().documents.where(func(d *domain.RequiredDocument) bool { return d.DossierID == id }), nil
}

func (r *memRepo) SaveEcheances(_ context.Context, rows []*domain.Echeance) error {
	for _, row := range rows {
		r.st().echeances.upsert(*row)
	}
	return nil
}

func (r *memRepo) SaveEntries(_ context.Context, rows []*domain.LedgerEntry) error {
	for _, row := range rows {
		r.st().entries.upsert(*row)
	}
	return nil
}

func (r *memRepo) SaveDocuments(_ context.Context, rows []*domain.RequiredDocument) error {
	for _, row := range rows {
		r.st().documents.upsert(*row)
	}
	return nil
}

// Declarations, alerts and history share ListByDossier in their interfaces,
// so they are served by dedicated views.

type declRepo struct{ *memRepo }

func (r declRepo) ListByDossier(_ context.Context, id common.ID) ([]*domain.Declaration, error) {
	return r.st().declarations.where(func(d *domain.Declaration) bool { return d.DossierID == id }), nil
}

func (r declRepo) Save(_ context.Context, rows []*domain.Declaration) error {
	for _, row := range rows {
		r.st().declarations.upsert(*row)
	}
	return nil
}

type alertRepo struct{ *memRepo }

func (r alertRepo) ListByDossier(_ context.Context, id common.ID) ([]*domain.Alert, error) {
	return r.st().alerts.where(func(a *domain.Alert) bool { return a.DossierID == id }), nil
}

func (r alertRepo) ListActive(_ context.Context, _ common.TenantID, kind domain.AlertKind) ([]*domain.Alert, error) {
	return r.st().alerts.where(func(a *domain.Alert) bool { return a.Active && (kind == "" || a.Kind == kind) }), nil
}

func (r alertRepo) Save(_ context.Context, rows []*domain.Alert) error {
	for _, row := range rows {
		r.st().alerts.upsert(*row)
	}
	return nil
}

type historyRepo struct{ *memRepo }

func (r historyRepo) ListByDossier(_ context.Context, id common.ID) ([]*domain.HistoryEntry, error) {
	return r.st().history.where(func(h *domain.HistoryEntry) bool { return h.DossierID == id }), nil
}

func (r historyRepo) Append(_ context.Context, rows []*domain.HistoryEntry) error {
	for _, row := range rows {
		if _, ok := r.st().history.find(row.ID); !ok {
			r.st().history.upsert(*row)
		}
	}
	return nil
}
