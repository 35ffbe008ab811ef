package dossier

import (
	"context"

	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// ListFilter narrows List results.  Zero fields do not filter.
type ListFilter struct {
	Status     []Status
	Priority   []Priority
	Service    ServiceType
	FiscalYear int
	Search     string
	Page       common.Pagination
}

// ChildKind names the child entity whose owner OwnerOf resolves.
type ChildKind string

const (
	ChildEcheance    ChildKind = "echeance"
	ChildEntry       ChildKind = "entry"
	ChildDocument    ChildKind = "document"
	ChildDeclaration ChildKind = "declaration"
	ChildAlert       ChildKind = "alert"
)

// DossierRepository persists the dossier row itself.
type DossierRepository interface {
	Insert(ctx context.Context, d *Dossier) error
	Update(ctx context.Context, d *Dossier) error
	// Get loads the row; forUpdate takes a row lock held until the
	// surrounding transaction ends.
	Get(ctx context.Context, tenant common.TenantID, id common.ID, forUpdate bool) (*Dossier, error)
	GetByReference(ctx context.Context, tenant common.TenantID, reference string) (*Dossier, error)
	List(ctx context.Context, tenant common.TenantID, f ListFilter) ([]*Dossier, int64, error)
	// ListOpenIDs pages through dossiers in new, in_progress or waiting in ID
	// order, starting after the given ID.
	ListOpenIDs(ctx context.Context, tenant common.TenantID, after common.ID, limit int) ([]common.ID, error)
	Delete(ctx context.Context, tenant common.TenantID, id common.ID) error
	// NextReferenceSeq returns the next sequence number for prefix and year.
	NextReferenceSeq(ctx context.Context, tenant common.TenantID, prefix string, year int) (int, error)
	// OwnerOf returns the dossier owning a child entity.
	OwnerOf(ctx context.Context, tenant common.TenantID, kind ChildKind, childID common.ID) (common.ID, error)
}

// ObligationRepository persists échéances with their ledger entries and
// required documents.
type ObligationRepository interface {
	ListEcheances(ctx context.Context, dossierID common.ID) ([]*Echeance, error)
	ListEntries(ctx context.Context, dossierID common.ID) ([]*LedgerEntry, error)
	ListDocuments(ctx context.Context, dossierID common.ID) ([]*RequiredDocument, error)
	SaveEcheances(ctx context.Context, rows []*Echeance) error
	SaveEntries(ctx context.Context, rows []*LedgerEntry) error
	SaveDocuments(ctx context.Context, rows []*RequiredDocument) error
}

// DeclarationRepository persists tax declarations.
type DeclarationRepository interface {
	ListByDossier(ctx context.Context, dossierID common.ID) ([]*Declaration, error)
	Save(ctx context.Context, rows []*Declaration) error
}

// AlertRepository persists alerts.  Save inserts new alerts and updates the
// resolution fields of existing ones.
type AlertRepository interface {
	ListByDossier(ctx context.Context, dossierID common.ID) ([]*Alert, error)
	ListActive(ctx context.Context, tenant common.TenantID, kind AlertKind) ([]*Alert, error)
	Save(ctx context.Context, rows []*Alert) error
}

// HistoryRepository appends history entries.  Appending an entry that is
// already stored is a no-op.
type HistoryRepository interface {
	ListByDossier(ctx context.Context, dossierID common.ID) ([]*HistoryEntry, error)
	Append(ctx context.Context, rows []*HistoryEntry) error
}
