// Package dossier defines the dossier aggregate and the obligation, alert
// and history entities it owns.  Children are loaded with their dossier and
// never shared between dossiers.
package dossier

import (
	"strings"
	"time"

	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Dossier is a tracked client engagement for one service line.
type Dossier struct {
	ID          common.ID       `json:"id"`
	TenantID    common.TenantID `json:"tenant_id"`
	Reference   string          `json:"reference"`
	ClientName  string          `json:"client_name"`
	ClientID    string          `json:"client_id,omitempty"`
	Service     ServiceType     `json:"service_type"`
	LegalForm   LegalForm       `json:"legal_form"`
	Cadence     PeriodCadence   `json:"cadence"`
	FiscalYear  int             `json:"fiscal_year"`
	Status      Status          `json:"status"`
	Priority    Priority        `json:"priority"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Description string          `json:"description,omitempty"`
	AssignedTo  common.UserID   `json:"assigned_to,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	Echeances    []*Echeance         `json:"echeances,omitempty"`
	Entries      []*LedgerEntry      `json:"entries,omitempty"`
	Documents    []*RequiredDocument `json:"documents,omitempty"`
	Declarations []*Declaration      `json:"declarations,omitempty"`
	Alerts       []*Alert            `json:"alerts,omitempty"`
	History      []*HistoryEntry     `json:"history,omitempty"`
}

// NewDossierParams carries the creation request.
type NewDossierParams struct {
	TenantID    common.TenantID
	Reference   string
	ClientName  string
	ClientID    string
	Service     ServiceType
	LegalForm   LegalForm
	Cadence     PeriodCadence
	FiscalYear  int
	DueDate     *time.Time
	Description string
	AssignedTo  common.UserID
}

// NewDossier validates the creation request and returns a dossier in status
// new with normal priority.  Service and legal form are not rejected when
// unknown; the obligation catalog falls back for them.
func NewDossier(p NewDossierParams, now time.Time) (*Dossier, error) {
	if err := p.TenantID.Validate(); err != nil {
		return nil, apperrors.InvalidParam(err.Error())
	}
	if strings.TrimSpace(p.ClientName) == "" {
		return nil, apperrors.InvalidParam("client name is required")
	}
	if p.FiscalYear < 1900 || p.FiscalYear > 9999 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidReferenceYear, "fiscal year out of range").
			WithDetailf("fiscal_year=%d", p.FiscalYear)
	}
	cadence := p.Cadence
	if cadence == "" {
		cadence = CadenceMonthly
	}
	if !cadence.IsValid() {
		return nil, apperrors.InvalidParam("unknown period cadence").WithDetail(string(p.Cadence))
	}
	service := p.Service
	if !service.IsValid() {
		service = ServiceOther
	}

	return &Dossier{
		ID:          common.NewID(),
		TenantID:    p.TenantID,
		Reference:   p.Reference,
		ClientName:  strings.TrimSpace(p.ClientName),
		ClientID:    p.ClientID,
		Service:     service,
		LegalForm:   p.LegalForm.Normalize(),
		Cadence:     cadence,
		FiscalYear:  p.FiscalYear,
		Status:      StatusNew,
		Priority:    PriorityNormal,
		DueDate:     p.DueDate,
		Description: p.Description,
		AssignedTo:  p.AssignedTo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Touch records a mutation at now.
func (d *Dossier) Touch(now time.Time) {
	if now.After(d.UpdatedAt) {
		d.UpdatedAt = now
	}
}

// LastActivity is the latest of the dossier's update time and its newest
// history entry, falling back to the creation time.
func (d *Dossier) LastActivity() time.Time {
	last := d.CreatedAt
	if d.UpdatedAt.After(last) {
		last = d.UpdatedAt
	}
	for _, h := range d.History {
		if h.CreatedAt.After(last) {
			last = h.CreatedAt
		}
	}
	return last
}

// LastUserActivity is LastActivity ignoring history written by the system,
// such as the automatic move to waiting.
func (d *Dossier) LastUserActivity() time.Time {
	last := d.CreatedAt
	if d.UpdatedAt.After(last) {
		last = d.UpdatedAt
	}
	for _, h := range d.History {
		if h.Actor != common.SystemUser && h.CreatedAt.After(last) {
			last = h.CreatedAt
		}
	}
	return last
}

// HasObligations reports whether any échéance or declaration exists.
func (d *Dossier) HasObligations() bool {
	return len(d.Echeances) > 0 || len(d.Declarations) > 0
}

// HasMissingDocuments reports whether an applicable document that was not
// provided is attached to an open échéance.
func (d *Dossier) HasMissingDocuments() bool {
	for _, doc := range d.Documents {
		if !doc.IsMissing() {
			continue
		}
		if e := d.FindEcheance(doc.EcheanceID); e != nil && e.IsOpen() {
			return true
		}
	}
	return false
}

// CompletionBasis names the collection completion is counted over.
type CompletionBasis string

const (
	BasisEcheances    CompletionBasis = "echeances"
	BasisDeclarations CompletionBasis = "declarations"
	BasisNone         CompletionBasis = "none"
)

// Completion counts done obligations over the échéance set, or over the
// declaration set when the dossier has no échéances.
func (d *Dossier) Completion() (completed, total int, basis CompletionBasis) {
	switch {
	case len(d.Echeances) > 0:
		for _, e := range d.Echeances {
			if e.IsDone() {
				completed++
			}
		}
		return completed, len(d.Echeances), BasisEcheances
	case len(d.Declarations) > 0:
		for _, decl := range d.Declarations {
			if decl.IsDone() {
				completed++
			}
		}
		return completed, len(d.Declarations), BasisDeclarations
	default:
		return 0, 0, BasisNone
	}
}

// AppendHistory adds an entry to the in-memory history log.
func (d *Dossier) AppendHistory(h *HistoryEntry) {
	h.DossierID = d.ID
	d.History = append(d.History, h)
}

// FindEcheance returns the échéance with id, or nil.
func (d *Dossier) FindEcheance(id common.ID) *Echeance {
	for _, e := range d.Echeances {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// FindEntry returns the ledger entry with id, or nil.
func (d *Dossier) FindEntry(id common.ID) *LedgerEntry {
	for _, e := range d.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// FindDocument returns the required document with id, or nil.
func (d *Dossier) FindDocument(id common.ID) *RequiredDocument {
	for _, doc := range d.Documents {
		if doc.ID == id {
			return doc
		}
	}
	return nil
}

// FindDeclaration returns the declaration with id, or nil.
func (d *Dossier) FindDeclaration(id common.ID) *Declaration {
	for _, decl := range d.Declarations {
		if decl.ID == id {
			return decl
		}
	}
	return nil
}

// FindAlert returns the alert with id, or nil.
func (d *Dossier) FindAlert(id common.ID) *Alert {
	for _, a := range d.Alerts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// EntriesOf returns the ledger entries attached to an échéance.
func (d *Dossier) EntriesOf(echeanceID common.ID) []*LedgerEntry {
	var out []*LedgerEntry
	for _, e := range d.Entries {
		if e.EcheanceID == echeanceID {
			out = append(out, e)
		}
	}
	return out
}

// DocumentsOf returns the required documents attached to an échéance.
func (d *Dossier) DocumentsOf(echeanceID common.ID) []*RequiredDocument {
	var out []*RequiredDocument
	for _, doc := range d.Documents {
		if doc.EcheanceID == echeanceID {
			out = append(out, doc)
		}
	}
	return out
}

// EcheanceForDeclaration returns the échéance derived from a declaration.
func (d *Dossier) EcheanceForDeclaration(declarationID common.ID) *Echeance {
	for _, e := range d.Echeances {
		if e.DeclarationID != nil && *e.DeclarationID == declarationID {
			return e
		}
	}
	return nil
}

// ActiveAlerts returns alerts not yet resolved.
func (d *Dossier) ActiveAlerts() []*Alert {
	var out []*Alert
	for _, a := range d.Alerts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}
