package dossier

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Echeance is one periodic obligation instance.  Category is the service
// type for service échéances and the declaration type for échéances derived
// from a declaration; together with the period it keys idempotent
// generation.
type Echeance struct {
	ID            common.ID      `json:"id"`
	DossierID     common.ID      `json:"dossier_id"`
	Category      string         `json:"category"`
	Month         time.Month     `json:"month"`
	Year          int            `json:"year"`
	PeriodLabel   string         `json:"period_label"`
	DueDate       time.Time      `json:"due_date"`
	Status        EcheanceStatus `json:"status"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	DeclarationID *common.ID     `json:"declaration_id,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Key identifies the échéance for deduplication.
func (e *Echeance) Key() string {
	return EcheanceKey(e.Category, e.Year, e.Month)
}

// EcheanceKey builds the deduplication key of an échéance.
func EcheanceKey(category string, year int, month time.Month) string {
	return fmt.Sprintf("%s|%04d-%02d", category, year, int(month))
}

// IsDone reports whether the échéance is completed.
func (e *Echeance) IsDone() bool { return e.Status == EcheanceDone }

// IsOpen is the negation of IsDone.
func (e *Echeance) IsOpen() bool { return !e.IsDone() }

// MarkDone completes the échéance at now.  It returns false when it was
// already done.
func (e *Echeance) MarkDone(now time.Time) bool {
	if e.Status == EcheanceDone {
		return false
	}
	e.Status = EcheanceDone
	e.CompletedAt = &now
	if e.StartedAt == nil {
		e.StartedAt = &now
	}
	e.UpdatedAt = now
	return true
}

// Reopen reverts a completed échéance to todo, or overdue when its due date
// is already past on today.
func (e *Echeance) Reopen(today, now time.Time) bool {
	if e.Status != EcheanceDone {
		return false
	}
	e.Status = EcheanceTodo
	if e.DueDate.Before(today) {
		e.Status = EcheanceOverdue
	}
	e.CompletedAt = nil
	e.UpdatedAt = now
	return true
}

// Start flags work as begun.  Overdue échéances keep their overdue status.
func (e *Echeance) Start(now time.Time) bool {
	if e.Status != EcheanceTodo {
		return false
	}
	e.Status = EcheanceInProgress
	if e.StartedAt == nil {
		e.StartedAt = &now
	}
	e.UpdatedAt = now
	return true
}

// MarkOverdueIfLate moves an open échéance whose due date is before today to
// overdue.
func (e *Echeance) MarkOverdueIfLate(today, now time.Time) bool {
	if e.Status == EcheanceDone || e.Status == EcheanceOverdue {
		return false
	}
	if !e.DueDate.Before(today) {
		return false
	}
	e.Status = EcheanceOverdue
	e.UpdatedAt = now
	return true
}

// LedgerEntry is one journal's completion checkbox within an échéance.
type LedgerEntry struct {
	ID          common.ID       `json:"id"`
	DossierID   common.ID       `json:"dossier_id"`
	EcheanceID  common.ID       `json:"echeance_id"`
	Journal     JournalCategory `json:"journal"`
	Month       time.Month      `json:"month"`
	Year        int             `json:"year"`
	Done        bool            `json:"done"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CompletedBy common.UserID   `json:"completed_by,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// SetDone toggles the entry.  It returns false when nothing changed.
func (l *LedgerEntry) SetDone(done bool, actor common.UserID, now time.Time) bool {
	if l.Done == done {
		return false
	}
	l.Done = done
	if done {
		l.CompletedAt = &now
		l.CompletedBy = actor
	} else {
		l.CompletedAt = nil
		l.CompletedBy = ""
	}
	return true
}

// RequiredDocument is one required-document checklist item.
type RequiredDocument struct {
	ID         common.ID        `json:"id"`
	DossierID  common.ID        `json:"dossier_id"`
	EcheanceID common.ID        `json:"echeance_id"`
	Category   DocumentCategory `json:"category"`
	Month      time.Month       `json:"month"`
	Year       int              `json:"year"`
	Applicable bool             `json:"applicable"`
	Provided   bool             `json:"provided"`
	ProvidedAt *time.Time       `json:"provided_at,omitempty"`
}

// IsMissing reports whether the document is applicable and not provided.
func (r *RequiredDocument) IsMissing() bool { return r.Applicable && !r.Provided }

// Declaration is a tax filing obligation.
type Declaration struct {
	ID              common.ID           `json:"id"`
	DossierID       common.ID           `json:"dossier_id"`
	Type            DeclarationType     `json:"type"`
	Regime          Regime              `json:"regime"`
	PeriodStart     time.Time           `json:"period_start"`
	PeriodEnd       time.Time           `json:"period_end"`
	DueDate         time.Time           `json:"due_date"`
	Status          DeclarationStatus   `json:"status"`
	Form            string              `json:"form"`
	Description     string              `json:"description"`
	TaxableBase     decimal.NullDecimal `json:"taxable_base"`
	TaxAmount       decimal.NullDecimal `json:"tax_amount"`
	Credit          decimal.NullDecimal `json:"credit"`
	AmountPayable   decimal.NullDecimal `json:"amount_payable"`
	FilingReference string              `json:"filing_reference,omitempty"`
	FiledAt         *time.Time          `json:"filed_at,omitempty"`
	PaidOn          *time.Time          `json:"paid_on,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	OriginID        *common.ID          `json:"origin_id,omitempty"`
	Corrective      bool                `json:"corrective"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Key identifies the declaration for deduplication.  Corrective filings
// share their origin's period and are keyed by origin.
func (d *Declaration) Key() string {
	k := DeclarationKey(d.Type, d.PeriodStart)
	if d.Corrective && d.OriginID != nil {
		k += "|" + d.OriginID.String()
	}
	return k
}

// DeclarationKey builds the deduplication key of a scheduled declaration.
func DeclarationKey(t DeclarationType, periodStart time.Time) string {
	return fmt.Sprintf("%s|%s", t, periodStart.Format("2006-01-02"))
}

// IsDone reports whether the declaration is filed or validated.
func (d *Declaration) IsDone() bool { return d.Status.IsDone() }

var declarationTransitions = map[DeclarationStatus][]DeclarationStatus{
	DeclarationTodo:       {DeclarationInProgress, DeclarationReady, DeclarationFiled},
	DeclarationInProgress: {DeclarationTodo, DeclarationReady, DeclarationFiled},
	DeclarationReady:      {DeclarationInProgress, DeclarationFiled},
	DeclarationFiled:      {DeclarationReady, DeclarationValidated},
	DeclarationValidated:  {},
}

// CanTransitionTo reports whether the filing workflow allows target.
func (d *Declaration) CanTransitionTo(target DeclarationStatus) bool {
	for _, s := range declarationTransitions[d.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the declaration to target.
func (d *Declaration) TransitionTo(target DeclarationStatus, now time.Time) error {
	if !target.IsValid() {
		return apperrors.InvalidParam("unknown declaration status").WithDetail(string(target))
	}
	if d.Status == target {
		return nil
	}
	if !d.CanTransitionTo(target) {
		return apperrors.New(apperrors.ErrCodeDeclarationTransition, "illegal declaration status transition").
			WithDetailf("%s -> %s", d.Status, target)
	}
	d.Status = target
	if target == DeclarationFiled && d.FiledAt == nil {
		d.FiledAt = &now
	}
	if target == DeclarationReady || target == DeclarationInProgress || target == DeclarationTodo {
		d.FiledAt = nil
		d.FilingReference = ""
	}
	d.UpdatedAt = now
	return nil
}

// FilingInput carries the data recorded when a declaration is submitted.
type FilingInput struct {
	Reference     string
	FiledAt       time.Time
	TaxableBase   decimal.NullDecimal
	TaxAmount     decimal.NullDecimal
	Credit        decimal.NullDecimal
	AmountPayable decimal.NullDecimal
	PaidOn        *time.Time
	Notes         string
}

// File records the submission.  When no payable amount is given it is
// derived as tax amount minus credit, floored at zero.
func (d *Declaration) File(in FilingInput, now time.Time) error {
	if in.Reference == "" {
		return apperrors.InvalidParam("filing reference is required")
	}
	if err := d.TransitionTo(DeclarationFiled, now); err != nil {
		return err
	}
	filedAt := in.FiledAt
	if filedAt.IsZero() {
		filedAt = now
	}
	d.FilingReference = in.Reference
	d.FiledAt = &filedAt
	d.PaidOn = in.PaidOn
	if in.TaxableBase.Valid {
		d.TaxableBase = in.TaxableBase
	}
	if in.TaxAmount.Valid {
		d.TaxAmount = in.TaxAmount
	}
	if in.Credit.Valid {
		d.Credit = in.Credit
	}
	switch {
	case in.AmountPayable.Valid:
		d.AmountPayable = in.AmountPayable
	case d.TaxAmount.Valid:
		payable := d.TaxAmount.Decimal
		if d.Credit.Valid {
			payable = payable.Sub(d.Credit.Decimal)
		}
		if payable.IsNegative() {
			payable = decimal.Zero
		}
		d.AmountPayable = decimal.NullDecimal{Decimal: payable, Valid: true}
	}
	if in.Notes != "" {
		d.Notes = in.Notes
	}
	return nil
}

// NewCorrective builds an amended filing of origin, which must have been
// filed.  The copy starts in todo with no amounts.
func NewCorrective(origin *Declaration, now time.Time) (*Declaration, error) {
	if !origin.IsDone() {
		return nil, apperrors.InvalidState("only a filed declaration can be corrected").
			WithDetail(string(origin.ID))
	}
	originID := origin.ID
	return &Declaration{
		ID:          common.NewID(),
		DossierID:   origin.DossierID,
		Type:        origin.Type,
		Regime:      origin.Regime,
		PeriodStart: origin.PeriodStart,
		PeriodEnd:   origin.PeriodEnd,
		DueDate:     origin.DueDate,
		Status:      DeclarationTodo,
		Form:        origin.Form,
		Description: origin.Description + " (rectificative)",
		OriginID:    &originID,
		Corrective:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
