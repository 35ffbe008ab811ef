package lifecycle

import (
	"fmt"
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/calendar"
	"github.com/turtacn/dossier-engine/internal/domain/dossier"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

var (
	// ErrIllegalTransition rejects a manual status change the state machine
	// does not allow.
	ErrIllegalTransition = apperrors.New(apperrors.ErrCodeDossierIllegalTransition, "illegal dossier status transition")

	// ErrNoObligations rejects manual completion of a dossier that has
	// nothing to complete.
	ErrNoObligations = apperrors.New(apperrors.ErrCodeDossierNoObligations, "dossier has no obligations")
)

// DefaultInactivityThreshold is the idle time after which an in-progress
// dossier moves to waiting.
const DefaultInactivityThreshold = 7 * 24 * time.Hour

// Transition is one dossier status change.
type Transition struct {
	DossierID common.ID             `json:"dossier_id"`
	From      dossier.Status        `json:"from"`
	To        dossier.Status        `json:"to"`
	Action    dossier.HistoryAction `json:"action"`
	Actor     common.UserID         `json:"actor"`
	Comment   string                `json:"comment,omitempty"`
	At        time.Time             `json:"at"`
}

// Automatic reports whether the change was made by a rule rather than a
// user request.
func (t *Transition) Automatic() bool {
	return t.Action == dossier.ActionAutoStatusChange
}

// manualTransitions lists the targets SetStatus accepts.  Leaving done or
// archived goes through Reopen.
var manualTransitions = map[dossier.Status][]dossier.Status{
	dossier.StatusNew:        {dossier.StatusInProgress, dossier.StatusWaiting, dossier.StatusArchived},
	dossier.StatusInProgress: {dossier.StatusWaiting, dossier.StatusDone, dossier.StatusArchived},
	dossier.StatusWaiting:    {dossier.StatusInProgress, dossier.StatusDone, dossier.StatusArchived},
	dossier.StatusDone:       {dossier.StatusArchived},
	dossier.StatusArchived:   {},
}

// CanTransition reports whether a manual change from -> to is allowed.
func CanTransition(from, to dossier.Status) bool {
	for _, t := range manualTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Engine applies the lifecycle rules.
type Engine struct {
	inactivity time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithInactivityThreshold overrides DefaultInactivityThreshold.  Values
// below one hour are ignored.
func WithInactivityThreshold(d time.Duration) Option {
	return func(e *Engine) {
		if d >= time.Hour {
			e.inactivity = d
		}
	}
}

// NewEngine returns an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{inactivity: DefaultInactivityThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InactivityThreshold returns the configured idle time.
func (e *Engine) InactivityThreshold() time.Duration { return e.inactivity }

func (e *Engine) transition(d *dossier.Dossier, to dossier.Status, action dossier.HistoryAction, actor common.UserID, comment string, now time.Time) *Transition {
	t := &Transition{
		DossierID: d.ID,
		From:      d.Status,
		To:        to,
		Action:    action,
		Actor:     actor,
		Comment:   comment,
		At:        now,
	}
	d.Status = to
	switch to {
	case dossier.StatusDone:
		d.CompletedAt = &now
	case dossier.StatusInProgress, dossier.StatusWaiting, dossier.StatusNew:
		d.CompletedAt = nil
	}
	d.AppendHistory(dossier.NewHistoryEntry(action, string(t.From), string(to), comment, actor, now))
	if t.Actor == "" {
		t.Actor = common.SystemUser
	}
	return t
}

// OnOpened moves a new dossier to in_progress the first time a user opens
// it.
func (e *Engine) OnOpened(d *dossier.Dossier, actor common.UserID, now time.Time) *Transition {
	if d.Status != dossier.StatusNew {
		return nil
	}
	t := e.transition(d, dossier.StatusInProgress, dossier.ActionAutoStatusChange, actor, "opened", now)
	d.Touch(now)
	return t
}

// OnActivity records a mutation on d.  A waiting dossier goes back to
// in_progress.
func (e *Engine) OnActivity(d *dossier.Dossier, actor common.UserID, now time.Time) *Transition {
	d.Touch(now)
	if d.Status != dossier.StatusWaiting {
		return nil
	}
	return e.transition(d, dossier.StatusInProgress, dossier.ActionAutoStatusChange, actor, "activity resumed", now)
}

// IsInactive reports whether d has seen no activity for the threshold.
func (e *Engine) IsInactive(d *dossier.Dossier, now time.Time) bool {
	return d.LastActivity().Before(now.Add(-e.inactivity))
}

// EvaluateInactivity moves an idle in_progress dossier to waiting.
func (e *Engine) EvaluateInactivity(d *dossier.Dossier, now time.Time) *Transition {
	if d.Status != dossier.StatusInProgress || !e.IsInactive(d, now) {
		return nil
	}
	days := int(e.inactivity.Hours() / 24)
	return e.transition(d, dossier.StatusWaiting, dossier.ActionAutoStatusChange, common.SystemUser,
		fmt.Sprintf("no activity for %d days", days), now)
}

// RollUp recomputes échéance statuses from their entries and declarations
// and then the dossier status from its completion counts.  It returns the
// échéances it changed and the dossier transition, if any.
func (e *Engine) RollUp(d *dossier.Dossier, actor common.UserID, today, now time.Time) ([]*dossier.Echeance, *Transition) {
	changed := SyncEcheances(d, today, now)
	return changed, e.rollUpStatus(d, actor, now)
}

func (e *Engine) rollUpStatus(d *dossier.Dossier, actor common.UserID, now time.Time) *Transition {
	if d.Status == dossier.StatusArchived {
		return nil
	}
	completed, total, basis := d.Completion()
	if total == 0 {
		return nil
	}
	switch {
	case completed == total:
		if d.Status == dossier.StatusDone {
			return nil
		}
		return e.transition(d, dossier.StatusDone, dossier.ActionAutoStatusChange, actor,
			fmt.Sprintf("all %d %s completed", total, basis), now)
	case completed > 0:
		if d.Status == dossier.StatusNew || d.Status == dossier.StatusDone {
			return e.transition(d, dossier.StatusInProgress, dossier.ActionAutoStatusChange, actor,
				fmt.Sprintf("%d of %d %s completed", completed, total, basis), now)
		}
	default:
		if d.Status == dossier.StatusDone {
			return e.transition(d, dossier.StatusInProgress, dossier.ActionAutoStatusChange, actor,
				fmt.Sprintf("0 of %d %s completed", total, basis), now)
		}
	}
	return nil
}

// MarkDone completes the dossier by hand.
func (e *Engine) MarkDone(d *dossier.Dossier, actor common.UserID, comment string, now time.Time) (*Transition, error) {
	if !d.HasObligations() {
		return nil, ErrNoObligations.WithDetail(string(d.ID))
	}
	if d.Status != dossier.StatusInProgress && d.Status != dossier.StatusWaiting {
		return nil, ErrIllegalTransition.WithDetailf("%s -> %s", d.Status, dossier.StatusDone)
	}
	t := e.transition(d, dossier.StatusDone, dossier.ActionCompletion, actor, comment, now)
	d.Touch(now)
	return t, nil
}

// Reopen takes a done or archived dossier back to in_progress.
func (e *Engine) Reopen(d *dossier.Dossier, actor common.UserID, comment string, now time.Time) (*Transition, error) {
	if d.Status != dossier.StatusDone && d.Status != dossier.StatusArchived {
		return nil, ErrIllegalTransition.WithDetailf("reopen from %s", d.Status)
	}
	t := e.transition(d, dossier.StatusInProgress, dossier.ActionReopen, actor, comment, now)
	d.Touch(now)
	return t, nil
}

// Archive closes the dossier administratively.  Only users archive.
func (e *Engine) Archive(d *dossier.Dossier, actor common.UserID, comment string, now time.Time) (*Transition, error) {
	if d.Status == dossier.StatusArchived {
		return nil, ErrIllegalTransition.WithDetail("already archived")
	}
	t := e.transition(d, dossier.StatusArchived, dossier.ActionArchive, actor, comment, now)
	d.Touch(now)
	return t, nil
}

// SetStatus applies a manual status change.  Completion and archiving keep
// their own preconditions.
func (e *Engine) SetStatus(d *dossier.Dossier, target dossier.Status, actor common.UserID, comment string, now time.Time) (*Transition, error) {
	if !target.IsValid() {
		return nil, apperrors.InvalidParam("unknown dossier status").WithDetail(string(target))
	}
	if target == d.Status {
		return nil, nil
	}
	if !CanTransition(d.Status, target) {
		return nil, ErrIllegalTransition.WithDetailf("%s -> %s", d.Status, target)
	}
	switch target {
	case dossier.StatusDone:
		return e.MarkDone(d, actor, comment, now)
	case dossier.StatusArchived:
		return e.Archive(d, actor, comment, now)
	}
	t := e.transition(d, target, dossier.ActionManualStatusChange, actor, comment, now)
	d.Touch(now)
	return t, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// échéance roll-up
// ─────────────────────────────────────────────────────────────────────────────

// SyncEcheances recomputes every échéance whose status is derived: from its
// ledger entries, or from its declaration.  Échéances with neither are
// managed by hand and only move to overdue.
func SyncEcheances(d *dossier.Dossier, today, now time.Time) []*dossier.Echeance {
	today = calendar.DateOf(today)
	entriesByEcheance := make(map[common.ID][]*dossier.LedgerEntry, len(d.Echeances))
	for _, l := range d.Entries {
		entriesByEcheance[l.EcheanceID] = append(entriesByEcheance[l.EcheanceID], l)
	}

	var changed []*dossier.Echeance
	for _, e := range d.Echeances {
		var moved bool
		switch {
		case e.DeclarationID != nil:
			if decl := d.FindDeclaration(*e.DeclarationID); decl != nil {
				moved = syncFromDeclaration(e, decl, today, now)
			}
		case len(entriesByEcheance[e.ID]) > 0:
			moved = syncFromEntries(e, entriesByEcheance[e.ID], today, now)
		default:
			moved = e.MarkOverdueIfLate(today, now)
		}
		if moved {
			changed = append(changed, e)
		}
	}
	return changed
}

// EcheanceStatusFromEntries returns the status an échéance takes given its
// entries: done when all are done, overdue when past due, in_progress when
// some are done, todo otherwise.
func EcheanceStatusFromEntries(e *dossier.Echeance, entries []*dossier.LedgerEntry, today time.Time) dossier.EcheanceStatus {
	done := 0
	for _, l := range entries {
		if l.Done {
			done++
		}
	}
	switch {
	case len(entries) > 0 && done == len(entries):
		return dossier.EcheanceDone
	case e.DueDate.Before(calendar.DateOf(today)):
		return dossier.EcheanceOverdue
	case done > 0:
		return dossier.EcheanceInProgress
	default:
		return dossier.EcheanceTodo
	}
}

func syncFromEntries(e *dossier.Echeance, entries []*dossier.LedgerEntry, today, now time.Time) bool {
	return setEcheanceStatus(e, EcheanceStatusFromEntries(e, entries, today), now)
}

func syncFromDeclaration(e *dossier.Echeance, decl *dossier.Declaration, today, now time.Time) bool {
	var target dossier.EcheanceStatus
	switch {
	case decl.IsDone():
		target = dossier.EcheanceDone
	case e.DueDate.Before(today):
		target = dossier.EcheanceOverdue
	case decl.Status == dossier.DeclarationInProgress || decl.Status == dossier.DeclarationReady:
		target = dossier.EcheanceInProgress
	default:
		target = dossier.EcheanceTodo
	}
	return setEcheanceStatus(e, target, now)
}

func setEcheanceStatus(e *dossier.Echeance, target dossier.EcheanceStatus, now time.Time) bool {
	if e.Status == target {
		return false
	}
	switch target {
	case dossier.EcheanceDone:
		return e.MarkDone(now)
	case dossier.EcheanceInProgress:
		if e.StartedAt == nil {
			e.StartedAt = &now
		}
	}
	e.Status = target
	e.CompletedAt = nil
	e.UpdatedAt = now
	return true
}
