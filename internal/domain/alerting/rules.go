package alerting

import (
	"fmt"
	"sort"
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/calendar"
	"github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Candidate is an alert the rules want the dossier to carry.
type Candidate struct {
	Kind      dossier.AlertKind
	Severity  dossier.Severity
	Message   string
	SubjectID *common.ID
}

// Thresholds parameterise the evaluator.
type Thresholds struct {
	// ApproachingDays is the look-ahead for deadline_approaching and
	// document_missing.  Nil takes the default; zero watches the due day
	// only.
	ApproachingDays *int
	// OverdueEscalationDays is the lateness past which overdue alerts are
	// urgent.
	OverdueEscalationDays int
	// Inactivity is the idle time that raises action_required.
	Inactivity time.Duration
}

// DefaultThresholds returns 3 days, 5 days and 7 days.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ApproachingDays:       Days(3),
		OverdueEscalationDays: 5,
		Inactivity:            7 * 24 * time.Hour,
	}
}

// Days returns a pointer to n, for Thresholds.ApproachingDays.
func Days(n int) *int { return &n }

// managedKinds are the kinds the evaluator raises and clears.  Reminders
// are created by users and never resolved automatically.
var managedKinds = []dossier.AlertKind{
	dossier.AlertOverdue,
	dossier.AlertDeadlineApproaching,
	dossier.AlertActionRequired,
	dossier.AlertDocumentMissing,
}

// Evaluator turns dossier state into alert candidates.
type Evaluator struct {
	t         Thresholds
	lookAhead int
}

// NewEvaluator returns an Evaluator; zero fields of t take the defaults,
// as do a nil or negative ApproachingDays.
func NewEvaluator(t Thresholds) *Evaluator {
	def := DefaultThresholds()
	if t.ApproachingDays == nil || *t.ApproachingDays < 0 {
		t.ApproachingDays = def.ApproachingDays
	}
	if t.OverdueEscalationDays <= 0 {
		t.OverdueEscalationDays = def.OverdueEscalationDays
	}
	if t.Inactivity <= 0 {
		t.Inactivity = def.Inactivity
	}
	return &Evaluator{t: t, lookAhead: *t.ApproachingDays}
}

// Thresholds returns the evaluator's settings.
func (ev *Evaluator) Thresholds() Thresholds {
	t := ev.t
	t.ApproachingDays = Days(ev.lookAhead)
	return t
}

// obligationRef is an open obligation flattened for the rules.
type obligationRef struct {
	id    common.ID
	label string
	due   time.Time
}

func openObligations(d *dossier.Dossier) []obligationRef {
	var out []obligationRef
	for _, e := range d.Echeances {
		if e.IsOpen() {
			out = append(out, obligationRef{id: e.ID, label: e.PeriodLabel, due: calendar.DateOf(e.DueDate)})
		}
	}
	for _, decl := range d.Declarations {
		if decl.IsDone() || d.EcheanceForDeclaration(decl.ID) != nil {
			continue
		}
		out = append(out, obligationRef{id: decl.ID, label: decl.Description, due: calendar.DateOf(decl.DueDate)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].due.Before(out[j].due) })
	return out
}

// Evaluate returns the candidates for d.  Closed dossiers get none.
func (ev *Evaluator) Evaluate(d *dossier.Dossier, today, now time.Time) []Candidate {
	if d.Status == dossier.StatusDone || d.Status == dossier.StatusArchived {
		return nil
	}
	today = calendar.DateOf(today)
	open := openObligations(d)

	var out []Candidate
	if c, ok := ev.overdue(open, today); ok {
		out = append(out, c)
	}
	if c, ok := ev.approaching(open, today); ok {
		out = append(out, c)
	}
	if c, ok := ev.MissingDocuments(d, today); ok {
		out = append(out, c)
	}
	if last := d.LastUserActivity(); last.Before(now.Add(-ev.t.Inactivity)) {
		days := calendar.DaysBetween(last, now)
		out = append(out, Candidate{
			Kind:     dossier.AlertActionRequired,
			Severity: dossier.SeverityInfo,
			Message:  fmt.Sprintf("No activity on %s for %d days", d.Reference, days),
		})
	}
	return out
}

func (ev *Evaluator) overdue(open []obligationRef, today time.Time) (Candidate, bool) {
	if len(open) == 0 || !open[0].due.Before(today) {
		return Candidate{}, false
	}
	first := open[0]
	late := calendar.DaysBetween(first.due, today)
	count := 0
	for _, o := range open {
		if o.due.Before(today) {
			count++
		}
	}
	msg := fmt.Sprintf("%s is %d days overdue", first.label, late)
	if count > 1 {
		msg = fmt.Sprintf("%s (%d overdue obligations)", msg, count)
	}
	return Candidate{
		Kind:      dossier.AlertOverdue,
		Severity:  OverdueSeverity(late, ev.t.OverdueEscalationDays),
		Message:   msg,
		SubjectID: idPtr(first.id),
	}, true
}

// OverdueSeverity is urgent past the escalation threshold, warning before.
func OverdueSeverity(daysLate, escalationDays int) dossier.Severity {
	if daysLate > escalationDays {
		return dossier.SeverityUrgent
	}
	return dossier.SeverityWarning
}

func (ev *Evaluator) approaching(open []obligationRef, today time.Time) (Candidate, bool) {
	for _, o := range open {
		days := calendar.DaysBetween(today, o.due)
		if days < 0 {
			continue
		}
		if days > ev.lookAhead {
			break
		}
		msg := fmt.Sprintf("%s is due in %d days", o.label, days)
		if days == 0 {
			msg = fmt.Sprintf("%s is due today", o.label)
		}
		return Candidate{
			Kind:      dossier.AlertDeadlineApproaching,
			Severity:  dossier.SeverityWarning,
			Message:   msg,
			SubjectID: idPtr(o.id),
		}, true
	}
	return Candidate{}, false
}

// MissingDocuments returns the document_missing candidate: applicable
// documents not provided whose échéance is open and due within the
// look-ahead or already late.
func (ev *Evaluator) MissingDocuments(d *dossier.Dossier, today time.Time) (Candidate, bool) {
	today = calendar.DateOf(today)
	horizon := today.AddDate(0, 0, ev.lookAhead)
	var (
		missing []*dossier.RequiredDocument
		first   *dossier.Echeance
	)
	for _, doc := range d.Documents {
		if !doc.IsMissing() {
			continue
		}
		e := d.FindEcheance(doc.EcheanceID)
		if e == nil || e.IsDone() || calendar.DateOf(e.DueDate).After(horizon) {
			continue
		}
		missing = append(missing, doc)
		if first == nil || e.DueDate.Before(first.DueDate) {
			first = e
		}
	}
	if len(missing) == 0 {
		return Candidate{}, false
	}
	return Candidate{
		Kind:      dossier.AlertDocumentMissing,
		Severity:  dossier.SeverityWarning,
		Message:   fmt.Sprintf("%d required documents missing, earliest for %s", len(missing), first.PeriodLabel),
		SubjectID: idPtr(first.ID),
	}, true
}

// ResolveCleared resolves the active managed alerts whose kind is not among
// the current candidates.  A document_missing alert stays active while any
// open échéance still misses a document, even one outside the look-ahead.
func ResolveCleared(d *dossier.Dossier, candidates []Candidate, now time.Time) []*dossier.Alert {
	present := make(map[dossier.AlertKind]bool, len(candidates))
	for _, c := range candidates {
		present[c.Kind] = true
	}
	if d.HasMissingDocuments() {
		present[dossier.AlertDocumentMissing] = true
	}
	var resolved []*dossier.Alert
	for _, a := range d.Alerts {
		if !a.Active || present[a.Kind] || !isManaged(a.Kind) {
			continue
		}
		if err := a.Resolve(common.SystemUser, "condition cleared", now); err == nil {
			resolved = append(resolved, a)
		}
	}
	return resolved
}

func isManaged(kind dossier.AlertKind) bool {
	for _, k := range managedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func idPtr(id common.ID) *common.ID { return &id }
