// Package lifecycle holds the dossier state machine, the completion roll-up
// and the automatic priority rules.  Every function works on an already
// loaded aggregate and never reads the wall clock; callers pass today/now.
package lifecycle

import (
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/calendar"
	"github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Priority thresholds in days remaining before the nearest due date.
const (
	highWithinDays   = 2
	normalWithinDays = 7
)

// ComputePriority derives the automatic priority of d on today.
func ComputePriority(d *dossier.Dossier, today time.Time) dossier.Priority {
	if d.Status == dossier.StatusDone || d.Status == dossier.StatusArchived {
		return dossier.PriorityNormal
	}
	today = calendar.DateOf(today)

	next, hasOpen := NextDueDate(d)
	if hasOpen && next.Before(today) {
		return dossier.PriorityUrgent
	}
	if !hasOpen {
		if d.DueDate == nil {
			return dossier.PriorityNormal
		}
		next = calendar.DateOf(*d.DueDate)
	}

	days := calendar.DaysBetween(today, next)
	switch {
	case days < 0:
		return dossier.PriorityUrgent
	case days <= highWithinDays:
		return dossier.PriorityHigh
	case days <= normalWithinDays:
		return dossier.PriorityNormal
	default:
		return dossier.PriorityLow
	}
}

// NextDueDate returns the earliest due date among open échéances and open
// declarations.  The earliest open date is also the overdue witness: if it
// is before today, some obligation is overdue.
func NextDueDate(d *dossier.Dossier) (time.Time, bool) {
	var (
		next  time.Time
		found bool
	)
	consider := func(due time.Time) {
		due = calendar.DateOf(due)
		if !found || due.Before(next) {
			next, found = due, true
		}
	}
	for _, e := range d.Echeances {
		if e.IsOpen() {
			consider(e.DueDate)
		}
	}
	for _, decl := range d.Declarations {
		if !decl.IsDone() {
			consider(decl.DueDate)
		}
	}
	return next, found
}

// PriorityChange records an automatic priority update.
type PriorityChange struct {
	DossierID common.ID        `json:"dossier_id"`
	From      dossier.Priority `json:"from"`
	To        dossier.Priority `json:"to"`
	At        time.Time        `json:"at"`
}

// ApplyPriority stores the computed priority on d and returns nil when it
// did not change.  No history is written and UpdatedAt is left alone, so a
// scan recomputing priorities does not count as activity.
func ApplyPriority(d *dossier.Dossier, today, now time.Time) *PriorityChange {
	computed := ComputePriority(d, today)
	if computed == d.Priority {
		return nil
	}
	change := &PriorityChange{DossierID: d.ID, From: d.Priority, To: computed, At: now}
	d.Priority = computed
	return change
}
