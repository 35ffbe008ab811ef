// Package alerting decides which alerts a dossier should carry and keeps
// them from piling up.  Deduplication is per dossier and alert kind within
// a lookback window.
package alerting

import (
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// DefaultLookback returns the deduplication window of kind.
func DefaultLookback(kind dossier.AlertKind) time.Duration {
	switch kind {
	case dossier.AlertActionRequired, dossier.AlertDocumentMissing:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ShouldRaise reports whether a new alert of kind may be created: true only
// if no active alert of that kind was created at or after now - lookback.
func ShouldRaise(alerts []*dossier.Alert, kind dossier.AlertKind, lookback time.Duration, now time.Time) bool {
	since := now.Add(-lookback)
	for _, a := range alerts {
		if a.Active && a.Kind == kind && !a.CreatedAt.Before(since) {
			return false
		}
	}
	return true
}

// Deduplicator guards alert creation on a loaded dossier.  It is not safe
// for concurrent use on the same dossier; callers hold the dossier's row
// lock for the check and the insert.
type Deduplicator struct {
	lookback func(dossier.AlertKind) time.Duration
}

// NewDeduplicator returns a Deduplicator using lookback, or DefaultLookback
// when nil.
func NewDeduplicator(lookback func(dossier.AlertKind) time.Duration) *Deduplicator {
	if lookback == nil {
		lookback = DefaultLookback
	}
	return &Deduplicator{lookback: lookback}
}

// ShouldRaise applies the window of kind to d's alerts.
func (dd *Deduplicator) ShouldRaise(d *dossier.Dossier, kind dossier.AlertKind, now time.Time) bool {
	return ShouldRaise(d.Alerts, kind, dd.lookback(kind), now)
}

// Raise creates the alert of c on d unless an equivalent one is still
// within its window.  Older active alerts of the same kind are resolved as
// superseded so that one alert per kind stays active.  It returns the new
// alert and the superseded ones, or nil when suppressed.
func (dd *Deduplicator) Raise(d *dossier.Dossier, c Candidate, now time.Time) (*dossier.Alert, []*dossier.Alert) {
	if !dd.ShouldRaise(d, c.Kind, now) {
		return nil, nil
	}
	var superseded []*dossier.Alert
	for _, a := range d.Alerts {
		if a.Active && a.Kind == c.Kind {
			if err := a.Resolve(common.SystemUser, "superseded", now); err == nil {
				superseded = append(superseded, a)
			}
		}
	}
	alert := dossier.NewAlert(d.ID, c.Kind, c.Severity, c.Message, c.SubjectID, now)
	d.Alerts = append(d.Alerts, alert)
	return alert, superseded
}
