package dossier

import (
	"time"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/domain/lifecycle"
	"github.com/turtacn/dossier-engine/internal/domain/obligation"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// EventType names a domain event.
type EventType string

const (
	EventDossierCreated       EventType = "dossier.created"
	EventStatusChanged        EventType = "dossier.status_changed"
	EventPriorityChanged      EventType = "dossier.priority_changed"
	EventObligationsGenerated EventType = "dossier.obligations_generated"
	EventEcheanceOverdue      EventType = "echeance.overdue"
	EventAlertRaised          EventType = "alert.raised"
	EventAlertResolved        EventType = "alert.resolved"
)

// Event is published after the transaction that produced it commits.
type Event struct {
	ID         common.ID       `json:"id"`
	Type       EventType       `json:"type"`
	TenantID   common.TenantID `json:"tenant_id"`
	DossierID  common.ID       `json:"dossier_id"`
	Reference  string          `json:"reference,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    interface{}     `json:"payload,omitempty"`
}

// CreatedPayload describes a new dossier.
type CreatedPayload struct {
	Service    domain.ServiceType `json:"service_type"`
	LegalForm  domain.LegalForm   `json:"legal_form"`
	FiscalYear int                `json:"fiscal_year"`
	Priority   domain.Priority    `json:"priority"`
	Generated  string             `json:"generated"`
}

// GeneratedPayload summarises a generation call.
type GeneratedPayload struct {
	Echeances    int `json:"echeances"`
	Entries      int `json:"entries"`
	Documents    int `json:"documents"`
	Declarations int `json:"declarations"`
	Skipped      int `json:"skipped"`
}

// AlertPayload carries the alert fields relayed to notification consumers.
type AlertPayload struct {
	AlertID  common.ID        `json:"alert_id"`
	Kind     domain.AlertKind `json:"kind"`
	Severity domain.Severity  `json:"severity"`
	Message  string           `json:"message"`
	Note     string           `json:"note,omitempty"`
}

// OverduePayload identifies an échéance that became overdue.
type OverduePayload struct {
	EcheanceID  common.ID `json:"echeance_id"`
	PeriodLabel string    `json:"period_label"`
	DueDate     time.Time `json:"due_date"`
}

// eventLog accumulates events during one mutation.
type eventLog struct {
	d      *domain.Dossier
	events []Event
}

func newEventLog(d *domain.Dossier) *eventLog {
	return &eventLog{d: d}
}

func (l *eventLog) add(t EventType, at time.Time, payload interface{}) {
	l.events = append(l.events, Event{
		ID:         common.NewID(),
		Type:       t,
		TenantID:   l.d.TenantID,
		DossierID:  l.d.ID,
		Reference:  l.d.Reference,
		OccurredAt: at,
		Payload:    payload,
	})
}

func (l *eventLog) transition(t *lifecycle.Transition) {
	if t != nil {
		l.add(EventStatusChanged, t.At, t)
	}
}

func (l *eventLog) priority(c *lifecycle.PriorityChange) {
	if c != nil {
		l.add(EventPriorityChanged, c.At, c)
	}
}

func (l *eventLog) generated(set *obligation.GeneratedSet, at time.Time) {
	if set == nil || set.Empty() {
		return
	}
	l.add(EventObligationsGenerated, at, GeneratedPayload{
		Echeances:    len(set.Echeances),
		Entries:      len(set.Entries),
		Documents:    len(set.Documents),
		Declarations: len(set.Declarations),
		Skipped:      set.Skipped,
	})
}

func (l *eventLog) alertRaised(a *domain.Alert) {
	l.add(EventAlertRaised, a.CreatedAt, AlertPayload{AlertID: a.ID, Kind: a.Kind, Severity: a.Severity, Message: a.Message})
}

func (l *eventLog) alertResolved(a *domain.Alert) {
	at := a.CreatedAt
	if a.ResolvedAt != nil {
		at = *a.ResolvedAt
	}
	l.add(EventAlertResolved, at, AlertPayload{AlertID: a.ID, Kind: a.Kind, Severity: a.Severity, Message: a.Message, Note: a.ResolutionNote})
}

func (l *eventLog) overdue(e *domain.Echeance, at time.Time) {
	l.add(EventEcheanceOverdue, at, OverduePayload{EcheanceID: e.ID, PeriodLabel: e.PeriodLabel, DueDate: e.DueDate})
}
