package dossier

import (
	"time"

	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// HistoryAction tags a history entry.
type HistoryAction string

const (
	ActionCreation             HistoryAction = "creation"
	ActionAutoStatusChange     HistoryAction = "auto_status_change"
	ActionManualStatusChange   HistoryAction = "manual_status_change"
	ActionCompletion           HistoryAction = "completion"
	ActionReopen               HistoryAction = "reopen"
	ActionArchive              HistoryAction = "archive"
	ActionObligationsGenerated HistoryAction = "obligations_generated"
	ActionEntryUpdated         HistoryAction = "entry_updated"
	ActionEcheanceUpdated      HistoryAction = "echeance_updated"
	ActionDocumentUpdated      HistoryAction = "document_updated"
	ActionDeclarationUpdated   HistoryAction = "declaration_updated"
	ActionAlertResolved        HistoryAction = "alert_resolved"
)

func (a HistoryAction) String() string { return string(a) }

// HistoryEntry is an append-only audit record.
type HistoryEntry struct {
	ID        common.ID     `json:"id"`
	DossierID common.ID     `json:"dossier_id"`
	Action    HistoryAction `json:"action"`
	OldValue  string        `json:"old_value,omitempty"`
	NewValue  string        `json:"new_value,omitempty"`
	Comment   string        `json:"comment,omitempty"`
	Actor     common.UserID `json:"actor"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewHistoryEntry builds an entry; an empty actor is recorded as the system.
func NewHistoryEntry(action HistoryAction, oldValue, newValue, comment string, actor common.UserID, now time.Time) *HistoryEntry {
	if actor == "" {
		actor = common.SystemUser
	}
	return &HistoryEntry{
		ID:        common.NewID(),
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		Comment:   comment,
		Actor:     actor,
		CreatedAt: now,
	}
}
