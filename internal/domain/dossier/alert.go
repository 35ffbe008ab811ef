package dossier

import (
	"time"

	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Alert is raised by the periodic scan or by document tracking.  Resolving
// keeps the record.
type Alert struct {
	ID             common.ID     `json:"id"`
	DossierID      common.ID     `json:"dossier_id"`
	Kind           AlertKind     `json:"kind"`
	Severity       Severity      `json:"severity"`
	Message        string        `json:"message"`
	SubjectID      *common.ID    `json:"subject_id,omitempty"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy     common.UserID `json:"resolved_by,omitempty"`
	ResolutionNote string        `json:"resolution_note,omitempty"`
}

// NewAlert builds an active alert.
func NewAlert(dossierID common.ID, kind AlertKind, severity Severity, message string, subject *common.ID, now time.Time) *Alert {
	return &Alert{
		ID:        common.NewID(),
		DossierID: dossierID,
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		SubjectID: subject,
		Active:    true,
		CreatedAt: now,
	}
}

// Resolve clears the active flag and stamps the resolution.
func (a *Alert) Resolve(actor common.UserID, note string, now time.Time) error {
	if !a.Active {
		return apperrors.New(apperrors.ErrCodeAlertAlreadyResolved, "alert already resolved").
			WithDetail(string(a.ID))
	}
	a.Active = false
	a.ResolvedAt = &now
	a.ResolvedBy = actor
	a.ResolutionNote = note
	return nil
}
