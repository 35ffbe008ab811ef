package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

func newDossier(t *testing.T, created time.Time) *dossier.Dossier {
	t.Helper()
	d, err := dossier.NewDossier(dossier.NewDossierParams{
		TenantID:   "cabinet-1",
		Reference:  "COMPTA-2025-0001",
		ClientName: "Garage Dupont",
		Service:    dossier.ServiceBookkeeping,
		LegalForm:  dossier.FormSARL,
		FiscalYear: 2025,
	}, created)
	require.NoError(t, err)
	return d
}

func TestDefaultLookback(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, day, DefaultLookback(dossier.AlertOverdue))
	assert.Equal(t, day, DefaultLookback(dossier.AlertDeadlineApproaching))
	assert.Equal(t, day, DefaultLookback(dossier.AlertReminder))
	assert.Equal(t, 7*day, DefaultLookback(dossier.AlertActionRequired))
	assert.Equal(t, 7*day, DefaultLookback(dossier.AlertDocumentMissing))
}

func TestShouldRaise_TwiceSameDay(t *testing.T) {
	morning := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	d := newDossier(t, morning.AddDate(0, 0, -30))
	dd := NewDeduplicator(nil)

	require.True(t, dd.ShouldRaise(d, dossier.AlertOverdue, morning))
	alert, superseded := dd.Raise(d, Candidate{Kind: dossier.AlertOverdue, Severity: dossier.SeverityWarning, Message: "late"}, morning)
	require.NotNil(t, alert)
	assert.Empty(t, superseded)

	afternoon := morning.Add(6 * time.Hour)
	assert.False(t, dd.ShouldRaise(d, dossier.AlertOverdue, afternoon))
	again, _ := dd.Raise(d, Candidate{Kind: dossier.AlertOverdue, Severity: dossier.SeverityUrgent}, afternoon)
	assert.Nil(t, again)
	assert.Len(t, d.Alerts, 1)
}

func TestShouldRaise_Window(t *testing.T) {
	created := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	alerts := []*dossier.Alert{
		dossier.NewAlert("d1", dossier.AlertDocumentMissing, dossier.SeverityWarning, "", nil, created),
	}

	assert.False(t, ShouldRaise(alerts, dossier.AlertDocumentMissing, 7*24*time.Hour, created.AddDate(0, 0, 6)))
	assert.False(t, ShouldRaise(alerts, dossier.AlertDocumentMissing, 7*24*time.Hour, created.AddDate(0, 0, 7)), "window is inclusive")
	assert.True(t, ShouldRaise(alerts, dossier.AlertDocumentMissing, 7*24*time.Hour, created.AddDate(0, 0, 7).Add(time.Second)))
	assert.True(t, ShouldRaise(alerts, dossier.AlertOverdue, 24*time.Hour, created), "other kinds are independent")

	require.NoError(t, alerts[0].Resolve("bob", "received", created.Add(time.Hour)))
	assert.True(t, ShouldRaise(alerts, dossier.AlertDocumentMissing, 7*24*time.Hour, created.Add(2*time.Hour)), "resolved alerts do not block")
}

func TestDeduplicator_SupersedesOlderAlert(t *testing.T) {
	first := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	d := newDossier(t, first.AddDate(0, 0, -30))
	dd := NewDeduplicator(nil)

	old, _ := dd.Raise(d, Candidate{Kind: dossier.AlertOverdue, Severity: dossier.SeverityWarning}, first)
	require.NotNil(t, old)

	next := first.Add(25 * time.Hour)
	fresh, superseded := dd.Raise(d, Candidate{Kind: dossier.AlertOverdue, Severity: dossier.SeverityUrgent}, next)
	require.NotNil(t, fresh)
	require.Len(t, superseded, 1)
	assert.Equal(t, old.ID, superseded[0].ID)
	assert.False(t, old.Active)
	assert.Equal(t, common.SystemUser, old.ResolvedBy)
	assert.Equal(t, "superseded", old.ResolutionNote)
	assert.Len(t, d.ActiveAlerts(), 1)
	assert.Len(t, d.Alerts, 2, "resolved alerts are kept")
}

func TestDeduplicator_CustomLookback(t *testing.T) {
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	d := newDossier(t, now.AddDate(0, 0, -30))
	dd := NewDeduplicator(func(dossier.AlertKind) time.Duration { return time.Hour })

	dd.Raise(d, Candidate{Kind: dossier.AlertReminder}, now)
	assert.False(t, dd.ShouldRaise(d, dossier.AlertReminder, now.Add(30*time.Minute)))
	assert.True(t, dd.ShouldRaise(d, dossier.AlertReminder, now.Add(2*time.Hour)))
}
