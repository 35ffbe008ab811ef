package dossier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/domain/lifecycle"
	"github.com/turtacn/dossier-engine/internal/domain/obligation"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

const (
	tenant = common.TenantID("cabinet-1")
	alice  = common.UserID("alice")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...Event) error {
	p.mu.Lock()
	p.events = append(p.events, events...)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, events ...Event) error {
	return m.Called(ctx, events).Error(0)
}

type harness struct {
	store *memStore
	pub   *recordingPublisher
	clock *testClock
	svc   Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(),
		pub:   &recordingPublisher{},
		clock: newTestClock(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)),
	}
	h.svc = NewService(Deps{Tx: h.store, Events: h.pub, Clock: h.clock.Now})
	return h
}

func (h *harness) create(t *testing.T, service domain.ServiceType, form domain.LegalForm) *domain.Dossier {
	t.Helper()
	res, err := h.svc.Create(context.Background(), &CreateRequest{
		TenantID:   tenant,
		ClientName: "Boulangerie Martin",
		Service:    service,
		LegalForm:  form,
		FiscalYear: 2025,
		Actor:      alice,
	})
	require.NoError(t, err)
	return res.Dossier
}

func TestService_CreateAssignsReferenceAndGenerates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Create(ctx, &CreateRequest{
		TenantID:   tenant,
		ClientName: "Boulangerie Martin",
		Service:    domain.ServiceBookkeeping,
		LegalForm:  domain.FormSARL,
		FiscalYear: 2025,
		Actor:      alice,
	})
	require.NoError(t, err)
	d := res.Dossier
	assert.Equal(t, "COMPTA-2025-0001", d.Reference)
	assert.Equal(t, domain.StatusNew, d.Status)
	assert.Equal(t, domain.PriorityLow, d.Priority, "first due date is 2025-02-10")
	assert.Len(t, res.Generated.Echeances, 12)
	assert.Equal(t, []EventType{EventDossierCreated, EventObligationsGenerated}, h.pub.types())

	stored, err := h.svc.Get(ctx, tenant, d.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Echeances, 12)
	assert.Len(t, stored.Entries, 72)
	assert.Len(t, stored.Documents, 36)
	require.Len(t, stored.History, 2)
	assert.Equal(t, domain.ActionCreation, stored.History[0].Action)
	assert.Equal(t, domain.ActionObligationsGenerated, stored.History[1].Action)

	second := h.create(t, domain.ServiceBookkeeping, domain.FormSARL)
	assert.Equal(t, "COMPTA-2025-0002", second.Reference)
	tax := h.create(t, domain.ServiceTax, domain.FormSARL)
	assert.Equal(t, "FISCAL-2025-0001", tax.Reference)

	byRef, err := h.svc.GetByReference(ctx, tenant, "FISCAL-2025-0001")
	require.NoError(t, err)
	assert.Equal(t, tax.ID, byRef.ID)
	assert.Len(t, byRef.Declarations, 18)
}

func TestService_CreateRejectsTakenOrMalformedReference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := &CreateRequest{
		TenantID:   tenant,
		Reference:  "COMPTA-2025-0042",
		ClientName: "Garage Leroy",
		Service:    domain.ServiceBookkeeping,
		FiscalYear: 2025,
	}
	_, err := h.svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = h.svc.Create(ctx, req)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDossierReferenceTaken))

	req.Reference = "compta 42"
	_, err = h.svc.Create(ctx, req)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))

	_, err = h.svc.Create(ctx, &CreateRequest{TenantID: tenant, Service: domain.ServiceTax, FiscalYear: 2025})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam), "client name is required")
}

func TestService_CreateDueDateFromPeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Create(ctx, &CreateRequest{
		TenantID:   tenant,
		ClientName: "Boulangerie Martin",
		Service:    domain.ServicePayroll,
		LegalForm:  domain.FormSARL,
		FiscalYear: 2025,
		Period:     "March 2025",
		Actor:      alice,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Dossier.DueDate)
	// the 5th of April 2025 is a Saturday
	assert.Equal(t, time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC), *res.Dossier.DueDate)

	explicit := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	res, err = h.svc.Create(ctx, &CreateRequest{
		TenantID:   tenant,
		ClientName: "Boulangerie Martin",
		Service:    domain.ServicePayroll,
		FiscalYear: 2025,
		Period:     "March 2025",
		DueDate:    &explicit,
	})
	require.NoError(t, err)
	assert.Equal(t, explicit, *res.Dossier.DueDate)

	_, err = h.svc.Create(ctx, &CreateRequest{
		TenantID:   tenant,
		ClientName: "Boulangerie Martin",
		Service:    domain.ServicePayroll,
		FiscalYear: 2025,
		Period:     "Smarch 2025",
	})
	assert.True(t, errors.Is(err, obligation.ErrInvalidPeriodLabel))
}

func TestService_CreateSiblingsPerService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Create(ctx, &CreateRequest{
		TenantID:   tenant,
		ClientName: "Garage Leroy",
		Service:    domain.ServiceBookkeeping,
		Services:   []domain.ServiceType{domain.ServiceTax, domain.ServiceBookkeeping, domain.ServiceLegal},
		LegalForm:  domain.FormSARL,
		FiscalYear: 2025,
		Period:     "January 2025",
		Actor:      alice,
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPTA-2025-0001", res.Dossier.Reference)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), *res.Dossier.DueDate)
	require.Len(t, res.Siblings, 2, "duplicate services are created once")

	tax, legal := res.Siblings[0], res.Siblings[1]
	assert.Equal(t, domain.ServiceTax, tax.Dossier.Service)
	assert.Equal(t, "FISCAL-2025-0001", tax.Dossier.Reference)
	assert.Len(t, tax.Generated.Declarations, 18)
	assert.Equal(t, time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC), *tax.Dossier.DueDate, "the 15th is a Saturday")
	assert.Equal(t, domain.ServiceLegal, legal.Dossier.Service)
	assert.Equal(t, "Garage Leroy", legal.Dossier.ClientName)
	assert.Empty(t, legal.Siblings)
	assert.Equal(t, 1, h.store.txCount, "one transaction for every dossier")

	list, err := h.svc.List(ctx, tenant, domain.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Total)
	created := 0
	for _, typ := range h.pub.types() {
		if typ == EventDossierCreated {
			created++
		}
	}
	assert.Equal(t, 3, created)
}

func TestService_CreateSiblingsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := &CreateRequest{
		TenantID:   tenant,
		Reference:  "COMPTA-2025-0042",
		ClientName: "Garage Leroy",
		Service:    domain.ServiceBookkeeping,
		FiscalYear: 2025,
	}
	_, err := h.svc.Create(ctx, req)
	require.NoError(t, err)
	h.pub.reset()

	req.Services = []domain.ServiceType{domain.ServiceTax}
	_, err = h.svc.Create(ctx, req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDossierReferenceTaken))

	list, err := h.svc.List(ctx, tenant, domain.ListFilter{Service: domain.ServiceTax})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
	assert.Empty(t, h.pub.types())
}

func TestService_OpenMovesNewToInProgressOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServiceBookkeeping, domain.FormSARL)
	h.pub.reset()

	res, err := h.svc.Open(ctx, tenant, d.ID, alice)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.StatusInProgress, res.Dossier.Status)
	require.Len(t, res.Transitions, 1)
	assert.Equal(t, domain.StatusNew, res.Transitions[0].From)
	assert.Equal(t, []EventType{EventStatusChanged}, h.pub.types())

	again, err := h.svc.Open(ctx, tenant, d.ID, alice)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, domain.StatusInProgress, again.Dossier.Status)
}

func TestService_EntriesRollUpToDone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServicePayroll, domain.FormSARL)
	require.Len(t, d.Entries, 60)

	var last *Result
	for i, entry := range d.Entries {
		res, err := h.svc.SetEntryDone(ctx, tenant, entry.ID, true, alice)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, domain.StatusInProgress, res.Dossier.Status)
		}
		if i < len(d.Entries)-1 {
			assert.NotEqual(t, domain.StatusDone, res.Dossier.Status)
		}
		last = res
	}
	assert.Equal(t, domain.StatusDone, last.Dossier.Status)
	assert.NotNil(t, last.Dossier.CompletedAt)
	for _, e := range last.Dossier.Echeances {
		assert.Equal(t, domain.EcheanceDone, e.Status)
	}

	undo, err := h.svc.SetEntryDone(ctx, tenant, d.Entries[0].ID, false, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, undo.Dossier.Status)
	assert.Nil(t, undo.Dossier.CompletedAt)

	same, err := h.svc.SetEntryDone(ctx, tenant, d.Entries[0].ID, false, alice)
	require.NoError(t, err)
	assert.False(t, same.Changed)
}

func TestService_SetEntryDoneUnknownEntry(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SetEntryDone(context.Background(), tenant, common.NewID(), true, alice)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = h.svc.SetEntryDone(context.Background(), tenant, "not-a-uuid", true, alice)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestService_SetEcheanceDone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	books := h.create(t, domain.ServiceBookkeeping, domain.FormSARL)
	_, err := h.svc.SetEcheanceDone(ctx, tenant, books.Echeances[0].ID, true, alice)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict), "follows its entries")

	legal := h.create(t, domain.ServiceLegal, domain.FormSARL)
	gen, err := h.svc.GenerateForPeriod(ctx, tenant, legal.ID, "March 2025", alice)
	require.NoError(t, err)
	require.Len(t, gen.Generated.Echeances, 1)
	echID := gen.Generated.Echeances[0].ID

	res, err := h.svc.SetEcheanceDone(ctx, tenant, echID, true, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, res.Dossier.Status)

	res, err = h.svc.SetEcheanceDone(ctx, tenant, echID, false, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, res.Dossier.Status)
	assert.Equal(t, domain.EcheanceTodo, res.Dossier.FindEcheance(echID).Status)
}

func TestService_DeclarationWorkflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServiceTax, domain.FormSARL)

	var tva *domain.Declaration
	for _, decl := range d.Declarations {
		if decl.Type == domain.DeclTVA && decl.PeriodStart.Month() == time.January && decl.PeriodStart.Year() == 2025 {
			tva = decl
		}
	}
	require.NotNil(t, tva)

	res, err := h.svc.SetDeclarationStatus(ctx, tenant, tva.ID, domain.DeclarationReady, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.EcheanceInProgress, res.Dossier.EcheanceForDeclaration(tva.ID).Status)
	assert.Equal(t, domain.StatusInProgress, res.Dossier.Status)

	_, err = h.svc.CreateCorrective(ctx, tenant, tva.ID, alice)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict), "only filed declarations can be corrected")

	res, err = h.svc.FileDeclaration(ctx, tenant, tva.ID, domain.FilingInput{
		Reference: "DGFIP-2025-000123",
		TaxAmount: decimal.NewNullDecimal(decimal.RequireFromString("1200.00")),
		Credit:    decimal.NewNullDecimal(decimal.RequireFromString("200.00")),
	}, alice)
	require.NoError(t, err)
	filed := res.Dossier.FindDeclaration(tva.ID)
	assert.Equal(t, domain.DeclarationFiled, filed.Status)
	assert.True(t, filed.AmountPayable.Decimal.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, domain.EcheanceDone, res.Dossier.EcheanceForDeclaration(tva.ID).Status)

	_, totalBefore, _ := res.Dossier.Completion()
	res, err = h.svc.CreateCorrective(ctx, tenant, tva.ID, alice)
	require.NoError(t, err)
	require.Len(t, res.Dossier.Declarations, 19)
	corrective := res.Dossier.Declarations[18]
	require.True(t, corrective.Corrective)
	ce := res.Dossier.EcheanceForDeclaration(corrective.ID)
	require.NotNil(t, ce, "a corrective is tracked by its own échéance")
	assert.Equal(t, "TVA_RECT", ce.Category)
	completed, total, _ := res.Dossier.Completion()
	assert.Equal(t, totalBefore+1, total)
	assert.Less(t, completed, total)
	next, ok := lifecycle.NextDueDate(res.Dossier)
	require.True(t, ok)
	assert.False(t, next.After(ce.DueDate))

	stored, err := h.svc.Get(ctx, tenant, d.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.EcheanceForDeclaration(corrective.ID))

	_, err = h.svc.CreateCorrective(ctx, tenant, tva.ID, alice)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict), "one corrective per origin")

	_, err = h.svc.SetDeclarationStatus(ctx, tenant, tva.ID, domain.DeclarationTodo, alice)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDeclarationTransition))
}

func TestService_DocumentMissingAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServiceLegal, domain.FormSARL)
	gen, err := h.svc.GenerateForPeriod(ctx, tenant, d.ID, "March 2025", alice)
	require.NoError(t, err)
	require.Len(t, gen.Generated.Documents, 2)
	first, second := gen.Generated.Documents[0], gen.Generated.Documents[1]

	res, err := h.svc.SetDocumentProvided(ctx, tenant, first.ID, true, alice)
	require.NoError(t, err)
	assert.Empty(t, res.AlertsRaised)

	res, err = h.svc.SetDocumentProvided(ctx, tenant, first.ID, false, alice)
	require.NoError(t, err)
	require.Len(t, res.AlertsRaised, 1)
	assert.Equal(t, domain.AlertDocumentMissing, res.AlertsRaised[0].Kind)

	// second leaves the checklist while first is still missing
	res, err = h.svc.SetDocumentApplicable(ctx, tenant, second.ID, false, alice)
	require.NoError(t, err)
	assert.Empty(t, res.AlertsRaised)
	assert.Empty(t, res.AlertsResolved)

	res, err = h.svc.SetDocumentProvided(ctx, tenant, first.ID, true, alice)
	require.NoError(t, err)
	require.Len(t, res.AlertsResolved, 1)
	assert.False(t, res.AlertsResolved[0].Active)

	for _, a := range h.store.alerts(d.ID) {
		assert.False(t, a.Active)
	}
}

func TestService_ManualLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServiceBookkeeping, domain.FormSARL)

	_, err := h.svc.Complete(ctx, tenant, d.ID, "", alice)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDossierIllegalTransition), "new cannot be completed")

	_, err = h.svc.ChangeStatus(ctx, tenant, d.ID, domain.StatusInProgress, "starting", alice)
	require.NoError(t, err)
	res, err := h.svc.Complete(ctx, tenant, d.ID, "closed early", alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, res.Dossier.Status)
	assert.Equal(t, domain.PriorityNormal, res.Dossier.Priority)

	res, err = h.svc.Archive(ctx, tenant, d.ID, "engagement ended", alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, res.Dossier.Status)

	_, err = h.svc.SetEntryDone(ctx, tenant, d.Entries[0].ID, true, alice)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDossierArchived))
	_, err = h.svc.Regenerate(ctx, tenant, d.ID, 2026, alice)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDossierArchived))

	_, err = h.svc.ChangeStatus(ctx, tenant, d.ID, domain.StatusInProgress, "", alice)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDossierIllegalTransition))

	res, err = h.svc.Reopen(ctx, tenant, d.ID, "client came back", alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, res.Dossier.Status)
	assert.Equal(t, domain.PriorityLow, res.Dossier.Priority)

	actions := map[domain.HistoryAction]int{}
	for _, e := range h.store.history(d.ID) {
		actions[e.Action]++
	}
	assert.Equal(t, 1, actions[domain.ActionCompletion])
	assert.Equal(t, 1, actions[domain.ActionArchive])
	assert.Equal(t, 1, actions[domain.ActionReopen])
	assert.Equal(t, 1, actions[domain.ActionManualStatusChange])
}

func TestService_RegenerateAndGenerateForPeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServiceBookkeeping, domain.FormSARL)

	res, err := h.svc.Regenerate(ctx, tenant, d.ID, 2025, alice)
	require.NoError(t, err)
	assert.True(t, res.Generated.Empty())
	assert.False(t, res.Changed)

	res, err = h.svc.Regenerate(ctx, tenant, d.ID, 2026, alice)
	require.NoError(t, err)
	assert.Len(t, res.Generated.Echeances, 12)
	assert.Len(t, res.Dossier.Echeances, 24)

	before := h.store.txCount
	_, err = h.svc.GenerateForPeriod(ctx, tenant, d.ID, "Smarch 2025", alice)
	require.Error(t, err)
	assert.True(t, errors.Is(err, obligation.ErrInvalidPeriodLabel))
	assert.Equal(t, before+1, h.store.txCount)

	stored, err := h.svc.Get(ctx, tenant, d.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Echeances, 24)
}

func TestService_ResolveAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServiceLegal, domain.FormSARL)
	gen, err := h.svc.GenerateForPeriod(ctx, tenant, d.ID, "March 2025", alice)
	require.NoError(t, err)
	doc := gen.Generated.Documents[0]
	_, err = h.svc.SetDocumentProvided(ctx, tenant, doc.ID, true, alice)
	require.NoError(t, err)
	res, err := h.svc.SetDocumentProvided(ctx, tenant, doc.ID, false, alice)
	require.NoError(t, err)
	require.Len(t, res.AlertsRaised, 1)
	alertID := res.AlertsRaised[0].ID

	res, err = h.svc.ResolveAlert(ctx, tenant, alertID, "client called", alice)
	require.NoError(t, err)
	got := res.Dossier.FindAlert(alertID)
	assert.False(t, got.Active)
	assert.Equal(t, alice, got.ResolvedBy)
	assert.Equal(t, "client called", got.ResolutionNote)

	_, err = h.svc.ResolveAlert(ctx, tenant, alertID, "again", alice)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlertAlreadyResolved))
}

func TestService_ListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, domain.ServiceBookkeeping, domain.FormSARL)
	h.create(t, domain.ServiceTax, domain.FormSARL)
	h.create(t, domain.ServiceTax, domain.FormEI)

	res, err := h.svc.List(ctx, tenant, domain.ListFilter{Service: domain.ServiceTax})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.Equal(t, 1, res.Page)

	res, err = h.svc.List(ctx, tenant, domain.ListFilter{Search: "compta-2025", Page: common.Pagination{Page: 1, PageSize: 10}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
	assert.Equal(t, 10, res.PageSize)
}

func TestService_PublishFailureDoesNotFailMutation(t *testing.T) {
	store := newMemStore()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	clock := newTestClock(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	svc := NewService(Deps{Tx: store, Events: pub, Clock: clock.Now})

	res, err := svc.Create(context.Background(), &CreateRequest{
		TenantID:   tenant,
		ClientName: "Cave Dupont",
		Service:    domain.ServicePayroll,
		FiscalYear: 2025,
	})
	require.NoError(t, err)
	_, err = svc.Open(context.Background(), tenant, res.Dossier.ID, alice)
	require.NoError(t, err)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestService_FailedSaveRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.create(t, domain.ServicePayroll, domain.FormSARL)
	h.pub.reset()
	h.store.failDossier = d.ID

	_, err := h.svc.SetEntryDone(ctx, tenant, d.Entries[0].ID, true, alice)
	require.Error(t, err)
	assert.Empty(t, h.pub.types(), "nothing is published for a rolled back mutation")

	h.store.failDossier = ""
	stored, err := h.svc.Get(ctx, tenant, d.ID)
	require.NoError(t, err)
	assert.False(t, stored.Entries[0].Done)
	assert.Equal(t, domain.StatusNew, stored.Status)
}
