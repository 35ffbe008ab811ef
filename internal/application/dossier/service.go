// Package dossier is the application service of the dossier engine.  It
// loads aggregates inside a transaction, applies the obligation, lifecycle
// and alerting rules, persists the result and publishes events once the
// transaction has committed.
package dossier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/alerting"
	"github.com/turtacn/dossier-engine/internal/domain/calendar"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/domain/lifecycle"
	"github.com/turtacn/dossier-engine/internal/domain/obligation"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Service defines the dossier use cases.
type Service interface {
	Create(ctx context.Context, req *CreateRequest) (*CreateResult, error)
	Get(ctx context.Context, tenant common.TenantID, id common.ID) (*domain.Dossier, error)
	GetByReference(ctx context.Context, tenant common.TenantID, reference string) (*domain.Dossier, error)
	Open(ctx context.Context, tenant common.TenantID, id common.ID, actor common.UserID) (*Result, error)
	List(ctx context.Context, tenant common.TenantID, filter domain.ListFilter) (*ListResult, error)

	SetEntryDone(ctx context.Context, tenant common.TenantID, entryID common.ID, done bool, actor common.UserID) (*Result, error)
	SetEcheanceDone(ctx context.Context, tenant common.TenantID, echeanceID common.ID, done bool, actor common.UserID) (*Result, error)
	SetDeclarationStatus(ctx context.Context, tenant common.TenantID, declarationID common.ID, status domain.DeclarationStatus, actor common.UserID) (*Result, error)
	FileDeclaration(ctx context.Context, tenant common.TenantID, declarationID common.ID, in domain.FilingInput, actor common.UserID) (*Result, error)
	CreateCorrective(ctx context.Context, tenant common.TenantID, originID common.ID, actor common.UserID) (*Result, error)
	SetDocumentProvided(ctx context.Context, tenant common.TenantID, documentID common.ID, provided bool, actor common.UserID) (*Result, error)
	SetDocumentApplicable(ctx context.Context, tenant common.TenantID, documentID common.ID, applicable bool, actor common.UserID) (*Result, error)

	ChangeStatus(ctx context.Context, tenant common.TenantID, id common.ID, status domain.Status, comment string, actor common.UserID) (*Result, error)
	Complete(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*Result, error)
	Reopen(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*Result, error)
	Archive(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*Result, error)

	Regenerate(ctx context.Context, tenant common.TenantID, id common.ID, referenceYear int, actor common.UserID) (*Result, error)
	GenerateForPeriod(ctx context.Context, tenant common.TenantID, id common.ID, label string, actor common.UserID) (*Result, error)
	ResolveAlert(ctx context.Context, tenant common.TenantID, alertID common.ID, note string, actor common.UserID) (*Result, error)
}

// CreateRequest carries a new engagement.  ReferenceYear defaults to the
// fiscal year; an empty Reference is assigned from the tenant's counter.
//
// Services lists further services engaged for the same client; each gets
// a sibling dossier with its own reference, created in the same
// transaction.  Reference applies to the Service dossier only.  When
// DueDate is nil and Period names a month ("March 2025"), every dossier is
// due on its service due day in the month after it.
type CreateRequest struct {
	TenantID      common.TenantID
	Reference     string
	ClientName    string
	ClientID      string
	Service       domain.ServiceType
	Services      []domain.ServiceType
	LegalForm     domain.LegalForm
	Cadence       domain.PeriodCadence
	FiscalYear    int
	ReferenceYear int
	DueDate       *time.Time
	Period        string
	Description   string
	AssignedTo    common.UserID
	Actor         common.UserID
}

// services is Service followed by the other requested services, without
// duplicates.
func (r *CreateRequest) services() []domain.ServiceType {
	out := make([]domain.ServiceType, 0, 1+len(r.Services))
	seen := make(map[domain.ServiceType]bool, 1+len(r.Services))
	for _, st := range append([]domain.ServiceType{r.Service}, r.Services...) {
		if st == "" || seen[st] {
			continue
		}
		seen[st] = true
		out = append(out, st)
	}
	return out
}

// CreateResult is the stored dossier and what was generated for it.
// Siblings holds the dossiers created for the other requested services.
type CreateResult struct {
	Dossier   *domain.Dossier          `json:"dossier"`
	Generated *obligation.GeneratedSet `json:"generated"`
	Siblings  []*CreateResult          `json:"siblings,omitempty"`
}

// Result describes the effects of one mutation.
type Result struct {
	Dossier        *domain.Dossier           `json:"dossier"`
	Transitions    []*lifecycle.Transition   `json:"transitions,omitempty"`
	Priority       *lifecycle.PriorityChange `json:"priority,omitempty"`
	Generated      *obligation.GeneratedSet  `json:"generated,omitempty"`
	AlertsRaised   []*domain.Alert           `json:"alerts_raised,omitempty"`
	AlertsResolved []*domain.Alert           `json:"alerts_resolved,omitempty"`
	// Changed is false when the request left the dossier as it was.
	Changed bool `json:"changed"`
}

// ListResult is one page of dossiers.
type ListResult struct {
	Dossiers []*domain.Dossier `json:"dossiers"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// Deps wires the service.  Nil fields other than Tx take defaults.
type Deps struct {
	Tx        TxRunner
	Generator *obligation.Generator
	Engine    *lifecycle.Engine
	Evaluator *alerting.Evaluator
	Dedup     *alerting.Deduplicator
	Events    EventPublisher
	Metrics   Metrics
	Clock     Clock
	Logger    logging.Logger
}

func (d *Deps) fill() {
	if d.Generator == nil {
		d.Generator = obligation.NewGenerator(nil)
	}
	if d.Engine == nil {
		d.Engine = lifecycle.NewEngine()
	}
	if d.Evaluator == nil {
		d.Evaluator = alerting.NewEvaluator(alerting.DefaultThresholds())
	}
	if d.Dedup == nil {
		d.Dedup = alerting.NewDeduplicator(nil)
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Clock == nil {
		d.Clock = SystemClock
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
}

type serviceImpl struct {
	deps   Deps
	logger logging.Logger
}

// NewService creates the dossier service.
func NewService(deps Deps) Service {
	deps.fill()
	return &serviceImpl{deps: deps, logger: deps.Logger.Named("dossier")}
}

// ─────────────────────────────────────────────────────────────────────────────
// mutation plumbing
// ─────────────────────────────────────────────────────────────────────────────

type mutation struct {
	d     *domain.Dossier
	now   time.Time
	today time.Time
	actor common.UserID
	log   *eventLog
	res   *Result

	// activity touches the dossier, opens a new one and wakes a waiting
	// one.
	activity bool
	// obligationsChanged triggers the completion roll-up.
	obligationsChanged bool
}

func (m *mutation) history(action domain.HistoryAction, oldValue, newValue, comment string) {
	m.d.AppendHistory(domain.NewHistoryEntry(action, oldValue, newValue, comment, m.actor, m.now))
	m.res.Changed = true
}

type mutateOpts struct {
	allowArchived bool
}

type resolver func(ctx context.Context, repos Repositories) (common.ID, error)

func byID(id common.ID) resolver {
	return func(context.Context, Repositories) (common.ID, error) {
		if err := id.Validate(); err != nil {
			return "", apperrors.InvalidParam(err.Error())
		}
		return id, nil
	}
}

func byChild(tenant common.TenantID, kind domain.ChildKind, childID common.ID) resolver {
	return func(ctx context.Context, repos Repositories) (common.ID, error) {
		return ownerOf(ctx, repos, tenant, kind, childID)
	}
}

func (s *serviceImpl) mutate(ctx context.Context, tenant common.TenantID, target resolver, actor common.UserID, opts mutateOpts, fn func(m *mutation) error) (*Result, error) {
	now := s.deps.Clock()
	today := calendar.DateOf(now)

	var (
		res    *Result
		events []Event
	)
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		id, err := target(ctx, repos)
		if err != nil {
			return err
		}
		d, err := loadAggregate(ctx, repos, tenant, id, true)
		if err != nil {
			return err
		}
		if d.Status == domain.StatusArchived && !opts.allowArchived {
			return apperrors.New(apperrors.ErrCodeDossierArchived, "dossier is archived").WithDetail(d.Reference)
		}

		m := &mutation{d: d, now: now, today: today, actor: actor, log: newEventLog(d), res: &Result{Dossier: d}}
		if err := fn(m); err != nil {
			return err
		}
		if m.activity {
			s.addTransition(m, s.deps.Engine.OnOpened(d, actor, now))
			s.addTransition(m, s.deps.Engine.OnActivity(d, actor, now))
		}
		if m.obligationsChanged {
			changed, t := s.deps.Engine.RollUp(d, actor, today, now)
			for _, e := range changed {
				if e.Status == domain.EcheanceOverdue {
					m.log.overdue(e, now)
				}
			}
			s.addTransition(m, t)
		}
		if change := lifecycle.ApplyPriority(d, today, now); change != nil {
			m.res.Priority = change
			m.res.Changed = true
			m.log.priority(change)
		}
		if !m.res.Changed {
			res = m.res
			return nil
		}
		if err := saveAggregate(ctx, repos, d, false); err != nil {
			return err
		}
		res, events = m.res, m.log.events
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return res, nil
}

func (s *serviceImpl) addTransition(m *mutation, t *lifecycle.Transition) {
	if t == nil {
		return
	}
	m.res.Transitions = append(m.res.Transitions, t)
	m.res.Changed = true
	m.log.transition(t)
	s.deps.Metrics.RecordTransition(t.From, t.To, t.Automatic())
	s.logger.Info("dossier status changed",
		logging.String("dossier_id", string(t.DossierID)),
		logging.String("reference", m.d.Reference),
		logging.Stringer("from", t.From),
		logging.Stringer("to", t.To),
		logging.Stringer("action", t.Action),
		logging.String("actor", string(t.Actor)),
	)
}

func (s *serviceImpl) raise(m *mutation, c alerting.Candidate) {
	alert, superseded := s.deps.Dedup.Raise(m.d, c, m.now)
	if alert == nil {
		s.deps.Metrics.RecordAlert(c.Kind, false)
		return
	}
	m.res.Changed = true
	m.res.AlertsRaised = append(m.res.AlertsRaised, alert)
	m.log.alertRaised(alert)
	for _, a := range superseded {
		m.res.AlertsResolved = append(m.res.AlertsResolved, a)
		m.log.alertResolved(a)
	}
	s.deps.Metrics.RecordAlert(c.Kind, true)
}

func (s *serviceImpl) publish(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	if err := s.deps.Events.Publish(ctx, events...); err != nil {
		s.logger.Warn("event publish failed", logging.Int("events", len(events)), logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// creation and reads
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Create(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	if req == nil {
		return nil, apperrors.InvalidParam("create request is required")
	}
	now := s.deps.Clock()

	services := req.services()
	if len(services) == 0 {
		services = []domain.ServiceType{req.Service}
	}
	created := make([]*CreateResult, 0, len(services))
	for i, service := range services {
		reference := ""
		if i == 0 {
			reference = req.Reference
		}
		res, err := s.prepare(req, service, reference, now)
		if err != nil {
			return nil, err
		}
		created = append(created, res)
	}

	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		for _, res := range created {
			if err := s.store(ctx, repos, res.Dossier); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, res := range created {
		s.announce(ctx, res, now)
	}
	primary := created[0]
	primary.Siblings = created[1:]
	return primary, nil
}

// prepare builds one dossier of the request with its obligations, before
// anything is stored.
func (s *serviceImpl) prepare(req *CreateRequest, service domain.ServiceType, reference string, now time.Time) (*CreateResult, error) {
	due := req.DueDate
	if due == nil && strings.TrimSpace(req.Period) != "" {
		at, err := s.deps.Generator.PeriodDueDate(service, req.Period)
		if err != nil {
			return nil, err
		}
		due = &at
	}

	d, err := domain.NewDossier(domain.NewDossierParams{
		TenantID:    req.TenantID,
		Reference:   reference,
		ClientName:  req.ClientName,
		ClientID:    req.ClientID,
		Service:     service,
		LegalForm:   req.LegalForm,
		Cadence:     req.Cadence,
		FiscalYear:  req.FiscalYear,
		DueDate:     due,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
	}, now)
	if err != nil {
		return nil, err
	}
	if d.Reference != "" && !domain.ValidReference(d.Reference) {
		return nil, apperrors.InvalidParam("reference must look like PREFIX-YYYY-NNNN").WithDetail(d.Reference)
	}

	year := req.ReferenceYear
	if year == 0 {
		year = d.FiscalYear
	}
	set, err := s.deps.Generator.Generate(d, year, now)
	if err != nil {
		return nil, err
	}
	set.ApplyTo(d)
	d.AppendHistory(domain.NewHistoryEntry(domain.ActionCreation, "", string(d.Status), "dossier created", req.Actor, now))
	if !set.Empty() {
		d.AppendHistory(domain.NewHistoryEntry(domain.ActionObligationsGenerated, "", fmt.Sprintf("%d", year), set.Summary(), req.Actor, now))
	}
	lifecycle.ApplyPriority(d, calendar.DateOf(now), now)
	return &CreateResult{Dossier: d, Generated: set}, nil
}

// store assigns the reference of d when it has none and saves it.
func (s *serviceImpl) store(ctx context.Context, repos Repositories, d *domain.Dossier) error {
	if d.Reference == "" {
		prefix := domain.ReferencePrefix(d.Service)
		seq, err := repos.Dossiers.NextReferenceSeq(ctx, d.TenantID, prefix, d.FiscalYear)
		if err != nil {
			return err
		}
		d.Reference = domain.FormatReference(prefix, d.FiscalYear, seq)
	} else if _, err := repos.Dossiers.GetByReference(ctx, d.TenantID, d.Reference); err == nil {
		return referenceTaken(d.Reference)
	} else if !apperrors.IsNotFound(err) {
		return err
	}

	if err := saveAggregate(ctx, repos, d, true); err != nil {
		if apperrors.IsCode(err, apperrors.CodeConflict) {
			return referenceTaken(d.Reference)
		}
		return err
	}
	return nil
}

func (s *serviceImpl) announce(ctx context.Context, res *CreateResult, now time.Time) {
	d, set := res.Dossier, res.Generated
	log := newEventLog(d)
	log.add(EventDossierCreated, now, CreatedPayload{
		Service:    d.Service,
		LegalForm:  d.LegalForm,
		FiscalYear: d.FiscalYear,
		Priority:   d.Priority,
		Generated:  set.Summary(),
	})
	log.generated(set, now)
	s.publish(ctx, log.events)
	s.deps.Metrics.RecordGenerated(d.Service, set.Count())

	fields := []logging.Field{
		logging.String("dossier_id", string(d.ID)),
		logging.String("reference", d.Reference),
		logging.Stringer("service", d.Service),
		logging.Int("generated", set.Count()),
	}
	if set.FallbackService || set.FallbackLegalForm {
		s.logger.Warn("dossier created with fallback obligations", append(fields,
			logging.Bool("fallback_service", set.FallbackService),
			logging.String("legal_form", string(d.LegalForm)))...)
	} else {
		s.logger.Info("dossier created", fields...)
	}
}

func referenceTaken(ref string) error {
	return apperrors.New(apperrors.ErrCodeDossierReferenceTaken, "dossier reference already used").WithDetail(ref)
}

func (s *serviceImpl) Get(ctx context.Context, tenant common.TenantID, id common.ID) (*domain.Dossier, error) {
	if err := id.Validate(); err != nil {
		return nil, apperrors.InvalidParam(err.Error())
	}
	var d *domain.Dossier
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		d, err = loadAggregate(ctx, repos, tenant, id, false)
		return err
	})
	return d, err
}

func (s *serviceImpl) GetByReference(ctx context.Context, tenant common.TenantID, reference string) (*domain.Dossier, error) {
	var d *domain.Dossier
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		row, err := repos.Dossiers.GetByReference(ctx, tenant, reference)
		if err != nil {
			return err
		}
		d, err = loadAggregate(ctx, repos, tenant, row.ID, false)
		return err
	})
	return d, err
}

// Open returns the dossier and, the first time, moves it from new to
// in_progress.
func (s *serviceImpl) Open(ctx context.Context, tenant common.TenantID, id common.ID, actor common.UserID) (*Result, error) {
	d, err := s.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.StatusNew {
		return &Result{Dossier: d}, nil
	}
	return s.mutate(ctx, tenant, byID(id), actor, mutateOpts{}, func(m *mutation) error {
		s.addTransition(m, s.deps.Engine.OnOpened(m.d, actor, m.now))
		return nil
	})
}

func (s *serviceImpl) List(ctx context.Context, tenant common.TenantID, filter domain.ListFilter) (*ListResult, error) {
	var out *ListResult
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		rows, total, err := repos.Dossiers.List(ctx, tenant, filter)
		if err != nil {
			return err
		}
		out = &ListResult{
			Dossiers: rows,
			Total:    total,
			Page:     filter.Page.Offset()/filter.Page.Limit() + 1,
			PageSize: filter.Page.Limit(),
		}
		return nil
	})
	return out, err
}

// ─────────────────────────────────────────────────────────────────────────────
// obligations
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) SetEntryDone(ctx context.Context, tenant common.TenantID, entryID common.ID, done bool, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byChild(tenant, domain.ChildEntry, entryID), actor, mutateOpts{}, func(m *mutation) error {
		entry := m.d.FindEntry(entryID)
		if entry == nil {
			return apperrors.New(apperrors.ErrCodeEntryNotFound, "ledger entry not found").WithDetail(string(entryID))
		}
		if !entry.SetDone(done, actor, m.now) {
			return nil
		}
		label := string(entry.Journal)
		if e := m.d.FindEcheance(entry.EcheanceID); e != nil {
			label = fmt.Sprintf("%s %s", entry.Journal, e.PeriodLabel)
		}
		m.history(domain.ActionEntryUpdated, fmt.Sprintf("%t", !done), fmt.Sprintf("%t", done), label)
		m.activity, m.obligationsChanged = true, true
		return nil
	})
}

// SetEcheanceDone completes or reopens an échéance without ledger entries.
// Échéances with entries or a declaration follow those instead.
func (s *serviceImpl) SetEcheanceDone(ctx context.Context, tenant common.TenantID, echeanceID common.ID, done bool, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byChild(tenant, domain.ChildEcheance, echeanceID), actor, mutateOpts{}, func(m *mutation) error {
		e := m.d.FindEcheance(echeanceID)
		if e == nil {
			return apperrors.New(apperrors.ErrCodeEcheanceNotFound, "echeance not found").WithDetail(string(echeanceID))
		}
		if e.DeclarationID != nil {
			return apperrors.InvalidState("echeance follows its declaration").WithDetail(e.PeriodLabel)
		}
		if len(m.d.EntriesOf(e.ID)) > 0 {
			return apperrors.InvalidState("echeance follows its ledger entries").WithDetail(e.PeriodLabel)
		}
		old := e.Status
		var moved bool
		if done {
			moved = e.MarkDone(m.now)
		} else {
			moved = e.Reopen(m.today, m.now)
		}
		if !moved {
			return nil
		}
		m.history(domain.ActionEcheanceUpdated, string(old), string(e.Status), e.PeriodLabel)
		m.activity, m.obligationsChanged = true, true
		return nil
	})
}

func (s *serviceImpl) SetDeclarationStatus(ctx context.Context, tenant common.TenantID, declarationID common.ID, status domain.DeclarationStatus, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byChild(tenant, domain.ChildDeclaration, declarationID), actor, mutateOpts{}, func(m *mutation) error {
		decl := m.d.FindDeclaration(declarationID)
		if decl == nil {
			return apperrors.New(apperrors.ErrCodeDeclarationNotFound, "declaration not found").WithDetail(string(declarationID))
		}
		old := decl.Status
		if err := decl.TransitionTo(status, m.now); err != nil {
			return err
		}
		if old == decl.Status {
			return nil
		}
		m.history(domain.ActionDeclarationUpdated, string(old), string(decl.Status), decl.Description)
		m.activity, m.obligationsChanged = true, true
		return nil
	})
}

func (s *serviceImpl) FileDeclaration(ctx context.Context, tenant common.TenantID, declarationID common.ID, in domain.FilingInput, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byChild(tenant, domain.ChildDeclaration, declarationID), actor, mutateOpts{}, func(m *mutation) error {
		decl := m.d.FindDeclaration(declarationID)
		if decl == nil {
			return apperrors.New(apperrors.ErrCodeDeclarationNotFound, "declaration not found").WithDetail(string(declarationID))
		}
		old := decl.Status
		if err := decl.File(in, m.now); err != nil {
			return err
		}
		m.history(domain.ActionDeclarationUpdated, string(old), string(decl.Status),
			fmt.Sprintf("%s filed as %s", decl.Description, decl.FilingReference))
		m.activity, m.obligationsChanged = true, true
		return nil
	})
}

// CreateCorrective adds an amended filing of a filed declaration with its
// own échéance.  A declaration is corrected once; later amendments correct
// the corrective.
func (s *serviceImpl) CreateCorrective(ctx context.Context, tenant common.TenantID, originID common.ID, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byChild(tenant, domain.ChildDeclaration, originID), actor, mutateOpts{}, func(m *mutation) error {
		origin := m.d.FindDeclaration(originID)
		if origin == nil {
			return apperrors.New(apperrors.ErrCodeDeclarationNotFound, "declaration not found").WithDetail(string(originID))
		}
		for _, decl := range m.d.Declarations {
			if decl.OriginID != nil && *decl.OriginID == origin.ID {
				return apperrors.Conflict("declaration already has a corrective").WithDetail(string(decl.ID))
			}
		}
		corrective, err := domain.NewCorrective(origin, m.now)
		if err != nil {
			return err
		}
		m.d.Declarations = append(m.d.Declarations, corrective)
		set := s.deps.Generator.DeriveEcheances(m.d, m.now)
		set.ApplyTo(m.d)
		m.res.Generated = set
		m.history(domain.ActionDeclarationUpdated, string(origin.ID), string(corrective.ID), corrective.Description)
		m.activity, m.obligationsChanged = true, true
		return nil
	})
}

func (s *serviceImpl) SetDocumentProvided(ctx context.Context, tenant common.TenantID, documentID common.ID, provided bool, actor common.UserID) (*Result, error) {
	return s.mutateDocument(ctx, tenant, documentID, actor, func(m *mutation, doc *domain.RequiredDocument) bool {
		if doc.Provided == provided {
			return false
		}
		doc.Provided = provided
		doc.ProvidedAt = nil
		if provided {
			doc.ProvidedAt = &m.now
		}
		m.history(domain.ActionDocumentUpdated, fmt.Sprintf("provided=%t", !provided), fmt.Sprintf("provided=%t", provided), string(doc.Category))
		return true
	})
}

func (s *serviceImpl) SetDocumentApplicable(ctx context.Context, tenant common.TenantID, documentID common.ID, applicable bool, actor common.UserID) (*Result, error) {
	return s.mutateDocument(ctx, tenant, documentID, actor, func(m *mutation, doc *domain.RequiredDocument) bool {
		if doc.Applicable == applicable {
			return false
		}
		doc.Applicable = applicable
		m.history(domain.ActionDocumentUpdated, fmt.Sprintf("applicable=%t", !applicable), fmt.Sprintf("applicable=%t", applicable), string(doc.Category))
		return true
	})
}

// mutateDocument applies change and then keeps the document_missing alert
// in line: raised when the document became missing, resolved when nothing
// open is missing any more.
func (s *serviceImpl) mutateDocument(ctx context.Context, tenant common.TenantID, documentID common.ID, actor common.UserID, change func(m *mutation, doc *domain.RequiredDocument) bool) (*Result, error) {
	return s.mutate(ctx, tenant, byChild(tenant, domain.ChildDocument, documentID), actor, mutateOpts{}, func(m *mutation) error {
		doc := m.d.FindDocument(documentID)
		if doc == nil {
			return apperrors.New(apperrors.ErrCodeDocumentNotFound, "required document not found").WithDetail(string(documentID))
		}
		if !change(m, doc) {
			return nil
		}
		m.activity = true

		e := m.d.FindEcheance(doc.EcheanceID)
		if doc.IsMissing() && e != nil && e.IsOpen() {
			subject := e.ID
			s.raise(m, alerting.Candidate{
				Kind:      domain.AlertDocumentMissing,
				Severity:  domain.SeverityWarning,
				Message:   fmt.Sprintf("%s missing for %s", doc.Category, e.PeriodLabel),
				SubjectID: &subject,
			})
			return nil
		}
		if !m.d.HasMissingDocuments() {
			for _, a := range m.d.ActiveAlerts() {
				if a.Kind != domain.AlertDocumentMissing {
					continue
				}
				if err := a.Resolve(actor, "documents received", m.now); err == nil {
					m.res.AlertsResolved = append(m.res.AlertsResolved, a)
					m.log.alertResolved(a)
				}
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// manual lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) ChangeStatus(ctx context.Context, tenant common.TenantID, id common.ID, status domain.Status, comment string, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byID(id), actor, mutateOpts{allowArchived: true}, func(m *mutation) error {
		t, err := s.deps.Engine.SetStatus(m.d, status, actor, comment, m.now)
		if err != nil {
			return err
		}
		s.addTransition(m, t)
		return nil
	})
}

func (s *serviceImpl) Complete(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byID(id), actor, mutateOpts{allowArchived: true}, func(m *mutation) error {
		t, err := s.deps.Engine.MarkDone(m.d, actor, comment, m.now)
		if err != nil {
			return err
		}
		s.addTransition(m, t)
		return nil
	})
}

func (s *serviceImpl) Reopen(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byID(id), actor, mutateOpts{allowArchived: true}, func(m *mutation) error {
		t, err := s.deps.Engine.Reopen(m.d, actor, comment, m.now)
		if err != nil {
			return err
		}
		s.addTransition(m, t)
		return nil
	})
}

func (s *serviceImpl) Archive(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byID(id), actor, mutateOpts{allowArchived: true}, func(m *mutation) error {
		t, err := s.deps.Engine.Archive(m.d, actor, comment, m.now)
		if err != nil {
			return err
		}
		s.addTransition(m, t)
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// generation and alerts
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Regenerate(ctx context.Context, tenant common.TenantID, id common.ID, referenceYear int, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byID(id), actor, mutateOpts{}, func(m *mutation) error {
		set, err := s.deps.Generator.Generate(m.d, referenceYear, m.now)
		if err != nil {
			return err
		}
		s.applyGenerated(m, set, fmt.Sprintf("%d", referenceYear))
		return nil
	})
}

func (s *serviceImpl) GenerateForPeriod(ctx context.Context, tenant common.TenantID, id common.ID, label string, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byID(id), actor, mutateOpts{}, func(m *mutation) error {
		set, err := s.deps.Generator.GenerateForPeriod(m.d, label, m.now)
		if err != nil {
			s.logger.Warn("period label rejected",
				logging.String("dossier_id", string(m.d.ID)),
				logging.String("label", label))
			return err
		}
		s.applyGenerated(m, set, label)
		return nil
	})
}

func (s *serviceImpl) applyGenerated(m *mutation, set *obligation.GeneratedSet, scope string) {
	m.res.Generated = set
	if set.Empty() {
		return
	}
	set.ApplyTo(m.d)
	m.history(domain.ActionObligationsGenerated, "", scope, set.Summary())
	m.log.generated(set, m.now)
	m.activity, m.obligationsChanged = true, true
	s.deps.Metrics.RecordGenerated(m.d.Service, set.Count())
}

func (s *serviceImpl) ResolveAlert(ctx context.Context, tenant common.TenantID, alertID common.ID, note string, actor common.UserID) (*Result, error) {
	return s.mutate(ctx, tenant, byChild(tenant, domain.ChildAlert, alertID), actor, mutateOpts{allowArchived: true}, func(m *mutation) error {
		a := m.d.FindAlert(alertID)
		if a == nil {
			return apperrors.New(apperrors.ErrCodeAlertNotFound, "alert not found").WithDetail(string(alertID))
		}
		if err := a.Resolve(actor, note, m.now); err != nil {
			return err
		}
		m.history(domain.ActionAlertResolved, string(a.Kind), "resolved", note)
		m.res.AlertsResolved = append(m.res.AlertsResolved, a)
		m.log.alertResolved(a)
		m.activity = true
		return nil
	})
}
