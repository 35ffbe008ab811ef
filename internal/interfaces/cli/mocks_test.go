package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/config"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

type MockService struct {
	mock.Mock
}

var _ app.Service = (*MockService)(nil)

func (m *MockService) result(args mock.Arguments) (*app.Result, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.Result), args.Error(1)
}

func (m *MockService) dossier(args mock.Arguments) (*domain.Dossier, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dossier), args.Error(1)
}

func (m *MockService) Create(ctx context.Context, req *app.CreateRequest) (*app.CreateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.CreateResult), args.Error(1)
}

func (m *MockService) Get(ctx context.Context, tenant common.TenantID, id common.ID) (*domain.Dossier, error) {
	return m.dossier(m.Called(ctx, tenant, id))
}

func (m *MockService) GetByReference(ctx context.Context, tenant common.TenantID, reference string) (*domain.Dossier, error) {
	return m.dossier(m.Called(ctx, tenant, reference))
}

func (m *MockService) Open(ctx context.Context, tenant common.TenantID, id common.ID, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, actor))
}

func (m *MockService) List(ctx context.Context, tenant common.TenantID, filter domain.ListFilter) (*app.ListResult, error) {
	args := m.Called(ctx, tenant, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.ListResult), args.Error(1)
}

func (m *MockService) SetEntryDone(ctx context.Context, tenant common.TenantID, id common.ID, done bool, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, done, actor))
}

func (m *MockService) SetEcheanceDone(ctx context.Context, tenant common.TenantID, id common.ID, done bool, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, done, actor))
}

func (m *MockService) SetDeclarationStatus(ctx context.Context, tenant common.TenantID, id common.ID, status domain.DeclarationStatus, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, status, actor))
}

func (m *MockService) FileDeclaration(ctx context.Context, tenant common.TenantID, id common.ID, in domain.FilingInput, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, in, actor))
}

func (m *MockService) CreateCorrective(ctx context.Context, tenant common.TenantID, id common.ID, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, actor))
}

func (m *MockService) SetDocumentProvided(ctx context.Context, tenant common.TenantID, id common.ID, provided bool, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, provided, actor))
}

func (m *MockService) SetDocumentApplicable(ctx context.Context, tenant common.TenantID, id common.ID, applicable bool, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, applicable, actor))
}

func (m *MockService) ChangeStatus(ctx context.Context, tenant common.TenantID, id common.ID, status domain.Status, comment string, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, status, comment, actor))
}

func (m *MockService) Complete(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, comment, actor))
}

func (m *MockService) Reopen(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, comment, actor))
}

func (m *MockService) Archive(ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, comment, actor))
}

func (m *MockService) Regenerate(ctx context.Context, tenant common.TenantID, id common.ID, year int, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, year, actor))
}

func (m *MockService) GenerateForPeriod(ctx context.Context, tenant common.TenantID, id common.ID, label string, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, label, actor))
}

func (m *MockService) ResolveAlert(ctx context.Context, tenant common.TenantID, id common.ID, note string, actor common.UserID) (*app.Result, error) {
	return m.result(m.Called(ctx, tenant, id, note, actor))
}

type scanFunc func(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error)

func (f scanFunc) Run(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error) {
	return f(ctx, tenant)
}

func (f scanFunc) Last(ctx context.Context, tenant common.TenantID) (*app.ScanReport, error) {
	return f(ctx, tenant)
}

type fakeBackend struct {
	svc     *MockService
	scanner scanFunc
	reports scanFunc
	opened  int
	closed  int
}

func (b *fakeBackend) Service() app.Service  { return b.svc }
func (b *fakeBackend) Scanner() ScanRunner   { return b.scanner }
func (b *fakeBackend) Reports() ReportReader { return b.reports }
func (b *fakeBackend) Close()                { b.closed++ }

type fakeMigrator struct {
	calls   []string
	version uint
	dirty   bool
	err     error
}

func (m *fakeMigrator) Up() error {
	m.calls = append(m.calls, "up")
	return m.err
}

func (m *fakeMigrator) Rollback(steps int) error {
	m.calls = append(m.calls, "down")
	m.version -= uint(steps)
	return m.err
}

func (m *fakeMigrator) Status() (uint, bool, error) { return m.version, m.dirty, nil }

func (m *fakeMigrator) Force(version int) error {
	m.calls = append(m.calls, "force")
	m.version = uint(version)
	m.dirty = false
	return m.err
}

type fakeStream struct {
	topic     string
	envelopes []*kafka.EventEnvelope
	opts      kafka.ConsumerOptions
	closed    bool
}

func (s *fakeStream) Run(ctx context.Context, handle kafka.EnvelopeHandler) error {
	for _, env := range s.envelopes {
		if ctx.Err() != nil {
			return nil
		}
		if err := handle(ctx, s.topic, env); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeTopics struct {
	created     []string
	replication int
}

func (a *fakeTopics) EnsureTopics(_ context.Context, replication int) ([]string, error) {
	a.replication = replication
	return a.created, nil
}

func (a *fakeTopics) Close() error { return nil }

type harness struct {
	cfg      *config.Config
	backend  *fakeBackend
	migrator *fakeMigrator
	stream   *fakeStream
	topics   *fakeTopics
}

func newHarness() *harness {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &harness{
		cfg:      cfg,
		backend:  &fakeBackend{svc: new(MockService)},
		migrator: &fakeMigrator{version: 3},
		stream:   &fakeStream{topic: kafka.TopicLifecycle},
		topics:   &fakeTopics{},
	}
}

func (h *harness) factory() Factory {
	return Factory{
		LoadConfig: func(string) (*config.Config, error) { return h.cfg, nil },
		Logger:     func(string) (logging.Logger, error) { return logging.NewNopLogger(), nil },
		Backend: func(context.Context, *config.Config, logging.Logger) (Backend, error) {
			h.backend.opened++
			return h.backend, nil
		},
		Migrator: func(*config.Config) Migrator { return h.migrator },
		Events: func(_ *config.Config, opts kafka.ConsumerOptions, _ logging.Logger) (EventStream, error) {
			h.stream.opts = opts
			return h.stream, nil
		},
		Topics: func(*config.Config, logging.Logger) (TopicAdmin, error) { return h.topics, nil },
	}
}

// run executes dossierctl with args and returns stdout and stderr.
func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand(h.factory())
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
