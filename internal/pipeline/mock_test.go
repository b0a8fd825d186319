package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-engine/internal/model"
)

// --- Invoker Mock ---

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Classify(ctx context.Context, prompt string) (*model.ClassificationResult, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ClassificationResult), args.Error(1)
}

func (m *mockInvoker) GenerateDossier(ctx context.Context, prompt string) (*model.Dossier, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dossier), args.Error(1)
}

func (m *mockInvoker) ModelID() string { return "mock/classify" }

// funcInvoker lets a test control timing of model calls.
type funcInvoker struct {
	classify func(ctx context.Context, prompt string) (*model.ClassificationResult, error)
	dossier  func(ctx context.Context, prompt string) (*model.Dossier, error)
}

func (f *funcInvoker) Classify(ctx context.Context, prompt string) (*model.ClassificationResult, error) {
	return f.classify(ctx, prompt)
}

func (f *funcInvoker) GenerateDossier(ctx context.Context, prompt string) (*model.Dossier, error) {
	return f.dossier(ctx, prompt)
}

func (f *funcInvoker) ModelID() string { return "func/classify" }

// --- Repository Mock ---

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) UpsertCompany(ctx context.Context, name, website, industry string) (*model.Company, error) {
	args := m.Called(ctx, name, website, industry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockRepo) CreateSignal(ctx context.Context, s *model.Signal) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockRepo) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signal), args.Error(1)
}

func (m *mockRepo) CreateLead(ctx context.Context, l *model.Lead) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockRepo) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockRepo) UpdateLeadScore(ctx context.Context, leadID string, cls model.ClassificationResult, b model.ScoreBreakdown) error {
	return m.Called(ctx, leadID, cls, b).Error(0)
}

func (m *mockRepo) UpdateLeadDossier(ctx context.Context, leadID string, d model.Dossier) error {
	return m.Called(ctx, leadID, d).Error(0)
}

func (m *mockRepo) ListFundingEvents(ctx context.Context, companyID, companyName string, since time.Time) ([]model.FundingEvent, error) {
	args := m.Called(ctx, companyID, companyName, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FundingEvent), args.Error(1)
}
