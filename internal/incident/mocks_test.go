package incident_test

import (
	"context"
	"time"

	"incidenbot/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) InsertIncident(ctx context.Context, incident *models.Incident) (string, error) {
	args := m.Called(ctx, incident)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) UpdateIncidentStatus(ctx context.Context, id string, status models.Status, now time.Time) error {
	args := m.Called(ctx, id, status, now)
	return args.Error(0)
}

func (m *MockStorage) ListIncidents(ctx context.Context) ([]models.Incident, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Incident), args.Error(1)
}

func (m *MockStorage) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.Incident), args.Error(1)
}

func (m *MockStorage) PublishChange(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) CurrentVersion(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) SubscribeChanges(ctx context.Context) *redis.PubSub {
	args := m.Called(ctx)
	return args.Get(0).(*redis.PubSub)
}

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Analyze(ctx context.Context, contextText string, lang string) (models.IncidentAnalysis, error) {
	args := m.Called(ctx, contextText, lang)
	return args.Get(0).(models.IncidentAnalysis), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant) {
	m.Called(analysis, originalMessage, tenant)
}
