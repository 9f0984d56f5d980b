package mocks

import (
	"context"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

var _ persistence.Persistence = (*MockPersistence)(nil)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{}
}

func (m *MockPersistence) WorkflowByTriggerIdentifier(ctx context.Context, environmentID, identifier string) (*models.Workflow, error) {
	args := m.Called(ctx, environmentID, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockPersistence) WorkflowsByTriggerIdentifiers(ctx context.Context, environmentID string, identifiers []string) ([]*models.Workflow, error) {
	args := m.Called(ctx, environmentID, identifiers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockPersistence) TenantByIdentifier(ctx context.Context, environmentID, identifier string) (*models.Tenant, error) {
	args := m.Called(ctx, environmentID, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockPersistence) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)

	return args.Error(0)
}

func (m *MockPersistence) WorkflowOverride(ctx context.Context, environmentID, workflowID, tenantIdentifier string) (*models.WorkflowOverride, error) {
	args := m.Called(ctx, environmentID, workflowID, tenantIdentifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowOverride), args.Error(1)
}

func (m *MockPersistence) SaveWorkflowOverride(ctx context.Context, override *models.WorkflowOverride) error {
	args := m.Called(ctx, override)

	return args.Error(0)
}

func (m *MockPersistence) CreateRequestTrace(ctx context.Context, records []models.TraceRecord) error {
	args := m.Called(ctx, records)

	return args.Error(0)
}

func (m *MockPersistence) RequestTraces(ctx context.Context, requestID string) ([]models.TraceRecord, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.TraceRecord), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
