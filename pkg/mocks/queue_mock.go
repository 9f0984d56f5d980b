package mocks

import (
	"context"

	"github.com/dukex/herald/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of queue.Client interface.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, name string, job models.Job, groupID string) error {
	args := m.Called(ctx, name, job, groupID)

	return args.Error(0)
}

func (m *MockQueue) Close() error {
	args := m.Called()

	return args.Error(0)
}
