package mocks

import (
	"context"

	"github.com/dukex/herald/pkg/storage"
	"github.com/stretchr/testify/mock"
)

// MockUploader is a mock attachment uploader.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, objects []storage.Object) error {
	args := m.Called(ctx, objects)

	return args.Error(0)
}
