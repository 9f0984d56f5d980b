package mocks

import (
	"context"

	"github.com/dukex/herald/pkg/featureflags"
	"github.com/stretchr/testify/mock"
)

// MockFlags is a mock feature flag service.
type MockFlags struct {
	mock.Mock
}

func (m *MockFlags) IsEnabled(ctx context.Context, key string, scope featureflags.Scope, defaultValue bool) bool {
	args := m.Called(ctx, key, scope, defaultValue)

	return args.Bool(0)
}
