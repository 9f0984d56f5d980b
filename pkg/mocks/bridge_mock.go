package mocks

import (
	"context"

	"github.com/dukex/herald/pkg/bridge"
	"github.com/stretchr/testify/mock"
)

// MockDiscoverer is a mock bridge discovery client.
type MockDiscoverer struct {
	mock.Mock
}

func (m *MockDiscoverer) Discover(ctx context.Context, bridgeURL, environmentID string) (*bridge.DiscoverResponse, error) {
	args := m.Called(ctx, bridgeURL, environmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*bridge.DiscoverResponse), args.Error(1)
}
