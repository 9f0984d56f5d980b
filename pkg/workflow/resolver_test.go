package workflow_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/herald/pkg/bridge"
	"github.com/dukex/herald/pkg/mocks"
	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolver_Resolve_FromStore(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockPersistence()
	stored := &models.Workflow{ID: "wf-1", TriggerIdentifier: "welcome", Active: true}
	store.On("WorkflowByTriggerIdentifier", mock.Anything, "env-1", "welcome").Return(stored, nil)

	resolver := workflow.NewResolver(store, nil, discardLogger())

	definition, err := resolver.Resolve(t.Context(), workflow.Query{EnvironmentID: "env-1", Identifier: "welcome"})
	require.NoError(t, err)
	require.NotNil(t, definition)
	assert.False(t, definition.IsDiscovered())
	assert.Same(t, stored, definition.Persisted())
}

func TestResolver_Resolve_NotFound(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockPersistence()
	store.On("WorkflowByTriggerIdentifier", mock.Anything, "env-1", "missing").Return(nil, nil)

	resolver := workflow.NewResolver(store, nil, discardLogger())

	definition, err := resolver.Resolve(t.Context(), workflow.Query{EnvironmentID: "env-1", Identifier: "missing"})
	require.NoError(t, err)
	assert.Nil(t, definition)
}

func TestResolver_Resolve_StoreError(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockPersistence()
	store.On("WorkflowByTriggerIdentifier", mock.Anything, "env-1", "welcome").Return(nil, errors.New("connection reset"))

	resolver := workflow.NewResolver(store, nil, discardLogger())

	_, err := resolver.Resolve(t.Context(), workflow.Query{EnvironmentID: "env-1", Identifier: "welcome"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestResolver_Resolve_Bridge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response *bridge.DiscoverResponse
		err      error
		wantID   string
	}{
		{
			name: "matching workflow",
			response: &bridge.DiscoverResponse{Workflows: []models.DiscoveredWorkflow{
				{WorkflowID: "other"},
				{WorkflowID: "welcome", Steps: []models.DiscoveredStep{{StepID: "s1", Type: "email"}}},
			}},
			wantID: "welcome",
		},
		{
			name:     "no matching workflow",
			response: &bridge.DiscoverResponse{Workflows: []models.DiscoveredWorkflow{{WorkflowID: "other"}}},
		},
		{
			name: "discovery error",
			err:  errors.New("timeout"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := mocks.NewMockPersistence()
			discoverer := &mocks.MockDiscoverer{}
			discoverer.On("Discover", mock.Anything, "https://bridge.example.com", "env-1").Return(tt.response, tt.err)

			resolver := workflow.NewResolver(store, discoverer, discardLogger())

			definition, err := resolver.Resolve(t.Context(), workflow.Query{
				EnvironmentID: "env-1",
				Identifier:    "welcome",
				BridgeURL:     "https://bridge.example.com",
			})
			require.NoError(t, err)

			if tt.wantID == "" {
				assert.Nil(t, definition)
			} else {
				require.NotNil(t, definition)
				assert.True(t, definition.IsDiscovered())
				assert.Equal(t, tt.wantID, definition.ID())
			}

			store.AssertNotCalled(t, "WorkflowByTriggerIdentifier", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestResolver_ResolveMany(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockPersistence()
	welcome := &models.Workflow{ID: "wf-1", TriggerIdentifier: "welcome"}
	store.On("WorkflowsByTriggerIdentifiers", mock.Anything, "env-1", []string{"welcome", "missing"}).
		Return([]*models.Workflow{welcome}, nil).Once()

	resolver := workflow.NewResolver(store, nil, discardLogger())

	prefetched, err := resolver.ResolveMany(t.Context(), "env-1", []string{"welcome", "missing", "welcome", ""})
	require.NoError(t, err)

	definition, err := resolver.Resolve(t.Context(), workflow.Query{
		EnvironmentID: "env-1",
		Identifier:    "welcome",
		Prefetched:    prefetched,
	})
	require.NoError(t, err)
	require.NotNil(t, definition)
	assert.Same(t, welcome, definition.Persisted())

	definition, err = resolver.Resolve(t.Context(), workflow.Query{
		EnvironmentID: "env-1",
		Identifier:    "missing",
		Prefetched:    prefetched,
	})
	require.NoError(t, err)
	assert.Nil(t, definition)

	store.AssertNumberOfCalls(t, "WorkflowsByTriggerIdentifiers", 1)
	store.AssertNotCalled(t, "WorkflowByTriggerIdentifier", mock.Anything, mock.Anything, mock.Anything)
}

func TestPrefetched_Lookup(t *testing.T) {
	t.Parallel()

	var prefetched *workflow.Prefetched

	_, ok := prefetched.Lookup("env-1", "welcome")
	assert.False(t, ok)

	store := mocks.NewMockPersistence()
	store.On("WorkflowsByTriggerIdentifiers", mock.Anything, "env-1", []string{"welcome"}).Return([]*models.Workflow{}, nil)

	prefetched, err := workflow.NewResolver(store, nil, discardLogger()).ResolveMany(t.Context(), "env-1", []string{"welcome"})
	require.NoError(t, err)

	_, ok = prefetched.Lookup("env-2", "welcome")
	assert.False(t, ok, "other environment")

	_, ok = prefetched.Lookup("env-1", "not-requested")
	assert.False(t, ok)

	found, ok := prefetched.Lookup("env-1", "welcome")
	assert.True(t, ok)
	assert.Nil(t, found)
}
