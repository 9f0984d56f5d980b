package file_test

import (
	"sync"
	"testing"
	"time"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
	"github.com/dukex/herald/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence("file://" + t.TempDir())
	require.NoError(t, store.HealthCheck(t.Context()))

	missing := file.NewPersistence("/definitely/not/here")
	err := missing.HealthCheck(t.Context())
	require.ErrorIs(t, err, persistence.ErrUnhealthy)
}

func TestWorkflowRepository(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	workflow := &models.Workflow{
		EnvironmentID:     "env-1",
		OrganizationID:    "org-1",
		TriggerIdentifier: "welcome/email",
		Active:            true,
		Steps:             []*models.WorkflowStep{{ID: "s1", Type: "email", Active: true}},
	}
	require.NoError(t, store.SaveWorkflow(ctx, workflow))
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	found, err := store.WorkflowByTriggerIdentifier(ctx, "env-1", "welcome/email")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, workflow.ID, found.ID)
	assert.True(t, found.Steps[0].Active)

	missing, err := store.WorkflowByTriggerIdentifier(ctx, "env-2", "welcome/email")
	require.NoError(t, err)
	assert.Nil(t, missing)

	many, err := store.WorkflowsByTriggerIdentifiers(ctx, "env-1", []string{"welcome/email", "unknown"})
	require.NoError(t, err)
	require.Len(t, many, 1)
	assert.Equal(t, workflow.ID, many[0].ID)

	err = store.SaveWorkflow(ctx, &models.Workflow{TriggerIdentifier: "no-env"})
	assert.True(t, persistence.IsInvalidRecord(err))
}

func TestTenantRepository(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, store.SaveTenant(ctx, &models.Tenant{EnvironmentID: "env-1", Identifier: "acme", Name: "Acme"}))

	tenant, err := store.TenantByIdentifier(ctx, "env-1", "acme")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "Acme", tenant.Name)

	missing, err := store.TenantByIdentifier(ctx, "env-1", "globex")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.SaveWorkflowOverride(ctx, &models.WorkflowOverride{
		EnvironmentID:    "env-1",
		WorkflowID:       "wf-1",
		TenantIdentifier: "acme",
		Active:           false,
	}))

	override, err := store.WorkflowOverride(ctx, "env-1", "wf-1", "acme")
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.False(t, override.Active)

	none, err := store.WorkflowOverride(ctx, "env-1", "wf-2", "acme")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTraceRepository(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	empty, err := store.RequestTraces(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, store.CreateRequestTrace(ctx, []models.TraceRecord{{
				ID:        "id",
				RequestID: "req-1",
				EventType: models.TraceRequestQueued,
				Status:    models.TraceStatusSuccess,
				CreatedAt: time.Now().UTC(),
			}}))
		}()
	}

	wg.Wait()

	require.NoError(t, store.CreateRequestTrace(ctx, []models.TraceRecord{{ID: "other", RequestID: "req-2"}}))

	records, err := store.RequestTraces(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, records, 10)
}
