// Package persistence provides data storage abstraction layer for workflows, tenants and request traces.
package persistence

import (
	"context"

	"github.com/dukex/herald/pkg/models"
)

// WorkflowRepository reads and writes persisted workflows. Lookups return
// nil, nil when nothing matches.
type WorkflowRepository interface {
	WorkflowByTriggerIdentifier(ctx context.Context, environmentID, identifier string) (*models.Workflow, error)
	WorkflowsByTriggerIdentifiers(ctx context.Context, environmentID string, identifiers []string) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
}

// TenantRepository reads and writes tenants and their per-workflow overrides.
type TenantRepository interface {
	TenantByIdentifier(ctx context.Context, environmentID, identifier string) (*models.Tenant, error)
	SaveTenant(ctx context.Context, tenant *models.Tenant) error

	WorkflowOverride(ctx context.Context, environmentID, workflowID, tenantIdentifier string) (*models.WorkflowOverride, error)
	SaveWorkflowOverride(ctx context.Context, override *models.WorkflowOverride) error
}

// TraceRepository appends request trace records.
type TraceRepository interface {
	CreateRequestTrace(ctx context.Context, records []models.TraceRecord) error
	RequestTraces(ctx context.Context, requestID string) ([]models.TraceRecord, error)
}

type Persistence interface {
	WorkflowRepository
	TenantRepository
	TraceRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
