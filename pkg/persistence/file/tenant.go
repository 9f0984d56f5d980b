package file

import (
	"context"
	"time"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
	"github.com/google/uuid"
)

// TenantRepository stores tenants under tenants/<environment>/<identifier>.json and
// overrides under overrides/<environment>/<workflow>/<tenant>.json.
type TenantRepository struct {
	store *store
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(root string) *TenantRepository {
	return &TenantRepository{store: &store{root: root}}
}

func (tr *TenantRepository) TenantByIdentifier(_ context.Context, environmentID, identifier string) (*models.Tenant, error) {
	var tenant models.Tenant

	found, err := tr.store.read(tr.store.path("tenants", environmentID, identifier), &tenant)
	if err != nil {
		return nil, persistence.NewRecordError("TenantByIdentifier", "tenant", identifier, err)
	}

	if !found {
		return nil, nil
	}

	return &tenant, nil
}

func (tr *TenantRepository) SaveTenant(_ context.Context, tenant *models.Tenant) error {
	if tenant.EnvironmentID == "" || tenant.Identifier == "" {
		return persistence.NewRecordError("SaveTenant", "tenant", tenant.Identifier, persistence.ErrInvalidRecord)
	}

	now := time.Now().UTC()

	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}

	tenant.UpdatedAt = now

	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}

	return tr.store.write(tr.store.path("tenants", tenant.EnvironmentID, tenant.Identifier), tenant)
}

func (tr *TenantRepository) WorkflowOverride(_ context.Context, environmentID, workflowID, tenantIdentifier string) (*models.WorkflowOverride, error) {
	var override models.WorkflowOverride

	found, err := tr.store.read(tr.store.path("overrides", environmentID, workflowID, tenantIdentifier), &override)
	if err != nil {
		return nil, persistence.NewRecordError("WorkflowOverride", "workflow override", workflowID+"/"+tenantIdentifier, err)
	}

	if !found {
		return nil, nil
	}

	return &override, nil
}

func (tr *TenantRepository) SaveWorkflowOverride(_ context.Context, override *models.WorkflowOverride) error {
	if override.EnvironmentID == "" || override.WorkflowID == "" || override.TenantIdentifier == "" {
		return persistence.NewRecordError("SaveWorkflowOverride", "workflow override", override.WorkflowID, persistence.ErrInvalidRecord)
	}

	now := time.Now().UTC()

	if override.CreatedAt.IsZero() {
		override.CreatedAt = now
	}

	override.UpdatedAt = now

	if override.ID == "" {
		override.ID = uuid.NewString()
	}

	path := tr.store.path("overrides", override.EnvironmentID, override.WorkflowID, override.TenantIdentifier)

	return tr.store.write(path, override)
}
