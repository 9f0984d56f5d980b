package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
	"github.com/google/uuid"
)

// TenantRepository handles tenant and workflow override database operations.
type TenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *sql.DB, logger *slog.Logger) *TenantRepository {
	return &TenantRepository{db: db, logger: logger}
}

// TenantByIdentifier returns the tenant of an environment with the given identifier.
func (r *TenantRepository) TenantByIdentifier(ctx context.Context, environmentID, identifier string) (*models.Tenant, error) {
	query := `
		SELECT
			id
		  , environment_id
		  , identifier
		  , name
		  , data
		  , created_at
		  , updated_at
		FROM tenants
		WHERE environment_id = $1 AND identifier = $2
	`

	var (
		tenant models.Tenant
		data   []byte
	)

	err := r.db.QueryRowContext(ctx, query, environmentID, identifier).Scan(
		&tenant.ID,
		&tenant.EnvironmentID,
		&tenant.Identifier,
		&tenant.Name,
		&data,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewRecordError("TenantByIdentifier", "tenant", identifier, err)
	}

	if err := unmarshalJSON(data, &tenant.Data); err != nil {
		return nil, persistence.NewRecordError("TenantByIdentifier", "tenant", identifier, err)
	}

	return &tenant, nil
}

// SaveTenant inserts or updates a tenant, keyed by environment and identifier.
func (r *TenantRepository) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
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

	data, err := marshalJSON(tenant.Data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, environment_id, identifier, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (environment_id, identifier) DO UPDATE SET
			name = EXCLUDED.name,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.EnvironmentID,
		tenant.Identifier,
		tenant.Name,
		data,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	return nil
}

// WorkflowOverride returns the override of a workflow for a tenant.
func (r *TenantRepository) WorkflowOverride(ctx context.Context, environmentID, workflowID, tenantIdentifier string) (*models.WorkflowOverride, error) {
	query := `
		SELECT
			id
		  , environment_id
		  , workflow_id
		  , tenant_identifier
		  , active
		  , preference_settings
		  , created_at
		  , updated_at
		FROM workflow_overrides
		WHERE environment_id = $1 AND workflow_id = $2 AND tenant_identifier = $3
	`

	var (
		override    models.WorkflowOverride
		preferences []byte
	)

	err := r.db.QueryRowContext(ctx, query, environmentID, workflowID, tenantIdentifier).Scan(
		&override.ID,
		&override.EnvironmentID,
		&override.WorkflowID,
		&override.TenantIdentifier,
		&override.Active,
		&preferences,
		&override.CreatedAt,
		&override.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewRecordError("WorkflowOverride", "workflow override", workflowID+"/"+tenantIdentifier, err)
	}

	if err := unmarshalJSON(preferences, &override.PreferenceSettings); err != nil {
		return nil, persistence.NewRecordError("WorkflowOverride", "workflow override", workflowID+"/"+tenantIdentifier, err)
	}

	return &override, nil
}

// SaveWorkflowOverride inserts or updates the override of a (workflow, tenant) pair.
func (r *TenantRepository) SaveWorkflowOverride(ctx context.Context, override *models.WorkflowOverride) error {
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

	preferences, err := marshalJSON(override.PreferenceSettings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_overrides (id, environment_id, workflow_id, tenant_identifier, active,
			preference_settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (environment_id, workflow_id, tenant_identifier) DO UPDATE SET
			active = EXCLUDED.active,
			preference_settings = EXCLUDED.preference_settings,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		override.ID,
		override.EnvironmentID,
		override.WorkflowID,
		override.TenantIdentifier,
		override.Active,
		preferences,
		override.CreatedAt,
		override.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow override: %w", err)
	}

	return nil
}
