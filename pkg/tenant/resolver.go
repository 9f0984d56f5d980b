// Package tenant resolves the tenant a trigger targets and the tenant's
// override of the workflow being triggered.
package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
	"golang.org/x/sync/errgroup"
)

// Query describes the tenant lookup for one trigger.
type Query struct {
	EnvironmentID  string
	WorkflowID     string
	WorkflowActive bool
	// SkipOverride disables the override lookup, e.g. for bridge workflows
	// that have no stored counterpart to override.
	SkipOverride bool
	Tenant       *models.TenantRef
}

// Result is the resolved tenant context of a trigger.
type Result struct {
	Tenant   *models.Tenant
	Override *models.WorkflowOverride
	// Missing is set when a tenant was referenced but does not exist.
	Missing bool
	// EffectiveActive is the override's active flag when one exists, the
	// workflow's otherwise.
	EffectiveActive bool
}

type Resolver struct {
	tenants persistence.TenantRepository
	logger  *slog.Logger
}

func NewResolver(tenants persistence.TenantRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		tenants: tenants,
		logger:  logger.With("module", "tenant_resolver"),
	}
}

// Resolve looks up the tenant and its workflow override concurrently.
func (r *Resolver) Resolve(ctx context.Context, query Query) (*Result, error) {
	if query.Tenant == nil || query.Tenant.Identifier == "" {
		return &Result{EffectiveActive: query.WorkflowActive}, nil
	}

	var (
		tenant   *models.Tenant
		override *models.WorkflowOverride
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		found, err := r.tenants.TenantByIdentifier(groupCtx, query.EnvironmentID, query.Tenant.Identifier)
		if err != nil {
			return fmt.Errorf("failed to find tenant %q: %w", query.Tenant.Identifier, err)
		}

		tenant = found

		return nil
	})

	if !query.SkipOverride {
		group.Go(func() error {
			found, err := r.tenants.WorkflowOverride(groupCtx, query.EnvironmentID, query.WorkflowID, query.Tenant.Identifier)
			if err != nil {
				return fmt.Errorf("failed to find workflow override for tenant %q: %w", query.Tenant.Identifier, err)
			}

			override = found

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if tenant == nil {
		r.logger.DebugContext(ctx, "Tenant not found",
			"environment_id", query.EnvironmentID,
			"tenant", query.Tenant.Identifier)

		return &Result{Missing: true}, nil
	}

	result := &Result{
		Tenant:          tenant,
		Override:        override,
		EffectiveActive: query.WorkflowActive,
	}

	if override != nil {
		result.EffectiveActive = override.Active
	}

	return result, nil
}
