// Package workflow resolves trigger identifiers to workflow definitions.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/herald/pkg/bridge"
	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
)

// Discoverer lists the workflows served by a bridge.
type Discoverer interface {
	Discover(ctx context.Context, bridgeURL, environmentID string) (*bridge.DiscoverResponse, error)
}

// Query selects the workflow a single trigger refers to.
type Query struct {
	EnvironmentID string
	Identifier    string
	BridgeURL     string
	// Prefetched, when set, answers store lookups without a round trip.
	Prefetched *Prefetched
}

// Resolver finds the workflow definition for a trigger, either in the
// workflow store or by asking a bridge.
type Resolver struct {
	workflows  persistence.WorkflowRepository
	discoverer Discoverer
	logger     *slog.Logger
}

func NewResolver(workflows persistence.WorkflowRepository, discoverer Discoverer, logger *slog.Logger) *Resolver {
	return &Resolver{
		workflows:  workflows,
		discoverer: discoverer,
		logger:     logger.With("module", "workflow_resolver"),
	}
}

// Resolve returns the workflow matching query, or nil when none exists. When a
// bridge URL is given the store is not consulted. Bridge failures resolve to nil.
func (r *Resolver) Resolve(ctx context.Context, query Query) (*models.WorkflowDefinition, error) {
	if query.BridgeURL != "" {
		return r.discover(ctx, query), nil
	}

	if workflow, ok := query.Prefetched.Lookup(query.EnvironmentID, query.Identifier); ok {
		if workflow == nil {
			return nil, nil
		}

		return models.PersistedDefinition(workflow), nil
	}

	workflow, err := r.workflows.WorkflowByTriggerIdentifier(ctx, query.EnvironmentID, query.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find workflow %q: %w", query.Identifier, err)
	}

	if workflow == nil {
		return nil, nil
	}

	return models.PersistedDefinition(workflow), nil
}

// ResolveMany loads every persisted workflow named by identifiers with a
// single store query.
func (r *Resolver) ResolveMany(ctx context.Context, environmentID string, identifiers []string) (*Prefetched, error) {
	prefetched := &Prefetched{
		environmentID: environmentID,
		requested:     make(map[string]struct{}, len(identifiers)),
		workflows:     make(map[string]*models.Workflow, len(identifiers)),
	}

	unique := make([]string, 0, len(identifiers))

	for _, identifier := range identifiers {
		if identifier == "" {
			continue
		}

		if _, seen := prefetched.requested[identifier]; seen {
			continue
		}

		prefetched.requested[identifier] = struct{}{}
		unique = append(unique, identifier)
	}

	if len(unique) == 0 {
		return prefetched, nil
	}

	workflows, err := r.workflows.WorkflowsByTriggerIdentifiers(ctx, environmentID, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to prefetch workflows: %w", err)
	}

	for _, workflow := range workflows {
		if workflow == nil {
			continue
		}

		prefetched.workflows[workflow.TriggerIdentifier] = workflow
	}

	return prefetched, nil
}

func (r *Resolver) discover(ctx context.Context, query Query) *models.WorkflowDefinition {
	if r.discoverer == nil {
		r.logger.WarnContext(ctx, "Bridge url given but no bridge client configured", "identifier", query.Identifier)

		return nil
	}

	response, err := r.discoverer.Discover(ctx, query.BridgeURL, query.EnvironmentID)
	if err != nil {
		r.logger.WarnContext(ctx, "Bridge discovery failed",
			"identifier", query.Identifier,
			"bridge_url", query.BridgeURL,
			"error", err)

		return nil
	}

	if response == nil {
		return nil
	}

	for i := range response.Workflows {
		if response.Workflows[i].WorkflowID == query.Identifier {
			discovered := response.Workflows[i]

			return models.DiscoveredDefinition(&discovered)
		}
	}

	return nil
}

// Prefetched is the result of a batched workflow lookup for one environment.
type Prefetched struct {
	environmentID string
	requested     map[string]struct{}
	workflows     map[string]*models.Workflow
}

// Lookup reports the prefetched workflow for identifier. The second value is
// false when the identifier was not part of the batch, in which case the
// caller has to query the store itself.
func (p *Prefetched) Lookup(environmentID, identifier string) (*models.Workflow, bool) {
	if p == nil || p.environmentID != environmentID {
		return nil, false
	}

	if _, ok := p.requested[identifier]; !ok {
		return nil, false
	}

	return p.workflows[identifier], true
}
