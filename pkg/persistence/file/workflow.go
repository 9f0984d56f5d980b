package file

import (
	"context"
	"time"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository stores one file per workflow under workflows/<environment>/<trigger identifier>.json.
type WorkflowRepository struct {
	store *store
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{store: &store{root: root}}
}

func (wr *WorkflowRepository) WorkflowByTriggerIdentifier(_ context.Context, environmentID, identifier string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := wr.store.read(wr.store.path("workflows", environmentID, identifier), &workflow)
	if err != nil {
		return nil, persistence.NewRecordError("WorkflowByTriggerIdentifier", "workflow", identifier, err)
	}

	if !found {
		return nil, nil
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) WorkflowsByTriggerIdentifiers(ctx context.Context, environmentID string, identifiers []string) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0, len(identifiers))

	for _, identifier := range identifiers {
		workflow, err := wr.WorkflowByTriggerIdentifier(ctx, environmentID, identifier)
		if err != nil {
			return nil, err
		}

		if workflow != nil {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

func (wr *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if workflow.EnvironmentID == "" || workflow.TriggerIdentifier == "" {
		return persistence.NewRecordError("SaveWorkflow", "workflow", workflow.TriggerIdentifier, persistence.ErrInvalidRecord)
	}

	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	return wr.store.write(wr.store.path("workflows", workflow.EnvironmentID, workflow.TriggerIdentifier), workflow)
}
