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
	"github.com/lib/pq"
)

const workflowColumns = `
			id
		  , environment_id
		  , organization_id
		  , trigger_identifier
		  , name
		  , active
		  , steps
		  , payload_schema
		  , validate_payload
		  , payload_defaults
		  , reserved_variables
		  , created_at
		  , updated_at`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// WorkflowByTriggerIdentifier returns the workflow of an environment with the given trigger identifier.
func (r *WorkflowRepository) WorkflowByTriggerIdentifier(ctx context.Context, environmentID, identifier string) (*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE environment_id = $1 AND trigger_identifier = $2
	`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, environmentID, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewRecordError("WorkflowByTriggerIdentifier", "workflow", identifier, err)
	}

	return workflow, nil
}

// WorkflowsByTriggerIdentifiers returns every workflow of an environment matching one of identifiers.
func (r *WorkflowRepository) WorkflowsByTriggerIdentifiers(ctx context.Context, environmentID string, identifiers []string) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0, len(identifiers))
	if len(identifiers) == 0 {
		return workflows, nil
	}

	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE environment_id = $1 AND trigger_identifier = ANY($2)
	`

	rows, err := r.db.QueryContext(ctx, query, environmentID, pq.Array(identifiers))
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewRecordError("WorkflowsByTriggerIdentifiers", "workflow", "", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// SaveWorkflow inserts or updates a workflow.
func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if workflow.EnvironmentID == "" || workflow.TriggerIdentifier == "" {
		return persistence.NewRecordError("SaveWorkflow", "workflow", workflow.TriggerIdentifier, persistence.ErrInvalidRecord)
	}

	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	steps, err := marshalJSON(workflow.Steps)
	if err != nil {
		return err
	}

	schema, err := marshalJSON(workflow.PayloadSchema)
	if err != nil {
		return err
	}

	defaults, err := marshalJSON(workflow.PayloadDefaults)
	if err != nil {
		return err
	}

	reserved, err := marshalJSON(workflow.ReservedVariables)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (id, environment_id, organization_id, trigger_identifier, name, active, steps,
			payload_schema, validate_payload, payload_defaults, reserved_variables, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			trigger_identifier = EXCLUDED.trigger_identifier,
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			steps = EXCLUDED.steps,
			payload_schema = EXCLUDED.payload_schema,
			validate_payload = EXCLUDED.validate_payload,
			payload_defaults = EXCLUDED.payload_defaults,
			reserved_variables = EXCLUDED.reserved_variables,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.EnvironmentID,
		workflow.OrganizationID,
		workflow.TriggerIdentifier,
		workflow.Name,
		workflow.Active,
		steps,
		schema,
		workflow.ValidatePayload,
		defaults,
		reserved,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*models.Workflow, error) {
	var workflow models.Workflow

	var steps, schema, defaults, reserved []byte

	err := row.Scan(
		&workflow.ID,
		&workflow.EnvironmentID,
		&workflow.OrganizationID,
		&workflow.TriggerIdentifier,
		&workflow.Name,
		&workflow.Active,
		&steps,
		&schema,
		&workflow.ValidatePayload,
		&defaults,
		&reserved,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(steps, &workflow.Steps); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(schema, &workflow.PayloadSchema); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(defaults, &workflow.PayloadDefaults); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(reserved, &workflow.ReservedVariables); err != nil {
		return nil, err
	}

	return &workflow, nil
}
