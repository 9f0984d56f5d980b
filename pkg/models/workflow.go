// Package models defines the domain models for trigger ingestion and dispatch.
package models

import "time"

// ReservedVariableType names the trigger-context object a reserved variable group refers to.
type ReservedVariableType string

const (
	ReservedVariableTenant ReservedVariableType = "tenant"
	ReservedVariableActor  ReservedVariableType = "actor"
)

// ReservedVariable is a single field a workflow template expects on a trigger-context object.
type ReservedVariable struct {
	Name string `json:"name"`
}

// ReservedVariableGroup lists the fields required on one trigger-context object.
type ReservedVariableGroup struct {
	Type      ReservedVariableType `json:"type"      validate:"required,oneof=tenant actor"`
	Variables []ReservedVariable   `json:"variables"`
}

// WorkflowStep is a single step of a persisted workflow.
type WorkflowStep struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// Workflow is a persisted, versioned workflow definition.
type Workflow struct {
	ID                string                  `json:"id"`
	EnvironmentID     string                  `json:"environment_id"     validate:"required"`
	OrganizationID    string                  `json:"organization_id"    validate:"required"`
	TriggerIdentifier string                  `json:"trigger_identifier" validate:"required"`
	Name              string                  `json:"name"`
	Active            bool                    `json:"active"`
	Steps             []*WorkflowStep         `json:"steps"`
	PayloadSchema     map[string]any          `json:"payload_schema,omitempty"`
	ValidatePayload   bool                    `json:"validate_payload"`
	PayloadDefaults   map[string]any          `json:"payload_defaults,omitempty"`
	ReservedVariables []ReservedVariableGroup `json:"reserved_variables,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// DiscoveredStep is a step descriptor returned by a bridge discovery call.
type DiscoveredStep struct {
	StepID  string         `json:"stepId"`
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

// DiscoveredWorkflow is an ephemeral workflow descriptor returned by a bridge.
// It is never persisted and lives only for the trigger call that discovered it.
type DiscoveredWorkflow struct {
	WorkflowID string           `json:"workflowId"`
	Steps      []DiscoveredStep `json:"steps"`
	Payload    map[string]any   `json:"payload,omitempty"`
	Options    map[string]any   `json:"options,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
}

// WorkflowDefinition is the workflow a trigger resolved to: exactly one of a
// persisted or a discovered definition.
type WorkflowDefinition struct {
	persisted  *Workflow
	discovered *DiscoveredWorkflow
}

// PersistedDefinition wraps a stored workflow.
func PersistedDefinition(workflow *Workflow) *WorkflowDefinition {
	return &WorkflowDefinition{persisted: workflow}
}

// DiscoveredDefinition wraps a bridge-discovered workflow.
func DiscoveredDefinition(workflow *DiscoveredWorkflow) *WorkflowDefinition {
	return &WorkflowDefinition{discovered: workflow}
}

func (d *WorkflowDefinition) Persisted() *Workflow {
	return d.persisted
}

func (d *WorkflowDefinition) Discovered() *DiscoveredWorkflow {
	return d.discovered
}

func (d *WorkflowDefinition) IsDiscovered() bool {
	return d.discovered != nil
}

// ID returns the stored workflow id, or the bridge workflow id.
func (d *WorkflowDefinition) ID() string {
	if d.discovered != nil {
		return d.discovered.WorkflowID
	}

	return d.persisted.ID
}

// Active reports the definition's own active flag. Discovered workflows are always active.
func (d *WorkflowDefinition) Active() bool {
	if d.discovered != nil {
		return true
	}

	return d.persisted.Active
}

// StepCounts returns the total and active number of steps. Discovered steps
// carry no active flag and all count as active.
func (d *WorkflowDefinition) StepCounts() (total, active int) {
	if d.discovered != nil {
		return len(d.discovered.Steps), len(d.discovered.Steps)
	}

	for _, step := range d.persisted.Steps {
		if step == nil {
			continue
		}

		total++

		if step.Active {
			active++
		}
	}

	return total, active
}
