package models

import (
	"encoding/json"
	"errors"
	"maps"
	"time"
)

// Tenant is a stored tenant record scoped to an environment.
type Tenant struct {
	ID            string         `json:"id"`
	EnvironmentID string         `json:"environment_id" validate:"required"`
	Identifier    string         `json:"identifier"     validate:"required"`
	Name          string         `json:"name,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// WorkflowOverride is a tenant-scoped override of a persisted workflow.
// At most one exists per (workflow, tenant) pair.
type WorkflowOverride struct {
	ID                 string          `json:"id"`
	EnvironmentID      string          `json:"environment_id"`
	WorkflowID         string          `json:"workflow_id"       validate:"required"`
	TenantIdentifier   string          `json:"tenant_identifier" validate:"required"`
	Active             bool            `json:"active"`
	PreferenceSettings map[string]bool `json:"preference_settings,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TenantRef is the tenant a trigger refers to: a bare identifier or an inline object.
type TenantRef struct {
	Identifier string         `json:"identifier"`
	Name       string         `json:"name,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

var errInvalidTenant = errors.New("tenant must be a string or an object with identifier")

func (t *TenantRef) UnmarshalJSON(data []byte) error {
	var identifier string
	if err := json.Unmarshal(data, &identifier); err == nil {
		*t = TenantRef{Identifier: identifier}

		return nil
	}

	type plain TenantRef

	var object plain
	if err := json.Unmarshal(data, &object); err != nil || object.Identifier == "" {
		return errInvalidTenant
	}

	*t = TenantRef(object)

	return nil
}

// Object returns the tenant as a flat field map for reserved-variable checks.
func (t TenantRef) Object() map[string]any {
	object := make(map[string]any, len(t.Data)+2)
	maps.Copy(object, t.Data)
	object["identifier"] = t.Identifier

	if t.Name != "" {
		object["name"] = t.Name
	}

	return object
}
