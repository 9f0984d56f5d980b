package models

import "time"

// TraceEventType is the fixed vocabulary of request trace events.
type TraceEventType string

const (
	TraceRequestQueued            TraceEventType = "request_queued"
	TraceWorkflowNotFound         TraceEventType = "request_workflow_not_found"
	TraceReservedVariablesMissing TraceEventType = "request_reserved_variables_missing"
	TracePayloadValidationFailed  TraceEventType = "request_payload_validation_failed"
	TraceTenantNotFound           TraceEventType = "request_tenant_not_found"
	TraceWorkflowNotActive        TraceEventType = "request_workflow_not_active"
	TraceWorkflowNoSteps          TraceEventType = "request_workflow_no_steps"
	TraceWorkflowNoActiveSteps    TraceEventType = "request_workflow_no_active_steps"
	TraceInvalidRecipients        TraceEventType = "request_invalid_recipients"
	TraceRequestFailed            TraceEventType = "request_failed"
)

type TraceStatus string

const (
	TraceStatusSuccess TraceStatus = "success"
	TraceStatusError   TraceStatus = "error"
)

// TraceRecord is an immutable decision record keyed by request id.
type TraceRecord struct {
	ID             string         `json:"id"`
	RequestID      string         `json:"request_id"`
	TransactionID  string         `json:"transaction_id,omitempty"`
	OrganizationID string         `json:"organization_id"`
	EnvironmentID  string         `json:"environment_id"`
	UserID         string         `json:"user_id,omitempty"`
	EventType      TraceEventType `json:"event_type"`
	Status         TraceStatus    `json:"status"`
	Message        string         `json:"message,omitempty"`
	RawData        any            `json:"raw_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
