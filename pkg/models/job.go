package models

// JobKind tells the execution engine how to decode a queued message.
type JobKind string

const (
	JobKindTrigger JobKind = "trigger"
	JobKindCancel  JobKind = "cancel"
)

// Job is a unit handed to the execution queue.
type Job interface {
	Kind() JobKind
}

// QueueJob is the canonical executable job produced for one trigger. Once
// enqueued it is owned by the execution engine.
type QueueJob struct {
	Identifier     string              `json:"identifier"`
	Payload        map[string]any      `json:"payload"`
	Overrides      map[string]any      `json:"overrides"`
	To             any                 `json:"to,omitempty"`
	Actor          *Subscriber         `json:"actor,omitempty"`
	Tenant         *TenantRef          `json:"tenant,omitempty"`
	TransactionID  string              `json:"transactionId"`
	RequestID      string              `json:"requestId,omitempty"`
	AddressingType AddressingType      `json:"addressingType"`
	BridgeURL      string              `json:"bridgeUrl,omitempty"`
	Controls       map[string]any      `json:"controls,omitempty"`
	OrganizationID string              `json:"organizationId"`
	EnvironmentID  string              `json:"environmentId"`
	UserID         string              `json:"userId,omitempty"`
	WorkflowID     string              `json:"workflowId,omitempty"`
	BridgeWorkflow *DiscoveredWorkflow `json:"bridgeWorkflow,omitempty"`
}

func (QueueJob) Kind() JobKind {
	return JobKindTrigger
}

// CancelJob asks the execution engine to cancel pending work for a transaction.
type CancelJob struct {
	TransactionID  string `json:"transactionId"`
	OrganizationID string `json:"organizationId"`
	EnvironmentID  string `json:"environmentId"`
	UserID         string `json:"userId,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
}

func (CancelJob) Kind() JobKind {
	return JobKindCancel
}
