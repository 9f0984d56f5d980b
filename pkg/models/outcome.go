package models

// DispatchStatus is the closed set of trigger outcomes.
type DispatchStatus string

const (
	StatusProcessed             DispatchStatus = "processed"
	StatusNotActive             DispatchStatus = "trigger_not_active"
	StatusNoWorkflowSteps       DispatchStatus = "no_workflow_steps_defined"
	StatusNoWorkflowActiveSteps DispatchStatus = "no_workflow_active_steps_defined"
	StatusTenantMissing         DispatchStatus = "no_tenant_found"
	StatusInvalidRecipients     DispatchStatus = "invalid_recipients"
	StatusError                 DispatchStatus = "error"
)

// DispatchOutcome is returned to the caller for every trigger.
type DispatchOutcome struct {
	Acknowledged  bool           `json:"acknowledged"`
	Status        DispatchStatus `json:"status"`
	TransactionID string         `json:"transactionId,omitempty"`
	Error         []string       `json:"error,omitempty"`
}

// Acknowledge builds a non-error outcome with the given status.
func Acknowledge(status DispatchStatus) *DispatchOutcome {
	return &DispatchOutcome{Acknowledged: true, Status: status}
}

// Processed builds the outcome for a trigger that was enqueued.
func Processed(transactionID string) *DispatchOutcome {
	return &DispatchOutcome{Acknowledged: true, Status: StatusProcessed, TransactionID: transactionID}
}

// Failed builds a per-item error outcome used by bulk dispatch.
func Failed(messages ...string) *DispatchOutcome {
	return &DispatchOutcome{Acknowledged: true, Status: StatusError, Error: messages}
}
