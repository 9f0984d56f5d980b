package models

// AddressingType discriminates how a trigger selects its recipients.
type AddressingType string

const (
	AddressingMulticast AddressingType = "MULTICAST" // Explicit recipient list
	AddressingBroadcast AddressingType = "BROADCAST" // Every subscriber of the environment
)

// Addressing is the tagged union of trigger addressing modes. Only the
// multicast variant carries recipients.
type Addressing interface {
	Type() AddressingType
}

// Multicast addresses the recipients listed in To.
type Multicast struct {
	To any
}

func (Multicast) Type() AddressingType {
	return AddressingMulticast
}

// Broadcast addresses every subscriber; recipients are resolved by the execution engine.
type Broadcast struct{}

func (Broadcast) Type() AddressingType {
	return AddressingBroadcast
}

// TriggerRequest is the normalized command asking for a workflow run.
type TriggerRequest struct {
	Identifier    string `validate:"required"`
	Payload       map[string]any
	Overrides     map[string]any
	Addressing    Addressing
	Actor         *Subscriber
	Tenant        *TenantRef
	TransactionID string
	BridgeURL     string `validate:"omitempty,url"`
	Controls      map[string]any
	RequestID     string

	OrganizationID string `validate:"required"`
	EnvironmentID  string `validate:"required"`
	UserID         string
}

// AddressingType returns the discriminant of the request addressing.
// A request without addressing is treated as multicast to nobody.
func (r *TriggerRequest) AddressingType() AddressingType {
	if r.Addressing == nil {
		return AddressingMulticast
	}

	return r.Addressing.Type()
}

// Recipients returns the raw recipients for multicast requests, nil otherwise.
func (r *TriggerRequest) Recipients() any {
	multicast, ok := r.Addressing.(Multicast)
	if !ok {
		return nil
	}

	return multicast.To
}
