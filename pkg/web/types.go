// Package web provides HTTP request and response types for the trigger API.
package web

import "github.com/dukex/herald/pkg/models"

// TriggerEventRequest is the body of a multicast trigger.
type TriggerEventRequest struct {
	Name          string             `json:"name"                    validate:"required"`
	Payload       map[string]any     `json:"payload"`
	Overrides     map[string]any     `json:"overrides"`
	To            any                `json:"to"                      validate:"required,recipients"`
	Actor         *models.Subscriber `json:"actor,omitempty"`
	Tenant        *models.TenantRef  `json:"tenant,omitempty"`
	TransactionID string             `json:"transactionId,omitempty"`
	BridgeURL     string             `json:"bridgeUrl,omitempty"     validate:"omitempty,url"`
	Controls      map[string]any     `json:"controls,omitempty"`
}

// BulkTriggerEventRequest carries up to 100 multicast triggers.
type BulkTriggerEventRequest struct {
	Events []TriggerEventRequest `json:"events" validate:"required,min=1,max=100,dive"`
}

// TriggerBroadcastRequest is the body of a trigger sent to every subscriber.
type TriggerBroadcastRequest struct {
	Name          string             `json:"name"                    validate:"required"`
	Payload       map[string]any     `json:"payload"`
	Overrides     map[string]any     `json:"overrides"`
	Actor         *models.Subscriber `json:"actor,omitempty"`
	Tenant        *models.TenantRef  `json:"tenant,omitempty"`
	TransactionID string             `json:"transactionId,omitempty"`
	BridgeURL     string             `json:"bridgeUrl,omitempty"     validate:"omitempty,url"`
	Controls      map[string]any     `json:"controls,omitempty"`
}

// Scope is the caller identity taken from request headers.
type Scope struct {
	RequestID      string
	OrganizationID string `validate:"required"`
	EnvironmentID  string `validate:"required"`
	UserID         string
}

// ToTriggerRequest converts a multicast body into a dispatch command.
func (r TriggerEventRequest) ToTriggerRequest(scope Scope) *models.TriggerRequest {
	return &models.TriggerRequest{
		Identifier:     r.Name,
		Payload:        r.Payload,
		Overrides:      r.Overrides,
		Addressing:     models.Multicast{To: r.To},
		Actor:          r.Actor,
		Tenant:         r.Tenant,
		TransactionID:  r.TransactionID,
		BridgeURL:      r.BridgeURL,
		Controls:       r.Controls,
		RequestID:      scope.RequestID,
		OrganizationID: scope.OrganizationID,
		EnvironmentID:  scope.EnvironmentID,
		UserID:         scope.UserID,
	}
}

// ToTriggerRequest converts a broadcast body into a dispatch command.
func (r TriggerBroadcastRequest) ToTriggerRequest(scope Scope) *models.TriggerRequest {
	return &models.TriggerRequest{
		Identifier:     r.Name,
		Payload:        r.Payload,
		Overrides:      r.Overrides,
		Addressing:     models.Broadcast{},
		Actor:          r.Actor,
		Tenant:         r.Tenant,
		TransactionID:  r.TransactionID,
		BridgeURL:      r.BridgeURL,
		Controls:       r.Controls,
		RequestID:      scope.RequestID,
		OrganizationID: scope.OrganizationID,
		EnvironmentID:  scope.EnvironmentID,
		UserID:         scope.UserID,
	}
}

// CancelResponse is returned when a cancellation was queued.
type CancelResponse struct {
	Acknowledged  bool   `json:"acknowledged"`
	TransactionID string `json:"transactionId"`
}
