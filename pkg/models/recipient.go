package models

import (
	"encoding/json"
	"errors"
	"maps"
)

// RecipientKind tells whether a recipient addresses a subscriber or a topic.
type RecipientKind string

const (
	RecipientSubscriber RecipientKind = "subscriber"
	RecipientTopic      RecipientKind = "topic"
)

// Recipient is a validated addressing entry. Raw keeps the caller's original
// shape so it is forwarded to the execution engine untouched.
type Recipient struct {
	Kind RecipientKind
	Key  string // subscriber id or topic key
	Raw  any
}

func (r Recipient) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Raw)
}

// Subscriber is an actor reference: either a bare subscriber id or an object
// carrying subscriberId plus arbitrary profile fields.
type Subscriber struct {
	SubscriberID string
	Fields       map[string]any
}

var errInvalidSubscriber = errors.New("subscriber must be a string or an object with subscriberId")

func (s *Subscriber) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		s.SubscriberID = id
		s.Fields = nil

		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return errInvalidSubscriber
	}

	id, _ = fields["subscriberId"].(string)
	if id == "" {
		return errInvalidSubscriber
	}

	s.SubscriberID = id
	s.Fields = fields

	return nil
}

func (s Subscriber) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Object())
}

// Object returns the subscriber as a field map that always contains subscriberId.
func (s Subscriber) Object() map[string]any {
	object := make(map[string]any, len(s.Fields)+1)
	maps.Copy(object, s.Fields)
	object["subscriberId"] = s.SubscriberID

	return object
}
