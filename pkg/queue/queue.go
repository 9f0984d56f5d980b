// Package queue hands executable jobs over to the execution engine.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/herald/pkg/models"
)

const (
	DefaultTopic = "herald.triggers"

	// NameMetadataKey carries the routing name of a job, the transaction id.
	NameMetadataKey = "name"
	// GroupMetadataKey carries the fairness group of a job, the organization id.
	GroupMetadataKey = "group_id"
	// KindMetadataKey tells consumers which job type the payload holds.
	KindMetadataKey = "kind"
)

var (
	ErrEmptyName      = errors.New("job name is required")
	ErrEmptyGroup     = errors.New("job group is required")
	ErrUnknownJobKind = errors.New("unknown job kind")
)

// Client enqueues jobs. Enqueue returns only after the backend accepted the job.
type Client interface {
	Enqueue(ctx context.Context, name string, job models.Job, groupID string) error
	Close() error
}

// Envelope is the queued representation of a job.
type Envelope struct {
	Name    string
	GroupID string
	Kind    models.JobKind
	Payload []byte
}

func newEnvelope(name string, job models.Job, groupID string) (*Envelope, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	if groupID == "" {
		return nil, ErrEmptyGroup
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s job: %w", job.Kind(), err)
	}

	return &Envelope{
		Name:    name,
		GroupID: groupID,
		Kind:    job.Kind(),
		Payload: payload,
	}, nil
}

// DecodeJob rebuilds a job from its kind and payload.
func DecodeJob(kind models.JobKind, payload []byte) (models.Job, error) {
	switch kind {
	case models.JobKindTrigger:
		var job models.QueueJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return nil, fmt.Errorf("failed to decode trigger job: %w", err)
		}

		return &job, nil
	case models.JobKindCancel:
		var job models.CancelJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return nil, fmt.Errorf("failed to decode cancel job: %w", err)
		}

		return &job, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobKind, kind)
	}
}
