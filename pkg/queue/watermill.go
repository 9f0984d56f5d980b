package queue

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/herald/pkg/models"
)

// WatermillQueue publishes jobs through any watermill publisher.
type WatermillQueue struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillQueue(publisher message.Publisher, topic string) *WatermillQueue {
	if topic == "" {
		topic = DefaultTopic
	}

	return &WatermillQueue{
		publisher: publisher,
		topic:     topic,
	}
}

func (q *WatermillQueue) Enqueue(ctx context.Context, name string, job models.Job, groupID string) error {
	envelope, err := newEnvelope(name, job, groupID)
	if err != nil {
		return err
	}

	msg := message.NewMessage("job-"+watermill.NewULID(), envelope.Payload)
	msg.Metadata.Set(NameMetadataKey, envelope.Name)
	msg.Metadata.Set(GroupMetadataKey, envelope.GroupID)
	msg.Metadata.Set(KindMetadataKey, string(envelope.Kind))
	msg.SetContext(ctx)

	if err := q.publisher.Publish(q.topic, msg); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", name, err)
	}

	return nil
}

func (q *WatermillQueue) Close() error {
	return q.publisher.Close()
}

// EnvelopeFromMessage reads a job envelope back from a watermill message.
func EnvelopeFromMessage(msg *message.Message) *Envelope {
	return &Envelope{
		Name:    msg.Metadata.Get(NameMetadataKey),
		GroupID: msg.Metadata.Get(GroupMetadataKey),
		Kind:    models.JobKind(msg.Metadata.Get(KindMetadataKey)),
		Payload: msg.Payload,
	}
}
