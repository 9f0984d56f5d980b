package queue

import (
	"context"
	"fmt"

	"github.com/dukex/herald/pkg/models"
	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// RedisStreamQueue appends jobs to a Redis stream.
type RedisStreamQueue struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStreamQueue creates a queue writing to stream. A positive maxLen
// approximately caps the stream length.
func NewRedisStreamQueue(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamQueue {
	if stream == "" {
		stream = DefaultTopic
	}

	return &RedisStreamQueue{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (q *RedisStreamQueue) Enqueue(ctx context.Context, name string, job models.Job, groupID string) error {
	envelope, err := newEnvelope(name, job, groupID)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			NameMetadataKey:  envelope.Name,
			GroupMetadataKey: envelope.GroupID,
			KindMetadataKey:  string(envelope.Kind),
			payloadField:     string(envelope.Payload),
		},
	}

	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}

	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add job %s to stream %s: %w", name, q.stream, err)
	}

	return nil
}

func (q *RedisStreamQueue) Close() error {
	return q.client.Close()
}

// EnvelopeFromStream reads a job envelope back from a stream entry.
func EnvelopeFromStream(entry redis.XMessage) *Envelope {
	field := func(key string) string {
		value, _ := entry.Values[key].(string)

		return value
	}

	return &Envelope{
		Name:    field(NameMetadataKey),
		GroupID: field(GroupMetadataKey),
		Kind:    models.JobKind(field(KindMetadataKey)),
		Payload: []byte(field(payloadField)),
	}
}
