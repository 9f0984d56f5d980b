package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/dukex/herald/pkg/models"
)

// SQSAPI is the subset of the SQS client the queue needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue sends jobs to an SQS FIFO queue. The group id becomes the
// message group and the job name the deduplication id, so a retried
// enqueue of the same transaction is dropped by SQS.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
	}
}

func (q *SQSQueue) Enqueue(ctx context.Context, name string, job models.Job, groupID string) error {
	envelope, err := newEnvelope(name, job, groupID)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.queueURL),
		MessageBody:            aws.String(string(envelope.Payload)),
		MessageGroupId:         aws.String(envelope.GroupID),
		MessageDeduplicationId: aws.String(string(envelope.Kind) + "-" + envelope.Name),
		MessageAttributes: map[string]types.MessageAttributeValue{
			NameMetadataKey: {
				DataType:    aws.String("String"),
				StringValue: aws.String(envelope.Name),
			},
			KindMetadataKey: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(envelope.Kind)),
			},
		},
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send job %s to SQS: %w", name, err)
	}

	return nil
}

func (q *SQSQueue) Close() error {
	return nil
}
