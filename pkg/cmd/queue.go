package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/dukex/herald/pkg/queue"
	"github.com/dukex/herald/pkg/queue/gochannel"
	"github.com/dukex/herald/pkg/queue/kafka"
	"github.com/redis/go-redis/v9"
)

const redisStreamMaxLen = 100_000

var (
	ErrUnsupportedQueue = errors.New("unsupported queue provider")
	ErrMissingURL       = errors.New("connection url is required")
)

// QueueConfig selects and configures the execution queue.
type QueueConfig struct {
	Provider     string
	Topic        string
	KafkaBrokers string
	RedisURL     string
	SQSQueueURL  string
}

// NewQueue creates the queue client named by config.Provider.
func NewQueue(ctx context.Context, logger *slog.Logger, config QueueConfig) (queue.Client, error) {
	topic := config.Topic
	if topic == "" {
		topic = queue.DefaultTopic
	}

	switch config.Provider {
	case "", "gochannel":
		logger.WarnContext(ctx, "Using in-memory queue, jobs are not delivered outside this process")

		return queue.NewWatermillQueue(gochannel.CreateChannel(watermill.NewSlogLogger(logger)), topic), nil
	case "kafka":
		publisher, err := kafka.CreatePublisher(watermill.NewSlogLogger(logger), kafka.ParseBrokers(config.KafkaBrokers))
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}

		return queue.NewWatermillQueue(publisher, topic), nil
	case "redis":
		client, err := NewRedisClient(config.RedisURL)
		if err != nil {
			return nil, err
		}

		return queue.NewRedisStreamQueue(client, topic, redisStreamMaxLen), nil
	case "sqs":
		if config.SQSQueueURL == "" {
			return nil, fmt.Errorf("%w: sqs", ErrMissingURL)
		}

		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}

		return queue.NewSQSQueue(sqs.NewFromConfig(awsConfig), config.SQSQueueURL), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedQueue, config.Provider)
	}
}

// NewRedisClient creates a Redis client from a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("%w: redis", ErrMissingURL)
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return redis.NewClient(options), nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	return cfg, nil
}
