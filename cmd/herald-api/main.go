package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dukex/herald/pkg/cmd"
	"github.com/dukex/herald/pkg/log"
	"github.com/dukex/herald/pkg/otelhelper"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPort          = 3000
	defaultBridgeTimeout = 5 * time.Second
	serviceName          = "herald-api"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env file is fine; the environment may be set another way.
	_ = godotenv.Load()

	app := &cli.Command{
		Name:                  serviceName,
		Version:               version,
		Usage:                 "Accept notification triggers and hand them to the execution queue",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Execution queue provider (gochannel, kafka, redis, sqs)",
				Value:   "gochannel",
				Sources: cli.EnvVars("QUEUE_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "queue-topic",
				Usage:   "Topic, stream or queue name jobs are published to",
				Value:   "herald.triggers",
				Sources: cli.EnvVars("QUEUE_TOPIC"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "sqs-queue-url",
				Usage:   "SQS FIFO queue URL",
				Sources: cli.EnvVars("SQS_QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL used by the redis queue and redis feature flags",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "flags-provider",
				Usage:   "Feature flags provider (static, redis)",
				Value:   "static",
				Sources: cli.EnvVars("FEATURE_FLAGS_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "flags",
				Usage:   "Static feature flags as key=bool pairs separated by commas",
				Sources: cli.EnvVars("FEATURE_FLAGS"),
			},
			&cli.StringFlag{
				Name:    "attachments-path",
				Usage:   "Directory attachments are stored in",
				Value:   "./data/attachments",
				Sources: cli.EnvVars("ATTACHMENTS_PATH"),
			},
			&cli.DurationFlag{
				Name:    "bridge-timeout",
				Usage:   "Timeout of a bridge discovery call",
				Value:   defaultBridgeTimeout,
				Sources: cli.EnvVars("BRIDGE_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "bulk-concurrency",
				Usage:   "Maximum number of triggers of one bulk call dispatched at a time",
				Value:   100,
				Sources: cli.EnvVars("BULK_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces with the OTLP HTTP exporter",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.FloatFlag{
				Name:    "otel-sample-ratio",
				Usage:   "Fraction of traces kept when OTLP export is enabled",
				Value:   1,
				Sources: cli.EnvVars("OTEL_SAMPLE_RATIO"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Herald API")

			tracer := otelhelper.NoopTracer()

			if command.Bool("otel") {
				var (
					shutdown func(context.Context) error
					err      error
				)

				tracer, shutdown, err = otelhelper.NewTracer(ctx, otelhelper.TracerConfig{
					ServiceName:    serviceName,
					ServiceVersion: version,
					SampleRatio:    command.Float("otel-sample-ratio"),
				})
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			return run(ctx, command, tracer)
		},
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("api").Error("Herald API stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command, tracer trace.Tracer) error {
	logger := log.WithModule("api")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	client, err := cmd.NewQueue(ctx, logger, cmd.QueueConfig{
		Provider:     command.String("queue"),
		Topic:        command.String("queue-topic"),
		KafkaBrokers: command.String("kafka-brokers"),
		RedisURL:     command.String("redis-url"),
		SQSQueueURL:  command.String("sqs-queue-url"),
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close queue", "error", err)
		}
	}()

	flags, closeFlags, err := cmd.NewFeatureFlags(logger, cmd.FlagsConfig{
		Provider: command.String("flags-provider"),
		Static:   command.String("flags"),
		RedisURL: command.String("redis-url"),
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := closeFlags(); err != nil {
			logger.ErrorContext(ctx, "Failed to close feature flags", "error", err)
		}
	}()

	uploader, err := cmd.NewUploader(logger, command.String("attachments-path"))
	if err != nil {
		return err
	}

	api := NewAPI(logger, Config{
		Persistence:     persistence,
		Queue:           client,
		Flags:           flags,
		Uploader:        uploader,
		Tracer:          tracer,
		BridgeTimeout:   command.Duration("bridge-timeout"),
		BulkConcurrency: command.Int("bulk-concurrency"),
	})

	defer api.Wait()

	return api.Start(command.Int("port"))
}
