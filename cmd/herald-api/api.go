// Package main provides the Herald API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/herald/pkg/attachments"
	"github.com/dukex/herald/pkg/bridge"
	"github.com/dukex/herald/pkg/featureflags"
	"github.com/dukex/herald/pkg/payload"
	"github.com/dukex/herald/pkg/persistence"
	"github.com/dukex/herald/pkg/queue"
	"github.com/dukex/herald/pkg/services"
	"github.com/dukex/herald/pkg/storage"
	"github.com/dukex/herald/pkg/tenant"
	"github.com/dukex/herald/pkg/trace"
	"github.com/dukex/herald/pkg/web"
	"github.com/dukex/herald/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// bodyLimit leaves room for base64 encoded attachments.
const bodyLimit = 10 * 1024 * 1024

// Config holds the collaborators of the API server.
type Config struct {
	Persistence     persistence.Persistence
	Queue           queue.Client
	Flags           featureflags.Service
	Uploader        storage.Uploader
	Tracer          oteltrace.Tracer
	BridgeTimeout   time.Duration
	BulkConcurrency int
}

type API struct {
	logger   *slog.Logger
	config   Config
	recorder *trace.Recorder
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, config Config) *API {
	return &API{
		logger:   logger,
		config:   config,
		recorder: trace.NewRecorder(config.Persistence, logger),
		validate: web.NewValidator(),
	}
}

func (a *API) App() *fiber.App {
	workflows := workflow.NewResolver(
		a.config.Persistence,
		bridge.NewClient(bridge.Config{Timeout: a.config.BridgeTimeout}, a.logger),
		a.logger,
	)

	dispatcher := services.NewDispatcher(services.Dependencies{
		Workflows:   workflows,
		Tenants:     tenant.NewResolver(a.config.Persistence, a.logger),
		Validator:   payload.NewValidator(),
		Attachments: attachments.NewExternalizer(a.config.Uploader, a.logger),
		Flags:       a.config.Flags,
		Queue:       a.config.Queue,
		Traces:      a.recorder,
		Tracer:      a.config.Tracer,
		Logger:      a.logger,
	})

	handlers := web.NewAPIHandlers(
		dispatcher,
		services.NewBulkDispatcher(dispatcher, workflows, a.config.BulkConcurrency, a.logger),
		services.NewCanceller(a.config.Queue, a.logger),
		services.NewHealth(a.config.Persistence),
		a.validate,
		a.logger,
	)

	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
	})
	app.Use(cors.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Herald API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

// Wait blocks until pending trace writes are done.
func (a *API) Wait() {
	a.recorder.Wait()
}
