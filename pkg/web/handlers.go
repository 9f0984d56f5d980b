package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Caller scope headers.
const (
	HeaderOrganizationID = "X-Organization-Id"
	HeaderEnvironmentID  = "X-Environment-Id"
	HeaderUserID         = "X-User-Id"
)

type APIHandlers struct {
	dispatcher *services.Dispatcher
	bulk       *services.BulkDispatcher
	canceller  *services.Canceller
	health     *services.Health
	validator  *validator.Validate
	logger     *slog.Logger
}

func NewAPIHandlers(
	dispatcher *services.Dispatcher,
	bulk *services.BulkDispatcher,
	canceller *services.Canceller,
	health *services.Health,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		dispatcher: dispatcher,
		bulk:       bulk,
		canceller:  canceller,
		health:     health,
		validator:  validator,
		logger:     logger.With("module", "api_handlers"),
	}
}

// Register mounts the trigger routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	events := router.Group("/v1/events")
	events.Post("/trigger", h.TriggerEvent)
	events.Post("/trigger/bulk", h.TriggerBulk)
	events.Post("/trigger/broadcast", h.TriggerBroadcast)
	events.Delete("/trigger/:transactionId", h.CancelTrigger)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.health.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Herald API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Herald API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) TriggerEvent(c fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req TriggerEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	outcome, err := h.dispatcher.Dispatch(c.Context(), req.ToTriggerRequest(scope))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(outcome)
}

func (h *APIHandlers) TriggerBroadcast(c fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req TriggerBroadcastRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	outcome, err := h.dispatcher.Dispatch(c.Context(), req.ToTriggerRequest(scope))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(outcome)
}

func (h *APIHandlers) TriggerBulk(c fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req BulkTriggerEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	requests := make([]*models.TriggerRequest, 0, len(req.Events))
	for _, event := range req.Events {
		requests = append(requests, event.ToTriggerRequest(scope))
	}

	outcomes, err := h.bulk.Dispatch(c.Context(), requests)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(outcomes)
}

func (h *APIHandlers) CancelTrigger(c fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	transactionID := c.Params("transactionId")
	if transactionID == "" {
		return badRequest(c, "Transaction ID is required")
	}

	err = h.canceller.Cancel(c.Context(), services.CancelRequest{
		TransactionID:  transactionID,
		OrganizationID: scope.OrganizationID,
		EnvironmentID:  scope.EnvironmentID,
		UserID:         scope.UserID,
		RequestID:      scope.RequestID,
	})
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(CancelResponse{Acknowledged: true, TransactionID: transactionID})
}

// scope reads the caller identity headers. The request id is the one the
// requestid middleware assigned, or the caller's when it runs without it.
func (h *APIHandlers) scope(c fiber.Ctx) (Scope, error) {
	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = c.Get(fiber.HeaderXRequestID)
	}

	scope := Scope{
		RequestID:      requestID,
		OrganizationID: c.Get(HeaderOrganizationID),
		EnvironmentID:  c.Get(HeaderEnvironmentID),
		UserID:         c.Get(HeaderUserID),
	}

	if err := h.validator.Struct(scope); err != nil {
		return Scope{}, err
	}

	return scope, nil
}
