package web

import (
	"errors"
	"log/slog"

	"github.com/dukex/herald/pkg/payload"
	"github.com/dukex/herald/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// fieldProblem is a problem document carrying an error code and, for payload
// violations, one entry per failing field.
type fieldProblem struct {
	*problems.Problem
	Code   string               `json:"code,omitempty"`
	Errors []payload.FieldError `json:"errors,omitempty"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, logger *slog.Logger, err error) error {
	switch {
	case services.IsNotFoundError(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("workflow_not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(fieldProblem{
			Problem: problem,
			Code:    services.ErrorCode(err),
		})

	case services.IsValidationError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		response := fieldProblem{Problem: problem, Code: services.ErrorCode(err)}

		var validationErr *payload.ValidationError
		if errors.As(err, &validationErr) {
			response.Errors = validationErr.Errors
		}

		return c.Status(fiber.StatusBadRequest).JSON(response)

	default:
		logger.ErrorContext(c.Context(), "Trigger request failed", "path", c.Path(), "error", err)

		// Unexpected failures are not exposed to the caller.
		return internalError(c, errors.New("failed to process trigger"))
	}
}
