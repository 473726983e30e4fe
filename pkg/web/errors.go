package web

import (
	"errors"

	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/dukex/deskflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func conflict(c fiber.Ctx, kind string, err error) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(err.Error())

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleError maps engine and persistence errors to problem responses.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsValidation(err):
		return badRequest(c, err.Error())

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution_not_found", "execution not found")

	case errors.Is(err, persistence.ErrSystemWorkflow):
		return conflict(c, "system_workflow", err)

	case errors.Is(err, workflow.ErrWorkflowInactive):
		return conflict(c, "workflow_inactive", err)

	case errors.Is(err, workflow.ErrExecutionInFlight):
		return conflict(c, "execution_in_flight", err)

	case errors.Is(err, workflow.ErrRetryNotAllowed), errors.Is(err, workflow.ErrRetryExhausted):
		return conflict(c, "retry_rejected", err)

	case errors.Is(err, workflow.ErrCancelNotAllowed):
		return conflict(c, "cancel_rejected", err)

	default:
		return internalError(c, err)
	}
}
