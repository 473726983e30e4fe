// Package web provides HTTP handlers and REST API endpoints for workflow automation.
package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/dukex/deskflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

var errInvalidJSON = errors.New("invalid JSON format")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Engine is the part of workflow.Engine the API drives.
type Engine interface {
	TriggerWorkflows(ctx context.Context, event *models.Event) ([]workflow.Decision, error)
	Run(ctx context.Context, workflowID string, req workflow.RunRequest) (*models.WorkflowExecution, error)
	Test(ctx context.Context, workflowID string, req workflow.RunRequest) (workflow.Result, error)
	Retry(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
	Cancel(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
}

type APIHandlers struct {
	engine      Engine
	persistence persistence.Persistence
	validate    *validator.Validate
	definitions *workflow.Validator
}

func NewAPIHandlers(
	engine Engine,
	persistence persistence.Persistence,
	validate *validator.Validate,
	definitions *workflow.Validator,
) *APIHandlers {
	return &APIHandlers{
		engine:      engine,
		persistence: persistence,
		validate:    validate,
		definitions: definitions,
	}
}

// Routes mounts every endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.SaveWorkflow)
	w.Post("/validate", h.ValidateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/run", h.RunWorkflow)
	w.Post("/:id/test", h.TestWorkflow)

	e := router.Group("/executions")
	e.Get("/", h.GetExecutions)
	e.Get("/:id", h.GetExecution)
	e.Post("/:id/retry", h.RetryExecution)
	e.Post("/:id/cancel", h.CancelExecution)

	router.Post("/events", h.PostEvent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	check := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		check = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"persistence": check,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	definitions, err := h.persistence.DefinitionRepository().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return c.JSON(definitions)
	}

	filtered := make([]*models.WorkflowDefinition, 0, len(definitions))

	for _, definition := range definitions {
		if definition.OrganizationID == organizationID {
			filtered = append(filtered, definition)
		}
	}

	return c.JSON(filtered)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	definition, err := h.persistence.DefinitionRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(definition)
}

// SaveWorkflow creates or replaces a definition. Engine maintained counters are kept from the
// stored copy; stored system definitions are immutable.
func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	var definition models.WorkflowDefinition
	if err := c.Bind().JSON(&definition); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if definition.ID == "" {
		definition.ID = uuid.NewString()
	}

	if err := h.definitions.Validate(&definition); err != nil {
		return handleError(c, err)
	}

	created, err := h.persistence.DefinitionRepository().Replace(c.Context(), &definition)
	if err != nil {
		return handleError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}

	return c.Status(status).JSON(&definition)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.persistence.DefinitionRepository().Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateWorkflow checks a JSON or YAML definition document without storing it.
// YAML is selected with a yaml content type or ?format=yaml.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	format := workflow.FormatJSON
	if strings.Contains(c.Get(fiber.HeaderContentType), "yaml") || c.Query("format") == string(workflow.FormatYAML) {
		format = workflow.FormatYAML
	}

	definition, err := workflow.ParseDefinition(c.Body(), format)
	if err == nil {
		err = h.definitions.Validate(definition)
	}

	if err == nil {
		return c.JSON(ValidationResponse{Valid: true})
	}

	var problems *workflow.ValidationError
	if errors.As(err, &problems) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ValidationResponse{Problems: problems.Problems})
	}

	return c.Status(fiber.StatusUnprocessableEntity).JSON(ValidationResponse{Problems: []string{err.Error()}})
}

func (h *APIHandlers) bindRun(c fiber.Ctx) (*RunWorkflowRequest, error) {
	var req RunWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, errInvalidJSON
	}

	if err := h.validate.Struct(req); err != nil {
		return nil, err
	}

	return &req, nil
}

func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	req, err := h.bindRun(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.engine.Run(c.Context(), c.Params("id"), req.toRunRequest())
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) TestWorkflow(c fiber.Ctx) error {
	req, err := h.bindRun(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.Test(c.Context(), c.Params("id"), req.toRunRequest())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	filter, err := parseExecutionFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	executions, err := h.persistence.ExecutionRepository().List(c.Context(), *filter)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
		"limit":      filter.Limit,
	})
}

// parseExecutionFilter reads the list filters from the query string.
func parseExecutionFilter(c fiber.Ctx) (*persistence.ExecutionFilter, error) {
	filter := &persistence.ExecutionFilter{
		WorkflowID:     c.Query("workflow_id"),
		OrganizationID: c.Query("organization_id"),
		TargetType:     models.TargetKind(c.Query("target_type")),
		TargetID:       c.Query("target_id"),
		Status:         models.ExecutionStatus(c.Query("status")),
		Limit:          defaultListLimit,
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		if limit < 1 || limit > maxListLimit {
			return nil, errors.New("limit must be between 1 and " + strconv.Itoa(maxListLimit))
		}

		filter.Limit = limit
	}

	if after := c.Query("completed_after"); after != "" {
		at, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return nil, err
		}

		filter.CompletedAfter = &at
	}

	return filter, nil
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.persistence.ExecutionRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) RetryExecution(c fiber.Ctx) error {
	execution, err := h.engine.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	execution, err := h.engine.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(execution)
}

// PostEvent feeds a helpdesk event to the trigger dispatcher and reports one decision per
// candidate definition.
func (h *APIHandlers) PostEvent(c fiber.Ctx) error {
	var event models.Event
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validate.Struct(event); err != nil {
		return badRequest(c, err.Error())
	}

	if !event.Type.Valid() {
		return badRequest(c, "unknown event type "+strconv.Quote(string(event.Type)))
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	decisions, err := h.engine.TriggerWorkflows(c.Context(), &event)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id":  event.ID,
		"decisions": toDecisionResponses(decisions),
	})
}
