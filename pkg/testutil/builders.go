// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/google/uuid"
)

// TestOrganizationID is the organization every builder defaults to.
const TestOrganizationID = "org-1"

// CreateTestDefinition creates an active ticket_created definition with a single
// priority step. Overrides run in order.
func CreateTestDefinition(overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	now := time.Now().UTC()

	definition := &models.WorkflowDefinition{
		ID:             uuid.NewString(),
		OrganizationID: TestOrganizationID,
		Name:           "Test Workflow",
		TriggerType:    models.TriggerTicketCreated,
		Steps: []*models.Step{
			ActionStep("step1", "priority", map[string]any{"value": "high"}, ""),
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(definition)
	}

	return definition
}

// WithSteps replaces the definition steps.
func WithSteps(steps ...*models.Step) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.Steps = steps
	}
}

// WithTrigger sets the trigger type and match conditions.
func WithTrigger(triggerType models.TriggerType, conditions map[string]any) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.TriggerType = triggerType
		d.Trigger = conditions
	}
}

// WithCooldown sets the per-target cooldown.
func WithCooldown(minutes int) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.CooldownMinutes = minutes
	}
}

// WithMaxExecutions caps completed executions.
func WithMaxExecutions(limit int) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.MaxExecutions = &limit
	}
}

// WithPriority sets the dispatch priority.
func WithPriority(priority int) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.Priority = priority
	}
}

// Inactive marks the definition inactive.
func Inactive() func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.IsActive = false
	}
}

// ConditionStep builds a condition step.
func ConditionStep(id, field, operator string, value any, onTrue, onFalse string) *models.Step {
	return &models.Step{
		ID:        id,
		Type:      models.StepTypeCondition,
		Condition: &models.Condition{Field: field, Operator: operator, Value: value},
		OnTrue:    onTrue,
		OnFalse:   onFalse,
	}
}

// ActionStep builds an action step.
func ActionStep(id, kind string, params map[string]any, next string) *models.Step {
	return &models.Step{
		ID:     id,
		Type:   models.StepTypeAction,
		Action: models.NewActionSpec(kind, params),
		Next:   next,
	}
}

// WaitStep builds a wait step.
func WaitStep(id string, duration float64, unit, next string) *models.Step {
	return &models.Step{
		ID:   id,
		Type: models.StepTypeWait,
		Wait: &models.WaitSpec{Duration: duration, Unit: unit},
		Next: next,
	}
}

// CreateTestTicket creates an open medium priority ticket.
func CreateTestTicket(overrides ...func(*models.Ticket)) *models.Ticket {
	now := time.Now().UTC()

	ticket := &models.Ticket{
		ID:             "ticket-1",
		OrganizationID: TestOrganizationID,
		Subject:        "Printer on fire",
		Status:         "open",
		Priority:       "medium",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(ticket)
	}

	return ticket
}

// CreateTestExecution creates a pending execution of definition against a ticket.
func CreateTestExecution(definition *models.WorkflowDefinition, overrides ...func(*models.WorkflowExecution)) *models.WorkflowExecution {
	now := time.Now().UTC()

	execution := &models.WorkflowExecution{
		ID:             uuid.NewString(),
		WorkflowID:     definition.ID,
		OrganizationID: definition.OrganizationID,
		Status:         models.ExecutionStatusPending,
		TriggerType:    string(definition.TriggerType),
		TargetType:     models.TargetKindTicket,
		TargetID:       "ticket-1",
		Steps:          []models.StepTrace{},
		MaxRetries:     models.DefaultMaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(execution)
	}

	return execution
}

// CompletedAt marks the execution completed at the given time.
func CompletedAt(at time.Time) func(*models.WorkflowExecution) {
	return func(e *models.WorkflowExecution) {
		e.Status = models.ExecutionStatusCompleted
		e.StartedAt = &at
		e.CompletedAt = &at
	}
}

// Failed marks the execution failed after retries attempts.
func Failed(retries int) func(*models.WorkflowExecution) {
	return func(e *models.WorkflowExecution) {
		message := "boom"
		e.Status = models.ExecutionStatusFailed
		e.Error = &message
		e.RetryCount = retries
	}
}

// CreateTestEvent creates a ticket_created event for ticket-1.
func CreateTestEvent(overrides ...func(*models.Event)) *models.Event {
	event := &models.Event{
		ID:             uuid.NewString(),
		Type:           models.TriggerTicketCreated,
		OrganizationID: TestOrganizationID,
		TargetType:     models.TargetKindTicket,
		TargetID:       "ticket-1",
		Payload:        map[string]any{},
		OccurredAt:     time.Now().UTC(),
	}

	for _, override := range overrides {
		override(event)
	}

	return event
}
