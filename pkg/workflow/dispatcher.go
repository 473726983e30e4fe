package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ScheduleFunc hands a freshly created execution to the orchestrator.
type ScheduleFunc func(definition *models.WorkflowDefinition, execution *models.WorkflowExecution)

// SkipReason explains why a definition did not fire for an event.
type SkipReason string

const (
	SkipConditions    SkipReason = "conditions_not_met"
	SkipMaxExecutions SkipReason = "max_executions_reached"
	SkipCooldown      SkipReason = "cooldown_active"
	SkipError         SkipReason = "error"
)

// Decision is the outcome of evaluating one definition against an event.
type Decision struct {
	WorkflowID  string
	ExecutionID string
	Skipped     SkipReason
	Err         error
}

// Dispatcher selects the definitions an event fires and creates their executions.
type Dispatcher struct {
	logger      *slog.Logger
	definitions persistence.DefinitionRepository
	executions  persistence.ExecutionRepository
	clock       clockwork.Clock
	schedule    ScheduleFunc
}

// NewDispatcher creates a dispatcher. schedule runs every created execution.
func NewDispatcher(
	logger *slog.Logger,
	definitions persistence.DefinitionRepository,
	executions persistence.ExecutionRepository,
	clock clockwork.Clock,
	schedule ScheduleFunc,
) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Dispatcher{
		logger:      logger.With("module", "trigger_dispatcher"),
		definitions: definitions,
		executions:  executions,
		clock:       clock,
		schedule:    schedule,
	}
}

// Dispatch evaluates every active definition of the event's organization and trigger type,
// lowest priority first. A failure on one definition is logged and does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.Event) ([]Decision, error) {
	definitions, err := d.definitions.FindActiveByTriggerType(ctx, event.OrganizationID, event.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions for %s: %w", event.Type, err)
	}

	slices.SortStableFunc(definitions, func(a, b *models.WorkflowDefinition) int {
		return a.Priority - b.Priority
	})

	logger := d.logger.With(
		"event_type", event.Type,
		"organization_id", event.OrganizationID,
		"target_type", event.TargetType,
		"target_id", event.TargetID,
	)

	logger.DebugContext(ctx, "Matching event against workflows", "workflows_count", len(definitions))

	decisions := make([]Decision, 0, len(definitions))

	for _, definition := range definitions {
		decision := d.consider(ctx, definition, event)
		decisions = append(decisions, decision)

		switch {
		case decision.Err != nil:
			logger.ErrorContext(ctx, "Failed to evaluate workflow", "workflow_id", definition.ID, "error", decision.Err)
		case decision.Skipped != "":
			logger.DebugContext(ctx, "Workflow skipped", "workflow_id", definition.ID, "reason", decision.Skipped)
		default:
			logger.InfoContext(ctx, "Workflow triggered", "workflow_id", definition.ID, "execution_id", decision.ExecutionID)
		}
	}

	return decisions, nil
}

func (d *Dispatcher) consider(ctx context.Context, definition *models.WorkflowDefinition, event *models.Event) (decision Decision) {
	decision.WorkflowID = definition.ID

	defer func() {
		if r := recover(); r != nil {
			decision.Skipped = SkipError
			decision.Err = fmt.Errorf("panic while evaluating workflow: %v", r)
		}
	}()

	if !MatchTrigger(definition.Trigger, event.Payload) {
		decision.Skipped = SkipConditions

		return decision
	}

	if definition.MaxExecutions != nil {
		completed, err := d.executions.Count(ctx, persistence.ExecutionFilter{
			WorkflowID: definition.ID,
			Status:     models.ExecutionStatusCompleted,
		})
		if err != nil {
			decision.Skipped, decision.Err = SkipError, err

			return decision
		}

		if completed >= *definition.MaxExecutions {
			decision.Skipped = SkipMaxExecutions

			return decision
		}
	}

	if definition.CooldownMinutes > 0 {
		since := d.clock.Now().Add(-time.Duration(definition.CooldownMinutes) * time.Minute)

		recent, err := d.executions.FindOne(ctx, persistence.ExecutionFilter{
			WorkflowID:     definition.ID,
			TargetType:     event.TargetType,
			TargetID:       event.TargetID,
			ExactTarget:    true,
			Status:         models.ExecutionStatusCompleted,
			CompletedAfter: &since,
		})
		if err != nil {
			decision.Skipped, decision.Err = SkipError, err

			return decision
		}

		if recent != nil {
			decision.Skipped = SkipCooldown

			return decision
		}
	}

	execution := NewExecution(definition, string(event.Type), d.clock.Now())
	execution.TriggerData = event.Snapshot()
	execution.TargetType = event.TargetType
	execution.TargetID = event.TargetID

	_, err := d.executions.Create(ctx, execution)
	if err != nil {
		decision.Skipped, decision.Err = SkipError, fmt.Errorf("failed to create execution: %w", err)

		return decision
	}

	decision.ExecutionID = execution.ID

	if d.schedule != nil {
		d.schedule(definition, execution)
	}

	return decision
}

// NewExecution builds a pending execution of definition.
func NewExecution(definition *models.WorkflowDefinition, triggerType string, now time.Time) *models.WorkflowExecution {
	now = now.UTC()

	return &models.WorkflowExecution{
		ID:             uuid.NewString(),
		WorkflowID:     definition.ID,
		OrganizationID: definition.OrganizationID,
		Status:         models.ExecutionStatusPending,
		TriggerType:    triggerType,
		MaxRetries:     models.DefaultMaxRetries,
		Steps:          []models.StepTrace{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
