// Package workflow walks step graphs, matches events to definitions and owns execution lifecycles.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/dukex/deskflow/pkg/eventbus"
	"github.com/dukex/deskflow/pkg/events"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/otelhelper"
	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/dukex/deskflow/pkg/registry"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options configure an Engine. Definitions, Executions, Targets and Actions are required.
type Options struct {
	Logger      *slog.Logger
	Definitions persistence.DefinitionRepository
	Executions  persistence.ExecutionRepository
	Targets     helpdesk.TargetLoader
	Actions     ActionDispatcher
	Guard       Guard
	Publisher   eventbus.EventPublisher
	Tracer      trace.Tracer
	Clock       clockwork.Clock
	MaxSteps    int
	WorkerID    string
}

// Result is the outcome of one execution run.
type Result struct {
	ExecutionID string                 `json:"executionId"`
	Status      models.ExecutionStatus `json:"status"`
	Steps       []models.StepTrace     `json:"steps"`
	Result      map[string]any         `json:"result"`
	Error       string                 `json:"error,omitempty"`
	DurationMs  int64                  `json:"duration"`
}

// RunRequest describes a manual or test invocation of a definition.
type RunRequest struct {
	TargetType   models.TargetKind `json:"target_type,omitempty"`
	TargetID     string            `json:"target_id,omitempty"`
	Variables    map[string]any    `json:"variables,omitempty"`
	TriggerData  map[string]any    `json:"trigger_data,omitempty"`
	ExecutedByID string            `json:"executed_by_id,omitempty"`
}

// Engine orchestrates executions from creation to a terminal state.
type Engine struct {
	logger      *slog.Logger
	definitions persistence.DefinitionRepository
	executions  persistence.ExecutionRepository
	targets     helpdesk.TargetLoader
	walker      *Walker
	dispatcher  *Dispatcher
	guard       Guard
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	clock       clockwork.Clock
	workerID    string

	background context.Context
	stop       context.CancelFunc
	tasks      sync.WaitGroup
}

// NewEngine wires an engine from opts.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if opts.Guard == nil {
		opts.Guard = NewMemoryGuard()
	}

	if opts.Tracer == nil {
		opts.Tracer = otelhelper.NoopTracer()
	}

	background, stop := context.WithCancel(context.Background())

	e := &Engine{
		logger:      opts.Logger.With("module", "workflow_engine"),
		definitions: opts.Definitions,
		executions:  opts.Executions,
		targets:     opts.Targets,
		walker:      NewWalker(opts.Actions, opts.Clock, opts.MaxSteps),
		guard:       opts.Guard,
		publisher:   opts.Publisher,
		tracer:      opts.Tracer,
		clock:       opts.Clock,
		workerID:    opts.WorkerID,
		background:  background,
		stop:        stop,
	}

	e.dispatcher = NewDispatcher(opts.Logger, opts.Definitions, opts.Executions, opts.Clock, e.enqueue)

	return e
}

// Execute runs execution to a terminal state and persists every transition.
// A failed walk is recorded on the execution and also returned.
func (e *Engine) Execute(ctx context.Context, definition *models.WorkflowDefinition, execution *models.WorkflowExecution) (*Result, error) {
	acquired, err := e.guard.Acquire(ctx, execution.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim execution %s: %w", execution.ID, err)
	}

	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrExecutionInFlight, execution.ID)
	}

	defer e.release(execution.ID)

	return e.execute(ctx, definition, execution)
}

func (e *Engine) release(executionID string) {
	err := e.guard.Release(context.Background(), executionID)
	if err != nil {
		e.logger.Error("Failed to release execution", "execution_id", executionID, "error", err)
	}
}

// execute assumes the guard for execution.ID is held.
func (e *Engine) execute(ctx context.Context, definition *models.WorkflowDefinition, execution *models.WorkflowExecution) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, definition.ID),
		attribute.String(otelhelper.WorkflowNameKey, definition.Name),
		attribute.String(otelhelper.OrganizationIDKey, definition.OrganizationID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.TriggerTypeKey, execution.TriggerType),
	)
	defer span.End()

	logger := e.logger.With(
		"workflow_id", definition.ID,
		"execution_id", execution.ID,
		"trigger_type", execution.TriggerType,
		"retry_count", execution.RetryCount,
	)

	// Persistence of the final state must survive a cancelled caller context.
	store := context.WithoutCancel(ctx)

	cancelled, err := e.cancelCheck(execution.ID)(store)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to read execution state: %w", err)
	}

	if cancelled || execution.Status == models.ExecutionStatusCancelled {
		execution.Status = models.ExecutionStatusCancelled
		logger.InfoContext(ctx, "Execution cancelled before start")

		return e.resultOf(execution), ErrCancellationRequested
	}

	start := e.clock.Now().UTC()
	execution.Status = models.ExecutionStatusRunning
	execution.StartedAt = &start
	execution.CompletedAt = nil
	execution.DurationMs = 0
	execution.Steps = []models.StepTrace{}
	execution.Result = nil
	execution.CurrentStep = ""
	execution.UpdatedAt = start

	err = e.executions.Update(store, execution)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to mark execution running: %w", err)
	}

	logger.InfoContext(ctx, "Starting execution")
	e.publish(store, execution.ID, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, execution),
		ExecutionID: execution.ID,
		TriggerType: execution.TriggerType,
		TargetType:  execution.TargetType,
		TargetID:    execution.TargetID,
		RetryCount:  execution.RetryCount,
	})

	walk, err := e.walk(ctx, definition, execution, logger)
	if walk != nil {
		execution.Steps = walk.Trace
		execution.Result = walk.Results
	}

	e.finalize(store, definition, execution, err)

	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionStatus, string(execution.Status)))
		logger.ErrorContext(ctx, "Execution failed", "status", execution.Status, "error", err)

		return e.resultOf(execution), err
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionStatus, string(execution.Status)))
	logger.InfoContext(ctx, "Execution completed", "duration_ms", execution.DurationMs, "steps", len(execution.Steps))

	return e.resultOf(execution), nil
}

func (e *Engine) walk(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	execution *models.WorkflowExecution,
	logger *slog.Logger,
) (*WalkResult, error) {
	target, err := e.hydrate(ctx, execution.TargetType, execution.TargetID)
	if err != nil {
		return nil, err
	}

	execCtx := models.NewExecutionContext(definition, execution, target)
	execCtx.Logger = logger

	walk, err := e.walker.Walk(ctx, definition.Steps, execCtx, WalkOptions{
		CancelCheck: e.cancelCheck(execution.ID),
		OnStep:      e.traceStep,
	})

	// The stored execution records the variables the run actually saw.
	execution.Variables = execCtx.Variables

	return walk, err
}

func (e *Engine) hydrate(ctx context.Context, kind models.TargetKind, id string) (*models.Target, error) {
	if kind == "" || id == "" {
		return nil, nil
	}

	target, err := e.targets.Load(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}

	if target == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrTargetNotFound, kind, id)
	}

	return target, nil
}

func (e *Engine) cancelCheck(executionID string) CancelCheck {
	return func(ctx context.Context) (bool, error) {
		current, err := e.executions.GetByID(ctx, executionID)
		if err != nil {
			return false, err
		}

		return current.Status == models.ExecutionStatusCancelled, nil
	}
}

func (e *Engine) traceStep(ctx context.Context, step models.StepTrace) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("step", trace.WithAttributes(
		attribute.String(otelhelper.StepIDKey, step.StepID),
		attribute.String(otelhelper.StepTypeKey, string(step.StepType)),
		attribute.String("status", string(step.Status)),
	))
}

func (e *Engine) finalize(ctx context.Context, definition *models.WorkflowDefinition, execution *models.WorkflowExecution, walkErr error) {
	completed := e.clock.Now().UTC()
	execution.CompletedAt = &completed
	execution.UpdatedAt = completed

	if execution.StartedAt != nil {
		execution.DurationMs = completed.Sub(*execution.StartedAt).Milliseconds()
	}

	switch {
	case walkErr == nil:
		execution.Status = models.ExecutionStatusCompleted
		execution.Error = nil
		execution.ErrorDetails = nil
		execution.NextRetryAt = nil
	case errors.Is(walkErr, ErrCancellationRequested):
		execution.Status = models.ExecutionStatusCancelled
		execution.Error, execution.ErrorDetails = describe(walkErr)
	default:
		execution.Status = models.ExecutionStatusFailed
		execution.Error, execution.ErrorDetails = describe(walkErr)
		execution.NextRetryAt = nil

		if execution.CanRetry() {
			next := completed.Add(time.Duration(execution.RetryCount+1) * time.Minute)
			execution.NextRetryAt = &next
		}
	}

	err := e.executions.Update(ctx, execution)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist execution", "execution_id", execution.ID, "error", err)
	}

	run := models.RunRecord{
		ExecutionID: execution.ID,
		Status:      execution.Status,
		TriggerType: execution.TriggerType,
		At:          completed,
		DurationMs:  execution.DurationMs,
	}
	if execution.Error != nil {
		run.Error = *execution.Error
	}

	err = e.definitions.RecordRun(ctx, definition.ID, run)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to update workflow statistics", "workflow_id", definition.ID, "error", err)
	}

	e.publishOutcome(ctx, execution)
}

func (e *Engine) publishOutcome(ctx context.Context, execution *models.WorkflowExecution) {
	stepID := ""
	if execution.ErrorDetails != nil {
		stepID = execution.ErrorDetails.StepID
	}

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		e.publish(ctx, execution.ID, events.ExecutionCompleted{
			BaseEvent:   e.baseEvent(events.ExecutionCompletedEvent, execution),
			ExecutionID: execution.ID,
			Result:      execution.Result,
			DurationMs:  execution.DurationMs,
		})
	case models.ExecutionStatusCancelled:
		e.publish(ctx, execution.ID, events.ExecutionCancelled{
			BaseEvent:   e.baseEvent(events.ExecutionCancelledEvent, execution),
			ExecutionID: execution.ID,
			StepID:      stepID,
		})
	default:
		message := ""
		if execution.Error != nil {
			message = *execution.Error
		}

		e.publish(ctx, execution.ID, events.ExecutionFailed{
			BaseEvent:   e.baseEvent(events.ExecutionFailedEvent, execution),
			ExecutionID: execution.ID,
			StepID:      stepID,
			Error:       message,
			DurationMs:  execution.DurationMs,
			RetryCount:  execution.RetryCount,
			CanRetry:    execution.CanRetry(),
		})
	}
}

// describe turns a walk error into the stored message and details.
// Stack lists the wrapped error chain, outermost first.
func describe(err error) (*string, *models.ErrorDetails) {
	message := err.Error()
	details := &models.ErrorDetails{Message: message}

	var chain []string
	for current := err; current != nil; current = errors.Unwrap(current) {
		chain = append(chain, fmt.Sprintf("%T: %v", current, current))
	}

	details.Stack = strings.Join(chain, "\n")

	var stepErr *StepError
	if errors.As(err, &stepErr) {
		details.StepID = stepErr.StepID
	}

	details.Kind = errorKind(err)

	var actionErr *registry.ActionExecutionError
	if errors.As(err, &actionErr) {
		details.Payload = map[string]any{"action": actionErr.Kind, "cause": actionErr.Err.Error()}
	}

	return &message, details
}

func errorKind(err error) string {
	kinds := []struct {
		target error
		kind   string
	}{
		{ErrCancellationRequested, "CancellationRequested"},
		{ErrApprovalNotImplemented, "ApprovalNotImplemented"},
		{ErrStepNotFound, "StepNotFound"},
		{ErrStepLimitExceeded, "StepLimitExceeded"},
		{ErrTargetNotFound, "TargetNotFound"},
		{registry.ErrUnknownActionType, "UnknownActionType"},
		{context.Canceled, "Cancelled"},
		{context.DeadlineExceeded, "Timeout"},
	}

	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}

	if registry.IsActionExecution(err) {
		return "ActionExecutionError"
	}

	return "Error"
}

// ExecuteTest runs definition synchronously in test mode. Nothing is persisted and no action has
// side effects. It never returns an error: failures, panics included, are reported in the result.
func (e *Engine) ExecuteTest(ctx context.Context, definition *models.WorkflowDefinition, execution *models.WorkflowExecution) (result Result) {
	start := e.clock.Now()

	if definition == nil || execution == nil {
		return Result{
			Status: models.ExecutionStatusFailed,
			Error:  "test run needs a workflow and an execution",
			Steps:  []models.StepTrace{},
			Result: map[string]any{},
		}
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute_test",
		attribute.String(otelhelper.WorkflowIDKey, definition.ID),
		attribute.Bool(otelhelper.TestModeKey, true),
	)
	defer span.End()

	run := *execution
	run.Variables = maps.Clone(execution.Variables)

	if run.TriggerType == "" {
		run.TriggerType = models.TriggerTest
	}

	result = Result{ExecutionID: run.ID, Steps: []models.StepTrace{}, Result: map[string]any{}}

	defer func() {
		if r := recover(); r != nil {
			result.Status = models.ExecutionStatusFailed
			result.Error = fmt.Sprintf("panic: %v", r)
		}

		result.DurationMs = e.clock.Since(start).Milliseconds()
	}()

	target, err := e.hydrate(ctx, run.TargetType, run.TargetID)
	if err != nil {
		result.Status = models.ExecutionStatusFailed
		result.Error = err.Error()

		return result
	}

	execCtx := models.NewExecutionContext(definition, &run, target)
	execCtx.TestMode = true
	execCtx.Logger = e.logger.With("workflow_id", definition.ID, "test_mode", true)

	walk, err := e.walker.Walk(ctx, definition.Steps, execCtx, WalkOptions{OnStep: e.traceStep})
	if walk != nil {
		result.Steps = walk.Trace
		result.Result = walk.Results
	}

	if err != nil {
		otelhelper.SetError(span, err)

		result.Status = models.ExecutionStatusFailed
		result.Error = err.Error()

		return result
	}

	result.Status = models.ExecutionStatusCompleted

	return result
}

// TriggerWorkflows fires every definition matching event. Executions run in the background.
func (e *Engine) TriggerWorkflows(ctx context.Context, event *models.Event) ([]Decision, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.trigger",
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(event.Type)),
		attribute.String(otelhelper.OrganizationIDKey, event.OrganizationID),
	)
	defer span.End()

	decisions, err := e.dispatcher.Dispatch(ctx, event)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return decisions, nil
}

// Run creates a manual execution of an active definition and runs it in the background.
func (e *Engine) Run(ctx context.Context, workflowID string, req RunRequest) (*models.WorkflowExecution, error) {
	definition, err := e.definitions.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !definition.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowInactive, workflowID)
	}

	execution := e.newRequestedExecution(definition, models.TriggerManual, req)

	_, err = e.executions.Create(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	e.enqueue(definition, execution)

	return execution, nil
}

// Test loads a definition and runs it through ExecuteTest.
func (e *Engine) Test(ctx context.Context, workflowID string, req RunRequest) (Result, error) {
	definition, err := e.definitions.GetByID(ctx, workflowID)
	if err != nil {
		return Result{}, err
	}

	return e.ExecuteTest(ctx, definition, e.newRequestedExecution(definition, models.TriggerTest, req)), nil
}

func (e *Engine) newRequestedExecution(definition *models.WorkflowDefinition, triggerType string, req RunRequest) *models.WorkflowExecution {
	execution := NewExecution(definition, triggerType, e.clock.Now())
	execution.TargetType = req.TargetType
	execution.TargetID = req.TargetID
	execution.Variables = req.Variables
	execution.TriggerData = req.TriggerData

	if req.ExecutedByID != "" {
		executedBy := req.ExecutedByID
		execution.ExecutedByID = &executedBy
	}

	return execution
}

// Retry re-runs a failed execution under the same id. It is rejected unless the execution is
// failed with retry budget left, and while another walk for it is in flight.
func (e *Engine) Retry(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	acquired, err := e.guard.Acquire(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim execution %s: %w", executionID, err)
	}

	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrExecutionInFlight, executionID)
	}

	execution, definition, err := e.prepareRetry(ctx, executionID)
	if err != nil {
		e.release(executionID)

		return nil, err
	}

	e.logger.InfoContext(ctx, "Retrying execution", "execution_id", executionID, "retry_count", execution.RetryCount)

	snapshot := *execution

	e.spawn(func(ctx context.Context) {
		defer e.release(executionID)

		_, err := e.execute(ctx, definition, execution)
		if err != nil {
			e.logger.ErrorContext(ctx, "Retried execution failed", "execution_id", executionID, "error", err)
		}
	})

	return &snapshot, nil
}

func (e *Engine) prepareRetry(ctx context.Context, executionID string) (*models.WorkflowExecution, *models.WorkflowDefinition, error) {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}

	if execution.Status != models.ExecutionStatusFailed {
		return nil, nil, fmt.Errorf("%w: execution %s is %s", ErrRetryNotAllowed, executionID, execution.Status)
	}

	if execution.RetryCount >= execution.MaxRetries {
		return nil, nil, fmt.Errorf("%w: %d of %d retries used", ErrRetryExhausted, execution.RetryCount, execution.MaxRetries)
	}

	definition, err := e.definitions.GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, nil, err
	}

	execution.Status = models.ExecutionStatusPending
	execution.Error = nil
	execution.ErrorDetails = nil
	execution.NextRetryAt = nil
	execution.RetryCount++
	execution.UpdatedAt = e.clock.Now().UTC()

	err = e.executions.Update(ctx, execution)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reset execution: %w", err)
	}

	return execution, definition, nil
}

// Cancel flags a pending or running execution. A running walk stops before its next step.
func (e *Engine) Cancel(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusPending && execution.Status != models.ExecutionStatusRunning {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrCancelNotAllowed, executionID, execution.Status)
	}

	execution.Status = models.ExecutionStatusCancelled
	execution.UpdatedAt = e.clock.Now().UTC()

	err = e.executions.Update(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel execution: %w", err)
	}

	e.logger.InfoContext(ctx, "Execution cancellation requested", "execution_id", executionID)

	return execution, nil
}

// Wait blocks until every background execution has finished.
func (e *Engine) Wait() {
	e.tasks.Wait()
}

// Shutdown cancels background executions and waits for them.
func (e *Engine) Shutdown() {
	e.stop()
	e.tasks.Wait()
}

// enqueue runs execution in the background; failures are logged, not returned.
func (e *Engine) enqueue(definition *models.WorkflowDefinition, execution *models.WorkflowExecution) {
	e.spawn(func(ctx context.Context) {
		_, err := e.Execute(ctx, definition, execution)
		if err != nil {
			e.logger.ErrorContext(ctx, "Background execution failed",
				"workflow_id", definition.ID,
				"execution_id", execution.ID,
				"error", err)
		}
	})
}

func (e *Engine) spawn(task func(ctx context.Context)) {
	e.tasks.Add(1)

	go func() {
		defer e.tasks.Done()

		task(e.background)
	}()
}

func (e *Engine) baseEvent(eventType events.EventType, execution *models.WorkflowExecution) events.BaseEvent {
	base := events.NewBaseEvent(eventType, execution.OrganizationID, execution.WorkflowID)
	base.WorkerID = e.workerID

	if e.publisher != nil {
		if bus, ok := e.publisher.(eventbus.EventBus); ok {
			base.ID = bus.GenerateID()
		}
	}

	return base
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) resultOf(execution *models.WorkflowExecution) *Result {
	result := &Result{
		ExecutionID: execution.ID,
		Status:      execution.Status,
		Steps:       execution.Steps,
		Result:      execution.Result,
		DurationMs:  execution.DurationMs,
	}

	if execution.Error != nil {
		result.Error = *execution.Error
	}

	return result
}
