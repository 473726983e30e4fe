package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/deskflow/pkg/actions/wait"
	"github.com/dukex/deskflow/pkg/condition"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/jonboulle/clockwork"
)

// DefaultMaxSteps bounds a single walk.
const DefaultMaxSteps = 1000

// ActionDispatcher runs one action step. *registry.Registry implements it.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, spec models.ActionSpec, execCtx *models.ExecutionContext) (map[string]any, error)
}

// CancelCheck reports whether the execution has been flagged cancelled. It runs before every step.
type CancelCheck func(ctx context.Context) (bool, error)

// WalkOptions tune a single walk.
type WalkOptions struct {
	CancelCheck CancelCheck
	// OnStep is called after every trace entry is recorded, including failed ones.
	OnStep func(ctx context.Context, trace models.StepTrace)
}

// WalkResult is the trace and aggregated results of a walk, complete or partial.
type WalkResult struct {
	Trace   []models.StepTrace
	Results map[string]any
}

// stepRunner executes one step and returns its result and the id of the next step.
type stepRunner func(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) (any, string, error)

// Walker walks a step graph from its entry step to a terminal step.
type Walker struct {
	actions  ActionDispatcher
	clock    clockwork.Clock
	maxSteps int
	runners  map[models.StepType]stepRunner
}

// NewWalker creates a walker. maxSteps <= 0 means DefaultMaxSteps.
func NewWalker(actions ActionDispatcher, clock clockwork.Clock, maxSteps int) *Walker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	w := &Walker{actions: actions, clock: clock, maxSteps: maxSteps}
	w.runners = map[models.StepType]stepRunner{
		models.StepTypeCondition: w.runCondition,
		models.StepTypeAction:    w.runAction,
		models.StepTypeWait:      w.runWait,
		models.StepTypeApproval:  w.runApproval,
	}

	return w
}

// Walk starts at steps[0] and follows graph edges until a step yields an empty next id.
// On failure the returned result still holds every trace entry recorded so far.
func (w *Walker) Walk(ctx context.Context, steps []*models.Step, execCtx *models.ExecutionContext, opts WalkOptions) (*WalkResult, error) {
	result := &WalkResult{Results: execCtx.Results}
	if result.Results == nil {
		result.Results = make(map[string]any)
		execCtx.Results = result.Results
	}

	if len(steps) == 0 || steps[0] == nil {
		return result, ErrEmptyWorkflow
	}

	index := make(map[string]*models.Step, len(steps))
	for _, step := range steps {
		if step != nil {
			index[step.ID] = step
		}
	}

	currentStepID := steps[0].ID

	for visited := 0; currentStepID != ""; visited++ {
		if visited >= w.maxSteps {
			return result, fmt.Errorf("%w: %d", ErrStepLimitExceeded, w.maxSteps)
		}

		step, ok := index[currentStepID]
		if !ok {
			return result, fmt.Errorf("%w: %s", ErrStepNotFound, currentStepID)
		}

		err := w.checkCancelled(ctx, opts.CancelCheck)
		if err != nil {
			return result, &StepError{StepID: step.ID, Err: err}
		}

		if execCtx.Execution != nil {
			execCtx.Execution.CurrentStep = step.ID
		}

		next, trace, err := w.runStep(ctx, step, execCtx)
		result.Trace = append(result.Trace, trace)

		if opts.OnStep != nil {
			opts.OnStep(ctx, trace)
		}

		if err != nil {
			return result, &StepError{StepID: step.ID, Err: err}
		}

		result.Results[step.ID] = trace.Result
		currentStepID = next
	}

	return result, nil
}

func (w *Walker) checkCancelled(ctx context.Context, check CancelCheck) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if check == nil {
		return nil
	}

	cancelled, err := check(ctx)
	if err != nil {
		return fmt.Errorf("failed to check cancellation: %w", err)
	}

	if cancelled {
		return ErrCancellationRequested
	}

	return nil
}

func (w *Walker) runStep(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) (string, models.StepTrace, error) {
	trace := models.StepTrace{
		StepID:    step.ID,
		StepName:  step.DisplayName(),
		StepType:  step.Type,
		StartedAt: w.clock.Now().UTC(),
	}

	var (
		result any
		next   string
		err    error
	)

	runner, ok := w.runners[step.Type]
	if ok {
		result, next, err = runner(ctx, step, execCtx)
	} else {
		err = fmt.Errorf("%w: %s", ErrUnknownStepType, step.Type)
	}

	trace.CompletedAt = w.clock.Now().UTC()
	trace.DurationMs = trace.CompletedAt.Sub(trace.StartedAt).Milliseconds()

	if err != nil {
		trace.Status = models.StepStatusFailed
		trace.Error = err.Error()

		return "", trace, err
	}

	trace.Status = models.StepStatusCompleted
	trace.Result = result

	return next, trace, nil
}

func (w *Walker) runCondition(_ context.Context, step *models.Step, execCtx *models.ExecutionContext) (any, string, error) {
	if step.Condition == nil {
		return nil, "", fmt.Errorf("%w: condition step without condition", ErrInvalidStep)
	}

	value := ResolveField(execCtx, step.Condition.Field)

	matched, err := condition.Evaluate(value, step.Condition.Operator, step.Condition.Value)
	if err != nil {
		return nil, "", err
	}

	if matched {
		return true, step.OnTrue, nil
	}

	return false, step.OnFalse, nil
}

func (w *Walker) runAction(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) (any, string, error) {
	if step.Action == nil || step.Action.Type == "" {
		return nil, "", fmt.Errorf("%w: action step without action type", ErrInvalidStep)
	}

	result, err := w.actions.Dispatch(ctx, *step.Action, execCtx)
	if err != nil {
		return nil, "", err
	}

	return result, step.Next, nil
}

func (w *Walker) runWait(ctx context.Context, step *models.Step, execCtx *models.ExecutionContext) (any, string, error) {
	if step.Wait == nil {
		return nil, "", fmt.Errorf("%w: wait step without duration", ErrInvalidStep)
	}

	d := wait.Duration(step.Wait.Duration, step.Wait.Unit)
	result := map[string]any{"waitMs": d.Milliseconds(), "waited": false}

	if execCtx.TestMode || d <= 0 {
		return result, step.Next, nil
	}

	err := wait.Sleep(ctx, w.clock, d)
	if err != nil {
		return nil, "", err
	}

	result["waited"] = true

	return result, step.Next, nil
}

func (w *Walker) runApproval(_ context.Context, step *models.Step, execCtx *models.ExecutionContext) (any, string, error) {
	if !execCtx.TestMode {
		return nil, "", ErrApprovalNotImplemented
	}

	return map[string]any{"approved": true, "autoApproved": true}, step.Next, nil
}

var contextRoots = map[string]bool{
	"target": true, "variables": true, "results": true, "trigger": true, "execution": true, "workflow": true,
}

// ResolveField resolves a condition field against the execution context.
// Paths rooted at target, variables, results, trigger, execution or workflow are looked up as is;
// any other path is read from the target entity, so "priority" means "target.priority".
func ResolveField(execCtx *models.ExecutionContext, field string) any {
	root, _, _ := strings.Cut(field, ".")
	if !contextRoots[root] {
		field = "target." + field
	}

	value, _ := condition.Resolve(execCtx.Data(), field)

	return value
}
