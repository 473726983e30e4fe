package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/deskflow/pkg/condition"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFunc func(ctx context.Context, spec models.ActionSpec, execCtx *models.ExecutionContext) (map[string]any, error)

func (f dispatchFunc) Dispatch(ctx context.Context, spec models.ActionSpec, execCtx *models.ExecutionContext) (map[string]any, error) {
	return f(ctx, spec, execCtx)
}

// echoDispatcher returns the action value under "<type>".
func echoDispatcher() dispatchFunc {
	return func(_ context.Context, spec models.ActionSpec, _ *models.ExecutionContext) (map[string]any, error) {
		return map[string]any{spec.Type: spec.Value()}, nil
	}
}

func ticketExecContext(priority string) *models.ExecutionContext {
	definition := testutil.CreateTestDefinition()
	ticket := testutil.CreateTestTicket(func(t *models.Ticket) { t.Priority = priority })

	return models.NewExecutionContext(definition, testutil.CreateTestExecution(definition), models.TicketTarget(ticket))
}

func branchingSteps() []*models.Step {
	return []*models.Step{
		testutil.ConditionStep("step1", "priority", condition.OpEqual, "alta", "step2", "step3"),
		testutil.ActionStep("step2", "assign", map[string]any{"value": 42}, ""),
		testutil.ActionStep("step3", "assign_to_team", map[string]any{"value": 7}, ""),
	}
}

func TestWalker_Walk_Branches(t *testing.T) {
	tests := []struct {
		name     string
		priority string
		trace    []string
		results  map[string]any
	}{
		{
			name:     "true branch",
			priority: "alta",
			trace:    []string{"step1", "step2"},
			results:  map[string]any{"step1": true, "step2": map[string]any{"assign": 42}},
		},
		{
			name:     "false branch",
			priority: "baja",
			trace:    []string{"step1", "step3"},
			results:  map[string]any{"step1": false, "step3": map[string]any{"assign_to_team": 7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			walker := NewWalker(echoDispatcher(), clockwork.NewFakeClock(), 0)

			result, err := walker.Walk(context.Background(), branchingSteps(), ticketExecContext(tt.priority), WalkOptions{})
			require.NoError(t, err)

			ids := make([]string, 0, len(result.Trace))
			for _, entry := range result.Trace {
				ids = append(ids, entry.StepID)
				assert.Equal(t, models.StepStatusCompleted, entry.Status)
			}

			assert.Equal(t, tt.trace, ids)
			assert.Equal(t, tt.results, result.Results)
		})
	}
}

func TestWalker_Walk_Deterministic(t *testing.T) {
	walker := NewWalker(echoDispatcher(), clockwork.NewFakeClock(), 0)

	first, err := walker.Walk(context.Background(), branchingSteps(), ticketExecContext("alta"), WalkOptions{})
	require.NoError(t, err)

	second, err := walker.Walk(context.Background(), branchingSteps(), ticketExecContext("alta"), WalkOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	assert.Len(t, second.Trace, len(first.Trace))
}

func TestWalker_Walk_Errors(t *testing.T) {
	failing := dispatchFunc(func(context.Context, models.ActionSpec, *models.ExecutionContext) (map[string]any, error) {
		return nil, errors.New("smtp down")
	})

	tests := []struct {
		name      string
		steps     []*models.Step
		actions   ActionDispatcher
		wantErr   error
		traceLen  int
		failingID string
	}{
		{
			name:    "empty workflow",
			steps:   nil,
			actions: echoDispatcher(),
			wantErr: ErrEmptyWorkflow,
		},
		{
			name: "dangling reference",
			steps: []*models.Step{
				testutil.ActionStep("step1", "assign", map[string]any{"value": 1}, "ghost"),
			},
			actions:  echoDispatcher(),
			wantErr:  ErrStepNotFound,
			traceLen: 1,
		},
		{
			name: "action failure keeps partial trace",
			steps: []*models.Step{
				testutil.ActionStep("step1", "assign", map[string]any{"value": 1}, "step2"),
				testutil.ActionStep("step2", "send_email", map[string]any{"template": "x"}, ""),
			},
			actions:   failing,
			traceLen:  1,
			failingID: "step1",
		},
		{
			name: "unknown operator",
			steps: []*models.Step{
				testutil.ConditionStep("step1", "priority", "resembles", "alta", "", ""),
			},
			actions:   echoDispatcher(),
			wantErr:   condition.ErrUnknownOperator,
			traceLen:  1,
			failingID: "step1",
		},
		{
			name: "live approval",
			steps: []*models.Step{
				{ID: "step1", Type: models.StepTypeApproval},
			},
			actions:   echoDispatcher(),
			wantErr:   ErrApprovalNotImplemented,
			traceLen:  1,
			failingID: "step1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			walker := NewWalker(tt.actions, clockwork.NewFakeClock(), 0)

			result, err := walker.Walk(context.Background(), tt.steps, ticketExecContext("alta"), WalkOptions{})
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			require.NotNil(t, result)
			assert.Len(t, result.Trace, tt.traceLen)

			if tt.failingID != "" {
				var stepErr *StepError
				require.ErrorAs(t, err, &stepErr)
				assert.Equal(t, tt.failingID, stepErr.StepID)

				last := result.Trace[len(result.Trace)-1]
				assert.Equal(t, models.StepStatusFailed, last.Status)
				assert.NotEmpty(t, last.Error)
			}
		})
	}
}

func TestWalker_Walk_StepLimit(t *testing.T) {
	steps := []*models.Step{
		testutil.ActionStep("a", "noop", nil, "b"),
		testutil.ActionStep("b", "noop", nil, "a"),
	}

	walker := NewWalker(echoDispatcher(), clockwork.NewFakeClock(), 5)

	result, err := walker.Walk(context.Background(), steps, ticketExecContext("alta"), WalkOptions{})
	require.ErrorIs(t, err, ErrStepLimitExceeded)
	assert.Len(t, result.Trace, 5)
}

func TestWalker_Walk_Cancellation(t *testing.T) {
	checks := 0
	check := func(context.Context) (bool, error) {
		checks++

		return checks > 1, nil
	}

	walker := NewWalker(echoDispatcher(), clockwork.NewFakeClock(), 0)

	result, err := walker.Walk(context.Background(), branchingSteps(), ticketExecContext("alta"), WalkOptions{CancelCheck: check})
	require.ErrorIs(t, err, ErrCancellationRequested)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "step2", stepErr.StepID)
	assert.Len(t, result.Trace, 1)
}

func TestWalker_Walk_OnStep(t *testing.T) {
	var seen []string

	walker := NewWalker(echoDispatcher(), clockwork.NewFakeClock(), 0)

	_, err := walker.Walk(context.Background(), branchingSteps(), ticketExecContext("alta"), WalkOptions{
		OnStep: func(_ context.Context, trace models.StepTrace) {
			seen = append(seen, trace.StepID)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"step1", "step2"}, seen)
}

func TestWalker_Walk_Wait(t *testing.T) {
	steps := []*models.Step{
		testutil.WaitStep("pause", 2, "minutes", "done"),
		testutil.ActionStep("done", "noop", nil, ""),
	}

	t.Run("test mode does not sleep", func(t *testing.T) {
		execCtx := ticketExecContext("alta")
		execCtx.TestMode = true

		walker := NewWalker(echoDispatcher(), clockwork.NewFakeClock(), 0)

		result, err := walker.Walk(context.Background(), steps, execCtx, WalkOptions{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"waitMs": int64(120000), "waited": false}, result.Results["pause"])
	})

	t.Run("live mode waits on the clock", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		clock := clockwork.NewFakeClock()
		walker := NewWalker(echoDispatcher(), clock, 0)

		done := make(chan error, 1)

		var result *WalkResult

		go func() {
			var err error
			result, err = walker.Walk(ctx, steps, ticketExecContext("alta"), WalkOptions{})
			done <- err
		}()

		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(2 * time.Minute)

		require.NoError(t, <-done)
		assert.Equal(t, true, result.Results["pause"].(map[string]any)["waited"])
	})

	t.Run("context cancellation interrupts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		clock := clockwork.NewFakeClock()
		walker := NewWalker(echoDispatcher(), clock, 0)

		done := make(chan error, 1)

		go func() {
			_, err := walker.Walk(ctx, steps, ticketExecContext("alta"), WalkOptions{})
			done <- err
		}()

		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		cancel()

		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestWalker_Walk_ApprovalInTestMode(t *testing.T) {
	execCtx := ticketExecContext("alta")
	execCtx.TestMode = true

	walker := NewWalker(echoDispatcher(), clockwork.NewFakeClock(), 0)

	result, err := walker.Walk(context.Background(), []*models.Step{{ID: "ok", Type: models.StepTypeApproval}}, execCtx, WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"approved": true, "autoApproved": true}, result.Results["ok"])
}

func TestResolveField(t *testing.T) {
	execCtx := ticketExecContext("alta")
	execCtx.Variables["threshold"] = 3
	execCtx.Results["step1"] = map[string]any{"assigneeId": 42}
	execCtx.Execution.TriggerData = map[string]any{"source": "email"}

	tests := []struct {
		field string
		want  any
	}{
		{field: "priority", want: "alta"},
		{field: "target.priority", want: "alta"},
		{field: "variables.threshold", want: 3},
		{field: "results.step1.assigneeId", want: 42},
		{field: "trigger.source", want: "email"},
		{field: "workflow.name", want: "Test Workflow"},
		{field: "missing.path", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveField(execCtx, tt.field))
		})
	}
}
