package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/dukex/deskflow/pkg/persistence/file"
	"github.com/dukex/deskflow/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatcherFixture struct {
	store     *file.Persistence
	clock     *clockwork.FakeClock
	scheduled []*models.WorkflowExecution
	dispatch  *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	f := &dispatcherFixture{
		store: file.NewPersistence(t.TempDir()),
		clock: clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	}

	f.dispatch = NewDispatcher(slog.Default(), f.store.DefinitionRepository(), f.store.ExecutionRepository(), f.clock,
		func(_ *models.WorkflowDefinition, execution *models.WorkflowExecution) {
			f.scheduled = append(f.scheduled, execution)
		})

	return f
}

func (f *dispatcherFixture) save(t *testing.T, definitions ...*models.WorkflowDefinition) {
	t.Helper()

	for _, d := range definitions {
		require.NoError(t, f.store.DefinitionRepository().Save(context.Background(), d))
	}
}

func (f *dispatcherFixture) completed(t *testing.T, definition *models.WorkflowDefinition, ago time.Duration) {
	t.Helper()

	execution := testutil.CreateTestExecution(definition, testutil.CompletedAt(f.clock.Now().Add(-ago)))

	_, err := f.store.ExecutionRepository().Create(context.Background(), execution)
	require.NoError(t, err)
}

func TestDispatcher_Dispatch_CreatesExecution(t *testing.T) {
	f := newDispatcherFixture(t)

	definition := testutil.CreateTestDefinition(testutil.WithTrigger(models.TriggerTicketCreated, map[string]any{"channel": "email"}))
	f.save(t, definition)

	event := testutil.CreateTestEvent(func(e *models.Event) {
		e.UserID = "u-9"
		e.Payload = map[string]any{"channel": "email"}
	})

	decisions, err := f.dispatch.Dispatch(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Empty(t, decisions[0].Skipped)
	require.NotEmpty(t, decisions[0].ExecutionID)

	require.Len(t, f.scheduled, 1)

	stored, err := f.store.ExecutionRepository().GetByID(context.Background(), decisions[0].ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status)
	assert.Equal(t, string(models.TriggerTicketCreated), stored.TriggerType)
	assert.Equal(t, models.TargetKindTicket, stored.TargetType)
	assert.Equal(t, "ticket-1", stored.TargetID)
	assert.Equal(t, map[string]any{"channel": "email", "user_id": "u-9"}, stored.TriggerData)
	assert.Nil(t, stored.ExecutedByID)
	assert.Equal(t, models.DefaultMaxRetries, stored.MaxRetries)
}

func untargeted(e *models.Event) {
	e.TargetType = ""
	e.TargetID = ""
}

func TestDispatcher_Dispatch_Gates(t *testing.T) {
	tests := []struct {
		name       string
		definition func() *models.WorkflowDefinition
		history    func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition)
		payload    map[string]any
		event      func(e *models.Event)
		want       SkipReason
	}{
		{
			name: "conditions not met",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithTrigger(models.TriggerTicketCreated, map[string]any{"channel": "phone"}))
			},
			payload: map[string]any{"channel": "email"},
			want:    SkipConditions,
		},
		{
			name: "max executions reached",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithMaxExecutions(2))
			},
			history: func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition) {
				f.completed(t, d, 48*time.Hour)
				f.completed(t, d, 24*time.Hour)
			},
			want: SkipMaxExecutions,
		},
		{
			name: "under max executions",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithMaxExecutions(2))
			},
			history: func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition) {
				f.completed(t, d, 24*time.Hour)
			},
		},
		{
			name: "cooldown active",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithCooldown(10))
			},
			history: func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition) {
				f.completed(t, d, 5*time.Minute)
			},
			want: SkipCooldown,
		},
		{
			name: "cooldown elapsed",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithCooldown(10))
			},
			history: func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition) {
				f.completed(t, d, 10*time.Minute)
			},
		},
		{
			name: "cooldown is per target",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithCooldown(10))
			},
			history: func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition) {
				execution := testutil.CreateTestExecution(d, testutil.CompletedAt(f.clock.Now().Add(-time.Minute)), func(e *models.WorkflowExecution) {
					e.TargetID = "ticket-2"
				})
				_, err := f.store.ExecutionRepository().Create(context.Background(), execution)
				require.NoError(t, err)
			},
		},
		{
			name: "targeted run does not cool down a targetless event",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithCooldown(10))
			},
			history: func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition) {
				f.completed(t, d, time.Minute)
			},
			event: untargeted,
		},
		{
			name: "targetless run cools down a targetless event",
			definition: func() *models.WorkflowDefinition {
				return testutil.CreateTestDefinition(testutil.WithCooldown(10))
			},
			history: func(t *testing.T, f *dispatcherFixture, d *models.WorkflowDefinition) {
				execution := testutil.CreateTestExecution(d, testutil.CompletedAt(f.clock.Now().Add(-time.Minute)), func(e *models.WorkflowExecution) {
					e.TargetType = ""
					e.TargetID = ""
				})
				_, err := f.store.ExecutionRepository().Create(context.Background(), execution)
				require.NoError(t, err)
			},
			event: untargeted,
			want:  SkipCooldown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)

			definition := tt.definition()
			f.save(t, definition)

			if tt.history != nil {
				tt.history(t, f, definition)
			}

			event := testutil.CreateTestEvent(func(e *models.Event) { e.Payload = tt.payload })
			if tt.event != nil {
				tt.event(event)
			}

			decisions, err := f.dispatch.Dispatch(context.Background(), event)
			require.NoError(t, err)
			require.Len(t, decisions, 1)
			assert.Equal(t, tt.want, decisions[0].Skipped)

			if tt.want == "" {
				assert.Len(t, f.scheduled, 1)
			} else {
				assert.Empty(t, f.scheduled)
			}
		})
	}
}

func TestDispatcher_Dispatch_PriorityOrder(t *testing.T) {
	f := newDispatcherFixture(t)

	second := testutil.CreateTestDefinition(testutil.WithPriority(5))
	first := testutil.CreateTestDefinition(testutil.WithPriority(-1))
	f.save(t, second, first)

	decisions, err := f.dispatch.Dispatch(context.Background(), testutil.CreateTestEvent())
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, first.ID, decisions[0].WorkflowID)
	assert.Equal(t, second.ID, decisions[1].WorkflowID)
}

type failingCounter struct {
	persistence.ExecutionRepository
}

func (failingCounter) Count(context.Context, persistence.ExecutionFilter) (int, error) {
	return 0, errors.New("database unavailable")
}

func TestDispatcher_Dispatch_IsolatesFailures(t *testing.T) {
	f := newDispatcherFixture(t)

	capped := testutil.CreateTestDefinition(testutil.WithMaxExecutions(1), testutil.WithPriority(1))
	plain := testutil.CreateTestDefinition(testutil.WithPriority(2))
	f.save(t, capped, plain)

	dispatcher := NewDispatcher(slog.Default(), f.store.DefinitionRepository(),
		failingCounter{f.store.ExecutionRepository()}, f.clock, nil)

	decisions, err := dispatcher.Dispatch(context.Background(), testutil.CreateTestEvent())
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	assert.Equal(t, SkipError, decisions[0].Skipped)
	require.Error(t, decisions[0].Err)
	assert.Empty(t, decisions[1].Skipped)
	assert.NotEmpty(t, decisions[1].ExecutionID)
}
