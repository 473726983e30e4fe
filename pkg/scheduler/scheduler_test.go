package scheduler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []*models.Event
}

func (r *recorder) handle(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

func TestScheduler_ProcessDue(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC))
	s := New(slog.Default(), clock, time.Minute)

	require.NoError(t, s.Add(&models.Schedule{
		ID:             "nightly-sla",
		OrganizationID: "org-1",
		CronExpression: "0 2 * * *",
		Active:         true,
		Payload:        map[string]any{"check": "sla"},
	}))

	rec := &recorder{}
	s.handler = rec.handle

	assert.Equal(t, 0, s.processDue(context.Background()), "not due before 02:00")

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, s.processDue(context.Background()))
	assert.Equal(t, 0, s.processDue(context.Background()), "fires once per activation")

	require.Len(t, rec.events, 1)
	event := rec.events[0]
	assert.Equal(t, models.TriggerTimeBased, event.Type)
	assert.Equal(t, "org-1", event.OrganizationID)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "nightly-sla", event.Payload["schedule"])
	assert.Equal(t, "sla", event.Payload["check"])
	assert.Equal(t, "2026-03-10T02:00:00Z", event.Payload["due_at"])

	schedules := s.Schedules()
	require.Len(t, schedules, 1)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), schedules[0].NextDueAt)
}

func TestScheduler_InactiveNeverFires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC))
	s := New(slog.Default(), clock, time.Minute)

	require.NoError(t, s.Add(&models.Schedule{
		ID:             "paused",
		OrganizationID: "org-1",
		CronExpression: "* * * * *",
	}))

	rec := &recorder{}
	s.handler = rec.handle

	clock.Advance(time.Hour)
	assert.Equal(t, 0, s.processDue(context.Background()))
}

func TestScheduler_AddRejectsInvalid(t *testing.T) {
	s := New(slog.Default(), clockwork.NewFakeClock(), 0)

	err := s.Add(&models.Schedule{ID: "bad", OrganizationID: "org-1", CronExpression: "every day"})
	require.ErrorIs(t, err, models.ErrInvalidSchedule)

	require.ErrorIs(t, s.Remove("missing"), ErrScheduleNotFound)
}

func TestScheduler_StartPolls(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 1, 59, 30, 0, time.UTC))
	s := New(slog.Default(), clock, time.Minute)

	require.NoError(t, s.Add(&models.Schedule{
		ID:             "nightly-sla",
		OrganizationID: "org-1",
		CronExpression: "0 2 * * *",
		Active:         true,
	}))

	rec := &recorder{}
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, rec.handle))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestLoadFile(t *testing.T) {
	schedules, err := LoadFile(filepath.Join("testdata", "schedules.yaml"))
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	assert.Equal(t, "nightly-sla", schedules[0].ID)
	assert.True(t, schedules[0].Active)
	assert.Equal(t, "sla", schedules[0].Payload["check"])
	assert.False(t, schedules[1].Active)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("schedules:\n  - id: x\n    organization_id: org-1\n    cron_expression: nope\n"), 0o600))

	_, err = LoadFile(bad)
	require.ErrorIs(t, err, models.ErrInvalidSchedule)
}
