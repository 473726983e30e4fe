package eventbus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/deskflow/pkg/channels/gochannel"
	"github.com/dukex/deskflow/pkg/eventbus"
	"github.com/dukex/deskflow/pkg/events"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_RoutesByType(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	domain := make(chan *events.DomainEvent, 1)
	failed := make(chan *events.ExecutionFailed, 1)

	require.NoError(t, bus.Handle(events.DomainEventReceived, func(_ context.Context, event any) error {
		domain <- event.(*events.DomainEvent)

		return nil
	}))
	require.NoError(t, bus.Handle(events.ExecutionFailedEvent, func(_ context.Context, event any) error {
		failed <- event.(*events.ExecutionFailed)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "t-1", events.DomainEvent{
		BaseEvent: events.NewBaseEvent(events.DomainEventReceived, "org-1", ""),
		Event:     models.Event{Type: models.TriggerCommentAdded, OrganizationID: "org-1"},
	}))
	require.NoError(t, bus.Publish(ctx, "ex-1", events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, "org-1", "wf-1"),
		ExecutionID: "ex-1",
		Error:       "boom",
	}))

	select {
	case got := <-domain:
		assert.Equal(t, models.TriggerCommentAdded, got.Event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("domain event not delivered")
	}

	select {
	case got := <-failed:
		assert.Equal(t, "ex-1", got.ExecutionID)
		assert.Equal(t, "boom", got.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("failed event not delivered")
	}
}

func TestWatermillEventBus_HandleUnknownType(t *testing.T) {
	t.Parallel()

	err := newBus(t).Handle("nope", func(context.Context, any) error { return nil })
	require.ErrorIs(t, err, eventbus.ErrUnknownEventType)
}
