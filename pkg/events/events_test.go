package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/deskflow/pkg/events"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, events.DomainTopic, events.TopicFor(events.DomainEventReceived))
	assert.Equal(t, events.MailTopic, events.TopicFor(events.MailRequestedEvent))
	assert.Equal(t, events.ExecutionTopic, events.TopicFor(events.ExecutionFailedEvent))
	assert.Equal(t, events.ExecutionTopic, events.TopicFor(events.ExecutionStartedEvent))
}

func TestDomainEvent_JSON(t *testing.T) {
	t.Parallel()

	event := events.DomainEvent{
		BaseEvent: events.NewBaseEvent(events.DomainEventReceived, "org-1", ""),
		Event: models.Event{
			ID:             "ev-1",
			Type:           models.TriggerTicketCreated,
			OrganizationID: "org-1",
			TargetType:     models.TargetKindTicket,
			TargetID:       "t-1",
			Payload:        map[string]any{"priority": "alta"},
			OccurredAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.DomainEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, events.DomainEventReceived, decoded.GetType())
	assert.Equal(t, models.TriggerTicketCreated, decoded.Event.Type)
	assert.Equal(t, "alta", decoded.Event.Payload["priority"])
	assert.Equal(t, "org-1", decoded.OrganizationID)
}
