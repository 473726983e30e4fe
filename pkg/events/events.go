// Package events defines the messages exchanged on the event bus.
package events

import (
	"time"

	"github.com/dukex/deskflow/pkg/models"
)

type EventType string

// Topics.
const (
	DomainTopic    = "deskflow.domain.events"
	ExecutionTopic = "deskflow.executions"
	MailTopic      = "deskflow.mail.outbox"
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// DomainEventReceived carries a helpdesk occurrence that may trigger workflows.
	DomainEventReceived EventType = "domain.event"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "workflow.execution.started"
	ExecutionCompletedEvent EventType = "workflow.execution.completed"
	ExecutionFailedEvent    EventType = "workflow.execution.failed"
	ExecutionCancelledEvent EventType = "workflow.execution.cancelled"

	// MailRequestedEvent asks the mail relay to deliver a templated email.
	MailRequestedEvent EventType = "mail.requested"
)

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType EventType) string {
	switch eventType {
	case DomainEventReceived:
		return DomainTopic
	case MailRequestedEvent:
		return MailTopic
	default:
		return ExecutionTopic
	}
}

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	OrganizationID string         `json:"organization_id,omitempty"`
	WorkflowID     string         `json:"workflow_id,omitempty"`
	WorkerID       string         `json:"worker_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a base event.
func NewBaseEvent(eventType EventType, organizationID, workflowID string) BaseEvent {
	return BaseEvent{
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		OrganizationID: organizationID,
		WorkflowID:     workflowID,
	}
}

type DomainEvent struct {
	BaseEvent

	Event models.Event `json:"event"`
}

func (e DomainEvent) GetType() EventType {
	return DomainEventReceived
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	TriggerType string            `json:"trigger_type"`
	TargetType  models.TargetKind `json:"target_type,omitempty"`
	TargetID    string            `json:"target_id,omitempty"`
	RetryCount  int               `json:"retry_count"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Result      map[string]any `json:"result,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id,omitempty"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
	RetryCount  int    `json:"retry_count"`
	CanRetry    bool   `json:"can_retry"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type MailRequested struct {
	BaseEvent

	TemplateID string         `json:"template_id"`
	Data       map[string]any `json:"data,omitempty"`
}

func (e MailRequested) GetType() EventType {
	return MailRequestedEvent
}
