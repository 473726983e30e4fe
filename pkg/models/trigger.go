package models

import "time"

// Event is a business occurrence that may fire workflow definitions.
type Event struct {
	ID             string         `json:"id"`
	Type           TriggerType    `json:"type"            validate:"required"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	TargetType     TargetKind     `json:"target_type,omitempty"`
	TargetID       string         `json:"target_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Snapshot copies the payload so later mutation of the event does not leak into executions.
// The triggering user is recorded as "user_id" unless the payload already carries one.
func (e *Event) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		snapshot[k] = v
	}

	if _, ok := snapshot["user_id"]; !ok && e.UserID != "" {
		snapshot["user_id"] = e.UserID
	}

	return snapshot
}
