// Package models defines the core domain models for helpdesk workflow automation
package models

import "time"

// TriggerType names the business event that fires a workflow definition.
type TriggerType string

const (
	TriggerTicketCreated       TriggerType = "ticket_created"
	TriggerTicketUpdated       TriggerType = "ticket_updated"
	TriggerTicketAssigned      TriggerType = "ticket_assigned"
	TriggerTicketStatusChanged TriggerType = "ticket_status_changed"
	TriggerCommentAdded        TriggerType = "comment_added"
	TriggerTimeBased           TriggerType = "time_based"
	TriggerSLABreach           TriggerType = "sla_breach"
	TriggerCustom              TriggerType = "custom"
)

// Execution trigger markers that are not event types.
const (
	TriggerManual = "manual"
	TriggerTest   = "test"
)

// ExecutionHistoryLimit caps WorkflowDefinition.ExecutionHistory.
const ExecutionHistoryLimit = 100

var triggerTypes = map[TriggerType]bool{
	TriggerTicketCreated:       true,
	TriggerTicketUpdated:       true,
	TriggerTicketAssigned:      true,
	TriggerTicketStatusChanged: true,
	TriggerCommentAdded:        true,
	TriggerTimeBased:           true,
	TriggerSLABreach:           true,
	TriggerCustom:              true,
}

// Valid reports whether t belongs to the closed trigger enum.
func (t TriggerType) Valid() bool {
	return triggerTypes[t]
}

// TriggerTypes returns every event trigger type.
func TriggerTypes() []TriggerType {
	return []TriggerType{
		TriggerTicketCreated,
		TriggerTicketUpdated,
		TriggerTicketAssigned,
		TriggerTicketStatusChanged,
		TriggerCommentAdded,
		TriggerTimeBased,
		TriggerSLABreach,
		TriggerCustom,
	}
}

// WorkflowDefinition is a stored automation: a trigger plus a step graph.
type WorkflowDefinition struct {
	ID              string         `json:"id"                        validate:"required"`
	OrganizationID  string         `json:"organization_id"           validate:"required"`
	Name            string         `json:"name"                      validate:"required,min=3"`
	Description     string         `json:"description,omitempty"`
	IsSystem        bool           `json:"is_system"`
	TriggerType     TriggerType    `json:"trigger_type"              validate:"required"`
	Trigger         map[string]any `json:"trigger,omitempty"`
	Steps           []*Step        `json:"steps"                     validate:"required,min=1,dive,required"`
	Variables       map[string]any `json:"variables,omitempty"`
	IsActive        bool           `json:"is_active"`
	Priority        int            `json:"priority"`
	MaxExecutions   *int           `json:"max_executions,omitempty"  validate:"omitempty,min=1"`
	CooldownMinutes int            `json:"cooldown_minutes"          validate:"min=0"`

	// Maintained by the engine only.
	ExecutionCount   int         `json:"execution_count"`
	ErrorCount       int         `json:"error_count"`
	LastExecutedAt   *time.Time  `json:"last_executed_at,omitempty"`
	LastError        string      `json:"last_error,omitempty"`
	ExecutionHistory []RunRecord `json:"execution_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StepByID returns the step with the given id.
func (w *WorkflowDefinition) StepByID(id string) (*Step, bool) {
	for _, step := range w.Steps {
		if step != nil && step.ID == id {
			return step, true
		}
	}

	return nil, false
}

// KeepStats copies the creation time and the engine maintained counters from stored.
// A nil stored copy resets them, with createdAt as the creation time.
func (w *WorkflowDefinition) KeepStats(stored *WorkflowDefinition, createdAt time.Time) {
	if stored == nil {
		stored = &WorkflowDefinition{CreatedAt: createdAt}
	}

	w.CreatedAt = stored.CreatedAt
	w.ExecutionCount = stored.ExecutionCount
	w.ErrorCount = stored.ErrorCount
	w.LastExecutedAt = stored.LastExecutedAt
	w.LastError = stored.LastError
	w.ExecutionHistory = stored.ExecutionHistory
}

// RunRecord is one entry of the rolling execution history kept on a definition.
type RunRecord struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	TriggerType string          `json:"trigger_type"`
	At          time.Time       `json:"at"`
	DurationMs  int64           `json:"duration_ms"`
	Error       string          `json:"error,omitempty"`
}

// Apply folds a finished run into the definition counters.
func (w *WorkflowDefinition) Apply(run RunRecord) {
	switch run.Status {
	case ExecutionStatusCompleted:
		w.ExecutionCount++
		at := run.At
		w.LastExecutedAt = &at
	case ExecutionStatusFailed:
		w.ErrorCount++
		w.LastError = run.Error
	}

	w.ExecutionHistory = append(w.ExecutionHistory, run)
	if overflow := len(w.ExecutionHistory) - ExecutionHistoryLimit; overflow > 0 {
		w.ExecutionHistory = append([]RunRecord(nil), w.ExecutionHistory[overflow:]...)
	}
}
