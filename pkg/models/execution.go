package models

import "time"

// ExecutionStatus is the lifecycle state of a WorkflowExecution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusPaused    ExecutionStatus = "paused"
)

// DefaultMaxRetries applies when an execution is created without an explicit budget.
const DefaultMaxRetries = 3

// StepStatus is the outcome recorded in a step trace entry.
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// WorkflowExecution is one run of a definition against one target.
type WorkflowExecution struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	OrganizationID string          `json:"organization_id"`
	Status         ExecutionStatus `json:"status"`
	TriggerType    string          `json:"trigger_type"`
	TriggerData    map[string]any  `json:"trigger_data,omitempty"`
	TargetType     TargetKind      `json:"target_type,omitempty"`
	TargetID       string          `json:"target_id,omitempty"`
	CurrentStep    string          `json:"current_step,omitempty"`
	Variables      map[string]any  `json:"variables,omitempty"`
	Steps          []StepTrace     `json:"steps"`
	Result         map[string]any  `json:"result,omitempty"`
	Error          *string         `json:"error,omitempty"`
	ErrorDetails   *ErrorDetails   `json:"error_details,omitempty"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	ExecutedByID   *string         `json:"executed_by_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal reports whether no engine-driven transition can leave the current status.
func (e *WorkflowExecution) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusCompleted, ExecutionStatusCancelled:
		return true
	case ExecutionStatusFailed:
		return e.RetryCount >= e.MaxRetries
	default:
		return false
	}
}

// CanRetry reports whether a failed execution still has retry budget.
func (e *WorkflowExecution) CanRetry() bool {
	return e.Status == ExecutionStatusFailed && e.RetryCount < e.MaxRetries
}

// StepTrace is an append-only record of one executed step.
type StepTrace struct {
	StepID      string     `json:"step_id"`
	StepName    string     `json:"step_name"`
	StepType    StepType   `json:"step_type"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
	Status      StepStatus `json:"status"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
}

// ErrorDetails captures a top-level failure for later inspection.
type ErrorDetails struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	StepID  string `json:"step_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Payload any    `json:"payload,omitempty"`
}
