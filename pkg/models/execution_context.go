package models

import "log/slog"

// ExecutionContext is the mutable state handed to every step of a walk.
type ExecutionContext struct {
	Workflow  *WorkflowDefinition
	Execution *WorkflowExecution
	Target    *Target
	Variables map[string]any
	Results   map[string]any
	TestMode  bool
	Logger    *slog.Logger
}

// NewExecutionContext merges the definition defaults with the execution overrides.
func NewExecutionContext(workflow *WorkflowDefinition, execution *WorkflowExecution, target *Target) *ExecutionContext {
	variables := make(map[string]any, len(workflow.Variables)+len(execution.Variables))
	for k, v := range workflow.Variables {
		variables[k] = v
	}

	for k, v := range execution.Variables {
		variables[k] = v
	}

	return &ExecutionContext{
		Workflow:  workflow,
		Execution: execution,
		Target:    target,
		Variables: variables,
		Results:   make(map[string]any),
		Logger:    slog.Default(),
	}
}

// Data is the document dotted condition paths are resolved against.
func (c *ExecutionContext) Data() map[string]any {
	data := map[string]any{
		"variables": c.Variables,
		"results":   c.Results,
	}

	if c.Target != nil {
		data["target"] = c.Target.Fields()
	}

	if c.Execution != nil {
		data["trigger"] = c.Execution.TriggerData
		data["execution"] = map[string]any{
			"id":           c.Execution.ID,
			"trigger_type": c.Execution.TriggerType,
			"retry_count":  c.Execution.RetryCount,
		}
	}

	if c.Workflow != nil {
		data["workflow"] = map[string]any{
			"id":   c.Workflow.ID,
			"name": c.Workflow.Name,
		}
	}

	return data
}

// ActorID is the user actions are attributed to: the user who ran the execution, else the
// user who caused the triggering event. Empty means the system user.
func (c *ExecutionContext) ActorID() string {
	if c.Execution == nil {
		return ""
	}

	if c.Execution.ExecutedByID != nil {
		return *c.Execution.ExecutedByID
	}

	userID, _ := c.Execution.TriggerData["user_id"].(string)

	return userID
}

// Ticket returns the target ticket, if the target is one.
func (c *ExecutionContext) Ticket() (*Ticket, bool) {
	if c.Target == nil || c.Target.Kind != TargetKindTicket || c.Target.Ticket == nil {
		return nil, false
	}

	return c.Target.Ticket, true
}
