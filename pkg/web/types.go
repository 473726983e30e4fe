// Package web provides HTTP request and response types for the automation API.
package web

import (
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/workflow"
)

// RunWorkflowRequest is the body of the run and test endpoints.
type RunWorkflowRequest struct {
	TargetType   models.TargetKind `json:"target_type"    validate:"required,oneof=ticket user department"`
	TargetID     string            `json:"target_id"      validate:"required"`
	Variables    map[string]any    `json:"variables,omitempty"`
	TriggerData  map[string]any    `json:"trigger_data,omitempty"`
	ExecutedByID string            `json:"executed_by_id,omitempty"`
}

func (r RunWorkflowRequest) toRunRequest() workflow.RunRequest {
	return workflow.RunRequest{
		TargetType:   r.TargetType,
		TargetID:     r.TargetID,
		Variables:    r.Variables,
		TriggerData:  r.TriggerData,
		ExecutedByID: r.ExecutedByID,
	}
}

// DecisionResponse reports what a posted event did to one definition.
type DecisionResponse struct {
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Skipped     string `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

func toDecisionResponses(decisions []workflow.Decision) []DecisionResponse {
	responses := make([]DecisionResponse, 0, len(decisions))

	for _, decision := range decisions {
		response := DecisionResponse{
			WorkflowID:  decision.WorkflowID,
			ExecutionID: decision.ExecutionID,
			Skipped:     string(decision.Skipped),
		}

		if decision.Err != nil {
			response.Error = decision.Err.Error()
		}

		responses = append(responses, response)
	}

	return responses
}

// ValidationResponse is returned by the validate endpoint.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}
