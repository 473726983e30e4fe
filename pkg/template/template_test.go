package template

import (
	"testing"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"target": map[string]any{
			"subject": "Printer on fire",
			"tags":    []any{"vip", "hardware"},
		},
		"variables": map[string]any{"team": "ops"},
	}

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "plain text", text: "Escalated", expected: "Escalated"},
		{name: "nested field", text: "Re: {{ .target.subject }}", expected: "Re: Printer on fire"},
		{name: "upper", text: "{{ upper .variables.team }}", expected: "OPS"},
		{name: "join", text: "{{ join \", \" .target.tags }}", expected: "vip, hardware"},
		{name: "default on missing", text: "{{ default \"nobody\" .variables.owner }}", expected: "nobody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := Render(tt.text, data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	t.Parallel()

	_, err := Render("{{ .target.subject ", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")
}

func TestRenderWithContext(t *testing.T) {
	t.Parallel()

	ticket := &models.Ticket{ID: "t-1", Subject: "VPN down", Priority: "high"}
	execCtx := &models.ExecutionContext{
		Workflow:  &models.WorkflowDefinition{ID: "wf-1", Name: "Escalate"},
		Execution: &models.WorkflowExecution{ID: "exec-1"},
		Target:    models.TicketTarget(ticket),
		Variables: map[string]any{"team": "network"},
		Results:   map[string]any{},
	}

	result, err := RenderWithContext("[{{ .workflow.name }}] {{ .target.subject }} ({{ .target.priority }}) for {{ .variables.team }}", execCtx)
	require.NoError(t, err)
	assert.Equal(t, "[Escalate] VPN down (high) for network", result)

	result, err = RenderWithContext("no actions here", execCtx)
	require.NoError(t, err)
	assert.Equal(t, "no actions here", result)
}

func TestNeedsRendering(t *testing.T) {
	t.Parallel()

	assert.True(t, NeedsRendering("Hi {{ .target.subject }}"))
	assert.False(t, NeedsRendering("Hi there"))
}
