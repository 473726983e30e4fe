package workflow

import (
	"testing"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.WorkflowDefinition)
		problem string
	}{
		{
			name: "valid branching graph",
			mutate: func(d *models.WorkflowDefinition) {
				d.Steps = branchingSteps()
			},
		},
		{
			name:    "missing name",
			mutate:  func(d *models.WorkflowDefinition) { d.Name = "" },
			problem: "Name",
		},
		{
			name:    "unknown trigger type",
			mutate:  func(d *models.WorkflowDefinition) { d.TriggerType = "ticket_exploded" },
			problem: "unknown trigger type",
		},
		{
			name:    "no steps",
			mutate:  func(d *models.WorkflowDefinition) { d.Steps = nil },
			problem: "Steps",
		},
		{
			name: "duplicate ids",
			mutate: func(d *models.WorkflowDefinition) {
				d.Steps = append(d.Steps, testutil.ActionStep("step1", "assign", nil, ""))
			},
			problem: `duplicate step id "step1"`,
		},
		{
			name: "dangling reference",
			mutate: func(d *models.WorkflowDefinition) {
				d.Steps[0].Next = "ghost"
			},
			problem: `references unknown step "ghost"`,
		},
		{
			name: "unknown step type",
			mutate: func(d *models.WorkflowDefinition) {
				d.Steps[0].Type = "loop"
			},
			problem: `unknown type "loop"`,
		},
		{
			name: "unknown operator",
			mutate: func(d *models.WorkflowDefinition) {
				d.Steps = []*models.Step{testutil.ConditionStep("c", "priority", "~=", "x", "", "")}
			},
			problem: `unknown operator "~="`,
		},
		{
			name: "condition with next",
			mutate: func(d *models.WorkflowDefinition) {
				step := testutil.ConditionStep("c", "priority", "==", "x", "", "")
				step.Next = "step1"
				d.Steps = append([]*models.Step{step}, d.Steps...)
			},
			problem: "must branch",
		},
		{
			name: "wait without duration",
			mutate: func(d *models.WorkflowDefinition) {
				d.Steps = []*models.Step{{ID: "w", Type: models.StepTypeWait}}
			},
			problem: "has no duration",
		},
		{
			name: "cycle",
			mutate: func(d *models.WorkflowDefinition) {
				d.Steps = []*models.Step{
					testutil.ActionStep("a", "assign", nil, "b"),
					testutil.ActionStep("b", "assign", nil, "a"),
				}
			},
			problem: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			definition := testutil.CreateTestDefinition(tt.mutate)

			err := Validate(definition)
			if tt.problem == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestValidator_KnownActions(t *testing.T) {
	known := func(kind string) bool { return kind == "priority" }

	validator := NewValidator(known)

	require.NoError(t, validator.Validate(testutil.CreateTestDefinition()))

	err := validator.Validate(testutil.CreateTestDefinition(testutil.WithSteps(
		testutil.ActionStep("step1", "launch_rocket", nil, ""),
	)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action type "launch_rocket"`)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	definition := testutil.CreateTestDefinition(func(d *models.WorkflowDefinition) {
		d.TriggerType = "nope"
		d.Steps[0].Next = "ghost"
	})

	err := Validate(definition)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Problems, 2)
}
