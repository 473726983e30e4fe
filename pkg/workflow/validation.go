package workflow

import (
	"errors"

	"github.com/dukex/deskflow/pkg/condition"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Validator checks the structure of workflow definitions before they are stored or run.
type Validator struct {
	validate    *validator.Validate
	knownAction func(kind string) bool
}

// NewValidator creates a validator. knownAction, when set, rejects action steps of unregistered kinds.
func NewValidator(knownAction func(kind string) bool) *Validator {
	return &Validator{
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		knownAction: knownAction,
	}
}

// Validate checks definition with no knowledge of the registered actions.
func Validate(definition *models.WorkflowDefinition) error {
	return NewValidator(nil).Validate(definition)
}

// Validate reports every problem found as one *ValidationError.
func (v *Validator) Validate(definition *models.WorkflowDefinition) error {
	problems := &ValidationError{}

	if definition == nil {
		problems.add("definition is nil")

		return problems
	}

	err := v.validate.Struct(definition)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			problems.add("%v", err)

			return problems
		}

		for _, fe := range fieldErrors {
			problems.add("%s failed on %s", fe.Namespace(), fe.Tag())
		}
	}

	if definition.TriggerType != "" && !definition.TriggerType.Valid() {
		problems.add("unknown trigger type %q", definition.TriggerType)
	}

	steps := make(map[string]*models.Step, len(definition.Steps))

	for i, step := range definition.Steps {
		if step == nil {
			continue
		}

		if step.ID == "" {
			problems.add("step %d has no id", i)

			continue
		}

		if _, duplicate := steps[step.ID]; duplicate {
			problems.add("duplicate step id %q", step.ID)

			continue
		}

		steps[step.ID] = step
		v.validateStep(step, problems)
	}

	for _, step := range definition.Steps {
		if step == nil {
			continue
		}

		for _, ref := range step.References() {
			if _, ok := steps[ref]; !ok {
				problems.add("step %q references unknown step %q", step.ID, ref)
			}
		}
	}

	if cycle := findCycle(definition.Steps, steps); cycle != "" {
		problems.add("step graph has a cycle through %q", cycle)
	}

	return problems.orNil()
}

func (v *Validator) validateStep(step *models.Step, problems *ValidationError) {
	switch step.Type {
	case models.StepTypeCondition:
		switch {
		case step.Condition == nil:
			problems.add("condition step %q has no condition", step.ID)
		case step.Condition.Field == "":
			problems.add("condition step %q has no field", step.ID)
		case !condition.Supported(step.Condition.Operator):
			problems.add("condition step %q uses unknown operator %q", step.ID, step.Condition.Operator)
		}

		if step.Next != "" {
			problems.add("condition step %q must branch with on_true/on_false, not next", step.ID)
		}
	case models.StepTypeAction:
		switch {
		case step.Action == nil || step.Action.Type == "":
			problems.add("action step %q has no action type", step.ID)
		case v.knownAction != nil && !v.knownAction(step.Action.Type):
			problems.add("action step %q uses unknown action type %q", step.ID, step.Action.Type)
		}
	case models.StepTypeWait:
		if step.Wait == nil {
			problems.add("wait step %q has no duration", step.ID)
		} else if step.Wait.Duration < 0 {
			problems.add("wait step %q has a negative duration", step.ID)
		}
	case models.StepTypeApproval:
	default:
		problems.add("step %q has unknown type %q", step.ID, step.Type)
	}
}

// findCycle returns the id of a step on a cycle reachable from any step, or "".
func findCycle(order []*models.Step, steps map[string]*models.Step) string {
	visited := make(map[string]bool, len(steps))
	onStack := make(map[string]bool, len(steps))

	var visit func(id string) string
	visit = func(id string) string {
		visited[id] = true
		onStack[id] = true

		step, ok := steps[id]
		if ok {
			for _, ref := range step.References() {
				if _, known := steps[ref]; !known {
					continue
				}

				if onStack[ref] {
					return ref
				}

				if !visited[ref] {
					if found := visit(ref); found != "" {
						return found
					}
				}
			}
		}

		onStack[id] = false

		return ""
	}

	for _, step := range order {
		if step == nil || visited[step.ID] {
			continue
		}

		if _, ok := steps[step.ID]; !ok {
			continue
		}

		if found := visit(step.ID); found != "" {
			return found
		}
	}

	return ""
}

