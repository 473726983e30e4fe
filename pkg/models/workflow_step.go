package models

// StepType discriminates the kind of node in a workflow graph.
type StepType string

const (
	StepTypeCondition StepType = "condition"
	StepTypeAction    StepType = "action"
	StepTypeWait      StepType = "wait"
	StepTypeApproval  StepType = "approval"
)

// Valid reports whether s is a known step type.
func (s StepType) Valid() bool {
	switch s {
	case StepTypeCondition, StepTypeAction, StepTypeWait, StepTypeApproval:
		return true
	default:
		return false
	}
}

// Step is one node of a workflow graph. An empty Next (or branch) ends the walk.
type Step struct {
	ID        string      `json:"id"                  validate:"required"`
	Name      string      `json:"name"`
	Type      StepType    `json:"type"                validate:"required"`
	Condition *Condition  `json:"condition,omitempty"`
	Action    *ActionSpec `json:"action,omitempty"`
	Wait      *WaitSpec   `json:"wait,omitempty"`
	Next      string      `json:"next,omitempty"`
	OnTrue    string      `json:"on_true,omitempty"`
	OnFalse   string      `json:"on_false,omitempty"`
}

// References lists every step id this step can move to.
func (s *Step) References() []string {
	refs := make([]string, 0, 2)

	for _, ref := range []string{s.Next, s.OnTrue, s.OnFalse} {
		if ref != "" {
			refs = append(refs, ref)
		}
	}

	return refs
}

// DisplayName falls back to the id when the step has no name.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}

	return s.ID
}

// Condition compares the value at Field against Value using Operator.
type Condition struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value,omitempty"`
}

// WaitSpec describes a suspension of Duration units.
type WaitSpec struct {
	Duration float64 `json:"duration" validate:"min=0"`
	Unit     string  `json:"unit"`
}
