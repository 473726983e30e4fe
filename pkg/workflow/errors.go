package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyWorkflow is returned when a definition has no steps to walk.
	ErrEmptyWorkflow = errors.New("workflow has no steps")
	// ErrStepNotFound is returned when a step reference does not resolve.
	ErrStepNotFound = errors.New("step not found")
	// ErrApprovalNotImplemented is returned by live approval steps; there is no approval backend.
	ErrApprovalNotImplemented = errors.New("approval steps are not implemented outside test mode")
	// ErrCancellationRequested is returned when an execution was flagged cancelled between steps.
	ErrCancellationRequested = errors.New("execution cancellation requested")
	// ErrStepLimitExceeded is returned when a walk visits more steps than allowed.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	// ErrInvalidStep is returned when a step lacks the configuration its type needs.
	ErrInvalidStep = errors.New("invalid step configuration")
	// ErrUnknownStepType is returned for step types without a runner.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrTargetNotFound is returned when an execution's target cannot be loaded.
	ErrTargetNotFound = errors.New("target not found")
	// ErrExecutionInFlight is returned when a walk for the same execution is already running.
	ErrExecutionInFlight = errors.New("execution already in flight")
	// ErrRetryNotAllowed is returned when retrying an execution that is not failed.
	ErrRetryNotAllowed = errors.New("only failed executions can be retried")
	// ErrRetryExhausted is returned when an execution has used its whole retry budget.
	ErrRetryExhausted = errors.New("retry budget exhausted")
	// ErrCancelNotAllowed is returned when cancelling an execution that already finished.
	ErrCancelNotAllowed = errors.New("only pending or running executions can be cancelled")
	// ErrWorkflowInactive is returned when manually running an inactive definition.
	ErrWorkflowInactive = errors.New("workflow is not active")
)

// StepError attributes a walk failure to the step that raised it.
type StepError struct {
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ValidationError lists every structural problem found in a definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid workflow definition: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}

	return e
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError

	return errors.As(err, &target)
}
