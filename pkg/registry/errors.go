package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownActionType is returned when no factory is registered for an action kind.
	ErrUnknownActionType = errors.New("unknown action type")
	// ErrInvalidPlugin is returned when a plugin does not export an ActionFactory.
	ErrInvalidPlugin = errors.New("plugin does not export an action factory")
)

// ActionExecutionError wraps a failure raised by an action handler.
type ActionExecutionError struct {
	Kind string
	Err  error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Kind, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

// IsUnknownActionType reports whether err is an unknown action type error.
func IsUnknownActionType(err error) bool {
	return errors.Is(err, ErrUnknownActionType)
}

// IsActionExecution reports whether err came from an action handler.
func IsActionExecution(err error) bool {
	var target *ActionExecutionError

	return errors.As(err, &target)
}
