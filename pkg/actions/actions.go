// Package actions holds helpers shared by the built-in action handlers.
package actions

import (
	"errors"
	"fmt"

	"github.com/dukex/deskflow/pkg/models"
)

// ErrInvalidTarget is returned when an action needs an entity kind the execution does not target.
var ErrInvalidTarget = errors.New("invalid target")

// ErrMissingParameter is returned when a required action parameter is absent.
var ErrMissingParameter = errors.New("missing action parameter")

// RequireTicket returns the execution's target ticket or ErrInvalidTarget.
func RequireTicket(execCtx *models.ExecutionContext, kind string) (*models.Ticket, error) {
	ticket, ok := execCtx.Ticket()
	if !ok {
		got := "none"
		if execCtx.Target != nil {
			got = string(execCtx.Target.Kind)
		}

		return nil, fmt.Errorf("%w: %s requires a ticket target, got %s", ErrInvalidTarget, kind, got)
	}

	return ticket, nil
}

// Missing builds an ErrMissingParameter error for key.
func Missing(key string) error {
	return fmt.Errorf("%w: '%s'", ErrMissingParameter, key)
}
