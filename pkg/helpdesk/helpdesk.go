// Package helpdesk declares the helpdesk collaborators the engine reads and mutates.
package helpdesk

import (
	"context"
	"errors"

	"github.com/dukex/deskflow/pkg/models"
)

// ErrUnknownTargetKind is returned when a loader is asked for an unsupported entity kind.
var ErrUnknownTargetKind = errors.New("unknown target kind")

// SystemUserID is the author recorded for changes with no triggering user.
const SystemUserID = "system"

// TargetLoader hydrates the entity an execution acts on. A missing entity yields (nil, nil).
type TargetLoader interface {
	Load(ctx context.Context, kind models.TargetKind, id string) (*models.Target, error)
}

// Tickets mutates and creates tickets.
type Tickets interface {
	SaveTicket(ctx context.Context, ticket *models.Ticket) error
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	AddComment(ctx context.Context, comment *models.Comment) error
}

// Agents lists the members of a department.
type Agents interface {
	DepartmentMembers(ctx context.Context, organizationID, departmentID string) ([]*models.User, error)
}

// Mailer sends a templated email.
type Mailer interface {
	Send(ctx context.Context, templateID string, data map[string]any) error
}
