// Package ticket implements the actions that mutate the target ticket.
package ticket

import (
	"context"
	"log/slog"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
)

type field struct {
	kind      string
	resultKey string
	apply     func(ticket *models.Ticket, value string)
}

var fields = []field{
	{"status", "status", func(t *models.Ticket, v string) { t.Status = v }},
	{"priority", "priority", func(t *models.Ticket, v string) { t.Priority = v }},
	{"assign", "assigneeId", func(t *models.Ticket, v string) { t.AssigneeID = v }},
	{"department", "departmentId", func(t *models.Ticket, v string) { t.DepartmentID = v }},
}

// FieldActionFactory builds single-field ticket mutations (status, priority, assign, department).
type FieldActionFactory struct {
	field   field
	tickets helpdesk.Tickets
}

// FieldActionFactories returns one factory per supported ticket field.
func FieldActionFactories(tickets helpdesk.Tickets) []*FieldActionFactory {
	factories := make([]*FieldActionFactory, 0, len(fields))
	for _, f := range fields {
		factories = append(factories, &FieldActionFactory{field: f, tickets: tickets})
	}

	return factories
}

func (f *FieldActionFactory) ID() string {
	return f.field.kind
}

func (f *FieldActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	value, ok := config["value"]
	if !ok || value == nil {
		return nil, actions.Missing("value")
	}

	return &FieldAction{field: f.field, value: value, tickets: f.tickets}, nil
}

// FieldAction sets one ticket field to a fixed value.
type FieldAction struct {
	field   field
	value   any
	tickets helpdesk.Tickets
}

func (a *FieldAction) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	ticket, err := actions.RequireTicket(execCtx, a.field.kind)
	if err != nil {
		return nil, err
	}

	result := map[string]any{a.field.resultKey: a.value}

	if execCtx.TestMode {
		return result, nil
	}

	a.field.apply(ticket, models.FormatID(a.value))

	err = a.tickets.SaveTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Ticket updated", "ticket_id", ticket.ID, "field", a.field.kind)

	return result, nil
}
