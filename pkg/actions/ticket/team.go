package ticket

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
)

// TeamActionFactory builds assign_to_team actions.
type TeamActionFactory struct {
	tickets helpdesk.Tickets
	agents  helpdesk.Agents
	pick    func(n int) int
}

// NewTeamActionFactory creates the factory; agents are picked uniformly at random.
func NewTeamActionFactory(tickets helpdesk.Tickets, agents helpdesk.Agents) *TeamActionFactory {
	return &TeamActionFactory{tickets: tickets, agents: agents, pick: rand.IntN}
}

func (f *TeamActionFactory) ID() string {
	return "assign_to_team"
}

func (f *TeamActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	department := models.FormatID(config["value"])
	if department == "" {
		return nil, actions.Missing("value")
	}

	return &TeamAction{departmentID: department, factory: f}, nil
}

// TeamAction moves the ticket to a department and hands it to one of its working agents.
type TeamAction struct {
	departmentID string
	factory      *TeamActionFactory
}

func (a *TeamAction) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	ticket, err := actions.RequireTicket(execCtx, "assign_to_team")
	if err != nil {
		return nil, err
	}

	members, err := a.factory.agents.DepartmentMembers(ctx, ticket.OrganizationID, a.departmentID)
	if err != nil {
		return nil, err
	}

	candidates := make([]*models.User, 0, len(members))
	for _, member := range members {
		if member.CanWorkTickets() {
			candidates = append(candidates, member)
		}
	}

	result := map[string]any{"departmentId": a.departmentID, "assigneeId": nil}

	var assignee string
	if len(candidates) > 0 {
		assignee = candidates[a.factory.pick(len(candidates))].ID
		result["assigneeId"] = assignee
	}

	if execCtx.TestMode {
		return result, nil
	}

	ticket.DepartmentID = a.departmentID
	if assignee != "" {
		ticket.AssigneeID = assignee
	}

	err = a.factory.tickets.SaveTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Ticket assigned to team",
		"ticket_id", ticket.ID,
		"department_id", a.departmentID,
		"assignee_id", assignee,
		"candidates", len(candidates))

	return result, nil
}
