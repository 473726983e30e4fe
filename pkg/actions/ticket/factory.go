package ticket

import (
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/protocol"
)

// Factories returns every ticket action factory.
func Factories(tickets helpdesk.Tickets, agents helpdesk.Agents) []protocol.ActionFactory {
	out := make([]protocol.ActionFactory, 0, len(fields)+4)
	for _, f := range FieldActionFactories(tickets) {
		out = append(out, f)
	}

	return append(out,
		NewTeamActionFactory(tickets, agents),
		NewCommentActionFactory(tickets),
		NewTagActionFactory(tickets),
		NewTaskActionFactory(tickets),
	)
}
