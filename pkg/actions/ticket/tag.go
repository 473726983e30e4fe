package ticket

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
)

// TagActionFactory builds add_tag actions.
type TagActionFactory struct {
	tickets helpdesk.Tickets
}

func NewTagActionFactory(tickets helpdesk.Tickets) *TagActionFactory {
	return &TagActionFactory{tickets: tickets}
}

func (f *TagActionFactory) ID() string {
	return "add_tag"
}

func (f *TagActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	tags := parseTags(config["value"])
	if len(tags) == 0 {
		return nil, actions.Missing("value")
	}

	return &TagAction{tags: tags, tickets: f.tickets}, nil
}

// parseTags accepts a single tag, a comma separated list or a sequence.
func parseTags(value any) []string {
	var raw []string

	switch v := value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			raw = append(raw, models.FormatID(item))
		}
	case nil:
		return nil
	default:
		raw = []string{models.FormatID(v)}
	}

	tags := make([]string, 0, len(raw))

	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag != "" && !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}

	return tags
}

// TagAction unions its tags into the ticket tag set.
type TagAction struct {
	tags    []string
	tickets helpdesk.Tickets
}

func (a *TagAction) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	ticket, err := actions.RequireTicket(execCtx, "add_tag")
	if err != nil {
		return nil, err
	}

	merged := slices.Clone(ticket.Tags)
	added := make([]string, 0, len(a.tags))

	for _, tag := range a.tags {
		if !slices.Contains(merged, tag) {
			merged = append(merged, tag)
			added = append(added, tag)
		}
	}

	result := map[string]any{"tags": merged, "added": added}

	if execCtx.TestMode || len(added) == 0 {
		return result, nil
	}

	ticket.Tags = merged

	err = a.tickets.SaveTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Tags added", "ticket_id", ticket.ID, "tags", added)

	return result, nil
}
