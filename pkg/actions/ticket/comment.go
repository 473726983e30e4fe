package ticket

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
	"github.com/dukex/deskflow/pkg/template"
	"github.com/google/uuid"
)

// CommentActionFactory builds add_comment actions.
type CommentActionFactory struct {
	tickets helpdesk.Tickets
}

func NewCommentActionFactory(tickets helpdesk.Tickets) *CommentActionFactory {
	return &CommentActionFactory{tickets: tickets}
}

func (f *CommentActionFactory) ID() string {
	return "add_comment"
}

func (f *CommentActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	body := models.FormatID(config["value"])
	if body == "" {
		body = models.FormatID(config["template"])
	}

	if body == "" {
		return nil, actions.Missing("value")
	}

	internal, _ := config["internal"].(bool)

	return &CommentAction{body: body, internal: internal, tickets: f.tickets}, nil
}

// CommentAction appends a comment, rendered against the execution context, attributed to the triggering user, or the system user.
type CommentAction struct {
	body     string
	internal bool
	tickets  helpdesk.Tickets
}

func (a *CommentAction) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	ticket, err := actions.RequireTicket(execCtx, "add_comment")
	if err != nil {
		return nil, err
	}

	body, err := template.RenderWithContext(a.body, execCtx)
	if err != nil {
		return nil, err
	}

	author := execCtx.ActorID()
	if author == "" {
		author = helpdesk.SystemUserID
	}

	if execCtx.TestMode {
		return map[string]any{"comment": body, "authorId": author, "commentAdded": false}, nil
	}

	comment := &models.Comment{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		AuthorID:  author,
		Body:      body,
		Internal:  a.internal,
		CreatedAt: time.Now().UTC(),
	}

	err = a.tickets.AddComment(ctx, comment)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Comment added", "ticket_id", ticket.ID, "comment_id", comment.ID)

	return map[string]any{"commentId": comment.ID, "authorId": author}, nil
}
