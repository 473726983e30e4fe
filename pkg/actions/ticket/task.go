package ticket

import (
	"context"
	"log/slog"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
	"github.com/dukex/deskflow/pkg/template"
)

const defaultTaskStatus = "open"

// TaskActionFactory builds create_task actions.
type TaskActionFactory struct {
	tickets helpdesk.Tickets
}

func NewTaskActionFactory(tickets helpdesk.Tickets) *TaskActionFactory {
	return &TaskActionFactory{tickets: tickets}
}

func (f *TaskActionFactory) ID() string {
	return "create_task"
}

func (f *TaskActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	subject := models.FormatID(config["subject"])
	if subject == "" {
		subject = models.FormatID(config["value"])
	}

	if subject == "" {
		return nil, actions.Missing("subject")
	}

	return &TaskAction{
		subject:     subject,
		description: models.FormatID(config["description"]),
		priority:    models.FormatID(config["priority"]),
		assigneeID:  models.FormatID(config["assignee"]),
		tickets:     f.tickets,
	}, nil
}

// TaskAction creates a ticket linked as a child of the current target, when there is one.
type TaskAction struct {
	subject     string
	description string
	priority    string
	assigneeID  string
	tickets     helpdesk.Tickets
}

func (a *TaskAction) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	subject, err := template.RenderWithContext(a.subject, execCtx)
	if err != nil {
		return nil, err
	}

	description, err := template.RenderWithContext(a.description, execCtx)
	if err != nil {
		return nil, err
	}

	task := &models.Ticket{
		Subject:     subject,
		Description: description,
		Status:      defaultTaskStatus,
		Priority:    a.priority,
		AssigneeID:  a.assigneeID,
		RequesterID: execCtx.ActorID(),
	}

	if execCtx.Execution != nil {
		task.OrganizationID = execCtx.Execution.OrganizationID
	}

	if parent, ok := execCtx.Ticket(); ok {
		task.ParentID = parent.ID
		task.DepartmentID = parent.DepartmentID

		if task.Priority == "" {
			task.Priority = parent.Priority
		}
	}

	if execCtx.TestMode {
		return map[string]any{"subject": task.Subject, "parentId": task.ParentID, "taskCreated": false}, nil
	}

	if task.RequesterID == "" {
		task.RequesterID = helpdesk.SystemUserID
	}

	err = a.tickets.CreateTicket(ctx, task)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Task created", "task_id", task.ID, "parent_id", task.ParentID)

	return map[string]any{"taskId": task.ID, "parentId": task.ParentID, "subject": task.Subject}, nil
}
