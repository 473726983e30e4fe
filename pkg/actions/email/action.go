// Package email implements the send_email action on top of a helpdesk.Mailer.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// ActionFactory builds send_email actions.
type ActionFactory struct {
	mailer  helpdesk.Mailer
	timeout time.Duration
}

// NewActionFactory creates the factory. A zero timeout means 30s.
func NewActionFactory(mailer helpdesk.Mailer, timeout time.Duration) *ActionFactory {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &ActionFactory{mailer: mailer, timeout: timeout}
}

func (f *ActionFactory) ID() string {
	return "send_email"
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	template := models.FormatID(config["template"])
	if template == "" {
		template = models.FormatID(config["value"])
	}

	if template == "" {
		return nil, actions.Missing("template")
	}

	extra, _ := config["data"].(map[string]any)

	return &Action{
		templateID: template,
		to:         models.FormatID(config["to"]),
		extra:      extra,
		factory:    f,
	}, nil
}

// Action sends one templated email about the target ticket.
type Action struct {
	templateID string
	to         string
	extra      map[string]any
	factory    *ActionFactory
}

func (a *Action) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	ticket, err := actions.RequireTicket(execCtx, "send_email")
	if err != nil {
		return nil, err
	}

	if execCtx.TestMode {
		return map[string]any{"templateId": a.templateID, "emailSent": false}, nil
	}

	data := map[string]any{
		"ticket":          ticket.Fields(),
		"variables":       execCtx.Variables,
		"to":              a.to,
		"organization_id": ticket.OrganizationID,
	}
	maps.Copy(data, a.extra)

	if execCtx.Workflow != nil {
		data["workflow"] = execCtx.Workflow.Name
		data["workflow_id"] = execCtx.Workflow.ID
	}

	if execCtx.Execution != nil {
		data["execution_id"] = execCtx.Execution.ID
	}

	sendCtx, cancel := context.WithTimeout(ctx, a.factory.timeout)
	defer cancel()

	err = a.factory.mailer.Send(sendCtx, a.templateID, data)
	if err != nil {
		return nil, fmt.Errorf("failed to send email with template %s: %w", a.templateID, err)
	}

	logger.InfoContext(ctx, "Email sent", "template_id", a.templateID, "ticket_id", ticket.ID)

	return map[string]any{"templateId": a.templateID, "emailSent": true}, nil
}
