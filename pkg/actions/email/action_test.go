package email_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/actions/email"
	"github.com/dukex/deskflow/pkg/helpdesk/memory"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(target *models.Target, testMode bool) *models.ExecutionContext {
	execCtx := models.NewExecutionContext(
		&models.WorkflowDefinition{ID: "wf-1", Name: "Notify requester"},
		&models.WorkflowExecution{ID: "ex-1"},
		target,
	)
	execCtx.TestMode = testMode

	return execCtx
}

func TestSendEmail(t *testing.T) {
	t.Parallel()

	dir := memory.NewDirectory()
	factory := email.NewActionFactory(dir, 0)
	assert.Equal(t, "send_email", factory.ID())

	action, err := factory.Create(context.Background(), map[string]any{"template": "ticket-escalated", "to": "boss@example.com"})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), newContext(models.TicketTarget(&models.Ticket{ID: "t-1"}), false), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"templateId": "ticket-escalated", "emailSent": true}, result)

	mails := dir.Mails()
	require.Len(t, mails, 1)
	assert.Equal(t, "ticket-escalated", mails[0].TemplateID)
	assert.Equal(t, "boss@example.com", mails[0].Data["to"])
	assert.Equal(t, "Notify requester", mails[0].Data["workflow"])
}

func TestSendEmail_TestModeReportsTemplateOnly(t *testing.T) {
	t.Parallel()

	dir := memory.NewDirectory()

	action, err := email.NewActionFactory(dir, 0).Create(context.Background(), map[string]any{"value": "welcome"})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), newContext(models.TicketTarget(&models.Ticket{ID: "t-1"}), true), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "welcome", result["templateId"])
	assert.Equal(t, false, result["emailSent"])
	assert.Empty(t, dir.Mails())
}

func TestSendEmail_Errors(t *testing.T) {
	t.Parallel()

	factory := email.NewActionFactory(memory.NewDirectory(), 0)

	_, err := factory.Create(context.Background(), map[string]any{})
	require.ErrorIs(t, err, actions.ErrMissingParameter)

	action, err := factory.Create(context.Background(), map[string]any{"template": "x"})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), newContext(models.DepartmentTarget(&models.Department{ID: "d"}), false), slog.Default())
	require.ErrorIs(t, err, actions.ErrInvalidTarget)
}
