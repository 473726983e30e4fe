package memory_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/helpdesk/memory"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeed(t *testing.T) {
	dir, err := memory.LoadSeed(filepath.Join("testdata", "seed.json"))
	require.NoError(t, err)

	ctx := context.Background()

	target, err := dir.Load(ctx, models.TargetKindTicket, "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, []string{"vip"}, target.Ticket.Tags)

	target, err = dir.Load(ctx, models.TargetKindDepartment, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, "Support", target.Department.Name)

	members, err := dir.DepartmentMembers(ctx, "org-1", "dep-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "agent-1", members[0].ID)

	_, err = memory.LoadSeed(filepath.Join("testdata", "missing.json"))
	require.Error(t, err)
}

func TestDirectory_Load(t *testing.T) {
	dir := memory.NewDirectory()
	ctx := context.Background()

	target, err := dir.Load(ctx, models.TargetKindTicket, "nope")
	require.NoError(t, err)
	assert.Nil(t, target)

	target, err = dir.Load(ctx, models.TargetKindUser, "nope")
	require.NoError(t, err)
	assert.Nil(t, target)

	_, err = dir.Load(ctx, "invoice", "1")
	require.ErrorIs(t, err, helpdesk.ErrUnknownTargetKind)
}

func TestDirectory_CopiesTickets(t *testing.T) {
	dir := memory.NewDirectory()
	ctx := context.Background()

	ticket := testutil.CreateTestTicket()
	dir.PutTicket(ticket)

	target, err := dir.Load(ctx, models.TargetKindTicket, ticket.ID)
	require.NoError(t, err)

	target.Ticket.Priority = "urgent"

	stored, ok := dir.Ticket(ticket.ID)
	require.True(t, ok)
	assert.Equal(t, "medium", stored.Priority, "loaded targets must not alias the store")

	require.NoError(t, dir.SaveTicket(ctx, target.Ticket))

	stored, _ = dir.Ticket(ticket.ID)
	assert.Equal(t, "urgent", stored.Priority)

	require.Error(t, dir.SaveTicket(ctx, &models.Ticket{ID: "ghost"}))
}

func TestDirectory_CreateAndComment(t *testing.T) {
	dir := memory.NewDirectory()
	ctx := context.Background()

	created := &models.Ticket{OrganizationID: "org-1", Subject: "Follow up"}
	require.NoError(t, dir.CreateTicket(ctx, created))
	assert.NotEmpty(t, created.ID)
	assert.Len(t, dir.Tickets(), 1)

	require.NoError(t, dir.AddComment(ctx, &models.Comment{TicketID: created.ID, Body: "hello"}))
	require.Error(t, dir.AddComment(ctx, &models.Comment{TicketID: "ghost", Body: "hello"}))

	comments := dir.Comments(created.ID)
	require.Len(t, comments, 1)
	assert.Equal(t, "hello", comments[0].Body)
	assert.NotEmpty(t, comments[0].ID)

	require.NoError(t, dir.Send(ctx, "welcome", map[string]any{"to": "ana@example.com"}))
	require.Len(t, dir.Mails(), 1)
	assert.Equal(t, "welcome", dir.Mails()[0].TemplateID)
}
