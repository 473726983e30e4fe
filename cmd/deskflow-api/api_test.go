package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/deskflow/pkg/cmd"
	"github.com/dukex/deskflow/pkg/testutil"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *cmd.Runtime) {
	t.Helper()

	ctx := context.Background()

	rt, err := cmd.NewRuntime(ctx, slog.Default(), cmd.Config{
		ServiceName: serviceName,
		WorkerID:    serviceName,
		DatabaseURL: t.TempDir(),
		EventBus:    "memory",
	})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close(ctx) })

	return NewAPI(slog.Default(), rt).App(), rt
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return body
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deskflow API", string(readBody(t, resp)))
}

func TestAPI_Liveness(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(readBody(t, resp)))
}

func TestAPI_EventRunsWorkflow(t *testing.T) {
	app, rt := setupTestApp(t)
	ctx := context.Background()

	rt.Directory.PutTicket(testutil.CreateTestTicket())

	definition := testutil.CreateTestDefinition()
	require.NoError(t, rt.Persistence.DefinitionRepository().Save(ctx, definition))

	payload, err := json.Marshal(testutil.CreateTestEvent())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	readBody(t, resp)

	rt.Engine.Wait()

	ticket, ok := rt.Directory.Ticket("ticket-1")
	require.True(t, ok)
	assert.Equal(t, "high", ticket.Priority)

	assert.Eventually(t, func() bool {
		stored, err := rt.Persistence.DefinitionRepository().GetByID(ctx, definition.ID)

		return err == nil && stored.ExecutionCount == 1
	}, 2*time.Second, 20*time.Millisecond)
}
