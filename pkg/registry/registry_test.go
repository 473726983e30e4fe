package registry_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
	"github.com/dukex/deskflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type echoFactory struct {
	id        string
	createErr error
	execErr   error
}

func (f *echoFactory) ID() string { return f.id }

func (f *echoFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}

	return protocol.ActionFunc(func(_ context.Context, _ *models.ExecutionContext, _ *slog.Logger) (map[string]any, error) {
		if f.execErr != nil {
			return nil, f.execErr
		}

		return map[string]any{"echo": config["value"]}, nil
	}), nil
}

func newRegistry() *registry.Registry {
	return registry.NewRegistry(slog.Default())
}

func TestRegistry_Dispatch(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	reg.RegisterAction(&echoFactory{id: "echo"})

	result, err := reg.Dispatch(context.Background(), *models.NewActionSpec("echo", map[string]any{"value": "hi"}), &models.ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "hi"}, result)
}

func TestRegistry_DispatchUnknownType(t *testing.T) {
	t.Parallel()

	reg := newRegistry()

	_, err := reg.Dispatch(context.Background(), *models.NewActionSpec("teleport", nil), &models.ExecutionContext{})
	require.ErrorIs(t, err, registry.ErrUnknownActionType)
	assert.False(t, registry.IsActionExecution(err))
}

func TestRegistry_DispatchWrapsHandlerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		factory *echoFactory
	}{
		{"create fails", &echoFactory{id: "broken", createErr: errBoom}},
		{"execute fails", &echoFactory{id: "broken", execErr: errBoom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := newRegistry()
			reg.RegisterAction(tt.factory)

			_, err := reg.Dispatch(context.Background(), *models.NewActionSpec("broken", nil), &models.ExecutionContext{})
			require.ErrorIs(t, err, errBoom)

			var execErr *registry.ActionExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, "broken", execErr.Kind)
		})
	}
}

func TestRegistry_Kinds(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	reg.RegisterAction(&echoFactory{id: "webhook"})
	reg.RegisterAction(&echoFactory{id: "add_tag"})
	reg.RegisterAction(&echoFactory{id: "add_tag"})

	assert.Equal(t, []string{"add_tag", "webhook"}, reg.Kinds())
	assert.True(t, reg.HasAction("webhook"))
	assert.False(t, reg.HasAction("wait"))
}

func TestRegistry_LoadActionPluginsMissingDir(t *testing.T) {
	t.Parallel()

	factories, err := newRegistry().LoadActionPlugins(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, factories)
}
