package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefinition_YAML(t *testing.T) {
	definition, err := LoadDefinition("testdata/definitions/escalate.yaml")
	require.NoError(t, err)

	assert.Equal(t, "escalate-urgent", definition.ID)
	assert.Equal(t, models.TriggerTicketCreated, definition.TriggerType)
	assert.Equal(t, map[string]any{"channel": "email"}, definition.Trigger)
	assert.Equal(t, 10, definition.CooldownMinutes)
	require.NotNil(t, definition.MaxExecutions)
	assert.Equal(t, 100, *definition.MaxExecutions)
	assert.Equal(t, int64(3), definition.Variables["threshold"])

	require.Len(t, definition.Steps, 3)
	assert.Equal(t, "alta", definition.Steps[0].Condition.Value)
	assert.Equal(t, "step2", definition.Steps[0].OnTrue)
	assert.Equal(t, "assign", definition.Steps[1].Action.Type)
	assert.InDelta(t, 42, definition.Steps[1].Action.Params["value"], 0)
}

func TestLoadDefinitions_Directory(t *testing.T) {
	definitions, err := LoadDefinitions("testdata/definitions")
	require.NoError(t, err)
	require.Len(t, definitions, 2)

	assert.Equal(t, "escalate-urgent", definitions[0].ID)
	assert.Equal(t, "welcome-comment", definitions[1].ID)
	assert.Equal(t, models.StepTypeWait, definitions[1].Steps[1].Type)
}

func TestParseDefinition_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		document string
		contains string
	}{
		{
			name:     "schema: missing steps",
			document: `{"id":"x","organization_id":"o","name":"abc","trigger_type":"custom"}`,
			contains: "steps",
		},
		{
			name:     "schema: unknown trigger",
			document: `{"id":"x","organization_id":"o","name":"abc","trigger_type":"nope","steps":[{"id":"a","type":"approval"}]}`,
			contains: "trigger_type",
		},
		{
			name: "graph: dangling reference",
			document: `{"id":"x","organization_id":"o","name":"abc","trigger_type":"custom",
				"steps":[{"id":"a","type":"approval","next":"b"}]}`,
			contains: `unknown step "b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.document), FormatJSON)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadDefinition_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.toml")
	require.NoError(t, os.WriteFile(path, []byte("id = 1"), 0o600))

	_, err := LoadDefinition(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDefinitionSchema_Embedded(t *testing.T) {
	assert.Contains(t, string(DefinitionSchema()), `"trigger_type"`)
}
