package workflow

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/workflow.schema.json
var definitionSchema []byte

var definitionSchemaLoader = gojsonschema.NewBytesLoader(definitionSchema)

// DefinitionSchema returns the JSON schema definition documents are checked against.
func DefinitionSchema() []byte {
	return definitionSchema
}

// ValidateDocument checks a raw JSON definition against the definition schema.
func ValidateDocument(document []byte) error {
	result, err := gojsonschema.Validate(definitionSchemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to validate definition document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := &ValidationError{}
	for _, desc := range result.Errors() {
		problems.add("%s", desc.String())
	}

	return problems
}
