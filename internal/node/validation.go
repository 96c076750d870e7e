package node

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/metadata.schema.json
var metadataSchemaJSON []byte

const metadataSchemaURL = "mcp-sim://schemas/metadata.schema.json"

var metadataSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(metadataSchemaURL, metadataSchemaJSON)
})

// MetadataSchema returns the raw JSON schema node metadata is validated
// against.
func MetadataSchema() []byte {
	return bytes.Clone(metadataSchemaJSON)
}

// ValidateMetadata validates meta against the embedded metadata schema.
func ValidateMetadata(meta Metadata) error {
	schema, err := metadataSchema()
	if err != nil {
		return err
	}
	return validateAgainst(schema, "metadata", meta)
}

// ValidateMetadataJSON validates a raw metadata document, which may carry
// fields the Metadata type doesn't model.
func ValidateMetadataJSON(raw []byte) error {
	schema, err := metadataSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ValidationError{Subject: "metadata", Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return validateAgainst(schema, "metadata", doc)
}

// ValidateInput validates input data against a JSON schema.
func ValidateInput(data map[string]any, schema map[string]any) error {
	compiled, err := CompileSchema("input", schema)
	if err != nil {
		return err
	}
	return validateAgainst(compiled, "input", data)
}

// ValidateOutput validates output data against a JSON schema.
func ValidateOutput(data map[string]any, schema map[string]any) error {
	compiled, err := CompileSchema("output", schema)
	if err != nil {
		return err
	}
	return validateAgainst(compiled, "output", data)
}

// CompileSchema compiles a JSON schema given as a decoded document. name only
// identifies the schema in error messages.
func CompileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s schema: %v", ErrConfiguration, name, err)
	}
	return compileSchema("mcp-sim://schemas/"+name+".json", raw)
}

func compileSchema(url string, raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: load schema %s: %v", ErrConfiguration, url, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: compile schema %s: %v", ErrConfiguration, url, err)
	}
	return schema, nil
}

func validateAgainst(schema *jsonschema.Schema, subject string, value any) error {
	doc, err := toJSONValue(value)
	if err != nil {
		return &ValidationError{Subject: subject, Detail: err.Error()}
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return &ValidationError{Subject: subject, Detail: describe(ve)}
	}
	return &ValidationError{Subject: subject, Detail: err.Error()}
}

// toJSONValue round-trips value through encoding/json so the validator only
// ever sees the generic types it understands.
func toJSONValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

// describe reports the innermost cause, which names the failing keyword.
func describe(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	location := strings.TrimSpace(ve.InstanceLocation)
	if location == "" {
		location = "(root)"
	}
	return fmt.Sprintf("%s: %s", location, ve.Message)
}
