package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const definitionSchemaURL = "definition.json"

// definitionSchemaJSON describes a test definition document. Numbers may be
// written as strings and durations as strings or integer seconds, matching
// what the setting parsers accept.
const definitionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name":        {"type": "string"},
    "target":      {"type": "string"},
    "method":      {"type": "string"},
    "headers": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean"]}
    },
    "body":        {"type": "string"},
    "concurrency": {"type": ["integer", "string"]},
    "rate":        {"type": ["integer", "string"]},
    "total":       {"type": ["integer", "string"]},
    "retries":     {"type": ["integer", "string"]},
    "duration":    {"type": ["integer", "string"]},
    "timeout":     {"type": ["integer", "string"]},
    "thresholds": {
      "type": ["array", "string"],
      "items": {"type": "string"}
    }
  }
}`

var definitionSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(definitionSchemaURL, strings.NewReader(definitionSchemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(definitionSchemaURL)
})

// validateDefinitionDocument checks the settings read from a definition
// file before they are applied. Unknown keys are rejected.
func validateDefinitionDocument(settings map[string]interface{}) error {
	schema, err := definitionSchema()
	if err != nil {
		return fmt.Errorf("definition schema: %w", err)
	}

	// Round-trip through JSON so the validator sees plain JSON values.
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("definition: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("definition: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid definition: %w", err)
	}
	return nil
}
