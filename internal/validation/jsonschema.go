// Package validation checks workflow documents structurally before the
// compiler sees them.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/uiflow/pkg/schema"
)

// graphSchemaJSON is the JSON Schema for workflow graph documents.
// Embedded as a constant to avoid filesystem dependencies.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://uiflow.dev/schemas/graph.json",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    }
  },
  "additionalProperties": true,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {
          "type": "string",
          "minLength": 1
        },
        "type": { "type": "string" },
        "data": {
          "type": "object",
          "additionalProperties": { "type": "string" }
        }
      },
      "additionalProperties": true
    },
    "edge": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "source": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": true
    }
  }
}`

// GraphValidator validates workflow graph documents against the graph
// JSON Schema. It is safe for concurrent use.
type GraphValidator struct {
	graphSchema *jsonschema.Schema
}

// NewGraphValidator creates a GraphValidator with the graph schema pre-compiled.
func NewGraphValidator() (*GraphValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal graph schema: %w", err)
	}
	if err := c.AddResource("https://uiflow.dev/schemas/graph.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add graph schema resource: %w", err)
	}

	compiled, err := c.Compile("https://uiflow.dev/schemas/graph.json")
	if err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}

	return &GraphValidator{graphSchema: compiled}, nil
}

// ValidateDocument validates raw workflow document bytes. Note that the
// node `type` field is deliberately unconstrained here: unrecognized types
// must survive to the emitter, which degrades them to comments.
func (v *GraphValidator) ValidateDocument(data []byte) error {
	if !json.Valid(data) {
		return schema.NewError(schema.ErrCodeValidation, "workflow document is not valid JSON")
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to decode workflow document").WithCause(err)
	}

	if err := v.graphSchema.Validate(doc); err != nil {
		return toFlowError(err)
	}
	return nil
}

// toFlowError converts a jsonschema.ValidationError into a FlowError with
// clear, actionable messages.
func toFlowError(err error) *schema.FlowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0])
	}
	return schema.NewErrorf(schema.ErrCodeValidation,
		"validation failed with %d errors: %s", len(violations), strings.Join(violations, "; "))
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
