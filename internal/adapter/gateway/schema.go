package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"suitcase-link/internal/domain"
)

// requestSchemas are the JSON Schemas RPC payloads are checked against
// before decoding. Methods without an entry are decoded unchecked.
var requestSchemas = map[string]string{
	"session.select_transport": `{
		"type": "object",
		"required": ["transport"],
		"properties": {"transport": {"type": "string", "minLength": 1}}
	}`,
	"session.connect": `{
		"type": "object",
		"required": ["device_id"],
		"properties": {"device_id": {"type": "string", "minLength": 1, "maxLength": 256}}
	}`,
	"session.set_class": `{
		"type": "object",
		"required": ["class"],
		"properties": {"class": {"type": "string", "minLength": 1}}
	}`,
	"history.recent": `{
		"type": "object",
		"properties": {"limit": {"type": "integer", "minimum": 1}}
	}`,
}

var compiledSchemas = mustCompileSchemas(requestSchemas)

func mustCompileSchemas(raw map[string]string) map[string]*jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(raw))
	for method, src := range raw {
		schema, err := compiler.Compile([]byte(src))
		if err != nil {
			panic(fmt.Sprintf("gateway: compile %s schema: %v", method, err))
		}
		out[method] = schema
	}
	return out
}

// validatePayload checks an already well-formed JSON payload against the
// method's schema.
func validatePayload(op string, payload json.RawMessage) error {
	schema, ok := compiledSchemas[op]
	if !ok {
		return nil
	}
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return domain.NewDomainError(op, domain.ErrRPCInvalidPayload, err.Error())
	}
	result := schema.Validate(data)
	if !result.IsValid() {
		return domain.NewDomainError(op, domain.ErrRPCInvalidPayload, result.Error())
	}
	return nil
}
