package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchema is the shape contract for the vision model's envelope
// payload. It is deliberately loose: every field is optional and scalars
// accept strings or numbers, so validation only rejects output that is not
// a structured envelope object at all (arrays, bare strings, numbers).
const envelopeSchema = `{
	"type": "object",
	"properties": {
		"patient_name":        {"type": ["string", "number", "null"]},
		"age":                 {"type": ["string", "number", "null"]},
		"dispense_date":       {"type": ["string", "number", "null"]},
		"pharmacy_name":       {"type": ["string", "number", "null"]},
		"hospital_name":       {"type": ["string", "number", "null"]},
		"prescription_number": {"type": ["string", "number", "null"]},
		"medicines": {
			"type": ["array", "null"],
			"items": {"type": "object"}
		},
		"med_features": {"type": ["object", "null"]}
	}
}`

var compiledEnvelopeSchema = mustCompileEnvelopeSchema()

func mustCompileEnvelopeSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("envelope.json", strings.NewReader(envelopeSchema)); err != nil {
		panic(fmt.Sprintf("add envelope schema resource: %v", err))
	}
	return compiler.MustCompile("envelope.json")
}

// validateEnvelopePayload checks that a parse candidate is a structured
// envelope object. A validation failure means the candidate should be
// skipped, not that the shot errors out.
func validateEnvelopePayload(candidate []byte) error {
	var doc any
	if err := json.Unmarshal(candidate, &doc); err != nil {
		return fmt.Errorf("failed to decode candidate JSON: %w", err)
	}
	if err := compiledEnvelopeSchema.Validate(doc); err != nil {
		return fmt.Errorf("payload does not match envelope shape: %w", err)
	}
	return nil
}
