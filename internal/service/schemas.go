package service

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Built-in structured-response contracts. The provider is instructed to shape
// its output to one of these; the response is then validated against the same
// schema before anything downstream touches it.
const nutritionEstimateSchema = `{
	"type": "object",
	"properties": {
		"calories": {"type": "number", "minimum": 0},
		"protein": {"type": "number", "minimum": 0},
		"carbs": {"type": "number", "minimum": 0},
		"fat": {"type": "number", "minimum": 0}
	},
	"required": ["calories", "protein", "carbs", "fat"],
	"additionalProperties": false
}`

const ingredientSubstitutionsSchema = `{
	"type": "object",
	"properties": {
		"substitutions": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"ingredient": {"type": "string"},
					"replacement": {"type": "string"},
					"reason": {"type": "string"}
				},
				"required": ["ingredient", "replacement", "reason"]
			}
		}
	},
	"required": ["substitutions"]
}`

// Schema names registered by default.
const (
	SchemaNutritionEstimate       = "nutrition_estimate"
	SchemaIngredientSubstitutions = "ingredient_substitutions"
)

// SchemaRegistry holds named JSON-Schema contracts for structured provider
// responses.
type SchemaRegistry struct {
	mu       sync.RWMutex
	compiled map[string]*gojsonschema.Schema
	raw      map[string]json.RawMessage
}

// NewSchemaRegistry creates a registry preloaded with the built-in contracts.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	r := &SchemaRegistry{
		compiled: make(map[string]*gojsonschema.Schema),
		raw:      make(map[string]json.RawMessage),
	}
	if err := r.Register(SchemaNutritionEstimate, []byte(nutritionEstimateSchema)); err != nil {
		return nil, err
	}
	if err := r.Register(SchemaIngredientSubstitutions, []byte(ingredientSubstitutionsSchema)); err != nil {
		return nil, err
	}
	return r, nil
}

// Register compiles and stores a schema under the given name.
func (r *SchemaRegistry) Register(name string, schema []byte) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return fmt.Errorf("failed to compile schema %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.compiled[name] = compiled
	r.raw[name] = json.RawMessage(schema)
	return nil
}

// Raw returns the schema source for inclusion in a provider request.
func (r *SchemaRegistry) Raw(name string) (json.RawMessage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, ok := r.raw[name]
	return raw, ok
}

// Validate checks a document against the named schema. The returned map is
// empty when the document conforms; otherwise it maps the offending field to
// a description of the violation.
func (r *SchemaRegistry) Validate(name string, document []byte) (map[string]string, error) {
	r.mu.RLock()
	schema, ok := r.compiled[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown response schema %q", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return map[string]string{"document": err.Error()}, nil
	}
	if result.Valid() {
		return map[string]string{}, nil
	}

	violations := make(map[string]string, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations[desc.Field()] = desc.Description()
	}
	return violations, nil
}
