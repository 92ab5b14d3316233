package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRegistry_NutritionEstimate(t *testing.T) {
	registry, err := NewSchemaRegistry()
	require.NoError(t, err)

	violations, err := registry.Validate(SchemaNutritionEstimate, []byte(`{"calories": 450, "protein": 32, "carbs": 12, "fat": 28}`))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = registry.Validate(SchemaNutritionEstimate, []byte(`{"calories": 450}`))
	require.NoError(t, err)
	assert.NotEmpty(t, violations, "missing required fields must be rejected")

	violations, err = registry.Validate(SchemaNutritionEstimate, []byte(`{"calories": -1, "protein": 32, "carbs": 12, "fat": 28}`))
	require.NoError(t, err)
	assert.NotEmpty(t, violations, "negative macronutrients must be rejected")

	violations, err = registry.Validate(SchemaNutritionEstimate, []byte(`{"calories": "a lot", "protein": 32, "carbs": 12, "fat": 28}`))
	require.NoError(t, err)
	assert.NotEmpty(t, violations, "wrong types must be rejected")
}

func TestSchemaRegistry_UnknownSchema(t *testing.T) {
	registry, err := NewSchemaRegistry()
	require.NoError(t, err)

	_, err = registry.Validate("no_such_schema", []byte(`{}`))
	assert.Error(t, err)
}

func TestSchemaRegistry_RegisterRejectsBrokenSchema(t *testing.T) {
	registry, err := NewSchemaRegistry()
	require.NoError(t, err)

	assert.Error(t, registry.Register("broken", []byte(`{"type": `)))
}
