package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func testSchema() JSONSchema {
	return JSONSchema{
		Type:     "object",
		Required: []string{"project", "rows"},
		Properties: map[string]Property{
			"project": {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(10)},
			"policy":  {Type: "string", Enum: []string{"strict", "lenient"}},
			"rows": {
				Type:  "array",
				Items: &Property{Type: "array", Items: &Property{Type: "string"}},
			},
			"mapping": {
				Type:                 "object",
				Required:             []string{"building"},
				AdditionalProperties: &Property{Type: "string"},
			},
		},
		AdditionalProperties: true,
	}
}

func TestValidateInput_Valid(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"project": "tower-a",
		"policy":  "strict",
		"rows":    []interface{}{[]interface{}{"CMO", "GF"}},
		"mapping": map[string]interface{}{"building": "Facility"},
		"extra":   42,
	}, testSchema())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateInput_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
		field string
		code  string
	}{
		{
			name:  "missing required",
			input: map[string]interface{}{"rows": []interface{}{}},
			field: "project",
			code:  "REQUIRED_FIELD_MISSING",
		},
		{
			name:  "wrong type",
			input: map[string]interface{}{"project": 7, "rows": []interface{}{}},
			field: "project",
			code:  "INVALID_TYPE",
		},
		{
			name:  "enum",
			input: map[string]interface{}{"project": "p", "rows": []interface{}{}, "policy": "loose"},
			field: "policy",
			code:  "INVALID_ENUM_VALUE",
		},
		{
			name:  "too long",
			input: map[string]interface{}{"project": "a-very-long-project", "rows": []interface{}{}},
			field: "project",
			code:  "MAX_LENGTH_VIOLATION",
		},
		{
			name: "nested required",
			input: map[string]interface{}{
				"project": "p", "rows": []interface{}{},
				"mapping": map[string]interface{}{"floor": "Level"},
			},
			field: "mapping.building",
			code:  "REQUIRED_FIELD_MISSING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, testSchema())
			require.False(t, result.Valid)
			errs := result.GetErrorsForField(tt.field)
			require.NotEmpty(t, errs, "errors: %v", result.GetErrorMessages())
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidateInput_RejectsExtraFields(t *testing.T) {
	schema := testSchema()
	schema.AdditionalProperties = false

	result := ValidateInput(map[string]interface{}{"project": "p", "rows": []interface{}{}, "bogus": true}, schema)
	require.False(t, result.Valid)
	assert.True(t, result.HasErrors("bogus"))
	assert.Equal(t, "EXTRA_FIELD", result.Errors[0].Code)
}

func TestGetSchemaFromJSON(t *testing.T) {
	schema, err := GetSchemaFromJSON(`{"type":"object","properties":{"a":{"type":"string"}},"required":["a"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, schema.Required)

	result := ValidateInput(map[string]interface{}{}, schema)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"a: a is required"}, result.GetErrorMessages())
}
