package managecodetable

import "assetid-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	minLen := 1
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"project", "action"},
		Properties: map[string]validation.Property{
			"project": {Type: "string", MinLength: &minLen},
			"action":  {Type: "string", Enum: []string{string(ActionGet), string(ActionReset)}},
			"level":   {Type: "string", Enum: []string{"facility", "location", "space", "subspace", "equipment"}},
		},
		AdditionalProperties: true,
	}
}
