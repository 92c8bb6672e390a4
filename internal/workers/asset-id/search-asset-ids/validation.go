package searchassetids

import "assetid-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"project"},
		Properties: map[string]validation.Property{
			"project":       {Type: "string", MinLength: intPtr(1), Description: "Project whose IDs are searched"},
			"text":          {Type: "string", Description: "Free text over equipment, system and room"},
			"building":      {Type: "string"},
			"floor":         {Type: "string"},
			"assetIdPrefix": {Type: "string", Description: "Asset ID prefix such as CMO-GF"},
			"pagination": {
				Type: "object",
				Properties: map[string]validation.Property{
					"from": {Type: "integer", Minimum: floatPtr(0)},
					"size": {Type: "integer", Minimum: floatPtr(1), Maximum: floatPtr(100)},
				},
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}
