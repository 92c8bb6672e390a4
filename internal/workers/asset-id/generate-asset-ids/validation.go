package generateassetids

import (
	"assetid-workers/internal/common/validation"
	"assetid-workers/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	levels := make([]string, len(models.Levels))
	for i, l := range models.Levels {
		levels[i] = string(l)
	}

	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"project", "headers", "rows", "mapping"},
		Properties: map[string]validation.Property{
			"project": {
				Type:        "string",
				Description: "Project whose code table is loaded and saved",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(128),
			},
			"headers": {
				Type:        "array",
				Description: "Spreadsheet header row",
				MinItems:    intPtr(1),
				Items:       &validation.Property{Type: "string"},
			},
			"rows": {
				Type:        "array",
				Description: "Spreadsheet data rows as text cells",
				Items: &validation.Property{
					Type:  "array",
					Items: &validation.Property{Type: "string"},
				},
			},
			"mapping": {
				Type:                 "object",
				Description:          "Logical field to column name; \"unmapped\" disables a field",
				AdditionalProperties: &validation.Property{Type: "string"},
			},
			"levels": {
				Type:        "array",
				Description: "Levels to generate",
				Items:       &validation.Property{Type: "string", Enum: levels},
			},
			"policy": {
				Type:        "string",
				Description: "Missing attribute policy",
				Enum:        []string{string(models.PolicyStrict), string(models.PolicyLenient)},
			},
			"persist": {
				Type:        "boolean",
				Description: "Load and save the project's code table",
			},
			"index": {
				Type:        "boolean",
				Description: "Index generated IDs for search",
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
