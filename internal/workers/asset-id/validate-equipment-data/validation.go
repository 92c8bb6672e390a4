package validateequipmentdata

import "assetid-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"headers", "rows", "mapping"},
		Properties: map[string]validation.Property{
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
				Description:          "Logical field to column name",
				AdditionalProperties: &validation.Property{Type: "string"},
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
