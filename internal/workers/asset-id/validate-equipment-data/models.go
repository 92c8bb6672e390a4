package validateequipmentdata

import (
	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/common/logger"
)

type Input struct {
	Headers []string          `json:"headers"`
	Rows    [][]string        `json:"rows"`
	Mapping map[string]string `json:"mapping"`
}

type Output struct {
	Valid              bool                   `json:"valid"`
	Findings           []abbreviation.Finding `json:"findings,omitempty"`
	NonStandardTypes   []string               `json:"nonStandardTypes,omitempty"`
	NonStandardSystems []string               `json:"nonStandardSystems,omitempty"`
	Report             []string               `json:"report"`
}

type ServiceDependencies struct {
	Logger logger.Logger
	// Vocabulary defaults to the built-in equipment vocabulary.
	Vocabulary *abbreviation.Vocabulary
}
