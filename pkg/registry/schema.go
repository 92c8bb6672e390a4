// pkg/registry/schema.go
package registry

import "assetid-workers/internal/assetid/abbreviation"

// Kind selects one of the vocabularies in a file.
type Kind string

const (
	KindEquipment Kind = "equipment"
	KindLocation  Kind = "location"
)

// VocabularyFile is the on-disk abbreviation registry, stored as JSON or YAML.
type VocabularyFile struct {
	Version     string              `json:"version" yaml:"version"`
	LastUpdated string              `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
	Equipment   []abbreviation.Term `json:"equipment,omitempty" yaml:"equipment,omitempty"`
	Locations   []abbreviation.Term `json:"locations,omitempty" yaml:"locations,omitempty"`
}
