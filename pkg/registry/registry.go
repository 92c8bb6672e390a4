// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/normalize"
)

const fileVersion = "1"

// LoadVocabulary reads a vocabulary file. Files ending in .yaml or .yml are parsed as YAML,
// anything else as JSON.
func LoadVocabulary(path string) (*VocabularyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file VocabularyFile
	if isYAML(path) {
		err = yaml.Unmarshal(data, &file)
	} else {
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary %s: %w", path, err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vocabulary %s: %w", path, err)
	}
	return &file, nil
}

// SaveVocabulary writes file in the format implied by the path, stamping LastUpdated.
func SaveVocabulary(path string, file *VocabularyFile) error {
	if file.Version == "" {
		file.Version = fileVersion
	}
	file.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	sortTerms(file.Equipment)
	sortTerms(file.Locations)

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(file)
	} else {
		data, err = json.MarshalIndent(file, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects blank texts, codes that contain no letters or digits, and texts that
// collide after canonicalization.
func (f *VocabularyFile) Validate() error {
	for kind, terms := range map[Kind][]abbreviation.Term{KindEquipment: f.Equipment, KindLocation: f.Locations} {
		seen := make(map[string]string, len(terms))
		for _, t := range terms {
			key := normalize.Canonical(t.Text)
			if key == "" {
				return fmt.Errorf("%s term with empty text", kind)
			}
			if normalize.Compact(t.Code) == "" {
				return fmt.Errorf("%s term %q has an empty code", kind, t.Text)
			}
			if prev, ok := seen[key]; ok {
				return fmt.Errorf("%s terms %q and %q collide", kind, prev, t.Text)
			}
			seen[key] = t.Text
		}
	}
	return nil
}

// Add inserts or replaces a term of the given kind.
func (f *VocabularyFile) Add(kind Kind, text, code string) error {
	key := normalize.Canonical(text)
	code = normalize.Compact(code)
	if key == "" || code == "" {
		return fmt.Errorf("text and code must both contain letters or digits")
	}

	terms, err := f.terms(kind)
	if err != nil {
		return err
	}
	for i, t := range *terms {
		if normalize.Canonical(t.Text) == key {
			(*terms)[i] = abbreviation.Term{Text: text, Code: code}
			return nil
		}
	}
	*terms = append(*terms, abbreviation.Term{Text: text, Code: code})
	return nil
}

func (f *VocabularyFile) terms(kind Kind) (*[]abbreviation.Term, error) {
	switch kind {
	case KindEquipment:
		return &f.Equipment, nil
	case KindLocation:
		return &f.Locations, nil
	}
	return nil, fmt.Errorf("unknown vocabulary kind %q", kind)
}

// EquipmentVocabulary returns the equipment terms as a vocabulary.
func (f *VocabularyFile) EquipmentVocabulary() *abbreviation.Vocabulary {
	return toVocabulary(f.Equipment)
}

// LocationVocabulary returns the location terms as a vocabulary.
func (f *VocabularyFile) LocationVocabulary() *abbreviation.Vocabulary {
	return toVocabulary(f.Locations)
}

func toVocabulary(terms []abbreviation.Term) *abbreviation.Vocabulary {
	v := abbreviation.NewVocabulary(nil)
	for _, t := range terms {
		v.Add(t.Text, t.Code)
	}
	return v
}

func sortTerms(terms []abbreviation.Term) {
	sort.Slice(terms, func(i, j int) bool {
		return normalize.Canonical(terms[i].Text) < normalize.Canonical(terms[j].Text)
	})
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
