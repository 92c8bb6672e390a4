package abbreviation

import (
	"fmt"
	"sort"
	"strings"

	"assetid-workers/internal/assetid/normalize"
	"assetid-workers/internal/models"
)

// WarnNonStandard flags equipment text missing from the vocabulary.
const WarnNonStandard = "NON_STANDARD_EQUIPMENT"

// placeholderCells are template filler values that are never reported.
var placeholderCells = map[string]bool{"MANDATORY": true}

// Finding is one non-standard value on one row.
type Finding struct {
	Row   int          `json:"row"`
	Field models.Field `json:"field"`
	Value string       `json:"value"`
}

// ValidationReport lists every non-standard equipment value in a dataset.
type ValidationReport struct {
	Findings          []Finding `json:"findings"`
	NonStandardTypes  []string  `json:"nonStandardTypes"`
	NonStandardSystem []string  `json:"nonStandardSystems"`
}

// Valid reports whether every equipment value is standard.
func (r ValidationReport) Valid() bool { return len(r.Findings) == 0 }

// Lines renders the report the way uploaders expect it: one line per finding, then the unique
// values per column.
func (r ValidationReport) Lines() []string {
	if r.Valid() {
		return nil
	}
	lines := make([]string, 0, len(r.Findings)+len(r.NonStandardTypes)+len(r.NonStandardSystem)+3)
	for _, f := range r.Findings {
		kind := "type"
		column := "Asset/Equipment"
		if f.Field == models.FieldEquipmentSystem {
			kind, column = "class", "Asset System"
		}
		lines = append(lines, fmt.Sprintf("Row %d: Non-standard equipment %s '%s' in %s column", f.Row+2, kind, f.Value, column))
	}
	if len(r.NonStandardSystem) > 0 {
		lines = append(lines, "Non-standard Equipment Classes found: "+strings.Join(r.NonStandardSystem, ", "))
	}
	if len(r.NonStandardTypes) > 0 {
		lines = append(lines, "Non-standard Equipment Types found: "+strings.Join(r.NonStandardTypes, ", "))
	}
	lines = append(lines, "You can proceed with the upload, but make sure to create these equipment classes/types in your system.")
	return lines
}

// Warnings converts findings into row warnings.
func (r ValidationReport) Warnings() []models.Warning {
	out := make([]models.Warning, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, models.Warning{
			Row:     f.Row,
			Field:   f.Field,
			Level:   models.LevelEquipment,
			Code:    WarnNonStandard,
			Message: fmt.Sprintf("non-standard %s %q", f.Field, f.Value),
		})
	}
	return out
}

// Validate checks equipment names and systems against the vocabulary. Empty cells are skipped.
func Validate(vocab *Vocabulary, records []models.AssetRecord) ValidationReport {
	var report ValidationReport
	types := make(map[string]bool)
	systems := make(map[string]bool)

	for _, rec := range records {
		for _, field := range []models.Field{models.FieldEquipmentSystem, models.FieldEquipmentName} {
			value := strings.TrimSpace(rec.Attribute(field))
			key := normalize.Canonical(value)
			if key == "" || placeholderCells[key] {
				continue
			}
			if _, ok := vocab.LookupKey(key); ok {
				continue
			}
			report.Findings = append(report.Findings, Finding{Row: rec.Row, Field: field, Value: value})
			if field == models.FieldEquipmentSystem {
				systems[value] = true
			} else {
				types[value] = true
			}
		}
	}

	report.NonStandardTypes = sortedKeys(types)
	report.NonStandardSystem = sortedKeys(systems)
	return report
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
