// Package mapping resolves declared field → column mappings against spreadsheet headers.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/models"
)

// Warning codes emitted while resolving.
const (
	WarnColumnMissing = string(errors.ErrCodeMappingColumnMissing)
	WarnLooseMatch    = "MAPPING_COLUMN_LOOSE_MATCH"
	WarnFieldUnmapped = "MAPPING_FIELD_UNMAPPED"
)

// Options tune resolution.
type Options struct {
	// AllowColumnReuse lets one column feed several logical fields.
	AllowColumnReuse bool
}

type Mapper struct {
	opts Options
}

func New(opts Options) *Mapper {
	return &Mapper{opts: opts}
}

// Resolve validates a declared mapping against the header row.
//
// Missing columns are reported as warnings and leave the field unmapped. The returned error is
// always a MAPPING_INVALID StandardError and means no row may be processed.
func (m *Mapper) Resolve(headers []string, declared models.FieldMapping) (models.ResolvedMapping, []models.Warning, error) {
	resolved := models.ResolvedMapping{
		Columns: make(map[models.Field]int),
		Names:   make(map[models.Field]string),
	}

	if len(headers) == 0 {
		return resolved, nil, errors.NewMappingInvalidError("header row is empty")
	}

	declaredCount := 0
	for field, column := range declared {
		if !field.Valid() {
			return resolved, nil, errors.NewMappingInvalidError(fmt.Sprintf("unknown logical field %q", field))
		}
		if !isUnmapped(column) {
			declaredCount++
		}
	}
	if declaredCount == 0 {
		return resolved, nil, errors.NewMappingInvalidError("no logical field is mapped to a column")
	}

	exact := make(map[string]int, len(headers))
	loose := make(map[string][]int, len(headers))
	for i, h := range headers {
		if _, dup := exact[h]; !dup {
			exact[h] = i
		}
		key := normalizeHeader(h)
		loose[key] = append(loose[key], i)
	}

	var warnings []models.Warning
	usedBy := make(map[int]models.Field)

	for _, field := range models.Fields {
		column, ok := declared[field]
		if !ok || isUnmapped(column) {
			continue
		}

		idx, found := exact[column]
		if !found {
			candidates := loose[normalizeHeader(column)]
			switch len(candidates) {
			case 0:
				warnings = append(warnings, models.Warning{
					Row:     -1,
					Field:   field,
					Code:    WarnColumnMissing,
					Message: fmt.Sprintf("column %q mapped to %s not found in headers; field left unmapped", column, field),
				})
				continue
			case 1:
				idx = candidates[0]
				warnings = append(warnings, models.Warning{
					Row:     -1,
					Field:   field,
					Code:    WarnLooseMatch,
					Message: fmt.Sprintf("column %q mapped to %s matched header %q", column, field, headers[idx]),
				})
			default:
				return resolved, warnings, errors.NewMappingInvalidError(
					fmt.Sprintf("column %q for %s is ambiguous: %d headers match", column, field, len(candidates)))
			}
		}

		if other, taken := usedBy[idx]; taken && !m.opts.AllowColumnReuse {
			return resolved, warnings, errors.NewMappingInvalidError(
				fmt.Sprintf("column %q is mapped to both %s and %s", headers[idx], other, field))
		}
		usedBy[idx] = field
		resolved.Columns[field] = idx
		resolved.Names[field] = headers[idx]
	}

	if len(resolved.Columns) == 0 {
		return resolved, warnings, errors.NewMappingInvalidError("none of the mapped columns exist in the headers")
	}

	for _, field := range models.Fields {
		if !resolved.IsMapped(field) {
			warnings = append(warnings, models.Warning{
				Row:     -1,
				Field:   field,
				Code:    WarnFieldUnmapped,
				Message: fmt.Sprintf("%s is unmapped; its values are treated as empty", field),
			})
		}
	}

	return resolved, warnings, nil
}

func isUnmapped(column string) bool {
	c := strings.TrimSpace(column)
	return c == "" || strings.EqualFold(c, models.Unmapped)
}

// normalizeHeader lowercases and drops spaces, underscores, hyphens and slashes.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '/', '\t':
			return -1
		}
		return r
	}, h)
}

// ParseMapping reads "field=Column" pairs.
func ParseMapping(pairs []string) (models.FieldMapping, error) {
	out := make(models.FieldMapping, len(pairs))
	for _, p := range pairs {
		field, column, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("mapping %q must look like field=Column", p)
		}
		f := models.Field(strings.ToLower(strings.TrimSpace(field)))
		if !f.Valid() {
			return nil, fmt.Errorf("unknown logical field %q", field)
		}
		out[f] = strings.TrimSpace(column)
	}
	return out, nil
}

// FromStrings converts a JSON-style map into a FieldMapping.
func FromStrings(m map[string]string) models.FieldMapping {
	out := make(models.FieldMapping, len(m))
	for k, v := range m {
		out[models.Field(strings.ToLower(strings.TrimSpace(k)))] = v
	}
	return out
}

// Describe renders a mapping in field order.
func Describe(m models.FieldMapping) []string {
	var out []string
	for _, f := range models.Fields {
		if c, ok := m[f]; ok && !isUnmapped(c) {
			out = append(out, fmt.Sprintf("%s=%s", f, c))
		}
	}
	sort.Strings(out)
	return out
}
