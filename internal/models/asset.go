// internal/models/asset.go
package models

import (
	"fmt"
	"strings"
)

// Level is one tier of the asset hierarchy.
type Level string

const (
	LevelFacility  Level = "facility"
	LevelLocation  Level = "location"
	LevelSpace     Level = "space"
	LevelSubspace  Level = "subspace"
	LevelEquipment Level = "equipment"
)

// Levels lists every level in hierarchy order.
var Levels = []Level{LevelFacility, LevelLocation, LevelSpace, LevelSubspace, LevelEquipment}

// Depth returns the zero-based position of the level, or -1 when unknown.
func (l Level) Depth() int {
	for i, lv := range Levels {
		if lv == l {
			return i
		}
	}
	return -1
}

func (l Level) Valid() bool { return l.Depth() >= 0 }

// Column is the output column name carrying this level's ID.
func (l Level) Column() string { return string(l) + "_id" }

// ParseLevels parses level names, dropping duplicates and sorting them into hierarchy order.
func ParseLevels(names []string) ([]Level, error) {
	seen := make(map[Level]bool, len(names))
	for _, n := range names {
		lv := Level(strings.ToLower(strings.TrimSpace(n)))
		if lv == "" {
			continue
		}
		if !lv.Valid() {
			return nil, fmt.Errorf("unknown level %q", n)
		}
		seen[lv] = true
	}
	out := make([]Level, 0, len(seen))
	for _, lv := range Levels {
		if seen[lv] {
			out = append(out, lv)
		}
	}
	return out, nil
}

// Deepest returns the deepest level of the set.
func Deepest(levels []Level) Level {
	deepest := Level("")
	for _, lv := range levels {
		if deepest == "" || lv.Depth() > deepest.Depth() {
			deepest = lv
		}
	}
	return deepest
}

// Field is a logical attribute extracted from a spreadsheet row.
type Field string

const (
	FieldBuilding        Field = "building"
	FieldFloor           Field = "floor"
	FieldSublocation     Field = "sublocation"
	FieldRoom            Field = "room"
	FieldEquipmentName   Field = "equipment_name"
	FieldEquipmentSystem Field = "equipment_system"
)

// Fields lists every logical field.
var Fields = []Field{
	FieldBuilding, FieldFloor, FieldSublocation, FieldRoom, FieldEquipmentName, FieldEquipmentSystem,
}

func (f Field) Valid() bool {
	for _, known := range Fields {
		if known == f {
			return true
		}
	}
	return false
}

// LevelField returns the field feeding a non-equipment level.
func LevelField(l Level) Field {
	switch l {
	case LevelFacility:
		return FieldBuilding
	case LevelLocation:
		return FieldFloor
	case LevelSpace:
		return FieldSublocation
	case LevelSubspace:
		return FieldRoom
	}
	return ""
}

// Unmapped marks a logical field with no source column.
const Unmapped = "unmapped"

// FieldMapping maps logical fields to declared spreadsheet column names.
type FieldMapping map[Field]string

// ResolvedMapping maps logical fields to header positions.
type ResolvedMapping struct {
	Columns map[Field]int    `json:"columns"`
	Names   map[Field]string `json:"names"`
}

func (m ResolvedMapping) IsMapped(f Field) bool {
	_, ok := m.Columns[f]
	return ok
}

// Record extracts one row's attributes. Unmapped fields and short rows yield empty strings.
func (m ResolvedMapping) Record(index int, cells []string) AssetRecord {
	get := func(f Field) string {
		col, ok := m.Columns[f]
		if !ok || col < 0 || col >= len(cells) {
			return ""
		}
		return cells[col]
	}
	return AssetRecord{
		Row:             index,
		Building:        get(FieldBuilding),
		Floor:           get(FieldFloor),
		Sublocation:     get(FieldSublocation),
		Room:            get(FieldRoom),
		EquipmentName:   get(FieldEquipmentName),
		EquipmentSystem: get(FieldEquipmentSystem),
	}
}

// AssetRecord is one row's resolved attributes.
type AssetRecord struct {
	Row             int    `json:"row"`
	Building        string `json:"building,omitempty"`
	Floor           string `json:"floor,omitempty"`
	Sublocation     string `json:"sublocation,omitempty"`
	Room            string `json:"room,omitempty"`
	EquipmentName   string `json:"equipmentName,omitempty"`
	EquipmentSystem string `json:"equipmentSystem,omitempty"`
}

// Attribute returns the value for a logical field.
func (r AssetRecord) Attribute(f Field) string {
	switch f {
	case FieldBuilding:
		return r.Building
	case FieldFloor:
		return r.Floor
	case FieldSublocation:
		return r.Sublocation
	case FieldRoom:
		return r.Room
	case FieldEquipmentName:
		return r.EquipmentName
	case FieldEquipmentSystem:
		return r.EquipmentSystem
	}
	return ""
}

// SheetRow is the 1-based spreadsheet row number, counting the header row.
func (r AssetRecord) SheetRow() int { return r.Row + 2 }

// Dataset is a header row plus data rows.
type Dataset struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Policy controls how empty required attributes are handled.
type Policy string

const (
	PolicyStrict  Policy = "strict"
	PolicyLenient Policy = "lenient"
)

func (p Policy) Valid() bool { return p == PolicyStrict || p == PolicyLenient }

// CodeSource records where a code came from.
type CodeSource string

const (
	SourceDerived     CodeSource = "derived"
	SourceKnownTable  CodeSource = "known-table"
	SourceFallbackAI  CodeSource = "fallback-ai"
	SourcePlaceholder CodeSource = "placeholder"
)
