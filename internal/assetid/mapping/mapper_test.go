package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/models"
)

var headers = []string{"Building", "Floor", "Sublocation", "Room", "Asset / Equipment", "Asset System"}

func fullMapping() models.FieldMapping {
	return models.FieldMapping{
		models.FieldBuilding:        "Building",
		models.FieldFloor:           "Floor",
		models.FieldSublocation:     "Sublocation",
		models.FieldRoom:            "Room",
		models.FieldEquipmentName:   "Asset / Equipment",
		models.FieldEquipmentSystem: "Asset System",
	}
}

func TestResolve_AllColumnsPresent(t *testing.T) {
	resolved, warnings, err := New(Options{}).Resolve(headers, fullMapping())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, resolved.Columns[models.FieldBuilding])
	assert.Equal(t, 5, resolved.Columns[models.FieldEquipmentSystem])

	rec := resolved.Record(3, []string{"Main", "GF", "North", "101", "AHU", "HVAC"})
	assert.Equal(t, 3, rec.Row)
	assert.Equal(t, "Main", rec.Building)
	assert.Equal(t, "HVAC", rec.EquipmentSystem)
	assert.Equal(t, 5, rec.SheetRow())
}

func TestResolve_MissingColumnIsWarning(t *testing.T) {
	m := fullMapping()
	m[models.FieldRoom] = "Room Number"

	resolved, warnings, err := New(Options{}).Resolve(headers, m)
	require.NoError(t, err)
	assert.False(t, resolved.IsMapped(models.FieldRoom))

	codes := warningCodes(warnings)
	assert.Contains(t, codes, WarnColumnMissing)
	assert.Contains(t, codes, WarnFieldUnmapped)

	rec := resolved.Record(0, []string{"Main", "GF", "North", "101", "AHU", "HVAC"})
	assert.Equal(t, "", rec.Room)
}

func TestResolve_LooseMatch(t *testing.T) {
	m := models.FieldMapping{models.FieldBuilding: "building", models.FieldFloor: "FLOOR "}

	resolved, warnings, err := New(Options{}).Resolve(headers, m)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved.Columns[models.FieldBuilding])
	assert.Equal(t, 1, resolved.Columns[models.FieldFloor])
	assert.Contains(t, warningCodes(warnings), WarnLooseMatch)
}

func TestResolve_ShortRowYieldsEmpty(t *testing.T) {
	resolved, _, err := New(Options{}).Resolve(headers, fullMapping())
	require.NoError(t, err)

	rec := resolved.Record(0, []string{"Main"})
	assert.Equal(t, "Main", rec.Building)
	assert.Equal(t, "", rec.EquipmentName)
}

func TestResolve_FailsFast(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		mapping models.FieldMapping
		opts    Options
	}{
		{"empty mapping", headers, models.FieldMapping{}, Options{}},
		{"all unmapped", headers, models.FieldMapping{models.FieldBuilding: "unmapped", models.FieldFloor: " "}, Options{}},
		{"unknown field", headers, models.FieldMapping{"wing": "Building"}, Options{}},
		{"no headers", nil, fullMapping(), Options{}},
		{"nothing resolvable", headers, models.FieldMapping{models.FieldBuilding: "Site Name"}, Options{}},
		{"column reused", headers, models.FieldMapping{models.FieldBuilding: "Building", models.FieldFloor: "Building"}, Options{}},
		{"ambiguous loose match", []string{"Floor", "floor_"}, models.FieldMapping{models.FieldFloor: "FLOOR"}, Options{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.opts).Resolve(tt.headers, tt.mapping)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeMappingInvalid))
		})
	}
}

func TestResolve_ColumnReuseAllowed(t *testing.T) {
	m := models.FieldMapping{models.FieldEquipmentName: "Asset / Equipment", models.FieldEquipmentSystem: "Asset / Equipment"}

	resolved, _, err := New(Options{AllowColumnReuse: true}).Resolve(headers, m)
	require.NoError(t, err)
	assert.Equal(t, resolved.Columns[models.FieldEquipmentName], resolved.Columns[models.FieldEquipmentSystem])
}

func TestInfer(t *testing.T) {
	got := Infer([]string{"Site", "Level", "Zone", "Space", "Asset / Equipment", "Asset System", "Notes"})
	assert.Equal(t, models.FieldMapping{
		models.FieldBuilding:        "Site",
		models.FieldFloor:           "Level",
		models.FieldSublocation:     "Zone",
		models.FieldRoom:            "Space",
		models.FieldEquipmentName:   "Asset / Equipment",
		models.FieldEquipmentSystem: "Asset System",
	}, got)

	partial := Infer([]string{"Building", "Comments"})
	assert.Equal(t, models.FieldMapping{models.FieldBuilding: "Building"}, partial)
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping([]string{"building=Site Name", "equipment_name = Asset / Equipment"})
	require.NoError(t, err)
	assert.Equal(t, "Site Name", m[models.FieldBuilding])
	assert.Equal(t, "Asset / Equipment", m[models.FieldEquipmentName])

	_, err = ParseMapping([]string{"building"})
	assert.Error(t, err)
	_, err = ParseMapping([]string{"wing=Wing"})
	assert.Error(t, err)
}

func warningCodes(ws []models.Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}
