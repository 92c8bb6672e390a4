package spreadsheet

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/models"
)

func buildInput(t *testing.T, sheet string, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestReadDataset(t *testing.T) {
	buf := buildInput(t, "Register", [][]interface{}{
		{" Facility ", "Level", "Room", "Asset/Equipment"},
		{"CMO", "GF", "R101", "Exhaust Fan"},
		{"CMO", "GF", 102},
		{},
	})

	ds, err := ReadDataset(buf, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Facility", "Level", "Room", "Asset/Equipment"}, ds.Headers)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, []string{"CMO", "GF", "R101", "Exhaust Fan"}, ds.Rows[0])
	assert.Equal(t, []string{"CMO", "GF", "102", ""}, ds.Rows[1])
}

func TestReadDataset_Errors(t *testing.T) {
	_, err := ReadDataset(bytes.NewBufferString("not a workbook"), "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeSpreadsheetReadFailed))

	buf := buildInput(t, "Register", [][]interface{}{{"Facility"}})
	_, err = ReadDataset(buf, "Missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeSpreadsheetReadFailed))
}

func TestWriteWorkbook(t *testing.T) {
	table := codetable.New()
	tx := table.Begin()
	tx.PutEntry(codetable.Entry{Level: models.LevelLocation, Parent: "", Key: "CMO", Raw: "CMO", Code: "CMO", Source: models.SourceDerived})
	tx.Commit()

	out := Output{
		Dataset: models.Dataset{
			Headers: []string{"Facility", "location_id", "asset_id_status"},
			Rows:    [][]string{{"CMO", "CMO", "ok"}, {"", "", "failed: ATTRIBUTE_MISSING"}},
		},
		Report: []string{"Row 3: building is required (ATTRIBUTE_MISSING)"},
		Table:  table,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, out))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{IDSheet, ReportSheet, CodeTableSheet}, f.GetSheetList())

	rows, err := f.GetRows(IDSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Facility", "location_id", "asset_id_status"}, rows[0])
	assert.Equal(t, []string{"CMO", "CMO", "ok"}, rows[1])

	report, err := f.GetRows(ReportSheet)
	require.NoError(t, err)
	assert.Equal(t, "Row 3: building is required (ATTRIBUTE_MISSING)", report[1][0])

	codes, err := f.GetRows(CodeTableSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"location", "", "CMO", "CMO", "derived"}, codes[1])
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteFile(path, Output{Dataset: models.Dataset{
		Headers: []string{"Facility", "location_id"},
		Rows:    [][]string{{"CMO", "CMO"}},
	}}))

	ds, err := ReadFile(path, IDSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"CMO", "CMO"}}, ds.Rows)
}
