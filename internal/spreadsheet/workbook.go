// Package spreadsheet reads asset registers from Excel workbooks and writes generated IDs back.
package spreadsheet

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/models"
)

const (
	IDSheet        = "Asset IDs"
	ReportSheet    = "Report"
	CodeTableSheet = "Code Table"
)

var codeTableHeader = []string{"Level", "Parent", "Value", "Code", "Source"}

// Output is everything written to a result workbook.
type Output struct {
	Dataset models.Dataset
	Report  []string
	Table   *codetable.CodeTable
}

// ReadFile opens path and reads one sheet. An empty sheet name selects the first sheet.
func ReadFile(path, sheet string) (models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Dataset{}, errors.NewSpreadsheetReadError(err)
	}
	defer f.Close()
	return ReadDataset(f, sheet)
}

// ReadDataset reads the header row and data rows of a sheet. Trailing blank rows are dropped
// and every row is padded to the header width.
func ReadDataset(r io.Reader, sheet string) (models.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.Dataset{}, errors.NewSpreadsheetReadError(err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return models.Dataset{}, errors.NewSpreadsheetReadError(fmt.Errorf("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return models.Dataset{}, errors.NewSpreadsheetReadError(err)
	}
	if len(rows) == 0 {
		return models.Dataset{}, errors.NewSpreadsheetReadError(fmt.Errorf("sheet %q is empty", sheet))
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	data := rows[1:]
	for len(data) > 0 && blank(data[len(data)-1]) {
		data = data[:len(data)-1]
	}

	ds := models.Dataset{Headers: headers, Rows: make([][]string, len(data))}
	for i, cells := range data {
		row := make([]string, len(headers))
		copy(row, cells)
		ds.Rows[i] = row
	}
	return ds, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteFile writes out to path.
func WriteFile(path string, out Output) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWorkbook(f, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteWorkbook writes the annotated rows, the report lines and the code table as three sheets.
func WriteWorkbook(w io.Writer, out Output) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), IDSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeTable(f, IDSheet, out.Dataset.Headers, out.Dataset.Rows, headerStyle); err != nil {
		return err
	}

	if _, err := f.NewSheet(ReportSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	report := make([][]string, len(out.Report))
	for i, line := range out.Report {
		report[i] = []string{line}
	}
	if err := writeTable(f, ReportSheet, []string{"Finding"}, report, headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(ReportSheet, "A", "A", 100); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if out.Table != nil {
		if _, err := f.NewSheet(CodeTableSheet); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		var rows [][]string
		for _, e := range out.Table.Snapshot().Entries {
			rows = append(rows, []string{string(e.Level), e.Parent, e.Raw, e.Code, string(e.Source)})
		}
		if err := writeTable(f, CodeTableSheet, codeTableHeader, rows, headerStyle); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]string, headerStyle int) error {
	if len(headers) > 0 {
		if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sheet, err)
		}
		last, err := excelize.CoordinatesToCellName(len(headers), 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}
	return nil
}
