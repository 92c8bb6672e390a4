package engine

import (
	"fmt"

	"assetid-workers/internal/models"
)

// StatusColumn is appended after the ID columns.
const StatusColumn = "asset_id_status"

// Columns lists the ID columns a result adds, in hierarchy order.
func (r *Result) Columns() []string {
	out := make([]string, 0, len(r.Levels)+1)
	for _, l := range r.Levels {
		out = append(out, l.Column())
	}
	return append(out, StatusColumn)
}

// Annotate returns a copy of ds with one ID column per enabled level and a status column.
// Failed and cancelled rows keep empty ID cells. Rows wider than the header keep every cell;
// the header is padded with blank names so the ID columns stay aligned.
func Annotate(ds models.Dataset, r *Result) models.Dataset {
	cols := r.Columns()
	width := len(ds.Headers)
	for _, cells := range ds.Rows {
		width = max(width, len(cells))
	}

	headers := make([]string, width, width+len(cols))
	copy(headers, ds.Headers)
	out := models.Dataset{
		Headers: append(headers, cols...),
		Rows:    make([][]string, len(ds.Rows)),
	}

	for i, cells := range ds.Rows {
		row := make([]string, width, width+len(cols))
		copy(row, cells)

		var rr models.RowResult
		if i < len(r.Rows) {
			rr = r.Rows[i]
		}
		for _, l := range r.Levels {
			row = append(row, rr.IDs[l])
		}
		row = append(row, StatusCell(rr))
		out.Rows[i] = row
	}
	return out
}

// StatusCell renders a row outcome for the status column.
func StatusCell(rr models.RowResult) string {
	switch rr.Status {
	case models.RowOK:
		if len(rr.Warnings) > 0 {
			return fmt.Sprintf("ok (%d warnings)", len(rr.Warnings))
		}
		return "ok"
	case models.RowFailed:
		return "failed: " + rr.ErrorCode
	case models.RowCancelled:
		return "cancelled"
	}
	return ""
}

// Report flattens run warnings, row warnings and row errors into "Row N: ..." lines, where N is
// the spreadsheet row with the header on row 1.
func Report(r *Result) []string {
	var lines []string
	for _, w := range r.Warnings {
		lines = append(lines, w.String())
	}
	for _, row := range r.Rows {
		for _, w := range row.Warnings {
			lines = append(lines, w.String())
		}
		if row.Status == models.RowFailed {
			lines = append(lines, fmt.Sprintf("Row %d: %s (%s)", row.Record.SheetRow(), row.Error, row.ErrorCode))
		}
	}
	return lines
}
