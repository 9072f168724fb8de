package tabular

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookSheet is the sheet name used for XLSX exports.
const WorkbookSheet = "Data"

// ToCSVText encodes a table as CSV with every field quoted, including the
// header row. Embedded quotes are doubled and rows end in "\n" separators
// with no trailing newline.
func ToCSVText(headers []string, rows []Row) string {
	var b strings.Builder
	writeCSVLine(&b, headers)
	cells := make([]string, len(headers))
	for _, r := range rows {
		b.WriteByte('\n')
		for i, h := range headers {
			cells[i] = r.Get(h)
		}
		writeCSVLine(&b, cells)
	}
	return b.String()
}

func writeCSVLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

// ToWorkbookRows lays a table out as spreadsheet rows: headers first, then
// one slice per row in header order.
func ToWorkbookRows(headers []string, rows []Row) [][]string {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, append([]string(nil), headers...))
	for _, r := range rows {
		line := make([]string, len(headers))
		for i, h := range headers {
			line[i] = r.Get(h)
		}
		out = append(out, line)
	}
	return out
}

// WriteWorkbook serializes the table as an XLSX workbook with a single
// sheet. Cells are written as text.
func WriteWorkbook(w io.Writer, headers []string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), WorkbookSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, line := range ToWorkbookRows(headers, rows) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		values := make([]any, len(line))
		for j, v := range line {
			values[j] = v
		}
		if err := f.SetSheetRow(WorkbookSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
