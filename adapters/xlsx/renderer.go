// Package reportxlsx exports the tables of a report into an XLSX workbook.
package reportxlsx

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-report/report"
	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows   = 1048576
	minColumnWidth = 8
	maxColumnWidth = 60
)

// Renderer writes one sheet per table, named "Table 1", "Table 2", and so on.
// Cells that parse as numbers are stored as numbers.
type Renderer struct {
	Creator string
}

// Render implements report.Renderer.
func (r Renderer) Render(ctx context.Context, req report.RenderRequest) (report.Rendition, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tables := req.Translation.Document.Tables()
	if len(tables) == 0 {
		return report.Rendition{}, report.NewError(report.KindValidation, "report has no tables to export", nil)
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	creator := r.Creator
	if creator == "" {
		creator = "go-report"
	}
	if err := file.SetDocProps(&excelize.DocProperties{
		Title:   req.Report.DisplayTitle(),
		Creator: creator,
	}); err != nil {
		return report.Rendition{}, report.NewError(report.KindSerialization, "xlsx properties failed", err)
	}

	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return report.Rendition{}, report.NewError(report.KindSerialization, "xlsx header style failed", err)
	}

	for i, table := range tables {
		if err := ctx.Err(); err != nil {
			return report.Rendition{}, err
		}
		name := SheetName(i)
		if i == 0 {
			file.SetSheetName(file.GetSheetName(0), name)
		} else if _, err := file.NewSheet(name); err != nil {
			return report.Rendition{}, report.NewError(report.KindSerialization, "xlsx sheet create failed", err)
		}
		if err := writeTable(file, name, table, headerID); err != nil {
			return report.Rendition{}, err
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return report.Rendition{}, report.NewError(report.KindSerialization, "xlsx output failed", err)
	}
	return report.Rendition{Data: buf.Bytes(), Pages: len(tables)}, nil
}

// SheetName returns the sheet name for the table at index i.
func SheetName(i int) string {
	return fmt.Sprintf("Table %d", i+1)
}

func writeTable(file *excelize.File, sheet string, table *report.Table, headerID int) error {
	if len(table.Rows)+1 > excelMaxRows {
		return report.NewError(report.KindValidation, "xlsx row limit exceeded", nil)
	}

	stream, err := file.NewStreamWriter(sheet)
	if err != nil {
		return report.NewError(report.KindSerialization, "xlsx stream failed", err)
	}

	for col, width := range columnWidths(table) {
		if err := stream.SetColWidth(col+1, col+1, width); err != nil {
			return report.NewError(report.KindSerialization, "xlsx column width failed", err)
		}
	}

	header := make([]interface{}, len(table.Header))
	for i, label := range table.Header {
		header[i] = excelize.Cell{StyleID: headerID, Value: label}
	}
	if err := stream.SetRow("A1", header); err != nil {
		return report.NewError(report.KindSerialization, "xlsx header row failed", err)
	}

	for i, row := range table.Rows {
		cells := make([]interface{}, len(row))
		for j, value := range row {
			cells[j] = cellValue(value)
		}
		if err := stream.SetRow(fmt.Sprintf("A%d", i+2), cells); err != nil {
			return report.NewError(report.KindSerialization, "xlsx row failed", err)
		}
	}

	if err := stream.Flush(); err != nil {
		return report.NewError(report.KindSerialization, "xlsx flush failed", err)
	}
	return nil
}

func cellValue(value string) interface{} {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if strings.Trim(trimmed, "0123456789.,-+") != "" {
		return value
	}
	if n, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", ""), 64); err == nil {
		return n
	}
	return value
}

func columnWidths(table *report.Table) []float64 {
	widths := make([]float64, table.Columns())
	for j := range widths {
		longest := utf8.RuneCountInString(table.Header[j])
		for _, row := range table.Rows {
			longest = max(longest, utf8.RuneCountInString(row[j]))
		}
		widths[j] = float64(min(max(longest+2, minColumnWidth), maxColumnWidth))
	}
	return widths
}
