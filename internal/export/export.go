// Package export writes datasets out as CSV downloads and XLSX workbooks.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Export renders ds in format. Only csv is supported.
func Export(ds *dataset.Dataset, format string) ([]byte, error) {
	if format != "csv" {
		return nil, fmt.Errorf("%w: export %q", dataset.ErrUnsupportedFormat, format)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes a header line and one line per row, in dataset order,
// without an index column. Missing values are empty fields; a row that is a
// single missing value is written as "" so it survives a reload.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns()); err != nil {
		return err
	}
	for i := 0; i < ds.Len(); i++ {
		rec := ds.Record(i)
		line := make([]string, len(rec))
		for j, v := range rec {
			line[j] = dataset.Format(v)
		}
		if len(line) == 1 && line[0] == "" {
			// A bare empty line is skipped by CSV readers; quote the field.
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Sheet is one named tab of a workbook export.
type Sheet struct {
	Name string
	Data *dataset.Dataset
}

// Workbook builds an xlsx file with one sheet per entry, in order. Sheet
// names longer than the 31 characters a workbook allows are cut.
func Workbook(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook needs at least one sheet", dataset.ErrMalformedInput)
	}
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for i, s := range sheets {
		name := sheetName(s.Name)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		if i == 0 {
			idx, err := f.GetSheetIndex(name)
			if err == nil {
				f.SetActiveSheet(idx)
			}
		}
		if err := writeSheet(f, name, s.Data); err != nil {
			return nil, err
		}
	}
	if !hasSheet(sheets, defaultSheet) {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, ds *dataset.Dataset) error {
	header := make([]any, 0, len(ds.Columns()))
	for _, c := range ds.Columns() {
		header = append(header, c)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("sheet %q header: %w", name, err)
	}
	for i := 0; i < ds.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		rec := ds.Record(i)
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = cellValue(v)
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("sheet %q row %d: %w", name, i+1, err)
		}
	}
	return nil
}

// cellValue keeps numbers numeric in the workbook; everything else is text
// in report form.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return t.InexactFloat64()
	}
	return dataset.Format(v)
}

var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

func sheetName(name string) string {
	name = sheetNameReplacer.Replace(name)
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

func hasSheet(sheets []Sheet, name string) bool {
	for _, s := range sheets {
		if sheetName(s.Name) == name {
			return true
		}
	}
	return false
}
