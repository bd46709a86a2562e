package loader

import (
	"bytes"
	"fmt"

	"Recon340B/internal/dataset"

	"github.com/xuri/excelize/v2"
)

// Workbook gives named-sheet and positional access to a multi-sheet upload.
// Sheets are read once on open; interior blank rows are kept so row
// positions match the source sheet.
type Workbook struct {
	names  []string
	sheets map[string][][]string
}

// OpenWorkbook reads every sheet of an xlsx upload.
func OpenWorkbook(raw []byte, format Format) (*Workbook, error) {
	if format != FormatXLSX {
		return nil, fmt.Errorf("%w: workbook access needs xlsx, got %q", dataset.ErrUnsupportedFormat, string(format))
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrMalformedInput, err)
	}
	defer f.Close()

	wb := &Workbook{sheets: make(map[string][][]string)}
	for _, name := range f.GetSheetList() {
		rows, err := sheetRows(f, name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", dataset.ErrMalformedInput, name, err)
		}
		wb.names = append(wb.names, name)
		wb.sheets[name] = rows
	}
	return wb, nil
}

// SheetNames lists sheets in workbook order.
func (w *Workbook) SheetNames() []string { return append([]string(nil), w.names...) }

// Sheet loads a sheet as a dataset; the first row is the header.
func (w *Workbook) Sheet(name string) (*dataset.Dataset, error) {
	rows, ok := w.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dataset.ErrSheetNotFound, name)
	}
	return fromRecords(name, rows, true, false)
}

// RowAt returns data row index (zero-based, header excluded) of sheet.
// ok is false when the sheet or the row does not exist.
func (w *Workbook) RowAt(sheet string, index int) (dataset.Row, bool) {
	ds, err := w.Sheet(sheet)
	if err != nil || index < 0 || index >= ds.Len() {
		return nil, false
	}
	return ds.Row(index), true
}
