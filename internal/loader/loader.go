// Package loader turns uploaded CSV and spreadsheet bytes into datasets and
// normalizes columns so that both sides of a join compare equal.
package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"Recon340B/internal/dataset"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Format is the declared type of an upload.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// FormatFromFilename maps a file extension to a Format. Unknown extensions
// come back as-is and are rejected by Load.
func FormatFromFilename(name string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return Format(ext)
}

// IsSpreadsheet reports whether f is one of the workbook formats.
func (f Format) IsSpreadsheet() bool { return f == FormatXLSX || f == FormatXLS }

// Load parses raw into a dataset named name. The first row is the header.
// Every cell loads as text; empty cells are missing.
func Load(name string, raw []byte, format Format) (*dataset.Dataset, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = parseCSV(raw)
	case FormatXLSX:
		records, err = parseXLSX(raw)
	case FormatXLS:
		records, err = parseXLS(raw)
	default:
		return nil, fmt.Errorf("%w: %q", dataset.ErrUnsupportedFormat, string(format))
	}
	if err != nil {
		return nil, err
	}
	sheet := format.IsSpreadsheet()
	return fromRecords(name, records, sheet, sheet)
}

// fromRecords enforces a rectangular table. Spreadsheet readers drop
// trailing empty cells, so short spreadsheet rows are padded; CSV rows must
// match the header exactly. skipBlank drops rows with no content.
func fromRecords(name string, records [][]string, padShort, skipBlank bool) (*dataset.Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", dataset.ErrMalformedInput, name)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		header[i] = h
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s has an empty header row", dataset.ErrMalformedInput, name)
	}

	rows := make([][]any, 0, len(records)-1)
	for i, rec := range records[1:] {
		if skipBlank && isBlank(rec) {
			continue
		}
		if len(rec) > len(header) || (!padShort && len(rec) != len(header)) {
			return nil, fmt.Errorf("%w: %s row %d has %d fields, header has %d",
				dataset.ErrMalformedInput, name, i+2, len(rec), len(header))
		}
		row := make([]any, len(header))
		for j, cell := range rec {
			if cell != "" {
				row[j] = cell
			}
		}
		rows = append(rows, row)
	}
	return dataset.FromRecords(name, header, rows)
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseCSV(raw []byte) ([][]string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(raw))
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrMalformedInput, err)
	}
	return records, nil
}

func parseXLSX(raw []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrMalformedInput, err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", dataset.ErrMalformedInput)
	}
	rows, err := sheetRows(f, sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrMalformedInput, err)
	}
	return rows, nil
}

// Built-in number formats that render a calendar date: m/d/yy, d-mmm-yy,
// d-mmm, mmm-yy and m/d/yy h:mm.
var builtinDateFormats = map[int]bool{14: true, 15: true, 16: true, 17: true, 22: true}

// sheetRows reads sheet with cell formatting applied, except that cells
// styled as dates keep their raw serial. Other cells keep their display
// format, including the leading zeros of a zero-padded NDC.
func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	dateStyle := make(map[int]bool)
	for r, row := range rows {
		if r >= len(raw) {
			break
		}
		for c, cell := range row {
			if c >= len(raw[r]) || raw[r][c] == cell {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			styleID, err := f.GetCellStyle(sheet, axis)
			if err != nil {
				return nil, err
			}
			isDate, seen := dateStyle[styleID]
			if !seen {
				isDate = isDateStyle(f, styleID)
				dateStyle[styleID] = isDate
			}
			if isDate {
				row[c] = raw[r][c]
			}
		}
	}
	return rows, nil
}

func isDateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt == nil {
		return builtinDateFormats[style.NumFmt]
	}
	code := strings.ToLower(*style.CustomNumFmt)
	// Bracketed sections ([$-409], [Red]) and quoted literals are not tokens.
	code = bracketed.ReplaceAllString(code, "")
	code = quoted.ReplaceAllString(code, "")
	return strings.ContainsAny(code, "dy")
}

var (
	bracketed = regexp.MustCompile(`\[[^\]]*\]`)
	quoted    = regexp.MustCompile(`"[^"]*"`)
)

// parseXLS reads the first sheet of a legacy BIFF workbook. The xls reader
// panics on some corrupt files and on sparse row maps, so it runs under recover.
func parseXLS(raw []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%w: unreadable xls: %v", dataset.ErrMalformedInput, r)
		}
	}()
	book, err := xls.OpenReader(bytes.NewReader(raw), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrMalformedInput, err)
	}
	if book == nil || book.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: no sheets found", dataset.ErrMalformedInput)
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%w: first sheet unreadable", dataset.ErrMalformedInput)
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		vals := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			vals = append(vals, row.Col(j))
		}
		rows = append(rows, vals)
	}
	// Leading empty rows before the header are not part of the table.
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	return rows, nil
}

func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
