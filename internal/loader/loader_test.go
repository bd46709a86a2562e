package loader

import (
	"errors"
	"testing"
	"time"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadCSV(t *testing.T) {
	raw := []byte("\xef\xbb\xbfNDC,Qty,Note\n111,2,\n222,,hello\n")
	ds, err := Load("claims", raw, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"NDC", "Qty", "Note"}, ds.Columns())
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "111", ds.Value(0, "NDC"))
	assert.Nil(t, ds.Value(0, "Note"))
	assert.Nil(t, ds.Value(1, "Qty"))
	assert.Equal(t, "claims", ds.Name())
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		raw    string
		format Format
		want   error
	}{
		"unsupported": {"a\n1\n", Format("pdf"), dataset.ErrUnsupportedFormat},
		"empty":       {"", FormatCSV, dataset.ErrMalformedInput},
		"wide row":    {"a,b\n1,2,3\n", FormatCSV, dataset.ErrMalformedInput},
		"short row":   {"a,b\n1\n", FormatCSV, dataset.ErrMalformedInput},
		"dup header":  {"a,a\n1,2\n", FormatCSV, dataset.ErrMalformedInput},
		"not xlsx":    {"plain text", FormatXLSX, dataset.ErrMalformedInput},
		"not xls":     {"plain text", FormatXLS, dataset.ErrMalformedInput},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load("x", []byte(tc.raw), tc.format)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFormatFromFilename(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromFilename("claims.CSV"))
	assert.Equal(t, FormatXLSX, FormatFromFilename("/tmp/a.b.xlsx"))
	assert.True(t, FormatFromFilename("x.xls").IsSpreadsheet())
	assert.False(t, FormatCSV.IsSpreadsheet())
}

func buildXLSX(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			if row == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			vals := row
			require.NoError(t, f.SetSheetRow(name, cell, &vals))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadXLSXPadsShortRowsAndSkipsBlank(t *testing.T) {
	raw := buildXLSX(t, map[string][][]any{
		"Claims": {
			{"NDC", "Qty", "Site"},
			{"111", 2},
			nil,
			{"222", 3, "S1"},
		},
	}, "Claims")

	ds, err := Load("claims", raw, FormatXLSX)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Nil(t, ds.Value(0, "Site"))
	assert.Equal(t, "2", ds.Value(0, "Qty"))
	assert.Equal(t, "S1", ds.Value(1, "Site"))
}

func TestLoadXLSXDateCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"NDC", "Date", "Qty"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"00071015523", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"00071015524", 45362, 6}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"00071015525", 45363, 7}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A5", &[]any{"00071015526", "03-13-24", 8}))
	short, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B3", "B3", short))
	custom := "d-mmm-yyyy"
	long, err := f.NewStyle(&excelize.Style{CustomNumFmt: &custom})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B4", "B4", long))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ds, err := Load("claims", buf.Bytes(), FormatXLSX)
	require.NoError(t, err)
	out, err := NormalizeSchema(ds, dataset.Schema{
		dataset.Req("NDC", dataset.ColumnIdentifier),
		dataset.Req("Date", dataset.ColumnDate),
		dataset.Req("Qty", dataset.ColumnNumber),
	})
	require.NoError(t, err)

	for i, d := range []int{10, 11, 12, 13} {
		assert.Equal(t, time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC), out.Value(i, "Date"), "row %d", i)
	}
	assert.Equal(t, "00071015523", out.Value(0, "NDC"))
	assert.True(t, decimal.NewFromInt(5).Equal(out.Value(0, "Qty").(decimal.Decimal)))
}

func TestWorkbookSheetsAndRowAt(t *testing.T) {
	raw := buildXLSX(t, map[string][][]any{
		"Worksheet A":        {{"Cost Center", "Cost"}, {"CC1", 10}},
		"Worksheet E Part A": {{"Line", "Value"}, {"1", "a"}, nil, {"3", "c"}},
	}, "Worksheet A", "Worksheet E Part A")

	wb, err := OpenWorkbook(raw, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, []string{"Worksheet A", "Worksheet E Part A"}, wb.SheetNames())

	a, err := wb.Sheet("Worksheet A")
	require.NoError(t, err)
	assert.Equal(t, "CC1", a.Value(0, "Cost Center"))

	row, ok := wb.RowAt("Worksheet E Part A", 2)
	require.True(t, ok)
	assert.Equal(t, "c", row["Value"])

	_, ok = wb.RowAt("Worksheet E Part A", 32)
	assert.False(t, ok)
	_, ok = wb.RowAt("Missing", 0)
	assert.False(t, ok)

	_, err = wb.Sheet("Worksheet C")
	require.ErrorIs(t, err, dataset.ErrSheetNotFound)

	_, err = OpenWorkbook(raw, FormatCSV)
	require.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
}

func TestNormalizeColumnKinds(t *testing.T) {
	ds := dataset.MustNew("claims", []string{"NDC", "Date", "At", "Qty", "Billed", "Name"}, []dataset.Row{
		{"NDC": " 123.0 ", "Date": "2024-03-10 14:22:00", "At": "2024-03-10T14:22:00", "Qty": "$1,200.50", "Billed": "Yes", "Name": "  Acme "},
		{"NDC": "00456", "Date": "03/11/2024", "At": "45292", "Qty": "3", "Billed": "n"},
		{"Date": "45292"},
	})
	schema := dataset.Schema{
		dataset.Req("NDC", dataset.ColumnIdentifier),
		dataset.Req("Date", dataset.ColumnDate),
		dataset.Req("At", dataset.ColumnTimestamp),
		dataset.Req("Qty", dataset.ColumnNumber),
		dataset.Req("Billed", dataset.ColumnBoolean),
		dataset.Req("Name", dataset.ColumnText),
		dataset.Opt("Absent", dataset.ColumnText),
	}
	out, err := NormalizeSchema(ds, schema)
	require.NoError(t, err)

	assert.Equal(t, "123", out.Value(0, "NDC"))
	assert.Equal(t, "00456", out.Value(1, "NDC"))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), out.Value(0, "Date"))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), out.Value(1, "Date"))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out.Value(2, "Date"))
	assert.Equal(t, time.Date(2024, 3, 10, 14, 22, 0, 0, time.UTC), out.Value(0, "At"))
	assert.True(t, decimal.RequireFromString("1200.5").Equal(out.Value(0, "Qty").(decimal.Decimal)))
	assert.Equal(t, true, out.Value(0, "Billed"))
	assert.Equal(t, false, out.Value(1, "Billed"))
	assert.Equal(t, "Acme", out.Value(0, "Name"))
	assert.Nil(t, out.Value(1, "Name"))
	assert.Nil(t, out.Value(2, "Qty"))

	// the source is untouched
	assert.Equal(t, " 123.0 ", ds.Value(0, "NDC"))
}

func TestNormalizeErrors(t *testing.T) {
	ds := dataset.MustNew("claims", []string{"Date"}, []dataset.Row{{"Date": "2024-01-01"}, {"Date": "soon"}})

	_, err := NormalizeColumn(ds, "Date", dataset.ColumnDate)
	require.ErrorIs(t, err, dataset.ErrMalformedInput)
	var ne *dataset.NormalizeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "Date", ne.Column)
	assert.Equal(t, 1, ne.Row)
	assert.Equal(t, "soon", ne.Value)

	_, err = NormalizeColumn(ds, "Missing", dataset.ColumnDate)
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)

	_, err = NormalizeSchema(ds, dataset.Schema{
		dataset.Req("NDC", dataset.ColumnIdentifier),
		dataset.Req("NPI", dataset.ColumnIdentifier),
	})
	var cnf *dataset.ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Equal(t, []string{"NDC", "NPI"}, cnf.Columns)
}
