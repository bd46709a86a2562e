package export

import (
	"bytes"
	"testing"
	"time"

	"Recon340B/internal/dataset"
	"Recon340B/internal/loader"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func report() *dataset.Dataset {
	return dataset.MustNew("report", []string{"NDC", "Amount", "Date", "At", "Flag", "Note"}, []dataset.Row{
		{"NDC": "00123", "Amount": decimal.RequireFromString("12.50"), "Date": time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			"At": time.Date(2024, 3, 10, 8, 5, 1, 0, time.UTC), "Flag": true, "Note": "has, comma"},
		{"NDC": "456", "Flag": false, "Note": `quote "q"`},
	})
}

func TestExportCSV(t *testing.T) {
	raw, err := Export(report(), "csv")
	require.NoError(t, err)
	want := "NDC,Amount,Date,At,Flag,Note\n" +
		"00123,12.5,2024-03-10,2024-03-10 08:05:01,true,\"has, comma\"\n" +
		"456,,,,false,\"quote \"\"q\"\"\"\n"
	assert.Equal(t, want, string(raw))

	_, err = Export(report(), "pdf")
	require.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
}

func TestExportLoadRoundTrip(t *testing.T) {
	src := report()
	raw, err := Export(src, "csv")
	require.NoError(t, err)

	loaded, err := loader.Load("report", raw, loader.FormatCSV)
	require.NoError(t, err)
	back, err := loader.NormalizeSchema(loaded, dataset.Schema{
		dataset.Req("NDC", dataset.ColumnIdentifier),
		dataset.Req("Amount", dataset.ColumnNumber),
		dataset.Req("Date", dataset.ColumnDate),
		dataset.Req("At", dataset.ColumnTimestamp),
		dataset.Req("Flag", dataset.ColumnBoolean),
		dataset.Req("Note", dataset.ColumnText),
	})
	require.NoError(t, err)

	opt := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(src.Rows(), back.Rows(), opt); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, src.Columns(), back.Columns())
}

func TestExportLoadRoundTripSingleColumn(t *testing.T) {
	src := dataset.MustNew("r", []string{"NDC"}, []dataset.Row{{"NDC": "1"}, {}, {"NDC": "3"}})
	raw, err := Export(src, "csv")
	require.NoError(t, err)
	assert.Equal(t, "NDC\n1\n\"\"\n3\n", string(raw))

	back, err := loader.Load("r", raw, loader.FormatCSV)
	require.NoError(t, err)
	if diff := cmp.Diff(src.Rows(), back.Rows()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkbookSheets(t *testing.T) {
	raw, err := Workbook([]Sheet{
		{Name: "Compliance Flags", Data: report()},
		{Name: "Invoice/Overcharges", Data: dataset.MustNew("x", []string{"A"}, nil)},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Compliance Flags", "Invoice_Overcharges"}, f.GetSheetList())

	rows, err := f.GetRows("Compliance Flags")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "NDC", rows[0][0])
	assert.Equal(t, "12.5", rows[1][1])

	_, err = Workbook(nil)
	require.ErrorIs(t, err, dataset.ErrMalformedInput)
}
