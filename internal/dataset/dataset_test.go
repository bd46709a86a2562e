package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New("claims", []string{"NDC", "Qty", "Date"}, []Row{
		{"NDC": "111", "Qty": decimal.NewFromInt(2), "Date": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"NDC": "222"},
		{"NDC": "111", "Qty": decimal.NewFromInt(5), "Date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return ds
}

func TestNewFillsMissingAndRejectsUnknown(t *testing.T) {
	ds := sample(t)
	assert.Equal(t, 3, ds.Len())
	assert.Nil(t, ds.Value(1, "Qty"))

	_, err := New("x", []string{"A"}, []Row{{"B": "1"}})
	require.ErrorIs(t, err, ErrMalformedInput)

	_, err = New("x", []string{"A", "A"}, nil)
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestRequireListsAllMissingColumns(t *testing.T) {
	err := sample(t).Require("NDC", "NPI", "Site")
	require.ErrorIs(t, err, ErrColumnNotFound)

	var cnf *ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Equal(t, "claims", cnf.Dataset)
	assert.Equal(t, []string{"NPI", "Site"}, cnf.Columns)
	assert.Contains(t, err.Error(), `"NPI", "Site"`)
}

func TestWithColumnDoesNotMutateSource(t *testing.T) {
	src := sample(t)
	out := src.WithColumn("Flag", func(r Row) any { return r["NDC"] == "111" })

	assert.Equal(t, []string{"NDC", "Qty", "Date"}, src.Columns())
	assert.Equal(t, []string{"NDC", "Qty", "Date", "Flag"}, out.Columns())
	assert.Equal(t, true, out.Value(0, "Flag"))
	assert.Equal(t, false, out.Value(1, "Flag"))

	replaced := out.WithColumn("NDC", func(Row) any { return "x" })
	assert.Equal(t, out.Columns(), replaced.Columns())
	assert.Equal(t, "111", out.Value(0, "NDC"))
	assert.Equal(t, "x", replaced.Value(0, "NDC"))
}

func TestSortByPutsMissingLast(t *testing.T) {
	sorted, err := sample(t).SortBy("Date", true)
	require.NoError(t, err)
	got, _ := sorted.Column("Qty")
	want := []any{decimal.NewFromInt(2), decimal.NewFromInt(5), nil}
	if diff := cmp.Diff(Format(want[0]), Format(got[0])); diff != "" {
		t.Fatalf("first row mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got[2])
}

func TestDropDuplicatesKeepsFirst(t *testing.T) {
	out, err := sample(t).DropDuplicates("NDC")
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.True(t, decimal.NewFromInt(2).Equal(out.Value(0, "Qty").(decimal.Decimal)))
}

func TestSelectAndFilter(t *testing.T) {
	ds := sample(t)
	sel, err := ds.Select("Qty", "NDC")
	require.NoError(t, err)
	assert.Equal(t, []string{"Qty", "NDC"}, sel.Columns())

	_, err = ds.Select("Nope")
	require.ErrorIs(t, err, ErrColumnNotFound)

	f := ds.Filter(func(r Row) bool { return r["Qty"] != nil })
	assert.Equal(t, 2, f.Len())
}

func TestKeyStringSeparatesKinds(t *testing.T) {
	assert.NotEqual(t, KeyString("123"), KeyString(decimal.NewFromInt(123)))
	assert.Equal(t, KeyString(decimal.RequireFromString("1.50")), KeyString(decimal.RequireFromString("1.50")))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal("1", decimal.NewFromInt(1)))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2024-03-10", Format(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-10 08:30:00", Format(time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)))
	assert.Equal(t, "true", Format(true))
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "12.5", Format(decimal.RequireFromString("12.50")))
}

func TestParseHelpers(t *testing.T) {
	d, err := ParseDecimal(" $1,234.50 ")
	require.NoError(t, err)
	assert.Equal(t, "1234.5", d.String())

	_, err = ParseDecimal("abc")
	require.ErrorIs(t, err, ErrNotNumeric)

	b, ok := ParseBool("Yes")
	assert.True(t, ok)
	assert.True(t, b)
	_, ok = ParseBool("maybe")
	assert.False(t, ok)
}
