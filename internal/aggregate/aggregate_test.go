package aggregate

import (
	"testing"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagged() *dataset.Dataset {
	return dataset.MustNew("flagged", []string{"Status", "NDC", "Amount"}, []dataset.Row{
		{"Status": "Expired", "NDC": "1", "Amount": decimal.NewFromInt(10)},
		{"Status": "Active", "NDC": "2", "Amount": "2.5"},
		{"Status": "Expired", "NDC": "1"},
		{"NDC": "3", "Amount": decimal.NewFromInt(1)},
	})
}

func TestGroupCountSumsToInput(t *testing.T) {
	ds := flagged()
	out, err := GroupCount(ds, "Status", CountOptions{PercentColumn: "Percent"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Status", "Count", "Percent"}, out.Columns())
	require.Equal(t, 3, out.Len())
	assert.Equal(t, "Expired", out.Value(0, "Status"))
	assert.Nil(t, out.Value(2, "Status"))

	total := decimal.Zero
	counts, _ := out.Column("Count")
	for _, c := range counts {
		total = total.Add(c.(decimal.Decimal))
	}
	assert.True(t, total.Equal(decimal.NewFromInt(int64(ds.Len()))))
	assert.Equal(t, "50", dataset.Format(out.Value(0, "Percent")))
	assert.Equal(t, "25", dataset.Format(out.Value(1, "Percent")))
}

func TestGroupCountRounding(t *testing.T) {
	ds := dataset.MustNew("x", []string{"G"}, []dataset.Row{{"G": "a"}, {"G": "b"}, {"G": "b"}})
	out, err := GroupCount(ds, "G", CountOptions{CountColumn: "Frequency", PercentColumn: "Risk %"})
	require.NoError(t, err)
	assert.Equal(t, "33.33", dataset.Format(out.Value(0, "Risk %")))
	assert.Equal(t, "66.67", dataset.Format(out.Value(1, "Risk %")))
}

func TestSumAndTotal(t *testing.T) {
	out, err := Sum(flagged(), "NDC", "Amount")
	require.NoError(t, err)
	assert.Equal(t, "10", dataset.Format(out.Value(0, "Amount")))
	assert.Equal(t, "2.5", dataset.Format(out.Value(1, "Amount")))

	total, err := Total(flagged(), "Amount")
	require.NoError(t, err)
	assert.Equal(t, "13.5", total.String())

	bad := dataset.MustNew("x", []string{"A"}, []dataset.Row{{"A": "n/a"}})
	_, err = Total(bad, "A")
	require.ErrorIs(t, err, dataset.ErrNotNumeric)
	_, err = Sum(bad, "A", "A")
	require.ErrorIs(t, err, dataset.ErrNotNumeric)
}

func TestCountDistinct(t *testing.T) {
	n, err := CountDistinct(flagged(), "NDC")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = CountDistinct(flagged(), "Pharmacy")
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)
}
