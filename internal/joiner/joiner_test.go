package joiner

import (
	"errors"
	"testing"

	"Recon340B/internal/dataset"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claims() *dataset.Dataset {
	return dataset.MustNew("claims", []string{"NDC", "Qty", "Note"}, []dataset.Row{
		{"NDC": "111", "Qty": "1", "Note": "a"},
		{"NDC": "222", "Qty": "2"},
		{"Qty": "3"},
		{"NDC": "333", "Qty": "4"},
	})
}

func prices() *dataset.Dataset {
	return dataset.MustNew("prices", []string{"NDC", "Price", "Note"}, []dataset.Row{
		{"NDC": "111", "Price": "10", "Note": "p1"},
		{"NDC": "111", "Price": "11", "Note": "p2"},
		{"NDC": "333", "Price": "30"},
		{"Price": "99"},
	})
}

func column(t *testing.T, ds *dataset.Dataset, col string) []any {
	t.Helper()
	v, err := ds.Column(col)
	require.NoError(t, err)
	return v
}

func TestLeftJoinKeepsEveryLeftRow(t *testing.T) {
	out, err := Join(Spec{Left: claims(), Right: prices(), Keys: []string{"NDC"}, Mode: Left, Indicator: "Matched"})
	require.NoError(t, err)

	assert.Equal(t, []string{"NDC", "Qty", "Note_x", "Price", "Note_y", "Matched"}, out.Columns())
	assert.GreaterOrEqual(t, out.Len(), claims().Len())

	want := []any{"1", "1", "2", "3", "4"}
	if diff := cmp.Diff(want, column(t, out, "Qty")); diff != "" {
		t.Fatalf("row order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []any{"10", "11", nil, nil, "30"}, column(t, out, "Price"))
	assert.Equal(t, []any{true, true, false, false, true}, column(t, out, "Matched"))
	assert.Equal(t, []any{"p1", "p2", nil, nil, nil}, column(t, out, "Note_y"))
}

func TestInnerJoinOnlySharedKeys(t *testing.T) {
	out, err := Join(Spec{Left: claims(), Right: prices(), Keys: []string{"NDC"}, Mode: Inner})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	for _, v := range column(t, out, "NDC") {
		assert.Contains(t, []any{"111", "333"}, v)
	}
}

func TestMissingKeysNeverMatch(t *testing.T) {
	left := dataset.MustNew("l", []string{"K", "V"}, []dataset.Row{{"V": "1"}})
	right := dataset.MustNew("r", []string{"K", "W"}, []dataset.Row{{"W": "2"}})
	out, err := Join(Spec{Left: left, Right: right, Keys: []string{"K"}, Mode: Inner})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestDistinctRightKeysAndSuffixes(t *testing.T) {
	left := dataset.MustNew("accumulator", []string{"NDC", "Status"}, []dataset.Row{{"NDC": "1", "Status": "a"}})
	right := dataset.MustNew("migration", []string{"Old NDC", "New NDC", "Status"}, []dataset.Row{
		{"Old NDC": "1", "New NDC": "2", "Status": "Discontinued"},
	})
	out, err := Join(Spec{
		Left: left, Right: right,
		Keys: []string{"NDC"}, RightKeys: []string{"Old NDC"},
		Mode: Left, Suffixes: [2]string{"", "_migration"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"NDC", "Status", "Old NDC", "New NDC", "Status_migration"}, out.Columns())
	assert.Equal(t, "Discontinued", out.Value(0, "Status_migration"))
}

func TestJoinErrors(t *testing.T) {
	_, err := Join(Spec{Left: claims(), Right: prices(), Keys: []string{"NPI"}, Mode: Left})
	var kcm *dataset.KeyColumnMissingError
	require.True(t, errors.As(err, &kcm))
	assert.Equal(t, "claims", kcm.Dataset)
	assert.Equal(t, "NPI", kcm.Column)

	_, err = Join(Spec{Left: claims(), Right: prices(), Keys: []string{"NDC"}, Mode: "outer"})
	require.ErrorIs(t, err, dataset.ErrInvalidJoinSpec)

	_, err = Join(Spec{Left: claims(), Right: nil, Keys: []string{"NDC"}, Mode: Left})
	require.ErrorIs(t, err, dataset.ErrInvalidJoinSpec)

	_, err = Join(Spec{Left: claims(), Right: prices(), Mode: Left})
	require.ErrorIs(t, err, dataset.ErrInvalidJoinSpec)

	_, err = Join(Spec{Left: claims(), Right: prices(), Keys: []string{"NDC"}, Mode: Left, Suffixes: [2]string{"_a", "_a"}})
	require.ErrorIs(t, err, dataset.ErrInvalidJoinSpec)
}

func TestKeyKindMismatch(t *testing.T) {
	left := claims()
	right, err := prices().MapColumn("NDC", func(_ int, v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return true, nil
	})
	require.NoError(t, err)

	_, err = Join(Spec{Left: left, Right: right, Keys: []string{"NDC"}, Mode: Left})
	require.ErrorIs(t, err, dataset.ErrKeyKindMismatch)
	assert.Contains(t, err.Error(), "claims.NDC")
}

func TestMembership(t *testing.T) {
	orphans := dataset.MustNew("orphans", []string{"NDC"}, []dataset.Row{{"NDC": "222"}, {}})
	out, err := Membership(claims(), "NDC", orphans, "NDC", "Orphan")
	require.NoError(t, err)
	assert.Equal(t, []any{false, true, false, false}, column(t, out, "Orphan"))

	_, err = Membership(claims(), "NDC", orphans, "Drug", "Orphan")
	require.ErrorIs(t, err, dataset.ErrKeyColumnMissing)
}
