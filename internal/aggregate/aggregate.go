// Package aggregate summarizes flagged rows: counts per group, sums and totals.
package aggregate

import (
	"fmt"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
)

// CountOptions names the output columns of GroupCount. An empty
// PercentColumn leaves the percent column out.
type CountOptions struct {
	CountColumn   string
	PercentColumn string
}

var hundred = decimal.NewFromInt(100)

// GroupCount emits one row per distinct value of groupBy in first-seen
// order. A missing value is a group of its own, so counts always add up to
// ds.Len(). Percent is count/total*100 rounded to 2 places.
func GroupCount(ds *dataset.Dataset, groupBy string, opts CountOptions) (*dataset.Dataset, error) {
	vals, err := ds.Column(groupBy)
	if err != nil {
		return nil, err
	}
	countCol := opts.CountColumn
	if countCol == "" {
		countCol = "Count"
	}
	cols := []string{groupBy, countCol}
	if opts.PercentColumn != "" {
		cols = append(cols, opts.PercentColumn)
	}

	order, groups := groupIndex(vals)
	total := decimal.NewFromInt(int64(len(vals)))
	records := make([][]any, 0, len(order))
	for _, key := range order {
		g := groups[key]
		n := decimal.NewFromInt(int64(len(g.rows)))
		rec := []any{g.value, n}
		if opts.PercentColumn != "" {
			rec = append(rec, n.Div(total).Mul(hundred).Round(2))
		}
		records = append(records, rec)
	}
	return dataset.FromRecords(ds.Name(), cols, records)
}

// Sum adds valueCol per distinct groupBy value. Missing values are skipped;
// a present value that is not a number fails with ErrNotNumeric.
func Sum(ds *dataset.Dataset, groupBy, valueCol string) (*dataset.Dataset, error) {
	if err := ds.Require(groupBy, valueCol); err != nil {
		return nil, err
	}
	keys, _ := ds.Column(groupBy)
	values, _ := ds.Column(valueCol)
	order, groups := groupIndex(keys)

	records := make([][]any, 0, len(order))
	for _, key := range order {
		g := groups[key]
		sum := decimal.Zero
		for _, i := range g.rows {
			d, err := number(ds, valueCol, i, values[i])
			if err != nil {
				return nil, err
			}
			sum = sum.Add(d)
		}
		records = append(records, []any{g.value, sum})
	}
	return dataset.FromRecords(ds.Name(), []string{groupBy, valueCol}, records)
}

// Total sums a numeric column, skipping missing values.
func Total(ds *dataset.Dataset, col string) (decimal.Decimal, error) {
	values, err := ds.Column(col)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for i, v := range values {
		d, err := number(ds, col, i, v)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(d)
	}
	return sum, nil
}

// CountDistinct counts distinct present values of col.
func CountDistinct(ds *dataset.Dataset, col string) (int, error) {
	values, err := ds.Column(col)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != nil {
			seen[dataset.KeyString(v)] = struct{}{}
		}
	}
	return len(seen), nil
}

type group struct {
	value any
	rows  []int
}

func groupIndex(vals []any) ([]string, map[string]*group) {
	var order []string
	groups := make(map[string]*group)
	for i, v := range vals {
		key := dataset.KeyString(v)
		g, ok := groups[key]
		if !ok {
			g = &group{value: v}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, i)
	}
	return order, groups
}

func number(ds *dataset.Dataset, col string, row int, v any) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	d, ok := dataset.Decimal(v)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s column %q row %d: %q", dataset.ErrNotNumeric, ds.Name(), col, row+1, dataset.Format(v))
	}
	return d, nil
}
