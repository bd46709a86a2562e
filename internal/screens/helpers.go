package screens

import (
	"Recon340B/internal/aggregate"
	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/rules"

	"github.com/shopspring/decimal"
)

var (
	id      = dataset.ColumnIdentifier
	date    = dataset.ColumnDate
	number  = dataset.ColumnNumber
	boolean = dataset.ColumnBoolean
	text    = dataset.ColumnText
)

// flag adds a boolean column from a predicate.
func flag(ds *dataset.Dataset, col string, p rules.Predicate) *dataset.Dataset {
	return ds.WithColumn(col, func(r dataset.Row) any { return p(r) })
}

// derive adds a numeric column; rows where fn reports false get a missing value.
func derive(ds *dataset.Dataset, col string, fn func(r dataset.Row) (decimal.Decimal, bool)) *dataset.Dataset {
	return ds.WithColumn(col, func(r dataset.Row) any {
		d, ok := fn(r)
		if !ok {
			return nil
		}
		return d
	})
}

func num(r dataset.Row, col string) (decimal.Decimal, bool) {
	return dataset.Decimal(r[col])
}

// product multiplies two numeric columns.
func product(a, b string) func(dataset.Row) (decimal.Decimal, bool) {
	return func(r dataset.Row) (decimal.Decimal, bool) {
		x, ok1 := num(r, a)
		y, ok2 := num(r, b)
		return x.Mul(y), ok1 && ok2
	}
}

func keep(ds *dataset.Dataset, col string) *dataset.Dataset {
	return ds.Filter(func(r dataset.Row) bool {
		b, _ := r[col].(bool)
		return b
	})
}

// evaluate runs rs and returns both the labelled report and its flagged subset.
func evaluate(ds *dataset.Dataset, rs rules.RuleSet) (*dataset.Dataset, *dataset.Dataset, error) {
	report, err := rules.Evaluate(ds, rs)
	if err != nil {
		return nil, nil, err
	}
	return report, rules.FlaggedOnly(report, rs), nil
}

func statusSummary(ds *dataset.Dataset, col string) (*dataset.Dataset, error) {
	return aggregate.GroupCount(ds, col, aggregate.CountOptions{PercentColumn: "Percent"})
}

// logRows shapes ds to the declared header of a library log. Columns the run
// did not produce are left empty.
func logRows(ds *dataset.Dataset, log string) *dataset.Dataset {
	cols := config.LogColumns[log]
	out := ds
	for _, c := range cols {
		if !out.HasColumn(c) {
			out = out.WithColumn(c, func(dataset.Row) any { return nil })
		}
	}
	sel, err := out.Select(cols...)
	if err != nil {
		return out
	}
	return sel
}
