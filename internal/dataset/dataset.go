// Package dataset holds the in-memory table every reconciliation stage reads and produces.
// A Dataset is immutable: every operation returns a new value and never edits
// rows shared with an earlier pipeline stage.
package dataset

import (
	"fmt"
	"sort"
)

// Row is one record keyed by column name. Missing values are nil.
type Row map[string]any

// Dataset is an ordered set of rows sharing one ordered column list.
type Dataset struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]any
}

// New builds a dataset from keyed rows. Keys absent from a row become nil;
// keys not in columns are rejected.
func New(name string, columns []string, rows []Row) (*Dataset, error) {
	ds, err := empty(name, columns)
	if err != nil {
		return nil, err
	}
	ds.rows = make([][]any, 0, len(rows))
	for i, r := range rows {
		for k := range r {
			if _, ok := ds.index[k]; !ok {
				return nil, fmt.Errorf("%w: row %d has unknown column %q", ErrMalformedInput, i+1, k)
			}
		}
		rec := make([]any, len(columns))
		for j, c := range columns {
			rec[j] = r[c]
		}
		ds.rows = append(ds.rows, rec)
	}
	return ds, nil
}

// FromRecords builds a dataset from positional records, each exactly as wide as columns.
func FromRecords(name string, columns []string, records [][]any) (*Dataset, error) {
	ds, err := empty(name, columns)
	if err != nil {
		return nil, err
	}
	ds.rows = make([][]any, 0, len(records))
	for i, rec := range records {
		if len(rec) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrMalformedInput, i+1, len(rec), len(columns))
		}
		ds.rows = append(ds.rows, append([]any(nil), rec...))
	}
	return ds, nil
}

// MustNew is New for fixed, known-good inputs such as tests and built-in tables.
func MustNew(name string, columns []string, rows []Row) *Dataset {
	ds, err := New(name, columns, rows)
	if err != nil {
		panic(err)
	}
	return ds
}

func empty(name string, columns []string) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformedInput, c)
		}
		index[c] = i
	}
	return &Dataset{
		name:    name,
		columns: append([]string(nil), columns...),
		index:   index,
	}, nil
}

// Name is the label used in error messages, e.g. "claims".
func (d *Dataset) Name() string { return d.name }

// WithName returns the same rows under another name.
func (d *Dataset) WithName(name string) *Dataset {
	cp := *d
	cp.name = name
	return &cp
}

// Columns returns the column names in declared order.
func (d *Dataset) Columns() []string { return append([]string(nil), d.columns...) }

// Len is the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// HasColumn reports whether name is a column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Require fails with a single ColumnNotFoundError listing every absent column.
func (d *Dataset) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !d.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &ColumnNotFoundError{Dataset: d.name, Columns: missing}
	}
	return nil
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) Row {
	r := make(Row, len(d.columns))
	for j, c := range d.columns {
		r[c] = d.rows[i][j]
	}
	return r
}

// Rows returns copies of all rows.
func (d *Dataset) Rows() []Row {
	out := make([]Row, len(d.rows))
	for i := range d.rows {
		out[i] = d.Row(i)
	}
	return out
}

// Record returns a copy of row i in column order.
func (d *Dataset) Record(i int) []any { return append([]any(nil), d.rows[i]...) }

// Value returns the cell at row i, column col; nil when the column is absent.
func (d *Dataset) Value(i int, col string) any {
	j, ok := d.index[col]
	if !ok {
		return nil
	}
	return d.rows[i][j]
}

// Column returns every value of col in row order.
func (d *Dataset) Column(col string) ([]any, error) {
	j, ok := d.index[col]
	if !ok {
		return nil, &ColumnNotFoundError{Dataset: d.name, Columns: []string{col}}
	}
	out := make([]any, len(d.rows))
	for i, rec := range d.rows {
		out[i] = rec[j]
	}
	return out, nil
}

// WithColumn adds a derived column computed from each row. An existing
// column of the same name is replaced in place.
func (d *Dataset) WithColumn(name string, fn func(Row) any) *Dataset {
	j, exists := d.index[name]
	out := d.derive(d.columns)
	if !exists {
		out = d.derive(append(d.Columns(), name))
		j = len(d.columns)
	}
	out.rows = make([][]any, len(d.rows))
	for i, rec := range d.rows {
		nr := make([]any, len(out.columns))
		copy(nr, rec)
		nr[j] = fn(d.Row(i))
		out.rows[i] = nr
	}
	return out
}

// MapColumn rewrites every value of col. fn receives the row index for error context.
func (d *Dataset) MapColumn(col string, fn func(i int, v any) (any, error)) (*Dataset, error) {
	j, ok := d.index[col]
	if !ok {
		return nil, &ColumnNotFoundError{Dataset: d.name, Columns: []string{col}}
	}
	out := d.derive(d.columns)
	out.rows = make([][]any, len(d.rows))
	for i, rec := range d.rows {
		v, err := fn(i, rec[j])
		if err != nil {
			return nil, err
		}
		nr := append([]any(nil), rec...)
		nr[j] = v
		out.rows[i] = nr
	}
	return out, nil
}

// Filter keeps rows for which keep returns true.
func (d *Dataset) Filter(keep func(Row) bool) *Dataset {
	out := d.derive(d.columns)
	for i, rec := range d.rows {
		if keep(d.Row(i)) {
			out.rows = append(out.rows, rec)
		}
	}
	return out
}

// Select projects the named columns in the given order.
func (d *Dataset) Select(columns ...string) (*Dataset, error) {
	if err := d.Require(columns...); err != nil {
		return nil, err
	}
	out, err := empty(d.name, columns)
	if err != nil {
		return nil, err
	}
	out.rows = make([][]any, len(d.rows))
	for i, rec := range d.rows {
		nr := make([]any, len(columns))
		for k, c := range columns {
			nr[k] = rec[d.index[c]]
		}
		out.rows[i] = nr
	}
	return out, nil
}

// SortBy orders rows by col, stable, missing values last in either direction.
func (d *Dataset) SortBy(col string, descending bool) (*Dataset, error) {
	j, ok := d.index[col]
	if !ok {
		return nil, &ColumnNotFoundError{Dataset: d.name, Columns: []string{col}}
	}
	out := d.derive(d.columns)
	out.rows = append([][]any(nil), d.rows...)
	sort.SliceStable(out.rows, func(a, b int) bool {
		va, vb := out.rows[a][j], out.rows[b][j]
		if va == nil || vb == nil {
			return va != nil && vb == nil
		}
		c := Compare(va, vb)
		if descending {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

// DropDuplicates keeps the first row of every distinct combination of columns.
func (d *Dataset) DropDuplicates(columns ...string) (*Dataset, error) {
	if err := d.Require(columns...); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(d.rows))
	out := d.derive(d.columns)
	for _, rec := range d.rows {
		key := ""
		for _, c := range columns {
			key += KeyString(rec[d.index[c]]) + "\x1f"
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.rows = append(out.rows, rec)
	}
	return out, nil
}

// derive copies schema, not rows.
func (d *Dataset) derive(columns []string) *Dataset {
	out, _ := empty(d.name, columns)
	return out
}
