// Package joiner combines two datasets on a declared key set.
package joiner

import (
	"fmt"
	"strings"

	"Recon340B/internal/dataset"
)

// Mode selects which left rows survive a join.
type Mode string

const (
	Inner Mode = "inner"
	Left  Mode = "left"
)

// DefaultSuffixes rename non-key columns present on both sides.
var DefaultSuffixes = [2]string{"_x", "_y"}

// Spec declares a join. RightKeys is only needed when the right side names
// its keys differently; it must then match Keys position by position.
type Spec struct {
	Left      *dataset.Dataset
	Right     *dataset.Dataset
	Keys      []string
	RightKeys []string
	Mode      Mode
	Suffixes  [2]string
	Indicator string
}

// Join merges spec.Right into spec.Left. Output columns are the left
// columns followed by the right non-key columns. Every right row matching a
// left row is emitted, left order first. A key tuple containing a missing
// value matches nothing.
func Join(spec Spec) (*dataset.Dataset, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	rightKeys := spec.rightKeys()
	suffixes := spec.Suffixes
	if suffixes == [2]string{} {
		suffixes = DefaultSuffixes
	}

	for i, k := range spec.Keys {
		if err := checkKeyKinds(spec.Left, k, spec.Right, rightKeys[i]); err != nil {
			return nil, err
		}
	}

	plan, err := planColumns(spec.Left, spec.Right, spec.Keys, rightKeys, suffixes, spec.Indicator)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]int)
	for i := 0; i < spec.Right.Len(); i++ {
		key, ok := tupleKey(spec.Right, i, rightKeys)
		if ok {
			index[key] = append(index[key], i)
		}
	}

	leftWidth := len(spec.Left.Columns())
	var records [][]any
	for i := 0; i < spec.Left.Len(); i++ {
		var matches []int
		if key, ok := tupleKey(spec.Left, i, spec.Keys); ok {
			matches = index[key]
		}
		if len(matches) == 0 {
			if spec.Mode == Inner {
				continue
			}
			rec := make([]any, len(plan.names))
			copy(rec, spec.Left.Record(i))
			if spec.Indicator != "" {
				rec[len(rec)-1] = false
			}
			records = append(records, rec)
			continue
		}
		for _, m := range matches {
			rec := make([]any, len(plan.names))
			copy(rec, spec.Left.Record(i))
			right := spec.Right.Record(m)
			for k, src := range plan.rightSource {
				rec[leftWidth+k] = right[src]
			}
			if spec.Indicator != "" {
				rec[len(rec)-1] = true
			}
			records = append(records, rec)
		}
	}
	return dataset.FromRecords(spec.Left.Name(), plan.names, records)
}

func (s Spec) rightKeys() []string {
	if len(s.RightKeys) > 0 {
		return s.RightKeys
	}
	return s.Keys
}

func (s Spec) validate() error {
	switch {
	case s.Left == nil || s.Right == nil:
		return fmt.Errorf("%w: both inputs are required", dataset.ErrInvalidJoinSpec)
	case len(s.Keys) == 0:
		return fmt.Errorf("%w: no join keys", dataset.ErrInvalidJoinSpec)
	case len(s.RightKeys) > 0 && len(s.RightKeys) != len(s.Keys):
		return fmt.Errorf("%w: %d left keys but %d right keys", dataset.ErrInvalidJoinSpec, len(s.Keys), len(s.RightKeys))
	case s.Mode != Inner && s.Mode != Left:
		return fmt.Errorf("%w: unknown mode %q", dataset.ErrInvalidJoinSpec, string(s.Mode))
	}
	for _, k := range s.Keys {
		if !s.Left.HasColumn(k) {
			return &dataset.KeyColumnMissingError{Dataset: s.Left.Name(), Column: k}
		}
	}
	for _, k := range s.rightKeys() {
		if !s.Right.HasColumn(k) {
			return &dataset.KeyColumnMissingError{Dataset: s.Right.Name(), Column: k}
		}
	}
	return nil
}

type columnPlan struct {
	names       []string
	rightSource []int
}

// planColumns lays out output names. A right key sharing its left key's
// name is dropped; everything else on the right is kept, and names present
// on both sides take the suffix pair.
func planColumns(left, right *dataset.Dataset, keys, rightKeys []string, suffixes [2]string, indicator string) (columnPlan, error) {
	dropRight := make(map[string]bool)
	for i, k := range rightKeys {
		if k == keys[i] {
			dropRight[k] = true
		}
	}
	leftCols := left.Columns()
	leftSet := make(map[string]bool, len(leftCols))
	for _, c := range leftCols {
		leftSet[c] = true
	}

	var plan columnPlan
	rightCols := right.Columns()
	var keptRight []string
	collide := make(map[string]bool)
	for j, c := range rightCols {
		if dropRight[c] {
			continue
		}
		keptRight = append(keptRight, c)
		plan.rightSource = append(plan.rightSource, j)
		if leftSet[c] {
			collide[c] = true
		}
	}

	for _, c := range leftCols {
		if collide[c] {
			c += suffixes[0]
		}
		plan.names = append(plan.names, c)
	}
	for _, c := range keptRight {
		if collide[c] {
			c += suffixes[1]
		}
		plan.names = append(plan.names, c)
	}
	if indicator != "" {
		plan.names = append(plan.names, indicator)
	}

	seen := make(map[string]bool, len(plan.names))
	for _, n := range plan.names {
		if seen[n] {
			return columnPlan{}, fmt.Errorf("%w: output column %q is ambiguous with suffixes %q", dataset.ErrInvalidJoinSpec, n, suffixes)
		}
		seen[n] = true
	}
	return plan, nil
}

func tupleKey(ds *dataset.Dataset, i int, cols []string) (string, bool) {
	var b strings.Builder
	for _, c := range cols {
		v := ds.Value(i, c)
		if v == nil {
			return "", false
		}
		b.WriteString(dataset.KeyString(v))
		b.WriteByte('\x1f')
	}
	return b.String(), true
}

// checkKeyKinds fails when the present values of a key pair are not all of
// one kind, e.g. a date on one side and text on the other.
func checkKeyKinds(left *dataset.Dataset, leftCol string, right *dataset.Dataset, rightCol string) error {
	lk := kinds(left, leftCol)
	rk := kinds(right, rightCol)
	if len(lk) == 0 || len(rk) == 0 {
		return nil
	}
	union := make(map[dataset.Kind]bool)
	for k := range lk {
		union[k] = true
	}
	for k := range rk {
		union[k] = true
	}
	if len(union) == 1 {
		return nil
	}
	return fmt.Errorf("%w: %s.%s holds %s, %s.%s holds %s",
		dataset.ErrKeyKindMismatch,
		left.Name(), leftCol, kindList(lk),
		right.Name(), rightCol, kindList(rk))
}

func kinds(ds *dataset.Dataset, col string) map[dataset.Kind]bool {
	out := make(map[dataset.Kind]bool)
	vals, _ := ds.Column(col)
	for _, v := range vals {
		if v != nil {
			out[dataset.KindOf(v)] = true
		}
	}
	return out
}

func kindList(m map[dataset.Kind]bool) string {
	var names []string
	for k := dataset.KindString; k <= dataset.KindBool; k++ {
		if m[k] {
			names = append(names, k.String())
		}
	}
	return strings.Join(names, "/")
}
