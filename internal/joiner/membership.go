package joiner

import (
	"Recon340B/internal/dataset"
)

// Membership adds flagCol to left: true when the row's leftCol value occurs
// anywhere in ref's refCol. A missing value is never a member.
func Membership(left *dataset.Dataset, leftCol string, ref *dataset.Dataset, refCol, flagCol string) (*dataset.Dataset, error) {
	if !left.HasColumn(leftCol) {
		return nil, &dataset.KeyColumnMissingError{Dataset: left.Name(), Column: leftCol}
	}
	if !ref.HasColumn(refCol) {
		return nil, &dataset.KeyColumnMissingError{Dataset: ref.Name(), Column: refCol}
	}
	if err := checkKeyKinds(left, leftCol, ref, refCol); err != nil {
		return nil, err
	}
	members := make(map[string]struct{})
	vals, _ := ref.Column(refCol)
	for _, v := range vals {
		if v != nil {
			members[dataset.KeyString(v)] = struct{}{}
		}
	}
	return left.WithColumn(flagCol, func(r dataset.Row) any {
		v := r[leftCol]
		if v == nil {
			return false
		}
		_, ok := members[dataset.KeyString(v)]
		return ok
	}), nil
}
