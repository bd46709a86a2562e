// Package rules assigns a status label to every row from an ordered list of
// predicate rules. Rules are data: reordering the slice changes precedence
// without touching evaluation.
package rules

import (
	"fmt"

	"Recon340B/internal/dataset"
)

// Predicate decides whether a rule applies to a row.
type Predicate func(dataset.Row) bool

// Rule labels rows its predicate accepts.
type Rule struct {
	Name  string
	Label string
	When  Predicate
}

// RuleSet is evaluated top to bottom; the first rule that matches wins and
// rows no rule matches get Default. Column is the label column written.
type RuleSet struct {
	Name     string
	Column   string
	Rules    []Rule
	Default  string
	Requires dataset.Schema
}

// Validate checks the rule set is usable before any row is evaluated.
func (rs RuleSet) Validate() error {
	if rs.Column == "" {
		return fmt.Errorf("%w: %s has no label column", dataset.ErrInvalidRuleSet, rs.Name)
	}
	for _, c := range rs.Requires {
		if _, ok := c.Kind.Runtime(); !ok {
			return fmt.Errorf("%w: %s column %q has unknown kind %q", dataset.ErrInvalidRuleSet, rs.Name, c.Name, c.Kind)
		}
	}
	seen := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		if r.When == nil {
			return fmt.Errorf("%w: %s rule %d (%s) has no predicate", dataset.ErrInvalidRuleSet, rs.Name, i+1, r.Name)
		}
		if r.Name != "" {
			if seen[r.Name] {
				return fmt.Errorf("%w: %s has duplicate rule %q", dataset.ErrInvalidRuleSet, rs.Name, r.Name)
			}
			seen[r.Name] = true
		}
	}
	return nil
}

// Match returns the index and label of the first matching rule, or -1 and
// the default label.
func (rs RuleSet) Match(row dataset.Row) (int, string) {
	for i, r := range rs.Rules {
		if r.When(row) {
			return i, r.Label
		}
	}
	return -1, rs.Default
}

// Evaluate checks the required schema once, columns and value kinds, then
// writes exactly one label per row into rs.Column. An existing column of that
// name is replaced.
func Evaluate(ds *dataset.Dataset, rs RuleSet) (*dataset.Dataset, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	if err := rs.Requires.Check(ds); err != nil {
		return nil, fmt.Errorf("%s: %w", rs.Name, err)
	}
	if err := rs.Requires.Conform(ds); err != nil {
		return nil, fmt.Errorf("%s: %w", rs.Name, err)
	}
	return ds.WithColumn(rs.Column, func(r dataset.Row) any {
		_, label := rs.Match(r)
		return label
	}), nil
}

// Flagged evaluates rs and keeps only rows whose label differs from the default.
func Flagged(ds *dataset.Dataset, rs RuleSet) (*dataset.Dataset, error) {
	out, err := Evaluate(ds, rs)
	if err != nil {
		return nil, err
	}
	return FlaggedOnly(out, rs), nil
}

// FlaggedOnly filters an already evaluated dataset.
func FlaggedOnly(evaluated *dataset.Dataset, rs RuleSet) *dataset.Dataset {
	return evaluated.Filter(func(r dataset.Row) bool {
		return r[rs.Column] != rs.Default
	})
}
