package rules

import (
	"fmt"
	"strings"
	"time"

	"Recon340B/internal/dataset"

	"gopkg.in/yaml.v3"
)

// RuleSetSpec is the YAML form of a RuleSet.
//
//	name: orphan-check
//	column: Status
//	default: OK
//	requires:
//	  - {name: NDC, kind: identifier}
//	rules:
//	  - name: orphan
//	    label: Orphan Drug Restriction
//	    when: {op: in, column: Entity Type, values: [PED, CAN, CAH]}
type RuleSetSpec struct {
	Name     string         `yaml:"name" json:"name"`
	Column   string         `yaml:"column" json:"column"`
	Default  string         `yaml:"default" json:"default"`
	Requires dataset.Schema `yaml:"requires" json:"requires"`
	Rules    []RuleSpec     `yaml:"rules" json:"rules"`
}

type RuleSpec struct {
	Name  string        `yaml:"name" json:"name"`
	Label string        `yaml:"label" json:"label"`
	When  ConditionSpec `yaml:"when" json:"when"`
}

// ConditionSpec is one predicate. Op selects which fields are read:
//
//	missing, present, true, false           column
//	equals, contains, starts_with, ends_with column, value
//	in, not_in                              column, values
//	before, after                           column, other (a date column) or value (a date)
//	within                                  column, from, to
//	window                                  column, other (anchor), days_before, days_after
//	>, >=, =, <=, <                         column, value (number) or other (a numeric column, > only)
//	all, any                                conditions
//	not                                     conditions[0]
type ConditionSpec struct {
	Op         string          `yaml:"op" json:"op"`
	Column     string          `yaml:"column,omitempty" json:"column,omitempty"`
	Other      string          `yaml:"other,omitempty" json:"other,omitempty"`
	Value      string          `yaml:"value,omitempty" json:"value,omitempty"`
	Values     []string        `yaml:"values,omitempty" json:"values,omitempty"`
	From       string          `yaml:"from,omitempty" json:"from,omitempty"`
	To         string          `yaml:"to,omitempty" json:"to,omitempty"`
	DaysBefore int             `yaml:"days_before,omitempty" json:"days_before,omitempty"`
	DaysAfter  int             `yaml:"days_after,omitempty" json:"days_after,omitempty"`
	Conditions []ConditionSpec `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// ParseRuleSet decodes and compiles a YAML rule set.
func ParseRuleSet(raw []byte) (RuleSet, error) {
	var spec RuleSetSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return RuleSet{}, fmt.Errorf("%w: %v", dataset.ErrInvalidRuleSet, err)
	}
	return Compile(spec)
}

// Compile turns a declarative rule set into an executable one.
func Compile(spec RuleSetSpec) (RuleSet, error) {
	rs := RuleSet{
		Name:     spec.Name,
		Column:   spec.Column,
		Default:  spec.Default,
		Requires: spec.Requires,
	}
	for i, r := range spec.Rules {
		p, err := compileCondition(r.When)
		if err != nil {
			return RuleSet{}, fmt.Errorf("%w: %s rule %d (%s): %v", dataset.ErrInvalidRuleSet, spec.Name, i+1, r.Name, err)
		}
		rs.Rules = append(rs.Rules, Rule{Name: r.Name, Label: r.Label, When: p})
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

func compileCondition(c ConditionSpec) (Predicate, error) {
	op := strings.ToLower(strings.TrimSpace(c.Op))
	needColumn := func() error {
		if c.Column == "" {
			return fmt.Errorf("op %q needs a column", op)
		}
		return nil
	}

	switch op {
	case "all", "any":
		ps := make([]Predicate, 0, len(c.Conditions))
		for _, sub := range c.Conditions {
			p, err := compileCondition(sub)
			if err != nil {
				return nil, err
			}
			ps = append(ps, p)
		}
		if op == "all" {
			return All(ps...), nil
		}
		return Any(ps...), nil
	case "not":
		if len(c.Conditions) != 1 {
			return nil, fmt.Errorf("not takes exactly one condition")
		}
		p, err := compileCondition(c.Conditions[0])
		if err != nil {
			return nil, err
		}
		return Not(p), nil
	}

	if err := needColumn(); err != nil {
		return nil, err
	}
	switch op {
	case "missing":
		return Missing(c.Column), nil
	case "present":
		return Present(c.Column), nil
	case "true":
		return IsTrue(c.Column), nil
	case "false":
		return IsFalse(c.Column), nil
	case "equals":
		return EqualFold(c.Column, c.Value), nil
	case "contains":
		return ContainsFold(c.Column, c.Value), nil
	case "starts_with":
		return HasPrefixFold(c.Column, c.Value), nil
	case "ends_with":
		return HasSuffixFold(c.Column, c.Value), nil
	case "in":
		return InFold(c.Column, c.Values...), nil
	case "not_in":
		return NotInFold(c.Column, c.Values...), nil
	case "before", "after":
		if c.Other != "" {
			if op == "before" {
				return DateBefore(c.Column, c.Other), nil
			}
			return DateAfter(c.Column, c.Other), nil
		}
		t, err := parseDay(c.Value)
		if err != nil {
			return nil, err
		}
		if op == "before" {
			return DateBeforeTime(c.Column, t), nil
		}
		return DateAfterTime(c.Column, t), nil
	case "within":
		from, err := parseDay(c.From)
		if err != nil {
			return nil, err
		}
		to, err := parseDay(c.To)
		if err != nil {
			return nil, err
		}
		return DateWithin(c.Column, from, to), nil
	case "window":
		if c.Other == "" {
			return nil, fmt.Errorf("window needs an anchor column in other")
		}
		return WithinWindow(c.Column, c.Other, Days(c.DaysBefore), Days(c.DaysAfter)), nil
	case ">", ">=", "=", "==", "<=", "<":
		if c.Other != "" {
			if op != ">" {
				return nil, fmt.Errorf("column comparison supports > only")
			}
			return GreaterThanColumn(c.Column, c.Other), nil
		}
		d, err := dataset.ParseDecimal(c.Value)
		if err != nil {
			return nil, err
		}
		return Amount(c.Column, op, d), nil
	}
	return nil, fmt.Errorf("unknown op %q", c.Op)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(dataset.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want %s", s, dataset.DateLayout)
	}
	return t, nil
}
