package rules

import (
	"errors"
	"testing"
	"time"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func providerRules() RuleSet {
	return RuleSet{
		Name:   "compliance",
		Column: "Compliance Status",
		Rules: []Rule{
			{Name: "invalid", Label: "Invalid Provider", When: Missing("Provider Name")},
			{Name: "inactive", Label: "Provider Not Active", When: DateBefore("Date", "Start Date")},
			{Name: "site", Label: "Unregistered Site", When: Missing("Site Name")},
		},
		Default: "Compliant",
		Requires: dataset.Schema{
			dataset.Req("Provider Name", dataset.ColumnText),
			dataset.Req("Date", dataset.ColumnDate),
			dataset.Req("Start Date", dataset.ColumnDate),
			dataset.Req("Site Name", dataset.ColumnText),
		},
	}
}

func providerRows() *dataset.Dataset {
	cols := []string{"Provider Name", "Date", "Start Date", "Site Name"}
	return dataset.MustNew("claims", cols, []dataset.Row{
		{"Provider Name": "Dr A", "Date": day(2024, 1, 1), "Start Date": day(2024, 2, 1)},
		{"Date": day(2024, 1, 1), "Start Date": day(2024, 2, 1)},
		{"Provider Name": "Dr B", "Date": day(2024, 3, 1), "Start Date": day(2024, 2, 1), "Site Name": "Main"},
		{"Provider Name": "Dr C", "Date": day(2024, 3, 1), "Start Date": day(2024, 2, 1)},
	})
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	out, err := Evaluate(providerRows(), providerRules())
	require.NoError(t, err)

	labels, err := out.Column("Compliance Status")
	require.NoError(t, err)
	assert.Equal(t, []any{"Provider Not Active", "Invalid Provider", "Compliant", "Unregistered Site"}, labels)
	assert.Equal(t, providerRows().Len(), out.Len())
}

func TestReorderingChangesPrecedence(t *testing.T) {
	rs := providerRules()
	rs.Rules[1], rs.Rules[2] = rs.Rules[2], rs.Rules[1]
	out, err := Evaluate(providerRows(), rs)
	require.NoError(t, err)
	assert.Equal(t, "Unregistered Site", out.Value(0, "Compliance Status"))
}

func TestFlaggedDropsDefault(t *testing.T) {
	out, err := Flagged(providerRows(), providerRules())
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.True(t, out.HasColumn("Site Name"))
}

func TestEvaluateReportsAllMissingColumns(t *testing.T) {
	ds := dataset.MustNew("claims", []string{"Provider Name"}, nil)
	_, err := Evaluate(ds, providerRules())
	var cnf *dataset.ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Equal(t, []string{"Date", "Start Date", "Site Name"}, cnf.Columns)
}

func TestEvaluateRejectsUnnormalizedKinds(t *testing.T) {
	ds := dataset.MustNew("claims", []string{"Provider Name", "Date", "Start Date", "Site Name"}, []dataset.Row{
		{"Provider Name": "Dr A", "Date": "2024-01-01", "Start Date": "2024-06-01", "Site Name": "Main"},
	})
	_, err := Evaluate(ds, providerRules())
	require.ErrorIs(t, err, dataset.ErrMalformedInput)
	var ne *dataset.NormalizeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "Date", ne.Column)
	assert.Equal(t, "date", ne.Kind)

	rs := providerRules()
	rs.Requires = append(rs.Requires, dataset.Req("Site Name", "colour"))
	_, err = Evaluate(providerRows(), rs)
	assert.ErrorIs(t, err, dataset.ErrInvalidRuleSet)
}

func TestValidate(t *testing.T) {
	_, err := Evaluate(providerRows(), RuleSet{Name: "x"})
	require.ErrorIs(t, err, dataset.ErrInvalidRuleSet)

	_, err = Evaluate(providerRows(), RuleSet{Name: "x", Column: "S", Rules: []Rule{{Name: "a"}}})
	require.ErrorIs(t, err, dataset.ErrInvalidRuleSet)

	dup := RuleSet{Name: "x", Column: "S", Rules: []Rule{{Name: "a", When: Always()}, {Name: "a", When: Always()}}}
	require.ErrorIs(t, dup.Validate(), dataset.ErrInvalidRuleSet)
}

func TestMatch(t *testing.T) {
	rs := providerRules()
	i, label := rs.Match(dataset.Row{"Provider Name": "x", "Site Name": "y"})
	assert.Equal(t, -1, i)
	assert.Equal(t, "Compliant", label)
}

func TestPredicatesTreatMissingAsFalse(t *testing.T) {
	empty := dataset.Row{}
	for name, p := range map[string]Predicate{
		"IsTrue":       IsTrue("a"),
		"IsFalse":      IsFalse("a"),
		"EqualFold":    EqualFold("a", ""),
		"NotInFold":    NotInFold("a", "x"),
		"DateBefore":   DateBefore("a", "b"),
		"DateWithin":   DateWithin("a", day(2000, 1, 1), day(2100, 1, 1)),
		"GreaterThan":  GreaterThan("a", decimal.Zero),
		"LessThan":     LessThan("a", decimal.Zero),
		"WithinWindow": WithinWindow("a", "b", Days(4), Days(4)),
		"Present":      Present("a"),
	} {
		assert.False(t, p(empty), name)
	}
	assert.True(t, Missing("a")(empty))
}

func TestPredicateValues(t *testing.T) {
	r := dataset.Row{
		"Type":  " ffs ",
		"Flag":  "Yes",
		"Qty":   decimal.NewFromInt(5),
		"Cap":   decimal.NewFromInt(3),
		"Date":  day(2024, 3, 10),
		"Visit": day(2024, 3, 13),
		"Far":   day(2024, 3, 20),
	}
	assert.True(t, EqualFold("Type", "FFS")(r))
	assert.True(t, InFold("Type", "MCO", "FFS")(r))
	assert.False(t, NotInFold("Type", "FFS")(r))
	assert.True(t, ContainsFold("Type", "F")(r))
	assert.True(t, IsTrue("Flag")(r))
	assert.True(t, GreaterThanColumn("Qty", "Cap")(r))
	assert.True(t, Amount("Qty", ">=", decimal.NewFromInt(5))(r))
	assert.False(t, Amount("Qty", "??", decimal.NewFromInt(5))(r))
	assert.True(t, WithinWindow("Visit", "Date", Days(4), Days(4))(r))
	assert.False(t, WithinWindow("Far", "Date", Days(4), Days(4))(r))
	assert.True(t, DateWithin("Date", day(2024, 3, 10), day(2024, 3, 10))(r))
	assert.True(t, All(IsTrue("Flag"), Not(Missing("Qty")))(r))
	assert.True(t, Any(Missing("Qty"), Present("Qty"))(r))
}

const yamlRules = `
name: plan-check
column: Status
default: ""
requires:
  - {name: Plan Type, kind: text}
  - {name: Modifier, kind: text, optional: true}
rules:
  - name: unknown-plan
    label: Unknown Plan
    when: {op: missing, column: Plan Type}
  - name: ffs-modifier
    label: FFS claim missing required 340B modifier
    when:
      op: all
      conditions:
        - {op: equals, column: Plan Type, value: FFS}
        - {op: not_in, column: Modifier, values: [UD, U6]}
  - name: big
    label: Large
    when: {op: ">", column: Amount, value: "1000"}
`

func TestParseRuleSet(t *testing.T) {
	rs, err := ParseRuleSet([]byte(yamlRules))
	require.NoError(t, err)
	assert.Equal(t, "Status", rs.Column)
	assert.Len(t, rs.Rules, 3)

	ds := dataset.MustNew("claims", []string{"Plan Type", "Modifier", "Amount"}, []dataset.Row{
		{"Modifier": "UD"},
		{"Plan Type": "FFS", "Modifier": "XX"},
		{"Plan Type": "FFS", "Modifier": "ud", "Amount": decimal.NewFromInt(5000)},
		{"Plan Type": "MCO"},
	})
	out, err := Evaluate(ds, rs)
	require.NoError(t, err)
	labels, _ := out.Column("Status")
	assert.Equal(t, []any{"Unknown Plan", "FFS claim missing required 340B modifier", "Large", ""}, labels)
}

func TestParseRuleSetRejectsBadConditions(t *testing.T) {
	for name, raw := range map[string]string{
		"unknown op": "name: x\ncolumn: S\nrules:\n  - {name: a, when: {op: nope, column: A}}\n",
		"no column":  "name: x\ncolumn: S\nrules:\n  - {name: a, when: {op: missing}}\n",
		"bad date":   "name: x\ncolumn: S\nrules:\n  - {name: a, when: {op: before, column: A, value: soon}}\n",
		"bad yaml":   "name: [x\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRuleSet([]byte(raw))
			require.ErrorIs(t, err, dataset.ErrInvalidRuleSet)
		})
	}
}
