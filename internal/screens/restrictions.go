package screens

import (
	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/joiner"
	"Recon340B/internal/rules"

	"github.com/shopspring/decimal"
)

const (
	LabelNoAlternative  = "No Approved Alternative"
	LabelHasAlternative = "Alternative Available"
)

// markupBase is the unit price projected prices are quoted against.
var markupBase = decimal.NewFromInt(100)

var Restrictions = register(&Screen{
	Name:  "restrictions",
	Title: "Manufacturer Restrictions Manager",
	Inputs: []Input{
		{Name: "restrictions", Label: "Manufacturer Restrictions List", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Opt("State", text), dataset.Opt("Manufacturer", text),
		}},
		{Name: "alternatives", Label: "NDC Alternative Crosswalk", Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Alternative NDC", id),
		}},
		{Name: "markup", Label: "Markup Algorithm Table", Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Markup %", number),
		}},
	},
	run: runRestrictions,
})

// AlternativeRules flags a restricted NDC with no crosswalk entry.
func AlternativeRules() rules.RuleSet {
	return rules.RuleSet{
		Name:    "restrictions",
		Column:  "Alternative Status",
		Default: LabelHasAlternative,
		Rules: []rules.Rule{
			{Name: "no-alternative", Label: LabelNoAlternative, When: rules.Missing("Alternative NDC")},
		},
	}
}

func runRestrictions(in Inputs, _ config.Params) (*Result, error) {
	restricted := in.Tables["restrictions"]
	if alt := in.Tables["alternatives"]; alt != nil {
		sel, err := alt.Select("NDC", "Alternative NDC")
		if err != nil {
			return nil, err
		}
		// One restricted NDC fans out to every listed alternative.
		restricted, err = joiner.Join(joiner.Spec{
			Left: restricted, Right: sel,
			Keys: []string{"NDC"}, Mode: joiner.Left, Suffixes: [2]string{"", "_alt"},
		})
		if err != nil {
			return nil, err
		}
	} else {
		restricted = restricted.WithColumn("Alternative NDC", func(dataset.Row) any { return nil })
	}

	report, flagged, err := evaluate(restricted, AlternativeRules())
	if err != nil {
		return nil, err
	}
	res := &Result{
		Report:    report,
		Flagged:   flagged,
		Primary:   ViewReport,
		FileName:  "restricted_ndcs.csv",
		FileNames: map[string]string{"markup": "markup_projection.csv"},
	}
	if m := in.Tables["markup"]; m != nil {
		projected := derive(m, "Projected Price", func(r dataset.Row) (decimal.Decimal, bool) {
			pct, ok := num(r, "Markup %")
			return markupBase.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred))), ok
		})
		view, err := projected.Select("NDC", "Markup %", "Projected Price")
		if err != nil {
			return nil, err
		}
		res.Views = map[string]*dataset.Dataset{"markup": view}
	}
	return res, nil
}
