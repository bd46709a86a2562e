package screens

import (
	"strings"

	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/joiner"
	"Recon340B/internal/rules"
)

const (
	LabelNotAccumulated   = "Claimed as 340B but not accumulated"
	LabelNotBilled        = "Accumulated but not billed as 340B"
	LabelNoAccumulation   = "No accumulation found"
	LabelInvalidProvider  = "Invalid Provider"
	LabelProviderInactive = "Provider Not Active"
	LabelUnregisteredSite = "Unregistered Site"
	LabelDuplicateDisc    = "Duplicate Discount (Carved Out)"
	LabelOrphanDrug       = "Orphan Drug Restriction"
	LabelCompliant        = "Compliant"
	LabelUnknownPlan      = "Unknown Plan (No 340B policy)"
	LabelMissingModifier  = "FFS claim missing required 340B modifier"
	LabelMCOExcluded      = "MCO plan excludes 340B billing"
	LabelUnmatchedProv    = "Unmatched Provider"
	LabelMatched          = "Matched"
	LabelAddressMissing   = "Address Not Registered"
	LabelRegistered       = "Registered"
)

var Accumulator = register(&Screen{
	Name:  "accumulator",
	Title: "Accumulator Checker",
	Inputs: []Input{
		{Name: "claims", Label: "Claims or Dispenses", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Date", date), dataset.Opt("Billed 340B", boolean),
		}},
		{Name: "accumulator", Label: "TPA Accumulator", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Date", date),
		}},
	},
	run: runAccumulator,
})

// AccumulatorRules compares billing with accumulation. Without a billing
// flag the only issue is a claim with no accumulation at all.
func AccumulatorRules(hasBilling bool) rules.RuleSet {
	rs := rules.RuleSet{
		Name:    "accumulator",
		Column:  "Issue",
		Default: "",
		Requires: dataset.Schema{
			dataset.Req("Accumulated", boolean),
		},
	}
	if !hasBilling {
		rs.Rules = []rules.Rule{
			{Name: "no-accumulation", Label: LabelNoAccumulation, When: rules.Not(rules.IsTrue("Accumulated"))},
		}
		return rs
	}
	rs.Requires = append(rs.Requires, dataset.Req("Billed 340B", boolean))
	rs.Rules = []rules.Rule{
		{Name: "not-accumulated", Label: LabelNotAccumulated,
			When: rules.All(rules.IsTrue("Billed 340B"), rules.Not(rules.IsTrue("Accumulated")))},
		{Name: "not-billed", Label: LabelNotBilled,
			When: rules.All(rules.IsFalse("Billed 340B"), rules.IsTrue("Accumulated"))},
	}
	return rs
}

func runAccumulator(in Inputs, _ config.Params) (*Result, error) {
	merged, err := joiner.Join(joiner.Spec{
		Left:      in.Tables["claims"],
		Right:     in.Tables["accumulator"],
		Keys:      []string{"NDC", "Date"},
		Mode:      joiner.Left,
		Suffixes:  [2]string{"_claim", "_accum"},
		Indicator: "Accumulated",
	})
	if err != nil {
		return nil, err
	}
	rs := AccumulatorRules(merged.HasColumn("Billed 340B"))
	report, flagged, err := evaluate(merged, rs)
	if err != nil {
		return nil, err
	}
	summary, err := statusSummary(flagged, rs.Column)
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Flagged: flagged, Summary: summary, FileName: "accumulator_issues.csv"}, nil
}

var Compliance = register(&Screen{
	Name:  "compliance",
	Title: "Monthly Compliance Screener",
	Inputs: []Input{
		{Name: "claims", Label: "Dispense or Claim File", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("NPI", id), dataset.Req("Site", id), dataset.Req("Date", date),
			dataset.Opt("Claim Type", text), dataset.Opt("Billed 340B", boolean), dataset.Opt("Carve-In", boolean),
			dataset.Opt("Entity Type", text),
		}},
		{Name: "providers", Label: "Provider Eligibility List", Required: true, Schema: dataset.Schema{
			dataset.Req("NPI", id), dataset.Req("Provider Name", text),
			dataset.Req("Start Date", date), dataset.Req("End Date", date),
			dataset.Opt("Entity Type", text),
		}},
		{Name: "sites", Label: "Registered Site List", Required: true, Schema: dataset.Schema{
			dataset.Req("Site", id), dataset.Req("Site Type", text),
			dataset.Opt("Carve-In", boolean), dataset.Opt("Entity Type", text),
		}},
		{Name: "orphans", Label: "Orphan Drug NDC List", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id),
		}},
		{Name: "mef", Label: "Medicaid Exclusion File", Schema: dataset.Schema{
			dataset.Req("NPI", id), dataset.Opt("Carve-In", boolean),
		}},
	},
	run: runCompliance,
})

// ComplianceRules is ordered by precedence: an unmatched provider has no
// active window to test, so it is checked first.
func ComplianceRules(p config.Params) rules.RuleSet {
	return rules.RuleSet{
		Name:    "compliance",
		Column:  "Compliance Status",
		Default: LabelCompliant,
		Rules: []rules.Rule{
			{Name: "invalid-provider", Label: LabelInvalidProvider, When: rules.Missing("Provider Name")},
			{Name: "provider-inactive", Label: LabelProviderInactive, When: rules.Any(
				rules.DateBefore("Date", "Start Date"),
				rules.DateAfter("Date", "End Date"),
			)},
			{Name: "unregistered-site", Label: LabelUnregisteredSite, When: rules.Missing("Site Type")},
			{Name: "duplicate-discount", Label: LabelDuplicateDisc, When: rules.All(
				rules.EqualFold("Claim Type", p.MedicaidClaimType),
				rules.IsFalse("Carve-In"),
				rules.IsTrue("Billed 340B"),
			)},
			{Name: "orphan-drug", Label: LabelOrphanDrug, When: rules.All(
				rules.IsTrue("Orphan"),
				rules.InFold("Entity Type", p.OrphanEntityTypes...),
			)},
		},
		Requires: dataset.Schema{
			dataset.Req("Provider Name", text),
			dataset.Req("Date", date),
			dataset.Req("Start Date", date),
			dataset.Req("End Date", date),
			dataset.Req("Site Type", text),
			dataset.Req("Orphan", boolean),
		},
	}
}

func runCompliance(in Inputs, p config.Params) (*Result, error) {
	merged, err := joiner.Join(joiner.Spec{
		Left: in.Tables["claims"], Right: in.Tables["providers"],
		Keys: []string{"NPI"}, Mode: joiner.Left, Suffixes: [2]string{"", "_provider"},
	})
	if err != nil {
		return nil, err
	}
	merged, err = joiner.Join(joiner.Spec{
		Left: merged, Right: in.Tables["sites"],
		Keys: []string{"Site"}, Mode: joiner.Left, Suffixes: [2]string{"", "_site"},
	})
	if err != nil {
		return nil, err
	}
	merged, err = joiner.Membership(merged, "NDC", in.Tables["orphans"], "NDC", "Orphan")
	if err != nil {
		return nil, err
	}
	if mef := in.Tables["mef"]; mef != nil {
		merged, err = joiner.Join(joiner.Spec{
			Left: merged, Right: mef,
			Keys: []string{"NPI"}, Mode: joiner.Left, Suffixes: [2]string{"", "_mef"},
		})
		if err != nil {
			return nil, err
		}
	}

	rs := ComplianceRules(p)
	report, flagged, err := evaluate(merged, rs)
	if err != nil {
		return nil, err
	}
	summary, err := statusSummary(report, rs.Column)
	if err != nil {
		return nil, err
	}
	return &Result{
		Report:   report,
		Flagged:  flagged,
		Summary:  summary,
		FileName: "monthly_compliance_violations.csv",
		Log:      config.LogComplianceFlags,
		LogRows:  complianceLog(report, rs),
	}, nil
}

// complianceLog is the stored form of a run: the key columns, the status and
// a Yes/No Flag the dashboard counts.
func complianceLog(report *dataset.Dataset, rs rules.RuleSet) *dataset.Dataset {
	out := report.WithColumn("Flag", func(r dataset.Row) any {
		if r[rs.Column] != rs.Default {
			return "Yes"
		}
		return "No"
	})
	return logRows(out, config.LogComplianceFlags)
}

var Claims = register(&Screen{
	Name:  "claims",
	Title: "Medicaid Claims Validator",
	Inputs: []Input{
		{Name: "claims", Label: "Medicaid Claims File", Required: true, Schema: dataset.Schema{
			dataset.Req("BIN", id), dataset.Req("PCN", id), dataset.Req("Group", id),
			dataset.Req("Claim Type", text), dataset.Opt("Modifier", text),
		}},
		{Name: "plans", Label: "Medicaid BIN/PCN/Group Library", Required: true, Schema: dataset.Schema{
			dataset.Req("BIN", id), dataset.Req("PCN", id), dataset.Req("Group", id),
			dataset.Req("Plan Name", text), dataset.Opt("Allow 340B", boolean),
		}},
	},
	run: runClaims,
})

// ClaimsRules flags claims that cannot be billed as 340B under their plan.
// A claim with no modifier at all is missing the required modifier.
func ClaimsRules(p config.Params) rules.RuleSet {
	return rules.RuleSet{
		Name:    "claims",
		Column:  "Issue",
		Default: "",
		Rules: []rules.Rule{
			{Name: "unknown-plan", Label: LabelUnknownPlan, When: rules.Missing("Plan Name")},
			{Name: "ffs-modifier", Label: LabelMissingModifier, When: rules.All(
				rules.EqualFold("Claim Type", "FFS"),
				rules.Not(rules.InFold("Modifier", p.FFSModifiers...)),
			)},
			{Name: "mco-excluded", Label: LabelMCOExcluded, When: rules.All(
				rules.EqualFold("Claim Type", "MCO"),
				rules.IsFalse("Allow 340B"),
			)},
		},
		Requires: dataset.Schema{
			dataset.Req("Plan Name", text),
			dataset.Req("Claim Type", text),
		},
	}
}

func runClaims(in Inputs, p config.Params) (*Result, error) {
	merged, err := joiner.Join(joiner.Spec{
		Left: in.Tables["claims"], Right: in.Tables["plans"],
		Keys: []string{"BIN", "PCN", "Group"}, Mode: joiner.Left, Suffixes: [2]string{"", "_plan"},
	})
	if err != nil {
		return nil, err
	}
	rs := ClaimsRules(p)
	report, flagged, err := evaluate(merged, rs)
	if err != nil {
		return nil, err
	}
	summary, err := statusSummary(flagged, rs.Column)
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Flagged: flagged, Summary: summary, FileName: "medicaid_claim_issues.csv"}, nil
}

var ProviderSite = register(&Screen{
	Name:  "provider-site",
	Title: "Provider Site Checker",
	Inputs: []Input{
		{Name: "providers", Label: "Provider List", Required: true, Schema: dataset.Schema{dataset.Req("NPI", id)}},
		{Name: "sites", Label: "340B Site Registration List", Required: true, Schema: dataset.Schema{
			dataset.Req("NPI", id), dataset.Req("Site Name", text),
		}},
	},
	run: runProviderSite,
})

func runProviderSite(in Inputs, _ config.Params) (*Result, error) {
	merged, err := joiner.Join(joiner.Spec{
		Left: in.Tables["providers"], Right: in.Tables["sites"],
		Keys: []string{"NPI"}, Mode: joiner.Left, Suffixes: [2]string{"", "_site"},
	})
	if err != nil {
		return nil, err
	}
	rs := rules.RuleSet{
		Name:     "provider-site",
		Column:   "Site Match",
		Default:  LabelMatched,
		Rules:    []rules.Rule{{Name: "unmatched", Label: LabelUnmatchedProv, When: rules.Missing("Site Name")}},
		Requires: dataset.Schema{dataset.Req("Site Name", text)},
	}
	report, flagged, err := evaluate(merged, rs)
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Flagged: flagged, FileName: "provider_site_unmatched.csv"}, nil
}

var OPAIS = register(&Screen{
	Name:  "opais",
	Title: "MEF / OPAIS Checker",
	Inputs: []Input{
		{Name: "invoices", Label: "Invoice File with Site Addresses", Required: true, Schema: dataset.Schema{dataset.Req("Address", text)}},
		{Name: "opais", Label: "OPAIS Site Registration File", Required: true, Schema: dataset.Schema{dataset.Req("Address", text)}},
		{Name: "mef", Label: "Medicaid Exclusion File"},
	},
	run: runOPAIS,
})

func lowerColumn(ds *dataset.Dataset, col string) (*dataset.Dataset, error) {
	return ds.MapColumn(col, func(_ int, v any) (any, error) {
		if s, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(s)), nil
		}
		return v, nil
	})
}

func runOPAIS(in Inputs, _ config.Params) (*Result, error) {
	invoices, err := lowerColumn(in.Tables["invoices"], "Address")
	if err != nil {
		return nil, err
	}
	opais, err := lowerColumn(in.Tables["opais"], "Address")
	if err != nil {
		return nil, err
	}
	marked, err := joiner.Membership(invoices, "Address", opais, "Address", "Registered")
	if err != nil {
		return nil, err
	}
	rs := rules.RuleSet{
		Name:     "opais",
		Column:   "OPAIS Status",
		Default:  LabelRegistered,
		Rules:    []rules.Rule{{Name: "address", Label: LabelAddressMissing, When: rules.Not(rules.IsTrue("Registered"))}},
		Requires: dataset.Schema{dataset.Req("Registered", boolean)},
	}
	report, flagged, err := evaluate(marked, rs)
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Flagged: flagged, FileName: "opais_address_mismatch.csv"}, nil
}
