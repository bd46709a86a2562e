package screens

import (
	"time"

	"Recon340B/internal/aggregate"
	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/joiner"
	"Recon340B/internal/rules"
)

const (
	LabelMissingEndDate   = "Missing End Date"
	LabelExpired          = "Expired"
	LabelExpiresSoon      = "Expires Soon"
	LabelActive           = "Active"
	LabelNotUnderContract = "Not Under Any Contract"
	LabelContractExpired  = "Contract Expired"
	LabelCovered          = "Covered"
	LabelCurrentNDC       = "Current NDC"
	LabelMigrationAllowed = "Migration Allowed"
	LabelMigrationBlocked = "Discontinued - Migration Not Allowed"
)

var Contracts = register(&Screen{
	Name:  "contracts",
	Title: "Contract Tracker",
	Inputs: []Input{
		{Name: "contracts", Label: "Contract File", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Start Date", date), dataset.Req("End Date", date),
			dataset.Opt("Wholesaler", text), dataset.Opt("Account Type", text),
		}},
		{Name: "invoice", Label: "Invoice to Check Coverage", Schema: dataset.Schema{dataset.Req("NDC", id)}},
	},
	run: runContracts,
})

// ContractStatusRules classifies a contract by its end date relative to
// today. A contract ending inside the expiry window expires soon.
func ContractStatusRules(p config.Params) rules.RuleSet {
	today := p.TodayDate()
	soon := today.AddDate(0, 0, p.ExpiryWindowDays)
	return rules.RuleSet{
		Name:    "contract-status",
		Column:  "Status",
		Default: LabelActive,
		Rules: []rules.Rule{
			{Name: "missing-end", Label: LabelMissingEndDate, When: rules.Missing("End Date")},
			{Name: "expired", Label: LabelExpired, When: rules.DateBeforeTime("End Date", today)},
			{Name: "expires-soon", Label: LabelExpiresSoon, When: rules.DateBeforeTime("End Date", soon)},
		},
		Requires: dataset.Schema{dataset.Req("End Date", date)},
	}
}

// CoverageRules checks an invoice line against the matched contract.
func CoverageRules(today time.Time) rules.RuleSet {
	return rules.RuleSet{
		Name:    "contract-coverage",
		Column:  "Contract Coverage Status",
		Default: LabelCovered,
		Rules: []rules.Rule{
			{Name: "uncovered", Label: LabelNotUnderContract, When: rules.Not(rules.IsTrue("Under Contract"))},
			{Name: "expired", Label: LabelContractExpired, When: rules.DateBeforeTime("End Date", today)},
		},
		Requires: dataset.Schema{dataset.Req("Under Contract", boolean), dataset.Req("End Date", date)},
	}
}

func runContracts(in Inputs, p config.Params) (*Result, error) {
	status := ContractStatusRules(p)
	report, flagged, err := evaluate(in.Tables["contracts"], status)
	if err != nil {
		return nil, err
	}
	summary, err := statusSummary(report, status.Column)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Report:   report,
		Flagged:  flagged,
		Summary:  summary,
		Primary:  ViewReport,
		FileName: "contract_status_report.csv",
	}

	invoice := in.Tables["invoice"]
	if invoice == nil {
		return res, nil
	}
	merged, err := joiner.Join(joiner.Spec{
		Left: invoice, Right: in.Tables["contracts"],
		Keys: []string{"NDC"}, Mode: joiner.Left,
		Suffixes: [2]string{"_inv", ""}, Indicator: "Under Contract",
	})
	if err != nil {
		return nil, err
	}
	coverage, err := rules.Evaluate(merged, CoverageRules(p.TodayDate()))
	if err != nil {
		return nil, err
	}
	res.Views = map[string]*dataset.Dataset{"coverage": coverage}
	res.FileNames = map[string]string{"coverage": "contract_coverage_report.csv"}
	return res, nil
}

var NDCMigration = register(&Screen{
	Name:  "ndc-migration",
	Title: "NDC Migration Checker",
	Inputs: []Input{
		{Name: "accumulator", Label: "TPA Accumulator Report", Required: true, Schema: dataset.Schema{dataset.Req("NDC", id)}},
		{Name: "migration", Label: "NDC Migration List", Required: true, Schema: dataset.Schema{
			dataset.Req("Old NDC", id), dataset.Req("New NDC", id), dataset.Opt("Allow Migration", boolean),
		}},
	},
	run: runMigration,
})

// MigrationRules: an NDC with no replacement is current; a replaced NDC
// either may carry its accumulation over or is blocked.
func MigrationRules() rules.RuleSet {
	return rules.RuleSet{
		Name:    "ndc-migration",
		Column:  "Migration Status",
		Default: LabelCurrentNDC,
		Rules: []rules.Rule{
			{Name: "allowed", Label: LabelMigrationAllowed, When: rules.All(rules.Present("New NDC"), rules.IsTrue("Allow Migration"))},
			{Name: "blocked", Label: LabelMigrationBlocked, When: rules.Present("New NDC")},
		},
		Requires: dataset.Schema{dataset.Req("New NDC", id)},
	}
}

func runMigration(in Inputs, _ config.Params) (*Result, error) {
	merged, err := joiner.Join(joiner.Spec{
		Left: in.Tables["accumulator"], Right: in.Tables["migration"],
		Keys: []string{"NDC"}, RightKeys: []string{"Old NDC"},
		Mode: joiner.Left, Suffixes: [2]string{"", "_migration"},
	})
	if err != nil {
		return nil, err
	}
	rs := MigrationRules()
	report, flagged, err := evaluate(merged, rs)
	if err != nil {
		return nil, err
	}
	summary, err := statusSummary(report, rs.Column)
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Flagged: flagged, Summary: summary, Primary: ViewReport, FileName: "ndc_migration_report.csv"}, nil
}

var Lookback = register(&Screen{
	Name:  "lookback",
	Title: "Lookback Impact Modeler",
	Inputs: []Input{
		{Name: "dispenses", Label: "Dispensed Drug File", Required: true, Schema: dataset.Schema{
			dataset.Req("Patient ID", id), dataset.Req("Dispense ID", id), dataset.Req("Dispense Date", date),
			dataset.Opt("Quantity", number), dataset.Opt("Unit Price ($)", number),
		}},
		{Name: "visits", Label: "Encounter Visit File", Required: true, Schema: dataset.Schema{
			dataset.Req("Patient ID", id), dataset.Req("Visit Date", date),
		}},
	},
	run: runLookback,
})

// EligibleVisit holds when the visit falls inside the lookback window around
// the dispense, both ends inclusive.
func EligibleVisit(before, after int) rules.Predicate {
	return rules.WithinWindow("Visit Date", "Dispense Date", rules.Days(before), rules.Days(after))
}

func runLookback(in Inputs, p config.Params) (*Result, error) {
	disp := in.Tables["dispenses"]
	merged, err := joiner.Join(joiner.Spec{
		Left: disp, Right: in.Tables["visits"],
		Keys: []string{"Patient ID"}, Mode: joiner.Inner, Suffixes: [2]string{"_disp", "_visit"},
	})
	if err != nil {
		return nil, err
	}
	if err := merged.Require("Dispense Date", "Visit Date", "Dispense ID"); err != nil {
		return nil, err
	}
	report := flag(merged, "Eligible", EligibleVisit(p.LookbackBefore, p.LookbackAfter))

	// Latest eligible visit per dispense.
	eligible, err := keep(report, "Eligible").SortBy("Visit Date", true)
	if err != nil {
		return nil, err
	}
	eligible, err = eligible.DropDuplicates("Dispense ID")
	if err != nil {
		return nil, err
	}

	res := &Result{Report: report, Flagged: eligible, FileName: "lookback_eligible_dispenses.csv"}
	if !disp.HasColumn("Quantity") || !disp.HasColumn("Unit Price ($)") {
		return res, nil
	}
	qualified, err := joiner.Membership(disp, "Dispense ID", eligible, "Dispense ID", "Qualified")
	if err != nil {
		return nil, err
	}
	qualified = derive(qualified, "Potential Savings", product("Quantity", "Unit Price ($)"))
	impact, err := aggregate.Sum(qualified, "Qualified", "Potential Savings")
	if err != nil {
		return nil, err
	}
	res.Summary = impact
	res.Views = map[string]*dataset.Dataset{"dispenses": qualified}
	return res, nil
}
