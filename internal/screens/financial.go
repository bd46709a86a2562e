package screens

import (
	"Recon340B/internal/aggregate"
	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/joiner"
	"Recon340B/internal/rules"

	"github.com/shopspring/decimal"
)

const (
	LabelNotRecouped  = "Not Recouped"
	LabelRecouped     = "Recouped"
	LabelUnknown      = "Unknown"
	LabelUnprofitable = "Unprofitable"
	LabelMarginal     = "Marginal"
	LabelProfitable   = "Profitable"
)

var hundred = decimal.NewFromInt(100)

var Invoice = register(&Screen{
	Name:  "invoice",
	Title: "Invoice Overcharge Checker",
	Inputs: []Input{
		{Name: "invoice", Label: "Invoice File", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Unit Price", number),
		}},
		{Name: "prices", Label: "340B Ceiling Price File", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Ceiling Price", number),
		}},
	},
	run: runInvoice,
})

// overcharge is the amount paid above ceiling, never negative.
func overcharge(r dataset.Row) (decimal.Decimal, bool) {
	unit, ok1 := num(r, "Unit Price")
	ceiling, ok2 := num(r, "Ceiling Price")
	if !ok1 || !ok2 {
		return decimal.Zero, false
	}
	return decimal.Max(unit.Sub(ceiling), decimal.Zero), true
}

func runInvoice(in Inputs, _ config.Params) (*Result, error) {
	merged, err := joiner.Join(joiner.Spec{
		Left: in.Tables["invoice"], Right: in.Tables["prices"],
		Keys: []string{"NDC"}, Mode: joiner.Left, Suffixes: [2]string{"", "_ceiling"},
	})
	if err != nil {
		return nil, err
	}
	report := flag(merged, "Overcharged", rules.GreaterThanColumn("Unit Price", "Ceiling Price"))
	report = derive(report, "Overcharge Amount", overcharge)
	flagged := keep(report, "Overcharged")
	summary, err := aggregate.Sum(flagged, "NDC", "Overcharge Amount")
	if err != nil {
		return nil, err
	}
	return &Result{
		Report:   report,
		Flagged:  flagged,
		Summary:  summary,
		FileName: "overcharge_report.csv",
		Log:      config.LogInvoiceOvercharges,
		LogRows:  logRows(flagged, config.LogInvoiceOvercharges),
	}, nil
}

var Waste = register(&Screen{
	Name:  "waste",
	Title: "Waste Recovery Calculator",
	Inputs: []Input{
		{Name: "encounters", Label: "Encounter File", Required: true, Schema: dataset.Schema{
			dataset.Req("Encounter ID", id), dataset.Req("NDC", id),
			dataset.Opt("Dose Administered (mg)", number),
			dataset.Opt("Vial Size (mg)", number), dataset.Opt("Vials Dispensed", number),
		}},
		{Name: "dispenses", Label: "Dispense File", Required: true, Schema: dataset.Schema{
			dataset.Req("Encounter ID", id), dataset.Req("NDC", id),
			dataset.Opt("Dose Administered (mg)", number),
			dataset.Opt("Vial Size (mg)", number), dataset.Opt("Vials Dispensed", number),
		}},
		{Name: "prices", Label: "NDC Price File", Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Unit Price ($)", number),
		}},
	},
	run: runWaste,
})

// wasted is the drawn amount (vial size times vials) less the administered dose.
func wasted(r dataset.Row) (decimal.Decimal, bool) {
	size, ok1 := num(r, "Vial Size (mg)")
	vials, ok2 := num(r, "Vials Dispensed")
	dose, ok3 := num(r, "Dose Administered (mg)")
	if !ok1 || !ok2 || !ok3 {
		return decimal.Zero, false
	}
	return size.Mul(vials).Sub(dose), true
}

func runWaste(in Inputs, _ config.Params) (*Result, error) {
	merged, err := joiner.Join(joiner.Spec{
		Left: in.Tables["encounters"], Right: in.Tables["dispenses"],
		Keys: []string{"Encounter ID", "NDC"}, Mode: joiner.Inner, Suffixes: [2]string{"_enc", "_disp"},
	})
	if err != nil {
		return nil, err
	}
	if err := merged.Require("Vial Size (mg)", "Vials Dispensed", "Dose Administered (mg)"); err != nil {
		return nil, err
	}
	report := derive(merged, "Waste (mg)", wasted)
	valueCol := "Waste (mg)"
	if prices := in.Tables["prices"]; prices != nil {
		unit, err := prices.Select("NDC", "Unit Price ($)")
		if err != nil {
			return nil, err
		}
		report, err = joiner.Join(joiner.Spec{
			Left: report, Right: unit,
			Keys: []string{"NDC"}, Mode: joiner.Left, Suffixes: [2]string{"", "_price"},
		})
		if err != nil {
			return nil, err
		}
		report = derive(report, "Savings ($)", product("Waste (mg)", "Unit Price ($)"))
		valueCol = "Savings ($)"
	}
	flagged := report.Filter(rules.GreaterThan("Waste (mg)", decimal.Zero))
	summary, err := aggregate.Sum(flagged, "NDC", valueCol)
	if err != nil {
		return nil, err
	}
	return &Result{
		Report:   report,
		Flagged:  flagged,
		Summary:  summary,
		Primary:  ViewReport,
		FileName: "waste_recovery_report.csv",
	}, nil
}

var ReverseDistribution = register(&Screen{
	Name:  "reverse-distribution",
	Title: "Reverse Distribution Analyzer",
	Inputs: []Input{
		{Name: "returns", Label: "Reverse Distribution Report", Required: true, Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Return Status", text), dataset.Opt("Quantity Returned", number),
		}},
		{Name: "prices", Label: "NDC Price File", Schema: dataset.Schema{
			dataset.Req("NDC", id), dataset.Req("Unit Price ($)", number),
		}},
	},
	run: runReverse,
})

// ReturnRules marks every return whose status does not mention a recoup.
func ReturnRules() rules.RuleSet {
	return rules.RuleSet{
		Name:     "reverse-distribution",
		Column:   "Return Review",
		Default:  LabelRecouped,
		Rules:    []rules.Rule{{Name: "not-recouped", Label: LabelNotRecouped, When: rules.IsTrue("Flag")}},
		Requires: dataset.Schema{dataset.Req("Flag", boolean)},
	}
}

func runReverse(in Inputs, _ config.Params) (*Result, error) {
	rev := in.Tables["returns"]
	if prices := in.Tables["prices"]; prices != nil {
		if err := rev.Require("Quantity Returned"); err != nil {
			return nil, err
		}
		unit, err := prices.Select("NDC", "Unit Price ($)")
		if err != nil {
			return nil, err
		}
		rev, err = joiner.Join(joiner.Spec{
			Left: rev, Right: unit,
			Keys: []string{"NDC"}, Mode: joiner.Left, Suffixes: [2]string{"", "_price"},
		})
		if err != nil {
			return nil, err
		}
		rev = derive(rev, "Lost Value ($)", product("Quantity Returned", "Unit Price ($)"))
	}
	recouped := rules.ContainsFold("Return Status", "recoup")
	rev = flag(rev, "Recouped", recouped)
	rev = flag(rev, "Flag", rules.Not(recouped))

	report, flagged, err := evaluate(rev, ReturnRules())
	if err != nil {
		return nil, err
	}
	res := &Result{Report: report, Flagged: flagged, Primary: ViewReport, FileName: "reverse_return_analysis.csv"}
	if report.HasColumn("Lost Value ($)") {
		res.Summary, err = aggregate.Sum(flagged, "NDC", "Lost Value ($)")
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

var VendorContracts = register(&Screen{
	Name:  "vendor-contracts",
	Title: "Vendor Contract Analyzer",
	Inputs: []Input{
		{Name: "performance", Label: "Contract Pharmacy Performance Report", Required: true, Schema: vendorSchema},
		{Name: "contracts", Label: "Contract/Vendor Agreement Data", Required: true, Schema: vendorSchema},
	},
	run: runVendor,
})

var vendorSchema = dataset.Schema{
	dataset.Opt("Store ID", id), dataset.Opt("Vendor", text),
	dataset.Opt("Gross Revenue", number), dataset.Opt("Fee Paid ($)", number),
}

// roi is (revenue - fee) / fee as a percentage, rounded to cents. A missing
// or zero fee has no ROI.
func roi(r dataset.Row) (decimal.Decimal, bool) {
	revenue, ok1 := num(r, "Gross Revenue")
	fee, ok2 := num(r, "Fee Paid ($)")
	if !ok1 || !ok2 || fee.IsZero() {
		return decimal.Zero, false
	}
	return revenue.Sub(fee).Div(fee).Mul(hundred).Round(2), true
}

// ProfitabilityRules grades ROI (%). Rows without an ROI are Unknown.
func ProfitabilityRules(p config.Params) rules.RuleSet {
	return rules.RuleSet{
		Name:    "vendor-profitability",
		Column:  "Profitability",
		Default: LabelProfitable,
		Rules: []rules.Rule{
			{Name: "unknown", Label: LabelUnknown, When: rules.Missing("ROI (%)")},
			{Name: "unprofitable", Label: LabelUnprofitable, When: rules.LessThan("ROI (%)", decimal.Zero)},
			{Name: "marginal", Label: LabelMarginal, When: rules.LessThan("ROI (%)", decimal.NewFromInt(int64(p.MarginalROI)))},
		},
		Requires: dataset.Schema{dataset.Req("ROI (%)", number)},
	}
}

// vendorKey picks the shared join column, preferring Store ID over Vendor.
func vendorKey(perf, contracts *dataset.Dataset) (string, error) {
	for _, col := range []string{"Store ID", "Vendor"} {
		if perf.HasColumn(col) && contracts.HasColumn(col) {
			return col, nil
		}
	}
	ds := perf
	if perf.HasColumn("Store ID") || perf.HasColumn("Vendor") {
		ds = contracts
	}
	return "", &dataset.KeyColumnMissingError{Dataset: ds.Name(), Column: "Store ID"}
}

func runVendor(in Inputs, p config.Params) (*Result, error) {
	perf, contracts := in.Tables["performance"], in.Tables["contracts"]
	key, err := vendorKey(perf, contracts)
	if err != nil {
		return nil, err
	}
	merged, err := joiner.Join(joiner.Spec{
		Left: perf, Right: contracts,
		Keys: []string{key}, Mode: joiner.Left, Suffixes: [2]string{"", "_contract"},
	})
	if err != nil {
		return nil, err
	}
	merged = derive(merged, "ROI (%)", roi)
	rs := ProfitabilityRules(p)
	report, err := rules.Evaluate(merged, rs)
	if err != nil {
		return nil, err
	}
	flagged := report.Filter(rules.EqualFold(rs.Column, LabelUnprofitable))
	summary, err := statusSummary(report, rs.Column)
	if err != nil {
		return nil, err
	}
	return &Result{
		Report:    report,
		Flagged:   flagged,
		Summary:   summary,
		Primary:   ViewReport,
		FileName:  "vendor_contract_roi_analysis.csv",
		FileNames: map[string]string{ViewFlagged: "underperforming_contracts.csv"},
		Log:       config.LogContractPharmacies,
		LogRows:   logRows(report, config.LogContractPharmacies),
	}, nil
}
