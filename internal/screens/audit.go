package screens

import (
	"fmt"
	"strings"

	"Recon340B/internal/aggregate"
	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/joiner"
	"Recon340B/internal/loader"
	"Recon340B/internal/rules"

	"github.com/shopspring/decimal"
)

const (
	LabelLowRisk  = "Low Risk"
	LabelNotFound = "not found"

	highRiskScore = 90
	lowRiskScore  = 10
	riskThreshold = 50
)

var AuditRisk = register(&Screen{
	Name:  "audit-risk",
	Title: "Audit Risk Analyzer and RCA Generator",
	Inputs: []Input{
		{Name: "findings", Label: "Historical Audit Findings", Required: true, Schema: dataset.Schema{
			dataset.Req("Finding Type", text), dataset.Req("Area Affected", text),
		}},
		{Name: "current", Label: "Current Program Snapshot", Required: true, Schema: dataset.Schema{
			dataset.Req("Area", text),
		}},
	},
	run: runAuditRisk,
})

// RiskRules builds one rule per distinct past Area Affected, in the order the
// areas first appear. A current Area naming a past area takes that area as
// its risk category.
func RiskRules(findings *dataset.Dataset) (rules.RuleSet, error) {
	areas, err := findings.Column("Area Affected")
	if err != nil {
		return rules.RuleSet{}, err
	}
	rs := rules.RuleSet{
		Name:     "audit-risk",
		Column:   "Risk Category",
		Default:  LabelLowRisk,
		Requires: dataset.Schema{dataset.Req("Area", text)},
	}
	seen := make(map[string]bool)
	for _, v := range areas {
		area, ok := dataset.Text(v)
		if !ok || area == "" || seen[area] {
			continue
		}
		seen[area] = true
		rs.Rules = append(rs.Rules, rules.Rule{
			Name:  fmt.Sprintf("area-%d", len(rs.Rules)+1),
			Label: area,
			When:  rules.ContainsFold("Area", area),
		})
	}
	return rs, nil
}

func runAuditRisk(in Inputs, p config.Params) (*Result, error) {
	findings := in.Tables["findings"]
	summary, err := aggregate.GroupCount(findings, "Finding Type", aggregate.CountOptions{
		CountColumn: "Frequency", PercentColumn: "Risk %",
	})
	if err != nil {
		return nil, err
	}
	rs, err := RiskRules(findings)
	if err != nil {
		return nil, err
	}
	report, err := rules.Evaluate(in.Tables["current"], rs)
	if err != nil {
		return nil, err
	}
	report = report.WithColumn("Risk Score", func(r dataset.Row) any {
		if r[rs.Column] == rs.Default {
			return decimal.NewFromInt(lowRiskScore)
		}
		return decimal.NewFromInt(highRiskScore)
	})

	areas, err := report.Select("Area", rs.Column, "Risk Score")
	if err != nil {
		return nil, err
	}
	areas, err = areas.DropDuplicates(areas.Columns()...)
	if err != nil {
		return nil, err
	}

	flagged := report.Filter(rules.GreaterThan("Risk Score", decimal.NewFromInt(riskThreshold)))
	for _, rca := range []struct{ col, val string }{
		{"Root Cause", p.RootCause},
		{"Suggested Fix", p.SuggestedFix},
		{"Owner", p.Owner},
		{"Timeline", p.Timeline},
	} {
		v := rca.val
		flagged = flagged.WithColumn(rca.col, func(dataset.Row) any { return v })
	}

	return &Result{
		Report:   report,
		Flagged:  flagged,
		Summary:  summary,
		Views:    map[string]*dataset.Dataset{"risk-areas": areas},
		FileName: "audit_risk_rca_report.csv",
	}, nil
}

var MCR = register(&Screen{
	Name:  "mcr",
	Title: "Medicare Cost Report Parser",
	Inputs: []Input{
		{Name: "report", Label: "Medicare Cost Report (Excel)", Kind: Book, Required: true},
	},
	run: runMCR,
})

const (
	SheetA = "Worksheet A"
	SheetC = "Worksheet C"
)

// DSH returns the disproportionate share row of the cost report as
// Field/Value pairs, or a single "not found" pair when the sheet is short.
func DSH(wb *loader.Workbook) (*dataset.Dataset, error) {
	sheet, err := wb.Sheet(config.DSHSheet)
	if err != nil {
		return nil, err
	}
	cols := []string{"Field", "Value"}
	row, ok := wb.RowAt(config.DSHSheet, config.DSHRowIndex)
	if !ok {
		return dataset.FromRecords("dsh", cols, [][]any{{"DSH %", LabelNotFound}})
	}
	var records [][]any
	for _, c := range sheet.Columns() {
		records = append(records, []any{c, row[c]})
	}
	return dataset.FromRecords("dsh", cols, records)
}

// revenueColumn is the first column whose name mentions revenue.
func revenueColumn(ds *dataset.Dataset) (string, error) {
	for _, c := range ds.Columns() {
		if strings.Contains(strings.ToLower(c), "revenue") {
			return c, nil
		}
	}
	return "", &dataset.ColumnNotFoundError{Dataset: ds.Name(), Columns: []string{"revenue"}}
}

func runMCR(in Inputs, _ config.Params) (*Result, error) {
	wb := in.Workbooks["report"]
	dsh, err := DSH(wb)
	if err != nil {
		return nil, err
	}
	var sides [2]*dataset.Dataset
	for i, name := range []string{SheetA, SheetC} {
		ds, err := wb.Sheet(name)
		if err != nil {
			return nil, err
		}
		if !ds.HasColumn("Cost Center") {
			return nil, &dataset.KeyColumnMissingError{Dataset: name, Column: "Cost Center"}
		}
		if sides[i], err = loader.NormalizeColumn(ds, "Cost Center", id); err != nil {
			return nil, err
		}
	}
	merged, err := joiner.Join(joiner.Spec{
		Left: sides[0], Right: sides[1],
		Keys: []string{"Cost Center"}, Mode: joiner.Inner, Suffixes: [2]string{"_a", "_c"},
	})
	if err != nil {
		return nil, err
	}
	revCol, err := revenueColumn(merged)
	if err != nil {
		return nil, err
	}
	report, err := loader.NormalizeColumn(merged, revCol, number)
	if err != nil {
		return nil, err
	}
	eligible := report.Filter(rules.GreaterThan(revCol, decimal.Zero))
	crosswalk := eligible.WithColumn("Revenue", func(r dataset.Row) any { return r[revCol] })

	return &Result{
		Report:   report,
		Flagged:  eligible,
		Summary:  dsh,
		FileName: "340B_site_crosswalk.csv",
		Log:      config.LogSiteCrosswalk,
		LogRows:  logRows(crosswalk, config.LogSiteCrosswalk),
	}, nil
}
