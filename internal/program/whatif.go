// Package program holds the planning tools: what-if savings projections and
// change request evaluation.
package program

import (
	"fmt"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Baseline is the program's current savings picture.
type Baseline struct {
	WasteSavings   decimal.Decimal `json:"waste_savings" yaml:"waste_savings"`
	Overcharges    decimal.Decimal `json:"overcharges" yaml:"overcharges"`
	ReturnLosses   decimal.Decimal `json:"return_losses" yaml:"return_losses"`
	Sites          int             `json:"sites" yaml:"sites"`
	AvgSiteSavings decimal.Decimal `json:"avg_site_savings" yaml:"avg_site_savings"`
}

func DefaultBaseline() Baseline {
	return Baseline{
		WasteSavings:   decimal.NewFromInt(50000),
		Overcharges:    decimal.NewFromInt(40000),
		ReturnLosses:   decimal.NewFromInt(20000),
		Sites:          12,
		AvgSiteSavings: decimal.NewFromInt(15000),
	}
}

// Total is the baseline the projection is compared with. Return losses are
// not counted as savings.
func (b Baseline) Total() decimal.Decimal {
	return b.WasteSavings.Add(b.Overcharges).Add(b.AvgSiteSavings.Mul(decimal.NewFromInt(int64(b.Sites))))
}

// Scenario holds the adjustable assumptions; rates are percentages 0..100.
type Scenario struct {
	WasteRecoveryRate      int `json:"waste_recovery_rate"`
	OverchargeRecoveryRate int `json:"overcharge_recovery_rate"`
	ReturnRecoupRate       int `json:"return_recoup_rate"`
	SitesAdded             int `json:"sites_added"`
}

func DefaultScenario() Scenario {
	return Scenario{WasteRecoveryRate: 60, OverchargeRecoveryRate: 80, ReturnRecoupRate: 70}
}

func (s Scenario) Validate() error {
	for name, r := range map[string]int{
		"waste_recovery_rate":      s.WasteRecoveryRate,
		"overcharge_recovery_rate": s.OverchargeRecoveryRate,
		"return_recoup_rate":       s.ReturnRecoupRate,
	} {
		if r < 0 || r > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got %d", name, r)
		}
	}
	if s.SitesAdded < 0 {
		return fmt.Errorf("sites_added must not be negative, got %d", s.SitesAdded)
	}
	return nil
}

// Projection is the modeled outcome of a scenario.
type Projection struct {
	Impacts      []Impact        `json:"impacts"`
	Total        decimal.Decimal `json:"total"`
	Baseline     decimal.Decimal `json:"baseline"`
	Delta        decimal.Decimal `json:"delta"`
	DeltaPercent decimal.Decimal `json:"delta_percent"`
}

type Impact struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

func pct(base decimal.Decimal, rate int) decimal.Decimal {
	return base.Mul(decimal.NewFromInt(int64(rate))).Div(hundred)
}

// Project applies s to b. DeltaPercent is rounded to one place and zero
// when the baseline is zero.
func Project(b Baseline, s Scenario) (Projection, error) {
	if err := s.Validate(); err != nil {
		return Projection{}, err
	}
	p := Projection{
		Impacts: []Impact{
			{"Recovered Waste Savings", pct(b.WasteSavings, s.WasteRecoveryRate)},
			{"Resolved Overcharges", pct(b.Overcharges, s.OverchargeRecoveryRate)},
			{"Recouped Drug Returns", pct(b.ReturnLosses, s.ReturnRecoupRate)},
			{"Savings from Site Expansion", b.AvgSiteSavings.Mul(decimal.NewFromInt(int64(s.SitesAdded)))},
		},
		Baseline: b.Total(),
	}
	p.Total = decimal.Zero
	for _, i := range p.Impacts {
		p.Total = p.Total.Add(i.Amount)
	}
	p.Delta = p.Total.Sub(p.Baseline)
	p.DeltaPercent = decimal.Zero
	if !p.Baseline.IsZero() {
		p.DeltaPercent = p.Delta.Div(p.Baseline).Mul(hundred).Round(1)
	}
	return p, nil
}

// Dataset is the downloadable scenario summary.
func (p Projection) Dataset() *dataset.Dataset {
	rows := make([]dataset.Row, len(p.Impacts))
	for i, imp := range p.Impacts {
		rows[i] = dataset.Row{"Category": imp.Category, "Projected Impact ($)": imp.Amount}
	}
	return dataset.MustNew("what_if_scenario_summary", []string{"Category", "Projected Impact ($)"}, rows)
}
