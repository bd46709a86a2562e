package program

import (
	"errors"
	"testing"
	"time"

	"Recon340B/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProjectDefaults(t *testing.T) {
	p, err := Project(DefaultBaseline(), DefaultScenario())
	require.NoError(t, err)

	amounts := make([]string, len(p.Impacts))
	for i, imp := range p.Impacts {
		amounts[i] = imp.Amount.String()
	}
	assert.Equal(t, []string{"30000", "32000", "14000", "0"}, amounts)
	assert.True(t, d("76000").Equal(p.Total))
	assert.True(t, d("270000").Equal(p.Baseline))
	assert.True(t, d("-194000").Equal(p.Delta))
	assert.True(t, d("-71.9").Equal(p.DeltaPercent))

	ds := p.Dataset()
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, "Savings from Site Expansion", ds.Value(3, "Category"))
}

func TestProjectSiteExpansion(t *testing.T) {
	s := DefaultScenario()
	s.SitesAdded = 3
	p, err := Project(DefaultBaseline(), s)
	require.NoError(t, err)
	assert.True(t, d("45000").Equal(p.Impacts[3].Amount))
}

func TestProjectRejectsBadRates(t *testing.T) {
	_, err := Project(DefaultBaseline(), Scenario{WasteRecoveryRate: 120})
	assert.Error(t, err)
	_, err = Project(DefaultBaseline(), Scenario{SitesAdded: -1})
	assert.Error(t, err)
}

func TestROI(t *testing.T) {
	assert.True(t, d("150").Equal(ROI(d("1000"), d("2500"))))
	assert.True(t, d("-33.33").Equal(ROI(d("300"), d("200"))))
	assert.True(t, d("100").Equal(ROI(decimal.Zero, d("10"))))
}

func TestEvaluateChange(t *testing.T) {
	today := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	e, err := Evaluate(ChangeRequest{
		ChangeType:  "Contract Update",
		Description: "Add Walgreens store 44",
		GoLive:      time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Cost:        d("2000"),
		Savings:     d("5000"),
		RiskLevel:   "Medium",
		SubmittedBy: "pharmacy ops",
	}, today)
	require.NoError(t, err)
	assert.Equal(t, 30, e.ImplementationDays)
	assert.True(t, d("150").Equal(e.ROI))

	rec := e.LogRecord()
	var cols []string
	for k := range rec {
		cols = append(cols, k)
	}
	assert.ElementsMatch(t, config.LogColumns[config.LogChangeEvaluation], cols)
}

func TestEvaluateRejectsUnknownValues(t *testing.T) {
	_, err := Evaluate(ChangeRequest{ChangeType: "Merger", RiskLevel: "Low", GoLive: time.Now()}, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidChange))

	_, err = Evaluate(ChangeRequest{ChangeType: "New Drug", RiskLevel: "Severe", GoLive: time.Now()}, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidChange))
}
