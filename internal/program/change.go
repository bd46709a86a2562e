package program

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ChangeTypes = []string{
		"New Drug", "Provider Addition", "Contract Update",
		"Site Carve-In/Out", "TPA/Vendor Change", "Policy Revision",
	}
	RiskLevels = []string{"Low", "Medium", "High"}
)

var ErrInvalidChange = errors.New("invalid change request")

// ChangeRequest is a proposed program change as submitted.
type ChangeRequest struct {
	ChangeType  string          `json:"change_type"`
	Description string          `json:"description"`
	GoLive      time.Time       `json:"go_live"`
	Cost        decimal.Decimal `json:"estimated_cost"`
	Savings     decimal.Decimal `json:"estimated_savings"`
	RiskLevel   string          `json:"risk_level"`
	SubmittedBy string          `json:"submitted_by"`
}

func (c ChangeRequest) Validate() error {
	switch {
	case !slices.Contains(ChangeTypes, c.ChangeType):
		return fmt.Errorf("%w: change type %q", ErrInvalidChange, c.ChangeType)
	case !slices.Contains(RiskLevels, c.RiskLevel):
		return fmt.Errorf("%w: risk level %q", ErrInvalidChange, c.RiskLevel)
	case c.GoLive.IsZero():
		return fmt.Errorf("%w: go-live date required", ErrInvalidChange)
	case c.Cost.IsNegative() || c.Savings.IsNegative():
		return fmt.Errorf("%w: cost and savings must not be negative", ErrInvalidChange)
	}
	return nil
}

// Evaluation is a change request with its computed ROI and lead time.
type Evaluation struct {
	ChangeRequest
	ROI                decimal.Decimal `json:"roi_percent"`
	ImplementationDays int             `json:"implementation_days"`
	Submitted          time.Time       `json:"date_submitted"`
}

// ROI is (savings - cost) / cost as a percentage rounded to 2 places; a
// free change returns 100.
func ROI(cost, savings decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return hundred
	}
	return savings.Sub(cost).Div(cost).Mul(hundred).Round(2)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Evaluate scores c as of today. Implementation days may be negative for a
// go-live date already past.
func Evaluate(c ChangeRequest, today time.Time) (Evaluation, error) {
	if err := c.Validate(); err != nil {
		return Evaluation{}, err
	}
	today = dateOnly(today)
	c.GoLive = dateOnly(c.GoLive)
	return Evaluation{
		ChangeRequest:      c,
		ROI:                ROI(c.Cost, c.Savings),
		ImplementationDays: int(c.GoLive.Sub(today).Hours() / 24),
		Submitted:          today,
	}, nil
}

// LogRecord is the change_evaluation_log row for e.
func (e Evaluation) LogRecord() map[string]any {
	return map[string]any{
		"Change Type":                e.ChangeType,
		"Description":                e.Description,
		"Go-Live Date":               e.GoLive,
		"Estimated Cost ($)":         e.Cost,
		"Estimated Savings ($)":      e.Savings,
		"Risk Level":                 e.RiskLevel,
		"ROI (%)":                    e.ROI,
		"Implementation Time (days)": decimal.NewFromInt(int64(e.ImplementationDays)),
		"Submitted By":               e.SubmittedBy,
		"Date Submitted":             e.Submitted,
	}
}
