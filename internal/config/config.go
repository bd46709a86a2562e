package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeZone      = "America/New_York"
	DefaultLibraryFolder = "library"
	DefaultParamsFile    = "params.yaml"

	// Contract expiry sweep runs every morning before business hours.
	DefaultSweepSchedule = "0 6 * * *"

	DefaultExpiryWindowDays = 30
	DefaultLookbackBefore   = 4
	DefaultLookbackAfter    = 4
	DefaultMarginalROI      = 50

	// Medicare cost report positions.
	DSHSheet    = "Worksheet E Part A"
	DSHRowIndex = 32
)

// Library log names shared by screens, the HTTP layer and the CLI.
const (
	LogComplianceFlags    = "compliance_flags"
	LogInvoiceOvercharges = "invoice_overcharges"
	LogSiteCrosswalk      = "340B_site_crosswalk"
	LogProviders          = "provider_list"
	LogContractPharmacies = "contract_pharmacies"
	LogChangeEvaluation   = "change_evaluation_log"
	LogDocumentIndex      = "library_index"
)

// LogColumns declares the stable header of every library log. Stores reject
// record fields outside these.
var LogColumns = map[string][]string{
	LogComplianceFlags:    {"NDC", "Site", "NPI", "Date", "Compliance Status", "Flag"},
	LogInvoiceOvercharges: {"NDC", "Unit Price", "Ceiling Price", "Overcharge Amount"},
	LogSiteCrosswalk:      {"Cost Center", "Revenue"},
	LogProviders:          {"NPI", "Provider Name", "Start Date", "End Date"},
	LogContractPharmacies: {"Store ID", "Vendor", "Gross Revenue", "Fee Paid ($)", "ROI (%)", "Profitability"},
	LogChangeEvaluation: {
		"Change Type", "Description", "Go-Live Date", "Estimated Cost ($)", "Estimated Savings ($)",
		"Risk Level", "ROI (%)", "Implementation Time (days)", "Submitted By", "Date Submitted",
	},
	LogDocumentIndex: {"Filename", "Category", "Upload Date", "Path", "Checksum"},
}

// DocumentCategories are the accepted document library categories.
var DocumentCategories = []string{
	"Medicare Cost Report", "Ceiling Price File", "Wholesaler Pricing", "Invoice",
	"TPA Export", "Contract", "MEF", "OPAIS", "Other",
}

// Params carries the tunable inputs of every screen. Regulatory lists live
// here so a policy change is a config edit, not a code change.
type Params struct {
	// Today anchors expiry and implementation-time calculations. Zero means
	// the current date in Location.
	Today    time.Time `yaml:"today"`
	TimeZone string    `yaml:"time_zone"`

	ExpiryWindowDays int `yaml:"expiry_window_days"`
	LookbackBefore   int `yaml:"lookback_before_days"`
	LookbackAfter    int `yaml:"lookback_after_days"`
	MarginalROI      int `yaml:"marginal_roi_percent"`

	OrphanEntityTypes []string `yaml:"orphan_entity_types"`
	FFSModifiers      []string `yaml:"ffs_modifiers"`
	MedicaidClaimType string   `yaml:"medicaid_claim_type"`

	RootCause    string `yaml:"rca_root_cause"`
	SuggestedFix string `yaml:"rca_suggested_fix"`
	Owner        string `yaml:"rca_owner"`
	Timeline     string `yaml:"rca_timeline"`
}

// DefaultParams returns the values the program ships with.
func DefaultParams() Params {
	return Params{
		TimeZone:          DefaultTimeZone,
		ExpiryWindowDays:  DefaultExpiryWindowDays,
		LookbackBefore:    DefaultLookbackBefore,
		LookbackAfter:     DefaultLookbackAfter,
		MarginalROI:       DefaultMarginalROI,
		OrphanEntityTypes: []string{"PED", "CAN", "CAH"},
		FFSModifiers:      []string{"UD", "U6"},
		MedicaidClaimType: "Medicaid",
		RootCause:         "Likely process gap or data mismatch",
		SuggestedFix:      "Review provider alignment, TPA logs, and 340B carve-in rules",
		Owner:             "Compliance Officer",
		Timeline:          "30 days",
	}
}

// LoadParams reads path over the defaults. A missing file yields the defaults.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

// Location resolves TimeZone, falling back to UTC.
func (p Params) Location() *time.Location {
	if p.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TodayDate is Today (or now) truncated to a UTC calendar date so it
// compares directly with normalized date columns.
func (p Params) TodayDate() time.Time {
	t := p.Today
	if t.IsZero() {
		t = time.Now().In(p.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
