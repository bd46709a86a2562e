package library

import (
	"context"
	"strings"

	"Recon340B/internal/aggregate"
	"Recon340B/internal/config"
)

// Metrics are the program summary figures shown on the dashboard.
type Metrics struct {
	TotalClaims        int `json:"total_claims"`
	ComplianceFlags    int `json:"compliance_flags"`
	ContractPharmacies int `json:"contract_pharmacies"`
}

// Summarize counts logged claims, those flagged Yes, and distinct contract
// pharmacy stores. Empty logs count zero.
func (c *Catalog) Summarize(ctx context.Context) (Metrics, error) {
	var m Metrics
	claims, err := c.Log(ctx, config.LogComplianceFlags)
	if err != nil {
		return m, err
	}
	flags, err := claims.ReadAll(ctx)
	if err != nil {
		return m, err
	}
	m.TotalClaims = flags.Len()
	for i := 0; i < flags.Len(); i++ {
		if v, ok := flags.Value(i, "Flag").(string); ok && strings.EqualFold(strings.TrimSpace(v), "yes") {
			m.ComplianceFlags++
		}
	}

	pharmacies, err := c.Log(ctx, config.LogContractPharmacies)
	if err != nil {
		return m, err
	}
	contracts, err := pharmacies.ReadAll(ctx)
	if err != nil {
		return m, err
	}
	if m.ContractPharmacies, err = aggregate.CountDistinct(contracts, "Store ID"); err != nil {
		return m, err
	}
	return m, nil
}
