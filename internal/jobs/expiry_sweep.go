package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"Recon340B/internal/config"
	"Recon340B/internal/export"
	"Recon340B/internal/library"
	"Recon340B/internal/loader"
	"Recon340B/internal/logger"
	"Recon340B/internal/screens"

	"go.uber.org/zap"
)

// SweepConfig controls the contract expiry sweep.
type SweepConfig struct {
	Schedule     string
	TimeZone     string
	OutputFolder string
}

func NewDefaultSweepConfig() *SweepConfig {
	return &SweepConfig{
		Schedule:     config.DefaultSweepSchedule,
		TimeZone:     config.DefaultTimeZone,
		OutputFolder: filepath.Join(config.DefaultLibraryFolder, "sweeps"),
	}
}

// SweepResult is what one sweep run found.
type SweepResult struct {
	Source  string
	Checked int
	Flagged int
	Report  string
}

// ExpirySweep runs the contract tracker over the most recently archived
// contract file and writes the contracts needing attention to a dated CSV.
type ExpirySweep struct {
	Documents *library.Documents
	Params    config.Params
	Output    string
}

// Run performs one sweep. No archived contract file is not an error.
func (s *ExpirySweep) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	doc, err := s.Documents.Latest(ctx, "Contract")
	if errors.Is(err, library.ErrNotFound) {
		logger.L().Info("expiry sweep skipped, no contract file archived")
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Source = doc.Filename

	raw, err := s.Documents.Open(doc)
	if err != nil {
		return res, err
	}
	contracts, err := loader.Load("contracts", raw, loader.FormatFromFilename(doc.Filename))
	if err != nil {
		return res, fmt.Errorf("load %s: %w", doc.Filename, err)
	}
	in := screens.NewInputs()
	in.Tables["contracts"] = contracts
	out, err := screens.Contracts.Run(in, s.Params)
	if err != nil {
		return res, err
	}
	res.Checked = out.Report.Len()
	res.Flagged = out.Flagged.Len()

	body, err := export.Export(out.Flagged, "csv")
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(s.Output, 0o755); err != nil {
		return res, err
	}
	res.Report = filepath.Join(s.Output, fmt.Sprintf("contract_expiry_%s.csv", s.Params.TodayDate().Format("20060102")))
	if err := os.WriteFile(res.Report, body, 0o644); err != nil {
		return res, err
	}
	logger.Audit("contract expiry sweep",
		zap.String("source", res.Source),
		zap.Int("checked", res.Checked),
		zap.Int("flagged", res.Flagged),
		zap.String("report", res.Report))
	return res, nil
}
