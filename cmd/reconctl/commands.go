package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/export"
	"Recon340B/internal/jobs"
	"Recon340B/internal/library"
	"Recon340B/internal/loader"
	"Recon340B/internal/program"
	"Recon340B/internal/screens"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func openLibrary(folder string) (*library.Service, error) {
	lib := library.NewService(map[string]interface{}{"folder_path": folder}, nil, nil)
	if err := lib.Start(); err != nil {
		return nil, err
	}
	return lib, nil
}

func newScreensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "screens",
		Short: "List screens and the columns each input needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCREEN\tINPUT\tKIND\tREQUIRED\tCOLUMNS")
			for _, s := range screens.All() {
				for _, i := range s.Inputs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
						s.Name, i.Name, i.Kind, i.Required, strings.Join(i.Schema.Required(), ", "))
				}
			}
			return tw.Flush()
		},
	}
}

// readInputs loads name=path pairs the way the HTTP layer reads uploads.
func readInputs(s *screens.Screen, pairs []string) (screens.Inputs, error) {
	in := screens.NewInputs()
	kinds := make(map[string]screens.InputKind, len(s.Inputs))
	for _, i := range s.Inputs {
		kinds[i.Name] = i.Kind
	}
	for _, pair := range pairs {
		name, path, ok := strings.Cut(pair, "=")
		if !ok {
			return in, fmt.Errorf("input %q must be name=path", pair)
		}
		kind, known := kinds[name]
		if !known {
			return in, fmt.Errorf("screen %s has no input %q", s.Name, name)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return in, err
		}
		format := loader.FormatFromFilename(path)
		switch kind {
		case screens.Book:
			wb, err := loader.OpenWorkbook(raw, format)
			if err != nil {
				return in, fmt.Errorf("%s: %w", name, err)
			}
			in.Workbooks[name] = wb
		case screens.Document:
			in.Documents[name] = raw
		default:
			ds, err := loader.Load(name, raw, format)
			if err != nil {
				return in, fmt.Errorf("%s: %w", name, err)
			}
			in.Tables[name] = ds
		}
	}
	return in, nil
}

func newRunCmd(opts *options) *cobra.Command {
	var (
		inputs []string
		view   string
		out    string
		store  bool
	)
	cmd := &cobra.Command{
		Use:   "run [screen]",
		Short: "Run a screen over local files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := screens.Lookup(args[0])
			if err != nil {
				return err
			}
			in, err := readInputs(s, inputs)
			if err != nil {
				return err
			}
			res, err := s.Run(in, opts.params)
			if err != nil {
				return err
			}
			if store && res.Log != "" && res.LogRows != nil {
				lib, err := openLibrary(opts.library)
				if err != nil {
					return err
				}
				defer lib.Stop()
				n, err := lib.Catalog.AppendDataset(cmd.Context(), res.Log, res.LogRows)
				if err != nil {
					return err
				}
				zap.L().Info("stored rows", zap.String("log", res.Log), zap.Int("rows", n))
			}
			ds, fileName, ok := res.View(view)
			if !ok {
				return fmt.Errorf("screen %s has no view %q", s.Name, view)
			}
			return writeCSV(cmd.OutOrStdout(), ds, out, fileName)
		},
	}
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "input as name=path, repeatable")
	cmd.Flags().StringVar(&view, "view", "", "report, flagged, summary or a screen view (default primary)")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file or directory; "-" for stdout`)
	cmd.Flags().BoolVar(&store, "store", false, "append the run to its library log")
	return cmd
}

// writeCSV writes ds to stdout when out is empty or "-", into the default
// file name when out is a directory, else to out.
func writeCSV(stdout io.Writer, ds *dataset.Dataset, out, fileName string) error {
	body, err := export.Export(ds, "csv")
	if err != nil {
		return err
	}
	if out == "" || out == "-" {
		_, err = stdout.Write(body)
		return err
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, fileName)
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d rows to %s\n", ds.Len(), out)
	return nil
}

func newWhatIfCmd() *cobra.Command {
	s := program.DefaultScenario()
	b := program.DefaultBaseline()
	var out string
	cmd := &cobra.Command{
		Use:   "whatif",
		Short: "Project savings for a recovery scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := program.Project(b, s)
			if err != nil {
				return err
			}
			if out != "" {
				return writeCSV(cmd.OutOrStdout(), p.Dataset(), out, "what_if_scenario_summary.csv")
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, imp := range p.Impacts {
				fmt.Fprintf(tw, "%s\t%s\n", imp.Category, imp.Amount.StringFixed(2))
			}
			fmt.Fprintf(tw, "Total\t%s\n", p.Total.StringFixed(2))
			fmt.Fprintf(tw, "Baseline\t%s\n", p.Baseline.StringFixed(2))
			fmt.Fprintf(tw, "Change\t%s (%s%%)\n", p.Delta.StringFixed(2), p.DeltaPercent.StringFixed(1))
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&s.WasteRecoveryRate, "waste-rate", s.WasteRecoveryRate, "waste recovery rate (%)")
	cmd.Flags().IntVar(&s.OverchargeRecoveryRate, "overcharge-rate", s.OverchargeRecoveryRate, "overcharge recovery rate (%)")
	cmd.Flags().IntVar(&s.ReturnRecoupRate, "return-rate", s.ReturnRecoupRate, "return recoup rate (%)")
	cmd.Flags().IntVar(&s.SitesAdded, "sites", s.SitesAdded, "sites added")
	cmd.Flags().IntVar(&b.Sites, "baseline-sites", b.Sites, "current number of sites")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the summary CSV here")
	return cmd
}

func newChangeCmd(opts *options) *cobra.Command {
	var (
		req           program.ChangeRequest
		goLive        string
		cost, savings string
		store         bool
	)
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Evaluate a proposed program change",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.GoLive, err = time.Parse("2006-01-02", goLive); err != nil {
				return fmt.Errorf("--go-live: %w", err)
			}
			if req.Cost, err = decimal.NewFromString(cost); err != nil {
				return fmt.Errorf("--cost: %w", err)
			}
			if req.Savings, err = decimal.NewFromString(savings); err != nil {
				return fmt.Errorf("--savings: %w", err)
			}
			eval, err := program.Evaluate(req, opts.params.TodayDate())
			if err != nil {
				return err
			}
			if store {
				lib, err := openLibrary(opts.library)
				if err != nil {
					return err
				}
				defer lib.Stop()
				log, err := lib.Catalog.Log(cmd.Context(), config.LogChangeEvaluation)
				if err != nil {
					return err
				}
				if _, err := log.Append(cmd.Context(), eval.LogRecord()); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ROI: %s%%\nImplementation time: %d days\n",
				eval.ROI.String(), eval.ImplementationDays)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ChangeType, "type", "", "change type: "+strings.Join(program.ChangeTypes, ", "))
	cmd.Flags().StringVar(&req.Description, "description", "", "what changes")
	cmd.Flags().StringVar(&goLive, "go-live", "", "go-live date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cost, "cost", "0", "estimated cost ($)")
	cmd.Flags().StringVar(&savings, "savings", "0", "estimated savings ($)")
	cmd.Flags().StringVar(&req.RiskLevel, "risk", "Low", "risk level: "+strings.Join(program.RiskLevels, ", "))
	cmd.Flags().StringVar(&req.SubmittedBy, "by", "", "submitted by")
	cmd.Flags().BoolVar(&store, "store", false, "append to the change evaluation log")
	return cmd
}

func newSweepCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the contract expiry sweep once over the newest archived contract file",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(opts.library)
			if err != nil {
				return err
			}
			defer lib.Stop()
			if out == "" {
				out = filepath.Join(opts.library, "sweeps")
			}
			sweep := &jobs.ExpirySweep{Documents: lib.Documents, Params: opts.params, Output: out}
			res, err := sweep.Run(cmd.Context())
			if err != nil {
				return err
			}
			if res.Source == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no contract file archived")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d contracts, %d need attention, report %s\n",
				res.Source, res.Checked, res.Flagged, res.Report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "report folder (default <library>/sweeps)")
	return cmd
}

func newLogCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "log [name]",
		Short: "Print a stored library log as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(opts.library)
			if err != nil {
				return err
			}
			defer lib.Stop()
			store, err := lib.Catalog.Log(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ds, err := store.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			return writeCSV(cmd.OutOrStdout(), ds, out, args[0]+".csv")
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file or directory; "-" for stdout`)
	return cmd
}
