// Command reconctl runs reconciliation screens and program tools from the
// command line over local files.
package main

import (
	"fmt"
	"os"

	"Recon340B/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	paramsFile string
	library    string
	verbose    bool
	params     config.Params
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "reconctl",
		Short: "340B reconciliation screens and program tools",
		Long: `reconctl runs the reconciliation screens over local CSV, XLSX or XLS
files and writes the chosen view as CSV.

Example:
  reconctl run accumulator -i claims=claims.csv -i accumulator=tpa.xlsx --view flagged`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zapcore.WarnLevel
			if opts.verbose {
				level = zapcore.DebugLevel
			}
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(level)
			cfg.OutputPaths = []string{"stderr"}
			zl, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			zap.ReplaceGlobals(zl)

			opts.params, err = config.LoadParams(opts.paramsFile)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}
	root.PersistentFlags().StringVar(&opts.paramsFile, "params", config.DefaultParamsFile, "screen parameters file")
	root.PersistentFlags().StringVar(&opts.library, "library", config.DefaultLibraryFolder, "library folder")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newScreensCmd(),
		newRunCmd(opts),
		newWhatIfCmd(),
		newChangeCmd(opts),
		newSweepCmd(opts),
		newLogCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zap.L().Error("reconctl failed", zap.Error(err))
		os.Exit(1)
	}
}
