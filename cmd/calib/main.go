package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/san-kum/calib/internal/logging"
)

var (
	dataDir  string
	logLevel string
	logDev   bool
	// run
	configFile  string
	preset      string
	baseDamping float64
	tolerance   float64
	maxIter     int
	dampingCap  float64
	epsilon     float64
	policy      string
	live        bool
	frameRate   int
	noSave      bool
	showPlot    bool
	// plot
	plotHeight int
	plotWidth  int
	// export
	outPath string
)

// main registers the calib commands and exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "calib",
		Short:        "levenberg-marquardt model calibration",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".calib", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (info, debug, trace, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logDev, "log-dev", false, "development console logging")

	runCmd := newRunCmd()

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run summary",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run convergence",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run with its trace as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "step through a run interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  replayRun,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list calibration models",
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init [model] [preset] [path]",
		Short: "write a preset job file",
		Args:  cobra.ExactArgs(3),
		RunE:  initJob,
	}

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, exportCmd, replayCmd, modelsCmd, presetsCmd, initCmd,
		newPriceCmd(), newTreeCmd())
	rootCmd.AddCommand(newBatchCmds()...)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a calibration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCalibration,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "job file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset job")
	runCmd.Flags().Float64Var(&baseDamping, "damping", 0.1, "base damping factor")
	runCmd.Flags().Float64Var(&tolerance, "tol", 1e-8, "mse tolerance")
	runCmd.Flags().IntVar(&maxIter, "max-iter", 10000, "iteration budget")
	runCmd.Flags().Float64Var(&dampingCap, "cap", 20, "damping cap")
	runCmd.Flags().Float64Var(&epsilon, "eps", 1e-5, "finite difference step")
	runCmd.Flags().StringVar(&policy, "policy", "reset", "damping policy (reset, escalate)")
	runCmd.Flags().BoolVar(&live, "live", false, "show live progress")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "live frame rate")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot convergence after the run")
	return runCmd
}

// newLogger resolves the log settings, the flag winning over the job file.
func newLogger(cmd *cobra.Command, level string, development bool) (logr.Logger, error) {
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	if cmd.Flags().Changed("log-dev") {
		development = logDev
	}
	log, err := logging.NewLogger(level, development)
	if err != nil {
		return logr.Discard(), fmt.Errorf("logger: %w", err)
	}
	return log, nil
}
