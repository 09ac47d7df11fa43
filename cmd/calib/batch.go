package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/calib/internal/automation"
	"github.com/san-kum/calib/internal/experiment"
	"github.com/san-kum/calib/internal/logging"
	"github.com/san-kum/calib/internal/optim"
	"github.com/san-kum/calib/internal/storage"
)

var (
	gridDampings []float64
	gridPolicies []string
	gridEpsilons []float64
	workers      int
	trials       int
	perturbation float64
	seed         int64
)

func newBatchCmds() []*cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scenario of calibration jobs",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "grid search over optimizer settings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&configFile, "config", "", "job file path (yaml)")
	sweepCmd.Flags().StringVar(&preset, "preset", "", "use preset job")
	sweepCmd.Flags().Float64SliceVar(&gridDampings, "dampings", []float64{0.01, 0.1, 1}, "base damping grid")
	sweepCmd.Flags().StringSliceVar(&gridPolicies, "policies", []string{"reset", "escalate"}, "damping policy grid")
	sweepCmd.Flags().Float64SliceVar(&gridEpsilons, "eps", nil, "finite difference step grid")
	sweepCmd.Flags().IntVar(&workers, "workers", 4, "concurrent runs")

	mcCmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "rerun a job from perturbed initial guesses",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	mcCmd.Flags().StringVar(&configFile, "config", "", "job file path (yaml)")
	mcCmd.Flags().StringVar(&preset, "preset", "", "use preset job")
	mcCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	mcCmd.Flags().Float64Var(&perturbation, "perturb", 0.5, "uniform perturbation half-width")
	mcCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 for time based)")

	return []*cobra.Command{batchCmd, sweepCmd, mcCmd}
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, "info", false)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if !noSave {
		if err := st.Init(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tNAME\tMODEL\tSTATUS\tITER\tMSE\tRUN")

	hook := func(i int, step automation.ScenarioStep, out *experiment.Outcome) error {
		runID := "-"
		if !noSave {
			id, err := st.Save(out)
			if err != nil {
				return err
			}
			runID = id
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.3e\t%s\n",
			i+1, step.Name, out.Config.Model, out.Result.Status, out.Result.Iterations, out.Result.MSE, runID)
		return nil
	}

	ctx, stop := interruptible()
	defer stop()

	_, runErr := automation.RunScenario(logging.IntoContext(ctx, log), scenario, experiment.NewRegistry(), hook)
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadJob(cmd, args)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	g := &optim.GridSearch{
		BaseDampings: gridDampings,
		Policies:     gridPolicies,
		Epsilons:     gridEpsilons,
		Workers:      workers,
	}

	ctx, stop := interruptible()
	defer stop()

	results, err := g.Search(ctx, cfg, experiment.NewRegistry(), log)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAMPING\tPOLICY\tEPS\tSTATUS\tITER\tACCEPTED\tMSE")
	for _, r := range optim.Ranked(results) {
		fmt.Fprintf(w, "%g\t%s\t%g\t%s\t%d\t%d\t%.3e\n",
			r.Point.BaseDamping, r.Point.Policy, r.Point.Epsilon, r.Status, r.Iterations, r.Accepted, r.MSE)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best, err := optim.Best(results)
	if err != nil {
		return err
	}
	fmt.Printf("\nbest: damping=%g policy=%s eps=%g (%d iterations)\n",
		best.Point.BaseDamping, best.Point.Policy, best.Point.Epsilon, best.Iterations)
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadJob(cmd, args)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	ctx, stop := interruptible()
	defer stop()

	results, err := automation.RunMonteCarlo(logging.IntoContext(ctx, log), &automation.MonteCarloConfig{
		Job:          cfg,
		Perturbation: perturbation,
		NumTrials:    trials,
		Seed:         seed,
	}, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tSTATUS\tITER\tMSE\tGUESS")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.3e\t%v\n", r.TrialID, r.Status, r.Iterations, r.MSE, r.Guess.ValueSlice())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nconverged %.0f%% of %d trials\n", 100*automation.ConvergenceRate(results), len(results))
	return nil
}
