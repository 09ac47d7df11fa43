package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/calib/internal/config"
	"github.com/san-kum/calib/internal/experiment"
	"github.com/san-kum/calib/internal/storage"
	"github.com/san-kum/calib/internal/tui"
	"github.com/san-kum/calib/internal/viz"
)

// loadJob layers defaults, preset, job file and flags, in that order.
func loadJob(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 && loaded.Model != args[0] {
			return nil, fmt.Errorf("job file is for model %s, not %s", loaded.Model, args[0])
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("damping") {
		cfg.Optimizer.BaseDamping = baseDamping
	}
	if cmd.Flags().Changed("tol") {
		cfg.Optimizer.Tolerance = tolerance
	}
	if cmd.Flags().Changed("max-iter") {
		cfg.Optimizer.MaxIterations = maxIter
	}
	if cmd.Flags().Changed("cap") {
		cfg.Optimizer.DampingCap = dampingCap
	}
	if cmd.Flags().Changed("eps") {
		cfg.Optimizer.Epsilon = epsilon
	}
	if cmd.Flags().Changed("policy") {
		cfg.Optimizer.DampingPolicy = policy
	}

	return cfg, cfg.Validate()
}

func runCalibration(cmd *cobra.Command, args []string) error {
	cfg, err := loadJob(cmd, args)
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, log)
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	var renderer *tui.LiveRenderer
	if live {
		renderer = tui.NewLiveRenderer(os.Stderr, cfg.Model, frameRate)
		exp.GetOptimizer().AddObserver(renderer)
		renderer.Start()
	}

	ctx, stop := interruptible()
	defer stop()

	out, err := exp.Run(ctx)
	if renderer != nil {
		renderer.Stop()
	}
	if err != nil {
		return err
	}

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		if runID, err = st.Save(out); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	meta := storage.NewMetadata(runID, out)
	fmt.Println(viz.Summary(&meta))

	if showPlot {
		fmt.Println()
		fmt.Println(viz.ConvergencePlot(out.Trace, out.Result.InitialMSE, viz.DefaultPlotOptions()))
	}

	return out.Err
}

func openRun(runID string) (*storage.Store, *storage.RunMetadata, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	return st, meta, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSTATUS\tITER\tMSE\tPOLICY")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.3e\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Iterations,
			run.MSE,
			run.Optimizer.Policy,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	_, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.Summary(meta))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(meta.ID)
	if err != nil {
		return err
	}

	opts := viz.PlotOptions{Height: plotHeight, Width: plotWidth}
	fmt.Printf("%s  %s  %d iterations, %d accepted\n\n", meta.ID, meta.Status, trace.Len(), trace.Accepted())
	fmt.Println(viz.ConvergencePlot(trace, meta.InitialMSE, opts))
	fmt.Println()
	fmt.Println(viz.DampingPlot(trace, opts))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	data, err := storage.New(dataDir).Export(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.WriteJSON(os.Stdout, data)
	}
	if err := storage.ExportJSON(outPath, data); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", args[0], outPath)
	return nil
}

func replayRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(meta.ID)
	if err != nil {
		return err
	}
	return tui.Run(meta, trace)
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDESCRIPTION\tPRESETS")
	for _, name := range reg.ListModels() {
		fmt.Fprintf(w, "%s\t%s\t%v\n", name, reg.Describe(name), config.ListPresets(name))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := config.ListModels()
	if len(args) > 0 {
		models = args
	}

	for _, model := range models {
		presets := config.ListPresets(model)
		if len(presets) == 0 {
			fmt.Printf("no presets for model: %s\n", model)
			continue
		}
		fmt.Printf("presets for %s:\n", model)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func initJob(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(args[0], args[1])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[1], config.ListPresets(args[0]))
	}
	if err := config.Save(args[2], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s/%s job to %s\n", args[0], args[1], args[2])
	return nil
}
