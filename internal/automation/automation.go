package automation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/config"
	"github.com/san-kum/calib/internal/experiment"
	"github.com/san-kum/calib/internal/logging"
)

// Scenario is a scripted sequence of calibration jobs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep names a job by preset or job file. Optimizer settings given
// on the step override the job's.
type ScenarioStep struct {
	Name      string                  `yaml:"name"`
	Model     string                  `yaml:"model"`
	Preset    string                  `yaml:"preset"`
	Job       string                  `yaml:"job"`
	Optimizer *config.OptimizerParams `yaml:"optimizer"`
}

// LoadScenario loads a scenario from a YAML file. Job paths are resolved
// relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for i := range scenario.Steps {
		if job := scenario.Steps[i].Job; job != "" && !filepath.IsAbs(job) {
			scenario.Steps[i].Job = filepath.Join(dir, job)
		}
	}
	return &scenario, nil
}

func (s ScenarioStep) load() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.Job != "":
		loaded, err := config.Load(s.Job)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case s.Preset != "":
		cfg = config.GetPreset(s.Model, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s/%s", s.Model, s.Preset)
		}
	default:
		return nil, fmt.Errorf("step needs a job file or a preset")
	}

	if o := s.Optimizer; o != nil {
		if o.BaseDamping != 0 {
			cfg.Optimizer.BaseDamping = o.BaseDamping
		}
		if o.Tolerance != 0 {
			cfg.Optimizer.Tolerance = o.Tolerance
		}
		if o.MaxIterations != 0 {
			cfg.Optimizer.MaxIterations = o.MaxIterations
		}
		if o.DampingCap != 0 {
			cfg.Optimizer.DampingCap = o.DampingCap
		}
		if o.Epsilon != 0 {
			cfg.Optimizer.Epsilon = o.Epsilon
		}
		if o.DampingPolicy != "" {
			cfg.Optimizer.DampingPolicy = o.DampingPolicy
		}
	}
	return cfg, nil
}

// StepHook is called after each finished step, for saving or printing.
type StepHook func(i int, step ScenarioStep, out *experiment.Outcome) error

// RunScenario executes all steps in order and stops at the first step that
// cannot be run. Steps stopped by the damping cap carry it on Outcome.Err.
// The logger is taken from ctx.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, hook StepHook) ([]*experiment.Outcome, error) {
	log := logging.FromContext(ctx)
	results := make([]*experiment.Outcome, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.load()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		log.Info("running step", "step", i+1, "of", len(scenario.Steps), "name", step.Name, "model", cfg.Model)

		exp := experiment.New(cfg, log.WithValues("step", i+1))
		if err := exp.Setup(registry); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		out, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, out)

		if hook != nil {
			if err := hook(i, step, out); err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}

	return results, nil
}

// MonteCarloConfig perturbs the initial guess of a job uniformly within
// ±Perturbation and reruns it NumTrials times.
type MonteCarloConfig struct {
	Job          *config.Config
	Perturbation float64
	NumTrials    int
	Seed         int64
}

type MonteCarloResult struct {
	TrialID    int                   `json:"trial"`
	Guess      calib.ParameterVector `json:"initial_guess"`
	Solution   calib.ParameterVector `json:"solution"`
	Status     string                `json:"status"`
	Iterations int                   `json:"iterations"`
	MSE        float64               `json:"mse"`
}

func (r MonteCarloResult) Converged() bool {
	return r.Status == calib.Converged.String()
}

// RunMonteCarlo measures how often the job converges from nearby guesses.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	log := logging.FromContext(ctx)
	if cfg.Job == nil || cfg.NumTrials <= 0 {
		return nil, fmt.Errorf("monte carlo needs a job and a positive trial count")
	}

	results := make([]MonteCarloResult, 0, cfg.NumTrials)

	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for trial := 0; trial < cfg.NumTrials; trial++ {
		job := cfg.Job.Clone()
		for i := range job.InitialGuess {
			job.InitialGuess[i].Value += (rng.Float64() - 0.5) * 2 * cfg.Perturbation
		}

		exp := experiment.New(job, log.WithValues("trial", trial))
		if err := exp.Setup(registry); err != nil {
			return results, fmt.Errorf("trial %d setup: %w", trial, err)
		}

		out, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}

		results = append(results, MonteCarloResult{
			TrialID:    trial,
			Guess:      job.Guess(),
			Solution:   out.Result.Params,
			Status:     out.Result.Status.String(),
			Iterations: out.Result.Iterations,
			MSE:        out.Result.MSE,
		})
	}

	return results, nil
}

// ConvergenceRate is the fraction of converged trials.
func ConvergenceRate(results []MonteCarloResult) float64 {
	if len(results) == 0 {
		return 0
	}
	n := 0
	for _, r := range results {
		if r.Converged() {
			n++
		}
	}
	return float64(n) / float64(len(results))
}
