package viz

import (
	"strings"
	"testing"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/storage"
)

func testRun() *storage.RunMetadata {
	return &storage.RunMetadata{
		ID:         "linear_1",
		Model:      "linear",
		Status:     "converged",
		Iterations: 5,
		MSE:        1e-9,
		InitialMSE: 14,
		Optimizer:  storage.OptimizerSettings{BaseDamping: 0.1, Tolerance: 1e-8, Policy: "reset"},
		Guess:      calib.Values(0, 0, 0),
		Solution:   calib.Values(1, 2, 3),
		Target:     []float64{1, 2, 3},
		Outputs:    []float64{1, 2, 3},
		Metrics:    map[string]float64{"acceptance_rate": 1},
	}
}

func testTrace() *calib.Trace {
	tr := calib.NewTrace()
	for i, mse := range []float64{1.5, 0.1, 0.001, 0} {
		tr.OnIteration(calib.Step{Iteration: i + 1, MSE: mse, Damping: 0.1, Accepted: true})
	}
	return tr
}

func TestSummary(t *testing.T) {
	out := Summary(testRun())

	for _, want := range []string{"linear", "linear_1", "converged", "policy=reset", "acceptance rate", "◆", "solution"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryShowsError(t *testing.T) {
	run := testRun()
	run.Status = "damping_exceeded"
	run.Error = "iteration 7: damping cap exceeded"

	if out := Summary(run); !strings.Contains(out, "damping cap exceeded") {
		t.Errorf("expected error in summary:\n%s", out)
	}
}

func TestParameterTableHandlesShortColumns(t *testing.T) {
	run := testRun()
	run.Outputs = nil

	lines := strings.Split(strings.TrimSpace(ParameterTable(run)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "-") {
		t.Errorf("expected placeholder for missing output: %s", lines[1])
	}
}

func TestConvergencePlot(t *testing.T) {
	out := ConvergencePlot(testTrace(), 14, DefaultPlotOptions())
	if !strings.Contains(out, "log10(mse)") {
		t.Errorf("expected caption in plot:\n%s", out)
	}

	if out := ConvergencePlot(calib.NewTrace(), 1, DefaultPlotOptions()); !strings.Contains(out, "no iterations") {
		t.Errorf("expected empty marker, got %q", out)
	}
}

func TestDampingPlot(t *testing.T) {
	out := DampingPlot(testTrace(), PlotOptions{})
	if !strings.Contains(out, "damping") {
		t.Errorf("expected caption in plot:\n%s", out)
	}
}

func TestStatusStyle(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"converged", StatusConverged.Render("x")},
		{"iterations_exhausted", StatusExhausted.Render("x")},
		{"damping_exceeded", StatusFailed.Render("x")},
	}

	for _, tt := range tests {
		if got := StatusStyle(tt.status).Render("x"); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.status, tt.want, got)
		}
	}
}

func TestSparklineChart(t *testing.T) {
	if got := SparklineChart(nil, 5); got != "─────" {
		t.Errorf("expected flat line, got %q", got)
	}
	if got := SparklineChart([]float64{1, 2, 3}, 10); got == "" {
		t.Error("expected sparkline")
	}
}
