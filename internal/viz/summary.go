package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/san-kum/calib/internal/storage"
)

const summaryWidth = 72

// Summary renders a run's outcome and solution table.
func Summary(meta *storage.RunMetadata) string {
	var b strings.Builder

	title := meta.Model
	if meta.ID != "" {
		title += "  " + Subtle.Render(meta.ID)
	}
	b.WriteString(HeaderStyle.Render(Title.Render(title)))
	b.WriteString("\n")

	metric := func(label, value string) {
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	metric("status", StatusStyle(meta.Status).Render(meta.Status))
	metric("iterations", MetricValue.Render(fmt.Sprintf("%d", meta.Iterations)))
	metric("mse", MetricValue.Render(fmt.Sprintf("%.6e", meta.MSE)))
	metric("elapsed", MetricValue.Render(time.Duration(meta.Elapsed*float64(time.Second)).Round(time.Microsecond).String()))

	o := meta.Optimizer
	metric("optimizer", Subtle.Render(fmt.Sprintf("damping=%g tol=%g max=%d cap=%g eps=%g policy=%s",
		o.BaseDamping, o.Tolerance, o.MaxIterations, o.DampingCap, o.Epsilon, o.Policy)))
	if meta.Error != "" {
		metric("error", StatusFailed.Render(meta.Error))
	}

	names := make([]string, 0, len(meta.Metrics))
	for name := range meta.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		metric(strings.ReplaceAll(name, "_", " "), Subtle.Render(fmt.Sprintf("%.4g", meta.Metrics[name])))
	}

	b.WriteString(Separator(summaryWidth))
	b.WriteString("\n")
	b.WriteString(ParameterTable(meta))
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// ParameterTable lists guess and solution per parameter, with the target and
// fitted output of the matching model output.
func ParameterTable(meta *storage.RunMetadata) string {
	var b strings.Builder
	b.WriteString(MetricLabel.Render(fmt.Sprintf("%-8s %14s %14s %14s %14s", "label", "guess", "solution", "target", "output")))
	b.WriteString("\n")

	for i, p := range meta.Solution {
		guess := cell(i, len(meta.Guess), func(i int) float64 { return meta.Guess[i].Value })
		target := cell(i, len(meta.Target), func(i int) float64 { return meta.Target[i] })
		output := cell(i, len(meta.Outputs), func(i int) float64 { return meta.Outputs[i] })

		b.WriteString(fmt.Sprintf("%-8g %14s %s %14s %14s\n",
			p.Label, guess, MetricValue.Render(fmt.Sprintf("%14.8g", p.Value)), target, output))
	}
	return b.String()
}

func cell(i, n int, value func(int) float64) string {
	if i >= n {
		return "-"
	}
	return fmt.Sprintf("%.8g", value(i))
}
