package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/calib/internal/calib"
)

// mseFloor keeps log10 finite for runs that hit an exact zero.
const mseFloor = 1e-300

type PlotOptions struct {
	Height int
	Width  int
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Height: 10, Width: 80}
}

// ConvergencePlot charts log10 of the accepted error per iteration. The first
// point is the error before the first iteration.
func ConvergencePlot(trace *calib.Trace, initialMSE float64, opts PlotOptions) string {
	if trace == nil || trace.Len() == 0 {
		return Subtle.Render("no iterations recorded")
	}

	data := make([]float64, 0, trace.Len()+1)
	if initialMSE > 0 && !math.IsInf(initialMSE, 0) {
		data = append(data, math.Log10(initialMSE))
	}
	for _, v := range trace.MSESeries() {
		data = append(data, math.Log10(math.Max(v, mseFloor)))
	}

	return plot(data, "log10(mse) per iteration", opts)
}

// DampingPlot charts the damping factor carried out of each iteration.
func DampingPlot(trace *calib.Trace, opts PlotOptions) string {
	if trace == nil || trace.Len() == 0 {
		return Subtle.Render("no iterations recorded")
	}

	data := make([]float64, trace.Len())
	for i, st := range trace.Steps {
		data[i] = st.Damping
	}
	return plot(data, "damping per iteration", opts)
}

func plot(data []float64, caption string, opts PlotOptions) string {
	if opts.Height <= 0 || opts.Width <= 0 {
		opts = DefaultPlotOptions()
	}
	return asciigraph.Plot(data,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(caption),
	)
}
