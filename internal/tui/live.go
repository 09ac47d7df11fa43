package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/viz"
)

const (
	sparkWidth = 40
	clearLine  = "\r\033[2K"
	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
)

// LiveRenderer prints a one-line progress view while the optimizer runs.
// Frames are throttled to frameRate per second; the final frame is always
// drawn by Stop.
type LiveRenderer struct {
	out       io.Writer
	model     string
	frameRate int
	lastFrame time.Time
	history   []float64
	last      calib.Step
	accepted  int
}

func NewLiveRenderer(out io.Writer, model string, frameRate int) *LiveRenderer {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &LiveRenderer{out: out, model: model, frameRate: frameRate}
}

func (r *LiveRenderer) OnIteration(s calib.Step) {
	r.last = s
	r.history = append(r.history, log10(s.MSE))
	if s.Accepted {
		r.accepted++
	}

	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()
	r.render()
}

func (r *LiveRenderer) render() {
	s := r.last
	mark := viz.Accepted.Render("✓")
	if !s.Accepted {
		mark = viz.Rejected.Render("✗")
	}

	var b strings.Builder
	b.WriteString(clearLine)
	b.WriteString(fmt.Sprintf("  %s  it=%-6d mse=%-12.4e λ=%-10.4g %s %d/%d  ",
		r.model, s.Iteration, s.MSE, s.Damping, mark, r.accepted, len(r.history)))
	b.WriteString(viz.SparklineChart(tail(r.history, sparkWidth), sparkWidth))
	fmt.Fprint(r.out, b.String())
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }

func (r *LiveRenderer) Stop() {
	if len(r.history) > 0 {
		r.render()
	}
	fmt.Fprint(r.out, "\n"+showCursor)
}

func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
