package metrics

import (
	"math"

	"github.com/san-kum/calib/internal/calib"
)

// Metric accumulates one number over the iterations of a run.
type Metric interface {
	Name() string
	Observe(s calib.Step)
	Value() float64
	Reset()
}

// Collector fans optimizer iterations out to a set of metrics.
type Collector struct {
	metrics []Metric
}

func NewCollector(metrics ...Metric) *Collector {
	return &Collector{metrics: metrics}
}

// Default returns the metrics recorded for every run.
func Default() *Collector {
	return NewCollector(
		NewAcceptanceRate(),
		NewMSEReduction(),
		NewPeakDamping(),
		NewRankDeficiency(),
	)
}

func (c *Collector) OnIteration(s calib.Step) {
	for _, m := range c.metrics {
		m.Observe(s)
	}
}

// Values returns the current value of each metric keyed by name.
func (c *Collector) Values() map[string]float64 {
	out := make(map[string]float64, len(c.metrics))
	for _, m := range c.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (c *Collector) Reset() {
	for _, m := range c.metrics {
		m.Reset()
	}
}

type AcceptanceRate struct {
	accepted int
	samples  int
}

func NewAcceptanceRate() *AcceptanceRate { return &AcceptanceRate{} }

func (a *AcceptanceRate) Name() string { return "acceptance_rate" }

func (a *AcceptanceRate) Observe(s calib.Step) {
	a.samples++
	if s.Accepted {
		a.accepted++
	}
}

func (a *AcceptanceRate) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return float64(a.accepted) / float64(a.samples)
}

func (a *AcceptanceRate) Reset() { *a = AcceptanceRate{} }

// MSEReduction is the number of decades the accepted objective fell between
// the first and the latest iteration. An exact fit is capped at 300 decades.
type MSEReduction struct {
	first   float64
	last    float64
	samples int
}

func NewMSEReduction() *MSEReduction { return &MSEReduction{} }

func (r *MSEReduction) Name() string { return "mse_decades" }

func (r *MSEReduction) Observe(s calib.Step) {
	if r.samples == 0 {
		r.first = s.MSE
	}
	r.last = s.MSE
	r.samples++
}

func (r *MSEReduction) Value() float64 {
	if r.samples == 0 || r.first <= 0 {
		return 0
	}
	return math.Log10(r.first) - math.Log10(math.Max(r.last, r.first*1e-300))
}

func (r *MSEReduction) Reset() { *r = MSEReduction{} }

type PeakDamping struct {
	peak float64
}

func NewPeakDamping() *PeakDamping { return &PeakDamping{} }

func (p *PeakDamping) Name() string { return "peak_damping" }

func (p *PeakDamping) Observe(s calib.Step) {
	p.peak = math.Max(p.peak, s.Damping)
}

func (p *PeakDamping) Value() float64 { return p.peak }

func (p *PeakDamping) Reset() { p.peak = 0 }

// RankDeficiency is the fraction of iterations whose damped normal matrix
// could not be inverted.
type RankDeficiency struct {
	deficient int
	samples   int
}

func NewRankDeficiency() *RankDeficiency { return &RankDeficiency{} }

func (r *RankDeficiency) Name() string { return "rank_deficient_ratio" }

func (r *RankDeficiency) Observe(s calib.Step) {
	r.samples++
	if s.RankDeficient {
		r.deficient++
	}
}

func (r *RankDeficiency) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return float64(r.deficient) / float64(r.samples)
}

func (r *RankDeficiency) Reset() { *r = RankDeficiency{} }
