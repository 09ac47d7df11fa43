package trinomial

import (
	"fmt"
	"math"
)

// Config for a Hull-White trinomial tree. MeanReversion 0 gives the Ho-Lee
// model, whose tree is never truncated.
type Config struct {
	LastDate      float64 `yaml:"last_date" json:"last_date"`
	Volatility    float64 `yaml:"volatility" json:"volatility"`
	StepsPerYear  int     `yaml:"steps_per_year" json:"steps_per_year"`
	MeanReversion float64 `yaml:"mean_reversion" json:"mean_reversion"`
}

func (c Config) validate() error {
	switch {
	case c.LastDate <= 0:
		return fmt.Errorf("%w: last date must be positive, got %g", ErrInvalidTree, c.LastDate)
	case c.Volatility <= 0:
		return fmt.Errorf("%w: volatility must be positive, got %g", ErrInvalidTree, c.Volatility)
	case c.StepsPerYear <= 0:
		return fmt.Errorf("%w: steps per year must be positive, got %d", ErrInvalidTree, c.StepsPerYear)
	case c.MeanReversion < 0:
		return fmt.Errorf("%w: mean reversion must be non-negative, got %g", ErrInvalidTree, c.MeanReversion)
	}
	return nil
}

// Cashflow pays Amount at Time (years).
type Cashflow struct {
	Time   float64 `yaml:"time" json:"time"`
	Amount float64 `yaml:"amount" json:"amount"`
}

// Call lets the issuer redeem the bond at Strike on Time. Calls at or before
// time zero are ignored.
type Call struct {
	Time   float64 `yaml:"time" json:"time"`
	Strike float64 `yaml:"strike" json:"strike"`
}

// Tree is a short-rate tree fitted to a zero curve by forward induction.
type Tree struct {
	curve *ZeroCurve
	cfg   Config
	dt    float64
	dx    float64
	steps int
	jmax  int
	m     float64
	alpha []float64
	// q holds the Arrow-Debreu prices per step, indexed by j + width(step).
	q [][]float64
}

func Build(curve *ZeroCurve, cfg Config) (*Tree, error) {
	if curve == nil {
		return nil, ErrEmptyCurve
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.LastDate * float64(cfg.StepsPerYear)))
	if steps < 1 {
		return nil, fmt.Errorf("%w: horizon %g shorter than one step", ErrInvalidTree, cfg.LastDate)
	}

	dt := 1 / float64(cfg.StepsPerYear)
	t := &Tree{
		curve: curve,
		cfg:   cfg,
		dt:    dt,
		dx:    cfg.Volatility * math.Sqrt(3*dt),
		steps: steps,
		jmax:  steps,
		m:     -cfg.MeanReversion * dt,
		alpha: make([]float64, steps),
		q:     make([][]float64, steps+1),
	}
	if cfg.MeanReversion > 0 {
		t.jmax = min(steps, int(math.Ceil(0.184/(cfg.MeanReversion*dt))))
	}

	t.fit()
	return t, nil
}

func (t *Tree) width(step int) int { return min(step, t.jmax) }

// branch returns the middle successor of node j and the up, middle and down
// probabilities. Nodes on a truncated edge branch inwards.
func (t *Tree) branch(j int) (k int, pu, pm, pd float64) {
	jm := float64(j) * t.m
	jm2 := jm * jm

	switch {
	case t.cfg.MeanReversion > 0 && j == t.jmax:
		return j - 1, 7.0/6 + (jm2+3*jm)/2, -1.0/3 - jm2 - 2*jm, 1.0/6 + (jm2+jm)/2
	case t.cfg.MeanReversion > 0 && j == -t.jmax:
		return j + 1, 1.0/6 + (jm2-jm)/2, -1.0/3 - jm2 + 2*jm, 7.0/6 + (jm2-3*jm)/2
	default:
		return j, 1.0/6 + (jm2+jm)/2, 2.0/3 - jm2, 1.0/6 + (jm2-jm)/2
	}
}

func (t *Tree) fit() {
	t.q[0] = []float64{1}

	for step := 0; step < t.steps; step++ {
		w := t.width(step)
		cur := t.q[step]

		sum := 0.0
		for j := -w; j <= w; j++ {
			sum += cur[j+w] * math.Exp(-float64(j)*t.dx*t.dt)
		}
		p := t.curve.DiscountFactor(float64(step+1) * t.dt)
		t.alpha[step] = (math.Log(sum) - math.Log(p)) / t.dt

		wn := t.width(step + 1)
		next := make([]float64, 2*wn+1)
		for j := -w; j <= w; j++ {
			k, pu, pm, pd := t.branch(j)
			disc := cur[j+w] * math.Exp(-t.rate(step, j)*t.dt)
			next[k+1+wn] += disc * pu
			next[k+wn] += disc * pm
			next[k-1+wn] += disc * pd
		}
		t.q[step+1] = next
	}
}

func (t *Tree) rate(step, j int) float64 {
	return t.alpha[step] + float64(j)*t.dx
}

func (t *Tree) Steps() int       { return t.steps }
func (t *Tree) Dt() float64      { return t.dt }
func (t *Tree) Horizon() float64 { return float64(t.steps) * t.dt }
func (t *Tree) MaxNode() int     { return t.jmax }

// ShortRate returns the one-period rate at node j of a step.
func (t *Tree) ShortRate(step, j int) (float64, bool) {
	if step < 0 || step >= t.steps || j < -t.width(step) || j > t.width(step) {
		return 0, false
	}
	return t.rate(step, j), true
}

// ArrowDebreu returns the state prices of a step, indexed from the lowest node.
func (t *Tree) ArrowDebreu(step int) []float64 {
	if step < 0 || step > t.steps {
		return nil
	}
	return append([]float64(nil), t.q[step]...)
}

func (t *Tree) stepOf(time float64) int {
	return int(math.Round(time / t.dt))
}

// BondPrice values the cashflows by backward induction, letting the issuer
// call at each call date before that date's cashflow is paid.
func (t *Tree) BondPrice(cashflows []Cashflow, calls ...Call) (float64, error) {
	if len(cashflows) == 0 {
		return 0, fmt.Errorf("%w: no cashflows", ErrInvalidCashflow)
	}

	amounts := make(map[int]float64)
	last := 0
	for _, cf := range cashflows {
		if cf.Time < 0 || math.IsNaN(cf.Time) {
			return 0, fmt.Errorf("%w: time %g", ErrInvalidCashflow, cf.Time)
		}
		s := t.stepOf(cf.Time)
		if s > t.steps {
			return 0, fmt.Errorf("%w: %g > %g", ErrBeyondHorizon, cf.Time, t.Horizon())
		}
		amounts[s] += cf.Amount
		last = max(last, s)
	}

	strikes := make(map[int]float64)
	for _, c := range calls {
		if c.Time <= 0 {
			continue
		}
		s := t.stepOf(c.Time)
		if s <= 0 || s >= last {
			continue
		}
		if k, ok := strikes[s]; !ok || c.Strike < k {
			strikes[s] = c.Strike
		}
	}

	w := t.width(last)
	values := make([]float64, 2*w+1)
	for i := range values {
		values[i] = amounts[last]
	}

	for step := last - 1; step >= 0; step-- {
		w := t.width(step)
		wn := t.width(step + 1)
		strike, callable := strikes[step]

		cur := make([]float64, 2*w+1)
		for j := -w; j <= w; j++ {
			k, pu, pm, pd := t.branch(j)
			cont := pu*values[k+1+wn] + pm*values[k+wn] + pd*values[k-1+wn]
			v := math.Exp(-t.rate(step, j)*t.dt) * cont
			if callable {
				v = math.Min(v, strike)
			}
			cur[j+w] = v + amounts[step]
		}
		values = cur
	}

	return values[0], nil
}

// ZeroBondPrice is the tree price of a unit zero-coupon bond maturing at T.
func (t *Tree) ZeroBondPrice(maturity float64) (float64, error) {
	return t.BondPrice([]Cashflow{{Time: maturity, Amount: 1}})
}
