package pricing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInvalidOption   = errors.New("pricing: invalid option")
	ErrInvalidSchedule = errors.New("pricing: invalid swaption schedule")
)

// Option describes a single-period option on a forward rate or price.
type Option struct {
	Forward        float64 `yaml:"forward" json:"forward"`
	Strike         float64 `yaml:"strike" json:"strike"`
	Volatility     float64 `yaml:"volatility" json:"volatility"`
	Maturity       float64 `yaml:"maturity" json:"maturity"`
	PeriodLength   float64 `yaml:"period_length" json:"period_length"`
	DiscountFactor float64 `yaml:"discount_factor" json:"discount_factor"`
	Nominal        float64 `yaml:"nominal" json:"nominal"`
}

func DefaultOption() Option {
	return Option{
		Volatility:     0.05,
		PeriodLength:   1,
		DiscountFactor: 1,
		Nominal:        1,
	}
}

func (o Option) validate() error {
	switch {
	case o.Volatility < 0 || math.IsNaN(o.Volatility):
		return fmt.Errorf("%w: volatility must be non-negative, got %g", ErrInvalidOption, o.Volatility)
	case o.Maturity < 0:
		return fmt.Errorf("%w: maturity must be non-negative, got %g", ErrInvalidOption, o.Maturity)
	case o.PeriodLength <= 0:
		return fmt.Errorf("%w: period length must be positive, got %g", ErrInvalidOption, o.PeriodLength)
	}
	return nil
}

func (o Option) scale() float64 {
	return o.Nominal * o.PeriodLength * o.DiscountFactor
}

// stdDev is the total volatility over the life of the option.
func (o Option) stdDev() float64 {
	return o.Volatility * math.Sqrt(o.Maturity)
}

// BachelierCall prices a call under the normal model.
func BachelierCall(o Option) (float64, error) {
	if err := o.validate(); err != nil {
		return 0, err
	}

	sd := o.stdDev()
	if sd == 0 {
		return o.scale() * math.Max(o.Forward-o.Strike, 0), nil
	}

	d := (o.Forward - o.Strike) / sd
	value := (o.Forward-o.Strike)*distuv.UnitNormal.CDF(d) + sd*distuv.UnitNormal.Prob(d)

	return o.scale() * value, nil
}

// BlackCall prices a call under the lognormal model (Black-76 on a forward).
func BlackCall(o Option) (float64, error) {
	if err := o.validate(); err != nil {
		return 0, err
	}
	if o.Strike <= 0 {
		// always exercised
		return o.scale() * (o.Forward - o.Strike), nil
	}
	if o.Forward <= 0 {
		return 0, fmt.Errorf("%w: forward must be positive, got %g", ErrInvalidOption, o.Forward)
	}

	sd := o.stdDev()
	if sd == 0 {
		return o.scale() * math.Max(o.Forward-o.Strike, 0), nil
	}

	d1, d2 := blackD(o.Forward, o.Strike, sd)
	value := o.Forward*distuv.UnitNormal.CDF(d1) - o.Strike*distuv.UnitNormal.CDF(d2)

	return o.scale() * value, nil
}

// BlackVega is the derivative of BlackCall with respect to the volatility.
func BlackVega(o Option) (float64, error) {
	if err := o.validate(); err != nil {
		return 0, err
	}
	if o.Strike <= 0 || o.Maturity == 0 {
		return 0, nil
	}
	if o.Forward <= 0 {
		return 0, fmt.Errorf("%w: forward must be positive, got %g", ErrInvalidOption, o.Forward)
	}

	sd := o.stdDev()
	if sd == 0 {
		return 0, nil
	}

	d1, _ := blackD(o.Forward, o.Strike, sd)
	return o.scale() * o.Forward * distuv.UnitNormal.Prob(d1) * math.Sqrt(o.Maturity), nil
}

// BlackDigitalCaplet prices a cash-or-nothing caplet paying Nominal times
// PeriodLength when the forward fixes above the strike.
func BlackDigitalCaplet(o Option) (float64, error) {
	if err := o.validate(); err != nil {
		return 0, err
	}
	if o.Strike <= 0 {
		return o.scale(), nil
	}
	if o.Forward <= 0 {
		return 0, fmt.Errorf("%w: forward must be positive, got %g", ErrInvalidOption, o.Forward)
	}

	sd := o.stdDev()
	if sd == 0 {
		if o.Forward > o.Strike {
			return o.scale(), nil
		}
		return 0, nil
	}

	_, d2 := blackD(o.Forward, o.Strike, sd)
	return o.scale() * distuv.UnitNormal.CDF(d2), nil
}

// BlackSwaption prices a payer swaption starting at o.Maturity and ending at
// end, with one discount factor per fixed period. A single discount factor is
// used for every period.
func BlackSwaption(o Option, end float64, discountFactors []float64) (float64, error) {
	if err := o.validate(); err != nil {
		return 0, err
	}

	annuity, err := SwapAnnuity(o.Maturity, end, o.PeriodLength, discountFactors)
	if err != nil {
		return 0, err
	}

	o.DiscountFactor = annuity
	o.PeriodLength = 1
	return BlackCall(o)
}

// SwapAnnuity sums periodLength * df over the fixed periods in [start, end].
func SwapAnnuity(start, end, periodLength float64, discountFactors []float64) (float64, error) {
	if periodLength <= 0 {
		return 0, fmt.Errorf("%w: period length must be positive, got %g", ErrInvalidSchedule, periodLength)
	}

	raw := (end - start) / periodLength
	periods := math.Round(raw)
	if periods < 1 || math.Abs(raw-periods) > 1e-9 {
		return 0, fmt.Errorf("%w: %g periods between %g and %g is not a positive integer", ErrInvalidSchedule, raw, start, end)
	}
	n := int(periods)

	dfs := discountFactors
	switch {
	case len(dfs) == 0:
		return 0, fmt.Errorf("%w: no discount factors", ErrInvalidSchedule)
	case len(dfs) == 1 && n > 1:
		dfs = make([]float64, n)
		for i := range dfs {
			dfs[i] = discountFactors[0]
		}
	case len(dfs) != n:
		return 0, fmt.Errorf("%w: %d discount factors for %d periods", ErrInvalidSchedule, len(dfs), n)
	}

	annuity := 0.0
	for _, df := range dfs {
		annuity += periodLength * df
	}
	return annuity, nil
}

func blackD(forward, strike, sd float64) (d1, d2 float64) {
	d1 = (math.Log(forward/strike) + 0.5*sd*sd) / sd
	d2 = d1 - sd
	return d1, d2
}
