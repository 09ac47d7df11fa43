package experiment

import (
	"fmt"
	"math"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/config"
	"github.com/san-kum/calib/internal/pricing"
)

// Quadratic is the demo surface [x0²−x1², x1², x2²].
func Quadratic() calib.Model {
	return calib.ModelFunc(func(p calib.ParameterVector) []float64 {
		x := p.ValueSlice()
		return []float64{x[0]*x[0] - x[1]*x[1], x[1] * x[1], x[2] * x[2]}
	})
}

// Linear returns its parameters.
func Linear() calib.Model {
	return calib.ModelFunc(func(p calib.ParameterVector) []float64 {
		return p.ValueSlice()
	})
}

// Pricer maps an option onto a price.
type Pricer func(pricing.Option) (float64, error)

// Strip prices one option per parameter, the parameter being that option's
// volatility. A cumulative strip sums the first i+1 prices into output i, the
// way a cap of increasing length sums its caplets.
type Strip struct {
	Options    []pricing.Option
	Price      Pricer
	Cumulative bool
}

// NewStrip builds the options of a vol strip from the market section.
// Missing maturities default to whole periods.
func NewStrip(m config.MarketConfig, n int, price Pricer, cumulative bool) (*Strip, error) {
	if n == 0 {
		return nil, fmt.Errorf("%w: empty strip", calib.ErrEmptyParameters)
	}
	if len(m.Maturities) > 0 && len(m.Maturities) != n {
		return nil, fmt.Errorf("%w: %d maturities for %d vols", calib.ErrDimensionMismatch, len(m.Maturities), n)
	}

	period := m.PeriodLength
	if period == 0 {
		period = config.DefaultPeriodLength
	}

	s := &Strip{Price: price, Cumulative: cumulative, Options: make([]pricing.Option, n)}
	for i := range s.Options {
		maturity := float64(i+1) * period
		if len(m.Maturities) > 0 {
			maturity = m.Maturities[i]
		}
		df, ok := m.DiscountFactor(i)
		if !ok {
			return nil, fmt.Errorf("%w: %d discount factors for %d vols", calib.ErrDimensionMismatch, len(m.DiscountFactors), n)
		}
		s.Options[i] = pricing.Option{
			Forward:        m.Forward,
			Strike:         m.Strike,
			Maturity:       maturity,
			PeriodLength:   period,
			DiscountFactor: df,
			Nominal:        m.Nominal,
		}
	}
	return s, nil
}

// Evaluate prices the strip. An option the pricer rejects comes back as NaN.
func (s *Strip) Evaluate(p calib.ParameterVector) []float64 {
	out := make([]float64, len(s.Options))
	total := 0.0
	for i, o := range s.Options {
		if i < len(p) {
			o.Volatility = p[i].Value
		}
		v, err := s.Price(o)
		if err != nil {
			v = math.NaN()
		}
		if s.Cumulative {
			total += v
			v = total
		}
		out[i] = v
	}
	return out
}
