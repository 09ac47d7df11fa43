package trinomial

import (
	"fmt"
	"math"
	"sort"
)

// CurvePoint is a continuously compounded zero rate at a tenor in years.
type CurvePoint struct {
	Tenor float64 `yaml:"tenor" json:"tenor"`
	Rate  float64 `yaml:"rate" json:"rate"`
}

// ZeroCurve interpolates zero rates linearly and extrapolates them flat.
type ZeroCurve struct {
	points []CurvePoint
}

func NewZeroCurve(points []CurvePoint) (*ZeroCurve, error) {
	if len(points) == 0 {
		return nil, ErrEmptyCurve
	}

	sorted := make([]CurvePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tenor < sorted[j].Tenor })

	for i, p := range sorted {
		if p.Tenor <= 0 || math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) {
			return nil, fmt.Errorf("%w: point %d (tenor=%g, rate=%g)", ErrInvalidCurve, i, p.Tenor, p.Rate)
		}
		if i > 0 && p.Tenor == sorted[i-1].Tenor {
			return nil, fmt.Errorf("%w: duplicate tenor %g", ErrInvalidCurve, p.Tenor)
		}
	}

	return &ZeroCurve{points: sorted}, nil
}

func (c *ZeroCurve) Points() []CurvePoint {
	out := make([]CurvePoint, len(c.points))
	copy(out, c.points)
	return out
}

func (c *ZeroCurve) Rate(t float64) float64 {
	pts := c.points
	if t <= pts[0].Tenor {
		return pts[0].Rate
	}
	last := pts[len(pts)-1]
	if t >= last.Tenor {
		return last.Rate
	}

	i := sort.Search(len(pts), func(i int) bool { return pts[i].Tenor >= t })
	lo, hi := pts[i-1], pts[i]
	w := (t - lo.Tenor) / (hi.Tenor - lo.Tenor)
	return lo.Rate + w*(hi.Rate-lo.Rate)
}

func (c *ZeroCurve) DiscountFactor(t float64) float64 {
	if t <= 0 {
		return 1
	}
	return math.Exp(-c.Rate(t) * t)
}
