package trinomial

import "errors"

var (
	ErrEmptyCurve      = errors.New("trinomial: empty zero curve")
	ErrInvalidCurve    = errors.New("trinomial: invalid zero curve")
	ErrInvalidTree     = errors.New("trinomial: invalid tree config")
	ErrBeyondHorizon   = errors.New("trinomial: cashflow beyond tree horizon")
	ErrInvalidCashflow = errors.New("trinomial: invalid cashflow")
)
