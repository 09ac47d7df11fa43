// Package pricing provides closed-form option formulas used as calibration
// targets: Bachelier (normal) and Black (lognormal) calls on a forward, the
// Black digital caplet and the Black payer swaption.
//
// All prices are scaled by Nominal, PeriodLength and DiscountFactor of the
// [Option]. Invalid inputs are reported as errors so that callers can reject
// them before handing a pricer to an optimizer.
package pricing
