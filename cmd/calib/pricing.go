package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/calib/internal/pricing"
	"github.com/san-kum/calib/internal/trinomial"
)

var (
	option       = pricing.DefaultOption()
	swapEnd      float64
	swapDFs      []float64
	treeCfg      = trinomial.Config{LastDate: 5, Volatility: 0.001, StepsPerYear: 36}
	treeTenors   []float64
	treeRates    []float64
	bondCoupon   float64
	bondFace     float64
	callDates    []float64
	callStrike   float64
	defaultCurve = []trinomial.CurvePoint{
		{Tenor: 1, Rate: 0.03}, {Tenor: 2, Rate: 0.04}, {Tenor: 3, Rate: 0.04},
		{Tenor: 4, Rate: 0.05}, {Tenor: 5, Rate: 0.06}, {Tenor: 6, Rate: 0.07},
	}
)

func newPriceCmd() *cobra.Command {
	priceCmd := &cobra.Command{
		Use:   "price [black|bachelier|digital|vega|swaption]",
		Short: "price a single option in closed form",
		Args:  cobra.ExactArgs(1),
		RunE:  priceOption,
	}
	f := priceCmd.Flags()
	f.Float64Var(&option.Forward, "forward", 1.0, "forward rate or price")
	f.Float64Var(&option.Strike, "strike", 0.9, "strike")
	f.Float64Var(&option.Volatility, "vol", 0.7, "volatility")
	f.Float64Var(&option.Maturity, "maturity", 0.5, "option maturity in years")
	f.Float64Var(&option.PeriodLength, "period", 1.0, "accrual period length")
	f.Float64Var(&option.DiscountFactor, "df", 0.95, "discount factor")
	f.Float64Var(&option.Nominal, "nominal", 1000, "nominal")
	f.Float64Var(&swapEnd, "end", 3.5, "swaption swap end date")
	f.Float64SliceVar(&swapDFs, "dfs", []float64{0.95, 0.9, 0.85}, "swaption discount factors per period")
	return priceCmd
}

func priceOption(cmd *cobra.Command, args []string) error {
	var (
		value float64
		err   error
	)

	switch args[0] {
	case "black":
		value, err = pricing.BlackCall(option)
	case "bachelier":
		value, err = pricing.BachelierCall(option)
	case "digital":
		value, err = pricing.BlackDigitalCaplet(option)
	case "vega":
		value, err = pricing.BlackVega(option)
	case "swaption":
		value, err = pricing.BlackSwaption(option, swapEnd, swapDFs)
	default:
		return fmt.Errorf("unknown pricer: %s", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s  F=%g K=%g σ=%g T=%g  %.10g\n",
		args[0], option.Forward, option.Strike, option.Volatility, option.Maturity, value)
	return nil
}

func newTreeCmd() *cobra.Command {
	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "fit a short-rate tree to a zero curve and price bonds",
		RunE:  priceTree,
	}
	f := treeCmd.Flags()
	f.Float64Var(&treeCfg.LastDate, "last", treeCfg.LastDate, "tree horizon in years")
	f.Float64Var(&treeCfg.Volatility, "vol", treeCfg.Volatility, "short rate volatility")
	f.IntVar(&treeCfg.StepsPerYear, "steps", treeCfg.StepsPerYear, "steps per year")
	f.Float64Var(&treeCfg.MeanReversion, "a", treeCfg.MeanReversion, "mean reversion (0 for ho-lee)")
	f.Float64SliceVar(&treeTenors, "tenors", nil, "zero curve tenors")
	f.Float64SliceVar(&treeRates, "rates", nil, "zero curve rates")
	f.Float64Var(&bondCoupon, "coupon", 0, "annual coupon; prices a bullet bond to the horizon when set")
	f.Float64Var(&bondFace, "face", 100, "bond face value")
	f.Float64SliceVar(&callDates, "call", nil, "call dates")
	f.Float64Var(&callStrike, "call-strike", 100, "call price")
	return treeCmd
}

func zeroCurve() (*trinomial.ZeroCurve, error) {
	if len(treeTenors) == 0 && len(treeRates) == 0 {
		return trinomial.NewZeroCurve(defaultCurve)
	}
	if len(treeTenors) != len(treeRates) {
		return nil, fmt.Errorf("%d tenors for %d rates", len(treeTenors), len(treeRates))
	}
	points := make([]trinomial.CurvePoint, len(treeTenors))
	for i := range points {
		points[i] = trinomial.CurvePoint{Tenor: treeTenors[i], Rate: treeRates[i]}
	}
	return trinomial.NewZeroCurve(points)
}

func priceTree(cmd *cobra.Command, args []string) error {
	curve, err := zeroCurve()
	if err != nil {
		return err
	}
	tree, err := trinomial.Build(curve, treeCfg)
	if err != nil {
		return err
	}

	fmt.Printf("%d steps of %.4fy, max node %d\n\n", tree.Steps(), tree.Dt(), tree.MaxNode())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATURITY\tTREE\tCURVE\tDIFF")
	for t := 1.0; t <= tree.Horizon()+1e-9; t++ {
		p, err := tree.ZeroBondPrice(t)
		if err != nil {
			return err
		}
		want := curve.DiscountFactor(t)
		fmt.Fprintf(w, "%g\t%.10f\t%.10f\t%.2e\n", t, p, want, math.Abs(p-want))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if bondCoupon == 0 {
		return nil
	}

	var cashflows []trinomial.Cashflow
	for t := 1.0; t <= tree.Horizon()+1e-9; t++ {
		cashflows = append(cashflows, trinomial.Cashflow{Time: t, Amount: bondCoupon})
	}
	if len(cashflows) == 0 {
		return fmt.Errorf("horizon %g shorter than one coupon period", tree.Horizon())
	}
	cashflows[len(cashflows)-1].Amount += bondFace

	straight, err := tree.BondPrice(cashflows)
	if err != nil {
		return err
	}
	fmt.Printf("\nbond coupon %g to %gy: %.6f\n", bondCoupon, cashflows[len(cashflows)-1].Time, straight)

	if len(callDates) > 0 {
		calls := make([]trinomial.Call, len(callDates))
		for i, d := range callDates {
			calls[i] = trinomial.Call{Time: d, Strike: callStrike}
		}
		callable, err := tree.BondPrice(cashflows, calls...)
		if err != nil {
			return err
		}
		fmt.Printf("callable at %v for %g: %.6f (call value %.6f)\n", callDates, callStrike, callable, straight-callable)
	}
	return nil
}
