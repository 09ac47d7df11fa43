package experiment

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/config"
	"github.com/san-kum/calib/internal/logging"
	"github.com/san-kum/calib/internal/pricing"
)

func run(reg *Registry, cfg *config.Config) *Outcome {
	exp := New(cfg, logging.NewTestLogger())
	Expect(exp.Setup(reg)).To(Succeed())
	out, err := exp.Run(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return out
}

var _ = Describe("Experiment", func() {
	var reg *Registry

	BeforeEach(func() {
		reg = NewRegistry()
	})

	Describe("Run", func() {
		Context("with the quadratic demo", func() {
			It("should drive x1² to 2 and x2² to 0", func() {
				out := run(reg, config.GetPreset("quadratic", "demo"))

				Expect(out.Err).NotTo(HaveOccurred())
				Expect(out.Result.Status).To(Equal(calib.Converged))
				Expect(out.Result.MSE).To(BeNumerically("<=", 1e-6))

				x := out.Result.Params.ValueSlice()
				Expect(x[1] * x[1]).To(BeNumerically("~", 2, 1e-3))
				Expect(x[2] * x[2]).To(BeNumerically("~", 0, 1e-3))
				Expect(x[0]*x[0] - x[1]*x[1]).To(BeNumerically("~", 0, 1e-3))
			})

			It("should record one trace step per iteration", func() {
				out := run(reg, config.GetPreset("quadratic", "demo"))

				Expect(out.Trace.Len()).To(Equal(out.Result.Iterations))
				series := out.Trace.MSESeries()
				for i := 1; i < len(series); i++ {
					Expect(series[i]).To(BeNumerically("<=", series[i-1]))
				}
			})

			It("should reach the same solution when damping escalates", func() {
				reset := run(reg, config.GetPreset("quadratic", "demo"))
				escalate := run(reg, config.GetPreset("quadratic", "escalate"))

				Expect(escalate.OptimizerConfig.Policy).To(Equal(calib.Escalate))
				Expect(escalate.Result.Status).To(Equal(calib.Converged))
				Expect(escalate.Result.Params).To(Equal(reset.Result.Params))
			})
		})

		Context("with the linear model", func() {
			It("should converge in single-digit iterations", func() {
				out := run(reg, config.GetPreset("linear", "exact"))

				Expect(out.Result.Converged()).To(BeTrue())
				Expect(out.Result.Iterations).To(BeNumerically("<", 10))
				Expect(out.Result.Params.ValueSlice()).To(HaveLen(3))
				Expect(out.Metrics).To(HaveKey("mse_decades"))
			})
		})

		DescribeTable("vol strips recover the synthetic truth",
			func(model, preset string, tol float64) {
				cfg := config.GetPreset(model, preset)
				out := run(reg, cfg)

				Expect(out.Result.Status).To(Equal(calib.Converged))
				for i, v := range out.Result.Params.ValueSlice() {
					Expect(v).To(BeNumerically("~", cfg.SyntheticTruth[i], tol), "vol %d", i)
				}
			},
			Entry("black caplets", "caplet", "strip", 1e-4),
			Entry("flat black caplets", "caplet", "flat", 1e-4),
			Entry("black cap", "cap", "strip", 1e-4),
			Entry("normal caplets", "bachelier", "strip", 1e-5),
		)

		Context("when the model never improves", func() {
			BeforeEach(func() {
				reg.Register("offset", "x²+1", func(*config.Config) (calib.Model, error) {
					return calib.ModelFunc(func(p calib.ParameterVector) []float64 {
						x := p[0].Value
						return []float64{x*x + 1}
					}), nil
				})
			})

			It("should report the damping cap on the outcome", func() {
				cfg := config.DefaultConfig()
				cfg.Model = "offset"
				cfg.InitialGuess = calib.Values(0)
				cfg.Target = []float64{0}
				cfg.Optimizer.DampingPolicy = "escalate"

				out := run(reg, cfg)

				Expect(errors.Is(out.Err, calib.ErrDampingCapExceeded)).To(BeTrue())
				Expect(out.Result.Status).To(Equal(calib.DampingExceeded))
				Expect(out.Result.MSE).To(Equal(1.0))
				Expect(out.Trace.Accepted()).To(BeZero())
				Expect(out.Metrics).To(HaveKeyWithValue("acceptance_rate", 0.0))
				Expect(out.Metrics["peak_damping"]).To(BeNumerically(">", cfg.Optimizer.DampingCap))
			})
		})

		It("should return context errors", func() {
			exp := New(config.GetPreset("caplet", "strip"), logging.NewTestLogger())
			Expect(exp.Setup(reg)).To(Succeed())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := exp.Run(ctx)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())

			var cerr *calib.CalibrationError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.Iteration).To(BeZero())
		})

		It("should refuse to run before setup", func() {
			_, err := New(config.DefaultConfig(), logging.NewTestLogger()).Run(context.Background())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Strip", func() {
		It("should have a diagonal Jacobian matching Black vega", func() {
			cfg := config.GetPreset("caplet", "strip")
			model, err := reg.GetModel(cfg)
			Expect(err).NotTo(HaveOccurred())

			guess := calib.Values(cfg.SyntheticTruth...)
			jac := calib.Jacobian(model, guess, calib.DefaultEpsilon)

			strip := model.(*Strip)
			for i := range guess {
				o := strip.Options[i]
				o.Volatility = guess[i].Value
				vega, err := pricing.BlackVega(o)
				Expect(err).NotTo(HaveOccurred())

				for k := range guess {
					if k == i {
						Expect(jac.At(i, k)).To(BeNumerically("~", vega, 1e-3*vega))
					} else {
						Expect(jac.At(i, k)).To(BeZero())
					}
				}
			}
		})

		It("should have a lower-triangular Jacobian when cumulative", func() {
			cfg := config.GetPreset("cap", "strip")
			model, err := reg.GetModel(cfg)
			Expect(err).NotTo(HaveOccurred())

			jac := calib.Jacobian(model, calib.Values(cfg.SyntheticTruth...), calib.DefaultEpsilon)
			for i := 0; i < 5; i++ {
				for k := 0; k < 5; k++ {
					if k > i {
						Expect(jac.At(i, k)).To(BeZero())
					} else {
						Expect(jac.At(i, k)).To(BeNumerically(">", 0))
					}
				}
			}
		})

		It("should price rejected options as NaN", func() {
			strip, err := NewStrip(config.GetPreset("caplet", "strip").Market, 2, pricing.BlackCall, false)
			Expect(err).NotTo(HaveOccurred())

			out := strip.Evaluate(calib.Values(-0.1, 0.2))
			Expect(math.IsNaN(out[0])).To(BeTrue())
			Expect(out[1]).To(BeNumerically(">", 0))
		})
	})
})
