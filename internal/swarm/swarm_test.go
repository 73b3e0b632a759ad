package swarm_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/delay"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/swarm"
)

func smallConfig() swarm.Config {
	cfg := swarm.DefaultConfig()
	cfg.Size = 4
	return cfg
}

func build(cfg swarm.Config, seed int64) *swarm.Swarm {
	s, err := swarm.New(cfg, lattice.NewSource(seed))
	Expect(err).NotTo(HaveOccurred())
	return s
}

func liquidBits(s *swarm.Swarm, r swarm.Role) []uint64 {
	v := s.Grid(r).Liquid()
	out := make([]uint64, v.Len())
	for i := range out {
		out[i] = math.Float64bits(v.At(i))
	}
	return out
}

func inBundleBounds(p lens.Params, b lens.Bundle) {
	check := func(v float64, bd lens.Bounded) {
		ExpectWithOffset(1, v).To(BeNumerically(">=", bd.Min))
		ExpectWithOffset(1, v).To(BeNumerically("<=", bd.Max))
	}
	check(b.PathB, p.PathB)
	check(b.Damping, p.Damping)
	check(b.BiasGain, p.BiasGain)
	check(b.Forgiveness, p.Forgiveness)
	check(b.ForgivenessThreshold, p.Threshold)
	check(b.CrossTalkGain, p.CrossTalk)
	check(b.NoiseScale, p.Noise)
}

var _ = Describe("Swarm", func() {
	Describe("construction", func() {
		DescribeTable("rejects invalid configuration",
			func(mutate func(*swarm.Config)) {
				cfg := smallConfig()
				mutate(&cfg)
				_, err := swarm.New(cfg, lattice.NewSource(1))
				Expect(errors.Is(err, lattice.ErrInvalidConfig)).To(BeTrue(), "got %v", err)
			},
			Entry("four grids", func(c *swarm.Config) { c.Grids = 4 }),
			Entry("zero smoothing", func(c *swarm.Config) { c.MetricSmoothing = 0 }),
			Entry("negative latency", func(c *swarm.Config) { c.FeedbackLatency = -1 }),
			Entry("tiny lattice", func(c *swarm.Config) { c.Size = 1 }),
			Entry("negative coupling", func(c *swarm.Config) { c.Couplings.Echo.Cross = -1 }),
			Entry("bad bias decay", func(c *swarm.Config) { c.Bias.Decay = 1 }),
		)

		It("requires a random source", func() {
			_, err := swarm.New(smallConfig(), nil)
			Expect(err).To(HaveOccurred())
		})

		It("declares roles in stepping order", func() {
			Expect(build(smallConfig(), 1).Roles()).To(Equal([]swarm.Role{swarm.RoleCore, swarm.RoleEcho, swarm.RoleMemory}))

			cfg := smallConfig()
			cfg.Grids = 2
			s := build(cfg, 1)
			Expect(s.Roles()).To(Equal([]swarm.Role{swarm.RoleCore, swarm.RoleEcho}))
			Expect(s.Grid(swarm.RoleMemory)).To(BeNil())
			Expect(s.Step().Grids).To(HaveLen(2))
		})
	})

	Describe("determinism", func() {
		It("produces identical reports for identical seeds and injections", func() {
			a, b := build(smallConfig(), 7), build(smallConfig(), 7)
			for tick := 0; tick < 30; tick++ {
				if tick%5 == 0 {
					p := bias.Pulse{Center: lattice.Coord{X: tick, Y: 1, Z: 2}, Radius: 1.5, Strength: 0.8}
					a.Inject(p)
					b.Inject(p)
				}
				Expect(a.Step()).To(Equal(b.Step()))
			}
			for _, r := range a.Roles() {
				Expect(liquidBits(a, r)).To(Equal(liquidBits(b, r)))
			}
		})

		It("diverges for different seeds", func() {
			a, b := build(smallConfig(), 1), build(smallConfig(), 2)
			a.Step()
			b.Step()
			Expect(liquidBits(a, swarm.RoleCore)).NotTo(Equal(liquidBits(b, swarm.RoleCore)))
		})
	})

	Describe("bounds", func() {
		It("keeps every phase, bias cell and control output in range under random injection", func() {
			cfg := smallConfig()
			cfg.Phase.PlasticityProbability = 0.1
			s := build(cfg, 3)
			drive := lattice.NewSource(4)
			limit := cfg.Bias.MaxMagnitude

			for tick := 0; tick < 200; tick++ {
				if lattice.Bernoulli(drive, 0.3) {
					s.Inject(bias.Pulse{
						Center:   lattice.Coord{X: drive.Intn(8) - 2, Y: drive.Intn(4), Z: drive.Intn(4)},
						Radius:   drive.Float64() * 3,
						Strength: lattice.Signed(drive, 4),
					})
				}
				if tick%17 == 0 {
					f := lattice.NewField(s.Bias().Len())
					for i := range f {
						f[i] = lattice.Signed(drive, 1)
					}
					s.InjectField(f.View(), 0.5)
				}
				rep := s.Step()
				inBundleBounds(cfg.Lens, rep.Bundle)
				Expect(s.Validate()).To(Succeed())

				for _, r := range s.Roles() {
					g := s.Grid(r)
					for _, v := range []lattice.View{g.Plasma(), g.Liquid(), g.Solid()} {
						for i := 0; i < v.Len(); i++ {
							Expect(v.At(i)).To(And(BeNumerically(">=", 0), BeNumerically("<=", 1)))
						}
					}
				}
				bv := s.Bias()
				for i := 0; i < bv.Len(); i++ {
					Expect(math.Abs(bv.At(i))).To(BeNumerically("<=", limit))
				}
			}
		})
	})

	Describe("feedback latency", func() {
		It("feeds this tick's smoothed metrics when latency is zero", func() {
			cfg := smallConfig()
			cfg.FeedbackLatency = 0
			s := build(cfg, 5)
			for i := 0; i < 3; i++ {
				rep := s.Step()
				Expect(rep.Feedback).To(Equal(rep.Smoothed))
			}
		})

		It("aggregates the grid state left by the previous tick", func() {
			s := build(smallConfig(), 5)
			s.Step()
			want := 0.0
			for _, r := range s.Roles() {
				want += s.Grid(r).Metrics().Energy
			}
			want /= float64(len(s.Roles()))
			Expect(s.Step().Raw.Energy).To(BeNumerically("~", want, 1e-12))
		})

		It("delays the lens input by the configured number of ticks", func() {
			cfg := smallConfig()
			cfg.FeedbackLatency = 2
			s := build(cfg, 5)

			var smoothed []swarm.Metrics
			for i := 0; i < 6; i++ {
				rep := s.Step()
				smoothed = append(smoothed, rep.Smoothed)
				if i < 2 {
					Expect(rep.Feedback).To(Equal(cfg.Prior))
				} else {
					Expect(rep.Feedback).To(Equal(smoothed[i-2]))
				}
			}
		})

		It("smooths toward the raw aggregate from the prior", func() {
			cfg := smallConfig()
			cfg.MetricSmoothing = 0.5
			s := build(cfg, 5)
			rep := s.Step()
			want := cfg.Prior.Energy + 0.5*(rep.Raw.Energy-cfg.Prior.Energy)
			Expect(rep.Smoothed.Energy).To(BeNumerically("~", want, 1e-12))
		})
	})

	Describe("stepping order", func() {
		It("only changes grids stepped after the first when sequential", func() {
			snap := smallConfig()
			seq := smallConfig()
			seq.Sequential = true

			a, b := build(snap, 9), build(seq, 9)
			a.Step()
			b.Step()

			Expect(liquidBits(a, swarm.RoleCore)).To(Equal(liquidBits(b, swarm.RoleCore)))
			Expect(liquidBits(a, swarm.RoleEcho)).NotTo(Equal(liquidBits(b, swarm.RoleEcho)))
		})
	})

	Describe("delay source", func() {
		It("composes an empty echo on the first tick from the composite source", func() {
			rep := build(smallConfig(), 1).Step()
			Expect(rep.EchoEnergy).To(BeZero())
		})

		It("pushes core liquid before composing from the core source", func() {
			cfg := smallConfig()
			cfg.Delay.Source = delay.SourceCore
			rep := build(cfg, 1).Step()
			Expect(rep.EchoEnergy).To(BeNumerically(">", 0))
		})
	})

	Describe("injection and reset", func() {
		It("applies queued pulses once", func() {
			s := build(smallConfig(), 2)
			s.Inject(bias.Pulse{Center: lattice.Coord{X: 1, Y: 1, Z: 1}, Radius: 1, Strength: 1})
			rep := s.Step()
			Expect(rep.Pulses).To(Equal(1))
			Expect(rep.BiasEnergy).To(BeNumerically(">", 0))
			Expect(s.Step().Pulses).To(BeZero())
		})

		It("clears bias, echo and smoothing history", func() {
			s := build(smallConfig(), 2)
			s.Inject(bias.Pulse{Center: lattice.Coord{}, Radius: 2, Strength: 1})
			for i := 0; i < 4; i++ {
				s.Step()
			}
			s.Reset()
			Expect(s.Bias().L1()).To(BeZero())
			Expect(s.Echo().L1()).To(BeZero())

			rep := s.Step()
			Expect(rep.Feedback).To(Equal(s.Config().Prior))
			Expect(rep.Tick).To(Equal(4))
		})
	})

	Describe("lens weights", func() {
		It("follows the schedule until overridden", func() {
			cfg := smallConfig()
			sched := lens.DefaultSchedule()
			cfg.Lens.Schedule = &sched
			s := build(cfg, 1)

			first := lens.FromMap(sched.Presets[sched.Sequence[0]]).Normalize()
			Expect(s.Step().Weights).To(Equal(first))

			s.SetWeights(lens.Weights{Harmonic: 1})
			for i := 0; i < sched.Cadence+1; i++ {
				Expect(s.Step().Weights).To(Equal(lens.Weights{Harmonic: 1}))
			}
		})

		It("rejects invalid live parameters", func() {
			s := build(smallConfig(), 1)
			p := lens.DefaultParams()
			p.PathB.Max = 2
			Expect(s.SetLensParams(p)).NotTo(Succeed())

			ph := smallConfig().Phase
			ph.Alpha = -1
			Expect(s.SetPhaseParams(ph)).NotTo(Succeed())
		})
	})
})
