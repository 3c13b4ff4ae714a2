package propagation_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbprop/internal/attitude"
	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/propagation"
)

var epoch = time.Date(2005, 7, 1, 12, 0, 0, 0, time.UTC)

func leoState() propagation.SpacecraftState {
	o, err := orbit.NewKeplerian(7.2e6, 0.01, 1.0, 0.5, 0.2, 0.1, orbit.True, epoch, orbit.EME2000, orbit.EarthMu)
	Expect(err).NotTo(HaveOccurred())
	return propagation.NewState(o, attitude.NewInertial().Attitude(o), 1500)
}

var _ = Describe("SpacecraftState", func() {
	It("never mutates on functional updates", func() {
		s := leoState()
		s2 := s.WithAdditionalState("battery", 1, 2)
		s3 := s2.WithAdditionalState("battery", 3, 4).WithMass(900)

		Expect(s.HasAdditionalState("battery")).To(BeFalse())
		v, err := s2.AdditionalState("battery")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float64{1, 2}))
		Expect(s2.Mass()).To(Equal(1500.0))
		v, _ = s3.AdditionalState("battery")
		Expect(v).To(Equal([]float64{3, 4}))
		Expect(s3.Mass()).To(Equal(900.0))
	})

	It("copies additional values in and out", func() {
		in := []float64{1, 2, 3}
		s := leoState().WithAdditionalState("x", in...)
		in[0] = 42
		out, _ := s.AdditionalState("x")
		Expect(out[0]).To(Equal(1.0))
		out[1] = 42
		again, _ := s.AdditionalState("x")
		Expect(again[1]).To(Equal(2.0))
	})

	It("reports unknown additional states with a structured error", func() {
		_, err := leoState().AdditionalState("missing")
		Expect(errors.Is(err, propagation.ErrUnknownAdditionalState)).To(BeTrue())
		var perr *propagation.Error
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Args).To(Equal([]any{"missing"}))
		Expect(err.Error()).To(ContainSubstring(`"missing"`))
	})

	It("lists names in lexical order", func() {
		s := leoState().WithAdditionalState("b", 1).WithAdditionalState("a", 2).
			WithAdditionalStateDerivative("b", 0.5)
		Expect(s.AdditionalStates()).To(Equal([]string{"a", "b"}))
		Expect(s.AdditionalStateDerivatives()).To(Equal([]string{"b"}))
		Expect(s.HasAdditionalStateDerivative("a")).To(BeFalse())
	})

	It("extrapolates linearly the states having a derivative", func() {
		s := leoState().WithAdditionalState("lin", 1, 2).WithAdditionalStateDerivative("lin", 0.1, -0.2).
			WithAdditionalState("const", 7)
		shifted := s.ShiftedBy(10 * time.Second)
		Expect(shifted.Date()).To(Equal(epoch.Add(10 * time.Second)))
		v, _ := shifted.AdditionalState("lin")
		Expect(v[0]).To(BeNumerically("~", 2, 1e-14))
		Expect(v[1]).To(BeNumerically("~", 0, 1e-14))
		c, _ := shifted.AdditionalState("const")
		Expect(c).To(Equal([]float64{7}))
	})

	It("detects invalid states", func() {
		Expect(leoState().IsValid()).To(BeTrue())
		Expect(leoState().WithMass(0).IsValid()).To(BeFalse())
		Expect(propagation.SpacecraftState{}.IsZero()).To(BeTrue())
	})
})

var _ = Describe("StateMapper", func() {
	DescribeTable("round trips through element arrays",
		func(t orbit.Type, angle orbit.PositionAngle) {
			s := leoState()
			m := propagation.NewStateMapper(s, t, angle, nil)
			arr := m.ToArray(s)
			Expect(arr[6]).To(Equal(1500.0))
			back, err := m.FromArray(arr, s.Date())
			Expect(err).NotTo(HaveOccurred())
			dp := r3.Norm(r3.Sub(back.Orbit().Position, s.Orbit().Position))
			Expect(dp).To(BeNumerically("<", 1e-6))
			Expect(back.Mass()).To(Equal(s.Mass()))
		},
		Entry("cartesian", orbit.Cartesian, orbit.True),
		Entry("keplerian mean", orbit.Keplerian, orbit.Mean),
		Entry("circular eccentric", orbit.Circular, orbit.Eccentric),
		Entry("equinoctial true", orbit.Equinoctial, orbit.True),
	)

	It("maps the Cartesian primary block", func() {
		s := leoState()
		y := make([]float64, propagation.PrimaryDim)
		propagation.PrimaryArray(s, y)
		m := propagation.NewStateMapper(s, orbit.Keplerian, orbit.Mean, attitude.LOF{Kind: attitude.TNW})
		back := m.FromPrimary(y, s.Date())
		Expect(back.Orbit().Position).To(Equal(s.Orbit().Position))
		Expect(back.Orbit().Velocity).To(Equal(s.Orbit().Velocity))
		Expect(back.Mass()).To(Equal(s.Mass()))
		x := back.Attitude().ToInertial(r3.Vec{X: 1})
		Expect(r3.Norm(r3.Sub(x, r3.Unit(s.Orbit().Velocity)))).To(BeNumerically("<", 1e-14))
	})

	It("rejects arrays that do not describe an orbit", func() {
		s := leoState()
		m := propagation.NewStateMapper(s, orbit.Keplerian, orbit.Mean, nil)
		arr := m.ToArray(s)
		arr[0] = -1
		_, err := m.FromArray(arr, s.Date())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Error", func() {
	It("matches sentinels by kind only", func() {
		err := propagation.NewError(propagation.NameConflict, "stm")
		Expect(errors.Is(err, propagation.ErrNameConflict)).To(BeTrue())
		Expect(errors.Is(err, propagation.ErrDimensionMismatch)).To(BeFalse())
		Expect(err.Error()).To(Equal(`propagation: name "stm" is already used`))
	})

	It("still formats with unexpected arguments", func() {
		err := propagation.NewError(propagation.NonResettable, "extra")
		Expect(err.Error()).To(ContainSubstring("non-resettable"))
	})
})

type constProvider struct {
	name  string
	needs string
	value float64
}

func (p constProvider) Name() string { return p.name }

func (p constProvider) Init(propagation.SpacecraftState, time.Time) error { return nil }

func (p constProvider) Yields(s propagation.SpacecraftState) bool {
	return p.needs != "" && !s.HasAdditionalState(p.needs)
}

func (p constProvider) AdditionalState(s propagation.SpacecraftState) ([]float64, error) {
	if p.needs == "" {
		return []float64{p.value}, nil
	}
	v, err := s.AdditionalState(p.needs)
	if err != nil {
		return nil, err
	}
	return []float64{v[0] + p.value}, nil
}

var _ = Describe("ResolveProviders", func() {
	It("evaluates providers after the ones they depend on", func() {
		s, err := propagation.ResolveProviders(leoState(), []propagation.AdditionalStateProvider{
			constProvider{name: "c", needs: "b", value: 1},
			constProvider{name: "b", needs: "a", value: 1},
			constProvider{name: "a", value: 1},
		})
		Expect(err).NotTo(HaveOccurred())
		v, _ := s.AdditionalState("c")
		Expect(v).To(Equal([]float64{3}))
	})

	It("reports cycles", func() {
		_, err := propagation.ResolveProviders(leoState(), []propagation.AdditionalStateProvider{
			constProvider{name: "a", needs: "b"},
			constProvider{name: "b", needs: "a"},
		})
		Expect(errors.Is(err, propagation.ErrCyclicDependency)).To(BeTrue())
	})
})

var _ = Describe("DateDetector", func() {
	It("alternates sign at each date", func() {
		dates := []time.Time{epoch.Add(200 * time.Second), epoch.Add(100 * time.Second)}
		d, err := propagation.NewDateDetector(dates)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Dates()[0]).To(Equal(epoch.Add(100 * time.Second)))
		Expect(d.MaxCheck()).To(Equal(50.0))

		g := func(dt float64) float64 {
			s := leoState()
			return d.G(s.WithOrbit(s.Orbit().ShiftedBy(time.Duration(dt * float64(time.Second)))))
		}
		Expect(g(50)).To(BeNumerically("~", -50, 1e-9))
		Expect(g(100)).To(Equal(0.0))
		Expect(g(120)).To(BeNumerically("~", 20, 1e-9))
		Expect(g(150)).To(BeNumerically("~", 50, 1e-9))
		Expect(g(180)).To(BeNumerically("~", 20, 1e-9))
		Expect(g(250)).To(BeNumerically("~", -50, 1e-9))
		Expect(d.Handler().EventOccurred(leoState(), d, true)).To(Equal(dynamo.Stop))
	})

	It("rejects empty and duplicate dates", func() {
		_, err := propagation.NewDateDetector(nil)
		Expect(errors.Is(err, propagation.ErrNullArgument)).To(BeTrue())
		_, err = propagation.NewDateDetector([]time.Time{epoch, epoch})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("RecordAndContinue", func() {
	It("records events and continues", func() {
		r := &propagation.RecordAndContinue{}
		Expect(r.EventOccurred(leoState(), nil, false)).To(Equal(dynamo.Continue))
		Expect(r.Events()).To(HaveLen(1))
		Expect(r.Events()[0].Increasing).To(BeFalse())
		r.Clear()
		Expect(r.Events()).To(BeEmpty())
	})
})
