package params_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/orbprop/internal/params"
)

var _ = Describe("Driver", func() {
	var (
		epoch time.Time
		d     *params.Driver
	)

	BeforeEach(func() {
		epoch = time.Date(2010, 3, 1, 0, 0, 0, 0, time.UTC)
		d = params.MustDriver("drag coefficient", 2.2, 1, 0, 10)
	})

	It("starts unselected at the reference value", func() {
		Expect(d.Name()).To(Equal("drag coefficient"))
		Expect(d.IsSelected()).To(BeFalse())
		Expect(d.Value(epoch)).To(Equal(2.2))
		Expect(d.Spans()).To(Equal(1))
		Expect(d.SpanNames()).To(Equal([]string{"Spandrag coefficient0"}))
	})

	It("rejects invalid definitions", func() {
		_, err := params.NewDriver("", 1, 1, 0, 2)
		Expect(err).To(HaveOccurred())
		_, err = params.NewDriver("x", 1, 0, 0, 2)
		Expect(err).To(HaveOccurred())
		_, err = params.NewDriver("x", 1, 1, 3, 2)
		Expect(err).To(HaveOccurred())
	})

	It("clamps values to its bounds", func() {
		d.SetValue(12)
		Expect(d.Value(epoch)).To(Equal(10.0))
		d.SetValue(-1)
		Expect(d.Value(epoch)).To(Equal(0.0))
	})

	It("maps normalized values through reference and scale", func() {
		s := params.MustDriver("thrust", 10, 0.5, math.Inf(-1), math.Inf(1))
		s.SetNormalizedValue(2)
		Expect(s.Value(epoch)).To(Equal(11.0))
		Expect(s.NormalizedValue(epoch)).To(BeNumerically("~", 2, 1e-15))
	})

	Context("with time spans", func() {
		BeforeEach(func() {
			Expect(d.AddSpans(epoch, epoch.Add(3*time.Hour), time.Hour)).To(Succeed())
		})

		It("names spans in chronological order", func() {
			Expect(d.Spans()).To(Equal(3))
			Expect(d.SpanNames()).To(Equal([]string{
				"Spandrag coefficient0",
				"Spandrag coefficient1",
				"Spandrag coefficient2",
			}))
			Expect(d.SpanStarts()).To(Equal([]time.Time{epoch.Add(time.Hour), epoch.Add(2 * time.Hour)}))
		})

		It("resolves the span holding a date", func() {
			Expect(d.SpanNameAt(epoch.Add(-time.Hour))).To(Equal("Spandrag coefficient0"))
			Expect(d.SpanNameAt(epoch.Add(time.Hour))).To(Equal("Spandrag coefficient1"))
			Expect(d.SpanNameAt(epoch.Add(90 * time.Minute))).To(Equal("Spandrag coefficient1"))
			Expect(d.SpanNameAt(epoch.Add(48 * time.Hour))).To(Equal("Spandrag coefficient2"))
		})

		It("sets one span at a time", func() {
			d.SetValueAt(3, epoch.Add(90*time.Minute))
			Expect(d.Value(epoch)).To(Equal(2.2))
			Expect(d.Value(epoch.Add(time.Hour))).To(Equal(3.0))
			Expect(d.Value(epoch.Add(2 * time.Hour))).To(Equal(2.2))
		})

		It("does not duplicate existing transitions", func() {
			Expect(d.AddSpans(epoch, epoch.Add(2*time.Hour), time.Hour)).To(Succeed())
			Expect(d.Spans()).To(Equal(3))
		})

		It("rejects empty ranges and steps", func() {
			Expect(d.AddSpans(epoch, epoch, time.Hour)).NotTo(Succeed())
			Expect(d.AddSpans(epoch, epoch.Add(time.Hour), 0)).NotTo(Succeed())
		})
	})

	It("notifies observers with the previous value", func() {
		var (
			previous []float64
			dates    []time.Time
		)
		d.AddObserver(params.ObserverFunc(func(prev float64, drv *params.Driver, date time.Time) {
			Expect(drv).To(BeIdenticalTo(d))
			previous = append(previous, prev)
			dates = append(dates, date)
		}))
		d.SetValue(3)
		d.SetValueAt(4, epoch)
		Expect(previous).To(Equal([]float64{2.2, 3}))
		Expect(dates[0].IsZero()).To(BeTrue())
		Expect(dates[1]).To(Equal(epoch))
	})

	It("toggles selection", func() {
		d.SetSelected(true)
		Expect(d.IsSelected()).To(BeTrue())
	})
})
