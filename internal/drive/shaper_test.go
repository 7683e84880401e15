package drive

import (
	"io"
	"testing"

	"github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func testShaper(limits Limits) *Shaper {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewShaper(limits, log)
}

func defaultLimits() Limits {
	return Limits{MaxLinear: 2.0, MaxAngular: 1.57, MaxLinearAccel: 10, MaxAngularAccel: 15}
}

func TestShapeAccelerationLimited(t *testing.T) {
	g := gomega.NewWithT(t)
	s := testShaper(defaultLimits())

	// From rest, one 10 ms tick at 10 m/s^2 reaches at most 0.1 m/s.
	v, _ := s.Shape(5.0, 0, 0, 0, 0.01)
	g.Expect(v).To(gomega.BeNumerically("~", 0.1, 1e-12))

	// A small step inside the boundary passes through untouched.
	v, _ = s.Shape(0.05, 0, 0, 0, 0.01)
	g.Expect(v).To(gomega.Equal(0.05))

	// Same in the negative direction.
	v, _ = s.Shape(-5.0, 0, 0, 0, 0.01)
	g.Expect(v).To(gomega.BeNumerically("~", -0.1, 1e-12))
}

func TestShapeMagnitudeClamped(t *testing.T) {
	g := gomega.NewWithT(t)
	s := testShaper(defaultLimits())

	// dt large enough that the acceleration boundary is not the binding
	// constraint; the magnitude clamp is.
	v, w := s.Shape(5.0, 0, 0, 0, 10.0)
	g.Expect(v).To(gomega.Equal(2.0))
	g.Expect(w).To(gomega.Equal(0.0))

	v, _ = s.Shape(-5.0, 0, 0, 0, 10.0)
	g.Expect(v).To(gomega.Equal(-2.0))

	_, w = s.Shape(0, 3.0, 0, 0, 10.0)
	g.Expect(w).To(gomega.Equal(1.57))
}

func TestShapeDecelerationPaced(t *testing.T) {
	g := gomega.NewWithT(t)
	s := testShaper(defaultLimits())

	// Braking from 2.0 toward 0 is paced by the same limit.
	v, _ := s.Shape(0.0, 0, 2.0, 0, 0.01)
	g.Expect(v).To(gomega.BeNumerically("~", 1.9, 1e-12))

	// A gentle slowdown inside the boundary is untouched.
	v, _ = s.Shape(1.95, 0, 2.0, 0, 0.01)
	g.Expect(v).To(gomega.Equal(1.95))
}

func TestShapeZeroDeltaHoldsCommand(t *testing.T) {
	g := gomega.NewWithT(t)
	s := testShaper(defaultLimits())

	v, w := s.Shape(1.0, 0.5, 1.0, 0.5, 0.01)
	g.Expect(v).To(gomega.Equal(1.0))
	g.Expect(w).To(gomega.Equal(0.5))
}

func TestShapeAxesIndependent(t *testing.T) {
	g := gomega.NewWithT(t)
	s := testShaper(defaultLimits())

	// Linear axis saturates while the angular axis passes through.
	v, w := s.Shape(5.0, 0.1, 0, 0, 0.01)
	g.Expect(v).To(gomega.BeNumerically("~", 0.1, 1e-12))
	g.Expect(w).To(gomega.Equal(0.1))
}
