package drive

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"zlac-drive/internal/logutil"
)

// Limits bound the achievable robot velocity and acceleration. Acceleration
// magnitudes must be positive.
type Limits struct {
	MaxLinear       float64 // m/s
	MaxAngular      float64 // rad/s
	MaxLinearAccel  float64 // m/s^2
	MaxAngularAccel float64 // rad/s^2
}

// Shaper turns raw velocity commands into targets reachable within one
// control tick from the current estimated robot velocity.
type Shaper struct {
	limits   Limits
	log      logrus.FieldLogger
	throttle *logutil.Throttle
}

func NewShaper(limits Limits, log logrus.FieldLogger) *Shaper {
	return &Shaper{
		limits:   limits,
		log:      log,
		throttle: logutil.NewThrottle(time.Second),
	}
}

// Shape applies the acceleration limits and magnitude clamps to a raw
// command given the current estimated velocity and the elapsed tick time.
// Out-of-range magnitudes are clamped sign-preserved with a throttled
// warning; shaping itself has no other side effects.
func (s *Shaper) Shape(rawV, rawW, curV, curW, dt float64) (v, w float64) {
	v = shapeAxis(rawV, curV, dt, s.limits.MaxLinearAccel)
	w = shapeAxis(rawW, curW, dt, s.limits.MaxAngularAccel)

	if math.Abs(v) > s.limits.MaxLinear {
		if s.throttle.Allow("clamp_linear") {
			s.log.Warnf("commanded linear velocity %.3f exceeds maximum magnitude %.3f", rawV, s.limits.MaxLinear)
		}
		v = math.Copysign(s.limits.MaxLinear, v)
	}
	if math.Abs(w) > s.limits.MaxAngular {
		if s.throttle.Allow("clamp_angular") {
			s.log.Warnf("commanded angular velocity %.3f exceeds maximum magnitude %.3f", rawW, s.limits.MaxAngular)
		}
		w = math.Copysign(s.limits.MaxAngular, w)
	}
	return v, w
}

// shapeAxis limits one axis to what maxAccel can reach within dt. The
// acceleration sign follows the commanded delta; a zero delta uses the
// positive magnitude since nothing needs to change. If applying the raw
// command needs more change than the boundary permits, the boundary wins;
// this also paces deceleration, whose error can likewise exceed the bound.
func shapeAxis(raw, cur, dt, maxAccel float64) float64 {
	accel := maxAccel
	if delta := raw - cur; delta != 0 {
		accel = math.Copysign(maxAccel, delta)
	}
	boundary := cur + dt*accel
	if math.Abs(raw-cur) > math.Abs(boundary-cur) {
		return boundary
	}
	return raw
}
