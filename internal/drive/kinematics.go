package drive

import "math"

// Pose is the dead-reckoned robot pose in the odometry frame, plus the
// robot-frame velocity derived on the most recent integration step.
type Pose struct {
	X   float64 // m
	Y   float64 // m
	Yaw float64 // rad
	V   float64 // m/s, forward
	W   float64 // rad/s, about z
}

// DiffDrive maps between robot-frame velocity and per-side wheel angular
// velocity, and integrates odometry from measured wheel speeds. The pose is
// relative to wherever the process started; there is no drift correction.
type DiffDrive struct {
	wheelRadius float64
	trackWidth  float64

	// measured wheel angular velocities, rad/s, kinematic sign convention
	wheelVel [NumWheels]float64

	pose Pose
}

func NewDiffDrive(wheelRadius, trackWidth float64) *DiffDrive {
	return &DiffDrive{wheelRadius: wheelRadius, trackWidth: trackWidth}
}

// WheelSpeeds is the inverse kinematic relation: the left and right wheel
// angular velocities (rad/s) that realize robot-frame velocity (v, w). Both
// wheels on a side get the same speed.
func (d *DiffDrive) WheelSpeeds(v, w float64) (left, right float64) {
	left = (v - w*d.trackWidth/2) / d.wheelRadius
	right = (v + w*d.trackWidth/2) / d.wheelRadius
	return left, right
}

// SetWheelVelocity records wheel w's measured angular velocity in rad/s,
// already flipped into the kinematic sign convention.
func (d *DiffDrive) SetWheelVelocity(w Wheel, radPerSec float64) {
	d.wheelVel[w] = radPerSec
}

// Integrate advances the pose by dt seconds using the recorded wheel speeds.
// The two wheels on each side are averaged into an effective side velocity.
// Heading is integrated before position; position then uses the updated
// heading. A negative dt (clock went backwards) integrates nothing.
func (d *DiffDrive) Integrate(dt float64) Pose {
	if dt < 0 {
		dt = 0
	}

	left := d.wheelRadius * (d.wheelVel[FrontLeft] + d.wheelVel[BackLeft]) / 2
	right := d.wheelRadius * (d.wheelVel[FrontRight] + d.wheelVel[BackRight]) / 2

	v := (left + right) / 2
	w := (right - left) / d.trackWidth

	d.pose.Yaw += w * dt
	d.pose.X += v * math.Cos(d.pose.Yaw) * dt
	d.pose.Y += v * math.Sin(d.pose.Yaw) * dt
	d.pose.V = v
	d.pose.W = w
	return d.pose
}

// Pose returns the current pose without integrating.
func (d *DiffDrive) Pose() Pose {
	return d.pose
}
