package drive

// RPMPerRadPerSec converts rotational speed units: 60 / 2π.
const RPMPerRadPerSec = 9.5493

// Wheel identifies one of the four drive wheels.
type Wheel int

const (
	FrontLeft Wheel = iota
	BackLeft
	BackRight
	FrontRight
	NumWheels
)

var wheelNames = [NumWheels]string{"fl", "bl", "br", "fr"}

func (w Wheel) String() string {
	if w < 0 || w >= NumWheels {
		return "unknown"
	}
	return wheelNames[w]
}

// Left-side motors are mounted mirrored, so their positive spin direction is
// opposite the kinematic convention. Fixed for the robot's lifetime.
var flipSigns = [NumWheels]float64{-1, -1, 1, 1}

// Flip returns the sign reconciling wheel w's mounting orientation with the
// common kinematic sign convention.
func (w Wheel) Flip() float64 {
	return flipSigns[w]
}

// State is one wheel's control-loop record. The control loop is its sole
// writer; telemetry publication reads it once per tick.
type State struct {
	ActualRPM       float64
	TargetRPM       float64
	TargetCurrentMA float64
	Current         float64
	Voltage         float64
	ErrorCode       uint16
}

func RPMToRadPerSec(rpm float64) float64 { return rpm / RPMPerRadPerSec }

func RadPerSecToRPM(radPerSec float64) float64 { return radPerSec * RPMPerRadPerSec }
