// Package telemetry carries the driver's MQTT surface: the inbound velocity
// command and the outbound odometry, forward velocity, transform and
// per-wheel state payloads.
package telemetry

import (
	"math"
	"time"
)

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// VelocityCommand is the inbound cmd_vel payload. Only linear x and angular
// z apply to a differential base; the other components are ignored.
type VelocityCommand struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

type PoseMsg struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Odometry is the dead-reckoned pose and twist with 6x6 row-major diagonal
// covariance placeholders.
type Odometry struct {
	Stamp           time.Time   `json:"stamp"`
	FrameID         string      `json:"frame_id"`
	ChildFrameID    string      `json:"child_frame_id"`
	Pose            PoseMsg     `json:"pose"`
	PoseCovariance  [36]float64 `json:"pose_covariance"`
	Twist           Twist       `json:"twist"`
	TwistCovariance [36]float64 `json:"twist_covariance"`
}

// Scalar is a single-valued stream sample (forward velocity).
type Scalar struct {
	Data float64 `json:"data"`
}

// WheelState is one wheel's diagnostic record.
type WheelState struct {
	Stamp           time.Time `json:"stamp"`
	Wheel           string    `json:"wheel"`
	NodeID          uint8     `json:"node_id"`
	Voltage         float64   `json:"voltage"`
	Current         float64   `json:"current"`
	TargetCurrentMA float64   `json:"target_current_mA"`
	TargetCurrentA  float64   `json:"target_current_A"`
	ActualSpeed     float64   `json:"actual_speed"`
	TargetSpeed     float64   `json:"target_speed"`
	ErrorCode       uint16    `json:"error_code"`
}

// Transform is the optional odom→base pose broadcast.
type Transform struct {
	Stamp        time.Time  `json:"stamp"`
	FrameID      string     `json:"frame_id"`
	ChildFrameID string     `json:"child_frame_id"`
	Translation  Vector3    `json:"translation"`
	Rotation     Quaternion `json:"rotation"`
}

// YawToQuaternion converts a planar heading into a unit quaternion about z.
func YawToQuaternion(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// PoseCovariance: dead reckoning is untrusted on every pose axis.
func PoseCovariance() [36]float64 {
	var c [36]float64
	for i := 0; i < 6; i++ {
		c[i*7] = 1000.0
	}
	return c
}

// TwistCovariance: only forward velocity and yaw rate are measured; the
// remaining axes get a large placeholder.
func TwistCovariance() [36]float64 {
	var c [36]float64
	for i := 0; i < 6; i++ {
		c[i*7] = 1000.0
	}
	c[0] = 0.1  // vx
	c[35] = 0.1 // yaw rate
	return c
}
