// Package driver runs the fixed-rate control loop bridging velocity
// commands to the wheel drives and reconstructing odometry from measured
// wheel speeds.
package driver

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"zlac-drive/internal/config"
	"zlac-drive/internal/drive"
	"zlac-drive/internal/logutil"
	"zlac-drive/internal/telemetry"
)

// Actuator is the per-wheel register interface of the drives. Every call may
// fail independently; after startup no failure is fatal.
type Actuator interface {
	ReadVelocity(ctx context.Context, w drive.Wheel) (float64, error)
	ReadVoltage(ctx context.Context, w drive.Wheel) (float64, error)
	ReadCurrent(ctx context.Context, w drive.Wheel) (float64, error)
	ReadErrorCode(ctx context.Context, w drive.Wheel) (uint16, error)
	WriteVelocity(ctx context.Context, w drive.Wheel, rpm float64) error
	WriteTorque(ctx context.Context, w drive.Wheel, milliamps float64) error
	Close() error
}

// Publisher is the outbound telemetry sink.
type Publisher interface {
	PublishOdometry(telemetry.Odometry) error
	PublishForwardVelocity(float64) error
	PublishWheelState(telemetry.WheelState) error
	PublishTransform(telemetry.Transform) error
}

// Driver owns all wheel and pose state; the command mailbox is the only data
// shared with other goroutines.
type Driver struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	throttle *logutil.Throttle

	act Actuator
	pub Publisher

	box    mailbox
	shaper *drive.Shaper
	dd     *drive.DiffDrive
	pids   [drive.NumWheels]*drive.PID
	wheels [drive.NumWheels]drive.State
	nodes  [drive.NumWheels]uint8

	cmd      Command
	cmdAt    time.Time
	lastTick time.Time
}

func New(cfg *config.Config, act Actuator, pub Publisher, log logrus.FieldLogger) *Driver {
	d := &Driver{
		cfg:      cfg,
		log:      log,
		throttle: logutil.NewThrottle(time.Second),
		act:      act,
		pub:      pub,
		dd:       drive.NewDiffDrive(cfg.Robot.WheelRadius, cfg.Robot.TrackWidth),
		nodes:    cfg.Bus.NodeIDs.Array(),
	}
	d.shaper = drive.NewShaper(drive.Limits{
		MaxLinear:       cfg.Robot.MaxVx,
		MaxAngular:      cfg.Robot.MaxW,
		MaxLinearAccel:  cfg.Robot.MaxLinAccel,
		MaxAngularAccel: cfg.Robot.MaxAngAccel,
	}, log)
	for w := range d.pids {
		d.pids[w] = drive.NewPID(cfg.Control.Kp, cfg.Control.Ki, cfg.Control.Kd)
	}
	return d
}

// SubmitCommand records a new velocity command, overwriting any pending one.
// Safe to call from any goroutine.
func (d *Driver) SubmitCommand(linear, angular float64) {
	d.box.put(Command{Linear: linear, Angular: angular}, time.Now())
}

// Run ticks the loop at the configured rate until ctx is done, then stops
// the wheels. A missed deadline just delays the next tick.
func (d *Driver) Run(ctx context.Context) error {
	mode := "velocity"
	if d.cfg.Control.TorqueMode {
		mode = "torque"
	}
	d.log.Infof("control loop started: mode=%s rate=%.0f Hz cmd_timeout=%s",
		mode, d.cfg.Control.LoopRateHz, d.cfg.Control.CmdTimeout())
	d.log.Warnf("velocity commands must arrive faster than %.1f Hz",
		1.0/d.cfg.Control.CmdTimeout().Seconds())

	ticker := time.NewTicker(d.cfg.Control.TickPeriod())
	defer ticker.Stop()

	d.lastTick = time.Now()
	for {
		select {
		case <-ctx.Done():
			d.stopWheels()
			return ctx.Err()
		case now := <-ticker.C:
			d.tick(ctx, now)
		}
	}
}

// tick runs one control period: read back wheel speeds, integrate odometry,
// refresh targets (watchdog + shaping), apply the mode's controls, publish.
func (d *Driver) tick(ctx context.Context, now time.Time) {
	dt := now.Sub(d.lastTick).Seconds()
	if dt < 0 {
		dt = 0
	}
	d.lastTick = now

	if cmd, at, ok := d.box.latest(); ok {
		d.cmd, d.cmdAt = cmd, at
	}

	d.readVelocities(ctx)
	pose := d.dd.Integrate(dt)
	d.updateTargets(now, pose, dt)
	d.applyControls(ctx)
	d.publishOdometry(now, pose)
	d.publishWheelStates(ctx, now)
}

// readVelocities refreshes each wheel's measured RPM, keeping the prior
// sample on a failed read, and feeds the flipped values to the kinematics.
func (d *Driver) readVelocities(ctx context.Context) {
	for w := drive.Wheel(0); w < drive.NumWheels; w++ {
		rpm, err := d.act.ReadVelocity(ctx, w)
		if err != nil {
			if d.throttle.Allow("read_velocity") {
				d.log.Errorf("reading %s wheel velocity: %v; check drive connection", w, err)
			}
		} else {
			d.wheels[w].ActualRPM = rpm
		}
		d.dd.SetWheelVelocity(w, drive.RPMToRadPerSec(d.wheels[w].ActualRPM*w.Flip()))
	}
}

// updateTargets turns the pending command into per-wheel target RPM. A stale
// command forces every target to zero (safety stop); that is a state
// transition, not an error.
func (d *Driver) updateTargets(now time.Time, pose drive.Pose, dt float64) {
	if d.cmdAt.IsZero() || now.Sub(d.cmdAt) > d.cfg.Control.CmdTimeout() {
		for w := range d.wheels {
			d.wheels[w].TargetRPM = 0.0
		}
		return
	}

	v, w := d.shaper.Shape(d.cmd.Linear, d.cmd.Angular, pose.V, pose.W, dt)
	left, right := d.dd.WheelSpeeds(v, w)
	leftRPM := drive.RadPerSecToRPM(left)
	rightRPM := drive.RadPerSecToRPM(right)

	d.wheels[drive.FrontLeft].TargetRPM = leftRPM * drive.FrontLeft.Flip()
	d.wheels[drive.BackLeft].TargetRPM = leftRPM * drive.BackLeft.Flip()
	d.wheels[drive.BackRight].TargetRPM = rightRPM * drive.BackRight.Flip()
	d.wheels[drive.FrontRight].TargetRPM = rightRPM * drive.FrontRight.Flip()
}

// applyControls writes setpoints for the active mode. A failed write is
// logged (throttled) and the drive keeps its previous setpoint this cycle.
func (d *Driver) applyControls(ctx context.Context) {
	if !d.cfg.Control.TorqueMode {
		for w := drive.Wheel(0); w < drive.NumWheels; w++ {
			if err := d.act.WriteVelocity(ctx, w, d.wheels[w].TargetRPM); err != nil {
				if d.throttle.Allow("write_velocity") {
					d.log.Errorf("setting %s wheel velocity: %v", w, err)
				}
			}
		}
		return
	}

	// Torque mode: close the speed loop here, one regulator per wheel.
	// Errors are formed in the motor sign convention, matching the targets.
	for w := drive.Wheel(0); w < drive.NumWheels; w++ {
		errRPM := d.wheels[w].TargetRPM - d.wheels[w].ActualRPM
		d.wheels[w].TargetCurrentMA = d.pids[w].Update(errRPM)
		if err := d.act.WriteTorque(ctx, w, d.wheels[w].TargetCurrentMA); err != nil {
			if d.throttle.Allow("write_torque") {
				d.log.Errorf("setting %s wheel torque: %v", w, err)
			}
		}
	}
}

func (d *Driver) publishOdometry(now time.Time, pose drive.Pose) {
	quat := telemetry.YawToQuaternion(pose.Yaw)
	odom := telemetry.Odometry{
		Stamp:        now,
		FrameID:      d.cfg.Frames.Odom,
		ChildFrameID: d.cfg.Frames.Robot,
		Pose: telemetry.PoseMsg{
			Position:    telemetry.Vector3{X: pose.X, Y: pose.Y},
			Orientation: quat,
		},
		PoseCovariance: telemetry.PoseCovariance(),
		Twist: telemetry.Twist{
			Linear:  telemetry.Vector3{X: pose.V},
			Angular: telemetry.Vector3{Z: pose.W},
		},
		TwistCovariance: telemetry.TwistCovariance(),
	}
	if err := d.pub.PublishOdometry(odom); err != nil && d.throttle.Allow("pub_odom") {
		d.log.Errorf("publishing odometry: %v", err)
	}
	if err := d.pub.PublishForwardVelocity(pose.V); err != nil && d.throttle.Allow("pub_vel") {
		d.log.Errorf("publishing forward velocity: %v", err)
	}
	if d.cfg.Frames.PublishTF {
		tf := telemetry.Transform{
			Stamp:        now,
			FrameID:      d.cfg.Frames.Odom,
			ChildFrameID: d.cfg.Frames.Robot,
			Translation:  telemetry.Vector3{X: pose.X, Y: pose.Y},
			Rotation:     quat,
		}
		if err := d.pub.PublishTransform(tf); err != nil && d.throttle.Allow("pub_tf") {
			d.log.Errorf("publishing transform: %v", err)
		}
	}
}

// publishWheelStates refreshes and publishes each wheel's diagnostics. Each
// field read is best-effort on its own: a failure keeps the prior value and
// never blocks the rest of the record.
func (d *Driver) publishWheelStates(ctx context.Context, now time.Time) {
	for w := drive.Wheel(0); w < drive.NumWheels; w++ {
		st := &d.wheels[w]

		if v, err := d.act.ReadVoltage(ctx, w); err == nil {
			st.Voltage = v
		} else if d.throttle.Allow("read_voltage") {
			d.log.Errorf("reading %s wheel voltage: %v", w, err)
		}
		if c, err := d.act.ReadCurrent(ctx, w); err == nil {
			st.Current = c
		} else if d.throttle.Allow("read_current") {
			d.log.Errorf("reading %s wheel current: %v", w, err)
		}
		if code, err := d.act.ReadErrorCode(ctx, w); err == nil {
			st.ErrorCode = code
		} else if d.throttle.Allow("read_error_code") {
			d.log.Errorf("reading %s wheel error code: %v", w, err)
		}

		msg := telemetry.WheelState{
			Stamp:           now,
			Wheel:           w.String(),
			NodeID:          d.nodes[w],
			Voltage:         st.Voltage,
			Current:         st.Current,
			TargetCurrentMA: st.TargetCurrentMA,
			TargetCurrentA:  st.TargetCurrentMA / 1000.0,
			ActualSpeed:     st.ActualRPM,
			TargetSpeed:     st.TargetRPM,
			ErrorCode:       st.ErrorCode,
		}
		if err := d.pub.PublishWheelState(msg); err != nil && d.throttle.Allow("pub_state") {
			d.log.Errorf("publishing %s wheel state: %v", w, err)
		}
	}
}

// stopWheels zeroes every wheel on shutdown, best-effort.
func (d *Driver) stopWheels() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for w := drive.Wheel(0); w < drive.NumWheels; w++ {
		d.wheels[w].TargetRPM = 0.0
		var err error
		if d.cfg.Control.TorqueMode {
			err = d.act.WriteTorque(ctx, w, 0)
		} else {
			err = d.act.WriteVelocity(ctx, w, 0)
		}
		if err != nil {
			d.log.Errorf("stopping %s wheel: %v", w, err)
		}
	}
}
