package drive

// PID turns a wheel's velocity error (RPM) into a current command (mA).
// The integral is a plain accumulating sum and the derivative spans one
// call, so both are implicit in the fixed control rate. One instance is
// owned per wheel in torque mode.
type PID struct {
	kp, ki, kd float64

	integral float64
	prevErr  float64
}

func NewPID(kp, ki, kd float64) *PID {
	return &PID{kp: kp, ki: ki, kd: kd}
}

// Update feeds one error sample and returns the command. Deterministic:
// output depends only on the gains and the error sequence seen so far.
func (p *PID) Update(err float64) float64 {
	p.integral += err
	out := p.kp*err + p.ki*p.integral + p.kd*(err-p.prevErr)
	p.prevErr = err
	return out
}
