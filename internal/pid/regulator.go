// Package pid implements the rate-limited PID loop that maps indoor temperature
// onto a pellet-stove power level.
// Like internal/logic it has no I/O; the clock is injected.
package pid

import "time"

// Output bounds and loop rate of the regulator.
const (
	MinOutput      = 1.0
	MaxOutput      = 5.0
	SampleInterval = 60 * time.Second
)

// Gains holds the PID coefficients.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Regulator is a PID controller whose output is clamped to [MinOutput, MaxOutput]
// and which recomputes at most once per SampleInterval.
// Not safe for concurrent use.
type Regulator struct {
	gains Gains
	now   func() time.Time

	setpoint    float64
	integral    float64 // Ki-weighted, clamped to [MinOutput, MaxOutput]
	prevError   float64
	lastOutput  float64
	lastCompute time.Time
	started     bool
}

// NewRegulator creates a regulator with the given gains. If now is nil, time.Now is used.
func NewRegulator(gains Gains, now func() time.Time) *Regulator {
	if now == nil {
		now = time.Now
	}
	r := &Regulator{gains: gains, now: now}
	r.Reset()
	return r
}

// Gains returns the configured coefficients.
func (r *Regulator) Gains() Gains {
	return r.gains
}

// Setpoint returns the setpoint used by the last Compute call.
func (r *Regulator) Setpoint() float64 {
	return r.setpoint
}

// LastOutput returns the most recently computed output.
func (r *Regulator) LastOutput() float64 {
	return r.lastOutput
}

// Compute returns the power level for the current value and setpoint.
//
// A setpoint change is taken as is: the accumulators are kept and the new error
// shows up in the next step. Calls arriving less than SampleInterval after the
// last step return the previous output unchanged. The first call after
// construction or Reset always steps, with dt taken as SampleInterval and no
// derivative term.
func (r *Regulator) Compute(current, setpoint float64) float64 {
	if setpoint != r.setpoint {
		r.setpoint = setpoint
	}

	now := r.now()
	dt := SampleInterval.Seconds()
	if r.started {
		dt = now.Sub(r.lastCompute).Seconds()
		if dt < SampleInterval.Seconds() {
			return r.lastOutput
		}
	}

	err := r.setpoint - current

	r.integral = clamp(r.integral+r.gains.Ki*err*dt, MinOutput, MaxOutput)

	var derivative float64
	if r.started {
		derivative = (err - r.prevError) / dt
	}

	out := r.gains.Kp*err + r.integral + r.gains.Kd*derivative
	out = clamp(out, MinOutput, MaxOutput)

	r.lastOutput = out
	r.prevError = err
	r.lastCompute = now
	r.started = true
	return out
}

// Reset clears the previous error and last output and drops the integral to
// its floor so that the next Compute behaves as on a freshly constructed
// regulator with the same gains.
func (r *Regulator) Reset() {
	r.integral = MinOutput
	r.prevError = 0
	r.lastOutput = MinOutput
	r.lastCompute = time.Time{}
	r.started = false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
