package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/smart-thermostat/internal/pid"
)

// Controller selects the heat source and drives it.
//
// Every exported method is one input event: it updates state and then runs the
// control cycle. A Sink failure aborts the rest of the cycle and is returned.
// Not safe for concurrent use; callers serialise events.
type Controller struct {
	cfg       Config
	sink      Sink
	now       func() time.Time
	regulator *pid.Regulator // nil unless ControlPID

	mode             Mode
	target           float64
	indoor           Temperature
	outdoor          Temperature
	source           Source
	reason           Reason
	lastTargetChange time.Time
	history          *History
	level            int
}

// NewController creates a controller in ModeOff with the heat pump selected.
// If now is nil, time.Now is used.
func NewController(cfg Config, sink Sink, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	c := &Controller{
		cfg:              cfg,
		sink:             sink,
		now:              now,
		mode:             ModeOff,
		target:           cfg.InitialTarget,
		source:           SourceHeatPump,
		reason:           ReasonNone,
		lastTargetChange: now(),
		history:          NewHistory(HistoryCapacity),
	}
	if cfg.ControlMode == ControlPID {
		c.regulator = pid.NewRegulator(cfg.Gains, now)
	}
	return c
}

// UpdateIndoor records a valid indoor reading and runs the control cycle.
func (c *Controller) UpdateIndoor(ctx context.Context, v float64) error {
	c.indoor = KnownTemperature(v)
	c.history.Push(v)
	return c.run(ctx)
}

// UpdateOutdoor records a valid outdoor reading and runs the control cycle.
func (c *Controller) UpdateOutdoor(ctx context.Context, v float64) error {
	c.outdoor = KnownTemperature(v)
	return c.run(ctx)
}

// Tick runs the control cycle with the cached readings. It serves both the
// periodic monitor and state changes of the driven devices.
func (c *Controller) Tick(ctx context.Context) error {
	return c.run(ctx)
}

// SetTarget changes the setpoint, restarts the target timeout and runs the
// control cycle.
func (c *Controller) SetTarget(ctx context.Context, t float64) error {
	c.target = t
	c.lastTargetChange = c.now()
	return c.run(ctx)
}

// SetMode switches between ModeOff and ModeHeat.
//
// Entering ModeOff turns off the heat pump and the pellet power switch.
// Entering ModeHeat from ModeOff starts over from the heat pump and runs the
// control cycle at once. Setting the current ModeHeat again does nothing.
func (c *Controller) SetMode(ctx context.Context, m Mode) error {
	switch m {
	case ModeOff:
		c.mode = ModeOff
		return c.turnOffAll(ctx)
	case ModeHeat:
		if c.mode == ModeHeat {
			return nil
		}
		c.mode = ModeHeat
		c.setSource(SourceHeatPump, ReasonNone)
		c.lastTargetChange = c.now()
		if c.regulator != nil {
			c.regulator.Reset()
		}
		return c.run(ctx)
	}
	return fmt.Errorf("set mode %q: %w", m, ErrUnknownMode)
}

// Attributes returns the observable state.
func (c *Controller) Attributes() Attributes {
	a := Attributes{
		Mode:             c.mode,
		Action:           ActionHeating,
		ActiveSource:     c.source,
		SourceReason:     c.reason,
		ControlMode:      c.cfg.ControlMode,
		Indoor:           c.indoor,
		Outdoor:          c.outdoor,
		Target:           c.target,
		PelletLevel:      c.level,
		LastTargetChange: c.lastTargetChange,
	}
	// Both sources heat; only the mode matters.
	if c.mode == ModeOff {
		a.Action = ActionOff
	}
	if c.regulator != nil {
		a.PIDOutput = c.regulator.LastOutput()
	}
	return a
}

// History returns the indoor samples in the trend window, oldest first.
func (c *Controller) History() []float64 {
	return c.history.Samples()
}

func (c *Controller) run(ctx context.Context) error {
	if c.mode == ModeOff {
		return nil
	}

	c.selectSource()

	if c.source == SourceHeatPump {
		if err := c.sink.SetClimateTarget(ctx, c.cfg.HeatPump, c.target); err != nil {
			return fmt.Errorf("set heat pump target: %w", err)
		}
		return nil
	}
	return c.controlPellet(ctx)
}

// selectSource applies the selection rules in precedence order. The first
// matching rule wins. No rule ever selects the heat pump again.
func (c *Controller) selectSource() {
	// Outdoor too cold
	if c.outdoor.Below(c.cfg.MinOutsideTemp) && c.source != SourcePellet {
		c.setSource(SourcePellet, ReasonTempTooLow)
		return
	}

	if c.source != SourceHeatPump {
		return
	}

	// Indoor trend decreasing over the window
	if c.history.Decreasing() {
		c.setSource(SourcePellet, ReasonTempDecreasing)
		return
	}

	// Heat pump not reaching target in time
	if c.now().Sub(c.lastTargetChange) > TargetTimeout && c.indoor.Below(c.target) {
		c.setSource(SourcePellet, ReasonNotReachingTarget)
	}
}

func (c *Controller) setSource(s Source, r Reason) {
	c.source = s
	c.reason = r
}

// controlPellet computes the pellet level and dispatches it. Without an
// indoor reading there is nothing to regulate on and no command is sent.
func (c *Controller) controlPellet(ctx context.Context) error {
	if !c.indoor.Known {
		return nil
	}

	var level int
	switch {
	case c.regulator != nil:
		level = int(c.regulator.Compute(c.indoor.Value, c.target))
	case c.indoor.Below(c.target):
		level = OnOffLevelHigh
	default:
		level = OnOffLevelLow
	}
	return c.setPelletLevel(ctx, level)
}

// setPelletLevel turns every level switch off, then turns on the one for level.
// A level outside 1..len(switches) leaves all switches off.
func (c *Controller) setPelletLevel(ctx context.Context, level int) error {
	for _, sw := range c.cfg.PelletLevelSwitches {
		if err := c.sink.TurnOffSwitch(ctx, sw); err != nil {
			return fmt.Errorf("turn off pellet level switch %s: %w", sw, err)
		}
	}
	c.level = 0

	if level < 1 || level > len(c.cfg.PelletLevelSwitches) {
		return nil
	}
	sw := c.cfg.PelletLevelSwitches[level-1]
	if err := c.sink.TurnOnSwitch(ctx, sw); err != nil {
		return fmt.Errorf("turn on pellet level switch %s: %w", sw, err)
	}
	c.level = level
	return nil
}

func (c *Controller) turnOffAll(ctx context.Context) error {
	if err := c.sink.TurnOffClimate(ctx, c.cfg.HeatPump); err != nil {
		return fmt.Errorf("turn off heat pump: %w", err)
	}
	if err := c.sink.TurnOffSwitch(ctx, c.cfg.PelletPowerSwitch); err != nil {
		return fmt.Errorf("turn off pellet power switch: %w", err)
	}
	return nil
}
