// Package logic contains the source-selection decision engine and the pellet-stove
// level controller.
// This package has NO I/O: commands go through the Sink interface and time is injectable.
package logic

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/smart-thermostat/internal/pid"
)

// Mode is the HVAC mode requested by the user.
type Mode string

const (
	ModeOff  Mode = "off"
	ModeHeat Mode = "heat"
)

// ErrUnknownMode is returned for a mode other than ModeOff or ModeHeat.
var ErrUnknownMode = errors.New("unknown hvac mode")

// ParseMode converts a user supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOff, ModeHeat:
		return Mode(s), nil
	}
	return "", ErrUnknownMode
}

// Action is the derived HVAC action exposed to the host.
type Action string

const (
	ActionOff     Action = "off"
	ActionHeating Action = "heating"
)

// Source is the heat source currently driven.
type Source string

const (
	SourceHeatPump Source = "heat_pump"
	SourcePellet   Source = "pellet_stove"
)

// Reason records why the active source was selected. Empty when the heat pump
// is active by default.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonTempTooLow        Reason = "outside_temp_below_minimum"
	ReasonTempDecreasing    Reason = "inside_temp_decreasing"
	ReasonNotReachingTarget Reason = "not_reaching_target"
)

// ControlMode selects how the pellet-stove level is computed.
type ControlMode string

const (
	ControlPID   ControlMode = "pid"
	ControlOnOff ControlMode = "on_off"
)

// Timing constants of the control loop.
const (
	MonitorInterval = 60 * time.Second
	TargetTimeout   = 1800 * time.Second
	HistoryCapacity = 15 // 15 minutes at MonitorInterval sampling
)

// Setpoint range accepted from any control input, in °F.
const (
	MinTarget = 60.0
	MaxTarget = 80.0
)

// Levels used by on/off control.
const (
	OnOffLevelHigh = 3
	OnOffLevelLow  = 1
)

// Config is the immutable configuration consumed by the controller.
type Config struct {
	HeatPump            string
	PelletPowerSwitch   string
	PelletLevelSwitches []string // index 0 = level 1
	MinOutsideTemp      float64
	ControlMode         ControlMode
	Gains               pid.Gains
	InitialTarget       float64
}

// Sink dispatches commands to the heating devices.
// Every call blocks until acknowledged and may fail.
type Sink interface {
	SetClimateTarget(ctx context.Context, entityID string, temperature float64) error
	TurnOffClimate(ctx context.Context, entityID string) error
	TurnOnSwitch(ctx context.Context, entityID string) error
	TurnOffSwitch(ctx context.Context, entityID string) error
}

// Temperature is a reading that may not have been received yet.
type Temperature struct {
	Value float64
	Known bool
}

// KnownTemperature returns a Temperature holding v.
func KnownTemperature(v float64) Temperature {
	return Temperature{Value: v, Known: true}
}

// Below reports whether the reading is known and strictly below limit.
// An unknown reading is never below anything.
func (t Temperature) Below(limit float64) bool {
	return t.Known && t.Value < limit
}

// Attributes is the observable state of the thermostat.
type Attributes struct {
	Mode             Mode
	Action           Action
	ActiveSource     Source
	SourceReason     Reason
	ControlMode      ControlMode
	Indoor           Temperature
	Outdoor          Temperature
	Target           float64
	PelletLevel      int     // last level dispatched, 0 if none
	PIDOutput        float64 // last regulator output, 0 unless ControlPID
	LastTargetChange time.Time
}

// EventType identifies a change worth announcing.
type EventType string

const (
	EventSourceChanged EventType = "source_changed"
	EventLevelChanged  EventType = "level_changed"
)

// Event describes a change of active source or pellet level.
type Event struct {
	Timestamp      time.Time
	Type           EventType
	Source         Source
	PreviousSource Source
	Reason         Reason
	Level          int
	PreviousLevel  int
}
