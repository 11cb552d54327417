package logic

import (
	"context"
	"fmt"
)

// Op names a Sink operation.
type Op string

const (
	OpSetClimateTarget Op = "set_climate_target"
	OpTurnOffClimate   Op = "turn_off_climate"
	OpTurnOnSwitch     Op = "turn_on_switch"
	OpTurnOffSwitch    Op = "turn_off_switch"
)

// Call records one Sink invocation.
type Call struct {
	Op          Op
	EntityID    string
	Temperature float64 // OpSetClimateTarget only
}

func (c Call) String() string {
	if c.Op == OpSetClimateTarget {
		return fmt.Sprintf("%s(%s, %.1f)", c.Op, c.EntityID, c.Temperature)
	}
	return fmt.Sprintf("%s(%s)", c.Op, c.EntityID)
}

// FakeSink records commands for test assertions.
type FakeSink struct {
	// Calls contains every successful call in order.
	Calls []Call
	// Err, if set, is returned by every call.
	Err error
	// FailOn, if set, is consulted before each call; a non-nil result is returned
	// and the call is not recorded.
	FailOn func(Call) error
}

// NewFakeSink creates a FakeSink for testing.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// SetClimateTarget records the call.
func (f *FakeSink) SetClimateTarget(ctx context.Context, entityID string, temperature float64) error {
	return f.record(Call{Op: OpSetClimateTarget, EntityID: entityID, Temperature: temperature})
}

// TurnOffClimate records the call.
func (f *FakeSink) TurnOffClimate(ctx context.Context, entityID string) error {
	return f.record(Call{Op: OpTurnOffClimate, EntityID: entityID})
}

// TurnOnSwitch records the call.
func (f *FakeSink) TurnOnSwitch(ctx context.Context, entityID string) error {
	return f.record(Call{Op: OpTurnOnSwitch, EntityID: entityID})
}

// TurnOffSwitch records the call.
func (f *FakeSink) TurnOffSwitch(ctx context.Context, entityID string) error {
	return f.record(Call{Op: OpTurnOffSwitch, EntityID: entityID})
}

func (f *FakeSink) record(c Call) error {
	if f.Err != nil {
		return f.Err
	}
	if f.FailOn != nil {
		if err := f.FailOn(c); err != nil {
			return err
		}
	}
	f.Calls = append(f.Calls, c)
	return nil
}

// SwitchedOn returns the entity ids turned on, in order.
func (f *FakeSink) SwitchedOn() []string {
	var ids []string
	for _, c := range f.Calls {
		if c.Op == OpTurnOnSwitch {
			ids = append(ids, c.EntityID)
		}
	}
	return ids
}

// Reset clears recorded calls and scripted errors.
func (f *FakeSink) Reset() {
	f.Calls = nil
	f.Err = nil
	f.FailOn = nil
}
