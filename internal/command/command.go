// Package command routes heating commands to the device that carries them:
// pellet switches wired to GPIO relays are driven locally, everything else is
// sent to the broker.
package command

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sweeney/smart-thermostat/internal/gpio"
	"github.com/sweeney/smart-thermostat/internal/logic"
)

var _ logic.Sink = (*Router)(nil)

// Router is a logic.Sink that sends switch commands for mapped entities to GPIO
// relays and all other commands to remote.
type Router struct {
	log    logr.Logger
	remote logic.Sink
	relays gpio.Relays
	lines  map[string]int // switch entity id -> relay line
}

// NewRouter creates a Router. relays may be nil when lines is empty.
func NewRouter(log logr.Logger, remote logic.Sink, relays gpio.Relays, lines map[string]int) *Router {
	return &Router{
		log:    log.WithName("command.Router"),
		remote: remote,
		relays: relays,
		lines:  lines,
	}
}

// SetClimateTarget forwards to the remote sink.
func (r *Router) SetClimateTarget(ctx context.Context, entityID string, temperature float64) error {
	r.log.V(1).Info("set climate target", "entity", entityID, "temperature", temperature)
	return r.remote.SetClimateTarget(ctx, entityID, temperature)
}

// TurnOffClimate forwards to the remote sink.
func (r *Router) TurnOffClimate(ctx context.Context, entityID string) error {
	r.log.V(1).Info("turn off climate", "entity", entityID)
	return r.remote.TurnOffClimate(ctx, entityID)
}

// TurnOnSwitch energises the mapped relay or forwards to the remote sink.
func (r *Router) TurnOnSwitch(ctx context.Context, entityID string) error {
	return r.setSwitch(ctx, entityID, true)
}

// TurnOffSwitch releases the mapped relay or forwards to the remote sink.
func (r *Router) TurnOffSwitch(ctx context.Context, entityID string) error {
	return r.setSwitch(ctx, entityID, false)
}

func (r *Router) setSwitch(ctx context.Context, entityID string, on bool) error {
	line, ok := r.lines[entityID]
	if !ok {
		r.log.V(1).Info("set switch", "entity", entityID, "on", on)
		if on {
			return r.remote.TurnOnSwitch(ctx, entityID)
		}
		return r.remote.TurnOffSwitch(ctx, entityID)
	}

	if r.relays == nil {
		return fmt.Errorf("switch %s: relay line %d configured without gpio", entityID, line)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.log.V(1).Info("set relay", "entity", entityID, "line", line, "on", on)
	if err := r.relays.Set(line, on); err != nil {
		return fmt.Errorf("switch %s: %w", entityID, err)
	}
	return nil
}
