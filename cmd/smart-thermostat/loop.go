package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/sweeney/smart-thermostat/internal/config"
	"github.com/sweeney/smart-thermostat/internal/logic"
	"github.com/sweeney/smart-thermostat/internal/mqtt"
	"github.com/sweeney/smart-thermostat/internal/status"
	"github.com/sweeney/smart-thermostat/internal/web"
)

// topicMap names the topics the loop reacts to.
type topicMap struct {
	indoor      string
	outdoor     string
	heatPump    string
	pelletPower string
	targetSet   string
	modeSet     string
}

func newTopicMap(cfg config.Config) topicMap {
	own := mqtt.Topics{Prefix: cfg.MQTT.Prefix}
	return topicMap{
		indoor:      cfg.Entities.IndoorSensor,
		outdoor:     cfg.Entities.OutdoorSensor,
		heatPump:    cfg.Entities.HeatPump,
		pelletPower: cfg.Entities.PelletPowerSwitch,
		targetSet:   own.TargetSet(),
		modeSet:     own.ModeSet(),
	}
}

func (t topicMap) subscriptions() []string {
	return []string{t.indoor, t.outdoor, t.heatPump, t.pelletPower, t.targetSet, t.modeSet}
}

// request is a user request forwarded from the HTTP server into the loop.
type request struct {
	target *float64
	mode   logic.Mode
	reply  chan error
}

// loopControl implements web.Control by handing requests to the loop and
// waiting for the result.
type loopControl struct {
	requests chan<- request
}

var _ web.Control = loopControl{}

func (c loopControl) SetTarget(ctx context.Context, t float64) error {
	return c.send(ctx, request{target: &t})
}

func (c loopControl) SetMode(ctx context.Context, m logic.Mode) error {
	return c.send(ctx, request{mode: m})
}

func (c loopControl) send(ctx context.Context, r request) error {
	r.reply = make(chan error, 1)
	select {
	case c.requests <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop owns the controller. Every input goes through run, one at a time.
type loop struct {
	log        logr.Logger
	ctrl       *logic.Controller
	topics     topicMap
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	now        func() time.Time

	// last payload per device topic; devices echo their state after
	// every command and only a change re-runs the cycle
	deviceState map[string]string
}

// run processes broker messages, user requests and monitor ticks until a
// signal arrives. A failing cycle is logged and the loop carries on. The
// heating is left as it is on shutdown.
func (l *loop) run(ctx context.Context, msgs <-chan mqtt.Message, requests <-chan request, tick <-chan time.Time, sig <-chan os.Signal) error {
	l.refresh()
	l.publishStatus("startup", "")

	for {
		select {
		case s := <-sig:
			l.log.Info("shutting down", "signal", s)
			l.refresh()
			l.publishStatus("shutdown", signalName(s))
			return nil

		case m := <-msgs:
			before := l.ctrl.Attributes()
			err := l.handleMessage(ctx, m)
			if err != nil {
				err = fmt.Errorf("message on %s: %w", m.Topic, err)
			}
			l.after(before, err)

		case r := <-requests:
			before := l.ctrl.Attributes()
			var err error
			if r.target != nil {
				err = l.ctrl.SetTarget(ctx, *r.target)
			} else {
				err = l.ctrl.SetMode(ctx, r.mode)
			}
			l.after(before, err)
			r.reply <- err

		case <-tick:
			before := l.ctrl.Attributes()
			l.after(before, l.ctrl.Tick(ctx))
		}
	}
}

func (l *loop) handleMessage(ctx context.Context, m mqtt.Message) error {
	switch m.Topic {
	case l.topics.indoor:
		v, ok := mqtt.ParseTemperature(m.Payload)
		if !ok {
			l.log.V(1).Info("ignoring indoor state", "payload", string(m.Payload))
			return nil
		}
		return l.ctrl.UpdateIndoor(ctx, v)

	case l.topics.outdoor:
		v, ok := mqtt.ParseTemperature(m.Payload)
		if !ok {
			l.log.V(1).Info("ignoring outdoor state", "payload", string(m.Payload))
			return nil
		}
		return l.ctrl.UpdateOutdoor(ctx, v)

	case l.topics.heatPump, l.topics.pelletPower:
		if !l.deviceChanged(m) {
			l.log.V(1).Info("device state unchanged", "topic", m.Topic)
			return nil
		}
		return l.ctrl.Tick(ctx)

	case l.topics.targetSet:
		v, ok := mqtt.ParseTemperature(m.Payload)
		if !ok || v < logic.MinTarget || v > logic.MaxTarget {
			return fmt.Errorf("invalid target %q", m.Payload)
		}
		return l.ctrl.SetTarget(ctx, v)

	case l.topics.modeSet:
		mode, err := logic.ParseMode(strings.ToLower(strings.TrimSpace(string(m.Payload))))
		if err != nil {
			return fmt.Errorf("mode %q: %w", m.Payload, err)
		}
		return l.ctrl.SetMode(ctx, mode)
	}

	l.log.V(1).Info("unexpected topic", "topic", m.Topic)
	return nil
}

// deviceChanged records the payload and reports whether it differs from the
// last one seen on the same topic.
func (l *loop) deviceChanged(m mqtt.Message) bool {
	if l.deviceState == nil {
		l.deviceState = make(map[string]string)
	}
	payload := string(m.Payload)
	if prev, ok := l.deviceState[m.Topic]; ok && prev == payload {
		return false
	}
	l.deviceState[m.Topic] = payload
	return true
}

// after records the outcome of one input: errors, source and level changes,
// tracker state and the retained status.
func (l *loop) after(before logic.Attributes, err error) {
	now := l.now()
	if err != nil {
		l.log.Error(err, "control cycle failed")
		l.tracker.SetError(err, now)
	}

	attrs := l.ctrl.Attributes()
	events := logic.Changes(before, attrs, now)
	for _, e := range events {
		l.log.Info("event", "type", e.Type, "source", e.Source, "reason", e.Reason, "level", e.Level)
		if err := l.publisher.Publish(e); err != nil {
			l.log.Error(err, "publish event")
			// Don't crash on publish failure
		}
	}
	l.tracker.RecordEvents(events)
	l.refresh()

	if attrs != before || err != nil {
		l.publishStatus("update", "")
	}
}

func (l *loop) refresh() {
	l.tracker.Update(l.ctrl.Attributes(), l.ctrl.History())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) publishStatus(event, reason string) {
	snap := l.tracker.Snapshot()
	if err := l.publisher.PublishStatus(status.FormatStatusEvent(snap, event, reason)); err != nil {
		l.log.Error(err, "publish status", "event", event)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
