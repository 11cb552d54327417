// Package mqtt connects the thermostat to the house broker: sensor states come
// in, device commands, events and status go out. Abstracted for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/smart-thermostat/internal/logic"
)

// DefaultPrefix is the topic prefix for the thermostat's own topics.
const DefaultPrefix = "thermostat"

// Sentinel states published by sensors without a reading.
const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// Availability payloads, retained on Topics.Availability.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// Topics derives the thermostat's own topics from a prefix.
type Topics struct {
	Prefix string
}

// Events is where source and level changes are published.
func (t Topics) Events() string { return t.Prefix + "/events" }

// Status carries the retained JSON status.
func (t Topics) Status() string { return t.Prefix + "/status" }

// Availability carries the retained online/offline flag and the last will.
func (t Topics) Availability() string { return t.Prefix + "/availability" }

// TargetSet receives new target temperatures.
func (t Topics) TargetSet() string { return t.Prefix + "/target/set" }

// ModeSet receives new HVAC modes.
func (t Topics) ModeSet() string { return t.Prefix + "/mode/set" }

// ClimateTargetTopic is the command topic for a climate entity's setpoint.
func ClimateTargetTopic(entityID string) string { return entityID + "/temperature/set" }

// ClimateModeTopic is the command topic for a climate entity's mode.
func ClimateModeTopic(entityID string) string { return entityID + "/mode/set" }

// SwitchTopic is the command topic for a switch entity.
func SwitchTopic(entityID string) string { return entityID + "/set" }

// Command payloads.
const (
	PayloadOn         = "ON"
	PayloadOff        = "OFF"
	PayloadClimateOff = "off"
)

// Message is one state update received from the broker.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher publishes thermostat events and status.
type Publisher interface {
	// Publish sends a source or level change to the events topic.
	Publish(event logic.Event) error
	// PublishStatus replaces the retained status.
	PublishStatus(payload []byte) error
	// Close disconnects from the broker.
	Close() error
}

// Subscriber delivers state updates for a set of topics.
type Subscriber interface {
	Subscribe(topics []string, out chan<- Message) error
}

// Commander sends device commands over the broker.
type Commander interface {
	SetClimateTarget(ctx context.Context, entityID string, temperature float64) error
	TurnOffClimate(ctx context.Context, entityID string) error
	TurnOnSwitch(ctx context.Context, entityID string) error
	TurnOffSwitch(ctx context.Context, entityID string) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ParseTemperature parses a sensor state payload.
// Sentinel states, empty payloads and anything that is not a finite number are rejected.
func ParseTemperature(payload []byte) (float64, bool) {
	s := strings.TrimSpace(string(payload))
	switch strings.ToLower(s) {
	case "", StateUnknown, StateUnavailable:
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatTemperature renders a setpoint command payload.
func FormatTemperature(v float64) []byte {
	return []byte(strconv.FormatFloat(v, 'f', 1, 64))
}

// Payload represents the MQTT event payload structure.
type Payload struct {
	Thermostat EventPayload `json:"thermostat"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	Source         string `json:"source"`
	PreviousSource string `json:"previous_source"`
	Reason         string `json:"reason,omitempty"`
	Level          int    `json:"level"`
	PreviousLevel  int    `json:"previous_level"`
}

// FormatPayload creates the JSON payload for a thermostat event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Thermostat: EventPayload{
			Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
			Event:          string(event.Type),
			Source:         string(event.Source),
			PreviousSource: string(event.PreviousSource),
			Reason:         string(event.Reason),
			Level:          event.Level,
			PreviousLevel:  event.PreviousLevel,
		},
	}
	return json.Marshal(payload)
}
