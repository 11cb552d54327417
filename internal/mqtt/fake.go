package mqtt

import (
	"context"

	"github.com/sweeney/smart-thermostat/internal/logic"
)

// Sent is one message recorded by FakeClient.
type Sent struct {
	Topic   string
	Payload string
}

// FakeClient records published events, status and commands for test
// assertions. It implements Publisher, Subscriber, Commander and
// ConnectionStatus.
type FakeClient struct {
	// Events contains all thermostat events that were published.
	Events []logic.Event

	// Payloads contains the JSON payloads for Events.
	Payloads [][]byte

	// Statuses contains every retained status that was published.
	Statuses [][]byte

	// Commands contains every device command, in order.
	Commands []Sent

	// Subscribed holds the topics passed to Subscribe.
	Subscribed []string

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// StatusError, if set, will be returned by PublishStatus.
	StatusError error

	// CommandError, if set, will be returned by every command.
	CommandError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	out chan<- Message
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// Publish records the thermostat event.
func (f *FakeClient) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishStatus records the status payload.
func (f *FakeClient) PublishStatus(payload []byte) error {
	if f.StatusError != nil {
		return f.StatusError
	}
	f.Statuses = append(f.Statuses, payload)
	return nil
}

// Subscribe records the topics and keeps out for Deliver.
func (f *FakeClient) Subscribe(topics []string, out chan<- Message) error {
	f.Subscribed = append(f.Subscribed, topics...)
	f.out = out
	return nil
}

// Deliver sends a message to the subscribed channel as the broker would.
// It blocks until the message is accepted.
func (f *FakeClient) Deliver(topic, payload string) {
	f.out <- Message{Topic: topic, Payload: []byte(payload)}
}

// SetClimateTarget records a setpoint command.
func (f *FakeClient) SetClimateTarget(_ context.Context, entityID string, temperature float64) error {
	return f.record(ClimateTargetTopic(entityID), string(FormatTemperature(temperature)))
}

// TurnOffClimate records a climate off command.
func (f *FakeClient) TurnOffClimate(_ context.Context, entityID string) error {
	return f.record(ClimateModeTopic(entityID), PayloadClimateOff)
}

// TurnOnSwitch records a switch on command.
func (f *FakeClient) TurnOnSwitch(_ context.Context, entityID string) error {
	return f.record(SwitchTopic(entityID), PayloadOn)
}

// TurnOffSwitch records a switch off command.
func (f *FakeClient) TurnOffSwitch(_ context.Context, entityID string) error {
	return f.record(SwitchTopic(entityID), PayloadOff)
}

func (f *FakeClient) record(topic, payload string) error {
	if f.CommandError != nil {
		return f.CommandError
	}
	f.Commands = append(f.Commands, Sent{Topic: topic, Payload: payload})
	return nil
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages and scripted errors.
func (f *FakeClient) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.Statuses = nil
	f.Commands = nil
	f.Subscribed = nil
	f.Closed = false
	f.PublishError = nil
	f.StatusError = nil
	f.CommandError = nil
	f.Connected = false
}
