package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/smart-thermostat/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := logic.Event{
		Timestamp:      time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:           logic.EventSourceChanged,
		Source:         logic.SourcePellet,
		PreviousSource: logic.SourceHeatPump,
		Reason:         logic.ReasonTempTooLow,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Thermostat.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Thermostat.Timestamp)
	}
	if parsed.Thermostat.Event != "source_changed" {
		t.Errorf("unexpected event: %s", parsed.Thermostat.Event)
	}
	if parsed.Thermostat.Source != "pellet_stove" {
		t.Errorf("unexpected source: %s", parsed.Thermostat.Source)
	}
	if parsed.Thermostat.PreviousSource != "heat_pump" {
		t.Errorf("unexpected previous source: %s", parsed.Thermostat.PreviousSource)
	}
	if parsed.Thermostat.Reason != "outside_temp_below_minimum" {
		t.Errorf("unexpected reason: %s", parsed.Thermostat.Reason)
	}
}

func TestFormatPayloadLevelChange(t *testing.T) {
	event := logic.Event{
		Timestamp:      time.Date(2026, 2, 2, 22, 18, 12, 0, time.FixedZone("EST", -5*3600)),
		Type:           logic.EventLevelChanged,
		Source:         logic.SourcePellet,
		PreviousSource: logic.SourcePellet,
		Level:          4,
		PreviousLevel:  2,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	th := raw["thermostat"]
	if th["timestamp"] != "2026-02-03T03:18:12Z" {
		t.Errorf("timestamp should be UTC: %v", th["timestamp"])
	}
	if th["level"] != float64(4) || th["previous_level"] != float64(2) {
		t.Errorf("unexpected levels: %v -> %v", th["previous_level"], th["level"])
	}
	if _, ok := th["reason"]; ok {
		t.Error("empty reason should be omitted")
	}
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		payload string
		want    float64
		ok      bool
	}{
		{"68.5", 68.5, true},
		{" 21 ", 21, true},
		{"-4.2", -4.2, true},
		{"unknown", 0, false},
		{"unavailable", 0, false},
		{"Unavailable", 0, false},
		{"", 0, false},
		{"warm", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, ok := ParseTemperature([]byte(tt.payload))
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("value: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatTemperature(t *testing.T) {
	if got := string(FormatTemperature(68)); got != "68.0" {
		t.Errorf("got %q, want 68.0", got)
	}
	if got := string(FormatTemperature(70.25)); got != "70.2" && got != "70.3" {
		t.Errorf("got %q", got)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "thermostat"}
	tests := []struct {
		got, want string
	}{
		{topics.Events(), "thermostat/events"},
		{topics.Status(), "thermostat/status"},
		{topics.Availability(), "thermostat/availability"},
		{topics.TargetSet(), "thermostat/target/set"},
		{topics.ModeSet(), "thermostat/mode/set"},
		{ClimateTargetTopic("climate/heat_pump"), "climate/heat_pump/temperature/set"},
		{ClimateModeTopic("climate/heat_pump"), "climate/heat_pump/mode/set"},
		{SwitchTopic("switch/pellet_power"), "switch/pellet_power/set"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestFakeClient(t *testing.T) {
	f := NewFakeClient()

	event := logic.Event{
		Timestamp: time.Now(),
		Type:      logic.EventSourceChanged,
		Source:    logic.SourcePellet,
	}

	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 || len(f.Payloads) != 1 {
		t.Fatalf("expected 1 event and payload, got %d/%d", len(f.Events), len(f.Payloads))
	}
	if f.Events[0].Type != logic.EventSourceChanged {
		t.Errorf("unexpected event type: %s", f.Events[0].Type)
	}

	if err := f.PublishStatus([]byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Statuses) != 1 {
		t.Errorf("expected 1 status, got %d", len(f.Statuses))
	}

	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("expected Closed to be true")
	}

	f.Reset()
	if len(f.Events) != 0 || len(f.Statuses) != 0 || f.Closed {
		t.Error("expected Reset to clear state")
	}
}

func TestFakeClientCommands(t *testing.T) {
	f := NewFakeClient()
	ctx := context.Background()

	_ = f.SetClimateTarget(ctx, "climate/heat_pump", 68)
	_ = f.TurnOffClimate(ctx, "climate/heat_pump")
	_ = f.TurnOnSwitch(ctx, "switch/pellet_level_2")
	_ = f.TurnOffSwitch(ctx, "switch/pellet_power")

	want := []Sent{
		{"climate/heat_pump/temperature/set", "68.0"},
		{"climate/heat_pump/mode/set", "off"},
		{"switch/pellet_level_2/set", "ON"},
		{"switch/pellet_power/set", "OFF"},
	}
	if len(f.Commands) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(f.Commands))
	}
	for i := range want {
		if f.Commands[i] != want[i] {
			t.Errorf("command %d: got %+v, want %+v", i, f.Commands[i], want[i])
		}
	}
}

func TestFakeClientErrors(t *testing.T) {
	f := NewFakeClient()
	f.PublishError = errors.New("publish failed")
	f.StatusError = errors.New("status failed")
	f.CommandError = errors.New("broker down")

	if err := f.Publish(logic.Event{}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishStatus(nil); err == nil {
		t.Error("expected status error")
	}
	if err := f.TurnOnSwitch(context.Background(), "switch/x"); err == nil {
		t.Error("expected command error")
	}
	if len(f.Events) != 0 || len(f.Statuses) != 0 || len(f.Commands) != 0 {
		t.Error("failed calls should not be recorded")
	}
}

func TestFakeClientDeliver(t *testing.T) {
	f := NewFakeClient()
	out := make(chan Message, 1)

	if err := f.Subscribe([]string{"sensor/indoor"}, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Subscribed) != 1 || f.Subscribed[0] != "sensor/indoor" {
		t.Errorf("unexpected subscriptions: %v", f.Subscribed)
	}

	f.Deliver("sensor/indoor", "67.5")
	msg := <-out
	if msg.Topic != "sensor/indoor" || string(msg.Payload) != "67.5" {
		t.Errorf("unexpected message: %s %s", msg.Topic, msg.Payload)
	}
}

func TestFakeClientIsConnected(t *testing.T) {
	f := NewFakeClient()
	if f.IsConnected() {
		t.Error("expected disconnected by default")
	}
	f.Connected = true
	if !f.IsConnected() {
		t.Error("expected connected")
	}
}

// Compile-time interface checks.
var (
	_ Publisher        = (*FakeClient)(nil)
	_ Subscriber       = (*FakeClient)(nil)
	_ Commander        = (*FakeClient)(nil)
	_ ConnectionStatus = (*FakeClient)(nil)
	_ Publisher        = (*RealClient)(nil)
	_ Subscriber       = (*RealClient)(nil)
	_ Commander        = (*RealClient)(nil)
	_ ConnectionStatus = (*RealClient)(nil)
)
