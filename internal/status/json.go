package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/smart-thermostat/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string     `json:"event,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	Mode             string     `json:"hvac_mode"`
	Action           string     `json:"hvac_action"`
	ActiveSource     string     `json:"active_source"`
	SourceReason     string     `json:"source_reason"`
	ControlMode      string     `json:"control_mode"`
	Indoor           *float64   `json:"current_temperature"`
	Outdoor          *float64   `json:"outside_temperature"`
	Target           float64    `json:"target_temperature"`
	PelletLevel      int        `json:"pellet_level"`
	PIDOutput        *float64   `json:"pid_output,omitempty"`
	LastTargetChange string     `json:"last_target_change"`
	History          []float64  `json:"temperature_history"`
	LastError        string     `json:"last_error,omitempty"`
	LastErrorTime    string     `json:"last_error_time,omitempty"`
	UptimeSeconds    int64      `json:"uptime_seconds"`
	StartTime        string     `json:"start_time"`
	Timestamp        string     `json:"timestamp"`
	MQTT             MQTTStatus `json:"mqtt"`
	Counts           CountsJSON `json:"event_counts"`
	Config           ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	SourceChanged int `json:"source_changed"`
	LevelChanged  int `json:"level_changed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker              string   `json:"broker"`
	Prefix              string   `json:"prefix"`
	HTTPAddr            string   `json:"http_addr"`
	HeatPump            string   `json:"heat_pump"`
	PelletPowerSwitch   string   `json:"pellet_power_switch"`
	PelletLevelSwitches []string `json:"pellet_level_switches"`
	MinOutsideTemp      float64  `json:"min_outside_temp"`
}

func temperature(t logic.Temperature) *float64 {
	if !t.Known {
		return nil
	}
	v := t.Value
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	a := snap.Attributes
	history := snap.History
	if history == nil {
		history = []float64{}
	}
	levels := snap.Config.PelletLevelSwitches
	if levels == nil {
		levels = []string{}
	}

	inner := StatusInner{
		Mode:          string(a.Mode),
		Action:        string(a.Action),
		ActiveSource:  string(a.ActiveSource),
		SourceReason:  string(a.SourceReason),
		ControlMode:   string(a.ControlMode),
		Indoor:        temperature(a.Indoor),
		Outdoor:       temperature(a.Outdoor),
		Target:        a.Target,
		PelletLevel:   a.PelletLevel,
		History:       history,
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			SourceChanged: snap.Counts.SourceChanges,
			LevelChanged:  snap.Counts.LevelChanges,
		},
		Config: ConfigJSON{
			Broker:              snap.Config.Broker,
			Prefix:              snap.Config.Prefix,
			HTTPAddr:            snap.Config.HTTPAddr,
			HeatPump:            snap.Config.HeatPump,
			PelletPowerSwitch:   snap.Config.PelletPowerSwitch,
			PelletLevelSwitches: levels,
			MinOutsideTemp:      snap.Config.MinOutsideTemp,
		},
	}
	if a.ControlMode == logic.ControlPID {
		out := a.PIDOutput
		inner.PIDOutput = &out
	}
	if !a.LastTargetChange.IsZero() {
		inner.LastTargetChange = a.LastTargetChange.UTC().Format(time.RFC3339)
	}
	if !snap.LastErrorTime.IsZero() {
		inner.LastErrorTime = snap.LastErrorTime.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for the retained MQTT status topic.
// event names what triggered it ("startup", "update", "shutdown").
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
