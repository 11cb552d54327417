// Package status provides a thread-safe status tracker for the thermostat daemon.
// It is written by the event loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/smart-thermostat/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker              string
	Prefix              string
	HTTPAddr            string
	HeatPump            string
	PelletPowerSwitch   string
	PelletLevelSwitches []string
	MinOutsideTemp      float64
}

// Counts tallies the events published since startup.
type Counts struct {
	SourceChanges int
	LevelChanges  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Attributes    logic.Attributes
	History       []float64
	Counts        Counts
	LastError     string
	LastErrorTime time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	cfg.PelletLevelSwitches = append([]string(nil), cfg.PelletLevelSwitches...)
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the controller attributes and trend window.
// Called from runLoop after every event.
func (t *Tracker) Update(attrs logic.Attributes, history []float64) {
	h := append([]float64(nil), history...)
	t.mu.Lock()
	t.snap.Attributes = attrs
	t.snap.History = h
	t.mu.Unlock()
}

// RecordEvents adds published events to the counts.
func (t *Tracker) RecordEvents(events []logic.Event) {
	t.mu.Lock()
	for _, e := range events {
		switch e.Type {
		case logic.EventSourceChanged:
			t.snap.Counts.SourceChanges++
		case logic.EventLevelChanged:
			t.snap.Counts.LevelChanges++
		}
	}
	t.mu.Unlock()
}

// SetError records the most recent cycle failure. A nil err is ignored; the
// last error stays visible until the next one.
func (t *Tracker) SetError(err error, at time.Time) {
	if err == nil {
		return
	}
	t.mu.Lock()
	t.snap.LastError = err.Error()
	t.snap.LastErrorTime = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
