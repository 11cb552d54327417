package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/smart-thermostat/internal/logic"
)

const validYAML = `
mqtt:
  broker: tcp://192.168.1.200:1883
entities:
  heat_pump: climate/Heat_Pump
  pellet_power_switch: switch/pellet_power
  pellet_level_switches:
    - switch/pellet_level_1
    - switch/pellet_level_2
    - switch/pellet_level_3
  indoor_sensor: sensor/living_room_temperature
  outdoor_sensor: sensor/outdoor_temperature
gpio:
  lines:
    - entity: switch/pellet_level_1
      line: 17
    - entity: switch/pellet_level_2
      line: 27
`

func load(t *testing.T, doc string) (Config, error) {
	t.Helper()
	v := New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		t.Fatalf("read config: %v", err)
	}
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, validYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.MQTT.ClientID != "smart-thermostat" {
		t.Errorf("MQTT.ClientID: got %q", cfg.MQTT.ClientID)
	}
	if cfg.MQTT.Prefix != "thermostat" {
		t.Errorf("MQTT.Prefix: got %q", cfg.MQTT.Prefix)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: got %q", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.MinOutsideTemp != 40 {
		t.Errorf("MinOutsideTemp: got %v, want 40", cfg.MinOutsideTemp)
	}
	if cfg.ControlMode != "pid" {
		t.Errorf("ControlMode: got %q, want pid", cfg.ControlMode)
	}
	if cfg.PID != (PID{Kp: 1.0, Ki: 0.1, Kd: 0.05}) {
		t.Errorf("PID: got %+v", cfg.PID)
	}
	if cfg.InitialTarget != 68 {
		t.Errorf("InitialTarget: got %v, want 68", cfg.InitialTarget)
	}
	if cfg.GPIO.Chip != "gpiochip0" {
		t.Errorf("GPIO.Chip: got %q", cfg.GPIO.Chip)
	}
}

func TestEntityIDsKeepCase(t *testing.T) {
	cfg, err := load(t, validYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Entities.HeatPump != "climate/Heat_Pump" {
		t.Errorf("HeatPump: got %q", cfg.Entities.HeatPump)
	}
}

func TestLogicConversion(t *testing.T) {
	cfg, err := load(t, validYAML+"control_mode: on_off\nmin_outside_temp: 25\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lc := cfg.Logic()
	if lc.ControlMode != logic.ControlOnOff {
		t.Errorf("ControlMode: got %q", lc.ControlMode)
	}
	if lc.MinOutsideTemp != 25 {
		t.Errorf("MinOutsideTemp: got %v", lc.MinOutsideTemp)
	}
	if len(lc.PelletLevelSwitches) != 3 || lc.PelletLevelSwitches[2] != "switch/pellet_level_3" {
		t.Errorf("PelletLevelSwitches: got %v", lc.PelletLevelSwitches)
	}
	if lc.Gains.Ki != 0.1 {
		t.Errorf("Gains.Ki: got %v", lc.Gains.Ki)
	}

	// The copy is independent of the config.
	lc.PelletLevelSwitches[0] = "changed"
	if cfg.Entities.PelletLevelSwitches[0] != "switch/pellet_level_1" {
		t.Error("Logic should copy the level switches")
	}
}

func TestLineMap(t *testing.T) {
	cfg, err := load(t, validYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := cfg.LineMap()
	if len(lines) != 2 || lines["switch/pellet_level_1"] != 17 || lines["switch/pellet_level_2"] != 27 {
		t.Errorf("LineMap: got %v", lines)
	}
	offsets := cfg.Offsets()
	if len(offsets) != 2 || offsets[0] != 17 || offsets[1] != 27 {
		t.Errorf("Offsets: got %v", offsets)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("THERMOSTAT_MQTT_BROKER", "tcp://broker.lan:1883")
	t.Setenv("THERMOSTAT_MIN_OUTSIDE_TEMP", "30")

	cfg, err := load(t, validYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://broker.lan:1883" {
		t.Errorf("MQTT.Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.MinOutsideTemp != 30 {
		t.Errorf("MinOutsideTemp: got %v, want 30", cfg.MinOutsideTemp)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg, err := load(t, validYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Entities.HeatPump = ""
	cfg.Entities.PelletLevelSwitches = nil
	cfg.MinOutsideTemp = 120
	cfg.ControlMode = "bang_bang"
	cfg.PID.Kd = -1
	cfg.GPIO.Lines = nil

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		"entities.heat_pump is required",
		"pellet_level_switches needs at least one switch",
		"min_outside_temp 120",
		`control_mode "bang_bang"`,
		"pid.kd -1",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"min outside at low bound", func(c *Config) { c.MinOutsideTemp = -20 }, false},
		{"min outside at high bound", func(c *Config) { c.MinOutsideTemp = 100 }, false},
		{"min outside below", func(c *Config) { c.MinOutsideTemp = -20.5 }, true},
		{"initial target at low bound", func(c *Config) { c.InitialTarget = 60 }, false},
		{"initial target at high bound", func(c *Config) { c.InitialTarget = 80 }, false},
		{"initial target below", func(c *Config) { c.InitialTarget = 59.9 }, true},
		{"initial target above", func(c *Config) { c.InitialTarget = 85 }, true},
		{"gain at bound", func(c *Config) { c.PID.Kp = 100 }, false},
		{"gain above", func(c *Config) { c.PID.Ki = 100.1 }, true},
		{"on_off", func(c *Config) { c.ControlMode = "on_off" }, false},
		{"empty level switch", func(c *Config) { c.Entities.PelletLevelSwitches = []string{" "} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(t, validYAML)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateGPIO(t *testing.T) {
	tests := []struct {
		name  string
		lines []LineMapping
		want  string
	}{
		{"unknown entity", []LineMapping{{"switch/kettle", 5}}, "not a configured switch"},
		{"negative line", []LineMapping{{"switch/pellet_power", -1}}, "negative line"},
		{"entity twice", []LineMapping{{"switch/pellet_power", 5}, {"switch/pellet_power", 6}}, "mapped twice"},
		{"line twice", []LineMapping{{"switch/pellet_power", 5}, {"switch/pellet_level_1", 5}}, "line 5 mapped twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(t, validYAML)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			cfg.GPIO.Lines = tt.lines
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := load(t, "mqtt:\n  broker: tcp://x:1883\n")
	if err == nil {
		t.Fatal("expected error for missing entities")
	}
	if !strings.HasPrefix(err.Error(), "invalid config: ") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermostat.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v := New()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Entities.IndoorSensor != "sensor/living_room_temperature" {
		t.Errorf("IndoorSensor: got %q", cfg.Entities.IndoorSensor)
	}
}

func TestReadFileMissing(t *testing.T) {
	v := New()
	err := ReadFile(v, filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestReadFileSearchNotFound(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	v := viper.New()
	if err := ReadFile(v, ""); err != nil {
		t.Errorf("missing file in search path should not fail: %v", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg, err := load(t, validYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := cfg.YAML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if back.Entities.HeatPump != cfg.Entities.HeatPump || len(back.GPIO.Lines) != 2 {
		t.Errorf("round trip lost data: %+v", back)
	}
	if err := back.Validate(); err != nil {
		t.Errorf("dumped config should validate: %v", err)
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	err := Config{}.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) < 2 {
		t.Errorf("expected joined errors, got %v", err)
	}
}
