// Package config loads the daemon configuration from file, environment and
// flags with viper, and validates it once at startup.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/smart-thermostat/internal/gpio"
	"github.com/sweeney/smart-thermostat/internal/logic"
	"github.com/sweeney/smart-thermostat/internal/mqtt"
	"github.com/sweeney/smart-thermostat/internal/pid"
)

// EnvPrefix prefixes environment overrides: mqtt.broker is THERMOSTAT_MQTT_BROKER.
const EnvPrefix = "THERMOSTAT"

// Name is the config file name searched for when no file is given.
const Name = "smart-thermostat"

// Allowed ranges.
const (
	MinOutsideTempLow  = -20.0
	MinOutsideTempHigh = 100.0
	MaxGain            = 100.0
)

// Config is the validated daemon configuration. Immutable after Load.
type Config struct {
	MQTT           MQTT     `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP           HTTP     `mapstructure:"http" yaml:"http"`
	Log            Log      `mapstructure:"log" yaml:"log"`
	Entities       Entities `mapstructure:"entities" yaml:"entities"`
	MinOutsideTemp float64  `mapstructure:"min_outside_temp" yaml:"min_outside_temp"`
	ControlMode    string   `mapstructure:"control_mode" yaml:"control_mode"`
	PID            PID      `mapstructure:"pid" yaml:"pid"`
	InitialTarget  float64  `mapstructure:"initial_target" yaml:"initial_target"`
	GPIO           GPIO     `mapstructure:"gpio" yaml:"gpio"`
}

// MQTT holds the broker connection.
type MQTT struct {
	Broker   string `mapstructure:"broker" yaml:"broker"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// HTTP holds the status server address. Empty disables the server.
type HTTP struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Log selects level and optional rotated file.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Entities names the devices the thermostat reads and drives. Sensor ids are
// the MQTT topics carrying their state.
type Entities struct {
	HeatPump            string   `mapstructure:"heat_pump" yaml:"heat_pump"`
	PelletPowerSwitch   string   `mapstructure:"pellet_power_switch" yaml:"pellet_power_switch"`
	PelletLevelSwitches []string `mapstructure:"pellet_level_switches" yaml:"pellet_level_switches"`
	IndoorSensor        string   `mapstructure:"indoor_sensor" yaml:"indoor_sensor"`
	OutdoorSensor       string   `mapstructure:"outdoor_sensor" yaml:"outdoor_sensor"`
}

// PID holds the regulator gains.
type PID struct {
	Kp float64 `mapstructure:"kp" yaml:"kp"`
	Ki float64 `mapstructure:"ki" yaml:"ki"`
	Kd float64 `mapstructure:"kd" yaml:"kd"`
}

// GPIO maps switch entities onto local relay lines. Switches without a line
// are driven over MQTT.
type GPIO struct {
	Chip      string        `mapstructure:"chip" yaml:"chip"`
	ActiveLow bool          `mapstructure:"active_low" yaml:"active_low"`
	Lines     []LineMapping `mapstructure:"lines" yaml:"lines"`
}

// LineMapping binds one switch entity to a GPIO line offset.
type LineMapping struct {
	Entity string `mapstructure:"entity" yaml:"entity"`
	Line   int    `mapstructure:"line" yaml:"line"`
}

// SetDefaults registers every key with its default. Keys without a default are
// registered empty so that environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("mqtt.client_id", Name)
	v.SetDefault("mqtt.prefix", mqtt.DefaultPrefix)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("entities.heat_pump", "")
	v.SetDefault("entities.pellet_power_switch", "")
	v.SetDefault("entities.pellet_level_switches", []string{})
	v.SetDefault("entities.indoor_sensor", "")
	v.SetDefault("entities.outdoor_sensor", "")
	v.SetDefault("min_outside_temp", 40.0)
	v.SetDefault("control_mode", string(logic.ControlPID))
	v.SetDefault("pid.kp", 1.0)
	v.SetDefault("pid.ki", 0.1)
	v.SetDefault("pid.kd", 0.05)
	v.SetDefault("initial_target", 68.0)
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.active_low", false)
}

// New returns a viper instance with defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads path into v. With an empty path the standard locations are
// searched and a missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(Name)
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/" + Name)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	if c.MQTT.Prefix == "" {
		errs = append(errs, errors.New("mqtt.prefix is required"))
	}

	required := []struct{ key, val string }{
		{"entities.heat_pump", c.Entities.HeatPump},
		{"entities.pellet_power_switch", c.Entities.PelletPowerSwitch},
		{"entities.indoor_sensor", c.Entities.IndoorSensor},
		{"entities.outdoor_sensor", c.Entities.OutdoorSensor},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if len(c.Entities.PelletLevelSwitches) == 0 {
		errs = append(errs, errors.New("entities.pellet_level_switches needs at least one switch"))
	}
	for i, sw := range c.Entities.PelletLevelSwitches {
		if strings.TrimSpace(sw) == "" {
			errs = append(errs, fmt.Errorf("entities.pellet_level_switches[%d] is empty", i))
		}
	}

	if c.MinOutsideTemp < MinOutsideTempLow || c.MinOutsideTemp > MinOutsideTempHigh {
		errs = append(errs, fmt.Errorf("min_outside_temp %v outside [%v, %v]",
			c.MinOutsideTemp, MinOutsideTempLow, MinOutsideTempHigh))
	}

	if c.InitialTarget < logic.MinTarget || c.InitialTarget > logic.MaxTarget {
		errs = append(errs, fmt.Errorf("initial_target %v outside [%v, %v]",
			c.InitialTarget, logic.MinTarget, logic.MaxTarget))
	}

	switch logic.ControlMode(c.ControlMode) {
	case logic.ControlPID, logic.ControlOnOff:
	default:
		errs = append(errs, fmt.Errorf("control_mode %q must be %s or %s",
			c.ControlMode, logic.ControlPID, logic.ControlOnOff))
	}

	gains := []struct {
		key string
		val float64
	}{{"pid.kp", c.PID.Kp}, {"pid.ki", c.PID.Ki}, {"pid.kd", c.PID.Kd}}
	for _, g := range gains {
		if g.val < 0 || g.val > MaxGain {
			errs = append(errs, fmt.Errorf("%s %v outside [0, %v]", g.key, g.val, MaxGain))
		}
	}

	errs = append(errs, c.validateGPIO()...)
	return errors.Join(errs...)
}

func (c Config) validateGPIO() []error {
	if len(c.GPIO.Lines) == 0 {
		return nil
	}

	var errs []error
	if c.GPIO.Chip == "" {
		errs = append(errs, errors.New("gpio.chip is required when gpio.lines is set"))
	}

	switches := map[string]bool{c.Entities.PelletPowerSwitch: true}
	for _, sw := range c.Entities.PelletLevelSwitches {
		switches[sw] = true
	}

	entities := make(map[string]bool)
	lines := make(map[int]bool)
	for _, m := range c.GPIO.Lines {
		if !switches[m.Entity] {
			errs = append(errs, fmt.Errorf("gpio.lines: %q is not a configured switch", m.Entity))
		}
		if m.Line < 0 {
			errs = append(errs, fmt.Errorf("gpio.lines: %q has negative line %d", m.Entity, m.Line))
		}
		if entities[m.Entity] {
			errs = append(errs, fmt.Errorf("gpio.lines: %q mapped twice", m.Entity))
		}
		if lines[m.Line] {
			errs = append(errs, fmt.Errorf("gpio.lines: line %d mapped twice", m.Line))
		}
		entities[m.Entity] = true
		lines[m.Line] = true
	}
	return errs
}

// Logic returns the controller configuration.
func (c Config) Logic() logic.Config {
	return logic.Config{
		HeatPump:            c.Entities.HeatPump,
		PelletPowerSwitch:   c.Entities.PelletPowerSwitch,
		PelletLevelSwitches: append([]string(nil), c.Entities.PelletLevelSwitches...),
		MinOutsideTemp:      c.MinOutsideTemp,
		ControlMode:         logic.ControlMode(c.ControlMode),
		Gains:               pid.Gains{Kp: c.PID.Kp, Ki: c.PID.Ki, Kd: c.PID.Kd},
		InitialTarget:       c.InitialTarget,
	}
}

// LineMap returns switch entity to GPIO line.
func (c Config) LineMap() map[string]int {
	m := make(map[string]int, len(c.GPIO.Lines))
	for _, l := range c.GPIO.Lines {
		m[l.Entity] = l.Line
	}
	return m
}

// Offsets returns the mapped GPIO lines in configuration order.
func (c Config) Offsets() []int {
	offsets := make([]int, 0, len(c.GPIO.Lines))
	for _, l := range c.GPIO.Lines {
		offsets = append(offsets, l.Line)
	}
	return offsets
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
