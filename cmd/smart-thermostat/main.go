// Command smart-thermostat heats the house with a heat pump and falls back to
// a pellet stove when the heat pump cannot keep up.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/smart-thermostat/internal/command"
	"github.com/sweeney/smart-thermostat/internal/config"
	"github.com/sweeney/smart-thermostat/internal/gpio"
	"github.com/sweeney/smart-thermostat/internal/hlog"
	"github.com/sweeney/smart-thermostat/internal/logic"
	"github.com/sweeney/smart-thermostat/internal/mqtt"
	"github.com/sweeney/smart-thermostat/internal/status"
	"github.com/sweeney/smart-thermostat/internal/web"
)

// Commit is set at build time with -ldflags "-X main.Commit=...".
var Commit = "dev"

// messageQueue buffers broker messages between the paho callback and the loop.
const messageQueue = 64

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "smart-thermostat",
		Short:        "Heat pump / pellet stove thermostat",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadFile(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: search /etc/smart-thermostat and .)")
	flags.String("broker", "", "MQTT broker address")
	flags.String("http", "", "HTTP status address (empty to disable)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	bindFlag(v, "mqtt.broker", root, "broker")
	bindFlag(v, "http.addr", root, "http")
	bindFlag(v, "log.level", root, "log-level")

	root.AddCommand(newConfigCmd(v), newVersionCmd())
	return root
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Commit)
		},
	}
}

func run(cfg config.Config) error {
	log, closer, err := hlog.New(hlog.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	// Local relays, only when some switch is wired to GPIO
	var relays gpio.Relays
	if len(cfg.GPIO.Lines) > 0 {
		r, err := gpio.NewRealRelays(cfg.GPIO.Chip, cfg.Offsets(), cfg.GPIO.ActiveLow)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		relays = r
	}

	// Initialize MQTT
	client, err := mqtt.NewRealClient(log, cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Prefix)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	router := command.NewRouter(log, client, relays, cfg.LineMap())
	ctrl := logic.NewController(cfg.Logic(), router, time.Now)

	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:              cfg.MQTT.Broker,
		Prefix:              cfg.MQTT.Prefix,
		HTTPAddr:            cfg.HTTP.Addr,
		HeatPump:            cfg.Entities.HeatPump,
		PelletPowerSwitch:   cfg.Entities.PelletPowerSwitch,
		PelletLevelSwitches: cfg.Entities.PelletLevelSwitches,
		MinOutsideTemp:      cfg.MinOutsideTemp,
	})

	topics := newTopicMap(cfg)
	msgs := make(chan mqtt.Message, messageQueue)
	if err := client.Subscribe(topics.subscriptions(), msgs); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	requests := make(chan request)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := web.New(cfg.HTTP.Addr, tracker, loopControl{requests: requests}, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "http server")
			}
		}()
		defer shutdownServer(srv, log)
		log.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	// Monitor tick
	tick := make(chan time.Time, 1)
	sched := cron.New(cron.WithLogger(log.WithName("cron").V(1)))
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", logic.MonitorInterval), func() {
		select {
		case tick <- time.Now():
		default:
			// previous tick still pending
		}
	}); err != nil {
		return fmt.Errorf("schedule monitor: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("started",
		"broker", cfg.MQTT.Broker,
		"control_mode", cfg.ControlMode,
		"heat_pump", cfg.Entities.HeatPump,
		"pellet_levels", len(cfg.Entities.PelletLevelSwitches),
		"gpio_lines", len(cfg.GPIO.Lines))

	l := &loop{
		log:        log.WithName("loop"),
		ctrl:       ctrl,
		topics:     topics,
		publisher:  client,
		mqttStatus: client,
		tracker:    tracker,
		now:        time.Now,
	}
	return l.run(context.Background(), msgs, requests, tick, sigCh)
}

func shutdownServer(srv *web.Server, log logr.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "http shutdown")
	}
}
