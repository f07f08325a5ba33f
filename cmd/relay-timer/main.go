// Command relay-timer cycles a relay between configurable ON and OFF periods,
// adjusted at runtime by two buttons, and publishes transitions to MQTT.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/relay-timer/internal/config"
	"github.com/sweeney/relay-timer/internal/gpio"
	"github.com/sweeney/relay-timer/internal/logger"
	"github.com/sweeney/relay-timer/internal/logic"
	"github.com/sweeney/relay-timer/internal/mqtt"
	"github.com/sweeney/relay-timer/internal/status"
	"github.com/sweeney/relay-timer/internal/web"
)

// edgeQueue bounds button notifications waiting for the run loop.
const edgeQueue = 16

var (
	// configPath to the configuration YAML file.
	configPath string
	// broker overrides mqtt.broker ("off" disables publishing).
	broker string
	// httpAddr overrides the status server address ("off" disables it).
	httpAddr string
	// logLevel overrides log.level.
	logLevel string
	// printConfig prints the effective configuration and exits.
	printConfig bool

	rootCmd = &cobra.Command{
		Use:   "relay-timer",
		Short: "Cycle a relay between adjustable ON and OFF periods.",
		Long: `Drives a relay output ON and OFF forever. Button A steps the OFF period and
button B steps the ON period; each wraps back to its minimum after its maximum.
Two indicator LEDs blink in proportion to the configured periods.

Relay transitions and period changes are published to MQTT, and a status
page is served over HTTP.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if printConfig {
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			closer := setupLogging(cfg.Log)
			if closer != nil {
				defer closer.Close()
			}

			return run(context.Background(), cfg)
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (defaults when empty)")
	rootCmd.Flags().StringVar(&broker, "broker", "", `MQTT broker address ("off" disables)`)
	rootCmd.Flags().StringVar(&httpAddr, "http", "", `HTTP status address ("off" disables)`)
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Logger().Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("broker") {
		cfg.MQTT.Broker = disableable(broker)
	}
	if cmd.Flags().Changed("http") {
		cfg.HTTP = disableable(httpAddr)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func disableable(v string) string {
	if v == "off" {
		return ""
	}
	return v
}

// setupLogging installs the global logger. It returns the log file closer, if any.
func setupLogging(l config.Log) io.Closer {
	level, ok := logger.ParseLogLevel(l.Level)
	logger.SetLevel(level)

	var closer io.Closer
	if l.File != "" {
		log, rotator := logger.NewWithFile(nil, logger.FileConfig{
			Path:       l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
			MaxAgeDays: l.MaxAgeDays,
		})
		logger.SetLogger(log)
		closer = rotator
	}

	if !ok {
		logger.Logger().Warnf("unknown log level %q, using %s", l.Level, level)
	}
	return closer
}

// publisher is what the run loop needs from the MQTT layer.
type publisher interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx = logger.WithName(ctx, "relay-timer")

	// Initialize GPIO
	outputs, err := gpio.NewRealOutputs(cfg.GPIO())
	if err != nil {
		return fmt.Errorf("init outputs: %w", err)
	}
	defer func() {
		if err := outputs.Close(); err != nil {
			logger.Errorf(ctx, "release outputs: %v", err)
		}
	}()

	edges := make(chan logic.Pending, edgeQueue)
	buttons := gpio.NewRealButtons(cfg.GPIO(), cfg.Debounce)
	if err := buttons.Start(func(p logic.Pending) {
		select {
		case edges <- p:
		default:
			logger.Warnf(ctx, "edge queue full, dropping notification %b", p)
		}
	}); err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	// Initialize MQTT
	var pub publisher = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		pub = mqtt.NewRealPublisher(ctx, mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Encoding:   mqtt.Encoding(cfg.MQTT.Payload),
			BufferSize: cfg.MQTT.Buffer,
		})
	}
	defer pub.Close()

	start := time.Now()
	tracker := status.NewTracker(start, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	ctrl := logic.NewController(cfg.Logic(), start)
	tracker.Update(ctrl.Snapshot())
	ctx = logger.WithKV(ctx, "boot_id", tracker.Snapshot().BootID)

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf(ctx, "http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infof(ctx, "http status server listening on %s", cfg.HTTP)
	}

	logger.InfoKV(ctx, "started",
		"tick", cfg.Tick, "poll", cfg.Poll, "broker", cfg.MQTT.Broker,
		"on", cfg.Logic().On, "off", cfg.Logic().Off)

	tick := time.NewTicker(cfg.Tick)
	defer tick.Stop()
	poll := time.NewTicker(cfg.Poll)
	defer poll.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	l := &loop{
		ctrl:      ctrl,
		outputs:   outputs,
		publisher: pub,
		mqtt:      pub,
		tracker:   tracker,
		heartbeat: cfg.MQTT.Heartbeat,
		now:       time.Now,
	}
	return l.run(ctx, tick.C, poll.C, edges, sigCh)
}

func statusConfig(cfg *config.Config) status.Config {
	l := cfg.Logic()
	return status.Config{
		TickMs:         cfg.Tick.Milliseconds(),
		PollMs:         cfg.Poll.Milliseconds(),
		TicksPerSecond: cfg.TicksPerSecond,
		On:             l.On,
		Off:            l.Off,
		HeartbeatMs:    cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		Payload:        cfg.MQTT.Payload,
		HTTPAddr:       cfg.HTTP,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
