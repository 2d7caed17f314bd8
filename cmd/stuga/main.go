// Stuga Core - hub state-synchronization daemon
//
// This is the main entry point for the headless Stuga core. It maintains
// the long-lived WebSocket connection to the hub, mirrors the registries,
// and optionally fans authoritative state changes out to the InfluxDB
// telemetry sink and the MQTT relay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stugahq/stuga-core/internal/core"
	"github.com/stugahq/stuga-core/internal/credstore"
	"github.com/stugahq/stuga-core/internal/diag"
	"github.com/stugahq/stuga-core/internal/infrastructure/config"
	"github.com/stugahq/stuga-core/internal/infrastructure/logging"
	"github.com/stugahq/stuga-core/internal/relay"
	"github.com/stugahq/stuga-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Stuga Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// The credential store only matters for refresh-token auth; with a
	// static token it stays closed.
	var creds *credstore.Store
	if cfg.Hub.UseOAuth {
		creds, err = credstore.Open(cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("opening credential store: %w", err)
		}
		defer func() {
			if closeErr := creds.Close(); closeErr != nil {
				log.Error("error closing credential store", "error", closeErr)
			}
		}()
		log.Info("credential store opened", "path", cfg.Database.Path)
	}

	opts := core.Options{
		Config: cfg,
		Logger: log,
	}
	if creds != nil {
		opts.Credentials = creds
	}
	c := core.New(opts)

	// Optional sinks.
	if cfg.InfluxDB.Enabled {
		tele, teleErr := telemetry.Connect(cfg.InfluxDB)
		if teleErr != nil {
			return fmt.Errorf("connecting telemetry sink: %w", teleErr)
		}
		tele.SetOnError(func(err error) {
			log.Warn("telemetry write failed", "error", err)
		})
		defer tele.Close() //nolint:errcheck // shutdown path
		c.AddStateSink(tele)
		log.Info("telemetry sink connected", "url", cfg.InfluxDB.URL)
	}

	if cfg.MQTT.Enabled {
		rly, relayErr := relay.Connect(cfg.MQTT, log)
		if relayErr != nil {
			return fmt.Errorf("connecting state relay: %w", relayErr)
		}
		defer rly.Close() //nolint:errcheck // shutdown path
		c.AddStateSink(rly)
		log.Info("state relay connected", "host", cfg.MQTT.Host, "port", cfg.MQTT.Port)
	}

	offErr := c.OnConnectionError(func(report diag.Report) {
		log.Error("hub connection failure classified",
			"https_reachable", report.HTTPSReachable,
			"websocket_reachable", report.WebsocketReachable,
			"error_type", report.ErrorType,
		)
	})
	defer offErr()

	if err := c.Connect(); err != nil {
		// The reconnect cycle is already running; log and keep going.
		log.Warn("initial hub connection failed", "error", err)
	}

	log.Info("Stuga Core running", "hub", cfg.Hub.URL)

	<-ctx.Done()
	log.Info("shutdown signal received")

	c.Disconnect()
	log.Info("Stuga Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STUGA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STUGA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
