// simrelay is a device-provisioning and telemetry relay for simulated
// IoT fleets. Devices connect over WebSocket, claim identities from a
// shared pool, and push telemetry; operators drive them through the
// HTTP command surface or the optional MQTT bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/simrelay/simrelay/migrations"

	"github.com/simrelay/simrelay/internal/api"
	"github.com/simrelay/simrelay/internal/identity"
	"github.com/simrelay/simrelay/internal/infrastructure/config"
	"github.com/simrelay/simrelay/internal/infrastructure/database"
	"github.com/simrelay/simrelay/internal/infrastructure/influxdb"
	"github.com/simrelay/simrelay/internal/infrastructure/logging"
	"github.com/simrelay/simrelay/internal/infrastructure/mqtt"
	"github.com/simrelay/simrelay/internal/relay"
	"github.com/simrelay/simrelay/internal/telemetry"
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

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting simrelay",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and apply migrations
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Identity pool: SQLite records plus the external credential issuer
	pool := identity.NewPool(
		identity.NewSQLiteRepository(db.DB),
		identity.NewHubIssuer(cfg.Provisioning),
		cfg.Provisioning.DevicePrefix,
		log,
	)

	// Telemetry: SQLite is the source of truth, InfluxDB an optional shadow
	var sink telemetry.MetricSink
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sink = telemetry.NewInfluxSink(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}
	recorder := telemetry.NewRecorder(telemetry.NewSQLiteRepository(db.DB), sink, log)

	// Connection registry for live device channels
	registry := relay.NewRegistry(log)

	// Optional MQTT command bridge
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP + WebSocket server
	server, err := api.New(api.Deps{
		Config:       cfg.Server,
		WebSocket:    cfg.WebSocket,
		Security:     cfg.Security,
		Provisioning: cfg.Provisioning,
		Logger:       log,
		Pool:         pool,
		Registry:     registry,
		Recorder:     recorder,
		MQTT:         mqttClient,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()

	log.Info("simrelay running", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	// Block until shutdown signal
	<-ctx.Done()
	log.Info("shutdown signal received")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses the SIMRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SIMRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
