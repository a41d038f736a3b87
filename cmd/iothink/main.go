// IoThink Core - IoT device registry and MQTT auth service
//
// This is the main entry point for the IoThink Core application. It runs
// the device registry, the admin API, and the external-auth hook endpoints
// the MQTT broker calls to decide connect, superuser, and ACL queries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/euklyde/iothink-core/migrations"

	"github.com/euklyde/iothink-core/internal/api"
	"github.com/euklyde/iothink-core/internal/auth"
	"github.com/euklyde/iothink-core/internal/bridge"
	"github.com/euklyde/iothink-core/internal/device"
	"github.com/euklyde/iothink-core/internal/infrastructure/config"
	"github.com/euklyde/iothink-core/internal/infrastructure/database"
	"github.com/euklyde/iothink-core/internal/infrastructure/influxdb"
	"github.com/euklyde/iothink-core/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting IoThink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Seed the initial admin account on first boot
	adminRepo := auth.NewAdminRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, adminRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Device registry service
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceService := device.NewService(deviceRepo, device.ServiceConfig{
		JWTSecret:      cfg.Security.JWT.Secret,
		AccessTokenTTL: cfg.Security.JWT.AccessTokenTTL,
		BrokerHost:     cfg.Broker.Host,
		BrokerPort:     cfg.Broker.Port,
		TopicPrefix:    cfg.Broker.TopicPrefix,
		SystemUsername: cfg.Security.System.Username,
	}, log)
	log.Info("device registry initialised", "topic_prefix", cfg.Broker.TopicPrefix)

	// MQTT auth bridge - decides the broker's connect/superuser/ACL queries
	authBridge := bridge.New(deviceRepo, bridge.Config{
		JWTSecret:      cfg.Security.JWT.Secret,
		TopicPrefix:    cfg.Broker.TopicPrefix,
		SystemUsername: cfg.Security.System.Username,
		SystemAPIKey:   cfg.Security.System.APIKey,
	}, log)

	// Inactivity sweep - demotes devices not seen within the threshold
	maintenance := device.NewMaintenance(
		deviceService,
		cfg.GetSweepInterval(),
		cfg.GetInactiveThreshold(),
		log,
	)
	go maintenance.Run(ctx)
	log.Info("inactivity sweep started",
		"interval", cfg.GetSweepInterval(),
		"threshold", cfg.GetInactiveThreshold(),
	)

	// Connect to InfluxDB (optional, read-only sensor liveness)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			influxClient.Close()
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start HTTP API server
	apiDeps := api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Devices:  deviceService,
		Bridge:   authBridge,
		Admins:   adminRepo,
		Version:  version,
	}
	if influxClient != nil {
		apiDeps.Sensors = influxClient
	}

	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. Database

	log.Info("IoThink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IOTHINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IOTHINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
