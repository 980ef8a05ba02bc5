// PlantOps Core - Plant Monitoring Backend
//
// This is the main entry point for the PlantOps Core application.
// PlantOps ingests telemetry and heartbeats from potted-plant sensor
// devices over MQTT, evaluates readings against per-plant thresholds,
// tracks device liveness, and dispatches alerts to a webhook.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/plantops/plantops-core/migrations"

	"github.com/plantops/plantops-core/internal/alerting"
	"github.com/plantops/plantops-core/internal/api"
	"github.com/plantops/plantops-core/internal/careplan"
	"github.com/plantops/plantops-core/internal/device"
	"github.com/plantops/plantops-core/internal/infrastructure/config"
	"github.com/plantops/plantops-core/internal/infrastructure/database"
	"github.com/plantops/plantops-core/internal/infrastructure/influxdb"
	"github.com/plantops/plantops-core/internal/infrastructure/logging"
	"github.com/plantops/plantops-core/internal/infrastructure/mqtt"
	"github.com/plantops/plantops-core/internal/ingest"
	"github.com/plantops/plantops-core/internal/liveness"
	"github.com/plantops/plantops-core/internal/notify"
	"github.com/plantops/plantops-core/internal/plant"
	"github.com/plantops/plantops-core/internal/queue"
	"github.com/plantops/plantops-core/internal/telemetry"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
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
	log.Info("starting PlantOps Core",
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	plantRepo := plant.NewSQLiteRepository(db.DB)
	deviceRepo := device.NewSQLiteRepository(db.DB)
	readingRepo := telemetry.NewSQLiteRepository(db.DB)
	alertRepo := alerting.NewSQLiteRepository(db.DB)
	planRepo := careplan.NewSQLiteRepository(db.DB)

	// Optional InfluxDB mirror
	mirror := influxdb.NewWriter(cfg.InfluxDB, log)
	if mirror != nil {
		defer func() {
			log.Info("closing InfluxDB mirror")
			mirror.Close()
		}()
		log.Info("InfluxDB mirror enabled",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	// Queues
	alertQueue := queue.New[alerting.Notification](cfg.Queues.AlertCapacity)
	planQueue := queue.New[careplan.Request](cfg.Queues.CarePlanCapacity)

	// Alert pipeline
	evaluator := alerting.NewEvaluator(alertRepo, cfg.AlertCooldown(), log)
	notifier := notify.NewNotifier(cfg.Notifier, log)
	dispatcher := notify.NewDispatcher(notifier, log)
	if !notifier.Enabled() {
		log.Warn("no webhook configured, alerts will be dropped")
	}

	// Background goroutines, joined before exit
	var wg sync.WaitGroup

	alertWorker := queue.NewWorker("alerts", alertQueue, dispatcher.Handle,
		cfg.NotifierTimeout(), log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		alertWorker.Run(ctx)
	}()

	// Care plan pipeline (optional)
	if cfg.LLM.Enabled {
		generator := careplan.NewLLMClient(cfg.LLM)
		planWorker := careplan.NewWorker(readingRepo, planRepo, generator, log)
		worker := queue.NewWorker("careplans", planQueue, planWorker.Handle,
			cfg.LLMTimeout(), log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
		log.Info("care plan generation enabled", "model", cfg.LLM.Model)
	} else {
		log.Info("care plan generation disabled")
	}

	// Liveness tracking
	tracker := liveness.NewTracker(deviceRepo, plantRepo, alertQueue,
		cfg.LivenessTimeout(), log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		tracker.Run(ctx, cfg.SweepInterval())
	}()

	// Telemetry ingest
	var ingestMirror ingest.Mirror
	if mirror != nil {
		ingestMirror = mirror
	}
	ingestHandler := ingest.NewHandler(deviceRepo, plantRepo, readingRepo,
		evaluator, alertQueue, ingestMirror, log)

	// MQTT router
	transport := mqtt.NewPahoTransport(cfg.MQTT)
	router := mqtt.NewRouter(transport,
		cfg.ReconnectInitialDelay(), cfg.ReconnectMaxDelay(), log)

	topics := mqtt.Topics{}
	if err := router.Handle(topics.AllTelemetry(), ingestHandler.HandleTelemetry); err != nil {
		return fmt.Errorf("registering telemetry route: %w", err)
	}
	if err := router.Handle(topics.AllHeartbeats(), tracker.HandleHeartbeat); err != nil {
		return fmt.Errorf("registering heartbeat route: %w", err)
	}

	routerErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		routerErr <- router.Run(ctx)
	}()
	defer func() {
		log.Info("closing MQTT router")
		router.Close()
	}()

	// HTTP API
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Broker:   router,
		Database: db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown or a fatal router error (initial connect failure)
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-routerErr:
		if err != nil {
			return fmt.Errorf("mqtt router: %w", err)
		}
	}

	// Stop background goroutines before the deferred closes run
	wg.Wait()

	log.Info("PlantOps Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PLANTOPS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PLANTOPS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
