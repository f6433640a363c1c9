// Gray Logic Hub - unified smart-home device core
//
// This is the main entry point for the hub. It puts SmartThings, Tuya and
// Home Assistant devices behind one directory, caches their state, executes
// commands with retry and confirmation, and optionally serves an HTTP and
// WebSocket API, bridges state over MQTT, journals every command in SQLite and
// exports hub metrics to InfluxDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/adapter/homeassistant"
	"github.com/nerrad567/gray-logic-hub/internal/adapter/smartthings"
	"github.com/nerrad567/gray-logic-hub/internal/adapter/tuya"
	"github.com/nerrad567/gray-logic-hub/internal/api"
	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/directory"
	"github.com/nerrad567/gray-logic-hub/internal/executor"
	"github.com/nerrad567/gray-logic-hub/internal/hub"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/ingest"
	"github.com/nerrad567/gray-logic-hub/internal/retry"
	"github.com/nerrad567/gray-logic-hub/internal/statecache"
	"github.com/nerrad567/gray-logic-hub/migrations"
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

// shutdownTimeout bounds adapter disposal on exit.
const shutdownTimeout = 10 * time.Second

// errNoBackends is returned when every enabled adapter failed to start.
var errNoBackends = errors.New("no backend adapter could be initialized")

func main() {
	migrateStatus := flag.Bool("migrate-status", false, "print applied and pending schema migrations, then exit")
	migrateDown := flag.Bool("migrate-down", false, "roll back the most recent schema migration, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch {
	case *migrateDown:
		err = runMigrate(ctx, migrateModeDown, os.Stdout)
	case *migrateStatus:
		err = runMigrate(ctx, migrateModeStatus, os.Stdout)
	default:
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"backends", cfg.EnabledBackends(),
	)

	dir := directory.New()
	dir.SetLogger(log.Component("directory"))
	adapters, err := buildAdapters(cfg, log)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := dir.Register(a); err != nil {
			return fmt.Errorf("registering %s: %w", a.Backend(), err)
		}
	}

	h := hub.New(dir, hubConfig(cfg))
	h.SetLogger(log.Component("hub"))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		log.Info("closing adapters")
		if closeErr := h.Close(closeCtx); closeErr != nil {
			log.Error("error closing adapters", "error", closeErr)
		}
	}()

	var (
		recorders executor.Recorders
		journal   *audit.Journal
		services  = make(map[string]api.HealthChecker)
	)

	if cfg.Database.Audit.Enabled {
		db, err := database.OpenMigrated(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		}, migrations.FS())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		journal = audit.NewJournal(db.DB)
		recorders = append(recorders, journal)
		services["database"] = db
		log.Info("command journal enabled", "path", cfg.Database.Path)
	}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge := ingest.New(mqttClient, h, ingest.Options{PublishState: true})
		bridge.SetLogger(log.Component("ingest"))
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("starting ingest bridge: %w", err)
		}
		defer bridge.Stop()
		recorders = append(recorders, bridge)
		services["ingest"] = bridge
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxLog := log.Component("influxdb")
		influx.SetOnError(func(err error) {
			influxLog.Warn("metrics write failed", "error", err)
		})

		reportCtx, stopReport := context.WithCancel(ctx)
		reportDone := make(chan struct{})
		go func() {
			defer close(reportDone)
			influx.Report(reportCtx, h, time.Duration(cfg.InfluxDB.StatsInterval)*time.Second)
		}()
		defer func() {
			stopReport()
			<-reportDone
			log.Info("closing InfluxDB")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorders = append(recorders, influx)
		services["influxdb"] = influx
		log.Info("metrics export enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WS,
			Logger:   log.Component("api"),
			Hub:      h,
			Services: services,
			Version:  version,
		}
		if journal != nil {
			deps.Journal = journal
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		recorders = append(recorders, apiServer)
	}

	if len(recorders) > 0 {
		h.SetRecorder(recorders)
	}

	if err := h.Initialize(ctx); err != nil {
		if len(dir.Backends()) == 0 && len(adapters) > 0 {
			return fmt.Errorf("%w: %w", errNoBackends, err)
		}
		log.Warn("some adapters failed to initialize", "error", err)
	}
	for backend, herr := range h.Health(ctx) {
		log.Warn("backend unhealthy", "backend", backend, "error", herr)
	}

	if apiServer != nil {
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal", "backends", dir.Backends())
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("Gray Logic Hub stopped")
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// hubConfig maps file configuration onto the hub's components.
func hubConfig(cfg *config.Config) hub.Config {
	policy := retry.Policy{
		Attempts:   cfg.Executor.RetryAttempts,
		BaseDelay:  cfg.Executor.RetryBaseDelay,
		MaxDelay:   cfg.Executor.RetryMaxDelay,
		Multiplier: 2, //nolint:mnd // doubling backoff
	}
	return hub.Config{
		Cache: statecache.Options{
			TTL:          cfg.Cache.TTL,
			FetchTimeout: cfg.Cache.FetchTimeout,
			Retry:        &policy,
		},
		Executor: executor.Config{
			Retry:          policy,
			Confirm:        cfg.Executor.Confirm,
			ConfirmTimeout: cfg.Executor.ConfirmTimeout,
			PollInterval:   cfg.Executor.PollInterval,
			Tolerance:      cfg.Executor.Tolerance,
			MaxConcurrent:  cfg.Executor.MaxConcurrent,
		},
	}
}

// buildAdapters constructs one adapter per enabled backend.
func buildAdapters(cfg *config.Config, log *logging.Logger) ([]adapter.Adapter, error) {
	var out []adapter.Adapter

	if st := cfg.Backends.SmartThings; st.Enabled {
		var opts []smartthings.Option
		if st.BaseURL != "" {
			opts = append(opts, smartthings.WithBaseURL(st.BaseURL))
		}
		client, err := smartthings.NewHTTPClient(st.Token, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating SmartThings client: %w", err)
		}
		a, err := smartthings.New(client)
		if err != nil {
			return nil, fmt.Errorf("creating SmartThings adapter: %w", err)
		}
		a.SetLogger(log.Component("smartthings"))
		out = append(out, a)
	}

	if ty := cfg.Backends.Tuya; ty.Enabled {
		client, err := tuya.NewHTTPClient(ty.ClientID, ty.Secret, ty.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("creating Tuya client: %w", err)
		}
		a, err := tuya.New(client)
		if err != nil {
			return nil, fmt.Errorf("creating Tuya adapter: %w", err)
		}
		a.SetLogger(log.Component("tuya"))
		out = append(out, a)
	}

	if ha := cfg.Backends.HomeAssistant; ha.Enabled {
		client, err := homeassistant.NewHTTPClient(ha.BaseURL, ha.Token)
		if err != nil {
			return nil, fmt.Errorf("creating Home Assistant client: %w", err)
		}
		a, err := homeassistant.New(client)
		if err != nil {
			return nil, fmt.Errorf("creating Home Assistant adapter: %w", err)
		}
		a.SetLogger(log.Component("homeassistant"))
		out = append(out, a)
	}

	return out, nil
}
