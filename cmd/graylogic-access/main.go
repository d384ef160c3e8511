// Gray Logic Access - door endpoint
//
// This is the main entry point for a Gray Logic access-control door endpoint.
// It reads a card at the door, pseudonymizes its identifier, asks the site
// authorization service whether the holder may enter, and drives the strike.
//
// The door fails closed: anything other than an explicit "valid" answer from
// the authorization service leaves it locked.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/actuator"
	"github.com/nerrad567/gray-logic-access/internal/api"
	"github.com/nerrad567/gray-logic-access/internal/authz"
	"github.com/nerrad567/gray-logic-access/internal/health"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/journal"
	"github.com/nerrad567/gray-logic-access/internal/network"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
	"github.com/nerrad567/gray-logic-access/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither the flag nor the env var is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar names the environment variable holding the config path.
	configEnvVar = "GRAYLOGIC_ACCESS_CONFIG"

	// observerQueueSize bounds outcomes waiting for the sinks.
	observerQueueSize = 64
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	configPath, err := getConfigPath(args)
	if err != nil {
		return err
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Access",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version).With("door_id", cfg.Site.DoorID)
	log.Info("configuration loaded", "path", configPath)

	exposure, err := pseudonym.ParseExposure(cfg.Privacy.TokenExposure)
	if err != nil {
		return fmt.Errorf("privacy settings: %w", err)
	}

	key, err := cfg.HMACKey()
	if err != nil {
		return err
	}
	tokenizer, err := pseudonym.New(key)
	clear(key)
	if err != nil {
		return fmt.Errorf("creating tokenizer: %w", err)
	}

	// Strike first so the door is driven locked before anything else runs.
	strike, indicator, err := openStrike(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := strike.Close(); closeErr != nil {
			log.Error("error locking strike on shutdown", "error", closeErr)
		}
	}()

	link := network.NewLink(cfg.Authorization.Interface)
	if !link.WaitConnected(ctx, cfg.Authorization.LinkWait, linkPollInterval, log.Component("network")) {
		log.Warn("network link not up, continuing; queries will be indeterminate until it is",
			"interface", cfg.Authorization.Interface)
	}

	// MQTT is optional unless the bench reader needs it.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	rdr, err := openReader(ctx, cfg, mqttClient, log)
	if err != nil {
		if indicator != nil {
			if setErr := indicator.Set(actuator.High); setErr != nil {
				log.Error("failed to raise fault indicator", "error", setErr)
			}
		}
		return err
	}
	defer func() {
		if closeErr := rdr.Close(); closeErr != nil {
			log.Error("error closing reader", "error", closeErr)
		}
	}()

	authorizer, err := authz.New(authz.Options{
		BaseURL:    cfg.AuthorizationBaseURL(),
		PathPrefix: cfg.Authorization.PathPrefix,
		Timeout:    cfg.Authorization.Timeout,
		Link:       link,
		UserAgent:  "graylogic-access/" + version,
	})
	if err != nil {
		return fmt.Errorf("creating authorization client: %w", err)
	}
	log.Info("authorization client ready",
		"base_url", cfg.AuthorizationBaseURL(),
		"timeout", authorizer.Timeout(),
	)

	checks := map[string]api.HealthChecker{}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}

	// Local journal (optional)
	var journalRepo journal.Repository
	var pruner *journal.Pruner
	if cfg.Journal.Enabled {
		db, openErr := openDatabase(ctx, cfg, log)
		if openErr != nil {
			return openErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		checks["database"] = db
		journalRepo = journal.NewSQLiteRepository(db.DB)
		pruner = journal.NewPruner(journalRepo, journal.PrunerConfig{
			RetentionDays: cfg.Journal.RetentionDays,
			Interval:      cfg.Journal.PruneInterval,
		}, log.Component("journal"))
	} else {
		log.Info("access journal disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Observability sinks run behind the dispatcher, off the cycle goroutine.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry, cfg.Site.DoorID)

	sinks := []access.Observer{
		telemetry.NewLogObserver(log.Component("access"), exposure),
		metrics,
	}
	if mqttClient != nil {
		sinks = append(sinks, telemetry.NewMQTTObserver(mqttClient, exposure))
	}
	if journalRepo != nil {
		sinks = append(sinks, journal.NewRecorder(journalRepo, exposure))
	}
	if influxClient != nil {
		sinks = append(sinks, telemetry.NewInfluxObserver(influxClient))
	}

	cycle, err := access.New(access.Config{
		DoorID:       cfg.Site.DoorID,
		PollInterval: cfg.Cycle.PollInterval,
	}, access.Deps{
		Reader:     rdr,
		Tokenizer:  tokenizer,
		Authorizer: authorizer,
		Strike:     strike,
		Logger:     log.Component("access"),
	})
	if err != nil {
		return fmt.Errorf("creating access cycle: %w", err)
	}
	metrics.WatchCycle(cycle)

	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Version:  version,
			Exposure: exposure,
			Status:   cycle,
			Link:     link,
			Checks:   checks,
			Gatherer: registry,
		}
		if journalRepo != nil {
			deps.Journal = journalRepo
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		sinks = append(sinks, apiServer.Hub())
	}

	dispatcher := access.NewDispatcher(observerQueueSize, log.Component("observers"), sinks...)
	defer dispatcher.Close()
	metrics.WatchDispatcher(dispatcher)
	cycle.AddObserver(dispatcher)

	var reporter *health.Reporter
	if mqttClient != nil {
		cfgHealth := health.Config{
			DoorID:    cfg.Site.DoorID,
			Version:   version,
			Interval:  cfg.Health.Interval,
			Publisher: mqttClient,
			Link:      link,
			Cycle:     cycle,
			Logger:    log.Component("health"),
		}
		if influxClient != nil {
			cfgHealth.Samples = influxClient
		}
		reporter, err = health.NewReporter(cfgHealth)
		if err != nil {
			return fmt.Errorf("creating health reporter: %w", err)
		}
		if pubErr := reporter.PublishStarting(); pubErr != nil {
			log.Warn("failed to publish starting health", "error", pubErr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if apiServer != nil {
		if startErr := apiServer.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}
	if pruner != nil {
		pruner.Start(gctx)
		defer pruner.Stop()
	}
	if reporter != nil {
		reporter.Start(gctx)
		defer reporter.Stop()
	}

	g.Go(func() error {
		return cycle.Run(gctx)
	})

	log.Info("initialisation complete, door is live")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("access cycle: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	// Deferred calls run in reverse: reporter, pruner, API, dispatcher,
	// InfluxDB, database, reader, MQTT, strike (locked last).
	return nil
}

// getConfigPath resolves the configuration file path.
// The --config flag wins over GRAYLOGIC_ACCESS_CONFIG, which wins over the default.
func getConfigPath(args []string) (string, error) {
	fs := pflag.NewFlagSet("graylogic-access", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parsing flags: %w", err)
	}
	if *path != "" {
		return *path, nil
	}
	if env := os.Getenv(configEnvVar); env != "" {
		return env, nil
	}
	return defaultConfigPath, nil
}
