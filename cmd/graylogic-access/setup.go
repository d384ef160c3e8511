package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/actuator"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/reader"
	"github.com/nerrad567/gray-logic-access/migrations"
)

// linkPollInterval is how often startup re-checks a downed interface.
const linkPollInterval = time.Second

// openStrike opens the strike line and the optional fault indicator and
// drives the strike locked.
//
// Returns:
//   - *actuator.Controller: Locked strike controller
//   - actuator.Line: Fault indicator, nil when not configured
//   - error: If a line cannot be opened or driven LOW
func openStrike(cfg *config.Config, log *logging.Logger) (*actuator.Controller, actuator.Line, error) {
	line, err := actuator.Open(cfg.Actuator.Driver, cfg.Actuator.Pin)
	if err != nil {
		return nil, nil, fmt.Errorf("opening strike line: %w", err)
	}

	var indicator actuator.Line
	if cfg.Reader.FaultIndicatorPin != "" {
		indicator, err = actuator.Open(cfg.Actuator.Driver, cfg.Reader.FaultIndicatorPin)
		if err != nil {
			return nil, nil, fmt.Errorf("opening fault indicator: %w", err)
		}
		if err := indicator.Set(actuator.Low); err != nil {
			return nil, nil, fmt.Errorf("clearing fault indicator: %w", err)
		}
	}

	ctrl, err := actuator.New(actuator.Options{
		Line:      line,
		Hold:      cfg.Actuator.Hold,
		Indicator: indicator,
		Logger:    log.Component("actuator"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating strike controller: %w", err)
	}
	log.Info("strike ready",
		"driver", cfg.Actuator.Driver,
		"pin", line.Name(),
		"hold", ctrl.Hold(),
	)
	return ctrl, indicator, nil
}

// connectMQTT connects to the broker and logs connection changes.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.DoorID)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttLog := log.Component("mqtt")
	client.SetLogger(mqttLog)
	client.SetOnConnect(func() {
		mqttLog.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		mqttLog.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// openReader opens and initialises the configured card reader.
// Failures wrap reader.ErrHardwareFault and are fatal.
func openReader(ctx context.Context, cfg *config.Config, client *mqtt.Client, log *logging.Logger) (reader.Reader, error) {
	oc := reader.OpenConfig{
		I2CBus:     cfg.Reader.I2CBus,
		I2CAddress: uint16(cfg.Reader.I2CAddress), //nolint:gosec // validated as a 7-bit address
		BenchTopic: mqtt.Topics{}.BenchCard(cfg.Site.DoorID),
		Logger:     log.Component("reader"),
	}
	if client != nil {
		oc.Subscriber = client
	}

	rdr, err := reader.Open(cfg.Reader.Driver, oc)
	if err != nil {
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	if err := rdr.Init(ctx); err != nil {
		_ = rdr.Close()
		return nil, fmt.Errorf("initialising reader: %w", err)
	}
	log.Info("reader ready", "driver", cfg.Reader.Driver)
	return rdr, nil
}

// openDatabase opens the journal database and applies the embedded migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	return db, nil
}
