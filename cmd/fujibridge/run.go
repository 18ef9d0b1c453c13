package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/fujitsu-bridge/migrations"

	"github.com/nerrad567/fujitsu-bridge/internal/api"
	"github.com/nerrad567/fujitsu-bridge/internal/bridges/fujitsu"
	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
	"github.com/nerrad567/fujitsu-bridge/internal/history"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/config"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/database"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/fujitsu-bridge/internal/transport"
)

// statsInterval is how often bridge counters are written to InfluxDB.
const statsInterval = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge (default)",
	Long: `Connect to the indoor unit and run the climate controller, publishing state
over MQTT and serving the HTTP API until interrupted.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBridge(cmd *cobra.Command, _ []string) error {
	return run(cmd.Context(), getConfigPath())
}

// run is the bridge lifecycle, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting fujibridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Open the controller bus. Closed last, after the pump has stopped.
	conn, connInfo, err := transport.Open(ctx, cfg.HeatPump)
	if err != nil {
		return fmt.Errorf("opening heat pump transport: %w", err)
	}
	defer func() {
		log.Info("closing heat pump transport")
		if closeErr := conn.Close(); closeErr != nil {
			log.Error("error closing transport", "error", closeErr)
		}
	}()
	hp := heatpump.New()
	hp.Connect(conn, cfg.HeatPump.Secondary)
	log.Info("heat pump transport open", "connection", connInfo, "address", hp.Address())

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)
	store := history.NewStore(db.DB)

	// Connect to MQTT broker (optional). The interface values stay nil
	// when disabled so the bridge and API see no client at all.
	var (
		mqttClient *mqtt.Client
		bridgeMQTT fujitsu.MQTTClient
		apiMQTT    api.ConnectionStatus
	)
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, topics)
		if err != nil {
			return err
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

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		bridgeMQTT = &mqttBridgeAdapter{client: mqttClient}
		apiMQTT = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	bridge, err := fujitsu.NewBridge(fujitsu.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		Protocol:       hp,
		Timing:         climateTiming(cfg.HeatPump.Timing),
		UpdateInterval: cfg.Bridge.UpdateInterval,
		MQTTClient:     bridgeMQTT,
		Topics:         topics,
		QoS:            byte(cfg.MQTT.QoS),
		Logger:         log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	recorder := history.NewRecorder(store, cfg.Bridge.ID, cfg.GetHistoryRetention(), log)
	bridge.AddObserver(recorder.Observe)
	if influxClient != nil {
		bridge.AddObserver(telemetryObserver(influxClient, cfg.Bridge.ID))
	}

	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.With("component", "api"),
			Bridge:   bridge,
			History:  store,
			MQTT:     apiMQTT,
			DB:       db.DB,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		bridge.AddObserver(server.ObserveState)
	}

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started", "bridge_id", cfg.Bridge.ID)

	if server != nil {
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server listening", "addr", server.Addr().String())
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return recorder.Run(gctx)
	})
	if influxClient != nil {
		g.Go(func() error {
			return writeStatsLoop(gctx, influxClient, bridge, cfg.Bridge.ID)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse order:
	// 1. API server
	// 2. Bridge (pump and tick loop)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database
	// 6. Transport

	log.Info("fujibridge stopped")
	return nil
}

// openDatabase opens the SQLite file and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := openDatabaseFile(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// openDatabaseFile opens the SQLite file without touching the schema.
func openDatabaseFile(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// connectMQTT connects with a will on the bridge health topic, so the
// broker reports the bridge offline if the process dies.
func connectMQTT(cfg *config.Config, topics mqtt.Topics) (*mqtt.Client, error) {
	will, err := fujitsu.LWTPayload(cfg.Bridge.ID)
	if err != nil {
		return nil, fmt.Errorf("building MQTT will: %w", err)
	}

	client, err := mqtt.Connect(cfg.MQTT,
		mqtt.WithWill(topics.BridgeHealth(fujitsu.Protocol, cfg.Bridge.ID), will),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	return client, nil
}

// writeStatsLoop writes bridge counters to InfluxDB until ctx is cancelled.
func writeStatsLoop(ctx context.Context, influx *influxdb.Client, bridge *fujitsu.Bridge, bridgeID string) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m := bridge.GetMetrics()
			influx.WriteBridgeStats(bridgeID, m.Climate, m.Protocol)
		case <-ctx.Done():
			return nil
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// climateStateWriter is the slice of the InfluxDB client used for state
// telemetry.
type climateStateWriter interface {
	WriteClimateState(bridgeID string, state climate.State)
}

// telemetryObserver writes states reported by the unit to w. Desired states
// from Control are skipped so the series only holds what the unit did.
func telemetryObserver(w climateStateWriter, bridgeID string) fujitsu.StateObserver {
	return func(state climate.State, source string) {
		if source != fujitsu.SourceUnit {
			return
		}
		w.WriteClimateState(bridgeID, state)
	}
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Fujitsu bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements fujitsu.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements fujitsu.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements fujitsu.MQTTClient.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements fujitsu.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
