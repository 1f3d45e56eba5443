package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/nerrad567/printwatch/migrations"

	"github.com/nerrad567/printwatch/internal/api"
	"github.com/nerrad567/printwatch/internal/audit"
	"github.com/nerrad567/printwatch/internal/infrastructure/config"
	"github.com/nerrad567/printwatch/internal/infrastructure/database"
	"github.com/nerrad567/printwatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/printwatch/internal/infrastructure/logging"
	"github.com/nerrad567/printwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/printwatch/internal/printer"
	"github.com/nerrad567/printwatch/internal/store"
)

// pruneInterval is how often expired component history is deleted.
const pruneInterval = time.Hour

// run is the serve command, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML config file; "" uses defaults plus environment
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting printwatch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"store_backend", cfg.Store.Backend,
	)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	topics := mqtt.NewTopics(cfg.Printer.BaseTopic)
	messages := openStore(cfg, db, topics, log)
	defer func() {
		log.Info("saving message store")
		if closeErr := messages.Close(); closeErr != nil {
			log.Error("error saving message store", "error", closeErr)
		}
	}()

	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Without a broker the dashboard is read-only: the service gets no
	// publisher and commands return 503.
	mqttClient, err := mqtt.Connect(cfg.MQTT, log)
	if err != nil {
		log.Warn("MQTT unavailable, running read-only", "error", err)
		mqttClient = nil
	} else {
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
	}

	history := printer.NewSQLiteHistoryRepository(db.DB)
	svcDeps := printer.Deps{
		Store:     messages,
		History:   history,
		Logger:    log,
		BaseTopic: topics.Components(),
		QoS:       byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
	}
	if mqttClient != nil {
		svcDeps.Publisher = meteredPublisher{next: mqttClient, influx: influxClient}
	}
	if influxClient != nil {
		svcDeps.Telemetry = influxClient
	}
	service, err := printer.NewService(svcDeps)
	if err != nil {
		return fmt.Errorf("creating printer service: %w", err)
	}

	if mqttClient != nil {
		handler := func(t string, payload []byte) error {
			if influxClient != nil {
				influxClient.WriteMessage(t, string(store.DirectionIncoming), len(payload))
			}
			return service.HandleMessage(t, payload)
		}
		feed := mqtt.Feed{
			Filter:  service.SubscriptionFilter(),
			QoS:     service.QoS(),
			Handler: handler,
		}
		if followErr := mqttClient.Follow(feed); followErr != nil {
			return fmt.Errorf("subscribing to %s: %w", feed.Filter, followErr)
		}
		log.Info("subscribed to printer topics", "filter", service.SubscriptionFilter())
	}

	apiDeps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Service:  service,
		Store:    messages,
		Audit:    audit.NewSQLiteRepository(db.DB),
		Version:  version,
	}
	if mqttClient != nil {
		apiDeps.Broker = mqttClient
	}
	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	if !cfg.AuthEnabled() {
		log.Warn("security.jwt.secret is empty, API commands are unauthenticated")
	}

	if retention := cfg.GetHistoryRetention(); retention > 0 {
		go pruneHistory(ctx, history, retention, log)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, MQTT,
	// InfluxDB, message store, database.
	return nil
}

// openDatabase opens and migrates the SQLite database.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	path := cfg.Database.Path
	if cfg.Store.Backend == config.StoreBackendMemory && path == "" {
		path = database.MemoryPath
	}

	db, err := database.Open(ctx, database.Config{
		Path:        path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", db.Path())

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

// openStore creates the message store on the configured backend.
func openStore(cfg *config.Config, db *database.DB, topics mqtt.Topics, log *logging.Logger) *store.MessageStore {
	var storage store.BlobStorage = store.NewMemoryStorage()
	if cfg.Store.Backend == config.StoreBackendSQLite {
		storage = database.NewBlobStore(db)
	}

	messages := store.New(storage,
		store.WithLogger(log),
		store.WithStorageKey(cfg.Store.Key),
		store.WithComponentTopic(topics.Component),
	)
	incoming, outgoing := messages.Len()
	log.Info("message store loaded",
		"backend", cfg.Store.Backend,
		"incoming", incoming,
		"outgoing", outgoing,
	)
	return messages
}

// connectInflux connects to InfluxDB when enabled. A nil client means
// telemetry is off.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// meteredPublisher counts outgoing messages in InfluxDB.
type meteredPublisher struct {
	next   printer.Publisher
	influx *influxdb.Client
}

func (p meteredPublisher) Publish(t string, payload []byte, qos byte, retained bool) error {
	if err := p.next.Publish(t, payload, qos, retained); err != nil {
		return err
	}
	if p.influx != nil {
		p.influx.WriteMessage(t, string(store.DirectionOutgoing), len(payload))
	}
	return nil
}

// pruner deletes component history older than a retention period.
type pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistory prunes once at start and then every pruneInterval until ctx
// is cancelled.
func pruneHistory(ctx context.Context, history pruner, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		deleted, err := history.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("component history prune failed", "error", err)
		case deleted > 0:
			log.Info("component history pruned", "deleted", deleted, "retention", retention.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// healthCheck verifies the infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (nil when running read-only)
//   - influxClient: InfluxDB client to check (nil if disabled)
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
