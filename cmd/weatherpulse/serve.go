package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lox/weatherpulse/internal/api"
	"github.com/lox/weatherpulse/internal/engine"
	"github.com/lox/weatherpulse/internal/ingest"
	"github.com/lox/weatherpulse/internal/models"
	"github.com/lox/weatherpulse/internal/store"
)

type ServeCmd struct {
	HTTPAddr string `help:"Dashboard and query API listen address." default:":5000" env:"HTTP_ADDR"`
	WSAddr   string `name:"ws-addr" help:"Websocket ingest listen address." default:":8765" env:"WS_ADDR"`

	MQTTBroker   string `name:"mqtt-broker" help:"MQTT broker URL; empty disables MQTT ingest." env:"MQTT_BROKER"`
	MQTTTopic    string `name:"mqtt-topic" help:"Topic carrying JSON readings." default:"weather/readings" env:"MQTT_TOPIC"`
	MQTTAckTopic string `name:"mqtt-ack-topic" help:"Topic to publish acknowledgements on." env:"MQTT_ACK_TOPIC"`
	MQTTClientID string `name:"mqtt-client-id" help:"MQTT client ID; generated when empty." env:"MQTT_CLIENT_ID"`

	LogBackend string `help:"Durable log backend." enum:"csv,sqlite,both" default:"csv" env:"LOG_BACKEND"`
	DataDir    string `help:"Directory for the CSV logs." default:"." env:"DATA_DIR" type:"path"`
	DB         string `help:"Path to the SQLite database." default:"data/weatherpulse.db" env:"DB_PATH" type:"path"`
	Restore    bool   `help:"Refill the history window from the durable log on startup." env:"RESTORE"`

	QueueSize   int           `help:"Pending records per durable log before new ones are dropped." default:"1024" env:"LOG_QUEUE_SIZE"`
	LogRetryMax time.Duration `help:"Give up on a durable log write after this long." default:"30s" env:"LOG_RETRY_MAX"`

	Capacity     int           `help:"History window capacity." default:"100" env:"WINDOW_CAPACITY"`
	MinSamples   int           `help:"Readings required before training." default:"36" env:"MIN_SAMPLES"`
	Horizon      int           `help:"Forecast points per batch." default:"60" env:"HORIZON"`
	Display      int           `help:"Points shown from each series." default:"12" env:"DISPLAY"`
	BatchHistory int           `help:"Forecast batches held in memory." default:"20" env:"BATCH_HISTORY"`
	Interval     time.Duration `help:"Nominal spacing between readings." default:"5s" env:"READING_INTERVAL"`

	AccessLog bool `help:"Log every HTTP request." env:"ACCESS_LOG"`
}

// durableLog is one opened backend along with what is needed to restore
// from and close it.
type durableLog struct {
	name    string
	sink    store.Sink
	recent  func(limit int) ([]models.Reading, error)
	// batches is nil for logs that cannot count forecast batches.
	batches func() (int, error)
	close   func() error
}

// engineConfig checks the flags that would otherwise fail later at runtime
// and returns the engine configuration they describe.
func (c *ServeCmd) engineConfig() (engine.Config, error) {
	cfg := engine.Config{
		Capacity:     c.Capacity,
		MinSamples:   c.MinSamples,
		Horizon:      c.Horizon,
		Display:      c.Display,
		BatchHistory: c.BatchHistory,
		Interval:     c.Interval,
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("engine config: %w", err)
	}
	if c.QueueSize < 0 {
		return cfg, fmt.Errorf("queue size must be >= 0, got %d", c.QueueSize)
	}
	return cfg, nil
}

func (c *ServeCmd) Run() error {
	cfg, err := c.engineConfig()
	if err != nil {
		return err
	}

	backends, err := c.openLogs()
	if err != nil {
		return err
	}

	queues := make([]*store.AsyncLog, 0, len(backends))
	sinks := make(store.Multi, 0, len(backends))
	for _, b := range backends {
		q := store.NewAsyncLog(b.sink, c.QueueSize, c.LogRetryMax)
		queues = append(queues, q)
		sinks = append(sinks, q)
	}
	defer func() {
		for i, q := range queues {
			if err := q.Close(); err != nil {
				slog.Error("close log queue", "log", backends[i].name, "err", err)
			}
			if err := backends[i].close(); err != nil {
				slog.Error("close log", "log", backends[i].name, "err", err)
			}
		}
	}()

	e := engine.New(cfg, sinks)
	if c.Restore {
		readings, err := backends[0].recent(cfg.Capacity)
		if err != nil {
			return fmt.Errorf("restore from %s: %w", backends[0].name, err)
		}
		e.Restore(readings)
		slog.Info("window restored", "log", backends[0].name, "readings", len(readings))

		if count := backends[0].batches; count != nil {
			n, err := count()
			if err != nil {
				return fmt.Errorf("count batches in %s: %w", backends[0].name, err)
			}
			e.RestoreBatchCount(n)
			slog.Info("prediction count restored", "batches", n)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord := ingest.NewCoordinator(e)
	server := api.NewServer(e, c.HTTPAddr)
	if c.AccessLog {
		server.EnableAccessLog()
	}

	runners := map[string]func(context.Context) error{
		"websocket": ingest.NewWebSocketServer(coord, c.WSAddr).Run,
		"http":      server.Run,
	}
	if c.MQTTBroker != "" {
		clientID := c.MQTTClientID
		if clientID == "" {
			clientID = "weatherpulse-" + uuid.NewString()[:8]
		}
		src := ingest.NewMQTTSource(coord, c.MQTTBroker, clientID, c.MQTTTopic)
		src.AckTopic = c.MQTTAckTopic
		runners["mqtt"] = src.Run
	}

	slog.Info("starting",
		"http", c.HTTPAddr,
		"websocket", c.WSAddr,
		"log", c.LogBackend,
		"capacity", cfg.Capacity,
		"warm_up", cfg.WarmUp())

	return runAll(ctx, cancel, runners)
}

// runAll runs every component until the context ends or one of them fails,
// then waits for the rest to shut down.
func runAll(ctx context.Context, cancel context.CancelFunc, runners map[string]func(context.Context) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for name, run := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}
	wg.Wait()
	slog.Info("shutdown complete")
	return errors.Join(errs...)
}

func (c *ServeCmd) openLogs() ([]durableLog, error) {
	var logs []durableLog

	if c.LogBackend == "sqlite" || c.LogBackend == "both" {
		st, closeDB, err := openStore(c.DB)
		if err != nil {
			return nil, err
		}
		logs = append(logs, durableLog{
			name:    "sqlite",
			sink:    st,
			recent:  st.RecentReadings,
			batches: st.PredictionBatchCount,
			close:   closeDB,
		})
	}

	if c.LogBackend == "csv" || c.LogBackend == "both" {
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		csvLog, err := store.OpenCSV(c.DataDir)
		if err != nil {
			for _, l := range logs {
				l.close()
			}
			return nil, err
		}
		logs = append(logs, durableLog{name: "csv", sink: csvLog, recent: csvLog.RecentReadings, close: csvLog.Close})
	}

	return logs, nil
}

func openStore(path string) (*store.Store, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	version, err := st.MigrationVersion()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("schema version: %w", err)
	}
	readings, err := st.ReadingCount()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("count readings: %w", err)
	}
	slog.Info("database migrated", "path", path, "version", version, "readings", readings)
	return st, db.Close, nil
}
