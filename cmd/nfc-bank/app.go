package main

import (
	// Go Internal Packages
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	// Local Packages
	"nfc-bank/api"
	config "nfc-bank/config"
	"nfc-bank/directory"
	kafka "nfc-bank/kafka"
	"nfc-bank/metrics"
	models "nfc-bank/models"
	natstransport "nfc-bank/nats"
	mongodb "nfc-bank/repositories/mongodb"
	redis "nfc-bank/repositories/redis"
	"nfc-bank/repositories/sqlite"
	"nfc-bank/services/engine"
	"nfc-bank/services/ledger"
	"nfc-bank/services/processors"

	// External Packages
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// App holds the wired terminal: transport, ledger, directory and engine.
type App struct {
	Config config.Config
	Logger *zap.Logger

	Engine   *engine.Engine
	Ledger   *ledger.Ledger
	Recorder *engine.Recorder
	Notes    *engine.ChanNotifier
	Metrics  *metrics.Metrics

	kafkaMetrics *kprom.Metrics

	runOnce   sync.Once
	closers   []func()
	closeOnce sync.Once
}

func NewApp(ctx context.Context, conf config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   conf,
		Logger:   logger,
		Recorder: engine.NewRecorder(conf.API.Notifications),
		Notes:    engine.NewChanNotifier(64),
		Metrics:  metrics.New("nfc_bank"),
	}

	store, err := a.ledgerStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var dlq ledger.DeadLetterQueue
	var holders engine.Directory
	if conf.Redis.Enabled {
		redisClient, err := redis.Connect(ctx, conf.Redis.URI, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("cannot create redis client: %w", err)
		}
		a.onClose(func() { _ = redisClient.Close() })

		dlq = redis.NewDeadLetterQueue(redisClient, logger, conf.Redis.DLQKey)
		if conf.Directory.Backend == "redis" {
			holders = redis.NewHolderDirectory(redisClient, conf.Redis.HoldersKey)
		}
	}
	if holders == nil {
		static, err := a.staticDirectory()
		if err != nil {
			a.Close()
			return nil, err
		}
		holders = static
	}

	transport, err := a.transport(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Ledger = ledger.NewLedger(logger, store, dlq)
	notifier := engine.Notifiers{engine.LogNotifier{Logger: logger}, a.Recorder, a.Notes}
	a.Engine = engine.NewEngine(logger, transport, a.Ledger, holders, notifier, a.Metrics, engine.Options{
		Retry: engine.RetryConfig{
			MaxAttempts: conf.Engine.WriteRetry.MaxAttempts,
			MinInterval: conf.Engine.WriteRetry.MinInterval,
			MaxInterval: conf.Engine.WriteRetry.MaxInterval,
		},
		RecordReads: conf.Ledger.RecordReads,
	})
	return a, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.Engine != nil {
			a.Engine.Stop()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	})
}

func (a *App) ledgerStore(ctx context.Context) (ledger.Store, error) {
	conf := a.Config
	switch conf.Ledger.Backend {
	case "mongo":
		mongoClient, err := mongodb.Connect(ctx, conf.Mongo.URI, conf.Application)
		if err != nil {
			return nil, fmt.Errorf("cannot create mongo client: %w", err)
		}
		a.onClose(func() { _ = mongoClient.Disconnect(context.Background()) })

		repo := mongodb.NewLedgerRepository(mongoClient, conf.Mongo.Database, conf.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			a.Logger.Warn("ledger index not created", zap.Error(err))
		}
		return repo, nil
	case "sqlite":
		repo, err := sqlite.New(conf.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("cannot open sqlite ledger: %w", err)
		}
		a.onClose(func() { _ = repo.Close() })
		return repo, nil
	}
	return ledger.NewMemoryStore(), nil
}

func (a *App) staticDirectory() (*directory.Static, error) {
	if a.Config.Directory.File == "" {
		return directory.NewStatic(nil), nil
	}
	static, err := directory.LoadStatic(a.Config.Directory.File)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("holder directory loaded", zap.Int("holders", static.Len()))
	return static, nil
}

func (a *App) transport(ctx context.Context) (engine.Transport, error) {
	conf := a.Config
	if conf.Transport.Kind == "nats" {
		conn, err := natstransport.Connect(conf.Nats.URL, conf.Nats.Token, conf.Application)
		if err != nil {
			return nil, err
		}
		a.onClose(conn.Close)

		t, err := natstransport.NewTransport(conn, natstransport.Subjects{
			Scan:   conf.Nats.ScanSubject,
			Write:  conf.Nats.WriteSubject,
			Errors: conf.Nats.ErrorsSubject,
		}, conf.Nats.WriteTimeout, a.Logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = t.Close() })
		return t, nil
	}

	a.kafkaMetrics = kprom.NewMetrics("nfc_bank_kafka")
	writer, producer, err := kafka.NewTagWriter(&models.ProducerConfig{
		Brokers: conf.Kafka.Brokers,
		Topic:   conf.Kafka.WriteTopic,
	}, a.kafkaMetrics, a.Logger)
	if err != nil {
		return nil, err
	}
	a.onClose(producer.Close)

	hub := kafka.NewHub(writer, a.Logger)
	consumer, err := kafka.NewTagConsumer(&models.ConsumerConfig{
		Brokers:        conf.Kafka.Brokers,
		Name:           conf.Kafka.ConsumerName,
		Topic:          conf.Kafka.ScanTopic,
		RecordsPerPoll: conf.Kafka.RecordsPerPoll,
	}, processors.NewTagProcessor(a.Logger, hub), a.kafkaMetrics, a.Logger)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := consumer.Poll(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("scan consumer stopped", zap.Error(err))
		}
	}()
	return hub, nil
}

// Serve runs the engine in Read mode behind the HTTP API until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	go func() {
		if err := a.Engine.Run(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("engine stopped", zap.Error(err))
		}
	}()
	if err := a.Engine.Apply(ctx, engine.Intent{Mode: engine.Read}); err != nil {
		return err
	}

	opts := api.RouterOptions{
		AllowedOrigins: a.Config.API.AllowedOrigins,
		RateLimit:      a.Config.API.RateLimit,
		Metrics:        a.Metrics.Handler(),
	}
	if a.kafkaMetrics != nil {
		opts.KafkaMetrics = a.kafkaMetrics.Handler()
	}
	handler := api.NewHandler(ctx, a.Logger, a.Engine, a.Ledger, a.Recorder)

	server := &http.Server{
		Addr:         a.Config.API.Addr,
		Handler:      handler.Router(opts),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	a.Logger.Info("terminal ready", zap.String("addr", server.Addr), zap.String("transport", a.Config.Transport.Kind))

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	a.Logger.Info("terminal stopped")
	return nil
}
