// Package main is the entry point for the sensorwatch bus monitor.
// It initializes all components and starts the HTTP server, the bus
// processor, and the registry mirror.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sensorwatch-go/internal/api"
	"sensorwatch-go/internal/banner"
	"sensorwatch-go/internal/command"
	"sensorwatch-go/internal/config"
	"sensorwatch-go/internal/msglog"
	"sensorwatch-go/internal/notification"
	"sensorwatch-go/internal/processor"
	"sensorwatch-go/internal/queue"
	kafkaqueue "sensorwatch-go/internal/queue/kafka"
	memoryqueue "sensorwatch-go/internal/queue/memory"
	mqttqueue "sensorwatch-go/internal/queue/mqtt"
	"sensorwatch-go/internal/registry"
	"sensorwatch-go/internal/store"
	memorystor "sensorwatch-go/internal/store/memory"
	postgresstor "sensorwatch-go/internal/store/postgres"
	redisstor "sensorwatch-go/internal/store/redis"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to configuration file (defaults apply when empty)")
	simulate := flag.Bool("simulate", false, "play synthetic sensor traffic on the in-memory bus")
	flag.Parse()

	banner.Print(os.Stdout)

	// Bootstrap logger until the configured one is available
	logger := initLogger(config.LoggerConfig{Level: "info", Format: "json"})

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to load configuration", "error", err, "path", *configPath)
			os.Exit(1)
		}
		cfg = loaded
	}
	logger = initLogger(cfg.Logger)

	logger.Info("configuration loaded",
		"path", *configPath,
		"transport", cfg.Transport.Mode,
		"storage_mode", cfg.Storage.Mode,
	)

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize dependencies based on transport and storage mode
	deps, cleanup, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start processor in background
	go func() {
		if err := deps.processor.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("processor error", "error", err)
			cancel()
		}
	}()

	// Mirror the registry to the cache
	go func() {
		if err := deps.registry.Watch(ctx); err != nil {
			logger.Error("registry watch error", "error", err)
		}
	}()

	if *simulate {
		if deps.memoryBus == nil {
			logger.Warn("simulation needs the memory transport; ignoring -simulate")
		} else {
			go runSimulator(ctx, deps.memoryBus, logger)
		}
	}

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("sensorwatch started",
		"address", cfg.Server.Address(),
		"transport", cfg.Transport.Mode,
		"storage_mode", cfg.Storage.Mode,
		"log_capacity", cfg.Log.Capacity,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := deps.processor.Stop(); err != nil {
		logger.Error("processor shutdown error", "error", err)
	}

	logger.Info("sensorwatch stopped")
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server    *api.Server
	processor *processor.Service
	registry  *registry.Service

	// memoryBus is set when the in-memory transport is used.
	memoryBus *memoryqueue.Queue
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		archive      store.RecordRepository
		cache        store.RegistryCache
		producer     queue.Producer
		consumer     queue.Consumer
		memoryBus    *memoryqueue.Queue
		cleanupFuncs []func()
	)

	// Build cleanup function
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}
	fail := func(err error) (*dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if cfg.Storage.UseMemory() {
		// Initialize in-memory implementations
		logger.Info("initializing in-memory storage")

		archive = memorystor.NewRecordRepository(cfg.Log.ArchiveCapacity)
		memCache := memorystor.NewRegistryCache()
		cache = memCache
		cleanupFuncs = append(cleanupFuncs, func() { _ = memCache.Close() })
	} else {
		// Initialize real storage implementations
		logger.Info("initializing production storage (Redis, PostgreSQL)")

		// Initialize PostgreSQL
		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return fail(err)
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		// Run migrations
		if err := db.RunMigrations(ctx); err != nil {
			return fail(err)
		}
		logger.Info("database migrations completed")

		archive = postgresstor.NewRecordRepository(db)

		// Initialize Redis
		redisCache, err := redisstor.NewRegistryCache(&cfg.Redis)
		if err != nil {
			return fail(err)
		}
		cache = redisCache
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisCache.Close() })
	}

	switch cfg.Transport.Mode {
	case config.TransportMQTT:
		logger.Info("initializing mqtt transport", "broker", cfg.MQTT.Broker)

		client := mqttqueue.New(&cfg.MQTT, cfg.Transport.BufferSize, logger)
		if err := client.Connect(ctx); err != nil {
			return fail(err)
		}
		producer = client
		consumer = client
		cleanupFuncs = append(cleanupFuncs, func() { _ = client.Close() })

	case config.TransportKafka:
		logger.Info("initializing kafka transport", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)

		kafkaProducer := kafkaqueue.NewProducer(&cfg.Kafka)
		producer = kafkaProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaProducer.Close() })

		kafkaConsumer := kafkaqueue.NewConsumer(&cfg.Kafka, logger)
		consumer = kafkaConsumer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaConsumer.Close() })

	default:
		logger.Info("initializing in-memory transport")

		memoryBus = memoryqueue.NewQueue(cfg.Transport.BufferSize)
		producer = memoryBus
		consumer = memoryBus
		cleanupFuncs = append(cleanupFuncs, func() { _ = memoryBus.Close() })
	}

	// Initialize the message log and the registry over it
	messageLog := msglog.New(cfg.Log.Capacity)
	registryService := registry.NewService(messageLog, cache, logger)

	// Initialize notification service (stubbed for now)
	notifier := notification.NewStubNotifier(logger)

	// Initialize command emitter
	emitter := command.NewEmitter(producer, registryService, logger)

	// Initialize processor service
	processorService := processor.NewService(
		consumer,
		messageLog,
		registryService,
		archive,
		notifier,
		logger,
	)

	// Initialize HTTP server
	server := api.NewServer(api.ServerDeps{
		Config:         &cfg.Server,
		Logger:         logger,
		MessageHandler: api.NewMessageHandler(messageLog, logger),
		EventHandler:   api.NewEventHandler(registryService, emitter, logger),
		HistoryHandler: api.NewHistoryHandler(archive, logger),
	})

	return &dependencies{
		server:    server,
		processor: processorService,
		registry:  registryService,
		memoryBus: memoryBus,
	}, cleanup, nil
}

// initLogger creates and configures the application logger.
func initLogger(cfg config.LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "unknown log level %q, using info\n", level)
		return slog.LevelInfo
	}
	return l
}
