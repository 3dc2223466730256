package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/review-queue/internal/api/handler"
	"github.com/cuongbtq/review-queue/internal/api/router"
	"github.com/cuongbtq/review-queue/internal/config"
	"github.com/cuongbtq/review-queue/internal/processor"
	"github.com/cuongbtq/review-queue/internal/queue"
	"github.com/cuongbtq/review-queue/internal/storage"
	"github.com/cuongbtq/review-queue/internal/storage/memory"
	"github.com/cuongbtq/review-queue/internal/storage/postgres"
	"github.com/cuongbtq/review-queue/shared/logger"
	"github.com/cuongbtq/review-queue/shared/metrics"
	"github.com/cuongbtq/review-queue/shared/postgresql"
	"github.com/cuongbtq/review-queue/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const serviceName = "api-service"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("wake_mode", cfg.Worker.WakeMode),
		slog.Bool("embedded_worker", cfg.Worker.Embedded),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthChecks := make(map[string]handler.HealthCheck)

	store, dbClient, err := initStore(ctx, cfg, appLogger.Logger)
	if err != nil {
		return err
	}
	if dbClient != nil {
		defer dbClient.Close()
		healthChecks["postgres"] = dbClient.HealthCheck
	}

	var (
		notifier     queue.Notifier
		rabbitClient *rabbitmq.Client
		rabbitWake   *queue.RabbitNotifier
	)
	switch cfg.Worker.WakeMode {
	case config.WakeChannel:
		notifier = queue.NewChannelNotifier()
	case config.WakeRabbitMQ:
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		appLogger.Info("RabbitMQ connection established")

		rabbitWake = queue.NewRabbitNotifier(rabbitClient, cfg.RabbitMQ.Consumer.Tag, appLogger.Component("notifier"))
		notifier = rabbitWake
		healthChecks["rabbitmq"] = func(context.Context) error {
			if !rabbitClient.IsConnected() {
				return rabbitmq.ErrNotConnected
			}
			return nil
		}
	}

	recorder := metrics.New("review_queue")

	engine := queue.NewEngine(&queue.Config{
		Store:        store,
		Logger:       appLogger.Component("queue"),
		PollInterval: cfg.Worker.PollInterval,
		Notifier:     notifier,
		Metrics:      recorder,
	})

	processor.NewReviewProcessor(store, appLogger.Component("processor"), &processor.ReviewConfig{
		Delay:  cfg.Processor.ReviewDelay,
		Marker: cfg.Processor.ReviewMarker,
	}).Register(engine)

	if cfg.Worker.Embedded {
		if rabbitWake != nil {
			if err := rabbitWake.Listen(ctx); err != nil {
				return fmt.Errorf("failed to listen for job messages: %w", err)
			}
		}

		engine.Start(ctx)
		healthChecks["queue"] = func(context.Context) error {
			if !engine.Running() {
				return errors.New("queue engine is not running")
			}
			return nil
		}
	}

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:       appLogger.Logger,
		Store:        store,
		Queue:        engine,
		ServiceName:  serviceName,
		HealthChecks: healthChecks,
	}, recorder)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// Let the in-flight poll cycle finish before ctx is canceled; canceling
	// first would interrupt the running processor.
	if err := engine.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Queue engine did not stop in time", slog.Any("error", err))
	}
	cancel()
	if rabbitWake != nil {
		rabbitWake.Wait()
	}

	appLogger.Info("API service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initStore builds the configured store. The postgres client is returned so the caller can close it.
func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, *postgresql.Client, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		var opts []memory.Option
		if cfg.Storage.Seed {
			opts = append(opts, memory.WithSeedData())
		}
		logger.Info("Using in-memory storage", slog.Bool("seed", cfg.Storage.Seed))
		return memory.NewStore(opts...), nil, nil
	}

	dbClient, err := initPostgreSQL(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Info("Database connection established")

	store := postgres.NewStore(dbClient.GetDB(), logger)
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			dbClient.Close()
			return nil, nil, err
		}
	}
	if cfg.Storage.Seed {
		if err := store.Seed(ctx); err != nil {
			dbClient.Close()
			return nil, nil, err
		}
	}

	return store, dbClient, nil
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(ctx, &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies, recorder *metrics.Recorder) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, recorder)
}
