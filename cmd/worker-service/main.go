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
	"github.com/cuongbtq/review-queue/internal/config"
	"github.com/cuongbtq/review-queue/internal/processor"
	"github.com/cuongbtq/review-queue/internal/queue"
	"github.com/cuongbtq/review-queue/internal/storage/postgres"
	"github.com/cuongbtq/review-queue/shared/logger"
	"github.com/cuongbtq/review-queue/shared/metrics"
	"github.com/cuongbtq/review-queue/shared/postgresql"
	"github.com/cuongbtq/review-queue/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const serviceName = "worker-service"

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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("wake_mode", cfg.Worker.WakeMode),
		slog.Duration("poll_interval", cfg.Worker.PollInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := initPostgreSQL(ctx, &cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	store := postgres.NewStore(dbClient.GetDB(), appLogger.Logger)
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	healthChecks := map[string]handler.HealthCheck{
		"postgres": dbClient.HealthCheck,
	}

	var (
		notifier   queue.Notifier
		rabbitWake *queue.RabbitNotifier
	)
	if cfg.Worker.WakeMode == config.WakeRabbitMQ {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
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

	srv := initMetricsServer(cfg, &handler.Dependencies{
		Logger:       appLogger.Logger,
		ServiceName:  serviceName,
		HealthChecks: healthChecks,
	}, recorder)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("metrics_address", srv.Addr),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Metrics server failed", slog.Any("error", err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Let the in-flight poll cycle finish before ctx is canceled; canceling
	// first would interrupt the running processor.
	if err := engine.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit", slog.Any("error", err))
	} else {
		appLogger.Info("Worker stopped gracefully")
	}

	cancel()
	if rabbitWake != nil {
		rabbitWake.Wait()
	}
	appLogger.Debug("Database pool stats", slog.String("stats", dbClient.Stats()))

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Metrics server forced to shutdown", slog.Any("error", err))
	}

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

// initMetricsServer serves /metrics and /health on the worker metrics port
func initMetricsServer(cfg *config.Config, deps *handler.Dependencies, recorder *metrics.Recorder) *http.Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(recorder.Handler()))
	r.GET("/health", handler.NewHealthHandler(deps).Health)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
