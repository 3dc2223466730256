package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Wake modes of the queue engine
const (
	WakePoll     = "poll"
	WakeChannel  = "channel"
	WakeRabbitMQ = "rabbitmq"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Worker    WorkerConfig    `yaml:"worker"`
	Storage   StorageConfig   `yaml:"storage"`
	Processor ProcessorConfig `yaml:"processor"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" default:"5432"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode" default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" default:"5m"`
	Migrate         bool          `yaml:"migrate" default:"true"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port" default:"5672"`
	User       string           `yaml:"user" default:"guest"`
	Password   string           `yaml:"password" default:"guest"`
	VHost      string           `yaml:"vhost" default:"/"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key" default:"jobs.created"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name" default:"review_jobs"`
	Type       string `yaml:"type" default:"direct"`
	Durable    bool   `yaml:"durable" default:"true"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name" default:"review_jobs_wake"`
	Durable    bool   `yaml:"durable" default:"true"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts" default:"5"`
	RetryInterval     time.Duration `yaml:"retry_interval" default:"2s"`
	Heartbeat         time.Duration `yaml:"heartbeat" default:"10s"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" default:"30s"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts" default:"3"`
	RetryInterval     time.Duration `yaml:"retry_interval" default:"100ms"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" default:"2"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag" default:"review-queue-worker"`
	PrefetchCount int    `yaml:"prefetch_count" default:"10"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" default:"info"`
	Format       string `yaml:"format" default:"console"`
	Output       string `yaml:"output" default:"stdout"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name" default:"review-queue"`
	Version     string `yaml:"version" default:"dev"`
	Environment string `yaml:"environment" default:"development"`
}

// WorkerConfig holds queue engine configuration
type WorkerConfig struct {
	// Embedded runs the engine inside the api-service process
	Embedded        bool          `yaml:"embedded" default:"true"`
	PollInterval    time.Duration `yaml:"poll_interval" default:"1s"`
	WakeMode        string        `yaml:"wake_mode" default:"channel"`
	MetricsPort     int           `yaml:"metrics_port" default:"9090"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// StorageConfig selects the data store
type StorageConfig struct {
	Driver string `yaml:"driver" default:"memory"`
	Seed   bool   `yaml:"seed" default:"true"`
}

// ProcessorConfig holds review processor settings
type ProcessorConfig struct {
	ReviewDelay  time.Duration `yaml:"review_delay" default:"500ms"`
	ReviewMarker string        `yaml:"review_marker" default:" [Verified Review]"`
}

// Load reads and parses the configuration file. Fields missing from the file
// keep the values of their default tags.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAPIConfig checks the settings used by the api-service
func (c *Config) ValidateAPIConfig() error {
	if err := validatePort("server", c.Server.Port); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	switch c.Worker.WakeMode {
	case WakePoll, WakeChannel:
	case WakeRabbitMQ:
		if err := c.RabbitMQ.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid worker wake_mode: %q (must be %s, %s or %s)", c.Worker.WakeMode, WakePoll, WakeChannel, WakeRabbitMQ)
	}

	if c.Worker.Embedded {
		if err := c.Worker.validate(); err != nil {
			return err
		}
	} else if c.Storage.Driver == StorageMemory {
		return fmt.Errorf("storage driver %s requires worker.embedded: jobs would never be processed", StorageMemory)
	}

	return nil
}

// ValidateWorkerConfig checks the settings used by the worker-service
func (c *Config) ValidateWorkerConfig() error {
	if c.Storage.Driver != StoragePostgres {
		return fmt.Errorf("worker service requires storage driver %s, got %q", StoragePostgres, c.Storage.Driver)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	switch c.Worker.WakeMode {
	case WakePoll:
	case WakeRabbitMQ:
		if err := c.RabbitMQ.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid worker wake_mode for worker service: %q (must be %s or %s)", c.Worker.WakeMode, WakePoll, WakeRabbitMQ)
	}

	if err := validatePort("worker metrics", c.Worker.MetricsPort); err != nil {
		return err
	}

	return c.Worker.validate()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageMemory:
		return nil
	case StoragePostgres:
		return c.Database.validate()
	default:
		return fmt.Errorf("invalid storage driver: %q (must be %s or %s)", c.Storage.Driver, StorageMemory, StoragePostgres)
	}
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if err := validatePort("database", d.Port); err != nil {
		return err
	}

	if d.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (r *RabbitMQConfig) validate() error {
	if r.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if err := validatePort("rabbitmq", r.Port); err != nil {
		return err
	}

	if r.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if r.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

func (w *WorkerConfig) validate() error {
	if w.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be greater than 0")
	}

	if w.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

func validatePort(name string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", name, port, MinPort, MaxPort)
	}
	return nil
}
