// Package config provides configuration loading and management for sensorwatch.
// It supports loading configuration from YAML files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageMode represents the storage backend mode.
type StorageMode string

const (
	// StorageModeMemory uses in-memory implementations for all storage.
	StorageModeMemory StorageMode = "memory"
	// StorageModeStorage uses real storage backends (Redis, PostgreSQL).
	StorageModeStorage StorageMode = "storage"
)

// IsValid returns true if the storage mode is valid.
func (m StorageMode) IsValid() bool {
	return m == StorageModeMemory || m == StorageModeStorage
}

// TransportMode selects the bus the processor consumes and publishes on.
type TransportMode string

const (
	// TransportMemory is an in-process loopback bus.
	TransportMemory TransportMode = "memory"
	// TransportMQTT connects to an MQTT broker.
	TransportMQTT TransportMode = "mqtt"
	// TransportKafka reads and writes a Kafka topic bridged from the broker.
	TransportKafka TransportMode = "kafka"
)

// IsValid returns true if the transport mode is valid.
func (m TransportMode) IsValid() bool {
	switch m {
	case TransportMemory, TransportMQTT, TransportKafka:
		return true
	}
	return false
}

// Errors returned by Validate.
var (
	ErrInvalidStorageMode   = errors.New("invalid storage mode")
	ErrInvalidTransportMode = errors.New("invalid transport mode")
	ErrInvalidQoS           = errors.New("mqtt qos must be 0, 1 or 2")
)

// Config represents the complete application configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Logger    LoggerConfig    `yaml:"logger"`
	Log       LogConfig       `yaml:"log"`
}

// TransportConfig selects and sizes the bus.
type TransportConfig struct {
	Mode TransportMode `yaml:"mode"`

	// BufferSize is the number of inbound messages buffered for the processor.
	BufferSize int `yaml:"buffer_size"`
}

// StorageConfig holds the storage mode configuration.
type StorageConfig struct {
	Mode StorageMode `yaml:"mode"`
}

// UseMemory returns true if in-memory storage should be used.
func (c *StorageConfig) UseMemory() bool {
	return c.Mode == StorageModeMemory
}

// UseStorage returns true if real storage backends should be used.
func (c *StorageConfig) UseStorage() bool {
	return c.Mode == StorageModeStorage
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// MQTTConfig holds MQTT broker connection settings.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Subscribe      string        `yaml:"subscribe"`
	QoS            byte          `yaml:"qos"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CleanSession   *bool         `yaml:"clean_session"`
}

// KafkaConfig holds Kafka connection and topic settings.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int32  `yaml:"max_open_conns"`
	MaxIdleConns int32  `yaml:"max_idle_conns"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// LogConfig sizes the message log and the in-memory archive.
type LogConfig struct {
	Capacity        int `yaml:"capacity"`
	ArchiveCapacity int `yaml:"archive_capacity"`
}

// Load reads configuration from the specified YAML file path.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	// Clean the path to prevent path traversal attacks
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, then applies environment overrides
// and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg, os.LookupEnv)

	// Apply defaults for any unset values
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyEnv(cfg, os.LookupEnv)
	applyDefaults(cfg)
	return cfg
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if !c.Storage.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStorageMode, c.Storage.Mode)
	}
	if !c.Transport.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTransportMode, c.Transport.Mode)
	}
	if c.MQTT.QoS > 2 {
		return ErrInvalidQoS
	}
	return nil
}

// applyEnv overrides the settings most often changed per deployment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("SENSORWATCH_TRANSPORT"); ok {
		cfg.Transport.Mode = TransportMode(v)
	}
	if v, ok := lookup("SENSORWATCH_STORAGE"); ok {
		cfg.Storage.Mode = StorageMode(v)
	}
	if v, ok := lookup("SENSORWATCH_MQTT_BROKER"); ok {
		cfg.MQTT.Broker = v
	}
	if v, ok := lookup("SENSORWATCH_MQTT_USERNAME"); ok {
		cfg.MQTT.Username = v
	}
	if v, ok := lookup("SENSORWATCH_MQTT_PASSWORD"); ok {
		cfg.MQTT.Password = v
	}
	if v, ok := lookup("SENSORWATCH_POSTGRES_PASSWORD"); ok {
		cfg.Postgres.Password = v
	}
	if v, ok := lookup("SENSORWATCH_REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookup("SENSORWATCH_LOG_LEVEL"); ok {
		cfg.Logger.Level = v
	}
	if v, ok := lookup("SENSORWATCH_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// applyDefaults sets sensible default values for configuration fields
// that are not explicitly set in the config file.
func applyDefaults(cfg *Config) {
	// Transport defaults
	if cfg.Transport.Mode == "" {
		cfg.Transport.Mode = TransportMemory
	}
	if cfg.Transport.BufferSize == 0 {
		cfg.Transport.BufferSize = 1000
	}

	// Storage defaults
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = StorageModeMemory
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	// MQTT defaults
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "sensorwatch"
	}
	if cfg.MQTT.Subscribe == "" {
		cfg.MQTT.Subscribe = "#"
	}
	if cfg.MQTT.KeepAlive == 0 {
		cfg.MQTT.KeepAlive = 30 * time.Second
	}
	if cfg.MQTT.ConnectTimeout == 0 {
		cfg.MQTT.ConnectTimeout = 10 * time.Second
	}
	if cfg.MQTT.CleanSession == nil {
		clean := true
		cfg.MQTT.CleanSession = &clean
	}

	// Kafka defaults
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "sensorwatch-bus"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "sensorwatch"
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Postgres defaults
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 25
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}

	// Logger defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}

	// Message log defaults
	if cfg.Log.Capacity <= 0 {
		cfg.Log.Capacity = 100
	}
	if cfg.Log.ArchiveCapacity <= 0 {
		cfg.Log.ArchiveCapacity = 10000
	}
}

// Address returns the full server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address in host:port format.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
