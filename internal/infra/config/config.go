package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `env:"APP_ENV" env-default:"dev"`
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`

	StorageDriver string `env:"STORAGE_DRIVER" env-default:"memory"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDB       string `env:"MONGO_DB" env-default:"convo"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	Broker             string   `env:"BROKER" env-default:"none"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopicPrefix   string   `env:"KAFKA_TOPIC_PREFIX"`
	KafkaUserTopic     string   `env:"KAFKA_USER_TOPIC"`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" env-default:"convo-directory"`
	RabbitMQURL        string   `env:"RABBITMQ_URL"`
	RabbitMQExchange   string   `env:"RABBITMQ_EXCHANGE" env-default:"convo.events"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" env-default:"500ms"`
	RetryBackoffRaw    string        `env:"RETRY_BACKOFF" env-default:"1s,5s,30s"`
	RetryBackoff       []time.Duration
	IdempotencyTTL     time.Duration `env:"IDEMP_TTL" env-default:"24h"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" env-default:"convo"`

	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3PublicEndpoint string `env:"S3_PUBLIC_ENDPOINT"`
	S3AccessKey      string `env:"S3_ACCESS_KEY" env-default:"minioadmin"`
	S3SecretKey      string `env:"S3_SECRET_KEY" env-default:"minioadmin"`
	S3Bucket         string `env:"S3_BUCKET" env-default:"convo-uploads"`
	S3UseSSL         bool   `env:"S3_USE_SSL" env-default:"false"`
	UploadMaxBytes   int64  `env:"UPLOAD_MAX_BYTES" env-default:"10485760"`

	UsersFixtures string `env:"USERS_FIXTURES"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.StorageDriver == "" {
		c.StorageDriver = DriverMemory
	}
	c.Broker = strings.ToLower(strings.TrimSpace(c.Broker))
	if c.Broker == "" {
		c.Broker = BrokerNone
	}
	brokers := c.KafkaBrokers[:0]
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.KafkaBrokers = brokers
	c.RetryBackoff = nil
	for _, raw := range strings.Split(c.RetryBackoffRaw, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("config: invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		c.RetryBackoff = append(c.RetryBackoff, d)
	}
	if c.S3PublicEndpoint == "" {
		c.S3PublicEndpoint = c.S3Endpoint
	}
	return nil
}

// Validate enforces the settings each storage driver and broker depends on.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo driver")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.Broker {
	case BrokerNone:
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("config: KAFKA_BROKERS is required for the kafka broker")
		}
	case BrokerRabbitMQ:
		if c.RabbitMQURL == "" {
			return errors.New("config: RABBITMQ_URL is required for the rabbitmq broker")
		}
	default:
		return fmt.Errorf("config: unknown BROKER %q", c.Broker)
	}
	if c.KafkaUserTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("config: KAFKA_USER_TOPIC requires KAFKA_BROKERS")
	}
	if c.JWTSecret == "" && !c.IsLocal() {
		return errors.New("config: JWT_SECRET is required outside dev")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("config: UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// IsLocal reports a developer environment.
func (c Config) IsLocal() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "local", "test":
		return true
	}
	return false
}
