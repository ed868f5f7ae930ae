package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flowgrid-go/pkg/logger"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Logger   logger.Config  `mapstructure:"logger"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// EngineConfig holds the knobs of the activation and execution engine.
type EngineConfig struct {
	// ExecutionTTL bounds how long a stalled execution entry survives.
	ExecutionTTL time.Duration `mapstructure:"execution_ttl"`

	// NodeTimeout bounds a single node behavior call.
	NodeTimeout time.Duration `mapstructure:"node_timeout"`

	// Workers is the number of concurrent execution workers.
	Workers int `mapstructure:"workers"`

	// WebhookReplyTimeout bounds how long an inbound webhook request waits
	// for a synchronous reply before returning 202.
	WebhookReplyTimeout time.Duration `mapstructure:"webhook_reply_timeout"`

	// WebhookRateLimit is the per-path sustained requests per second.
	WebhookRateLimit float64 `mapstructure:"webhook_rate_limit"`

	// WebhookRateBurst is the per-path burst allowance.
	WebhookRateBurst int `mapstructure:"webhook_rate_burst"`

	// AIServiceURL is the base URL of the AI execution service that agent
	// and model nodes call.
	AIServiceURL string `mapstructure:"ai_service_url"`
}

func Load(name string) (*Config, error) {
	viper.SetConfigName(name)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/flowgrid")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("FLOWGRID")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No file is fine, defaults plus env cover it.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.shutdown_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "flowgrid")
	viper.SetDefault("database.name", "flowgrid")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "flowgrid.executions")
	viper.SetDefault("kafka.consumer_group", "flowgrid-engine")

	viper.SetDefault("engine.execution_ttl", 30*time.Minute)
	viper.SetDefault("engine.node_timeout", 60*time.Second)
	viper.SetDefault("engine.workers", 8)
	viper.SetDefault("engine.webhook_reply_timeout", 25*time.Second)
	viper.SetDefault("engine.webhook_rate_limit", 10.0)
	viper.SetDefault("engine.webhook_rate_burst", 20)
	viper.SetDefault("engine.ai_service_url", "http://localhost:9091")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
	viper.SetDefault("logger.add_caller", true)
}
