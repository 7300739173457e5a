package config

import (
	"time"

	pkgconfig "github.com/weiawesome/ttv-relay/pkg/config"
	"github.com/weiawesome/ttv-relay/pkg/log"
	"github.com/weiawesome/ttv-relay/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Mailbox   MailboxConfig
	Poll      PollConfig
	Rewards   RewardsConfig
	Metrics   MetricsConfig
	Events    pubsub.Config
	Registry  RegistryConfig
	Log       log.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type MailboxConfig struct {
	TTL time.Duration
}

type PollConfig struct {
	Grace     time.Duration
	Retention time.Duration
}

type RewardsConfig struct {
	MaxCatalogSize int `mapstructure:"max_catalog_size"`
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// RegistryConfig controls advertising hosted rooms in Redis.
type RegistryConfig struct {
	Enabled           bool
	Address           string
	Password          string
	DB                int
	Prefix            string
	InstanceID        string        `mapstructure:"instance_id"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	RegisterTimeout   time.Duration `mapstructure:"register_timeout"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	events := pubsub.DefaultConfig()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 64*1024)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("mailbox.ttl", "30m")
	v.SetDefault("poll.grace", "2s")
	v.SetDefault("poll.retention", "10m")
	v.SetDefault("rewards.max_catalog_size", 30)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("events.driver", events.Driver)
	v.SetDefault("events.redis.address", events.Redis.Address)
	v.SetDefault("events.redis.pool_size", events.Redis.PoolSize)
	v.SetDefault("events.redis.read_timeout", events.Redis.ReadTimeout.String())
	v.SetDefault("events.redis.write_timeout", events.Redis.WriteTimeout.String())
	v.SetDefault("events.kafka.brokers", events.Kafka.Brokers)
	v.SetDefault("events.kafka.partitions", events.Kafka.Partitions)
	v.SetDefault("registry.enabled", false)
	v.SetDefault("registry.address", "localhost:6379")
	v.SetDefault("registry.prefix", "relay:registry")
	v.SetDefault("registry.heartbeat_interval", "10s")
	v.SetDefault("registry.key_ttl", "30s")
	v.SetDefault("registry.register_timeout", "500ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "ttv-relay")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("mailbox.ttl", "MAILBOX_TTL")
	v.BindEnv("poll.grace", "POLL_GRACE")
	v.BindEnv("poll.retention", "POLL_RETENTION")
	v.BindEnv("events.driver", "EVENTS_DRIVER")
	v.BindEnv("events.redis.address", "REDIS_ADDRESS")
	v.BindEnv("events.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("registry.enabled", "REGISTRY_ENABLED")
	v.BindEnv("registry.address", "REGISTRY_REDIS_ADDRESS")
	v.BindEnv("registry.instance_id", "INSTANCE_ID")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Mailbox.TTL = pkgconfig.Duration(v, "mailbox.ttl", 30*time.Minute)
	cfg.Poll.Grace = pkgconfig.Duration(v, "poll.grace", 2*time.Second)
	cfg.Poll.Retention = pkgconfig.Duration(v, "poll.retention", 10*time.Minute)
	cfg.Events.Redis.ReadTimeout = pkgconfig.Duration(v, "events.redis.read_timeout", events.Redis.ReadTimeout)
	cfg.Events.Redis.WriteTimeout = pkgconfig.Duration(v, "events.redis.write_timeout", events.Redis.WriteTimeout)
	cfg.Registry.HeartbeatInterval = pkgconfig.Duration(v, "registry.heartbeat_interval", 10*time.Second)
	cfg.Registry.KeyTTL = pkgconfig.Duration(v, "registry.key_ttl", 30*time.Second)
	cfg.Registry.RegisterTimeout = pkgconfig.Duration(v, "registry.register_timeout", 500*time.Millisecond)

	if cfg.Rewards.MaxCatalogSize <= 0 {
		cfg.Rewards.MaxCatalogSize = 30
	}
	if cfg.WebSocket.SendBuffer <= 0 {
		cfg.WebSocket.SendBuffer = 256
	}

	return &cfg, nil
}
