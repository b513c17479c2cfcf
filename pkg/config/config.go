package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Realtime RealtimeConfig `yaml:"realtime"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		Timeout        time.Duration `yaml:"timeout"`
		IdentityTTL    time.Duration `yaml:"identity_cache_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	Recording struct {
		Enabled      bool          `yaml:"enabled"`
		Endpoint     string        `yaml:"endpoint"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxAttempts  int           `yaml:"max_attempts"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
	} `yaml:"recording"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// RealtimeConfig tunes the viewer-facing websocket server.
type RealtimeConfig struct {
	Address             string        `yaml:"address"`
	PingInterval        time.Duration `yaml:"ping_interval"`
	PongTimeout         time.Duration `yaml:"pong_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
	MessagesPerSecond   float64       `yaml:"messages_per_second"`
	MessageBurst        int           `yaml:"message_burst"`
	SendQueueSize       int           `yaml:"send_queue_size"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Realtime.Address == "" {
		return fmt.Errorf("realtime.address must not be empty")
	}
	if c.Realtime.PingInterval <= 0 {
		return fmt.Errorf("realtime.ping_interval must be > 0")
	}
	if c.Realtime.PongTimeout <= 0 {
		return fmt.Errorf("realtime.pong_timeout must be > 0")
	}
	if c.Realtime.MessagesPerSecond <= 0 {
		return fmt.Errorf("realtime.messages_per_second must be > 0")
	}
	if c.Realtime.MessageBurst <= 0 {
		return fmt.Errorf("realtime.message_burst must be > 0")
	}
	if c.Realtime.SendQueueSize <= 0 {
		return fmt.Errorf("realtime.send_queue_size must be > 0")
	}
	if c.Realtime.MaxMessageSizeBytes <= 0 {
		return fmt.Errorf("realtime.max_message_size_bytes must be > 0")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.Timeout <= 0 {
		return fmt.Errorf("auth.timeout must be > 0")
	}
	if c.Auth.IdentityTTL <= 0 {
		return fmt.Errorf("auth.identity_cache_ttl must be > 0")
	}

	if c.Recording.Enabled {
		if c.Recording.MaxAttempts < 0 {
			return fmt.Errorf("recording.max_attempts must be >= 0")
		}
		if c.Recording.InitialDelay <= 0 {
			return fmt.Errorf("recording.initial_delay must be > 0")
		}
		if c.Recording.MaxDelay < c.Recording.InitialDelay {
			return fmt.Errorf("recording.max_delay must be >= recording.initial_delay")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Tracing.Enabled && c.Tracing.JaegerURL == "" {
		return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Realtime.Address = ":8081"
	cfg.Realtime.PingInterval = 30 * time.Second
	cfg.Realtime.PongTimeout = 60 * time.Second
	cfg.Realtime.WriteTimeout = 10 * time.Second
	cfg.Realtime.MaxMessageSizeBytes = 64 * 1024
	cfg.Realtime.MessagesPerSecond = 20
	cfg.Realtime.MessageBurst = 40
	cfg.Realtime.SendQueueSize = 64
	cfg.Realtime.ShutdownTimeout = 30 * time.Second

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.Timeout = 5 * time.Second
	cfg.Auth.IdentityTTL = 30 * time.Second
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Recording.Enabled = true
	cfg.Recording.Endpoint = ""
	cfg.Recording.Timeout = 10 * time.Second
	cfg.Recording.MaxAttempts = 3
	cfg.Recording.InitialDelay = 200 * time.Millisecond
	cfg.Recording.MaxDelay = 5 * time.Second

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LIVEGATE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("LIVEGATE_REALTIME_ADDRESS"); addr != "" {
		c.Realtime.Address = addr
	}
	if level := os.Getenv("LIVEGATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("LIVEGATE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("LIVEGATE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}
