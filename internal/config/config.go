package config

import (
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit"`
	Reservation ReservationConfig `yaml:"reservation"`
	Outbox      OutboxConfig      `yaml:"outbox"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string     `yaml:"brokers"`
	Topics  TopicsConfig `yaml:"topics"`
}

// TopicsConfig maps each inventory event type to its bus topic.
type TopicsConfig struct {
	Reserved  string `yaml:"reserved"`
	Committed string `yaml:"committed"`
	Released  string `yaml:"released"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type ReservationConfig struct {
	// Strategy is "optimistic", "pessimistic" or "split".
	Strategy           string `yaml:"strategy"`
	PessimisticPercent int    `yaml:"pessimistic_percent"`
	DefaultTTLSeconds  int    `yaml:"default_ttl_seconds"`
	// SweepIntervalSeconds of 0 disables the expiry sweeper.
	SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
	SweepBatch           int    `yaml:"sweep_batch"`
	Source               string `yaml:"source"`
}

func (r ReservationConfig) DefaultTTL() time.Duration {
	return time.Duration(r.DefaultTTLSeconds) * time.Second
}

func (r ReservationConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}

type OutboxConfig struct {
	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	BatchSize             int `yaml:"batch_size"`
	MaxAttempts           int `yaml:"max_attempts"`
	LockTimeoutSeconds    int `yaml:"lock_timeout_seconds"`
	PublishTimeoutSeconds int `yaml:"publish_timeout_seconds"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalSeconds) * time.Second
}

func (o OutboxConfig) LockTimeout() time.Duration {
	return time.Duration(o.LockTimeoutSeconds) * time.Second
}

func (o OutboxConfig) PublishTimeout() time.Duration {
	return time.Duration(o.PublishTimeoutSeconds) * time.Second
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Reservation.Strategy == "" {
		c.Reservation.Strategy = "optimistic"
	}
	if c.Reservation.DefaultTTLSeconds == 0 {
		c.Reservation.DefaultTTLSeconds = 900
	}
	if c.Reservation.SweepBatch == 0 {
		c.Reservation.SweepBatch = 100
	}
	if c.Reservation.Source == "" {
		c.Reservation.Source = "inventory-service"
	}
	if c.Outbox.PollIntervalSeconds == 0 {
		c.Outbox.PollIntervalSeconds = 1
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.MaxAttempts == 0 {
		c.Outbox.MaxAttempts = 10
	}
	if c.Outbox.LockTimeoutSeconds == 0 {
		c.Outbox.LockTimeoutSeconds = 60
	}
	if c.Outbox.PublishTimeoutSeconds == 0 {
		c.Outbox.PublishTimeoutSeconds = 5
	}
}
