package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	TransportLoopback = "loopback"
	TransportKafka    = "kafka"
	TransportNATS     = "nats"
)

type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	WhatsApp struct {
		Destination string        `yaml:"destination"`
		Transport   string        `yaml:"transport"`
		SendTimeout time.Duration `yaml:"send_timeout"`
		// Loopback transport only.
		PairingDelay time.Duration `yaml:"pairing_delay"`
		ReadyDelay   time.Duration `yaml:"ready_delay"`
	} `yaml:"whatsapp"`

	Dispatch struct {
		MaxAttempts  int           `yaml:"max_attempts"`
		BaseDelay    time.Duration `yaml:"base_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Jitter       float64       `yaml:"jitter"`
		PollInterval time.Duration `yaml:"poll_interval"`
		Capacity     int           `yaml:"capacity"`
		Retention    time.Duration `yaml:"retention"`
	} `yaml:"dispatch"`

	Kafka struct {
		BrokerURL     string `yaml:"broker_url"`
		CommandTopic  string `yaml:"command_topic"`
		SessionTopic  string `yaml:"session_topic"`
		ConsumerGroup string `yaml:"consumer_group"`
	} `yaml:"kafka"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		DeliveredTTL time.Duration `yaml:"delivered_ttl"`
	} `yaml:"redis"`
}

func DefaultConfig() *Config {
	cfg := &Config{
		HTTPPort:        3000,
		LogLevel:        "info",
		ShutdownTimeout: 15 * time.Second,
	}
	cfg.WhatsApp.Transport = TransportLoopback
	cfg.WhatsApp.SendTimeout = 15 * time.Second
	cfg.WhatsApp.PairingDelay = time.Second
	cfg.WhatsApp.ReadyDelay = 2 * time.Second

	cfg.Dispatch.MaxAttempts = 5
	cfg.Dispatch.BaseDelay = 2 * time.Second
	cfg.Dispatch.MaxDelay = 5 * time.Minute
	cfg.Dispatch.Jitter = 0.1
	cfg.Dispatch.PollInterval = time.Second
	cfg.Dispatch.Capacity = 1000
	cfg.Dispatch.Retention = 24 * time.Hour

	cfg.Kafka.BrokerURL = "localhost:9092"
	cfg.Kafka.CommandTopic = "whatsapp.commands"
	cfg.Kafka.SessionTopic = "whatsapp.session"
	cfg.Kafka.ConsumerGroup = "shopify-notifier-session-group"

	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.SubjectPrefix = "whatsapp"

	cfg.Redis.DeliveredTTL = 7 * 24 * time.Hour
	return cfg
}

// Load reads defaults, then the YAML file at path (if any), then environment
// overrides, and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvAsInt("PORT", c.HTTPPort)
	c.HTTPPort = getEnvAsInt("HTTP_PORT", c.HTTPPort)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.WhatsApp.Destination = getEnvOrDefault("WHATSAPP_DESTINATION", c.WhatsApp.Destination)
	c.WhatsApp.Transport = getEnvOrDefault("MESSAGING_TRANSPORT", c.WhatsApp.Transport)
	c.WhatsApp.SendTimeout = getEnvAsDuration("SEND_TIMEOUT", c.WhatsApp.SendTimeout)
	c.WhatsApp.PairingDelay = getEnvAsDuration("LOOPBACK_PAIRING_DELAY", c.WhatsApp.PairingDelay)
	c.WhatsApp.ReadyDelay = getEnvAsDuration("LOOPBACK_READY_DELAY", c.WhatsApp.ReadyDelay)

	c.Dispatch.MaxAttempts = getEnvAsInt("DISPATCH_MAX_ATTEMPTS", c.Dispatch.MaxAttempts)
	c.Dispatch.BaseDelay = getEnvAsDuration("DISPATCH_BASE_DELAY", c.Dispatch.BaseDelay)
	c.Dispatch.MaxDelay = getEnvAsDuration("DISPATCH_MAX_DELAY", c.Dispatch.MaxDelay)
	c.Dispatch.Jitter = getEnvAsFloat("DISPATCH_JITTER", c.Dispatch.Jitter)
	c.Dispatch.PollInterval = getEnvAsDuration("DISPATCH_POLL_INTERVAL", c.Dispatch.PollInterval)
	c.Dispatch.Capacity = getEnvAsInt("DISPATCH_CAPACITY", c.Dispatch.Capacity)
	c.Dispatch.Retention = getEnvAsDuration("DISPATCH_RETENTION", c.Dispatch.Retention)

	c.Kafka.BrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", c.Kafka.BrokerURL)
	c.Kafka.CommandTopic = getEnvOrDefault("KAFKA_COMMAND_TOPIC", c.Kafka.CommandTopic)
	c.Kafka.SessionTopic = getEnvOrDefault("KAFKA_SESSION_TOPIC", c.Kafka.SessionTopic)
	c.Kafka.ConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)

	c.NATS.URL = getEnvOrDefault("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnvOrDefault("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Database.URL = getEnvOrDefault("DATABASE_URL", c.Database.URL)

	c.Redis.Addr = getEnvOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.DeliveredTTL = getEnvAsDuration("REDIS_DELIVERED_TTL", c.Redis.DeliveredTTL)
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.WhatsApp.Destination == "" {
		errs = append(errs, errors.New("whatsapp destination is required (WHATSAPP_DESTINATION)"))
	}
	if c.WhatsApp.SendTimeout <= 0 {
		errs = append(errs, errors.New("send_timeout must be positive"))
	}

	switch c.WhatsApp.Transport {
	case TransportLoopback:
	case TransportKafka:
		if len(c.KafkaBrokers()) == 0 {
			errs = append(errs, errors.New("kafka broker_url is required for the kafka transport"))
		}
		if c.Kafka.CommandTopic == "" || c.Kafka.SessionTopic == "" {
			errs = append(errs, errors.New("kafka command_topic and session_topic are required"))
		}
	case TransportNATS:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats url is required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown messaging transport %q", c.WhatsApp.Transport))
	}

	if c.Dispatch.MaxAttempts < 1 {
		errs = append(errs, errors.New("dispatch max_attempts must be at least 1"))
	}
	if c.Dispatch.BaseDelay <= 0 || c.Dispatch.MaxDelay < c.Dispatch.BaseDelay {
		errs = append(errs, errors.New("dispatch base_delay must be positive and not exceed max_delay"))
	}
	if c.Dispatch.Jitter < 0 || c.Dispatch.Jitter > 1 {
		errs = append(errs, errors.New("dispatch jitter must be between 0 and 1"))
	}
	if c.Dispatch.PollInterval <= 0 {
		errs = append(errs, errors.New("dispatch poll_interval must be positive"))
	}
	if c.Dispatch.Capacity < 1 {
		errs = append(errs, errors.New("dispatch capacity must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.BrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnvOrDefault(key, strconv.FormatFloat(defaultValue, 'f', -1, 64))
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
