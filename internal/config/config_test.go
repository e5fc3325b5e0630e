package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithEnv(t *testing.T) {
	t.Setenv("WHATSAPP_DESTINATION", "15550001111")
	t.Setenv("PORT", "")
	t.Setenv("HTTP_PORT", "")

	cfg, err := Load("non-existent.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.HTTPPort)
	}
	if cfg.WhatsApp.Transport != TransportLoopback {
		t.Errorf("expected loopback transport, got %s", cfg.WhatsApp.Transport)
	}
	if cfg.WhatsApp.SendTimeout != 15*time.Second {
		t.Errorf("expected 15s send timeout, got %s", cfg.WhatsApp.SendTimeout)
	}
	if cfg.Dispatch.MaxAttempts != 5 || cfg.Dispatch.Capacity != 1000 {
		t.Errorf("unexpected dispatch defaults %+v", cfg.Dispatch)
	}
}

func TestLoadRequiresDestination(t *testing.T) {
	t.Setenv("WHATSAPP_DESTINATION", "")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "destination") {
		t.Fatalf("expected missing destination error, got %v", err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notifier.yaml")
	data := `
http_port: 8080
whatsapp:
  destination: "15550002222"
  transport: nats
  send_timeout: 5s
dispatch:
  max_attempts: 3
  base_delay: 1s
  max_delay: 1m
nats:
  url: nats://nats:4222
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.WhatsApp.Transport != TransportNATS {
		t.Errorf("file values not applied: port=%d transport=%s", cfg.HTTPPort, cfg.WhatsApp.Transport)
	}
	if cfg.WhatsApp.SendTimeout != 5*time.Second || cfg.Dispatch.MaxDelay != time.Minute {
		t.Errorf("durations not parsed: %s %s", cfg.WhatsApp.SendTimeout, cfg.Dispatch.MaxDelay)
	}
	if cfg.Dispatch.Capacity != 1000 {
		t.Errorf("expected unset keys to keep defaults, capacity=%d", cfg.Dispatch.Capacity)
	}

	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "7")
	t.Setenv("SEND_TIMEOUT", "not-a-duration")

	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 9090 || cfg.Dispatch.MaxAttempts != 7 {
		t.Errorf("env overrides not applied: port=%d attempts=%d", cfg.HTTPPort, cfg.Dispatch.MaxAttempts)
	}
	if cfg.WhatsApp.SendTimeout != 5*time.Second {
		t.Errorf("expected malformed env value to be ignored, got %s", cfg.WhatsApp.SendTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown transport", mutate: func(c *Config) { c.WhatsApp.Transport = "smoke-signals" }, wantErr: "unknown messaging transport"},
		{name: "kafka without brokers", mutate: func(c *Config) {
			c.WhatsApp.Transport = TransportKafka
			c.Kafka.BrokerURL = " , "
		}, wantErr: "broker_url"},
		{name: "zero attempts", mutate: func(c *Config) { c.Dispatch.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "max below base", mutate: func(c *Config) { c.Dispatch.MaxDelay = time.Millisecond }, wantErr: "base_delay"},
		{name: "bad jitter", mutate: func(c *Config) { c.Dispatch.Jitter = 2 }, wantErr: "jitter"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "bad port", mutate: func(c *Config) { c.HTTPPort = 70000 }, wantErr: "http_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.WhatsApp.Destination = "15550001111"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestKafkaBrokers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kafka.BrokerURL = "kafka-1:9092, kafka-2:9092,"
	got := cfg.KafkaBrokers()
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", got)
	}
}
