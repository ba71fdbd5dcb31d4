package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Persistence
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	CredentialKey string `envconfig:"CREDENTIAL_KEY"` // 32-byte AES key for provider secrets

	// Redis (queue + shared token cache); empty falls back to in-memory
	RedisURL string `envconfig:"REDIS_URL"`
	QueueKey string `envconfig:"QUEUE_KEY" default:"tarabar:jobs"`

	// Ingestion & workers
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"5m"`
	WorkerCount     int           `envconfig:"WORKER_COUNT" default:"4"`
	IngestOnStartup bool          `envconfig:"INGEST_ON_STARTUP" default:"true"`

	// Deka
	DekaBaseURL string `envconfig:"DEKA_BASE_URL" default:"https://my.post.ir"`
	DekaReferer string `envconfig:"DEKA_REFERER" default:"https://my.post.ir"`
	DekaUseMock bool   `envconfig:"DEKA_USE_MOCK" default:"false"`

	// Kavenegar
	KavenegarAPIKey           string `envconfig:"KAVENEGAR_API_KEY"`
	KavenegarSender           string `envconfig:"KAVENEGAR_SENDER"`
	SMSTemplateCustomerLookup string `envconfig:"SMS_TEMPLATE_CUSTOMER_LOOKUP" default:"register-cargo"`
	SMSTemplateAdmin          string `envconfig:"SMS_TEMPLATE_ADMIN" default:"سفارش جدید {order_id} برای {receptor_name} ثبت شد"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"tarabar"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("redis.enabled", c.RedisURL != ""),
		attribute.Bool("deka.mock", c.DekaUseMock),
	}
}
