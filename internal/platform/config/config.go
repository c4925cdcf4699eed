// Package config loads process configuration from the environment (and an
// optional .env file) using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Object store backends.
const (
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Consent store backends.
const (
	ConsentStoreMemory   = "memory"
	ConsentStorePostgres = "postgres"
	ConsentStoreDynamo   = "dynamodb"
)

// Config is the flat environment view of every component.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	ServerAddr  string `mapstructure:"SERVER_ADDR"`

	Lake    Lake    `mapstructure:",squash"`
	Consent Consent `mapstructure:",squash"`
	Kafka   Kafka   `mapstructure:",squash"`
	Redis   Redis   `mapstructure:",squash"`

	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	PIIPatternsFile string `mapstructure:"PII_PATTERNS_FILE"`
}

// Lake configures the object store and the ingestor that writes to it.
type Lake struct {
	Bucket             string        `mapstructure:"DATA_LAKE_BUCKET_NAME"`
	Region             string        `mapstructure:"AWS_REGION"`
	Backend            string        `mapstructure:"DATA_LAKE_BACKEND"`
	KMSKeyID           string        `mapstructure:"DATA_LAKE_KMS_KEY_ID"`
	GCSCredentialsFile string        `mapstructure:"GCS_CREDENTIALS_FILE"`
	EnableBuffer       bool          `mapstructure:"DATA_LAKE_ENABLE_BUFFER"`
	BufferSize         int           `mapstructure:"DATA_LAKE_BUFFER_SIZE"`
	BufferCap          int           `mapstructure:"DATA_LAKE_BUFFER_CAP"`
	FlushInterval      time.Duration `mapstructure:"DATA_LAKE_FLUSH_INTERVAL"`
	EnableCompression  bool          `mapstructure:"DATA_LAKE_ENABLE_COMPRESSION"`
	EnableEncryption   bool          `mapstructure:"DATA_LAKE_ENABLE_ENCRYPTION"`
	RetryAttempts      int           `mapstructure:"DATA_LAKE_RETRY_ATTEMPTS"`
	RetryDelay         time.Duration `mapstructure:"DATA_LAKE_RETRY_DELAY"`
	RequestTimeout     time.Duration `mapstructure:"DATA_LAKE_REQUEST_TIMEOUT"`
	DeadLetterTopic    string        `mapstructure:"DATA_LAKE_DEAD_LETTER_TOPIC"`
}

// Consent configures the consent store and cache.
type Consent struct {
	Store       string        `mapstructure:"CONSENT_STORE"`
	TableName   string        `mapstructure:"CONSENT_TABLE_NAME"`
	CacheTTL    time.Duration `mapstructure:"CONSENT_CACHE_TTL"`
	EventsTopic string        `mapstructure:"CONSENT_EVENTS_TOPIC"`
}

// Kafka configures the shared producer.
type Kafka struct {
	Brokers         string        `mapstructure:"KAFKA_BROKERS"`
	Acks            string        `mapstructure:"KAFKA_ACKS"`
	Retries         int           `mapstructure:"KAFKA_RETRIES"`
	DeliveryTimeout time.Duration `mapstructure:"KAFKA_DELIVERY_TIMEOUT"`
}

// Redis configures the consent cache client.
type Redis struct {
	URL          string        `mapstructure:"REDIS_URL"`
	PoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`
}

// Every key needs a default: Viper only binds environment variables it knows about.
var defaults = map[string]any{
	"ENVIRONMENT":       "dev",
	"LOG_LEVEL":         "info",
	"SERVER_ADDR":       ":8080",
	"DATABASE_URL":      "",
	"PII_PATTERNS_FILE": "",

	"DATA_LAKE_BUCKET_NAME":        "",
	"AWS_REGION":                   "us-east-1",
	"DATA_LAKE_BACKEND":            BackendS3,
	"DATA_LAKE_KMS_KEY_ID":         "",
	"GCS_CREDENTIALS_FILE":         "",
	"DATA_LAKE_ENABLE_BUFFER":      true,
	"DATA_LAKE_BUFFER_SIZE":        100,
	"DATA_LAKE_BUFFER_CAP":         1000,
	"DATA_LAKE_FLUSH_INTERVAL":     "30s",
	"DATA_LAKE_ENABLE_COMPRESSION": true,
	"DATA_LAKE_ENABLE_ENCRYPTION":  true,
	"DATA_LAKE_RETRY_ATTEMPTS":     3,
	"DATA_LAKE_RETRY_DELAY":        "1s",
	"DATA_LAKE_REQUEST_TIMEOUT":    "30s",
	"DATA_LAKE_DEAD_LETTER_TOPIC":  "",

	"CONSENT_STORE":        ConsentStoreMemory,
	"CONSENT_TABLE_NAME":   "user-consent",
	"CONSENT_CACHE_TTL":    "5m",
	"CONSENT_EVENTS_TOPIC": "",

	"KAFKA_BROKERS":          "",
	"KAFKA_ACKS":             "all",
	"KAFKA_RETRIES":          3,
	"KAFKA_DELIVERY_TIMEOUT": "30s",

	"REDIS_URL":            "",
	"REDIS_POOL_SIZE":      10,
	"REDIS_MIN_IDLE_CONNS": 2,
	"REDIS_DIAL_TIMEOUT":   "5s",
	"REDIS_READ_TIMEOUT":   "3s",
	"REDIS_WRITE_TIMEOUT":  "3s",
}

// Load reads .env when present, then the environment, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	return FromViper(v)
}

// FromViper builds a Config from an existing Viper instance. The CLI uses this
// so flags bound to v override the environment.
func FromViper(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Lake.Backend = strings.ToLower(c.Lake.Backend)
	switch c.Lake.Backend {
	case BackendS3, BackendGCS, BackendMemory:
	default:
		return fmt.Errorf("config: DATA_LAKE_BACKEND must be one of s3, gcs, memory (got %q)", c.Lake.Backend)
	}
	c.Consent.Store = strings.ToLower(c.Consent.Store)
	switch c.Consent.Store {
	case ConsentStoreMemory, ConsentStoreDynamo:
	case ConsentStorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required when CONSENT_STORE=postgres")
		}
	default:
		return fmt.Errorf("config: CONSENT_STORE must be one of memory, postgres, dynamodb (got %q)", c.Consent.Store)
	}
	if c.Lake.BufferSize <= 0 {
		return errors.New("config: DATA_LAKE_BUFFER_SIZE must be positive")
	}
	if c.Lake.BufferCap < c.Lake.BufferSize {
		c.Lake.BufferCap = c.Lake.BufferSize * 10
	}
	if c.Lake.RetryAttempts < 1 {
		c.Lake.RetryAttempts = 1
	}
	return nil
}

// EncryptionEnabled reports whether lake writes are envelope encrypted.
func (c *Config) EncryptionEnabled() bool {
	return c.Lake.EnableEncryption && c.Lake.KMSKeyID != ""
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
