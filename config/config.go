package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	LinkStoreMySQL    = "mysql"
	LinkStoreDynamoDB = "dynamodb"
)

type Config struct {
	AppBaseURL string
	HTTPAddr   string

	LinkStore string
	DBHost    string
	DBPort    string
	DBUser    string
	DBPass    string
	DBName    string

	DynamoTable      string
	DynamoOwnerIndex string
	DynamoEndpoint   string
	AWSRegion        string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	LinkCacheTTL  time.Duration

	Blob BlobConfig

	JWTSecret string
	JWKSURL   string

	// CleanupQueueEnabled routes orphan cleanup through RabbitMQ instead of deleting inline.
	CleanupQueueEnabled      bool
	RabbitMQURL              string
	RabbitMQPrefetch         int
	CleanupWorkerConcurrency int
	CleanupRate              float64
	CleanupBurst             int
	CleanupRetryMax          int
	CleanupRetryDelays       []time.Duration

	MaxFiles           int
	MaxTotalBytes      int64
	DefaultExpiryHours int

	LogLevel      string
	LogProduction bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_BASE_URL", "http://localhost:8000")
	v.SetDefault("HTTP_ADDR", ":8000")

	v.SetDefault("LINK_STORE", LinkStoreMySQL)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASS", "root")
	v.SetDefault("DB_NAME", "sharelink")

	v.SetDefault("DYNAMODB_TABLE", "ShareLinks")
	v.SetDefault("DYNAMODB_OWNER_INDEX", "UsernameIndex")
	v.SetDefault("DYNAMODB_ENDPOINT", "")
	v.SetDefault("AWS_REGION", "us-east-1")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LINK_CACHE_TTL", "5m")

	v.SetDefault("MINIO_HOST", "localhost")
	v.SetDefault("MINIO_PORT", "9000")
	v.SetDefault("MINIO_USERNAME", "minioadmin")
	v.SetDefault("MINIO_PASSWORD", "minioadmin")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("BUCKET_NAME", "sharelink")
	v.SetDefault("PRESIGN_TTL", "5m")

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWKS_URL", "")

	v.SetDefault("CLEANUP_QUEUE_ENABLED", false)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_HOST", "localhost")
	v.SetDefault("RABBITMQ_PORT", "5672")
	v.SetDefault("RABBITMQ_USER", "guest")
	v.SetDefault("RABBITMQ_PASSWORD", "guest")
	v.SetDefault("RABBITMQ_VHOST", "/")
	v.SetDefault("RABBITMQ_PREFETCH", 8)
	v.SetDefault("CLEANUP_WORKER_CONCURRENCY", 4)
	v.SetDefault("CLEANUP_RATE", 10)
	v.SetDefault("CLEANUP_BURST", 10)
	v.SetDefault("CLEANUP_RETRY_MAX", 5)
	v.SetDefault("CLEANUP_RETRY_DELAYS", "10s,30s,2m,10m,30m")

	v.SetDefault("MAX_FILES", 5)
	v.SetDefault("MAX_TOTAL_BYTES", 30*1024*1024)
	v.SetDefault("DEFAULT_EXPIRY_HOURS", 24)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRODUCTION", false)
}

// Load reads defaults, an optional config.yaml and the environment, in that order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	retryDelays, err := parseDurationList(v.GetString("CLEANUP_RETRY_DELAYS"))
	if err != nil {
		return nil, fmt.Errorf("CLEANUP_RETRY_DELAYS: %w", err)
	}

	rabbitURL := strings.TrimSpace(v.GetString("RABBITMQ_URL"))
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(v.GetString("RABBITMQ_USER")),
			url.PathEscape(v.GetString("RABBITMQ_PASSWORD")),
			v.GetString("RABBITMQ_HOST"),
			v.GetString("RABBITMQ_PORT"),
			url.PathEscape(v.GetString("RABBITMQ_VHOST")),
		)
	}

	cfg := &Config{
		AppBaseURL: strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		HTTPAddr:   v.GetString("HTTP_ADDR"),

		LinkStore: strings.ToLower(strings.TrimSpace(v.GetString("LINK_STORE"))),
		DBHost:    v.GetString("DB_HOST"),
		DBPort:    v.GetString("DB_PORT"),
		DBUser:    v.GetString("DB_USER"),
		DBPass:    v.GetString("DB_PASS"),
		DBName:    v.GetString("DB_NAME"),

		DynamoTable:      v.GetString("DYNAMODB_TABLE"),
		DynamoOwnerIndex: v.GetString("DYNAMODB_OWNER_INDEX"),
		DynamoEndpoint:   v.GetString("DYNAMODB_ENDPOINT"),
		AWSRegion:        v.GetString("AWS_REGION"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		LinkCacheTTL:  v.GetDuration("LINK_CACHE_TTL"),

		Blob: BlobConfig{
			Host:       v.GetString("MINIO_HOST"),
			Port:       v.GetString("MINIO_PORT"),
			Username:   v.GetString("MINIO_USERNAME"),
			Password:   v.GetString("MINIO_PASSWORD"),
			UseSSL:     v.GetBool("MINIO_USE_SSL"),
			BucketName: v.GetString("BUCKET_NAME"),
			PresignTTL: v.GetDuration("PRESIGN_TTL"),
		},

		JWTSecret: v.GetString("JWT_SECRET"),
		JWKSURL:   v.GetString("JWKS_URL"),

		CleanupQueueEnabled:      v.GetBool("CLEANUP_QUEUE_ENABLED"),
		RabbitMQURL:              rabbitURL,
		RabbitMQPrefetch:         v.GetInt("RABBITMQ_PREFETCH"),
		CleanupWorkerConcurrency: v.GetInt("CLEANUP_WORKER_CONCURRENCY"),
		CleanupRate:              v.GetFloat64("CLEANUP_RATE"),
		CleanupBurst:             v.GetInt("CLEANUP_BURST"),
		CleanupRetryMax:          v.GetInt("CLEANUP_RETRY_MAX"),
		CleanupRetryDelays:       retryDelays,

		MaxFiles:           v.GetInt("MAX_FILES"),
		MaxTotalBytes:      v.GetInt64("MAX_TOTAL_BYTES"),
		DefaultExpiryHours: v.GetInt("DEFAULT_EXPIRY_HOURS"),

		LogLevel:      v.GetString("LOG_LEVEL"),
		LogProduction: v.GetBool("LOG_PRODUCTION"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.LinkStore {
	case LinkStoreMySQL, LinkStoreDynamoDB:
	default:
		return fmt.Errorf("unknown LINK_STORE %q", c.LinkStore)
	}
	if c.Blob.BucketName == "" {
		return errors.New("BUCKET_NAME is required")
	}
	if c.Blob.PresignTTL <= 0 {
		return errors.New("PRESIGN_TTL must be positive")
	}
	if c.MaxFiles <= 0 {
		return errors.New("MAX_FILES must be positive")
	}
	if c.MaxTotalBytes <= 0 {
		return errors.New("MAX_TOTAL_BYTES must be positive")
	}
	if c.JWTSecret == "" && c.JWKSURL == "" {
		return errors.New("one of JWT_SECRET or JWKS_URL is required")
	}
	return nil
}

// MySQLDSN builds the gorm mysql DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// ShareURL is the public link for a short code.
func (c *Config) ShareURL(shortCode string) string {
	return c.AppBaseURL + "/" + shortCode
}

func parseDurationList(raw string) ([]time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
