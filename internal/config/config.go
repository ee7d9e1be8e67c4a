package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in slim containers

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// BillFlow backend
	BackendURL     string
	BackendTimeout time.Duration
	JwtSecret      string

	// Server
	ApiPort        string
	ServiceApiPort string

	// Redis
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	InvoiceCacheTTL time.Duration

	// MongoDB (render ledger)
	MongoURI    string
	MongoDbName string

	// Document sinks
	Sinks     []string // any of "file", "s3", "minio"
	OutputDir string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AwsS3Prefix        string
	PresignTTL         time.Duration

	// MinIO
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string

	// Invoice document
	ProductName    string
	ProductTagline string
	ProviderLine   string
	CurrencyPrefix string
	Timezone       *time.Location

	// Upload queue
	UploadPurgeDelay time.Duration
	UploadMaxFiles   int

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.BackendURL = strings.TrimRight(getEnv("BACKEND_URL", "http://127.0.0.1:5000"), "/")
	if runMode == "api" || runMode == "all" {
		// Bearer tokens are issued by the backend; the API must verify them with the same key.
		cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
		if err != nil {
			return nil, err
		}
	} else {
		cfg.JwtSecret = getEnv("JWT_SECRET", "")
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.MongoURI = getEnv("MONGO_URI", "")
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "billflow")
	cfg.OutputDir = getEnv("OUTPUT_DIR", "invoices")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AwsS3Prefix = getEnv("AWS_S3_PREFIX", "invoices")
	cfg.MinioEndpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	cfg.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", "minioadmin")
	cfg.MinioSecretKey = getEnv("MINIO_SECRET_KEY", "minioadmin123")
	cfg.MinioBucket = getEnv("MINIO_BUCKET", "billflow-invoices")
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "billflow.events")
	cfg.ProductName = getEnv("PRODUCT_NAME", "BillFlow")
	cfg.ProductTagline = getEnv("PRODUCT_TAGLINE", "Cloud Storage Billing Engine")
	cfg.ProviderLine = getEnv("PROVIDER_LINE", "BillFlow Cloud Storage")
	cfg.CurrencyPrefix = getEnv("CURRENCY_PREFIX", "Rs.")

	cfg.Sinks = splitList(getEnv("SINK", "file"))
	cfg.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", ""))

	cfg.MinioUseSSL, err = strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backendTimeoutSeconds, err := strconv.ParseInt(getEnv("BACKEND_TIMEOUT_SECONDS", "30"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_TIMEOUT_SECONDS: %w", err)
	}
	cfg.BackendTimeout = time.Duration(backendTimeoutSeconds) * time.Second

	cacheTTLSeconds, err := strconv.ParseInt(getEnv("INVOICE_CACHE_TTL_SECONDS", "300"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INVOICE_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.InvoiceCacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	presignTTLMinutes, err := strconv.ParseInt(getEnv("PRESIGN_TTL_MINUTES", "15"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PRESIGN_TTL_MINUTES: %w", err)
	}
	cfg.PresignTTL = time.Duration(presignTTLMinutes) * time.Minute

	purgeDelayMillis, err := strconv.ParseInt(getEnv("UPLOAD_PURGE_DELAY_MS", "1500"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_PURGE_DELAY_MS: %w", err)
	}
	cfg.UploadPurgeDelay = time.Duration(purgeDelayMillis) * time.Millisecond

	cfg.UploadMaxFiles, err = strconv.Atoi(getEnv("UPLOAD_MAX_FILES", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_FILES: %w", err)
	}

	cfg.Timezone, err = time.LoadLocation(getEnv("TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	for _, sink := range cfg.Sinks {
		switch sink {
		case "file", "s3", "minio":
		default:
			return nil, fmt.Errorf("invalid SINK entry %q: expected file, s3 or minio", sink)
		}
	}

	return cfg, nil
}

// HasSink reports whether the named document sink is enabled.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
