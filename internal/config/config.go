package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Resample ResampleConfig
	Trace    TraceConfig
	Metrics  MetricsConfig
	Database DatabaseConfig
	Webhook  WebhookConfig
	Storage  StorageConfig
}

type ResampleConfig struct {
	UnsharpSigma  float64
	UnsharpAmount float64
}

type TraceConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

type MetricsConfig struct {
	TextfilePath string
}

type DatabaseConfig struct {
	DSN string
}

type WebhookConfig struct {
	URL            string
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// Enabled reports whether finished runs should be published to a bucket.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	return Config{
		Resample: ResampleConfig{
			UnsharpSigma:  envFloat("ENLARGE_UNSHARP_SIGMA", 0.8),
			UnsharpAmount: envFloat("ENLARGE_UNSHARP_AMOUNT", 0.6),
		},
		Trace: TraceConfig{
			ServiceName:  env("OTEL_SERVICE_NAME", "enlarge"),
			Exporter:     env("ENLARGE_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("ENLARGE_OTLP_INSECURE", false),
		},
		Metrics: MetricsConfig{
			TextfilePath: env("ENLARGE_METRICS_FILE", ""),
		},
		Database: DatabaseConfig{
			DSN: env("ENLARGE_POSTGRES_DSN", ""),
		},
		Webhook: WebhookConfig{
			URL:            env("ENLARGE_WEBHOOK_URL", ""),
			SigningSecret:  env("ENLARGE_WEBHOOK_SECRET", ""),
			Timeout:        envDuration("ENLARGE_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("ENLARGE_WEBHOOK_ATTEMPTS", 3),
			InitialBackoff: envDuration("ENLARGE_WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("ENLARGE_WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", ""),
			UseSSL:    envBool("MINIO_USE_SSL", false),
			Prefix:    env("ENLARGE_PUBLISH_PREFIX", "enlarged"),
		},
	}, nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
