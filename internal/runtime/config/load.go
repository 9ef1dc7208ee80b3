package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	runtimeerrors "github.com/drblury/maestro/internal/runtime/errors"
)

// Default supervision and message-plane settings.
const (
	DefaultCheckInterval = 5 * time.Second
	DefaultSlowThreshold = 5 * time.Second
	DefaultDeadThreshold = 10 * time.Second
	DefaultStartupGrace  = 10 * time.Second
	DefaultDrainTimeout  = 5 * time.Second
	DefaultMaxRestarts   = 3
	DefaultCallTimeout   = 5 * time.Second
	DefaultInboxCapacity = 64
	DefaultMetricsPort   = 9090
	DefaultAPIPort       = 8081
)

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		CheckInterval: DefaultCheckInterval,
		SlowThreshold: DefaultSlowThreshold,
		DeadThreshold: DefaultDeadThreshold,
		StartupGrace:  DefaultStartupGrace,
		DrainTimeout:  DefaultDrainTimeout,
		MaxRestarts:   DefaultMaxRestarts,
		AutoRestart:   true,
		CallTimeout:   DefaultCallTimeout,
		InboxCapacity: DefaultInboxCapacity,
		MetricsPort:   DefaultMetricsPort,
		APIPort:       DefaultAPIPort,
		LogLevel:      "info",
	}
}

// Load builds a Config from the environment. A .env file in the working
// directory is read first if present; real environment variables win over
// .env entries. All keys use the MAESTRO_ prefix and fall back to the
// defaults from Default.
func Load() (*Config, error) {
	// Missing .env is not an error; explicit env vars still apply.
	_ = godotenv.Load()

	c := Default()

	c.CheckInterval = envDuration("MAESTRO_CHECK_INTERVAL", c.CheckInterval)
	c.SlowThreshold = envDuration("MAESTRO_SLOW_THRESHOLD", c.SlowThreshold)
	c.DeadThreshold = envDuration("MAESTRO_DEAD_THRESHOLD", c.DeadThreshold)
	c.StartupGrace = envDuration("MAESTRO_STARTUP_GRACE", c.StartupGrace)
	c.DrainTimeout = envDuration("MAESTRO_DRAIN_TIMEOUT", c.DrainTimeout)
	c.MaxRestarts = envInt("MAESTRO_MAX_RESTARTS", c.MaxRestarts)
	c.AutoRestart = envBool("MAESTRO_AUTO_RESTART", c.AutoRestart)
	c.CallTimeout = envDuration("MAESTRO_CALL_TIMEOUT", c.CallTimeout)
	c.InboxCapacity = envInt("MAESTRO_INBOX_CAPACITY", c.InboxCapacity)

	c.EventSink = envString("MAESTRO_EVENT_SINK", c.EventSink)
	c.KafkaBrokers = envStringSlice("MAESTRO_KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaClientID = envString("MAESTRO_KAFKA_CLIENT_ID", c.KafkaClientID)
	c.KafkaConsumerGroup = envString("MAESTRO_KAFKA_CONSUMER_GROUP", c.KafkaConsumerGroup)
	c.RabbitMQURL = envString("MAESTRO_RABBITMQ_URL", c.RabbitMQURL)
	c.NATSURL = envString("MAESTRO_NATS_URL", c.NATSURL)
	c.HTTPServerAddress = envString("MAESTRO_HTTP_SERVER_ADDRESS", c.HTTPServerAddress)
	c.HTTPPublisherURL = envString("MAESTRO_HTTP_PUBLISHER_URL", c.HTTPPublisherURL)
	c.IOFile = envString("MAESTRO_IO_FILE", c.IOFile)
	c.AWSRegion = envString("MAESTRO_AWS_REGION", c.AWSRegion)
	c.AWSAccountID = envString("MAESTRO_AWS_ACCOUNT_ID", c.AWSAccountID)
	c.AWSAccessKeyID = envString("MAESTRO_AWS_ACCESS_KEY_ID", c.AWSAccessKeyID)
	c.AWSSecretAccessKey = envString("MAESTRO_AWS_SECRET_ACCESS_KEY", c.AWSSecretAccessKey)
	c.AWSEndpoint = envString("MAESTRO_AWS_ENDPOINT", c.AWSEndpoint)

	c.RetryMaxRetries = envInt("MAESTRO_RETRY_MAX_RETRIES", c.RetryMaxRetries)
	c.RetryInitialInterval = envDuration("MAESTRO_RETRY_INITIAL_INTERVAL", c.RetryInitialInterval)
	c.RetryMaxInterval = envDuration("MAESTRO_RETRY_MAX_INTERVAL", c.RetryMaxInterval)

	c.MetricsEnabled = envBool("MAESTRO_METRICS_ENABLED", c.MetricsEnabled)
	c.MetricsPort = envInt("MAESTRO_METRICS_PORT", c.MetricsPort)
	c.APIEnabled = envBool("MAESTRO_API_ENABLED", c.APIEnabled)
	c.APIPort = envInt("MAESTRO_API_PORT", c.APIPort)
	c.APICORSAllowedOrigins = envStringSlice("MAESTRO_API_CORS_ALLOWED_ORIGINS", c.APICORSAllowedOrigins)

	c.LogLevel = envString("MAESTRO_LOG_LEVEL", c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, runtimeerrors.NewConfigValidationError(err)
	}
	return c, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envStringSlice(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
