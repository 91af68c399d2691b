// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the signaling service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 64 * 1024
	defaultBurst           = 20
	defaultRefillInterval  = time.Second
	defaultMatchPolicy     = "lifo"
	defaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	// MatchPolicy is "lifo" (default) or "fifo".
	MatchPolicy string
	// StrictRelay only lets a peer address its current partner.
	StrictRelay bool

	MetricsEnabled bool
	// MetricsAddr serves /metrics on a dedicated listener. When empty the
	// endpoint is mounted on the main router.
	MetricsAddr string

	ShutdownTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		MatchPolicy:     defaultMatchPolicy,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// Sanitize returns a copy of cfg with unusable values replaced by defaults and
// origins normalized.
func (cfg Config) Sanitize() Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if strings.TrimSpace(cfg.MatchPolicy) == "" {
		cfg.MatchPolicy = defaultMatchPolicy
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() Config {
	cfg := DefaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	// Seconds between full refills of the bucket
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	if policy := os.Getenv("MATCH_POLICY"); policy != "" {
		cfg.MatchPolicy = policy
	}

	if strict := os.Getenv("STRICT_RELAY"); strict != "" {
		cfg.StrictRelay = parseBool("STRICT_RELAY", strict, cfg.StrictRelay)
	}

	if metrics := os.Getenv("METRICS"); metrics != "" {
		cfg.MetricsEnabled = parseBool("METRICS", metrics, cfg.MetricsEnabled)
	}

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}

	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseBool(name, value string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Ignoring invalid boolean %s=%q", name, value)
		return defaultValue
	}
	return parsed
}
