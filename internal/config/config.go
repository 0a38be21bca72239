package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const (
	defaultPort                = "8080"
	defaultPollTimeout         = 2 * time.Minute
	defaultPollInitialInterval = 250 * time.Millisecond
	defaultPollMaxInterval     = 5 * time.Second
)

type Config struct {
	port                string
	sentryDSN           string
	gcpProjectID        string
	allowedOrigins      []string
	pollTimeout         time.Duration
	pollInitialInterval time.Duration
	pollMaxInterval     time.Duration
	otelEnabled         bool
	env                 environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) GCPProjectID() string {
	return c.gcpProjectID
}

// Domain suffixes allowed to make cross origin requests
func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) PollTimeout() time.Duration {
	return c.pollTimeout
}

func (c *Config) PollInitialInterval() time.Duration {
	return c.pollInitialInterval
}

func (c *Config) PollMaxInterval() time.Duration {
	return c.pollMaxInterval
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, pollTimeout: %s, pollInitialInterval: %s, pollMaxInterval: %s, otelEnabled: %t, ...}",
		string(c.env),
		c.port,
		c.pollTimeout,
		c.pollInitialInterval,
		c.pollMaxInterval,
		c.otelEnabled,
	)
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (%s): %w", ErrInvalidValue, key, raw, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: %s (%s) must be positive", ErrInvalidValue, key, raw)
	}
	return duration, nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv := os.Getenv("UNIRESOLVE_ENVIRONMENT")
	if rawEnv == "" {
		return missingKey("UNIRESOLVE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: UNIRESOLVE_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return Config{}, fmt.Errorf("%w: PORT (%s)", ErrInvalidValue, port)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	gcpProjectID := os.Getenv("GCP_PROJECT_ID")

	allowedOrigins := []string{}
	for _, suffix := range strings.Split(os.Getenv("UNIRESOLVE_ALLOWED_ORIGINS"), ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" {
			allowedOrigins = append(allowedOrigins, suffix)
		}
	}

	pollTimeout, err := durationFromEnv("UNIPROT_POLL_TIMEOUT", defaultPollTimeout)
	if err != nil {
		return Config{}, err
	}
	pollInitialInterval, err := durationFromEnv("UNIPROT_POLL_INITIAL_INTERVAL", defaultPollInitialInterval)
	if err != nil {
		return Config{}, err
	}
	pollMaxInterval, err := durationFromEnv("UNIPROT_POLL_MAX_INTERVAL", defaultPollMaxInterval)
	if err != nil {
		return Config{}, err
	}
	if pollMaxInterval < pollInitialInterval {
		return Config{}, fmt.Errorf("%w: UNIPROT_POLL_MAX_INTERVAL (%s) is less than UNIPROT_POLL_INITIAL_INTERVAL (%s)", ErrInvalidValue, pollMaxInterval, pollInitialInterval)
	}

	otelEnabled := false
	if rawOTelEnabled := os.Getenv("OTEL_ENABLED"); rawOTelEnabled != "" {
		otelEnabled, err = strconv.ParseBool(rawOTelEnabled)
		if err != nil {
			return Config{}, fmt.Errorf("%w: OTEL_ENABLED (%s)", ErrInvalidValue, rawOTelEnabled)
		}
	}

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		port:                port,
		sentryDSN:           sentryDSN,
		gcpProjectID:        gcpProjectID,
		allowedOrigins:      allowedOrigins,
		pollTimeout:         pollTimeout,
		pollInitialInterval: pollInitialInterval,
		pollMaxInterval:     pollMaxInterval,
		otelEnabled:         otelEnabled,
		env:                 env,
	}, nil
}
