package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BioHazard786/Warpchat/backend/internal/events"
)

// AppConfig is the validated configuration of the signaling server. It is
// created by NewConfigFromYaml (stage 1) and finalized by
// UpdateConfigWithEnvOverrides (stage 2).
type AppConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
	WaitingTTL      time.Duration
	ReapInterval    time.Duration
	NotifyEvicted   bool
	AllowedOrigins  []string
	Events          events.Config
}

// Addr is the listen address for net/http.
func (c *AppConfig) Addr() string {
	return ":" + c.Port
}

// Load reads the embedded defaults, an optional .env file in the working
// directory and the process environment, in that order.
func Load(logger *slog.Logger) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	yamlCfg, err := ParseYaml(defaultYaml)
	if err != nil {
		return nil, err
	}
	cfg, err := NewConfigFromYaml(yamlCfg)
	if err != nil {
		return nil, err
	}
	return UpdateConfigWithEnvOverrides(cfg, logger)
}

// UpdateConfigWithEnvOverrides applies environment variables on top of cfg
// and validates the result.
func UpdateConfigWithEnvOverrides(cfg *AppConfig, logger *slog.Logger) (*AppConfig, error) {
	logger.Debug("Applying environment variable overrides...")

	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = n
		}
	}

	str("PORT", &cfg.Port)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	dur("WAITING_TTL", &cfg.WaitingTTL)
	dur("REAP_INTERVAL", &cfg.ReapInterval)
	dur("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	if v := os.Getenv("NOTIFY_EVICTED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("NOTIFY_EVICTED: %w", err))
		} else {
			cfg.NotifyEvicted = b
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		logger.Debug("Overriding config value", "key", "ALLOWED_ORIGINS", "source", "env")
		var clean []string
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				clean = append(clean, trimmed)
			}
		}
		cfg.AllowedOrigins = clean
	}

	str("EVENTS_TYPE", &cfg.Events.Type)
	str("EVENTS_PREFIX", &cfg.Events.Prefix)
	num("EVENTS_BUFFER", &cfg.Events.Buffer)
	str("NATS_URL", &cfg.Events.NATSURL)
	str("REDIS_ADDR", &cfg.Events.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Events.RedisPassword)
	num("REDIS_DB", &cfg.Events.RedisDB)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded", "port", cfg.Port, "waiting_ttl", cfg.WaitingTTL,
		"reap_interval", cfg.ReapInterval, "events", cfg.Events.Type)
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *AppConfig) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("port %q is not a valid TCP port", c.Port))
	}
	if c.WaitingTTL <= 0 {
		errs = append(errs, fmt.Errorf("waiting TTL must be positive, got %s", c.WaitingTTL))
	}
	if c.ReapInterval <= 0 {
		errs = append(errs, fmt.Errorf("reap interval must be positive, got %s", c.ReapInterval))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be text or json", c.LogFormat))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}

	switch c.Events.Type {
	case events.BackendNone, "":
	case events.BackendNATS:
		if c.Events.NATSURL == "" {
			errs = append(errs, errors.New("events type nats requires NATS_URL"))
		}
	case events.BackendRedis:
		if c.Events.RedisAddr == "" {
			errs = append(errs, errors.New("events type redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("events type %q must be none, nats or redis", c.Events.Type))
	}

	return errors.Join(errs...)
}
