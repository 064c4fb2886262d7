package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BioHazard786/Warpchat/backend/internal/events"
)

//go:embed config.yaml
var defaultYaml []byte

// --- YAML-Specific Structs ---

type YamlLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type YamlMatchmakingConfig struct {
	WaitingTTL    string `yaml:"waiting_ttl"`
	ReapInterval  string `yaml:"reap_interval"`
	NotifyEvicted bool   `yaml:"notify_evicted"`
}

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type YamlNATSConfig struct {
	URL string `yaml:"url"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type YamlEventsConfig struct {
	Type   string          `yaml:"type"` // "none", "nats" or "redis"
	Prefix string          `yaml:"prefix"`
	Buffer int             `yaml:"buffer"`
	NATS   YamlNATSConfig  `yaml:"nats"`
	Redis  YamlRedisConfig `yaml:"redis"`
}

// YamlConfig defines the structure for unmarshaling the embedded config.yaml file.
type YamlConfig struct {
	Port            string                `yaml:"port"`
	ShutdownTimeout string                `yaml:"shutdown_timeout"`
	Log             YamlLogConfig         `yaml:"log"`
	Matchmaking     YamlMatchmakingConfig `yaml:"matchmaking"`
	Cors            YamlCorsConfig        `yaml:"cors"`
	Events          YamlEventsConfig      `yaml:"events"`
}

// ParseYaml decodes raw YAML, strictly: unknown keys are an error.
func ParseYaml(data []byte) (*YamlConfig, error) {
	var cfg YamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// --- Stage 1 Function ---

// NewConfigFromYaml converts the raw unmarshaled data (YamlConfig) into a
// base AppConfig, without environment overrides.
func NewConfigFromYaml(yamlCfg *YamlConfig) (*AppConfig, error) {
	ttl, err := parseDuration("matchmaking.waiting_ttl", yamlCfg.Matchmaking.WaitingTTL)
	if err != nil {
		return nil, err
	}
	reap, err := parseDuration("matchmaking.reap_interval", yamlCfg.Matchmaking.ReapInterval)
	if err != nil {
		return nil, err
	}
	shutdown, err := parseDuration("shutdown_timeout", yamlCfg.ShutdownTimeout)
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		Port:            yamlCfg.Port,
		ShutdownTimeout: shutdown,
		LogLevel:        yamlCfg.Log.Level,
		LogFormat:       yamlCfg.Log.Format,
		WaitingTTL:      ttl,
		ReapInterval:    reap,
		NotifyEvicted:   yamlCfg.Matchmaking.NotifyEvicted,
		AllowedOrigins:  yamlCfg.Cors.AllowedOrigins,
		Events: events.Config{
			Type:          yamlCfg.Events.Type,
			Prefix:        yamlCfg.Events.Prefix,
			Buffer:        yamlCfg.Events.Buffer,
			NATSURL:       yamlCfg.Events.NATS.URL,
			RedisAddr:     yamlCfg.Events.Redis.Addr,
			RedisPassword: yamlCfg.Events.Redis.Password,
			RedisDB:       yamlCfg.Events.Redis.DB,
		},
	}, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
