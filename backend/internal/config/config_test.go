package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpchat/backend/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clearEnv blanks every variable the loader reads, so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "LOG_FORMAT", "WAITING_TTL", "REAP_INTERVAL",
		"SHUTDOWN_TIMEOUT", "NOTIFY_EVICTED", "ALLOWED_ORIGINS", "EVENTS_TYPE",
		"EVENTS_PREFIX", "EVENTS_BUFFER", "NATS_URL", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB",
	} {
		t.Setenv(key, "")
	}
}

func baseConfig(t *testing.T) *AppConfig {
	t.Helper()
	yamlCfg, err := ParseYaml(defaultYaml)
	require.NoError(t, err)
	cfg, err := NewConfigFromYaml(yamlCfg)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := UpdateConfigWithEnvOverrides(baseConfig(t), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 5*time.Minute, cfg.WaitingTTL)
	assert.Equal(t, 60*time.Second, cfg.ReapInterval)
	assert.True(t, cfg.NotifyEvicted)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, events.BackendNone, cfg.Events.Type)
	assert.Equal(t, "warpchat", cfg.Events.Prefix)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("WAITING_TTL", "30s")
	t.Setenv("REAP_INTERVAL", "5s")
	t.Setenv("NOTIFY_EVICTED", "false")
	t.Setenv("ALLOWED_ORIGINS", "chat.example.com, https://app.example.com ,")
	t.Setenv("EVENTS_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := UpdateConfigWithEnvOverrides(baseConfig(t), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.WaitingTTL)
	assert.Equal(t, 5*time.Second, cfg.ReapInterval)
	assert.False(t, cfg.NotifyEvicted)
	assert.Equal(t, []string{"chat.example.com", "https://app.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, events.BackendRedis, cfg.Events.Type)
	assert.Equal(t, "redis:6379", cfg.Events.RedisAddr)
	assert.Equal(t, 2, cfg.Events.RedisDB)
}

func TestEnvOverrides_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad duration", key: "WAITING_TTL", val: "soon"},
		{name: "negative ttl", key: "WAITING_TTL", val: "-1s"},
		{name: "bad port", key: "PORT", val: "http"},
		{name: "port out of range", key: "PORT", val: "70000"},
		{name: "bad log format", key: "LOG_FORMAT", val: "xml"},
		{name: "bad log level", key: "LOG_LEVEL", val: "loud"},
		{name: "unknown backend", key: "EVENTS_TYPE", val: "kafka"},
		{name: "bad bool", key: "NOTIFY_EVICTED", val: "maybe"},
		{name: "bad redis db", key: "REDIS_DB", val: "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := UpdateConfigWithEnvOverrides(baseConfig(t), testLogger())
			assert.Error(t, err)
		})
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Events.Type = events.BackendNATS
	cfg.Events.NATSURL = ""
	assert.ErrorContains(t, cfg.Validate(), "NATS_URL")

	cfg = baseConfig(t)
	cfg.Events.Type = events.BackendRedis
	cfg.Events.RedisAddr = ""
	assert.ErrorContains(t, cfg.Validate(), "REDIS_ADDR")
}

func TestParseYaml_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseYaml([]byte("port: \"1\"\nmatchmaker: {}\n"))
	assert.Error(t, err)
}

func TestNewConfigFromYaml_BadDuration(t *testing.T) {
	yamlCfg, err := ParseYaml(defaultYaml)
	require.NoError(t, err)
	yamlCfg.Matchmaking.WaitingTTL = "five minutes"

	_, err = NewConfigFromYaml(yamlCfg)
	assert.ErrorContains(t, err, "matchmaking.waiting_ttl")
}
