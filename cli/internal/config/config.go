package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Default configuration values (production)
const (
	DefaultServer   = "wss://warpchat.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:warpchat.qzz.io"
	DefaultTURNUser = "warpchat"
	DefaultTURNPass = "warpchat-secret"

	envPrefix = "WARPCHAT"
)

// Viper keys. Flags are bound under the same names.
const (
	KeyServer   = "server"
	KeySTUN     = "stun"
	KeyTURN     = "turn"
	KeyTURNUser = "turn-user"
	KeyTURNPass = "turn-pass"
	KeyRelay    = "relay"
	KeyTag      = "tag"
	KeyUserID   = "user-id"
)

// Config holds application configuration
type Config struct {
	// ServerURL is the signaling server base URL (ws, wss, http or https).
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// Matching preferences
	Tag    string
	UserID string
}

// SetDefaults registers the lowest-priority values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServer, DefaultServer)
	v.SetDefault(KeySTUN, DefaultSTUN)
	v.SetDefault(KeyTURN, DefaultTURN)
	v.SetDefault(KeyTURNUser, DefaultTURNUser)
	v.SetDefault(KeyTURNPass, DefaultTURNPass)
	v.SetDefault(KeyRelay, false)
}

// DefaultConfigFile is ~/.config/warpchat/config.yaml, or "" if the user
// config directory is unknown.
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "warpchat", "config.yaml")
}

// InitViper wires environment variables (WARPCHAT_SERVER, WARPCHAT_TURN_USER,
// ...) and the config file into v. A missing default config file is not an
// error; a missing explicit one is.
func InitViper(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	explicit := cfgFile != ""
	if !explicit {
		cfgFile = DefaultConfigFile()
	}
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

// Load reads configuration with the following priority:
// 1. CLI flags bound to v - highest priority
// 2. WARPCHAT_* environment variables
// 3. The config file
// 4. Defaults - lowest priority
func Load(v *viper.Viper) (*Config, error) {
	server, err := normalizeServer(v.GetString(KeyServer))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:  server,
		STUNServer: v.GetString(KeySTUN),
		TURNServer: v.GetString(KeyTURN),
		TURNUser:   v.GetString(KeyTURNUser),
		TURNPass:   v.GetString(KeyTURNPass),
		ForceRelay: v.GetBool(KeyRelay),
		Tag:        v.GetString(KeyTag),
		UserID:     v.GetString(KeyUserID),
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, errors.New("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// normalizeServer accepts a bare host, or a ws/wss/http/https URL, and returns
// the websocket base URL without a trailing slash.
func normalizeServer(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("server URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	return u.String(), nil
}

// WebSocketURL returns the /ws endpoint with query attached.
func (c *Config) WebSocketURL(query url.Values) string {
	u := c.ServerURL + "/ws"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// StatsURL returns the HTTP(S) address of the server's /stats endpoint.
func (c *Config) StatsURL() string {
	u := c.ServerURL
	switch {
	case strings.HasPrefix(u, "wss://"):
		u = "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		u = "http://" + strings.TrimPrefix(u, "ws://")
	}
	return u + "/stats"
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", strings.TrimPrefix(c.TURNServer, "turn:")),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
