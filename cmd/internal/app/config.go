package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vivahvows/cmd/internal/auth/session"
)

// DefaultOrigin is used when no API origin is configured.
const DefaultOrigin = "http://localhost:8000"

// Config is the runtime configuration. Keys map to VIVAH_* env vars with
// dots replaced by underscores (api.origin -> VIVAH_API_ORIGIN).
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	WS       WSConfig       `mapstructure:"ws"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

type APIConfig struct {
	Origin         string        `mapstructure:"origin"`
	Prefix         string        `mapstructure:"prefix"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`

	// AllowInsecure permits plain http to a non-loopback origin.
	AllowInsecure bool `mapstructure:"allow_insecure"`
}

type WSConfig struct {
	// Origin defaults to the API origin.
	Origin            string        `mapstructure:"origin"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`
}

type StoreConfig struct {
	Kind       string `mapstructure:"kind"`
	Key        string `mapstructure:"key"`
	Dir        string `mapstructure:"dir"`
	Passphrase string `mapstructure:"passphrase"`

	// RequireSealed refuses to persist credentials in clear text.
	RequireSealed bool `mapstructure:"require_sealed"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is json, text or pretty.
	Format string `mapstructure:"format"`
}

type AgentConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`

	// ReadinessRequireSession makes /readyz fail while logged out.
	ReadinessRequireSession bool `mapstructure:"readiness_require_session"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.origin", "")
	v.SetDefault("api.prefix", "/api")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.refresh_timeout", "15s")
	v.SetDefault("api.allow_insecure", false)

	v.SetDefault("ws.origin", "")
	v.SetDefault("ws.heartbeat_interval", "25s")
	v.SetDefault("ws.heartbeat_timeout", "5s")

	v.SetDefault("store.kind", string(session.KindFile))
	v.SetDefault("store.key", session.DefaultKey)
	v.SetDefault("store.dir", "")
	v.SetDefault("store.passphrase", "")
	v.SetDefault("store.require_sealed", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "vivahvows")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "pretty")

	v.SetDefault("agent.addr", "127.0.0.1:7878")
	v.SetDefault("agent.read_header_timeout", "5s")
	v.SetDefault("agent.shutdown_timeout", "10s")
	v.SetDefault("agent.readiness_require_session", false)
}

// LoadConfig reads defaults, the optional YAML file at path and VIVAH_* env
// vars into a Config. Flags bound on v before the call take precedence.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("VIVAH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.API.Origin = strings.TrimRight(strings.TrimSpace(c.API.Origin), "/")
	if c.API.Origin == "" {
		c.API.Origin = DefaultOrigin
	}
	c.API.Prefix = "/" + strings.Trim(strings.TrimSpace(c.API.Prefix), "/")
	if c.API.Prefix == "/" {
		c.API.Prefix = ""
	}

	c.WS.Origin = strings.TrimRight(strings.TrimSpace(c.WS.Origin), "/")
	if c.WS.Origin == "" {
		c.WS.Origin = c.API.Origin
	}

	if strings.TrimSpace(c.Store.Dir) == "" {
		c.Store.Dir = defaultStoreDir()
	}
}

// Validate checks values that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.Origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid api.origin %q", c.API.Origin)
	}
	if c.API.Timeout < 0 || c.API.RefreshTimeout < 0 {
		return errors.New("api timeouts must not be negative")
	}
	if _, err := c.SessionConfig(); err != nil {
		return err
	}
	return nil
}

// BaseURL is the API root every endpoint path is resolved against.
func (c Config) BaseURL() string {
	return c.API.Origin + c.API.Prefix
}

// SessionConfig maps the store section onto the session package config.
func (c Config) SessionConfig() (session.Config, error) {
	kind, err := session.ParseKind(c.Store.Kind)
	if err != nil {
		return session.Config{}, err
	}
	sc := session.Config{
		Kind:        kind,
		Key:         c.Store.Key,
		Dir:         c.Store.Dir,
		RedisPrefix: c.Redis.Prefix,
		Passphrase:  c.Store.Passphrase,
	}
	return sc, sc.Validate()
}

func defaultStoreDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "vivahvows")
	}
	return filepath.Join(os.TempDir(), "vivahvows")
}
