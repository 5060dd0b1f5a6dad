package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VIVAH_API_ORIGIN", "VIVAH_API_PREFIX", "VIVAH_WS_ORIGIN", "VIVAH_STORE_KIND",
		"VIVAH_STORE_DIR", "VIVAH_STORE_PASSPHRASE", "VIVAH_WS_HEARTBEAT_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultOrigin, cfg.API.Origin)
	assert.Equal(t, "http://localhost:8000/api", cfg.BaseURL())
	assert.Equal(t, cfg.API.Origin, cfg.WS.Origin)
	assert.Equal(t, "file", cfg.Store.Kind)
	assert.NotEmpty(t, cfg.Store.Dir)
	assert.Equal(t, 25*time.Second, cfg.WS.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "127.0.0.1:7878", cfg.Agent.Addr)
}

func TestLoadConfig_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIVAH_API_ORIGIN", "https://api.example.com/")
	t.Setenv("VIVAH_API_PREFIX", "/v2/")
	t.Setenv("VIVAH_STORE_KIND", "memory")
	t.Setenv("VIVAH_WS_HEARTBEAT_INTERVAL", "10s")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v2", cfg.BaseURL())
	assert.Equal(t, "https://api.example.com", cfg.WS.Origin)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, 10*time.Second, cfg.WS.HeartbeatInterval)
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "vivah.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  origin: https://api.vivahvows.in
  prefix: ""
ws:
  origin: wss://rt.vivahvows.in
store:
  kind: redis
redis:
  addr: cache:6379
  prefix: vv
`), 0o600))

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.vivahvows.in", cfg.BaseURL())
	assert.Equal(t, "wss://rt.vivahvows.in", cfg.WS.Origin)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)

	sc, err := cfg.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, "vv", sc.RedisPrefix)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)

	t.Setenv("VIVAH_STORE_KIND", "floppy")
	_, err := LoadConfig(viper.New(), "")
	require.Error(t, err)

	t.Setenv("VIVAH_STORE_KIND", "")
	t.Setenv("VIVAH_API_ORIGIN", "ftp://files.example.com")
	_, err = LoadConfig(viper.New(), "")
	require.Error(t, err)

	_, err = LoadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateSecurityConfig(t *testing.T) {
	base := func() Config {
		return Config{
			API:   APIConfig{Origin: "https://api.vivahvows.in"},
			WS:    WSConfig{Origin: "https://api.vivahvows.in"},
			Store: StoreConfig{Kind: "file"},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "short passphrase", mutate: func(c *Config) { c.Store.Passphrase = "short" }, wantErr: true},
		{name: "sealed required without passphrase", mutate: func(c *Config) { c.Store.RequireSealed = true }, wantErr: true},
		{name: "sealed required with passphrase", mutate: func(c *Config) {
			c.Store.RequireSealed = true
			c.Store.Passphrase = "correct horse battery"
		}},
		{name: "sealed required memory store", mutate: func(c *Config) {
			c.Store.RequireSealed = true
			c.Store.Kind = "memory"
		}},
		{name: "cleartext remote api", mutate: func(c *Config) { c.API.Origin = "http://api.vivahvows.in" }, wantErr: true},
		{name: "cleartext remote ws", mutate: func(c *Config) { c.WS.Origin = "ws://rt.vivahvows.in" }, wantErr: true},
		{name: "cleartext allowed", mutate: func(c *Config) {
			c.API.Origin = "http://api.vivahvows.in"
			c.API.AllowInsecure = true
		}},
		{name: "cleartext loopback", mutate: func(c *Config) {
			c.API.Origin = "http://localhost:8000"
			c.WS.Origin = "http://127.0.0.1:8000"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := ValidateSecurityConfig(cfg)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
