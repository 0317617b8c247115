package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textnotes/store"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "data.json", cfg.DataFile)
	assert.Equal(t, "file", cfg.Backend)
	assert.Equal(t, "127.0.0.1:1430", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, store.DefaultRedisKey, cfg.Redis.Key)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	assert.Empty(t, cfg.apiKeys())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TEXTNOTES_DATA_FILE", "/tmp/notes.json")
	t.Setenv("TEXTNOTES_SERVER_ADDR", "localhost:9999")
	t.Setenv("TEXTNOTES_SERVER_READ_TIMEOUT", "2s")
	t.Setenv("TEXTNOTES_AUTH_API_KEYS", "a, b,,c")
	t.Setenv("TEXTNOTES_LOG_FORMAT", "json")

	cfg, err := loadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/notes.json", cfg.DataFile)
	assert.Equal(t, "localhost:9999", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Len(t, cfg.apiKeys(), 3)
	assert.Contains(t, cfg.apiKeys(), "b")
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textnotes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_file: notes/data.json
backend: redis
redis:
  addr: redis.local:6380
  db: 2
  key: notes
watch:
  enabled: false
`), 0o644))

	cfg, err := loadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "notes/data.json", cfg.DataFile)
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, "redis.local:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "notes", cfg.Redis.Key)
	assert.True(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Watch.Enabled)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"backend", "TEXTNOTES_BACKEND", "sqlite"},
		{"log level", "TEXTNOTES_LOG_LEVEL", "verbose"},
		{"server addr", "TEXTNOTES_SERVER_ADDR", "not an address"},
		{"debounce", "TEXTNOTES_WATCH_DEBOUNCE", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := loadConfig(viper.New(), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := newLogger(LogConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(-1))
	}

	_, err := newLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}
