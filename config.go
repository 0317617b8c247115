package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"textnotes/store"
)

// Config holds all settings for the CLI and the bridge server.
type Config struct {
	DataFile string       `mapstructure:"data_file" validate:"required"`
	Backend  string       `mapstructure:"backend" validate:"oneof=file redis"`
	Server   ServerConfig `mapstructure:"server"`
	Auth     AuthConfig   `mapstructure:"auth"`
	Redis    RedisConfig  `mapstructure:"redis"`
	Log      LogConfig    `mapstructure:"log"`
	Watch    WatchConfig  `mapstructure:"watch"`
}

// ServerConfig holds the HTTP bridge settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AuthConfig holds bridge authentication. An empty key list disables auth.
type AuthConfig struct {
	APIKeys string `mapstructure:"api_keys"`
}

// RedisConfig is used when Backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Key      string `mapstructure:"key" validate:"required"`
	Enabled  bool   `mapstructure:"-"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// WatchConfig controls change notifications pushed to the front end.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_file", "data.json")
	v.SetDefault("backend", "file")

	v.SetDefault("server.addr", "127.0.0.1:1430")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("auth.api_keys", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", store.DefaultRedisKey)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", "100ms")
}

// loadConfig resolves configuration from defaults, an optional config file,
// a .env file and TEXTNOTES_* environment variables, in increasing priority.
// Flags bound to v override everything.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	_ = godotenv.Load()

	setDefaults(v)
	v.SetEnvPrefix("TEXTNOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Redis.Enabled = cfg.Backend == "redis"

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// apiKeys returns the configured bearer keys as a set.
func (c *Config) apiKeys() map[string]struct{} {
	return parseAPIKeys(c.Auth.APIKeys)
}
