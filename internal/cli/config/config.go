package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/notify"
	"github.com/conduit-lang/sensorthings/internal/orm/compiler"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
)

// EnvPrefix prefixes the environment variables that override settings,
// e.g. STA_DATABASE_URL for database.url
const EnvPrefix = "STA"

// Config represents the server configuration
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Query       QueryConfig       `mapstructure:"query"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Plugins     PluginsConfig     `mapstructure:"plugins"`
	Log         LogConfig         `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PersistenceConfig selects the id type and who generates ids
type PersistenceConfig struct {
	IDType           string `mapstructure:"id_type"`
	IDGenerationMode string `mapstructure:"id_generation_mode"`
}

// QueryConfig bounds collection reads
type QueryConfig struct {
	DefaultTop   int64 `mapstructure:"default_top"`
	MaxTop       int64 `mapstructure:"max_top"`
	DefaultCount bool  `mapstructure:"default_count"`
}

// NotifyConfig configures change notifications over Redis pub/sub
type NotifyConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// PluginsConfig enables entity model fragments beyond the sensing model
type PluginsConfig struct {
	Actuation bool `mapstructure:"actuation"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads sensorthings.yml or sensorthings.yaml from the working
// directory, or file when it is not empty. A missing default file is not an
// error. Environment variables override both.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("persistence.id_type", "long")
	v.SetDefault("persistence.id_generation_mode", string(crud.ServerGeneratedOnly))
	v.SetDefault("query.default_top", compiler.DefaultOptions().DefaultTop)
	v.SetDefault("query.max_top", compiler.DefaultOptions().MaxTop)
	v.SetDefault("query.default_count", false)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.redis_addr", "localhost:6379")
	v.SetDefault("notify.redis_password", "")
	v.SetDefault("notify.redis_db", 0)
	v.SetDefault("notify.channel_prefix", notify.DefaultChannelPrefix)
	v.SetDefault("plugins.actuation", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("sensorthings")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// the conventional variable still works
	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// IDCodec returns the codec of the configured id type
func (c *Config) IDCodec() model.IDCodec {
	switch c.Persistence.IDType {
	case "uuid":
		return model.UUIDIDs{}
	case "string":
		return model.StringIDs{}
	}
	return model.LongIDs{}
}

// IDMode returns the configured id generation mode
func (c *Config) IDMode() crud.IDGenerationMode {
	mode, err := crud.ParseIDGenerationMode(c.Persistence.IDGenerationMode)
	if err != nil {
		return crud.ServerGeneratedOnly
	}
	return mode
}

// CompilerOptions returns the paging settings of the query compiler
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{
		DefaultTop:   c.Query.DefaultTop,
		MaxTop:       c.Query.MaxTop,
		DefaultCount: c.Query.DefaultCount,
	}
}

// RedisConfig returns the settings of the change notification publisher
func (c *Config) RedisConfig() notify.RedisConfig {
	return notify.RedisConfig{
		Addr:          c.Notify.RedisAddr,
		Password:      c.Notify.RedisPassword,
		DB:            c.Notify.RedisDB,
		ChannelPrefix: c.Notify.ChannelPrefix,
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Persistence.IDType {
	case "long", "uuid", "string":
	default:
		return fmt.Errorf("persistence.id_type must be one of long, uuid, string, got: %s", cfg.Persistence.IDType)
	}
	if _, err := crud.ParseIDGenerationMode(cfg.Persistence.IDGenerationMode); err != nil {
		return fmt.Errorf("persistence.id_generation_mode: %w", err)
	}

	if cfg.Query.DefaultTop < 1 {
		return fmt.Errorf("query.default_top must be positive, got: %d", cfg.Query.DefaultTop)
	}
	if cfg.Query.MaxTop < cfg.Query.DefaultTop {
		return fmt.Errorf("query.max_top (%d) must not be below query.default_top (%d)", cfg.Query.MaxTop, cfg.Query.DefaultTop)
	}

	if cfg.Notify.Enabled && cfg.Notify.RedisAddr == "" {
		return fmt.Errorf("notify.redis_addr is required when notify.enabled is set")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
