// Package config loads service settings from an optional YAML file and
// COURSEWORK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "COURSEWORK"

const insecureSecret = "development-insecure-secret-change-me"

// Config is the full service configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	TokenTTL  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig enables cross-instance event fan-out when Addr is set
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8008")
	v.SetDefault("database.path", "coursework.db")
	v.SetDefault("auth.jwt_secret", insecureSecret)
	v.SetDefault("auth.issuer", "coursework-api")
	v.SetDefault("auth.audience", "coursework-clients")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "coursework:project:")
}

// Load reads configuration. An empty path skips the file; a missing file at a
// given path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
			Audience:  v.GetString("auth.audience"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Redis: RedisConfig{
			Addr:          v.GetString("redis.addr"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			ChannelPrefix: v.GetString("redis.channel_prefix"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	var problems []error
	if c.Server.Port == "" {
		problems = append(problems, errors.New("server.port is required"))
	}
	if c.Database.Path == "" {
		problems = append(problems, errors.New("database.path is required"))
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, errors.New("auth.token_ttl must be positive"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		problems = append(problems, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		problems = append(problems, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(problems...)
}

// InsecureSecret reports whether the built-in development secret is in use
func (c *Config) InsecureSecret() bool {
	return c.Auth.JWTSecret == insecureSecret
}

// SlogLevel maps the configured level name to a slog level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch l.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", l.Level)
}
