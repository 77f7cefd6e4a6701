package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the calsync server. Values
// come from config.yaml when present, overridden by environment
// variables.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// RedisAddr enables Redis-backed sync locks for multi-instance
	// deployments. Empty means in-process locks.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// PublicBaseURL is the externally reachable base URL, used to build
	// OAuth redirect URIs and published feed URLs.
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	GoogleClientID      string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	OutlookClientID     string `mapstructure:"OUTLOOK_CLIENT_ID"`
	OutlookClientSecret string `mapstructure:"OUTLOOK_CLIENT_SECRET"`

	// OperatorExecutorURL is the endpoint operator job commands are
	// POSTed to. The scheduler treats it as an opaque black box.
	OperatorExecutorURL string `mapstructure:"OPERATOR_EXECUTOR_URL"`

	SyncLockTTLSec int `mapstructure:"SYNC_LOCK_TTL_SEC"`
}

// GoogleRedirectURI builds the OAuth callback URL for Google.
func (c *ServerConfig) GoogleRedirectURI() string {
	return c.PublicBaseURL + "/calendar/google/callback"
}

// OutlookRedirectURI builds the OAuth callback URL for Outlook.
func (c *ServerConfig) OutlookRedirectURI() string {
	return c.PublicBaseURL + "/calendar/outlook/callback"
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/calsync/")
	v.AddConfigPath("$HOME/.calsync")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/calsync_dev")
	v.SetDefault("MONGO_DB_NAME", "calsync_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "calsync-server")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("OPERATOR_EXECUTOR_URL", "")
	v.SetDefault("SYNC_LOCK_TTL_SEC", 120)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
