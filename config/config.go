package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all gateway configuration. It is loaded once at startup and
// injected into the components that need it; business logic never reads the
// process environment directly.
type Config struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// InternalBaseDomain is the root host of the first-party trust boundary;
	// origins on this host or any subdomain of it receive cookies.
	InternalBaseDomain string `mapstructure:"INTERNAL_BASE_DOMAIN"`
	// CookieDomain scopes session cookies; only applied in production.
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`

	JWTAccessSecret  string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`

	AccessTokenTTLMin   int `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHour int `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`
	AuthCodeTTLSec      int `mapstructure:"AUTH_CODE_TTL_SEC"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// IsProduction reports whether the gateway runs in production mode, which
// turns on the Secure cookie flag and the cookie Domain attribute.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHour) * time.Hour
}

func (c *Config) AuthCodeTTL() time.Duration {
	return time.Duration(c.AuthCodeTTLSec) * time.Second
}

// LoadConfig reads configuration from an optional yaml file, environment
// variables and defaults, in that order of precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/authbridge/")
	v.AddConfigPath("$HOME/.authbridge")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/authbridge_dev")
	v.SetDefault("MONGO_DB_NAME", "authbridge_dev")
	v.SetDefault("INTERNAL_BASE_DOMAIN", "localhost")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("JWT_ACCESS_SECRET", "dev_access_secret_change_me")   // CHANGE IN PRODUCTION
	v.SetDefault("JWT_REFRESH_SECRET", "dev_refresh_secret_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 15)
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 168) // 7 days
	v.SetDefault("AUTH_CODE_TTL_SEC", 300)
	v.SetDefault("OTEL_SERVICE_NAME", "authbridge")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
