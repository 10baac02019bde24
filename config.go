package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds process configuration, read once at startup from the
// environment and an optional .env file. It is immutable afterwards; business
// logic never reads the environment directly.
type Config struct {
	// ListenAddr is the HTTP listen address (e.g. :8081).
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	// DatabaseDSN is the Postgres DSN.
	DatabaseDSN string `mapstructure:"DB_DSN"`
	// SecretKey signs access and refresh tokens (HS256).
	SecretKey string `mapstructure:"SECRET_KEY"`
	// AccessTokenExpireMinutes is the access token lifetime in minutes.
	AccessTokenExpireMinutes int `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	// RefreshMaxAge is the refresh token / session lifetime in seconds.
	RefreshMaxAge int `mapstructure:"REFRESH_MAX_AGE"`
	// SecureHTTPS marks the refresh cookie Secure when the deployment
	// enforces HTTPS.
	SecureHTTPS bool `mapstructure:"SECURE_HTTPS"`
	// CORSOrigins is a comma-separated list of allowed browser origins.
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
}

// loadConfig reads .env (if present) and the environment via viper. Env vars
// override .env values; a missing .env is not an error.
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8081")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 15)
	v.SetDefault("REFRESH_MAX_AGE", 60*60*24*7) // 7 days
	v.SetDefault("SECURE_HTTPS", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "" {
		cfg.SecretKey = "dev-insecure-secret-change" // development fallback
	}
	if cfg.AccessTokenExpireMinutes <= 0 {
		return nil, errors.New("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if cfg.RefreshMaxAge <= 0 {
		return nil, errors.New("config: REFRESH_MAX_AGE must be positive")
	}
	return &cfg, nil
}

// AccessTTL is the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTTL is the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshMaxAge) * time.Second
}

// AllowedOrigins splits CORSOrigins into a trimmed list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
