// Package config loads the platform's runtime configuration from the
// environment (with an optional .env file for local development),
// following the teacher's viper-based Load/Validate split.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RedisURL string `mapstructure:"REDIS_URL"`

	OpenSearchURL      string `mapstructure:"OPENSEARCH_URL"`
	OpenSearchUsername string `mapstructure:"OPENSEARCH_USERNAME"`
	OpenSearchPassword string `mapstructure:"OPENSEARCH_PASSWORD"`

	CertificationDir    string `mapstructure:"CERTIFICATION_DIR"`
	AdminAppRedirectURI string `mapstructure:"ADMIN_APP_REDIRECT_URI"`
	APIURL              string `mapstructure:"API_URL"`

	SendgridAPIKey   string `mapstructure:"SENDGRID_API_KEY"`
	EmailFromAddress string `mapstructure:"EMAIL_FROM_ADDRESS"`
}

// Load reads configuration from the environment, falling back to a
// local .env file when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8103")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CERTIFICATION_DIR", "./certs")

	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "OPENSEARCH_URL", "OPENSEARCH_USERNAME", "OPENSEARCH_PASSWORD",
		"CERTIFICATION_DIR", "ADMIN_APP_REDIRECT_URI", "API_URL",
		"SENDGRID_API_KEY", "EMAIL_FROM_ADDRESS",
	} {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("API_URL is required (used as the OIDC issuer and JWKS base)")
	}

	return cfg, nil
}

// IsDev reports whether the server is running in development mode.
func (c *Config) IsDev() bool { return c.Env == "development" }
