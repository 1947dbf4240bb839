package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthMode     string `mapstructure:"AUTH_MODE"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	HandoverSLAHours     int `mapstructure:"HANDOVER_SLA_HOURS"`
	SweepIntervalMinutes int `mapstructure:"SWEEP_INTERVAL_MINUTES"`

	RequestNumberPrefix string `mapstructure:"REQUEST_NUMBER_PREFIX"`
	BatchNumberPrefix   string `mapstructure:"BATCH_NUMBER_PREFIX"`
	FilingNumberPrefix  string `mapstructure:"FILING_NUMBER_PREFIX"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("HANDOVER_SLA_HOURS", 6)
	v.SetDefault("SWEEP_INTERVAL_MINUTES", 15)
	v.SetDefault("REQUEST_NUMBER_PREFIX", "CN")
	v.SetDefault("BATCH_NUMBER_PREFIX", "BN")
	v.SetDefault("FILING_NUMBER_PREFIX", "FN")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("HANDOVER_SLA_HOURS")
	v.BindEnv("SWEEP_INTERVAL_MINUTES")
	v.BindEnv("REQUEST_NUMBER_PREFIX")
	v.BindEnv("BATCH_NUMBER_PREFIX")
	v.BindEnv("FILING_NUMBER_PREFIX")

	// Try reading .env, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.HandoverSLAHours <= 0 {
		return nil, fmt.Errorf("HANDOVER_SLA_HOURS must be positive, got %d", cfg.HandoverSLAHours)
	}
	if cfg.SweepIntervalMinutes <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL_MINUTES must be positive, got %d", cfg.SweepIntervalMinutes)
	}

	return cfg, nil
}

// IsDev reports whether the server runs with development auth defaults.
func (c *Config) IsDev() bool {
	if c.AuthMode != "" {
		return c.AuthMode == "dev"
	}
	return c.Env == "development"
}
