package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultClinic  string   `mapstructure:"DEFAULT_CLINIC_ID"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	LogFormat      string   `mapstructure:"LOG_FORMAT"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`
	QueueTimezone  string   `mapstructure:"QUEUE_TIMEZONE"`
	TxMaxRetries   int      `mapstructure:"TX_MAX_RETRIES"`
	MigrationsDir  string   `mapstructure:"MIGRATIONS_DIR"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "DEFAULT_CLINIC_ID",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_FORMAT", "LOG_LEVEL",
	"QUEUE_TIMEZONE", "TX_MAX_RETRIES", "MIGRATIONS_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("QUEUE_TIMEZONE", "UTC")
	v.SetDefault("TX_MAX_RETRIES", 5)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil || (len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",")) {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("server is running in DEVELOPMENT mode: requests without a token act as admin of DEFAULT_CLINIC_ID")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves QUEUE_TIMEZONE, the single reference timezone that
// decides which calendar day a queue item belongs to.
func (c *Config) Location() (*time.Location, error) {
	name := c.QueueTimezone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("QUEUE_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// DefaultClinicID parses DEFAULT_CLINIC_ID. It returns uuid.Nil when unset.
func (c *Config) DefaultClinicID() (uuid.UUID, error) {
	if c.DefaultClinic == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(c.DefaultClinic)
	if err != nil {
		return uuid.Nil, fmt.Errorf("DEFAULT_CLINIC_ID is not a valid uuid: %w", err)
	}
	return id, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a token verifier must be configured because the clinic id is taken from
// verified credentials only.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf("one of AUTH_SIGNING_KEY, AUTH_JWKS_URL or AUTH_ISSUER must be set when ENV=%q", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes in production")
	}

	id, err := c.DefaultClinicID()
	if err != nil {
		return err
	}
	if c.IsDev() && id == uuid.Nil {
		return fmt.Errorf("DEFAULT_CLINIC_ID is required in development mode")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.LogFormat {
	case "", "json", "console", "ecs":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"json\", \"console\" or \"ecs\", got %q", c.LogFormat)
	}

	if c.TxMaxRetries < 1 {
		return fmt.Errorf("TX_MAX_RETRIES must be at least 1, got %d", c.TxMaxRetries)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}
