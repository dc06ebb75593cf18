// Package config loads service settings from defaults, an optional config
// file, a .env file and LIBRARY_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// LIBRARY_DB_DSN for db.dsn.
const EnvPrefix = "LIBRARY"

type Config struct {
	Env     string        `mapstructure:"env"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	Session SessionConfig `mapstructure:"session"`
	Loan    LoanConfig    `mapstructure:"loan"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DBConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type LoanConfig struct {
	DefaultDays int `mapstructure:"default_days"`
	MaxDays     int `mapstructure:"max_days"`
}

type AuthConfig struct {
	LoginRatePerMinute int `mapstructure:"login_rate_per_minute"`
	LoginBurst         int `mapstructure:"login_burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type JobsConfig struct {
	SessionSweepSpec string `mapstructure:"session_sweep_spec"`
}

// IsProduction reports whether the service runs with env=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "library.db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("session.cookie_name", "library_session")
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("loan.default_days", 14)
	v.SetDefault("loan.max_days", 90)
	v.SetDefault("auth.login_rate_per_minute", 10)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("jobs.session_sweep_spec", "@hourly")
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment are consulted.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.HTTP.AllowedOrigins = splitOrigins(cfg.HTTP.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitOrigins flattens comma-separated entries, as they arrive from the
// environment, and drops blanks. An empty result disables CORS.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, origin := range strings.Split(entry, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite3", "pgx", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite3, pgx or postgres, got %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return errors.New("db.dsn is required")
	}
	if c.Loan.DefaultDays < 1 || c.Loan.MaxDays < c.Loan.DefaultDays {
		return fmt.Errorf("loan days must satisfy 1 <= default_days (%d) <= max_days (%d)", c.Loan.DefaultDays, c.Loan.MaxDays)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Auth.LoginRatePerMinute < 1 || c.Auth.LoginBurst < 1 {
		return errors.New("auth.login_rate_per_minute and auth.login_burst must be positive")
	}
	return nil
}
