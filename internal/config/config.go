// Package config loads nabava settings from nabava.yaml, .env and NABAVA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LedgerConfig selects where purchasing and inventory data lives. The
// sqlite driver uses the application database.
type LedgerConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Path string `mapstructure:"path"`
}

type AdminConfig struct {
	User string `mapstructure:"user"`
}

// SweepConfig schedules the purge of abandoned distribution series.
type SweepConfig struct {
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Log      LogConfig      `mapstructure:"log"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
}

// New returns a viper instance with defaults and environment binding set
// up. Keys map to NABAVA_SERVER_ADDR, NABAVA_LEDGER_DSN and so on.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", "nabava.sqlite3")
	v.SetDefault("ledger.driver", DriverSQLite)
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("log.path", "")
	v.SetDefault("admin.user", "Admin")
	v.SetDefault("sweep.schedule", "@every 1h")
	v.SetDefault("sweep.max_age", "24h")

	v.SetEnvPrefix("NABAVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env from dir, then nabava.yaml from dir if present, and
// decodes the result. An explicit file overrides the search.
func Load(v *viper.Viper, dir, file string) (Config, error) {
	envFile := ".env"
	if dir != "" {
		envFile = dir + "/.env"
	}
	// A missing .env is fine.
	_ = godotenv.Load(envFile)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("nabava")
		v.SetConfigType("yaml")
		if dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	switch c.Ledger.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown ledger.driver %q", c.Ledger.Driver)
	}

	if c.Sweep.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
			return fmt.Errorf("invalid sweep.schedule %q: %w", c.Sweep.Schedule, err)
		}
	}
	if c.Sweep.MaxAge <= 0 {
		return fmt.Errorf("sweep.max_age must be positive")
	}
	return nil
}
