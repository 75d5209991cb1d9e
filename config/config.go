// Package config loads the service configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed with ACASINHA_ (a .env file is read into
// the environment first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/billbatista/acasinha-chores/ledger"
	"github.com/billbatista/acasinha-chores/rotation"
	"github.com/billbatista/acasinha-chores/telemetry"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "ACASINHA_"

type Config struct {
	Server      ServerConfig      `yaml:"server" envPrefix:"SERVER_"`
	Database    DatabaseConfig    `yaml:"database" envPrefix:"DATABASE_"`
	Ledger      LedgerConfig      `yaml:"ledger" envPrefix:"LEDGER_"`
	Rotation    RotationConfig    `yaml:"rotation" envPrefix:"ROTATION_"`
	Tasks       TasksConfig       `yaml:"tasks" envPrefix:"TASKS_"`
	Session     SessionConfig     `yaml:"session" envPrefix:"SESSION_"`
	Idempotency IdempotencyConfig `yaml:"idempotency" envPrefix:"IDEMPOTENCY_"`
	Activity    ActivityConfig    `yaml:"activity" envPrefix:"ACTIVITY_"`
	Telemetry   telemetry.Config  `yaml:"telemetry" envPrefix:"OTEL_"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// SecureCookies should be on whenever the kiosk is served over TLS.
	SecureCookies bool `yaml:"secure_cookies" env:"SECURE_COOKIES"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" (kiosk default) or "postgres".
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `yaml:"dsn" env:"DSN"`
}

type LedgerConfig struct {
	Rounding string `yaml:"rounding" env:"ROUNDING"`
	Currency string `yaml:"currency" env:"CURRENCY"`
	// Decimals is how many digits of an amount are minor units.
	Decimals int32 `yaml:"decimals" env:"DECIMALS"`
}

type RotationConfig struct {
	Weekday      string        `yaml:"weekday" env:"WEEKDAY"`
	CutoffHour   int           `yaml:"cutoff_hour" env:"CUTOFF_HOUR"`
	RecentWindow time.Duration `yaml:"recent_window" env:"RECENT_WINDOW"`
	// Timezone is an IANA name; empty means the host's local zone.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

type TasksConfig struct {
	Cleaning string `yaml:"cleaning" env:"CLEANING"`
	Trash    string `yaml:"trash" env:"TRASH"`
}

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

type IdempotencyConfig struct {
	// Path of the bolt file; empty disables Idempotency-Key handling.
	Path string        `yaml:"path" env:"PATH"`
	TTL  time.Duration `yaml:"ttl" env:"TTL"`
}

type ActivityConfig struct {
	Buffer       int      `yaml:"buffer" env:"BUFFER"`
	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `yaml:"kafka_topic" env:"KAFKA_TOPIC"`
	NatsURL      string   `yaml:"nats_url" env:"NATS_URL"`
	NatsSubject  string   `yaml:"nats_subject" env:"NATS_SUBJECT"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "acasinha.db",
		},
		Ledger: LedgerConfig{
			Rounding: string(ledger.RoundHalfEven),
			Currency: "MXN",
			Decimals: 2,
		},
		Rotation: RotationConfig{
			Weekday:      "saturday",
			CutoffHour:   12,
			RecentWindow: 6 * 24 * time.Hour,
		},
		Tasks: TasksConfig{
			Cleaning: "Room Cleaning",
			Trash:    "Trash",
		},
		Session: SessionConfig{
			TTL: 12 * time.Hour,
		},
		Idempotency: IdempotencyConfig{
			Path: "idempotency.db",
			TTL:  24 * time.Hour,
		},
		Activity: ActivityConfig{
			Buffer:      100,
			KafkaTopic:  "acasinha.activity",
			NatsSubject: "acasinha.activity",
		},
	}
}

// Load builds the configuration from path (optional) and the environment.
// envFile is loaded into the environment when it exists.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if _, err := ledger.ParseRounding(c.Ledger.Rounding); err != nil {
		return fmt.Errorf("ledger.rounding: %w", err)
	}
	if c.Ledger.Decimals < 0 || c.Ledger.Decimals > 4 {
		return fmt.Errorf("ledger.decimals must be between 0 and 4")
	}
	if _, err := c.Rotation.Config(); err != nil {
		return err
	}
	if _, err := c.Rotation.Location(); err != nil {
		return err
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Activity.Buffer <= 0 {
		return fmt.Errorf("activity.buffer must be positive")
	}
	return nil
}

// RoundingPolicy returns the configured split rounding.
func (l LedgerConfig) RoundingPolicy() ledger.Rounding {
	r, err := ledger.ParseRounding(l.Rounding)
	if err != nil {
		return ledger.RoundHalfEven
	}
	return r
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Config converts the settings into a rotation.Config.
func (r RotationConfig) Config() (rotation.Config, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(r.Weekday))]
	if !ok {
		return rotation.Config{}, fmt.Errorf("rotation.weekday: unknown day %q", r.Weekday)
	}
	if r.CutoffHour < 0 || r.CutoffHour > 23 {
		return rotation.Config{}, fmt.Errorf("rotation.cutoff_hour must be between 0 and 23")
	}
	if r.RecentWindow <= 0 {
		return rotation.Config{}, fmt.Errorf("rotation.recent_window must be positive")
	}
	return rotation.Config{Weekday: wd, CutoffHour: r.CutoffHour, RecentWindow: r.RecentWindow}, nil
}

// Location resolves the rotation timezone.
func (r RotationConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("rotation.timezone: %w", err)
	}
	return loc, nil
}
