package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/billbatista/acasinha-chores/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	rot, err := cfg.Rotation.Config()
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, rot.Weekday)
	assert.Equal(t, 12, rot.CutoffHour)
	assert.Equal(t, 6*24*time.Hour, rot.RecentWindow)
	assert.Equal(t, ledger.RoundHalfEven, cfg.Ledger.RoundingPolicy())
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acasinha.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://localhost/acasinha
ledger:
  rounding: distribute
rotation:
  weekday: Sunday
  timezone: America/Mexico_City
`), 0o644))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ACASINHA_TASKS_TRASH=Recycling\n"), 0o644))

	t.Setenv("ACASINHA_SERVER_ADDR", ":9090")
	t.Setenv("ACASINHA_ACTIVITY_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ACASINHA_ROTATION_CUTOFF_HOUR", "18")
	// restores the variable godotenv is about to set
	t.Setenv("ACASINHA_TASKS_TRASH", "")
	os.Unsetenv("ACASINHA_TASKS_TRASH")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ledger.RoundDistribute, cfg.Ledger.RoundingPolicy())
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Activity.KafkaBrokers)
	assert.Equal(t, "Recycling", cfg.Tasks.Trash)
	assert.Equal(t, "Room Cleaning", cfg.Tasks.Cleaning)

	rot, err := cfg.Rotation.Config()
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, rot.Weekday)
	assert.Equal(t, 18, rot.CutoffHour)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "dsn", mutate: func(c *Config) { c.Database.DSN = "" }},
		{name: "rounding", mutate: func(c *Config) { c.Ledger.Rounding = "ceil" }},
		{name: "weekday", mutate: func(c *Config) { c.Rotation.Weekday = "someday" }},
		{name: "cutoff", mutate: func(c *Config) { c.Rotation.CutoffHour = 24 }},
		{name: "window", mutate: func(c *Config) { c.Rotation.RecentWindow = 0 }},
		{name: "timezone", mutate: func(c *Config) { c.Rotation.Timezone = "Mars/Olympus" }},
		{name: "session ttl", mutate: func(c *Config) { c.Session.TTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
