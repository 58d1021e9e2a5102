package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsMatchDefault(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "Asia/Kolkata", cfg.Schedule.Timezone)
	assert.Equal(t, "10:00", cfg.Schedule.Open)
	assert.Equal(t, "17:30", cfg.Schedule.Close)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GAINIPO_SERVER_PORT", "9090")
	t.Setenv("GAINIPO_FETCH_RPS", "0.5")
	t.Setenv("GAINIPO_FETCH_RETRY_DELAY", "500ms")
	t.Setenv("GAINIPO_STORAGE_DRIVER", "postgres")
	t.Setenv("GAINIPO_STORAGE_POSTGRES_PGHOST", "db.internal")
	t.Setenv("GAINIPO_SOURCES_NSE_HEADLESS", "false")
	t.Setenv("GAINIPO_NORMALIZER_ALIASES", "shareholder:Retail,policyholder:Employee")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Fetch.RPS)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.RetryDelay)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "db.internal", cfg.Storage.Postgres.Host)
	assert.False(t, cfg.Sources.NSE.Headless)
	assert.Equal(t, map[string]string{"shareholder": "Retail", "policyholder": "Employee"}, cfg.Normalizer.Aliases)
}

func TestLoadFileMergesWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
server:
  port: 7000
sources:
  nse:
    headless: false
fetch:
  concurrency: 8
schedule:
  interval: 5m
normalizer:
  aliases:
    shareholder: Retail
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	t.Setenv("GAINIPO_SCHEDULE_INTERVAL", "1m")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.False(t, cfg.Sources.NSE.Headless)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Equal(t, time.Minute, cfg.Schedule.Interval, "env wins over file")
	assert.Equal(t, map[string]string{"shareholder": "Retail"}, cfg.Normalizer.Aliases)

	// Keys absent from the file keep their defaults.
	assert.True(t, cfg.Sources.BSE.Enabled)
	assert.Equal(t, "https://www.bseindia.com", cfg.Sources.BSE.BaseURL)
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [port"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid default", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.Fetch.Timeout = 0 }, wantErr: "fetch timeout"},
		{name: "zero rps", mutate: func(c *Config) { c.Fetch.RPS = 0 }, wantErr: "fetch rps"},
		{name: "negative retries", mutate: func(c *Config) { c.Fetch.Retries = -1 }, wantErr: "fetch retries"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: "unknown storage driver"},
		{name: "postgres without host", mutate: func(c *Config) {
			c.Storage.Driver = "postgres"
			c.Storage.Postgres.Host = ""
		}, wantErr: "postgres host"},
		{name: "bad timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, wantErr: "invalid schedule timezone"},
		{name: "zero interval", mutate: func(c *Config) { c.Schedule.Interval = 0 }, wantErr: "schedule interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""
	cfg.Fetch.Concurrency = 0

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "logs/scraper.log", cfg.Logging.FilePath)
	assert.Equal(t, 1, cfg.Fetch.Concurrency)
}

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.LogsDir = filepath.Join(base, "elsewhere", "logs")

	paths, err := cfg.ResolvePaths(base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "data", "exports"), paths.ExportsDir)
	assert.Equal(t, filepath.Join(base, "elsewhere", "logs"), paths.LogsDir)
	assert.Equal(t, filepath.Join(base, "data", "subscriptions.db"), paths.SQLiteFile)

	require.NoError(t, paths.EnsureDirectories())
	assert.True(t, FileExists(paths.ExportsDir))
	assert.True(t, FileExists(paths.LogsDir))

	day := time.Date(2025, 6, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join(paths.ExportsDir, "acme_ltd_20250624.csv"), paths.ExportPath("acme_ltd", day, ".csv"))
	assert.Equal(t, filepath.Join(paths.ExportsDir, "acme_ltd_20250624.xlsx"), paths.ExportPath("acme_ltd", day, "xlsx"))
}
